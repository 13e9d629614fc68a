package models

import "time"

// File status values.
const (
	FileStatusUploaded  = "uploaded"
	FileStatusImporting = "importing"
	FileStatusImported  = "imported"
	FileStatusError     = "error"
)

// FileInfo represents metadata about an uploaded geometry archive.
type FileInfo struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploadedAt"`
	Status     string    `json:"status"` // "uploaded", "importing", "imported", "error"
}
