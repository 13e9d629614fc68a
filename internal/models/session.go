package models

import "time"

// MapSession is one operator's working state: a geometry dataset, the current
// map configuration and the renders produced from them.
type MapSession struct {
	ID         string    `json:"id"`
	DatasetID  string    `json:"datasetId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	LastAccess time.Time `json:"lastAccess"`
	RenderIDs  []string  `json:"renderIds"`

	Config *MapConfig `json:"config"`
}

// NewMapSession creates a session with the given starting configuration.
func NewMapSession(id string, cfg *MapConfig) *MapSession {
	if cfg == nil {
		cfg = EmptyMapConfig()
	}
	now := time.Now()
	return &MapSession{
		ID:         id,
		CreatedAt:  now,
		LastAccess: now,
		RenderIDs:  make([]string, 0),
		Config:     cfg,
	}
}
