package render

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"io"
)

// FileName is the download name of a map rendered at dpi.
func FileName(dpi int) string {
	return fmt.Sprintf("district_products_map_%ddpi.png", dpi)
}

// EncodePNG writes img as PNG.
func EncodePNG(w io.Writer, img image.Image, level png.CompressionLevel) error {
	enc := &png.Encoder{CompressionLevel: level}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

// PNGBytes encodes img into a byte slice.
func PNGBytes(img image.Image, level png.CompressionLevel) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, img, level); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
