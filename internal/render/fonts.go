package render

import (
	"fmt"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

var (
	fontOnce    sync.Once
	fontRegular *opentype.Font
	fontBold    *opentype.Font
	fontErr     error
)

func loadFonts() error {
	fontOnce.Do(func() {
		fontRegular, fontErr = opentype.Parse(goregular.TTF)
		if fontErr != nil {
			return
		}
		fontBold, fontErr = opentype.Parse(gobold.TTF)
	})
	return fontErr
}

type faceKey struct {
	size float64
	bold bool
}

// faceCache hands out faces for one rasterization. Faces keep glyph buffers,
// so a cache is never shared between goroutines.
type faceCache struct {
	dpi   float64
	faces map[faceKey]font.Face
}

func newFaceCache(dpi float64) (*faceCache, error) {
	if err := loadFonts(); err != nil {
		return nil, fmt.Errorf("load fonts: %w", err)
	}
	return &faceCache{dpi: dpi, faces: make(map[faceKey]font.Face)}, nil
}

// face returns a Go font face of size points at the cache resolution.
func (fc *faceCache) face(size float64, bold bool) (font.Face, error) {
	key := faceKey{size: size, bold: bold}
	if f, ok := fc.faces[key]; ok {
		return f, nil
	}
	src := fontRegular
	if bold {
		src = fontBold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{
		Size:    size,
		DPI:     fc.dpi,
		Hinting: font.HintingNone, // smoothed by supersampling
	})
	if err != nil {
		return nil, err
	}
	fc.faces[key] = f
	return f, nil
}

func (fc *faceCache) Close() {
	for k, f := range fc.faces {
		_ = f.Close()
		delete(fc.faces, k)
	}
}
