// Package palette parses and generates the colors used on the map.
package palette

import (
	"fmt"
	"hash/fnv"
	"image/color"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/colornames"
)

// Fallback colors applied when a configuration omits one.
const (
	DefaultMarker  = "black"
	DefaultShading = "#ffffff"
)

// Valid reports whether s is a color Parse accepts.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Parse accepts "#rrggbb", "#rgb" or an SVG 1.1 color name such as
// "lightblue" or "darkgreen".
func Parse(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := colornames.Map[s]; ok {
		return c, nil
	}
	if !strings.HasPrefix(s, "#") || (len(s) != 7 && len(s) != 4) {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	c, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(s string) color.RGBA {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseOr parses s, returning the parsed fallback when s is empty or invalid.
func ParseOr(s, fallback string) color.RGBA {
	if c, err := Parse(s); err == nil {
		return c
	}
	return MustParse(fallback)
}

// Generate returns a stable color for a product id. The hue is spread by
// hashing the id so that neighbouring ids get distinct colors.
func Generate(id int) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strconv.Itoa(id)))
	hue := float64(h.Sum32()%360000) / 1000
	return colorful.Hsv(hue, 0.65, 0.85).Clamped().Hex()
}

// Hex formats c as "#rrggbb".
func Hex(c color.Color) string {
	cf, ok := colorful.MakeColor(c)
	if !ok {
		return "#000000"
	}
	return cf.Hex()
}
