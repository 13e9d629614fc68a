package palette

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#E41A1C", color.RGBA{0xe4, 0x1a, 0x1c, 0xff}, false},
		{"#fff", color.RGBA{0xff, 0xff, 0xff, 0xff}, false},
		{"black", color.RGBA{0, 0, 0, 0xff}, false},
		{" DimGray ", color.RGBA{0x69, 0x69, 0x69, 0xff}, false},
		{"lightblue", color.RGBA{0xad, 0xd8, 0xe6, 0xff}, false},
		{"navy", color.RGBA{0x00, 0x00, 0x80, 0xff}, false},
		{"DarkGreen", color.RGBA{0x00, 0x64, 0x00, 0xff}, false},
		{"grey", color.RGBA{0x80, 0x80, 0x80, 0xff}, false},
		{"notacolor", color.RGBA{}, true},
		{"", color.RGBA{}, true},
		{"E41A1C", color.RGBA{}, true},
		{"#12345", color.RGBA{}, true},
		{"#zzzzzz", color.RGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseOr(t *testing.T) {
	assert.Equal(t, MustParse(DefaultMarker), ParseOr("", DefaultMarker))
	assert.Equal(t, MustParse("#377EB8"), ParseOr("#377EB8", DefaultMarker))
}

func TestGenerate(t *testing.T) {
	first := Generate(11)
	assert.Equal(t, first, Generate(11))
	assert.True(t, Valid(first), first)
	assert.NotEqual(t, Generate(11), Generate(12))
	assert.Equal(t, "#e41a1c", Hex(MustParse("#E41A1C")))
}
