// Package convert reduces arbitrary images to the two tones the panel can
// show.
package convert

import (
	"image"
	"image/color"

	"github.com/makeworld-the-better-one/dither"
)

var bwPalette = []color.Color{color.Black, color.White}

// Bilevel converts src to pure black and white using serpentine
// Floyd-Steinberg error diffusion. Grayscale ramps come out as tone
// patterns instead of banding, which reads far better on a single-bit
// panel than a hard threshold.
func Bilevel(src image.Image) *image.Gray {
	d := dither.NewDitherer(bwPalette)
	d.Matrix = dither.FloydSteinberg
	d.Serpentine = true

	pal := d.DitherPaletted(src)
	b := pal.Bounds()
	out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, _, _, _ := pal.At(x, y).RGBA()
			v := uint8(0x00)
			if r >= 0x8000 {
				v = 0xFF
			}
			out.SetGray(x-b.Min.X, y-b.Min.Y, color.Gray{Y: v})
		}
	}
	return out
}
