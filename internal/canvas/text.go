package canvas

import (
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// Text draws a string with its top-left corner at logical (x, y). The glyph
// bitmap is opaque: with black ink the glyph box gets a white background,
// and with white ink a black one, so a row can be rendered inverted by
// flipping the ink. The bitmap is rotated to match the orientation before
// the paste; pixels falling outside the panel are clipped.
func (im *Image) Text(text string, x, y, size int, black bool) error {
	glyph, err := im.fonts.Rasterize(text, size)
	if err != nil {
		return err
	}
	tw := glyph.Bounds().Dx()
	th := glyph.Bounds().Dy()
	if tw <= 0 || th <= 0 {
		return nil
	}

	var rot *image.NRGBA
	var px, py int
	if im.orient == Reversed {
		rot = imaging.Rotate90(glyph)
		px, py = y, Height-x-tw
	} else {
		rot = imaging.Rotate270(glyph)
		px, py = Width-y-th, x
	}

	ink, bg := Black, White
	if !black {
		ink, bg = White, Black
	}

	rw := rot.Bounds().Dx()
	rh := rot.Bounds().Dy()
	for ry := 0; ry < rh; ry++ {
		yy := py + ry
		if yy < 0 || yy >= Height {
			continue
		}
		srow := rot.Pix[ry*rot.Stride:]
		drow := im.gray.Pix[yy*im.gray.Stride : yy*im.gray.Stride+Width]
		for rx := 0; rx < rw; rx++ {
			xx := px + rx
			if xx < 0 || xx >= Width {
				continue
			}
			if srow[rx*4] < 128 {
				drow[xx] = ink
			} else {
				drow[xx] = bg
			}
		}
	}

	im.markDirty(Box{X0: px, Y0: py, X1: px + rw - 1, Y1: py + rh - 1})
	return nil
}

// Blit pastes an externally produced bitmap with its top-left corner at
// logical (x, y). Unlike the drawing primitives it does not clip: the
// rotated bitmap must land entirely inside the panel or the call fails
// with ErrGeometry. Pixels at or above mid-luma render white; transparent
// pixels render white.
func (im *Image) Blit(src image.Image, x, y int) error {
	sw := src.Bounds().Dx()
	sh := src.Bounds().Dy()
	if sw <= 0 || sh <= 0 {
		return nil
	}

	var rot *image.NRGBA
	var px, py int
	if im.orient == Reversed {
		rot = imaging.Rotate90(src)
		px, py = y, Height-x-sw
	} else {
		rot = imaging.Rotate270(src)
		px, py = Width-y-sh, x
	}

	rw := rot.Bounds().Dx()
	rh := rot.Bounds().Dy()
	if px < 0 || py < 0 || px+rw > Width || py+rh > Height {
		return fmt.Errorf("%w: %dx%d at logical (%d,%d)", ErrGeometry, sw, sh, x, y)
	}

	for ry := 0; ry < rh; ry++ {
		srow := rot.Pix[ry*rot.Stride:]
		drow := im.gray.Pix[(py+ry)*im.gray.Stride : (py+ry)*im.gray.Stride+Width]
		for rx := 0; rx < rw; rx++ {
			r := srow[rx*4+0]
			g := srow[rx*4+1]
			b := srow[rx*4+2]
			a := srow[rx*4+3]
			if a < 128 {
				drow[px+rx] = White
				continue
			}
			luma := (299*int(r) + 587*int(g) + 114*int(b)) / 1000
			if luma < 128 {
				drow[px+rx] = Black
			} else {
				drow[px+rx] = White
			}
		}
	}

	im.markDirty(Box{X0: px, Y0: py, X1: px + rw - 1, Y1: py + rh - 1})
	return nil
}
