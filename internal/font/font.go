// Package font owns glyph rasterization and metrics for the panel UI.
// Faces are derived lazily from a single parsed font, one per point size,
// and cached for the lifetime of the process; the cache is only rebuilt by
// loading a different font file.
package font

import (
	"errors"
	"fmt"
	"image"
	"os"

	"github.com/fogleman/gg"
	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/opentype"
)

// ErrNoFont reports a missing or unparseable font resource. It surfaces at
// Load time, before any panel I/O happens.
var ErrNoFont = errors.New("font: no usable font")

// probeSize is the face size used to validate a freshly parsed font.
const probeSize = 16

// Cache parses one font and hands out per-size faces and glyph bitmaps.
// It is owned by the engine goroutine and is not safe for concurrent use.
type Cache struct {
	sfnt  *opentype.Font
	faces map[int]xfont.Face
}

// Load parses the font at path. An empty path selects the built-in Go Mono
// Bold face so the appliance renders out of the box.
func Load(path string) (*Cache, error) {
	data := gomonobold.TTF
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrNoFont, path, err)
		}
		data = b
	}

	sfnt, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse: %v", ErrNoFont, err)
	}

	c := &Cache{
		sfnt:  sfnt,
		faces: make(map[int]xfont.Face),
	}
	// Probe one face now so malformed fonts fail at startup instead of on
	// the first draw.
	if _, err := c.face(probeSize); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cache) face(size int) (xfont.Face, error) {
	if f, ok := c.faces[size]; ok {
		return f, nil
	}
	f, err := opentype.NewFace(c.sfnt, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: xfont.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: size %d: %v", ErrNoFont, size, err)
	}
	c.faces[size] = f
	return f, nil
}

// Height returns the line height (ascent plus descent) of the given size.
func (c *Cache) Height(size int) (int, error) {
	f, err := c.face(size)
	if err != nil {
		return 0, err
	}
	m := f.Metrics()
	return (m.Ascent + m.Descent).Ceil(), nil
}

// Width returns the advance width of text at the given size.
func (c *Cache) Width(size int, text string) (int, error) {
	f, err := c.face(size)
	if err != nil {
		return 0, err
	}
	return xfont.MeasureString(f, text).Ceil(), nil
}

// Rasterize renders text as dark-on-light pixels into a tight
// width×lineheight bitmap. Callers pick ink/background when blitting.
// The returned image is empty (zero width) for empty text.
func (c *Cache) Rasterize(text string, size int) (*image.Gray, error) {
	f, err := c.face(size)
	if err != nil {
		return nil, err
	}

	w, err := c.Width(size, text)
	if err != nil {
		return nil, err
	}
	h, err := c.Height(size)
	if err != nil {
		return nil, err
	}
	if w <= 0 || h <= 0 {
		return image.NewGray(image.Rect(0, 0, 0, 0)), nil
	}

	dc := gg.NewContext(w, h)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetFontFace(f)
	dc.SetRGB(0, 0, 0)
	// Baseline sits one pixel above ascent: glyphs butt against the top
	// edge of the band the way the rest of the layout expects.
	dc.DrawString(text, 0, float64(f.Metrics().Ascent.Ceil()-1))

	return flatten(dc.Image(), w, h), nil
}

// flatten collapses the antialiased render to a two-level grayscale image.
func flatten(img image.Image, w, h int) *image.Gray {
	out := image.NewGray(image.Rect(0, 0, w, h))
	rgba, ok := img.(*image.RGBA)
	if !ok {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				r, g, b, _ := img.At(x, y).RGBA()
				yv := (299*r + 587*g + 114*b) / 1000
				if yv < 0x8000 {
					out.Pix[y*out.Stride+x] = 0x00
				} else {
					out.Pix[y*out.Stride+x] = 0xFF
				}
			}
		}
		return out
	}
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride : y*rgba.Stride+w*4]
		for x := 0; x < w; x++ {
			r := row[x*4+0]
			g := row[x*4+1]
			b := row[x*4+2]
			// Luma threshold at mid-scale.
			yv := (299*int(r) + 587*int(g) + 114*int(b)) / 1000
			if yv < 128 {
				out.Pix[y*out.Stride+x] = 0x00
			} else {
				out.Pix[y*out.Stride+x] = 0xFF
			}
		}
	}
	return out
}
