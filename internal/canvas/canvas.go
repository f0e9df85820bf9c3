// Package canvas maintains the panel framebuffer and its dirty region.
//
// The panel memory is portrait: 128 columns by 296 rows, one bit per pixel.
// Drawing happens on a rotated logical surface (296 wide, 128 tall) and is
// remapped to panel coordinates according to the configured orientation:
//
//	Landscape: logical (x, y) -> physical (Width-1-y, x)
//	Reversed:  logical (x, y) -> physical (y, Height-1-x)
//
// Primitives clamp out-of-range coordinates into bounds and reorder
// descending pairs; degenerate input draws a degenerate shape instead of
// failing. Every mutation unions its own physical bounding box into the
// running dirty region, which the refresh path later packs and resets.
package canvas

import (
	"errors"
	"image"

	"epdradio/internal/font"
)

// Panel-native geometry.
const (
	Width  = 128
	Height = 296
)

// Backing buffer pixel values. White is all-ones so packed bytes of a white
// row come out 0xFF.
const (
	White byte = 0xFF
	Black byte = 0x00
)

// ErrGeometry reports an externally supplied bitmap that does not fit the
// target window.
var ErrGeometry = errors.New("canvas: bitmap does not fit")

// Orientation selects one of the two logical-to-physical mappings.
type Orientation int

const (
	// Landscape reads the panel with the connector on the right.
	Landscape Orientation = iota
	// Reversed reads the panel upside down from Landscape. This is the
	// orientation of the reference appliance.
	Reversed
)

func (o Orientation) String() string {
	if o == Reversed {
		return "reversed"
	}
	return "landscape"
}

// ParseOrientation maps a config string to an Orientation. Unknown values
// select Reversed, the reference wiring.
func ParseOrientation(s string) Orientation {
	if s == "landscape" {
		return Landscape
	}
	return Reversed
}

// Box is an inclusive rectangle in physical panel coordinates. An inverted
// box (X0 > X1 or Y0 > Y1) is the empty sentinel.
type Box struct {
	X0, Y0, X1, Y1 int
}

// Empty reports whether the box holds no pixels.
func (b Box) Empty() bool {
	return b.X0 > b.X1 || b.Y0 > b.Y1
}

// clamp restricts the box to panel bounds. A box entirely outside becomes
// empty.
func (b Box) clamp() Box {
	if b.X0 < 0 {
		b.X0 = 0
	}
	if b.Y0 < 0 {
		b.Y0 = 0
	}
	if b.X1 > Width-1 {
		b.X1 = Width - 1
	}
	if b.Y1 > Height-1 {
		b.Y1 = Height - 1
	}
	return b
}

// emptyBox is the reset value of the dirty region: min corner past the max
// corner so any union replaces it.
func emptyBox() Box {
	return Box{X0: Width, Y0: Height, X1: 0, Y1: 0}
}

// Image is the framebuffer plus dirty-region state. It is owned by a single
// goroutine (the engine loop) and is not safe for concurrent use.
type Image struct {
	gray   *image.Gray
	orient Orientation
	dirty  Box
	fonts  *font.Cache
}

// New returns a white canvas with an empty dirty region.
func New(orient Orientation, fonts *font.Cache) *Image {
	g := image.NewGray(image.Rect(0, 0, Width, Height))
	for i := range g.Pix {
		g.Pix[i] = White
	}
	return &Image{
		gray:   g,
		orient: orient,
		dirty:  emptyBox(),
		fonts:  fonts,
	}
}

// Bounds returns the logical drawing surface rectangle (296 wide, 128 tall).
func (im *Image) Bounds() image.Rectangle {
	return image.Rect(0, 0, Height, Width)
}

// Orientation returns the active coordinate mapping.
func (im *Image) Orientation() Orientation {
	return im.orient
}

// Fonts exposes the glyph cache shared with the screen layer.
func (im *Image) Fonts() *font.Cache {
	return im.fonts
}

// Dirty returns the current dirty region.
func (im *Image) Dirty() Box {
	return im.dirty
}

// ResetDirty empties the dirty region. Called after a successful flush.
func (im *Image) ResetDirty() {
	im.dirty = emptyBox()
}

// MarkAllDirty forces the next flush to retransmit the whole canvas.
func (im *Image) MarkAllDirty() {
	im.dirty = Box{X0: 0, Y0: 0, X1: Width - 1, Y1: Height - 1}
}

// At returns the backing pixel value at physical coordinates, or White for
// out-of-range reads.
func (im *Image) At(x, y int) byte {
	if x < 0 || x >= Width || y < 0 || y >= Height {
		return White
	}
	return im.gray.Pix[y*im.gray.Stride+x]
}

// Clear floods the canvas with one color and dirties all of it.
func (im *Image) Clear(black bool) {
	v := colorByte(black)
	for i := range im.gray.Pix {
		im.gray.Pix[i] = v
	}
	im.dirty = Box{X0: 0, Y0: 0, X1: Width - 1, Y1: Height - 1}
}

// Rect fills the logical rectangle spanned by the two corners.
func (im *Image) Rect(x1, y1, x2, y2 int, black bool) {
	lw, lh := Height, Width

	x1 = clampInt(x1, 0, lw-1)
	x2 = clampInt(x2, 0, lw-1)
	if x1 > x2 {
		x1, x2 = x2, x1
	}
	y1 = clampInt(y1, 0, lh-1)
	y2 = clampInt(y2, 0, lh-1)
	if y1 > y2 {
		y1, y2 = y2, y1
	}

	p := im.remapBox(x1, y1, x2, y2)
	im.fill(p, colorByte(black))
	im.markDirty(p)
}

// HLine draws a horizontal stroke on the logical surface starting at (x, y)
// and extending length pixels to the right. Width thickens the stroke on
// the perpendicular axis. An out-of-range anchor row is a no-op.
func (im *Image) HLine(x, y, length, width int, black bool) {
	lw, lh := Height, Width
	if y < 0 || y >= lh {
		return
	}
	if width < 1 {
		width = 1
	}
	if length < 0 {
		length = 0
	}

	x = clampInt(x, 0, lw-1)
	x2 := x + length
	if x2 > lw-1 {
		x2 = lw - 1
	}

	// The stroke body covers exactly width rows centered on the anchor,
	// extra row below for even widths.
	yb0 := y - (width-1)/2
	yb1 := y + width/2
	p := im.remapBox(x, clampInt(yb0, 0, lh-1), x2, clampInt(yb1, 0, lh-1))
	im.fill(p, colorByte(black))

	// The dirty extent is widened by half the stroke width on each side of
	// the anchor row.
	im.markDirty(im.remapBox(x, y-width/2, x2, y+(width+1)/2))
}

// VLine draws a vertical stroke on the logical surface starting at (x, y)
// and extending length pixels down. An out-of-range anchor column is a
// no-op.
func (im *Image) VLine(x, y, length, width int, black bool) {
	lw, lh := Height, Width
	if x < 0 || x >= lw {
		return
	}
	if width < 1 {
		width = 1
	}
	if length < 0 {
		length = 0
	}

	y = clampInt(y, 0, lh-1)
	y2 := y + length
	if y2 > lh-1 {
		y2 = lh - 1
	}

	xb0 := x - (width-1)/2
	xb1 := x + width/2
	p := im.remapBox(clampInt(xb0, 0, lw-1), y, clampInt(xb1, 0, lw-1), y2)
	im.fill(p, colorByte(black))

	im.markDirty(im.remapBox(x-width/2, y, x+(width+1)/2, y2))
}

// remapBox maps an ascending logical box onto physical panel coordinates.
// Callers may pass coordinates outside the logical surface; the result is
// clamped when it reaches fill or markDirty.
func (im *Image) remapBox(x1, y1, x2, y2 int) Box {
	if im.orient == Reversed {
		return Box{X0: y1, Y0: Height - 1 - x2, X1: y2, Y1: Height - 1 - x1}
	}
	return Box{X0: Width - 1 - y2, Y0: x1, X1: Width - 1 - y1, Y1: x2}
}

// fill paints a physical box, clamped to bounds.
func (im *Image) fill(b Box, v byte) {
	b = b.clamp()
	if b.Empty() {
		return
	}
	for y := b.Y0; y <= b.Y1; y++ {
		row := im.gray.Pix[y*im.gray.Stride : y*im.gray.Stride+Width]
		for x := b.X0; x <= b.X1; x++ {
			row[x] = v
		}
	}
}

// markDirty unions a physical box into the dirty region. The union operand
// is clamped first so the dirty region stays inside panel bounds.
func (im *Image) markDirty(b Box) {
	b = b.clamp()
	if b.Empty() {
		return
	}
	if b.X0 < im.dirty.X0 {
		im.dirty.X0 = b.X0
	}
	if b.Y0 < im.dirty.Y0 {
		im.dirty.Y0 = b.Y0
	}
	if b.X1 > im.dirty.X1 {
		im.dirty.X1 = b.X1
	}
	if b.Y1 > im.dirty.Y1 {
		im.dirty.Y1 = b.Y1
	}
}

func colorByte(black bool) byte {
	if black {
		return Black
	}
	return White
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
