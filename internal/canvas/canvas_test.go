package canvas

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"epdradio/internal/font"
)

func TestParseOrientation(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Orientation
	}{
		{"landscape", "landscape", Landscape},
		{"reversed", "reversed", Reversed},
		{"unknown falls back to reversed", "portrait", Reversed},
		{"empty falls back to reversed", "", Reversed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseOrientation(tt.in); got != tt.want {
				t.Errorf("ParseOrientation(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestBoxEmpty(t *testing.T) {
	tests := []struct {
		name string
		box  Box
		want bool
	}{
		{"sentinel", emptyBox(), true},
		{"inverted x", Box{X0: 5, Y0: 0, X1: 4, Y1: 10}, true},
		{"inverted y", Box{X0: 0, Y0: 11, X1: 4, Y1: 10}, true},
		{"single pixel", Box{X0: 3, Y0: 3, X1: 3, Y1: 3}, false},
		{"full panel", Box{X0: 0, Y0: 0, X1: Width - 1, Y1: Height - 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Empty(); got != tt.want {
				t.Errorf("Empty(%v) = %v, want %v", tt.box, got, tt.want)
			}
		})
	}
}

func TestNewIsWhiteAndClean(t *testing.T) {
	im := New(Reversed, nil)
	if !im.Dirty().Empty() {
		t.Errorf("new canvas dirty = %v, want empty", im.Dirty())
	}
	for y := 0; y < Height; y += 37 {
		for x := 0; x < Width; x += 13 {
			if im.At(x, y) != White {
				t.Fatalf("At(%d,%d) = %#x, want white", x, y, im.At(x, y))
			}
		}
	}
	if im.At(-1, 0) != White || im.At(0, Height) != White {
		t.Error("out-of-range At should read white")
	}
}

func TestRectRemap(t *testing.T) {
	tests := []struct {
		name   string
		orient Orientation
		// logical rectangle
		x1, y1, x2, y2 int
		want           Box
	}{
		{
			name:   "reversed corner",
			orient: Reversed,
			x1:     10, y1: 20, x2: 12, y2: 21,
			want: Box{X0: 20, Y0: Height - 1 - 12, X1: 21, Y1: Height - 1 - 10},
		},
		{
			name:   "landscape corner",
			orient: Landscape,
			x1:     10, y1: 20, x2: 12, y2: 21,
			want: Box{X0: Width - 1 - 21, Y0: 10, X1: Width - 1 - 20, Y1: 12},
		},
		{
			name:   "reversed origin pixel",
			orient: Reversed,
			x1:     0, y1: 0, x2: 0, y2: 0,
			want: Box{X0: 0, Y0: Height - 1, X1: 0, Y1: Height - 1},
		},
		{
			name:   "landscape origin pixel",
			orient: Landscape,
			x1:     0, y1: 0, x2: 0, y2: 0,
			want: Box{X0: Width - 1, Y0: 0, X1: Width - 1, Y1: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			im := New(tt.orient, nil)
			im.Rect(tt.x1, tt.y1, tt.x2, tt.y2, true)
			if got := im.Dirty(); got != tt.want {
				t.Errorf("dirty = %v, want %v", got, tt.want)
			}
			for y := tt.want.Y0; y <= tt.want.Y1; y++ {
				for x := tt.want.X0; x <= tt.want.X1; x++ {
					if im.At(x, y) != Black {
						t.Errorf("At(%d,%d) = %#x, want black", x, y, im.At(x, y))
					}
				}
			}
			// One pixel outside each edge stays white.
			if im.At(tt.want.X0-1, tt.want.Y0) != White || im.At(tt.want.X1+1, tt.want.Y1) != White {
				t.Error("paint leaked outside the remapped box")
			}
		})
	}
}

func TestRectClampAndSwap(t *testing.T) {
	im := New(Reversed, nil)
	// Corners reversed and far out of range: clamps to the full surface.
	im.Rect(1000, 1000, -5, -5, true)
	want := Box{X0: 0, Y0: 0, X1: Width - 1, Y1: Height - 1}
	if got := im.Dirty(); got != want {
		t.Errorf("dirty = %v, want %v", got, want)
	}
	if im.At(0, 0) != Black || im.At(Width-1, Height-1) != Black {
		t.Error("full-surface rect left white corners")
	}
}

func TestDirtyUnion(t *testing.T) {
	im := New(Reversed, nil)
	im.Rect(10, 20, 12, 21, true)
	first := im.Dirty()
	im.Rect(100, 5, 101, 6, true)
	second := im.remapBox(100, 5, 101, 6)

	want := first
	if second.X0 < want.X0 {
		want.X0 = second.X0
	}
	if second.Y0 < want.Y0 {
		want.Y0 = second.Y0
	}
	if second.X1 > want.X1 {
		want.X1 = second.X1
	}
	if second.Y1 > want.Y1 {
		want.Y1 = second.Y1
	}
	if got := im.Dirty(); got != want {
		t.Errorf("dirty after two draws = %v, want union %v", got, want)
	}
}

func TestResetDirty(t *testing.T) {
	im := New(Reversed, nil)
	im.Rect(0, 0, 4, 4, true)
	im.ResetDirty()
	if !im.Dirty().Empty() {
		t.Errorf("dirty after reset = %v, want empty", im.Dirty())
	}
	// Pixels survive the reset; only the tracking is cleared.
	if im.At(0, Height-1) != Black {
		t.Error("reset cleared pixels")
	}
}

func TestClear(t *testing.T) {
	im := New(Reversed, nil)
	im.Clear(true)
	want := Box{X0: 0, Y0: 0, X1: Width - 1, Y1: Height - 1}
	if got := im.Dirty(); got != want {
		t.Errorf("dirty = %v, want %v", got, want)
	}
	for y := 0; y < Height; y += 31 {
		for x := 0; x < Width; x += 17 {
			if im.At(x, y) != Black {
				t.Fatalf("At(%d,%d) = %#x, want black", x, y, im.At(x, y))
			}
		}
	}
	im.Clear(false)
	if im.At(0, 0) != White {
		t.Error("clear white left black pixels")
	}
}

func TestHLine(t *testing.T) {
	im := New(Reversed, nil)
	// Title underline: full width, 2 px thick.
	im.HLine(0, 16, 296, 2, true)
	// Body rows are the anchor and one below, remapped to physical
	// columns 16..17 over the full panel height.
	for y := 0; y < Height; y += 59 {
		if im.At(16, y) != Black || im.At(17, y) != Black {
			t.Fatalf("stroke missing at physical y=%d", y)
		}
		if im.At(18, y) != White {
			t.Fatalf("stroke too thick at physical y=%d", y)
		}
	}
	// The dirty extent widens one column above the anchor.
	want := Box{X0: 15, Y0: 0, X1: 17, Y1: Height - 1}
	if got := im.Dirty(); got != want {
		t.Errorf("dirty = %v, want %v", got, want)
	}
}

func TestHLineOffSurface(t *testing.T) {
	im := New(Reversed, nil)
	im.HLine(0, -1, 100, 1, true)
	im.HLine(0, Width, 100, 1, true)
	if !im.Dirty().Empty() {
		t.Errorf("off-surface anchor drew: dirty = %v", im.Dirty())
	}
}

func TestVLine(t *testing.T) {
	im := New(Reversed, nil)
	im.VLine(5, 10, 20, 1, true)
	// Stroke body is logical column 5, rows 10..30; column 6 stays white.
	body := im.remapBox(5, 10, 5, 30)
	side := im.remapBox(6, 10, 6, 30)
	for y := body.Y0; y <= body.Y1; y++ {
		if im.At(body.X0, y) != Black {
			t.Fatalf("stroke missing at physical (%d,%d)", body.X0, y)
		}
	}
	if im.At(side.X0, side.Y0) != White {
		t.Error("stroke leaked past its column")
	}
	// The dirty extent widens one column past the anchor.
	want := im.remapBox(5, 10, 6, 30)
	if got := im.Dirty(); got != want {
		t.Errorf("dirty = %v, want %v", got, want)
	}
}

func TestBuildEmpty(t *testing.T) {
	im := New(Reversed, nil)
	if data, _, ok := im.Build(); ok || data != nil {
		t.Errorf("Build on clean canvas = (%v, ok=%v), want no-op", data, ok)
	}
	// A draw followed by a reset is clean again.
	im.Rect(0, 0, 10, 10, true)
	im.ResetDirty()
	if _, _, ok := im.Build(); ok {
		t.Error("Build after reset should be a no-op")
	}
}

func TestBuildAlignment(t *testing.T) {
	tests := []struct {
		name           string
		x1, y1, x2, y2 int // logical rect to draw
	}{
		{"single pixel", 10, 10, 10, 10},
		{"unaligned band", 3, 1, 40, 9},
		{"right edge", 290, 120, 295, 127},
		{"full surface", 0, 0, 295, 127},
		{"byte boundary", 8, 16, 15, 23},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, orient := range []Orientation{Landscape, Reversed} {
				im := New(orient, nil)
				im.Rect(tt.x1, tt.y1, tt.x2, tt.y2, true)
				data, area, ok := im.Build()
				if !ok {
					t.Fatal("Build reported a clean canvas after a draw")
				}
				if area.X0%8 != 0 {
					t.Errorf("%v: area.X0 = %d, not byte aligned", orient, area.X0)
				}
				if (area.X1+1)%8 != 0 && area.X1 != Width-1 {
					t.Errorf("%v: area.X1 = %d, not end aligned", orient, area.X1)
				}
				dirty := im.Dirty()
				if area.X0 > dirty.X0 || area.X1 < dirty.X1 || area.Y0 != dirty.Y0 || area.Y1 != dirty.Y1 {
					t.Errorf("%v: area %v does not cover dirty %v", orient, area, dirty)
				}
				wantLen := (area.X1 - area.X0 + 1) / 8 * (area.Y1 - area.Y0 + 1)
				if len(data) != wantLen {
					t.Errorf("%v: len(data) = %d, want %d", orient, len(data), wantLen)
				}
			}
		})
	}
}

func TestBuildPacking(t *testing.T) {
	im := New(Reversed, nil)
	im.Clear(false)
	data, _, ok := im.Build()
	if !ok {
		t.Fatal("Build after clear reported clean")
	}
	for i, b := range data {
		if b != 0xFF {
			t.Fatalf("white canvas byte %d = %#x, want 0xFF", i, b)
		}
	}

	im.Clear(true)
	data, _, _ = im.Build()
	for i, b := range data {
		if b != 0x00 {
			t.Fatalf("black canvas byte %d = %#x, want 0x00", i, b)
		}
	}
}

func TestBuildSinglePixelByte(t *testing.T) {
	im := New(Reversed, nil)
	im.Rect(10, 10, 10, 10, true)
	// Physical pixel (10, 285); window aligns to x 8..15, one byte per
	// row, black bit third from the MSB.
	data, area, ok := im.Build()
	if !ok {
		t.Fatal("Build reported clean")
	}
	want := Box{X0: 8, Y0: Height - 1 - 10, X1: 15, Y1: Height - 1 - 10}
	if area != want {
		t.Fatalf("area = %v, want %v", area, want)
	}
	if len(data) != 1 {
		t.Fatalf("len(data) = %d, want 1", len(data))
	}
	if data[0] != 0xDF {
		t.Errorf("packed byte = %#x, want 0xDF", data[0])
	}
}

func TestBlitGeometry(t *testing.T) {
	src := image.NewGray(image.Rect(0, 0, 4, 4))
	tests := []struct {
		name    string
		x, y    int
		wantErr bool
	}{
		{"fits at origin", 0, 0, false},
		{"fits at far corner", 292, 124, false},
		{"past right edge", 293, 0, true},
		{"past bottom edge", 0, 125, true},
		{"negative", -1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, orient := range []Orientation{Landscape, Reversed} {
				im := New(orient, nil)
				err := im.Blit(src, tt.x, tt.y)
				if tt.wantErr {
					if !errors.Is(err, ErrGeometry) {
						t.Errorf("%v: err = %v, want ErrGeometry", orient, err)
					}
				} else if err != nil {
					t.Errorf("%v: err = %v, want nil", orient, err)
				}
			}
		})
	}
}

func TestBlitPixels(t *testing.T) {
	// 2x1: black pixel then white pixel.
	src := image.NewGray(image.Rect(0, 0, 2, 1))
	src.SetGray(0, 0, color.Gray{Y: 0})
	src.SetGray(1, 0, color.Gray{Y: 255})

	im := New(Reversed, nil)
	if err := im.Blit(src, 10, 20); err != nil {
		t.Fatal(err)
	}
	// Logical (10,20) is the black source pixel, (11,20) the white one.
	black := im.remapBox(10, 20, 10, 20)
	white := im.remapBox(11, 20, 11, 20)
	if im.At(black.X0, black.Y0) != Black {
		t.Errorf("black source pixel rendered %#x", im.At(black.X0, black.Y0))
	}
	if im.At(white.X0, white.Y0) != White {
		t.Errorf("white source pixel rendered %#x", im.At(white.X0, white.Y0))
	}
	want := Box{
		X0: black.X0, Y0: white.Y0,
		X1: black.X1, Y1: black.Y1,
	}
	if got := im.Dirty(); got != want {
		t.Errorf("dirty = %v, want %v", got, want)
	}
}

func TestTextMarksDirty(t *testing.T) {
	fonts, err := font.Load("")
	if err != nil {
		t.Fatal(err)
	}
	for _, orient := range []Orientation{Landscape, Reversed} {
		im := New(orient, fonts)
		if err := im.Text("Ij", 10, 10, 16, true); err != nil {
			t.Fatal(err)
		}
		dirty := im.Dirty()
		if dirty.Empty() {
			t.Fatalf("%v: text drew nothing", orient)
		}
		// Some ink must have landed inside the dirty box.
		found := false
		for y := dirty.Y0; y <= dirty.Y1 && !found; y++ {
			for x := dirty.X0; x <= dirty.X1; x++ {
				if im.At(x, y) == Black {
					found = true
					break
				}
			}
		}
		if !found {
			t.Errorf("%v: no ink inside dirty box %v", orient, dirty)
		}
	}
}

func TestTextInverted(t *testing.T) {
	fonts, err := font.Load("")
	if err != nil {
		t.Fatal(err)
	}
	im := New(Reversed, fonts)
	if err := im.Text("Ij", 10, 10, 16, false); err != nil {
		t.Fatal(err)
	}
	// Inverted ink paints the glyph background black.
	dirty := im.Dirty()
	blacks := 0
	total := 0
	for y := dirty.Y0; y <= dirty.Y1; y++ {
		for x := dirty.X0; x <= dirty.X1; x++ {
			total++
			if im.At(x, y) == Black {
				blacks++
			}
		}
	}
	if blacks*2 < total {
		t.Errorf("inverted glyph box is mostly white: %d/%d black", blacks, total)
	}
}

func TestTextClipsAtEdges(t *testing.T) {
	fonts, err := font.Load("")
	if err != nil {
		t.Fatal(err)
	}
	im := New(Reversed, fonts)
	// Partially off the right edge and below the bottom: must not panic,
	// and whatever lands on the surface keeps the dirty region in bounds.
	if err := im.Text("clip", 290, 120, 30, true); err != nil {
		t.Fatal(err)
	}
	d := im.Dirty()
	if d.Empty() {
		t.Skip("glyph fell entirely off the surface")
	}
	if d.X0 < 0 || d.Y0 < 0 || d.X1 > Width-1 || d.Y1 > Height-1 {
		t.Errorf("dirty %v escapes panel bounds", d)
	}
}
