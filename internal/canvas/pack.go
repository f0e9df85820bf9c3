package canvas

// Build packs the dirty region into transfer bytes for the panel.
//
// The X extent is aligned outward to 8-pixel byte boundaries, because the
// controller addresses its RAM in bytes of 8 horizontal pixels. Each row of
// the aligned window packs MSB-first, one bit per pixel, white carrying the
// one bit. ok is false when the dirty region is empty, in which case
// nothing must be transmitted.
//
// Build does not reset the dirty region; the refresh path does that after
// the panel accepted the frame.
func (im *Image) Build() (data []byte, area Box, ok bool) {
	d := im.dirty
	if d.Empty() {
		return nil, Box{}, false
	}

	x0 := d.X0 &^ 7
	x1 := ((d.X1 + 8) &^ 7) - 1
	if x1 > Width-1 {
		x1 = Width - 1
	}
	area = Box{X0: x0, Y0: d.Y0, X1: x1, Y1: d.Y1}

	stride := (x1 - x0 + 1) / 8
	data = make([]byte, 0, stride*(d.Y1-d.Y0+1))
	for y := d.Y0; y <= d.Y1; y++ {
		row := im.gray.Pix[y*im.gray.Stride:]
		for x := x0; x <= x1; x += 8 {
			var b byte
			for bit := 0; bit < 8; bit++ {
				b = b<<1 | row[x+bit]&1
			}
			data = append(data, b)
		}
	}
	return data, area, true
}
