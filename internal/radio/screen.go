// Package radio is the station selector UI: a Screen that lays out the
// title bar, station list and clock on the panel, and an Engine that turns
// encoder and button events into selection changes.
package radio

import (
	"context"
	"time"

	"epdradio/internal/canvas"
	"epdradio/internal/epd"
	applog "epdradio/internal/log"
)

// Font sizes in points for the three text roles.
const (
	titlePoint  = 16
	listPoint   = 30
	fullPoint   = 72
	chronoPoint = 24
)

const titleText = "Internet Radio"

// Align selects horizontal text placement within the full panel width.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Screen owns the panel session and the canvas. All methods draw and then
// flush, so callers never touch the refresh path directly. Not safe for
// concurrent use; the engine loop is the only caller.
type Screen struct {
	opts *epd.Opts
	img  *canvas.Image
	dev  *epd.Dev

	titleH int
	listH  int
	// offset is the top of the station list band, below the title
	// underline.
	offset int
}

// NewScreen opens a partial-refresh session on the panel. Font metrics are
// resolved first so a bad font surfaces before any panel I/O.
func NewScreen(o *epd.Opts, img *canvas.Image) (*Screen, error) {
	fonts := img.Fonts()
	titleH, err := fonts.Height(titlePoint)
	if err != nil {
		return nil, err
	}
	listH, err := fonts.Height(listPoint)
	if err != nil {
		return nil, err
	}
	dev, err := epd.Open(o, true)
	if err != nil {
		return nil, err
	}
	return &Screen{
		opts:   o,
		img:    img,
		dev:    dev,
		titleH: titleH,
		listH:  listH,
		offset: titleH + 2,
	}, nil
}

// Initialize purges ghosting with a black then white flush and draws the
// title bar.
func (s *Screen) Initialize() error {
	s.img.Clear(true)
	if err := s.dev.Refresh(s.img, false); err != nil {
		return err
	}
	s.img.Clear(false)
	if err := s.dev.Refresh(s.img, false); err != nil {
		return err
	}
	return s.SetTitle(titleText, AlignLeft)
}

// SetTitle redraws the title bar: white band, text, 2 px underline.
func (s *Screen) SetTitle(text string, align Align) error {
	lw := s.img.Bounds().Dx()
	s.img.Rect(0, 0, lw-1, s.titleH, false)
	x, err := s.alignX(text, titlePoint, align)
	if err != nil {
		return err
	}
	if err := s.img.Text(text, x, 0, titlePoint, true); err != nil {
		return err
	}
	s.img.HLine(0, s.titleH, lw, 2, true)
	return s.dev.Refresh(s.img, false)
}

// ShowClock paints the wall time into the title bar. The trailing space
// keeps the glyphs off the panel edge.
func (s *Screen) ShowClock(t time.Time) error {
	return s.SetTitle(t.Format("15:04 "), AlignRight)
}

// ShowStation shows the playing station name, centered, at the same band
// the selector's middle row uses so leaving edit mode does not move the
// text. clearAll wipes everything below the title bar first; otherwise
// only the name band is cleared.
func (s *Screen) ShowStation(name string, clearAll bool) error {
	lw := s.img.Bounds().Dx()
	lh := s.img.Bounds().Dy()
	top := s.offset + s.listH
	if clearAll {
		s.img.Rect(0, s.offset, lw-1, lh-1, false)
	} else {
		s.img.Rect(0, top, lw-1, top+s.listH, false)
	}
	x, err := s.alignX(name, listPoint, AlignCenter)
	if err != nil {
		return err
	}
	if err := s.img.Text(name, x, top, listPoint, true); err != nil {
		return err
	}
	return s.dev.Refresh(s.img, false)
}

// ShowSelector draws the three-row candidate window with the middle row
// ink-inverted. Empty strings leave their row blank.
func (s *Screen) ShowSelector(prev, cur, next string) error {
	lw := s.img.Bounds().Dx()
	lh := s.img.Bounds().Dy()
	s.img.Rect(0, s.offset, lw-1, lh-1, false)
	y := s.offset
	for i, name := range [3]string{prev, cur, next} {
		if name != "" {
			x, err := s.alignX(name, listPoint, AlignCenter)
			if err != nil {
				return err
			}
			if err := s.img.Text(name, x, y, listPoint, i != 1); err != nil {
				return err
			}
		}
		y += s.listH
	}
	return s.dev.Refresh(s.img, false)
}

// Maintain runs the anti-ghosting pass: the partial session is torn down,
// a full-refresh session purges the panel black then white, and a fresh
// partial session takes over with the title redrawn. The caller repaints
// the body.
func (s *Screen) Maintain() error {
	applog.Info("maintenance refresh")
	if err := s.dev.Close(); err != nil {
		return err
	}
	full, err := epd.Open(s.opts, false)
	if err != nil {
		return err
	}
	s.img.Clear(true)
	err = full.Refresh(s.img, true)
	if err == nil {
		s.img.Clear(false)
		err = full.Refresh(s.img, true)
	}
	if cerr := full.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	part, err := epd.Open(s.opts, true)
	if err != nil {
		return err
	}
	s.dev = part
	return s.SetTitle(titleText, AlignLeft)
}

// Wallclock renders the current HH:MM once at 72 pt and returns.
func (s *Screen) Wallclock() error {
	return s.testClock(context.Background(), true)
}

// Chrono renders HH:MM:SS.mmm in a tight partial-refresh loop until the
// context is cancelled. It exists to eyeball refresh latency and ghosting
// on real hardware.
func (s *Screen) Chrono(ctx context.Context) error {
	return s.testClock(ctx, false)
}

func (s *Screen) testClock(ctx context.Context, big bool) error {
	point := chronoPoint
	if big {
		point = fullPoint
	}
	fh, err := s.img.Fonts().Height(point)
	if err != nil {
		return err
	}
	lh := s.img.Bounds().Dy()
	yoff := (lh + fh/2) / 2
	s.img.Clear(false)
	if err := s.dev.Refresh(s.img, false); err != nil {
		return err
	}
	for {
		now := time.Now()
		var text string
		if big {
			text = now.Format("15:04")
		} else {
			text = now.Format("15:04:05.000")
		}
		if err := s.img.Text(text, 45, yoff, point, true); err != nil {
			return err
		}
		if err := s.dev.Refresh(s.img, false); err != nil {
			return err
		}
		if big {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

// Close deep-sleeps the panel and releases the port.
func (s *Screen) Close() error {
	err := s.dev.Sleep()
	if cerr := s.dev.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Screen) alignX(text string, point int, align Align) (int, error) {
	lw := s.img.Bounds().Dx()
	tw, err := s.img.Fonts().Width(point, text)
	if err != nil {
		return 0, err
	}
	switch align {
	case AlignCenter:
		if x := (lw - tw) / 2; x > 0 {
			return x, nil
		}
		return 0, nil
	case AlignRight:
		return lw - tw, nil
	default:
		return 0, nil
	}
}
