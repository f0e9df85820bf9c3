package knob

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"

	applog "epdradio/internal/log"
)

// edgeTimeout bounds each edge wait so watcher goroutines notice context
// cancellation.
const edgeTimeout = 500 * time.Millisecond

// Opts names the encoder pins. All inputs are pulled up and read
// active-low: contacts close to ground, so the idle detent samples as 00.
type Opts struct {
	A      string
	B      string
	Button string

	// Debounce is the push-switch debounce interval. Zero falls back to
	// 200ms. The rotation channels are debounced by the state machine and
	// take no interval.
	Debounce time.Duration
}

// Watch configures the encoder pins and starts one watcher goroutine per
// input. Decoded events are handed to emit, which is called from watcher
// goroutines and must not block. Watch returns once the pins are
// configured; the goroutines stop when ctx is cancelled.
func Watch(ctx context.Context, o *Opts, emit func(Event)) error {
	debounce := o.Debounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}

	pinA, err := inputPin(o.A, gpio.BothEdges)
	if err != nil {
		return err
	}
	pinB, err := inputPin(o.B, gpio.BothEdges)
	if err != nil {
		return err
	}
	btn, err := inputPin(o.Button, gpio.FallingEdge)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	dec := &Decoder{}
	sample := func() {
		mu.Lock()
		s := level(pinA)<<1 | level(pinB)
		ev := dec.Feed(s)
		mu.Unlock()
		if ev != None {
			emit(ev)
		}
	}

	go watchEdges(ctx, pinA, sample)
	go watchEdges(ctx, pinB, sample)
	go watchPress(ctx, btn, debounce, func() {
		// The switch may have bounced open again by the time the edge is
		// serviced; report the level actually seen.
		if btn.Read() == gpio.Low {
			emit(ButtonDown)
		} else {
			emit(ButtonUp)
		}
	})

	applog.Info("knob watching", "a", o.A, "b", o.B, "button", o.Button)
	return nil
}

// WatchButton watches one auxiliary active-low push button and calls
// pressed on each debounced falling edge.
func WatchButton(ctx context.Context, name string, debounce time.Duration, pressed func()) error {
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	pin, err := inputPin(name, gpio.FallingEdge)
	if err != nil {
		return err
	}
	go watchPress(ctx, pin, debounce, pressed)
	applog.Info("button watching", "pin", name)
	return nil
}

func inputPin(name string, edge gpio.Edge) (gpio.PinIO, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("knob: no pin %q", name)
	}
	if err := pin.In(gpio.PullUp, edge); err != nil {
		return nil, fmt.Errorf("knob: %s: %w", name, err)
	}
	return pin, nil
}

// level reads a pulled-up pin as an active-low bit.
func level(pin gpio.PinIO) byte {
	if pin.Read() == gpio.Low {
		return 1
	}
	return 0
}

func watchEdges(ctx context.Context, pin gpio.PinIO, fire func()) {
	for ctx.Err() == nil {
		if pin.WaitForEdge(edgeTimeout) {
			fire()
		}
	}
}

func watchPress(ctx context.Context, pin gpio.PinIO, debounce time.Duration, fire func()) {
	var last time.Time
	for ctx.Err() == nil {
		if !pin.WaitForEdge(edgeTimeout) {
			continue
		}
		now := time.Now()
		if now.Sub(last) < debounce {
			continue
		}
		last = now
		fire()
	}
}
