package epd

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
)

// ErrPortUnavailable reports that the transport could not be opened. No
// register traffic has happened when it is returned.
var ErrPortUnavailable = errors.New("epd: port unavailable")

// dataChunk caps a single SPI transfer. The spidev driver rejects
// exchanges larger than one small MMU page.
const dataChunk = 4096

// Opts selects the transport explicitly; nothing is sniffed from the
// environment at runtime.
type Opts struct {
	// Port is the spireg port name; empty picks the first registered
	// port.
	Port string
	// Hz is the bus clock. Zero falls back to 3MHz, the rate the panel is
	// specified for on short wiring.
	Hz int64

	// DC, Reset and Busy are gpioreg pin names.
	DC    string
	Reset string
	Busy  string

	// ResetSettle is the delay after each phase of the reset pulse. Zero
	// falls back to 20ms.
	ResetSettle time.Duration
	// BusyPoll is the busy-line polling interval. Zero falls back to
	// 50ms.
	BusyPoll time.Duration
}

// DefaultOpts matches the reference appliance wiring on a Raspberry Pi.
func DefaultOpts() *Opts {
	return &Opts{
		Port:        "",
		Hz:          3_000_000,
		DC:          "GPIO5",
		Reset:       "GPIO6",
		Busy:        "GPIO12",
		ResetSettle: 20 * time.Millisecond,
		BusyPoll:    50 * time.Millisecond,
	}
}

func (o *Opts) normalize() {
	if o.Hz <= 0 {
		o.Hz = 3_000_000
	}
	if o.DC == "" {
		o.DC = "GPIO5"
	}
	if o.Reset == "" {
		o.Reset = "GPIO6"
	}
	if o.Busy == "" {
		o.Busy = "GPIO12"
	}
	if o.ResetSettle <= 0 {
		o.ResetSettle = 20 * time.Millisecond
	}
	if o.BusyPoll <= 0 {
		o.BusyPoll = 50 * time.Millisecond
	}
}

// transport is the bus surface the controller drives. The concrete
// implementation talks SPI+GPIO through periph; tests substitute a
// recording fake.
type transport interface {
	reset() error
	writeCommand(c command) error
	writeData(p []byte) error
	waitReady() time.Duration
	close() error
}

// spiPort is the periph-backed transport.
type spiPort struct {
	port   spi.PortCloser
	conn   spi.Conn
	dc     gpio.PinOut
	rst    gpio.PinOut
	busy   gpio.PinIn
	settle time.Duration
	poll   time.Duration
}

// openPort resolves pins and opens the SPI port. Every failure wraps
// ErrPortUnavailable so callers can tell "no hardware" apart from protocol
// errors.
func openPort(o *Opts) (*spiPort, error) {
	o.normalize()

	dc := gpioreg.ByName(o.DC)
	if dc == nil {
		return nil, fmt.Errorf("%w: no pin %q", ErrPortUnavailable, o.DC)
	}
	rst := gpioreg.ByName(o.Reset)
	if rst == nil {
		return nil, fmt.Errorf("%w: no pin %q", ErrPortUnavailable, o.Reset)
	}
	busy := gpioreg.ByName(o.Busy)
	if busy == nil {
		return nil, fmt.Errorf("%w: no pin %q", ErrPortUnavailable, o.Busy)
	}

	if err := dc.Out(gpio.Low); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, o.DC, err)
	}
	if err := rst.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, o.Reset, err)
	}
	if err := busy.In(gpio.Float, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPortUnavailable, o.Busy, err)
	}

	port, err := spireg.Open(o.Port)
	if err != nil {
		return nil, fmt.Errorf("%w: spi %q: %v", ErrPortUnavailable, o.Port, err)
	}
	conn, err := port.Connect(physic.Frequency(o.Hz)*physic.Hertz, spi.Mode0, 8)
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w: spi connect: %v", ErrPortUnavailable, err)
	}

	return &spiPort{
		port:   port,
		conn:   conn,
		dc:     dc,
		rst:    rst,
		busy:   busy,
		settle: o.ResetSettle,
		poll:   o.BusyPoll,
	}, nil
}

func (p *spiPort) close() error {
	return p.port.Close()
}

// reset pulses the hardware reset line: high, low, high, with one settle
// delay after each phase.
func (p *spiPort) reset() error {
	for _, lvl := range []gpio.Level{gpio.High, gpio.Low, gpio.High} {
		if err := p.rst.Out(lvl); err != nil {
			return err
		}
		time.Sleep(p.settle)
	}
	return nil
}

func (p *spiPort) writeCommand(c command) error {
	if err := p.dc.Out(gpio.Low); err != nil {
		return err
	}
	return p.conn.Tx([]byte{byte(c)}, nil)
}

func (p *spiPort) writeData(b []byte) error {
	if err := p.dc.Out(gpio.High); err != nil {
		return err
	}
	for len(b) > 0 {
		n := len(b)
		if n > dataChunk {
			n = dataChunk
		}
		if err := p.conn.Tx(b[:n], nil); err != nil {
			return err
		}
		b = b[n:]
	}
	return nil
}

// waitReady polls the busy line until it drops and returns the time spent
// waiting. There is no timeout: interrupting an in-progress panel update
// corrupts it, so a stuck line blocks the caller.
func (p *spiPort) waitReady() time.Duration {
	start := time.Now()
	for p.busy.Read() == gpio.High {
		time.Sleep(p.poll)
	}
	return time.Since(start)
}
