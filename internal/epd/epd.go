// Package epd drives the Waveshare 2.9" 128x296 monochrome e-paper over
// SPI+GPIO through periph.io. A Dev is one protocol session: the refresh
// mode (full vs. partial waveform) is programmed at Open and stays fixed
// until Close; switching modes means closing and reopening the session.
package epd

import (
	"time"

	"epdradio/internal/canvas"
	applog "epdradio/internal/log"
)

// Dev is an open controller session.
type Dev struct {
	tr      transport
	partial bool
}

// Open opens the transport, hardware-resets the panel and programs the
// fixed register sequence, selecting the partial or full refresh waveform
// for the lifetime of the session.
func Open(o *Opts, partial bool) (*Dev, error) {
	tr, err := openPort(o)
	if err != nil {
		return nil, err
	}
	d := &Dev{tr: tr, partial: partial}
	if err := d.init(); err != nil {
		_ = tr.close()
		return nil, err
	}
	applog.Debug("epd session open", "partial", partial)
	return d, nil
}

// newDev wires a Dev over an arbitrary transport without touching
// registers. Tests use it with a recording fake.
func newDev(tr transport, partial bool) *Dev {
	return &Dev{tr: tr, partial: partial}
}

// init runs the register-programming sequence from the panel reference:
// gate count, booster tuning, VCOM bias, timing tuning, increment-X/Y data
// entry, then the waveform table.
func (d *Dev) init() error {
	if err := d.tr.reset(); err != nil {
		return err
	}
	if err := d.command(driverOutputControl,
		byte((canvas.Height-1)&0xFF), byte((canvas.Height-1)>>8), 0x00); err != nil {
		return err
	}
	if err := d.command(boosterSoftStartControl, 0xD7, 0xD6, 0x9D); err != nil {
		return err
	}
	if err := d.command(writeVCOMRegister, 0xA8); err != nil {
		return err
	}
	if err := d.command(setDummyLinePeriod, 0x1A); err != nil {
		return err
	}
	if err := d.command(setGateTime, 0x08); err != nil {
		return err
	}
	if err := d.command(dataEntryModeSetting, 0x03); err != nil {
		return err
	}
	lut := lutFullUpdate
	if d.partial {
		lut = lutPartialUpdate
	}
	return d.command(writeLUTRegister, lut[:]...)
}

// IsPartial reports the session's refresh mode.
func (d *Dev) IsPartial() bool {
	return d.partial
}

// Reset pulses the hardware reset line. It wakes the controller from deep
// sleep without reprogramming registers.
func (d *Dev) Reset() error {
	return d.tr.reset()
}

// Sleep puts the controller into deep sleep and waits for it to settle.
// Only Reset followed by a fresh Open resumes operation; any other call on
// a slept panel is undefined.
func (d *Dev) Sleep() error {
	if err := d.tr.writeCommand(deepSleepMode); err != nil {
		return err
	}
	d.tr.waitReady()
	return nil
}

// WaitReady blocks until the busy line clears and returns the elapsed
// wait.
func (d *Dev) WaitReady() time.Duration {
	return d.tr.waitReady()
}

// Close releases the transport. The panel keeps its image.
func (d *Dev) Close() error {
	return d.tr.close()
}

// command sends an opcode followed by its payload, if any.
func (d *Dev) command(c command, data ...byte) error {
	if err := d.tr.writeCommand(c); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return d.tr.writeData(data)
}

// setWindow programs the RAM address window. X is addressed in 8-pixel
// bytes, so the bounds arrive right-shifted; Y is a pair of little-endian
// 16-bit values.
func (d *Dev) setWindow(a canvas.Box) error {
	if err := d.command(setRAMXAddressStartEndPosition,
		byte(a.X0>>3), byte(a.X1>>3)); err != nil {
		return err
	}
	return d.command(setRAMYAddressStartEndPosition,
		byte(a.Y0&0xFF), byte(a.Y0>>8), byte(a.Y1&0xFF), byte(a.Y1>>8))
}

// setCursor programs the RAM write position and waits for the controller
// to accept it.
func (d *Dev) setCursor(x, y int) error {
	if err := d.command(setRAMXAddressCounter, byte(x>>3)); err != nil {
		return err
	}
	if err := d.command(setRAMYAddressCounter, byte(y&0xFF), byte(y>>8)); err != nil {
		return err
	}
	d.tr.waitReady()
	return nil
}

// sendFrame streams packed rows into the addressed window.
func (d *Dev) sendFrame(data []byte, a canvas.Box) error {
	if err := d.setWindow(a); err != nil {
		return err
	}
	if err := d.setCursor(a.X0, a.Y0); err != nil {
		return err
	}
	if err := d.tr.writeCommand(writeRAM); err != nil {
		return err
	}
	return d.tr.writeData(data)
}

// turnOn triggers the panel update from RAM and blocks until it
// completes. This is the point the image becomes visible.
func (d *Dev) turnOn() error {
	if err := d.command(displayUpdateControl2, 0xC4); err != nil {
		return err
	}
	if err := d.tr.writeCommand(masterActivation); err != nil {
		return err
	}
	if err := d.tr.writeCommand(terminateFrameReadWrite); err != nil {
		return err
	}
	d.tr.waitReady()
	return nil
}

// Refresh flushes the canvas dirty region to the panel. With full set, the
// whole canvas is retransmitted regardless of the dirty state. An empty
// dirty region is a no-op with zero bus traffic.
//
// In a partial session the packed bytes are transmitted twice to the same
// window: the controller keeps two RAM planes and the partial waveform
// derives pixel deltas between them, so both planes must carry the new
// frame or later partial updates ghost. Full sessions transmit once.
func (d *Dev) Refresh(img *canvas.Image, full bool) error {
	if full {
		img.MarkAllDirty()
	}
	data, area, ok := img.Build()
	if !ok {
		applog.Debug("refresh skipped, canvas clean")
		return nil
	}

	if err := d.sendFrame(data, area); err != nil {
		return err
	}
	if err := d.turnOn(); err != nil {
		return err
	}
	if d.partial {
		if err := d.sendFrame(data, area); err != nil {
			return err
		}
	}
	img.ResetDirty()
	return nil
}
