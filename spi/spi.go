// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package spi implements a full-duplex SPI master as a software state
// machine driven by toggling SCLK/MOSI and sampling MISO against a periodic
// tick.
//
// The engine assumes a half-period tick: the tick source's cadence is
// configured by the caller to be twice the desired SCLK frequency. All four
// (CPOL, CPHA) clock modes are supported; chip-select is never touched by
// the engine, it is the caller's concern.
package spi

import (
	"errors"

	"periph.io/x/bitbang/conn"
)

// Mode selects the SPI clock polarity and phase.
type Mode int

// The four standard SPI clock modes, named by the (CPOL, CPHA) pair they
// encode.
const (
	Mode0 Mode = iota // CPOL=0 (idle low),  CPHA=0 (sample leading edge)
	Mode1             // CPOL=0 (idle low),  CPHA=1 (sample trailing edge)
	Mode2             // CPOL=1 (idle high), CPHA=0 (sample leading edge)
	Mode3             // CPOL=1 (idle high), CPHA=1 (sample trailing edge)
)

func (m Mode) idleHigh() bool {
	return m == Mode2 || m == Mode3
}

func (m Mode) sampleTrailing() bool {
	return m == Mode1 || m == Mode3
}

// BitOrder selects whether Send shifts the most- or least-significant bit
// of a byte out first.
type BitOrder int

const (
	// MSBFirst shifts bit 7 out first. This is the default.
	MSBFirst BitOrder = iota
	// LSBFirst shifts bit 0 out first.
	LSBFirst
)

// NoData is returned by Read before any Send has completed.
var NoData = errors.New("spi: no data received yet")

// Engine is a full-duplex SPI master bit-banged over SCLK/MOSI/MISO using
// TICK as the clock generator. The mode is fixed at construction; bit order
// may be changed between sends with SetBitOrder.
//
// Engine is not safe for concurrent use; it exclusively owns miso, mosi,
// sclk and tick for its lifetime.
type Engine struct {
	miso conn.InputLine
	mosi conn.OutputLine
	sclk conn.OutputLine
	tick conn.TickSource

	mode     Mode
	order    BitOrder
	lastByte byte
	hasData  bool
}

// New returns a SPI master for the given mode and lines, driving SCLK to its
// CPOL-dictated idle level. Bit order defaults to MSBFirst.
func New(sclk, mosi conn.OutputLine, miso conn.InputLine, tick conn.TickSource, mode Mode) (*Engine, error) {
	e := &Engine{miso: miso, mosi: mosi, sclk: sclk, tick: tick, mode: mode, order: MSBFirst}
	var err error
	if mode.idleHigh() {
		err = sclk.DriveHigh()
	} else {
		err = sclk.DriveLow()
	}
	if err := conn.Fault("spi_new:sclk_idle", err); err != nil {
		return nil, err
	}
	return e, nil
}

// SetBitOrder changes the bit order used by subsequent Send calls.
func (e *Engine) SetBitOrder(order BitOrder) {
	e.order = order
}

// Send shifts b out MOSI while simultaneously shifting a byte in from MISO,
// one bit per clock edge pair per e.mode. The received byte is latched and
// becomes available from Read regardless of the configured bit order: it is
// always assembled MSB-first (shift-left-and-or), matching the source
// behavior this engine preserves.
func (e *Engine) Send(b byte) error {
	var in byte
	for bit := 0; bit < 8; bit++ {
		var outBit bool
		if e.order == MSBFirst {
			outBit = b&(1<<uint(7-bit)) != 0
		} else {
			outBit = b&(1<<uint(bit)) != 0
		}
		var err error
		if outBit {
			err = e.mosi.DriveHigh()
		} else {
			err = e.mosi.DriveLow()
		}
		if err := conn.Fault("spi_send:mosi", err); err != nil {
			return err
		}
		sample, err := e.clockBit()
		if err != nil {
			return err
		}
		in = (in << 1) | b2u(sample)
	}
	e.lastByte = in
	e.hasData = true
	return nil
}

// Read returns the byte latched by the most recent Send, or NoData if no
// Send has completed yet.
func (e *Engine) Read() (byte, error) {
	if !e.hasData {
		return 0, NoData
	}
	return e.lastByte, nil
}

// clockBit drives one SCLK edge pair for the configured mode, sampling MISO
// at the mode-designated edge, and returns the sampled level.
func (e *Engine) clockBit() (bool, error) {
	switch {
	case !e.mode.sampleTrailing() && !e.mode.idleHigh(): // Mode 0
		e.wait()
		if err := conn.Fault("spi_clock:sclk_high", e.sclk.DriveHigh()); err != nil {
			return false, err
		}
		sample, err := e.sample()
		if err != nil {
			return false, err
		}
		e.wait()
		return sample, conn.Fault("spi_clock:sclk_low", e.sclk.DriveLow())
	case e.mode.sampleTrailing() && !e.mode.idleHigh(): // Mode 1
		if err := conn.Fault("spi_clock:sclk_high", e.sclk.DriveHigh()); err != nil {
			return false, err
		}
		e.wait()
		sample, err := e.sample()
		if err != nil {
			return false, err
		}
		if err := conn.Fault("spi_clock:sclk_low", e.sclk.DriveLow()); err != nil {
			return false, err
		}
		e.wait()
		return sample, nil
	case !e.mode.sampleTrailing() && e.mode.idleHigh(): // Mode 2
		e.wait()
		if err := conn.Fault("spi_clock:sclk_low", e.sclk.DriveLow()); err != nil {
			return false, err
		}
		sample, err := e.sample()
		if err != nil {
			return false, err
		}
		e.wait()
		return sample, conn.Fault("spi_clock:sclk_high", e.sclk.DriveHigh())
	default: // Mode 3
		if err := conn.Fault("spi_clock:sclk_low", e.sclk.DriveLow()); err != nil {
			return false, err
		}
		e.wait()
		sample, err := e.sample()
		if err != nil {
			return false, err
		}
		if err := conn.Fault("spi_clock:sclk_high", e.sclk.DriveHigh()); err != nil {
			return false, err
		}
		e.wait()
		return sample, nil
	}
}

func (e *Engine) sample() (bool, error) {
	high, err := e.miso.ReadHigh()
	if err != nil {
		return false, conn.Fault("spi_clock:miso_read", err)
	}
	return high, nil
}

// wait awaits one tick, discarding any timer fault; see serial.Engine.wait
// for the same trade-off on this fast path.
func (e *Engine) wait() {
	_ = e.tick.AwaitTick()
}

func b2u(b bool) byte {
	if b {
		return 1
	}
	return 0
}
