// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package serial implements an asynchronous, full-duplex, 8-N-1 UART-style
// link as a software state machine driven by toggling a TX line and
// sampling an RX line against a periodic tick.
//
// Unlike i2c and spi, serial assumes one tick per bit, not a half-period
// tick: the tick source's cadence is configured by the caller to equal the
// desired baud rate. Framing is fixed at one low start bit, 8 data bits
// least-significant-bit first, one high stop bit, no parity; the stop bit
// is never checked and there is no framing-error or parity detection.
package serial

import "periph.io/x/bitbang/conn"

// Engine is a UART-style transmitter/receiver bit-banged over TX/RX using
// TICK as the bit clock. It holds no state between frames; TX and RX are
// expected idle-high at rest.
//
// Engine is not safe for concurrent use; it exclusively owns tx, rx and
// tick for its lifetime until Disassemble is called.
type Engine struct {
	tx   conn.OutputLine
	rx   conn.InputLine
	tick conn.TickSource
}

// New returns a UART engine transmitting on tx and receiving on rx, paced by
// tick. It does not touch tx; the platform is expected to have configured it
// idle-high already.
func New(tx conn.OutputLine, rx conn.InputLine, tick conn.TickSource) *Engine {
	return &Engine{tx: tx, rx: rx, tick: tick}
}

// Write transmits one 8-N-1 frame: a low start bit, the 8 data bits of b
// least-significant-bit first, then a high stop bit.
func (e *Engine) Write(b byte) error {
	if err := conn.Fault("serial_write:start", e.tx.DriveLow()); err != nil {
		return err
	}
	e.wait()
	data := b
	for i := 0; i < 8; i++ {
		var err error
		if data&1 == 1 {
			err = e.tx.DriveHigh()
		} else {
			err = e.tx.DriveLow()
		}
		if err := conn.Fault("serial_write:bit", err); err != nil {
			return err
		}
		data >>= 1
		e.wait()
	}
	if err := conn.Fault("serial_write:stop", e.tx.DriveHigh()); err != nil {
		return err
	}
	e.wait()
	return nil
}

// Read blocks until a start bit is observed on rx, then reads one 8-N-1
// frame and returns its 8 data bits. There is no timeout; a line that never
// drops low blocks forever.
func (e *Engine) Read() (byte, error) {
	for {
		high, err := e.rx.ReadHigh()
		if err != nil {
			return 0, conn.Fault("serial_read:poll_start", err)
		}
		if !high {
			break
		}
	}
	// Move past the start bit into bit 0.
	e.wait()
	var b byte
	for i := 0; i < 8; i++ {
		// Bits arrive least-significant-first (mirroring Write), so each
		// sampled bit is shifted into the MSB and walked down to its
		// final position by the remaining iterations' shifts.
		b >>= 1
		high, err := e.rx.ReadHigh()
		if err != nil {
			return 0, conn.Fault("serial_read:bit", err)
		}
		if high {
			b |= 0x80
		}
		e.wait()
	}
	// Stop bit: not checked, per the protocol variant's known weakness.
	e.wait()
	return b, nil
}

// Flush is a no-op; it exists only to satisfy a generic serial-write
// interface expecting one.
func (e *Engine) Flush() error {
	return nil
}

// Disassemble releases tx, rx and tick back to the caller, relinquishing
// the engine's ownership of them. The engine must not be used afterward.
func (e *Engine) Disassemble() (conn.OutputLine, conn.InputLine, conn.TickSource) {
	tx, rx, tick := e.tx, e.rx, e.tick
	e.tx, e.rx, e.tick = nil, nil, nil
	return tx, rx, tick
}

// wait awaits one tick, discarding any timer fault.
//
// Timer errors are swallowed here by design, trading diagnosability for
// throughput on the bit-timing fast path; see i2c.Engine for the contrasting
// choice, where a timer fault is unambiguous and worth the propagation cost.
func (e *Engine) wait() {
	_ = e.tick.AwaitTick()
}
