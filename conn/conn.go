// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package conn defines the minimal hardware capability a platform must
// provide for the protocol engines in periph.io/x/bitbang to synthesize a
// serial bus in software.
//
// An engine never talks to silicon directly. It is handed a small bundle of
// these interfaces and composes its wire protocol entirely out of
// DriveHigh/DriveLow/ReadHigh calls interleaved with AwaitTick calls. Any
// platform able to toggle a digital pin and deliver a periodic tick can host
// an engine; see host/linuxgpio and host/ftdibb for two such platforms.
package conn

import "errors"

// OutputLine is a digital pin an engine can drive.
//
// On an open-drain bus (I²C), DriveHigh means release the line to the
// external pull-up, not actively source current.
type OutputLine interface {
	// DriveHigh drives (or, on open-drain wiring, releases) the line high.
	DriveHigh() error
	// DriveLow actively pulls the line low.
	DriveLow() error
}

// InputLine is a digital pin an engine can sample.
type InputLine interface {
	// ReadHigh reports whether the line currently reads high.
	ReadHigh() (bool, error)
}

// IOLine is a line used both as output and input, such as I²C's SDA.
type IOLine interface {
	OutputLine
	InputLine
}

// TickSource is the periodic clock the engine uses to pace the bus.
//
// The cadence is configured entirely outside the engine; engines assume a
// half-period tick (two ticks per logical bit) except serial.Engine, which
// assumes one tick per bit. AwaitTick blocks until the next tick boundary
// strictly after the previous one returned.
type TickSource interface {
	AwaitTick() error
}

// TimerFault is returned by i2c.Engine, in place of the underlying error,
// when a TickSource's AwaitTick fails. serial.Engine and spi.Engine discard
// AwaitTick errors and never return TimerFault.
//
// It carries no platform-specific payload: by the time an engine observes a
// timer failure the transaction is already unrecoverable, so there is
// nothing a caller can usefully branch on beyond "the clock died".
var TimerFault = errors.New("bitbang: timer fault")

// BusFault wraps a failure reported by an OutputLine, InputLine, or IOLine.
//
// The underlying platform error is preserved verbatim via Unwrap; engines
// never interpret it.
type BusFault struct {
	Op  string
	Err error
}

func (f *BusFault) Error() string {
	return "bitbang: bus fault during " + f.Op + ": " + f.Err.Error()
}

func (f *BusFault) Unwrap() error {
	return f.Err
}

// Fault wraps err as a *BusFault tagged with the operation that failed, or
// returns nil if err is nil.
func Fault(op string, err error) error {
	if err == nil {
		return nil
	}
	return &BusFault{Op: op, Err: err}
}
