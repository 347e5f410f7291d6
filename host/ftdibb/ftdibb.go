// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ftdibb hosts the bit-bang engines on an FTDI FT232H/FT2232H USB
// adapter by implementing the periph.io/x/bitbang/conn capability contract
// over the chip's MPSSE "Set/Read Data Bits Low Byte" commands.
//
// Built around the MPSSE "Set/Read Data Bits Low Byte" command framing,
// trimmed to the single shared 8-bit DBus register the bit-bang engines
// address one pin at a time. Unlike a GPIO driver exposing independent
// PinIO pins with arbitrary concurrent access, this package only ever needs
// a handful of fixed, statically-assigned lines, so the shared register is
// held behind a mutex instead of a cache invalidation scheme.
package ftdibb

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/d2xx"
)

const (
	gpioSetD  byte = 0x80
	gpioReadD byte = 0x81
	flush     byte = 0x87

	bitModeReset bitMode = 0x00
	bitModeMpsse bitMode = 0x02
)

type bitMode byte

// toErr converts a d2xx.Err, which is a bare numeric code, into an
// idiomatic Go error at the handle boundary.
func toErr(op string, e d2xx.Err) error {
	if e == 0 {
		return nil
	}
	return fmt.Errorf("ftdibb: %s: %s", op, e.String())
}

// Bus owns the FT232H's DBus (D0-D7) as a set of independently addressable
// bit-bang lines, shared behind a mutex since the chip only exposes one
// direction/value register for all 8 pins at once.
type Bus struct {
	mu        sync.Mutex
	h         d2xx.Handle
	direction byte
	value     byte
}

// Open opens device index i via d2xx and switches it into MPSSE mode.
func Open(i int) (*Bus, error) {
	h, e := d2xx.Open(i)
	if e != 0 {
		return nil, toErr(fmt.Sprintf("open device %d", i), e)
	}
	b := &Bus{h: h}
	if err := b.reset(); err != nil {
		_ = h.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bus) reset() error {
	if e := b.h.SetBitMode(0, byte(bitModeReset)); e != 0 {
		return toErr("reset bitmode", e)
	}
	if e := b.h.SetBitMode(0, byte(bitModeMpsse)); e != 0 {
		return toErr("mpsse bitmode", e)
	}
	return nil
}

// Close releases the underlying USB handle.
func (b *Bus) Close() error {
	return toErr("close", b.h.Close())
}

// Line returns a handle onto a single DBus pin (0-7), usable as a
// conn.OutputLine, conn.InputLine, or both.
func (b *Bus) Line(n uint) *Line {
	return &Line{b: b, mask: 1 << n}
}

func (b *Bus) setDirection(mask byte, output bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if output {
		b.direction |= mask
	} else {
		b.direction &^= mask
	}
	return b.writeLocked()
}

func (b *Bus) drive(mask byte, high bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.direction |= mask
	if high {
		b.value |= mask
	} else {
		b.value &^= mask
	}
	return b.writeLocked()
}

func (b *Bus) writeLocked() error {
	cmd := [...]byte{gpioSetD, b.value, b.direction}
	_, e := b.h.Write(cmd[:])
	return toErr("set dbus", e)
}

func (b *Bus) read(mask byte) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	cmd := [...]byte{gpioReadD, flush}
	if _, e := b.h.Write(cmd[:]); e != 0 {
		return false, toErr("read dbus", e)
	}
	var buf [1]byte
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := readAll(ctx, b.h, buf[:]); err != nil {
		return false, fmt.Errorf("ftdibb: read dbus: %w", err)
	}
	return buf[0]&mask != 0, nil
}

func readAll(ctx context.Context, h d2xx.Handle, buf []byte) error {
	for offset := 0; offset != len(buf); {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		p, e := h.GetQueueStatus()
		if e != 0 {
			return toErr("get queue status", e)
		}
		if p == 0 {
			continue
		}
		v := int(p)
		if rem := len(buf) - offset; v > rem {
			v = rem
		}
		n, e := h.Read(buf[offset : offset+v])
		if e != 0 {
			return toErr("read", e)
		}
		offset += n
	}
	return nil
}

// Line is a single DBus pin shared with the rest of Bus behind its mutex.
type Line struct {
	b    *Bus
	mask byte
}

// DriveHigh implements conn.OutputLine.
func (l *Line) DriveHigh() error {
	return l.b.drive(l.mask, true)
}

// DriveLow implements conn.OutputLine.
func (l *Line) DriveLow() error {
	return l.b.drive(l.mask, false)
}

// ReadHigh implements conn.InputLine. The caller is expected to have
// released the line as an output (or never driven it) beforehand; this
// package does not track per-pin direction beyond the shared register
// written by the last DriveHigh/DriveLow/SetInput call.
func (l *Line) ReadHigh() (bool, error) {
	return l.b.read(l.mask)
}

// SetInput configures the line as an input, tri-stating it on the chip so
// an external driver (or pull resistor) controls its level.
func (l *Line) SetInput() error {
	return l.b.setDirection(l.mask, false)
}

// Ticker implements conn.TickSource over a time.Ticker. The USB round trip
// per MPSSE command already dwarfs realistic bit-bang periods, so unlike
// host/linuxgpio this is less a convenience and more the only practical
// clock source available to this adapter.
type Ticker struct {
	t *time.Ticker
}

// NewTicker returns a Ticker delivering at the given period.
func NewTicker(period time.Duration) *Ticker {
	return &Ticker{t: time.NewTicker(period)}
}

// AwaitTick implements conn.TickSource.
func (t *Ticker) AwaitTick() error {
	<-t.t.C
	return nil
}

// Stop releases the underlying time.Ticker.
func (t *Ticker) Stop() {
	t.t.Stop()
}
