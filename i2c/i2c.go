// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package i2c implements an I²C master as a software state machine driven by
// toggling two open-drain GPIO lines (SCL, SDA) against a periodic tick.
//
// Specification: http://www.nxp.com/documents/user_manual/UM10204.pdf
//
// The engine assumes a half-period tick: the tick source's cadence is
// configured by the caller to be twice the desired I²C clock frequency.
// Clock stretching is not supported; the engine never polls SCL after
// releasing it. There is no arbitration or multi-master support.
package i2c

import (
	"errors"

	"periph.io/x/bitbang/conn"
)

// NoAck is returned when a slave fails to acknowledge an address or data
// byte. The transaction is aborted immediately; no STOP is emitted.
var NoAck = errors.New("i2c: no ack")

// InvalidArgument is returned by WriteThenRead when either buffer is empty.
var InvalidArgument = errors.New("i2c: invalid argument")

// Engine is an I²C master bit-banged over SCL/SDA using TICK as the bit
// clock. It holds no state between transactions: the bus is assumed idle
// (both lines released high) at entry to every operation and is always
// either left idle or abandoned mid-transaction on error.
//
// Engine is not safe for concurrent use; it exclusively owns scl and sda for
// its lifetime.
type Engine struct {
	scl  conn.OutputLine
	sda  conn.IOLine
	tick conn.TickSource
}

// New returns an I²C master driving clk and data. It does not touch the
// lines; the bus is expected to already be idle (released high) by the
// platform's pin configuration.
func New(clk conn.OutputLine, data conn.IOLine, tick conn.TickSource) *Engine {
	return &Engine{scl: clk, sda: data, tick: tick}
}

// Write sends payload to the 7-bit address addr: START, address+W, then each
// payload byte, each requiring an ACK, then STOP. A no-op if payload is
// empty.
func (e *Engine) Write(addr uint8, payload []byte) error {
	if len(payload) == 0 {
		return nil
	}
	if err := e.start(); err != nil {
		return err
	}
	if err := e.writeAddrByte(addr, false); err != nil {
		return err
	}
	for _, b := range payload {
		if err := e.writeByteAcked(b); err != nil {
			return err
		}
	}
	return e.stop()
}

// Read fills buffer from the 7-bit address addr: START, address+R, then one
// byte per element of buffer, master-ACKing every byte but the last, then
// STOP. A no-op if buffer is empty.
func (e *Engine) Read(addr uint8, buffer []byte) error {
	if len(buffer) == 0 {
		return nil
	}
	if err := e.start(); err != nil {
		return err
	}
	if err := e.writeAddrByte(addr, true); err != nil {
		return err
	}
	if err := e.readInto(buffer); err != nil {
		return err
	}
	return e.stop()
}

// WriteThenRead sends out, issues a repeated START, then reads into in. Both
// slices must be non-empty or InvalidArgument is returned without touching
// the bus.
func (e *Engine) WriteThenRead(addr uint8, out []byte, in []byte) error {
	if len(out) == 0 || len(in) == 0 {
		return InvalidArgument
	}
	if err := e.start(); err != nil {
		return err
	}
	if err := e.writeAddrByte(addr, false); err != nil {
		return err
	}
	for _, b := range out {
		if err := e.writeByteAcked(b); err != nil {
			return err
		}
	}
	// Repeated START: no STOP between the write and read phases.
	if err := e.start(); err != nil {
		return err
	}
	if err := e.writeAddrByte(addr, true); err != nil {
		return err
	}
	if err := e.readInto(in); err != nil {
		return err
	}
	return e.stop()
}

func (e *Engine) writeAddrByte(addr uint8, read bool) error {
	b := addr << 1
	if read {
		b |= 1
	}
	return e.writeByteAcked(b)
}

func (e *Engine) writeByteAcked(b byte) error {
	if err := e.writeByte(b); err != nil {
		return err
	}
	ack, err := e.readAck()
	if err != nil {
		return err
	}
	if !ack {
		return NoAck
	}
	return nil
}

func (e *Engine) readInto(buffer []byte) error {
	for i := range buffer {
		b, err := e.readByte(i != len(buffer)-1)
		if err != nil {
			return err
		}
		buffer[i] = b
	}
	return nil
}

// start drives the START condition. Ends with SCL and SDA low.
func (e *Engine) start() error {
	if err := conn.Fault("i2c_start:scl_high", e.scl.DriveHigh()); err != nil {
		return err
	}
	if err := conn.Fault("i2c_start:sda_high", e.sda.DriveHigh()); err != nil {
		return err
	}
	if err := e.wait(); err != nil {
		return err
	}
	if err := conn.Fault("i2c_start:sda_low", e.sda.DriveLow()); err != nil {
		return err
	}
	if err := e.wait(); err != nil {
		return err
	}
	if err := conn.Fault("i2c_start:scl_low", e.scl.DriveLow()); err != nil {
		return err
	}
	return e.wait()
}

// stop drives the STOP condition, releasing the bus to idle-high.
func (e *Engine) stop() error {
	if err := conn.Fault("i2c_stop:scl_high", e.scl.DriveHigh()); err != nil {
		return err
	}
	if err := e.wait(); err != nil {
		return err
	}
	if err := conn.Fault("i2c_stop:sda_high", e.sda.DriveHigh()); err != nil {
		return err
	}
	return e.wait()
}

// writeByte shifts out b MSB-first, parking SDA low between bits.
func (e *Engine) writeByte(b byte) error {
	for i := 7; i >= 0; i-- {
		bit := b&(1<<uint(i)) != 0
		if bit {
			if err := conn.Fault("i2c_write_byte:sda_high", e.sda.DriveHigh()); err != nil {
				return err
			}
		} else {
			if err := conn.Fault("i2c_write_byte:sda_low", e.sda.DriveLow()); err != nil {
				return err
			}
		}
		if err := conn.Fault("i2c_write_byte:scl_high", e.scl.DriveHigh()); err != nil {
			return err
		}
		if err := e.wait(); err != nil {
			return err
		}
		if err := conn.Fault("i2c_write_byte:scl_low", e.scl.DriveLow()); err != nil {
			return err
		}
		if err := conn.Fault("i2c_write_byte:sda_low", e.sda.DriveLow()); err != nil {
			return err
		}
		if err := e.wait(); err != nil {
			return err
		}
	}
	return nil
}

// readAck samples the 9th clock after a written byte; low means ACK.
func (e *Engine) readAck() (bool, error) {
	if err := conn.Fault("i2c_read_ack:sda_high", e.sda.DriveHigh()); err != nil {
		return false, err
	}
	if err := conn.Fault("i2c_read_ack:scl_high", e.scl.DriveHigh()); err != nil {
		return false, err
	}
	if err := e.wait(); err != nil {
		return false, err
	}
	high, err := e.sda.ReadHigh()
	if err != nil {
		return false, conn.Fault("i2c_read_ack:sda_read", err)
	}
	if err := conn.Fault("i2c_read_ack:scl_low", e.scl.DriveLow()); err != nil {
		return false, err
	}
	if err := conn.Fault("i2c_read_ack:sda_low", e.sda.DriveLow()); err != nil {
		return false, err
	}
	if err := e.wait(); err != nil {
		return false, err
	}
	return !high, nil
}

// readByte shifts in 8 bits MSB-first, then drives the master ACK/NACK bit.
func (e *Engine) readByte(masterAck bool) (byte, error) {
	if err := conn.Fault("i2c_read_byte:sda_high", e.sda.DriveHigh()); err != nil {
		return 0, err
	}
	var b byte
	for i := 7; i >= 0; i-- {
		if err := conn.Fault("i2c_read_byte:scl_high", e.scl.DriveHigh()); err != nil {
			return 0, err
		}
		if err := e.wait(); err != nil {
			return 0, err
		}
		high, err := e.sda.ReadHigh()
		if err != nil {
			return 0, conn.Fault("i2c_read_byte:sda_read", err)
		}
		if high {
			b |= 1 << uint(i)
		}
		if err := conn.Fault("i2c_read_byte:scl_low", e.scl.DriveLow()); err != nil {
			return 0, err
		}
		if err := e.wait(); err != nil {
			return 0, err
		}
	}
	if masterAck {
		if err := conn.Fault("i2c_read_byte:sda_low", e.sda.DriveLow()); err != nil {
			return 0, err
		}
	} else {
		if err := conn.Fault("i2c_read_byte:sda_high", e.sda.DriveHigh()); err != nil {
			return 0, err
		}
	}
	if err := conn.Fault("i2c_read_byte:scl_high", e.scl.DriveHigh()); err != nil {
		return 0, err
	}
	if err := e.wait(); err != nil {
		return 0, err
	}
	if err := conn.Fault("i2c_read_byte:scl_low", e.scl.DriveLow()); err != nil {
		return 0, err
	}
	if err := conn.Fault("i2c_read_byte:sda_low", e.sda.DriveLow()); err != nil {
		return 0, err
	}
	if err := e.wait(); err != nil {
		return 0, err
	}
	return b, nil
}

func (e *Engine) wait() error {
	if err := e.tick.AwaitTick(); err != nil {
		return conn.TimerFault
	}
	return nil
}
