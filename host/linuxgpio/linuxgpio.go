//go:build linux

// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package linuxgpio hosts the bit-bang engines on a real Linux board by
// implementing the periph.io/x/bitbang/conn capability contract over the
// GPIO v2 character device ioctl ABI (/dev/gpiochipN).
//
// Trimmed to the single-line request/read/write subset the bit-bang engines
// need, and using golang.org/x/sys/unix instead of raw syscall for the
// open/ioctl/close system calls. The GPIO ioctl numbers and struct layouts
// are declared in this file from linux/gpio.h.
package linuxgpio

import (
	"fmt"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	maxNameSize = 32
	maxLines    = 64

	lineFlagOutput = uint64(1) << 3
	lineFlagInput  = uint64(1) << 2
)

// From linux/gpio.h: GPIO_GET_LINE_IOCTL (GPIO_V2_GET_LINE_IOCTL), read and
// write GPIO_V2_LINE_SET_VALUES_IOCTL / GPIO_V2_LINE_GET_VALUES_IOCTL.
var (
	iocGetLine   = iowr(0xb4, 0x07, unsafe.Sizeof(lineRequest{}))
	iocSetValues = iowr(0xb4, 0x0f, unsafe.Sizeof(lineValues{}))
	iocGetValues = iowr(0xb4, 0x0e, unsafe.Sizeof(lineValues{}))
)

func iowr(typ, nr byte, size uintptr) uintptr {
	const (
		dirShift  = 30
		typeShift = 8
		nrShift   = 0
		sizeShift = 16
		readWrite = uintptr(3) // _IOC_READ|_IOC_WRITE
	)
	return readWrite<<dirShift | uintptr(typ)<<typeShift | uintptr(nr)<<nrShift | uintptr(size)<<sizeShift
}

type lineAttr struct {
	id      uint32
	padding uint32
	value   uint64
}

type lineConfigAttr struct {
	attr lineAttr
	mask uint64
}

type lineConfig struct {
	flags    uint64
	numAttrs uint32
	padding  [5]uint32
	attrs    [10]lineConfigAttr
}

type lineRequest struct {
	offsets         [maxLines]uint32
	consumer        [maxNameSize]byte
	config          lineConfig
	numLines        uint32
	eventBufferSize uint32
	padding         [5]uint32
	fd              int32
}

type lineValues struct {
	bits uint64
	mask uint64
}

// Line is a single requested GPIO line, usable as a conn.OutputLine,
// conn.InputLine, or both depending on how it was opened.
type Line struct {
	fd     int
	offset uint32
}

// OpenOutput requests offset on the chip at chipPath as an output line,
// driven to initialHigh immediately by the kernel as part of the request.
func OpenOutput(chipPath string, offset uint32, consumer string, initialHigh bool) (*Line, error) {
	var initial uint64
	if initialHigh {
		initial = 1
	}
	return requestLine(chipPath, offset, consumer, lineFlagOutput, initial)
}

// OpenInput requests offset on the chip at chipPath as an input line.
func OpenInput(chipPath string, offset uint32, consumer string) (*Line, error) {
	return requestLine(chipPath, offset, consumer, lineFlagInput, 0)
}

// OpenIO requests offset as an output line, usable afterward both to drive
// (DriveHigh/DriveLow) and to sample (ReadHigh) — the shape I²C's SDA needs.
// The platform is expected to wire the line open-drain externally; this
// package does not configure open-drain/open-source flags since the GPIO
// v2 ABI models it as a line flag the kernel driver may or may not honor
// per chip, which is outside what a portable adapter can promise.
func OpenIO(chipPath string, offset uint32, consumer string, initialHigh bool) (*Line, error) {
	return OpenOutput(chipPath, offset, consumer, initialHigh)
}

func requestLine(chipPath string, offset uint32, consumer string, flags uint64, initial uint64) (*Line, error) {
	chipFd, err := unix.Open(chipPath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("linuxgpio: open %s: %w", chipPath, err)
	}
	defer unix.Close(chipFd)

	req := lineRequest{numLines: 1}
	req.offsets[0] = offset
	copy(req.consumer[:], consumer)
	req.config.flags = flags
	if flags == lineFlagOutput {
		req.config.numAttrs = 1
		req.config.attrs[0] = lineConfigAttr{
			attr: lineAttr{id: 2 /* GPIO_V2_LINE_ATTR_ID_OUTPUT_VALUES */, value: initial},
			mask: 1,
		}
	}

	if err := ioctl(uintptr(chipFd), iocGetLine, unsafe.Pointer(&req)); err != nil {
		return nil, fmt.Errorf("linuxgpio: request line %d: %w", offset, err)
	}
	return &Line{fd: int(req.fd), offset: offset}, nil
}

// DriveHigh implements conn.OutputLine.
func (l *Line) DriveHigh() error {
	return l.setValue(1)
}

// DriveLow implements conn.OutputLine.
func (l *Line) DriveLow() error {
	return l.setValue(0)
}

// ReadHigh implements conn.InputLine.
func (l *Line) ReadHigh() (bool, error) {
	v := lineValues{mask: 1}
	if err := ioctl(uintptr(l.fd), iocGetValues, unsafe.Pointer(&v)); err != nil {
		return false, fmt.Errorf("linuxgpio: read line %d: %w", l.offset, err)
	}
	return v.bits&1 != 0, nil
}

func (l *Line) setValue(bit uint64) error {
	v := lineValues{bits: bit, mask: 1}
	if err := ioctl(uintptr(l.fd), iocSetValues, unsafe.Pointer(&v)); err != nil {
		return fmt.Errorf("linuxgpio: drive line %d: %w", l.offset, err)
	}
	return nil
}

// Close releases the line's file descriptor.
func (l *Line) Close() error {
	return unix.Close(l.fd)
}

func ioctl(fd, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

// Ticker implements conn.TickSource over a time.Ticker, the closest portable
// stand-in for a hardware periodic timer available on a Linux host. It does
// not compensate for scheduler jitter; that is the caller's concern, made
// worse here than on a microcontroller since Linux is not a real-time
// scheduler.
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
