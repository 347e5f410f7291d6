// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package spi

import (
	"errors"
	"testing"

	"periph.io/x/bitbang/bitbangtest"
)

func TestReadBeforeSendIsNoData(t *testing.T) {
	e, err := New(bitbangtest.NewScript(), bitbangtest.NewScript(), bitbangtest.NewScript(), bitbangtest.NewScript(), Mode0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Read(); !errors.Is(err, NoData) {
		t.Fatalf("Read() before Send = %v, want NoData", err)
	}
}

func TestIdleLevelPerMode(t *testing.T) {
	cases := []struct {
		mode      Mode
		wantLevel bool // true == high
	}{
		{Mode0, false},
		{Mode1, false},
		{Mode2, true},
		{Mode3, true},
	}
	for _, c := range cases {
		sclk := bitbangtest.NewScript()
		if _, err := New(sclk, bitbangtest.NewScript(), bitbangtest.NewScript(), bitbangtest.NewScript(), c.mode); err != nil {
			t.Fatalf("New(mode %d): %v", c.mode, err)
		}
		trace := sclk.Trace()
		if len(trace) != 1 || trace[0].Level != c.wantLevel {
			t.Fatalf("mode %d idle trace = %v, want single event level=%v", c.mode, trace, c.wantLevel)
		}
	}
}

// loopbackSend drives a Send through an Engine whose MISO is scripted to
// replay exactly the bits the engine itself would drive on MOSI, simulating
// MOSI physically looped back to MISO.
func loopbackSend(t *testing.T, mode Mode, order BitOrder, b byte) byte {
	t.Helper()
	mosi := bitbangtest.NewScript()
	sclk := bitbangtest.NewScript()
	tick := bitbangtest.NewScript()

	probe, err := New(sclk, mosi, bitbangtest.NewScript(), tick, mode)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	probe.SetBitOrder(order)
	if err := probe.Send(b); err != nil {
		t.Fatalf("Send: %v", err)
	}
	driven := drivenLevels(mosi.Trace())

	miso := bitbangtest.NewScript()
	miso.Levels = driven
	e, err := New(bitbangtest.NewScript(), bitbangtest.NewScript(), miso, bitbangtest.NewScript(), mode)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.SetBitOrder(order)
	if err := e.Send(b); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := e.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return got
}

func TestLoopbackRoundTripMSBFirst(t *testing.T) {
	for _, mode := range []Mode{Mode0, Mode1, Mode2, Mode3} {
		for b := 0; b < 256; b += 17 { // sample the space, not exhaustively, per mode
			if got := loopbackSend(t, mode, MSBFirst, byte(b)); got != byte(b) {
				t.Fatalf("mode %d: loopback(%#x) = %#x", mode, b, got)
			}
		}
	}
}

func TestSendShiftsOutMSBFirstOnMOSI(t *testing.T) {
	mosi := bitbangtest.NewScript()
	sclk := bitbangtest.NewScript()
	tick := bitbangtest.NewScript()
	e, err := New(sclk, mosi, bitbangtest.NewScript(), tick, Mode0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Send(0x81); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got := drivenLevels(mosi.Trace())
	want := []bool{true, false, false, false, false, false, false, true} // 0x81 MSB first
	if !equalBools(got, want) {
		t.Fatalf("mosi trace = %v, want %v", got, want)
	}
}

func TestReceivedByteAssembledMSBFirstRegardlessOfBitOrder(t *testing.T) {
	miso := bitbangtest.NewScript()
	// 0xC1 is not a bit palindrome: LSB-first assembly would yield 0x83.
	miso.Levels = bitsOf(0xC1)
	e, err := New(bitbangtest.NewScript(), bitbangtest.NewScript(), miso, bitbangtest.NewScript(), Mode0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e.SetBitOrder(LSBFirst)
	if err := e.Send(0x00); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := e.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != 0xC1 {
		t.Fatalf("Read() = %#x, want 0xc1 (MSB-first assembly regardless of bit_order)", got)
	}
}

func drivenLevels(trace []bitbangtest.Event) []bool {
	var out []bool
	for _, e := range trace {
		if e.Op == "high" || e.Op == "low" {
			out = append(out, e.Level)
		}
	}
	return out
}

func bitsOf(b byte) []bool {
	out := make([]bool, 8)
	for i := 0; i < 8; i++ {
		out[i] = b&(1<<uint(7-i)) != 0
	}
	return out
}

func equalBools(a, b []bool) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
