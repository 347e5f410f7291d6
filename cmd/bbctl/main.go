// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// bbctl drives the bit-bang engines from the command line against a Linux
// GPIO character device, for smoke testing wiring on real hardware.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"periph.io/x/bitbang/host/linuxgpio"
	"periph.io/x/bitbang/i2c"
	"periph.io/x/bitbang/serial"
	"periph.io/x/bitbang/spi"
	"periph.io/x/conn/v3/physic"
)

func mainImpl() error {
	proto := flag.String("proto", "", "protocol to exercise: i2c, serial, spi")
	chip := flag.String("chip", "/dev/gpiochip0", "GPIO character device")
	freq := physic.Frequency(100 * physic.KiloHertz)
	flag.Var(&freq, "freq", "bus frequency, e.g. 100kHz, 1MHz; converted to a half-period tick for i2c/spi and a one-period tick for serial")

	// i2c/spi clock, serial tx
	clkLine := flag.Uint("clk", 0, "clock/tx line offset")
	// i2c sda/spi mosi, serial rx
	dataLine := flag.Uint("data", 1, "data/mosi/rx line offset")
	// spi only
	misoLine := flag.Uint("miso", 2, "spi miso line offset")
	csLine := flag.Uint("cs", 3, "spi chip-select line offset (reserved, driven low for the run)")

	addr := flag.Uint("addr", 0x50, "i2c 7-bit address")
	mode := flag.Int("mode", 0, "spi mode, 0-3")
	payload := flag.String("write", "", "hex bytes to write, e.g. deadbeef")
	readN := flag.Int("read", 0, "number of bytes to read back")
	verbose := flag.Bool("v", false, "microsecond timestamps on log lines")

	flag.Parse()

	if *verbose {
		log.SetFlags(log.Lmicroseconds)
	} else {
		log.SetOutput(os.Stderr)
	}

	out, err := parseHex(*payload)
	if err != nil {
		return fmt.Errorf("bad -write value: %w", err)
	}

	// i2c and spi tick twice per bit, serial once; the tick period is
	// derived from the requested bus frequency accordingly.
	bitPeriod := freq.Duration()

	switch *proto {
	case "i2c":
		return runI2C(*chip, bitPeriod/2, uint32(*clkLine), uint32(*dataLine), uint8(*addr), out, *readN)
	case "serial":
		return runSerial(*chip, bitPeriod, uint32(*clkLine), uint32(*dataLine), out, *readN)
	case "spi":
		return runSPI(*chip, bitPeriod/2, uint32(*clkLine), uint32(*dataLine), uint32(*misoLine), uint32(*csLine), *mode, out)
	default:
		return fmt.Errorf("unknown -proto %q, want i2c, serial or spi", *proto)
	}
}

func parseHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("odd number of hex digits in %q", s)
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		v, err := strconv.ParseUint(s[i*2:i*2+2], 16, 8)
		if err != nil {
			return nil, err
		}
		out[i] = byte(v)
	}
	return out, nil
}

func runI2C(chip string, period time.Duration, clk, data uint32, addr uint8, out []byte, readN int) error {
	scl, err := linuxgpio.OpenOutput(chip, clk, "bbctl-scl", true)
	if err != nil {
		return err
	}
	defer scl.Close()
	sda, err := linuxgpio.OpenIO(chip, data, "bbctl-sda", true)
	if err != nil {
		return err
	}
	defer sda.Close()
	tick := linuxgpio.NewTicker(period)
	defer tick.Stop()

	e := i2c.New(scl, sda, tick)
	if len(out) > 0 {
		log.Printf("i2c: writing %d bytes to 0x%02x", len(out), addr)
		if err := e.Write(addr, out); err != nil {
			return err
		}
	}
	if readN > 0 {
		buf := make([]byte, readN)
		if err := e.Read(addr, buf); err != nil {
			return err
		}
		log.Printf("i2c: read % x", buf)
	}
	return nil
}

func runSerial(chip string, period time.Duration, tx, rx uint32, out []byte, readN int) error {
	txLine, err := linuxgpio.OpenOutput(chip, tx, "bbctl-tx", true)
	if err != nil {
		return err
	}
	defer txLine.Close()
	rxLine, err := linuxgpio.OpenInput(chip, rx, "bbctl-rx")
	if err != nil {
		return err
	}
	defer rxLine.Close()
	tick := linuxgpio.NewTicker(period)
	defer tick.Stop()

	e := serial.New(txLine, rxLine, tick)
	if len(out) > 0 {
		log.Printf("serial: writing %d bytes", len(out))
		for _, b := range out {
			if err := e.Write(b); err != nil {
				return err
			}
		}
	}
	if readN > 0 {
		buf, err := e.ReadN(readN)
		if err != nil {
			return err
		}
		log.Printf("serial: read % x", buf)
	}
	return nil
}

func runSPI(chip string, period time.Duration, clk, mosi, miso, cs uint32, modeNum int, out []byte) error {
	if modeNum < 0 || modeNum > 3 {
		return fmt.Errorf("spi mode must be 0-3, got %d", modeNum)
	}
	sclk, err := linuxgpio.OpenOutput(chip, clk, "bbctl-sclk", false)
	if err != nil {
		return err
	}
	defer sclk.Close()
	mosiLine, err := linuxgpio.OpenOutput(chip, mosi, "bbctl-mosi", false)
	if err != nil {
		return err
	}
	defer mosiLine.Close()
	misoLine, err := linuxgpio.OpenInput(chip, miso, "bbctl-miso")
	if err != nil {
		return err
	}
	defer misoLine.Close()
	csLine, err := linuxgpio.OpenOutput(chip, cs, "bbctl-cs", true)
	if err != nil {
		return err
	}
	defer csLine.Close()
	tick := linuxgpio.NewTicker(period)
	defer tick.Stop()

	e, err := spi.New(sclk, mosiLine, misoLine, tick, spi.Mode(modeNum))
	if err != nil {
		return err
	}
	if err := csLine.DriveLow(); err != nil {
		return err
	}
	defer csLine.DriveHigh()

	in, err := e.Transfer(out)
	if err != nil {
		return err
	}
	log.Printf("spi: transferred % x -> % x", out, in)
	return nil
}

func main() {
	if err := mainImpl(); err != nil {
		fmt.Fprintf(os.Stderr, "bbctl: %s.\n", err)
		os.Exit(1)
	}
}
