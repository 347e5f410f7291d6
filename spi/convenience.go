// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package spi

// Transfer shifts out every byte of out, one Send per byte, and returns the
// bytes latched in after each Send. It adds no wire behavior beyond looping
// Send and Read.
func (e *Engine) Transfer(out []byte) ([]byte, error) {
	in := make([]byte, len(out))
	for i, b := range out {
		if err := e.Send(b); err != nil {
			return nil, err
		}
		v, err := e.Read()
		if err != nil {
			return nil, err
		}
		in[i] = v
	}
	return in, nil
}

// WriteOnly shifts out every byte of out, discarding whatever is latched in
// from MISO.
func (e *Engine) WriteOnly(out []byte) error {
	for _, b := range out {
		if err := e.Send(b); err != nil {
			return err
		}
	}
	return nil
}
