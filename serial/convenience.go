// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package serial

// WriteString transmits every byte of s in order, one frame per byte.
func (e *Engine) WriteString(s string) error {
	for i := 0; i < len(s); i++ {
		if err := e.Write(s[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadN blocks until n frames have been received and returns them in order.
func (e *Engine) ReadN(n int) ([]byte, error) {
	out := make([]byte, n)
	for i := range out {
		b, err := e.Read()
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}
