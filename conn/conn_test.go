// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package conn

import (
	"errors"
	"testing"
)

func TestFaultNil(t *testing.T) {
	if err := Fault("drive_high", nil); err != nil {
		t.Fatalf("Fault(_, nil) = %v, want nil", err)
	}
}

func TestFaultWrap(t *testing.T) {
	cause := errors.New("pin stuck low")
	err := Fault("drive_high", cause)
	var bf *BusFault
	if !errors.As(err, &bf) {
		t.Fatalf("Fault(...) did not produce a *BusFault: %v", err)
	}
	if bf.Op != "drive_high" {
		t.Fatalf("Op = %q, want drive_high", bf.Op)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}
}
