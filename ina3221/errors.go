// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ina3221

import (
	"errors"
	"fmt"
)

var (
	// ErrBus matches any *BusError with errors.Is.
	ErrBus            = errors.New("ina3221: bus error")
	ErrInvalidAddress = errors.New("ina3221: invalid address")
	ErrInvalidConfig  = errors.New("ina3221: invalid config")
	ErrUnknownChip    = errors.New("ina3221: unknown chip")
)

// BusError is a transport failure reported by the Bus. The driver never
// retries, so the register named here holds whatever the chip last accepted.
type BusError struct {
	Op   string
	Addr Address
	Reg  uint8
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("ina3221: %s %02x.%02x: %v", e.Op, uint8(e.Addr),
		e.Reg, e.Err)
}

func (e *BusError) Unwrap() error { return e.Err }

func (e *BusError) Is(target error) bool { return target == ErrBus }
