// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package i2cbus provides two-wire transports for register based chip
// drivers: Linux SMBus devices, a mutex guarded shared bus, and a client of
// the i2cd arbiter daemon.
package i2cbus

import (
	"errors"
	"fmt"

	"github.com/platinasystems/i2c"
)

// BlockMax is the longest SMBus block transfer.
const BlockMax = 32

var ErrLength = errors.New("i2cbus: unsupported transfer length")

// Bus is the transaction interface drivers consume.
type Bus interface {
	Write(addr uint8, w []byte) error
	WriteRead(addr uint8, w, r []byte) error
}

// SMBus is /dev/i2c-INDEX. Every transaction opens the device, forces the
// slave address, issues one SMBus command and closes it again, so other
// processes may use the bus in between.
type SMBus struct {
	Index int
}

func (b SMBus) String() string { return fmt.Sprintf("/dev/i2c-%d", b.Index) }

func (b SMBus) do(addr uint8, rw i2c.RW, cmd uint8, size i2c.SMBusSize,
	data *i2c.SMBusData) (err error) {
	var bus i2c.Bus

	if err = bus.Open(b.Index); err != nil {
		return
	}
	defer bus.Close()

	if err = bus.ForceSlaveAddress(int(addr)); err != nil {
		return
	}
	if err = bus.Do(rw, cmd, size, data); err != nil {
		err = fmt.Errorf("%v.%02x.%02x: %w", b, addr, cmd, err)
	}
	return
}

// Write maps w onto an SMBus write: one byte is a send byte, two bytes a
// write byte data, three a write word data (first byte on the wire first),
// and longer an I2C block write.
func (b SMBus) Write(addr uint8, w []byte) error {
	var data i2c.SMBusData

	switch n := len(w); {
	case n == 1:
		return b.do(addr, i2c.Write, w[0], i2c.Byte, &data)
	case n == 2:
		data[0] = w[1]
		return b.do(addr, i2c.Write, w[0], i2c.ByteData, &data)
	case n == 3:
		data[0], data[1] = w[1], w[2]
		return b.do(addr, i2c.Write, w[0], i2c.WordData, &data)
	case n > 3 && n-1 <= BlockMax:
		data[0] = uint8(n - 1)
		copy(data[1:], w[1:])
		return b.do(addr, i2c.Write, w[0], i2c.I2CBlockData, &data)
	}
	return fmt.Errorf("%w: write %d", ErrLength, len(w))
}

// WriteRead requires a single command byte in w and reads one byte, one
// word, or an I2C block of len(r) bytes.
func (b SMBus) WriteRead(addr uint8, w, r []byte) error {
	var data i2c.SMBusData

	if len(w) != 1 {
		return fmt.Errorf("%w: command %d", ErrLength, len(w))
	}
	switch n := len(r); {
	case n == 1:
		if err := b.do(addr, i2c.Read, w[0], i2c.ByteData, &data); err != nil {
			return err
		}
		r[0] = data[0]
	case n == 2:
		if err := b.do(addr, i2c.Read, w[0], i2c.WordData, &data); err != nil {
			return err
		}
		r[0], r[1] = data[0], data[1]
	case n > 2 && n <= BlockMax:
		data[0] = uint8(n)
		if err := b.do(addr, i2c.Read, w[0], i2c.I2CBlockData, &data); err != nil {
			return err
		}
		copy(r, data[1:n+1])
	default:
		return fmt.Errorf("%w: read %d", ErrLength, len(r))
	}
	return nil
}
