// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package sim models an INA3221 register file behind the two-wire Bus
// methods, for hardware-free tests of the driver and its commands.
package sim

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrNack    = errors.New("sim: no acknowledge")
	ErrMessage = errors.New("sim: malformed message")
)

const (
	regConfig     = 0x00
	regMaskEnable = 0x0f
	regMfgID      = 0xfe
	regDieID      = 0xff

	configReset   = 1 << 15
	configDefault = 0x7127
	modeMask      = 0x7
	cvrf          = 1 << 0
)

// writable registers; the rest are read-only and ignore writes.
var writable = map[uint8]bool{
	0x00: true, 0x07: true, 0x08: true, 0x09: true, 0x0a: true,
	0x0b: true, 0x0c: true, 0x0e: true, 0x0f: true, 0x10: true,
	0x11: true,
}

// Chip is a simulated INA3221. The zero value isn't usable; use New.
type Chip struct {
	mutex sync.Mutex

	addr uint8
	regs map[uint8]uint16
	ptr  uint8

	// ReadErr and WriteErr, when set, fail every WriteRead or Write.
	ReadErr  error
	WriteErr error

	// ConversionPolls is the number of Mask/Enable reads after a mode
	// write before the conversion ready flag is set.
	ConversionPolls int
	pending         int
	converting      bool

	Reads, Writes int
}

func New(addr uint8) *Chip {
	c := &Chip{addr: addr}
	c.reset()
	return c
}

func (c *Chip) reset() {
	c.regs = map[uint8]uint16{
		regConfig:     configDefault,
		0x07:          0x7ff8,
		0x08:          0x7ff8,
		0x09:          0x7ff8,
		0x0a:          0x7ff8,
		0x0b:          0x7ff8,
		0x0c:          0x7ff8,
		0x0e:          0x7ffe,
		0x10:          0x2710,
		0x11:          0x2328,
		regMaskEnable: 0x0002,
		regMfgID:      0x5449,
		regDieID:      0x3220,
	}
	c.ptr = 0
	c.converting = false
}

// Write handles a pointer write, [reg], or a register write, [reg, hi, lo].
func (c *Chip) Write(addr uint8, w []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.Writes++
	if c.WriteErr != nil {
		return c.WriteErr
	}
	if addr != c.addr {
		return ErrNack
	}
	switch len(w) {
	case 1:
		c.ptr = w[0]
	case 3:
		c.ptr = w[0]
		c.store(w[0], uint16(w[1])<<8|uint16(w[2]))
	default:
		return fmt.Errorf("%w: write of %d bytes", ErrMessage, len(w))
	}
	return nil
}

// WriteRead sets the pointer from w and returns the 16-bit register in r.
func (c *Chip) WriteRead(addr uint8, w, r []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.Reads++
	if c.ReadErr != nil {
		return c.ReadErr
	}
	if addr != c.addr {
		return ErrNack
	}
	if len(w) > 1 || len(r) != 2 {
		return fmt.Errorf("%w: write %d read %d", ErrMessage, len(w),
			len(r))
	}
	if len(w) == 1 {
		c.ptr = w[0]
	}
	v := c.load(c.ptr)
	r[0], r[1] = uint8(v>>8), uint8(v)
	return nil
}

func (c *Chip) store(reg uint8, v uint16) {
	if !writable[reg] {
		return
	}
	switch reg {
	case regConfig:
		if v&configReset != 0 {
			c.reset()
			return
		}
		c.regs[regConfig] = v
		c.regs[regMaskEnable] &^= cvrf
		mode := v & modeMask
		c.converting = mode != 0 && mode != 4
		c.pending = c.ConversionPolls
	case regMaskEnable:
		// flag bits 9..0 are read-only
		c.regs[reg] = v&0x7c00 | c.regs[reg]&0x03ff
	default:
		c.regs[reg] = v
	}
}

func (c *Chip) load(reg uint8) uint16 {
	v := c.regs[reg]
	if reg != regMaskEnable {
		return v
	}
	if c.converting {
		if c.pending > 0 {
			c.pending--
		} else {
			v |= cvrf
			if c.regs[regConfig]&modeMask < 4 {
				c.converting = false
			}
		}
	}
	c.regs[reg] = v &^ cvrf
	return v
}

// Register returns the raw register content without a bus transaction.
func (c *Chip) Register(reg uint8) uint16 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.regs[reg]
}

// Set stores a raw register value, read-only registers included.
func (c *Chip) Set(reg uint8, v uint16) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.regs[reg] = v
}

// SetShunt loads a signed 13-bit shunt count, 40 uV each, into channel ch.
func (c *Chip) SetShunt(ch int, count int16) {
	c.Set(uint8(2*ch-1), uint16(count<<3))
}

// SetBus loads a signed 13-bit bus count, 8 mV each, into channel ch.
func (c *Chip) SetBus(ch int, count int16) {
	c.Set(uint8(2*ch), uint16(count<<3))
}

// Transactions returns the number of Write and WriteRead calls so far.
func (c *Chip) Transactions() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.Reads + c.Writes
}
