// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package i2cbus

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

// Periph is a Bus on a periph.io I2C bus, for boards whose adapter isn't
// an SMBus device node.
type Periph struct {
	Bus i2c.Bus
}

func (p Periph) String() string { return p.Bus.String() }

func (p Periph) Write(addr uint8, w []byte) error {
	return p.Bus.Tx(uint16(addr), w, nil)
}

// WriteRead is a single combined transaction with a repeated start.
func (p Periph) WriteRead(addr uint8, w, r []byte) error {
	if len(r) == 0 {
		return fmt.Errorf("%w: read 0", ErrLength)
	}
	return p.Bus.Tx(uint16(addr), w, r)
}

// OpenPeriph initialises the periph.io host drivers and opens the named
// bus; "" is the first one registered.
func OpenPeriph(name string) (Bus, func() error, error) {
	if _, err := host.Init(); err != nil {
		return nil, nil, err
	}
	bc, err := i2creg.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("i2c %q: %w", name, err)
	}
	return Periph{Bus: bc}, bc.Close, nil
}
