// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ina3221 provides access to the TI INA3221 triple-channel shunt and
// bus voltage monitor.
//
// A Device is bound to one chip address on a caller supplied Bus. Every
// method performs its register transactions synchronously and caches
// nothing but the shunt resistances used to derive current, so a Device is
// not safe for concurrent use; wrap the Bus if other drivers share it.
//
// Datasheet: https://www.ti.com/lit/gpn/ina3221
package ina3221

import "fmt"

// Bus is the two-wire transport. Write sends w to the device at addr.
// WriteRead sends w then reads len(r) bytes in one combined transaction.
// Implementations that are shared between drivers must serialise each call.
type Bus interface {
	Write(addr uint8, w []byte) error
	WriteRead(addr uint8, w, r []byte) error
}

// Address is the 7-bit slave address selected by strapping the A0 pin.
type Address uint8

const (
	AddressGND Address = 0x40
	AddressVS  Address = 0x41
	AddressSDA Address = 0x42
	AddressSCL Address = 0x43

	DefaultAddress = AddressGND
)

// Addresses lists the four legal slave addresses.
var Addresses = [...]Address{AddressGND, AddressVS, AddressSDA, AddressSCL}

func (a Address) Valid() bool { return a >= AddressGND && a <= AddressSCL }

func (a Address) String() string { return fmt.Sprintf("%#x", uint8(a)) }

// Config is the construction time configuration of a Device.
type Config struct {
	Address Address
	// Shunt resistances of channels 1, 2 and 3 in milliohms. A zero entry
	// is unset, as in any zero Config, and keeps the 10 mOhm default;
	// SetShunt is where an explicit zero is rejected.
	ShuntMilliohms [NumChannels]uint32
}

// Device is one INA3221 on a Bus.
type Device struct {
	bus   Bus
	addr  Address
	shunt [NumChannels]uint32
}

// New returns a Device at the default address, 0x40, with 10 mOhm shunts.
func New(bus Bus) *Device {
	d := &Device{bus: bus, addr: DefaultAddress}
	for i := range d.shunt {
		d.shunt[i] = defaultShuntMOhm
	}
	return d
}

// NewWithAddress returns a Device at addr or ErrInvalidAddress if addr isn't
// one of the four A0 strapping options.
func NewWithAddress(bus Bus, addr Address) (*Device, error) {
	if !addr.Valid() {
		return nil, fmt.Errorf("%w: %#x", ErrInvalidAddress, uint8(addr))
	}
	d := New(bus)
	d.addr = addr
	return d, nil
}

// NewFromConfig is NewWithAddress followed by SetShunt for each non-zero
// entry. A zero Address selects the default.
func NewFromConfig(bus Bus, cfg Config) (*Device, error) {
	addr := cfg.Address
	if addr == 0 {
		addr = DefaultAddress
	}
	d, err := NewWithAddress(bus, addr)
	if err != nil {
		return nil, err
	}
	for i, mohm := range cfg.ShuntMilliohms {
		if mohm == 0 {
			continue
		}
		if err = d.SetShunt(Channel(i+1), mohm); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func (d *Device) Address() Address { return d.addr }

// ReadRegister returns the 16-bit big-endian content of reg.
func (d *Device) ReadRegister(reg uint8) (uint16, error) {
	var buf [2]byte
	if err := d.bus.WriteRead(uint8(d.addr), []byte{reg}, buf[:]); err != nil {
		return 0, &BusError{Op: "read", Addr: d.addr, Reg: reg, Err: err}
	}
	return uint16(buf[0])<<8 | uint16(buf[1]), nil
}

// WriteRegister stores v in reg, most significant byte first.
func (d *Device) WriteRegister(reg uint8, v uint16) error {
	buf := [3]byte{reg, uint8(v >> 8), uint8(v)}
	if err := d.bus.Write(uint8(d.addr), buf[:]); err != nil {
		return &BusError{Op: "write", Addr: d.addr, Reg: reg, Err: err}
	}
	return nil
}

// ChipID returns the raw die identification word; 0x3220 for an INA3221.
func (d *Device) ChipID() (uint16, error) { return d.ReadRegister(RegDieID) }

// ManufacturerID returns the raw manufacturer word; 0x5449 ("TI").
func (d *Device) ManufacturerID() (uint16, error) {
	return d.ReadRegister(RegManufacturerID)
}

// Probe verifies that an INA3221 answers at the bound address.
func (d *Device) Probe() error {
	mfg, err := d.ManufacturerID()
	if err != nil {
		return err
	}
	die, err := d.ChipID()
	if err != nil {
		return err
	}
	if mfg != ManufacturerTI || die != DieINA3221 {
		return fmt.Errorf("%w: manufacturer %#04x die %#04x at %v",
			ErrUnknownChip, mfg, die, d.addr)
	}
	return nil
}
