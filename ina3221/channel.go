// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ina3221

import "fmt"

// Channel numbers the three monitor inputs 1, 2 and 3.
type Channel uint8

const (
	Channel1 Channel = 1 + iota
	Channel2
	Channel3

	NumChannels = 3
)

// Channels lists every channel in order.
var Channels = [NumChannels]Channel{Channel1, Channel2, Channel3}

func (ch Channel) Valid() bool { return ch >= Channel1 && ch <= Channel3 }

func (ch Channel) String() string { return fmt.Sprintf("ch%d", uint8(ch)) }

func (ch Channel) index() int { return int(ch) - 1 }

func (ch Channel) check() error {
	if !ch.Valid() {
		return fmt.Errorf("%w: channel %d", ErrInvalidConfig, uint8(ch))
	}
	return nil
}

// ShuntRegister and BusRegister return the voltage register pair of ch.
func (ch Channel) ShuntRegister() uint8 { return RegShuntVoltage1 + 2*uint8(ch.index()) }
func (ch Channel) BusRegister() uint8   { return RegBusVoltage1 + 2*uint8(ch.index()) }

// Shunt returns the resistance in milliohms used to derive current on ch.
func (d *Device) Shunt(ch Channel) uint32 {
	if !ch.Valid() {
		return 0
	}
	return d.shunt[ch.index()]
}

// SetShunt changes the resistance used by Current and Power. It doesn't
// touch the bus. Zero is rejected so that current derivation never divides
// by zero; the stored value is then unchanged.
func (d *Device) SetShunt(ch Channel, milliohms uint32) error {
	if err := ch.check(); err != nil {
		return err
	}
	if milliohms == 0 {
		return fmt.Errorf("%w: %v shunt of 0 mOhm", ErrInvalidConfig, ch)
	}
	d.shunt[ch.index()] = milliohms
	return nil
}

// ShuntRaw is the signed 13-bit shunt ADC count, 40 uV per count.
func ShuntRaw(v uint16) int32 { return int32(int16(v) >> voltageShift) }

// ShuntMicroVolts converts a shunt voltage register value to microvolts.
func ShuntMicroVolts(v uint16) int32 { return ShuntRaw(v) * shuntMicroVolts }

// BusMilliVolts converts a bus voltage register value to millivolts.
func BusMilliVolts(v uint16) int32 {
	return int32(int16(v)>>voltageShift) * busMilliVolts
}

// MilliAmps derives current from a shunt drop; uV / mOhm = mA, truncated
// toward zero.
func MilliAmps(shuntMicroVolts int32, milliohms uint32) int32 {
	return int32(int64(shuntMicroVolts) / int64(milliohms))
}

// MilliWatts is bus mV * mA / 1000, truncated toward zero.
func MilliWatts(busMilliVolts, milliAmps int32) int64 {
	return int64(busMilliVolts) * int64(milliAmps) / 1000
}

// ShuntVoltage reads the drop across the shunt of ch in microvolts. A
// powered down or disabled channel returns whatever the register last held.
func (d *Device) ShuntVoltage(ch Channel) (int32, error) {
	if err := ch.check(); err != nil {
		return 0, err
	}
	v, err := d.ReadRegister(ch.ShuntRegister())
	if err != nil {
		return 0, err
	}
	return ShuntMicroVolts(v), nil
}

// BusVoltage reads the load side voltage of ch in millivolts, with the same
// staleness caveat as ShuntVoltage.
func (d *Device) BusVoltage(ch Channel) (int32, error) {
	if err := ch.check(); err != nil {
		return 0, err
	}
	v, err := d.ReadRegister(ch.BusRegister())
	if err != nil {
		return 0, err
	}
	return BusMilliVolts(v), nil
}

// Current reads the shunt of ch and returns milliamps.
func (d *Device) Current(ch Channel) (int32, error) {
	uv, err := d.ShuntVoltage(ch)
	if err != nil {
		return 0, err
	}
	return MilliAmps(uv, d.shunt[ch.index()]), nil
}

// Power returns bus voltage times current of ch in milliwatts. The two
// registers are read one after the other, so in continuous mode they may
// belong to different conversions.
func (d *Device) Power(ch Channel) (int64, error) {
	mv, err := d.BusVoltage(ch)
	if err != nil {
		return 0, err
	}
	ma, err := d.Current(ch)
	if err != nil {
		return 0, err
	}
	return MilliWatts(mv, ma), nil
}

// Reading is one channel's voltages and derived values.
type Reading struct {
	Channel          Channel
	ShuntMicroVolts  int32
	BusMilliVolts    int32
	CurrentMilliAmps int32
	PowerMilliWatts  int64
}

// Read takes the shunt and bus registers of ch, two transactions, and
// derives current and power from them.
func (d *Device) Read(ch Channel) (Reading, error) {
	r := Reading{Channel: ch}
	uv, err := d.ShuntVoltage(ch)
	if err != nil {
		return r, err
	}
	mv, err := d.BusVoltage(ch)
	if err != nil {
		return r, err
	}
	r.ShuntMicroVolts = uv
	r.BusMilliVolts = mv
	r.CurrentMilliAmps = MilliAmps(uv, d.shunt[ch.index()])
	r.PowerMilliWatts = MilliWatts(mv, r.CurrentMilliAmps)
	return r, nil
}
