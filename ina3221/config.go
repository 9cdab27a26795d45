// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ina3221

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// OperatingMode is the MODE field, bits 2..0, of the configuration register.
type OperatingMode uint8

const (
	PowerDown OperatingMode = iota
	OneShotShunt
	OneShotBus
	OneShotShuntBus
	// 0b100 is a second power-down encoding; it decodes to PowerDown.
	_
	ContinuousShunt
	ContinuousBus
	ContinuousShuntBus
)

var operatingModeNames = map[OperatingMode]string{
	PowerDown:          "power-down",
	OneShotShunt:       "oneshot-shunt",
	OneShotBus:         "oneshot-bus",
	OneShotShuntBus:    "oneshot",
	ContinuousShunt:    "continuous-shunt",
	ContinuousBus:      "continuous-bus",
	ContinuousShuntBus: "continuous",
}

func decodeOperatingMode(bits uint16) OperatingMode {
	m := OperatingMode(bits & configModeMask)
	if m == 4 {
		m = PowerDown
	}
	return m
}

func (m OperatingMode) Valid() bool {
	_, found := operatingModeNames[m]
	return found
}

func (m OperatingMode) IsOneShot() bool {
	return m >= OneShotShunt && m <= OneShotShuntBus
}

func (m OperatingMode) IsContinuous() bool {
	return m >= ContinuousShunt && m <= ContinuousShuntBus
}

func (m OperatingMode) String() string {
	if s, found := operatingModeNames[m]; found {
		return s
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// ParseOperatingMode accepts the names printed by String.
func ParseOperatingMode(s string) (OperatingMode, error) {
	for m, name := range operatingModeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("%w: mode %q", ErrInvalidConfig, s)
}

// OperatingModes lists the settable modes in register order.
func OperatingModes() []OperatingMode {
	return []OperatingMode{
		PowerDown,
		OneShotShunt,
		OneShotBus,
		OneShotShuntBus,
		ContinuousShunt,
		ContinuousBus,
		ContinuousShuntBus,
	}
}

// Averaging is the AVG field, bits 11..9: samples averaged per conversion.
type Averaging uint8

const (
	Samples1 Averaging = iota
	Samples4
	Samples16
	Samples64
	Samples128
	Samples256
	Samples512
	Samples1024
)

var averagingSamples = [...]int{1, 4, 16, 64, 128, 256, 512, 1024}

func (a Averaging) Valid() bool { return a <= Samples1024 }

// Samples returns the number of averaged samples.
func (a Averaging) Samples() int {
	if !a.Valid() {
		return 0
	}
	return averagingSamples[a]
}

func (a Averaging) String() string {
	if !a.Valid() {
		return fmt.Sprintf("averaging(%d)", uint8(a))
	}
	return strconv.Itoa(a.Samples())
}

// ParseAveraging accepts a sample count: 1, 4, 16, 64, 128, 256, 512, 1024.
func ParseAveraging(s string) (Averaging, error) {
	n, err := strconv.Atoi(s)
	if err == nil {
		for i, samples := range averagingSamples {
			if samples == n {
				return Averaging(i), nil
			}
		}
	}
	return 0, fmt.Errorf("%w: averaging %q", ErrInvalidConfig, s)
}

// ConversionTime is a VBUSCT or VSHCT field. The driver decodes but never
// sets these; they stay at whatever the chip holds (1.1 ms after reset).
type ConversionTime uint8

const (
	Convert140us ConversionTime = iota
	Convert204us
	Convert332us
	Convert588us
	Convert1100us
	Convert2116us
	Convert4156us
	Convert8244us
)

var conversionMicros = [...]int{140, 204, 332, 588, 1100, 2116, 4156, 8244}

func (t ConversionTime) Duration() time.Duration {
	if int(t) >= len(conversionMicros) {
		return 0
	}
	return time.Duration(conversionMicros[t]) * time.Microsecond
}

func (t ConversionTime) String() string { return t.Duration().String() }

// Configuration is the decoded configuration register.
type Configuration struct {
	Reset           bool
	Enabled         [NumChannels]bool
	Averaging       Averaging
	BusConversion   ConversionTime
	ShuntConversion ConversionTime
	Mode            OperatingMode
}

// DecodeConfiguration unpacks a raw configuration word. Every bit pattern
// decodes.
func DecodeConfiguration(v uint16) Configuration {
	return Configuration{
		Reset: v&configReset != 0,
		Enabled: [NumChannels]bool{
			v&configChannel1 != 0,
			v&configChannel2 != 0,
			v&configChannel3 != 0,
		},
		Averaging:       Averaging((v & configAvgMask) >> configAvgShift),
		BusConversion:   ConversionTime((v & configBusCTMask) >> configBusCTShift),
		ShuntConversion: ConversionTime((v & configShuntCTMask) >> configShuntCTShift),
		Mode:            decodeOperatingMode(v),
	}
}

// Word packs c into a configuration register value.
func (c Configuration) Word() uint16 {
	var v uint16
	if c.Reset {
		v |= configReset
	}
	for i, on := range c.Enabled {
		if on {
			v |= channelEnableBit(Channel(i + 1))
		}
	}
	v |= uint16(c.Averaging&0x7) << configAvgShift
	v |= uint16(c.BusConversion&0x7) << configBusCTShift
	v |= uint16(c.ShuntConversion&0x7) << configShuntCTShift
	v |= uint16(c.Mode) & configModeMask
	return v
}

func channelEnableBit(ch Channel) uint16 {
	return configChannel1 >> (uint(ch) - 1)
}

// Configuration reads and decodes the configuration register.
func (d *Device) Configuration() (Configuration, error) {
	v, err := d.ReadRegister(RegConfig)
	if err != nil {
		return Configuration{}, err
	}
	return DecodeConfiguration(v), nil
}

// updateConfig reads the configuration register, replaces the bits in mask
// with bits, and writes it back. The two transactions aren't atomic; if the
// write fails the chip keeps its previous configuration and nothing here
// remembers the attempt. The reset bit is never written back.
func (d *Device) updateConfig(mask, bits uint16) error {
	v, err := d.ReadRegister(RegConfig)
	if err != nil {
		return err
	}
	v = v&^(mask|configReset) | bits&mask
	return d.WriteRegister(RegConfig, v)
}

// Reset sets the RST bit; the chip restores every register to its power-on
// value and clears RST itself.
func (d *Device) Reset() error {
	return d.WriteRegister(RegConfig, configReset)
}

// PowerMode reads the current operating mode from the chip.
func (d *Device) PowerMode() (OperatingMode, error) {
	c, err := d.Configuration()
	return c.Mode, err
}

// SetPowerMode is a read-modify-write of the MODE bits. Writing a one-shot
// mode starts a single conversion; use ConversionReady or Trigger to wait
// for it.
func (d *Device) SetPowerMode(mode OperatingMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, mode)
	}
	return d.updateConfig(configModeMask, uint16(mode))
}

// Averaging reads the current averaging setting from the chip.
func (d *Device) Averaging() (Averaging, error) {
	c, err := d.Configuration()
	return c.Averaging, err
}

// SetAveraging is a read-modify-write of the AVG bits.
func (d *Device) SetAveraging(avg Averaging) error {
	if !avg.Valid() {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, avg)
	}
	return d.updateConfig(configAvgMask, uint16(avg)<<configAvgShift)
}

// ChannelEnabled reports whether ch takes part in conversions.
func (d *Device) ChannelEnabled(ch Channel) (bool, error) {
	if err := ch.check(); err != nil {
		return false, err
	}
	c, err := d.Configuration()
	return c.Enabled[ch.index()], err
}

// SetChannelEnabled is a read-modify-write of one channel enable bit.
func (d *Device) SetChannelEnabled(ch Channel, enabled bool) error {
	if err := ch.check(); err != nil {
		return err
	}
	bit := channelEnableBit(ch)
	var v uint16
	if enabled {
		v = bit
	}
	return d.updateConfig(bit, v)
}

func (d *Device) EnableAllChannels() error {
	return d.updateConfig(configChannels, configChannels)
}

func (d *Device) DisableAllChannels() error {
	return d.updateConfig(configChannels, 0)
}

// ConversionReady returns the CVRF flag of the Mask/Enable register. The
// chip clears the flag on this read and on every configuration write.
func (d *Device) ConversionReady() (bool, error) {
	v, err := d.ReadRegister(RegMaskEnable)
	return v&maskConversionReady != 0, err
}

// Trigger writes a one-shot mode, which starts a conversion, then polls
// ConversionReady every interval until it's set or ctx is done.
func (d *Device) Trigger(ctx context.Context, mode OperatingMode,
	interval time.Duration) error {
	if !mode.IsOneShot() {
		return fmt.Errorf("%w: %v isn't a one-shot mode",
			ErrInvalidConfig, mode)
	}
	if err := d.SetPowerMode(mode); err != nil {
		return err
	}
	if interval <= 0 {
		interval = time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		ready, err := d.ConversionReady()
		if err != nil || ready {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
