// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ina3221_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/ina3221/ina3221"
)

func TestVoltageScale(t *testing.T) {
	for _, x := range []struct {
		raw     uint16
		shuntUV int32
		busMV   int32
	}{
		{0x0000, 0, 0},
		{0x0008, 40, 8},
		{0x0007, 0, 0}, // reserved low bits
		{0x7ff8, 163800, 32760},
		{0xfff8, -40, -8},
		{0x8000, -163840, -32768},
		{0x0c80, 16000, 3200},
	} {
		assert.Equal(t, x.shuntUV, ina3221.ShuntMicroVolts(x.raw), "%#04x", x.raw)
		assert.Equal(t, x.busMV, ina3221.BusMilliVolts(x.raw), "%#04x", x.raw)
	}
}

func TestChannelRegisters(t *testing.T) {
	assert.Equal(t, [3]uint8{0x01, 0x03, 0x05}, [3]uint8{
		ina3221.Channel1.ShuntRegister(),
		ina3221.Channel2.ShuntRegister(),
		ina3221.Channel3.ShuntRegister(),
	})
	assert.Equal(t, [3]uint8{0x02, 0x04, 0x06}, [3]uint8{
		ina3221.Channel1.BusRegister(),
		ina3221.Channel2.BusRegister(),
		ina3221.Channel3.BusRegister(),
	})
}

func TestBusVoltage(t *testing.T) {
	d, chip := newDevice(t)
	chip.SetBus(1, 1500) // 12.000 V
	chip.SetBus(2, 413)  // 3.304 V
	chip.SetBus(3, -1)   // -8 mV
	for ch, want := range map[ina3221.Channel]int32{
		ina3221.Channel1: 12000,
		ina3221.Channel2: 3304,
		ina3221.Channel3: -8,
	} {
		mv, err := d.BusVoltage(ch)
		require.NoError(t, err)
		assert.Equal(t, want, mv, ch.String())
	}
	_, err := d.BusVoltage(0)
	assert.True(t, errors.Is(err, ina3221.ErrInvalidConfig))
}

func TestCurrent(t *testing.T) {
	d, chip := newDevice(t)
	for _, mohm := range []uint32{1, 2, 10, 47, 100, 250} {
		for _, count := range []int16{0, 1, -1, 7, 250, -250, 4095, -4096} {
			for _, ch := range ina3221.Channels {
				require.NoError(t, d.SetShunt(ch, mohm))
				chip.SetShunt(int(ch), count)
				ma, err := d.Current(ch)
				require.NoError(t, err)
				mv := float64(count) * 40 / 1000
				want := mv / float64(mohm) * 1000
				assert.LessOrEqual(t, math.Abs(float64(ma)-want), 1.0,
					"%v count %d %d mOhm: %d mA", ch, count, mohm, ma)
			}
		}
	}
}

func TestPower(t *testing.T) {
	d, chip := newDevice(t)
	require.NoError(t, d.SetShunt(ina3221.Channel2, 100))
	chip.SetBus(2, 1500)   // 12 V
	chip.SetShunt(2, 1250) // 50 mV / 100 mOhm = 500 mA
	mw, err := d.Power(ina3221.Channel2)
	require.NoError(t, err)
	assert.EqualValues(t, 6000, mw)

	r, err := d.Read(ina3221.Channel2)
	require.NoError(t, err)
	assert.Equal(t, ina3221.Reading{
		Channel:          ina3221.Channel2,
		ShuntMicroVolts:  50000,
		BusMilliVolts:    12000,
		CurrentMilliAmps: 500,
		PowerMilliWatts:  6000,
	}, r)
}

func TestSetShunt(t *testing.T) {
	d, chip := newDevice(t)
	n := chip.Transactions()
	require.NoError(t, d.SetShunt(ina3221.Channel1, 20))
	require.NoError(t, d.SetShunt(ina3221.Channel3, 5))
	assert.Equal(t, n, chip.Transactions(), "setters touched the bus")

	err := d.SetShunt(ina3221.Channel1, 0)
	assert.True(t, errors.Is(err, ina3221.ErrInvalidConfig))
	assert.EqualValues(t, 20, d.Shunt(ina3221.Channel1))

	err = d.SetShunt(9, 10)
	assert.True(t, errors.Is(err, ina3221.ErrInvalidConfig))
	assert.EqualValues(t, 0, d.Shunt(9))
}

func TestBusFailure(t *testing.T) {
	d, chip := newDevice(t)
	require.NoError(t, d.SetShunt(ina3221.Channel1, 33))
	require.NoError(t, d.SetShunt(ina3221.Channel2, 44))
	require.NoError(t, d.SetShunt(ina3221.Channel3, 55))
	shunts := func() [3]uint32 {
		return [3]uint32{
			d.Shunt(ina3221.Channel1),
			d.Shunt(ina3221.Channel2),
			d.Shunt(ina3221.Channel3),
		}
	}
	want := shunts()

	txErr := errors.New("arbitration lost")
	// reads and writes are the transaction kinds each op issues.
	ops := []struct {
		name          string
		reads, writes bool
		op            func() error
	}{
		{"BusVoltage", true, false, func() error { _, err := d.BusVoltage(ina3221.Channel1); return err }},
		{"ShuntVoltage", true, false, func() error { _, err := d.ShuntVoltage(ina3221.Channel2); return err }},
		{"Current", true, false, func() error { _, err := d.Current(ina3221.Channel3); return err }},
		{"Power", true, false, func() error { _, err := d.Power(ina3221.Channel1); return err }},
		{"ChipID", true, false, func() error { _, err := d.ChipID(); return err }},
		{"PowerMode", true, false, func() error { _, err := d.PowerMode(); return err }},
		{"SetPowerMode", true, true, func() error { return d.SetPowerMode(ina3221.PowerDown) }},
		{"SetAveraging", true, true, func() error { return d.SetAveraging(ina3221.Samples64) }},
		{"EnableChannels", true, true, func() error { return d.EnableAllChannels() }},
		{"Reset", false, true, func() error { return d.Reset() }},
		{"WriteRegister", false, true, func() error { return d.WriteRegister(ina3221.RegConfig, 0) }},
	}
	for _, inject := range []string{"read", "write"} {
		for _, tc := range ops {
			chip.ReadErr, chip.WriteErr = nil, nil
			fails := tc.writes
			if inject == "read" {
				chip.ReadErr = txErr
				fails = tc.reads
			} else {
				chip.WriteErr = txErr
			}
			err := tc.op()
			if fails {
				assert.True(t, errors.Is(err, ina3221.ErrBus),
					"%s with %s error: %v", tc.name, inject, err)
				assert.True(t, errors.Is(err, txErr), tc.name)
			} else {
				assert.NoError(t, err, "%s with %s error", tc.name,
					inject)
			}
			assert.Equal(t, want, shunts(), tc.name)
		}
	}
}

// Reset and WriteRegister never read, so failing reads don't touch them.
func TestWriteOnlyIgnoresReadFailure(t *testing.T) {
	d, chip := newDevice(t)
	chip.ReadErr = errors.New("arbitration lost")
	require.NoError(t, d.WriteRegister(ina3221.RegConfig, 0x7120))
	assert.EqualValues(t, 0x7120, chip.Register(ina3221.RegConfig))
	require.NoError(t, d.Reset())
	assert.Equal(t, ina3221.ConfigDefault, chip.Register(ina3221.RegConfig))
}

func TestFailedWriteLeavesMode(t *testing.T) {
	d, chip := newDevice(t)
	chip.WriteErr = errors.New("nak")
	require.Error(t, d.SetPowerMode(ina3221.PowerDown))
	chip.WriteErr = nil
	m, err := d.PowerMode()
	require.NoError(t, err)
	assert.Equal(t, ina3221.ContinuousShuntBus, m)
}
