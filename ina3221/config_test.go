// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ina3221_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinasystems/ina3221/ina3221"
)

func TestDecodeDefault(t *testing.T) {
	c := ina3221.DecodeConfiguration(ina3221.ConfigDefault)
	assert.Equal(t, ina3221.Configuration{
		Enabled:         [3]bool{true, true, true},
		Averaging:       ina3221.Samples1,
		BusConversion:   ina3221.Convert1100us,
		ShuntConversion: ina3221.Convert1100us,
		Mode:            ina3221.ContinuousShuntBus,
	}, c)
	assert.Equal(t, ina3221.ConfigDefault, c.Word())
}

func TestDecodeEveryWord(t *testing.T) {
	for v := 0; v <= 0xffff; v++ {
		c := ina3221.DecodeConfiguration(uint16(v))
		if !c.Mode.Valid() || !c.Averaging.Valid() {
			t.Fatalf("%#04x: decoded %+v", v, c)
		}
		want := uint16(v)
		if want&0x7 == 4 {
			want &^= 0x7
		}
		if c.Word() != want {
			t.Fatalf("%#04x: word %#04x", v, c.Word())
		}
	}
}

func TestPowerModeRoundTrip(t *testing.T) {
	d, chip := newDevice(t)
	for _, m := range ina3221.OperatingModes() {
		require.NoError(t, d.SetPowerMode(m), m.String())
		got, err := d.PowerMode()
		require.NoError(t, err)
		assert.Equal(t, m, got)
		// fields other than MODE survive the read-modify-write
		assert.EqualValues(t, ina3221.ConfigDefault&^0x7,
			chip.Register(ina3221.RegConfig)&^0x7)
	}
	err := d.SetPowerMode(4)
	assert.True(t, errors.Is(err, ina3221.ErrInvalidConfig))
}

func TestAlternatePowerDownDecodes(t *testing.T) {
	d, chip := newDevice(t)
	chip.Set(ina3221.RegConfig, ina3221.ConfigDefault&^0x7|0x4)
	m, err := d.PowerMode()
	require.NoError(t, err)
	assert.Equal(t, ina3221.PowerDown, m)
}

func TestAveragingRoundTrip(t *testing.T) {
	d, chip := newDevice(t)
	samples := []int{1, 4, 16, 64, 128, 256, 512, 1024}
	for i, n := range samples {
		avg := ina3221.Averaging(i)
		assert.Equal(t, n, avg.Samples())
		require.NoError(t, d.SetAveraging(avg))
		got, err := d.Averaging()
		require.NoError(t, err)
		assert.Equal(t, avg, got)
		c, err := d.Configuration()
		require.NoError(t, err)
		assert.Equal(t, ina3221.ContinuousShuntBus, c.Mode)
		assert.Equal(t, [3]bool{true, true, true}, c.Enabled)
		assert.EqualValues(t, uint16(i)<<9|ina3221.ConfigDefault&^0x0e00,
			chip.Register(ina3221.RegConfig))
	}
	assert.True(t, errors.Is(d.SetAveraging(8), ina3221.ErrInvalidConfig))
}

func TestParse(t *testing.T) {
	for _, m := range ina3221.OperatingModes() {
		got, err := ina3221.ParseOperatingMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ina3221.ParseOperatingMode("turbo")
	assert.True(t, errors.Is(err, ina3221.ErrInvalidConfig))

	for _, s := range []string{"1", "4", "16", "64", "128", "256", "512", "1024"} {
		avg, err := ina3221.ParseAveraging(s)
		require.NoError(t, err)
		assert.Equal(t, s, avg.String())
	}
	for _, s := range []string{"0", "2", "2048", "many"} {
		_, err := ina3221.ParseAveraging(s)
		assert.True(t, errors.Is(err, ina3221.ErrInvalidConfig), s)
	}
}

func TestChannelEnable(t *testing.T) {
	d, chip := newDevice(t)
	require.NoError(t, d.SetChannelEnabled(ina3221.Channel2, false))
	assert.EqualValues(t, 0x5127, chip.Register(ina3221.RegConfig))
	on, err := d.ChannelEnabled(ina3221.Channel2)
	require.NoError(t, err)
	assert.False(t, on)

	require.NoError(t, d.DisableAllChannels())
	assert.EqualValues(t, 0x0127, chip.Register(ina3221.RegConfig))

	require.NoError(t, d.SetChannelEnabled(ina3221.Channel3, true))
	assert.EqualValues(t, 0x1127, chip.Register(ina3221.RegConfig))

	require.NoError(t, d.EnableAllChannels())
	assert.EqualValues(t, 0x7127, chip.Register(ina3221.RegConfig))

	err = d.SetChannelEnabled(4, true)
	assert.True(t, errors.Is(err, ina3221.ErrInvalidConfig))
}

func TestReset(t *testing.T) {
	d, chip := newDevice(t)
	require.NoError(t, d.SetAveraging(ina3221.Samples512))
	require.NoError(t, d.SetPowerMode(ina3221.PowerDown))
	require.NoError(t, d.Reset())
	assert.EqualValues(t, ina3221.ConfigDefault,
		chip.Register(ina3221.RegConfig))
	c, err := d.Configuration()
	require.NoError(t, err)
	assert.False(t, c.Reset)
}

func TestTrigger(t *testing.T) {
	d, chip := newDevice(t)
	chip.ConversionPolls = 3
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, d.Trigger(ctx, ina3221.OneShotShuntBus,
		time.Millisecond))
	m, err := d.PowerMode()
	require.NoError(t, err)
	assert.Equal(t, ina3221.OneShotShuntBus, m)

	err = d.Trigger(ctx, ina3221.ContinuousBus, time.Millisecond)
	assert.True(t, errors.Is(err, ina3221.ErrInvalidConfig))
}

func TestTriggerTimeout(t *testing.T) {
	d, chip := newDevice(t)
	chip.ConversionPolls = 1 << 30
	ctx, cancel := context.WithTimeout(context.Background(),
		20*time.Millisecond)
	defer cancel()
	err := d.Trigger(ctx, ina3221.OneShotBus, time.Millisecond)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestConversionReadyClearsOnRead(t *testing.T) {
	d, _ := newDevice(t)
	require.NoError(t, d.SetPowerMode(ina3221.OneShotShunt))
	ready, err := d.ConversionReady()
	require.NoError(t, err)
	assert.True(t, ready)
	ready, err = d.ConversionReady()
	require.NoError(t, err)
	assert.False(t, ready)
}
