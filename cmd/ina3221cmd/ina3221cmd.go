// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ina3221cmd provides the ina3221 command to configure and read an
// INA3221 power monitor.
package ina3221cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/ina3221/ina3221"
	"github.com/platinasystems/ina3221/internal/i2cbus"
)

const (
	Name = "ina3221"

	minTimeout = 100 * time.Millisecond
)

// Open returns the transport of bus index, through the i2cd arbiter if
// arbiter is set, and the func that releases it.
var Open = i2cbus.Open

// OpenPeriph returns the named periph.io bus and the func that releases it.
var OpenPeriph = i2cbus.OpenPeriph

type Command struct {
	// Stdout defaults to os.Stdout
	Stdout io.Writer
}

func (*Command) String() string { return Name }

func (*Command) Usage() string {
	return `ina3221 [-bus N | -periph NAME] [-addr ADDR] [-i2cd] [-r1 MOHM]
	[-r2 MOHM] [-r3 MOHM] [-reset] [-avg SAMPLES] [-mode MODE] [-oneshot]
	[-id]`
}

func (*Command) Apropos() map[string]string {
	return map[string]string{
		"en_US.UTF-8": "configure and read an INA3221 power monitor",
	}
}

func (*Command) Man() map[string]string {
	return map[string]string{
		"en_US.UTF-8": `
DESCRIPTION
	Print the bus voltage, shunt voltage, current and power of each
	channel of the INA3221 at -bus N (default 0) and -addr ADDR
	(0x40 default, 0x41, 0x42 or 0x43).

	-i2cd	run each transaction through the i2cd arbiter
	-periph	use the periph.io bus NAME, e.g. "I2C1" or "/dev/i2c-1",
		instead of -bus
	-r1, -r2, -r3
		shunt resistance of the channel in milliohms (default 10)
	-reset	restore the chip's power-on configuration first
	-avg	samples averaged per conversion: 1, 4, 16, 64, 128, 256,
		512 or 1024
	-mode	power-down, oneshot-shunt, oneshot-bus, oneshot,
		continuous-shunt, continuous-bus or continuous
	-oneshot
		start a shunt and bus conversion and wait for it
	-id	print the manufacturer and die ID words only

	Readings of a powered down chip or disabled channel are whatever the
	registers last held.`,
	}
}

func (c *Command) Main(args ...string) (err error) {
	flag, args := flags.New(args, "-i2cd", "-reset", "-oneshot", "-id")
	parm, args := parms.New(args, "-bus", "-periph", "-addr",
		"-r1", "-r2", "-r3", "-avg", "-mode")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}

	index := 0
	if s := parm.ByName["-bus"]; len(s) > 0 {
		if index, err = strconv.Atoi(s); err != nil {
			return fmt.Errorf("-bus %s: %w", s, err)
		}
	}
	addr := ina3221.DefaultAddress
	if s := parm.ByName["-addr"]; len(s) > 0 {
		u, err := strconv.ParseUint(s, 0, 8)
		if err != nil {
			return fmt.Errorf("-addr %s: %w", s, err)
		}
		addr = ina3221.Address(u)
	}

	var (
		bus    i2cbus.Bus
		closer func() error
	)
	if name := parm.ByName["-periph"]; len(name) > 0 {
		if flag.ByName["-i2cd"] || len(parm.ByName["-bus"]) > 0 {
			return fmt.Errorf("-periph: excludes -bus and -i2cd")
		}
		bus, closer, err = OpenPeriph(name)
	} else {
		bus, closer, err = Open(index, flag.ByName["-i2cd"])
	}
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closer(); err == nil {
			err = cerr
		}
	}()

	d, err := ina3221.NewWithAddress(bus, addr)
	if err != nil {
		return err
	}
	for i, name := range []string{"-r1", "-r2", "-r3"} {
		s := parm.ByName[name]
		if len(s) == 0 {
			continue
		}
		mohm, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			return fmt.Errorf("%s %s: %w", name, s, err)
		}
		if err = d.SetShunt(ina3221.Channels[i], uint32(mohm)); err != nil {
			return err
		}
	}

	w := c.Stdout
	if w == nil {
		w = os.Stdout
	}

	if flag.ByName["-id"] {
		mfg, err := d.ManufacturerID()
		if err != nil {
			return err
		}
		die, err := d.ChipID()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "manufacturer: %#04x\ndie: %#04x\n", mfg, die)
		return nil
	}

	if flag.ByName["-reset"] {
		if err = d.Reset(); err != nil {
			return err
		}
	}
	if s := parm.ByName["-avg"]; len(s) > 0 {
		avg, err := ina3221.ParseAveraging(s)
		if err != nil {
			return err
		}
		if err = d.SetAveraging(avg); err != nil {
			return err
		}
	}
	if s := parm.ByName["-mode"]; len(s) > 0 {
		mode, err := ina3221.ParseOperatingMode(s)
		if err != nil {
			return err
		}
		if err = d.SetPowerMode(mode); err != nil {
			return err
		}
	}

	conf, err := d.Configuration()
	if err != nil {
		return err
	}
	if flag.ByName["-oneshot"] {
		timeout := conversionTimeout(conf)
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err = d.Trigger(ctx, ina3221.OneShotShuntBus, time.Millisecond)
		if err != nil {
			return err
		}
		conf.Mode = ina3221.OneShotShuntBus
	}

	readings := make([]ina3221.Reading, 0, ina3221.NumChannels)
	for _, ch := range ina3221.Channels {
		r, err := d.Read(ch)
		if err != nil {
			return err
		}
		readings = append(readings, r)
	}
	if isTerminal(w) {
		printTable(w, conf, readings)
	} else {
		printKeys(w, conf, readings)
	}
	return nil
}

// conversionTimeout allows twice the time of an averaged shunt plus bus
// conversion of all three channels, and never less than minTimeout.
func conversionTimeout(c ina3221.Configuration) time.Duration {
	per := c.ShuntConversion.Duration() + c.BusConversion.Duration()
	t := 2 * ina3221.NumChannels * time.Duration(c.Averaging.Samples()) * per
	if t < minTimeout {
		t = minTimeout
	}
	return t
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

func printKeys(w io.Writer, c ina3221.Configuration, rs []ina3221.Reading) {
	fmt.Fprintf(w, "%s.mode: %v\n", Name, c.Mode)
	fmt.Fprintf(w, "%s.averaging: %v\n", Name, c.Averaging)
	for _, r := range rs {
		k := fmt.Sprint(Name, ".", r.Channel)
		fmt.Fprintf(w, "%s.enable: %t\n", k, c.Enabled[r.Channel-1])
		fmt.Fprintf(w, "%s.bus.units.mV: %d\n", k, r.BusMilliVolts)
		fmt.Fprintf(w, "%s.shunt.units.uV: %d\n", k, r.ShuntMicroVolts)
		fmt.Fprintf(w, "%s.current.units.mA: %d\n", k, r.CurrentMilliAmps)
		fmt.Fprintf(w, "%s.power.units.mW: %d\n", k, r.PowerMilliWatts)
	}
}

func printTable(w io.Writer, c ina3221.Configuration, rs []ina3221.Reading) {
	fmt.Fprintf(w, "mode %v, averaging %v, conversion bus %v shunt %v\n",
		c.Mode, c.Averaging, c.BusConversion, c.ShuntConversion)
	fmt.Fprintf(w, "%-7s %-7s %8s %8s %8s %8s\n",
		"channel", "enabled", "bus mV", "shunt uV", "mA", "mW")
	for _, r := range rs {
		fmt.Fprintf(w, "%-7v %-7t %8d %8d %8d %8d\n", r.Channel,
			c.Enabled[r.Channel-1], r.BusMilliVolts, r.ShuntMicroVolts,
			r.CurrentMilliAmps, r.PowerMilliWatts)
	}
}
