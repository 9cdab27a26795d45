// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package ina3221d provides the daemon that publishes the readings of an
// INA3221 power monitor to redis.
package ina3221d

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/rpc"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/atsock"
	"github.com/platinasystems/log"
	"github.com/platinasystems/parms"
	"github.com/platinasystems/redis"
	"github.com/platinasystems/redis/publisher"
	"github.com/platinasystems/redis/rpc/args"
	"github.com/platinasystems/redis/rpc/reply"

	"github.com/platinasystems/ina3221/goes"
	"github.com/platinasystems/ina3221/ina3221"
	"github.com/platinasystems/ina3221/internal/i2cbus"
)

const Name = "ina3221d"

// Open returns the transport of the configured bus.
var Open = i2cbus.Open

type Command struct {
	Info
	Init func()
	init sync.Once
}

type Info struct {
	mutex sync.Mutex
	rpc   *atsock.RpcServer
	pub   printer
	stop  chan struct{}
	dev   *ina3221.Device
	cfg   Config
	last  map[string]string

	backoff backoff.Backoff
	retry   time.Time
}

type printer interface {
	Print(...interface{}) (int, error)
}

func (*Command) String() string { return Name }

func (*Command) Usage() string { return "ina3221d [-config FILE]" }

func (*Command) Apropos() map[string]string {
	return map[string]string{
		"en_US.UTF-8": "INA3221 power monitor daemon",
	}
}

func (*Command) Man() map[string]string {
	return map[string]string{
		"en_US.UTF-8": `
DESCRIPTION
	Poll an INA3221 and publish, on change, these redis fields:

	PREFIX.mode
	PREFIX.averaging
	PREFIX.LABEL.enable
	PREFIX.LABEL.shunt.units.mOhm
	PREFIX.LABEL.bus.units.mV
	PREFIX.LABEL.shunt.units.uV
	PREFIX.LABEL.current.units.mA
	PREFIX.LABEL.power.units.mW

	PREFIX is "ina3221" unless configured. The first four may be set
	with hset. Readings of disabled channels
	and of a powered down chip aren't published. In a one-shot mode,
	each poll triggers a conversion and waits for it.

	The configuration is read from FILE or, if it exists,
	/etc/goes/ina3221d.yaml.`,
	}
}

func (*Command) Kind() goes.Kind { return goes.Daemon }

func (c *Command) Main(args ...string) error {
	parm, args := parms.New(args, "-config")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}

	stop := c.stopper()

	if c.Init != nil {
		c.init.Do(c.Init)
	}

	cfg := Vdev
	fn := parm.ByName["-config"]
	optional := len(fn) == 0
	if optional {
		fn = ConfigFile
	}
	if err := cfg.Load(fn); err != nil {
		if !optional || !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	err := redis.IsReady()
	if err != nil {
		return err
	}

	bus, closer, err := Open(cfg.Bus, cfg.Arbiter)
	if err != nil {
		return err
	}
	defer closer()

	pub, err := publisher.New()
	if err != nil {
		return err
	}
	defer pub.Close()

	if err = c.start(bus, cfg, pub); err != nil {
		return err
	}

	if c.rpc, err = atsock.NewRpcServer(Name); err != nil {
		return err
	}
	defer c.rpc.Close()

	rpc.Register(&c.Info)
	err = redis.Assign(redis.DefaultHash+":"+cfg.Prefix+".", Name, "Info")
	if err != nil {
		return err
	}

	return c.loop(stop)
}

// stopper makes the channel that Close closes. Main makes it first so that
// a Close during setup still ends the poll loop.
func (c *Command) stopper() <-chan struct{} {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.stop = make(chan struct{})
	return c.stop
}

func (c *Command) loop(stop <-chan struct{}) error {
	c.update()
	t := time.NewTicker(c.cfg.Poll)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return nil
		case <-t.C:
			c.update()
		}
	}
}

func (c *Command) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
	return nil
}

// start binds the Info to the chip on bus and writes the configured
// averaging, mode and channel enables.
func (i *Info) start(bus ina3221.Bus, cfg Config, pub printer) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	dev, err := ina3221.NewFromConfig(bus, cfg.Device())
	if err != nil {
		return err
	}
	if err = dev.Probe(); err != nil {
		return err
	}
	if cfg.Averaging != 0 {
		avg, err := cfg.averaging()
		if err != nil {
			return err
		}
		if err = dev.SetAveraging(avg); err != nil {
			return err
		}
	}
	for j := range cfg.Channels {
		ch := ina3221.Channels[j]
		if err = dev.SetChannelEnabled(ch, !cfg.channel(ch).Disable); err != nil {
			return err
		}
	}
	if len(cfg.Mode) > 0 {
		mode, err := ina3221.ParseOperatingMode(cfg.Mode)
		if err != nil {
			return err
		}
		if err = dev.SetPowerMode(mode); err != nil {
			return err
		}
	}

	i.dev = dev
	i.cfg = cfg
	i.pub = pub
	i.last = make(map[string]string)
	i.backoff = backoff.Backoff{
		Min:    cfg.Poll,
		Max:    64 * cfg.Poll,
		Factor: 2,
	}
	i.retry = time.Time{}
	return nil
}

// update polls the chip unless a previous failure has it backing off.
func (i *Info) update() error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if !i.retry.IsZero() && time.Now().Before(i.retry) {
		return nil
	}
	if err := i.poll(); err != nil {
		d := i.backoff.Duration()
		i.retry = time.Now().Add(d)
		log.Print("daemon", "err", Name, ": ", err, "; retry in ", d)
		return err
	}
	if !i.retry.IsZero() {
		log.Print("daemon", "info", Name, ": recovered")
		i.retry = time.Time{}
		i.backoff.Reset()
	}
	return nil
}

func (i *Info) poll() error {
	conf, err := i.dev.Configuration()
	if err != nil {
		return err
	}
	i.publish(i.key("mode"), conf.Mode)
	i.publish(i.key("averaging"), conf.Averaging)
	if conf.Mode.IsOneShot() {
		ctx, cancel := context.WithTimeout(context.Background(),
			i.cfg.Poll)
		err = i.dev.Trigger(ctx, conf.Mode, time.Millisecond)
		cancel()
		if err != nil {
			return err
		}
	}
	for _, ch := range ina3221.Channels {
		k := i.key(i.cfg.Label(ch))
		enabled := conf.Enabled[ch-1]
		i.publish(k+".enable", enabled)
		i.publish(k+".shunt.units.mOhm", i.dev.Shunt(ch))
		if !enabled || conf.Mode == ina3221.PowerDown {
			continue
		}
		r, err := i.dev.Read(ch)
		if err != nil {
			return err
		}
		i.publish(k+".bus.units.mV", r.BusMilliVolts)
		i.publish(k+".shunt.units.uV", r.ShuntMicroVolts)
		i.publish(k+".current.units.mA", r.CurrentMilliAmps)
		i.publish(k+".power.units.mW", r.PowerMilliWatts)
	}
	return nil
}

func (i *Info) key(s string) string { return i.cfg.Prefix + "." + s }

func (i *Info) publish(key string, v interface{}) {
	s := fmt.Sprint(v)
	if s != i.last[key] {
		i.pub.Print(key, ": ", s)
		i.last[key] = s
	}
}

// Hset is the redis rpc method for the writable fields.
func (i *Info) Hset(args args.Hset, reply *reply.Hset) error {
	i.mutex.Lock()
	defer i.mutex.Unlock()

	if i.dev == nil {
		return fmt.Errorf("%s: not started", Name)
	}
	field, value := args.Field, string(args.Value)
	name := strings.TrimPrefix(field, i.cfg.Prefix+".")
	if name == field {
		return fmt.Errorf("cannot hset: %s", field)
	}
	var (
		pubv interface{}
		err  error
	)
	switch name {
	case "mode":
		var mode ina3221.OperatingMode
		if mode, err = ina3221.ParseOperatingMode(value); err == nil {
			err = i.dev.SetPowerMode(mode)
		}
		pubv = mode
	case "averaging":
		var avg ina3221.Averaging
		if avg, err = ina3221.ParseAveraging(value); err == nil {
			err = i.dev.SetAveraging(avg)
		}
		pubv = avg
	default:
		ch, attr := i.channelField(name)
		switch {
		case ch == 0:
			return fmt.Errorf("cannot hset: %s", field)
		case attr == "enable":
			var enable bool
			if enable, err = strconv.ParseBool(value); err == nil {
				err = i.dev.SetChannelEnabled(ch, enable)
			}
			pubv = enable
		case attr == "shunt.units.mOhm":
			var mohm uint64
			mohm, err = strconv.ParseUint(value, 0, 32)
			if err == nil {
				err = i.dev.SetShunt(ch, uint32(mohm))
			}
			pubv = i.dev.Shunt(ch)
		default:
			return fmt.Errorf("cannot hset: %s", field)
		}
	}
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	i.publish(field, pubv)
	*reply = 1
	return nil
}

// channelField splits LABEL.ATTR; a zero channel means no label matched.
func (i *Info) channelField(name string) (ina3221.Channel, string) {
	for _, ch := range ina3221.Channels {
		if attr := strings.TrimPrefix(name, i.cfg.Label(ch)+"."); attr != name {
			return ch, attr
		}
	}
	return 0, ""
}
