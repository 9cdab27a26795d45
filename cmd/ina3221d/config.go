// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package ina3221d

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinasystems/ina3221/ina3221"
)

// ConfigFile is read, if present, when the daemon isn't given -config.
var ConfigFile = "/etc/goes/ina3221d.yaml"

// DefaultPrefix names the chip, not the daemon, so the published fields
// match those printed by the ina3221 command.
const DefaultPrefix = "ina3221"

// Vdev is the configuration before ConfigFile; a machine's Init may
// change it.
var Vdev = Config{
	Address: uint8(ina3221.DefaultAddress),
	Prefix:  DefaultPrefix,
	Poll:    5 * time.Second,
}

// Config of the monitored chip, e.g.
//
//	bus: 1
//	address: 0x41
//	i2cd: true
//	prefix: psu
//	poll: 2s
//	averaging: 16
//	mode: continuous
//	channels:
//	  - label: main
//	    shunt_milliohms: 2
//	  - label: aux
//	  - disable: true
type Config struct {
	Bus     int    `yaml:"bus"`
	Address uint8  `yaml:"address"`
	Arbiter bool   `yaml:"i2cd"`
	Prefix  string `yaml:"prefix"`

	Poll time.Duration `yaml:"poll"`

	// Averaging samples and Mode name are written at start; zero values
	// keep what the chip has.
	Averaging int    `yaml:"averaging"`
	Mode      string `yaml:"mode"`

	Channels []ChannelConfig `yaml:"channels"`
}

type ChannelConfig struct {
	// Label names the channel in published keys; default "chN".
	Label   string `yaml:"label"`
	Shunt   uint32 `yaml:"shunt_milliohms"`
	Disable bool   `yaml:"disable"`
}

// Load overlays the YAML file fn.
func (c *Config) Load(fn string) error {
	b, err := os.ReadFile(fn)
	if err != nil {
		return err
	}
	if err = yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("%s: %w", fn, err)
	}
	return nil
}

func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return fmt.Errorf("%w: %s", ina3221.ErrInvalidConfig,
			fmt.Sprintf(format, args...))
	}
	if !ina3221.Address(c.Address).Valid() {
		return invalid("address %#x", c.Address)
	}
	if c.Bus < 0 {
		return invalid("bus %d", c.Bus)
	}
	if len(c.Prefix) == 0 || strings.ContainsAny(c.Prefix, " \t\n:") {
		return invalid("prefix %q", c.Prefix)
	}
	if c.Poll <= 0 {
		return invalid("poll %v", c.Poll)
	}
	if c.Averaging != 0 {
		if _, err := c.averaging(); err != nil {
			return err
		}
	}
	if len(c.Mode) > 0 {
		if _, err := ina3221.ParseOperatingMode(c.Mode); err != nil {
			return err
		}
	}
	if len(c.Channels) > ina3221.NumChannels {
		return invalid("%d channels", len(c.Channels))
	}
	labels := make(map[string]bool)
	for _, ch := range ina3221.Channels {
		label := c.Label(ch)
		if strings.ContainsAny(label, " \t\n:") {
			return invalid("label %q", label)
		}
		if labels[label] {
			return invalid("duplicate label %q", label)
		}
		labels[label] = true
	}
	return nil
}

func (c *Config) averaging() (ina3221.Averaging, error) {
	return ina3221.ParseAveraging(strconv.Itoa(c.Averaging))
}

func (c *Config) channel(ch ina3221.Channel) ChannelConfig {
	if i := int(ch) - 1; i >= 0 && i < len(c.Channels) {
		return c.Channels[i]
	}
	return ChannelConfig{}
}

// Label of ch in published keys.
func (c *Config) Label(ch ina3221.Channel) string {
	if label := c.channel(ch).Label; len(label) > 0 {
		return label
	}
	return ch.String()
}

// Device returns the driver configuration.
func (c *Config) Device() ina3221.Config {
	cfg := ina3221.Config{Address: ina3221.Address(c.Address)}
	for i, ch := range ina3221.Channels {
		cfg.ShuntMilliohms[i] = c.channel(ch).Shunt
	}
	return cfg
}
