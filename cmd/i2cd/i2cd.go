// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package i2cd provides the daemon that owns the I2C buses and runs the
// transactions of other processes one at a time.
package i2cd

import (
	"fmt"
	"net/rpc"
	"sync"

	"github.com/platinasystems/atsock"
	"github.com/platinasystems/log"

	"github.com/platinasystems/ina3221/goes"
	"github.com/platinasystems/ina3221/internal/i2cbus"
)

type Command struct {
	mutex sync.Mutex
	rpc   *atsock.RpcServer
	stop  chan struct{}
}

func (*Command) String() string { return i2cbus.ArbiterName }

func (*Command) Usage() string { return i2cbus.ArbiterName }

func (*Command) Apropos() map[string]string {
	return map[string]string{
		"en_US.UTF-8": "i2c bus arbiter daemon",
	}
}

func (*Command) Kind() goes.Kind { return goes.Daemon }

func (c *Command) Main(args ...string) (err error) {
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	stop := make(chan struct{})
	c.mutex.Lock()
	c.stop = stop
	c.mutex.Unlock()

	if err = rpc.Register(i2cbus.NewArbiter(nil)); err != nil {
		return err
	}
	if c.rpc, err = atsock.NewRpcServer(i2cbus.ArbiterName); err != nil {
		return err
	}
	defer c.rpc.Close()
	log.Print("daemon", "info", i2cbus.ArbiterName, ": ready")
	<-stop
	return nil
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
