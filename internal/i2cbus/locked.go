// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package i2cbus

import "sync"

// Locked serialises the drivers of one process that share a Bus.
type Locked struct {
	mutex sync.Mutex
	bus   Bus
}

func NewLocked(bus Bus) *Locked { return &Locked{bus: bus} }

func (l *Locked) Write(addr uint8, w []byte) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.bus.Write(addr, w)
}

func (l *Locked) WriteRead(addr uint8, w, r []byte) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.bus.WriteRead(addr, w, r)
}

// Do holds the bus for every transaction f makes, e.g. a read-modify-write
// that must not interleave with another driver.
func (l *Locked) Do(f func(Bus) error) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return f(l.bus)
}
