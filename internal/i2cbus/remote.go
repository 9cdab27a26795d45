// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package i2cbus

import (
	"fmt"
	"net/rpc"
	"sync"

	"github.com/platinasystems/atsock"
)

// ArbiterName is the abstract socket, "@i2cd", of the arbiter daemon.
const ArbiterName = "i2cd"

// Tx is one transaction forwarded to the arbiter. A zero ReadLen is a write.
type Tx struct {
	Bus     int
	Addr    uint8
	Write   []byte
	ReadLen int
}

type TxReply struct {
	Read []byte
}

// Arbiter is the rpc receiver of i2cd. It owns the physical buses and runs
// one transaction at a time on each, whichever process asked.
type Arbiter struct {
	mutex sync.Mutex
	open  func(index int) Bus
	buses map[int]*Locked
}

// NewArbiter returns an Arbiter that gets the Bus of each index from open.
func NewArbiter(open func(index int) Bus) *Arbiter {
	if open == nil {
		open = func(index int) Bus { return SMBus{Index: index} }
	}
	return &Arbiter{open: open, buses: make(map[int]*Locked)}
}

func (a *Arbiter) bus(index int) *Locked {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	bus, found := a.buses[index]
	if !found {
		bus = NewLocked(a.open(index))
		a.buses[index] = bus
	}
	return bus
}

func (a *Arbiter) Tx(tx Tx, reply *TxReply) error {
	bus := a.bus(tx.Bus)
	if tx.ReadLen == 0 {
		return bus.Write(tx.Addr, tx.Write)
	}
	if tx.ReadLen < 0 || tx.ReadLen > BlockMax {
		return fmt.Errorf("%w: read %d", ErrLength, tx.ReadLen)
	}
	reply.Read = make([]byte, tx.ReadLen)
	return bus.WriteRead(tx.Addr, tx.Write, reply.Read)
}

// Open returns the Bus of index and the func that releases it. With
// arbiter set the transactions go through i2cd.
func Open(index int, arbiter bool) (Bus, func() error, error) {
	if !arbiter {
		return SMBus{Index: index}, func() error { return nil }, nil
	}
	r, err := Dial(index)
	if err != nil {
		return nil, nil, err
	}
	return r, r.Close, nil
}

// Remote is a Bus whose transactions run in the i2cd arbiter.
type Remote struct {
	Index  int
	client *rpc.Client
}

// Dial connects to the arbiter for bus index.
func Dial(index int) (*Remote, error) {
	client, err := atsock.NewRpcClient(ArbiterName)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ArbiterName, err)
	}
	return NewRemote(client, index), nil
}

func NewRemote(client *rpc.Client, index int) *Remote {
	return &Remote{Index: index, client: client}
}

func (r *Remote) Close() error { return r.client.Close() }

func (r *Remote) Write(addr uint8, w []byte) error {
	var reply TxReply
	return r.client.Call("Arbiter.Tx", Tx{
		Bus:   r.Index,
		Addr:  addr,
		Write: w,
	}, &reply)
}

func (r *Remote) WriteRead(addr uint8, w, buf []byte) error {
	var reply TxReply
	if len(buf) == 0 {
		return fmt.Errorf("%w: read 0", ErrLength)
	}
	err := r.client.Call("Arbiter.Tx", Tx{
		Bus:     r.Index,
		Addr:    addr,
		Write:   w,
		ReadLen: len(buf),
	}, &reply)
	if err != nil {
		return err
	}
	if len(reply.Read) != len(buf) {
		return fmt.Errorf("%w: got %d of %d", ErrLength, len(reply.Read),
			len(buf))
	}
	copy(buf, reply.Read)
	return nil
}
