// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// This is a goes machine with the INA3221 power monitor commands; run
// through links named ina3221, ina3221d or i2cd, or as
// "goes-ina3221 COMMAND [ARGS]...".
package main

import (
	"fmt"
	"os"

	"github.com/platinasystems/ina3221/cmd/i2cd"
	"github.com/platinasystems/ina3221/cmd/ina3221cmd"
	"github.com/platinasystems/ina3221/cmd/ina3221d"
	"github.com/platinasystems/ina3221/goes"
)

func Goes() goes.ByName {
	g := make(goes.ByName)
	g.Plot(&i2cd.Command{},
		&ina3221cmd.Command{},
		&ina3221d.Command{},
	)
	return g
}

func main() {
	if err := Goes().Main(os.Args...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
