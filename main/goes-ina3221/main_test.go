// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinasystems/ina3221/goes"
)

func TestGoes(t *testing.T) {
	g := Goes()
	assert.Equal(t, []string{"i2cd", "ina3221", "ina3221d"}, g.Keys())
	assert.Equal(t, goes.Daemon, g["i2cd"].Kind)
	assert.Equal(t, goes.Daemon, g["ina3221d"].Kind)
	assert.NotEqual(t, goes.Daemon, g["ina3221"].Kind)
	assert.NotNil(t, g["ina3221d"].Close)
	for _, name := range g.Keys() {
		assert.NotEmpty(t, g[name].Usage, name)
		assert.NotEmpty(t, g[name].Apropos[goes.DefaultLang], name)
	}
}
