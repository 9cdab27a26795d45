// Copyright © 2015-2020 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by the GPL-2 license described in the
// LICENSE file.

// Package goes runs the power monitor commands from one multi-call program.
package goes

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/platinasystems/flags"
	"github.com/platinasystems/log"
)

const DefaultLang = "en_US.UTF-8"

const (
	Builtin Kind = 1 + iota
	Daemon
	Disabled
)

var (
	// Lang may be set prior to Main for alternate apropos and man text.
	Lang = DefaultLang

	Stdout io.Writer = os.Stdout
)

type ByName map[string]*Goes

type Goes struct {
	Name    string
	Close   func() error
	Main    func(...string) error
	Kind    Kind
	Usage   string
	Apropos map[string]string
	Man     map[string]string
}

type Kind int

type aproposer interface {
	Apropos() map[string]string
}

type kinder interface {
	Kind() Kind
}

type mainer interface {
	Main(...string) error
}

type manner interface {
	Man() map[string]string
}

type usager interface {
	Usage() string
}

func (byName ByName) Keys() []string {
	keys := make([]string, 0, len(byName))
	for k := range byName {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Main runs the named command with the remaining args. The first argument
// is skipped if it isn't a command, so Main(os.Args...) works whether the
// program was called by its own name or through a command named link.
//
// "-h", "-help", "--help", "-apropos", "-man" and "-usage" print the
// command's text instead of running it.
//
// A daemon is run in the foreground until it returns or the process gets
// SIGTERM or an interrupt, whereupon its Close is called.
func (byName ByName) Main(args ...string) error {
	if len(args) > 0 {
		if _, found := byName[filepath.Base(args[0])]; found {
			args[0] = filepath.Base(args[0])
		} else {
			args = args[1:]
		}
	}
	if len(args) < 1 {
		return fmt.Errorf("COMMAND: missing; try one of: %s",
			strings.Join(byName.Keys(), ", "))
	}
	name := args[0]
	g := byName[name]
	if g == nil {
		return fmt.Errorf("%s: command not found", name)
	}
	flag, args := flags.New(args[1:],
		"-h", "-help", "--help",
		"-apropos", "--apropos",
		"-man", "--man",
		"-usage", "--usage")
	switch {
	case flag.ByName["-h"] || flag.ByName["-help"] || flag.ByName["--help"]:
		fmt.Fprintln(Stdout, g.help())
		return nil
	case flag.ByName["-apropos"] || flag.ByName["--apropos"]:
		fmt.Fprintln(Stdout, name, "-", alt(g.Apropos))
		return nil
	case flag.ByName["-man"] || flag.ByName["--man"]:
		fmt.Fprintln(Stdout, g.help())
		return nil
	case flag.ByName["-usage"] || flag.ByName["--usage"]:
		fmt.Fprintln(Stdout, "usage:\t"+strings.TrimSpace(g.Usage))
		return nil
	}
	if g.Kind != Daemon || g.Close == nil {
		return g.Main(args...)
	}

	sigch := make(chan os.Signal, 1)
	done := make(chan struct{})
	signal.Notify(sigch, syscall.SIGTERM, os.Interrupt)
	defer signal.Stop(sigch)
	go func() {
		select {
		case sig := <-sigch:
			log.Print("daemon", "info", name, ": ", sig)
			g.Close()
		case <-done:
		}
	}()
	err := g.Main(args...)
	close(done)
	if err != nil {
		log.Print("daemon", "err", name, ": ", err)
	}
	return err
}

func (g *Goes) help() string {
	if man := alt(g.Man); len(man) > 0 {
		return fmt.Sprint("usage:\t", strings.TrimSpace(g.Usage), "\n",
			man)
	}
	return fmt.Sprint("usage:\t", strings.TrimSpace(g.Usage))
}

func alt(m map[string]string) string {
	for _, lang := range []string{os.Getenv("LANG"), Lang, DefaultLang} {
		if s, found := m[lang]; found {
			return s
		}
	}
	return ""
}

// Plot commands on map.
func (byName ByName) Plot(cmds ...interface{}) {
	for _, v := range cmds {
		g := new(Goes)
		if method, found := v.(fmt.Stringer); found {
			g.Name = method.String()
		} else {
			panic(fmt.Errorf("%T: doesn't have String method", v))
		}
		if _, found := byName[g.Name]; found {
			panic(fmt.Errorf("%s: duplicate", g.Name))
		}
		if method, found := v.(mainer); found {
			g.Main = method.Main
		} else {
			panic(fmt.Errorf("%s: doesn't have Main method",
				g.Name))
		}
		if method, found := v.(io.Closer); found {
			g.Close = method.Close
		}
		if method, found := v.(kinder); found {
			g.Kind = method.Kind()
			if g.Kind == Disabled {
				continue
			}
		}
		if method, found := v.(usager); found {
			g.Usage = method.Usage()
		}
		if method, found := v.(aproposer); found {
			g.Apropos = method.Apropos()
		}
		if method, found := v.(manner); found {
			g.Man = method.Man()
		}
		byName[g.Name] = g
	}
}
