// Copyright (c) 2025 The paywallet developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// paywalletctl is a command line payment wallet for permissioned identity
// ledgers. It pays the fees of ledger writes, sends tokens and keeps a
// journal of the payments it made.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jessevdk/go-flags"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}

		if errors.Is(err, errShowSubsystems) {
			os.Exit(0)
		}

		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses args and executes the selected command, writing its result to
// out.
func run(args []string, out io.Writer) error {
	cfg := defaultConfig()
	a := newApp(cfg, out)

	parser := flags.NewParser(cfg, flags.HelpFlag|flags.PassDoubleDash)
	if err := registerCommands(parser, a); err != nil {
		return err
	}

	// The config file is loaded first so the command line overrides it.
	cfgFile, explicit := preParseConfigFile(args)
	if err := loadConfigFile(parser, cfgFile, explicit); err != nil {
		return err
	}

	parser.CommandHandler = func(cmd flags.Commander, cmdArgs []string) error {
		if cmd == nil {
			return nil
		}

		if err := setup(cfg); err != nil {
			return err
		}
		defer closeLogRotator()

		if err := a.start(); err != nil {
			a.stop()
			return err
		}
		defer a.stop()

		return cmd.Execute(cmdArgs)
	}

	_, err := parser.ParseArgs(args)
	return err
}

// errShowSubsystems is returned after the subsystems were listed for
// --debuglevel=show.
var errShowSubsystems = errors.New("subsystems listed")

// setup validates the configuration and initializes logging.
func setup(cfg *config) error {
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		return errShowSubsystems
	}

	if err := cfg.validate(); err != nil {
		return err
	}

	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return err
	}

	if cfg.MaxLogFiles == 0 {
		return nil
	}

	return initLogRotator(
		cfg.logFile(), cfg.MaxLogFileSize, cfg.MaxLogFiles,
	)
}
