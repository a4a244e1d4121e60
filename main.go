// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command relayctl switches all four channels of a Modbus RTU relay board
// on or off.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ffutop/modbus-relay/internal/config"
	"github.com/ffutop/modbus-relay/internal/relay"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("relayctl", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.StringP("config", "c", "", "Configuration file path.")
	fs.StringP("log_level", "v", "info", "Log verbosity level (debug, info, warn, error).")
	fs.StringP("log_file", "L", "", "Log file name ('-' for logging to STDERR only).")
	fs.Int("slave_id", relay.DefaultSlaveID, "Modbus address of the relay board.")
	fs.Usage = func() { usage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		if !errors.Is(err, pflag.ErrHelp) {
			fmt.Fprintln(stderr, err)
			usage(stderr, fs)
		}
		return exitUsage
	}

	cfg, err := config.LoadConfig(*configFile, fs)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return exitFailure
	}

	device, directive, ok := parseArgs(fs.Args(), cfg.Relay.Device)
	if !ok {
		usage(stderr, fs)
		return exitUsage
	}
	state, err := relay.ParseState(directive)
	if err != nil {
		usage(stderr, fs)
		return exitUsage
	}

	logs := config.SetupLogger(cfg.Log, stderr)
	defer logs.Close()

	if err := switchRelays(ctx, device, byte(cfg.Relay.SlaveID), state); err != nil {
		fmt.Fprintf(stderr, "failed turning relays %s: %v\n", state, err)
		return exitFailure
	}
	fmt.Fprintf(stdout, "success turning relays %s\n", state)
	return exitOK
}

// parseArgs accepts "DEVICE STATE", or "STATE" alone when a device is
// configured.
func parseArgs(args []string, configured string) (device, directive string, ok bool) {
	switch {
	case len(args) == 2:
		return args[0], args[1], true
	case len(args) == 1 && configured != "":
		return configured, args[0], true
	}
	return "", "", false
}

func switchRelays(ctx context.Context, device string, slaveID byte, state relay.State) error {
	ctrl := relay.New(device, slaveID)
	if err := ctrl.Open(ctx); err != nil {
		return err
	}
	defer ctrl.Close()

	slog.Debug("Switching relays", "device", device, "slaveID", slaveID, "state", state)
	return ctrl.SetChannelStates(ctx, state)
}

func usage(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "usage: relayctl [flags] SERIAL_PORT ON|OFF")
	fmt.Fprintln(w, "\nFlags:")
	fmt.Fprint(w, fs.FlagUsages())
}
