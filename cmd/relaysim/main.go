// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Command relaysim serves a simulated 4-channel relay board on a serial
// device, for bench testing relayctl without hardware.
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
	"github.com/ffutop/modbus-relay/internal/relaysim"
	"github.com/ffutop/modbus-relay/internal/relaysim/model"
	"github.com/ffutop/modbus-relay/internal/relaysim/persistence"
	"github.com/ffutop/modbus-relay/transport/rtu"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		slog.Info("Shutting down...")
		cancel()
	}()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, err)
		return 2
	}

	configFile, _ := fs.GetString("config")
	cfg, err := config.LoadConfig(configFile, fs)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	// --slave_id is shared with relayctl but addresses the simulated board here.
	if f := fs.Lookup("slave_id"); f != nil && f.Changed {
		id, _ := fs.GetInt("slave_id")
		cfg.Simulator.SlaveID = id
	}

	logs := config.SetupLogger(cfg.Log, stdout)
	defer logs.Close()

	if cfg.Simulator.Serial.Device == "" {
		slog.Error("No serial device configured")
		return 2
	}

	board, err := newBoard(cfg.Simulator)
	if err != nil {
		slog.Error("Failed to create board", "err", err)
		return 1
	}
	defer board.Close()

	server := rtu.NewServer(cfg.Simulator.Serial, byte(cfg.Simulator.SlaveID))
	server.ResponseSize = cfg.Simulator.ResponseSize

	slog.Info("Starting relay board simulator...", "device", cfg.Simulator.Serial.Device, "slaveID", cfg.Simulator.SlaveID)
	if err := server.Start(ctx, board.Handle); err != nil {
		slog.Error("Simulator stopped with error", "err", err)
		return 1
	}
	slog.Info("Goodbye.")
	return 0
}

func newFlagSet(out io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("relaysim", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.StringP("config", "c", "", "Configuration file path.")
	fs.StringP("device", "p", "", "Serial port device name.")
	fs.IntP("baud_rate", "s", 9600, "Serial port speed.")
	fs.Int("slave_id", 1, "Modbus address of the simulated board (0 answers every address).")
	fs.Int("response_size", 8, "Pad replies with zero bytes up to this size.")
	fs.Int("fault_channel", 0, "Channel answered with a wrong function code (0 disables).")
	fs.Int("fault_function_code", 5, "Function code echoed on the faulty channel.")
	fs.String("persistence_type", "memory", "Register storage (memory, mmap, file).")
	fs.String("persistence_path", "", "Register file for mmap and file storage.")
	fs.StringP("log_level", "v", "info", "Log verbosity level (debug, info, warn, error).")
	fs.StringP("log_file", "L", "", "Log file name ('-' for logging to STDOUT only).")
	return fs
}

func newStorage(cfg config.PersistenceConfig) (persistence.Storage, error) {
	switch cfg.Type {
	case "", "memory":
		return persistence.NewMemoryStorage(), nil
	case "mmap", "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("%s persistence needs a path", cfg.Type)
		}
		if cfg.Type == "file" {
			return persistence.NewFileStorage(cfg.Path), nil
		}
		return persistence.NewMmapStorage(cfg.Path), nil
	default:
		return nil, fmt.Errorf("unknown persistence type %q", cfg.Type)
	}
}

func newBoard(cfg config.SimulatorConfig) (*relaysim.Board, error) {
	storage, err := newStorage(cfg.Persistence)
	if err != nil {
		return nil, err
	}
	board, err := relaysim.NewBoard(storage)
	if err != nil {
		return nil, err
	}
	if ch := cfg.Fault.Channel; ch != 0 {
		if ch < 1 || ch > model.Channels {
			board.Close()
			return nil, fmt.Errorf("fault channel %d out of range 1-%d", ch, model.Channels)
		}
		board.InjectFault(uint16(ch), relaysim.Fault{FunctionCode: byte(cfg.Fault.FunctionCode)})
		slog.Info("Fault injected", "channel", ch, "functionCode", cfg.Fault.FunctionCode)
	}
	return board, nil
}
