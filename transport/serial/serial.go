// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package serial is a raw, byte oriented serial port with bounded read and
// write calls.
//
// A port is always opened 8N1, without flow control, ignoring modem status
// lines and with echo, signals and line editing disabled. Read returns as soon
// as any byte is available, or with zero bytes once ReadTimeout has passed.
// Write fails with ErrTimeout when the line does not accept more bytes within
// WriteTimeout.
package serial

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const (
	// ReadTimeout bounds a single Read.
	ReadTimeout = 100 * time.Millisecond
	// WriteTimeout bounds the wait before each chunk of a Write.
	WriteTimeout = 100 * time.Millisecond
)

var (
	// ErrBadHandle is returned by operations on a closed port.
	ErrBadHandle = errors.New("serial: bad handle")
	// ErrTimeout is returned when a write could not complete in time.
	ErrTimeout = errors.New("serial: timeout")
	// ErrInvalidArgument is returned for malformed open arguments.
	ErrInvalidArgument = errors.New("serial: invalid argument")
	// ErrUnsupportedBaudRate is returned for rates outside SupportedBaudRates.
	ErrUnsupportedBaudRate = fmt.Errorf("%w: unsupported baud rate", ErrInvalidArgument)
)

// ConfigError is returned by Open when the device cannot be opened, queried
// or configured.
type ConfigError struct {
	Device string
	Op     string
	Err    error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("serial: %s %s: %v", e.Op, e.Device, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IOError wraps a failed system read, write or poll.
type IOError struct {
	Device string
	Op     string
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("serial: %s %s: %v", e.Op, e.Device, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// conn is the platform specific side of a Port.
type conn interface {
	read(p []byte) (int, error)
	write(p []byte) (int, error)
	close() error
}

// Port is an open serial device. It is not meant for concurrent exchanges;
// the mutex only keeps Close from racing an in-flight call.
type Port struct {
	device string

	mu sync.Mutex
	// c is nil once the port is closed.
	c conn
}

// Open opens and configures device at baudRate. The port is never returned
// half configured.
func Open(device string, baudRate int) (*Port, error) {
	if device == "" {
		return nil, &ConfigError{Device: device, Op: "open", Err: ErrInvalidArgument}
	}
	if err := ValidateBaudRate(baudRate); err != nil {
		return nil, &ConfigError{Device: device, Op: "open", Err: err}
	}
	c, err := openConn(device, baudRate)
	if err != nil {
		return nil, err
	}
	slog.Debug("opened serial port", "device", device, "baudRate", baudRate)
	return &Port{device: device, c: c}, nil
}

// Read performs one bounded read. It returns 0, nil when nothing arrived
// within ReadTimeout or the wait was interrupted.
func (p *Port) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.c == nil {
		return 0, fmt.Errorf("serial: read %s: %w", p.device, ErrBadHandle)
	}
	if len(b) == 0 {
		return 0, nil
	}
	return p.c.read(b)
}

// Write writes all of b or fails. On failure n reports how many bytes went
// out before it.
func (p *Port) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.c == nil {
		return 0, fmt.Errorf("serial: write %s: %w", p.device, ErrBadHandle)
	}
	if len(b) == 0 {
		return 0, nil
	}
	return p.c.write(b)
}

// Close releases the device. Closing a closed port does nothing.
func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.c == nil {
		return nil
	}
	err := p.c.close()
	p.c = nil
	slog.Debug("closed port", "device", p.device)
	if err != nil {
		return &IOError{Device: p.device, Op: "close", Err: err}
	}
	return nil
}
