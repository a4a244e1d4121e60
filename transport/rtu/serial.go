// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ffutop/modbus-relay/transport/serial"
)

// Dialer opens the line a Client talks over.
type Dialer func(device string, baudRate int) (io.ReadWriteCloser, error)

// DialSerial opens a raw serial port.
func DialSerial(device string, baudRate int) (io.ReadWriteCloser, error) {
	port, err := serial.Open(device, baudRate)
	if err != nil {
		return nil, err
	}
	return port, nil
}

// serialPort has configuration and I/O controller.
type serialPort struct {
	Device   string
	BaudRate int
	// Dial defaults to DialSerial.
	Dial Dialer

	mu sync.Mutex
	// port is nil until Connect succeeds and again after Close.
	port io.ReadWriteCloser
}

// Connect opens the port. It does not retry.
func (sp *serialPort) Connect(ctx context.Context) (err error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	return sp.connect(ctx)
}

// connect connects to the serial port if it is not connected. Caller must hold the mutex.
func (sp *serialPort) connect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	if sp.port == nil {
		dial := sp.Dial
		if dial == nil {
			dial = DialSerial
		}
		port, err := dial(sp.Device, sp.BaudRate)
		if err != nil {
			return fmt.Errorf("could not open %s: %w", sp.Device, err)
		}
		sp.port = port
	}
	return nil
}

// Close closes the port. Closing a closed port does nothing.
func (sp *serialPort) Close() (err error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	return sp.close()
}

// close closes the serial port if it is connected. Caller must hold the mutex.
func (sp *serialPort) close() (err error) {
	if sp.port != nil {
		err = sp.port.Close()
		sp.port = nil
	}
	return
}
