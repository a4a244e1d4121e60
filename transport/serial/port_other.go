// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

//go:build !linux

package serial

import (
	"errors"
	"io"

	gxserial "github.com/grid-x/serial"
)

// gxConn drives the port through grid-x/serial where no termios code of our
// own exists. Writes are not bounded by WriteTimeout on these platforms.
type gxConn struct {
	device string
	port   io.ReadWriteCloser
}

func openConn(device string, baudRate int) (conn, error) {
	port, err := gxserial.Open(&gxserial.Config{
		Address:  device,
		BaudRate: baudRate,
		DataBits: 8,
		StopBits: 1,
		Parity:   "N",
		Timeout:  ReadTimeout,
	})
	if err != nil {
		return nil, &ConfigError{Device: device, Op: "open", Err: err}
	}
	return &gxConn{device: device, port: port}, nil
}

func (c *gxConn) read(p []byte) (int, error) {
	n, err := c.port.Read(p)
	if errors.Is(err, gxserial.ErrTimeout) {
		return n, nil
	}
	if err != nil {
		return n, &IOError{Device: c.device, Op: "read", Err: err}
	}
	return n, nil
}

func (c *gxConn) write(p []byte) (int, error) {
	n, err := c.port.Write(p)
	if err != nil {
		return n, &IOError{Device: c.device, Op: "write", Err: err}
	}
	if n < len(p) {
		return n, &IOError{Device: c.device, Op: "write", Err: io.ErrShortWrite}
	}
	return n, nil
}

func (c *gxConn) close() error {
	return c.port.Close()
}
