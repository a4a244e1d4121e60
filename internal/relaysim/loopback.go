// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package relaysim

import (
	"context"
	"io"
	"sync"

	"github.com/ffutop/modbus-relay/transport"
	"github.com/ffutop/modbus-relay/transport/rtu"
)

// Loopback is an in-memory serial line with a board on the far end. Every
// Write is one request frame; the next Read returns the board's reply, or
// nothing when the board stayed silent, like a port whose read timed out.
type Loopback struct {
	SlaveID      byte
	ResponseSize int

	handler transport.RequestHandler

	mu       sync.Mutex
	pending  []byte
	requests [][]byte
	ops      []string
	closed   bool
}

// NewLoopback connects a line to board. Replies are padded to responseSize.
func NewLoopback(board *Board, slaveID byte, responseSize int) *Loopback {
	return &Loopback{
		SlaveID:      slaveID,
		ResponseSize: responseSize,
		handler:      board.Handle,
	}
}

// Write hands one request frame to the board.
func (l *Loopback) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, io.ErrClosedPipe
	}
	frame := append([]byte(nil), p...)
	l.requests = append(l.requests, frame)
	l.ops = append(l.ops, "write")

	reply, err := rtu.HandleFrame(context.Background(), frame, l.SlaveID, l.ResponseSize, l.handler)
	if err != nil {
		reply = nil
	}
	l.pending = reply
	return len(p), nil
}

// Read returns the pending reply, at most len(p) bytes of it.
func (l *Loopback) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return 0, io.ErrClosedPipe
	}
	l.ops = append(l.ops, "read")
	n := copy(p, l.pending)
	l.pending = l.pending[n:]
	return n, nil
}

// Close closes the line.
func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true
	l.pending = nil
	return nil
}

// Requests returns a copy of every frame written so far.
func (l *Loopback) Requests() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([][]byte, len(l.requests))
	copy(out, l.requests)
	return out
}

// Ops returns the order of reads and writes on the line.
func (l *Loopback) Ops() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]string(nil), l.ops...)
}

// Dial returns a dialer that hands out this line whatever device is asked for.
func (l *Loopback) Dial() rtu.Dialer {
	return func(device string, baudRate int) (io.ReadWriteCloser, error) {
		l.mu.Lock()
		l.closed = false
		l.mu.Unlock()
		return l, nil
	}
}
