// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	gxserial "github.com/grid-x/serial"

	"github.com/ffutop/modbus-relay/internal/config"
	rtupacket "github.com/ffutop/modbus-relay/modbus/rtu"
	"github.com/ffutop/modbus-relay/transport"
)

var _ transport.Upstream = (*Server)(nil)

// Server implements a Modbus RTU Server (Upstream).
// It acts as a Slave on the serial bus, waiting for requests from an external Master.
type Server struct {
	Config config.SerialConfig
	// SlaveID is the address answered to; 0 answers every address.
	SlaveID byte
	// ResponseSize pads replies with trailing zero bytes up to this length.
	ResponseSize int

	mu   sync.Mutex
	port io.ReadWriteCloser
}

// NewServer creates a new RTU Server.
func NewServer(cfg config.SerialConfig, slaveID byte) *Server {
	return &Server{
		Config:  cfg,
		SlaveID: slaveID,
	}
}

// Start opens the serial port and serves requests until ctx is done.
func (s *Server) Start(ctx context.Context, handler transport.RequestHandler) error {
	port, err := gxserial.Open(&gxserial.Config{
		Address:  s.Config.Device,
		BaudRate: s.Config.BaudRate,
		DataBits: s.Config.DataBits,
		StopBits: s.Config.StopBits,
		Parity:   s.Config.Parity,
		Timeout:  s.Config.Timeout, // Read timeout
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.Config.Device, err)
	}
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	defer s.Close()
	slog.Info("RTU Server listening", "device", s.Config.Device, "slaveID", s.SlaveID)

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	return s.scanLoop(ctx, port, handler)
}

// Close closes the serial port. It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

func (s *Server) scanLoop(ctx context.Context, port io.ReadWriter, handler transport.RequestHandler) error {
	buf := make([]byte, rtupacket.MaxSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		// Read 1 byte to unblock
		n, err := port.Read(buf[:1])
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			if errors.Is(err, gxserial.ErrTimeout) {
				continue
			}
			return fmt.Errorf("read request: %w", err)
		}
		if n == 0 {
			continue
		}

		// The header covers the byte count of variable length requests.
		current := 1
		current += readUpTo(port, buf[current:rtupacket.RequestHeaderSize])
		if current < 2 {
			continue
		}

		expectedLen, err := rtupacket.CalculateRequestLength(buf[1], buf[:current])
		if err != nil {
			slog.Debug("Discarding request", "err", err)
			continue
		}
		if expectedLen > len(buf) {
			continue
		}
		if current < expectedLen {
			current += readUpTo(port, buf[current:expectedLen])
		}
		if current != expectedLen {
			slog.Debug("Discarding short request", "got", current, "want", expectedLen)
			continue
		}

		frame := buf[:expectedLen]
		slog.Debug("recv from modbus master", "request", hex.EncodeToString(frame))
		reply, err := HandleFrame(ctx, frame, s.SlaveID, s.ResponseSize, handler)
		if err != nil {
			slog.Warn("Request not answered", "err", err)
			continue
		}
		if reply == nil {
			continue
		}
		slog.Debug("send to modbus master", "response", hex.EncodeToString(reply))
		if _, err := port.Write(reply); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
}

// readUpTo fills buf until it is full or the port stops delivering.
func readUpTo(r io.Reader, buf []byte) int {
	current := 0
	for current < len(buf) {
		n, err := r.Read(buf[current:])
		current += n
		if err != nil || n == 0 {
			break
		}
	}
	return current
}

// HandleFrame decodes one request frame, passes it to handler and encodes
// the reply, padded to responseSize. Frames for another slave yield nil, nil.
func HandleFrame(ctx context.Context, frame []byte, slaveID byte, responseSize int, handler transport.RequestHandler) ([]byte, error) {
	req, err := rtupacket.Decode(frame)
	if err != nil {
		return nil, err
	}
	if slaveID != 0 && req.SlaveID != slaveID {
		return nil, nil
	}

	pdu, err := handler(ctx, req.SlaveID, req.Pdu)
	if err != nil {
		return nil, err
	}

	resp := &rtupacket.ApplicationDataUnit{SlaveID: req.SlaveID, Pdu: pdu}
	raw, err := resp.Encode()
	if err != nil {
		return nil, err
	}
	for len(raw) < responseSize {
		raw = append(raw, 0)
	}
	return raw, nil
}
