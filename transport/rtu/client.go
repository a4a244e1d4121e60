// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/ffutop/modbus-relay/internal/config"
	"github.com/ffutop/modbus-relay/modbus"
	rtupacket "github.com/ffutop/modbus-relay/modbus/rtu"
	"github.com/ffutop/modbus-relay/transport"
	"github.com/ffutop/modbus-relay/transport/serial"
)

// Client implements Downstream interface (Modbus RTU Master).
//
// Each Send writes one request and performs exactly one bounded read for the
// reply. Only the echoed header of the reply is checked.
type Client struct {
	serialPort

	request  []byte
	response [rtupacket.MaxEchoSize]byte
}

// NewClient allocates and initializes a RTU Client.
func NewClient(cfg config.SerialConfig) *Client {
	client := &Client{
		request: make([]byte, 0, rtupacket.MaxSize),
	}
	client.Device = cfg.Device
	client.BaudRate = cfg.BaudRate
	return client
}

// Send sends a PDU to the Downstream Slave and returns the raw reply. Errors
// are *transport.ExchangeError values naming the failed step.
func (mb *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) ([]byte, error) {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, &transport.ExchangeError{Stage: transport.StageSend, Err: err}
	}
	if mb.port == nil {
		return nil, &transport.ExchangeError{
			Stage: transport.StageSend,
			Err:   fmt.Errorf("%s not open: %w", mb.Device, serial.ErrBadHandle),
		}
	}

	adu := &rtupacket.ApplicationDataUnit{
		SlaveID: slaveID,
		Pdu:     pdu,
	}
	raw, err := adu.AppendEncode(mb.request[:0])
	if err != nil {
		return nil, &transport.ExchangeError{Stage: transport.StageSend, Err: err}
	}
	mb.request = raw

	slog.Debug("send to modbus slave", "request", hex.EncodeToString(raw))
	if _, err := mb.port.Write(raw); err != nil {
		return nil, &transport.ExchangeError{Stage: transport.StageSend, Err: err}
	}

	// Cleared so a short read cannot validate against an earlier reply.
	clear(mb.response[:])
	n, err := mb.port.Read(mb.response[:])
	if err != nil {
		return nil, &transport.ExchangeError{Stage: transport.StageReceive, Err: err}
	}
	resp := append([]byte(nil), mb.response[:n]...)
	slog.Debug("recv from modbus slave", "response", hex.EncodeToString(resp))

	if err := adu.VerifyEcho(resp); err != nil {
		return resp, &transport.ExchangeError{Stage: transport.StageVerify, Err: err}
	}
	return resp, nil
}
