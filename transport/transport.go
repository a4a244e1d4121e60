// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import (
	"context"
	"fmt"

	"github.com/ffutop/modbus-relay/modbus"
)

// RequestHandler answers a request a slave received from its master.
type RequestHandler func(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)

// Upstream serves requests coming from a Modbus master on the line.
type Upstream interface {
	// Start serves until ctx is done or the line fails.
	Start(ctx context.Context, handler RequestHandler) error
	Close() error
}

// Downstream represents a destination for requests (A Modbus Slave we connect to).
// It acts as a Client.
type Downstream interface {
	// Send sends a PDU to slaveID and returns the raw reply once its echoed
	// header is verified.
	Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) ([]byte, error)
	Connect(ctx context.Context) error
	Close() error
}

// Stage is the step of a request/response exchange.
type Stage string

const (
	StageSend    Stage = "send"
	StageReceive Stage = "receive"
	StageVerify  Stage = "verify"
)

// ExchangeError records which step of an exchange failed.
type ExchangeError struct {
	Stage Stage
	Err   error
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ExchangeError) Unwrap() error { return e.Err }
