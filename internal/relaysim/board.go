// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package relaysim simulates a 4-channel Modbus RTU relay board. It answers
// write single register requests the way the hardware does and can be told
// to misbehave on a given channel.
package relaysim

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ffutop/modbus-relay/internal/relaysim/model"
	"github.com/ffutop/modbus-relay/internal/relaysim/persistence"
	"github.com/ffutop/modbus-relay/modbus"
)

// Register values accepted by the board.
const (
	StateOn  uint16 = 0x0100
	StateOff uint16 = 0x0200
)

// ErrSilent is returned by Handle for a request the board swallows.
var ErrSilent = errors.New("relaysim: no reply")

// Fault alters the board's reply for one channel. The write itself is still
// applied.
type Fault struct {
	// FunctionCode replaces the echoed function code when non-zero.
	FunctionCode byte
	// Silent drops the reply.
	Silent bool
}

// Board is the register logic of a simulated relay board.
type Board struct {
	bank    *model.Bank
	storage persistence.Storage

	mu     sync.Mutex
	faults map[uint16]Fault
}

// NewBoard loads the board's registers from storage.
func NewBoard(storage persistence.Storage) (*Board, error) {
	bank, err := storage.Load()
	if err != nil {
		return nil, fmt.Errorf("load registers: %w", err)
	}
	return &Board{
		bank:    bank,
		storage: storage,
		faults:  make(map[uint16]Fault),
	}, nil
}

// InjectFault makes every later reply for channel misbehave as f describes.
// A zero Fault clears it.
func (b *Board) InjectFault(channel uint16, f Fault) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if f == (Fault{}) {
		delete(b.faults, channel)
		return
	}
	b.faults[channel] = f
}

// State returns the register of channel.
func (b *Board) State(channel uint16) (uint16, error) {
	return b.bank.Register(channel)
}

// Close saves and releases the board's storage.
func (b *Board) Close() error {
	if err := b.storage.Save(b.bank); err != nil {
		b.storage.Close()
		return err
	}
	return b.storage.Close()
}

// Handle answers one request. It has the shape of transport.RequestHandler.
func (b *Board) Handle(ctx context.Context, slaveID byte, req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	switch req.FunctionCode {
	case modbus.FuncCodeWriteSingleRegister:
		return b.handleWriteSingleRegister(req)
	case modbus.FuncCodeReadHoldingRegisters:
		return b.handleReadHoldingRegisters(req)
	default:
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalFunction), nil
	}
}

func (b *Board) handleWriteSingleRegister(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if value != StateOn && value != StateOff {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	if err := b.bank.WriteRegister(address, value); err != nil {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}
	b.storage.OnWrite(address)
	slog.Debug("relay switched", "channel", address, "value", value)

	resp := modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         append([]byte(nil), req.Data...),
	}

	b.mu.Lock()
	f, ok := b.faults[address]
	b.mu.Unlock()
	if !ok {
		return resp, nil
	}
	if f.Silent {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("channel %d: %w", address, ErrSilent)
	}
	if f.FunctionCode != 0 {
		resp.FunctionCode = f.FunctionCode
	}
	return resp, nil
}

func (b *Board) handleReadHoldingRegisters(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if len(req.Data) != 4 {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue), nil
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	data, err := b.bank.ReadRegisters(address, quantity)
	if err != nil {
		return modbus.Exception(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress), nil
	}

	respData := make([]byte, 1+len(data))
	respData[0] = byte(len(data))
	copy(respData[1:], data)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}, nil
}
