// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"fmt"
	"sync"
)

const (
	// Channels is the number of relays on the board, addressed 1..Channels.
	Channels = 4
	// Size is the byte size of a bank: one big-endian register per channel.
	Size = Channels * 2
)

// Bank holds the channel registers of a relay board.
type Bank struct {
	mu sync.RWMutex

	// data may be backed by a memory mapped file.
	data []byte
}

// NewBank creates a bank with every register zero.
func NewBank() *Bank {
	return &Bank{data: make([]byte, Size)}
}

// NewBankOn creates a bank over data, which must hold at least Size bytes.
func NewBankOn(data []byte) (*Bank, error) {
	if len(data) < Size {
		return nil, fmt.Errorf("bank needs %d bytes, got %d", Size, len(data))
	}
	return &Bank{data: data[:Size]}, nil
}

// ReadRegisters reads quantity registers starting at address and returns
// them big-endian, as they travel on the wire.
func (b *Bank) ReadRegisters(address, quantity uint16) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}
	start := int(address-1) * 2
	result := make([]byte, int(quantity)*2)
	copy(result, b.data[start:])
	return result, nil
}

// WriteRegister stores value in the register of channel address.
func (b *Bank) WriteRegister(address, value uint16) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := validateRange(address, 1); err != nil {
		return err
	}
	binary.BigEndian.PutUint16(b.data[int(address-1)*2:], value)
	return nil
}

// Register returns the register of channel address.
func (b *Bank) Register(address uint16) (uint16, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := validateRange(address, 1); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b.data[int(address-1)*2:]), nil
}

func validateRange(address, quantity uint16) error {
	if address < 1 || quantity < 1 || int(address)+int(quantity)-1 > Channels {
		return fmt.Errorf("address %d quantity %d out of range 1-%d", address, quantity, Channels)
	}
	return nil
}
