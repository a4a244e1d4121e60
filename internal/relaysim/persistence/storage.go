// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"github.com/ffutop/modbus-relay/internal/relaysim/model"
)

// Storage defines the interface for keeping the simulated board's registers.
type Storage interface {
	// Load returns the bank, creating an empty one if no data exists.
	Load() (*model.Bank, error)

	// Save saves the current bank to storage.
	Save(bank *model.Bank) error

	// OnWrite is a hook called whenever a register is modified.
	OnWrite(address uint16)

	// Close releases the storage.
	Close() error
}
