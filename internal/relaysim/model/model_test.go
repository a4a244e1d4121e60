// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBankWriteRead(t *testing.T) {
	b := NewBank()

	require.NoError(t, b.WriteRegister(1, 0x0100))
	require.NoError(t, b.WriteRegister(4, 0x0200))

	v, err := b.Register(1)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0100), v)

	data, err := b.ReadRegisters(1, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x02, 0x00}, data)
}

func TestBankRange(t *testing.T) {
	b := NewBank()

	tests := []struct {
		address, quantity uint16
	}{
		{0, 1},
		{5, 1},
		{4, 2},
		{1, 0},
		{0xFFFF, 2},
	}
	for _, tt := range tests {
		_, err := b.ReadRegisters(tt.address, tt.quantity)
		assert.Error(t, err, "address %d quantity %d", tt.address, tt.quantity)
	}
	assert.Error(t, b.WriteRegister(0, 1))
	assert.Error(t, b.WriteRegister(5, 1))
}

func TestNewBankOn(t *testing.T) {
	_, err := NewBankOn(make([]byte, Size-1))
	assert.Error(t, err)

	backing := make([]byte, Size)
	b, err := NewBankOn(backing)
	require.NoError(t, err)
	require.NoError(t, b.WriteRegister(2, 0x0102))
	assert.Equal(t, []byte{0x01, 0x02}, backing[2:4], "bank must write through to its backing slice")
}
