// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package crc implements the CRC16 variant used by Modbus RTU framing.
package crc

const (
	initial    = 0xFFFF
	polynomial = 0xA001
)

// CRC is a running CRC16/Modbus checksum. Call Reset before the first PushBytes.
type CRC struct {
	crc uint16
}

// Reset sets the checksum back to its initial value.
func (crc *CRC) Reset() *CRC {
	crc.crc = initial
	return crc
}

// PushBytes folds bs into the checksum, least significant bit first.
func (crc *CRC) PushBytes(bs []byte) *CRC {
	for _, b := range bs {
		crc.crc ^= uint16(b)
		for bit := 0; bit < 8; bit++ {
			if crc.crc&0x0001 != 0 {
				crc.crc = (crc.crc >> 1) ^ polynomial
			} else {
				crc.crc >>= 1
			}
		}
	}
	return crc
}

// Value returns the checksum. There is no final XOR.
func (crc *CRC) Value() uint16 {
	return crc.crc
}

// Checksum returns the CRC16/Modbus of data.
func Checksum(data []byte) uint16 {
	var crc CRC
	return crc.Reset().PushBytes(data).Value()
}
