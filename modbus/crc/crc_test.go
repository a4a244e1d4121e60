// Copyright (c) 2014 Quoc-Viet Nguyen. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package crc

import (
	"testing"

	"github.com/sigurn/crc16"
	"pgregory.net/rapid"
)

func TestCRC(t *testing.T) {
	var crc CRC
	crc.Reset()
	crc.PushBytes([]byte{0x02, 0x07})

	if crc.Value() != 0x1241 {
		t.Fatalf("crc expected %v, actual %v", 0x1241, crc.Value())
	}
}

func TestChecksumVectors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint16
	}{
		{"Empty", nil, 0xFFFF},
		{"TwoBytes", []byte{0x02, 0x07}, 0x1241},
		{"ReadHoldingRegisters", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x0A}, 0xCDC5},
		{"CheckString", []byte("123456789"), 0x4B37},
		{"RelayChannel1On", []byte{0x01, 0x06, 0x00, 0x01, 0x01, 0x00}, 0x9AD9},
		{"RelayChannel4Off", []byte{0x01, 0x06, 0x00, 0x04, 0x02, 0x00}, 0x6BC9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Checksum(tt.data); got != tt.want {
				t.Errorf("Checksum(% x) = %#04x, want %#04x", tt.data, got, tt.want)
			}
		})
	}
}

func TestPushBytesIncremental(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		split := rapid.IntRange(0, len(data)).Draw(t, "split")

		var crc CRC
		crc.Reset().PushBytes(data[:split]).PushBytes(data[split:])
		if crc.Value() != Checksum(data) {
			t.Fatalf("split push %#04x differs from one-shot %#04x", crc.Value(), Checksum(data))
		}
	})
}

func TestChecksumMatchesTable(t *testing.T) {
	table := crc16.MakeTable(crc16.CRC16_MODBUS)
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		if got, want := Checksum(data), crc16.Checksum(data, table); got != want {
			t.Fatalf("Checksum(% x) = %#04x, table-driven %#04x", data, got, want)
		}
	})
}
