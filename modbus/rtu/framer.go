// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/ffutop/modbus-relay/modbus"
)

// RequestHeaderSize is enough of a request to size any supported frame.
const RequestHeaderSize = 7

// CalculateRequestLength returns the total length of a request ADU from its
// first bytes: [SlaveID, Func, Addr(2), Quant/Val(2), ByteCount].
func CalculateRequestLength(funcCode byte, header []byte) (int, error) {
	switch funcCode {
	case modbus.FuncCodeReadCoils,
		modbus.FuncCodeReadDiscreteInputs,
		modbus.FuncCodeReadHoldingRegisters,
		modbus.FuncCodeReadInputRegisters,
		modbus.FuncCodeWriteSingleCoil,
		modbus.FuncCodeWriteSingleRegister:
		// [SlaveID, Func, Addr(2), Val(2), CRC(2)]
		return 8, nil
	case modbus.FuncCodeWriteMultipleCoils,
		modbus.FuncCodeWriteMultipleRegisters:
		if len(header) < RequestHeaderSize {
			return 0, fmt.Errorf("need %d bytes to determine length for 0x%02X, got %d", RequestHeaderSize, funcCode, len(header))
		}
		byteCount := int(header[6])
		return RequestHeaderSize + byteCount + 2, nil
	default:
		return 0, fmt.Errorf("unsupported function code: 0x%02X", funcCode)
	}
}
