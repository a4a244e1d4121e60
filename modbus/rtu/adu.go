// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"fmt"

	"github.com/ffutop/modbus-relay/modbus"
	"github.com/ffutop/modbus-relay/modbus/crc"
)

// ApplicationDataUnit is a PDU addressed to one slave on the serial line.
type ApplicationDataUnit struct {
	SlaveID byte
	Pdu     modbus.ProtocolDataUnit
}

// ValidationError reports a reply whose leading bytes do not echo the request.
type ValidationError struct {
	Want []byte
	Got  []byte
	// Exception is set when the slave answered with an exception reply.
	Exception *modbus.Error
}

func (e *ValidationError) Error() string {
	if e.Exception != nil {
		return fmt.Sprintf("modbus: response header '% x', want '% x': %v", e.Got, e.Want, e.Exception)
	}
	if len(e.Got) < len(e.Want) {
		return fmt.Sprintf("modbus: short response '% x', want header '% x'", e.Got, e.Want)
	}
	return fmt.Sprintf("modbus: unexpected response header '% x', want '% x'", e.Got, e.Want)
}

func (e *ValidationError) Unwrap() error {
	if e.Exception == nil {
		return nil
	}
	return e.Exception
}

// Decode parses an RTU frame and verifies its CRC.
func Decode(raw []byte) (adu *ApplicationDataUnit, err error) {
	length := len(raw)
	// Minimum size (including address, function and CRC)
	if length < MinSize {
		err = fmt.Errorf("modbus: frame length '%v' does not meet minimum '%v'", length, MinSize)
		return
	}

	var crc crc.CRC
	crc.Reset().PushBytes(raw[0 : length-2])
	checksum := uint16(raw[length-1])<<8 | uint16(raw[length-2])
	if checksum != crc.Value() {
		err = fmt.Errorf("modbus: frame crc '%v' does not match expected '%v'", checksum, crc.Value())
		return
	}
	adu = &ApplicationDataUnit{}
	adu.SlaveID = raw[0]
	adu.Pdu.FunctionCode = raw[1]
	adu.Pdu.Data = raw[2 : length-2]
	return
}

// Encode encodes PDU in an RTU frame:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 bytes, low byte first
func (adu *ApplicationDataUnit) Encode() ([]byte, error) {
	return adu.AppendEncode(nil)
}

// AppendEncode appends the encoded frame to dst. The CRC covers exactly the
// bytes appended before it.
func (adu *ApplicationDataUnit) AppendEncode(dst []byte) ([]byte, error) {
	length := len(adu.Pdu.Data) + 4
	if length > MaxSize {
		return dst, fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, MaxSize)
	}
	start := len(dst)
	dst = append(dst, adu.SlaveID, adu.Pdu.FunctionCode)
	dst = append(dst, adu.Pdu.Data...)

	checksum := crc.Checksum(dst[start:])
	return append(dst, byte(checksum), byte(checksum>>8)), nil
}

// VerifyEcho checks the first bytes of a write reply: slave id, function code
// and the high byte of the register address. The rest of the reply is not
// inspected, its CRC included.
func (req *ApplicationDataUnit) VerifyEcho(resp []byte) error {
	want := make([]byte, EchoHeaderSize)
	want[0] = req.SlaveID
	want[1] = req.Pdu.FunctionCode
	if len(req.Pdu.Data) > 0 {
		want[2] = req.Pdu.Data[0]
	}

	if len(resp) < EchoHeaderSize || !bytes.Equal(resp[:EchoHeaderSize], want) {
		got := resp
		if len(got) > EchoHeaderSize {
			got = got[:EchoHeaderSize]
		}
		verr := &ValidationError{Want: want, Got: append([]byte(nil), got...)}
		if len(resp) >= EchoHeaderSize && resp[1] == want[1]|0x80 {
			verr.Exception = &modbus.Error{FunctionCode: want[1], ExceptionCode: resp[2]}
		}
		return verr
	}
	return nil
}
