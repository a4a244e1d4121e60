// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package relaysim

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffutop/modbus-relay/internal/config"
	"github.com/ffutop/modbus-relay/internal/relaysim/persistence"
	"github.com/ffutop/modbus-relay/modbus"
	rtupacket "github.com/ffutop/modbus-relay/modbus/rtu"
	"github.com/ffutop/modbus-relay/transport/rtu"
)

func newBoard(t *testing.T) *Board {
	t.Helper()
	b, err := NewBoard(persistence.NewMemoryStorage())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBoardHandle(t *testing.T) {
	tests := []struct {
		name string
		req  modbus.ProtocolDataUnit
		want modbus.ProtocolDataUnit
	}{
		{
			name: "on",
			req:  modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x01, 0x01, 0x00}},
			want: modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x01, 0x01, 0x00}},
		},
		{
			name: "off",
			req:  modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x04, 0x02, 0x00}},
			want: modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x04, 0x02, 0x00}},
		},
		{
			name: "register outside relays",
			req:  modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x05, 0x01, 0x00}},
			want: modbus.Exception(6, modbus.ExceptionCodeIllegalDataAddress),
		},
		{
			name: "register zero",
			req:  modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x00, 0x01, 0x00}},
			want: modbus.Exception(6, modbus.ExceptionCodeIllegalDataAddress),
		},
		{
			name: "unknown state code",
			req:  modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x01, 0x03, 0x00}},
			want: modbus.Exception(6, modbus.ExceptionCodeIllegalDataValue),
		},
		{
			name: "short data",
			req:  modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x01}},
			want: modbus.Exception(6, modbus.ExceptionCodeIllegalDataValue),
		},
		{
			name: "unsupported function",
			req:  modbus.ProtocolDataUnit{FunctionCode: 5, Data: []byte{0x00, 0x01, 0xFF, 0x00}},
			want: modbus.Exception(5, modbus.ExceptionCodeIllegalFunction),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBoard(t)
			got, err := b.Handle(context.Background(), 1, tt.req)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Handle() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBoardReadHoldingRegisters(t *testing.T) {
	b := newBoard(t)
	ctx := context.Background()

	_, err := b.Handle(ctx, 1, modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x02, 0x01, 0x00}})
	require.NoError(t, err)

	got, err := b.Handle(ctx, 1, modbus.ProtocolDataUnit{FunctionCode: 3, Data: []byte{0x00, 0x01, 0x00, 0x04}})
	require.NoError(t, err)
	assert.Equal(t, []byte{8, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00}, got.Data)

	got, err = b.Handle(ctx, 1, modbus.ProtocolDataUnit{FunctionCode: 3, Data: []byte{0x00, 0x03, 0x00, 0x04}})
	require.NoError(t, err)
	assert.True(t, got.IsException())
}

func TestBoardFault(t *testing.T) {
	b := newBoard(t)
	ctx := context.Background()
	req := modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x03, 0x01, 0x00}}

	b.InjectFault(3, Fault{FunctionCode: 5})
	got, err := b.Handle(ctx, 1, req)
	require.NoError(t, err)
	assert.Equal(t, byte(5), got.FunctionCode)

	state, err := b.State(3)
	require.NoError(t, err)
	assert.Equal(t, StateOn, state, "a faulty reply still switches the relay")

	b.InjectFault(3, Fault{Silent: true})
	_, err = b.Handle(ctx, 1, req)
	assert.True(t, errors.Is(err, ErrSilent))

	b.InjectFault(3, Fault{})
	got, err = b.Handle(ctx, 1, req)
	require.NoError(t, err)
	assert.Equal(t, byte(6), got.FunctionCode)
}

func TestBoardMmapPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "board.bin")

	b, err := NewBoard(persistence.NewMmapStorage(path))
	require.NoError(t, err)
	_, err = b.Handle(context.Background(), 1, modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x04, 0x02, 0x00}})
	require.NoError(t, err)
	require.NoError(t, b.Close())

	b, err = NewBoard(persistence.NewMmapStorage(path))
	require.NoError(t, err)
	defer b.Close()
	state, err := b.State(4)
	require.NoError(t, err)
	assert.Equal(t, StateOff, state)
}

func TestLoopback(t *testing.T) {
	l := NewLoopback(newBoard(t), 1, rtupacket.MaxEchoSize)

	req := []byte{0x01, 0x06, 0x00, 0x01, 0x01, 0x00, 0xD9, 0x9A}
	n, err := l.Write(req)
	require.NoError(t, err)
	assert.Equal(t, len(req), n)

	buf := make([]byte, rtupacket.MaxEchoSize)
	n, err = l.Read(buf)
	require.NoError(t, err)
	require.Equal(t, rtupacket.MaxEchoSize, n)
	assert.Equal(t, req, buf[:8])
	assert.Equal(t, make([]byte, rtupacket.MaxEchoSize-8), buf[8:])

	n, err = l.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n, "a reply is delivered once")

	assert.Equal(t, []string{"write", "read", "read"}, l.Ops())
	assert.Equal(t, [][]byte{req}, l.Requests())
}

func TestLoopbackIgnoresOtherSlave(t *testing.T) {
	l := NewLoopback(newBoard(t), 2, 0)

	_, err := l.Write([]byte{0x01, 0x06, 0x00, 0x01, 0x01, 0x00, 0xD9, 0x9A})
	require.NoError(t, err)

	n, err := l.Read(make([]byte, 8))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLoopbackClosed(t *testing.T) {
	l := NewLoopback(newBoard(t), 1, 0)
	require.NoError(t, l.Close())

	_, err := l.Write([]byte{0x01})
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	_, err = l.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	rwc, err := l.Dial()("/dev/null", 9600)
	require.NoError(t, err)
	_, err = rwc.Read(make([]byte, 1))
	assert.NoError(t, err, "dialing reopens the line")
}

func TestClientSeesBoardException(t *testing.T) {
	l := NewLoopback(newBoard(t), 1, rtupacket.MaxEchoSize)
	client := rtu.NewClient(config.SerialConfig{Device: "loop", BaudRate: 9600})
	client.Dial = l.Dial()
	require.NoError(t, client.Connect(context.Background()))
	defer client.Close()

	// 0x0300 is not a relay state.
	_, err := client.Send(context.Background(), 1, modbus.ProtocolDataUnit{FunctionCode: 6, Data: []byte{0x00, 0x01, 0x03, 0x00}})

	var verr *rtupacket.ValidationError
	require.ErrorAs(t, err, &verr, "an exception reply still fails validation")
	var mbErr *modbus.Error
	require.ErrorAs(t, err, &mbErr)
	assert.Equal(t, byte(6), mbErr.FunctionCode)
	assert.Equal(t, byte(modbus.ExceptionCodeIllegalDataValue), mbErr.ExceptionCode)
}
