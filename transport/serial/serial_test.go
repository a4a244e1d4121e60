// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package serial

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockConn struct {
	in     bytes.Buffer
	out    bytes.Buffer
	closed int
}

func (m *mockConn) read(p []byte) (int, error) {
	if m.in.Len() == 0 {
		return 0, nil
	}
	return m.in.Read(p)
}

func (m *mockConn) write(p []byte) (int, error) { return m.out.Write(p) }

func (m *mockConn) close() error {
	m.closed++
	return nil
}

func TestPortCloseIdempotent(t *testing.T) {
	c := &mockConn{}
	p := &Port{device: "mock", c: c}

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.Equal(t, 1, c.closed, "underlying handle released more than once")
}

func TestPortBadHandle(t *testing.T) {
	p := &Port{device: "mock", c: &mockConn{}}
	require.NoError(t, p.Close())

	_, err := p.Write([]byte{0x01})
	assert.ErrorIs(t, err, ErrBadHandle)

	_, err = p.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrBadHandle)

	// A zero value Port was never opened.
	var never Port
	_, err = never.Write(nil)
	assert.ErrorIs(t, err, ErrBadHandle)
	assert.NoError(t, never.Close())
}

func TestPortZeroLength(t *testing.T) {
	c := &mockConn{}
	p := &Port{device: "mock", c: c}

	n, err := p.Write(nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, c.out.Len())

	n, err = p.Read(nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestPortReadWrite(t *testing.T) {
	c := &mockConn{}
	c.in.Write([]byte{0x01, 0x06, 0x00})
	p := &Port{device: "mock", c: c}

	n, err := p.Write([]byte{0x01, 0x06, 0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, []byte{0x01, 0x06, 0x00, 0x01}, c.out.Bytes())

	buf := make([]byte, 21)
	n, err = p.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x06, 0x00}, buf[:n])

	// Nothing left: a timeout is reported as zero bytes, not an error.
	n, err = p.Read(buf)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestErrorTypes(t *testing.T) {
	cause := errors.New("boom")

	cerr := &ConfigError{Device: "/dev/ttyUSB0", Op: "open", Err: cause}
	assert.Equal(t, "serial: open /dev/ttyUSB0: boom", cerr.Error())
	assert.ErrorIs(t, cerr, cause)

	ioerr := &IOError{Device: "/dev/ttyUSB0", Op: "read", Err: cause}
	assert.Equal(t, "serial: read /dev/ttyUSB0: boom", ioerr.Error())
	assert.ErrorIs(t, ioerr, cause)
}
