// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

//go:build linux

// Package ptytest provides pseudo terminal pairs for tests that need a real
// tty behind the serial transport.
package ptytest

import (
	"fmt"
	"io"
	"os"
	"testing"

	"golang.org/x/sys/unix"
)

// Open allocates a pseudo terminal and returns its controller side together
// with the device path of the other end. The test is skipped when the host
// has no /dev/ptmx.
func Open(t testing.TB) (*os.File, string) {
	t.Helper()

	// Non-blocking so the runtime poller owns it and Close unblocks readers.
	fd, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Skipf("pseudo terminals unavailable: %v", err)
	}
	if err := unix.IoctlSetPointerInt(fd, unix.TIOCSPTLCK, 0); err != nil {
		unix.Close(fd)
		t.Skipf("unlockpt: %v", err)
	}
	n, err := unix.IoctlGetUint32(fd, unix.TIOCGPTN)
	if err != nil {
		unix.Close(fd)
		t.Skipf("ptsname: %v", err)
	}

	master := os.NewFile(uintptr(fd), "/dev/ptmx")
	t.Cleanup(func() { master.Close() })
	return master, fmt.Sprintf("/dev/pts/%d", n)
}

// Serve reads fixed size request frames from rw and writes back whatever
// respond returns, until rw fails.
func Serve(rw io.ReadWriter, frameSize int, respond func(req []byte) []byte) error {
	req := make([]byte, frameSize)
	for {
		if _, err := io.ReadFull(rw, req); err != nil {
			return err
		}
		resp := respond(append([]byte(nil), req...))
		if len(resp) == 0 {
			continue
		}
		if _, err := rw.Write(resp); err != nil {
			return err
		}
	}
}
