// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

//go:build linux

package serial

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sys/unix"
)

var speeds = map[int]uint32{
	0:       unix.B0,
	50:      unix.B50,
	75:      unix.B75,
	110:     unix.B110,
	134:     unix.B134,
	150:     unix.B150,
	200:     unix.B200,
	300:     unix.B300,
	600:     unix.B600,
	1200:    unix.B1200,
	1800:    unix.B1800,
	2400:    unix.B2400,
	4800:    unix.B4800,
	9600:    unix.B9600,
	19200:   unix.B19200,
	38400:   unix.B38400,
	57600:   unix.B57600,
	115200:  unix.B115200,
	230400:  unix.B230400,
	460800:  unix.B460800,
	500000:  unix.B500000,
	576000:  unix.B576000,
	921600:  unix.B921600,
	1000000: unix.B1000000,
	1152000: unix.B1152000,
	1500000: unix.B1500000,
	2000000: unix.B2000000,
	2500000: unix.B2500000,
	3000000: unix.B3000000,
	3500000: unix.B3500000,
	4000000: unix.B4000000,
}

// fdConn is a termios configured tty descriptor.
type fdConn struct {
	device string
	fd     int
}

func openConn(device string, baudRate int) (conn, error) {
	speed, ok := speeds[baudRate]
	if !ok {
		return nil, &ConfigError{Device: device, Op: "open", Err: ErrUnsupportedBaudRate}
	}

	// O_NOCTTY keeps the device from becoming our controlling terminal.
	// O_NONBLOCK stops open from waiting for carrier; it is cleared below.
	fd, err := unix.Open(device, unix.O_RDWR|unix.O_NOCTTY|unix.O_SYNC|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &ConfigError{Device: device, Op: "open", Err: err}
	}
	if err := configure(fd, speed); err != nil {
		unix.Close(fd)
		return nil, &ConfigError{Device: device, Op: "configure", Err: err}
	}
	return &fdConn{device: device, fd: fd}, nil
}

func configure(fd int, speed uint32) error {
	if err := unix.IoctlSetInt(fd, unix.TIOCEXCL, 0); err != nil {
		return err
	}
	if err := flush(fd); err != nil {
		return err
	}

	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return err
	}
	makeRaw(tio)
	tio.Cflag &^= unix.CSTOPB | unix.PARODD | unix.CRTSCTS
	tio.Cflag |= unix.CLOCAL | unix.CREAD
	tio.Iflag &^= unix.IXON | unix.IXOFF | unix.IXANY

	// Return whatever is available, or nothing after a tenth of a second.
	tio.Cc[unix.VMIN] = 0
	tio.Cc[unix.VTIME] = uint8(ReadTimeout.Milliseconds() / 100)

	tio.Cflag &^= unix.CBAUD
	tio.Cflag |= speed
	tio.Ispeed = speed
	tio.Ospeed = speed

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		return err
	}
	if err := flush(fd); err != nil {
		return err
	}
	return unix.SetNonblock(fd, false)
}

// makeRaw does what cfmakeraw(3) does.
func makeRaw(tio *unix.Termios) {
	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB
	tio.Cflag |= unix.CS8
}

func flush(fd int) error {
	return unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIOFLUSH)
}

func (c *fdConn) read(p []byte) (int, error) {
	n, err := unix.Read(c.fd, p)
	if err != nil {
		if errors.Is(err, unix.EINTR) || errors.Is(err, unix.EAGAIN) {
			return 0, nil
		}
		return 0, &IOError{Device: c.device, Op: "read", Err: err}
	}
	return n, nil
}

func (c *fdConn) write(p []byte) (int, error) {
	total := 0
	for total < len(p) {
		fds := []unix.PollFd{{Fd: int32(c.fd), Events: unix.POLLOUT}}
		ready, err := unix.Poll(fds, int(WriteTimeout.Milliseconds()))
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return total, &IOError{Device: c.device, Op: "poll", Err: err}
		}
		if ready == 0 {
			return total, fmt.Errorf("serial: write %s: %w", c.device, ErrTimeout)
		}

		n, err := unix.Write(c.fd, p[total:])
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return total, &IOError{Device: c.device, Op: "write", Err: err}
		}
		if n == 0 {
			return total, &IOError{Device: c.device, Op: "write", Err: io.ErrShortWrite}
		}
		total += n
	}
	return total, nil
}

func (c *fdConn) close() error {
	return unix.Close(c.fd)
}
