// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

const (
	MinSize = 4
	MaxSize = 256

	// MaxEchoSize bounds the single read a master performs for the reply
	// to a write request.
	MaxEchoSize = 21
	// EchoHeaderSize is the number of leading reply bytes checked against
	// the request.
	EchoHeaderSize = 3
)
