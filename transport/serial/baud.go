// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package serial

import "fmt"

// SupportedBaudRates lists every rate Open accepts, on every platform.
var SupportedBaudRates = []int{
	0, 50, 75, 110, 134, 150, 200, 300, 600, 1200, 1800, 2400, 4800, 9600, 19200, 38400,
	57600, 115200, 230400, 460800, 500000, 576000, 921600,
	1000000, 1152000, 1500000, 2000000, 2500000, 3000000, 3500000, 4000000,
}

// ValidateBaudRate returns ErrUnsupportedBaudRate unless rate is listed in
// SupportedBaudRates.
func ValidateBaudRate(rate int) error {
	for _, r := range SupportedBaudRates {
		if r == rate {
			return nil
		}
	}
	return fmt.Errorf("%w: %d", ErrUnsupportedBaudRate, rate)
}
