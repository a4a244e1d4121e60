// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package relay switches the four channels of a Modbus RTU relay board.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ffutop/modbus-relay/internal/config"
	"github.com/ffutop/modbus-relay/modbus"
	"github.com/ffutop/modbus-relay/transport"
	"github.com/ffutop/modbus-relay/transport/rtu"
)

const (
	// Channels is the number of relays, addressed 1..Channels.
	Channels = 4
	// SettleDelay separates the commands of consecutive channels.
	SettleDelay = 10 * time.Millisecond
	// BaudRate is the line speed of the board.
	BaudRate = 9600
	// DefaultSlaveID is the board's factory address.
	DefaultSlaveID = 1
)

// ErrInvalidState is returned for a state other than On or Off.
var ErrInvalidState = errors.New("relay: invalid state")

// State is the command byte written to a channel register.
type State byte

const (
	On  State = 1
	Off State = 2
)

func (s State) String() string {
	switch s {
	case On:
		return "on"
	case Off:
		return "off"
	default:
		return fmt.Sprintf("state(%d)", byte(s))
	}
}

// ParseState parses "on" or "off" in any case.
func ParseState(s string) (State, error) {
	switch strings.ToLower(s) {
	case "on":
		return On, nil
	case "off":
		return Off, nil
	}
	return 0, fmt.Errorf("%w %q", ErrInvalidState, s)
}

// Phase is the position of a Controller in a channel run.
type Phase int

const (
	Idle Phase = iota
	Sending
	AwaitingResponse
	Validating
	AllDone
	Aborted
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case AwaitingResponse:
		return "awaiting response"
	case Validating:
		return "validating"
	case AllDone:
		return "all done"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

func phaseOf(stage transport.Stage) Phase {
	switch stage {
	case transport.StageReceive:
		return AwaitingResponse
	case transport.StageVerify:
		return Validating
	default:
		return Sending
	}
}

// ChannelError reports the channel a run was aborted on.
type ChannelError struct {
	Channel int
	// Phase is the step that failed.
	Phase Phase
	Err   error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %d: %s: %v", e.Channel, e.Phase, e.Err)
}

func (e *ChannelError) Unwrap() error { return e.Err }

// RequestPDU builds the write single register request switching channel.
func RequestPDU(channel int, state State) modbus.ProtocolDataUnit {
	return modbus.ProtocolDataUnit{
		FunctionCode: modbus.FuncCodeWriteSingleRegister,
		Data:         []byte{0, byte(channel), byte(state), 0},
	}
}

// Controller drives one relay board.
type Controller struct {
	ds      transport.Downstream
	slaveID byte
	settle  time.Duration

	mu    sync.Mutex
	phase Phase
}

// New creates a Controller for the board at slaveID on device.
func New(device string, slaveID byte) *Controller {
	return NewController(rtu.NewClient(config.SerialConfig{
		Device:   device,
		BaudRate: BaudRate,
	}), slaveID)
}

// NewController creates a Controller talking to the board through ds.
func NewController(ds transport.Downstream, slaveID byte) *Controller {
	return &Controller{
		ds:      ds,
		slaveID: slaveID,
		settle:  SettleDelay,
	}
}

// Open opens the line to the board.
func (c *Controller) Open(ctx context.Context) error {
	return c.ds.Connect(ctx)
}

// Close closes the line to the board.
func (c *Controller) Close() error {
	return c.ds.Close()
}

// Phase returns where the current or last run stands. A channel exchange
// is one Send, so an in-flight run reports Sending and a finished one
// AllDone or Aborted. The step an aborted run failed in is reported by
// ChannelError.Phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Controller) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// SetChannelStates switches channels 1 to 4, in order, to state. The first
// failure aborts the run; later channels are left untouched.
func (c *Controller) SetChannelStates(ctx context.Context, state State) error {
	c.setPhase(Idle)
	if state != On && state != Off {
		return fmt.Errorf("%w %d", ErrInvalidState, byte(state))
	}
	for channel := 1; channel <= Channels; channel++ {
		if err := c.setChannel(ctx, channel, state); err != nil {
			c.setPhase(Aborted)
			slog.Debug("relay run aborted", "channel", channel, "state", state, "err", err)
			return err
		}
		if channel == Channels {
			break
		}
		select {
		case <-ctx.Done():
			c.setPhase(Aborted)
			return &ChannelError{Channel: channel + 1, Phase: Idle, Err: ctx.Err()}
		case <-time.After(c.settle):
		}
	}
	c.setPhase(AllDone)
	return nil
}

func (c *Controller) setChannel(ctx context.Context, channel int, state State) error {
	c.setPhase(Sending)
	if err := ctx.Err(); err != nil {
		return &ChannelError{Channel: channel, Phase: Sending, Err: err}
	}
	_, err := c.ds.Send(ctx, c.slaveID, RequestPDU(channel, state))
	if err == nil {
		slog.Debug("relay switched", "channel", channel, "state", state)
		return nil
	}
	phase := Sending
	var xerr *transport.ExchangeError
	if errors.As(err, &xerr) {
		phase = phaseOf(xerr.Stage)
	}
	return &ChannelError{Channel: channel, Phase: phase, Err: err}
}
