// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package servo maps joint angles to pulse widths and drives hobby servos
// through one of several backends.
package servo

import (
	"fmt"
	"sync"
)

// Driver sends pulse widths to servo outputs addressed by pin/channel number.
// A pulse width of PulseOff stops the pulse train on that output.
type Driver interface {
	SetPulseWidth(pin int, us int) error
	Close() error
}

var (
	_ Driver = (*Pigpio)(nil)
	_ Driver = (*GPIO)(nil)
	_ Driver = (*Maestro)(nil)
	_ Driver = (*Mock)(nil)
)

func checkPulse(us int) error {
	if us == PulseOff {
		return nil
	}
	if us < MinPulseWidth || us > MaxPulseWidth {
		return fmt.Errorf("pulse width %dµs outside %d-%dµs", us, MinPulseWidth, MaxPulseWidth)
	}
	return nil
}

// Command is one pulse width written to a pin, as seen by Mock.
type Command struct {
	Pin   int
	Pulse int
}

// Mock records commands instead of driving hardware.
type Mock struct {
	mu       sync.Mutex
	commands []Command
	closed   bool

	// FailPins makes SetPulseWidth return an error for the listed pins.
	FailPins map[int]bool
}

// NewMock creates an empty recording driver.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) SetPulseWidth(pin int, us int) error {
	if err := checkPulse(us); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return fmt.Errorf("servo mock: closed")
	}
	if m.FailPins[pin] {
		return fmt.Errorf("servo mock: pin %d failed", pin)
	}
	m.commands = append(m.commands, Command{Pin: pin, Pulse: us})
	return nil
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Commands returns every command received so far.
func (m *Mock) Commands() []Command {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Command, len(m.commands))
	copy(out, m.commands)
	return out
}

// Closed reports whether Close was called.
func (m *Mock) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
