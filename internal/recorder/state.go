// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package recorder runs the fixed-rate sample, smooth, actuate and log loop
// that mirrors the leader arm onto the servos and records each tick.
package recorder

import "fmt"

// State is the loop lifecycle: Init -> Running -> Stopping -> Stopped.
// A Loop is only built from resources that Acquire returned, so a failed
// acquisition leaves no Loop behind and is reported as *HardwareInitError.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// HardwareInitError reports a resource that could not be acquired within the
// retry budget. It is fatal; the loop never starts.
type HardwareInitError struct {
	Resource string
	Attempts int
	Err      error
}

func (e *HardwareInitError) Error() string {
	return fmt.Sprintf("%s: acquisition failed after %d attempts: %v", e.Resource, e.Attempts, e.Err)
}

func (e *HardwareInitError) Unwrap() error {
	return e.Err
}
