// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package episode persists one row per control-loop tick: angles with the
// camera frames taken in the same tick.
package episode

import (
	"errors"
	"time"
)

// TimestampLayout is ISO-8601 local time with microseconds, the format used
// for row timestamps and frame file names.
const TimestampLayout = "2006-01-02T15:04:05.000000"

// Record is one logged tick.
type Record struct {
	Timestamp string    `json:"timestamp"`
	Angles    []float64 `json:"angles"`
	Frames    []string  `json:"frames,omitempty"`
}

// Stamp formats t with TimestampLayout.
func Stamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// Sink receives logged records.
type Sink interface {
	Write(rec Record) error
	Close() error
}

var (
	_ Sink = (*Episode)(nil)
	_ Sink = (*MQTTSink)(nil)
	_ Sink = Multi(nil)
)

// Multi fans a record out to several sinks. Every sink gets every record even
// if an earlier one fails; errors are joined.
type Multi []Sink

func (m Multi) Write(rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
