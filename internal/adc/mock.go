// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package adc

import (
	"math"
	"sync"
	"time"
)

// Mock generates smoothly sweeping potentiometer readings, one phase-shifted
// sine per channel, so the loop can run on a bench without the converter.
type Mock struct {
	mu    sync.Mutex
	start time.Time
	now   func() time.Time

	// Fixed overrides the sweep with a constant code per channel.
	Fixed map[int]uint16
	// FailNext makes the next n reads of a channel report no reading.
	FailNext map[int]int
	closed   bool
}

// NewMock creates a sweeping source starting now.
func NewMock() *Mock {
	return &Mock{
		start:    time.Now(),
		now:      time.Now,
		Fixed:    map[int]uint16{},
		FailNext: map[int]int{},
	}
}

func (m *Mock) ReadRaw(channel int) (uint16, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || channel < 0 || channel >= NumChannels {
		return 0, false
	}
	if n := m.FailNext[channel]; n > 0 {
		m.FailNext[channel] = n - 1
		return 0, false
	}
	if v, ok := m.Fixed[channel]; ok {
		return v, true
	}

	elapsed := m.now().Sub(m.start).Seconds()
	phase := float64(channel) * math.Pi / 3
	v := (math.Sin(elapsed*0.8+phase) + 1) / 2 * MaxCode
	return uint16(math.Round(v)), true
}

// Set pins a channel to a constant code.
func (m *Mock) Set(channel int, code uint16) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Fixed[channel] = code
}

// Fail makes the next n reads of channel fail.
func (m *Mock) Fail(channel, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FailNext[channel] = n
}

func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
