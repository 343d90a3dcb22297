// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package filter smooths raw ADC readings before they are turned into angles.
package filter

import "sync"

// DefaultWindow is the number of samples averaged per channel.
const DefaultWindow = 10

// MovingAverage keeps an independent FIFO history of the last Window raw
// readings for every channel and returns their unweighted mean.
//
// A single mutex guards all histories, so append, trim and mean happen
// atomically per call. The sampling loop and any display/hover reader may
// share one instance.
type MovingAverage struct {
	window int

	mu      sync.Mutex
	history map[int][]float64
}

// NewMovingAverage creates a filter averaging the last window samples.
// A window below 1 falls back to DefaultWindow.
func NewMovingAverage(window int) *MovingAverage {
	if window < 1 {
		window = DefaultWindow
	}
	return &MovingAverage{
		window:  window,
		history: make(map[int][]float64),
	}
}

// Window returns the configured history length.
func (m *MovingAverage) Window() int {
	return m.window
}

// Smooth appends raw to the channel's history, evicts the oldest sample once
// the history is longer than the window, and returns the mean of what is left.
func (m *MovingAverage) Smooth(channel int, raw float64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := append(m.history[channel], raw)
	if len(h) > m.window {
		h = h[1:] // oldest first
	}
	m.history[channel] = h

	var sum float64
	for _, v := range h {
		sum += v
	}
	return sum / float64(len(h))
}

// History returns a copy of the channel's stored samples, oldest first.
func (m *MovingAverage) History(channel int) []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.history[channel]
	out := make([]float64, len(h))
	copy(out, h)
	return out
}

// Mean returns the current mean of a channel without adding a sample.
// ok is false when the channel has no history yet.
func (m *MovingAverage) Mean(channel int) (mean float64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h := m.history[channel]
	if len(h) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range h {
		sum += v
	}
	return sum / float64(len(h)), true
}

// Reset drops every channel's history.
func (m *MovingAverage) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = make(map[int][]float64)
}
