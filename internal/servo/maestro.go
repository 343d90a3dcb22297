// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package servo

import (
	"fmt"
	"io"
	"sync"

	serial "github.com/jacobsa/go-serial/serial"
)

const maestroSetTarget = 0x84

// Maestro drives a Pololu Maestro USB servo controller over its serial
// command port using the compact protocol. Pins are Maestro channel numbers.
type Maestro struct {
	mu   sync.Mutex
	port io.ReadWriteCloser
}

// OpenMaestro opens the Maestro command port.
func OpenMaestro(portName string, baudRate int) (*Maestro, error) {
	if baudRate == 0 {
		baudRate = 9600
	}
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}
	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("maestro open %s: %w", portName, err)
	}
	return &Maestro{port: port}, nil
}

// NewMaestro wraps an already open port.
func NewMaestro(port io.ReadWriteCloser) *Maestro {
	return &Maestro{port: port}
}

// SetTargetFrame builds the compact Set Target command. The target is in
// quarter-microseconds, split into two 7-bit bytes; 0 stops pulses.
func SetTargetFrame(channel int, us int) []byte {
	target := us * 4
	return []byte{
		maestroSetTarget,
		byte(channel),
		byte(target & 0x7F),
		byte((target >> 7) & 0x7F),
	}
}

func (m *Maestro) SetPulseWidth(pin int, us int) error {
	if err := checkPulse(us); err != nil {
		return err
	}
	if pin < 0 || pin > 23 {
		return fmt.Errorf("maestro: invalid channel %d", pin)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.port == nil {
		return fmt.Errorf("maestro: port closed")
	}
	if _, err := m.port.Write(SetTargetFrame(pin, us)); err != nil {
		return fmt.Errorf("maestro channel %d: %w", pin, err)
	}
	return nil
}

func (m *Maestro) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.port = nil
	return err
}
