// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package adc reads potentiometer positions from an MCP3208 12-bit
// analog-to-digital converter.
package adc

import (
	"fmt"
	"io"
	"log"
	"sync"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

const (
	// NumChannels is the number of single-ended inputs on the MCP3208.
	NumChannels = 8

	// MaxCode is the largest 12-bit conversion result.
	MaxCode = 4095

	// DefaultSpeed matches the 1 MHz clock used on the Pi wiring.
	DefaultSpeed = 1 * physic.MegaHertz
)

// Reader returns one raw conversion per call. ok is false when no reading
// could be taken this time; callers skip the current tick and carry on.
type Reader interface {
	ReadRaw(channel int) (raw uint16, ok bool)
	Close() error
}

var (
	_ Reader = (*MCP3208)(nil)
	_ Reader = (*Mock)(nil)
)

// MCP3208 talks to the converter over an SPI connection.
type MCP3208 struct {
	mu     sync.Mutex
	conn   conn.Conn
	closer io.Closer
}

// New wraps an already connected SPI conn. The closer, if any, is closed by
// Close.
func New(c conn.Conn, closer io.Closer) *MCP3208 {
	return &MCP3208{conn: c, closer: closer}
}

// Open initialises the periph host, opens the SPI port (e.g. "/dev/spidev0.0"
// or "SPI0.0") and connects in mode 0 at the given clock.
func Open(device string, speed physic.Frequency) (*MCP3208, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	if speed == 0 {
		speed = DefaultSpeed
	}

	port, err := spireg.Open(device)
	if err != nil {
		return nil, fmt.Errorf("ADC SPI open %s: %w", device, err)
	}

	c, err := port.Connect(speed, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("ADC SPI connect %s: %w", device, err)
	}

	log.Printf("adc: MCP3208 on %s at %s", device, speed)
	return New(c, port), nil
}

// Command builds the 3-byte request for a single-ended conversion: start bit
// and SGL/DIFF in the first byte together with D2, D1/D0 in the top bits of
// the second byte.
func Command(channel int) []byte {
	return []byte{
		byte(6 | (channel >> 2)),
		byte((channel & 3) << 6),
		0,
	}
}

// Decode assembles the 12-bit result from the low nibble of the second reply
// byte and the whole third byte.
func Decode(reply []byte) uint16 {
	return uint16(reply[1]&0x0F)<<8 | uint16(reply[2])
}

// ReadRaw performs one conversion. Transport errors are logged and reported
// as ok == false.
func (a *MCP3208) ReadRaw(channel int) (uint16, bool) {
	if channel < 0 || channel >= NumChannels {
		log.Printf("adc: invalid channel %d", channel)
		return 0, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.conn == nil {
		log.Printf("adc: read channel %d: device closed", channel)
		return 0, false
	}

	reply := make([]byte, 3)
	if err := a.conn.Tx(Command(channel), reply); err != nil {
		log.Printf("adc: read channel %d: %v", channel, err)
		return 0, false
	}
	return Decode(reply), true
}

// Close releases the SPI port. Safe to call more than once.
func (a *MCP3208) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conn = nil
	if a.closer == nil {
		return nil
	}
	err := a.closer.Close()
	a.closer = nil
	return err
}
