// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package servo

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"
)

// DefaultPigpioAddr is where pigpiod listens unless started with -p.
const DefaultPigpioAddr = "localhost:8888"

// pigpiod socket command numbers.
const (
	cmdServo = 8
	cmdPigpv = 26
)

// ErrDaemonNotRunning is returned when nothing accepts connections on the
// pigpiod socket.
var ErrDaemonNotRunning = errors.New("pigpio daemon not running (start it with 'sudo pigpiod')")

// Pigpio drives servos through the pigpiod socket interface.
//
// Each request is a 16-byte little-endian frame {cmd, p1, p2, p3}; the daemon
// answers with the same frame where the last word holds the result (negative
// on error).
type Pigpio struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration
	version uint32
}

// DialPigpio connects to pigpiod at addr and queries its version.
func DialPigpio(addr string, timeout time.Duration) (*Pigpio, error) {
	if addr == "" {
		addr = DefaultPigpioAddr
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("pigpio %s: %w", addr, ErrDaemonNotRunning)
		}
		return nil, fmt.Errorf("pigpio dial %s: %w", addr, err)
	}
	return newPigpio(conn, timeout)
}

func newPigpio(conn net.Conn, timeout time.Duration) (*Pigpio, error) {
	p := &Pigpio{conn: conn, timeout: timeout}
	v, err := p.command(cmdPigpv, 0, 0)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("pigpio version query: %w", err)
	}
	p.version = uint32(v)
	return p, nil
}

// Version returns the daemon version reported at connect time.
func (p *Pigpio) Version() uint32 {
	return p.version
}

// SetPulseWidth sets the servo pulse width on a BCM GPIO; 0 stops pulses.
func (p *Pigpio) SetPulseWidth(pin int, us int) error {
	if err := checkPulse(us); err != nil {
		return err
	}
	if pin < 0 || pin > 53 {
		return fmt.Errorf("pigpio: invalid gpio %d", pin)
	}
	if _, err := p.command(cmdServo, uint32(pin), uint32(us)); err != nil {
		return fmt.Errorf("pigpio servo gpio %d: %w", pin, err)
	}
	return nil
}

// Close closes the daemon connection. Outputs keep their last pulse width,
// so callers zero them first.
func (p *Pigpio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

func (p *Pigpio) command(cmd, p1, p2 uint32) (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return 0, errors.New("connection closed")
	}

	var req [16]byte
	binary.LittleEndian.PutUint32(req[0:], cmd)
	binary.LittleEndian.PutUint32(req[4:], p1)
	binary.LittleEndian.PutUint32(req[8:], p2)
	// req[12:16] is the extension length, always 0 here.

	if err := p.conn.SetDeadline(time.Now().Add(p.timeout)); err != nil {
		return 0, err
	}
	if _, err := p.conn.Write(req[:]); err != nil {
		return 0, err
	}
	var resp [16]byte
	if _, err := io.ReadFull(p.conn, resp[:]); err != nil {
		return 0, err
	}
	res := int32(binary.LittleEndian.Uint32(resp[12:]))
	if res < 0 {
		return res, fmt.Errorf("daemon error %d", res)
	}
	return res, nil
}
