// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package servo

import (
	"fmt"
	"strconv"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

// ServoFrequency is the standard 50 Hz servo frame (20ms period).
const ServoFrequency = 50 * physic.Hertz

const framePeriodUS = 20000

// GPIO drives servos with periph.io hardware PWM on the given header pins.
type GPIO struct {
	mu   sync.Mutex
	pins map[int]gpio.PinIO
}

// OpenGPIO initialises the periph host and resolves every pin by its BCM
// number.
func OpenGPIO(pins []int) (*GPIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	g := &GPIO{pins: make(map[int]gpio.PinIO, len(pins))}
	for _, n := range pins {
		p := gpioreg.ByName(strconv.Itoa(n))
		if p == nil {
			return nil, fmt.Errorf("servo GPIO%d not found", n)
		}
		g.pins[n] = p
	}
	return g, nil
}

// PulseToDuty converts a pulse width to a PWM duty cycle of the 50 Hz frame.
func PulseToDuty(us int) gpio.Duty {
	return gpio.Duty(int64(us) * int64(gpio.DutyMax) / framePeriodUS)
}

func (g *GPIO) SetPulseWidth(pin int, us int) error {
	if err := checkPulse(us); err != nil {
		return err
	}
	g.mu.Lock()
	p, ok := g.pins[pin]
	g.mu.Unlock()
	if !ok {
		return fmt.Errorf("servo GPIO%d not configured", pin)
	}
	if us == PulseOff {
		if err := p.Out(gpio.Low); err != nil {
			return fmt.Errorf("servo GPIO%d off: %w", pin, err)
		}
		return nil
	}
	if err := p.PWM(PulseToDuty(us), ServoFrequency); err != nil {
		return fmt.Errorf("servo GPIO%d pwm: %w", pin, err)
	}
	return nil
}

// Close halts every pin.
func (g *GPIO) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	var firstErr error
	for n, p := range g.pins {
		if err := p.Halt(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("servo GPIO%d halt: %w", n, err)
		}
	}
	g.pins = map[int]gpio.PinIO{}
	return firstErr
}
