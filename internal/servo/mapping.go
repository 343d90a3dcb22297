// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package servo

import "math"

const (
	// ADCMax is the largest code of the 12-bit converter.
	ADCMax = 4095

	// MaxAngle is the mechanical range of the joints in degrees.
	MaxAngle = 180.0

	// MinPulseWidth and MaxPulseWidth are the hobby-servo limits in µs
	// (500µs = 0°, 2500µs = 180°).
	MinPulseWidth = 500
	MaxPulseWidth = 2500

	// PulseOff tells a driver to stop sending pulses on a pin.
	PulseOff = 0
)

// ToAngle converts a smoothed ADC value to a joint angle in [0, 180].
//
// The potentiometer is wired so that its zero end is the maximum mechanical
// angle, hence the value is inverted before scaling. The result is rounded to
// precision decimal digits.
func ToAngle(smoothed float64, precision int) float64 {
	if smoothed < 0 {
		smoothed = 0
	} else if smoothed > ADCMax {
		smoothed = ADCMax
	}
	inverted := ADCMax - smoothed
	return round(inverted/ADCMax*MaxAngle, precision)
}

// ToPulseWidth maps an angle to a servo pulse width in microseconds,
// truncated to a whole microsecond.
func ToPulseWidth(angle float64) int {
	if angle < 0 {
		angle = 0
	} else if angle > MaxAngle {
		angle = MaxAngle
	}
	return int(MinPulseWidth + (angle/MaxAngle)*(MaxPulseWidth-MinPulseWidth))
}

func round(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	p := math.Pow(10, float64(precision))
	return math.Round(v*p) / p
}
