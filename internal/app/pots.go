// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/arm_recorder/internal/adc"
	"github.com/relabs-tech/arm_recorder/internal/config"
	"github.com/relabs-tech/arm_recorder/internal/filter"
	"github.com/relabs-tech/arm_recorder/internal/servo"
)

// RunPots prints raw codes, angles and the pulse widths the recorder would
// send, without driving any servo. Used to check potentiometer wiring.
func RunPots(mock bool, interval time.Duration) error {
	cfg := config.Get()

	var reader adc.Reader
	if mock {
		reader = adc.NewMock()
	} else {
		r, err := adc.Open(cfg.SPIDevice, physic.Frequency(cfg.SPISpeedHz)*physic.Hertz)
		if err != nil {
			return err
		}
		reader = r
	}
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	avg := filter.NewMovingAverage(cfg.FilterSize)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-ticker.C:
			fmt.Printf("%s   \r", potsLine(reader, avg, cfg.ADCChannels, cfg.AnglePrecision))
		}
	}
}

func potsLine(reader adc.Reader, avg *filter.MovingAverage, channels []int, precision int) string {
	parts := make([]string, len(channels))
	for i, ch := range channels {
		raw, ok := reader.ReadRaw(ch)
		if !ok {
			parts[i] = fmt.Sprintf("CH%d: ----", ch)
			continue
		}
		angle := servo.ToAngle(avg.Smooth(i, float64(raw)), precision)
		parts[i] = fmt.Sprintf("CH%d: %4d %6.*f° %4dµs", ch, raw, precision, angle, servo.ToPulseWidth(angle))
	}
	return strings.Join(parts, " | ")
}
