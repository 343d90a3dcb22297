// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/physic"

	"github.com/relabs-tech/arm_recorder/internal/adc"
	"github.com/relabs-tech/arm_recorder/internal/camera"
	"github.com/relabs-tech/arm_recorder/internal/config"
	"github.com/relabs-tech/arm_recorder/internal/episode"
	"github.com/relabs-tech/arm_recorder/internal/recorder"
	"github.com/relabs-tech/arm_recorder/internal/servo"
)

const pigpioDialTimeout = 2 * time.Second

// RunRecorder acquires the arm hardware, mirrors the potentiometers onto the
// servos and records episodes until SIGINT/SIGTERM. With mock set, the ADC
// and servo driver are simulated.
func RunRecorder(mock bool) error {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runRecorder(ctx, cfg, mock)
}

func runRecorder(ctx context.Context, cfg *config.Config, mock bool) error {
	if mock || cfg.ServoDriver == config.DriverMock {
		log.Println("recorder: using mock ADC and servo driver")
		mock = true
	}

	res, err := recorder.Acquire(ctx, recorderOpeners(cfg, mock), cfg.ServoPins, recorder.Retry{
		Attempts: cfg.InitMaxRetries,
		Delay:    cfg.InitRetryDelay,
	})
	if err != nil {
		return err
	}

	channels := make([]recorder.Channel, len(cfg.ADCChannels))
	for i, ch := range cfg.ADCChannels {
		channels[i] = recorder.Channel{ADC: ch, Pin: cfg.ServoPins[i]}
	}

	loop, err := recorder.NewLoop(res, recorder.Options{
		Channels:   channels,
		Period:     cfg.Period(),
		FilterSize: cfg.FilterSize,
		Precision:  cfg.AnglePrecision,
	})
	if err != nil {
		return errors.Join(err, res.Close())
	}

	if !cfg.Record {
		log.Println("recorder: RECORD=false, mirroring only")
	}
	log.Println("recorder: press Ctrl+C to stop")
	return loop.Run(ctx)
}

func recorderOpeners(cfg *config.Config, mock bool) recorder.Openers {
	var open recorder.Openers

	if mock {
		open.Servos = func(context.Context) (servo.Driver, error) { return servo.NewMock(), nil }
		open.ADC = func(context.Context) (adc.Reader, error) { return adc.NewMock(), nil }
	} else {
		open.Servos = func(context.Context) (servo.Driver, error) {
			switch cfg.ServoDriver {
			case config.DriverGPIO:
				return servo.OpenGPIO(cfg.ServoPins)
			case config.DriverMaestro:
				return servo.OpenMaestro(cfg.MaestroPort, cfg.MaestroBaudRate)
			default:
				return servo.DialPigpio(cfg.PigpioAddr, pigpioDialTimeout)
			}
		}
		open.ADC = func(context.Context) (adc.Reader, error) {
			return adc.Open(cfg.SPIDevice, physic.Frequency(cfg.SPISpeedHz)*physic.Hertz)
		}
	}

	if !cfg.Record && cfg.MQTTBroker == "" {
		return open
	}

	// The frame source writes into the episode opened by the sink opener.
	var current *episode.Episode

	open.Sink = func(context.Context) (episode.Sink, error) {
		// Dial first: a failed attempt must not leave an empty episode behind.
		var sinks episode.Multi
		if cfg.MQTTBroker != "" {
			m, err := episode.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDRecorder, cfg.TopicAngles)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, m)
		}
		if cfg.Record {
			ep, err := episode.Open(cfg.DataDir, cfg.EpisodeFormat, episode.Meta{
				Channels:   cfg.ADCChannels,
				ServoPins:  cfg.ServoPins,
				TargetHz:   cfg.TargetHz,
				FilterSize: cfg.FilterSize,
				Cameras:    cfg.CameraNames(),
			})
			if err != nil {
				return nil, errors.Join(err, sinks.Close())
			}
			current = ep
			sinks = append(sinks, ep)
		}
		if len(sinks) == 1 {
			return sinks[0], nil
		}
		return sinks, nil
	}

	if cfg.Record && len(cfg.Cameras) > 0 {
		cams := make([]camera.Camera, len(cfg.Cameras))
		for i, c := range cfg.Cameras {
			cams[i] = camera.Camera{Name: c.Name, URL: c.URL}
		}
		open.Frames = func(ctx context.Context) (recorder.FrameSource, error) {
			return camera.Open(ctx, current.Dir(), cams, cfg.CameraTimeout)
		}
	}
	return open
}

// RemediationHints returns operator advice for a fatal startup error.
func RemediationHints(err error) []string {
	var hwErr *recorder.HardwareInitError
	if !errors.As(err, &hwErr) {
		return nil
	}
	switch hwErr.Resource {
	case recorder.ResourceServos:
		if errors.Is(err, servo.ErrDaemonNotRunning) {
			return []string{
				"start the pigpio daemon: sudo pigpiod",
				"check PIGPIO_ADDR points at the daemon",
			}
		}
		return []string{
			"check SERVO_DRIVER and the servo controller connection",
			"for the maestro driver check MAESTRO_PORT and MAESTRO_BAUD_RATE",
			"for the gpio driver run as root so the pins can be claimed",
		}
	case recorder.ResourceADC:
		return []string{
			"enable SPI: sudo raspi-config > Interface Options > SPI, then reboot",
			"check SPI_DEVICE and the MCP3208 wiring",
		}
	case recorder.ResourceSink:
		return []string{
			"check that DATA_DIR is writable",
			"check that MQTT_BROKER is reachable, or leave it empty",
		}
	case recorder.ResourceFrames:
		return []string{
			"check the camera connections",
			"check that every CAMERAS URL returns a snapshot",
		}
	}
	return nil
}
