// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/relabs-tech/arm_recorder/internal/adc"
	"github.com/relabs-tech/arm_recorder/internal/episode"
	"github.com/relabs-tech/arm_recorder/internal/servo"
)

// Resource names used in HardwareInitError and logs.
const (
	ResourceServos = "servo driver"
	ResourceADC    = "adc"
	ResourceSink   = "episode sink"
	ResourceFrames = "cameras"
)

// FrameSource captures one frame per camera for a tick.
type FrameSource interface {
	Capture(ctx context.Context, stamp string) (frames []string, ok bool)
	Close() error
}

// Resources holds every hardware and output handle the loop uses. A nil
// field means the resource was not configured or was never acquired.
type Resources struct {
	Servos servo.Driver
	ADC    adc.Reader
	Sink   episode.Sink
	Frames FrameSource

	// Pins are zeroed on Close.
	Pins []int

	closeOnce sync.Once
	closeErr  error
}

// Close stops every servo pulse train, then releases frames, ADC, sink and
// servo driver in that order. Every release is attempted; errors are joined.
// Calling Close again returns the first result.
func (r *Resources) Close() error {
	r.closeOnce.Do(func() {
		var errs []error
		if r.Servos != nil {
			for _, pin := range r.Pins {
				if err := r.Servos.SetPulseWidth(pin, servo.PulseOff); err != nil {
					errs = append(errs, fmt.Errorf("zero servo pin %d: %w", pin, err))
				}
			}
		}
		if r.Frames != nil {
			if err := r.Frames.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", ResourceFrames, err))
			}
		}
		if r.ADC != nil {
			if err := r.ADC.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", ResourceADC, err))
			}
		}
		if r.Sink != nil {
			if err := r.Sink.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", ResourceSink, err))
			}
		}
		if r.Servos != nil {
			if err := r.Servos.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", ResourceServos, err))
			}
		}
		r.closeErr = errors.Join(errs...)
		if r.closeErr != nil {
			log.Printf("recorder: cleanup finished with errors: %v", r.closeErr)
		} else {
			log.Println("recorder: hardware released")
		}
	})
	return r.closeErr
}

// Retry bounds hardware acquisition.
type Retry struct {
	Attempts int
	Delay    time.Duration
}

// DefaultRetry is three attempts one second apart.
var DefaultRetry = Retry{Attempts: 3, Delay: time.Second}

// Openers construct each resource. Servos and ADC are required; Sink and
// Frames are optional and are opened in that order, so a Frames opener may
// rely on the episode created by Sink.
type Openers struct {
	Servos func(ctx context.Context) (servo.Driver, error)
	ADC    func(ctx context.Context) (adc.Reader, error)
	Sink   func(ctx context.Context) (episode.Sink, error)
	Frames func(ctx context.Context) (FrameSource, error)
}

// Acquire opens servo driver, ADC, sink and frame source, in that order,
// retrying each one. On failure everything already acquired is released
// (servo pins zeroed first) and a *HardwareInitError is returned.
func Acquire(ctx context.Context, open Openers, pins []int, retry Retry) (*Resources, error) {
	if open.Servos == nil || open.ADC == nil {
		return nil, fmt.Errorf("recorder: servo and ADC openers are required")
	}
	res := &Resources{Pins: append([]int(nil), pins...)}

	fail := func(err error) (*Resources, error) {
		if cerr := res.Close(); cerr != nil {
			return nil, errors.Join(err, cerr)
		}
		return nil, err
	}

	var err error
	if res.Servos, err = acquire(ctx, ResourceServos, retry, open.Servos); err != nil {
		return fail(err)
	}
	if res.ADC, err = acquire(ctx, ResourceADC, retry, open.ADC); err != nil {
		return fail(err)
	}
	if open.Sink != nil {
		if res.Sink, err = acquire(ctx, ResourceSink, retry, open.Sink); err != nil {
			return fail(err)
		}
	}
	if open.Frames != nil {
		if res.Frames, err = acquire(ctx, ResourceFrames, retry, open.Frames); err != nil {
			return fail(err)
		}
	}
	return res, nil
}

// acquire calls open up to retry.Attempts times, retry.Delay apart. The
// zero value is returned on failure so that a typed nil never ends up in
// Resources.
func acquire[T any](ctx context.Context, name string, retry Retry, open func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := retry.Attempts
	if attempts < 1 {
		attempts = 1
	}

	calls := 0
	op := func() (T, error) {
		calls++
		return open(ctx)
	}
	notify := func(err error, next time.Duration) {
		log.Printf("recorder: %s init attempt %d/%d failed: %v, retrying in %v", name, calls, attempts, err, next)
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(retry.Delay), uint64(attempts-1)), ctx)

	v, err := backoff.RetryNotifyWithData[T](op, b, notify)
	if err != nil {
		log.Printf("recorder: %s init attempt %d/%d failed: %v", name, calls, attempts, err)
		return zero, &HardwareInitError{Resource: name, Attempts: calls, Err: err}
	}
	if calls > 1 {
		log.Printf("recorder: %s acquired on attempt %d", name, calls)
	}
	return v, nil
}
