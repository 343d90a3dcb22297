// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package recorder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/arm_recorder/internal/episode"
	"github.com/relabs-tech/arm_recorder/internal/filter"
	"github.com/relabs-tech/arm_recorder/internal/servo"
)

// Channel pairs a potentiometer ADC input with the servo it drives.
type Channel struct {
	ADC int
	Pin int
}

// Options configures a Loop.
type Options struct {
	Channels   []Channel
	Period     time.Duration
	FilterSize int
	Precision  int
}

// Stats counts what the loop did.
type Stats struct {
	Ticks    uint64
	Logged   uint64
	Skipped  uint64 // ticks with a missing ADC sample
	NoFrames uint64 // ticks actuated but not logged because capture failed
	Overruns uint64 // ticks that took longer than the period
}

// Loop is the fixed-rate control loop.
type Loop struct {
	res       *Resources
	channels  []Channel
	period    time.Duration
	precision int
	filter    *filter.MovingAverage

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration)

	state    atomic.Int32
	stop     chan struct{}
	stopOnce sync.Once

	mu     sync.Mutex
	stats  Stats
	latest episode.Record
}

// NewLoop builds a loop over acquired resources. The loop owns res from here
// on and releases it when Run returns.
func NewLoop(res *Resources, opts Options) (*Loop, error) {
	if res == nil || res.ADC == nil || res.Servos == nil {
		return nil, fmt.Errorf("recorder: ADC and servo driver are required")
	}
	if len(opts.Channels) == 0 {
		return nil, fmt.Errorf("recorder: no channels configured")
	}
	if opts.Period <= 0 {
		return nil, fmt.Errorf("recorder: period must be positive, got %v", opts.Period)
	}
	l := &Loop{
		res:       res,
		channels:  append([]Channel(nil), opts.Channels...),
		period:    opts.Period,
		precision: opts.Precision,
		filter:    filter.NewMovingAverage(opts.FilterSize),
		now:       time.Now,
		sleep:     sleepCtx,
		stop:      make(chan struct{}),
	}
	l.state.Store(int32(StateInit))
	return l, nil
}

// Filter exposes the smoothing state for concurrent readers.
func (l *Loop) Filter() *filter.MovingAverage {
	return l.filter
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Stats returns a snapshot of the counters.
func (l *Loop) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Latest returns the last record produced, logged or not.
func (l *Loop) Latest() (episode.Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.latest, l.latest.Timestamp != ""
}

// Stop asks the loop to finish after the current tick.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

// Run ticks until ctx is cancelled or Stop is called, then releases all
// resources. The returned error comes from cleanup only; tick failures are
// logged and counted.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateInit), int32(StateRunning)) {
		return fmt.Errorf("recorder: loop already %s", l.State())
	}
	log.Printf("recorder: running %d channels at %.1f Hz", len(l.channels), float64(time.Second)/float64(l.period))

	for l.running(ctx) {
		start := l.now()
		l.tick(ctx, start)

		elapsed := l.now().Sub(start)
		if wait := l.period - elapsed; wait > 0 {
			l.sleep(ctx, wait)
		} else {
			l.count(func(s *Stats) { s.Overruns++ })
		}
	}

	l.state.Store(int32(StateStopping))
	log.Println("recorder: stopping")
	err := l.res.Close()
	l.state.Store(int32(StateStopped))

	s := l.Stats()
	log.Printf("recorder: stopped after %d ticks (%d logged, %d skipped, %d without frames, %d overruns)",
		s.Ticks, s.Logged, s.Skipped, s.NoFrames, s.Overruns)
	return err
}

func (l *Loop) running(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-l.stop:
		return false
	default:
		return true
	}
}

// tick samples every channel, logs the row when possible and drives the
// servos. A missing sample on any channel skips the whole tick without
// touching the smoothing history.
func (l *Loop) tick(ctx context.Context, start time.Time) {
	l.count(func(s *Stats) { s.Ticks++ })

	raw := make([]uint16, len(l.channels))
	for i, ch := range l.channels {
		v, ok := l.res.ADC.ReadRaw(ch.ADC)
		if !ok {
			l.count(func(s *Stats) { s.Skipped++ })
			return
		}
		raw[i] = v
	}

	rec := episode.Record{
		Timestamp: episode.Stamp(start),
		Angles:    make([]float64, len(l.channels)),
	}
	for i, v := range raw {
		rec.Angles[i] = servo.ToAngle(l.filter.Smooth(i, float64(v)), l.precision)
	}

	logRow := true
	if l.res.Frames != nil {
		frames, ok := l.res.Frames.Capture(ctx, rec.Timestamp)
		if ok {
			rec.Frames = frames
		} else {
			logRow = false
			l.count(func(s *Stats) { s.NoFrames++ })
		}
	}

	if logRow && l.res.Sink != nil {
		if err := l.res.Sink.Write(rec); err != nil {
			log.Printf("recorder: log write error: %v", err)
		} else {
			l.count(func(s *Stats) { s.Logged++ })
		}
	}

	for i, ch := range l.channels {
		pulse := servo.ToPulseWidth(rec.Angles[i])
		if err := l.res.Servos.SetPulseWidth(ch.Pin, pulse); err != nil {
			log.Printf("recorder: servo pin %d error: %v", ch.Pin, err)
		}
	}

	l.mu.Lock()
	l.latest = rec
	l.mu.Unlock()
}

func (l *Loop) count(f func(*Stats)) {
	l.mu.Lock()
	f(&l.stats)
	l.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
