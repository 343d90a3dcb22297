package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/arm_recorder/internal/episode"
)

type captureSink struct {
	records []episode.Record
}

func (c *captureSink) Write(rec episode.Record) error {
	c.records = append(c.records, rec)
	return nil
}

func (c *captureSink) Close() error { return nil }

func TestReplay_KeepsTiming(t *testing.T) {
	records := []episode.Record{
		{Timestamp: "2026-10-19T10:00:00.000000", Angles: []float64{1}},
		{Timestamp: "2026-10-19T10:00:00.100000", Angles: []float64{2}},
		{Timestamp: "2026-10-19T10:00:00.400000", Angles: []float64{3}},
	}
	sink := &captureSink{}
	var waits []time.Duration
	sleep := func(_ context.Context, d time.Duration) { waits = append(waits, d) }

	require.NoError(t, replay(context.Background(), records, 2, sink, sleep))
	assert.Equal(t, records, sink.records)
	assert.Equal(t, []time.Duration{50 * time.Millisecond, 150 * time.Millisecond}, waits)
}

func TestReplay_BadTimestamp(t *testing.T) {
	err := replay(context.Background(), []episode.Record{{Timestamp: "yesterday"}}, 1, &captureSink{}, nil)
	assert.ErrorContains(t, err, "record 0")
}

func TestReplay_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sink := &captureSink{}
	require.NoError(t, replay(ctx, []episode.Record{{Timestamp: "2026-10-19T10:00:00.000000"}}, 1, sink, nil))
	assert.Empty(t, sink.records)
}

type cancelAfterSink struct {
	captureSink
	after  int
	cancel context.CancelFunc
}

func (c *cancelAfterSink) Write(rec episode.Record) error {
	c.captureSink.Write(rec)
	if len(c.records) == c.after {
		c.cancel()
	}
	return nil
}

func TestReplayLoop_RepeatEndsOnCancel(t *testing.T) {
	records := []episode.Record{
		{Timestamp: "2026-10-19T10:00:00.000000", Angles: []float64{1}},
		{Timestamp: "2026-10-19T10:00:00.010000", Angles: []float64{2}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &cancelAfterSink{after: 5, cancel: cancel}
	sleep := func(context.Context, time.Duration) {}

	done := make(chan error, 1)
	go func() { done <- replayLoop(ctx, records, 1, true, sink, sleep) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("repeating replay did not stop after cancel")
	}
	assert.Len(t, sink.records, 5)
}

func TestReplayLoop_SinglePass(t *testing.T) {
	sink := &captureSink{}
	records := []episode.Record{{Timestamp: "2026-10-19T10:00:00.000000"}}
	require.NoError(t, replayLoop(context.Background(), records, 1, false, sink, nil))
	assert.Len(t, sink.records, 1)
}
