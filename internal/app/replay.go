package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/arm_recorder/internal/config"
	"github.com/relabs-tech/arm_recorder/internal/episode"
)

// RunReplay publishes a recorded episode on the live topic with its recorded
// timing, so the monitor, console and display can be used without the arm.
func RunReplay(dir string, speed float64, repeat bool) error {
	cfg := config.Get()

	records, err := episode.ReadRecords(dir)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("episode %s has no rows", dir)
	}

	sink, err := episode.DialMQTT(cfg.MQTTBroker, cfg.MQTTClientIDRecorder+"-replay", cfg.TopicAngles)
	if err != nil {
		return err
	}
	defer sink.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("replay: %d records from %s at %.1fx", len(records), dir, speed)
	return replayLoop(ctx, records, speed, repeat, sink, sleepCtx)
}

// replayLoop replays records once, or until ctx is done when repeat is set.
func replayLoop(ctx context.Context, records []episode.Record, speed float64, repeat bool, sink episode.Sink, sleep func(context.Context, time.Duration)) error {
	for pass := 1; ; pass++ {
		if err := replay(ctx, records, speed, sink, sleep); err != nil || !repeat || ctx.Err() != nil {
			return err
		}
		log.Printf("replay: pass %d done, starting over", pass)
	}
}

// replay writes records to sink, waiting between them for the gap between
// their timestamps divided by speed. It stops early when ctx is done.
func replay(ctx context.Context, records []episode.Record, speed float64, sink episode.Sink, sleep func(context.Context, time.Duration)) error {
	if speed <= 0 {
		speed = 1
	}
	var prev time.Time
	for i, rec := range records {
		if ctx.Err() != nil {
			return nil
		}
		ts, err := episode.ParseStamp(rec.Timestamp)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if !prev.IsZero() {
			if gap := ts.Sub(prev); gap > 0 {
				sleep(ctx, time.Duration(float64(gap)/speed))
			}
		}
		prev = ts

		if err := sink.Write(rec); err != nil {
			log.Printf("replay: publish error: %v", err)
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
