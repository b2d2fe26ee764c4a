// Command session-replay republishes a recorded session from the SQLite
// store onto a PUB socket, preserving the original inter-sample timing
// (optionally scaled). Useful for exercising front-ends against real
// captures.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/meridian-cmm/armcast/internal/armdb"
	"github.com/meridian-cmm/armcast/internal/relay"
)

var (
	dbPath    = flag.String("db", "armcast.db", "Path to the SQLite store")
	sessionID = flag.String("session", "", "Session ID to replay (required)")
	publish   = flag.String("publish", "tcp://*:5556", "PUB endpoint to bind")
	topic     = flag.String("topic", relay.DefaultTopic, "Topic to publish on")
	speed     = flag.Float64("speed", 1.0, "Replay speed multiplier (2 = double speed)")
	loop      = flag.Bool("loop", false, "Restart from the beginning when the session ends")
	batchSize = flag.Int("batch", 500, "Samples fetched per query")
)

func main() {
	flag.Parse()

	if *sessionID == "" {
		log.Fatal("-session is required")
	}
	if *speed <= 0 {
		log.Fatal("speed must be positive")
	}

	db, err := armdb.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	stats, err := db.Stats(*sessionID)
	if err != nil {
		log.Fatalf("failed to query session: %v", err)
	}
	if stats.SampleCount == 0 {
		log.Fatalf("session %s has no samples", *sessionID)
	}

	publisher, err := relay.NewPublisher(*publish, *topic, nil)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}
	defer publisher.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("replaying session %s (%d samples, %.1f Hz average) at %.1fx",
		*sessionID, stats.SampleCount, stats.AvgHz, *speed)

	for {
		if err := replayOnce(ctx, db, publisher); err != nil {
			if err == context.Canceled {
				return
			}
			log.Fatalf("replay failed: %v", err)
		}
		if !*loop {
			break
		}
		select {
		case <-ctx.Done():
			return
		default:
			log.Printf("session complete, looping")
		}
	}

	pubStats := publisher.Stats()
	log.Printf("replay complete: published %d samples (%d dropped)", pubStats.Published, pubStats.Dropped)
}

// replayOnce walks the session in batches, sleeping the scaled inter-sample
// interval between publishes.
func replayOnce(ctx context.Context, db *armdb.DB, publisher *relay.Publisher) error {
	var afterSeq uint64
	var lastTS float64

	for {
		samples, err := db.Samples(*sessionID, afterSeq, *batchSize)
		if err != nil {
			return err
		}
		if len(samples) == 0 {
			return nil
		}

		for i := range samples {
			s := samples[i]
			if lastTS > 0 && s.Timestamp > lastTS {
				delay := time.Duration((s.Timestamp - lastTS) / *speed * float64(time.Second))
				select {
				case <-ctx.Done():
					return context.Canceled
				case <-time.After(delay):
				}
			}
			lastTS = s.Timestamp
			afterSeq = s.Seq

			// republish with a fresh sequence number and receive stamp
			replayed := s
			replayed.Seq = 0
			replayed.ReceivedNanos = 0
			if _, err := publisher.Publish(&replayed); err != nil {
				return err
			}
		}

		if len(samples) < *batchSize {
			return nil
		}
	}
}
