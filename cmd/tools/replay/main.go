package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gobwas/glob"

	"main/internal/bus"
	"main/internal/recorder"
	"main/internal/schema"
)

func main() {
	file := flag.String("file", "", "Recording file to replay")
	speed := flag.Float64("speed", 0, "Playback speed (1=real-time, 0=no pacing)")
	topics := flag.String("topics", "", "Replay only topics matching this glob pattern")
	decode := flag.Bool("decode", false, "Print event payloads")
	flag.Parse()

	if *file == "" {
		log.Fatalf("-file is required")
	}
	if *speed < 0 {
		log.Fatalf("speed must be >= 0")
	}

	tl, err := recorder.Load(*file)
	if err != nil {
		log.Fatalf("recording load failed: %v", err)
	}
	fmt.Printf("session %q: %d events over %dms\n", tl.SessionName, len(tl.Events), tl.DurationMS())

	var filter func(topic string) bool
	if *topics != "" {
		pattern, err := glob.Compile(*topics)
		if err != nil {
			log.Fatalf("invalid topic pattern %q: %v", *topics, err)
		}
		filter = pattern.Match
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var index int
	sink := bus.PublisherFunc(func(topic string, payload schema.Value, source string) error {
		index++
		fmt.Printf("%06d topic=%s source=%s\n", index, topic, source)
		if *decode {
			fmt.Printf("       %s\n", payload.String())
		}
		return nil
	})

	result, err := recorder.NewReplayer().Replay(ctx, tl, sink, recorder.ReplayOptions{
		Speed:  *speed,
		Filter: filter,
	})
	if err != nil {
		log.Fatalf("replay failed: %v", err)
	}
	fmt.Printf("replayed=%d skipped=%d failed=%d stopped=%v\n", result.Replayed, result.Skipped, result.Failed, result.Stopped)
}
