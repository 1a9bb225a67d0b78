package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"connectfour/internal/analytics"
)

func main() {
	broker := getenv("KAFKA_BROKER", "localhost:9092")
	topic := getenv("KAFKA_TOPIC", "game-events")

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   topic,
		GroupID: "analytics-consumer",
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("analytics consumer listening on %s topic=%s", broker, topic)

	metrics := analytics.NewMetrics()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.PrintStats()
			}
		}
	}()

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				metrics.PrintStats()
				return
			}
			log.Fatalf("read error: %v", err)
		}
		e, err := metrics.Consume(msg.Value)
		if err != nil {
			log.Printf("failed to unmarshal event: %v", err)
			continue
		}
		log.Printf("event=%s gameId=%v winner=%v", e.Event,
			e.Payload["gameId"],
			e.Payload["winner"])
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
