package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"connectfour/internal/analytics"
	"connectfour/internal/game"
	"connectfour/internal/server"
	"connectfour/internal/storage"
)

func main() {
	// Check for PORT first (used by Render, Fly.io, Heroku, etc.)
	port := os.Getenv("PORT")
	var addr string
	if port != "" {
		addr = ":" + port
	} else {
		addr = getEnv("ADDR", ":8080")
	}
	botDelay := durationEnv("BOT_DELAY", 10*time.Second)
	reconnect := durationEnv("RECONNECT_WINDOW", 30*time.Second)
	playouts := intEnv("SEARCH_PLAYOUTS", 1000)
	workers := intEnv("SEARCH_WORKERS", runtime.NumCPU())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store storage.Store
	if dsn := os.Getenv("POSTGRES_URL"); dsn != "" {
		pg, err := storage.NewPostgresStore(ctx, dsn)
		if err != nil {
			log.Printf("postgres disabled: %v", err)
		} else {
			defer pg.Close()
			if err := pg.EnsureTables(ctx); err != nil {
				log.Printf("postgres ensure tables failed: %v", err)
			}
			store = pg
		}
	}

	var producer *analytics.Producer
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		topic := getEnv("KAFKA_TOPIC", "game-events")
		producer = analytics.NewProducer(strings.Split(brokers, ","), topic)
		defer producer.Close()
	}

	srv := server.New(server.Config{
		BotFallbackAfter: botDelay,
		ReconnectWindow:  reconnect,
		Searcher:         game.NewSearcher(playouts, workers),
		Store:            store,
		Analytics:        producer,
	})

	log.Printf("server listening on %s (playouts=%d workers=%d)", addr, playouts, workers)
	if err := srv.Run(ctx, addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return time.Duration(parsed) * time.Second
		}
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
		log.Printf("ignoring %s=%q", key, v)
	}
	return fallback
}
