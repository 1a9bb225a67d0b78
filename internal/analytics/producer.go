package analytics

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"connectfour/internal/game"
)

const (
	EventMovePlayed   = "move_played"
	EventBotMove      = "bot_move"
	EventGameFinished = "game_finished"
)

type Event struct {
	Event     string         `json:"event"`
	Payload   map[string]any `json:"payload"`
	Timestamp time.Time      `json:"timestamp"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		AllowAutoTopicCreation: true,
		BatchTimeout:           50 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

func (p *Producer) Publish(ctx context.Context, event string, payload map[string]any) {
	if p == nil || p.writer == nil {
		return
	}
	body := Event{
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("kafka encode %s failed: %v", event, err)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{Key: gameKey(payload), Value: data})
	if err != nil {
		log.Printf("kafka publish failed: %v", err)
	}
}

// gameKey keeps every event of one game on the same partition.
func gameKey(payload map[string]any) []byte {
	if id, ok := payload["gameId"].(string); ok && id != "" {
		return []byte(id)
	}
	return nil
}

// BotMovePayload describes one bot search for the bot_move event.
func BotMovePayload(gameID string, res game.Result) map[string]any {
	return map[string]any{
		"gameId":  gameID,
		"column":  res.Column,
		"book":    res.Book,
		"samples": res.Total.Samples,
		"wins":    res.Total.Wins,
		"draws":   res.Total.Draws,
		"winRate": res.Total.WinRate(),
	}
}

func (p *Producer) Close() {
	if p == nil || p.writer == nil {
		return
	}
	_ = p.writer.Close()
}
