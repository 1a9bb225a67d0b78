package analytics

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"connectfour/internal/game"
)

type recordingWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestProducerPublish(t *testing.T) {
	w := &recordingWriter{}
	p := &Producer{writer: w}

	res := game.Result{Column: 4, Total: game.Stats{Samples: 100, Wins: 40, Draws: 5}}
	p.Publish(context.Background(), EventBotMove, BotMovePayload("g1", res))
	p.Close()

	if len(w.msgs) != 1 || !w.closed {
		t.Fatalf("msgs=%d closed=%v", len(w.msgs), w.closed)
	}
	if string(w.msgs[0].Key) != "g1" {
		t.Fatalf("key = %q", w.msgs[0].Key)
	}
	var e Event
	if err := json.Unmarshal(w.msgs[0].Value, &e); err != nil {
		t.Fatal(err)
	}
	if e.Event != EventBotMove || e.Payload["column"] != float64(4) || e.Payload["winRate"] != 0.4 {
		t.Fatalf("event = %+v", e)
	}
}

func TestNilProducer(t *testing.T) {
	var p *Producer
	p.Publish(context.Background(), EventMovePlayed, nil)
	p.Close()
	if NewProducer(nil, "topic") != nil {
		t.Fatal("producer without brokers")
	}
}

func encode(t *testing.T, e Event) []byte {
	t.Helper()
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestMetricsConsume(t *testing.T) {
	m := NewMetrics()
	ts := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	events := []Event{
		{Event: EventGameFinished, Timestamp: ts, Payload: map[string]any{
			"winner": "alice", "duration": 30.0, "players": []string{"alice", "bot"}, "moves": []int{3, 3, 3, 3, 3, 2, 3},
		}},
		{Event: EventGameFinished, Timestamp: ts, Payload: map[string]any{
			"winner": "", "duration": 90.0, "players": []string{"alice", "bob"}, "moves": []int{1},
		}},
		{Event: EventBotMove, Payload: BotMovePayload("g1", game.Result{Column: 3, Book: true})},
		{Event: EventBotMove, Payload: BotMovePayload("g1", game.Result{Column: 2, Total: game.Stats{Samples: 200, Wins: 50}})},
		{Event: EventMovePlayed, Payload: map[string]any{"gameId": "g1"}},
	}
	for _, e := range events {
		if _, err := m.Consume(encode(t, e)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := m.Consume([]byte("{")); err == nil {
		t.Fatal("bad json accepted")
	}

	s := m.Summary()
	if s.TotalGames != 2 || s.Draws != 1 {
		t.Fatalf("games=%d draws=%d", s.TotalGames, s.Draws)
	}
	if s.AverageDuration != 60 || s.AverageMoves != 4 {
		t.Fatalf("avg duration=%v moves=%v", s.AverageDuration, s.AverageMoves)
	}
	if s.WinnerCounts["alice"] != 1 || s.UserGames["alice"] != 2 || s.UserGames["bot"] != 0 {
		t.Fatalf("winners=%v users=%v", s.WinnerCounts, s.UserGames)
	}
	if s.BotMoves != 2 || s.BookMoves != 1 || s.BotWinRate != 0.25 {
		t.Fatalf("bot moves=%d book=%d rate=%v", s.BotMoves, s.BookMoves, s.BotWinRate)
	}
	m.PrintStats()
}
