package analytics

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

type Metrics struct {
	winnerCounts  map[string]int
	gameDurations []float64
	gamesPerDay   map[string]int
	gamesPerHour  map[string]int
	userGames     map[string]int
	userWins      map[string]int
	totalGames    int
	draws         int
	totalMoves    int

	botMoves   int
	botSamples int
	botWins    int
	bookMoves  int

	mu sync.Mutex
}

func NewMetrics() *Metrics {
	return &Metrics{
		winnerCounts:  make(map[string]int),
		gameDurations: make([]float64, 0),
		gamesPerDay:   make(map[string]int),
		gamesPerHour:  make(map[string]int),
		userGames:     make(map[string]int),
		userWins:      make(map[string]int),
	}
}

// Consume decodes one Kafka message value and records it.
func (m *Metrics) Consume(value []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(value, &e); err != nil {
		return Event{}, err
	}
	switch e.Event {
	case EventGameFinished:
		m.RecordGameFinished(e.Payload, e.Timestamp)
	case EventBotMove:
		m.RecordBotMove(e.Payload)
	}
	return e, nil
}

func (m *Metrics) RecordGameFinished(payload map[string]any, timestamp time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalGames++

	winner, _ := payload["winner"].(string)
	switch {
	case winner == "":
		m.draws++
	case winner != "bot":
		m.winnerCounts[winner]++
		m.userWins[winner]++
	}

	if duration, ok := payload["duration"].(float64); ok {
		m.gameDurations = append(m.gameDurations, duration)
	}
	if moves, ok := payload["moves"].([]any); ok {
		m.totalMoves += len(moves)
	}

	dayKey := timestamp.Format("2006-01-02")
	hourKey := timestamp.Format("2006-01-02 15:00")
	m.gamesPerDay[dayKey]++
	m.gamesPerHour[hourKey]++

	if players, ok := payload["players"].([]any); ok {
		for _, p := range players {
			if username, ok := p.(string); ok && username != "bot" {
				m.userGames[username]++
			}
		}
	}
}

func (m *Metrics) RecordBotMove(payload map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.botMoves++
	if book, _ := payload["book"].(bool); book {
		m.bookMoves++
		return
	}
	// JSON numbers decode as float64
	if v, ok := payload["samples"].(float64); ok {
		m.botSamples += int(v)
	}
	if v, ok := payload["wins"].(float64); ok {
		m.botWins += int(v)
	}
}

type Summary struct {
	TotalGames      int
	Draws           int
	AverageDuration float64
	AverageMoves    float64
	WinnerCounts    map[string]int
	UserGames       map[string]int
	BotMoves        int
	BookMoves       int
	BotWinRate      float64
}

func (m *Metrics) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{
		TotalGames:   m.totalGames,
		Draws:        m.draws,
		WinnerCounts: copyCounts(m.winnerCounts),
		UserGames:    copyCounts(m.userGames),
		BotMoves:     m.botMoves,
		BookMoves:    m.bookMoves,
	}
	if len(m.gameDurations) > 0 {
		sum := 0.0
		for _, d := range m.gameDurations {
			sum += d
		}
		s.AverageDuration = sum / float64(len(m.gameDurations))
	}
	if m.totalGames > 0 {
		s.AverageMoves = float64(m.totalMoves) / float64(m.totalGames)
	}
	if m.botSamples > 0 {
		s.BotWinRate = float64(m.botWins) / float64(m.botSamples)
	}
	return s
}

func (m *Metrics) PrintStats() {
	s := m.Summary()
	m.mu.Lock()
	defer m.mu.Unlock()

	log.Printf("=== ANALYTICS SUMMARY ===")
	log.Printf("Total Games: %d (draws: %d)", s.TotalGames, s.Draws)
	log.Printf("Average Game Duration: %.2f seconds", s.AverageDuration)
	log.Printf("Average Moves Per Game: %.1f", s.AverageMoves)
	log.Printf("Most Frequent Winners: %v", s.WinnerCounts)
	log.Printf("Games Per Day: %v", m.gamesPerDay)
	log.Printf("Games Per Hour: %v", m.gamesPerHour)
	log.Printf("User Game Counts: %v", s.UserGames)
	log.Printf("User Win Counts: %v", m.userWins)
	log.Printf("Bot Moves: %d (opening: %d), estimated win rate %.3f", s.BotMoves, s.BookMoves, s.BotWinRate)
	log.Printf("========================")
}

func copyCounts(src map[string]int) map[string]int {
	dst := make(map[string]int, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
