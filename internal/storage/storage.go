package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("game not found")

type CompletedGame struct {
	ID        string    `json:"id"`
	Winner    string    `json:"winner"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
	EndedAt   time.Time `json:"endedAt"`
	// Moves lists the columns played, in order.
	Moves []int `json:"moves"`
}

type LeaderboardRow struct {
	Username string `json:"username"`
	Wins     int    `json:"wins"`
}

type Store interface {
	SaveGame(ctx context.Context, game CompletedGame) error
	GetGame(ctx context.Context, id string) (CompletedGame, error)
	GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error)
}

// PostgresStore is shared by finishing games and HTTP handlers, so it holds a
// pool rather than a single connection.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, url string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) EnsureTables(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS games (
	id TEXT PRIMARY KEY,
	winner TEXT,
	status TEXT,
	started_at TIMESTAMP,
	ended_at TIMESTAMP,
	moves INTEGER[] NOT NULL DEFAULT '{}'
);
`)
	if err != nil {
		return err
	}
	// tables created before move lists were stored
	_, err = p.pool.Exec(ctx, `ALTER TABLE games ADD COLUMN IF NOT EXISTS moves INTEGER[] NOT NULL DEFAULT '{}'`)
	return err
}

func (p *PostgresStore) SaveGame(ctx context.Context, game CompletedGame) error {
	if p == nil || p.pool == nil {
		return nil
	}
	moves := game.Moves
	if moves == nil {
		moves = []int{}
	}
	_, err := p.pool.Exec(ctx, `INSERT INTO games (id, winner, status, started_at, ended_at, moves)
VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING`, game.ID, game.Winner, game.Status, game.StartedAt, game.EndedAt, moves)
	if err != nil {
		log.Printf("failed to save game: %v", err)
	}
	return err
}

func (p *PostgresStore) GetGame(ctx context.Context, id string) (CompletedGame, error) {
	var g CompletedGame
	err := p.pool.QueryRow(ctx, `
SELECT id, COALESCE(winner, ''), COALESCE(status, ''), started_at, ended_at, moves
FROM games WHERE id = $1`, id).Scan(&g.ID, &g.Winner, &g.Status, &g.StartedAt, &g.EndedAt, &g.Moves)
	if errors.Is(err, pgx.ErrNoRows) {
		return CompletedGame{}, ErrNotFound
	}
	if err != nil {
		return CompletedGame{}, fmt.Errorf("load game %s: %w", id, err)
	}
	return g, nil
}

func (p *PostgresStore) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardRow, error) {
	rows, err := p.pool.Query(ctx, `
SELECT winner, COUNT(*) as wins
FROM games
WHERE winner IS NOT NULL AND winner <> '' AND winner <> 'bot'
GROUP BY winner
ORDER BY wins DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []LeaderboardRow
	for rows.Next() {
		var row LeaderboardRow
		if err := rows.Scan(&row.Username, &row.Wins); err != nil {
			return nil, err
		}
		res = append(res, row)
	}
	return res, rows.Err()
}

// MemoryStore keeps finished games in process. The server falls back to it
// when Postgres is not configured.
type MemoryStore struct {
	mu    sync.Mutex
	games map[string]CompletedGame
	wins  map[string]int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]CompletedGame),
		wins:  make(map[string]int),
	}
}

func (m *MemoryStore) SaveGame(_ context.Context, game CompletedGame) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[game.ID]; ok {
		return nil
	}
	game.Moves = append([]int(nil), game.Moves...)
	m.games[game.ID] = game
	if game.Winner != "" && game.Winner != "bot" {
		m.wins[game.Winner]++
	}
	return nil
}

func (m *MemoryStore) GetGame(_ context.Context, id string) (CompletedGame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[id]
	if !ok {
		return CompletedGame{}, ErrNotFound
	}
	return g, nil
}

func (m *MemoryStore) GetLeaderboard(_ context.Context, limit int) ([]LeaderboardRow, error) {
	m.mu.Lock()
	res := make([]LeaderboardRow, 0, len(m.wins))
	for name, wins := range m.wins {
		res = append(res, LeaderboardRow{Username: name, Wins: wins})
	}
	m.mu.Unlock()
	sort.Slice(res, func(i, j int) bool {
		if res[i].Wins != res[j].Wins {
			return res[i].Wins > res[j].Wins
		}
		return res[i].Username < res[j].Username
	})
	if limit > 0 && len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}
