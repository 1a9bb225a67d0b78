package storage

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()
	games := []CompletedGame{
		{ID: "g1", Winner: "alice", Status: "finished", StartedAt: now, EndedAt: now, Moves: []int{3, 3, 4}},
		{ID: "g2", Winner: "bob", Status: "finished"},
		{ID: "g3", Winner: "alice", Status: "finished"},
		{ID: "g4", Winner: "bot", Status: "finished"},
		{ID: "g5", Status: "finished"},
		{ID: "g1", Winner: "alice", Status: "finished"},
	}
	for _, g := range games {
		if err := s.SaveGame(ctx, g); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := s.GetLeaderboard(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []LeaderboardRow{{"alice", 2}, {"bob", 1}}
	if len(rows) != len(want) {
		t.Fatalf("leaderboard = %+v, want %+v", rows, want)
	}
	for i := range want {
		if rows[i] != want[i] {
			t.Fatalf("leaderboard = %+v, want %+v", rows, want)
		}
	}
	if rows, _ := s.GetLeaderboard(ctx, 1); len(rows) != 1 {
		t.Fatalf("limit ignored: %+v", rows)
	}

	g, err := s.GetGame(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(g.Moves) != 3 || g.Moves[2] != 4 {
		t.Fatalf("moves = %v", g.Moves)
	}
	if _, err := s.GetGame(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrNotFound)
	}

	// finished games are saved from their own goroutines while readers hit
	// the leaderboard and replay routes
	winner := "racer-" + uuid.NewString()[:8]
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	var wg sync.WaitGroup
	errs := make(chan error, 3*len(ids))
	for _, gid := range ids {
		wg.Add(3)
		go func(gid string) {
			defer wg.Done()
			errs <- s.SaveGame(ctx, CompletedGame{ID: gid, Winner: winner, Status: "finished", StartedAt: now, EndedAt: now, Moves: []int{0, 1}})
		}(gid)
		go func() {
			defer wg.Done()
			_, err := s.GetLeaderboard(ctx, 10)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := s.GetGame(ctx, "g1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call: %v", err)
		}
	}
	for _, gid := range ids {
		g, err := s.GetGame(ctx, gid)
		if err != nil {
			t.Fatalf("game %s not saved: %v", gid, err)
		}
		if g.Winner != winner {
			t.Fatalf("winner = %q, want %q", g.Winner, winner)
		}
	}
}

// Runs against a real database when TEST_POSTGRES_URL is set.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	pg, err := NewPostgresStore(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer pg.Close()
	if err := pg.EnsureTables(ctx); err != nil {
		t.Fatal(err)
	}

	id := uuid.NewString()
	now := time.Now().UTC().Truncate(time.Second)
	in := CompletedGame{ID: id, Winner: "dave", Status: "finished", StartedAt: now, EndedAt: now.Add(time.Minute), Moves: []int{3, 2, 3, 2, 3, 2, 3}}
	if err := pg.SaveGame(ctx, in); err != nil {
		t.Fatal(err)
	}
	out, err := pg.GetGame(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if out.Winner != "dave" || len(out.Moves) != len(in.Moves) {
		t.Fatalf("loaded %+v", out)
	}
	if _, err := pg.GetGame(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrNotFound)
	}

	// finished games are saved from their own goroutines while readers hit
	// the leaderboard and replay routes
	winner := "racer-" + uuid.NewString()[:8]
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = uuid.NewString()
	}
	var wg sync.WaitGroup
	errs := make(chan error, 3*len(ids))
	for _, gid := range ids {
		wg.Add(3)
		go func(gid string) {
			defer wg.Done()
			errs <- pg.SaveGame(ctx, CompletedGame{ID: gid, Winner: winner, Status: "finished", StartedAt: now, EndedAt: now, Moves: []int{0, 1}})
		}(gid)
		go func() {
			defer wg.Done()
			_, err := pg.GetLeaderboard(ctx, 10)
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := pg.GetGame(ctx, id)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent call: %v", err)
		}
	}
	for _, gid := range ids {
		g, err := pg.GetGame(ctx, gid)
		if err != nil {
			t.Fatalf("game %s not saved: %v", gid, err)
		}
		if g.Winner != winner {
			t.Fatalf("winner = %q, want %q", g.Winner, winner)
		}
	}
}
