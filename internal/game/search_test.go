package game

import (
	"math/rand"
	"os"
	"testing"
)

func TestMain(m *testing.M) {
	SetSeedGeneratorFn(func() int64 {
		return 42
	})
	os.Exit(m.Run())
}

// p1 to move with three stacked in column 0
func nearWin(t *testing.T) Board {
	t.Helper()
	b, err := FromGrid(gridFromRows(t,
		".......",
		".......",
		".......",
		"R......",
		"R.....Y",
		"R....YY",
	))
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSelectMoveEmptyBoard(t *testing.T) {
	for _, playouts := range []int{0, 1, 50, 1000} {
		col, stats := SelectMove(NewBoard(), playouts)
		if col != CenterColumn {
			t.Fatalf("playouts=%d: column %d, want %d", playouts, col, CenterColumn)
		}
		if stats != (Stats{}) {
			t.Fatalf("playouts=%d: stats = %+v, want empty", playouts, stats)
		}
	}
}

func TestSearchCountsEveryPlayout(t *testing.T) {
	b, _ := NewBoard().Play(3)
	for _, workers := range []int{1, 3, 8} {
		s := NewSearcher(30, workers)
		res := s.Search(b)
		if res.Book {
			t.Fatal("book move after the first ply")
		}
		if res.Total.Samples != 30*Columns {
			t.Fatalf("workers=%d: samples = %d, want %d", workers, res.Total.Samples, 30*Columns)
		}
		var sum Stats
		for col, st := range res.Columns {
			if st.Samples != 30 {
				t.Fatalf("workers=%d: column %d samples = %d", workers, col, st.Samples)
			}
			if st.Wins+st.Draws > st.Samples {
				t.Fatalf("workers=%d: column %d = %+v", workers, col, st)
			}
			sum.Add(st)
		}
		if sum != res.Total {
			t.Fatalf("workers=%d: total %+v, sum of columns %+v", workers, res.Total, sum)
		}
	}
}

func TestSearchFindsImmediateWin(t *testing.T) {
	b := nearWin(t)
	for _, workers := range []int{1, 4} {
		res := NewSearcher(200, workers).Search(b)
		if res.Column != 0 {
			t.Fatalf("workers=%d: column %d, want 0 (%+v)", workers, res.Column, res.Columns)
		}
		if res.Columns[0].Wins != 200 {
			t.Fatalf("workers=%d: winning column stats %+v", workers, res.Columns[0])
		}
	}
}

func TestSearchSkipsFullColumns(t *testing.T) {
	b, err := FromGrid(gridFromRows(t,
		"RYRYRY.",
		"RYRYRY.",
		"YRYRYR.",
		"YRYRYR.",
		"RYRYRY.",
		"RYRYRY.",
	))
	if err != nil {
		t.Fatal(err)
	}
	if b.Classify().Terminal() {
		t.Fatalf("fixture is terminal:\n%s", b)
	}
	col, stats := SelectMove(b, 10)
	if col != 6 {
		t.Fatalf("column %d, want 6", col)
	}
	if stats.Samples != 10 {
		t.Fatalf("samples = %d, want 10", stats.Samples)
	}
}

func TestBestColumnTieKeepsLowerColumn(t *testing.T) {
	var stats [Columns]Stats
	var legal [Columns]bool
	legal[2], legal[5] = true, true
	stats[2] = Stats{Samples: 50, Wins: 17}
	stats[5] = Stats{Samples: 50, Wins: 17, Draws: 10}
	if got := bestColumn(stats, legal); got != 2 {
		t.Fatalf("bestColumn = %d, want 2", got)
	}

	stats[5].Wins = 18
	if got := bestColumn(stats, legal); got != 5 {
		t.Fatalf("bestColumn = %d, want 5", got)
	}

	// an illegal column never wins, whatever its stats say
	stats[0] = Stats{Samples: 50, Wins: 50}
	if got := bestColumn(stats, legal); got != 5 {
		t.Fatalf("bestColumn = %d, want 5", got)
	}
}

func TestBestColumnAllZero(t *testing.T) {
	var stats [Columns]Stats
	var legal [Columns]bool
	legal[4], legal[6] = true, true
	if got := bestColumn(stats, legal); got != 4 {
		t.Fatalf("bestColumn = %d, want 4", got)
	}
}

func TestPlayoutEndsTerminal(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	b, _ := NewBoard().Play(3)
	for i := 0; i < 200; i++ {
		if out := Playout(b, rng); !out.Terminal() {
			t.Fatalf("playout %d ended %v", i, out)
		}
	}

	draw := Board{Grid: gridFromRows(t, drawRows...), LastMover: CellP2}
	if out := Playout(draw, rng); out != Draw {
		t.Fatalf("playout of full board = %v, want %v", out, Draw)
	}
}

func TestStatsRecord(t *testing.T) {
	var s Stats
	s.Record(P1Wins, CellP1)
	s.Record(P2Wins, CellP1)
	s.Record(Draw, CellP1)
	s.Record(P1Wins, CellP1)
	want := Stats{Samples: 4, Wins: 2, Draws: 1}
	if s != want {
		t.Fatalf("stats = %+v, want %+v", s, want)
	}
	if s.WinRate() != 0.5 {
		t.Fatalf("WinRate = %v", s.WinRate())
	}
	if (Stats{}).WinRate() != 0 {
		t.Fatal("empty WinRate is not 0")
	}
}

func BenchmarkSearch(b *testing.B) {
	board, _ := NewBoard().Play(3)
	s := NewSearcher(DefaultPlayouts, 1)
	for i := 0; i < b.N; i++ {
		s.Search(board)
	}
}
