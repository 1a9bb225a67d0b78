package game

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultPlayouts is the number of random playouts run per candidate column
// when a Searcher is not told otherwise.
const DefaultPlayouts = 50

// SeedGeneratorFn supplies the base seed of every search. Each worker adds
// its own id to it.
var SeedGeneratorFn = func() int64 {
	return time.Now().UnixNano()
}

// Set custom seed generator, nil is ignored
func SetSeedGeneratorFn(f func() int64) {
	if f != nil {
		SeedGeneratorFn = f
	}
}

type Stats struct {
	Samples int `json:"samples"`
	Wins    int `json:"wins"`
	Draws   int `json:"draws"`
}

func (s Stats) WinRate() float64 {
	if s.Samples == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Samples)
}

func (s *Stats) Add(other Stats) {
	s.Samples += other.Samples
	s.Wins += other.Wins
	s.Draws += other.Draws
}

// Record folds one finished playout into the stats, counting a win when the
// outcome favours mover.
func (s *Stats) Record(outcome Outcome, mover Cell) {
	s.Samples++
	switch {
	case outcome == Draw:
		s.Draws++
	case outcome.Winner() == mover:
		s.Wins++
	}
}

type Result struct {
	Column  int
	Total   Stats
	Columns [Columns]Stats
	Legal   [Columns]bool
	// Book is set when the column came from the opening rule, not sampling.
	Book bool
}

type Searcher struct {
	Playouts int
	Workers  int
}

func NewSearcher(playouts, workers int) *Searcher {
	return &Searcher{Playouts: playouts, Workers: workers}
}

var defaultSearcher = &Searcher{Playouts: DefaultPlayouts, Workers: 1}

// SelectMove runs a sequential search with the given playout count and
// returns the chosen column with the summed stats of every playout.
func SelectMove(b Board, playoutsPerColumn int) (int, Stats) {
	s := *defaultSearcher
	s.Playouts = playoutsPerColumn
	res := s.Search(b)
	return res.Column, res.Total
}

func (s *Searcher) playouts() int {
	if s.Playouts <= 0 {
		return DefaultPlayouts
	}
	return s.Playouts
}

// Search evaluates every legal column of b for the side to move. b must be
// in progress.
func (s *Searcher) Search(b Board) Result {
	var res Result
	if b.IsEmpty() {
		res.Column = CenterColumn
		res.Book = true
		res.Legal = legalMask(b)
		return res
	}

	mover := b.SideToMove()
	var children [Columns]Board
	res.Legal = legalMask(b)
	for col := 0; col < Columns; col++ {
		if !res.Legal[col] {
			continue
		}
		children[col], _ = b.ApplyMove(col, mover)
	}

	seed := SeedGeneratorFn()
	n := s.playouts()
	workers := s.Workers
	if workers <= 1 {
		rng := rand.New(rand.NewSource(seed))
		for col := 0; col < Columns; col++ {
			if !res.Legal[col] {
				continue
			}
			for i := 0; i < n; i++ {
				res.Columns[col].Record(Playout(children[col], rng), mover)
			}
		}
	} else {
		res.Columns = s.searchParallel(children, res.Legal, mover, n, workers, seed)
	}

	for col := 0; col < Columns; col++ {
		res.Total.Add(res.Columns[col])
	}
	res.Column = bestColumn(res.Columns, res.Legal)
	return res
}

type task struct {
	col   int
	count int
}

// searchParallel hands out (column, playout batch) tasks to workers. Each
// worker keeps its own rng and stats; the partial stats are summed at the end.
func (s *Searcher) searchParallel(children [Columns]Board, legal [Columns]bool, mover Cell, n, workers int, seed int64) [Columns]Stats {
	batch := (n + workers - 1) / workers
	tasks := make(chan task, Columns*workers)
	for col := 0; col < Columns; col++ {
		if !legal[col] {
			continue
		}
		for left := n; left > 0; left -= batch {
			tasks <- task{col: col, count: min(batch, left)}
		}
	}
	close(tasks)

	partial := make([][Columns]Stats, workers)
	var wg sync.WaitGroup
	for id := 0; id < workers; id++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed + int64(id)))
			for t := range tasks {
				for i := 0; i < t.count; i++ {
					partial[id][t.col].Record(Playout(children[t.col], rng), mover)
				}
			}
		}(id)
	}
	wg.Wait()

	var merged [Columns]Stats
	for _, p := range partial {
		for col := range merged {
			merged[col].Add(p[col])
		}
	}
	return merged
}

// Playout drops tokens into uniformly random legal columns, alternating
// sides, until the game ends. A terminal b is returned as is.
func Playout(b Board, rng *rand.Rand) Outcome {
	var legal [Columns]int
	for {
		outcome := b.Classify()
		if outcome.Terminal() {
			return outcome
		}
		n := b.legalInto(&legal)
		b, _ = b.Play(legal[rng.Intn(n)])
	}
}

// bestColumn picks the legal column with the most wins. The ascending scan
// only replaces the incumbent on a strictly greater count, so ties keep the
// lower column.
func bestColumn(stats [Columns]Stats, legal [Columns]bool) int {
	best := -1
	for col := 0; col < Columns; col++ {
		if !legal[col] {
			continue
		}
		if best < 0 || stats[col].Wins > stats[best].Wins {
			best = col
		}
	}
	return best
}

func legalMask(b Board) [Columns]bool {
	var mask [Columns]bool
	for col := 0; col < Columns; col++ {
		mask[col] = b.IsLegal(col)
	}
	return mask
}
