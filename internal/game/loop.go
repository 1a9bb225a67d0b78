package game

import (
	"errors"
	"fmt"
)

var ErrGameOver = errors.New("game is over")

type Chooser interface {
	ChooseMove(board Board) int
}

type ChooserFunc func(board Board) int

func (f ChooserFunc) ChooseMove(board Board) int { return f(board) }

// Match drives one game between two choosers. History holds every position
// played, starting with the empty board; it is only ever appended to.
type Match struct {
	players [2]Chooser
	History []Board
	Moves   []int
}

func NewMatch(p1, p2 Chooser) *Match {
	return &Match{
		players: [2]Chooser{p1, p2},
		History: []Board{NewBoard()},
	}
}

func (m *Match) Current() Board {
	return m.History[len(m.History)-1]
}

func (m *Match) Outcome() Outcome {
	return m.Current().Classify()
}

// Step asks the side to move for a column and plays it.
func (m *Match) Step() (MoveResult, error) {
	board := m.Current()
	if board.Classify().Terminal() {
		return board.Result(), ErrGameOver
	}
	side := board.SideToMove()
	col := m.players[side-CellP1].ChooseMove(board)
	next, err := board.ApplyMove(col, side)
	if err != nil {
		return board.Result(), fmt.Errorf("p%d column %d: %w", side, col, err)
	}
	m.History = append(m.History, next)
	m.Moves = append(m.Moves, col)
	return next.Result(), nil
}

// Run plays until the game ends, calling observe after every move. It stops
// at the first illegal choice.
func (m *Match) Run(observe func(col int, res MoveResult)) (Outcome, error) {
	for !m.Outcome().Terminal() {
		res, err := m.Step()
		if err != nil {
			return m.Outcome(), err
		}
		if observe != nil {
			observe(m.Moves[len(m.Moves)-1], res)
		}
	}
	return m.Outcome(), nil
}

// Replay rebuilds the positions of a stored move list, empty board first.
func Replay(moves []int) ([]Board, error) {
	history := make([]Board, 1, len(moves)+1)
	for i, col := range moves {
		board := history[len(history)-1]
		if board.Classify().Terminal() {
			return history, fmt.Errorf("move %d: %w", i, ErrGameOver)
		}
		next, err := board.Play(col)
		if err != nil {
			return history, fmt.Errorf("move %d: %w", i, err)
		}
		history = append(history, next)
	}
	return history, nil
}
