package game

import (
	"errors"
	"strings"
)

const (
	Columns = 7
	Rows    = 6

	CenterColumn = Columns / 2
	connect      = 4
)

type Cell int

const (
	CellEmpty Cell = 0
	CellP1    Cell = 1
	CellP2    Cell = 2
)

func (c Cell) Opponent() Cell {
	switch c {
	case CellP1:
		return CellP2
	case CellP2:
		return CellP1
	}
	return CellEmpty
}

func (c Cell) Symbol() string {
	switch c {
	case CellP1:
		return "R"
	case CellP2:
		return "Y"
	}
	return "."
}

type Outcome int

const (
	InProgress Outcome = iota
	P1Wins
	P2Wins
	Draw
)

func (o Outcome) String() string {
	switch o {
	case P1Wins:
		return "p1_wins"
	case P2Wins:
		return "p2_wins"
	case Draw:
		return "draw"
	}
	return "in_progress"
}

// Winner returns the winning cell, or CellEmpty for a draw or a live game.
func (o Outcome) Winner() Cell {
	switch o {
	case P1Wins:
		return CellP1
	case P2Wins:
		return CellP2
	}
	return CellEmpty
}

func (o Outcome) Terminal() bool { return o != InProgress }

var (
	ErrColumnFull    = errors.New("column is full")
	ErrInvalidTurn   = errors.New("not your turn")
	ErrInvalidCol    = errors.New("invalid column")
	ErrInvalidPlayer = errors.New("invalid player")
	ErrGameFinished  = errors.New("game already finished")
	ErrFloatingToken = errors.New("token has an empty cell below it")
	ErrTokenCount    = errors.New("token counts cannot come from alternating play")
)

// Grid is indexed [row][column]; row 0 is the top of the board.
type Grid [Rows][Columns]Cell

// Board is one position. It is a value: moves return a new Board and never
// touch the receiver.
type Board struct {
	Grid      Grid
	LastMover Cell
}

type MoveResult struct {
	Board   Board
	Outcome Outcome
	Winner  Cell
	IsDraw  bool
	Winning [][2]int
}

func NewBoard() Board { return Board{} }

// FromGrid validates a grid supplied from outside and derives who moved last.
// With equal token counts P2 is taken as the last mover, which is the only
// option once any token is on the board.
func FromGrid(grid Grid) (Board, error) {
	var p1, p2 int
	for c := 0; c < Columns; c++ {
		seenEmpty := false
		for r := Rows - 1; r >= 0; r-- {
			switch grid[r][c] {
			case CellEmpty:
				seenEmpty = true
			case CellP1, CellP2:
				if seenEmpty {
					return Board{}, ErrFloatingToken
				}
				if grid[r][c] == CellP1 {
					p1++
				} else {
					p2++
				}
			default:
				return Board{}, ErrInvalidPlayer
			}
		}
	}
	b := Board{Grid: grid}
	switch {
	case p1 == 0 && p2 == 0:
	case p1 == p2:
		b.LastMover = CellP2
	case p1 == p2+1:
		b.LastMover = CellP1
	default:
		return Board{}, ErrTokenCount
	}
	return b, nil
}

func (b Board) SideToMove() Cell {
	if b.LastMover == CellEmpty {
		return CellP1
	}
	return b.LastMover.Opponent()
}

func (b Board) IsLegal(col int) bool {
	return col >= 0 && col < Columns && b.Grid[0][col] == CellEmpty
}

func (b Board) ApplyMove(col int, player Cell) (Board, error) {
	if col < 0 || col >= Columns {
		return b, ErrInvalidCol
	}
	if player != CellP1 && player != CellP2 {
		return b, ErrInvalidPlayer
	}
	row := b.dropRow(col)
	if row < 0 {
		return b, ErrColumnFull
	}
	next := b
	next.Grid[row][col] = player
	next.LastMover = player
	return next, nil
}

// Play drops a token for whoever is to move.
func (b Board) Play(col int) (Board, error) {
	return b.ApplyMove(col, b.SideToMove())
}

func (b Board) dropRow(col int) int {
	for row := Rows - 1; row >= 0; row-- {
		if b.Grid[row][col] == CellEmpty {
			return row
		}
	}
	return -1
}

func (b Board) LegalMoves() []int {
	var buf [Columns]int
	n := b.legalInto(&buf)
	return append([]int(nil), buf[:n]...)
}

func (b Board) legalInto(buf *[Columns]int) int {
	n := 0
	for col := 0; col < Columns; col++ {
		if b.Grid[0][col] == CellEmpty {
			buf[n] = col
			n++
		}
	}
	return n
}

func (b Board) IsEmpty() bool {
	return b.Grid == Grid{}
}

func (b Board) EmptyCells() int {
	n := 0
	for r := 0; r < Rows; r++ {
		for c := 0; c < Columns; c++ {
			if b.Grid[r][c] == CellEmpty {
				n++
			}
		}
	}
	return n
}

func (b Board) Classify() Outcome {
	switch winner, _, _ := b.firstRun(); winner {
	case CellP1:
		return P1Wins
	case CellP2:
		return P2Wins
	}
	for c := 0; c < Columns; c++ {
		if b.Grid[0][c] == CellEmpty {
			return InProgress
		}
	}
	return Draw
}

// scan order: vertical, horizontal, down-right, down-left
var directions = [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

// WinningLine reports the first run of four found, scanning each direction
// top-to-bottom and left-to-right.
func (b Board) WinningLine() (Cell, [][2]int) {
	winner, start, d := b.firstRun()
	if winner == CellEmpty {
		return CellEmpty, nil
	}
	coords := make([][2]int, 0, connect)
	for i := 0; i < connect; i++ {
		coords = append(coords, [2]int{start[0] + d[0]*i, start[1] + d[1]*i})
	}
	return winner, coords
}

func (b Board) firstRun() (Cell, [2]int, [2]int) {
	for _, d := range directions {
		for r := 0; r < Rows; r++ {
			for c := 0; c < Columns; c++ {
				if b.runFrom(r, c, d[0], d[1]) {
					return b.Grid[r][c], [2]int{r, c}, d
				}
			}
		}
	}
	return CellEmpty, [2]int{}, [2]int{}
}

func (b Board) runFrom(row, col, dr, dc int) bool {
	endR, endC := row+dr*(connect-1), col+dc*(connect-1)
	if endR < 0 || endR >= Rows || endC < 0 || endC >= Columns {
		return false
	}
	player := b.Grid[row][col]
	if player == CellEmpty {
		return false
	}
	for i := 1; i < connect; i++ {
		if b.Grid[row+dr*i][col+dc*i] != player {
			return false
		}
	}
	return true
}

func (b Board) Result() MoveResult {
	winner, line := b.WinningLine()
	outcome := b.Classify()
	return MoveResult{
		Board:   b,
		Outcome: outcome,
		Winner:  winner,
		IsDraw:  outcome == Draw,
		Winning: line,
	}
}

func (b Board) String() string {
	return b.Render(Cell.Symbol)
}

// Render draws the board with row labels down the side and column numbers
// underneath, using symbol to draw each cell.
func (b Board) Render(symbol func(Cell) string) string {
	var sb strings.Builder
	for r := 0; r < Rows; r++ {
		sb.WriteByte(byte('0' + r))
		sb.WriteString(" |")
		for c := 0; c < Columns; c++ {
			sb.WriteString("   ")
			sb.WriteString(symbol(b.Grid[r][c]))
		}
		sb.WriteByte('\n')
	}
	sb.WriteString("--|----------------------------\n  |")
	for c := 0; c < Columns; c++ {
		sb.WriteString("   ")
		sb.WriteByte(byte('0' + c))
	}
	sb.WriteByte('\n')
	return sb.String()
}
