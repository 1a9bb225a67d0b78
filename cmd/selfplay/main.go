package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/muesli/termenv"

	"connectfour/internal/game"
)

func main() {
	playouts := flag.Int("playouts", game.DefaultPlayouts, "random playouts per candidate column")
	workers := flag.Int("workers", 1, "goroutines running playouts")
	human := flag.String("human", "", "let a person play this side: p1, p2 or empty for bot vs bot")
	once := flag.Bool("once", false, "play a single game without asking to play again")
	flag.Parse()

	humanSide := game.CellEmpty
	switch *human {
	case "":
	case "p1":
		humanSide = game.CellP1
	case "p2":
		humanSide = game.CellP2
	default:
		log.Fatalf("unknown side %q", *human)
	}

	out := termenv.NewOutput(os.Stdout)
	in := bufio.NewScanner(os.Stdin)
	searcher := game.NewSearcher(*playouts, *workers)

	for {
		players := [2]game.Chooser{}
		for i, side := range []game.Cell{game.CellP1, game.CellP2} {
			if side == humanSide {
				players[i] = &console{in: in, out: out}
			} else {
				players[i] = &announcer{bot: game.NewBot(side, searcher), out: out}
			}
		}
		match := game.NewMatch(players[0], players[1])
		fmt.Fprintf(out, "%s's Turn\n", sideName(game.CellP1))
		outcome, err := match.Run(func(col int, res game.MoveResult) {
			fmt.Fprintf(out, "Current Board:\n%s", render(out, res.Board))
			if !res.Outcome.Terminal() {
				fmt.Fprintf(out, "%s's Turn\n", sideName(res.Board.SideToMove()))
			}
		})
		if err != nil {
			log.Fatalf("game stopped: %v", err)
		}
		switch outcome {
		case game.P1Wins, game.P2Wins:
			fmt.Fprintf(out, "%s has won!\n", sideName(outcome.Winner()))
		default:
			fmt.Fprintln(out, "The game is a draw.")
		}

		if *once || !playAgain(in, out) {
			return
		}
	}
}

// announcer prints the bot's choice and its estimate before the move is made.
type announcer struct {
	bot *game.Bot
	out io.Writer
}

func (a *announcer) ChooseMove(board game.Board) int {
	res := a.bot.Search(board)
	fmt.Fprintf(a.out, "Selected move: %d\n", res.Column)
	if !res.Book {
		fmt.Fprintf(a.out, "Estimated number of wins: %d\n", res.Total.Wins)
		fmt.Fprintf(a.out, "Probability of winning: %.4f\n", res.Total.WinRate())
	}
	return res.Column
}

type console struct {
	in  *bufio.Scanner
	out io.Writer
}

func (c *console) ChooseMove(board game.Board) int {
	for {
		fmt.Fprint(c.out, "Select a Column Number in which to drop your token: ")
		if !c.in.Scan() {
			log.Fatal("input closed")
		}
		col, err := strconv.Atoi(strings.TrimSpace(c.in.Text()))
		switch {
		case err != nil:
			fmt.Fprintln(c.out, "Enter a number between 0 and 6.")
		case !board.IsLegal(col):
			fmt.Fprintln(c.out, "This column is already full or does not exist. Choose a different move")
		default:
			return col
		}
	}
}

func playAgain(in *bufio.Scanner, out io.Writer) bool {
	fmt.Fprint(out, "Play Again? Y/n: ")
	if !in.Scan() {
		return false
	}
	answer := strings.TrimSpace(in.Text())
	return !strings.HasPrefix(answer, "n") && !strings.HasPrefix(answer, "N")
}

func sideName(c game.Cell) string {
	if c == game.CellP2 {
		return "Yellow"
	}
	return "Red"
}

func render(out *termenv.Output, board game.Board) string {
	return board.Render(func(c game.Cell) string {
		switch c {
		case game.CellP1:
			return out.String(c.Symbol()).Foreground(termenv.ANSIRed).Bold().String()
		case game.CellP2:
			return out.String(c.Symbol()).Foreground(termenv.ANSIYellow).Bold().String()
		}
		return c.Symbol()
	})
}
