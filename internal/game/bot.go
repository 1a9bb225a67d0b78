package game

import "log"

// Bot plays one side using flat Monte Carlo search.
type Bot struct {
	Player   Cell
	searcher *Searcher
}

func NewBot(player Cell, searcher *Searcher) *Bot {
	if searcher == nil {
		searcher = defaultSearcher
	}
	return &Bot{Player: player, searcher: searcher}
}

func (b *Bot) ChooseMove(board Board) int {
	return b.Search(board).Column
}

// Search runs the searcher on board and logs the summary the way the
// console reports it.
func (b *Bot) Search(board Board) Result {
	res := b.searcher.Search(board)
	if res.Book {
		log.Printf("bot p%d opening move column=%d", b.Player, res.Column)
	} else {
		log.Printf("bot p%d column=%d wins=%d samples=%d winRate=%.3f",
			b.Player, res.Column, res.Total.Wins, res.Total.Samples, res.Total.WinRate())
	}
	return res
}
