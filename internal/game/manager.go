package game

import (
	"log"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const BotName = "bot"

const (
	StatusWaiting  = "waiting"
	StatusActive   = "active"
	StatusFinished = "finished"
)

// GameState is the manager's record of one game. Values handed out by the
// Manager are copies; changing them does not affect the game.
type GameState struct {
	ID         string
	Board      Board
	Status     string
	Winner     string
	StartedAt  time.Time
	EndedAt    time.Time
	Turn       Cell
	LastMoveAt time.Time
	Players    map[string]*Player
	Bot        *Bot
	// History starts with the empty board and gains one entry per move.
	History []Board
	Moves   []int
	// Disconnected maps a player to the time their connection dropped.
	Disconnected map[string]time.Time
}

type Player struct {
	Username string
	Slot     Cell
	IsBot    bool
}

type Manager struct {
	mu             sync.RWMutex
	waiting        *Player
	games          map[string]*GameState
	userToGame     map[string]string
	reconnectAfter time.Duration
	onFinish       func(*GameState)
	searcher       *Searcher
}

type Move struct {
	Username string
	GameID   string
	Column   int
}

func NewManager(reconnectWindow time.Duration, searcher *Searcher, onFinish func(*GameState)) *Manager {
	return &Manager{
		games:          make(map[string]*GameState),
		userToGame:     make(map[string]string),
		reconnectAfter: reconnectWindow,
		onFinish:       onFinish,
		searcher:       searcher,
	}
}

func newGameState(players map[string]*Player) *GameState {
	now := time.Now()
	return &GameState{
		ID:           uuid.NewString(),
		Status:       StatusActive,
		Turn:         CellP1,
		StartedAt:    now,
		LastMoveAt:   now,
		Players:      players,
		History:      []Board{NewBoard()},
		Disconnected: make(map[string]time.Time),
	}
}

func (g *GameState) snapshot() *GameState {
	cp := *g
	cp.Players = make(map[string]*Player, len(g.Players))
	for name, p := range g.Players {
		pc := *p
		cp.Players[name] = &pc
	}
	cp.History = slices.Clone(g.History)
	cp.Moves = slices.Clone(g.Moves)
	cp.Disconnected = maps.Clone(g.Disconnected)
	return &cp
}

// Opponent names the other seat in the game, the bot included.
func (g *GameState) Opponent(username string) string {
	for name := range g.Players {
		if name != username {
			return name
		}
	}
	return ""
}

// activeGame returns the unfinished game username sits in. Callers hold mu.
func (m *Manager) activeGame(username string) *GameState {
	g, ok := m.games[m.userToGame[username]]
	if !ok || g.Status == StatusFinished {
		return nil
	}
	return g
}

// AssignPlayer puts username back into its running game, queues it, or pairs
// it with the queued player. The bool reports that the player is queued.
func (m *Manager) AssignPlayer(username string) (*GameState, *Player, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g := m.activeGame(username); g != nil {
		delete(g.Disconnected, username)
		cp := g.snapshot()
		return cp, cp.Players[username], false
	}

	if m.waiting == nil || m.waiting.Username == username {
		m.waiting = &Player{Username: username, Slot: CellP1}
		return nil, m.waiting, true
	}

	first := m.waiting
	m.waiting = nil
	g := newGameState(map[string]*Player{
		first.Username: {Username: first.Username, Slot: CellP1},
		username:       {Username: username, Slot: CellP2},
	})
	m.games[g.ID] = g
	m.userToGame[first.Username] = g.ID
	m.userToGame[username] = g.ID
	cp := g.snapshot()
	return cp, cp.Players[username], false
}

// Rejoin reattaches username to gameID if it plays there.
func (m *Manager) Rejoin(gameID, username string) (*GameState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, false
	}
	if _, seated := g.Players[username]; !seated {
		return nil, false
	}
	delete(g.Disconnected, username)
	return g.snapshot(), true
}

func (m *Manager) StartBotGame(human string) *GameState {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g := m.activeGame(human); g != nil {
		return g.snapshot()
	}
	if m.waiting != nil && m.waiting.Username == human {
		m.waiting = nil
	}

	g := newGameState(map[string]*Player{
		human:   {Username: human, Slot: CellP1},
		BotName: {Username: BotName, Slot: CellP2, IsBot: true},
	})
	g.Bot = NewBot(CellP2, m.searcher)
	m.games[g.ID] = g
	m.userToGame[human] = g.ID
	return g.snapshot()
}

func (m *Manager) HandleMove(move Move) (MoveResult, *GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[move.GameID]
	if !ok {
		return MoveResult{}, nil, ErrInvalidTurn
	}
	if g.Status == StatusFinished {
		return MoveResult{}, g.snapshot(), ErrGameFinished
	}
	player, ok := g.Players[move.Username]
	if !ok || g.Turn != player.Slot {
		return MoveResult{}, g.snapshot(), ErrInvalidTurn
	}
	next, err := g.Board.ApplyMove(move.Column, player.Slot)
	if err != nil {
		return MoveResult{}, g.snapshot(), err
	}

	res := next.Result()
	g.Board = next
	g.History = append(g.History, next)
	g.Moves = append(g.Moves, move.Column)
	g.LastMoveAt = time.Now()
	delete(g.Disconnected, move.Username)
	switch {
	case res.Winner != CellEmpty:
		m.finish(g, move.Username, g.LastMoveAt)
	case res.IsDraw:
		m.finish(g, "", g.LastMoveAt)
	default:
		g.Turn = next.SideToMove()
	}
	return res, g.snapshot(), nil
}

// finish closes g and reports a copy to onFinish. Callers hold mu.
func (m *Manager) finish(g *GameState, winner string, at time.Time) {
	g.Status = StatusFinished
	g.Winner = winner
	g.EndedAt = at
	if m.onFinish != nil {
		go m.onFinish(g.snapshot())
	}
}

// PlayBotTurn searches on a snapshot of the bot game's board without holding
// the lock, then applies the chosen column as a regular move.
func (m *Manager) PlayBotTurn(gameID string) (MoveResult, Result, *GameState, error) {
	m.mu.RLock()
	g, ok := m.games[gameID]
	if !ok {
		m.mu.RUnlock()
		return MoveResult{}, Result{}, nil, ErrInvalidTurn
	}
	cp := g.snapshot()
	m.mu.RUnlock()

	if cp.Status == StatusFinished {
		return MoveResult{}, Result{}, cp, ErrGameFinished
	}
	if cp.Bot == nil || cp.Turn != cp.Bot.Player {
		return MoveResult{}, Result{}, cp, ErrInvalidTurn
	}
	search := cp.Bot.Search(cp.Board)
	res, after, err := m.HandleMove(Move{Username: BotName, GameID: gameID, Column: search.Column})
	return res, search, after, err
}

func (m *Manager) GetGame(gameID string) (*GameState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[gameID]
	if !ok {
		return nil, false
	}
	return g.snapshot(), true
}

// GameForUser returns the id of username's latest game, or fallback.
func (m *Manager) GameForUser(username, fallback string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.userToGame[username]; ok {
		return id
	}
	return fallback
}

// InGame reports whether username has been seated in a game.
func (m *Manager) InGame(username string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.games[m.userToGame[username]]
	return ok
}

// Abandon forgets username, taking it out of the queue if it was waiting.
func (m *Manager) Abandon(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.userToGame, username)
	if m.waiting != nil && m.waiting.Username == username {
		m.waiting = nil
	}
}

// MarkDisconnected starts the reconnect window for username in its running
// game. A player who reconnects or moves before it runs out keeps the game.
func (m *Manager) MarkDisconnected(username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g := m.activeGame(username); g != nil {
		if _, already := g.Disconnected[username]; !already {
			g.Disconnected[username] = time.Now()
		}
	}
}

// SweepDisconnects forfeits every game with a player who stayed away longer
// than the reconnect window. The opponent of whoever left first wins.
func (m *Manager) SweepDisconnects() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for id, g := range m.games {
		if g.Status == StatusFinished {
			continue
		}
		gone, since := "", time.Time{}
		for name, at := range g.Disconnected {
			if gone == "" || at.Before(since) {
				gone, since = name, at
			}
		}
		if gone == "" || now.Sub(since) <= m.reconnectAfter {
			continue
		}
		m.finish(g, g.Opponent(gone), now)
		log.Printf("game %s forfeited by %s after %s away", id, gone, now.Sub(since).Round(time.Second))
	}
}
