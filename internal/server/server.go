package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"connectfour/internal/analytics"
	"connectfour/internal/game"
	"connectfour/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// MaxAnalyzePlayouts caps the per-column playouts a client may ask for.
const MaxAnalyzePlayouts = 5000

type Server struct {
	router          *gin.Engine
	manager         *game.Manager
	searcher        *game.Searcher
	store           storage.Store
	analytics       *analytics.Producer
	connections     map[string]*wsClient
	connMu          sync.RWMutex
	botDelay        time.Duration
	reconnectWindow time.Duration
}

type Config struct {
	BotFallbackAfter time.Duration
	ReconnectWindow  time.Duration
	Searcher         *game.Searcher
	Store            storage.Store
	Analytics        *analytics.Producer
}

func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	if cfg.Store == nil {
		cfg.Store = storage.NewMemoryStore()
	}
	if cfg.Searcher == nil {
		cfg.Searcher = game.NewSearcher(game.DefaultPlayouts, 1)
	}
	s := &Server{
		router:          router,
		searcher:        cfg.Searcher,
		store:           cfg.Store,
		analytics:       cfg.Analytics,
		connections:     make(map[string]*wsClient),
		botDelay:        cfg.BotFallbackAfter,
		reconnectWindow: cfg.ReconnectWindow,
	}
	s.manager = game.NewManager(cfg.ReconnectWindow, cfg.Searcher, s.onFinish)

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/leaderboard", s.handleLeaderboard)
	router.GET("/games/:id", s.handleGame)
	router.POST("/api/analyze", s.handleAnalyze)
	router.GET("/ws", s.handleWS)

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts the HTTP server down.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}
	go s.sweeper(ctx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Printf("shutting down: %v", ctx.Err())
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) sweeper(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.manager.SweepDisconnects()
		}
	}
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	rows, err := s.store.GetLeaderboard(c.Request.Context(), 10)
	if err != nil {
		log.Printf("leaderboard db error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "leaderboard unavailable"})
		return
	}
	if rows == nil {
		rows = []storage.LeaderboardRow{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleGame(c *gin.Context) {
	g, err := s.store.GetGame(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		log.Printf("load game error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "game unavailable"})
		return
	}
	history, err := game.Replay(g.Moves)
	if err != nil {
		log.Printf("game %s has a bad move list: %v", g.ID, err)
	}
	final := history[len(history)-1].Result()
	c.JSON(http.StatusOK, gin.H{
		"game":    g,
		"board":   final.Board.Grid,
		"outcome": final.Outcome.String(),
		"winning": final.Winning,
	})
}

type analyzeRequest struct {
	Board    [][]int `json:"board"`
	Playouts int     `json:"playouts"`
}

type columnReport struct {
	Column  int     `json:"column"`
	Legal   bool    `json:"legal"`
	Samples int     `json:"samples"`
	Wins    int     `json:"wins"`
	Draws   int     `json:"draws"`
	WinRate float64 `json:"winRate"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	grid, ok := toGrid(req.Board)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "board must be 6 rows of 7 cells"})
		return
	}
	board, err := game.FromGrid(grid)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if outcome := board.Classify(); outcome.Terminal() {
		c.JSON(http.StatusBadRequest, gin.H{"error": game.ErrGameOver.Error(), "outcome": outcome.String()})
		return
	}

	searcher := *s.searcher
	if req.Playouts > 0 {
		searcher.Playouts = min(req.Playouts, MaxAnalyzePlayouts)
	}
	res := searcher.Search(board)

	columns := make([]columnReport, game.Columns)
	for col := range columns {
		st := res.Columns[col]
		columns[col] = columnReport{
			Column:  col,
			Legal:   res.Legal[col],
			Samples: st.Samples,
			Wins:    st.Wins,
			Draws:   st.Draws,
			WinRate: st.WinRate(),
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"column":  res.Column,
		"player":  board.SideToMove(),
		"book":    res.Book,
		"samples": res.Total.Samples,
		"wins":    res.Total.Wins,
		"draws":   res.Total.Draws,
		"winRate": res.Total.WinRate(),
		"columns": columns,
	})
}

func toGrid(rows [][]int) (game.Grid, bool) {
	var grid game.Grid
	if len(rows) != game.Rows {
		return grid, false
	}
	for r, row := range rows {
		if len(row) != game.Columns {
			return grid, false
		}
		for c, v := range row {
			grid[r][c] = game.Cell(v)
		}
	}
	return grid, true
}

type wsClient struct {
	username string
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	server   *Server
	gameID   string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func (s *Server) handleWS(c *gin.Context) {
	username := c.Query("username")
	requestGameID := c.Query("gameId")
	if username == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username required"})
		return
	}
	if username == game.BotName {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username reserved"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	client := &wsClient{
		username: username,
		conn:     conn,
		send:     make(chan []byte, 8),
		done:     make(chan struct{}),
		server:   s,
		gameID:   requestGameID,
	}
	s.register(client)

	go client.writePump()
	go client.readPump()
}

func (s *Server) register(c *wsClient) {
	s.connMu.Lock()
	s.connections[c.username] = c
	s.connMu.Unlock()
}

func (s *Server) unregister(c *wsClient) {
	s.connMu.Lock()
	if s.connections[c.username] == c {
		delete(s.connections, c.username)
	}
	s.connMu.Unlock()
	close(c.done)
	c.conn.Close()
}

func (s *Server) connection(username string) (*wsClient, bool) {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	client, ok := s.connections[username]
	return client, ok
}

func (c *wsClient) writePump() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.WriteMessage(websocket.TextMessage, msg)
		}
	}
}

func (c *wsClient) readPump() {
	defer c.server.unregister(c)
	s := c.server

	var gameState *game.GameState

	// Rejoin if gameId provided
	if c.gameID != "" {
		if g, ok := s.manager.Rejoin(c.gameID, c.username); ok {
			gameState = g
			s.pushInit(g, c.username)
			s.pushState(g)
		}
	}
	if gameState == nil {
		g, _, waiting := s.manager.AssignPlayer(c.username)
		if waiting {
			c.sendJSON(map[string]any{"type": "waiting", "message": "waiting for opponent"})
			time.AfterFunc(s.botDelay, func() {
				if _, online := s.connection(c.username); !online {
					return
				}
				// Only trigger if still unpaired
				if !s.manager.InGame(c.username) {
					g := s.manager.StartBotGame(c.username)
					s.pushInit(g, c.username)
					if g.Bot != nil && g.Turn == g.Bot.Player {
						s.playBotTurn(g)
					}
				}
			})
		} else {
			gameState = g
			s.pushInit(gameState, c.username)
			// notify opponent if online
			for uname, pl := range gameState.Players {
				if uname == c.username || pl.IsBot {
					continue
				}
				if _, ok := s.connection(uname); ok {
					s.pushInit(gameState, uname)
				}
			}
		}
	}

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if s.manager.InGame(c.username) {
				s.manager.MarkDisconnected(c.username)
			} else {
				s.manager.Abandon(c.username)
			}
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg["type"] != "move" {
			continue
		}
		col, ok := msg["column"].(float64)
		if !ok {
			continue
		}
		move := game.Move{
			Username: c.username,
			GameID:   s.manager.GameForUser(c.username, c.gameID),
			Column:   int(col),
		}
		res, g, err := s.manager.HandleMove(move)
		if err != nil {
			c.sendJSON(map[string]any{"type": "error", "message": err.Error()})
			continue
		}
		s.broadcastState(g, res, nil)
		if g.Bot != nil && g.Status == game.StatusActive && g.Turn == g.Bot.Player {
			s.playBotTurn(g)
		}
	}
}

func (s *Server) pushInit(g *game.GameState, username string) {
	slot := game.CellEmpty
	if p, ok := g.Players[username]; ok {
		slot = p.Slot
	}
	payload := map[string]any{
		"type":      "init",
		"gameId":    g.ID,
		"board":     g.Board.Grid,
		"turn":      g.Turn,
		"you":       username,
		"slot":      slot,
		"opponent":  g.Opponent(username),
		"status":    g.Status,
		"winner":    g.Winner,
		"timestamp": time.Now().UTC(),
	}
	s.sendToUser(username, payload)
}

func (s *Server) pushState(g *game.GameState) {
	s.broadcastState(g, g.Board.Result(), nil)
}

func (s *Server) broadcastState(g *game.GameState, res game.MoveResult, search *game.Result) {
	payload := map[string]any{
		"type":    "state",
		"board":   res.Board.Grid,
		"turn":    g.Turn,
		"status":  g.Status,
		"winner":  g.Winner,
		"winning": res.Winning,
	}
	if search != nil {
		payload["bot"] = map[string]any{
			"column":  search.Column,
			"samples": search.Total.Samples,
			"wins":    search.Total.Wins,
			"winRate": search.Total.WinRate(),
		}
	}
	for uname, p := range g.Players {
		if p.IsBot {
			continue
		}
		s.sendToUser(uname, payload)
	}
	if s.analytics != nil {
		s.analytics.Publish(context.Background(), analytics.EventMovePlayed, map[string]any{
			"gameId":  g.ID,
			"status":  g.Status,
			"winner":  g.Winner,
			"players": humanPlayers(g),
			"ply":     len(g.Moves),
		})
	}
}

func (s *Server) sendToUser(username string, payload map[string]any) {
	client, ok := s.connection(username)
	if !ok {
		return
	}
	client.sendJSON(payload)
}

func humanPlayers(g *game.GameState) []string {
	players := make([]string, 0, len(g.Players))
	for uname, p := range g.Players {
		if !p.IsBot {
			players = append(players, uname)
		}
	}
	return players
}

// onFinish receives a copy of the finished game, so it may read it freely.
func (s *Server) onFinish(g *game.GameState) {
	moves := g.Moves
	if err := s.store.SaveGame(context.Background(), storage.CompletedGame{
		ID:        g.ID,
		Winner:    g.Winner,
		Status:    g.Status,
		StartedAt: g.StartedAt,
		EndedAt:   g.EndedAt,
		Moves:     moves,
	}); err != nil {
		log.Printf("save game %s: %v", g.ID, err)
	}
	if s.analytics != nil {
		players := humanPlayers(g)
		if g.Bot != nil {
			players = append(players, game.BotName)
		}
		duration := g.EndedAt.Sub(g.StartedAt).Seconds()
		s.analytics.Publish(context.Background(), analytics.EventGameFinished, map[string]any{
			"gameId":    g.ID,
			"winner":    g.Winner,
			"status":    g.Status,
			"players":   players,
			"duration":  duration,
			"moves":     moves,
			"startedAt": g.StartedAt,
			"endedAt":   g.EndedAt,
		})
	}
}

func (s *Server) playBotTurn(g *game.GameState) {
	gameID := g.ID
	res, search, g, err := s.manager.PlayBotTurn(gameID)
	if err != nil {
		log.Printf("bot move in game %s: %v", gameID, err)
		return
	}
	if s.analytics != nil {
		s.analytics.Publish(context.Background(), analytics.EventBotMove, analytics.BotMovePayload(g.ID, search))
	}
	s.broadcastState(g, res, &search)
}

func (c *wsClient) sendJSON(v any) {
	data, _ := json.Marshal(v)
	select {
	case c.send <- data:
	case <-c.done:
	default:
	}
}
