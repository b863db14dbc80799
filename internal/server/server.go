package server

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"nrow/internal/analytics"
	"nrow/internal/game"
	"nrow/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Server struct {
	router        *gin.Engine
	manager       *game.Manager
	store         storage.Store
	analytics     *analytics.Producer
	connections   map[string]*wsClient
	connMu        sync.RWMutex
	defaultRegime string
}

type Config struct {
	IdleWindow    time.Duration
	Store         storage.Store
	Analytics     *analytics.Producer
	FrontendDir   string
	DefaultRegime string
}

func New(cfg Config) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	if cfg.Store == nil {
		cfg.Store = storage.NewMemoryStore(game.BotName)
	}
	if cfg.DefaultRegime == "" {
		cfg.DefaultRegime = game.RegimeClassic
	}
	s := &Server{
		router:        router,
		store:         cfg.Store,
		analytics:     cfg.Analytics,
		connections:   make(map[string]*wsClient),
		defaultRegime: cfg.DefaultRegime,
	}
	s.manager = game.NewManager(cfg.IdleWindow, s.onFinish)

	router.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	router.GET("/leaderboard", s.handleLeaderboard)
	router.GET("/stats", s.handleStats)
	router.GET("/ws", s.handleWS)

	api := router.Group("/api")
	api.GET("/regimes", s.handleRegimes)
	api.POST("/games", s.handleNewGame)
	api.GET("/games/:id", s.handleGetGame)
	api.POST("/games/:id/moves", s.handleMove)
	api.POST("/games/:id/restart", s.handleRestart)
	api.POST("/engine/move", s.handleEngineMove)
	api.POST("/engine/verdict", s.handleEngineVerdict)

	if cfg.FrontendDir != "" {
		router.StaticFile("/", filepath.Join(cfg.FrontendDir, "index.html"))
		router.Static("/static", cfg.FrontendDir)
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Manager() *game.Manager { return s.manager }

// DefaultSweepInterval is used when Sweep is given a non-positive interval.
const DefaultSweepInterval = 5 * time.Second

// Sweep closes idle games every interval until ctx is done.
func (s *Server) Sweep(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.manager.SweepIdle(); n > 0 {
				log.Debug().Int("games", n).Msg("swept idle games")
			}
		}
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().Str("method", c.Request.Method).Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).Dur("took", time.Since(start)).Msg("request")
	}
}

// errStatus maps engine and turn errors to HTTP statuses.
func errStatus(err error) int {
	switch {
	case errors.Is(err, game.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidTurn),
		errors.Is(err, game.ErrCellTaken),
		errors.Is(err, game.ErrGameFinished),
		errors.Is(err, game.ErrBoardFull):
		return http.StatusConflict
	case errors.Is(err, game.ErrInvalidCell),
		errors.Is(err, game.ErrInvalidMark),
		errors.Is(err, game.ErrBoardSize),
		errors.Is(err, game.ErrUnknownRegime):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func abort(c *gin.Context, err error) {
	c.JSON(errStatus(err), gin.H{"error": err.Error()})
}

func (s *Server) handleLeaderboard(c *gin.Context) {
	rows, err := s.store.GetLeaderboard(c.Request.Context(), 10)
	if err != nil {
		log.Error().Err(err).Msg("leaderboard query failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "leaderboard unavailable"})
		return
	}
	if rows == nil {
		rows = []storage.LeaderboardRow{}
	}
	c.JSON(http.StatusOK, rows)
}

func (s *Server) handleStats(c *gin.Context) {
	stats, err := s.store.GetRegimeStats(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("stats query failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stats unavailable"})
		return
	}
	if stats == nil {
		stats = []storage.RegimeStats{}
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleRegimes(c *gin.Context) {
	out := []RegimeDTO{}
	for _, r := range game.Regimes() {
		out = append(out, toRegimeDTO(r))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleNewGame(c *gin.Context) {
	var req NewGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := s.startGame(req.Username, req.Regime, req.Mark)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, toState(g))
}

func (s *Server) handleGetGame(c *gin.Context) {
	g, ok := s.manager.GetGame(c.Param("id"))
	if !ok {
		abort(c, game.ErrGameNotFound)
		return
	}
	c.JSON(http.StatusOK, toState(g))
}

func (s *Server) handleMove(c *gin.Context) {
	var req MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, g, err := s.manager.HandleMove(game.Move{Username: req.Username, GameID: c.Param("id"), Index: *req.Index})
	if err != nil {
		abort(c, err)
		return
	}
	s.publishMove(g, res)
	resp := MoveResponse{Human: &res}
	if bot, next, ok := s.playBotTurn(g); ok {
		resp.Bot = &bot
		g = next
	}
	resp.State = toState(g)
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleRestart(c *gin.Context) {
	g, err := s.manager.Restart(c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	if _, next, ok := s.playBotTurn(g); ok {
		g = next
	}
	c.JSON(http.StatusOK, toState(g))
}

func (s *Server) handleEngineMove(c *gin.Context) {
	var req EngineMoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := s.manager.Engine(req.Regime)
	if err != nil {
		abort(c, err)
		return
	}
	board, err := game.ParseBoard(req.Board)
	if err != nil {
		abort(c, err)
		return
	}
	bot, err := game.ParseMark(req.Bot)
	if err != nil {
		abort(c, err)
		return
	}
	opp, err := game.ParseMark(req.Opponent)
	if err != nil {
		abort(c, err)
		return
	}
	d, err := e.Decide(board, bot, opp)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (s *Server) handleEngineVerdict(c *gin.Context) {
	var req VerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	e, err := s.manager.Engine(req.Regime)
	if err != nil {
		abort(c, err)
		return
	}
	board, err := game.ParseBoard(req.Board)
	if err != nil {
		abort(c, err)
		return
	}
	v, err := e.EvaluateTerminal(board)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// startGame opens a game and lets the engine open when the human plays O.
func (s *Server) startGame(username, regime, mark string) (game.GameState, error) {
	if regime == "" {
		regime = s.defaultRegime
	}
	if mark == "" {
		mark = "X"
	}
	human, err := game.ParseMark(mark)
	if err != nil {
		return game.GameState{}, err
	}
	g, err := s.manager.StartGame(username, regime, human)
	if err != nil {
		return game.GameState{}, err
	}
	if _, next, ok := s.playBotTurn(g); ok {
		g = next
	}
	return g, nil
}

// playBotTurn moves for the engine when it is on turn in an active game.
func (s *Server) playBotTurn(g game.GameState) (game.MoveResult, game.GameState, bool) {
	if g.Status != game.StatusActive || g.Turn != g.Bot {
		return game.MoveResult{}, g, false
	}
	res, next, err := s.manager.PlayBotTurn(g.ID)
	if err != nil {
		log.Error().Err(err).Str("game", g.ID).Msg("bot move failed")
		return game.MoveResult{}, g, false
	}
	s.publishMove(next, res)
	return res, next, true
}

func (s *Server) publishMove(g game.GameState, res game.MoveResult) {
	if s.analytics == nil {
		return
	}
	ctx := context.Background()
	s.analytics.Publish(ctx, analytics.EventMovePlayed, map[string]any{
		"gameId":   g.ID,
		"regime":   g.Regime,
		"index":    res.Index,
		"mark":     res.Mark.String(),
		"status":   g.Status,
		"username": g.Username,
	})
	if d := res.Decision; d != nil {
		s.analytics.Publish(ctx, analytics.EventEngineDecision, map[string]any{
			"gameId": g.ID,
			"regime": g.Regime,
			"index":  d.Index,
			"policy": d.Policy,
			"score":  d.Score,
			"nodes":  d.Nodes,
			"limit":  d.Limit,
		})
	}
}

func (s *Server) onFinish(g game.GameState) {
	ctx := context.Background()
	outcome := g.Verdict.Outcome.String()
	if !g.Verdict.Terminal() {
		outcome = "abandoned"
	}
	if err := s.store.SaveGame(ctx, storage.CompletedGame{
		ID:        g.ID,
		Round:     g.Games,
		Username:  g.Username,
		Regime:    g.Regime,
		Winner:    g.Winner,
		Outcome:   outcome,
		Moves:     len(g.Moves),
		StartedAt: g.StartedAt,
		EndedAt:   g.EndedAt,
	}); err != nil {
		log.Warn().Err(err).Str("game", g.ID).Int("round", g.Games).Msg("result not stored")
	}
	if s.analytics != nil {
		s.analytics.Publish(ctx, analytics.EventGameFinished, map[string]any{
			"gameId":    g.ID,
			"round":     g.Games,
			"regime":    g.Regime,
			"username":  g.Username,
			"winner":    g.Winner,
			"outcome":   outcome,
			"moves":     len(g.Moves),
			"duration":  g.EndedAt.Sub(g.StartedAt).Seconds(),
			"startedAt": g.StartedAt,
			"endedAt":   g.EndedAt,
		})
	}
}
