package devserver

import (
	"botconsole/clients/dashboardapi"
	"botconsole/clients/logstream"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	connectedMessage = "Подключение к логам установлено"
	initialLogs      = 10
	defaultLogLimit  = 50
)

var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server speaks the dashboard backend contract over an in-memory Store.
type Server struct {
	logger *zap.Logger
	store  *Store
	engine *gin.Engine
}

func NewServer(logger *zap.Logger, store *Store) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		logger: logger,
		store:  store,
		engine: gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()
	return s
}

// Handler exposes the router for http.Server and httptest.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	mode := s.engine.Group("/api/trading-mode")
	mode.GET("/status", s.getModeStatus)
	mode.POST("/switch", s.switchMode)
	mode.POST("/switch-confirmed", s.switchModeConfirmed)
	mode.POST("/reset", s.resetMode)

	s.engine.GET("/api/logs/stream", s.streamLogs)
	s.engine.GET("/api/logs/ws", s.wsLogs)
	s.engine.GET("/api/trading-bot/log", s.getBotLog)
	s.engine.DELETE("/api/trading-bot/log", s.clearBotLog)
	s.engine.POST("/api/dev/logs", s.postLog)

	s.engine.GET("/api/accounts", s.getAccounts)
	s.engine.GET("/api/portfolio", s.requireAccount, s.canned(gin.H{"totalAmountShares": 125000.5, "positions": []gin.H{}}))
	s.engine.GET("/api/orders", s.requireAccount, s.canned([]gin.H{}))
	s.engine.GET("/api/instruments/:kind", s.getInstruments)
	s.engine.GET("/api/trading-bot/status", s.canned(gin.H{"running": true, "strategy": "rebalance"}))
	s.engine.GET("/api/trading-bot/opportunities", s.canned([]gin.H{}))
	s.engine.GET("/api/margin/settings", s.canned(gin.H{"enabled": false, "maxUtilizationPct": 30}))
	s.engine.GET("/api/hard-stops", s.canned(gin.H{"enabled": true, "ocoEnabled": false}))

	s.engine.GET("/api/health", s.getHealth)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}

// ---- Trading mode ----

func (s *Server) getModeStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.Status())
}

func (s *Server) modeResponse(message string) gin.H {
	st := s.store.Status()
	resp := gin.H{"success": true, "message": message}
	for _, k := range []string{"currentMode", "displayName", "badgeClass", "modeInfo", "lastUpdate"} {
		resp[k] = st[k]
	}
	return resp
}

// switchMode refuses an unconfirmed switch into production, like the real
// backend's protection service.
func (s *Server) switchMode(c *gin.Context) {
	target := dashboardapi.TradingMode(c.PostForm("mode"))
	if !target.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Неверный режим: " + string(target)})
		return
	}

	if target == dashboardapi.ModeProduction && s.store.Mode() != dashboardapi.ModeProduction {
		c.JSON(http.StatusBadRequest, gin.H{
			"success":              false,
			"message":              "Небезопасное переключение режима. Требуется подтверждение.",
			"requiresConfirmation": true,
			"currentMode":          s.store.Mode(),
		})
		return
	}

	s.store.SetMode(target)
	s.logger.Info("trading mode switched", zap.String("mode", string(target)))
	c.JSON(http.StatusOK, s.modeResponse("Режим успешно переключен на: "+displayName(target)))
}

func (s *Server) switchModeConfirmed(c *gin.Context) {
	target := dashboardapi.TradingMode(c.PostForm("mode"))
	if !target.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Ошибка переключения режима"})
		return
	}

	s.store.SetMode(target)
	s.logger.Warn("trading mode switched with confirmation", zap.String("mode", string(target)))

	resp := s.modeResponse("Режим переключен на: " + displayName(target))
	if target == dashboardapi.ModeProduction {
		resp["warning"] = "ВНИМАНИЕ! Режим реальной торговли активен. Все операции будут выполняться с реальными деньгами!"
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) resetMode(c *gin.Context) {
	s.store.SetMode(dashboardapi.ModeSandbox)
	c.JSON(http.StatusOK, s.modeResponse("Режим торговли сброшен к значению по умолчанию"))
}

// ---- Bot log ----

func (s *Server) getBotLog(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.String(http.StatusBadRequest, "Неверный лимит: "+raw)
			return
		}
		limit = n
	}

	level := c.Query("level")
	if level != "" && !slices.Contains(dashboardapi.Levels, level) {
		c.String(http.StatusBadRequest, "Неверный уровень лога: "+level)
		return
	}
	category := c.Query("category")
	if category != "" && !slices.Contains(dashboardapi.Categories, category) {
		c.String(http.StatusBadRequest, "Неверная категория лога: "+category)
		return
	}

	entries := s.store.Recent(limit, level, category)
	stats := s.store.Stats()
	c.JSON(http.StatusOK, gin.H{
		"entries":      entries,
		"totalEntries": len(entries),
		"statistics":   stats,
	})
}

func (s *Server) clearBotLog(c *gin.Context) {
	s.store.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "Лог очищен"})
}

type logRequest struct {
	Level    string `json:"level" binding:"required"`
	Category string `json:"category" binding:"required"`
	Message  string `json:"message" binding:"required"`
	Details  string `json:"details"`
}

func (s *Server) postLog(c *gin.Context) {
	var req logRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, s.store.Append(req.Level, req.Category, req.Message, req.Details))
}

// streamLogs is the server-sent-events feed: connected, a snapshot of the
// most recent entries, then live updates.
func (s *Server) streamLogs(c *gin.Context) {
	events, cancel := s.store.Subscribe()
	defer cancel()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Render(-1, sse.Event{Event: "connected", Data: connectedMessage})
	c.Render(-1, sse.Event{Event: "initial-logs", Data: s.store.Recent(initialLogs, "", "")})
	c.Writer.Flush()

	s.logger.Info("log stream subscriber joined", zap.String("transport", "sse"))
	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case b := <-events:
			c.Render(-1, sse.Event{Event: b.Event, Data: b.Data})
			return true
		}
	})
	s.logger.Info("log stream subscriber left", zap.String("transport", "sse"))
}

// wsLogs is the same feed as JSON frames over a WebSocket.
func (s *Server) wsLogs(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	events, cancel := s.store.Subscribe()
	defer cancel()

	write := func(event string, data any) error {
		raw, err := json.Marshal(data)
		if err != nil {
			return err
		}
		return conn.WriteJSON(logstream.Frame{Event: event, Data: raw})
	}

	if err := write("connected", connectedMessage); err != nil {
		return
	}
	if err := write("initial-logs", s.store.Recent(initialLogs, "", "")); err != nil {
		return
	}

	// The read pump only notices the peer going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Info("log stream subscriber joined", zap.String("transport", "websocket"))
	for {
		select {
		case <-gone:
			s.logger.Info("log stream subscriber left", zap.String("transport", "websocket"))
			return
		case b := <-events:
			if err := write(b.Event, b.Data); err != nil {
				s.logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		}
	}
}

// ---- Section data ----

func (s *Server) getAccounts(c *gin.Context) {
	if s.store.Mode() == dashboardapi.ModeProduction {
		c.JSON(http.StatusOK, []dashboardapi.Account{{ID: "2000000001", Name: "Брокерский счет", Type: "ACCOUNT_TYPE_TINKOFF", Status: "ACCOUNT_STATUS_OPEN"}})
		return
	}
	c.JSON(http.StatusOK, []dashboardapi.Account{{ID: "sandbox-acc-01", Name: "Песочница", Type: "ACCOUNT_TYPE_TINKOFF", Status: "ACCOUNT_STATUS_OPEN"}})
}

func (s *Server) requireAccount(c *gin.Context) {
	if c.Query("accountId") == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "accountId обязателен"})
		return
	}
	c.Next()
}

func (s *Server) getInstruments(c *gin.Context) {
	switch c.Param("kind") {
	case "shares":
		c.JSON(http.StatusOK, []gin.H{{"figi": "BBG004730N88", "ticker": "SBER"}, {"figi": "BBG004731032", "ticker": "LKOH"}})
	case "bonds":
		c.JSON(http.StatusOK, []gin.H{{"figi": "BBG00T22WKV5", "ticker": "SU26238RMFS4"}})
	case "etfs":
		c.JSON(http.StatusOK, []gin.H{{"figi": "BBG333333333", "ticker": "TMOS"}})
	default:
		c.String(http.StatusNotFound, "unknown instrument kind")
	}
}

func (s *Server) canned(body any) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, body)
	}
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"mode":        s.store.Mode(),
		"subscribers": s.store.Subscribers(),
		"entries":     s.store.Stats().TotalEntries,
	})
}

var simulatedMessages = []struct {
	level, category, message string
}{
	{dashboardapi.LevelInfo, dashboardapi.CategoryMarketAnalysis, "Анализ рынка завершен"},
	{dashboardapi.LevelInfo, dashboardapi.CategoryTechnicalIndicators, "Обновлены индикаторы RSI и SMA"},
	{dashboardapi.LevelWarning, dashboardapi.CategoryRiskManagement, "Превышен лимит просадки по позиции"},
	{dashboardapi.LevelSuccess, dashboardapi.CategoryRebalancing, "Ребалансировка портфеля выполнена"},
	{dashboardapi.LevelTrade, dashboardapi.CategoryAutomaticTrading, "Исполнена заявка на покупку SBER"},
	{dashboardapi.LevelError, dashboardapi.CategorySystemStatus, "Таймаут ответа брокера"},
}

// Simulate appends a random bot log entry every interval until ctx ends.
func (s *Server) Simulate(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := simulatedMessages[rand.Intn(len(simulatedMessages))]
			s.store.Append(m.level, m.category, m.message, "")
		}
	}
}
