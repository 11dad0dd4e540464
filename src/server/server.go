package server

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/crucial-sub/Stock-Lab-sub002/src/logger"
	"github.com/crucial-sub/Stock-Lab-sub002/src/models"
	"github.com/crucial-sub/Stock-Lab-sub002/src/utils"

	"github.com/gin-gonic/gin"
)

// -----------------------------------------------------------------------------
// FlushController is the control surface the REST endpoints drive. The
// coalescer satisfies it.
// -----------------------------------------------------------------------------

type FlushController interface {
	SetFlushInterval(d time.Duration)
	Clear()
	Metrics() models.MFeedMetrics
}

// -----------------------------------------------------------------------------
// QuoteServer
// -----------------------------------------------------------------------------

type QuoteServer struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	Controller FlushController
	History    *utils.HistoryStore
	engine     *gin.Engine

	// WebSocket clients. The map is owned exclusively by the hub goroutine;
	// handlers read the connection count through the atomic mirror instead.
	clients     map[*Client]struct{}
	connections atomic.Int64
	broadcast   chan *models.MLatestQuotes // Strongly typed and buffered queue
	register    chan *Client
	unregister  chan *Client

	// Local cache
	latestState *models.MLatestQuotes
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewQuoteServer(cfg *models.MConfig, ctrl FlushController, history *utils.HistoryStore, log *logger.Logger) *QuoteServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &QuoteServer{
		Config:     cfg,
		Logger:     log,
		Controller: ctrl,
		History:    history,
		engine:     gin.Default(),
		clients:    make(map[*Client]struct{}),
		// Buffered channel to prevent lock/blocking
		// Queue size of 256 ensures we can handle bursts of updates
		broadcast:  make(chan *models.MLatestQuotes, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		latestState: &models.MLatestQuotes{
			Type:      "INITIAL",
			Snapshots: make(map[string]models.MSnapshot),
			Timestamp: 0,
			Metrics:   models.MFeedMetrics{},
		},
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *QuoteServer) setupRoutes() {
	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/metrics", s.getMetrics)
	s.engine.GET("/api/config", s.getConfig)
	s.engine.GET("/api/quotes", s.getQuotes)
	s.engine.GET("/api/quotes/:key/history", s.getQuoteHistory)

	// Control plane
	s.engine.POST("/api/control/interval", s.postInterval)
	s.engine.POST("/api/control/clear", s.postClear)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *QuoteServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *QuoteServer) Stop() error {
	// Clean shutdown
	close(s.broadcast)
	close(s.register)
	close(s.unregister)
	return nil
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *QuoteServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	timestamp := s.latestState.Timestamp
	s.stateMutex.RUnlock()

	c.JSON(200, gin.H{
		"status":        "ok",
		"connections":   s.connections.Load(),
		"latest_update": timestamp,
		"instruments":   s.History.InstrumentCount(),
		"memory_mb":     s.History.GetProcessMemoryMB(),
	})
}

// -----------------------------------------------------------------------------

func (s *QuoteServer) getMetrics(c *gin.Context) {
	c.JSON(200, s.Controller.Metrics())
}

// -----------------------------------------------------------------------------

func (s *QuoteServer) getConfig(c *gin.Context) {
	sources := make([]gin.H, 0, len(s.Config.Feed.Sources))
	for _, src := range s.Config.Feed.Sources {
		sources = append(sources, gin.H{
			"name":        src.Name,
			"type":        src.Type,
			"instruments": len(src.Instruments),
		})
	}

	c.JSON(200, gin.H{
		"name":              s.Config.Name,
		"flush_interval_ms": s.Config.Coalescer.FlushIntervalMs,
		"history_points":    s.Config.Feed.HistoryPoints,
		"sources":           sources,
	})
}

// -----------------------------------------------------------------------------

func (s *QuoteServer) getQuotes(c *gin.Context) {
	c.JSON(200, gin.H{
		"snapshots": s.History.LatestAll(),
	})
}

// -----------------------------------------------------------------------------

func (s *QuoteServer) getQuoteHistory(c *gin.Context) {
	key := c.Param("key")

	n := 0 // 0 = full buffer
	if raw := c.Query("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(400, gin.H{"error": "n must be a non-negative integer"})
			return
		}
		n = parsed
	}

	c.JSON(200, gin.H{
		"instrument_key": key,
		"snapshots":      s.History.History(key, n),
	})
}

// -----------------------------------------------------------------------------
// Control Plane
// -----------------------------------------------------------------------------

type intervalRequest struct {
	IntervalMs int64 `json:"interval_ms"`
}

// -----------------------------------------------------------------------------

func (s *QuoteServer) postInterval(c *gin.Context) {
	var req intervalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "invalid body: " + err.Error()})
		return
	}

	if req.IntervalMs <= 0 {
		c.JSON(400, gin.H{"error": "interval_ms must be positive"})
		return
	}

	s.Controller.SetFlushInterval(time.Duration(req.IntervalMs) * time.Millisecond)
	s.Logger.Info("Flush interval set to %dms via control API", req.IntervalMs)

	c.JSON(200, gin.H{
		"status":      "ok",
		"interval_ms": req.IntervalMs,
	})
}

// -----------------------------------------------------------------------------

func (s *QuoteServer) postClear(c *gin.Context) {
	s.Controller.Clear()
	s.Logger.Info("Pending snapshots cleared via control API")

	c.JSON(200, gin.H{"status": "ok"})
}
