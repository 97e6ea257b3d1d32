// Package server exposes the assistant over HTTP for the DEVLOG web client.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"devlog/internal/domain"
)

const (
	readHeaderTimeout = 10 * time.Second
	// Provider calls dominate request time; LLM_TIMEOUT stays below this.
	writeTimeout = 90 * time.Second
	// JSON escaping can grow markdown up to six times.
	jsonEnvelopeGrowthFactor = 6
	jsonEnvelopeOverhead     = 1024
	defaultStatsWindow       = 24 * time.Hour
	maxStatsWindow           = 90 * 24 * time.Hour
)

type Assistant interface {
	Summarize(ctx context.Context, markdown string) (string, error)
	GenerateTags(ctx context.Context, markdown string) ([]string, error)
	Cached(task domain.Task, markdown string) bool
}

type Limiter interface {
	Wait(ctx context.Context, key string) error
}

type StatsStore interface {
	GetRequestStats(ctx context.Context, since time.Time) ([]domain.TaskStats, error)
}

type Config struct {
	Addr            string
	AllowedOrigins  []string
	TrustedProxies  []string
	MaxContentBytes int64
}

type Server struct {
	cfg       Config
	engine    *gin.Engine
	http      *http.Server
	assistant Assistant
	limiter   Limiter
	stats     StatsStore
	log       *slog.Logger
	now       func() time.Time
}

func New(
	cfg Config,
	assistant Assistant,
	limiter Limiter,
	stats StatsStore,
	log *slog.Logger,
) (*Server, error) {
	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("set trusted proxies: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		engine:    engine,
		assistant: assistant,
		limiter:   limiter,
		stats:     stats,
		log:       log,
		now:       time.Now,
	}

	engine.Use(gin.Recovery(), s.logRequests())
	if len(cfg.AllowedOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	engine.POST("/summarize", s.summarize)
	engine.POST("/autotag", s.autotag)
	engine.GET("/stats", s.getStats)
	engine.GET("/health", s.getHealth)

	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           engine,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start blocks until the server stops. A graceful Shutdown is not an error.
func (s *Server) Start() error {
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		s.log.InfoContext(c.Request.Context(), "HTTP request is handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"clientIP", c.ClientIP(),
			"durationMs", time.Since(start).Milliseconds())
	}
}
