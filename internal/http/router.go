package http

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	mw "receipts-bot/internal/common/middleware"
)

// Checker reports whether a backing service is reachable.
type Checker func(ctx context.Context) error

type RouterConfig struct {
	BotToken    string
	InitDataTTL time.Duration
	Origins     []string
	IsAdmin     func(int64) bool
	Debug       bool
}

// NewRouter builds the review API with middlewares and routes wired.
func NewRouter(cfg RouterConfig, receipts ReceiptReader, reviews Reviewer, checks map[string]Checker) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(mw.RequestID(), mw.Logger(), mw.Recovery(), mw.ErrorHandler())

	r.Use(cors.New(corsConfig(cfg.Origins)))

	NewHealthHandler(r, checks)

	v1 := r.Group("/api/v1", mw.InitData(cfg.BotToken, cfg.InitDataTTL), mw.RequireAdmin(cfg.IsAdmin))
	NewReceiptHandler(v1, receipts, reviews)

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", mw.InitDataHeader, "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

// Server runs the review API until shut down.
type Server struct {
	srv *http.Server
}

func NewServer(addr string, handler http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}}
}

// ListenAndServe blocks until the server stops. A graceful shutdown returns nil.
func (s *Server) ListenAndServe() error {
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
