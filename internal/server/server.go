// Package server exposes the view recorder over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tckz/go-viewcount/internal/view"
)

// Gate reports whether view counting is switched on.
type Gate interface {
	Enabled() bool
}

type Config struct {
	Addr            string
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 4 << 10
	}
	return c
}

type Server struct {
	cfg        Config
	logger     *zap.SugaredLogger
	engine     *gin.Engine
	httpServer *http.Server
}

func New(cfg Config, recorder *view.Recorder, gate Gate, logger *zap.SugaredLogger) *Server {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	engine := gin.New()
	// No proxy is trusted; ClientIP is the peer address.
	if err := engine.SetTrustedProxies(nil); err != nil {
		logger.Warnf("SetTrustedProxies: %v", err)
	}
	engine.Use(gin.Recovery(), requestID(), accessLog(logger))

	h := &handlers{recorder: recorder, gate: gate, maxBodyBytes: cfg.MaxBodyBytes}
	engine.GET("/health", h.health)
	engine.POST("/statistics", h.statistics)

	return &Server{
		cfg:    cfg,
		logger: logger,
		engine: engine,
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           engine,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("net.Listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Infof("listening on %s", ln.Addr())

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("Serve: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		s.logger.Infof("shutting down, timeout=%s", s.cfg.ShutdownTimeout)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("Shutdown: %w", err)
		}
		return nil
	})
	return eg.Wait()
}
