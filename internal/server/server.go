// SPDX-FileCopyrightText: Winni Neessen <wn@neessen.dev>
//
// SPDX-License-Identifier: MIT

// Package server implements the HTTP query service that hands out the current position.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wneessen/coordserve/internal/logger"
	"github.com/wneessen/coordserve/internal/position"
)

const (
	// CoordinatesPath is the only route the service answers.
	CoordinatesPath = "/coordinates"

	readHeaderTimeout = time.Second * 5
)

// Server answers position queries from the shared state. Requests are not access-logged since
// map clients poll it continuously.
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	engine          *gin.Engine
	logger          *logger.Logger
	state           *position.State
}

// New returns a Server reading from state and listening on addr once started. It switches gin
// into release mode.
func New(log *logger.Logger, state *position.State, addr string, shutdownTimeout time.Duration) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false
	engine.HandleMethodNotAllowed = false

	s := &Server{
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		engine:          engine,
		logger:          log,
		state:           state,
	}
	engine.GET(CoordinatesPath, s.coordinates)
	engine.NoRoute(notFound)
	engine.NoMethod(notFound)
	return s
}

// Handler returns the HTTP handler of the service.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured address and serves until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves requests on listener until the context is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Serve(listener)
	}()
	s.logger.Info("coordinate server listening", slog.String("address", listener.Addr().String()),
		slog.String("path", CoordinatesPath))

	select {
	case err := <-errChan:
		return fmt.Errorf("coordinate server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down coordinate server: %w", err)
	}
	if err := <-errChan; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("coordinate server failed: %w", err)
	}
	return nil
}

func (s *Server) coordinates(c *gin.Context) {
	body, err := json.Marshal(s.state.Read())
	if err != nil {
		s.logger.Error("failed to encode position record", logger.Err(err))
		c.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	c.Header("Access-Control-Allow-Origin", "*")
	c.Data(http.StatusOK, "application/json", body)
}

// notFound answers with an empty body, unlike gin's default text response.
func notFound(c *gin.Context) {
	c.AbortWithStatus(http.StatusNotFound)
}
