package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Server wraps echo with zerolog request logging and panic recovery
type Server struct {
	echo *echo.Echo
	addr string
	log  zerolog.Logger
}

func NewServer(addr string, handler *StatusHandler, log zerolog.Logger) *Server {
	log = log.With().Str("component", "http").Logger()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = 10 * time.Second
	e.Server.WriteTimeout = 10 * time.Second

	e.Use(recoverer(log))
	e.Use(requestLogger(log))
	handler.RegisterRoutes(e)

	return &Server{echo: e, addr: addr, log: log}
}

// Start serves in the background
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("listening")
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("http server error")
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	s.log.Info().Msg("http server stopped")
	return nil
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			log.Debug().
				Str("method", c.Request().Method).
				Str("uri", c.Request().RequestURI).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Msg("request")
			return err
		}
	}
}

func recoverer(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("handler panicked")
					_ = c.JSON(http.StatusInternalServerError, errorResponse("internal server error"))
				}
			}()
			return next(c)
		}
	}
}
