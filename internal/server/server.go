/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server exposes the operational HTTP surface: health, metrics, and
// a read-only status API over the scheduler and the recording ledger.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/wavepulse/wavepulse/internal/ledger"
	"github.com/wavepulse/wavepulse/internal/runstate"
	"github.com/wavepulse/wavepulse/internal/schedule"
	"github.com/wavepulse/wavepulse/internal/telemetry"
)

// Slots reports the upcoming compiled slots, soonest first.
type Slots interface {
	Next() []schedule.TimeSlot
}

// Server is the status HTTP server.
type Server struct {
	run        runstate.Store
	slots      Slots
	ledger     *ledger.Store // optional, may be nil
	router     chi.Router
	httpServer *http.Server
	logger     zerolog.Logger
}

// New builds the server. slots and store may be nil when the corresponding
// subsystem is disabled.
func New(run runstate.Store, slots Slots, store *ledger.Store, logger zerolog.Logger) *Server {
	s := &Server{
		run:    run,
		slots:  slots,
		ledger: store,
		logger: logger.With().Str("component", "server").Logger(),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(30 * time.Second))

	router.Get("/healthz", s.handleHealthz)
	router.Method(http.MethodGet, "/metrics", telemetry.Handler())
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
	})

	s.router = router
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves on addr until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("status server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusResponse struct {
	Running       bool                `json:"running"`
	UpcomingSlots []schedule.TimeSlot `json:"upcoming_slots,omitempty"`
	Recent        []recordingStatus   `json:"recent_recordings,omitempty"`
}

type recordingStatus struct {
	Station   string    `json:"station"`
	StartedAt time.Time `json:"started_at"`
	Duration  int       `json:"duration_seconds"`
	Device    int       `json:"device"`
	Status    string    `json:"status"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Running: s.run.Running(r.Context())}

	if s.slots != nil {
		resp.UpcomingSlots = s.slots.Next()
	}
	if s.ledger != nil {
		recs, err := s.ledger.Recent(r.Context(), 20)
		if err != nil {
			s.logger.Error().Err(err).Msg("ledger query failed")
		} else {
			for _, rec := range recs {
				resp.Recent = append(resp.Recent, recordingStatus{
					Station:   rec.Station,
					StartedAt: rec.StartedAt,
					Duration:  rec.Duration,
					Device:    rec.Device,
					Status:    rec.Status,
				})
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error().Err(err).Msg("encoding status response failed")
	}
}
