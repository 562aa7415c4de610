// Package api exposes the lottery, vesting and token operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"megayield/application"
	"megayield/config"
	"megayield/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// CallbackExecutor triggers delivery of an oracle result. The simulated oracle satisfies it.
type CallbackExecutor interface {
	Execute(ctx context.Context, sequence uint64) error
}

// Server is the HTTP API server
type Server struct {
	lottery        service.LotteryService
	vesting        service.VestingService
	tokens         service.TokenService
	cfg            *config.Config
	executor       CallbackExecutor
	metricsEnabled bool
	entropy        application.EntropySource
	nonces         *nonceCache
}

// NewServer creates a new API server
func NewServer(lottery service.LotteryService, vesting service.VestingService, tokens service.TokenService, cfg *config.Config) *Server {
	return &Server{
		lottery: lottery,
		vesting: vesting,
		tokens:  tokens,
		cfg:     cfg,
		entropy: application.CryptoEntropy,
		nonces:  newNonceCache(),
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetCallbackExecutor enables POST /v1/oracle/callback
func (s *Server) SetCallbackExecutor(e CallbackExecutor) { s.executor = e }

// Handler returns the chi router with all routes mounted
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(correlationID)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/days/current", s.handleCurrentDay)
		r.Get("/days/{day}", s.handleGetDay)
		r.Get("/days/{day}/buyers", s.handleGetBuyers)
		r.With(s.requireCaller).Post("/tickets", s.handleBuyTicket)

		r.Get("/tokens/{address}", s.handleGetAccount)
		r.Get("/tokens/{address}/transfers", s.handleGetTransfers)
		r.With(s.requireCaller).Post("/tokens/approve", s.handleApprove)
		r.Post("/tokens/faucet", s.handleFaucet)

		r.With(s.requireAdminToken, s.requireCaller).Post("/draws", s.handleRequestDraw)
		r.Get("/draws/{requestID}", s.handleGetDraw)
		r.Get("/oracle/fee", s.handleOracleFee)
		r.Post("/oracle/callback", s.handleOracleCallback)

		r.Get("/vesting/{winner}", s.handleListPositions)
		r.Get("/vesting/positions/{id}", s.handleGetSchedule)
		r.With(s.requireCaller).Post("/vesting/positions/{id}/claim", s.handleClaim)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdminToken, s.requireCaller)
			r.Post("/vesting", s.handleSetVesting)
			r.Post("/ticket-price", s.handleSetTicketPrice)
			r.Post("/emergency-withdraw", s.handleEmergencyWithdraw)
		})
	})

	return r
}

// ListenAndServe serves the API until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("HTTP API listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("Shutting down HTTP API...")
		return srv.Shutdown(shutdownCtx)
	}
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Warn("Failed to encode response")
	}
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"status":  status,
		},
	})
}

// decodeJSON decodes a request body, rejecting unknown fields
func decodeJSON(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
