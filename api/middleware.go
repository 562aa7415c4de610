package api

import (
	"bytes"
	"context"
	"crypto/subtle"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"megayield/infrastructure/observability"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// CallerHeader carries the address a request acts as
const CallerHeader = "X-Caller-Address"

type contextKey string

const callerKey contextKey = "caller"

// correlationID assigns a UUID request id when the client did not send one
func correlationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(middleware.RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
			r.Header.Set(middleware.RequestIDHeader, requestID)
		}
		w.Header().Set(middleware.RequestIDHeader, requestID)
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs every request and records its latency by route pattern
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		elapsed := time.Since(start)

		observability.HTTPRequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(status)).
			Observe(elapsed.Seconds())

		log.WithFields(log.Fields{
			"method":    r.Method,
			"route":     route,
			"status":    status,
			"duration":  elapsed,
			"requestID": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

// requireCaller authenticates the signed caller and stores its address in the request context
func (s *Server) requireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSignedBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, "failed to read request body")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		caller, err := s.verifyCaller(r, body, time.Now())
		if err != nil {
			log.WithFields(log.Fields{
				"path":     r.URL.Path,
				"claimed":  r.Header.Get(CallerHeader),
				"remoteIP": r.RemoteAddr,
			}).WithError(err).Warn("Rejected unauthenticated caller")
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		ctx := context.WithValue(r.Context(), callerKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// callerFrom returns the caller stored by requireCaller
func callerFrom(ctx context.Context) common.Address {
	caller, _ := ctx.Value(callerKey).(common.Address)
	return caller
}

// requireAdminToken checks the bearer token of operator and owner routes
func (s *Server) requireAdminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if s.cfg.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			log.WithFields(log.Fields{
				"path":     r.URL.Path,
				"remoteIP": r.RemoteAddr,
			}).Warn("Rejected request with invalid admin token")
			writeError(w, http.StatusUnauthorized, "invalid admin token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
