/*
Copyright (C) 2026  Carl-Philip Hänsch

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package httpapi

import "context"
import "net/http"
import "time"

import "github.com/google/uuid"
import "github.com/gorilla/mux"
import "go.opentelemetry.io/otel/attribute"
import "go.opentelemetry.io/otel/trace"

import "github.com/cantido/hematite/telemetry"

type contextKey int

const requestIDKey contextKey = iota

// requestIDMiddleware stamps every request with a UUID for
// request-scoped logging.
func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.New().String()
		w.Header().Set("X-Request-Id", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tracingMiddleware starts one span per request, named after the route
// template so spans group by endpoint rather than by path parameter.
func (s *Server) tracingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := mux.CurrentRoute(r)
		name := r.URL.Path
		if route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				name = tmpl
			}
		}

		ctx, span := s.tracer.Start(r.Context(), name, trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.target", r.URL.Path),
		))
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(attribute.Int("http.status_code", rec.status))
	})
}

// authMiddleware enforces authentication: every endpoint requires a bearer token,
// and the configured Policy decides whether the subject may touch this
// stream.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.verifier.VerifyRequest(r)
		if err != nil {
			writeUnauthenticated(w)
			return
		}
		if streamID, ok := mux.Vars(r)["stream"]; ok {
			if !s.policy.Authorize(id, streamID) {
				writeForbidden(w)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

// observeMiddleware emits the structured log line and the per-endpoint
// latency histogram.
func (s *Server) observeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		latency := time.Since(start)
		streamID := mux.Vars(r)["stream"]

		if s.metrics != nil {
			s.metrics.RequestLatency.WithLabelValues(r.URL.Path, http.StatusText(rec.status)).Observe(latency.Seconds())
			switch r.Method {
			case http.MethodPost:
				s.metrics.AppendsTotal.WithLabelValues(outcomeFor(rec.status)).Inc()
			case http.MethodGet:
				s.metrics.ReadsTotal.WithLabelValues(outcomeFor(rec.status)).Inc()
			}
		}

		logger := s.logger
		if id, ok := r.Context().Value(requestIDKey).(string); ok {
			logger = logger.With().Str("request_id", id).Logger()
		}
		telemetry.Log(logger, telemetry.RequestLog{
			Method:  r.Method,
			Path:    r.URL.Path,
			Stream:  streamID,
			Outcome: outcomeFor(rec.status),
			Latency: latency,
			Status:  rec.status,
		})
	})
}

func outcomeFor(status int) string {
	if status < 400 {
		return "success"
	}
	return "error"
}
