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

import "net/http"

import "github.com/gorilla/mux"
import "github.com/rs/zerolog"
import "go.opentelemetry.io/otel"
import "go.opentelemetry.io/otel/trace"

import "github.com/cantido/hematite/auth"
import "github.com/cantido/hematite/streammgr"
import "github.com/cantido/hematite/telemetry"

// Server holds everything a handler needs to serve one request: the
// stream manager, the authenticator, the authorization policy, and the
// observability hooks.
type Server struct {
	manager  *streammgr.Manager
	verifier *auth.Verifier
	policy   auth.Policy
	metrics  *telemetry.Metrics
	logger   zerolog.Logger
	tracer   trace.Tracer
}

// New builds the JSON:API router. tracer may be nil, in which case the
// global otel tracer is used (a no-op unless a tracer provider has been
// installed globally).
func New(manager *streammgr.Manager, verifier *auth.Verifier, policy auth.Policy, metrics *telemetry.Metrics, logger zerolog.Logger, tracer trace.Tracer) http.Handler {
	s := &Server{manager: manager, verifier: verifier, policy: policy, metrics: metrics, logger: logger, tracer: tracer}
	if s.policy == nil {
		s.policy = auth.IdentityOnly{}
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("hematite")
	}

	r := mux.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.tracingMiddleware)
	r.Use(s.observeMiddleware)
	r.Use(s.authMiddleware)

	r.HandleFunc("/streams/{stream}/events", s.handleAppend).Methods(http.MethodPost)
	r.HandleFunc("/streams/{stream}/events/{revision}", s.handleReadOne).Methods(http.MethodGet)
	r.HandleFunc("/streams/{stream}/events", s.handleReadPage).Methods(http.MethodGet)
	r.HandleFunc("/streams/{stream}", s.handleStreamInfo).Methods(http.MethodGet)

	return r
}
