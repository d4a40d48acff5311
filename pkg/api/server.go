/*-
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package api pkg/api/server.go serves the verifier to the presentation layer
// as a session-scoped JSON API.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	httpx "github.com/mfreeman451/nodeverify/pkg/http"
	"github.com/mfreeman451/nodeverify/pkg/logger"
	"github.com/mfreeman451/nodeverify/pkg/models"
	"github.com/mfreeman451/nodeverify/pkg/verifier"
)

const (
	sessionCookie = "session"

	// DefaultSessionIdleTimeout applies when WithSessionIdleTimeout is not given.
	DefaultSessionIdleTimeout = 30 * time.Minute

	classThrottled = "throttled"
)

var (
	errInvalidPage     = errors.New("page must be a non-negative integer")
	errInvalidPageSize = errors.New("page_size must be an integer")
	errNoMetrics       = errors.New("metrics are disabled")
	errThrottled       = errors.New("a cycle was requested too recently for this session")
)

// NewAPIServer builds the router over v.
func NewAPIServer(v Verifier, opts ...ServerOption) *APIServer {
	s := &APIServer{
		sessions:    make(map[string]*sessionEntry),
		router:      mux.NewRouter(),
		verifier:    v,
		idleTimeout: DefaultSessionIdleTimeout,
		now:         time.Now,
		log:         logger.NewNop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()

	// Preflight requests match no route, so CORS sits outside the router.
	s.handler = httpx.CommonMiddleware(s.router)

	return s
}

func (s *APIServer) setupRoutes() {
	s.router.Use(httpx.LoggingMiddleware(s.log))

	s.router.HandleFunc("/api/baseline", s.postBaseline).Methods(http.MethodPost)
	s.router.HandleFunc("/api/refresh", s.postRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/api/dashboard", s.getDashboard).Methods(http.MethodGet)
	s.router.HandleFunc("/api/totals", s.getTotals).Methods(http.MethodGet)
	s.router.HandleFunc("/api/stats", s.getStats).Methods(http.MethodGet)
	s.router.HandleFunc("/api/session", s.getSession).Methods(http.MethodGet)
	s.router.HandleFunc("/api/session", s.deleteSession).Methods(http.MethodDelete)
	s.router.HandleFunc("/api/cycles", s.getCycles).Methods(http.MethodGet)

	if s.metricsExporter != nil {
		path := s.metricsPath
		if path == "" {
			path = "/metrics"
		}

		s.router.Handle(path, s.metricsExporter.Handler()).Methods(http.MethodGet)
	}

	if s.webDir != "" {
		s.configureStaticServing()
	}
}

// ServeHTTP makes the server usable as a plain http.Handler.
func (s *APIServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// sessionFor resolves the caller's session from the header or cookie,
// creating one when the caller has none or sent a malformed id.
func (s *APIServer) sessionFor(w http.ResponseWriter, r *http.Request) *sessionEntry {
	id := r.Header.Get(httpx.SessionHeader)
	if id == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
	}

	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	s.mu.Lock()

	entry, ok := s.sessions[id]
	if !ok {
		entry = &sessionEntry{
			sess:    verifier.NewSession(id, s.pageSize),
			limiter: rate.NewLimiter(rate.Inf, 1),
		}

		if s.cycleEvery > 0 {
			entry.limiter = rate.NewLimiter(rate.Every(s.cycleEvery), 1)
		}

		s.sessions[id] = entry

		s.log.Debug("Session created", "session", id)
	}

	entry.lastUsed = s.now()

	s.mu.Unlock()

	w.Header().Set(httpx.SessionHeader, id)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return entry
}

// EvictIdle drops every session unused for longer than the idle timeout and
// returns how many were dropped. A session with a cycle in flight is kept.
func (s *APIServer) EvictIdle() int {
	cutoff := s.now().Add(-s.idleTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0

	for id, entry := range s.sessions {
		if !entry.lastUsed.Before(cutoff) {
			continue
		}

		if !entry.mu.TryLock() {
			continue
		}

		delete(s.sessions, id)
		entry.mu.Unlock()

		evicted++
	}

	if evicted > 0 {
		s.log.Debug("Idle sessions evicted", "count", evicted, "remaining", len(s.sessions))
	}

	return evicted
}

// SessionCount returns the number of live sessions.
func (s *APIServer) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.sessions)
}

func (s *APIServer) postBaseline(w http.ResponseWriter, r *http.Request) {
	s.runCycle(w, r, verifier.Action{Baseline: true})
}

func (s *APIServer) postRefresh(w http.ResponseWriter, r *http.Request) {
	mode, err := models.ParseRefreshMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, "")
		return
	}

	action := verifier.Action{RefreshAll: true}
	if mode == models.RefreshFSUE {
		action = verifier.Action{RefreshFSUE: true}
	}

	s.runCycle(w, r, action)
}

func (s *APIServer) runCycle(w http.ResponseWriter, r *http.Request, action verifier.Action) {
	entry := s.sessionFor(w, r)

	if !entry.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, errThrottled, classThrottled)
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	view, err := s.verifier.Cycle(r.Context(), entry.sess, action)
	if err != nil {
		s.writeCycleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, view)
}

func (s *APIServer) getDashboard(w http.ResponseWriter, r *http.Request) {
	entry := s.sessionFor(w, r)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	sess := entry.sess
	params := r.URL.Query()

	// The page is applied first so that a query or page-size change in the
	// same request still resets it.
	if params.Has("page") {
		p, err := strconv.Atoi(params.Get("page"))
		if err != nil || p < 0 {
			s.writeError(w, http.StatusBadRequest, errInvalidPage, "")
			return
		}

		sess.Page = p
	}

	if params.Has("q") {
		sess.SetQuery(params.Get("q"))
	}

	if params.Has("page_size") {
		size, err := strconv.Atoi(params.Get("page_size"))
		if err != nil {
			s.writeError(w, http.StatusBadRequest, errInvalidPageSize, "")
			return
		}

		if err := sess.SetPageSize(size); err != nil {
			s.writeError(w, http.StatusBadRequest, err, "")
			return
		}
	}

	view, err := s.verifier.Cycle(r.Context(), sess, verifier.Action{})
	if err != nil {
		s.writeCycleError(w, err)
		return
	}

	if view.State == verifier.ViewEmpty && sess.Page > 0 && int64(sess.Page) >= view.Page.TotalPages {
		sess.SetPage(sess.Page, view.Page.TotalPages)

		view, err = s.verifier.Cycle(r.Context(), sess, verifier.Action{})
		if err != nil {
			s.writeCycleError(w, err)
			return
		}
	}

	s.writeJSON(w, http.StatusOK, view)
}

func (s *APIServer) getTotals(w http.ResponseWriter, r *http.Request) {
	mode, err := models.ParseRefreshMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err, "")
		return
	}

	totals, err := s.verifier.Totals(r.Context(), mode)
	if err != nil {
		s.writeCycleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, totals)
}

func (s *APIServer) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.verifier.Stats(r.Context())
	if err != nil {
		s.writeCycleError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, stats)
}

func (s *APIServer) getSession(w http.ResponseWriter, r *http.Request) {
	entry := s.sessionFor(w, r)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	s.writeJSON(w, http.StatusOK, entry.sess)
}

func (s *APIServer) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(httpx.SessionHeader)
	if id == "" {
		if c, err := r.Cookie(sessionCookie); err == nil {
			id = c.Value
		}
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}

func (s *APIServer) getCycles(w http.ResponseWriter, _ *http.Request) {
	if s.metricsExporter == nil {
		s.writeError(w, http.StatusNotFound, errNoMetrics, "")
		return
	}

	s.writeJSON(w, http.StatusOK, s.metricsExporter.History())
}

// statusFor maps an error class to the HTTP status the presentation layer
// switches on.
func statusFor(class string) int {
	switch class {
	case "connectivity":
		return http.StatusBadGateway
	case "telemetry":
		return http.StatusServiceUnavailable
	case "no_baseline":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *APIServer) writeCycleError(w http.ResponseWriter, err error) {
	class := verifier.Class(err)

	s.log.Warn("Request failed", "class", class, "error", err)
	s.writeError(w, statusFor(class), err, class)
}

func (s *APIServer) writeError(w http.ResponseWriter, status int, err error, class string) {
	s.writeJSON(w, status, ErrorResponse{Error: err.Error(), Class: class})
}

func (s *APIServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("Error encoding response", "error", err)
	}
}
