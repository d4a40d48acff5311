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

package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/mfreeman451/nodeverify/pkg/logger"
	"github.com/mfreeman451/nodeverify/pkg/metrics"
	"github.com/mfreeman451/nodeverify/pkg/verifier"
)

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Class string `json:"class,omitempty"`
}

// sessionEntry serialises cycles on one session. lastUsed is guarded by the
// server's mu.
type sessionEntry struct {
	mu       sync.Mutex
	sess     *verifier.Session
	limiter  *rate.Limiter
	lastUsed time.Time
}

type APIServer struct {
	mu              sync.RWMutex
	sessions        map[string]*sessionEntry
	router          *mux.Router
	handler         http.Handler
	verifier        Verifier
	metricsExporter metrics.Exporter
	metricsPath     string
	pageSize        int
	webDir          string
	cycleEvery      time.Duration
	idleTimeout     time.Duration
	now             func() time.Time
	log             *logger.Logger
}

// ServerOption configures an APIServer.
type ServerOption func(*APIServer)

// WithMetrics exposes the exporter on path and its cycle history on /api/cycles.
func WithMetrics(exporter metrics.Exporter, path string) ServerOption {
	return func(s *APIServer) {
		s.metricsExporter = exporter
		s.metricsPath = path
	}
}

// WithPageSize sets the page size new sessions start with.
func WithPageSize(size int) ServerOption {
	return func(s *APIServer) {
		s.pageSize = size
	}
}

// WithWebDir serves a built frontend from dir for every non-API path.
func WithWebDir(dir string) ServerOption {
	return func(s *APIServer) {
		s.webDir = dir
	}
}

// WithCycleRate limits each session to one baseline or refresh request per
// every. Zero disables the limit.
func WithCycleRate(every time.Duration) ServerOption {
	return func(s *APIServer) {
		s.cycleEvery = every
	}
}

// WithSessionIdleTimeout sets how long an unused session survives before
// EvictIdle drops it.
func WithSessionIdleTimeout(d time.Duration) ServerOption {
	return func(s *APIServer) {
		s.idleTimeout = d
	}
}

// WithLogger sets the server logger.
func WithLogger(log *logger.Logger) ServerOption {
	return func(s *APIServer) {
		s.log = log
	}
}

var _ http.Handler = (*APIServer)(nil)
