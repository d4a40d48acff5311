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

// Package verifier runs the baseline/compare request cycle against the store on
// behalf of one operator session.
package verifier

import (
	"context"
	"fmt"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/db"
	"github.com/mfreeman451/nodeverify/pkg/logger"
	"github.com/mfreeman451/nodeverify/pkg/models"
)

const (
	msgNoBaseline = "Capture a baseline first, then refresh the comparison to see per-node results."
	msgNoRows     = "No comparison data yet. Capture a baseline and refresh."
	msgNoMatches  = "No nodes match the current search."
	msgCaptured   = "Baseline captured."
)

// ViewState distinguishes an informational empty state from a rendered dashboard.
type ViewState string

const (
	ViewEmpty     ViewState = "empty"
	ViewDashboard ViewState = "dashboard"
)

// Action is what the operator triggered for this cycle. Several may be set;
// they apply in the order baseline, fsue refresh, full refresh.
type Action struct {
	Baseline    bool `json:"baseline"`
	RefreshFSUE bool `json:"refresh_fsue"`
	RefreshAll  bool `json:"refresh_all"`
}

// Any reports whether an action was triggered.
func (a Action) Any() bool {
	return a.Baseline || a.RefreshFSUE || a.RefreshAll
}

// NodeView is a compare row with its derived status.
type NodeView struct {
	models.CompareRow
	Status models.NodeStatus `json:"status"`
}

// View is everything the presentation layer needs to render one cycle.
type View struct {
	State        ViewState             `json:"state"`
	Message      string                `json:"message,omitempty"`
	Notice       string                `json:"notice,omitempty"`
	Nodes        []NodeView            `json:"nodes"`
	Page         models.Page           `json:"page"`
	Totals       models.Totals         `json:"totals"`
	RefreshMode  models.RefreshMode    `json:"refresh_mode,omitempty"`
	ModeLabel    string                `json:"mode_label,omitempty"`
	LastRefresh  *time.Time            `json:"last_refresh,omitempty"`
	Capture      *models.CaptureResult `json:"capture,omitempty"`
	Stats        *models.StoreStats    `json:"stats,omitempty"`
	StatsWarning string                `json:"stats_warning,omitempty"`
}

// Recorder receives the results of each cycle. pkg/metrics implements it.
type Recorder interface {
	ObserveCycle(class string, elapsed time.Duration)
	ObserveTotals(totals models.Totals, mode models.RefreshMode)
	ObserveStats(stats *models.StoreStats)
	ObserveCapture(result *models.CaptureResult)
}

// Options configures a Service.
type Options struct {
	RecencyWindow time.Duration
	Recorder      Recorder
}

// Service runs request cycles. It holds no session state of its own.
type Service struct {
	store    db.Service
	log      *logger.Logger
	window   time.Duration
	recorder Recorder
	now      func() time.Time
}

// New returns a Service over an already-open store handle.
func New(store db.Service, opts Options, log *logger.Logger) *Service {
	window := opts.RecencyWindow
	if window <= 0 {
		window = db.DefaultRecencyWindow
	}

	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Service{
		store:    store,
		log:      log.With("component", "verifier"),
		window:   window,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Cycle runs one full request cycle for sess: ensure structures, apply the
// action, then render. Steps run sequentially and a fatal error stops the
// cycle before any dependent step.
func (s *Service) Cycle(ctx context.Context, sess *Session, action Action) (view *View, err error) {
	start := time.Now()

	defer func() {
		s.recorder.ObserveCycle(Class(err), time.Since(start))
	}()

	if err = s.store.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectivity, err)
	}

	if !sess.StructuresReady || action.Any() {
		if err = s.store.EnsureStructures(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSchema, err)
		}

		sess.StructuresReady = true
		sess.Page = 0
	}

	var capture *models.CaptureResult

	if action.Baseline {
		capture, err = s.captureBaseline(ctx, sess)
		if err != nil {
			return nil, err
		}
	}

	if action.RefreshFSUE {
		sess.markRefresh(models.RefreshFSUE, s.now())
	}

	if action.RefreshAll {
		sess.markRefresh(models.RefreshAll, s.now())
	}

	view, err = s.Dashboard(ctx, sess)
	if err != nil {
		return nil, err
	}

	if capture != nil {
		view.Capture = capture
		view.Notice = msgCaptured
	}

	return view, nil
}

func (s *Service) captureBaseline(ctx context.Context, sess *Session) (*models.CaptureResult, error) {
	result, err := s.store.CaptureBaseline(ctx, s.window)
	if err != nil {
		sess.Baseline = BaselineUntrusted
		sess.LastCapture = nil

		s.log.Error("Baseline capture failed; baseline must be re-captured", "session", sess.ID, "error", err)

		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	sess.Baseline = BaselineReady
	sess.LastCapture = result
	sess.Page = 0

	s.recorder.ObserveCapture(result)
	s.log.Info("Baseline captured", "session", sess.ID, "rows", result.Rows)

	return result, nil
}

// Dashboard renders the current page for sess without applying any action.
func (s *Service) Dashboard(ctx context.Context, sess *Session) (*View, error) {
	if sess.Baseline != BaselineReady || sess.LastRefresh == nil {
		return &View{State: ViewEmpty, Message: msgNoBaseline, Nodes: []NodeView{}, Totals: sess.Totals}, nil
	}

	mode := sess.RefreshMode
	if mode == "" {
		mode = models.RefreshAll
	}

	rows, err := s.store.FetchPage(ctx, sess.Query, sess.Offset(), sess.PageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	view := &View{
		State:       ViewDashboard,
		RefreshMode: mode,
		ModeLabel:   mode.Label(),
		LastRefresh: sess.LastRefresh,
		Nodes:       make([]NodeView, 0, len(rows)),
		Page: models.Page{
			Query:  sess.Query,
			Offset: sess.Offset(),
			Limit:  sess.PageSize,
		},
	}

	if len(rows) == 0 {
		view.State = ViewEmpty
		view.Message = msgNoRows

		if sess.Query != "" {
			view.Message = msgNoMatches
		}
	}

	for i := range rows {
		view.Nodes = append(view.Nodes, NodeView{CompareRow: rows[i], Status: rows[i].Status()})
	}

	totals, err := s.store.GetTotals(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	sess.Totals.Merge(*totals, mode)
	view.Totals = sess.Totals
	s.recorder.ObserveTotals(sess.Totals, mode)

	total, err := s.store.CountMatching(ctx, sess.Query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	view.Page.TotalRows = total
	view.Page.TotalPages = models.PageCount(total, sess.PageSize)

	s.attachStats(ctx, view)

	return view, nil
}

// Stats reads store telemetry on its own. Failures wrap ErrTelemetry.
func (s *Service) Stats(ctx context.Context) (*models.StoreStats, error) {
	stats, err := s.store.GetStoreStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTelemetry, err)
	}

	s.recorder.ObserveStats(stats)

	return stats, nil
}

// Totals reads fleet totals without touching any session.
func (s *Service) Totals(ctx context.Context, mode models.RefreshMode) (*models.Totals, error) {
	totals, err := s.store.GetTotals(ctx, mode)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRead, err)
	}

	return totals, nil
}

func (s *Service) attachStats(ctx context.Context, view *View) {
	stats, err := s.Stats(ctx)
	if err != nil {
		s.log.Warn("Store stats unavailable", "error", err)
		view.StatsWarning = "Store stats unavailable: " + err.Error()

		return
	}

	view.Stats = stats
}

type nopRecorder struct{}

func (nopRecorder) ObserveCycle(string, time.Duration)              {}
func (nopRecorder) ObserveTotals(models.Totals, models.RefreshMode) {}
func (nopRecorder) ObserveStats(*models.StoreStats)                 {}
func (nopRecorder) ObserveCapture(*models.CaptureResult)            {}
