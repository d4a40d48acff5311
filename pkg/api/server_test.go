package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mfreeman451/nodeverify/pkg/db"
	httpx "github.com/mfreeman451/nodeverify/pkg/http"
	"github.com/mfreeman451/nodeverify/pkg/logger"
	"github.com/mfreeman451/nodeverify/pkg/metrics"
	"github.com/mfreeman451/nodeverify/pkg/models"
	"github.com/mfreeman451/nodeverify/pkg/verifier"
)

func newTestServer(t *testing.T, opts ...ServerOption) (*APIServer, *MockVerifier) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockVerifier := NewMockVerifier(ctrl)

	return NewAPIServer(mockVerifier, append([]ServerOption{WithPageSize(50)}, opts...)...), mockVerifier
}

func do(t *testing.T, s *APIServer, method, target, session string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, http.NoBody)
	if session != "" {
		req.Header.Set(httpx.SessionHeader, session)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	return body
}

func dashboardView(totalPages int64) *verifier.View {
	return &verifier.View{
		State: verifier.ViewDashboard,
		Nodes: []verifier.NodeView{{
			CompareRow: models.CompareRow{NumeroNodo: 7, OKFSUE: true},
			Status:     models.StatusDegraded,
		}},
		Page: models.Page{TotalRows: 1, TotalPages: totalPages},
	}
}

func TestSessionAssignment(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/session", "")
	require.Equal(t, http.StatusOK, rec.Code)

	id := rec.Header().Get(httpx.SessionHeader)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, 1, s.SessionCount())

	var sess verifier.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&sess))
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, 50, sess.PageSize)

	rec = do(t, s, http.MethodGet, "/api/session", id)
	assert.Equal(t, id, rec.Header().Get(httpx.SessionHeader))
	assert.Equal(t, 1, s.SessionCount())

	rec = do(t, s, http.MethodGet, "/api/session", "not-a-uuid")
	assert.NotEqual(t, "not-a-uuid", rec.Header().Get(httpx.SessionHeader))
	assert.Equal(t, 2, s.SessionCount())
}

func TestSessionCookie(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/session", "")
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/session", http.NoBody)
	req.AddCookie(cookies[0])

	rec2 := httptest.NewRecorder()
	s.ServeHTTP(rec2, req)

	assert.Equal(t, rec.Header().Get(httpx.SessionHeader), rec2.Header().Get(httpx.SessionHeader))
	assert.Equal(t, 1, s.SessionCount())
}

func TestPostBaseline(t *testing.T) {
	s, mockVerifier := newTestServer(t)

	mockVerifier.EXPECT().
		Cycle(gomock.Any(), gomock.Any(), verifier.Action{Baseline: true}).
		Return(&verifier.View{State: verifier.ViewEmpty, Notice: "Baseline captured."}, nil)

	rec := do(t, s, http.MethodPost, "/api/baseline", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var view verifier.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	assert.Equal(t, verifier.ViewEmpty, view.State)
	assert.Equal(t, "Baseline captured.", view.Notice)
}

func TestPostRefresh_Modes(t *testing.T) {
	tests := []struct {
		query  string
		action verifier.Action
	}{
		{"", verifier.Action{RefreshAll: true}},
		{"?mode=all", verifier.Action{RefreshAll: true}},
		{"?mode=fsue", verifier.Action{RefreshFSUE: true}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			s, mockVerifier := newTestServer(t)

			mockVerifier.EXPECT().Cycle(gomock.Any(), gomock.Any(), tt.action).Return(dashboardView(1), nil)

			rec := do(t, s, http.MethodPost, "/api/refresh"+tt.query, "")
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestPostRefresh_BadMode(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/api/refresh?mode=partial", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec).Error, "partial")
}

func TestCycleErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		class  string
	}{
		{"connectivity", verifier.ErrConnectivity, http.StatusBadGateway, "connectivity"},
		{"schema", verifier.ErrSchema, http.StatusInternalServerError, "schema"},
		{"capture", verifier.ErrCapture, http.StatusInternalServerError, "capture"},
		{"read", verifier.ErrRead, http.StatusInternalServerError, "read"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mockVerifier := newTestServer(t)

			mockVerifier.EXPECT().Cycle(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, tt.err)

			rec := do(t, s, http.MethodPost, "/api/baseline", "")
			assert.Equal(t, tt.status, rec.Code)

			body := decodeError(t, rec)
			assert.Equal(t, tt.class, body.Class)
			assert.NotEmpty(t, body.Error)
		})
	}
}

func TestDashboard_Params(t *testing.T) {
	s, mockVerifier := newTestServer(t)

	id := uuid.NewString()

	mockVerifier.EXPECT().Cycle(gomock.Any(), gomock.Any(), verifier.Action{}).
		DoAndReturn(func(_ context.Context, sess *verifier.Session, _ verifier.Action) (*verifier.View, error) {
			assert.Equal(t, 3, sess.Page)
			assert.Empty(t, sess.Query)

			return dashboardView(5), nil
		})

	rec := do(t, s, http.MethodGet, "/api/dashboard?page=3", id)
	require.Equal(t, http.StatusOK, rec.Code)

	mockVerifier.EXPECT().Cycle(gomock.Any(), gomock.Any(), verifier.Action{}).
		DoAndReturn(func(_ context.Context, sess *verifier.Session, _ verifier.Action) (*verifier.View, error) {
			assert.Zero(t, sess.Page, "a new query resets the page")
			assert.Equal(t, "norte", sess.Query)
			assert.Equal(t, 100, sess.PageSize)

			return dashboardView(1), nil
		})

	rec = do(t, s, http.MethodGet, "/api/dashboard?page=3&q=norte&page_size=100", id)
	require.Equal(t, http.StatusOK, rec.Code)

	var view verifier.View
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&view))
	require.Len(t, view.Nodes, 1)
	assert.Equal(t, models.StatusDegraded, view.Nodes[0].Status)
}

func TestDashboard_BadParams(t *testing.T) {
	s, _ := newTestServer(t)

	for _, target := range []string{
		"/api/dashboard?page=-1",
		"/api/dashboard?page=abc",
		"/api/dashboard?page_size=75",
		"/api/dashboard?page_size=many",
	} {
		rec := do(t, s, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestDashboard_ClampsPastLastPage(t *testing.T) {
	s, mockVerifier := newTestServer(t)

	gomock.InOrder(
		mockVerifier.EXPECT().Cycle(gomock.Any(), gomock.Any(), verifier.Action{}).
			DoAndReturn(func(_ context.Context, sess *verifier.Session, _ verifier.Action) (*verifier.View, error) {
				assert.Equal(t, 9, sess.Page)

				return &verifier.View{State: verifier.ViewEmpty, Page: models.Page{TotalRows: 60, TotalPages: 2}}, nil
			}),
		mockVerifier.EXPECT().Cycle(gomock.Any(), gomock.Any(), verifier.Action{}).
			DoAndReturn(func(_ context.Context, sess *verifier.Session, _ verifier.Action) (*verifier.View, error) {
				assert.Equal(t, 1, sess.Page)

				return dashboardView(2), nil
			}),
	)

	rec := do(t, s, http.MethodGet, "/api/dashboard?page=9", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetTotals(t *testing.T) {
	s, mockVerifier := newTestServer(t)

	mockVerifier.EXPECT().Totals(gomock.Any(), models.RefreshFSUE).
		Return(&models.Totals{TotalNodos: 4, TotalFSUEOK: 2}, nil)

	rec := do(t, s, http.MethodGet, "/api/totals?mode=fsue", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]int64
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&raw))
	assert.Equal(t, int64(4), raw["TotalNodos"])
	assert.Equal(t, int64(2), raw["Total_FSUE_OK"])

	rec = do(t, s, http.MethodGet, "/api/totals?mode=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetStats_Unavailable(t *testing.T) {
	s, mockVerifier := newTestServer(t)

	mockVerifier.EXPECT().Stats(gomock.Any()).Return(nil, verifier.ErrTelemetry)

	rec := do(t, s, http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "telemetry", decodeError(t, rec).Class)
}

func TestDeleteSession(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/api/session", "")
	id := rec.Header().Get(httpx.SessionHeader)
	require.Equal(t, 1, s.SessionCount())

	rec = do(t, s, http.MethodDelete, "/api/session", id)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, s.SessionCount())
}

func TestEvictIdle(t *testing.T) {
	s, _ := newTestServer(t, WithSessionIdleTimeout(10*time.Minute))

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	stale := do(t, s, http.MethodGet, "/api/session", "").Header().Get(httpx.SessionHeader)

	now = now.Add(8 * time.Minute)
	fresh := do(t, s, http.MethodGet, "/api/session", "").Header().Get(httpx.SessionHeader)
	require.Equal(t, 2, s.SessionCount())

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, s.EvictIdle())
	assert.Equal(t, 1, s.SessionCount())

	// The surviving session keeps its identity; the evicted one starts over.
	rec := do(t, s, http.MethodGet, "/api/session", fresh)
	assert.Equal(t, fresh, rec.Header().Get(httpx.SessionHeader))

	var sess verifier.Session
	require.NoError(t, json.NewDecoder(do(t, s, http.MethodGet, "/api/session", stale).Body).Decode(&sess))
	assert.Equal(t, stale, sess.ID)
	assert.Equal(t, verifier.BaselineNone, sess.Baseline)
	assert.Equal(t, 2, s.SessionCount())
}

func TestEvictIdle_SkipsBusySession(t *testing.T) {
	s, _ := newTestServer(t, WithSessionIdleTimeout(time.Minute))

	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	id := do(t, s, http.MethodGet, "/api/session", "").Header().Get(httpx.SessionHeader)

	s.mu.RLock()
	entry := s.sessions[id]
	s.mu.RUnlock()

	entry.mu.Lock()

	now = now.Add(time.Hour)
	assert.Zero(t, s.EvictIdle())

	entry.mu.Unlock()
	assert.Equal(t, 1, s.EvictIdle())
}

func TestSessionSweeper(t *testing.T) {
	s, _ := newTestServer(t, WithSessionIdleTimeout(time.Millisecond))

	do(t, s, http.MethodGet, "/api/session", "")
	require.Equal(t, 1, s.SessionCount())

	sweeper := NewSessionSweeper(s, 5*time.Millisecond)
	require.NoError(t, sweeper.Start(context.Background()))

	assert.Eventually(t, func() bool { return s.SessionCount() == 0 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, sweeper.Stop(ctx))
	require.NoError(t, sweeper.Stop(ctx))
}

func TestCycleRate(t *testing.T) {
	s, mockVerifier := newTestServer(t, WithCycleRate(time.Hour))

	mockVerifier.EXPECT().
		Cycle(gomock.Any(), gomock.Any(), verifier.Action{RefreshAll: true}).
		Return(dashboardView(1), nil).
		Times(2)

	first := do(t, s, http.MethodPost, "/api/refresh?mode=all", "")
	require.Equal(t, http.StatusOK, first.Code)

	id := first.Header().Get(httpx.SessionHeader)

	rec := do(t, s, http.MethodPost, "/api/refresh?mode=all", id)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, classThrottled, decodeError(t, rec).Class)

	// Other sessions have their own budget.
	other := do(t, s, http.MethodPost, "/api/refresh?mode=all", "")
	assert.Equal(t, http.StatusOK, other.Code)
}

func TestPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodOptions, "/api/baseline", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsRoutes(t *testing.T) {
	s, _ := newTestServer(t)

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/api/cycles", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/metrics", "").Code)

	manager := metrics.NewManager(models.MetricsConfig{Enabled: true})
	manager.ObserveCycle("", 0)

	s, _ = newTestServer(t, WithMetrics(manager, ""))

	rec := do(t, s, http.MethodGet, "/api/cycles", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var points []models.CyclePoint
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&points))
	assert.Len(t, points, 1)

	rec = do(t, s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "nodeverify_cycles_total")
}

func TestWithRealVerifier_ConnectivityFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := db.NewMockService(ctrl)
	store.EXPECT().Ping(gomock.Any()).Return(db.ErrFailedToPing)

	s := NewAPIServer(verifier.New(store, verifier.Options{}, logger.NewNop()))

	rec := do(t, s, http.MethodPost, "/api/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "connectivity", decodeError(t, rec).Class)
}
