package verifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mfreeman451/nodeverify/pkg/db"
	"github.com/mfreeman451/nodeverify/pkg/logger"
	"github.com/mfreeman451/nodeverify/pkg/models"
)

var errBoom = errors.New("boom")

func newTestService(t *testing.T) (*Service, *db.MockService) {
	t.Helper()

	ctrl := gomock.NewController(t)
	mockDB := db.NewMockService(ctrl)

	svc := New(mockDB, Options{RecencyWindow: time.Hour}, logger.NewNop())
	svc.now = func() time.Time { return time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC) }

	return svc, mockDB
}

func ptrTime(t time.Time) *time.Time { return &t }

func readySession() *Session {
	sess := NewSession("s1", 50)
	sess.StructuresReady = true
	sess.Baseline = BaselineReady
	sess.markRefresh(models.RefreshAll, time.Date(2025, 5, 1, 11, 0, 0, 0, time.UTC))

	return sess
}

func TestCycle_ConnectivityFailureStopsEverything(t *testing.T) {
	svc, mockDB := newTestService(t)

	mockDB.EXPECT().Ping(gomock.Any()).Return(db.ErrFailedToPing)

	sess := NewSession("s1", 0)

	view, err := svc.Cycle(context.Background(), sess, Action{Baseline: true})
	require.ErrorIs(t, err, ErrConnectivity)
	assert.Nil(t, view)
	assert.Equal(t, "connectivity", Class(err))
	assert.False(t, sess.StructuresReady)
	assert.Equal(t, BaselineNone, sess.Baseline)
}

func TestCycle_SchemaFailureIsFatal(t *testing.T) {
	svc, mockDB := newTestService(t)

	mockDB.EXPECT().Ping(gomock.Any()).Return(nil)
	mockDB.EXPECT().EnsureStructures(gomock.Any()).Return(db.ErrSchema)

	sess := NewSession("s1", 0)

	_, err := svc.Cycle(context.Background(), sess, Action{Baseline: true})
	require.ErrorIs(t, err, ErrSchema)
	assert.False(t, sess.StructuresReady)
}

func TestCycle_CaptureThenEmptyState(t *testing.T) {
	svc, mockDB := newTestService(t)

	captured := &models.CaptureResult{Rows: 12, CapturedAt: time.Now()}

	gomock.InOrder(
		mockDB.EXPECT().Ping(gomock.Any()).Return(nil),
		mockDB.EXPECT().EnsureStructures(gomock.Any()).Return(nil),
		mockDB.EXPECT().CaptureBaseline(gomock.Any(), time.Hour).Return(captured, nil),
	)

	sess := NewSession("s1", 0)
	sess.Page = 4

	view, err := svc.Cycle(context.Background(), sess, Action{Baseline: true})
	require.NoError(t, err)

	assert.Equal(t, ViewEmpty, view.State)
	assert.Equal(t, msgNoBaseline, view.Message)
	assert.Equal(t, msgCaptured, view.Notice)
	assert.Equal(t, captured, view.Capture)
	assert.Equal(t, BaselineReady, sess.Baseline)
	assert.Zero(t, sess.Page)
	assert.True(t, sess.StructuresReady)
}

func TestCycle_CaptureFailureMarksBaselineUntrusted(t *testing.T) {
	svc, mockDB := newTestService(t)

	mockDB.EXPECT().Ping(gomock.Any()).Return(nil)
	mockDB.EXPECT().EnsureStructures(gomock.Any()).Return(nil)
	mockDB.EXPECT().CaptureBaseline(gomock.Any(), time.Hour).Return(nil, db.ErrCapture)

	sess := readySession()

	_, err := svc.Cycle(context.Background(), sess, Action{Baseline: true, RefreshAll: true})
	require.ErrorIs(t, err, ErrCapture)
	assert.Equal(t, BaselineUntrusted, sess.Baseline)
	assert.Nil(t, sess.LastCapture)

	// The next render must not serve a compare from the untrusted baseline.
	view, err := svc.Dashboard(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, ViewEmpty, view.State)
}

func TestCycle_FullRefresh(t *testing.T) {
	svc, mockDB := newTestService(t)

	t0 := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	rows := []models.CompareRow{
		{NumeroNodo: 1, FSUEOld: ptrTime(t0), OKFSUE: true, OKUFA: true, OKUFH: true},
		{NumeroNodo: 2, OKFSUE: true},
		{NumeroNodo: 3},
	}
	stats := &models.StoreStats{Source: "sqlite"}

	gomock.InOrder(
		mockDB.EXPECT().Ping(gomock.Any()).Return(nil),
		mockDB.EXPECT().EnsureStructures(gomock.Any()).Return(nil),
		mockDB.EXPECT().FetchPage(gomock.Any(), "", 0, 50).Return(rows, nil),
		mockDB.EXPECT().GetTotals(gomock.Any(), models.RefreshAll).
			Return(&models.Totals{TotalNodos: 120, TotalFSUEOK: 80, TotalUFAOK: 70, TotalUFHOK: 60}, nil),
		mockDB.EXPECT().CountMatching(gomock.Any(), "").Return(int64(120), nil),
		mockDB.EXPECT().GetStoreStats(gomock.Any()).Return(stats, nil),
	)

	sess := NewSession("s1", 50)
	sess.Baseline = BaselineReady

	view, err := svc.Cycle(context.Background(), sess, Action{RefreshAll: true})
	require.NoError(t, err)

	assert.Equal(t, ViewDashboard, view.State)
	require.Len(t, view.Nodes, 3)
	assert.Equal(t, models.StatusHealthy, view.Nodes[0].Status)
	assert.Equal(t, models.StatusDegraded, view.Nodes[1].Status)
	assert.Equal(t, models.StatusDown, view.Nodes[2].Status)
	assert.Equal(t, int64(120), view.Page.TotalRows)
	assert.Equal(t, int64(3), view.Page.TotalPages)
	assert.Equal(t, models.Totals{TotalNodos: 120, TotalFSUEOK: 80, TotalUFAOK: 70, TotalUFHOK: 60}, view.Totals)
	assert.Equal(t, stats, view.Stats)
	assert.Empty(t, view.StatsWarning)
	assert.Equal(t, models.RefreshAll, view.RefreshMode)
	assert.Equal(t, "full", view.ModeLabel)
	require.NotNil(t, view.LastRefresh)
	assert.Equal(t, svc.now(), *view.LastRefresh)
}

func TestCycle_FSUERefreshMergesCachedTotals(t *testing.T) {
	svc, mockDB := newTestService(t)

	mockDB.EXPECT().Ping(gomock.Any()).Return(nil)
	mockDB.EXPECT().EnsureStructures(gomock.Any()).Return(nil)
	mockDB.EXPECT().FetchPage(gomock.Any(), "", 0, 50).Return([]models.CompareRow{{NumeroNodo: 1}}, nil)
	mockDB.EXPECT().GetTotals(gomock.Any(), models.RefreshFSUE).
		Return(&models.Totals{TotalNodos: 10, TotalFSUEOK: 9}, nil)
	mockDB.EXPECT().CountMatching(gomock.Any(), "").Return(int64(10), nil)
	mockDB.EXPECT().GetStoreStats(gomock.Any()).Return(&models.StoreStats{}, nil)

	sess := readySession()
	sess.Totals = models.Totals{TotalNodos: 10, TotalFSUEOK: 1, TotalUFAOK: 5, TotalUFHOK: 4}

	view, err := svc.Cycle(context.Background(), sess, Action{RefreshFSUE: true})
	require.NoError(t, err)

	assert.Equal(t, models.Totals{TotalNodos: 10, TotalFSUEOK: 9, TotalUFAOK: 5, TotalUFHOK: 4}, view.Totals)
	assert.Equal(t, models.RefreshFSUE, sess.RefreshMode)
	assert.Equal(t, "FSUE only", view.ModeLabel)
}

func TestDashboard_TelemetryFailureDegrades(t *testing.T) {
	svc, mockDB := newTestService(t)

	mockDB.EXPECT().FetchPage(gomock.Any(), "", 0, 50).Return([]models.CompareRow{{NumeroNodo: 1}}, nil)
	mockDB.EXPECT().GetTotals(gomock.Any(), models.RefreshAll).Return(&models.Totals{TotalNodos: 1}, nil)
	mockDB.EXPECT().CountMatching(gomock.Any(), "").Return(int64(1), nil)
	mockDB.EXPECT().GetStoreStats(gomock.Any()).Return(nil, db.ErrTelemetry)

	view, err := svc.Dashboard(context.Background(), readySession())
	require.NoError(t, err)

	assert.Equal(t, ViewDashboard, view.State)
	assert.Nil(t, view.Stats)
	assert.Contains(t, view.StatsWarning, "unavailable")
}

func TestDashboard_EmptyResultIsNotAnError(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		message string
	}{
		{"no rows", "", msgNoRows},
		{"no matches", "zzz", msgNoMatches},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mockDB := newTestService(t)

			mockDB.EXPECT().FetchPage(gomock.Any(), tt.query, 0, 50).Return([]models.CompareRow{}, nil)
			mockDB.EXPECT().GetTotals(gomock.Any(), models.RefreshAll).Return(&models.Totals{}, nil)
			mockDB.EXPECT().CountMatching(gomock.Any(), tt.query).Return(int64(0), nil)
			mockDB.EXPECT().GetStoreStats(gomock.Any()).Return(&models.StoreStats{}, nil)

			sess := readySession()
			sess.SetQuery(tt.query)

			view, err := svc.Dashboard(context.Background(), sess)
			require.NoError(t, err)
			assert.Equal(t, ViewEmpty, view.State)
			assert.Equal(t, tt.message, view.Message)
			assert.Equal(t, int64(1), view.Page.TotalPages)
			assert.Empty(t, view.Nodes)
		})
	}
}

func TestDashboard_ReadFailure(t *testing.T) {
	svc, mockDB := newTestService(t)

	mockDB.EXPECT().FetchPage(gomock.Any(), "", 0, 50).Return(nil, errBoom)

	_, err := svc.Dashboard(context.Background(), readySession())
	assert.ErrorIs(t, err, ErrRead)
	assert.ErrorIs(t, err, errBoom)
}

func TestDashboard_UsesSessionWindow(t *testing.T) {
	svc, mockDB := newTestService(t)

	sess := readySession()
	sess.SetQuery("norte")
	sess.Page = 2

	mockDB.EXPECT().FetchPage(gomock.Any(), "norte", 100, 50).Return([]models.CompareRow{{NumeroNodo: 9}}, nil)
	mockDB.EXPECT().GetTotals(gomock.Any(), models.RefreshAll).Return(&models.Totals{}, nil)
	mockDB.EXPECT().CountMatching(gomock.Any(), "norte").Return(int64(101), nil)
	mockDB.EXPECT().GetStoreStats(gomock.Any()).Return(&models.StoreStats{}, nil)

	view, err := svc.Dashboard(context.Background(), sess)
	require.NoError(t, err)
	assert.Equal(t, 100, view.Page.Offset)
	assert.Equal(t, int64(3), view.Page.TotalPages)
}

func TestCycle_StructuresOnlyEnsuredWhenNeeded(t *testing.T) {
	svc, mockDB := newTestService(t)

	mockDB.EXPECT().Ping(gomock.Any()).Return(nil)
	// No EnsureStructures call: structures are ready and nothing was triggered.

	sess := NewSession("s1", 0)
	sess.StructuresReady = true

	view, err := svc.Cycle(context.Background(), sess, Action{})
	require.NoError(t, err)
	assert.Equal(t, ViewEmpty, view.State)
}

func TestStats(t *testing.T) {
	svc, mockDB := newTestService(t)

	mockDB.EXPECT().GetStoreStats(gomock.Any()).Return(nil, db.ErrTelemetry)

	_, err := svc.Stats(context.Background())
	assert.ErrorIs(t, err, ErrTelemetry)
	assert.Equal(t, "telemetry", Class(err))
}

func TestClass(t *testing.T) {
	assert.Empty(t, Class(nil))
	assert.Equal(t, "schema", Class(ErrSchema))
	assert.Equal(t, "capture", Class(ErrCapture))
	assert.Equal(t, "read", Class(ErrRead))
	assert.Equal(t, "no_baseline", Class(ErrNoBaseline))
	assert.Equal(t, "internal", Class(errBoom))
}
