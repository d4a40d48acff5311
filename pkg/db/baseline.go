package db

import (
	"context"
	"fmt"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/models"
)

// DefaultRecencyWindow is how recently a node must have reported to be
// included in a new baseline.
const DefaultRecencyWindow = 3 * time.Hour

const captureInsertTemplate = `
INSERT INTO {baseline} (NumeroNodo, FSUE_old, UFA_old, UFH_old)
SELECT
  n.NumeroNodo,
  MAX(n.FechaServidorUltimaEmision) AS FSUE_old,
  MAX(s.FechaActual)                AS UFA_old,
  MAX(s.FechaHistorico)             AS UFH_old
{latest}
HAVING MAX(n.FechaServidorUltimaEmision) >= {recent}`

// CaptureBaseline replaces the baseline generation with the current state of
// every node that reported within window. Delete and insert run in one
// transaction, so a failure leaves the previous generation in place.
func (db *DB) CaptureBaseline(ctx context.Context, window time.Duration) (result *models.CaptureResult, err error) {
	if window <= 0 {
		return nil, fmt.Errorf("%w: %w", ErrCapture, ErrInvalidWindow)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCapture, err)
	}

	defer func() {
		db.rollbackOnError(tx, err)
	}()

	if _, err = tx.Exec(ctx, "DELETE FROM "+db.names.baseline); err != nil {
		return nil, fmt.Errorf("%w: delete previous generation: %w", ErrCapture, err)
	}

	insert := db.names.expand(captureInsertTemplate, "{recent}", db.dialect.recencyExpr)

	if _, err = tx.Exec(ctx, insert, db.dialect.recencyArg(window)); err != nil {
		return nil, fmt.Errorf("%w: insert generation: %w", ErrCapture, err)
	}

	result, err = db.scanCaptureResult(ctx, tx)
	if err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("%w: %w: %w", ErrCapture, ErrFailedToCommit, err)

		return nil, err
	}

	db.log.Info("Baseline captured", "rows", result.Rows, "window", window.String())

	return result, nil
}

func (db *DB) scanCaptureResult(ctx context.Context, tx Transaction) (*models.CaptureResult, error) {
	var (
		count      int64
		capturedAt NullTime
	)

	row := tx.QueryRow(ctx, "SELECT COUNT(*), MAX(CapturedAt) FROM "+db.names.baseline)
	if err := row.Scan(&count, &capturedAt); err != nil {
		return nil, fmt.Errorf("%w: %w generation summary: %w", ErrCapture, ErrFailedToScan, err)
	}

	result := &models.CaptureResult{Rows: count}

	if capturedAt.Valid {
		result.CapturedAt = capturedAt.Time
	}

	return result, nil
}
