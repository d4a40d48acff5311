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

package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/models"
)

type statsReader func(ctx context.Context, db *DB) (*models.StoreStats, error)

// GetStoreStats reads connection/thread counters from the store. It is best
// effort: callers should degrade on ErrTelemetry rather than abort.
func (db *DB) GetStoreStats(ctx context.Context) (*models.StoreStats, error) {
	stats, err := db.dialect.stats(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTelemetry, err)
	}

	return stats, nil
}

const mysqlStatsSQL = `
SELECT
  NOW(),
  MAX(CASE WHEN VARIABLE_NAME='Threads_connected' THEN VARIABLE_VALUE END),
  MAX(CASE WHEN VARIABLE_NAME='Threads_running'   THEN VARIABLE_VALUE END),
  MAX(CASE WHEN VARIABLE_NAME='Threads_created'   THEN VARIABLE_VALUE END),
  MAX(CASE WHEN VARIABLE_NAME='Threads_cached'    THEN VARIABLE_VALUE END),
  MAX(CASE WHEN VARIABLE_NAME='Connections'       THEN VARIABLE_VALUE END),
  MAX(CASE WHEN VARIABLE_NAME='Aborted_connects'  THEN VARIABLE_VALUE END)
FROM performance_schema.global_status
WHERE VARIABLE_NAME IN (
  'Threads_connected','Threads_running','Threads_created','Threads_cached',
  'Connections','Aborted_connects'
)`

func mysqlStats(ctx context.Context, db *DB) (*models.StoreStats, error) {
	var (
		observed NullTime
		values   [6]sql.NullString
	)

	err := db.QueryRow(ctx, mysqlStatsSQL).Scan(
		&observed, &values[0], &values[1], &values[2], &values[3], &values[4], &values[5])
	if err != nil {
		return nil, fmt.Errorf("%w global status: %w", ErrFailedToQuery, err)
	}

	counters := make([]*int64, len(values))

	for i, v := range values {
		n, err := parseCounter(v)
		if err != nil {
			return nil, err
		}

		counters[i] = n
	}

	return &models.StoreStats{
		ConnectedThreads: counters[0],
		RunningThreads:   counters[1],
		CreatedThreads:   counters[2],
		CachedThreads:    counters[3],
		Connections:      counters[4],
		AbortedConnects:  counters[5],
		ObservedAt:       observedAt(observed),
		Source:           DialectMySQL,
	}, nil
}

const postgresStatsSQL = `
SELECT
  NOW(),
  COUNT(*),
  COUNT(*) FILTER (WHERE state = 'active'),
  COUNT(*) FILTER (WHERE state = 'idle')
FROM pg_stat_activity
WHERE backend_type = 'client backend'`

// postgresStats maps pg_stat_activity onto the thread counters. PostgreSQL has
// no cumulative connection or aborted-connect counters in every version, so
// those stay nil.
func postgresStats(ctx context.Context, db *DB) (*models.StoreStats, error) {
	var (
		observed                 NullTime
		connected, running, idle int64
	)

	err := db.QueryRow(ctx, postgresStatsSQL).Scan(&observed, &connected, &running, &idle)
	if err != nil {
		return nil, fmt.Errorf("%w pg_stat_activity: %w", ErrFailedToQuery, err)
	}

	return &models.StoreStats{
		ConnectedThreads: &connected,
		RunningThreads:   &running,
		CachedThreads:    &idle,
		ObservedAt:       observedAt(observed),
		Source:           DialectPostgres,
	}, nil
}

// poolStats reports the database/sql pool, which is all an embedded SQLite
// store can offer.
func poolStats(ctx context.Context, db *DB) (*models.StoreStats, error) {
	if err := db.Ping(ctx); err != nil {
		return nil, err
	}

	s := db.conn.Stats()

	open := int64(s.OpenConnections)
	inUse := int64(s.InUse)
	idle := int64(s.Idle)

	return &models.StoreStats{
		ConnectedThreads: &open,
		RunningThreads:   &inUse,
		CachedThreads:    &idle,
		ObservedAt:       time.Now().UTC(),
		Source:           DialectSQLite,
	}, nil
}

func parseCounter(v sql.NullString) (*int64, error) {
	if !v.Valid {
		return nil, nil
	}

	n, err := strconv.ParseInt(v.String, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w counter %q: %w", ErrFailedToScan, v.String, err)
	}

	return &n, nil
}

func observedAt(nt NullTime) time.Time {
	if nt.Valid {
		return nt.Time
	}

	return time.Now().UTC()
}
