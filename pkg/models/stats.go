package models

import "time"

// StoreStats is a best-effort snapshot of store connection/thread counters.
// Counters a backend cannot report are nil.
type StoreStats struct {
	ConnectedThreads *int64    `json:"connected_threads"`
	RunningThreads   *int64    `json:"running_threads"`
	CreatedThreads   *int64    `json:"created_threads"`
	CachedThreads    *int64    `json:"cached_threads"`
	Connections      *int64    `json:"connections"`
	AbortedConnects  *int64    `json:"aborted_connects"`
	ObservedAt       time.Time `json:"observed_at"`
	Source           string    `json:"source"`
}
