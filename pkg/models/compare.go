// Package models pkg/models/compare.go holds the baseline/compare data shapes
// shared by the store, the verifier and the API.
package models

import (
	"errors"
	"fmt"
	"time"
)

var errUnknownRefreshMode = errors.New("unknown refresh mode")

// RefreshMode selects which totals a refresh computes.
type RefreshMode string

const (
	// RefreshFSUE computes only TotalNodos and Total_FSUE_OK.
	RefreshFSUE RefreshMode = "fsue"
	// RefreshAll computes all four totals.
	RefreshAll RefreshMode = "all"
)

// ParseRefreshMode validates a refresh mode string. An empty string means "all".
func ParseRefreshMode(s string) (RefreshMode, error) {
	switch RefreshMode(s) {
	case RefreshFSUE:
		return RefreshFSUE, nil
	case RefreshAll, "":
		return RefreshAll, nil
	default:
		return "", fmt.Errorf("%w: %q", errUnknownRefreshMode, s)
	}
}

// Label is the human form used in the rendered view.
func (m RefreshMode) Label() string {
	if m == RefreshFSUE {
		return "FSUE only"
	}

	return "full"
}

// CompareRow is one node of the compare set: baseline values, current values
// and the three advancement flags.
type CompareRow struct {
	NumeroNodo       int64      `json:"numero_nodo"`
	VersionSoftware  string     `json:"version_software"`
	InstallationName string     `json:"installation_name"`
	FSUEOld          *time.Time `json:"fsue_old"`
	FSUENew          *time.Time `json:"fsue_new"`
	OKFSUE           bool       `json:"ok_fsue"`
	UFAOld           *time.Time `json:"ufa_old"`
	UFANew           *time.Time `json:"ufa_new"`
	OKUFA            bool       `json:"ok_ufa"`
	UFHOld           *time.Time `json:"ufh_old"`
	UFHNew           *time.Time `json:"ufh_new"`
	OKUFH            bool       `json:"ok_ufh"`
}

// Status reduces the row's flags to the tri-state node health.
func (r *CompareRow) Status() NodeStatus {
	return Classify(r.OKFSUE, r.OKUFA, r.OKUFH)
}

// Totals are fleet-wide counts over the compare set.
type Totals struct {
	TotalNodos  int64 `json:"TotalNodos"`
	TotalFSUEOK int64 `json:"Total_FSUE_OK"`
	TotalUFAOK  int64 `json:"Total_UFA_OK"`
	TotalUFHOK  int64 `json:"Total_UFH_OK"`
}

// Merge folds fresh totals computed in mode into t. An fsue-mode result only
// carries TotalNodos and Total_FSUE_OK, so the other two keep their prior value.
func (t *Totals) Merge(fresh Totals, mode RefreshMode) {
	t.TotalNodos = fresh.TotalNodos
	t.TotalFSUEOK = fresh.TotalFSUEOK

	if mode == RefreshFSUE {
		return
	}

	t.TotalUFAOK = fresh.TotalUFAOK
	t.TotalUFHOK = fresh.TotalUFHOK
}

// CaptureResult describes a freshly written baseline generation.
type CaptureResult struct {
	Rows       int64     `json:"rows"`
	CapturedAt time.Time `json:"captured_at"`
}
