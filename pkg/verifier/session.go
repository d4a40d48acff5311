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

package verifier

import (
	"errors"
	"fmt"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/config"
	"github.com/mfreeman451/nodeverify/pkg/models"
)

var errUnknownBaselineState = errors.New("unknown baseline state")

// BaselineState tracks whether the session may trust the stored baseline.
type BaselineState int

const (
	// BaselineNone means no capture has run in this session.
	BaselineNone BaselineState = iota
	// BaselineReady means the last capture committed.
	BaselineReady
	// BaselineUntrusted means the last capture failed; the stored snapshot may
	// be empty or from an earlier generation and must be re-captured.
	BaselineUntrusted
)

func (b BaselineState) String() string {
	switch b {
	case BaselineReady:
		return "ready"
	case BaselineUntrusted:
		return "untrusted"
	default:
		return "none"
	}
}

func (b BaselineState) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b *BaselineState) UnmarshalText(text []byte) error {
	switch string(text) {
	case "ready":
		*b = BaselineReady
	case "untrusted":
		*b = BaselineUntrusted
	case "none", "":
		*b = BaselineNone
	default:
		return fmt.Errorf("%w: %q", errUnknownBaselineState, text)
	}

	return nil
}

// Session is the per-operator state carried between request cycles. It is not
// safe for concurrent use; callers serialise cycles on one session.
type Session struct {
	ID              string                `json:"id"`
	StructuresReady bool                  `json:"structures_ready"`
	Baseline        BaselineState         `json:"baseline"`
	LastCapture     *models.CaptureResult `json:"last_capture,omitempty"`
	LastRefresh     *time.Time            `json:"last_refresh,omitempty"`
	RefreshMode     models.RefreshMode    `json:"refresh_mode,omitempty"`
	Totals          models.Totals         `json:"totals"`
	Page            int                   `json:"page"`
	PageSize        int                   `json:"page_size"`
	Query           string                `json:"query"`
}

// NewSession returns a fresh session. A pageSize of zero selects the default.
func NewSession(id string, pageSize int) *Session {
	if pageSize <= 0 {
		pageSize = config.DefaultPageSize
	}

	return &Session{
		ID:       id,
		PageSize: pageSize,
	}
}

// Offset is the first row of the current page.
func (s *Session) Offset() int {
	return s.Page * s.PageSize
}

// SetQuery changes the search text. Any change invalidates the page index.
func (s *Session) SetQuery(q string) {
	if q == s.Query {
		return
	}

	s.Query = q
	s.Page = 0
}

// SetPageSize changes the page size within the operator range. Any change
// invalidates the page index.
func (s *Session) SetPageSize(size int) error {
	if err := config.ValidatePageSize(size); err != nil {
		return err
	}

	if size != s.PageSize {
		s.PageSize = size
		s.Page = 0
	}

	return nil
}

// SetPage moves to page p, clamped to [0, totalPages-1].
func (s *Session) SetPage(p int, totalPages int64) {
	if last := int(totalPages) - 1; p > last {
		p = last
	}

	if p < 0 {
		p = 0
	}

	s.Page = p
}

func (s *Session) NextPage(totalPages int64) {
	s.SetPage(s.Page+1, totalPages)
}

func (s *Session) PrevPage() {
	if s.Page > 0 {
		s.Page--
	}
}

func (s *Session) markRefresh(mode models.RefreshMode, at time.Time) {
	s.LastRefresh = &at
	s.RefreshMode = mode
	s.Page = 0
}

// AdoptStoredBaseline trusts the baseline already in the store, for callers
// that did not capture it in this session.
func (s *Session) AdoptStoredBaseline() {
	if s.Baseline == BaselineNone {
		s.Baseline = BaselineReady
	}
}

// Reset returns the session to its initial state, keeping ID and page size.
func (s *Session) Reset() {
	*s = Session{ID: s.ID, PageSize: s.PageSize}
}
