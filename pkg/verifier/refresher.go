package verifier

import (
	"context"
	"errors"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/logger"
)

// CycleFunc receives the outcome of each auto-refresh cycle.
type CycleFunc func(view *View, err error)

// Refresher re-runs the dashboard cycle on a fixed interval. Cycles never
// overlap: the idle interval starts only after the previous cycle has returned
// and been handed to the callback.
type Refresher struct {
	svc      *Service
	interval time.Duration
	onCycle  CycleFunc
	log      *logger.Logger
}

// NewRefresher builds a refresher. onCycle may be nil.
func NewRefresher(svc *Service, interval time.Duration, onCycle CycleFunc, log *logger.Logger) *Refresher {
	if onCycle == nil {
		onCycle = func(*View, error) {}
	}

	return &Refresher{
		svc:      svc,
		interval: interval,
		onCycle:  onCycle,
		log:      log.With("component", "refresher"),
	}
}

// Run executes cycles until ctx is done or the session loses its baseline.
// The first cycle runs immediately. A fatal cycle error is reported and the
// next cycle tries again; nothing is retried within a cycle.
func (r *Refresher) Run(ctx context.Context, sess *Session) error {
	for {
		if sess.Baseline != BaselineReady {
			return ErrNoBaseline
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		view, err := r.svc.Cycle(ctx, sess, Action{})
		if err != nil && !errors.Is(err, context.Canceled) {
			r.log.Warn("Auto-refresh cycle failed", "session", sess.ID, "class", Class(err), "error", err)
		}

		r.onCycle(view, err)

		if err := r.idle(ctx); err != nil {
			return err
		}
	}
}

// idle sleeps one full interval, measured from the end of the last cycle.
func (r *Refresher) idle(ctx context.Context) error {
	timer := time.NewTimer(r.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
