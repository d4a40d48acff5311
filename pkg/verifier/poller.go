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
	"context"
	"sync"
	"time"

	"github.com/mfreeman451/nodeverify/pkg/logger"
)

// StatsPoller samples store telemetry on a fixed interval so the exported
// metrics stay current between operator requests.
type StatsPoller struct {
	svc      *Service
	interval time.Duration
	log      *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewStatsPoller(svc *Service, interval time.Duration, log *logger.Logger) *StatsPoller {
	return &StatsPoller{
		svc:      svc,
		interval: interval,
		log:      log.With("component", "stats_poller"),
	}
}

// Start launches the polling loop and returns immediately.
func (p *StatsPoller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})

	go p.run(ctx, p.done)

	return nil
}

// Stop ends the loop and waits for an in-flight sample to finish.
func (p *StatsPoller) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *StatsPoller) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.sample(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sample(ctx)
		}
	}
}

func (p *StatsPoller) sample(ctx context.Context) {
	if _, err := p.svc.Stats(ctx); err != nil && ctx.Err() == nil {
		p.log.Debug("Stats sample failed", "error", err)
		p.svc.recorder.ObserveStats(nil)
	}
}
