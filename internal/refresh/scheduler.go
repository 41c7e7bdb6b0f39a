// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

// Package refresh re-syncs provider catalogs on cron schedules.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

// Refresher reloads one provider's catalog.
type Refresher interface {
	Refresh(ctx context.Context, id string) error
}

type entry struct {
	expr string
	next time.Time
}

type Scheduler struct {
	refresher Refresher
	interval  time.Duration
	logger    *slog.Logger
	cron      *gronx.Gronx

	mu      sync.Mutex
	entries map[string]*entry
}

func NewScheduler(refresher Refresher, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{
		refresher: refresher,
		interval:  interval,
		logger:    logger,
		cron:      gronx.New(),
		entries:   make(map[string]*entry),
	}
}

// Add schedules provider id on a cron expression, replacing any previous
// schedule for it.
func (s *Scheduler) Add(id, expr string, now time.Time) error {
	if !s.cron.IsValid(expr) {
		return fmt.Errorf("%w: provider=%s: invalid refresh schedule %q", core.ErrInvalidConfig, id, expr)
	}
	next, err := gronx.NextTickAfter(expr, now, false)
	if err != nil {
		return fmt.Errorf("%w: provider=%s: %v", core.ErrInvalidConfig, id, err)
	}

	s.mu.Lock()
	s.entries[id] = &entry{expr: expr, next: next}
	s.mu.Unlock()
	s.logger.Info("refresh scheduled", "provider", id, "schedule", expr, "next", next)
	return nil
}

func (s *Scheduler) Remove(id string) {
	s.mu.Lock()
	delete(s.entries, id)
	s.mu.Unlock()
}

// Next returns when provider id is next due.
func (s *Scheduler) Next(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return time.Time{}, false
	}
	return e.next, true
}

func (s *Scheduler) Watch(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.RunDue(ctx, now)
		}
	}
}

// RunDue refreshes every provider whose next tick is at or before now and
// returns their ids. Failures are reported on the bus by the refresher.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) []string {
	s.mu.Lock()
	var due []string
	for id, e := range s.entries {
		if e.next.After(now) {
			continue
		}
		due = append(due, id)
		next, err := gronx.NextTickAfter(e.expr, now, false)
		if err != nil {
			s.logger.Error("refresh schedule exhausted", "provider", id, "error", err)
			delete(s.entries, id)
			continue
		}
		e.next = next
	}
	s.mu.Unlock()
	sort.Strings(due)

	for _, id := range due {
		if err := s.refresher.Refresh(ctx, id); err != nil {
			s.logger.Warn("scheduled refresh failed", "provider", id, "error", err)
			continue
		}
		s.logger.Info("scheduled refresh complete", "provider", id)
	}
	return due
}
