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

package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/routing"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

// Manager is the registry of action providers keyed by provider id.
type Manager struct {
	providers map[string]Provider
	order     []string
	index     *routing.Table
	bus       core.EventBus
	logger    *slog.Logger
	mu        sync.RWMutex
}

func NewManager(bus core.EventBus, logger *slog.Logger) *Manager {
	return &Manager{
		providers: make(map[string]Provider),
		index:     routing.NewTable(),
		bus:       bus,
		logger:    logger,
	}
}

// RegisterProvider adds p to the registry. A second provider with the same id
// is rejected, reported on the ERROR topic, and the first registration stays.
func (m *Manager) RegisterProvider(p Provider) error {
	m.mu.Lock()
	if _, exists := m.providers[p.ID()]; exists {
		m.mu.Unlock()
		m.report("", "provider with id %s already exists", p.ID())
		return fmt.Errorf("%w: provider=%s", core.ErrAlreadyExists, p.ID())
	}
	m.providers[p.ID()] = p
	m.order = append(m.order, p.ID())
	m.mu.Unlock()

	m.logger.Info("registered provider", "provider", p.ID(), "actions", p.ActionCount())
	return nil
}

func (m *Manager) Provider(id string) (Provider, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.providers[id]
	return p, ok
}

// Providers returns the registered providers in registration order.
func (m *Manager) Providers() []Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Provider, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.providers[id])
	}
	return out
}

// LookupProvider returns the provider owning categoryID. A category claimed by
// more than one provider resolves to nothing and is reported as an error.
func (m *Manager) LookupProvider(categoryID string) (Provider, bool) {
	if owner, ok := m.index.Lookup(categoryID); ok {
		if p, ok := m.Provider(owner); ok && p.HasCategory(categoryID) {
			return p, true
		}
		m.index.Remove(categoryID)
	}

	var matches []Provider
	for _, p := range m.Providers() {
		if p.HasCategory(categoryID) {
			matches = append(matches, p)
		}
	}

	switch len(matches) {
	case 0:
		return nil, false
	case 1:
		if owner, ok := m.index.Claim(categoryID, matches[0].ID()); !ok {
			m.report("", "category %s is claimed by %s and %s", categoryID, owner, matches[0].ID())
			return nil, false
		}
		return matches[0], true
	default:
		m.report("", "category %s is declared by %d providers (%s, %s)",
			categoryID, len(matches), matches[0].ID(), matches[1].ID())
		return nil, false
	}
}

// Reindex rebuilds the category index from the current catalogs. Conflicting
// categories are left out of the index and returned as ErrCategoryConflict.
func (m *Manager) Reindex() error {
	index := make(map[string]string)
	conflicted := make(map[string]bool)
	var errs []error

	for _, p := range m.Providers() {
		for _, c := range p.Categories() {
			if owner, ok := index[c]; ok {
				errs = append(errs, fmt.Errorf("%w: category=%s providers=%s,%s",
					core.ErrCategoryConflict, c, owner, p.ID()))
				m.report("", "category %s is declared by both %s and %s", c, owner, p.ID())
				conflicted[c] = true
				continue
			}
			index[c] = p.ID()
		}
	}
	for c := range conflicted {
		delete(index, c)
	}

	m.index.ReplaceAll(index)
	m.logger.Info("provider index rebuilt", "categories", len(index), "conflicts", len(conflicted))
	return errors.Join(errs...)
}

// RefreshAll reloads every provider's catalog and rebuilds the index. A failed
// provider keeps its previous catalog; all failures are returned joined.
func (m *Manager) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, p := range m.Providers() {
		if err := p.LoadActions(ctx); err != nil {
			m.report(p.ID(), "failed to refresh actions: %v", err)
			errs = append(errs, err)
			continue
		}
		m.logger.Info("provider refreshed", "provider", p.ID(), "actions", p.ActionCount())
	}
	if err := m.Reindex(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Refresh reloads a single provider and rebuilds the index.
func (m *Manager) Refresh(ctx context.Context, id string) error {
	p, ok := m.Provider(id)
	if !ok {
		return fmt.Errorf("%w: provider=%s", core.ErrNotFound, id)
	}
	if err := p.LoadActions(ctx); err != nil {
		m.report(id, "failed to refresh actions: %v", err)
		return err
	}
	return m.Reindex()
}

func (m *Manager) report(connectionID, format string, args ...any) {
	n := core.Notify(connectionID, "", "ProviderManager >> "+format, args...)
	m.logger.Error(n.Message)
	if m.bus != nil {
		m.bus.Publish(core.TopicError, n)
	}
}
