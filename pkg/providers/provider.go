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
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

// Category is one group of a provider's catalog as returned by a Refresher.
type Category[T ActionData] struct {
	ID      string
	Actions []T
}

// Refresher returns the authoritative action catalog of an external service.
// It is called on every LoadActions and must be safe to call repeatedly.
type Refresher[T ActionData] func(ctx context.Context) ([]Category[T], error)

// Provider is the type-erased view of an ActionProvider used by the Manager.
type Provider interface {
	ID() string
	LoadActions(ctx context.Context) error
	HasCategory(categoryID string) bool
	Categories() []string
	ActionCount() int
}

type ActionProvider[T ActionData] struct {
	id        string
	refresh   Refresher[T]
	overrides map[string]time.Duration

	mu         sync.RWMutex
	categories map[string]map[string]T
	loadedAt   time.Time
}

type Option[T ActionData] func(*ActionProvider[T])

// WithCooldownOverrides applies cooldowns after every load. Keys are either a
// category id or "category/key"; the more specific key wins.
func WithCooldownOverrides[T ActionData](overrides map[string]time.Duration) Option[T] {
	return func(p *ActionProvider[T]) {
		p.overrides = overrides
	}
}

func NewActionProvider[T ActionData](id string, refresh Refresher[T], opts ...Option[T]) *ActionProvider[T] {
	p := &ActionProvider[T]{
		id:         id,
		refresh:    refresh,
		categories: make(map[string]map[string]T),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ActionProvider[T]) ID() string { return p.id }

// LoadActions replaces the catalog with a fresh Refresher result. Actions that
// survive the reload keep their last trigger time; actions missing from the
// new result disappear along with their cooldown state. On error the previous
// catalog is kept.
func (p *ActionProvider[T]) LoadActions(ctx context.Context) error {
	fresh, err := p.refresh(ctx)
	if err != nil {
		return fmt.Errorf("refresh %s: %w", p.id, err)
	}

	next := make(map[string]map[string]T, len(fresh))
	for _, c := range fresh {
		actions, ok := next[c.ID]
		if !ok {
			actions = make(map[string]T, len(c.Actions))
			next[c.ID] = actions
		}
		for _, a := range c.Actions {
			if a.Category() != c.ID {
				return fmt.Errorf("%w: provider=%s: action %q declares category %q inside %q",
					core.ErrInvalidConfig, p.id, a.Key(), a.Category(), c.ID)
			}
			if _, dup := actions[a.Key()]; dup {
				return fmt.Errorf("%w: provider=%s: action %q in category %q",
					core.ErrAlreadyExists, p.id, a.Key(), c.ID)
			}
			p.applyOverride(a)
			actions[a.Key()] = a
		}
	}

	p.mu.Lock()
	for id, actions := range next {
		prev := p.categories[id]
		for key, a := range actions {
			if old, ok := prev[key]; ok {
				if last, ok := old.LastTriggered(); ok {
					a.MarkTriggered(last)
				}
			}
		}
	}
	p.categories = next
	p.loadedAt = time.Now().UTC()
	p.mu.Unlock()
	return nil
}

func (p *ActionProvider[T]) applyOverride(a T) {
	if d, ok := p.overrides[a.Category()+"/"+a.Key()]; ok {
		a.SetCooldown(d)
		return
	}
	if d, ok := p.overrides[a.Category()]; ok {
		a.SetCooldown(d)
	}
}

// ActionMap returns a copy of the actions in categoryID.
func (p *ActionProvider[T]) ActionMap(categoryID string) (map[string]T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	actions, ok := p.categories[categoryID]
	if !ok {
		return nil, false
	}
	return maps.Clone(actions), true
}

func (p *ActionProvider[T]) Action(categoryID, key string) (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	a, ok := p.categories[categoryID][key]
	return a, ok
}

func (p *ActionProvider[T]) HasCategory(categoryID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.categories[categoryID]
	return ok
}

func (p *ActionProvider[T]) Categories() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return slices.Sorted(maps.Keys(p.categories))
}

func (p *ActionProvider[T]) ActionCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	n := 0
	for _, actions := range p.categories {
		n += len(actions)
	}
	return n
}

func (p *ActionProvider[T]) LoadedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loadedAt
}

// Admit resolves the request's action and applies the cooldown gate. When the
// request is admitted the action is marked as triggered at now before the
// lock is released, so two concurrent requests cannot both pass the gate.
// A rejection carries an error wrapping core.ErrNotFound or core.ErrOnCooldown.
func (p *ActionProvider[T]) Admit(req *core.InternalRequest, now time.Time) (T, core.RequestResult, error) {
	var zero T
	category := req.ProviderKey.CategoryID
	key := req.ActionKey()

	p.mu.Lock()
	defer p.mu.Unlock()

	actions, ok := p.categories[category]
	if !ok {
		return zero, core.Rejected("unknown category %q for provider %s", category, p.id),
			fmt.Errorf("%w: category=%s", core.ErrNotFound, category)
	}
	action, ok := actions[key]
	if !ok {
		return zero, core.Rejected("unknown action %q in category %q", key, category),
			fmt.Errorf("%w: category=%s action=%s", core.ErrNotFound, category, key)
	}

	if !req.BypassCooldown {
		if remaining := CooldownRemaining(action, now); remaining > 0 {
			err := fmt.Errorf("%w: action=%s remaining=%s", core.ErrOnCooldown, key, remaining)
			return zero, core.Rejected("action %q is on cooldown for another %s",
				key, remaining.Round(time.Millisecond)), err
		}
	}

	action.MarkTriggered(now)
	return action, core.Accepted("action %q dispatched", key), nil
}
