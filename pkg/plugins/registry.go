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

package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

// Registry holds the configured broker bridges and their connection health.
type Registry struct {
	bridges map[string]core.Bridge
	healthy map[string]bool
	logger  *slog.Logger
	mu      sync.RWMutex
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		bridges: make(map[string]core.Bridge),
		healthy: make(map[string]bool),
		logger:  logger,
	}
}

func (r *Registry) Register(b core.Bridge) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bridges[b.Name()]; ok {
		return fmt.Errorf("%w: bridge=%s", core.ErrAlreadyExists, b.Name())
	}
	r.bridges[b.Name()] = b
	r.logger.Info("registered bridge", "name", b.Name(), "type", b.Type())
	return nil
}

func (r *Registry) Bridges() map[string]core.Bridge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make(map[string]core.Bridge, len(r.bridges))
	for k, v := range r.bridges {
		cp[k] = v
	}
	return cp
}

// ConnectAll connects every bridge and returns how many succeeded. A bridge
// that fails to connect is marked unhealthy and skipped by the relay.
func (r *Registry) ConnectAll(ctx context.Context) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	connected := 0
	for name, b := range r.bridges {
		if err := b.Connect(ctx); err != nil {
			r.logger.Error("bridge connect failed", "name", name, "error", err)
			r.healthy[name] = false
		} else {
			r.healthy[name] = true
			connected++
		}
	}
	return connected
}

func (r *Registry) IsHealthy(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.healthy[name]
}

// Healthy returns the connected bridges sorted by name.
func (r *Registry) Healthy() []core.Bridge {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []core.Bridge
	for name, b := range r.bridges {
		if r.healthy[name] {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

func (r *Registry) DisconnectAll(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, b := range r.bridges {
		r.logger.Info("disconnecting bridge", "name", name)
		if err := b.Disconnect(ctx); err != nil {
			r.logger.Warn("bridge disconnect failed", "name", name, "error", err)
		}
		r.healthy[name] = false
	}
}
