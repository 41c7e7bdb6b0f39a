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

package connections

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

const defaultStopTimeout = 10 * time.Second

// Manager owns the connection configs and the live service instances built
// from them. It stops every instance when SHUTDOWN is published.
type Manager struct {
	configs       map[string]core.ConnectionConfig
	configOrder   []string
	instances     map[string]core.Service
	instanceOrder []string
	stopTimeout   time.Duration
	unsubscribe   func()
	logger        *slog.Logger
	mu            sync.RWMutex
}

func NewManager(bus core.EventBus, logger *slog.Logger) *Manager {
	m := &Manager{
		configs:     make(map[string]core.ConnectionConfig),
		instances:   make(map[string]core.Service),
		stopTimeout: defaultStopTimeout,
		logger:      logger,
	}
	m.unsubscribe = bus.Subscribe(core.TopicShutdown, func(core.Event) {
		m.mu.RLock()
		timeout := m.stopTimeout
		m.mu.RUnlock()

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := m.StopAll(ctx); err != nil {
			m.logger.Error("shutdown finished with errors", "error", err)
		}
	})
	return m
}

func (m *Manager) SetStopTimeout(d time.Duration) {
	m.mu.Lock()
	m.stopTimeout = d
	m.mu.Unlock()
}

// Load registers one config per module declared in the modules file. Errors
// are returned as-is: a bad modules file is fatal at startup.
func (m *Manager) Load(path string) error {
	modules, err := config.LoadModules(path)
	if err != nil {
		return err
	}
	for _, cfg := range modules {
		if err := m.AddConfig(cfg.ID(), cfg); err != nil {
			return err
		}
	}
	m.logger.Info("connection configs loaded", "path", path, "count", len(modules))
	return nil
}

func (m *Manager) AddConfig(key string, cfg core.ConnectionConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.configs[key]; exists {
		return fmt.Errorf("%w: connection=%s", core.ErrAlreadyExists, key)
	}
	m.configs[key] = cfg
	m.configOrder = append(m.configOrder, key)
	return nil
}

func (m *Manager) Config(key string) (core.ConnectionConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.configs[key]
	if !ok {
		return core.ConnectionConfig{}, fmt.Errorf("%w: connection=%s", core.ErrNotFound, key)
	}
	return cfg, nil
}

func (m *Manager) RemoveConfig(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[key]; !ok {
		return fmt.Errorf("%w: connection=%s", core.ErrNotFound, key)
	}
	delete(m.configs, key)
	m.configOrder = remove(m.configOrder, key)
	return nil
}

func (m *Manager) Configs() []core.ConnectionConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.ConnectionConfig, 0, len(m.configOrder))
	for _, key := range m.configOrder {
		out = append(out, m.configs[key])
	}
	return out
}

func (m *Manager) AddInstance(key string, svc core.Service) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.instances[key]; exists {
		return fmt.Errorf("%w: instance=%s", core.ErrAlreadyExists, key)
	}
	m.instances[key] = svc
	m.instanceOrder = append(m.instanceOrder, key)
	return nil
}

// Instance reports whether a service is running for key; absence is not an error.
func (m *Manager) Instance(key string) (core.Service, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.instances[key]
	return svc, ok
}

func (m *Manager) Instances() []core.Service {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.Service, 0, len(m.instanceOrder))
	for _, key := range m.instanceOrder {
		out = append(out, m.instances[key])
	}
	return out
}

// StopAll stops every instance, continuing past failures.
func (m *Manager) StopAll(ctx context.Context) error {
	var errs []error
	for _, svc := range m.Instances() {
		m.logger.Info("stopping connection", "id", svc.ID(), "type", svc.Type())
		if err := svc.Stop(ctx); err != nil {
			m.logger.Error("connection stop failed", "id", svc.ID(), "error", err)
			errs = append(errs, fmt.Errorf("stop %s: %w", svc.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// Statuses reports the status of every configured connection. Connections
// without a running instance are OFFLINE.
func (m *Manager) Statuses(ctx context.Context) map[string]core.Status {
	out := make(map[string]core.Status)
	for _, cfg := range m.Configs() {
		svc, ok := m.Instance(cfg.ID())
		if !ok {
			out[cfg.ID()] = core.StatusOffline
			continue
		}
		out[cfg.ID()] = svc.Status(ctx)
	}
	return out
}

// Close detaches the manager from the event bus.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

func remove(keys []string, key string) []string {
	for i, k := range keys {
		if k == key {
			return append(keys[:i:i], keys[i+1:]...)
		}
	}
	return keys
}
