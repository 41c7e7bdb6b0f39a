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

// Package hub assembles connections, providers and handlers into a running
// action hub.
package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/refresh"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/connections"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/handlers"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/providers"
)

type Options struct {
	Logger          *slog.Logger
	Metrics         *metrics.Metrics
	RefreshInterval time.Duration
	StopTimeout     time.Duration
}

type Hub struct {
	bus         core.EventBus
	cfg         *config.Config
	providers   *providers.Manager
	connections *connections.Manager
	scheduler   *refresh.Scheduler
	metrics     *metrics.Metrics
	deps        handlers.Deps
	logger      *slog.Logger
}

func New(bus core.EventBus, cfg *config.Config, opts Options) *Hub {
	if cfg == nil {
		cfg = &config.Config{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &Hub{
		bus:         bus,
		cfg:         cfg,
		providers:   providers.NewManager(bus, logger.With("component", "providers")),
		connections: connections.NewManager(bus, logger.With("component", "connections")),
		metrics:     opts.Metrics,
		logger:      logger,
		deps: handlers.Deps{
			Bus:         bus,
			Logger:      logger,
			Metrics:     opts.Metrics,
			DispatchLog: logging.NewDispatchLogger(logger.With("component", "dispatch")),
		},
	}
	if opts.StopTimeout > 0 {
		h.connections.SetStopTimeout(opts.StopTimeout)
	}
	h.scheduler = refresh.NewScheduler(h, opts.RefreshInterval, logger.With("component", "refresh"))
	return h
}

func (h *Hub) Providers() *providers.Manager     { return h.providers }
func (h *Hub) Connections() *connections.Manager { return h.connections }
func (h *Hub) Scheduler() *refresh.Scheduler     { return h.scheduler }

func (h *Hub) LoadModules(path string) error {
	return h.connections.Load(path)
}

// Start builds and starts a service for every loaded connection config. A
// connection that cannot be built or started is reported on ERROR and
// skipped; the rest of the hub keeps running.
func (h *Hub) Start(ctx context.Context) {
	now := time.Now()
	for _, cfg := range h.connections.Configs() {
		tuning, _ := h.cfg.Tuning(cfg.ID())

		mod, err := Build(cfg, h.deps, tuning, h.catalogLoaded)
		if err != nil {
			h.report(cfg.ID(), "failed to build connection: %v", err)
			continue
		}
		if err := h.providers.RegisterProvider(mod.Provider); err != nil {
			continue
		}
		if err := h.connections.AddInstance(cfg.ID(), mod.Service); err != nil {
			h.report(cfg.ID(), "failed to register connection: %v", err)
			continue
		}
		if err := mod.Service.Start(ctx); err != nil {
			h.report(cfg.ID(), "failed to start connection: %v", err)
			continue
		}
		if tuning.Refresh != "" {
			if err := h.scheduler.Add(cfg.ID(), tuning.Refresh, now); err != nil {
				h.report(cfg.ID(), "%v", err)
			}
		}
		h.metrics.SetActionCount(cfg.ID(), mod.Provider.ActionCount())
		h.logger.Info("connection started", "connection", cfg.ID(), "type", cfg.Type(), "enabled", cfg.Enabled())
	}

	if err := h.providers.Reindex(); err != nil {
		h.logger.Warn("provider index has conflicts", "error", err)
	}
}

// Watch runs the refresh scheduler until ctx is done.
func (h *Hub) Watch(ctx context.Context) {
	h.scheduler.Watch(ctx)
}

// Refresh reloads one provider's catalog and rebuilds the category index.
func (h *Hub) Refresh(ctx context.Context, id string) error {
	err := h.providers.Refresh(ctx, id)
	if p, ok := h.providers.Provider(id); ok {
		h.metrics.SetActionCount(id, p.ActionCount())
	}
	return err
}

// RefreshAll reloads every provider's catalog and rebuilds the category index.
func (h *Hub) RefreshAll(ctx context.Context) error {
	err := h.providers.RefreshAll(ctx)
	for _, p := range h.providers.Providers() {
		h.metrics.SetActionCount(p.ID(), p.ActionCount())
	}
	return err
}

func (h *Hub) catalogLoaded(id string) {
	if p, ok := h.providers.Provider(id); ok {
		h.metrics.SetActionCount(id, p.ActionCount())
	}
	if err := h.providers.Reindex(); err != nil {
		h.logger.Warn("provider index has conflicts", "error", err)
	}
}

func (h *Hub) Configs() []core.ConnectionConfig { return h.connections.Configs() }
func (h *Hub) Catalogs() []providers.Provider   { return h.providers.Providers() }

// Running reports whether a service instance exists for connection id.
func (h *Hub) Running(id string) bool {
	_, ok := h.connections.Instance(id)
	return ok
}

// Statuses returns the status of every configured connection.
func (h *Hub) Statuses(ctx context.Context) map[string]core.Status {
	return h.connections.Statuses(ctx)
}

// Shutdown announces SHUTDOWN; the connection manager stops every instance
// when the event is delivered.
func (h *Hub) Shutdown() {
	h.logger.Info("shutdown requested")
	h.bus.Publish(core.TopicShutdown, nil)
}

func (h *Hub) Close() {
	h.connections.Close()
}

func (h *Hub) report(connectionID, format string, args ...any) {
	n := core.Notify(connectionID, "", format, args...)
	h.logger.Error(n.Message, "connection", connectionID)
	h.bus.Publish(core.TopicError, n)
}
