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

// Package relay moves requests from broker bridges onto the event bus and
// notifications from the bus back out to the bridges.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

const defaultOutboundSize = 256

type activeBridge struct {
	bridge   core.Bridge
	outbound chan []byte
}

type Manager struct {
	bus          core.EventBus
	logger       *slog.Logger
	metrics      *metrics.Metrics
	outboundSize int

	mu      sync.Mutex
	active  map[string]*activeBridge
	cancel  context.CancelFunc
	unsubs  []func()
	workers sync.WaitGroup
}

func NewManager(bus core.EventBus, logger *slog.Logger, m *metrics.Metrics) *Manager {
	return &Manager{
		bus:          bus,
		logger:       logger,
		metrics:      m,
		outboundSize: defaultOutboundSize,
		active:       make(map[string]*activeBridge),
	}
}

// Start runs one consumer and one publisher per bridge and subscribes to
// INFO and ERROR so notifications are forwarded to every bridge.
func (m *Manager) Start(ctx context.Context, bridges []core.Bridge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	relayCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	for _, b := range bridges {
		ab := &activeBridge{bridge: b, outbound: make(chan []byte, m.outboundSize)}
		m.active[b.Name()] = ab
		m.workers.Add(2)
		go m.consume(relayCtx, ab)
		go m.forward(relayCtx, ab)
		m.logger.Info("relay started", "bridge", b.Name(), "type", b.Type())
	}

	for _, topic := range []core.Topic{core.TopicInfo, core.TopicError} {
		m.unsubs = append(m.unsubs, m.bus.Subscribe(topic, m.enqueue))
	}
}

func (m *Manager) consume(ctx context.Context, ab *activeBridge) {
	defer m.workers.Done()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("consumer panic recovered", "bridge", ab.bridge.Name(), "error", r)
		}
	}()
	if err := ab.bridge.Consume(ctx, func(ctx context.Context, payload []byte) error {
		return m.Ingest(ab.bridge.Name(), payload)
	}); err != nil && ctx.Err() == nil {
		m.logger.Error("consumer error", "bridge", ab.bridge.Name(), "error", err)
	}
}

func (m *Manager) forward(ctx context.Context, ab *activeBridge) {
	defer m.workers.Done()
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("publisher panic recovered", "bridge", ab.bridge.Name(), "error", r)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-ab.outbound:
			err := ab.bridge.Publish(ctx, payload)
			m.metrics.ObserveBridge(ab.bridge.Name(), "out", err)
			if err != nil && ctx.Err() == nil {
				m.logger.Error("notification publish failed", "bridge", ab.bridge.Name(), "error", err)
			}
		}
	}
}

// Ingest decodes an inbound request and publishes it as EXECUTE_ACTION.
// Malformed payloads are logged and dropped; they are not redelivered.
func (m *Manager) Ingest(source string, payload []byte) error {
	req, err := DecodeRequest(payload)
	m.metrics.ObserveBridge(source, "in", err)
	if err != nil {
		m.logger.Warn("dropping malformed request", "bridge", source, "error", err)
		return nil
	}
	m.logger.Debug("request received", "bridge", source, "request_id", req.RequestID, "provider", req.ProviderID)
	m.bus.Publish(core.TopicExecuteAction, req)
	return nil
}

// DecodeRequest parses and validates an InternalRequest, filling in a request
// id and timestamp when absent.
func DecodeRequest(payload []byte) (*core.InternalRequest, error) {
	var req core.InternalRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return &req, nil
}

// Outbound is the wire form of a forwarded notification.
type Outbound struct {
	Topic core.Topic `json:"topic"`
	core.Notification
}

func (m *Manager) enqueue(evt core.Event) {
	n, ok := evt.Data.(core.Notification)
	if !ok {
		return
	}
	payload, err := json.Marshal(Outbound{Topic: evt.Topic, Notification: n})
	if err != nil {
		m.logger.Error("notification marshal failed", "error", err)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for name, ab := range m.active {
		select {
		case ab.outbound <- payload:
		default:
			m.logger.Warn("outbound queue full, dropping notification", "bridge", name)
		}
	}
}

func (m *Manager) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Stop cancels every consumer and publisher and waits for them to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, unsubs := m.cancel, m.unsubs
	m.cancel, m.unsubs = nil, nil
	m.active = make(map[string]*activeBridge)
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	for _, unsub := range unsubs {
		unsub()
	}
	cancel()
	m.workers.Wait()
	m.logger.Info("relay stopped")
}
