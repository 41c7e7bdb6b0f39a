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

package events

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

const defaultQueueSize = 1000

type subscription struct {
	id      uint64
	handler core.EventHandler
}

// Bus is the in-process core.EventBus. Events are queued by Publish and
// delivered by Run one at a time, in publish order, on a single goroutine.
type Bus struct {
	queue  chan core.Event
	logger *slog.Logger

	mu     sync.RWMutex
	subs   map[core.Topic][]subscription
	nextID uint64
	closed bool
	done   chan struct{}
}

func NewBus(queueSize int, logger *slog.Logger) *Bus {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Bus{
		queue:  make(chan core.Event, queueSize),
		logger: logger,
		subs:   make(map[core.Topic][]subscription),
		done:   make(chan struct{}),
	}
}

func (b *Bus) Publish(topic core.Topic, data any) {
	evt := core.Event{
		ID:        uuid.New().String(),
		Topic:     topic,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.logger.Warn("bus closed, dropping event", "topic", topic, "event_id", evt.ID)
		return
	}

	select {
	case b.queue <- evt:
	default:
		b.logger.Warn("bus queue full, dropping event", "topic", topic, "event_id", evt.ID)
	}
}

func (b *Bus) Subscribe(topic core.Topic, handler core.EventHandler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: handler})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[topic]
			for i, s := range subs {
				if s.id == id {
					b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Run delivers queued events until ctx is done or Close is called. Events
// still queued at Close are delivered before Run returns.
func (b *Bus) Run(ctx context.Context) {
	b.logger.Info("event bus started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("event bus stopped")
			return
		case evt, ok := <-b.queue:
			if !ok {
				close(b.done)
				b.logger.Info("event bus drained")
				return
			}
			b.dispatch(evt)
		}
	}
}

// Close stops accepting events and waits up to timeout for Run to drain the queue.
func (b *Bus) Close(timeout time.Duration) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()

	select {
	case <-b.done:
	case <-time.After(timeout):
		b.logger.Warn("event bus drain timed out", "pending", len(b.queue))
	}
}

func (b *Bus) dispatch(evt core.Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs[evt.Topic]...)
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(s, evt)
	}
}

func (b *Bus) deliver(s subscription, evt core.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panic recovered", "topic", evt.Topic, "event_id", evt.ID, "error", r)
		}
	}()
	s.handler(evt)
}
