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

// Package testutils holds fakes shared by package tests.
package testutils

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

// SyncBus is a core.EventBus that delivers on the publisher's goroutine and
// records every published event.
type SyncBus struct {
	mu       sync.Mutex
	handlers map[core.Topic]map[int]core.EventHandler
	next     int
	events   []core.Event
}

func NewSyncBus() *SyncBus {
	return &SyncBus{handlers: make(map[core.Topic]map[int]core.EventHandler)}
}

func (b *SyncBus) Publish(topic core.Topic, data any) {
	evt := core.Event{ID: uuid.New().String(), Topic: topic, Data: data, Timestamp: time.Now().UTC()}

	b.mu.Lock()
	b.events = append(b.events, evt)
	hs := make([]core.EventHandler, 0, len(b.handlers[topic]))
	for _, h := range b.handlers[topic] {
		hs = append(hs, h)
	}
	b.mu.Unlock()

	for _, h := range hs {
		h(evt)
	}
}

func (b *SyncBus) Subscribe(topic core.Topic, handler core.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handlers[topic] == nil {
		b.handlers[topic] = make(map[int]core.EventHandler)
	}
	id := b.next
	b.next++
	b.handlers[topic][id] = handler
	return func() {
		b.mu.Lock()
		delete(b.handlers[topic], id)
		b.mu.Unlock()
	}
}

// Events returns the recorded events for topic.
func (b *SyncBus) Events(topic core.Topic) []core.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []core.Event
	for _, e := range b.events {
		if e.Topic == topic {
			out = append(out, e)
		}
	}
	return out
}

// WaitFor polls until at least n events were published on topic or timeout elapses.
func (b *SyncBus) WaitFor(topic core.Topic, n int, timeout time.Duration) []core.Event {
	deadline := time.Now().Add(timeout)
	for {
		evts := b.Events(topic)
		if len(evts) >= n || time.Now().After(deadline) {
			return evts
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (b *SyncBus) Subscribers(topic core.Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[topic])
}
