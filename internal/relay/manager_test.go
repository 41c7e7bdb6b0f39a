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

package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/testutils"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

type mockBridge struct {
	name    string
	inbound chan []byte
	panicky bool

	mu        sync.Mutex
	published [][]byte
}

func newMockBridge(name string) *mockBridge {
	return &mockBridge{name: name, inbound: make(chan []byte, 8)}
}

func (m *mockBridge) Name() string                         { return m.name }
func (m *mockBridge) Type() string                         { return "mock" }
func (m *mockBridge) Connect(ctx context.Context) error    { return nil }
func (m *mockBridge) Disconnect(ctx context.Context) error { return nil }

func (m *mockBridge) Consume(ctx context.Context, deliver func(context.Context, []byte) error) error {
	if m.panicky {
		panic("consumer exploded")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-m.inbound:
			deliver(ctx, p)
		}
	}
}

func (m *mockBridge) Publish(ctx context.Context, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, payload)
	return nil
}

func (m *mockBridge) Published() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.published...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRelayPublishesDecodedRequests(t *testing.T) {
	bus := testutils.NewSyncBus()
	mgr := NewManager(bus, testLogger(), nil)
	b := newMockBridge("kafka-in")
	mgr.Start(context.Background(), []core.Bridge{b})
	defer mgr.Stop()

	b.inbound <- []byte(`not json`)
	b.inbound <- []byte(`{"providerId":"tits-1","providerKey":{"categoryId":"tits-1.items"}}`)
	b.inbound <- []byte(`{"providerId":"tits-1","providerKey":{"categoryId":"tits-1.items","actions":["i-1"]},"context":{"amount":"3"}}`)

	evts := bus.WaitFor(core.TopicExecuteAction, 1, time.Second)
	if len(evts) != 1 {
		t.Fatalf("expected 1 EXECUTE_ACTION event, got %d", len(evts))
	}
	req := evts[0].Data.(*core.InternalRequest)
	if req.RequestID == "" || req.Timestamp.IsZero() {
		t.Error("request id and timestamp not filled in")
	}
	if req.ActionKey() != "i-1" || req.ContextValue("amount", "") != "3" {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestRelayForwardsNotifications(t *testing.T) {
	bus := testutils.NewSyncBus()
	mgr := NewManager(bus, testLogger(), nil)
	a, b := newMockBridge("a"), newMockBridge("b")
	mgr.Start(context.Background(), []core.Bridge{a, b})

	bus.Publish(core.TopicInfo, core.Notify("tits-1", "req-1", "Cake executed"))
	bus.Publish(core.TopicError, core.Notify("pog-1", "req-2", "relay down"))
	bus.Publish(core.TopicInfo, "not a notification")

	deadline := time.Now().Add(time.Second)
	for (len(a.Published()) < 2 || len(b.Published()) < 2) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	mgr.Stop()

	for _, br := range []*mockBridge{a, b} {
		pub := br.Published()
		if len(pub) != 2 {
			t.Fatalf("bridge %s got %d notifications, want 2", br.name, len(pub))
		}
		var out Outbound
		if err := json.Unmarshal(pub[1], &out); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if out.Topic != core.TopicError || out.RequestID != "req-2" || out.Message != "relay down" {
			t.Errorf("unexpected notification %+v", out)
		}
	}
}

func TestRelayRecoversConsumerPanic(t *testing.T) {
	bus := testutils.NewSyncBus()
	mgr := NewManager(bus, testLogger(), nil)
	b := newMockBridge("boom")
	b.panicky = true
	mgr.Start(context.Background(), []core.Bridge{b})

	done := make(chan struct{})
	go func() {
		mgr.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after consumer panic")
	}
}

func TestStopUnsubscribes(t *testing.T) {
	bus := testutils.NewSyncBus()
	mgr := NewManager(bus, testLogger(), nil)
	mgr.Start(context.Background(), []core.Bridge{newMockBridge("x")})
	if bus.Subscribers(core.TopicInfo) != 1 || bus.Subscribers(core.TopicError) != 1 {
		t.Fatal("relay did not subscribe to INFO and ERROR")
	}
	mgr.Stop()
	mgr.Stop()
	if bus.Subscribers(core.TopicInfo) != 0 || mgr.ActiveCount() != 0 {
		t.Fatal("relay still active after Stop")
	}
}

func TestDecodeRequest(t *testing.T) {
	if _, err := DecodeRequest([]byte(`{"providerId":""}`)); !errors.Is(err, core.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := DecodeRequest([]byte(`[1,2]`)); !errors.Is(err, core.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for wrong shape, got %v", err)
	}
	req, err := DecodeRequest([]byte(`{"requestId":"fixed","providerId":"p","providerKey":{"categoryId":"c","actions":["a","b"]},"bypass_cooldown":true}`))
	if err != nil {
		t.Fatalf("DecodeRequest: %v", err)
	}
	if req.RequestID != "fixed" || !req.BypassCooldown || req.ActionKey() != "a" {
		t.Errorf("unexpected request %+v", req)
	}
}
