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
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/testutils"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

type mockService struct {
	id      string
	status  core.Status
	stopErr error
	mu      sync.Mutex
	stops   int
}

func (m *mockService) ID() string                { return m.id }
func (m *mockService) Type() core.ConnectionType { return core.ConnectionWebSocket }
func (m *mockService) Start(ctx context.Context) error {
	return nil
}

func (m *mockService) Stop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stops++
	return m.stopErr
}

func (m *mockService) Status(ctx context.Context) core.Status { return m.status }

func (m *mockService) stopCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func wsConfig(t *testing.T, id string) core.ConnectionConfig {
	t.Helper()
	cfg, err := core.NewConnectionConfig(id, true, id, "", core.ConnectionWebSocket,
		core.WebSocketInfo{URL: "ws://127.0.0.1:42069/websocket"})
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	return cfg
}

func TestAddConfigDuplicate(t *testing.T) {
	mgr := NewManager(testutils.NewSyncBus(), testLogger())
	if err := mgr.AddConfig("tits", wsConfig(t, "tits")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mgr.AddConfig("tits", wsConfig(t, "tits")); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetAndRemoveConfig(t *testing.T) {
	mgr := NewManager(testutils.NewSyncBus(), testLogger())
	_ = mgr.AddConfig("a", wsConfig(t, "a"))
	_ = mgr.AddConfig("b", wsConfig(t, "b"))

	cfg, err := mgr.Config("a")
	if err != nil || cfg.ID() != "a" {
		t.Fatalf("expected config a, got %v %v", cfg.ID(), err)
	}
	if _, err := mgr.Config("missing"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mgr.RemoveConfig("a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mgr.RemoveConfig("a"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second remove, got %v", err)
	}
	configs := mgr.Configs()
	if len(configs) != 1 || configs[0].ID() != "b" {
		t.Fatalf("expected only b to remain, got %d configs", len(configs))
	}
}

func TestInstances(t *testing.T) {
	mgr := NewManager(testutils.NewSyncBus(), testLogger())
	svc := &mockService{id: "tits"}

	if _, ok := mgr.Instance("tits"); ok {
		t.Fatal("expected no instance before add")
	}
	if err := mgr.AddInstance("tits", svc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mgr.AddInstance("tits", svc); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	got, ok := mgr.Instance("tits")
	if !ok || got != core.Service(svc) {
		t.Fatal("expected registered instance")
	}
}

func TestShutdownStopsInstances(t *testing.T) {
	bus := testutils.NewSyncBus()
	mgr := NewManager(bus, testLogger())
	a := &mockService{id: "a", stopErr: errors.New("already closed")}
	b := &mockService{id: "b"}
	_ = mgr.AddInstance("a", a)
	_ = mgr.AddInstance("b", b)

	bus.Publish(core.TopicShutdown, nil)
	bus.Publish(core.TopicShutdown, nil)

	if a.stopCount() != 2 || b.stopCount() != 2 {
		t.Fatalf("expected every instance stopped on each shutdown, got a=%d b=%d", a.stopCount(), b.stopCount())
	}

	mgr.Close()
	bus.Publish(core.TopicShutdown, nil)
	if b.stopCount() != 2 {
		t.Fatal("expected no stop after Close")
	}
}

func TestStatuses(t *testing.T) {
	mgr := NewManager(testutils.NewSyncBus(), testLogger())
	_ = mgr.AddConfig("a", wsConfig(t, "a"))
	_ = mgr.AddConfig("b", wsConfig(t, "b"))
	_ = mgr.AddInstance("a", &mockService{id: "a", status: core.StatusOnline})

	statuses := mgr.Statuses(context.Background())
	if statuses["a"] != core.StatusOnline || statuses["b"] != core.StatusOffline {
		t.Fatalf("unexpected statuses %v", statuses)
	}
}

func TestLoad(t *testing.T) {
	content := `[
  {"id": "tits", "enabled": true, "name": "TITS", "description": "", "type": "websocket",
   "connection": {"url": "ws://127.0.0.1:42069/websocket"}},
  {"id": "tits", "enabled": true, "name": "TITS", "description": "", "type": "websocket",
   "connection": {"url": "ws://127.0.0.1:42069/websocket"}}
]`
	path := filepath.Join(t.TempDir(), "modules.json")
	os.WriteFile(path, []byte(content), 0644)

	mgr := NewManager(testutils.NewSyncBus(), testLogger())
	if err := mgr.Load(path); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("expected duplicate module id to fail the load, got %v", err)
	}

	if err := NewManager(testutils.NewSyncBus(), testLogger()).Load("/nonexistent/modules.json"); err == nil {
		t.Fatal("expected missing file to fail")
	}
}
