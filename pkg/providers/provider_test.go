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
	"strings"
	"testing"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

type testAction struct {
	BaseAction
	Name string
}

func newTestAction(category, key string, cooldown time.Duration) *testAction {
	return &testAction{BaseAction: BaseAction{ActionKey: key, CategoryID: category, CooldownPeriod: cooldown}}
}

// catalog returns a Refresher that serves the given catalogs in order, one per call.
func catalog(rounds ...[]Category[*testAction]) Refresher[*testAction] {
	call := 0
	return func(ctx context.Context) ([]Category[*testAction], error) {
		if call >= len(rounds) {
			return rounds[len(rounds)-1], nil
		}
		out := rounds[call]
		call++
		return out, nil
	}
}

func fiveActions() []Category[*testAction] {
	return []Category[*testAction]{
		{ID: "items", Actions: []*testAction{
			newTestAction("items", "a", 0),
			newTestAction("items", "b", 0),
			newTestAction("items", "c", 0),
		}},
		{ID: "triggers", Actions: []*testAction{
			newTestAction("triggers", "x", 0),
			newTestAction("triggers", "y", 0),
		}},
	}
}

func TestActionCountMatchesCategories(t *testing.T) {
	p := NewActionProvider("tits", catalog(fiveActions()))
	if err := p.LoadActions(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sum := 0
	for _, c := range p.Categories() {
		m, ok := p.ActionMap(c)
		if !ok {
			t.Fatalf("expected category %s", c)
		}
		sum += len(m)
	}
	if p.ActionCount() != 5 || sum != 5 {
		t.Fatalf("expected 5 actions, count=%d sum=%d", p.ActionCount(), sum)
	}
}

func TestActionMapUnknownCategory(t *testing.T) {
	p := NewActionProvider("tits", catalog(fiveActions()))
	_ = p.LoadActions(context.Background())

	if _, ok := p.ActionMap("missing"); ok {
		t.Fatal("expected unknown category to be absent")
	}
	if p.HasCategory("missing") {
		t.Fatal("expected HasCategory to be false")
	}
}

func TestLoadActionsReplacesCatalog(t *testing.T) {
	second := []Category[*testAction]{
		{ID: "items", Actions: []*testAction{newTestAction("items", "a", 0)}},
	}
	p := NewActionProvider("tits", catalog(fiveActions(), second))
	ctx := context.Background()

	if err := p.LoadActions(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.LoadActions(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := p.Action("items", "b"); ok {
		t.Fatal("expected action b to be dropped after reload")
	}
	if _, ok := p.ActionMap("triggers"); ok {
		t.Fatal("expected triggers category to be dropped after reload")
	}
	if p.ActionCount() != 1 {
		t.Fatalf("expected 1 action, got %d", p.ActionCount())
	}
}

func TestLoadActionsKeepsCooldownOfSurvivingActions(t *testing.T) {
	// Each call builds new action values, as a remote catalog refresh does.
	refresh := func(ctx context.Context) ([]Category[*testAction], error) {
		return []Category[*testAction]{
			{ID: "items", Actions: []*testAction{newTestAction("items", "a", 10*time.Second)}},
		}, nil
	}
	p := NewActionProvider("tits", refresh)
	ctx := context.Background()
	if err := p.LoadActions(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	req := core.NewInternalRequest("tits", "items", "a")
	if _, res, _ := p.Admit(req, start); !res.IsSuccess {
		t.Fatalf("expected first request to fire, got %s", res.Message)
	}
	if _, res, _ := p.Admit(req, start.Add(time.Second)); res.IsSuccess {
		t.Fatal("expected request to be blocked before reload")
	}

	if err := p.LoadActions(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, res, err := p.Admit(req, start.Add(2*time.Second))
	if res.IsSuccess || !errors.Is(err, core.ErrOnCooldown) {
		t.Fatalf("expected cooldown to survive reload, got %+v", res)
	}
	if _, res, _ := p.Admit(req, start.Add(10*time.Second)); !res.IsSuccess {
		t.Fatalf("expected action to fire after cooldown, got %s", res.Message)
	}
}

func TestLoadActionsRejectsDuplicateKey(t *testing.T) {
	dup := []Category[*testAction]{
		{ID: "items", Actions: []*testAction{newTestAction("items", "a", 0), newTestAction("items", "a", 0)}},
	}
	p := NewActionProvider("tits", catalog(fiveActions(), dup))
	ctx := context.Background()
	_ = p.LoadActions(ctx)

	err := p.LoadActions(ctx)
	if !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	if p.ActionCount() != 5 {
		t.Fatalf("expected previous catalog to be kept, got %d actions", p.ActionCount())
	}
}

func TestLoadActionsRejectsMismatchedCategory(t *testing.T) {
	bad := []Category[*testAction]{
		{ID: "items", Actions: []*testAction{newTestAction("triggers", "a", 0)}},
	}
	p := NewActionProvider("tits", catalog(bad))
	if err := p.LoadActions(context.Background()); !errors.Is(err, core.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestLoadActionsRefreshError(t *testing.T) {
	p := NewActionProvider("tits", func(ctx context.Context) ([]Category[*testAction], error) {
		return nil, fmt.Errorf("socket closed")
	})
	err := p.LoadActions(context.Background())
	if err == nil || !strings.Contains(err.Error(), "socket closed") {
		t.Fatalf("expected refresh error, got %v", err)
	}
}

func TestCooldownOverrides(t *testing.T) {
	p := NewActionProvider("tits", catalog(fiveActions()),
		WithCooldownOverrides[*testAction](map[string]time.Duration{
			"items":   2 * time.Second,
			"items/a": 5 * time.Second,
		}))
	_ = p.LoadActions(context.Background())

	a, _ := p.Action("items", "a")
	b, _ := p.Action("items", "b")
	x, _ := p.Action("triggers", "x")
	if a.Cooldown() != 5*time.Second || b.Cooldown() != 2*time.Second || x.Cooldown() != 0 {
		t.Fatalf("unexpected cooldowns a=%s b=%s x=%s", a.Cooldown(), b.Cooldown(), x.Cooldown())
	}
}

func TestAdmitNeverTriggered(t *testing.T) {
	p := NewActionProvider("tits", catalog(fiveActions()))
	_ = p.LoadActions(context.Background())
	a, _ := p.Action("items", "a")
	a.SetCooldown(time.Hour)

	now := time.Now()
	action, res, _ := p.Admit(core.NewInternalRequest("tits", "items", "a"), now)
	if !res.IsSuccess {
		t.Fatalf("expected success, got %s", res.Message)
	}
	if last, ok := action.LastTriggered(); !ok || !last.Equal(now) {
		t.Fatalf("expected lastTriggered=%v, got %v", now, last)
	}
}

func TestAdmitCooldown(t *testing.T) {
	p := NewActionProvider("tits", catalog(fiveActions()))
	_ = p.LoadActions(context.Background())

	a, _ := p.Action("items", "a")
	triggered := time.Now()
	a.MarkTriggered(triggered)
	a.SetCooldown(10 * time.Second)

	req := core.NewInternalRequest("tits", "items", "a")
	_, res, err := p.Admit(req, triggered.Add(time.Second))
	if res.IsSuccess || !errors.Is(err, core.ErrOnCooldown) {
		t.Fatalf("expected request to be blocked by cooldown, got %v", err)
	}
	if !strings.Contains(res.Message, "cooldown") {
		t.Fatalf("expected cooldown message, got %q", res.Message)
	}
	if last, _ := a.LastTriggered(); !last.Equal(triggered) {
		t.Fatal("expected blocked request not to touch lastTriggered")
	}

	req.BypassCooldown = true
	now := triggered.Add(2 * time.Second)
	_, res, err = p.Admit(req, now)
	if !res.IsSuccess || err != nil {
		t.Fatalf("expected bypass to succeed, got %s", res.Message)
	}
	if last, _ := a.LastTriggered(); !last.Equal(now) {
		t.Fatal("expected bypass to update lastTriggered")
	}
}

func TestAdmitCooldownElapsed(t *testing.T) {
	p := NewActionProvider("tits", catalog(fiveActions()))
	_ = p.LoadActions(context.Background())

	a, _ := p.Action("triggers", "x")
	triggered := time.Now()
	a.MarkTriggered(triggered)
	a.SetCooldown(10 * time.Second)

	_, res, _ := p.Admit(core.NewInternalRequest("tits", "triggers", "x"), triggered.Add(10*time.Second))
	if !res.IsSuccess {
		t.Fatalf("expected action to fire once cooldown elapsed, got %s", res.Message)
	}
}

func TestAdmitUnknown(t *testing.T) {
	p := NewActionProvider("tits", catalog(fiveActions()))
	_ = p.LoadActions(context.Background())

	_, res, err := p.Admit(core.NewInternalRequest("tits", "nope", "a"), time.Now())
	if res.IsSuccess || !errors.Is(err, core.ErrNotFound) || !strings.Contains(res.Message, "unknown category") {
		t.Fatalf("expected unknown category, got %+v", res)
	}

	_, res, err = p.Admit(core.NewInternalRequest("tits", "items", "zzz"), time.Now())
	if res.IsSuccess || !errors.Is(err, core.ErrNotFound) || !strings.Contains(res.Message, "unknown action") {
		t.Fatalf("expected unknown action, got %+v", res)
	}
}

func TestCooldownRemaining(t *testing.T) {
	a := newTestAction("items", "a", 10*time.Second)
	now := time.Now()
	if CooldownRemaining(a, now) != 0 {
		t.Fatal("expected no cooldown for an untriggered action")
	}
	a.MarkTriggered(now)
	if got := CooldownRemaining(a, now.Add(4*time.Second)); got != 6*time.Second {
		t.Fatalf("expected 6s remaining, got %s", got)
	}
}
