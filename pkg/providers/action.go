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

import "time"

// ActionData is the capability set every provider-specific action exposes.
type ActionData interface {
	Key() string
	Category() string
	Cooldown() time.Duration
	SetCooldown(d time.Duration)
	// LastTriggered reports false when the action has never been dispatched.
	LastTriggered() (time.Time, bool)
	MarkTriggered(at time.Time)
}

// BaseAction carries the fields shared by all actions. Provider action types
// embed it and add their own wire fields.
type BaseAction struct {
	ActionKey      string        `json:"key"`
	CategoryID     string        `json:"category"`
	CooldownPeriod time.Duration `json:"cooldown"`
	Triggered      time.Time     `json:"last_triggered,omitzero"`
}

func (a *BaseAction) Key() string                 { return a.ActionKey }
func (a *BaseAction) Category() string            { return a.CategoryID }
func (a *BaseAction) Cooldown() time.Duration     { return a.CooldownPeriod }
func (a *BaseAction) SetCooldown(d time.Duration) { a.CooldownPeriod = d }

func (a *BaseAction) LastTriggered() (time.Time, bool) {
	return a.Triggered, !a.Triggered.IsZero()
}

func (a *BaseAction) MarkTriggered(at time.Time) {
	a.Triggered = at
}

// CooldownRemaining returns how long the action stays blocked at now, compared
// at millisecond resolution. Zero means the action may fire.
func CooldownRemaining(a ActionData, now time.Time) time.Duration {
	last, ok := a.LastTriggered()
	if !ok {
		return 0
	}
	elapsed := now.UnixMilli() - last.UnixMilli()
	cooldown := a.Cooldown().Milliseconds()
	if elapsed >= cooldown {
		return 0
	}
	return time.Duration(cooldown-elapsed) * time.Millisecond
}
