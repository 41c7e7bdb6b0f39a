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

package tits

import (
	"strconv"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/providers"
)

type ActionKind string

const (
	KindItem    ActionKind = "item"
	KindTrigger ActionKind = "trigger"
)

const (
	defaultAmountOfThrows = 1
	defaultDelayTime      = 0.05
)

// Action is a throwable item or an activatable trigger.
type Action struct {
	providers.BaseAction
	Name           string     `json:"name"`
	Kind           ActionKind `json:"kind"`
	AmountOfThrows int        `json:"amount_of_throws,omitempty"`
	DelayTime      float64    `json:"delay_time,omitempty"`
}

func NewItemAction(category string, item ItemInfo) *Action {
	return &Action{
		BaseAction:     providers.BaseAction{ActionKey: item.ID, CategoryID: category},
		Name:           item.Name,
		Kind:           KindItem,
		AmountOfThrows: defaultAmountOfThrows,
		DelayTime:      defaultDelayTime,
	}
}

func NewTriggerAction(category string, trigger TriggerInfo) *Action {
	return &Action{
		BaseAction: providers.BaseAction{ActionKey: trigger.ID, CategoryID: category},
		Name:       trigger.Name,
		Kind:       KindTrigger,
	}
}

// Message builds the wire message that fires the action for req. The request
// context may override "amount" and "delay" for item throws.
func (a *Action) Message(req *core.InternalRequest) Message {
	if a.Kind == KindTrigger {
		return NewMessage(req.RequestID, MsgTriggerActivateRequest, TriggerActivateData{TriggerID: a.Key()})
	}

	amount := a.AmountOfThrows
	if v, err := strconv.Atoi(req.ContextValue("amount", "")); err == nil && v > 0 {
		amount = v
	}
	delay := a.DelayTime
	if v, err := strconv.ParseFloat(req.ContextValue("delay", ""), 64); err == nil && v >= 0 {
		delay = v
	}

	return NewMessage(req.RequestID, MsgThrowItemsRequest, ThrowItemsData{
		Items:            []string{a.Key()},
		DelayTime:        delay,
		AmountOfThrows:   amount,
		ErrorOnMissingID: false,
	})
}

func (a *Action) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.Key()
}
