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

package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type ProviderKey struct {
	CategoryID string   `json:"categoryId"`
	Actions    []string `json:"actions"`
}

// InternalRequest is the normalized request routed from the event bus to the
// handler whose connection id equals ProviderID.
type InternalRequest struct {
	RequestID      string            `json:"requestId"`
	ProviderID     string            `json:"providerId"`
	ProviderKey    ProviderKey       `json:"providerKey"`
	Context        map[string]string `json:"context,omitempty"`
	BypassCooldown bool              `json:"bypass_cooldown"`
	Timestamp      time.Time         `json:"timestamp"`
}

func NewInternalRequest(providerID, categoryID string, actions ...string) *InternalRequest {
	return &InternalRequest{
		RequestID:  uuid.New().String(),
		ProviderID: providerID,
		ProviderKey: ProviderKey{
			CategoryID: categoryID,
			Actions:    actions,
		},
		Context:   make(map[string]string),
		Timestamp: time.Now().UTC(),
	}
}

// Normalize fills in a request id and timestamp when the originator left them empty.
func (r *InternalRequest) Normalize() {
	if r.RequestID == "" {
		r.RequestID = uuid.New().String()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	if r.Context == nil {
		r.Context = make(map[string]string)
	}
}

func (r *InternalRequest) Validate() error {
	switch {
	case r.ProviderID == "":
		return fmt.Errorf("%w: providerId is required", ErrInvalidRequest)
	case r.ProviderKey.CategoryID == "":
		return fmt.Errorf("%w: providerKey.categoryId is required", ErrInvalidRequest)
	case len(r.ProviderKey.Actions) == 0 || r.ProviderKey.Actions[0] == "":
		return fmt.Errorf("%w: providerKey.actions must name at least one action", ErrInvalidRequest)
	}
	return nil
}

// ActionKey is the action a handler resolves: the first element of Actions.
func (r *InternalRequest) ActionKey() string {
	if len(r.ProviderKey.Actions) == 0 {
		return ""
	}
	return r.ProviderKey.Actions[0]
}

func (r *InternalRequest) ContextValue(key, fallback string) string {
	if v, ok := r.Context[key]; ok && v != "" {
		return v
	}
	return fallback
}
