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

import "context"

// Service is a started connection to one external service.
type Service interface {
	ID() string
	Type() ConnectionType
	Start(ctx context.Context) error
	// Stop must be safe to call more than once.
	Stop(ctx context.Context) error
	Status(ctx context.Context) Status
}

type RequestExecuter interface {
	ExecuteRequest(req *InternalRequest) RequestResult
}

type EventHandler func(evt Event)

type EventBus interface {
	Publish(topic Topic, data any)
	Subscribe(topic Topic, handler EventHandler) (unsubscribe func())
}

// Bridge carries InternalRequest payloads in from a message broker and
// notifications back out to it.
type Bridge interface {
	Name() string
	Type() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	// Consume blocks until ctx is done, calling deliver once per inbound message.
	Consume(ctx context.Context, deliver func(ctx context.Context, payload []byte) error) error
	Publish(ctx context.Context, payload []byte) error
}
