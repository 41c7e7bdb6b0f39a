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

// Package handlers holds the dispatch path shared by every protocol handler.
//
// A request is handled in two phases. Admit resolves the action and applies
// the cooldown gate synchronously; Deliver hands the wire send to a goroutine
// and reports its completion on the event bus. A successful admission only
// means the send was started.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/logging"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/providers"
)

// Deps are the collaborators every handler is built with.
type Deps struct {
	Bus         core.EventBus
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	DispatchLog *logging.DispatchLogger
	Now         func() time.Time
}

type Dispatcher[T providers.ActionData] struct {
	connectionID string
	provider     *providers.ActionProvider[T]
	bus          core.EventBus
	logger       *slog.Logger
	metrics      *metrics.Metrics
	dispatchLog  *logging.DispatchLogger
	now          func() time.Time
	inflight     sync.WaitGroup
}

func NewDispatcher[T providers.ActionData](
	connectionID string,
	provider *providers.ActionProvider[T],
	deps Deps,
) *Dispatcher[T] {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Dispatcher[T]{
		connectionID: connectionID,
		provider:     provider,
		bus:          deps.Bus,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		dispatchLog:  deps.DispatchLog,
		now:          now,
	}
}

func (d *Dispatcher[T]) Provider() *providers.ActionProvider[T] { return d.provider }

// Owns reports whether req is addressed to this dispatcher's connection.
func (d *Dispatcher[T]) Owns(req *core.InternalRequest) bool {
	return req != nil && req.ProviderID == d.connectionID
}

// Admit resolves the request's action and applies the cooldown gate. Rejected
// requests leave the action untouched.
func (d *Dispatcher[T]) Admit(req *core.InternalRequest) (T, core.RequestResult) {
	var zero T
	if err := req.Validate(); err != nil {
		res := core.Rejected("%v", err)
		d.reject(req, res, metrics.OutcomeInvalid)
		return zero, res
	}

	action, res, err := d.provider.Admit(req, d.now())
	if err != nil {
		outcome := metrics.OutcomeUnresolved
		if errors.Is(err, core.ErrOnCooldown) {
			outcome = metrics.OutcomeCooldown
		}
		d.reject(req, res, outcome)
		return zero, res
	}

	d.metrics.ObserveRequest(d.connectionID, metrics.OutcomeAccepted)
	return action, res
}

func (d *Dispatcher[T]) reject(req *core.InternalRequest, res core.RequestResult, outcome string) {
	d.metrics.ObserveRequest(d.connectionID, outcome)
	d.dispatchLog.Rejected(req, res)
}

// Deliver runs send on its own goroutine. Completion is published as INFO and
// failure as ERROR; neither is reported to the caller of ExecuteRequest.
func (d *Dispatcher[T]) Deliver(
	req *core.InternalRequest,
	messageType string,
	describe string,
	send func(ctx context.Context) error,
) {
	d.dispatchLog.Admitted(req, messageType)
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		start := time.Now()
		err := d.safeSend(send)
		d.metrics.ObserveDelivery(d.connectionID, err)
		d.dispatchLog.Delivered(req, time.Since(start), err)

		if err != nil {
			d.publish(core.TopicError, core.Notify(d.connectionID, req.RequestID,
				"error occurred trying to execute %s: %v", describe, err))
			return
		}
		d.publish(core.TopicInfo, core.Notify(d.connectionID, req.RequestID, "%s executed", describe))
	}()
}

func (d *Dispatcher[T]) safeSend(send func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("transport send panic recovered", "connection", d.connectionID, "error", r)
			err = core.ErrNotConnected
		}
	}()
	return send(context.Background())
}

// Listen subscribes executer to EXECUTE_ACTION. Requests addressed to other
// connections are ignored.
func (d *Dispatcher[T]) Listen(executer core.RequestExecuter) (unsubscribe func()) {
	return d.bus.Subscribe(core.TopicExecuteAction, func(evt core.Event) {
		req, ok := RequestFrom(evt)
		if !ok || !d.Owns(req) {
			return
		}
		res := executer.ExecuteRequest(req)
		if !res.IsSuccess {
			d.publish(core.TopicError, core.Notify(d.connectionID, req.RequestID, "%s", res.Message))
		}
	})
}

// Wait blocks until every delivery started so far has completed.
func (d *Dispatcher[T]) Wait() {
	d.inflight.Wait()
}

// Notify publishes a notification for this connection.
func (d *Dispatcher[T]) Notify(topic core.Topic, requestID, format string, args ...any) {
	d.publish(topic, core.Notify(d.connectionID, requestID, format, args...))
}

func (d *Dispatcher[T]) publish(topic core.Topic, n core.Notification) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(topic, n)
}

// RequestFrom extracts the request carried by an EXECUTE_ACTION event.
func RequestFrom(evt core.Event) (*core.InternalRequest, bool) {
	switch v := evt.Data.(type) {
	case *core.InternalRequest:
		return v, v != nil
	case core.InternalRequest:
		return &v, true
	default:
		return nil, false
	}
}
