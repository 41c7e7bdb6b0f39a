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

// Package tits drives a TITS instance over its public WebSocket API. Items
// are thrown and triggers activated; both catalogs are discovered from the
// remote service on every refresh.
package tits

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/handlers"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/providers"
)

const (
	minRetryDelay = time.Second
	maxRetryDelay = 30 * time.Second
)

type Handler struct {
	cfg        core.ConnectionConfig
	transport  Transport
	provider   *providers.ActionProvider[*Action]
	dispatcher *handlers.Dispatcher[*Action]
	deps       handlers.Deps
	logger     *slog.Logger
	onCatalog  func(*Handler)

	mu          sync.Mutex
	cancel      context.CancelFunc
	loopDone    chan struct{}
	unsubscribe func()
}

type Option func(*options)

type options struct {
	transport Transport
	refresher providers.Refresher[*Action]
	cooldowns map[string]time.Duration
	onCatalog func(*Handler)
}

func WithTransport(t Transport) Option {
	return func(o *options) { o.transport = t }
}

func WithRefresher(r providers.Refresher[*Action]) Option {
	return func(o *options) { o.refresher = r }
}

func WithCooldowns(c map[string]time.Duration) Option {
	return func(o *options) { o.cooldowns = c }
}

// WithOnCatalog registers a callback run after each successful catalog load
// triggered by a (re)connect.
func WithOnCatalog(fn func(*Handler)) Option {
	return func(o *options) { o.onCatalog = fn }
}

func New(cfg core.ConnectionConfig, deps handlers.Deps, opts ...Option) (*Handler, error) {
	info, ok := cfg.Info().(core.WebSocketInfo)
	if !ok {
		return nil, fmt.Errorf("%w: connection %s is not a websocket connection", core.ErrInvalidConfig, cfg.ID())
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "tits", "connection", cfg.ID())
	deps.Logger = logger

	h := &Handler{
		cfg:       cfg,
		deps:      deps,
		logger:    logger,
		onCatalog: o.onCatalog,
	}

	h.transport = o.transport
	if h.transport == nil {
		h.transport = NewClient(info.URL, logger, h.handleUnsolicited)
	}

	refresh := o.refresher
	if refresh == nil {
		refresh = h.refreshData
	}
	h.provider = providers.NewActionProvider(cfg.ID(), refresh,
		providers.WithCooldownOverrides[*Action](o.cooldowns))
	h.dispatcher = handlers.NewDispatcher(cfg.ID(), h.provider, deps)
	return h, nil
}

func (h *Handler) ID() string                                   { return h.cfg.ID() }
func (h *Handler) Type() core.ConnectionType                    { return core.ConnectionWebSocket }
func (h *Handler) Provider() *providers.ActionProvider[*Action] { return h.provider }
func (h *Handler) ItemsCategory() string                        { return h.cfg.ID() + ".items" }
func (h *Handler) TriggersCategory() string                     { return h.cfg.ID() + ".triggers" }

// refreshData asks the remote service for its current items and triggers.
func (h *Handler) refreshData(ctx context.Context) ([]providers.Category[*Action], error) {
	var items ItemListData
	if err := h.query(ctx, MsgItemListRequest, &items); err != nil {
		return nil, err
	}
	var triggers TriggerListData
	if err := h.query(ctx, MsgTriggerListRequest, &triggers); err != nil {
		return nil, err
	}

	itemCat := providers.Category[*Action]{ID: h.ItemsCategory()}
	for _, item := range items.Items {
		itemCat.Actions = append(itemCat.Actions, NewItemAction(itemCat.ID, item))
	}
	triggerCat := providers.Category[*Action]{ID: h.TriggersCategory()}
	for _, trigger := range triggers.Triggers {
		triggerCat.Actions = append(triggerCat.Actions, NewTriggerAction(triggerCat.ID, trigger))
	}
	return []providers.Category[*Action]{itemCat, triggerCat}, nil
}

func (h *Handler) query(ctx context.Context, messageType string, out any) error {
	resp, err := h.transport.Request(ctx, NewMessage("", messageType, nil))
	if err != nil {
		return fmt.Errorf("%s: %w", messageType, err)
	}
	if err := decodeData(resp, out); err != nil {
		return fmt.Errorf("%s: %w", messageType, err)
	}
	return nil
}

// ExecuteRequest admits req against the catalog and starts the send. The
// returned result reflects admission only.
func (h *Handler) ExecuteRequest(req *core.InternalRequest) core.RequestResult {
	if !h.dispatcher.Owns(req) {
		return core.Rejected("request for provider %s ignored by %s", providerOf(req), h.cfg.ID())
	}

	action, res := h.dispatcher.Admit(req)
	if !res.IsSuccess {
		return res
	}

	msg := action.Message(req)
	h.dispatcher.Deliver(req, msg.MessageType, action.DisplayName(), func(ctx context.Context) error {
		return h.transport.Send(ctx, msg)
	})
	return res
}

// handleUnsolicited reports API errors for dispatched actions, whose
// responses are not awaited.
func (h *Handler) handleUnsolicited(resp Response) {
	if err := resp.Err(); err != nil {
		h.logger.Error("tits rejected request", "request_id", resp.RequestID, "error", err)
		h.dispatcher.Notify(core.TopicError, resp.RequestID, "%v", err)
		return
	}
	h.logger.Debug("tits response", "request_id", resp.RequestID, "message_type", resp.MessageType)
}

// Start subscribes to EXECUTE_ACTION and keeps the socket connected in the
// background. A disabled connection is left offline.
func (h *Handler) Start(ctx context.Context) error {
	if !h.cfg.Enabled() {
		h.logger.Info("connection disabled, not starting")
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return nil
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h.cancel = cancel
	h.loopDone = make(chan struct{})
	h.unsubscribe = h.dispatcher.Listen(h)
	go h.connectLoop(loopCtx, h.loopDone)
	return nil
}

func (h *Handler) connectLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	delay := minRetryDelay
	for {
		if err := h.transport.Connect(ctx); err != nil {
			h.logger.Warn("tits connect failed", "error", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			delay = min(delay*2, maxRetryDelay)
			continue
		}
		delay = minRetryDelay
		h.loadCatalog(ctx)

		select {
		case <-ctx.Done():
			return
		case <-h.transport.Done():
			h.logger.Warn("tits connection lost")
		}
	}
}

// loadCatalog retries with backoff until the catalog loads, the socket drops
// or ctx ends. Only the first failure is published on ERROR.
func (h *Handler) loadCatalog(ctx context.Context) {
	delay := minRetryDelay
	for attempt := 1; ; attempt++ {
		err := h.provider.LoadActions(ctx)
		if err == nil {
			h.deps.Metrics.SetActionCount(h.cfg.ID(), h.provider.ActionCount())
			h.logger.Info("tits catalog loaded", "actions", h.provider.ActionCount(), "attempt", attempt)
			if h.onCatalog != nil {
				h.onCatalog(h)
			}
			return
		}

		h.logger.Warn("tits catalog load failed", "error", err, "attempt", attempt, "retry_in", delay)
		if attempt == 1 {
			h.dispatcher.Notify(core.TopicError, "", "failed to load TITS catalog: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-h.transport.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, maxRetryDelay)
	}
}

// Stop is idempotent.
func (h *Handler) Stop(ctx context.Context) error {
	h.mu.Lock()
	cancel, done, unsubscribe := h.cancel, h.loopDone, h.unsubscribe
	h.cancel, h.loopDone, h.unsubscribe = nil, nil, nil
	h.mu.Unlock()

	if cancel == nil {
		return nil
	}
	unsubscribe()
	cancel()
	err := h.transport.Close()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	h.dispatcher.Wait()
	return err
}

func (h *Handler) Status(ctx context.Context) core.Status {
	switch {
	case !h.cfg.Enabled():
		return core.StatusOffline
	case h.transport.Connected():
		return core.StatusOnline
	default:
		return core.StatusUnavailable
	}
}

func providerOf(req *core.InternalRequest) string {
	if req == nil {
		return "<nil>"
	}
	return req.ProviderID
}
