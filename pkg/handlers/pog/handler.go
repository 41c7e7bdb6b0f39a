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

// Package pog relays text-to-speech requests to a POG instance over HTTP.
package pog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/handlers"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/providers"
)

const (
	ActionTTS = "tts"

	DefaultVoice   = "brian"
	DefaultService = "monster"
	DefaultLimit   = "350"

	requestTimeout = 10 * time.Second
	maxBodySize    = 64 << 10
)

var commandPrefix = regexp.MustCompile(`^!\w+\s`)

// Action is the single TTS action a POG connection exposes.
type Action struct {
	providers.BaseAction
}

type Handler struct {
	cfg        core.ConnectionConfig
	baseURL    string
	client     *http.Client
	provider   *providers.ActionProvider[*Action]
	dispatcher *handlers.Dispatcher[*Action]
	logger     *slog.Logger

	mu          sync.Mutex
	unsubscribe func()
}

type Option func(*Handler)

func WithHTTPClient(c *http.Client) Option {
	return func(h *Handler) { h.client = c }
}

func New(cfg core.ConnectionConfig, deps handlers.Deps, cooldowns map[string]time.Duration, opts ...Option) (*Handler, error) {
	info, ok := cfg.Info().(core.WebHookInfo)
	if !ok {
		return nil, fmt.Errorf("%w: connection %s is not an http connection", core.ErrInvalidConfig, cfg.ID())
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pog", "connection", cfg.ID())
	deps.Logger = logger

	h := &Handler{
		cfg:     cfg,
		baseURL: "http://" + info.Addr(),
		client:  &http.Client{Timeout: requestTimeout},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.provider = providers.NewActionProvider(cfg.ID(), h.refreshData,
		providers.WithCooldownOverrides[*Action](cooldowns))
	h.dispatcher = handlers.NewDispatcher(cfg.ID(), h.provider, deps)
	return h, nil
}

func (h *Handler) ID() string                                   { return h.cfg.ID() }
func (h *Handler) Type() core.ConnectionType                    { return core.ConnectionHTTP }
func (h *Handler) Provider() *providers.ActionProvider[*Action] { return h.provider }
func (h *Handler) Category() string                             { return h.cfg.ID() + ".tts" }

// refreshData serves the static catalog; POG has nothing to discover.
func (h *Handler) refreshData(ctx context.Context) ([]providers.Category[*Action], error) {
	return []providers.Category[*Action]{{
		ID: h.Category(),
		Actions: []*Action{{
			BaseAction: providers.BaseAction{ActionKey: ActionTTS, CategoryID: h.Category()},
		}},
	}}, nil
}

// TTSQuery builds the relay query for a request context. A leading chat
// command such as "!tts " is stripped from the message.
func TTSQuery(reqCtx map[string]string) url.Values {
	get := func(key, fallback string) string {
		if v := reqCtx[key]; v != "" {
			return v
		}
		return fallback
	}

	q := url.Values{}
	q.Set("text", commandPrefix.ReplaceAllString(reqCtx["message"], ""))
	q.Set("user", reqCtx["username"])
	q.Set("tts", get("service", DefaultService))
	q.Set("voice", get("voice", DefaultVoice))
	q.Set("limit", get("limit", DefaultLimit))
	return q
}

func (h *Handler) ExecuteRequest(req *core.InternalRequest) core.RequestResult {
	if !h.dispatcher.Owns(req) {
		return core.Rejected("request ignored by %s", h.cfg.ID())
	}

	if _, res := h.dispatcher.Admit(req); !res.IsSuccess {
		return res
	}

	query := TTSQuery(req.Context)
	describe := fmt.Sprintf("TTS for '%s' with message '%s'", query.Get("user"), query.Get("text"))
	h.dispatcher.Deliver(req, "pog.tts", describe, func(ctx context.Context) error {
		_, err := h.get(ctx, "/pog?"+query.Encode())
		return err
	})
	return core.Accepted("TTS request for %q dispatched", query.Get("user"))
}

func (h *Handler) get(ctx context.Context, path string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return "", err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("pog returned %s", resp.Status)
	}
	return string(body), nil
}

// Start loads the static catalog and subscribes to EXECUTE_ACTION.
func (h *Handler) Start(ctx context.Context) error {
	if !h.cfg.Enabled() {
		h.logger.Info("connection disabled, not starting")
		return nil
	}
	if err := h.provider.LoadActions(ctx); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unsubscribe == nil {
		h.unsubscribe = h.dispatcher.Listen(h)
	}
	return nil
}

// Stop is idempotent.
func (h *Handler) Stop(ctx context.Context) error {
	h.mu.Lock()
	unsubscribe := h.unsubscribe
	h.unsubscribe = nil
	h.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	h.dispatcher.Wait()
	return nil
}

// Status asks the relay's /status endpoint; "1" means ready.
func (h *Handler) Status(ctx context.Context) core.Status {
	if !h.cfg.Enabled() {
		return core.StatusOffline
	}
	body, err := h.get(ctx, "/status")
	if err != nil {
		h.logger.Debug("pog status check failed", "error", err)
		return core.StatusOffline
	}
	if strings.TrimSpace(body) == "1" {
		return core.StatusOnline
	}
	return core.StatusUnavailable
}
