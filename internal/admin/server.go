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

// Package admin serves the hub's HTTP control surface: health, connection
// and provider introspection, request submission, and a live notification
// stream.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/relay"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/providers"
)

const (
	maxBody         = 1 << 20
	streamBuffer    = 64
	shutdownTimeout = 5 * time.Second
)

// Backend is the view of the hub the admin API needs.
type Backend interface {
	Configs() []core.ConnectionConfig
	Running(id string) bool
	Statuses(ctx context.Context) map[string]core.Status
	Catalogs() []providers.Provider
	Refresh(ctx context.Context, id string) error
	RefreshAll(ctx context.Context) error
}

type Server struct {
	addr    string
	backend Backend
	bus     core.EventBus
	metrics *metrics.Metrics
	logger  *slog.Logger
	server  *http.Server
}

func NewServer(addr string, backend Backend, bus core.EventBus, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{addr: addr, backend: backend, bus: bus, metrics: m, logger: logger}
	s.server = &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.health)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/connections", s.listConnections)
		r.Get("/providers", s.listProviders)
		r.Post("/providers/refresh", s.refreshAll)
		r.Post("/providers/{id}/refresh", s.refreshProvider)
		r.Post("/requests", s.submitRequest)
		r.Get("/events", s.streamEvents)
	})
	return r
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("admin server starting", "addr", s.addr)
	if err := s.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type healthResponse struct {
	Status      string                 `json:"status"`
	Connections map[string]core.Status `json:"connections"`
}

// health is "ok" when every enabled connection is ONLINE.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	statuses := s.backend.Statuses(r.Context())
	resp := healthResponse{Status: "ok", Connections: statuses}
	for _, cfg := range s.backend.Configs() {
		if cfg.Enabled() && statuses[cfg.ID()] != core.StatusOnline {
			resp.Status = "degraded"
			break
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listConnections(w http.ResponseWriter, r *http.Request) {
	out := make([]map[string]any, 0)
	for _, cfg := range s.backend.Configs() {
		view := cfg.View()
		view["running"] = s.backend.Running(cfg.ID())
		out = append(out, view)
	}
	writeJSON(w, http.StatusOK, out)
}

type providerView struct {
	ID          string   `json:"id"`
	Categories  []string `json:"categories"`
	ActionCount int      `json:"action_count"`
}

func (s *Server) listProviders(w http.ResponseWriter, r *http.Request) {
	out := make([]providerView, 0)
	for _, p := range s.backend.Catalogs() {
		out = append(out, providerView{ID: p.ID(), Categories: p.Categories(), ActionCount: p.ActionCount()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) refreshProvider(w http.ResponseWriter, r *http.Request) {
	writeRefreshResult(w, s.backend.Refresh(r.Context(), chi.URLParam(r, "id")))
}

func (s *Server) refreshAll(w http.ResponseWriter, r *http.Request) {
	writeRefreshResult(w, s.backend.RefreshAll(r.Context()))
}

func writeRefreshResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, core.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, core.ErrCategoryConflict):
		writeError(w, http.StatusConflict, err)
	default:
		writeError(w, http.StatusBadGateway, err)
	}
}

type acceptedResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"requestId"`
}

// submitRequest publishes the request as EXECUTE_ACTION. The outcome arrives
// later on the event stream.
func (s *Server) submitRequest(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	req, err := relay.DecodeRequest(body)
	if err != nil {
		s.logger.Warn("rejected request submission", "error", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	s.bus.Publish(core.TopicExecuteAction, req)
	writeJSON(w, http.StatusAccepted, acceptedResponse{Status: "accepted", RequestID: req.RequestID})
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	clientID := uuid.New().String()
	events := make(chan core.Event, streamBuffer)
	forward := func(evt core.Event) {
		select {
		case events <- evt:
		default:
			s.logger.Warn("sse client too slow, dropping event", "client_id", clientID, "event_id", evt.ID)
		}
	}
	unsubInfo := s.bus.Subscribe(core.TopicInfo, forward)
	unsubErr := s.bus.Subscribe(core.TopicError, forward)
	defer func() {
		unsubInfo()
		unsubErr()
		s.logger.Info("sse client disconnected", "client_id", clientID)
	}()

	s.logger.Info("sse client connected", "client_id", clientID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-events:
			data, err := json.Marshal(evt.Data)
			if err != nil {
				s.logger.Error("marshal sse event failed", "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", evt.ID, evt.Topic, data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
