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

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeAccepted   = "accepted"
	OutcomeCooldown   = "cooldown"
	OutcomeUnresolved = "unresolved"
	OutcomeInvalid    = "invalid"
)

// Metrics holds the hub's collectors on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	deliveries *prometheus.CounterVec
	actions    *prometheus.GaugeVec
	bridged    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actionhub_requests_total",
				Help: "Requests handled by a connection, by admission outcome",
			},
			[]string{"provider", "outcome"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actionhub_deliveries_total",
				Help: "Transport sends completed after admission, by result",
			},
			[]string{"provider", "result"},
		),
		actions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "actionhub_provider_actions",
				Help: "Actions currently in each provider catalog",
			},
			[]string{"provider"},
		),
		bridged: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "actionhub_bridge_messages_total",
				Help: "Messages moved through broker bridges",
			},
			[]string{"bridge", "direction", "result"},
		),
	}
	m.registry.MustRegister(
		m.requests,
		m.deliveries,
		m.actions,
		m.bridged,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRequest(provider, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) ObserveDelivery(provider string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.deliveries.WithLabelValues(provider, result).Inc()
}

func (m *Metrics) SetActionCount(provider string, n int) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(provider).Set(float64(n))
}

func (m *Metrics) ObserveBridge(bridge, direction string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.bridged.WithLabelValues(bridge, direction, result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
