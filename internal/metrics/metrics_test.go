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
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveRequest(t *testing.T) {
	m := New()
	m.ObserveRequest("tits", OutcomeAccepted)
	m.ObserveRequest("tits", OutcomeAccepted)
	m.ObserveRequest("tits", OutcomeCooldown)

	if got := testutil.ToFloat64(m.requests.WithLabelValues("tits", OutcomeAccepted)); got != 2 {
		t.Fatalf("expected 2 accepted, got %v", got)
	}
	if got := testutil.ToFloat64(m.requests.WithLabelValues("tits", OutcomeCooldown)); got != 1 {
		t.Fatalf("expected 1 cooldown, got %v", got)
	}
}

func TestObserveDelivery(t *testing.T) {
	m := New()
	m.ObserveDelivery("pog", nil)
	m.ObserveDelivery("pog", errors.New("connection refused"))

	if got := testutil.ToFloat64(m.deliveries.WithLabelValues("pog", "error")); got != 1 {
		t.Fatalf("expected 1 failed delivery, got %v", got)
	}
}

func TestSetActionCount(t *testing.T) {
	m := New()
	m.SetActionCount("tits", 5)
	m.SetActionCount("tits", 3)
	if got := testutil.ToFloat64(m.actions.WithLabelValues("tits")); got != 3 {
		t.Fatalf("expected 3, got %v", got)
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("tits", OutcomeAccepted)
	m.ObserveDelivery("tits", nil)
	m.SetActionCount("tits", 1)
	m.ObserveBridge("kafka", "in", nil)
}
