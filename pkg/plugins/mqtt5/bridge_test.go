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

package mqtt5

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFromConfig(t *testing.T) {
	b := FromConfig("mqtt5-test", map[string]string{"broker_url": "mqtt://localhost:1883", "topic_in": "hub/requests", "topic_out": "hub/notifications"}, testLogger())

	require.Equal(t, "mqtt5-test", b.Name())
	require.Equal(t, "mqtt5", b.Type())
	require.Equal(t, "mqtt://localhost:1883", b.brokerURL)
	require.Equal(t, "hub/requests", b.topicIn)
	require.Equal(t, "hub/notifications", b.topicOut)
}

func TestPublishWithoutOutboundIsNoop(t *testing.T) {
	b := FromConfig("mqtt5-test", map[string]string{}, testLogger())
	require.NoError(t, b.Publish(context.Background(), []byte(`{"message":"ignored"}`)))
	require.NoError(t, b.Disconnect(context.Background()))
}

func TestConsumeWithoutInboundWaitsForCancel(t *testing.T) {
	b := FromConfig("mqtt5-test", map[string]string{}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- b.Consume(ctx, func(context.Context, []byte) error {
			t.Error("nothing should be delivered without an inbound source")
			return nil
		})
	}()

	select {
	case err := <-done:
		t.Fatalf("Consume returned before cancel: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Consume did not return after cancel")
	}
}

func TestConnectRejectsInvalidURL(t *testing.T) {
	b := New("mqtt5-test", "://no-scheme", "", "", testLogger())
	require.Error(t, b.Connect(context.Background()))
}
