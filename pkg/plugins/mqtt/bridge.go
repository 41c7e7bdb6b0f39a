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

// Package mqtt bridges requests over MQTT 3.1.1 brokers.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const (
	qos             = 1
	inboundBuffer   = 64
	disconnectQuiet = 250
	tokenTimeout    = 10 * time.Second
)

type Bridge struct {
	name     string
	broker   string
	topicIn  string
	topicOut string
	client   pahomqtt.Client
	logger   *slog.Logger
}

func New(name, broker, topicIn, topicOut string, logger *slog.Logger) *Bridge {
	return &Bridge{
		name:     name,
		broker:   broker,
		topicIn:  topicIn,
		topicOut: topicOut,
		logger:   logger,
	}
}

func FromConfig(name string, cfg map[string]string, logger *slog.Logger) *Bridge {
	return New(name, cfg["broker"], cfg["topic_in"], cfg["topic_out"], logger)
}

func (b *Bridge) Name() string { return b.name }
func (b *Bridge) Type() string { return "mqtt" }

func (b *Bridge) Connect(ctx context.Context) error {
	opts := pahomqtt.NewClientOptions().
		AddBroker(b.broker).
		SetClientID("action-hub-" + b.name + "-" + uuid.New().String()[:8]).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(pahomqtt.Client) {
			b.logger.Info("mqtt connection up", "name", b.name)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			b.logger.Warn("mqtt connection lost", "name", b.name, "error", err)
		})

	b.client = pahomqtt.NewClient(opts)
	if err := wait(ctx, b.client.Connect()); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", b.broker, err)
	}

	b.logger.Info("mqtt bridge connected", "name", b.name, "broker", b.broker)
	return nil
}

func (b *Bridge) Disconnect(ctx context.Context) error {
	if b.client != nil && b.client.IsConnected() {
		b.client.Disconnect(disconnectQuiet)
	}
	return nil
}

func (b *Bridge) Consume(ctx context.Context, deliver func(ctx context.Context, payload []byte) error) error {
	if b.topicIn == "" {
		<-ctx.Done()
		return nil
	}

	inbound := make(chan pahomqtt.Message, inboundBuffer)
	token := b.client.Subscribe(b.topicIn, qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		select {
		case inbound <- msg:
		default:
			b.logger.Warn("mqtt inbound buffer full, dropping message", "name", b.name, "topic", msg.Topic())
		}
	})
	if err := wait(ctx, token); err != nil {
		return fmt.Errorf("mqtt subscribe %s: %w", b.topicIn, err)
	}
	defer b.client.Unsubscribe(b.topicIn)

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-inbound:
			if err := deliver(ctx, msg.Payload()); err != nil {
				b.logger.Warn("mqtt message not delivered", "name", b.name, "topic", msg.Topic(), "error", err)
			}
		}
	}
}

func (b *Bridge) Publish(ctx context.Context, payload []byte) error {
	if b.topicOut == "" || b.client == nil {
		return nil
	}
	return wait(ctx, b.client.Publish(b.topicOut, qos, false, payload))
}

func wait(ctx context.Context, token pahomqtt.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(tokenTimeout):
		return fmt.Errorf("timed out after %s", tokenTimeout)
	}
}
