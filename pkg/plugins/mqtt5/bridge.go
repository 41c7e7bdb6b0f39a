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
	"fmt"
	"log/slog"
	"net/url"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/google/uuid"
)

const inboundBuffer = 64

type Bridge struct {
	name      string
	brokerURL string
	topicIn   string
	topicOut  string
	cm        *autopaho.ConnectionManager
	logger    *slog.Logger
	router    paho.Router
}

func New(name, brokerURL, topicIn, topicOut string, logger *slog.Logger) *Bridge {
	return &Bridge{
		name:      name,
		brokerURL: brokerURL,
		topicIn:   topicIn,
		topicOut:  topicOut,
		logger:    logger,
		router:    paho.NewStandardRouter(),
	}
}

func FromConfig(name string, cfg map[string]string, logger *slog.Logger) *Bridge {
	return New(name, cfg["broker_url"], cfg["topic_in"], cfg["topic_out"], logger)
}

func (b *Bridge) Name() string { return b.name }
func (b *Bridge) Type() string { return "mqtt5" }

func (b *Bridge) Connect(ctx context.Context) error {
	serverURL, err := url.Parse(b.brokerURL)
	if err != nil {
		return fmt.Errorf("mqtt5 invalid URL: %w", err)
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{serverURL},
		KeepAlive:                     30,
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			b.logger.Info("mqtt5 connection up", "name", b.name)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: "action-hub-" + b.name + "-" + uuid.New().String()[:8],
			Router:   b.router,
		},
	}

	b.cm, err = autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return fmt.Errorf("mqtt5 connection: %w", err)
	}

	if err := b.cm.AwaitConnection(ctx); err != nil {
		return fmt.Errorf("mqtt5 await connection: %w", err)
	}

	b.logger.Info("mqtt5 bridge connected", "name", b.name, "broker", b.brokerURL)
	return nil
}

func (b *Bridge) Disconnect(ctx context.Context) error {
	if b.cm != nil {
		return b.cm.Disconnect(ctx)
	}
	return nil
}

func (b *Bridge) Consume(ctx context.Context, deliver func(ctx context.Context, payload []byte) error) error {
	if b.topicIn == "" {
		<-ctx.Done()
		return nil
	}

	inbound := make(chan *paho.Publish, inboundBuffer)
	b.router.RegisterHandler(b.topicIn, func(p *paho.Publish) {
		select {
		case inbound <- p:
		default:
			b.logger.Warn("mqtt5 inbound buffer full, dropping message", "name", b.name, "topic", p.Topic)
		}
	})
	defer b.router.UnregisterHandler(b.topicIn)

	_, err := b.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: b.topicIn, QoS: 1},
		},
	})
	if err != nil {
		return fmt.Errorf("mqtt5 subscribe: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case pub := <-inbound:
			if err := deliver(ctx, pub.Payload); err != nil {
				b.logger.Warn("mqtt5 message not delivered", "name", b.name, "topic", pub.Topic, "error", err)
			}
		}
	}
}

func (b *Bridge) Publish(ctx context.Context, payload []byte) error {
	if b.topicOut == "" || b.cm == nil {
		return nil
	}
	_, err := b.cm.Publish(ctx, &paho.Publish{
		Topic:   b.topicOut,
		QoS:     1,
		Payload: payload,
	})
	return err
}
