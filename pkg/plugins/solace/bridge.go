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

package solace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"solace.dev/go/messaging"
	"solace.dev/go/messaging/pkg/solace"
	"solace.dev/go/messaging/pkg/solace/config"
	"solace.dev/go/messaging/pkg/solace/message"
	"solace.dev/go/messaging/pkg/solace/resource"
)

const terminateGrace = 5 * time.Second

type Bridge struct {
	name     string
	host     string
	vpn      string
	username string
	password string
	topicIn  string
	topicOut string
	service  solace.MessagingService
	logger   *slog.Logger

	mu        sync.Mutex
	publisher solace.DirectMessagePublisher
}

func New(name, host, vpn, username, password, topicIn, topicOut string, logger *slog.Logger) *Bridge {
	return &Bridge{
		name:     name,
		host:     host,
		vpn:      vpn,
		username: username,
		password: password,
		topicIn:  topicIn,
		topicOut: topicOut,
		logger:   logger,
	}
}

func FromConfig(name string, cfg map[string]string, logger *slog.Logger) *Bridge {
	return New(name, cfg["host"], cfg["vpn"], cfg["username"], cfg["password"], cfg["topic_in"], cfg["topic_out"], logger)
}

func (b *Bridge) Name() string { return b.name }
func (b *Bridge) Type() string { return "solace" }

func (b *Bridge) Connect(ctx context.Context) error {
	var err error
	b.service, err = messaging.NewMessagingServiceBuilder().
		FromConfigurationProvider(config.ServicePropertyMap{
			config.TransportLayerPropertyHost:                b.host,
			config.ServicePropertyVPNName:                    b.vpn,
			config.AuthenticationPropertySchemeBasicUserName: b.username,
			config.AuthenticationPropertySchemeBasicPassword: b.password,
		}).Build()
	if err != nil {
		return fmt.Errorf("solace build: %w", err)
	}
	if err = b.service.Connect(); err != nil {
		return fmt.Errorf("solace connect: %w", err)
	}
	b.logger.Info("solace bridge connected", "name", b.name, "host", b.host)
	return nil
}

func (b *Bridge) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	if b.publisher != nil {
		b.publisher.Terminate(terminateGrace)
		b.publisher = nil
	}
	b.mu.Unlock()
	if b.service != nil {
		return b.service.Disconnect()
	}
	return nil
}

func (b *Bridge) Consume(ctx context.Context, deliver func(ctx context.Context, payload []byte) error) error {
	if b.topicIn == "" {
		<-ctx.Done()
		return nil
	}

	receiver, err := b.service.CreateDirectMessageReceiverBuilder().
		WithSubscriptions(resource.TopicSubscriptionOf(b.topicIn)).
		Build()
	if err != nil {
		return fmt.Errorf("solace receiver build: %w", err)
	}
	if err = receiver.Start(); err != nil {
		return fmt.Errorf("solace receiver start: %w", err)
	}
	defer receiver.Terminate(terminateGrace)

	err = receiver.ReceiveAsync(func(inMsg message.InboundMessage) {
		payload, ok := inMsg.GetPayloadAsBytes()
		if !ok {
			b.logger.Warn("solace message without binary payload", "name", b.name)
			return
		}
		if err := deliver(ctx, payload); err != nil {
			b.logger.Warn("solace message not delivered", "name", b.name, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("solace receive: %w", err)
	}

	<-ctx.Done()
	return nil
}

func (b *Bridge) Publish(ctx context.Context, payload []byte) error {
	if b.topicOut == "" || b.service == nil {
		return nil
	}
	publisher, err := b.startedPublisher()
	if err != nil {
		return err
	}

	msg, err := b.service.MessageBuilder().BuildWithByteArrayPayload(payload)
	if err != nil {
		return err
	}
	return publisher.Publish(msg, resource.TopicOf(b.topicOut))
}

func (b *Bridge) startedPublisher() (solace.DirectMessagePublisher, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.publisher != nil {
		return b.publisher, nil
	}
	publisher, err := b.service.CreateDirectMessagePublisherBuilder().Build()
	if err != nil {
		return nil, fmt.Errorf("solace publisher build: %w", err)
	}
	if err := publisher.Start(); err != nil {
		return nil, fmt.Errorf("solace publisher start: %w", err)
	}
	b.publisher = publisher
	return publisher, nil
}
