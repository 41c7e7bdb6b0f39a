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

package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

type Bridge struct {
	name     string
	url      string
	queueIn  string
	queueOut string
	conn     *amqp.Connection
	pubCh    *amqp.Channel
	logger   *slog.Logger
}

func New(name, url, queueIn, queueOut string, logger *slog.Logger) *Bridge {
	return &Bridge{
		name:     name,
		url:      url,
		queueIn:  queueIn,
		queueOut: queueOut,
		logger:   logger,
	}
}

func FromConfig(name string, cfg map[string]string, logger *slog.Logger) *Bridge {
	return New(name, cfg["url"], cfg["queue_in"], cfg["queue_out"], logger)
}

func (b *Bridge) Name() string { return b.name }
func (b *Bridge) Type() string { return "rabbitmq" }

func (b *Bridge) Connect(ctx context.Context) error {
	var err error
	b.conn, err = amqp.Dial(b.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}

	b.pubCh, err = b.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq publish channel: %w", err)
	}

	for _, q := range []string{b.queueIn, b.queueOut} {
		if q != "" {
			_, err := b.pubCh.QueueDeclare(q, true, false, false, false, nil)
			if err != nil {
				return fmt.Errorf("rabbitmq queue declare %s: %w", q, err)
			}
		}
	}

	b.logger.Info("rabbitmq bridge connected", "name", b.name, "url", b.url)
	return nil
}

func (b *Bridge) Disconnect(ctx context.Context) error {
	if b.pubCh != nil {
		b.pubCh.Close()
	}
	if b.conn != nil {
		return b.conn.Close()
	}
	return nil
}

func (b *Bridge) Consume(ctx context.Context, deliver func(ctx context.Context, payload []byte) error) error {
	if b.queueIn == "" {
		<-ctx.Done()
		return nil
	}

	consumerCh, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq consumer channel: %w", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, false); err != nil {
		return fmt.Errorf("rabbitmq qos: %w", err)
	}

	deliveries, err := consumerCh.Consume(
		b.queueIn,
		"action-hub-"+b.name,
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("rabbitmq consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := deliver(ctx, d.Body); err != nil {
				b.logger.Warn("rabbitmq message not delivered", "name", b.name, "error", err)
				d.Nack(false, false)
				continue
			}
			d.Ack(false)
		}
	}
}

func (b *Bridge) Publish(ctx context.Context, payload []byte) error {
	if b.queueOut == "" || b.pubCh == nil {
		return nil
	}
	return b.pubCh.PublishWithContext(ctx,
		"",
		b.queueOut,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        payload,
			MessageId:   uuid.New().String(),
			Timestamp:   time.Now().UTC(),
		},
	)
}
