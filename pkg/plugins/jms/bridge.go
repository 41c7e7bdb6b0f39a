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

// Package jms bridges requests over AMQP 1.0, the wire protocol JMS brokers
// such as ActiveMQ Artemis expose.
package jms

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Azure/go-amqp"
	"github.com/google/uuid"
)

type Bridge struct {
	name     string
	url      string
	queueIn  string
	queueOut string
	conn     *amqp.Conn
	sendSess *amqp.Session
	sender   *amqp.Sender
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
func (b *Bridge) Type() string { return "jms" }

func (b *Bridge) Connect(ctx context.Context) error {
	var err error
	b.conn, err = amqp.Dial(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("jms dial: %w", err)
	}

	if b.queueOut != "" {
		b.sendSess, err = b.conn.NewSession(ctx, nil)
		if err != nil {
			return fmt.Errorf("jms send session: %w", err)
		}
		b.sender, err = b.sendSess.NewSender(ctx, b.queueOut, nil)
		if err != nil {
			return fmt.Errorf("jms sender: %w", err)
		}
	}

	b.logger.Info("jms bridge connected", "name", b.name, "url", b.url)
	return nil
}

func (b *Bridge) Disconnect(ctx context.Context) error {
	if b.sender != nil {
		b.sender.Close(ctx)
	}
	if b.sendSess != nil {
		b.sendSess.Close(ctx)
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

	recvSess, err := b.conn.NewSession(ctx, nil)
	if err != nil {
		return fmt.Errorf("jms consumer session: %w", err)
	}
	defer recvSess.Close(context.Background())

	receiver, err := recvSess.NewReceiver(ctx, b.queueIn, &amqp.ReceiverOptions{
		Credit: 1,
	})
	if err != nil {
		return fmt.Errorf("jms receiver: %w", err)
	}
	defer receiver.Close(context.Background())

	for {
		msg, err := receiver.Receive(ctx, nil)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("jms receive: %w", err)
		}

		if err := deliver(ctx, msg.GetData()); err != nil {
			b.logger.Warn("jms message not delivered", "name", b.name, "error", err)
			receiver.RejectMessage(ctx, msg, nil)
			continue
		}
		receiver.AcceptMessage(ctx, msg)
	}
}

func (b *Bridge) Publish(ctx context.Context, payload []byte) error {
	if b.sender == nil {
		return nil
	}
	return b.sender.Send(ctx, &amqp.Message{
		Data: [][]byte{payload},
		Properties: &amqp.MessageProperties{
			MessageID: uuid.New().String(),
		},
	}, nil)
}
