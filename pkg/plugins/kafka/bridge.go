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

package kafka

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Bridge reads requests from topicIn and writes notifications to topicOut.
type Bridge struct {
	name     string
	brokers  []string
	topicIn  string
	topicOut string
	groupID  string
	writer   *kafka.Writer
	logger   *slog.Logger

	mu     sync.Mutex
	reader *kafka.Reader
}

func New(name string, brokers []string, topicIn, topicOut, groupID string, logger *slog.Logger) *Bridge {
	return &Bridge{
		name:     name,
		brokers:  brokers,
		topicIn:  topicIn,
		topicOut: topicOut,
		groupID:  groupID,
		logger:   logger,
	}
}

// FromConfig builds a bridge from the flat config map of a bridges entry.
func FromConfig(name string, cfg map[string]string, logger *slog.Logger) *Bridge {
	return New(name, strings.Split(cfg["brokers"], ","), cfg["topic_in"], cfg["topic_out"], cfg["group_id"], logger)
}

func (b *Bridge) Name() string { return b.name }
func (b *Bridge) Type() string { return "kafka" }

func (b *Bridge) Connect(ctx context.Context) error {
	if b.topicOut != "" {
		b.writer = &kafka.Writer{
			Addr:     kafka.TCP(b.brokers...),
			Topic:    b.topicOut,
			Balancer: &kafka.LeastBytes{},
		}
	}
	b.logger.Info("kafka bridge connected",
		"name", b.name,
		"brokers", strings.Join(b.brokers, ","),
		"topic_in", b.topicIn,
		"topic_out", b.topicOut,
	)
	return nil
}

func (b *Bridge) Disconnect(ctx context.Context) error {
	b.mu.Lock()
	if b.reader != nil {
		b.reader.Close()
		b.reader = nil
	}
	b.mu.Unlock()
	if b.writer != nil {
		return b.writer.Close()
	}
	return nil
}

func (b *Bridge) Consume(ctx context.Context, deliver func(ctx context.Context, payload []byte) error) error {
	if b.topicIn == "" {
		<-ctx.Done()
		return nil
	}

	groupID := b.groupID
	if groupID == "" {
		groupID = "action-hub-" + b.name
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  b.brokers,
		Topic:    b.topicIn,
		GroupID:  groupID,
		MaxWait:  500 * time.Millisecond,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	b.mu.Lock()
	b.reader = reader
	b.mu.Unlock()
	defer reader.Close()

	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Error("kafka fetch error", "name", b.name, "error", err)
			return err
		}
		if err := deliver(ctx, msg.Value); err != nil {
			b.logger.Warn("kafka message not delivered", "name", b.name, "offset", msg.Offset, "error", err)
			continue
		}
		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			b.logger.Warn("kafka commit failed", "name", b.name, "error", err)
		}
	}
}

func (b *Bridge) Publish(ctx context.Context, payload []byte) error {
	if b.writer == nil {
		return nil
	}
	return b.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(uuid.New().String()),
		Value: payload,
	})
}
