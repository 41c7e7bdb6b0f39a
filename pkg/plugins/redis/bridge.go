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

// Package redis bridges requests over Redis pub/sub channels.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

type Config struct {
	Addr       string
	Password   string
	DB         int
	ChannelIn  string
	ChannelOut string
}

type Bridge struct {
	name   string
	cfg    Config
	client *redis.Client
	logger *slog.Logger
}

func New(name string, cfg Config, logger *slog.Logger) *Bridge {
	return &Bridge{name: name, cfg: cfg, logger: logger}
}

func FromConfig(name string, cfg map[string]string, logger *slog.Logger) *Bridge {
	db, _ := strconv.Atoi(cfg["db"])
	return New(name, Config{
		Addr:       cfg["addr"],
		Password:   cfg["password"],
		DB:         db,
		ChannelIn:  cfg["channel_in"],
		ChannelOut: cfg["channel_out"],
	}, logger)
}

func (b *Bridge) Name() string { return b.name }
func (b *Bridge) Type() string { return "redis" }

func (b *Bridge) Connect(ctx context.Context) error {
	b.client = redis.NewClient(&redis.Options{
		Addr:     b.cfg.Addr,
		Password: b.cfg.Password,
		DB:       b.cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := b.client.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}

	b.logger.Info("redis bridge connected", "name", b.name, "addr", b.cfg.Addr,
		"channel_in", b.cfg.ChannelIn, "channel_out", b.cfg.ChannelOut)
	return nil
}

func (b *Bridge) Disconnect(ctx context.Context) error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

func (b *Bridge) Consume(ctx context.Context, deliver func(ctx context.Context, payload []byte) error) error {
	if b.cfg.ChannelIn == "" {
		<-ctx.Done()
		return nil
	}

	sub := b.client.Subscribe(ctx, b.cfg.ChannelIn)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("redis subscribe %s: %w", b.cfg.ChannelIn, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := deliver(ctx, []byte(msg.Payload)); err != nil {
				b.logger.Warn("redis message not delivered", "name", b.name, "channel", msg.Channel, "error", err)
			}
		}
	}
}

func (b *Bridge) Publish(ctx context.Context, payload []byte) error {
	if b.cfg.ChannelOut == "" || b.client == nil {
		return nil
	}
	return b.client.Publish(ctx, b.cfg.ChannelOut, payload).Err()
}
