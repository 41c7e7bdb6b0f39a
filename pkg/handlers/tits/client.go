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

package tits

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

// Transport is the duplex channel to a TITS instance.
type Transport interface {
	Connect(ctx context.Context) error
	// Send writes msg without waiting for a response.
	Send(ctx context.Context, msg Message) error
	// Request writes msg and waits for the response carrying the same requestID.
	Request(ctx context.Context, msg Message) (Response, error)
	Connected() bool
	// Done is closed when the current connection drops.
	Done() <-chan struct{}
	Close() error
}

const (
	writeWait      = 10 * time.Second
	requestTimeout = 15 * time.Second
)

// Client is a gorilla/websocket Transport. Responses that match a pending
// Request are routed to it; everything else goes to the unsolicited handler.
type Client struct {
	url         string
	dialer      *websocket.Dialer
	logger      *slog.Logger
	unsolicited func(Response)

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	done    chan struct{}
	pending sync.Map
}

func NewClient(url string, logger *slog.Logger, unsolicited func(Response)) *Client {
	done := make(chan struct{})
	close(done)
	return &Client{
		url:         url,
		dialer:      &websocket.Dialer{HandshakeTimeout: writeWait},
		logger:      logger,
		unsolicited: unsolicited,
		done:        done,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.url, err)
	}
	c.conn = conn
	c.done = make(chan struct{})
	go c.readLoop(conn, c.done)

	c.logger.Info("tits connected", "url", c.url)
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()
		close(done)
		c.failPending()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("tits read failed", "url", c.url, "error", err)
			}
			return
		}

		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Warn("tits message decode failed", "error", err)
			continue
		}
		if ch, ok := c.pending.LoadAndDelete(resp.RequestID); ok {
			ch.(chan Response) <- resp
			continue
		}
		if c.unsolicited != nil {
			c.unsolicited(resp)
		}
	}
}

func (c *Client) failPending() {
	c.pending.Range(func(key, val any) bool {
		c.pending.Delete(key)
		close(val.(chan Response))
		return true
	})
}

func (c *Client) Send(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.MessageType, err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return core.ErrNotConnected
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.MessageType, err)
	}
	return nil
}

func (c *Client) Request(ctx context.Context, msg Message) (Response, error) {
	if msg.RequestID == "" {
		msg.RequestID = uuid.New().String()
	}
	ch := make(chan Response, 1)
	c.pending.Store(msg.RequestID, ch)
	defer c.pending.Delete(msg.RequestID)

	if err := c.Send(ctx, msg); err != nil {
		return Response{}, err
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return Response{}, core.ErrNotConnected
		}
		return resp, resp.Err()
	case <-timer.C:
		return Response{}, fmt.Errorf("%s timed out after %s", msg.MessageType, requestTimeout)
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
}

func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	c.writeMu.Unlock()
	return conn.Close()
}
