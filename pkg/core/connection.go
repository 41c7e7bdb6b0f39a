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

package core

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
)

type ConnectionType string

const (
	ConnectionWebSocket ConnectionType = "websocket"
	ConnectionHTTP      ConnectionType = "http"
)

// ConnectionInfo is the type-specific half of a ConnectionConfig.
type ConnectionInfo interface {
	connectionType() ConnectionType
	validate() error
}

type WebSocketInfo struct {
	URL string `json:"url" mapstructure:"url"`
}

func (WebSocketInfo) connectionType() ConnectionType { return ConnectionWebSocket }

func (i WebSocketInfo) validate() error {
	u, err := url.Parse(i.URL)
	if err != nil {
		return fmt.Errorf("%w: url %q: %v", ErrInvalidConfig, i.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("%w: url %q must use ws or wss", ErrInvalidConfig, i.URL)
	}
	return nil
}

type WebHookInfo struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

func (WebHookInfo) connectionType() ConnectionType { return ConnectionHTTP }

func (i WebHookInfo) validate() error {
	if i.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if i.Port <= 0 || i.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, i.Port)
	}
	return nil
}

func (i WebHookInfo) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

// ConnectionConfig declares how to reach one external service. Values are
// immutable once built by NewConnectionConfig.
type ConnectionConfig struct {
	id          string
	enabled     bool
	name        string
	description string
	kind        ConnectionType
	info        ConnectionInfo
}

func NewConnectionConfig(
	id string,
	enabled bool,
	name, description string,
	kind ConnectionType,
	info ConnectionInfo,
) (ConnectionConfig, error) {
	if id == "" {
		return ConnectionConfig{}, fmt.Errorf("%w: connection id is required", ErrInvalidConfig)
	}
	if info == nil {
		return ConnectionConfig{}, fmt.Errorf("%w: id=%s: connection info is required", ErrInvalidConfig, id)
	}
	if info.connectionType() != kind {
		return ConnectionConfig{}, fmt.Errorf("%w: id=%s: %s info given for %s connection",
			ErrInvalidConfig, id, info.connectionType(), kind)
	}
	if err := info.validate(); err != nil {
		return ConnectionConfig{}, fmt.Errorf("id=%s: %w", id, err)
	}
	return ConnectionConfig{
		id:          id,
		enabled:     enabled,
		name:        name,
		description: description,
		kind:        kind,
		info:        info,
	}, nil
}

func (c ConnectionConfig) ID() string           { return c.id }
func (c ConnectionConfig) Enabled() bool        { return c.enabled }
func (c ConnectionConfig) Name() string         { return c.name }
func (c ConnectionConfig) Description() string  { return c.description }
func (c ConnectionConfig) Type() ConnectionType { return c.kind }
func (c ConnectionConfig) Info() ConnectionInfo { return c.info }

// View is the JSON form used by the admin API.
func (c ConnectionConfig) View() map[string]any {
	return map[string]any{
		"id":          c.id,
		"enabled":     c.enabled,
		"name":        c.name,
		"description": c.description,
		"type":        c.kind,
		"info":        c.info,
	}
}
