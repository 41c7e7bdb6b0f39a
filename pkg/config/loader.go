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

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
	"gopkg.in/yaml.v3"
)

// Config is the hub configuration: broker bridges and per-module tuning.
type Config struct {
	Events  EventsConfig   `yaml:"events"`
	Bridges []BridgeConfig `yaml:"bridges"`
	Modules []ModuleTuning `yaml:"modules"`
}

type EventsConfig struct {
	QueueSize int `yaml:"queue_size"`
}

type BridgeConfig struct {
	Name   string            `yaml:"name"`
	Type   string            `yaml:"type"`
	Config map[string]string `yaml:"config"`
}

// ModuleTuning adjusts a module declared in the modules file.
type ModuleTuning struct {
	ID string `yaml:"id"`

	// Refresh is a cron expression for re-syncing the module's action catalog.
	Refresh   string                   `yaml:"refresh"`
	Cooldowns map[string]time.Duration `yaml:"cooldowns"`
}

// ModuleConfig is one entry of the modules file.
type ModuleConfig struct {
	ID          string         `yaml:"id"`
	Enabled     bool           `yaml:"enabled"`
	Name        string         `yaml:"name"`
	Description string         `yaml:"description"`
	Type        string         `yaml:"type"`
	Connection  map[string]any `yaml:"connection"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Tuning(moduleID string) (ModuleTuning, bool) {
	for _, m := range c.Modules {
		if m.ID == moduleID {
			return m, true
		}
	}
	return ModuleTuning{}, false
}

// LoadModules reads the modules file, a JSON array or YAML sequence of module
// descriptors. Any malformed entry fails the whole load.
func LoadModules(path string) ([]core.ConnectionConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read modules: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var modules []ModuleConfig
	if err := dec.Decode(&modules); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse modules: %w", err)
	}

	out := make([]core.ConnectionConfig, 0, len(modules))
	for i, m := range modules {
		cfg, err := m.ToConnectionConfig()
		if err != nil {
			return nil, fmt.Errorf("module %d: %w", i, err)
		}
		out = append(out, cfg)
	}
	return out, nil
}

func ParseConnectionType(s string) (core.ConnectionType, error) {
	switch s {
	case "websocket", "ws":
		return core.ConnectionWebSocket, nil
	case "http", "webhook":
		return core.ConnectionHTTP, nil
	default:
		return "", fmt.Errorf("%w: %q", core.ErrUnknownType, s)
	}
}

func (mc ModuleConfig) ToConnectionConfig() (core.ConnectionConfig, error) {
	kind, err := ParseConnectionType(mc.Type)
	if err != nil {
		return core.ConnectionConfig{}, fmt.Errorf("id=%s: %w", mc.ID, err)
	}

	var info core.ConnectionInfo
	switch kind {
	case core.ConnectionWebSocket:
		var ws core.WebSocketInfo
		err = decodeInfo(mc.Connection, &ws)
		info = ws
	case core.ConnectionHTTP:
		var wh core.WebHookInfo
		err = decodeInfo(mc.Connection, &wh)
		info = wh
	}
	if err != nil {
		return core.ConnectionConfig{}, fmt.Errorf("%w: id=%s: connection: %v", core.ErrInvalidConfig, mc.ID, err)
	}

	return core.NewConnectionConfig(mc.ID, mc.Enabled, mc.Name, mc.Description, kind, info)
}

func decodeInfo(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}
