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

package plugins

import (
	"fmt"
	"log/slog"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/plugins/jms"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/plugins/kafka"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/plugins/mqtt"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/plugins/mqtt5"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/plugins/rabbitmq"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/plugins/redis"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/plugins/solace"
)

// NewBridge builds the bridge described by a bridges entry of the hub config.
func NewBridge(bc config.BridgeConfig, logger *slog.Logger) (core.Bridge, error) {
	logger = logger.With("bridge", bc.Name)
	switch bc.Type {
	case "kafka":
		return kafka.FromConfig(bc.Name, bc.Config, logger), nil
	case "rabbitmq":
		return rabbitmq.FromConfig(bc.Name, bc.Config, logger), nil
	case "mqtt5":
		return mqtt5.FromConfig(bc.Name, bc.Config, logger), nil
	case "mqtt":
		return mqtt.FromConfig(bc.Name, bc.Config, logger), nil
	case "jms":
		return jms.FromConfig(bc.Name, bc.Config, logger), nil
	case "solace":
		return solace.FromConfig(bc.Name, bc.Config, logger), nil
	case "redis":
		return redis.FromConfig(bc.Name, bc.Config, logger), nil
	default:
		return nil, fmt.Errorf("%w: bridge %s has type %q", core.ErrUnknownType, bc.Name, bc.Type)
	}
}

// RegisterAll builds and registers every configured bridge. Unknown types are
// logged and skipped.
func RegisterAll(reg *Registry, bridges []config.BridgeConfig, logger *slog.Logger) {
	for _, bc := range bridges {
		b, err := NewBridge(bc, logger)
		if err != nil {
			logger.Warn("skipping bridge", "name", bc.Name, "error", err)
			continue
		}
		if err := reg.Register(b); err != nil {
			logger.Warn("skipping bridge", "name", bc.Name, "error", err)
		}
	}
}
