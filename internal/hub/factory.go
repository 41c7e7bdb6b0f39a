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

package hub

import (
	"fmt"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/handlers"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/handlers/pog"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/handlers/tits"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/providers"
)

// Module is a built connection: the running service, its request executer,
// and the provider holding its action catalog.
type Module struct {
	Service  core.Service
	Executer core.RequestExecuter
	Provider providers.Provider
}

// Build creates the handler for cfg's connection type. onCatalog, when set,
// runs after a handler reloads its catalog on its own.
func Build(cfg core.ConnectionConfig, deps handlers.Deps, tuning config.ModuleTuning, onCatalog func(id string)) (Module, error) {
	switch cfg.Type() {
	case core.ConnectionWebSocket:
		opts := []tits.Option{tits.WithCooldowns(tuning.Cooldowns)}
		if onCatalog != nil {
			opts = append(opts, tits.WithOnCatalog(func(h *tits.Handler) { onCatalog(h.ID()) }))
		}
		h, err := tits.New(cfg, deps, opts...)
		if err != nil {
			return Module{}, err
		}
		return Module{Service: h, Executer: h, Provider: h.Provider()}, nil

	case core.ConnectionHTTP:
		h, err := pog.New(cfg, deps, tuning.Cooldowns)
		if err != nil {
			return Module{}, err
		}
		return Module{Service: h, Executer: h, Provider: h.Provider()}, nil

	default:
		return Module{}, fmt.Errorf("%w: connection %s has type %q", core.ErrUnknownType, cfg.ID(), cfg.Type())
	}
}
