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

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/events"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/hub"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/refresh"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/config"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/handlers"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/plugins"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the modules file and hub config without connecting",
	Long:  `Parses the modules file and hub config, builds every connection and bridge, and checks refresh schedules. Nothing is dialed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		if err := runValidate(cmd.OutOrStdout(), settings); err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(out io.Writer, settings *config.Settings) error {
	cfg, err := loadHubConfig(settings)
	if err != nil {
		return err
	}
	modules, err := config.LoadModules(settings.ModulesPath)
	if err != nil {
		return err
	}

	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := handlers.Deps{Bus: events.NewBus(1, quiet), Logger: quiet}
	schedules := refresh.NewScheduler(nil, time.Minute, quiet)

	var errs []error
	for _, mc := range modules {
		tuning, _ := cfg.Tuning(mc.ID())
		if _, err := hub.Build(mc, deps, tuning, nil); err != nil {
			errs = append(errs, err)
			continue
		}
		if tuning.Refresh != "" {
			if err := schedules.Add(mc.ID(), tuning.Refresh, time.Now()); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		fmt.Fprintf(out, "connection %-20s %-10s enabled=%t\n", mc.ID(), mc.Type(), mc.Enabled())
	}
	for _, bc := range cfg.Bridges {
		if _, err := plugins.NewBridge(bc, quiet); err != nil {
			errs = append(errs, err)
			continue
		}
		fmt.Fprintf(out, "bridge     %-20s %s\n", bc.Name, bc.Type)
	}

	if err := errors.Join(errs...); err != nil {
		return err
	}
	fmt.Fprintf(out, "%d connections and %d bridges are valid\n", len(modules), len(cfg.Bridges))
	return nil
}
