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
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/config"
)

var rootCmd = &cobra.Command{
	Use:   "action-hub",
	Short: "Action hub triggers actions on streaming-control services",
	Long: `Action hub connects to TITS and POG instances, keeps their action catalogs
in sync, and dispatches cooldown-gated requests received from the admin API
or from message broker bridges.`,
	SilenceUsage: true,
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "hub config file (bridges, refresh schedules, cooldowns); overrides CONFIG_PATH")
	rootCmd.PersistentFlags().String("modules", "", "modules file declaring connections; overrides MODULES_PATH")
	rootCmd.PersistentFlags().String("log-level", "", "debug, info, warn or error; overrides LOG_LEVEL")
}

// loadSettings reads settings from the environment and applies flag overrides.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if v, _ := flags.GetString("config"); v != "" {
		settings.ConfigPath = v
	}
	if v, _ := flags.GetString("modules"); v != "" {
		settings.ModulesPath = v
	}
	if v, _ := flags.GetString("log-level"); v != "" {
		settings.LogLevel = v
	}
	if flags.Lookup("admin-addr") != nil {
		if v, _ := flags.GetString("admin-addr"); v != "" {
			settings.AdminAddr = v
		}
	}
	return settings, nil
}

func newLogger(settings *config.Settings) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: settings.Level()}))
}

func loadHubConfig(settings *config.Settings) (*config.Config, error) {
	if settings.ConfigPath == "" {
		return &config.Config{}, nil
	}
	return config.Load(settings.ConfigPath)
}
