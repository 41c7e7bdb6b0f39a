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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/admin"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/events"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/hub"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/metrics"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/internal/relay"
	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/plugins"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the hub",
	Long:  `Loads the modules file, connects every enabled connection and broker bridge, and serves the admin API until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().String("admin-addr", "", "admin API listen address; overrides ADMIN_ADDR")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(settings)

	cfg, err := loadHubConfig(settings)
	if err != nil {
		logger.Error("failed to load config", "path", settings.ConfigPath, "error", err)
		return err
	}

	m := metrics.New()
	bus := events.NewBus(cfg.Events.QueueSize, logger.With("component", "events"))
	go bus.Run(context.Background())

	h := hub.New(bus, cfg, hub.Options{
		Logger:          logger,
		Metrics:         m,
		RefreshInterval: settings.RefreshInterval,
		StopTimeout:     settings.ShutdownTimeout,
	})
	if err := h.LoadModules(settings.ModulesPath); err != nil {
		logger.Error("failed to load modules", "path", settings.ModulesPath, "error", err)
		return fmt.Errorf("load modules: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := plugins.NewRegistry(logger.With("component", "bridges"))
	plugins.RegisterAll(registry, cfg.Bridges, logger)
	registry.ConnectAll(ctx)

	h.Start(ctx)
	go h.Watch(ctx)

	relayMgr := relay.NewManager(bus, logger.With("component", "relay"), m)
	relayMgr.Start(ctx, registry.Healthy())

	server := admin.NewServer(settings.AdminAddr, h, bus, m, logger.With("component", "admin"))
	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("admin server failed", "error", err)
		}
	}()

	logger.Info("action hub started",
		"modules", settings.ModulesPath,
		"config", settings.ConfigPath,
		"admin", settings.AdminAddr,
		"bridges", relayMgr.ActiveCount(),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down action hub")
	cancel()
	relayMgr.Stop()

	h.Shutdown()
	bus.Close(settings.ShutdownTimeout)
	h.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer shutdownCancel()
	registry.DisconnectAll(shutdownCtx)

	logger.Info("action hub stopped")
	return nil
}
