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

package logging

import (
	"log/slog"
	"time"

	"github.com/wso2/api-platform/gateway/gateway-runtime/action-hub/pkg/core"
)

// DispatchLogger writes one structured record per admission decision and
// per completed delivery.
type DispatchLogger struct {
	logger *slog.Logger
}

func NewDispatchLogger(logger *slog.Logger) *DispatchLogger {
	return &DispatchLogger{logger: logger}
}

func (d *DispatchLogger) Admitted(req *core.InternalRequest, messageType string) {
	if d == nil {
		return
	}
	d.logger.Info("dispatch",
		"request_id", req.RequestID,
		"provider", req.ProviderID,
		"category", req.ProviderKey.CategoryID,
		"action", req.ActionKey(),
		"message_type", messageType,
		"bypass_cooldown", req.BypassCooldown,
		"request_age", time.Since(req.Timestamp).Round(time.Millisecond),
	)
}

func (d *DispatchLogger) Rejected(req *core.InternalRequest, res core.RequestResult) {
	if d == nil {
		return
	}
	d.logger.Info("dispatch rejected",
		"request_id", req.RequestID,
		"provider", req.ProviderID,
		"category", req.ProviderKey.CategoryID,
		"action", req.ActionKey(),
		"reason", res.Message,
	)
}

func (d *DispatchLogger) Delivered(req *core.InternalRequest, elapsed time.Duration, err error) {
	if d == nil {
		return
	}
	if err != nil {
		d.logger.Error("delivery failed",
			"request_id", req.RequestID,
			"provider", req.ProviderID,
			"action", req.ActionKey(),
			"elapsed", elapsed,
			"error", err,
		)
		return
	}
	d.logger.Info("delivered",
		"request_id", req.RequestID,
		"provider", req.ProviderID,
		"action", req.ActionKey(),
		"elapsed", elapsed,
	)
}
