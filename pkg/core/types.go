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
	"time"
)

type Status int

const (
	StatusOffline Status = iota
	StatusOnline
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusOnline:
		return "ONLINE"
	case StatusUnavailable:
		return "UNAVAILABLE"
	default:
		return "OFFLINE"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Topic names a channel on the internal event bus.
type Topic string

const (
	TopicExecuteAction Topic = "EXECUTE_ACTION"
	TopicShutdown      Topic = "SHUTDOWN"
	TopicInfo          Topic = "INFO"
	TopicError         Topic = "ERROR"
)

type Event struct {
	ID        string    `json:"id"`
	Topic     Topic     `json:"topic"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Notification is the payload carried by INFO and ERROR events.
type Notification struct {
	ConnectionID string    `json:"connection_id,omitempty"`
	RequestID    string    `json:"request_id,omitempty"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

func Notify(connectionID, requestID, format string, args ...any) Notification {
	return Notification{
		ConnectionID: connectionID,
		RequestID:    requestID,
		Message:      fmt.Sprintf(format, args...),
		Timestamp:    time.Now().UTC(),
	}
}

// RequestResult is the synchronous admission outcome of a request. A successful
// result means the send was initiated, not that the remote side completed it.
type RequestResult struct {
	IsSuccess bool   `json:"is_success"`
	Message   string `json:"message"`
}

func Accepted(format string, args ...any) RequestResult {
	return RequestResult{IsSuccess: true, Message: fmt.Sprintf(format, args...)}
}

func Rejected(format string, args ...any) RequestResult {
	return RequestResult{IsSuccess: false, Message: fmt.Sprintf(format, args...)}
}
