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
	"encoding/json"
	"fmt"
)

const (
	APIName    = "TITSPublicApi"
	APIVersion = "1.0"
)

const (
	MsgItemListRequest         = "TITSItemListRequest"
	MsgItemListResponse        = "TITSItemListResponse"
	MsgTriggerListRequest      = "TITSTriggerListRequest"
	MsgTriggerListResponse     = "TITSTriggerListResponse"
	MsgThrowItemsRequest       = "TITSThrowItemsRequest"
	MsgThrowItemsResponse      = "TITSThrowItemsResponse"
	MsgTriggerActivateRequest  = "TITSTriggerActivateRequest"
	MsgTriggerActivateResponse = "TITSTriggerActivateResponse"
	MsgAPIError                = "APIError"
)

// Message is the outbound envelope. RequestID echoes the originating request
// so responses can be correlated.
type Message struct {
	APIName     string `json:"apiName"`
	APIVersion  string `json:"apiVersion"`
	RequestID   string `json:"requestID"`
	MessageType string `json:"messageType"`
	Data        any    `json:"data"`
}

func NewMessage(requestID, messageType string, data any) Message {
	if data == nil {
		data = struct{}{}
	}
	return Message{
		APIName:     APIName,
		APIVersion:  APIVersion,
		RequestID:   requestID,
		MessageType: messageType,
		Data:        data,
	}
}

type Response struct {
	APIName     string          `json:"apiName"`
	APIVersion  string          `json:"apiVersion"`
	Timestamp   int64           `json:"timestamp"`
	RequestID   string          `json:"requestID"`
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data"`
}

// Err returns the API error carried by an APIError response.
func (r Response) Err() error {
	if r.MessageType != MsgAPIError {
		return nil
	}
	var data APIErrorData
	if err := json.Unmarshal(r.Data, &data); err != nil {
		return fmt.Errorf("tits api error (unreadable payload): %s", r.Data)
	}
	return fmt.Errorf("tits api error %d: %s", data.ErrorID, data.Message)
}

type ItemInfo struct {
	ID   string `json:"ID"`
	Name string `json:"name"`
}

type ItemListData struct {
	ItemsCount int        `json:"itemsCount"`
	Items      []ItemInfo `json:"items"`
}

type TriggerInfo struct {
	ID   string `json:"ID"`
	Name string `json:"name"`
}

type TriggerListData struct {
	Triggers []TriggerInfo `json:"triggers"`
}

type ThrowItemsData struct {
	Items            []string `json:"items"`
	DelayTime        float64  `json:"delayTime"`
	AmountOfThrows   int      `json:"amountOfThrows"`
	ErrorOnMissingID bool     `json:"errorOnMissingID"`
}

type TriggerActivateData struct {
	TriggerID string `json:"triggerID"`
}

type APIErrorData struct {
	ErrorID int    `json:"errorID"`
	Message string `json:"message"`
}

func decodeData(resp Response, out any) error {
	if len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decode %s: %w", resp.MessageType, err)
	}
	return nil
}
