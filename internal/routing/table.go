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

package routing

import (
	"sync"
)

// Table maps category ids to the id of the provider that owns them.
type Table struct {
	routes sync.Map
}

func NewTable() *Table {
	return &Table{}
}

// Claim records providerID as the owner of category unless another provider
// already owns it, in which case the current owner is returned with ok=false.
func (t *Table) Claim(category, providerID string) (owner string, ok bool) {
	v, loaded := t.routes.LoadOrStore(category, providerID)
	owner = v.(string)
	return owner, !loaded || owner == providerID
}

func (t *Table) Remove(category string) {
	t.routes.Delete(category)
}

func (t *Table) Lookup(category string) (string, bool) {
	v, ok := t.routes.Load(category)
	if !ok {
		return "", false
	}
	return v.(string), true
}

func (t *Table) ReplaceAll(index map[string]string) {
	t.routes.Range(func(key, _ any) bool {
		t.routes.Delete(key)
		return true
	})
	for category, owner := range index {
		t.routes.Store(category, owner)
	}
}

func (t *Table) Len() int {
	n := 0
	t.routes.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
