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
	"testing"
)

func TestTableClaimAndLookup(t *testing.T) {
	table := NewTable()
	if _, ok := table.Claim("tits.items", "tits"); !ok {
		t.Fatal("expected first claim to succeed")
	}

	got, ok := table.Lookup("tits.items")
	if !ok {
		t.Fatal("expected category to be found")
	}
	if got != "tits" {
		t.Fatalf("expected owner tits, got %s", got)
	}
}

func TestTableClaimConflict(t *testing.T) {
	table := NewTable()
	table.Claim("shared", "tits")

	if _, ok := table.Claim("shared", "tits"); !ok {
		t.Fatal("expected re-claim by the same owner to succeed")
	}

	owner, ok := table.Claim("shared", "pog")
	if ok {
		t.Fatal("expected claim by a second provider to fail")
	}
	if owner != "tits" {
		t.Fatalf("expected existing owner tits, got %s", owner)
	}
}

func TestTableLookupMiss(t *testing.T) {
	table := NewTable()
	if _, ok := table.Lookup("nonexistent"); ok {
		t.Fatal("expected category not to be found")
	}
}

func TestTableRemove(t *testing.T) {
	table := NewTable()
	table.Claim("pog.tts", "pog")
	table.Remove("pog.tts")

	if _, ok := table.Lookup("pog.tts"); ok {
		t.Fatal("expected category to be removed")
	}
}

func TestTableReplaceAll(t *testing.T) {
	table := NewTable()
	table.Claim("old", "old-provider")

	table.ReplaceAll(map[string]string{
		"new-a": "tits",
		"new-b": "pog",
	})

	if _, ok := table.Lookup("old"); ok {
		t.Fatal("expected old category to be removed")
	}
	if owner, _ := table.Lookup("new-a"); owner != "tits" {
		t.Fatalf("expected new-a owned by tits, got %q", owner)
	}
	if table.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", table.Len())
	}
}

func TestTableConcurrentClaims(t *testing.T) {
	table := NewTable()
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, ok := table.Claim("contested", string(rune('a'+n%26))+"-provider"); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
			table.Lookup("contested")
		}(i)
	}
	wg.Wait()

	if winners == 0 {
		t.Fatal("expected at least one claim to win")
	}
}
