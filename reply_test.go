// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package fuse

import (
	"testing"
	"time"

	"github.com/go-fuse/corefuse/internal/protocol"
)

func TestReplyDirectoryAddRespectsBudget(t *testing.T) {
	core := newReplyCore(1, "Readdir", &Sender{fd: -1}, nil, nil)
	// Budget room for exactly one small entry (8+8+4+4 header + 4-byte
	// name + 4 bytes of padding to reach the 8-byte dirent alignment).
	rd := newReplyDirectory(core, direntFixedSize+8)

	if !rd.Add(1, 1, protocol.DT_Reg, "abcd") {
		t.Fatalf("first Add() = false, want true")
	}
	if rd.Add(2, 2, protocol.DT_Reg, "efgh") {
		t.Errorf("second Add() = true, want false (budget exhausted)")
	}
}

func TestSplitTTL(t *testing.T) {
	cases := []struct {
		ttl         time.Duration
		wantSeconds uint64
		wantNsec    uint32
	}{
		{ttl: 0, wantSeconds: 0, wantNsec: 0},
		{ttl: -time.Second, wantSeconds: 0, wantNsec: 0},
		{ttl: 1500 * time.Millisecond, wantSeconds: 1, wantNsec: 500000000},
	}

	for _, c := range cases {
		sec, nsec := splitTTL(c.ttl)
		if sec != c.wantSeconds || nsec != c.wantNsec {
			t.Errorf("splitTTL(%v) = (%d, %d), want (%d, %d)", c.ttl, sec, nsec, c.wantSeconds, c.wantNsec)
		}
	}
}
