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
	"os"
	"testing"
)

// TestChannelReceiveReadsAMessage exercises Receive's RecvMessage path
// against a real pipe, without going anywhere near an actual mount.
func TestChannelReceiveReadsAMessage(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	defer w.Close()

	want := []byte("hello, kernel")
	if _, err := w.Write(want); err != nil {
		t.Fatalf("Write: %v", err)
	}

	c := Open(r, "", nil)
	buf := make([]byte, 64)
	n, outcome, err := c.Receive(buf)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if outcome != RecvMessage {
		t.Errorf("outcome = %v, want RecvMessage", outcome)
	}
	if string(buf[:n]) != string(want) {
		t.Errorf("Receive() read %q, want %q", buf[:n], want)
	}
}

// TestChannelReceiveReturnsEmptyMessageOnEOF exercises the "writer closed"
// path: a pipe reader sees EOF (n=0, err=nil) rather than an errno, which
// Receive reports as an empty RecvMessage (the dispatcher then drops it as
// a short message) rather than as a retry or a detach.
func TestChannelReceiveReturnsEmptyMessageOnEOF(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	defer r.Close()
	w.Close()

	c := Open(r, "", nil)
	buf := make([]byte, 64)
	n, outcome, err := c.Receive(buf)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if n != 0 {
		t.Errorf("n = %d, want 0 on EOF", n)
	}
	if outcome != RecvMessage {
		t.Errorf("outcome = %v, want RecvMessage (n=0, err=nil is not one of the errno cases)", outcome)
	}
}
