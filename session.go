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
	"context"
	"log"
	"os"

	"github.com/go-fuse/corefuse/internal/protocol"
)

// MountConfig carries the behavioral toggles of this library itself,
// distinct from MountOptions' kernel-visible `-o` flags: which context
// operations inherit, and where debug/error output goes. Either logger
// field left nil falls back to the package-wide default in debug.go: the
// debug one is gated by -fuse.debug, the error one always writes to stderr.
type MountConfig struct {
	OpContext   context.Context
	DebugLogger *log.Logger
	ErrorLogger *log.Logger
}

func (c MountConfig) loggers() (debug, errLog *log.Logger) {
	debug, errLog = c.DebugLogger, c.ErrorLogger
	if debug == nil {
		debug = defaultDebugLogger()
	}
	if errLog == nil {
		errLog = defaultErrorLogger()
	}
	return
}

func (c MountConfig) context() context.Context {
	if c.OpContext != nil {
		return c.OpContext
	}
	return context.Background()
}

// Session owns a Channel and the Dispatcher reading from it. Mount
// establishes the connection; Run then blocks, reading and dispatching
// requests until the connection detaches (the kernel tears down the mount
// or a read fails). Dispatching Destroy does not by itself end Run.
type Session struct {
	channel    *Channel
	dispatcher *Dispatcher
	ctx        context.Context
}

// Mount opens a kernel connection at mountpoint, builds the Dispatcher
// that will serve fs over it, and returns a Session ready for Run. The
// caller owns the returned Session and must eventually call Close (via
// Run returning, or directly) to release the mount.
func Mount(mountpoint string, fs FileSystem, kernelOpts MountOptions, cfg MountConfig) (*Session, error) {
	dev, canonical, err := mountKernel(mountpoint, kernelOpts)
	if err != nil {
		return nil, err
	}

	return newSession(dev, canonical, fs, cfg), nil
}

// newSession wires an already-open kernel descriptor into a running
// Session, factored out so tests can build one around a descriptor they
// opened themselves (e.g. a socketpair) without a real mount(2)/
// fusermount round trip.
func newSession(dev *os.File, mountpoint string, fs FileSystem, cfg MountConfig) *Session {
	debugLogger, errorLogger := cfg.loggers()
	channel := Open(dev, mountpoint, errorLogger)
	dispatcher := NewDispatcher(fs, channel.Sender(), debugLogger, errorLogger)

	return &Session{channel: channel, dispatcher: dispatcher, ctx: cfg.context()}
}

// Run reads and dispatches requests until the connection is torn down,
// then closes the Channel and returns. A nil return means the kernel ended
// the connection cleanly (ENODEV on read); any other error is the first
// unexpected failure reading from /dev/fuse.
func (s *Session) Run() error {
	defer s.channel.Close()

	buf := make([]byte, protocol.MaxWriteSize+protocol.HeaderPadding)
	for {
		n, outcome, err := s.channel.Receive(buf)
		switch outcome {
		case RecvRetry:
			continue
		case RecvDetach:
			return err
		}
		s.dispatcher.Dispatch(s.ctx, buf[:n])
	}
}

// Close tears down the session's channel without waiting for Run to
// observe EOF, for callers driving their own shutdown sequence.
func (s *Session) Close() error {
	return s.channel.Close()
}
