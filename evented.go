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
	"log"
	"os"
)

// EventedSession exposes a mounted connection's descriptor to an external
// level-triggered reactor instead of running its own blocking read loop.
// It owns neither a FileSystem nor a Dispatcher: it is a pure I/O surface
// that a caller's event loop polls for readability, then drains by calling
// Receive until it reports RecvRetry.
//
// A typical reactor integration registers Fd() for readable interest, and
// on each readability notification loops:
//
//	for {
//		n, outcome, err := es.Receive(buf)
//		switch outcome {
//		case RecvMessage:
//			dispatcher.Dispatch(ctx, buf[:n])
//			continue
//		case RecvRetry:
//			// kernel queue drained; go back to polling.
//		case RecvDetach:
//			reactor.Deregister(es.Fd())
//		}
//		break
//	}
type EventedSession struct {
	channel *Channel
}

// NewEventedSession puts dev into non-blocking mode and wraps it for
// reactor-driven use. mountpoint is needed only so Close can unmount; the
// caller is responsible for having established dev via a real mount (see
// mountKernel, or a driver's mount method directly).
func NewEventedSession(dev *os.File, mountpoint string, errorLogger *log.Logger) (*EventedSession, error) {
	channel := Open(dev, mountpoint, errorLogger)
	if err := channel.SetNonblocking(true); err != nil {
		return nil, err
	}
	return &EventedSession{channel: channel}, nil
}

// Fd returns the descriptor to register with the caller's reactor.
func (es *EventedSession) Fd() uintptr {
	return es.channel.dev.Fd()
}

// Receive attempts to read a single request without blocking, delegating
// to the underlying Channel in non-blocking mode. RecvRetry here means
// EAGAIN: the kernel's queue is drained for now, not that the caller
// should immediately try again.
func (es *EventedSession) Receive(buf []byte) (int, RecvOutcome, error) {
	return es.channel.Receive(buf)
}

// Sender returns a handle for sending replies on this connection, to be
// handed to a Dispatcher the caller constructs itself.
func (es *EventedSession) Sender() *Sender {
	return es.channel.Sender()
}

// Close tears down the channel as Session.Close does.
func (es *EventedSession) Close() error {
	return es.channel.Close()
}
