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
	"errors"
	"log"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// Channel is the sole owner of the file descriptor talking to the kernel
// for one mount. It is not safe for concurrent Receive calls (there is
// only ever one reader of a FUSE connection), but Sender, obtained once
// from Channel, may be cloned and used concurrently from as many
// goroutines as there are in-flight replies.
type Channel struct {
	dev         *os.File
	mountpoint  string
	errorLogger *log.Logger
}

// RecvOutcome is the tri-state result of a single Receive call: exactly
// one request, a transient condition the caller should retry without
// treating as an error, or a signal that the connection is gone for good.
type RecvOutcome int

const (
	// RecvMessage means buf[:n] holds one complete request.
	RecvMessage RecvOutcome = iota
	// RecvRetry means the read was interrupted (ENOENT/EINTR/EAGAIN from
	// the kernel side of /dev/fuse) and the caller should call Receive
	// again with the same buffer.
	RecvRetry
	// RecvDetach means the mount is gone (ENODEV, or any other error) and
	// the caller must stop calling Receive; Err is nil for a clean
	// unmount and non-nil for anything else.
	RecvDetach
)

// Open establishes dev as the kernel side of mountpoint, taking ownership
// of dev: closing the returned Channel closes dev and unmounts
// mountpoint, in that order (closing first avoids the deadlock a
// synchronous unmount can hit if the kernel is still waiting on a reply).
func Open(dev *os.File, mountpoint string, errorLogger *log.Logger) *Channel {
	return &Channel{dev: dev, mountpoint: mountpoint, errorLogger: errorLogger}
}

// Sender returns a cloneable handle that can send replies on this
// channel's descriptor from any goroutine, safe to retain past the point
// where the Receive call that produced the originating request returns.
func (c *Channel) Sender() *Sender {
	return &Sender{fd: int(c.dev.Fd())}
}

// SetNonblocking toggles O_NONBLOCK on the underlying descriptor, used by
// EventedSession to fold /dev/fuse into an external level-triggered
// reactor instead of owning a dedicated reader goroutine.
func (c *Channel) SetNonblocking(nonblocking bool) error {
	return syscall.SetNonblock(int(c.dev.Fd()), nonblocking)
}

// Receive reads a single message into buf, returning how many bytes were
// filled in and the tri-state outcome describing what the caller should
// do next.
func (c *Channel) Receive(buf []byte) (int, RecvOutcome, error) {
	n, err := unix.Read(int(c.dev.Fd()), buf)
	if err == nil {
		return n, RecvMessage, nil
	}

	switch {
	case errors.Is(err, syscall.ENOENT), errors.Is(err, syscall.EINTR), errors.Is(err, syscall.EAGAIN):
		return 0, RecvRetry, nil
	case errors.Is(err, syscall.ENODEV):
		return 0, RecvDetach, nil
	default:
		return 0, RecvDetach, err
	}
}

// Close closes the kernel descriptor, then unmounts the mountpoint.
// Closing first matters: if the kernel is blocked waiting on this
// process for a reply, a synchronous unmount(2) before the descriptor is
// closed can deadlock. Unmount errors are logged rather than returned,
// since the caller has already committed to tearing the channel down and
// the descriptor is gone either way.
func (c *Channel) Close() error {
	closeErr := c.dev.Close()

	if err := platform.unmount(c.mountpoint); err != nil {
		if c.errorLogger != nil {
			c.errorLogger.Printf("unmounting %s: %v", c.mountpoint, err)
		}
	}

	return closeErr
}
