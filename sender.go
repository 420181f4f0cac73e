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

import "golang.org/x/sys/unix"

// Sender is a cloneable, thread-safe handle for writing replies to a
// mounted connection. Unlike Channel, it does not own the file descriptor:
// closing the Channel it was obtained from invalidates every outstanding
// Sender, which will then see EBADF on their next Send. Since write(2)/
// writev(2) on a given fd are themselves safe for concurrent callers, a
// Sender may be held by many goroutines at once and handed out freely to
// Reply builders that complete asynchronously.
type Sender struct {
	fd int
}

// Send writes buffers as a single reply, using writev(2) so that a header
// plus payload is delivered to the kernel as one atomic message even
// though they were built as separate byte slices.
func (s *Sender) Send(buffers ...[]byte) error {
	return unix.Writev(s.fd, buffers)
}
