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
	"golang.org/x/sys/unix"
)

// capSysAdmin is CAP_SYS_ADMIN from linux/capability.h. mount(2) requires
// it for anything but a fusermount-mediated mount.
const capSysAdmin = 21

// haveSysAdmin reports whether the current thread holds CAP_SYS_ADMIN in
// its effective set, checked at call time rather than assumed from euid
// alone: a non-root process can hold the capability via file capabilities
// or a user namespace, and root can have dropped it.
func haveSysAdmin() bool {
	var hdr unix.CapUserHeader
	var data [2]unix.CapUserData

	hdr.Version = unix.LINUX_CAPABILITY_VERSION_3
	hdr.Pid = 0 // the calling thread

	if err := unix.Capget(&hdr, &data[0]); err != nil {
		return false
	}

	// CAP_SYS_ADMIN (21) lives in data[0]'s effective word.
	return data[0].Effective&(1<<capSysAdmin) != 0
}
