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
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// mountDriver is implemented once per platform (mount_linux.go,
// mount_darwin.go) and does the actual work of establishing a connection
// to the kernel and handing back the /dev/fuse (or osxfuse) descriptor.
type mountDriver interface {
	// mount opens the kernel side of the connection and arranges for
	// mountpoint to show up as this file system, choosing between a direct
	// privileged mount(2) and the setuid helper as the platform allows.
	mount(mountpoint string, opts MountOptions) (*os.File, error)

	// unmount tears down a mount previously established by mount.
	unmount(mountpoint string) error
}

var platform mountDriver = newPlatformMountDriver()

// mountKernel establishes a FUSE connection at mountpoint with the given
// kernel options, retrying once if the mountpoint turns out to be stale (a
// leftover mount from a process that died without unmounting, signaled by
// ENOTCONN on the first attempt). Mount is the public entry point;
// this is the half of it that doesn't yet know about a FileSystem.
//
// mountpoint is canonicalized to an absolute, symlink-free path before any
// of this runs, so that the path recorded for a later Unmount resolves to
// the same inode the kernel actually mounted onto, even if the caller
// passed a relative path or one that traverses a symlink.
func mountKernel(mountpoint string, opts MountOptions) (*os.File, string, error) {
	mountpoint, err := canonicalizeMountpoint(mountpoint)
	if err != nil {
		return nil, "", &MountError{Kind: MountErrorPath, Err: err}
	}

	if fi, err := os.Stat(mountpoint); err != nil {
		return nil, "", &MountError{Kind: MountErrorPath, Err: err}
	} else if !fi.IsDir() {
		return nil, "", &MountError{Kind: MountErrorPath, Err: fmt.Errorf("%s is not a directory", mountpoint)}
	}

	dev, err := platform.mount(mountpoint, opts.WithDefaults())
	if err == nil {
		return dev, mountpoint, nil
	}

	if isStaleMountError(err) {
		if uerr := platform.unmount(mountpoint); uerr == nil {
			dev, err = platform.mount(mountpoint, opts.WithDefaults())
			return dev, mountpoint, err
		}
	}

	return nil, "", err
}

// canonicalizeMountpoint resolves mountpoint to an absolute path with all
// symlinks evaluated, so later Unmount calls (and Channel.Close's implicit
// unmount) target the same directory the kernel mounted onto regardless of
// the working directory or symlinks in effect at mount time.
func canonicalizeMountpoint(mountpoint string) (string, error) {
	abs, err := filepath.Abs(mountpoint)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return resolved, nil
}

// Unmount tears down a previously established mount.
func Unmount(mountpoint string) error {
	// EvalSymlinks requires the mountpoint to still exist, which won't be
	// true for every caller (e.g. unmounting after the backing directory
	// was removed); fall back to the uncanonicalized path rather than
	// failing the unmount outright.
	if canonical, err := canonicalizeMountpoint(mountpoint); err == nil {
		mountpoint = canonical
	}
	if err := platform.unmount(mountpoint); err != nil {
		return &MountError{Kind: MountErrorUnmount, Err: err}
	}
	return nil
}

// isStaleMountError reports whether err indicates mountpoint is already a
// (now-dead) FUSE mount left behind by a process that exited without
// unmounting: the kernel answers any new mount attempt there with ENOTCONN
// until something unmounts it first.
func isStaleMountError(err error) bool {
	return errors.Is(err, syscall.ENOTCONN)
}
