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
	"os/exec"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

type linuxMountDriver struct{}

func newPlatformMountDriver() mountDriver { return linuxMountDriver{} }

// errFallback signals directMount decided this attempt can't proceed
// without help and the caller should try the fusermount helper instead; it
// never escapes this file.
var errFallback = errors.New("fuse: falling back to fusermount")

func (linuxMountDriver) mount(mountpoint string, opts MountOptions) (*os.File, error) {
	if haveSysAdmin() {
		dev, err := directMount(mountpoint, opts)
		if err == nil {
			return dev, nil
		}
		if !errors.Is(err, errFallback) {
			return nil, &MountError{Kind: MountErrorSyscall, Err: err}
		}
	}
	return helperMount(mountpoint, opts)
}

func (linuxMountDriver) unmount(mountpoint string) error {
	if haveSysAdmin() {
		if err := unix.Unmount(mountpoint, 0); err == nil {
			return nil
		}
	}
	return helperUnmount(mountpoint)
}

// directMount performs the mount(2) syscall itself, requiring
// CAP_SYS_ADMIN. This is the path taken when the caller is root or has
// been granted the capability directly, skipping the fusermount helper
// (and its dependency on a setuid binary being installed) entirely.
func directMount(mountpoint string, opts MountOptions) (*os.File, error) {
	fd, err := syscall.Open("/dev/fuse", syscall.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open /dev/fuse: %w", err)
	}
	dev := os.NewFile(uintptr(fd), "/dev/fuse")

	data, err := opts.Render(dev.Fd())
	if err != nil {
		dev.Close()
		return nil, err
	}

	flags := uintptr(unix.MS_NOSUID | unix.MS_NODEV)
	if opts.Nosuid {
		flags |= unix.MS_NOSUID
	}
	if opts.Nodev {
		flags |= unix.MS_NODEV
	}
	if opts.Noexec {
		flags |= unix.MS_NOEXEC
	}
	if opts.Noatime {
		flags |= unix.MS_NOATIME
	}

	fstype := "fuse"
	if opts.Subtype != "" {
		fstype += "." + opts.Subtype
	}

	source := opts.FSName
	if source == "" {
		source = "corefuse"
	}

	if err := unix.Mount(source, mountpoint, fstype, flags, data); err != nil {
		dev.Close()
		if err == syscall.EPERM {
			return nil, errFallback
		}
		return nil, err
	}

	return dev, nil
}

// helperMount spawns fusermount (or fusermount3), which performs the
// mount(2) call with its own setuid privilege and passes the resulting
// /dev/fuse descriptor back over a unix domain socket via SCM_RIGHTS.
func helperMount(mountpoint string, opts MountOptions) (*os.File, error) {
	bin, err := findFusermount()
	if err != nil {
		return nil, &MountError{Kind: MountErrorHelperSpawn, Err: err}
	}

	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, &MountError{Kind: MountErrorHelperSpawn, Err: fmt.Errorf("socketpair: %w", err)}
	}
	writeFile := os.NewFile(uintptr(fds[0]), "fusermount-write")
	defer writeFile.Close()
	readFile := os.NewFile(uintptr(fds[1]), "fusermount-read")
	defer readFile.Close()

	data, err := opts.RenderHelper(0)
	if err != nil {
		return nil, err
	}
	// fd=0 above is a placeholder: the helper assigns the real descriptor
	// and fusermount doesn't want an fd= option from us at all, so strip it.
	data = stripFdOption(data)

	cmd := exec.Command(bin, "-o", data, "--", mountpoint)
	cmd.Env = append(os.Environ(), "_FUSE_COMMFD=3")
	cmd.ExtraFiles = []*os.File{writeFile}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := err.Error()
		if stderr.Len() > 0 {
			msg += ": " + stderr.String()
		}
		return nil, &MountError{Kind: MountErrorHelperSpawn, Err: errors.New(msg)}
	}

	fd, err := receiveMountFD(readFile)
	if err != nil {
		return nil, &MountError{Kind: MountErrorHelperProtocol, Err: err}
	}
	return os.NewFile(uintptr(fd), "/dev/fuse"), nil
}

func stripFdOption(opts string) string {
	parts := strings.Split(opts, ",")
	kept := parts[:0]
	for _, p := range parts {
		if !strings.HasPrefix(p, "fd=") {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ",")
}

// receiveMountFD reads the single SCM_RIGHTS ancillary message fusermount
// sends back over the socketpair half it was handed as fd 3.
func receiveMountFD(conn *os.File) (int, error) {
	data := make([]byte, 4)
	oob := make([]byte, unix.CmsgSpace(4))

	sa := int(conn.Fd())
	n, oobn, _, _, err := unix.Recvmsg(sa, data, oob, 0)
	if err != nil {
		return -1, fmt.Errorf("recvmsg: %w", err)
	}
	if n == 0 && oobn == 0 {
		return -1, errors.New("fusermount closed the connection without sending a descriptor")
	}

	messages, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return -1, fmt.Errorf("parsing control message: %w", err)
	}
	if len(messages) != 1 {
		return -1, fmt.Errorf("expected exactly one control message, got %d", len(messages))
	}

	fds, err := unix.ParseUnixRights(&messages[0])
	if err != nil {
		return -1, fmt.Errorf("parsing unix rights: %w", err)
	}
	if len(fds) != 1 {
		return -1, fmt.Errorf("expected exactly one descriptor, got %d", len(fds))
	}

	return fds[0], nil
}

func findFusermount() (string, error) {
	if path, err := exec.LookPath("fusermount3"); err == nil {
		return path, nil
	}
	return exec.LookPath("fusermount")
}

func helperUnmount(mountpoint string) error {
	bin, err := findFusermount()
	if err != nil {
		return err
	}

	if strings.HasPrefix(mountpoint, "/dev/fd/") {
		// fusermount keeps no record of a mount established against a
		// pre-opened descriptor; trying to unmount it through the helper
		// always fails, so say so plainly instead of surfacing its
		// confusing stderr.
		cmd := exec.Command(bin, "-u", mountpoint)
		if err := cmd.Run(); err != nil {
			return fmt.Errorf("%w: %v", ErrExternallyManagedMountPoint, err)
		}
		return nil
	}

	var stderr strings.Builder
	cmd := exec.Command(bin, "-u", mountpoint)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := err.Error()
		if stderr.Len() > 0 {
			msg += ": " + strings.TrimRight(stderr.String(), "\n")
		}
		return errors.New(msg)
	}
	return nil
}
