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
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/go-fuse/corefuse/internal/protocol"
)

type darwinMountDriver struct{}

func newPlatformMountDriver() mountDriver { return darwinMountDriver{} }

var errNoAvailOSXFUSEDev = errors.New("no available osxfuse devices")
var errOSXFUSENotLoaded = errors.New("osxfuse is not loaded")

func loadOSXFUSE() error {
	cmd := exec.Command("/Library/Filesystems/osxfusefs.fs/Support/load_osxfusefs")
	cmd.Dir = "/"
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func openOSXFUSEDev() (*os.File, error) {
	for i := uint64(0); ; i++ {
		path := fmt.Sprintf("/dev/osxfuse%d", i)
		dev, err := os.OpenFile(path, os.O_RDWR, 0)
		if os.IsNotExist(err) {
			if i == 0 {
				return nil, errOSXFUSENotLoaded
			}
			return nil, errNoAvailOSXFUSEDev
		}
		if pe, ok := err.(*os.PathError); ok && pe.Err == syscall.EBUSY {
			continue
		}
		return dev, err
	}
}

func (darwinMountDriver) mount(mountpoint string, opts MountOptions) (*os.File, error) {
	dev, err := openOSXFUSEDev()
	if errors.Is(err, errOSXFUSENotLoaded) {
		if lerr := loadOSXFUSE(); lerr != nil {
			return nil, &MountError{Kind: MountErrorDeviceOpen, Err: fmt.Errorf("loadOSXFUSE: %w", lerr)}
		}
		dev, err = openOSXFUSEDev()
	}
	if err != nil {
		return nil, &MountError{Kind: MountErrorDeviceOpen, Err: err}
	}

	if err := callMountOSXFUSE(mountpoint, opts, dev); err != nil {
		dev.Close()
		return nil, &MountError{Kind: MountErrorHelperSpawn, Err: err}
	}
	return dev, nil
}

func callMountOSXFUSE(mountpoint string, opts MountOptions, dev *os.File) error {
	data, err := opts.RenderHelper(3)
	if err != nil {
		return err
	}

	cmd := exec.Command(
		"/Library/Filesystems/osxfusefs.fs/Support/mount_osxfusefs",
		"-o", data,
		"-o", "iosize="+strconv.Itoa(protocol.MaxWriteSize),
		"3",
		mountpoint,
	)
	cmd.ExtraFiles = []*os.File{dev}
	cmd.Env = append(os.Environ(), "MOUNT_FUSEFS_CALL_BY_LIB=")

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		msg := bytes.TrimRight(out.Bytes(), "\n")
		if len(msg) > 0 {
			return fmt.Errorf("%v: %s", err, msg)
		}
		return err
	}
	return nil
}

func (darwinMountDriver) unmount(mountpoint string) error {
	return syscall.Unmount(mountpoint, 0)
}
