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

package fuseops

import (
	"os"
	"time"

	"github.com/go-fuse/corefuse/internal/protocol"
)

// ConvertAttributes renders the package's InodeAttributes into the
// wire-level protocol.Attr for the given inode, the inverse of what the
// kernel sends us in a SetAttr request.
func ConvertAttributes(inode InodeID, in InodeAttributes) protocol.Attr {
	atimeSec, atimeNsec := splitTime(in.Atime)
	mtimeSec, mtimeNsec := splitTime(in.Mtime)
	ctimeSec, ctimeNsec := splitTime(in.Ctime)

	// The wire mode is st_mode: file type bits plus permission bits.
	mode := uint32(in.Mode.Perm()) | 0100000
	for _, t := range []struct {
		bit  os.FileMode
		kind uint32
	}{
		{os.ModeDir, 0040000}, {os.ModeSymlink, 0120000}, {os.ModeNamedPipe, 0010000},
		{os.ModeCharDevice, 0020000}, {os.ModeDevice, 0060000}, {os.ModeSocket, 0140000},
	} {
		if in.Mode&t.bit != 0 {
			mode = uint32(in.Mode.Perm()) | t.kind
			break
		}
	}

	return protocol.Attr{
		Ino:       uint64(inode),
		Size:      in.Size,
		Blocks:    (in.Size + 511) / 512,
		Atime:     atimeSec,
		Mtime:     mtimeSec,
		Ctime:     ctimeSec,
		AtimeNsec: atimeNsec,
		MtimeNsec: mtimeNsec,
		CtimeNsec: ctimeNsec,
		Mode:      mode,
		Nlink:     uint32(in.Nlink),
		UID:       in.UID,
		GID:       in.GID,
		Rdev:      in.Rdev,
		Blksize:   4096,
	}
}

func splitTime(t time.Time) (sec uint64, nsec uint32) {
	if t.IsZero() {
		return 0, 0
	}
	return uint64(t.Unix()), uint32(t.Nanosecond())
}

// ConvertFileMode maps the on-wire 32-bit mode field (st_mode: type bits
// plus permission bits) to an os.FileMode, for file systems decoding the
// raw Mode of a SetAttrRequest, MkNodRequest or MkDirRequest (the
// dispatcher passes those through unconverted).
func ConvertFileMode(unixMode uint32) os.FileMode {
	mode := os.FileMode(unixMode & 0777)

	switch unixMode & 0170000 {
	case 0040000:
		mode |= os.ModeDir
	case 0120000:
		mode |= os.ModeSymlink
	case 0010000:
		mode |= os.ModeNamedPipe
	case 0020000:
		mode |= os.ModeCharDevice | os.ModeDevice
	case 0060000:
		mode |= os.ModeDevice
	case 0140000:
		mode |= os.ModeSocket
	}

	if unixMode&0004000 != 0 {
		mode |= os.ModeSetuid
	}
	if unixMode&0002000 != 0 {
		mode |= os.ModeSetgid
	}

	return mode
}
