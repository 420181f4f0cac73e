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

// Package fuseops defines the domain vocabulary shared by the request
// parser, the reply builders, and the FileSystem capability set: inode and
// handle identifiers, inode attributes, and directory entries. Apart from
// the conversions in convert.go, none of it is tied to the wire format (see
// internal/protocol for that); it is the shape file system implementations
// actually program against.
package fuseops

import (
	"os"
	"time"
)

// InodeID identifies an inode for the lifetime the kernel holds a reference
// to it (until a matching Forget call). Opaque outside that contract.
type InodeID uint64

// RootInodeID is the distinguished ID of the file system root, implicitly
// known to the kernel without a prior LookUp call.
const RootInodeID InodeID = 1

// HandleID is an opaque 64-bit number used to identify a particular open
// handle to a file or directory. Corresponds to fuse_file_info::fh.
type HandleID uint64

// DirOffset is an opaque offset into an open directory handle, returned to
// the file system unchanged on a later ReadDir call with that offset.
type DirOffset uint64

// GenerationNumber distinguishes successive inodes that reuse the same
// InodeID (relevant only for file systems exported over NFS). Corresponds
// to struct inode::i_generation in the VFS layer.
type GenerationNumber uint64

// RequestHeader carries the fields the kernel attaches to every request,
// common across all FUSE operations.
type RequestHeader struct {
	// Unique is the kernel-assigned id this request must be answered with.
	Unique uint64

	// Credentials and process information for the caller.
	UID uint32
	GID uint32
	PID uint32
}

// InodeAttributes mirrors struct stat's file-system-visible fields. See
// `man 2 stat` for the semantics of each field.
type InodeAttributes struct {
	Size uint64

	// The number of incoming hard links to this inode.
	Nlink uint64

	// The mode of the inode, exposed to the user in e.g. the result of
	// fstat(2). The kernel checks permissions itself in the standard POSIX
	// way whenever the mount carries default_permissions (see
	// MountOptions.DefaultPermissions), so the file system need not
	// reimplement permission bits beyond reporting them accurately here.
	Mode os.FileMode

	// Time information.
	Atime  time.Time // Time of last access.
	Mtime  time.Time // Time of last modification.
	Ctime  time.Time // Time of last modification to the inode itself.
	Crtime time.Time // Time of creation (macOS only).

	// Ownership information.
	UID uint32
	GID uint32

	// The device number, for device special files (Rdev in struct stat).
	Rdev uint32
}

// ChildInodeEntry groups the information the kernel needs to add a dentry
// to its cache. The reply builders do not take it directly: ReplyEntry and
// ReplyCreate take the relative TTL, the wire attributes, the node id and
// the generation as separate arguments.
type ChildInodeEntry struct {
	Child      InodeID
	Generation GenerationNumber

	Attributes InodeAttributes

	// The amount of time the kernel may cache these attributes and this
	// entry before re-validating, expressed as an absolute deadline;
	// Dispatcher.TTL converts such a deadline to the relative TTL the reply
	// builders take.
	AttributesExpiration time.Time
	EntryExpiration      time.Time
}

// DirentType is the kind of a directory entry, the POSIX d_type values
// used when packing fuse_dirent records.
type DirentType uint32

const (
	DT_Unknown DirentType = 0
	DT_FIFO    DirentType = 1
	DT_Chr     DirentType = 2
	DT_Dir     DirentType = 4
	DT_Blk     DirentType = 6
	DT_Reg     DirentType = 8
	DT_Lnk     DirentType = 10
	DT_Sock    DirentType = 12
)

// Dirent is one entry in a ReadDir response.
type Dirent struct {
	Offset DirOffset
	Inode  InodeID
	Name   string
	Type   DirentType
}
