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
	"time"

	"github.com/go-fuse/corefuse/fuseops"
)

// FileSystem is the capability set a caller of Mount supplies. Each
// method is handed the parsed request arguments and a Reply builder that is
// the only way to answer the kernel; the dispatcher constructs exactly one
// Reply per request before invoking the matching method (spec.md §4.7-4.8).
//
// Every method has a default no-op implementation that replies ENOSYS;
// embed fuseutil.NotImplementedFileSystem to pick those up and override
// only what the file system actually supports. Init, Forget and Destroy
// take no Reply argument at all: Forget gets no reply, the dispatcher
// itself answers Destroy with OK once the method returns, and it builds
// the Init reply from Init's result.
//
// Implementations must be safe for concurrent use: the dispatcher invokes
// exactly one method at a time from the session loop, but a method may
// retain its Reply and hand it to another goroutine for asynchronous
// completion (spec.md §5), so two methods can have outstanding replies in
// flight concurrently.
type FileSystem interface {
	// Init is sent once, before any other operation, to negotiate the
	// protocol version and feature flags. The dispatcher has already
	// rejected ABI versions below 7.6 by the time this is called, and
	// composes the reply's negotiated fields after it returns; returning an
	// error here aborts the mount.
	Init(ctx context.Context, req *InitRequest) error

	// Destroy is sent once, when the kernel is tearing down the connection.
	// The method gets no Reply; the dispatcher replies OK after it returns.
	Destroy(ctx context.Context, req *DestroyRequest)

	LookUp(ctx context.Context, req *LookUpRequest, reply ReplyEntry)
	Forget(ctx context.Context, req *ForgetRequest)
	GetAttr(ctx context.Context, req *GetAttrRequest, reply ReplyAttr)
	SetAttr(ctx context.Context, req *SetAttrRequest, reply ReplyAttr)
	ReadLink(ctx context.Context, req *ReadLinkRequest, reply ReplyData)
	MkNod(ctx context.Context, req *MkNodRequest, reply ReplyEntry)
	MkDir(ctx context.Context, req *MkDirRequest, reply ReplyEntry)
	Unlink(ctx context.Context, req *UnlinkRequest, reply ReplyEmpty)
	RmDir(ctx context.Context, req *RmDirRequest, reply ReplyEmpty)
	Symlink(ctx context.Context, req *SymlinkRequest, reply ReplyEntry)
	Rename(ctx context.Context, req *RenameRequest, reply ReplyEmpty)
	Link(ctx context.Context, req *LinkRequest, reply ReplyEntry)

	Open(ctx context.Context, req *OpenRequest, reply ReplyOpen)
	Read(ctx context.Context, req *ReadRequest, reply ReplyData)
	Write(ctx context.Context, req *WriteRequest, reply ReplyWrite)
	Flush(ctx context.Context, req *FlushRequest, reply ReplyEmpty)
	Release(ctx context.Context, req *ReleaseRequest, reply ReplyEmpty)
	Fsync(ctx context.Context, req *FsyncRequest, reply ReplyEmpty)

	OpenDir(ctx context.Context, req *OpenDirRequest, reply ReplyOpen)
	ReadDir(ctx context.Context, req *ReadDirRequest, reply *ReplyDirectory)
	ReleaseDir(ctx context.Context, req *ReleaseDirRequest, reply ReplyEmpty)
	FsyncDir(ctx context.Context, req *FsyncDirRequest, reply ReplyEmpty)

	StatFs(ctx context.Context, req *StatFsRequest, reply ReplyStatfs)

	SetXattr(ctx context.Context, req *SetXattrRequest, reply ReplyEmpty)
	GetXattr(ctx context.Context, req *GetXattrRequest, reply ReplyXattr)
	ListXattr(ctx context.Context, req *ListXattrRequest, reply ReplyXattr)
	RemoveXattr(ctx context.Context, req *RemoveXattrRequest, reply ReplyEmpty)

	Access(ctx context.Context, req *AccessRequest, reply ReplyEmpty)
	Create(ctx context.Context, req *CreateRequest, reply ReplyCreate)

	GetLk(ctx context.Context, req *GetLkRequest, reply ReplyLock)
	SetLk(ctx context.Context, req *SetLkRequest, reply ReplyEmpty)

	Bmap(ctx context.Context, req *BmapRequest, reply ReplyBmap)
}

// MacFileSystem is implemented in addition to FileSystem by file systems
// that want the macOS-only operations dispatched. On non-Darwin builds the
// dispatcher never decodes these opcodes in the first place (spec.md §4.7,
// §4.8), so the interface costs nothing there.
type MacFileSystem interface {
	SetVolName(ctx context.Context, req *SetVolNameRequest, reply ReplyEmpty)
	GetXTimes(ctx context.Context, req *GetXTimesRequest, reply ReplyXTimes)
	Exchange(ctx context.Context, req *ExchangeRequest, reply ReplyEmpty)
}

// InitRequest carries the protocol version and the capability flags the
// kernel advertises, exactly as sent; the dispatcher has only checked that
// the version is at least 7.6.
type InitRequest struct {
	Header            fuseops.RequestHeader
	Major, Minor      uint32
	MaxReadahead      uint32
	KernelFlags       uint32
}

// DestroyRequest carries nothing beyond the common header.
type DestroyRequest struct {
	Header fuseops.RequestHeader
}

type LookUpRequest struct {
	Header fuseops.RequestHeader
	Parent fuseops.InodeID
	Name   string
}

// ForgetRequest tells the file system it may release any resources it
// associates with Inode; N is the number of lookups being forgotten at
// once (the kernel may batch these).
type ForgetRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	N      uint64
}

type GetAttrRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
}

// SetAttrRequest's optional fields are nil when the corresponding bit was
// not set in the kernel's validity mask (spec.md §4.7).
type SetAttrRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID

	Size  *uint64
	Mode  *uint32
	Atime *time.Time
	Mtime *time.Time

	// Handle is set when the kernel issued this as part of an ftruncate(2)
	// on an already-open file descriptor.
	Handle *fuseops.HandleID

	// macOS only.
	Crtime   *time.Time
	Chgtime  *time.Time
	Bkuptime *time.Time
}

type ReadLinkRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
}

type MkNodRequest struct {
	Header fuseops.RequestHeader
	Parent fuseops.InodeID
	Name   string
	Mode   uint32
	Rdev   uint32
}

type MkDirRequest struct {
	Header fuseops.RequestHeader
	Parent fuseops.InodeID
	Name   string
	Mode   uint32
}

type UnlinkRequest struct {
	Header fuseops.RequestHeader
	Parent fuseops.InodeID
	Name   string
}

type RmDirRequest struct {
	Header fuseops.RequestHeader
	Parent fuseops.InodeID
	Name   string
}

type SymlinkRequest struct {
	Header fuseops.RequestHeader
	Parent fuseops.InodeID
	Name   string
	Target string
}

type RenameRequest struct {
	Header   fuseops.RequestHeader
	OldDir   fuseops.InodeID
	OldName  string
	NewDir   fuseops.InodeID
	NewName  string
}

type LinkRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	NewDir fuseops.InodeID
	NewName string
}

type OpenRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Flags  uint32

	// The dispatcher builds OpenRequest only for Open; an opendir arrives
	// as a separate OpenDirRequest.
}

type ReadRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Handle fuseops.HandleID
	Offset int64
	Size   uint32
}

type WriteRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Handle fuseops.HandleID
	Offset int64
	Data   []byte
}

type FlushRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Handle fuseops.HandleID
}

type ReleaseRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Handle fuseops.HandleID

	// Flush is derived from the RELEASE_FLUSH bit (spec.md §4.7).
	Flush bool
}

type FsyncRequest struct {
	Header   fuseops.RequestHeader
	Inode    fuseops.InodeID
	Handle   fuseops.HandleID
	Datasync bool // derived from bit 0 of the kernel's fsync_flags.
}

type OpenDirRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Flags  uint32
}

type ReadDirRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Handle fuseops.HandleID
	Offset fuseops.DirOffset

	// Size is the caller's budget in bytes for packed fuse_dirent records;
	// it is also the size ReplyDirectory was constructed with.
	Size uint32
}

type ReleaseDirRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Handle fuseops.HandleID
}

type FsyncDirRequest struct {
	Header   fuseops.RequestHeader
	Inode    fuseops.InodeID
	Handle   fuseops.HandleID
	Datasync bool
}

type StatFsRequest struct {
	Header fuseops.RequestHeader
}

type SetXattrRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Name   string
	Value  []byte
	Flags  uint32
}

type GetXattrRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Name   string

	// Size is the size of the caller's buffer; zero means "tell me the
	// size first" (ReplyXattr.Size rather than ReplyXattr.Data).
	Size uint32
}

type ListXattrRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Size   uint32
}

type RemoveXattrRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Name   string
}

type AccessRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Mask   uint32
}

type CreateRequest struct {
	Header fuseops.RequestHeader
	Parent fuseops.InodeID
	Name   string
	Mode   uint32
	Flags  uint32
}

type GetLkRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Handle fuseops.HandleID
	Lock   LockDescription
}

type SetLkRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
	Handle fuseops.HandleID
	Lock   LockDescription

	// Block is true when this arrived as SETLKW (the blocking variant);
	// the core has no notion of waiting for a lock, so the file system
	// decides how to honor this itself.
	Block bool
}

// LockDescription mirrors struct flock's relevant fields as sent over the
// wire (spec.md's "Bitfield validity masks ... become optional values"
// does not apply here; every field of a lock request is always present).
type LockDescription struct {
	Start uint64
	End   uint64
	Type  uint32
	PID   uint32
}

type BmapRequest struct {
	Header    fuseops.RequestHeader
	Inode     fuseops.InodeID
	BlockSize uint32
	Block     uint64
}

// macOS-only request types.

type SetVolNameRequest struct {
	Header fuseops.RequestHeader
	Name   string
}

type GetXTimesRequest struct {
	Header fuseops.RequestHeader
	Inode  fuseops.InodeID
}

type ExchangeRequest struct {
	Header  fuseops.RequestHeader
	Inode1  fuseops.InodeID
	Inode2  fuseops.InodeID
	Options uint64
}
