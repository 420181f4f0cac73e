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

package fuseutil

import (
	"context"
	"syscall"

	fuse "github.com/go-fuse/corefuse"
)

// NotImplementedFileSystem responds to every operation with ENOSYS. Embed it
// in a struct to inherit a default for every method so the struct keeps
// satisfying fuse.FileSystem as new methods are added, then override only
// what the file system actually supports.
type NotImplementedFileSystem struct{}

var _ fuse.FileSystem = &NotImplementedFileSystem{}

func (fs *NotImplementedFileSystem) Init(ctx context.Context, req *fuse.InitRequest) error {
	return syscall.ENOSYS
}

func (fs *NotImplementedFileSystem) Destroy(ctx context.Context, req *fuse.DestroyRequest) {}

func (fs *NotImplementedFileSystem) LookUp(ctx context.Context, req *fuse.LookUpRequest, reply fuse.ReplyEntry) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Forget(ctx context.Context, req *fuse.ForgetRequest) {}

func (fs *NotImplementedFileSystem) GetAttr(ctx context.Context, req *fuse.GetAttrRequest, reply fuse.ReplyAttr) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) SetAttr(ctx context.Context, req *fuse.SetAttrRequest, reply fuse.ReplyAttr) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) ReadLink(ctx context.Context, req *fuse.ReadLinkRequest, reply fuse.ReplyData) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) MkNod(ctx context.Context, req *fuse.MkNodRequest, reply fuse.ReplyEntry) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) MkDir(ctx context.Context, req *fuse.MkDirRequest, reply fuse.ReplyEntry) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Unlink(ctx context.Context, req *fuse.UnlinkRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) RmDir(ctx context.Context, req *fuse.RmDirRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Symlink(ctx context.Context, req *fuse.SymlinkRequest, reply fuse.ReplyEntry) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Rename(ctx context.Context, req *fuse.RenameRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Link(ctx context.Context, req *fuse.LinkRequest, reply fuse.ReplyEntry) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Open(ctx context.Context, req *fuse.OpenRequest, reply fuse.ReplyOpen) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Read(ctx context.Context, req *fuse.ReadRequest, reply fuse.ReplyData) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Write(ctx context.Context, req *fuse.WriteRequest, reply fuse.ReplyWrite) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Flush(ctx context.Context, req *fuse.FlushRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Release(ctx context.Context, req *fuse.ReleaseRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Fsync(ctx context.Context, req *fuse.FsyncRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) OpenDir(ctx context.Context, req *fuse.OpenDirRequest, reply fuse.ReplyOpen) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) ReadDir(ctx context.Context, req *fuse.ReadDirRequest, reply *fuse.ReplyDirectory) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) ReleaseDir(ctx context.Context, req *fuse.ReleaseDirRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) FsyncDir(ctx context.Context, req *fuse.FsyncDirRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) StatFs(ctx context.Context, req *fuse.StatFsRequest, reply fuse.ReplyStatfs) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) SetXattr(ctx context.Context, req *fuse.SetXattrRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) GetXattr(ctx context.Context, req *fuse.GetXattrRequest, reply fuse.ReplyXattr) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) ListXattr(ctx context.Context, req *fuse.ListXattrRequest, reply fuse.ReplyXattr) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) RemoveXattr(ctx context.Context, req *fuse.RemoveXattrRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Access(ctx context.Context, req *fuse.AccessRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Create(ctx context.Context, req *fuse.CreateRequest, reply fuse.ReplyCreate) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) GetLk(ctx context.Context, req *fuse.GetLkRequest, reply fuse.ReplyLock) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) SetLk(ctx context.Context, req *fuse.SetLkRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedFileSystem) Bmap(ctx context.Context, req *fuse.BmapRequest, reply fuse.ReplyBmap) {
	reply.Error(syscall.ENOSYS)
}

// NotImplementedMacFileSystem gives the same ENOSYS default for the
// macOS-only operations; embed it alongside NotImplementedFileSystem only in
// darwin-specific file systems, since fuse.MacFileSystem is never consulted
// on other platforms.
type NotImplementedMacFileSystem struct{}

var _ fuse.MacFileSystem = &NotImplementedMacFileSystem{}

func (fs *NotImplementedMacFileSystem) SetVolName(ctx context.Context, req *fuse.SetVolNameRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedMacFileSystem) GetXTimes(ctx context.Context, req *fuse.GetXTimesRequest, reply fuse.ReplyXTimes) {
	reply.Error(syscall.ENOSYS)
}

func (fs *NotImplementedMacFileSystem) Exchange(ctx context.Context, req *fuse.ExchangeRequest, reply fuse.ReplyEmpty) {
	reply.Error(syscall.ENOSYS)
}
