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

// Package hellofs is a fixed, read-only file system used to exercise a
// mount end to end:
//
//	hello
//	dir/
//	    world
//
// Each file contains the string "Hello, world!".
package hellofs

import (
	"context"
	"io"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/jacobsa/timeutil"

	fuse "github.com/go-fuse/corefuse"
	"github.com/go-fuse/corefuse/fuseops"
	"github.com/go-fuse/corefuse/fuseutil"
	"github.com/go-fuse/corefuse/internal/protocol"
)

const attrTTL = time.Minute

const (
	rootInode fuseops.InodeID = fuseops.RootInodeID + iota
	helloInode
	dirInode
	worldInode
)

type dirent struct {
	inode fuseops.InodeID
	name  string
	kind  protocol.DirentType
}

type inodeInfo struct {
	attr     fuseops.InodeAttributes
	dir      bool
	children []dirent
}

// HelloFS implements fuse.FileSystem over the fixed structure above.
// Everything not overridden here answers ENOSYS via the embedded
// NotImplementedFileSystem.
type HelloFS struct {
	fuseutil.NotImplementedFileSystem
	Clock timeutil.Clock

	inodes map[fuseops.InodeID]inodeInfo
}

var _ fuse.FileSystem = &HelloFS{}

// New builds a ready-to-mount HelloFS.
func New(clock timeutil.Clock) *HelloFS {
	return &HelloFS{
		Clock: clock,
		inodes: map[fuseops.InodeID]inodeInfo{
			rootInode: {
				attr: fuseops.InodeAttributes{Nlink: 1, Mode: 0555 | os.ModeDir},
				dir:  true,
				children: []dirent{
					{inode: helloInode, name: "hello", kind: protocol.DT_Reg},
					{inode: dirInode, name: "dir", kind: protocol.DT_Dir},
				},
			},
			helloInode: {
				attr: fuseops.InodeAttributes{Nlink: 1, Mode: 0444, Size: uint64(len("Hello, world!"))},
			},
			dirInode: {
				attr: fuseops.InodeAttributes{Nlink: 1, Mode: 0555 | os.ModeDir},
				dir:  true,
				children: []dirent{
					{inode: worldInode, name: "world", kind: protocol.DT_Reg},
				},
			},
			worldInode: {
				attr: fuseops.InodeAttributes{Nlink: 1, Mode: 0444, Size: uint64(len("Hello, world!"))},
			},
		},
	}
}

func (fs *HelloFS) patch(attr *fuseops.InodeAttributes) {
	now := fs.Clock.Now()
	attr.Atime = now
	attr.Mtime = now
	attr.Crtime = now
}

func (fs *HelloFS) Init(ctx context.Context, req *fuse.InitRequest) error {
	return nil
}

func (fs *HelloFS) LookUp(ctx context.Context, req *fuse.LookUpRequest, reply fuse.ReplyEntry) {
	parent, ok := fs.inodes[req.Parent]
	if !ok {
		reply.Error(syscall.ENOENT)
		return
	}

	for _, c := range parent.children {
		if c.name == req.Name {
			info := fs.inodes[c.inode]
			attr := info.attr
			fs.patch(&attr)
			reply.Entry(attrTTL, fuseops.ConvertAttributes(c.inode, attr), uint64(c.inode), 1)
			return
		}
	}

	reply.Error(syscall.ENOENT)
}

func (fs *HelloFS) GetAttr(ctx context.Context, req *fuse.GetAttrRequest, reply fuse.ReplyAttr) {
	info, ok := fs.inodes[req.Inode]
	if !ok {
		reply.Error(syscall.ENOENT)
		return
	}

	attr := info.attr
	fs.patch(&attr)
	reply.Attr(attrTTL, fuseops.ConvertAttributes(req.Inode, attr))
}

func (fs *HelloFS) OpenDir(ctx context.Context, req *fuse.OpenDirRequest, reply fuse.ReplyOpen) {
	if _, ok := fs.inodes[req.Inode]; !ok {
		reply.Error(syscall.ENOENT)
		return
	}
	reply.Opened(0, 0)
}

func (fs *HelloFS) ReadDir(ctx context.Context, req *fuse.ReadDirRequest, reply *fuse.ReplyDirectory) {
	info, ok := fs.inodes[req.Inode]
	if !ok {
		reply.Error(syscall.ENOENT)
		return
	}
	if !info.dir {
		reply.Error(syscall.ENOTDIR)
		return
	}

	children := info.children
	if int(req.Offset) > len(children) {
		reply.Error(syscall.EIO)
		return
	}

	for i, c := range children[req.Offset:] {
		next := uint64(req.Offset) + uint64(i) + 1
		if !reply.Add(uint64(c.inode), next, c.kind, c.name) {
			break
		}
	}

	reply.Ok()
}

func (fs *HelloFS) Open(ctx context.Context, req *fuse.OpenRequest, reply fuse.ReplyOpen) {
	if _, ok := fs.inodes[req.Inode]; !ok {
		reply.Error(syscall.ENOENT)
		return
	}
	reply.Opened(0, 0)
}

func (fs *HelloFS) Read(ctx context.Context, req *fuse.ReadRequest, reply fuse.ReplyData) {
	reader := strings.NewReader("Hello, world!")

	buf := make([]byte, req.Size)
	n, err := reader.ReadAt(buf, req.Offset)
	if err != nil && err != io.EOF {
		reply.Error(syscall.EIO)
		return
	}

	reply.Data(buf[:n])
}
