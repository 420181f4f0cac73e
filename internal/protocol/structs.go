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

package protocol

// Attr is the fuse_attr structure: everything the kernel's inode cache
// needs about one file.
type Attr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	Nlink     uint32
	UID       uint32
	GID       uint32
	Rdev      uint32
	Blksize   uint32
}

func (a Attr) encode(e *Encoder) {
	e.PutUint64(a.Ino)
	e.PutUint64(a.Size)
	e.PutUint64(a.Blocks)
	e.PutUint64(a.Atime)
	e.PutUint64(a.Mtime)
	e.PutUint64(a.Ctime)
	e.PutUint32(a.AtimeNsec)
	e.PutUint32(a.MtimeNsec)
	e.PutUint32(a.CtimeNsec)
	e.PutUint32(a.Mode)
	e.PutUint32(a.Nlink)
	e.PutUint32(a.UID)
	e.PutUint32(a.GID)
	e.PutUint32(a.Rdev)
	e.PutUint32(a.Blksize)
	e.PutUint32(0) // padding
}

// EntryOut is the fuse_entry_out structure, the reply to Lookup/Mkdir/
// Symlink/Link/Mknod/Create's entry half.
type EntryOut struct {
	Nodeid         uint64
	Generation     uint64
	EntryValid     uint64
	AttrValid      uint64
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           Attr
}

func EncodeEntryOut(e *Encoder, o EntryOut) {
	e.PutUint64(o.Nodeid)
	e.PutUint64(o.Generation)
	e.PutUint64(o.EntryValid)
	e.PutUint64(o.AttrValid)
	e.PutUint32(o.EntryValidNsec)
	e.PutUint32(o.AttrValidNsec)
	o.Attr.encode(e)
}

// AttrOut is the fuse_attr_out structure.
type AttrOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	Attr          Attr
}

func EncodeAttrOut(e *Encoder, o AttrOut) {
	e.PutUint64(o.AttrValid)
	e.PutUint32(o.AttrValidNsec)
	e.PutUint32(0) // padding
	o.Attr.encode(e)
}

// OpenOut is the fuse_open_out structure.
type OpenOut struct {
	Fh        uint64
	OpenFlags uint32
}

func EncodeOpenOut(e *Encoder, o OpenOut) {
	e.PutUint64(o.Fh)
	e.PutUint32(o.OpenFlags)
	e.PutUint32(0) // padding
}

// WriteOut is the fuse_write_out structure.
type WriteOut struct {
	Size uint32
}

func EncodeWriteOut(e *Encoder, o WriteOut) {
	e.PutUint32(o.Size)
	e.PutUint32(0) // padding
}

// StatfsOut is the fuse_kstatfs structure.
type StatfsOut struct {
	Blocks  uint64
	Bfree   uint64
	Bavail  uint64
	Files   uint64
	Ffree   uint64
	Bsize   uint32
	NameLen uint32
	Frsize  uint32
}

func EncodeStatfsOut(e *Encoder, o StatfsOut) {
	e.PutUint64(o.Blocks)
	e.PutUint64(o.Bfree)
	e.PutUint64(o.Bavail)
	e.PutUint64(o.Files)
	e.PutUint64(o.Ffree)
	e.PutUint32(o.Bsize)
	e.PutUint32(o.NameLen)
	e.PutUint32(o.Frsize)
	e.PutUint32(0) // padding
	e.PutUint64(0) // spare[2]
	e.PutUint64(0)
}

// GetxattrOut is the fuse_getxattr_out structure used by the size-query
// variant of Getxattr/Listxattr.
type GetxattrOut struct {
	Size uint32
}

func EncodeGetxattrOut(e *Encoder, o GetxattrOut) {
	e.PutUint32(o.Size)
	e.PutUint32(0) // padding
}

// FileLock mirrors fuse_file_lock/struct flock's relevant fields.
type FileLock struct {
	Start uint64
	End   uint64
	Type  uint32
	PID   uint32
}

func EncodeLkOut(e *Encoder, l FileLock) {
	e.PutUint64(l.Start)
	e.PutUint64(l.End)
	e.PutUint32(l.Type)
	e.PutUint32(l.PID)
}

// BmapOut is the fuse_bmap_out structure.
type BmapOut struct {
	Block uint64
}

func EncodeBmapOut(e *Encoder, o BmapOut) {
	e.PutUint64(o.Block)
}

// CreateOut is the reply to FUSE_CREATE: an EntryOut immediately followed
// by an OpenOut, sent as a single payload.
type CreateOut struct {
	Entry EntryOut
	Open  OpenOut
}

func EncodeCreateOut(e *Encoder, o CreateOut) {
	EncodeEntryOut(e, o.Entry)
	EncodeOpenOut(e, o.Open)
}

// XTimesOut is the macOS-only fuse_getxtimes_out structure.
type XTimesOut struct {
	Bkuptime     uint64
	Crtime       uint64
	BkuptimeNsec uint32
	CrtimeNsec   uint32
}

func EncodeXTimesOut(e *Encoder, o XTimesOut) {
	e.PutUint64(o.Bkuptime)
	e.PutUint64(o.Crtime)
	e.PutUint32(o.BkuptimeNsec)
	e.PutUint32(o.CrtimeNsec)
}

// InitOut is the fuse_init_out structure.
type InitOut struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32
	MaxWrite     uint32
}

func EncodeInitOut(e *Encoder, o InitOut) {
	e.PutUint32(o.Major)
	e.PutUint32(o.Minor)
	e.PutUint32(o.MaxReadahead)
	e.PutUint32(o.Flags)
	e.PutUint32(0) // max_background + congestion_threshold: two uint16s, unused
	e.PutUint32(o.MaxWrite)
}
