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

// Package protocol is the versioned external schema this library speaks to
// the kernel: the fixed in/out headers, opcode numbers, and per-opcode wire
// structures of the FUSE ABI. None of it is specific to any one file
// system's semantics; it is the same for every caller of the package above.
package protocol

// MaxWriteSize is the largest write we ever advertise to the kernel via
// InitOut.MaxWrite, and the size the request buffer is sized around
// (plus headroom for the fixed argument structs that precede a payload).
const MaxWriteSize = 16 * 1024 * 1024

// HeaderPadding is the slop added on top of MaxWriteSize when sizing the
// shared request buffer, to hold the in-header and the largest per-opcode
// argument struct in addition to a MaxWriteSize payload.
const HeaderPadding = 4096

// Protocol is a (major, minor) ABI version pair.
type Protocol struct {
	Major uint32
	Minor uint32
}

func (p Protocol) LT(o Protocol) bool {
	return p.Major < o.Major || (p.Major == o.Major && p.Minor < o.Minor)
}

// Minimum and maximum ABI versions this package understands. Per spec,
// anything below 7.6 is rejected; anything above MaxMajor/MaxMinor is
// downgraded to what we speak.
const (
	MinMajor = 7
	MinMinor = 6

	MaxMajor = 7
	MaxMinor = 31
)

// Opcode identifies the kind of a request's payload.
type Opcode uint32

const (
	OpLookup      Opcode = 1
	OpForget      Opcode = 2
	OpGetattr     Opcode = 3
	OpSetattr     Opcode = 4
	OpReadlink    Opcode = 5
	OpSymlink     Opcode = 6
	OpMknod       Opcode = 8
	OpMkdir       Opcode = 9
	OpUnlink      Opcode = 10
	OpRmdir       Opcode = 11
	OpRename      Opcode = 12
	OpLink        Opcode = 13
	OpOpen        Opcode = 14
	OpRead        Opcode = 15
	OpWrite       Opcode = 16
	OpStatfs      Opcode = 17
	OpRelease     Opcode = 18
	OpFsync       Opcode = 20
	OpSetxattr    Opcode = 21
	OpGetxattr    Opcode = 22
	OpListxattr   Opcode = 23
	OpRemovexattr Opcode = 24
	OpFlush       Opcode = 25
	OpInit        Opcode = 26
	OpOpendir     Opcode = 27
	OpReaddir     Opcode = 28
	OpReleasedir  Opcode = 29
	OpFsyncdir    Opcode = 30
	OpGetlk       Opcode = 31
	OpSetlk       Opcode = 32
	OpSetlkw      Opcode = 33
	OpAccess      Opcode = 34
	OpCreate      Opcode = 35
	OpInterrupt   Opcode = 36
	OpBmap        Opcode = 37
	OpDestroy     Opcode = 38

	// macOS-only (osxfuse) opcodes. Never decoded on non-Darwin targets.
	OpSetvolname Opcode = 61
	OpGetxtimes  Opcode = 62
	OpExchange   Opcode = 63
)

func (op Opcode) String() string {
	if s, ok := opcodeNames[op]; ok {
		return s
	}
	return "Unknown"
}

var opcodeNames = map[Opcode]string{
	OpLookup: "Lookup", OpForget: "Forget", OpGetattr: "Getattr",
	OpSetattr: "Setattr", OpReadlink: "Readlink", OpSymlink: "Symlink",
	OpMknod: "Mknod", OpMkdir: "Mkdir", OpUnlink: "Unlink", OpRmdir: "Rmdir",
	OpRename: "Rename", OpLink: "Link", OpOpen: "Open", OpRead: "Read",
	OpWrite: "Write", OpStatfs: "Statfs", OpRelease: "Release",
	OpFsync: "Fsync", OpSetxattr: "Setxattr", OpGetxattr: "Getxattr",
	OpListxattr: "Listxattr", OpRemovexattr: "Removexattr", OpFlush: "Flush",
	OpInit: "Init", OpOpendir: "Opendir", OpReaddir: "Readdir",
	OpReleasedir: "Releasedir", OpFsyncdir: "Fsyncdir", OpGetlk: "Getlk",
	OpSetlk: "Setlk", OpSetlkw: "Setlkw", OpAccess: "Access",
	OpCreate: "Create", OpInterrupt: "Interrupt", OpBmap: "Bmap",
	OpDestroy: "Destroy", OpSetvolname: "Setvolname", OpGetxtimes: "Getxtimes",
	OpExchange: "Exchange",
}

// InitFlags are bits negotiated during INIT. Only the ones this library
// understands are named; unknown bits the kernel sets are preserved in the
// raw field but never echoed back unless named here.
type InitFlags uint32

const (
	InitAsyncRead       InitFlags = 1 << 0
	InitCaseInsensitive InitFlags = 1 << 6 // macOS only
	InitVolRename       InitFlags = 1 << 7 // macOS only
	InitXtimes          InitFlags = 1 << 8 // macOS only
)

// DirentType mirrors the POSIX d_type values used when packing
// fuse_dirent/readdir entries. Defined by the VFS, not by FUSE itself.
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

// InHeaderSize is the encoded size of InHeader on the wire.
const InHeaderSize = 40

// InHeader is the fixed preamble of every request the kernel sends.
type InHeader struct {
	Length  uint32
	Opcode  Opcode
	Unique  uint64
	NodeID  uint64
	UID     uint32
	GID     uint32
	PID     uint32
	Padding uint32
}

// OutHeaderSize is the encoded size of OutHeader on the wire.
const OutHeaderSize = 16

// OutHeader is the fixed preamble of every reply sent to the kernel.
type OutHeader struct {
	Length uint32
	Error  int32
	Unique uint64
}
