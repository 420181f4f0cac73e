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
	"errors"
	"fmt"
	"log"
	"runtime"
	"syscall"
	"time"

	"github.com/jacobsa/gcloud/syncutil"
	"github.com/jacobsa/reqtrace"
	"github.com/jacobsa/timeutil"

	"github.com/go-fuse/corefuse/fuseops"
	"github.com/go-fuse/corefuse/internal/protocol"
)

// connState is the lifecycle of one mount's connection, gating which
// opcodes the dispatcher will accept (spec.md's state table: Init must come
// before anything else and is handled again if the kernel re-sends it
// while initialized; Destroy is only valid once, after which every further
// op, Init included, is rejected with EIO).
type connState int

const (
	stateUninitialized connState = iota
	stateInitialized
	stateDestroyed
)

// Dispatcher decodes raw kernel messages and invokes the matching
// FileSystem method, enforcing the INIT/DESTROY state machine and
// building the exactly-once Reply each method is handed. One Dispatcher
// serves exactly one mount; it is not safe for concurrent Dispatch
// calls (there's only ever one reader of the connection) but the
// FileSystem methods it invokes may run concurrently with each other once
// dispatched.
type Dispatcher struct {
	fs     FileSystem
	sender *Sender

	debugLogger *log.Logger
	errorLogger *log.Logger

	// now is injected so TTL computations in tests don't depend on the wall
	// clock; defaults to the real clock outside of tests.
	now timeutil.Clock

	mu       syncutil.InvariantMutex
	state    connState
	maxState connState
}

// NewDispatcher builds a Dispatcher for fs, replying on sender and logging
// through the given loggers (either may be nil to disable that stream).
func NewDispatcher(fs FileSystem, sender *Sender, debugLogger, errorLogger *log.Logger) *Dispatcher {
	d := &Dispatcher{
		fs:          fs,
		sender:      sender,
		debugLogger: debugLogger,
		errorLogger: errorLogger,
		now:         timeutil.RealClock(),
	}
	d.mu = syncutil.NewInvariantMutex(d.checkInvariants)
	return d
}

// checkInvariants enforces that state never regresses: uninitialized ->
// initialized -> destroyed is the only legal path.
func (d *Dispatcher) checkInvariants() {
	if d.state < d.maxState {
		panic(fmt.Sprintf("connState regressed from %v to %v", d.maxState, d.state))
	}
	d.maxState = d.state
}

// TTL converts an absolute cache-expiration deadline into the relative
// duration ReplyAttr/ReplyEntry/ReplyCreate want, using the Dispatcher's
// injected clock so a test can control what "now" means without the
// conversion itself needing a test double of its own.
func (d *Dispatcher) TTL(expiration time.Time) time.Duration {
	ttl := expiration.Sub(d.now.Now())
	if ttl < 0 {
		ttl = 0
	}
	return ttl
}

func (d *Dispatcher) connState() connState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) setConnState(s connState) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
}

// Dispatch decodes one raw kernel message (as read by Channel.Receive) and
// invokes the corresponding FileSystem method, or replies with EIO/EPROTO
// itself when state rules forbid the opcode.
func (d *Dispatcher) Dispatch(ctx context.Context, msg []byte) {
	if len(msg) < protocol.InHeaderSize {
		if d.errorLogger != nil {
			d.errorLogger.Printf("short message: %d bytes", len(msg))
		}
		return
	}

	header := protocol.DecodeInHeader(msg)
	body := msg[protocol.InHeaderSize:]
	if uint32(len(msg)) != header.Length {
		if d.errorLogger != nil {
			d.errorLogger.Printf(
				"length mismatch for request 0x%016x: header says %d, read %d",
				header.Unique, header.Length, len(msg))
		}
		return
	}

	reqHeader := fuseops.RequestHeader{
		Unique: header.Unique,
		UID:    header.UID,
		GID:    header.GID,
		PID:    header.PID,
	}

	state := d.connState()

	if header.Opcode != protocol.OpInit && state == stateUninitialized {
		if d.errorLogger != nil {
			d.errorLogger.Printf("op %v before init, rejecting", header.Opcode)
		}
		d.newEmptyReply(header.Unique, header.Opcode.String()).Error(EIO)
		return
	}
	if state == stateDestroyed {
		if d.errorLogger != nil {
			d.errorLogger.Printf("op %v after destroy, rejecting", header.Opcode)
		}
		d.newEmptyReply(header.Unique, header.Opcode.String()).Error(EIO)
		return
	}

	ctx, report := reqtrace.StartSpan(ctx, header.Opcode.String())
	defer report(nil)

	if d.debugLogger != nil {
		d.debugLogger.Printf("Op 0x%016x %s, node %d", header.Unique, header.Opcode, header.NodeID)
	}

	d.dispatchOp(ctx, header, reqHeader, body)
}

func (d *Dispatcher) dispatchOp(ctx context.Context, header protocol.InHeader, rh fuseops.RequestHeader, body []byte) {
	inode := fuseops.InodeID(header.NodeID)
	c := protocol.NewCursor(body)

	switch header.Opcode {
	case protocol.OpInit:
		d.handleInit(ctx, rh, c)

	case protocol.OpDestroy:
		d.fs.Destroy(ctx, &DestroyRequest{Header: rh})
		d.setConnState(stateDestroyed)
		d.newEmptyReply(header.Unique, "Destroy").Ok()

	case protocol.OpInterrupt:
		// Observed, not honored: the core has no cancellation-token map to
		// interrupt against, so every INTERRUPT is answered ENOSYS and the
		// original request runs to completion.
		d.newEmptyReply(header.Unique, "Interrupt").Error(ENOSYS)

	case protocol.OpLookup:
		name, _ := c.CString()
		d.fs.LookUp(ctx, &LookUpRequest{Header: rh, Parent: inode, Name: name}, d.replyEntry(header.Unique))

	case protocol.OpForget:
		nlookup, _ := c.Uint64()
		d.fs.Forget(ctx, &ForgetRequest{Header: rh, Inode: inode, N: nlookup})

	case protocol.OpGetattr:
		d.fs.GetAttr(ctx, &GetAttrRequest{Header: rh, Inode: inode}, d.replyAttr(header.Unique))

	case protocol.OpSetattr:
		req := d.decodeSetAttr(rh, inode, c)
		d.fs.SetAttr(ctx, req, d.replyAttr(header.Unique))

	case protocol.OpReadlink:
		d.fs.ReadLink(ctx, &ReadLinkRequest{Header: rh, Inode: inode}, d.replyData(header.Unique))

	case protocol.OpMknod:
		mode, _ := c.Uint32()
		rdev, _ := c.Uint32()
		c.Skip(8) // umask, padding depending on minor version; best-effort
		name, _ := c.CString()
		d.fs.MkNod(ctx, &MkNodRequest{Header: rh, Parent: inode, Name: name, Mode: mode, Rdev: rdev}, d.replyEntry(header.Unique))

	case protocol.OpMkdir:
		mode, _ := c.Uint32()
		c.Skip(4) // umask
		name, _ := c.CString()
		d.fs.MkDir(ctx, &MkDirRequest{Header: rh, Parent: inode, Name: name, Mode: mode}, d.replyEntry(header.Unique))

	case protocol.OpUnlink:
		name, _ := c.CString()
		d.fs.Unlink(ctx, &UnlinkRequest{Header: rh, Parent: inode, Name: name}, d.replyEmpty(header.Unique))

	case protocol.OpRmdir:
		name, _ := c.CString()
		d.fs.RmDir(ctx, &RmDirRequest{Header: rh, Parent: inode, Name: name}, d.replyEmpty(header.Unique))

	case protocol.OpSymlink:
		name, _ := c.CString()
		target, _ := c.CString()
		d.fs.Symlink(ctx, &SymlinkRequest{Header: rh, Parent: inode, Name: name, Target: target}, d.replyEntry(header.Unique))

	case protocol.OpRename:
		newdir, _ := c.Uint64()
		oldname, _ := c.CString()
		newname, _ := c.CString()
		d.fs.Rename(ctx, &RenameRequest{
			Header: rh, OldDir: inode, OldName: oldname,
			NewDir: fuseops.InodeID(newdir), NewName: newname,
		}, d.replyEmpty(header.Unique))

	case protocol.OpLink:
		oldnode, _ := c.Uint64()
		newname, _ := c.CString()
		d.fs.Link(ctx, &LinkRequest{Header: rh, Inode: fuseops.InodeID(oldnode), NewDir: inode, NewName: newname}, d.replyEntry(header.Unique))

	case protocol.OpOpen:
		flags, _ := c.Uint32()
		d.fs.Open(ctx, &OpenRequest{Header: rh, Inode: inode, Flags: flags}, d.replyOpen(header.Unique))

	case protocol.OpRead:
		fh, _ := c.Uint64()
		offset, _ := c.Uint64()
		size, _ := c.Uint32()
		d.fs.Read(ctx, &ReadRequest{
			Header: rh, Inode: inode, Handle: fuseops.HandleID(fh),
			Offset: int64(offset), Size: size,
		}, d.replyData(header.Unique))

	case protocol.OpWrite:
		fh, _ := c.Uint64()
		offset, _ := c.Uint64()
		size, _ := c.Uint32()
		c.Skip(20) // write_flags(4) + lock_owner(8) + flags(4) + padding(4)
		data, _ := c.Take(int(size))
		d.fs.Write(ctx, &WriteRequest{
			Header: rh, Inode: inode, Handle: fuseops.HandleID(fh),
			Offset: int64(offset), Data: data,
		}, d.replyWrite(header.Unique))

	case protocol.OpFlush:
		fh, _ := c.Uint64()
		d.fs.Flush(ctx, &FlushRequest{Header: rh, Inode: inode, Handle: fuseops.HandleID(fh)}, d.replyEmpty(header.Unique))

	case protocol.OpRelease:
		fh, _ := c.Uint64()
		c.Skip(4) // flags
		relFlags, _ := c.Uint32()
		d.fs.Release(ctx, &ReleaseRequest{
			Header: rh, Inode: inode, Handle: fuseops.HandleID(fh),
			Flush: relFlags&1 != 0,
		}, d.replyEmpty(header.Unique))

	case protocol.OpFsync:
		fh, _ := c.Uint64()
		flags, _ := c.Uint32()
		d.fs.Fsync(ctx, &FsyncRequest{Header: rh, Inode: inode, Handle: fuseops.HandleID(fh), Datasync: flags&1 != 0}, d.replyEmpty(header.Unique))

	case protocol.OpOpendir:
		flags, _ := c.Uint32()
		d.fs.OpenDir(ctx, &OpenDirRequest{Header: rh, Inode: inode, Flags: flags}, d.replyOpen(header.Unique))

	case protocol.OpReaddir:
		fh, _ := c.Uint64()
		offset, _ := c.Uint64()
		size, _ := c.Uint32()
		reply := newReplyDirectory(d.newCore(header.Unique, "Readdir"), int(size))
		d.fs.ReadDir(ctx, &ReadDirRequest{
			Header: rh, Inode: inode, Handle: fuseops.HandleID(fh),
			Offset: fuseops.DirOffset(offset), Size: size,
		}, reply)

	case protocol.OpReleasedir:
		fh, _ := c.Uint64()
		d.fs.ReleaseDir(ctx, &ReleaseDirRequest{Header: rh, Inode: inode, Handle: fuseops.HandleID(fh)}, d.replyEmpty(header.Unique))

	case protocol.OpFsyncdir:
		fh, _ := c.Uint64()
		flags, _ := c.Uint32()
		d.fs.FsyncDir(ctx, &FsyncDirRequest{Header: rh, Inode: inode, Handle: fuseops.HandleID(fh), Datasync: flags&1 != 0}, d.replyEmpty(header.Unique))

	case protocol.OpStatfs:
		d.fs.StatFs(ctx, &StatFsRequest{Header: rh}, d.replyStatfs(header.Unique))

	case protocol.OpSetxattr:
		size, _ := c.Uint32()
		flags, _ := c.Uint32()
		name, _ := c.CString()
		value, _ := c.Take(int(size))
		d.fs.SetXattr(ctx, &SetXattrRequest{Header: rh, Inode: inode, Name: name, Value: value, Flags: flags}, d.replyEmpty(header.Unique))

	case protocol.OpGetxattr:
		size, _ := c.Uint32()
		c.Skip(4)
		name, _ := c.CString()
		d.fs.GetXattr(ctx, &GetXattrRequest{Header: rh, Inode: inode, Name: name, Size: size}, d.replyXattr(header.Unique))

	case protocol.OpListxattr:
		size, _ := c.Uint32()
		c.Skip(4)
		d.fs.ListXattr(ctx, &ListXattrRequest{Header: rh, Inode: inode, Size: size}, d.replyXattr(header.Unique))

	case protocol.OpRemovexattr:
		name, _ := c.CString()
		d.fs.RemoveXattr(ctx, &RemoveXattrRequest{Header: rh, Inode: inode, Name: name}, d.replyEmpty(header.Unique))

	case protocol.OpAccess:
		mask, _ := c.Uint32()
		d.fs.Access(ctx, &AccessRequest{Header: rh, Inode: inode, Mask: mask}, d.replyEmpty(header.Unique))

	case protocol.OpCreate:
		flags, _ := c.Uint32()
		mode, _ := c.Uint32()
		c.Skip(4) // umask
		name, _ := c.CString()
		d.fs.Create(ctx, &CreateRequest{Header: rh, Parent: inode, Name: name, Mode: mode, Flags: flags}, d.replyCreate(header.Unique))

	case protocol.OpGetlk:
		fh, _ := c.Uint64()
		lock := decodeLockArg(c)
		d.fs.GetLk(ctx, &GetLkRequest{Header: rh, Inode: inode, Handle: fuseops.HandleID(fh), Lock: lock}, d.replyLock(header.Unique))

	case protocol.OpSetlk, protocol.OpSetlkw:
		fh, _ := c.Uint64()
		lock := decodeLockArg(c)
		d.fs.SetLk(ctx, &SetLkRequest{
			Header: rh, Inode: inode, Handle: fuseops.HandleID(fh), Lock: lock,
			Block: header.Opcode == protocol.OpSetlkw,
		}, d.replyEmpty(header.Unique))

	case protocol.OpBmap:
		block, _ := c.Uint64()
		blocksize, _ := c.Uint32()
		d.fs.Bmap(ctx, &BmapRequest{Header: rh, Inode: inode, Block: block, BlockSize: blocksize}, d.replyBmap(header.Unique))

	case protocol.OpSetvolname, protocol.OpGetxtimes, protocol.OpExchange:
		d.dispatchMacOp(ctx, header, rh, inode, c)

	default:
		d.newEmptyReply(header.Unique, header.Opcode.String()).Error(ENOSYS)
	}
}

// dispatchMacOp handles the macOS-only opcodes, gated at runtime on GOOS
// and on the FileSystem actually implementing MacFileSystem rather than
// on a build tag: the kernel only ever sends these opcodes to a mount
// established through osxfuse, so the check is defensive rather than load
// bearing, but it keeps this file the single place that knows about them.
func (d *Dispatcher) dispatchMacOp(ctx context.Context, header protocol.InHeader, rh fuseops.RequestHeader, inode fuseops.InodeID, c *protocol.Cursor) {
	if runtime.GOOS != "darwin" {
		d.newEmptyReply(header.Unique, header.Opcode.String()).Error(ENOSYS)
		return
	}
	mac, ok := d.fs.(MacFileSystem)
	if !ok {
		d.newEmptyReply(header.Unique, header.Opcode.String()).Error(ENOSYS)
		return
	}

	switch header.Opcode {
	case protocol.OpSetvolname:
		name, _ := c.CString()
		mac.SetVolName(ctx, &SetVolNameRequest{Header: rh, Name: name}, d.replyEmpty(header.Unique))
	case protocol.OpGetxtimes:
		mac.GetXTimes(ctx, &GetXTimesRequest{Header: rh, Inode: inode}, d.replyXTimes(header.Unique))
	case protocol.OpExchange:
		ino1, _ := c.Uint64()
		ino2, _ := c.Uint64()
		options, _ := c.Uint64()
		mac.Exchange(ctx, &ExchangeRequest{
			Header: rh, Inode1: fuseops.InodeID(ino1), Inode2: fuseops.InodeID(ino2), Options: options,
		}, d.replyEmpty(header.Unique))
	}
}

func (d *Dispatcher) decodeSetAttr(rh fuseops.RequestHeader, inode fuseops.InodeID, c *protocol.Cursor) *SetAttrRequest {
	const (
		fattrMode  = 1 << 0
		fattrSize  = 1 << 3
		fattrAtime = 1 << 4
		fattrMtime = 1 << 5
		fattrFh    = 1 << 6
	)

	valid, _ := c.Uint32()
	c.Skip(4) // padding
	fh, _ := c.Uint64()
	size, _ := c.Uint64()
	c.Skip(8) // lock_owner
	atimeSec, _ := c.Uint64()
	mtimeSec, _ := c.Uint64()
	c.Skip(8) // unused2
	atimeNsec, _ := c.Uint32()
	mtimeNsec, _ := c.Uint32()
	c.Skip(4) // unused3
	mode, _ := c.Uint32()
	c.Skip(4) // unused4
	uid, _ := c.Uint32()
	gid, _ := c.Uint32()
	_ = uid
	_ = gid

	req := &SetAttrRequest{Header: rh, Inode: inode}

	if valid&fattrSize != 0 {
		req.Size = &size
	}
	if valid&fattrMode != 0 {
		req.Mode = &mode
	}
	if valid&fattrAtime != 0 {
		t := time.Unix(int64(atimeSec), int64(atimeNsec))
		req.Atime = &t
	}
	if valid&fattrMtime != 0 {
		t := time.Unix(int64(mtimeSec), int64(mtimeNsec))
		req.Mtime = &t
	}
	if valid&fattrFh != 0 {
		handle := fuseops.HandleID(fh)
		req.Handle = &handle
	}

	return req
}

func decodeLockArg(c *protocol.Cursor) LockDescription {
	start, _ := c.Uint64()
	end, _ := c.Uint64()
	typ, _ := c.Uint32()
	pid, _ := c.Uint32()
	return LockDescription{Start: start, End: end, Type: typ, PID: pid}
}

// handleInit negotiates the ABI version and composes the kernel-facing
// feature flags before flipping the connection to initialized. A reply is
// always sent, even on failure: either an EPROTO error for an ABI version
// below 7.6, or the errno the embedding file system's Init returned (EIO
// when that error is not a syscall.Errno), or the negotiated InitOut.
func (d *Dispatcher) handleInit(ctx context.Context, rh fuseops.RequestHeader, c *protocol.Cursor) {
	major, _ := c.Uint32()
	minor, _ := c.Uint32()
	maxReadahead, _ := c.Uint32()
	flags, _ := c.Uint32()

	reply := ReplyRaw[protocol.InitOut]{core: d.newCore(rh.Unique, "Init"), encode: protocol.EncodeInitOut}

	if major < protocol.MinMajor || (major == protocol.MinMajor && minor < protocol.MinMinor) {
		reply.Error(EPROTO)
		return
	}

	req := &InitRequest{Header: rh, Major: major, Minor: minor, MaxReadahead: maxReadahead, KernelFlags: flags}
	if err := d.fs.Init(ctx, req); err != nil {
		errno := EIO
		var e syscall.Errno
		if errors.As(err, &e) {
			errno = e
		}
		reply.Error(errno)
		return
	}

	supported := uint32(protocol.InitAsyncRead)
	if runtime.GOOS == "darwin" {
		supported |= uint32(protocol.InitCaseInsensitive | protocol.InitVolRename | protocol.InitXtimes)
	}

	negotiatedMajor := major
	if negotiatedMajor > protocol.MaxMajor {
		negotiatedMajor = protocol.MaxMajor
	}

	reply.Ok(protocol.InitOut{
		Major:        negotiatedMajor,
		Minor:        protocol.MaxMinor,
		MaxReadahead: maxReadahead,
		Flags:        flags & supported,
		MaxWrite:     protocol.MaxWriteSize,
	})
	d.setConnState(stateInitialized)
}

////////////////////////////////////////////////////////////////////////
// Reply constructors
////////////////////////////////////////////////////////////////////////

func (d *Dispatcher) newCore(unique uint64, opName string) *replyCore {
	return newReplyCore(unique, opName, d.sender, d.debugLogger, d.errorLogger)
}

func (d *Dispatcher) newEmptyReply(unique uint64, opName string) ReplyEmpty {
	return ReplyEmpty{core: d.newCore(unique, opName)}
}

func (d *Dispatcher) replyEmpty(unique uint64) ReplyEmpty { return d.newEmptyReply(unique, "reply") }
func (d *Dispatcher) replyAttr(unique uint64) ReplyAttr   { return ReplyAttr{core: d.newCore(unique, "Attr")} }
func (d *Dispatcher) replyEntry(unique uint64) ReplyEntry { return ReplyEntry{core: d.newCore(unique, "Entry")} }
func (d *Dispatcher) replyData(unique uint64) ReplyData   { return ReplyData{core: d.newCore(unique, "Data")} }
func (d *Dispatcher) replyOpen(unique uint64) ReplyOpen   { return ReplyOpen{core: d.newCore(unique, "Open")} }
func (d *Dispatcher) replyWrite(unique uint64) ReplyWrite { return ReplyWrite{core: d.newCore(unique, "Write")} }
func (d *Dispatcher) replyCreate(unique uint64) ReplyCreate {
	return ReplyCreate{core: d.newCore(unique, "Create")}
}
func (d *Dispatcher) replyStatfs(unique uint64) ReplyStatfs {
	return ReplyStatfs{core: d.newCore(unique, "Statfs")}
}
func (d *Dispatcher) replyXattr(unique uint64) ReplyXattr {
	return ReplyXattr{core: d.newCore(unique, "Xattr")}
}
func (d *Dispatcher) replyLock(unique uint64) ReplyLock { return ReplyLock{core: d.newCore(unique, "Lock")} }
func (d *Dispatcher) replyBmap(unique uint64) ReplyBmap { return ReplyBmap{core: d.newCore(unique, "Bmap")} }
func (d *Dispatcher) replyXTimes(unique uint64) ReplyXTimes {
	return ReplyXTimes{core: d.newCore(unique, "XTimes")}
}
