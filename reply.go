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
	"log"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/go-fuse/corefuse/internal/protocol"
)

// replyCore is embedded by every typed Reply builder. It guarantees a
// request receives at most one response and logs (rather than enforces,
// per the design notes) the case where a callback drops a Reply without
// ever calling a terminal method.
type replyCore struct {
	unique uint64
	opName string
	sender *Sender

	debugLogger *log.Logger
	errorLogger *log.Logger

	mu      sync.Mutex
	replied bool
}

func newReplyCore(
	unique uint64,
	opName string,
	sender *Sender,
	debugLogger, errorLogger *log.Logger) *replyCore {
	c := &replyCore{
		unique:      unique,
		opName:      opName,
		sender:      sender,
		debugLogger: debugLogger,
		errorLogger: errorLogger,
	}

	// Best-effort leak detector: if this core is garbage collected before a
	// terminal method ran, the kernel is left waiting on a unique id it will
	// eventually time out. We can't force callbacks to reply (a dropped Reply
	// compiles and links just fine), so the most we can do is log loudly.
	runtime.SetFinalizer(c, func(c *replyCore) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if !c.replied && c.errorLogger != nil {
			c.errorLogger.Printf(
				"reply for request 0x%016x (%s) was dropped without a response",
				c.unique, c.opName)
		}
	})

	return c
}

// send writes an out-header plus optional payload exactly once. Subsequent
// calls (a programming error in the embedding filesystem) are logged and
// ignored rather than sent, matching the "superfluous reply" handling
// net/http uses for a second WriteHeader.
func (c *replyCore) send(errno syscall.Errno, payload []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.replied {
		if c.errorLogger != nil {
			c.errorLogger.Printf(
				"superfluous reply for request 0x%016x (%s) ignored",
				c.unique, c.opName)
		}
		return
	}
	c.replied = true
	runtime.SetFinalizer(c, nil)

	header := make([]byte, protocol.OutHeaderSize)
	protocol.EncodeOutHeader(header, protocol.OutHeader{
		Length: uint32(protocol.OutHeaderSize + len(payload)),
		Error:  -int32(errno),
		Unique: c.unique,
	})

	if c.debugLogger != nil {
		if errno == 0 {
			c.debugLogger.Printf("Op 0x%016x %s] -> OK", c.unique, c.opName)
		} else {
			c.debugLogger.Printf("Op 0x%016x %s] -> errno %v", c.unique, c.opName, errno)
		}
	}

	var err error
	if payload == nil {
		err = c.sender.Send(header)
	} else {
		err = c.sender.Send(header, payload)
	}
	if err != nil && c.errorLogger != nil {
		c.errorLogger.Printf(
			"sending reply for request 0x%016x (%s): %v", c.unique, c.opName, err)
	}
}

func (c *replyCore) ok(payload []byte)      { c.send(0, payload) }
func (c *replyCore) error(errno syscall.Errno) { c.send(errno, nil) }

////////////////////////////////////////////////////////////////////////
// ReplyEmpty
////////////////////////////////////////////////////////////////////////

// ReplyEmpty replies to operations with no payload: Flush, Release,
// RmDir, Unlink, Rename, Fsync, SetXattr, RemoveXattr, Access, FsyncDir,
// ReleaseDir, SetLk.
type ReplyEmpty struct{ core *replyCore }

func (r ReplyEmpty) Ok()                      { r.core.ok(nil) }
func (r ReplyEmpty) Error(errno syscall.Errno) { r.core.error(errno) }

////////////////////////////////////////////////////////////////////////
// ReplyRaw
////////////////////////////////////////////////////////////////////////

// encodeFunc is the signature of the protocol package's Encode* free
// functions; ReplyRaw is parameterized over it so one generic type can
// carry any "one struct, no further framing" reply. The dispatcher uses it
// for the Init reply; Bmap, Statfs and Lock have dedicated builders below.
type encodeFunc[T any] func(e *protocol.Encoder, v T)

// ReplyRaw is a one-shot reply whose payload is a single fixed-layout
// structure, built with the matching protocol Encode* function.
type ReplyRaw[T any] struct {
	core    *replyCore
	encode  encodeFunc[T]
}

func (r ReplyRaw[T]) Ok(value T) {
	e := &protocol.Encoder{}
	r.encode(e, value)
	r.core.ok(e.Bytes())
}

func (r ReplyRaw[T]) Error(errno syscall.Errno) { r.core.error(errno) }

////////////////////////////////////////////////////////////////////////
// ReplyAttr
////////////////////////////////////////////////////////////////////////

type ReplyAttr struct{ core *replyCore }

func (r ReplyAttr) Attr(ttl time.Duration, attr protocol.Attr) {
	e := &protocol.Encoder{}
	valid, validNsec := splitTTL(ttl)
	protocol.EncodeAttrOut(e, protocol.AttrOut{
		AttrValid:     valid,
		AttrValidNsec: validNsec,
		Attr:          attr,
	})
	r.core.ok(e.Bytes())
}

func (r ReplyAttr) Error(errno syscall.Errno) { r.core.error(errno) }

////////////////////////////////////////////////////////////////////////
// ReplyEntry
////////////////////////////////////////////////////////////////////////

type ReplyEntry struct{ core *replyCore }

func (r ReplyEntry) Entry(ttl time.Duration, attr protocol.Attr, nodeid, generation uint64) {
	e := &protocol.Encoder{}
	valid, validNsec := splitTTL(ttl)
	protocol.EncodeEntryOut(e, protocol.EntryOut{
		Nodeid:         nodeid,
		Generation:     generation,
		EntryValid:     valid,
		AttrValid:      valid,
		EntryValidNsec: validNsec,
		AttrValidNsec:  validNsec,
		Attr:           attr,
	})
	r.core.ok(e.Bytes())
}

func (r ReplyEntry) Error(errno syscall.Errno) { r.core.error(errno) }

////////////////////////////////////////////////////////////////////////
// ReplyData
////////////////////////////////////////////////////////////////////////

// ReplyData replies to Read and Readlink with a raw byte payload.
type ReplyData struct{ core *replyCore }

func (r ReplyData) Data(b []byte) { r.core.ok(b) }

func (r ReplyData) Error(errno syscall.Errno) { r.core.error(errno) }

////////////////////////////////////////////////////////////////////////
// ReplyDirectory
////////////////////////////////////////////////////////////////////////

// ReplyDirectory packs fuse_dirent records into an internal buffer of a
// caller-supplied size budget, 8-byte aligned per FUSE_DIRENT_ALIGN. Add
// returns false once the budget is exhausted; the callback must stop
// calling Add at that point (further calls are rejected without being
// packed), then call Ok to flush everything packed so far in one send.
type ReplyDirectory struct {
	core   *replyCore
	budget int
	enc    *protocol.Encoder
	full   bool
}

func newReplyDirectory(core *replyCore, size int) *ReplyDirectory {
	return &ReplyDirectory{core: core, budget: size, enc: &protocol.Encoder{}}
}

const direntFixedSize = 8 + 8 + 4 + 4 // ino + off + namelen + type

// Add packs one directory entry if the remaining size budget allows it.
// It returns false when the entry (header + name + alignment padding)
// would not fit, at which point the caller must stop.
func (r *ReplyDirectory) Add(inode uint64, nextOffset uint64, kind protocol.DirentType, name string) bool {
	if r.full {
		return false
	}

	padLen := 0
	if rem := len(name) % 8; rem != 0 {
		padLen = 8 - rem
	}
	entrySize := direntFixedSize + len(name) + padLen

	if r.enc.Len()+entrySize > r.budget {
		r.full = true
		return false
	}

	r.enc.PutUint64(inode)
	r.enc.PutUint64(nextOffset)
	r.enc.PutUint32(uint32(len(name)))
	r.enc.PutUint32(uint32(kind))
	r.enc.PutBytes([]byte(name))
	r.enc.PadTo(8)

	return true
}

func (r *ReplyDirectory) Ok()                       { r.core.ok(r.enc.Bytes()) }
func (r *ReplyDirectory) Error(errno syscall.Errno) { r.core.error(errno) }

////////////////////////////////////////////////////////////////////////
// ReplyOpen, ReplyWrite, ReplyCreate
////////////////////////////////////////////////////////////////////////

// ReplyOpen replies to Open and OpenDir with a handle and the kernel-side
// caching flags the file system wants for it (e.g. FOPEN_DIRECT_IO).
type ReplyOpen struct{ core *replyCore }

func (r ReplyOpen) Opened(handle uint64, flags uint32) {
	e := &protocol.Encoder{}
	protocol.EncodeOpenOut(e, protocol.OpenOut{Fh: handle, OpenFlags: flags})
	r.core.ok(e.Bytes())
}

func (r ReplyOpen) Error(errno syscall.Errno) { r.core.error(errno) }

// ReplyWrite replies to Write with the number of bytes actually written.
type ReplyWrite struct{ core *replyCore }

func (r ReplyWrite) Wrote(n uint32) {
	e := &protocol.Encoder{}
	protocol.EncodeWriteOut(e, protocol.WriteOut{Size: n})
	r.core.ok(e.Bytes())
}

func (r ReplyWrite) Error(errno syscall.Errno) { r.core.error(errno) }

// ReplyCreate replies to Create with a combined entry+open response, since
// FUSE_CREATE both adds a dentry and opens a handle in one round trip.
type ReplyCreate struct{ core *replyCore }

func (r ReplyCreate) Created(ttl time.Duration, attr protocol.Attr, nodeid, generation uint64, handle uint64, openFlags uint32) {
	e := &protocol.Encoder{}
	valid, validNsec := splitTTL(ttl)
	protocol.EncodeCreateOut(e, protocol.CreateOut{
		Entry: protocol.EntryOut{
			Nodeid:         nodeid,
			Generation:     generation,
			EntryValid:     valid,
			AttrValid:      valid,
			EntryValidNsec: validNsec,
			AttrValidNsec:  validNsec,
			Attr:           attr,
		},
		Open: protocol.OpenOut{Fh: handle, OpenFlags: openFlags},
	})
	r.core.ok(e.Bytes())
}

func (r ReplyCreate) Error(errno syscall.Errno) { r.core.error(errno) }

////////////////////////////////////////////////////////////////////////
// ReplyStatfs, ReplyXattr, ReplyLock, ReplyBmap, ReplyXTimes
////////////////////////////////////////////////////////////////////////

// ReplyStatfs replies to Statfs.
type ReplyStatfs struct{ core *replyCore }

func (r ReplyStatfs) Statfs(stat protocol.StatfsOut) {
	e := &protocol.Encoder{}
	protocol.EncodeStatfsOut(e, stat)
	r.core.ok(e.Bytes())
}

func (r ReplyStatfs) Error(errno syscall.Errno) { r.core.error(errno) }

// ReplyXattr replies either with the raw extended-attribute data (GetXattr,
// ListXattr with a nonzero caller buffer) or just its size (the caller's
// zero-size "how big would the reply be" probe).
type ReplyXattr struct{ core *replyCore }

func (r ReplyXattr) Data(b []byte) { r.core.ok(b) }

func (r ReplyXattr) Size(n uint32) {
	e := &protocol.Encoder{}
	protocol.EncodeGetxattrOut(e, protocol.GetxattrOut{Size: n})
	r.core.ok(e.Bytes())
}

func (r ReplyXattr) Error(errno syscall.Errno) { r.core.error(errno) }

// ReplyLock replies to GetLk with the lock that is actually in force.
type ReplyLock struct{ core *replyCore }

func (r ReplyLock) Locked(lock protocol.FileLock) {
	e := &protocol.Encoder{}
	protocol.EncodeLkOut(e, lock)
	r.core.ok(e.Bytes())
}

func (r ReplyLock) Error(errno syscall.Errno) { r.core.error(errno) }

// ReplyBmap replies to Bmap with the physical block number.
type ReplyBmap struct{ core *replyCore }

func (r ReplyBmap) Block(block uint64) {
	e := &protocol.Encoder{}
	protocol.EncodeBmapOut(e, protocol.BmapOut{Block: block})
	r.core.ok(e.Bytes())
}

func (r ReplyBmap) Error(errno syscall.Errno) { r.core.error(errno) }

// ReplyXTimes replies to the macOS-only GetXTimes.
type ReplyXTimes struct{ core *replyCore }

func (r ReplyXTimes) XTimes(crtime, bkuptime time.Time) {
	e := &protocol.Encoder{}
	bkSec, bkNsec := splitTime(bkuptime)
	crSec, crNsec := splitTime(crtime)
	protocol.EncodeXTimesOut(e, protocol.XTimesOut{
		Bkuptime:     bkSec,
		BkuptimeNsec: bkNsec,
		Crtime:       crSec,
		CrtimeNsec:   crNsec,
	})
	r.core.ok(e.Bytes())
}

func (r ReplyXTimes) Error(errno syscall.Errno) { r.core.error(errno) }

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// splitTTL converts a relative TTL duration into the (seconds, nanoseconds)
// pair the kernel expects. Dispatcher.now (a timeutil.Clock) is what turns
// an absolute expiration into this relative duration in the first place,
// mirroring the teacher's convertExpirationTime but made testable by
// injecting the clock instead of calling time.Now() directly.
func splitTTL(ttl time.Duration) (seconds uint64, nsec uint32) {
	if ttl < 0 {
		ttl = 0
	}
	seconds = uint64(ttl / time.Second)
	nsec = uint32(ttl % time.Second)
	return
}

// splitTime renders a time.Time as the (seconds, nanoseconds) pair the wire
// format wants, treating the zero value as epoch.
func splitTime(t time.Time) (sec uint64, nsec uint32) {
	if t.IsZero() {
		return 0, 0
	}
	return uint64(t.Unix()), uint32(t.Nanosecond())
}
