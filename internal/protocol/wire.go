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

import (
	"encoding/binary"
	"fmt"
)

// DecodeInHeader reads the fixed in-header from the front of buf. It is the
// caller's job to check that len(buf) >= InHeaderSize.
func DecodeInHeader(buf []byte) InHeader {
	o := binary.LittleEndian
	return InHeader{
		Length:  o.Uint32(buf[0:4]),
		Opcode:  Opcode(o.Uint32(buf[4:8])),
		Unique:  o.Uint64(buf[8:16]),
		NodeID:  o.Uint64(buf[16:24]),
		UID:     o.Uint32(buf[24:28]),
		GID:     o.Uint32(buf[28:32]),
		PID:     o.Uint32(buf[32:36]),
		Padding: o.Uint32(buf[36:40]),
	}
}

// EncodeOutHeader writes h into the first OutHeaderSize bytes of buf, which
// must be at least that long.
func EncodeOutHeader(buf []byte, h OutHeader) {
	o := binary.LittleEndian
	o.PutUint32(buf[0:4], h.Length)
	o.PutUint32(buf[4:8], uint32(h.Error))
	o.PutUint64(buf[8:16], h.Unique)
}

// Cursor is a small helper for decoding fixed-width fields in order out of a
// byte slice, tracking position and failing closed (returning ok=false) once
// the slice is exhausted. It exists so per-opcode decoders in the parser read
// like a flat list of field reads instead of repeated slicing arithmetic.
type Cursor struct {
	buf []byte
	pos int
}

func NewCursor(buf []byte) *Cursor { return &Cursor{buf: buf} }

func (c *Cursor) remaining() int { return len(c.buf) - c.pos }

func (c *Cursor) take(n int) ([]byte, bool) {
	if c.remaining() < n {
		return nil, false
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, true
}

func (c *Cursor) Uint32() (uint32, bool) {
	b, ok := c.take(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (c *Cursor) Uint64() (uint64, bool) {
	b, ok := c.take(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

// Take returns the next n bytes without interpreting them, advancing the
// cursor past them. Used for variable-length payloads (write data, xattr
// values) that follow the fixed fields of an opcode's argument struct.
func (c *Cursor) Take(n int) ([]byte, bool) {
	return c.take(n)
}

// Skip advances the cursor without interpreting the bytes (used for
// reserved/padding fields).
func (c *Cursor) Skip(n int) bool {
	_, ok := c.take(n)
	return ok
}

// CString reads a NUL-terminated string from the cursor, returning a copy
// of it with the terminator stripped. The result does not alias the
// request buffer, so it stays valid after that buffer is reused.
func (c *Cursor) CString() (string, bool) {
	rest := c.buf[c.pos:]
	for i, b := range rest {
		if b == 0 {
			s := string(rest[:i])
			c.pos += i + 1
			return s, true
		}
	}
	return "", false
}

// Rest returns every remaining byte, without advancing further.
func (c *Cursor) Rest() []byte {
	return c.buf[c.pos:]
}

// Encoder accumulates an out-message payload (after the OutHeader) using the
// same fixed-width, little-endian conventions as Cursor, growing a byte
// slice instead of a fixed array. Reply builders each hold one.
type Encoder struct {
	buf []byte
}

func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *Encoder) PutInt64(v int64) { e.PutUint64(uint64(v)) }

func (e *Encoder) PutBytes(b []byte) {
	e.buf = append(e.buf, b...)
}

// PadTo appends zero bytes until the encoder's length is a multiple of
// align, used for FUSE_DIRENT_ALIGN (8-byte) padding in directory packing.
func (e *Encoder) PadTo(align int) {
	if r := len(e.buf) % align; r != 0 {
		e.buf = append(e.buf, make([]byte, align-r)...)
	}
}

func (e *Encoder) Len() int      { return len(e.buf) }
func (e *Encoder) Bytes() []byte { return e.buf }

func (e *Encoder) String() string {
	return fmt.Sprintf("Encoder{%d bytes}", len(e.buf))
}
