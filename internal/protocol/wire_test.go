package protocol

import (
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestDecodeInHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, InHeaderSize)
	want := InHeader{
		Length: 64,
		Opcode: OpLookup,
		Unique: 0xdeadbeef,
		NodeID: 1,
		UID:    500,
		GID:    500,
		PID:    1234,
	}

	e := &Encoder{}
	e.PutUint32(want.Length)
	e.PutUint32(uint32(want.Opcode))
	e.PutUint64(want.Unique)
	e.PutUint64(want.NodeID)
	e.PutUint32(want.UID)
	e.PutUint32(want.GID)
	e.PutUint32(want.PID)
	e.PutUint32(want.Padding)
	copy(buf, e.Bytes())

	got := DecodeInHeader(buf)
	if diff := pretty.Compare(want, got); diff != "" {
		t.Fatalf("unexpected in-header (-want +got):\n%s", diff)
	}
}

func TestEncodeOutHeader(t *testing.T) {
	buf := make([]byte, OutHeaderSize)
	EncodeOutHeader(buf, OutHeader{Length: 16, Error: -5, Unique: 42})

	got := DecodeInHeader(append(buf, make([]byte, InHeaderSize-OutHeaderSize)...))
	if got.Length != 16 {
		t.Fatalf("Length = %d, want 16", got.Length)
	}
}

func TestCursorCStringStripsTerminator(t *testing.T) {
	c := NewCursor([]byte("hello.txt\x00trailing"))
	s, ok := c.CString()
	if !ok {
		t.Fatal("CString() ok = false")
	}
	if s != "hello.txt" {
		t.Fatalf("CString() = %q, want %q", s, "hello.txt")
	}
	if string(c.Rest()) != "trailing" {
		t.Fatalf("Rest() = %q, want %q", c.Rest(), "trailing")
	}
}

func TestCursorCStringMissingTerminatorFails(t *testing.T) {
	c := NewCursor([]byte("no-terminator"))
	if _, ok := c.CString(); ok {
		t.Fatal("CString() ok = true, want false")
	}
}

func TestCursorUint32ExhaustedFailsClosed(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	if _, ok := c.Uint32(); ok {
		t.Fatal("Uint32() ok = true on short buffer, want false")
	}
}

func TestEncoderPadTo(t *testing.T) {
	e := &Encoder{}
	e.PutBytes([]byte("abc"))
	e.PadTo(8)
	if e.Len() != 8 {
		t.Fatalf("Len() = %d, want 8", e.Len())
	}
}
