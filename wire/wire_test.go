package wire

import (
	"io"
	"net"
	"os"
	"testing"

	"deedles.dev/wlshim/internal/bin"
	"golang.org/x/sys/unix"
)

type testObject struct {
	ObjectID
	iface string
}

func (o *testObject) Interface() string            { return o.iface }
func (o *testObject) MethodName(op uint16) string  { return "test" }
func (o *testObject) Dispatch(*MessageBuffer) error { return nil }

func connPair(t *testing.T) (*Conn, *Conn) {
	t.Helper()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}

	conns := make([]*Conn, 2)
	for i, fd := range fds {
		file := os.NewFile(uintptr(fd), "pair")
		c, err := net.FileConn(file)
		file.Close()
		if err != nil {
			t.Fatalf("wrap socketpair end: %v", err)
		}
		conns[i] = NewConn(c.(*net.UnixConn))
		t.Cleanup(func() { conns[i].Close() })
	}
	return conns[0], conns[1]
}

func TestMessageRoundTrip(t *testing.T) {
	c1, c2 := connPair(t)

	sender := &testObject{iface: "test_interface"}
	sender.SetID(3)

	mb := NewMessage(sender, "test", 7)
	mb.WriteInt(-5)
	mb.WriteUint(42)
	mb.WriteString("hello")
	mb.WriteArray([]byte{1, 2, 3})
	mb.WriteFixed(FixedInt(9))
	if err := mb.Build(c1); err != nil {
		t.Fatalf("build message: %v", err)
	}

	msg, err := ReadMessage(c2)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if msg.Sender() != 3 {
		t.Errorf("sender = %v, want 3", msg.Sender())
	}
	if msg.Op() != 7 {
		t.Errorf("op = %v, want 7", msg.Op())
	}
	if got := msg.ReadInt(); got != -5 {
		t.Errorf("ReadInt() = %v, want -5", got)
	}
	if got := msg.ReadUint(); got != 42 {
		t.Errorf("ReadUint() = %v, want 42", got)
	}
	if got := msg.ReadString(); got != "hello" {
		t.Errorf("ReadString() = %q, want %q", got, "hello")
	}
	got := msg.ReadArray()
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("ReadArray() = %v, want [1 2 3]", got)
	}
	if got := msg.ReadFixed(); got != FixedInt(9) {
		t.Errorf("ReadFixed() = %v, want %v", got, FixedInt(9))
	}
	if err := msg.Err(); err != nil {
		t.Errorf("Err() = %v after full read", err)
	}
}

func TestStringPadding(t *testing.T) {
	c1, c2 := connPair(t)

	sender := &testObject{iface: "test_interface"}
	sender.SetID(1)

	// Lengths that land on every possible padding amount. The
	// trailing uint marks the end so misaligned reads are caught.
	strs := []string{"", "a", "abc", "abcd", "abcdefg"}
	for _, s := range strs {
		mb := NewMessage(sender, "test", 0)
		mb.WriteString(s)
		mb.WriteUint(0xDEADBEEF)
		if err := mb.Build(c1); err != nil {
			t.Fatalf("build message with %q: %v", s, err)
		}

		msg, err := ReadMessage(c2)
		if err != nil {
			t.Fatalf("read message with %q: %v", s, err)
		}
		if got := msg.ReadString(); got != s {
			t.Errorf("ReadString() = %q, want %q", got, s)
		}
		if got := msg.ReadUint(); got != 0xDEADBEEF {
			t.Errorf("marker after %q = %#x, want 0xDEADBEEF", s, got)
		}
		if err := msg.Err(); err != nil {
			t.Errorf("Err() after %q = %v", s, err)
		}
	}
}

func TestEmptyMessage(t *testing.T) {
	c1, c2 := connPair(t)

	sender := &testObject{iface: "test_interface"}
	sender.SetID(5)

	if err := NewMessage(sender, "test", 2).Build(c1); err != nil {
		t.Fatalf("build message: %v", err)
	}
	msg, err := ReadMessage(c2)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if msg.Size() != 8 {
		t.Errorf("size = %v, want 8", msg.Size())
	}
	if err := msg.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestNilObjectArg(t *testing.T) {
	c1, c2 := connPair(t)

	sender := &testObject{iface: "test_interface"}
	sender.SetID(6)

	// Both a nil interface and an interface holding a nil pointer
	// must encode as object ID 0.
	var missing *testObject
	mb := NewMessage(sender, "test", 0)
	mb.WriteObject(nil)
	mb.WriteObject(missing)
	if err := mb.Build(c1); err != nil {
		t.Fatalf("build message: %v", err)
	}

	msg, err := ReadMessage(c2)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if got := msg.ReadUint(); got != 0 {
		t.Errorf("nil object encoded as %v, want 0", got)
	}
	if got := msg.ReadUint(); got != 0 {
		t.Errorf("typed nil object encoded as %v, want 0", got)
	}
	if err := msg.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestFilePassing(t *testing.T) {
	c1, c2 := connPair(t)

	file, err := os.CreateTemp(t.TempDir(), "wiretest")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer file.Close()
	if _, err := file.WriteString("file contents"); err != nil {
		t.Fatalf("write temp file: %v", err)
	}

	sender := &testObject{iface: "test_interface"}
	sender.SetID(2)

	mb := NewMessage(sender, "test", 0)
	mb.WriteFile(file)
	mb.WriteInt(77)
	if err := mb.Build(c1); err != nil {
		t.Fatalf("build message: %v", err)
	}

	msg, err := ReadMessage(c2)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	got := msg.ReadFile()
	if got == nil {
		t.Fatalf("ReadFile() = nil: %v", msg.Err())
	}
	defer got.Close()
	if v := msg.ReadInt(); v != 77 {
		t.Errorf("trailing int = %v, want 77", v)
	}

	// The received descriptor shares an offset with the original.
	if _, err := got.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("seek received file: %v", err)
	}
	data, err := io.ReadAll(got)
	if err != nil {
		t.Fatalf("read received file: %v", err)
	}
	if string(data) != "file contents" {
		t.Errorf("received file contents = %q", data)
	}
}

func TestReadFileExhausted(t *testing.T) {
	c1, c2 := connPair(t)

	sender := &testObject{iface: "test_interface"}
	sender.SetID(2)
	if err := NewMessage(sender, "test", 0).Build(c1); err != nil {
		t.Fatalf("build message: %v", err)
	}

	msg, err := ReadMessage(c2)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	if got := msg.ReadFile(); got != nil {
		got.Close()
		t.Error("ReadFile() returned a file from a message with none")
	}
	if msg.Err() == nil {
		t.Error("Err() = nil after reading a missing file")
	}
}

func TestShortMessage(t *testing.T) {
	c1, c2 := connPair(t)

	sender := &testObject{iface: "test_interface"}
	sender.SetID(4)

	mb := NewMessage(sender, "test", 0)
	mb.WriteUint(1)
	if err := mb.Build(c1); err != nil {
		t.Fatalf("build message: %v", err)
	}

	msg, err := ReadMessage(c2)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	msg.ReadUint()
	msg.ReadUint() // over-read
	if msg.Err() == nil {
		t.Error("Err() = nil after reading past the end")
	}
}

func TestTruncatedFrame(t *testing.T) {
	c1, c2 := connPair(t)

	// A header that claims 16 bytes of payload, followed by only 4.
	bin.Write(c1.conn, uint32(9))
	bin.Write(c1.conn, (uint32(24)<<16)|uint32(0))
	bin.Write(c1.conn, uint32(1))
	c1.Close()

	if _, err := ReadMessage(c2); err == nil {
		t.Error("ReadMessage succeeded on a truncated frame")
	}
}

func TestFixedConversions(t *testing.T) {
	tests := []struct {
		fixed Fixed
		i     int
		float float64
	}{
		{FixedInt(0), 0, 0},
		{FixedInt(1), 1, 1},
		{FixedInt(100), 100, 100},
		{FixedFloat(2.5), 2, 2.5},
		{FixedFloat(0.25), 0, 0.25},
	}
	for _, tt := range tests {
		if got := tt.fixed.Int(); got != tt.i {
			t.Errorf("(%v).Int() = %v, want %v", tt.fixed, got, tt.i)
		}
		if got := tt.fixed.Float(); got != tt.float {
			t.Errorf("(%v).Float() = %v, want %v", tt.fixed, got, tt.float)
		}
	}
}
