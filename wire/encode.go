package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"runtime"
	"strconv"
	"strings"

	"deedles.dev/wlshim/internal/bin"
	"golang.org/x/sys/unix"
)

// MessageBuilder is a message that is under construction. The Write
// methods marshal arguments in order, and Build frames the result and
// sends it. Arguments are also collected for debug output.
type MessageBuilder struct {
	sender Object
	method string
	op     uint16
	data   bytes.Buffer
	fds    []int
	args   []any
	err    error
}

func NewMessage(sender Object, method string, op uint16) *MessageBuilder {
	return &MessageBuilder{
		sender: sender,
		method: method,
		op:     op,
	}
}

func (mb *MessageBuilder) Sender() Object {
	return mb.sender
}

func (mb *MessageBuilder) Op() uint16 {
	return mb.op
}

func (mb *MessageBuilder) WriteInt(v int32) {
	if mb.err != nil {
		return
	}

	mb.args = append(mb.args, v)
	bin.Write(&mb.data, v)
}

func (mb *MessageBuilder) WriteUint(v uint32) {
	if mb.err != nil {
		return
	}

	mb.args = append(mb.args, v)
	bin.Write(&mb.data, v)
}

// WriteObject writes v's object ID, or 0 if v is nil.
func (mb *MessageBuilder) WriteObject(v Object) {
	if mb.err != nil {
		return
	}

	var id uint32
	if !isNil(v) {
		id = v.ID()
	}
	mb.args = append(mb.args, v)
	bin.Write(&mb.data, id)
}

// WriteNewID writes the interface-qualified form of a new_id
// argument. Requests whose new_id interface is fixed by the protocol
// use WriteObject instead.
func (mb *MessageBuilder) WriteNewID(v NewID) {
	if mb.err != nil {
		return
	}

	mb.WriteString(v.Interface)
	mb.WriteUint(v.Version)
	mb.WriteUint(v.ID)
}

func (mb *MessageBuilder) WriteFixed(v Fixed) {
	if mb.err != nil {
		return
	}

	mb.args = append(mb.args, v)
	bin.Write(&mb.data, v)
}

func (mb *MessageBuilder) WriteString(v string) {
	if mb.err != nil {
		return
	}

	mb.args = append(mb.args, v)

	pad := padding(uint32(len(v) + 1))
	bin.Write(&mb.data, uint32(len(v)+1))
	mb.data.WriteString(v)
	mb.data.WriteByte(0)
	for i := uint32(0); i < pad; i++ {
		mb.data.WriteByte(0)
	}
}

func (mb *MessageBuilder) WriteArray(v []byte) {
	if mb.err != nil {
		return
	}

	mb.args = append(mb.args, v)

	pad := padding(uint32(len(v)))
	bin.Write(&mb.data, uint32(len(v)))
	mb.data.Write(v)
	for i := uint32(0); i < pad; i++ {
		mb.data.WriteByte(0)
	}
}

// WriteFile queues v's file descriptor to be sent out-of-band with
// the message. The descriptor is duplicated, so the caller remains
// responsible for v.
func (mb *MessageBuilder) WriteFile(v *os.File) {
	if mb.err != nil {
		return
	}

	fd, err := unix.Dup(int(v.Fd()))
	if err != nil {
		mb.err = err
		return
	}

	if len(mb.fds) == 0 {
		runtime.SetFinalizer(mb, (*MessageBuilder).close)
	}

	mb.args = append(mb.args, v)
	mb.fds = append(mb.fds, fd)
}

// Build builds the message and sends it to c. The MessageBuilder
// should not be used again after this method is called.
func (mb *MessageBuilder) Build(c *Conn) error {
	if mb.err != nil {
		return mb.err
	}

	length := uint32(8 + mb.data.Len())
	msg := bytes.NewBuffer(make([]byte, 0, length))
	bin.Write(msg, mb.sender.ID())
	bin.Write(msg, (length<<16)|uint32(mb.op))

	io.Copy(msg, &mb.data)
	oob := unix.UnixRights(mb.fds...)

	_, _, mb.err = c.conn.WriteMsgUnix(msg.Bytes(), oob, nil)
	mb.close()
	return mb.err
}

func (mb *MessageBuilder) close() {
	errs := make([]error, 0, len(mb.fds))
	for _, fd := range mb.fds {
		errs = append(errs, unix.Close(fd))
	}
	if mb.err == nil {
		mb.err = errors.Join(errs...)
	}
	mb.fds = nil
	runtime.SetFinalizer(mb, nil)
}

func (mb *MessageBuilder) String() string {
	return fmt.Sprintf("%v@%v.%v(%v)", mb.sender.Interface(), mb.sender.ID(), mb.method, formatArgs(mb.args))
}

func formatArgs(args []any) string {
	strs := make([]string, 0, len(args))
	for _, arg := range args {
		switch arg := arg.(type) {
		case string:
			strs = append(strs, strconv.Quote(arg))
		case *os.File:
			strs = append(strs, fmt.Sprint(arg.Fd()))
		case Object:
			if isNil(arg) {
				strs = append(strs, "nil")
				continue
			}
			strs = append(strs, fmt.Sprintf("%v@%v", arg.Interface(), arg.ID()))
		default:
			strs = append(strs, fmt.Sprint(arg))
		}
	}
	return strings.Join(strs, ", ")
}

// isNil reports whether v is nil or an interface wrapping a nil
// pointer, which a plain comparison misses.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
