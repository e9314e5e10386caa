// Package wire implements the Wayland wire format: message framing,
// argument marshaling, and file descriptor passing over a Unix domain
// socket. It is the transport underneath the protocol object wrappers
// and is not usually used directly.
package wire

// Object represents a Wayland protocol object bound to a connection.
type Object interface {
	// ID is the object's ID on the connection, or 0 if it has not been
	// added to one yet.
	ID() uint32

	// SetID assigns the object's ID. It is called exactly once, when
	// the object is added to a connection's object table.
	SetID(id uint32)

	// Delete is called when the object is removed from the object
	// table.
	Delete()

	// Interface is the name of the object's protocol interface, such
	// as "wl_surface".
	Interface() string

	// MethodName returns the name of the method with the given opcode,
	// for debug output. Which direction the opcode refers to depends
	// on which side of the connection the object lives on.
	MethodName(op uint16) string

	// Dispatch performs the operation requested by the message in the
	// buffer.
	Dispatch(msg *MessageBuffer) error
}

// ObjectID implements the identity half of Object. Protocol object
// types embed it and implement the event side themselves.
type ObjectID struct {
	id uint32
}

func (obj *ObjectID) ID() uint32 {
	return obj.id
}

func (obj *ObjectID) SetID(id uint32) {
	obj.id = id
}

func (obj *ObjectID) Delete() {}

// NewID is the triple sent for a new_id argument whose interface is
// not fixed by the protocol, such as in wl_registry.bind.
type NewID struct {
	Interface string
	Version   uint32
	ID        uint32
}

// padding returns the number of bytes needed to pad length up to a
// 32-bit boundary.
func padding(length uint32) uint32 {
	return (4 - (length % 4)) % 4
}
