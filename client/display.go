package wl

import "deedles.dev/wlshim/wire"

const (
	DisplayInterface = "wl_display"
	DisplayVersion   = 1
)

const (
	displaySync uint16 = iota
	displayGetRegistry
)

const (
	displayEvError uint16 = iota
	displayEvDeleteID
)

var displayEvents = []string{"error", "delete_id"}

// Display is the root object of a connection. It always has object
// ID 1.
type Display struct {
	wire.ObjectID
	Listener DisplayListener

	client   *Client
	registry *Registry
}

// DisplayListener is notified of connection-level events. Objects
// removed by delete_id are dropped from the object table before the
// listener runs.
type DisplayListener interface {
	Error(objectID, code uint32, message string)
	DeleteId(id uint32)
}

func (d *Display) Interface() string {
	return DisplayInterface
}

func (d *Display) MethodName(op uint16) string {
	return eventName(displayEvents, op)
}

// Sync returns a callback that fires once the compositor has
// processed all previously sent requests.
func (d *Display) Sync() *Callback {
	cb := Callback{client: d.client}
	d.client.Add(&cb)

	msg := wire.NewMessage(d, "sync", displaySync)
	msg.WriteObject(&cb)
	d.client.Enqueue(msg)

	return &cb
}

// GetRegistry returns the connection's global registry. The registry
// is created on first use; later calls return the same object.
func (d *Display) GetRegistry() *Registry {
	if d.registry != nil {
		return d.registry
	}

	r := Registry{
		client:  d.client,
		globals: make(map[uint32]Interface),
	}
	d.client.Add(&r)

	msg := wire.NewMessage(d, "get_registry", displayGetRegistry)
	msg.WriteObject(&r)
	d.client.Enqueue(msg)

	d.registry = &r
	return &r
}

func (d *Display) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case displayEvError:
		objectID := msg.ReadUint()
		code := msg.ReadUint()
		message := msg.ReadString()
		if err := msg.Err(); err != nil {
			return err
		}
		if d.Listener != nil {
			d.Listener.Error(objectID, code, message)
		}
		return nil

	case displayEvDeleteID:
		id := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		d.client.Delete(id)
		if d.Listener != nil {
			d.Listener.DeleteId(id)
		}
		return nil
	}

	return wire.UnknownOpError{Interface: DisplayInterface, Type: "event", Op: msg.Op()}
}
