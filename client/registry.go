package wl

import (
	"sync"

	"deedles.dev/wlshim/wire"
	"golang.org/x/exp/maps"
)

const (
	RegistryInterface = "wl_registry"
	RegistryVersion   = 1
)

const registryBind uint16 = 0

const (
	registryEvGlobal uint16 = iota
	registryEvGlobalRemove
)

var registryEvents = []string{"global", "global_remove"}

// Registry tracks the compositor's global objects.
type Registry struct {
	wire.ObjectID
	Listener RegistryListener

	client *Client

	m       sync.Mutex
	globals map[uint32]Interface
}

type RegistryListener interface {
	Global(name uint32, inter string, version uint32)
	GlobalRemove(name uint32)
}

func (r *Registry) Interface() string {
	return RegistryInterface
}

func (r *Registry) MethodName(op uint16) string {
	return eventName(registryEvents, op)
}

// Globals returns a snapshot of the currently advertised globals,
// keyed by registry name.
func (r *Registry) Globals() map[uint32]Interface {
	r.m.Lock()
	defer r.m.Unlock()
	return maps.Clone(r.globals)
}

// Bind binds the global with the given registry name to the object ID
// carried by id. Most callers use the typed Bind helpers instead.
func (r *Registry) Bind(name uint32, id wire.NewID) {
	msg := wire.NewMessage(r, "bind", registryBind)
	msg.WriteUint(name)
	msg.WriteNewID(id)
	r.client.Enqueue(msg)
}

func (r *Registry) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case registryEvGlobal:
		name := msg.ReadUint()
		inter := msg.ReadString()
		version := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		r.m.Lock()
		r.globals[name] = Interface{Name: inter, Version: version}
		r.m.Unlock()
		if r.Listener != nil {
			r.Listener.Global(name, inter, version)
		}
		return nil

	case registryEvGlobalRemove:
		name := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		r.m.Lock()
		delete(r.globals, name)
		r.m.Unlock()
		if r.Listener != nil {
			r.Listener.GlobalRemove(name)
		}
		return nil
	}

	return wire.UnknownOpError{Interface: RegistryInterface, Type: "event", Op: msg.Op()}
}
