package wl

import (
	"fmt"
	"os"

	"deedles.dev/wlshim/wire"
)

const (
	ShmInterface = "wl_shm"
	ShmVersion   = 1
)

const shmCreatePool uint16 = 0

const shmEvFormat uint16 = 0

var shmEvents = []string{"format"}

// ShmFormat is a pixel format supported by the compositor for shared
// memory buffers.
type ShmFormat uint32

const (
	ShmFormatArgb8888 ShmFormat = 0
	ShmFormatXrgb8888 ShmFormat = 1
)

func (f ShmFormat) String() string {
	switch f {
	case ShmFormatArgb8888:
		return "ARGB8888"
	case ShmFormatXrgb8888:
		return "XRGB8888"
	}
	return fmt.Sprintf("0x%x", uint32(f))
}

// Shm creates shared memory pools.
type Shm struct {
	wire.ObjectID
	Listener ShmListener

	client *Client
}

type ShmListener interface {
	Format(format ShmFormat)
}

// BindShm binds the wl_shm global with the given registry name.
func BindShm(c *Client, r *Registry, name, version uint32) *Shm {
	shm := Shm{client: c}
	c.Add(&shm)
	r.Bind(name, wire.NewID{
		Interface: ShmInterface,
		Version:   min(version, ShmVersion),
		ID:        shm.ID(),
	})
	return &shm
}

func (shm *Shm) Interface() string {
	return ShmInterface
}

func (shm *Shm) MethodName(op uint16) string {
	return eventName(shmEvents, op)
}

// CreatePool shares size bytes of file with the compositor as a
// buffer pool. The file descriptor is duplicated for sending; the
// caller keeps ownership of file.
func (shm *Shm) CreatePool(file *os.File, size int32) *ShmPool {
	pool := ShmPool{client: shm.client}
	shm.client.Add(&pool)

	msg := wire.NewMessage(shm, "create_pool", shmCreatePool)
	msg.WriteObject(&pool)
	msg.WriteFile(file)
	msg.WriteInt(size)
	shm.client.Enqueue(msg)

	return &pool
}

func (shm *Shm) Dispatch(msg *wire.MessageBuffer) error {
	switch msg.Op() {
	case shmEvFormat:
		format := msg.ReadUint()
		if err := msg.Err(); err != nil {
			return err
		}
		if shm.Listener != nil {
			shm.Listener.Format(ShmFormat(format))
		}
		return nil
	}

	return wire.UnknownOpError{Interface: ShmInterface, Type: "event", Op: msg.Op()}
}
