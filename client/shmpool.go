package wl

import "deedles.dev/wlshim/wire"

const (
	ShmPoolInterface = "wl_shm_pool"
	ShmPoolVersion   = 1
)

const (
	shmPoolCreateBuffer uint16 = iota
	shmPoolDestroy
	shmPoolResize
)

// ShmPool is a slab of shared memory that buffers are carved out of.
type ShmPool struct {
	wire.ObjectID

	client *Client
}

func (pool *ShmPool) Interface() string {
	return ShmPoolInterface
}

func (pool *ShmPool) MethodName(op uint16) string {
	return eventName(nil, op)
}

// CreateBuffer creates a buffer viewing part of the pool's memory.
func (pool *ShmPool) CreateBuffer(offset, width, height, stride int32, format ShmFormat) *Buffer {
	buf := Buffer{client: pool.client}
	pool.client.Add(&buf)

	msg := wire.NewMessage(pool, "create_buffer", shmPoolCreateBuffer)
	msg.WriteObject(&buf)
	msg.WriteInt(offset)
	msg.WriteInt(width)
	msg.WriteInt(height)
	msg.WriteInt(stride)
	msg.WriteUint(uint32(format))
	pool.client.Enqueue(msg)

	return &buf
}

func (pool *ShmPool) Destroy() {
	pool.client.Enqueue(wire.NewMessage(pool, "destroy", shmPoolDestroy))
	pool.client.Delete(pool.ID())
}

// Resize grows the pool to size bytes. The underlying file must
// already have been grown.
func (pool *ShmPool) Resize(size int32) {
	msg := wire.NewMessage(pool, "resize", shmPoolResize)
	msg.WriteInt(size)
	pool.client.Enqueue(msg)
}

func (pool *ShmPool) Dispatch(msg *wire.MessageBuffer) error {
	return wire.UnknownOpError{Interface: ShmPoolInterface, Type: "event", Op: msg.Op()}
}
