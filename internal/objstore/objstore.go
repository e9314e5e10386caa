// Package objstore tracks protocol objects by ID.
package objstore

import (
	"sync"

	"deedles.dev/wlshim/wire"
)

// Store maps object IDs to protocol objects, allocating client-side
// IDs sequentially. It is safe for concurrent use: objects are added
// from whatever goroutine creates them and looked up from the
// dispatch loop.
type Store struct {
	m       sync.Mutex
	objects map[uint32]wire.Object
	nextID  uint32
}

func New(start uint32) *Store {
	return &Store{
		objects: make(map[uint32]wire.Object),
		nextID:  start,
	}
}

func (s *Store) Add(obj wire.Object) {
	s.m.Lock()
	defer s.m.Unlock()

	id := obj.ID()
	if id == 0 {
		id = s.nextID
		obj.SetID(id)
		s.nextID++
	}

	s.objects[id] = obj
}

func (s *Store) Get(id uint32) wire.Object {
	s.m.Lock()
	defer s.m.Unlock()

	return s.objects[id]
}

func (s *Store) Delete(id uint32) {
	s.m.Lock()
	obj := s.objects[id]
	delete(s.objects, id)
	s.m.Unlock()

	if obj != nil {
		obj.Delete()
	}
}
