// Package handle implements the process wide slot tables which map opaque
// handles to live protocol objects. Handles are never reused, and a released
// handle reports an error instead of reaching a freed object.
package handle

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
)

// Handle is an opaque reference to a live object. Zero is never valid.
type Handle uint32

var counter atomic.Uint32

// next is shared by all tables so that a handle is unique over the object
// kinds as well.
func next() Handle {
	return Handle(counter.Add(1))
}

type slot[T any] struct {
	sync.Mutex
	obj T
}

// Table is a slot table of one object kind.
type Table[T any] struct {
	name string
	kind vcxerr.Kind

	l     sync.RWMutex
	slots map[Handle]*slot[T]
}

// New creates a table which reports errors of kind k with a name for the
// object kind, e.g. "connection".
func New[T any](name string, k vcxerr.Kind) *Table[T] {
	return &Table[T]{
		name:  name,
		kind:  k,
		slots: make(map[Handle]*slot[T]),
	}
}

// Add stores obj and returns its new handle.
func (t *Table[T]) Add(obj T) Handle {
	h := next()
	t.l.Lock()
	defer t.l.Unlock()
	t.slots[h] = &slot[T]{obj: obj}
	glog.V(5).Infof("%s handle %d added", t.name, h)
	return h
}

func (t *Table[T]) get(h Handle) (*slot[T], error) {
	t.l.RLock()
	defer t.l.RUnlock()
	s, ok := t.slots[h]
	if !ok {
		return nil, vcxerr.New(t.kind, "%s handle %d", t.name, h)
	}
	return s, nil
}

// Get returns the object of the handle.
func (t *Table[T]) Get(h Handle) (obj T, err error) {
	s, err := t.get(h)
	if err != nil {
		return obj, err
	}
	s.Lock()
	defer s.Unlock()
	return s.obj, nil
}

// Has tells if the handle is live.
func (t *Table[T]) Has(h Handle) bool {
	_, err := t.get(h)
	return err == nil
}

// Do calls fn with the object while holding the object's own lock. Calls to
// the same handle are serialized, calls to different handles are not.
func (t *Table[T]) Do(h Handle, fn func(obj T) error) error {
	s, err := t.get(h)
	if err != nil {
		return err
	}
	s.Lock()
	defer s.Unlock()
	return fn(s.obj)
}

// Release frees the handle. Releasing an unknown or already released handle
// is a no-op.
func (t *Table[T]) Release(h Handle) {
	t.l.Lock()
	defer t.l.Unlock()
	if _, ok := t.slots[h]; !ok {
		glog.V(3).Infof("%s handle %d already released", t.name, h)
		return
	}
	delete(t.slots, h)
	glog.V(5).Infof("%s handle %d released", t.name, h)
}

// ReleaseAll frees every handle of the table.
func (t *Table[T]) ReleaseAll() {
	t.l.Lock()
	defer t.l.Unlock()
	t.slots = make(map[Handle]*slot[T])
}

func (t *Table[T]) Len() int {
	t.l.RLock()
	defer t.l.RUnlock()
	return len(t.slots)
}

// Handles returns the live handles in ascending order.
func (t *Table[T]) Handles() []Handle {
	t.l.RLock()
	hs := make([]Handle, 0, len(t.slots))
	for h := range t.slots {
		hs = append(hs, h)
	}
	t.l.RUnlock()
	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}
