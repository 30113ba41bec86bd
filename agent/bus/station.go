// Package bus delivers state change notifications of the protocol objects to
// listeners. Polling stays the way objects advance, the bus only tells when
// a poll moved an object.
package bus

import (
	"container/list"
	"sync"
	"time"

	"github.com/findy-network/findy-vcx/agent/handle"
	"github.com/findy-network/findy-vcx/agent/psm"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
)

// MaxBuffered is how many notifications a station keeps when no one listens.
const MaxBuffered = 128

type Notify struct {
	Kind      psm.Kind
	Handle    handle.Handle
	State     state.VcxState
	Timestamp int64
}

type StateChan chan Notify

// Station broadcasts to every listener. A slow listener loses
// notifications, it never blocks the broadcaster.
type Station struct {
	listeners map[string]StateChan
	sync.Mutex

	// buf stores notifications if no one listens
	buf *list.List
}

func New() *Station {
	return &Station{listeners: make(map[string]StateChan), buf: list.New()}
}

// AddListener adds the listener of the id and returns its channel. The first
// listener gets the buffered notifications.
func (s *Station) AddListener(id string, size int) (StateChan, error) {
	c := make(StateChan, size)

	s.Lock()
	defer s.Unlock()

	if _, alreadyExists := s.listeners[id]; alreadyExists {
		return nil, vcxerr.New(vcxerr.AlreadyExists, "listener %s", id)
	}
	s.listeners[id] = c
	glog.V(4).Infoln("notify ADD for:", id)

	// using linked list this way it's safe to remove items during iteration
	for e := s.buf.Front(); e != nil; {
		old := e
		e = e.Next()
		if !s.send(id, c, old.Value.(Notify)) {
			break
		}
		s.buf.Remove(old)
	}
	return c, nil
}

// RmListener removes the listener and closes its channel.
func (s *Station) RmListener(id string) {
	s.Lock()
	defer s.Unlock()

	if c, ok := s.listeners[id]; ok {
		close(c)
		delete(s.listeners, id)
		glog.V(4).Infoln("notify RM for:", id)
	}
}

// RmAll removes every listener.
func (s *Station) RmAll() {
	s.Lock()
	defer s.Unlock()

	for id, c := range s.listeners {
		close(c)
		delete(s.listeners, id)
	}
}

// Broadcast sends n to all listeners, or buffers it if there are none.
func (s *Station) Broadcast(n Notify) {
	if n.Timestamp == 0 {
		n.Timestamp = time.Now().UnixNano()
	}

	s.Lock()
	defer s.Unlock()

	if len(s.listeners) == 0 {
		glog.V(3).Infoln("there are no one to listen us!")
		if s.buf.Len() >= MaxBuffered {
			s.buf.Remove(s.buf.Front())
		}
		s.buf.PushBack(n)
		return
	}
	for id, c := range s.listeners {
		s.send(id, c, n)
	}
}

func (s *Station) send(id string, c StateChan, n Notify) bool {
	select {
	case c <- n:
		glog.V(5).Infof("notify %s: %s %d %s", id, n.Kind, n.Handle, n.State)
		return true
	default:
		glog.Warningf("listener %s full, %s %d %s dropped", id, n.Kind, n.Handle, n.State)
		return false
	}
}
