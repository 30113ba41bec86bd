package bus

import (
	"errors"
	"testing"

	"github.com/findy-network/findy-vcx/agent/handle"
	"github.com/findy-network/findy-vcx/agent/psm"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

func TestStation_Broadcast(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := New()
	a := try.To1(s.AddListener("a", 2))
	b := try.To1(s.AddListener("b", 1))
	_, err := s.AddListener("a", 1)
	assert.That(errors.Is(err, vcxerr.AlreadyExists))

	s.Broadcast(Notify{Kind: psm.KindProof, Handle: 1, State: state.OfferSent})
	n := <-a
	assert.Equal(n.Handle, 1)
	assert.Equal(n.State, state.OfferSent)
	assert.That(n.Timestamp != 0)
	assert.Equal((<-b).Kind, psm.KindProof)

	// b is full after this and the next one is dropped for b only
	s.Broadcast(Notify{Handle: 2})
	s.Broadcast(Notify{Handle: 3})
	assert.Equal((<-a).Handle, 2)
	assert.Equal((<-a).Handle, 3)
	assert.Equal((<-b).Handle, 2)
	assert.Equal(len(b), 0)

	s.RmListener("b")
	_, ok := <-b
	assert.That(!ok)
	s.RmListener("b")
	s.RmAll()
	_, ok = <-a
	assert.That(!ok)
}

func TestStation_Buffered(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := New()
	for i := 1; i <= MaxBuffered+2; i++ {
		s.Broadcast(Notify{Handle: handle.Handle(i)})
	}
	c := try.To1(s.AddListener("late", MaxBuffered))
	assert.Equal(len(c), MaxBuffered)
	assert.Equal((<-c).Handle, 3)

	// the rest goes straight to the listener
	s.Broadcast(Notify{Handle: 1000})
	assert.Equal(len(c), MaxBuffered)
}
