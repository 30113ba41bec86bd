package vcx

import (
	"context"

	"github.com/findy-network/findy-vcx/agent/bus"
	"github.com/findy-network/findy-vcx/agent/handle"
	"github.com/findy-network/findy-vcx/agent/psm"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/protocol/connection"
)

type stateful interface {
	GetState() state.VcxState
	Serialize() ([]byte, error)
}

// withConn runs fn for the object and the connection of connH, and binds the
// object to the connection if fn succeeds.
func withConn[T any](
	r *Runtime,
	t *handle.Table[*bound[T]],
	h, connH Handle,
	fn func(obj T, c *connection.Connection) error,
) error {
	return t.Do(h, func(b *bound[T]) error {
		c, err := r.conns.Get(connH)
		if err != nil {
			return err
		}
		if err := fn(b.obj, c); err != nil {
			return err
		}
		b.conn = connH
		return nil
	})
}

// update polls the object over its bound connection. An object which isn't
// bound has no mailbox to poll and keeps its state. A poll which moves the
// object is broadcast to the listeners.
func update[T stateful](
	ctx context.Context,
	r *Runtime,
	k psm.Kind,
	t *handle.Table[*bound[T]],
	h Handle,
	fn func(ctx context.Context, obj T, c *connection.Connection) (state.VcxState, error),
) (s state.VcxState, err error) {
	err = t.Do(h, func(b *bound[T]) error {
		c, err := r.conn(b.conn)
		if err != nil {
			return err
		}
		old := b.obj.GetState()
		if c == nil {
			s = old
			return nil
		}
		s, err = fn(ctx, b.obj, c)
		if err == nil && s != old {
			r.station.Broadcast(bus.Notify{Kind: k, Handle: h, State: s})
		}
		return err
	})
	return s, err
}

func getState[T stateful](t *handle.Table[*bound[T]], h Handle) (s state.VcxState, err error) {
	err = t.Do(h, func(b *bound[T]) error {
		s = b.obj.GetState()
		return nil
	})
	return s, err
}

func serialize[T stateful](t *handle.Table[*bound[T]], h Handle) (data []byte, err error) {
	err = t.Do(h, func(b *bound[T]) error {
		data, err = b.obj.Serialize()
		return err
	})
	return data, err
}

// with runs fn for the object of the handle.
func with[T any](t *handle.Table[*bound[T]], h Handle, fn func(obj T) error) error {
	return t.Do(h, func(b *bound[T]) error {
		return fn(b.obj)
	})
}

// add stores an object bound to connH, which may be zero.
func add[T any](t *handle.Table[*bound[T]], obj T, connH Handle) Handle {
	return t.Add(&bound[T]{obj: obj, conn: connH})
}
