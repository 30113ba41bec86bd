package vcx

import (
	"context"

	"github.com/findy-network/findy-vcx/agent/bus"
	"github.com/findy-network/findy-vcx/agent/psm"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// ConnectionCreate creates a connection which becomes the inviter at
// ConnectionConnect.
func (r *Runtime) ConnectionCreate(sourceID string) (h Handle, err error) {
	defer err2.Handle(&err)

	return r.conns.Add(try.To1(connection.Create(r.Env, sourceID))), nil
}

// ConnectionCreateWithInvite creates the invitee end of the invitation.
func (r *Runtime) ConnectionCreateWithInvite(sourceID string, invite []byte) (h Handle, err error) {
	defer err2.Handle(&err)

	return r.conns.Add(try.To1(connection.CreateWithInvite(r.Env, sourceID, invite))), nil
}

// ConnectionConnect starts the protocol: the inviter publishes its
// invitation, the invitee sends its request.
func (r *Runtime) ConnectionConnect(ctx context.Context, h Handle) error {
	return r.conns.Do(h, func(c *connection.Connection) error {
		_, err := c.Connect(ctx)
		return err
	})
}

func (r *Runtime) ConnectionUpdateState(ctx context.Context, h Handle) (s state.VcxState, err error) {
	err = r.conns.Do(h, func(c *connection.Connection) error {
		old := c.GetState()
		s, err = c.UpdateState(ctx)
		if err == nil && s != old {
			r.station.Broadcast(bus.Notify{Kind: psm.KindConnection, Handle: h, State: s})
		}
		return err
	})
	return s, err
}

func (r *Runtime) ConnectionGetState(h Handle) (s state.VcxState, err error) {
	err = r.conns.Do(h, func(c *connection.Connection) error {
		s = c.GetState()
		return nil
	})
	return s, err
}

// ConnectionInviteDetails returns the invitation JSON the invitee needs.
func (r *Runtime) ConnectionInviteDetails(h Handle) (invite []byte, err error) {
	err = r.conns.Do(h, func(c *connection.Connection) error {
		invite, err = c.InviteDetails()
		return err
	})
	return invite, err
}

// ConnectionStatus returns the pairwise view of the connection.
func (r *Runtime) ConnectionStatus(h Handle) (p connection.Pairwise, err error) {
	err = r.conns.Do(h, func(c *connection.Connection) error {
		p = c.Status()
		return nil
	})
	return p, err
}

// ConnectionDecline sends a problem report to the other end and ends the
// connection.
func (r *Runtime) ConnectionDecline(ctx context.Context, h Handle, reason string) error {
	return r.conns.Do(h, func(c *connection.Connection) error {
		return c.Decline(ctx, reason)
	})
}

func (r *Runtime) ConnectionSerialize(h Handle) (data []byte, err error) {
	err = r.conns.Do(h, func(c *connection.Connection) error {
		data, err = c.Serialize()
		return err
	})
	return data, err
}

func (r *Runtime) ConnectionDeserialize(data []byte) (h Handle, err error) {
	defer err2.Handle(&err)

	return r.conns.Add(try.To1(connection.Deserialize(r.Env, data))), nil
}

// ConnectionRelease frees the handle. The objects bound to the connection
// can't poll after it.
func (r *Runtime) ConnectionRelease(h Handle) {
	r.conns.Release(h)
}
