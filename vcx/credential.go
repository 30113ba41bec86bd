package vcx

import (
	"context"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/psm"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/protocol/issuecredential/holder"
	"github.com/findy-network/findy-vcx/std/msg"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// CredentialGetOffers lists the offers waiting in the connection's mailbox.
func (r *Runtime) CredentialGetOffers(ctx context.Context, conn Handle) (offers []*msg.Msg, err error) {
	defer err2.Handle(&err)

	return holder.GetOffers(ctx, try.To1(r.conns.Get(conn)))
}

// CredentialCreateWithOffer creates the holder's credential of an offer the
// caller got some other way. It's bound to a connection at
// CredentialSendRequest.
func (r *Runtime) CredentialCreateWithOffer(sourceID string, offer []byte) (h Handle, err error) {
	defer err2.Handle(&err)

	return add(r.creds, try.To1(holder.CreateWithOffer(r.Env, sourceID, offer)), 0), nil
}

// CredentialCreateWithMsgID creates the holder's credential of an offer in
// the connection's mailbox.
func (r *Runtime) CredentialCreateWithMsgID(ctx context.Context, sourceID string, conn Handle, msgID string) (h Handle, err error) {
	defer err2.Handle(&err)

	cn := try.To1(r.conns.Get(conn))
	c := try.To1(holder.CreateWithMsgID(ctx, r.Env, cn, sourceID, msgID))
	return add(r.creds, c, conn), nil
}

func (r *Runtime) CredentialSendRequest(ctx context.Context, h, conn Handle) error {
	return withConn(r, r.creds, h, conn, func(c *holder.Credential, cn *connection.Connection) error {
		return c.SendRequest(ctx, cn)
	})
}

func (r *Runtime) CredentialUpdateState(ctx context.Context, h Handle) (state.VcxState, error) {
	return update(ctx, r, psm.KindCredential, r.creds, h, func(ctx context.Context, c *holder.Credential, cn *connection.Connection) (state.VcxState, error) {
		return c.UpdateState(ctx, cn)
	})
}

func (r *Runtime) CredentialGetState(h Handle) (state.VcxState, error) {
	return getState(r.creds, h)
}

// CredentialGet returns the stored credential of an accepted object.
func (r *Runtime) CredentialGet(h Handle) (info *anoncreds.CredentialInfo, err error) {
	err = with(r.creds, h, func(c *holder.Credential) error {
		info, err = c.GetCredential()
		return err
	})
	return info, err
}

func (r *Runtime) CredentialSerialize(h Handle) ([]byte, error) {
	return serialize(r.creds, h)
}

func (r *Runtime) CredentialDeserialize(data []byte) (h Handle, err error) {
	defer err2.Handle(&err)

	return add(r.creds, try.To1(holder.Deserialize(r.Env, data)), 0), nil
}

func (r *Runtime) CredentialRelease(h Handle) {
	r.creds.Release(h)
}
