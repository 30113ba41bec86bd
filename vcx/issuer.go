package vcx

import (
	"context"

	"github.com/findy-network/findy-vcx/agent/psm"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/protocol/issuecredential/issuer"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// IssuerCreateCredential creates an issuer credential of the cred def. The
// values must cover exactly the schema's attributes.
func (r *Runtime) IssuerCreateCredential(
	ctx context.Context,
	sourceID string,
	credDef Handle,
	credentialName string,
	values map[string]string,
	price string,
) (h Handle, err error) {
	defer err2.Handle(&err, "issuer create credential")

	cd := try.To1(r.credDefs.Get(credDef))
	c := try.To1(issuer.Create(ctx, r.Env, sourceID, cd, credentialName, values, price))
	return add(r.issuerCreds, c, 0), nil
}

// IssuerSendOffer sends the offer over the connection and binds the
// credential to it.
func (r *Runtime) IssuerSendOffer(ctx context.Context, h, conn Handle) error {
	return withConn(r, r.issuerCreds, h, conn, func(c *issuer.Credential, cn *connection.Connection) error {
		return c.SendOffer(ctx, cn)
	})
}

func (r *Runtime) IssuerUpdateState(ctx context.Context, h Handle) (state.VcxState, error) {
	return update(ctx, r, psm.KindIssuerCredential, r.issuerCreds, h, func(ctx context.Context, c *issuer.Credential, cn *connection.Connection) (state.VcxState, error) {
		return c.UpdateState(ctx, cn)
	})
}

func (r *Runtime) IssuerGetState(h Handle) (state.VcxState, error) {
	return getState(r.issuerCreds, h)
}

// IssuerSendCredential sends the credential for the received request. It
// can be called again to resend the same credential.
func (r *Runtime) IssuerSendCredential(ctx context.Context, h, conn Handle) error {
	return withConn(r, r.issuerCreds, h, conn, func(c *issuer.Credential, cn *connection.Connection) error {
		return c.SendCredential(ctx, cn)
	})
}

// IssuerRevoke writes the revocation of an issued credential to the ledger.
func (r *Runtime) IssuerRevoke(ctx context.Context, h Handle) error {
	return with(r.issuerCreds, h, func(c *issuer.Credential) error {
		return c.Revoke(ctx)
	})
}

func (r *Runtime) IssuerGetRevID(h Handle) (revID string, err error) {
	err = with(r.issuerCreds, h, func(c *issuer.Credential) error {
		revID = c.RevID
		return nil
	})
	return revID, err
}

func (r *Runtime) IssuerSerialize(h Handle) ([]byte, error) {
	return serialize(r.issuerCreds, h)
}

// IssuerDeserialize restores the credential unbound. The next send binds it
// to a connection again.
func (r *Runtime) IssuerDeserialize(data []byte) (h Handle, err error) {
	defer err2.Handle(&err)

	return add(r.issuerCreds, try.To1(issuer.Deserialize(r.Env, data)), 0), nil
}

func (r *Runtime) IssuerRelease(h Handle) {
	r.issuerCreds.Release(h)
}
