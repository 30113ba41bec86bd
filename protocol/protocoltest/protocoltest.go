// Package protocoltest has the shared fixture of the protocol tests: a local
// ledger with a trustee, an in-memory mailbox and connected agents.
package protocoltest

import (
	"context"
	"testing"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/ssi"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/txp"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/findy-network/findy-vcx/protocol"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/protocol/issuecredential/holder"
	"github.com/findy-network/findy-vcx/protocol/issuecredential/issuer"
	"github.com/lainio/err2/try"
)

// TrusteeSeed is the seed of the genesis trustee.
const TrusteeSeed = "000000000000000000000000Trustee1"

// GvtAttrs are the attributes of the gvt schema.
var GvtAttrs = []string{"name", "sex", "age", "height"}

// GvtValues are Alex's gvt values.
var GvtValues = map[string]string{
	"name":   "Alex",
	"sex":    "male",
	"age":    "28",
	"height": "175",
}

// Flaky is a transport whose next Fails sends fail with Timeout.
type Flaky struct {
	txp.Transport
	Fails int
}

func (f *Flaky) Send(ctx context.Context, to string, data []byte) error {
	if f.Fails > 0 {
		f.Fails--
		return vcxerr.New(vcxerr.Timeout, "send to %s", to)
	}
	return f.Transport.Send(ctx, to, data)
}

// Fixture is one ledger and one mailbox shared by the agents of a test.
type Fixture struct {
	Ledger  *pool.Local
	Txp     txp.Transport
	Trustee *Agent
}

// Agent is an env with its public DID, if it has one.
type Agent struct {
	*protocol.Env
	DID string
}

// New builds the fixture. The trustee agent is ready to act as an issuer.
func New(t *testing.T, tr txp.Transport) *Fixture {
	t.Helper()
	f := &Fixture{Txp: tr}
	f.Trustee = f.NewAgent()
	d := try.To1(f.Trustee.Keys.CreateDID(TrusteeSeed))
	f.Trustee.DID = d.DID
	f.Ledger = try.To1(pool.NewLocal(pool.Cfg{
		Genesis: []pool.Nym{{DID: d.DID, Verkey: d.Verkey, Role: pool.RoleTrustee}},
	}))
	f.Trustee.Ledger = f.Ledger
	t.Cleanup(func() { _ = f.Ledger.Close() })
	return f
}

// NewAgent returns an agent with an empty in-memory wallet.
func (f *Fixture) NewAgent() *Agent {
	return &Agent{Env: &protocol.Env{
		Keys:   ssi.NewKeys(wallet.NewMem()),
		Ledger: f.Ledger,
		Crypto: anoncreds.NewSD(),
		Txp:    f.Txp,
	}}
}

// NewIssuer returns an agent with an endorser DID written by the trustee.
func (f *Fixture) NewIssuer(t *testing.T) *Agent {
	t.Helper()
	a := f.NewAgent()
	d := try.To1(a.Keys.CreateDID(""))
	try.To1(pool.SubmitNym(context.Background(), f.Ledger, f.Trustee.Keys,
		f.Trustee.DID, d.DID, d.Verkey, pool.RolePtr(pool.RoleEndorser)))
	a.DID = d.DID
	return a
}

// Connect runs the connection protocol between the agents.
func (f *Fixture) Connect(t *testing.T, inviter, invitee *Agent) (a, b *connection.Connection) {
	t.Helper()
	ctx := context.Background()
	a = try.To1(connection.Create(inviter.Env, "inviter"))
	try.To1(a.Connect(ctx))
	b = try.To1(connection.CreateWithInvite(invitee.Env, "invitee", try.To1(a.InviteDetails())))
	try.To1(b.Connect(ctx))
	if s := try.To1(a.UpdateState(ctx)); s != state.Accepted {
		t.Fatalf("inviter in state %s", s)
	}
	if s := try.To1(b.UpdateState(ctx)); s != state.Accepted {
		t.Fatalf("invitee in state %s", s)
	}
	return a, b
}

// CredDef writes a schema of the attributes and a cred def of it by the
// issuer agent.
func (f *Fixture) CredDef(t *testing.T, issuer *Agent, name string, attrs []string, revocation bool) *ssi.CredDef {
	t.Helper()
	ctx := context.Background()
	s := try.To1(ssi.NewSchema(name, name, "1.0", attrs))
	try.To(s.Create(ctx, f.Ledger, issuer.Keys, issuer.DID))
	return try.To1(ssi.CreateCredDef(ctx, f.Ledger, issuer.Keys, issuer.Crypto,
		issuer.DID, name, s.ID, "tag1", revocation))
}

// Issue runs the credential issuing from the issuer to the holder over the
// connection pair and returns both objects in Accepted.
func Issue(
	t *testing.T,
	issuerAgent, holderAgent *Agent,
	issuerConn, holderConn *connection.Connection,
	cd *ssi.CredDef,
	values map[string]string,
) (ic *issuer.Credential, hc *holder.Credential) {
	t.Helper()
	ctx := context.Background()

	ic = try.To1(issuer.Create(ctx, issuerAgent.Env, "", cd, "cred", values, "0"))
	try.To(ic.SendOffer(ctx, issuerConn))

	offers := try.To1(holder.GetOffers(ctx, holderConn))
	if len(offers) == 0 {
		t.Fatal("no offers")
	}
	hc = try.To1(holder.CreateWithMsgID(ctx, holderAgent.Env, holderConn, "", offers[0].ID))
	try.To(hc.SendRequest(ctx, holderConn))

	if s := try.To1(ic.UpdateState(ctx, issuerConn)); s != state.RequestReceived {
		t.Fatalf("issuer in state %s", s)
	}
	try.To(ic.SendCredential(ctx, issuerConn))
	if s := try.To1(hc.UpdateState(ctx, holderConn)); s != state.Accepted {
		t.Fatalf("holder in state %s", s)
	}
	if s := try.To1(ic.UpdateState(ctx, issuerConn)); s != state.Accepted {
		t.Fatalf("issuer in state %s after ack", s)
	}
	return ic, hc
}
