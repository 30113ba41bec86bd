package connection

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"testing"
	"time"

	"github.com/findy-network/findy-vcx/agent/ssi"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/txp"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/findy-network/findy-vcx/protocol"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

func TestMain(m *testing.M) {
	_ = flag.Set("logtostderr", "true")
	os.Exit(m.Run())
}

func newEnv(t txp.Transport) *protocol.Env {
	return &protocol.Env{
		Keys: ssi.NewKeys(wallet.NewMem()),
		Txp:  t,
	}
}

// flakyTxp fails the next fails sends.
type flakyTxp struct {
	txp.Transport
	fails int
}

func (f *flakyTxp) Send(ctx context.Context, to string, data []byte) error {
	if f.fails > 0 {
		f.fails--
		return vcxerr.New(vcxerr.Timeout, "send to %s", to)
	}
	return f.Transport.Send(ctx, to, data)
}

func connect(t *testing.T, tr txp.Transport) (inviter, invitee *Connection) {
	t.Helper()
	ctx := context.Background()

	inviter = try.To1(Create(newEnv(tr), "alice"))
	inv := try.To1(inviter.Connect(ctx))
	assert.Equal(inviter.GetState(), state.OfferSent)

	invite := try.To1(inviter.InviteDetails())
	invitee = try.To1(CreateWithInvite(newEnv(tr), "faber", invite))
	assert.Equal(invitee.GetState(), state.Initialized)
	assert.Equal(invitee.ThreadID, inv.ID)

	try.To1(invitee.Connect(ctx))
	assert.Equal(invitee.GetState(), state.RequestReceived)

	assert.Equal(try.To1(inviter.UpdateState(ctx)), state.Accepted)
	assert.Equal(try.To1(invitee.UpdateState(ctx)), state.Accepted)
	return inviter, invitee
}

func TestConnect(t *testing.T) {
	tests := []struct {
		name string
		tr   txp.Transport
	}{
		{"plain", txp.NewMem()},
		{"duplicates", txp.NewMem(txp.WithDuplicates())},
		{"reorder", txp.NewMem(txp.WithReorder(), txp.WithDuplicates())},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			inviter, invitee := connect(t, tt.tr)
			assert.Equal(inviter.Their.DID, invitee.MyDID)
			assert.Equal(invitee.Their.DID, inviter.MyDID)

			ctx := context.Background()
			// the duplicates are dropped and the state stays
			assert.Equal(try.To1(inviter.UpdateState(ctx)), state.Accepted)
			assert.Equal(try.To1(invitee.UpdateState(ctx)), state.Accepted)

			_, err := inviter.Connect(ctx)
			assert.That(errors.Is(err, vcxerr.InvalidState))

			rec := try.To1(inviter.env.Keys.W.Get(wallet.TypeConnection, inviter.MyDID))
			assert.SNotEmpty(rec.Value)
		})
	}
}

func TestSendAndInbox(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	inviter, invitee := connect(t, txp.NewMem(txp.WithDuplicates()))

	m := try.To1(inviter.Send(ctx, "test/1.0/ping", "", map[string]string{"hello": "world"}))
	in := try.To1(invitee.Inbox(ctx))
	assert.SLen(in, 2)
	for _, im := range in {
		assert.Equal(im.Msg.ID, m.ID)
		assert.Equal(im.Msg.FromDID, inviter.MyDID)
		var payload map[string]string
		try.To(im.Msg.Decode(&payload))
		assert.Equal(payload["hello"], "world")
	}
	try.To(invitee.Ack(ctx, in[0].TxpID, in[1].TxpID))
	assert.SLen(try.To1(invitee.Inbox(ctx)), 0)

	notReady := try.To1(Create(newEnv(txp.NewMem()), "x"))
	_, err := notReady.Send(ctx, "test/1.0/ping", "", nil)
	assert.That(errors.Is(err, vcxerr.InvalidState))
}

func TestInbox_DropsForeignMessages(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	tr := txp.NewMem()
	inviter, _ := connect(t, tr)
	try.To(tr.Send(ctx, inviter.MyDID, []byte(`{"not":"sealed"}`)))

	assert.SLen(try.To1(inviter.Inbox(ctx)), 0)
	assert.SLen(try.To1(tr.Receive(ctx, inviter.MyDID)), 0)
}

func TestDecline(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	tr := txp.NewMem()
	inviter := try.To1(Create(newEnv(tr), "alice"))
	try.To1(inviter.Connect(ctx))
	invitee := try.To1(CreateWithInvite(newEnv(tr), "faber", try.To1(inviter.InviteDetails())))

	try.To(invitee.Decline(ctx, "no thanks"))
	assert.Equal(invitee.GetState(), state.Unfulfilled)
	assert.Equal(try.To1(inviter.UpdateState(ctx)), state.Unfulfilled)

	// terminal state is absorbing
	assert.Equal(try.To1(inviter.UpdateState(ctx)), state.Unfulfilled)
	_, err := invitee.Connect(ctx)
	assert.That(errors.Is(err, vcxerr.InvalidState))
}

func TestExpired(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	env := newEnv(txp.NewMem())
	env.Clock = func() time.Time { return now }
	env.Timeout = time.Minute

	c := try.To1(Create(env, "alice"))
	try.To1(c.Connect(ctx))
	assert.Equal(try.To1(c.UpdateState(ctx)), state.OfferSent)

	now = now.Add(2 * time.Minute)
	assert.Equal(try.To1(c.UpdateState(ctx)), state.Expired)
	assert.Equal(try.To1(c.UpdateState(ctx)), state.Expired)
}

func TestSerialize(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	tr := txp.NewMem()
	inviter, invitee := connect(t, tr)
	for _, c := range []*Connection{inviter, invitee} {
		data := try.To1(c.Serialize())
		c2 := try.To1(Deserialize(c.env, data))
		assert.Equal(string(try.To1(c2.Serialize())), string(data))
		assert.Equal(c2.GetState(), state.Accepted)
		assert.DeepEqual(c2.Status(), c.Status())
	}

	_, err := Deserialize(inviter.env, []byte(`{"version":"2.0","data":{}}`))
	assert.That(errors.Is(err, vcxerr.InvalidOption))
	_, err = Deserialize(inviter.env, []byte(`{"version":"1.0","data":{}}`))
	assert.That(errors.Is(err, vcxerr.InvalidJSON))
}

func TestCreateWithInvite_Invalid(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	env := newEnv(txp.NewMem())
	_, err := CreateWithInvite(env, "x", []byte(`{`))
	assert.That(errors.Is(err, vcxerr.InvalidJSON))
	_, err = CreateWithInvite(env, "x", []byte(`{"@id":"1","did":"","verkey":"","box_key":""}`))
	assert.That(errors.Is(err, vcxerr.InvalidOption))
}

func TestConnect_ResponseSendFails(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	tr := txp.NewMem()
	flaky := &flakyTxp{Transport: tr, fails: 1}
	inviter := try.To1(Create(newEnv(flaky), "alice"))
	try.To1(inviter.Connect(ctx))
	invitee := try.To1(CreateWithInvite(newEnv(tr), "faber", try.To1(inviter.InviteDetails())))
	try.To1(invitee.Connect(ctx))

	st, err := inviter.UpdateState(ctx)
	assert.That(errors.Is(err, vcxerr.Timeout))
	assert.Equal(st, state.OfferSent)
	assert.Equal(inviter.Their.DID, "")
	_, err = inviter.env.Keys.W.Get(wallet.TypeConnection, inviter.MyDID)
	assert.That(errors.Is(err, vcxerr.NotFound))

	// the request is still in the mailbox and the retry answers it
	assert.Equal(try.To1(inviter.UpdateState(ctx)), state.Accepted)
	assert.Equal(inviter.Their.DID, invitee.MyDID)
	assert.Equal(try.To1(invitee.UpdateState(ctx)), state.Accepted)
	assert.Equal(invitee.Their.DID, inviter.MyDID)
}

func TestInvitation_RecipientKeys(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	ctx := context.Background()
	tr := txp.NewMem()
	inviter := try.To1(Create(newEnv(tr), "alice"))
	inv := try.To1(inviter.Connect(ctx))
	assert.SLen(inv.RecipientKeys, 1)
	assert.Equal(try.To1(ssi.VerkeyFromDIDKey(inv.RecipientKeys[0])), inv.Verkey)

	invitee := try.To1(CreateWithInvite(newEnv(tr), "faber", try.To1(inviter.InviteDetails())))
	assert.DeepEqual(invitee.Invitation.RecipientKeys, inv.RecipientKeys)

	other := try.To1(ssi.NewKeys(wallet.NewMem()).CreateDID(""))
	forged := *inv
	forged.RecipientKeys = []string{other.DIDKey()}
	_, err := CreateWithInvite(newEnv(tr), "faber", try.To1(json.Marshal(&forged)))
	assert.That(errors.Is(err, vcxerr.InvalidOption))

	forged.RecipientKeys = []string{"did:key:nope"}
	_, err = CreateWithInvite(newEnv(tr), "faber", try.To1(json.Marshal(&forged)))
	assert.That(errors.Is(err, vcxerr.InvalidOption))

	// the did:keys are optional
	forged.RecipientKeys = nil
	try.To1(CreateWithInvite(newEnv(tr), "faber", try.To1(json.Marshal(&forged))))
}
