package vcx_test

import (
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/psm"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/findy-network/findy-vcx/protocol/protocoltest"
	"github.com/findy-network/findy-vcx/vcx"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const testKey = "15308490f1e4026284594dd08d31291bc8ef2aeac730d0daf6ff87bb92d4336c"

var ctx = context.Background()

func TestMain(m *testing.M) {
	_ = flag.Set("logtostderr", "true")
	os.Exit(m.Run())
}

func newRuntime(t *testing.T, cfg vcx.Config) *vcx.Runtime {
	t.Helper()
	cfg.TrusteeSeed = protocoltest.TrusteeSeed
	if cfg.WalletBackend == "" {
		cfg.WalletBackend = vcx.WalletMem
	}
	r := try.To1(vcx.New(cfg))
	t.Cleanup(r.Shutdown)
	return r
}

func wait(t *testing.T, poll vcx.PollFunc, target state.VcxState) {
	t.Helper()
	s, err := vcx.WaitState(ctx, poll, target)
	require.NoError(t, err)
	require.Equal(t, target, s)
}

// connect returns the inviter's and the invitee's connection handles.
func connect(t *testing.T, inviter, invitee *vcx.Runtime) (a, b vcx.Handle) {
	t.Helper()
	a = try.To1(inviter.ConnectionCreate("to invitee"))
	try.To(inviter.ConnectionConnect(ctx, a))
	b = try.To1(invitee.ConnectionCreateWithInvite("to inviter", try.To1(inviter.ConnectionInviteDetails(a))))
	try.To(invitee.ConnectionConnect(ctx, b))
	wait(t, inviter.ConnectionPoll(a), state.Accepted)
	wait(t, invitee.ConnectionPoll(b), state.Accepted)
	return a, b
}

func gvtCredDef(t *testing.T, r *vcx.Runtime, revocation bool) vcx.Handle {
	t.Helper()
	sh := try.To1(r.SchemaCreate(ctx, "gvt", "gvt", "1.0", protocoltest.GvtAttrs))
	assert.DeepEqual(try.To1(r.SchemaGetAttributes(sh)), protocoltest.GvtAttrs)
	return try.To1(r.CredentialDefCreate(ctx, "gvt", try.To1(r.SchemaGetID(sh)), "tag1", revocation))
}

func issue(t *testing.T, iss, hol *vcx.Runtime, ic, hc, cd vcx.Handle) (ih, ch vcx.Handle) {
	t.Helper()
	ih = try.To1(iss.IssuerCreateCredential(ctx, "gvt cred", cd, "gvt", protocoltest.GvtValues, "0"))
	try.To(iss.IssuerSendOffer(ctx, ih, ic))

	offers := try.To1(hol.CredentialGetOffers(ctx, hc))
	require.Len(t, offers, 1)
	ch = try.To1(hol.CredentialCreateWithMsgID(ctx, "gvt cred", hc, offers[0].ID))
	try.To(hol.CredentialSendRequest(ctx, ch, hc))

	wait(t, iss.IssuerPoll(ih), state.RequestReceived)
	try.To(iss.IssuerSendCredential(ctx, ih, ic))
	wait(t, hol.CredentialPoll(ch), state.Accepted)
	wait(t, iss.IssuerPoll(ih), state.Accepted)
	return ih, ch
}

func TestGvt(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	faber := newRuntime(t, vcx.DefaultConfig())
	alice := faber.Peer()
	acme := faber.Peer()

	fc, ac := connect(t, faber, alice)
	cd := gvtCredDef(t, faber, false)
	_, ch := issue(t, faber, alice, fc, ac, cd)
	info := try.To1(alice.CredentialGet(ch))
	assert.DeepEqual(info.Attrs, protocoltest.GvtValues)

	vc, pc := connect(t, acme, alice)
	rs := []anoncreds.Restriction{{CredDefID: try.To1(faber.CredentialDefGetID(cd))}}
	ph := try.To1(acme.ProofCreate("gvt proof", "gvt",
		[]anoncreds.AttrInfo{{Name: "name", Restrictions: rs}},
		[]anoncreds.PredicateInfo{{Name: "age", PType: ">=", PValue: 18, Restrictions: rs}},
		nil))
	try.To(acme.ProofSendRequest(ctx, ph, vc))

	reqs := try.To1(alice.DisclosedProofGetRequests(ctx, pc))
	require.Len(t, reqs, 1)
	dh := try.To1(alice.DisclosedProofCreateWithMsgID(ctx, "gvt proof", pc, reqs[0].ID))
	mc := try.To1(alice.DisclosedProofRetrieveCredentials(dh))
	assert.SLen(mc.Attrs["attribute_0"], 1)
	try.To(alice.DisclosedProofGenerateAuto(ctx, dh, nil))
	try.To(alice.DisclosedProofSend(ctx, dh, pc))

	wait(t, acme.ProofPoll(ph), state.Accepted)
	ps, proof, revealed := try.To3(acme.ProofGet(ph))
	assert.Equal(ps, state.ProofVerified)
	assert.That(len(proof) > 0)
	assert.Equal(revealed["attribute_0"], "Alex")

	assert.Equal(try.To1(alice.DisclosedProofUpdateState(ctx, dh)), state.Accepted)
}

func TestRelease(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	faber := newRuntime(t, vcx.DefaultConfig())
	alice := faber.Peer()
	fc, ac := connect(t, faber, alice)
	cd := gvtCredDef(t, faber, false)
	ih, ch := issue(t, faber, alice, fc, ac, cd)

	faber.IssuerRelease(ih)
	faber.IssuerRelease(ih)
	_, err := faber.IssuerGetState(ih)
	assert.That(errors.Is(err, vcxerr.InvalidHandle))
	_, err = faber.IssuerUpdateState(ctx, ih)
	assert.That(errors.Is(err, vcxerr.InvalidHandle))
	_, err = faber.IssuerSerialize(ih)
	assert.That(errors.Is(err, vcxerr.InvalidHandle))

	// objects bound to a released connection can't poll
	alice.ConnectionRelease(ac)
	alice.ConnectionRelease(ac)
	_, err = alice.ConnectionGetState(ac)
	assert.That(errors.Is(err, vcxerr.InvalidHandle))
	_, err = alice.CredentialUpdateState(ctx, ch)
	assert.That(errors.Is(err, vcxerr.InvalidConnection))
	assert.That(errors.Is(err, vcxerr.InvalidHandle))
	assert.Equal(try.To1(alice.CredentialGetState(ch)), state.Accepted)

	// a handle of another kind isn't valid either
	_, err = faber.ProofGetState(cd)
	assert.That(errors.Is(err, vcxerr.InvalidHandle))

	faber.ReleaseAll()
	_, err = faber.CredentialDefGetID(cd)
	assert.That(errors.Is(err, vcxerr.InvalidHandle))
	_, err = faber.ConnectionGetState(fc)
	assert.That(errors.Is(err, vcxerr.InvalidHandle))

	faber.CredentialDefRelease(cd)
	h := try.To1(faber.ConnectionCreate("new"))
	assert.NotEqual(h, fc)
	faber.Shutdown()
	faber.Shutdown()
}

func TestIssuerCreateCredential_Attributes(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := newRuntime(t, vcx.DefaultConfig())
	cd := gvtCredDef(t, r, false)

	_, err := r.IssuerCreateCredential(ctx, "", cd, "gvt", map[string]string{"name": "Alex"}, "")
	assert.That(errors.Is(err, vcxerr.InvalidAttributes))

	r.CredentialDefRelease(cd)
	_, err = r.IssuerCreateCredential(ctx, "", cd, "gvt", protocoltest.GvtValues, "")
	assert.That(errors.Is(err, vcxerr.InvalidHandle))

	peer := r.Peer()
	_, err = peer.SchemaCreate(ctx, "s", "s", "1.0", []string{"a"})
	assert.That(errors.Is(err, vcxerr.InvalidOption))
}

func TestKeyRotation(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := newRuntime(t, vcx.DefaultConfig())
	other := r.Peer()
	msg := []byte("signed by the DID")

	did, verkey := try.To2(r.CreateAndStoreDID(""))
	try.To(r.WriteNym(ctx, did, verkey, pool.RoleEndorser))
	assert.Equal(try.To1(other.GetVerkey(ctx, did)), verkey)

	newVerkey := try.To1(r.ReplaceKeysStart(did))
	assert.Equal(try.To1(r.GetVerkey(ctx, did)), verkey)
	try.To(r.ReplaceKeysApply(did))
	assert.Equal(try.To1(r.GetVerkey(ctx, did)), newVerkey)

	sig := try.To1(r.Sign(did, msg))
	assert.That(!try.To1(vcx.Verify(verkey, msg, sig)))
	assert.That(try.To1(vcx.Verify(newVerkey, msg, sig)))

	err := r.ReplaceKeysApply(did)
	assert.That(errors.Is(err, vcxerr.InvalidState))

	// the full rotation updates the ledger as well
	did2, verkey2 := try.To2(r.CreateAndStoreDID(""))
	try.To(r.WriteNym(ctx, did2, verkey2, pool.RoleEndorser))
	rotated := try.To1(r.RotateKey(ctx, did2))
	assert.NotEqual(rotated, verkey2)
	assert.Equal(try.To1(other.GetVerkey(ctx, did2)), rotated)
	sig = try.To1(r.Sign(did2, msg))
	assert.That(!try.To1(vcx.Verify(verkey2, msg, sig)))
	assert.That(try.To1(vcx.Verify(rotated, msg, sig)))
}

func TestSaveLoad(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	dir := t.TempDir()
	faber := newRuntime(t, vcx.Config{
		WalletBackend: vcx.WalletBolt,
		WalletFile:    filepath.Join(dir, "wallet.bolt"),
		WalletKey:     testKey,
		SnapshotFile:  filepath.Join(dir, "snapshots.bolt"),
		SnapshotKey:   testKey,
	})
	alice := faber.Peer()
	fc, ac := connect(t, faber, alice)
	cd := gvtCredDef(t, faber, false)

	ih := try.To1(faber.IssuerCreateCredential(ctx, "saved", cd, "gvt", protocoltest.GvtValues, ""))
	try.To(faber.IssuerSendOffer(ctx, ih, fc))
	try.To(faber.Save(psm.KindConnection, fc))
	try.To(faber.Save(psm.KindCredDef, cd))
	try.To(faber.Save(psm.KindIssuerCredential, ih))
	faber.ReleaseAll()

	assert.DeepEqual(try.To1(faber.SavedIDs(psm.KindIssuerCredential)), []string{"saved"})
	fc = try.To1(faber.Load(psm.KindConnection, "to invitee"))
	try.To1(faber.Load(psm.KindCredDef, "gvt"))
	ih = try.To1(faber.Load(psm.KindIssuerCredential, "saved"))
	assert.Equal(try.To1(faber.IssuerGetState(ih)), state.OfferSent)

	offers := try.To1(alice.CredentialGetOffers(ctx, ac))
	ch := try.To1(alice.CredentialCreateWithMsgID(ctx, "", ac, offers[0].ID))
	try.To(alice.CredentialSendRequest(ctx, ch, ac))

	// the loaded credential is bound to the loaded connection
	wait(t, faber.IssuerPoll(ih), state.RequestReceived)
	try.To(faber.IssuerSendCredential(ctx, ih, fc))
	wait(t, alice.CredentialPoll(ch), state.Accepted)

	try.To(faber.Forget(psm.KindIssuerCredential, "saved"))
	_, err := faber.Load(psm.KindIssuerCredential, "saved")
	assert.That(errors.Is(err, vcxerr.NotFound))

	err = alice.Save(psm.KindConnection, ac)
	assert.That(errors.Is(err, vcxerr.InvalidState))
}

func TestBind(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	faber := newRuntime(t, vcx.DefaultConfig())
	alice := faber.Peer()
	fc, ac := connect(t, faber, alice)

	ph := try.To1(faber.ProofCreate("", "names", []anoncreds.AttrInfo{{Name: "name"}}, nil, nil))
	try.To(faber.ProofSendRequest(ctx, ph, fc))
	data := try.To1(faber.ProofSerialize(ph))
	ph2 := try.To1(faber.ProofDeserialize(data))

	// unbound objects keep their state
	assert.Equal(try.To1(faber.ProofUpdateState(ctx, ph2)), state.OfferSent)
	try.To(faber.Bind(ph2, fc))
	assert.Equal(try.To1(faber.ProofUpdateState(ctx, ph2)), state.OfferSent)

	err := faber.Bind(ph2, ac)
	assert.That(errors.Is(err, vcxerr.InvalidHandle))
	err = faber.Bind(fc, fc)
	assert.That(errors.Is(err, vcxerr.InvalidHandle))
}

func TestWaitState(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	calls := 0
	s, err := vcx.WaitState(ctx, func(context.Context) (state.VcxState, error) {
		calls++
		if calls < 3 {
			return state.OfferSent, vcxerr.New(vcxerr.NotFound, "not yet")
		}
		return state.Accepted, nil
	}, state.Accepted)
	assert.NoError(err)
	assert.Equal(s, state.Accepted)
	assert.Equal(calls, 3)

	s, err = vcx.WaitState(ctx, func(context.Context) (state.VcxState, error) {
		return state.Unfulfilled, nil
	}, state.Accepted)
	assert.That(errors.Is(err, vcxerr.InvalidState))
	assert.Equal(s, state.Unfulfilled)

	_, err = vcx.WaitState(ctx, func(context.Context) (state.VcxState, error) {
		return state.OfferSent, vcxerr.New(vcxerr.InvalidJSON, "bad")
	}, state.Accepted)
	assert.That(errors.Is(err, vcxerr.InvalidJSON))

	short, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	s, err = vcx.WaitState(short, func(context.Context) (state.VcxState, error) {
		return state.OfferSent, nil
	}, state.Accepted)
	assert.Error(err)
	assert.Equal(s, state.OfferSent)
}

func TestConfigFromViper(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	v := viper.New()
	v.Set("wallet-backend", vcx.WalletAfgo)
	v.Set("timeout", "2s")
	v.Set("cache-size", 16)
	cfg := try.To1(vcx.ConfigFromViper(v))
	assert.Equal(cfg.WalletBackend, vcx.WalletAfgo)
	assert.Equal(cfg.Timeout, 2*time.Second)
	assert.Equal(cfg.CacheSize, 16)
	assert.NotEmpty(cfg.LedgerFile)

	v.Set("wallet-backend", "sqlite")
	_, err := vcx.ConfigFromViper(v)
	assert.That(errors.Is(err, vcxerr.InvalidOption))

	_, err = vcx.New(vcx.Config{WalletBackend: vcx.WalletMem, TrusteeSeed: "short"})
	assert.That(errors.Is(err, vcxerr.InvalidOption))
}

func TestListen(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	faber := newRuntime(t, vcx.DefaultConfig())
	alice := faber.Peer()
	events := try.To1(faber.Listen("test", 32))
	_, err := faber.Listen("test", 1)
	assert.That(errors.Is(err, vcxerr.AlreadyExists))

	fc, ac := connect(t, faber, alice)
	cd := gvtCredDef(t, faber, false)
	ih, _ := issue(t, faber, alice, fc, ac, cd)

	var connAccepted, issuerAccepted bool
	for len(events) > 0 {
		n := <-events
		switch {
		case n.Kind == psm.KindConnection && n.Handle == fc:
			connAccepted = connAccepted || n.State == state.Accepted
		case n.Kind == psm.KindIssuerCredential && n.Handle == ih:
			issuerAccepted = issuerAccepted || n.State == state.Accepted
		}
		assert.That(n.Timestamp > 0)
	}
	assert.That(connAccepted)
	assert.That(issuerAccepted)

	// a poll which doesn't move the object isn't broadcast
	assert.Equal(try.To1(faber.IssuerUpdateState(ctx, ih)), state.Accepted)
	assert.Equal(len(events), 0)

	faber.StopListen("test")
	_, ok := <-events
	assert.That(!ok)
}

func TestWalletRecords(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	r := newRuntime(t, vcx.Config{})

	try.To(r.WalletAddRecord("note", "n1", []byte("first"), map[string]string{"topic": "gvt"}))
	try.To(r.WalletAddRecord("note", "n2", []byte("second"), map[string]string{"topic": "other"}))
	err := r.WalletAddRecord("note", "n1", []byte("again"), nil)
	assert.That(errors.Is(err, vcxerr.AlreadyExists))

	rec := try.To1(r.WalletGetRecord("note", "n1"))
	assert.Equal(string(rec.Value), "first")
	assert.Equal(rec.Tags["topic"], "gvt")

	try.To(r.WalletUpdateRecordValue("note", "n1", []byte("updated")))
	try.To(r.WalletUpdateRecordTags("note", "n1", map[string]string{"topic": "gvt", "lang": "fi"}))
	try.To(r.WalletAddRecordTags("note", "n1", map[string]string{"lang": "en", "seen": "1"}))
	try.To(r.WalletDeleteRecordTags("note", "n1", "seen", "no-such-tag"))
	rec = try.To1(r.WalletGetRecord("note", "n1"))
	assert.Equal(string(rec.Value), "updated")
	assert.DeepEqual(rec.Tags, map[string]string{"topic": "gvt", "lang": "en"})

	recs := try.To1(r.WalletSearch("note", `{"topic": "gvt"}`, 0))
	assert.SLen(recs, 1)
	assert.Equal(recs[0].ID, "n1")
	recs = try.To1(r.WalletSearch("note", "", 0))
	assert.SLen(recs, 2)
	assert.Equal(recs[0].ID, "n2")
	assert.SLen(try.To1(r.WalletSearch("note", "", 1)), 1)
	_, err = r.WalletSearch("note", `{"topic":`, 0)
	assert.That(errors.Is(err, vcxerr.InvalidJSON))

	try.To(r.WalletDeleteRecord("note", "n1"))
	_, err = r.WalletGetRecord("note", "n1")
	assert.That(errors.Is(err, vcxerr.NotFound))
	err = r.WalletDeleteRecord("note", "n1")
	assert.That(errors.Is(err, vcxerr.NotFound))
	err = r.WalletUpdateRecordValue("note", "n1", nil)
	assert.That(errors.Is(err, vcxerr.NotFound))

	// the runtime's own records
	did, _ := try.To2(r.CreateAndStoreDID(""))
	_, err = r.WalletGetRecord(wallet.TypeBoxKey, did)
	assert.That(errors.Is(err, vcxerr.Unauthorized))
	err = r.WalletDeleteRecord(wallet.TypeDID, did)
	assert.That(errors.Is(err, vcxerr.Unauthorized))
	rec = try.To1(r.WalletGetRecord(wallet.TypeDID, did))
	assert.Equal(rec.ID, did)
}
