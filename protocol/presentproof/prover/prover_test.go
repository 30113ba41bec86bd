package prover_test

import (
	"context"
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/txp"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/protocol/presentproof/prover"
	"github.com/findy-network/findy-vcx/protocol/presentproof/verifier"
	"github.com/findy-network/findy-vcx/protocol/protocoltest"
	"github.com/findy-network/findy-vcx/std/msg"
	"github.com/findy-network/findy-vcx/std/presentproof"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestMain(m *testing.M) {
	_ = flag.Set("logtostderr", "true")
	os.Exit(m.Run())
}

// scene has an issuer (the trustee), Alex the holder and a verifier, with
// connections issuer-Alex and verifier-Alex.
type scene struct {
	f                  *protocoltest.Fixture
	alex, verifier     *protocoltest.Agent
	issuerConn, alexIC *connection.Connection
	verConn, alexVC    *connection.Connection
}

func newScene(t *testing.T, tr txp.Transport) *scene {
	t.Helper()
	f := protocoltest.New(t, tr)
	s := &scene{f: f, alex: f.NewAgent(), verifier: f.NewAgent()}
	s.issuerConn, s.alexIC = f.Connect(t, f.Trustee, s.alex)
	s.verConn, s.alexVC = f.Connect(t, s.verifier, s.alex)
	return s
}

func (s *scene) issue(t *testing.T, issuer *protocoltest.Agent, cd string) {
	t.Helper()
	ic, hc := s.issuerConn, s.alexIC
	if issuer != s.f.Trustee {
		ic, hc = s.f.Connect(t, issuer, s.alex)
	}
	def := s.f.CredDef(t, issuer, cd, protocoltest.GvtAttrs, false)
	protocoltest.Issue(t, issuer, s.alex, ic, hc, def, protocoltest.GvtValues)
}

// request sends the proof request of the verifier and builds Alex's
// disclosed proof of it.
func (s *scene) request(
	t *testing.T,
	attrs []anoncreds.AttrInfo,
	preds []anoncreds.PredicateInfo,
) (*verifier.Proof, *prover.DisclosedProof) {
	t.Helper()
	p := try.To1(verifier.Create(s.verifier.Env, "proof", "proof of gvt", attrs, preds, nil))
	try.To(p.SendRequest(ctx, s.verConn))
	assert.Equal(p.GetState(), state.OfferSent)

	reqs := try.To1(prover.GetRequests(ctx, s.alexVC))
	require.NotEmpty(t, reqs)
	dp := try.To1(prover.CreateWithMsgID(ctx, s.alex.Env, s.alexVC, "dp", reqs[0].ID))
	assert.Equal(dp.ThreadID, p.ThreadID)
	return p, dp
}

func gvtRequest(credDefID string) ([]anoncreds.AttrInfo, []anoncreds.PredicateInfo) {
	rs := []anoncreds.Restriction{{CredDefID: credDefID}}
	return []anoncreds.AttrInfo{{Name: "name", Restrictions: rs}},
		[]anoncreds.PredicateInfo{{Name: "age", PType: ">=", PValue: 18, Restrictions: rs}}
}

func TestGvt(t *testing.T) {
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

			s := newScene(t, tt.tr)
			cd := s.f.CredDef(t, s.f.Trustee, "gvt", protocoltest.GvtAttrs, false)
			protocoltest.Issue(t, s.f.Trustee, s.alex, s.issuerConn, s.alexIC, cd, protocoltest.GvtValues)

			attrs, preds := gvtRequest(cd.ID)
			p, dp := s.request(t, attrs, preds)
			mc := try.To1(dp.RetrieveCredentials())
			assert.SLen(mc.Attrs["attribute_0"], 1)
			assert.SLen(mc.Predicates["predicate_0"], 1)
			assert.Equal(mc.Attrs["attribute_0"][0].Attrs["name"], "Alex")

			selected := try.To1(mc.AutoSelect(dp.Request, nil))
			try.To(dp.GenerateProof(ctx, selected))
			try.To(dp.SendProof(ctx, s.alexVC))
			assert.Equal(dp.GetState(), state.Accepted)

			assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Accepted)
			ps, proof, revealed := try.To3(p.GetProof())
			assert.Equal(ps, state.ProofVerified)
			assert.NotEmpty(string(proof))
			assert.Equal(revealed["attribute_0"], "Alex")

			assert.Equal(try.To1(dp.UpdateState(ctx, s.alexVC)), state.Accepted)
			assert.That(dp.Verified)

			// more polls change nothing
			assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Accepted)
			assert.Equal(try.To1(dp.UpdateState(ctx, s.alexVC)), state.Accepted)
		})
	}
}

func TestIssuerDIDRestriction(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, txp.NewMem())
	other := s.f.NewIssuer(t)
	s.issue(t, s.f.Trustee, "gvt")

	attrs := []anoncreds.AttrInfo{{Name: "name"}}
	preds := []anoncreds.PredicateInfo{{Name: "age", PType: ">=", PValue: 18,
		Restrictions: []anoncreds.Restriction{{IssuerDID: other.DID}}}}
	_, dp := s.request(t, attrs, preds)

	mc := try.To1(dp.RetrieveCredentials())
	assert.SLen(mc.Attrs["attribute_0"], 1)
	assert.SLen(mc.Predicates["predicate_0"], 0)

	_, err := mc.AutoSelect(dp.Request, nil)
	assert.That(errors.Is(err, vcxerr.InvalidProofCredentialData))

	selected := &anoncreds.RequestedCredentials{
		RequestedAttributes: map[string]anoncreds.RequestedAttr{
			"attribute_0": {CredID: mc.Attrs["attribute_0"][0].Referent, Revealed: true},
		},
	}
	err = dp.GenerateProof(ctx, selected)
	assert.That(errors.Is(err, vcxerr.InvalidProofCredentialData))

	// the trustee's credential does not fit even if chosen
	selected.RequestedPredicates = map[string]anoncreds.RequestedPred{
		"predicate_0": {CredID: mc.Attrs["attribute_0"][0].Referent},
	}
	err = dp.GenerateProof(ctx, selected)
	assert.That(errors.Is(err, vcxerr.InvalidProofCredentialData))
	assert.Equal(dp.GetState(), state.Initialized)

	// once the other issuer has issued, its credential is the only match
	s.issue(t, other, "gvt2")
	mc = try.To1(dp.RetrieveCredentials())
	assert.SLen(mc.Attrs["attribute_0"], 2)
	assert.SLen(mc.Predicates["predicate_0"], 1)
	assert.Equal(anoncreds.IssuerOf(mc.Predicates["predicate_0"][0].CredDefID), other.DID)
}

func TestRetrieveCredentials_NewestFirst(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, txp.NewMem())
	cd := s.f.CredDef(t, s.f.Trustee, "gvt", protocoltest.GvtAttrs, false)
	_, first := protocoltest.Issue(t, s.f.Trustee, s.alex, s.issuerConn, s.alexIC, cd, protocoltest.GvtValues)
	_, second := protocoltest.Issue(t, s.f.Trustee, s.alex, s.issuerConn, s.alexIC, cd, protocoltest.GvtValues)

	attrs, preds := gvtRequest(cd.ID)
	_, dp := s.request(t, attrs, preds)
	mc := try.To1(dp.RetrieveCredentials())
	require.Len(t, mc.Attrs["attribute_0"], 2)
	assert.Equal(mc.Attrs["attribute_0"][0].Referent, second.Referent)
	assert.Equal(mc.Attrs["attribute_0"][1].Referent, first.Referent)

	// under age predicate matches nothing
	_, dp = s.request(t, []anoncreds.AttrInfo{{Name: "name"}},
		[]anoncreds.PredicateInfo{{Name: "age", PType: "<", PValue: 18}})
	mc = try.To1(dp.RetrieveCredentials())
	assert.SLen(mc.Predicates["predicate_0"], 0)
}

func TestSelfAttested(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, txp.NewMem())
	cd := s.f.CredDef(t, s.f.Trustee, "gvt", protocoltest.GvtAttrs, false)
	protocoltest.Issue(t, s.f.Trustee, s.alex, s.issuerConn, s.alexIC, cd, protocoltest.GvtValues)

	attrs := []anoncreds.AttrInfo{
		{Names: []string{"name", "sex"}, Restrictions: []anoncreds.Restriction{{CredDefID: cd.ID}}},
		{Name: "phone"},
	}
	p, dp := s.request(t, attrs, nil)
	mc := try.To1(dp.RetrieveCredentials())
	assert.SLen(mc.Attrs["attribute_1"], 0)

	_, err := mc.AutoSelect(dp.Request, nil)
	assert.That(errors.Is(err, vcxerr.InvalidProofCredentialData))
	selected := try.To1(mc.AutoSelect(dp.Request, map[string]string{"attribute_1": "555-1234"}))
	try.To(dp.GenerateProof(ctx, selected))
	try.To(dp.SendProof(ctx, s.alexVC))

	assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Accepted)
	ps, _, revealed := try.To3(p.GetProof())
	assert.Equal(ps, state.ProofVerified)
	assert.Equal(revealed["attribute_0.name"], "Alex")
	assert.Equal(revealed["attribute_0.sex"], "male")
	assert.Equal(revealed["attribute_1"], "555-1234")
}

func TestDecline(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, txp.NewMem())
	p, dp := s.request(t, []anoncreds.AttrInfo{{Name: "name"}}, nil)

	try.To(dp.Decline(ctx, s.alexVC, "no thanks"))
	assert.Equal(dp.GetState(), state.Unfulfilled)
	err := dp.SendProof(ctx, s.alexVC)
	assert.That(errors.Is(err, vcxerr.InvalidState))

	assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Unfulfilled)
	_, _, _, err = p.GetProof()
	assert.That(errors.Is(err, vcxerr.InvalidState))
}

func TestSendProof_NotGenerated(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, txp.NewMem())
	_, dp := s.request(t, []anoncreds.AttrInfo{{Name: "name"}}, nil)
	err := dp.SendProof(ctx, s.alexVC)
	assert.That(errors.Is(err, vcxerr.InvalidState))

	err = dp.GenerateProof(ctx, &anoncreds.RequestedCredentials{
		RequestedAttributes: map[string]anoncreds.RequestedAttr{
			"attribute_0": {CredID: "no-such-credential", Revealed: true},
		},
	})
	assert.That(errors.Is(err, vcxerr.InvalidProofCredentialData))
}

func TestCreateWithRequest_Invalid(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	f := protocoltest.New(t, txp.NewMem())
	alex := f.NewAgent()

	tests := []struct {
		name string
		req  string
		kind vcxerr.Kind
	}{
		{"no nonce", `{"requested_attributes":{}}`, vcxerr.InvalidOption},
		{"bad p_type", `{"nonce":"1","requested_attributes":{},
			"requested_predicates":{"p":{"name":"age","p_type":"!=","p_value":1}}}`, vcxerr.InvalidOption},
		{"name and names", `{"nonce":"1","requested_attributes":{
			"a":{"name":"x","names":["y"]}}}`, vcxerr.InvalidOption},
		{"empty", `{"nonce":"1","requested_attributes":{}}`, vcxerr.InvalidOption},
		{"not json", `{`, vcxerr.InvalidJSON},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			m := try.To1(msg.New(msg.TypePresentationRequest, "",
				presentproof.NewRequest("", []byte(tt.req))))
			_, err := prover.CreateWithRequest(alex.Env, "", m.JSON())
			assert.Equal(vcxerr.KindOf(err), tt.kind)
		})
	}

	m := try.To1(msg.New(msg.TypeCredOffer, "", map[string]string{}))
	_, err := prover.CreateWithRequest(alex.Env, "", m.JSON())
	assert.That(errors.Is(err, vcxerr.InvalidOption))
}

func TestSerialize(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, txp.NewMem())
	cd := s.f.CredDef(t, s.f.Trustee, "gvt", protocoltest.GvtAttrs, false)
	protocoltest.Issue(t, s.f.Trustee, s.alex, s.issuerConn, s.alexIC, cd, protocoltest.GvtValues)
	attrs, preds := gvtRequest(cd.ID)
	p, dp := s.request(t, attrs, preds)

	data := try.To1(dp.Serialize())
	dp = try.To1(prover.Deserialize(s.alex.Env, data))
	assert.DeepEqual(try.To1(dp.Serialize()), data)

	mc := try.To1(dp.RetrieveCredentials())
	try.To(dp.GenerateProof(ctx, try.To1(mc.AutoSelect(dp.Request, nil))))
	try.To(dp.SendProof(ctx, s.alexVC))

	pdata := try.To1(p.Serialize())
	p = try.To1(verifier.Deserialize(s.verifier.Env, pdata))
	assert.DeepEqual(try.To1(p.Serialize()), pdata)
	assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Accepted)

	pdata = try.To1(p.Serialize())
	p = try.To1(verifier.Deserialize(s.verifier.Env, pdata))
	assert.DeepEqual(try.To1(p.Serialize()), pdata)
	ps, _, revealed := try.To3(p.GetProof())
	assert.Equal(ps, state.ProofVerified)
	assert.Equal(revealed["attribute_0"], "Alex")

	_, err := prover.Deserialize(s.alex.Env, []byte(`{"version":"1.0","data":{}}`))
	assert.That(errors.Is(err, vcxerr.InvalidJSON))
}
