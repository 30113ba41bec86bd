package verifier_test

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/pool/mock_pool"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/txp"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/protocol/presentproof/prover"
	"github.com/findy-network/findy-vcx/protocol/presentproof/verifier"
	"github.com/findy-network/findy-vcx/protocol/protocoltest"
	"github.com/golang/mock/gomock"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var ctx = context.Background()

func TestMain(m *testing.M) {
	_ = flag.Set("logtostderr", "true")
	os.Exit(m.Run())
}

type scene struct {
	f               *protocoltest.Fixture
	cd              string
	ver             *protocoltest.Agent
	verConn, alexVC *connection.Connection
	alex            *protocoltest.Agent
}

// newScene issues Alex a gvt credential and connects Alex to the verifier.
func newScene(t *testing.T, revocation bool) *scene {
	t.Helper()
	f := protocoltest.New(t, txp.NewMem())
	s := &scene{f: f, alex: f.NewAgent(), ver: f.NewAgent()}
	ic, hc := f.Connect(t, f.Trustee, s.alex)
	cd := f.CredDef(t, f.Trustee, "gvt", protocoltest.GvtAttrs, revocation)
	s.cd = cd.ID
	protocoltest.Issue(t, f.Trustee, s.alex, ic, hc, cd, protocoltest.GvtValues)
	s.verConn, s.alexVC = f.Connect(t, s.ver, s.alex)
	return s
}

func (s *scene) gvtProof(t *testing.T, nr *anoncreds.NonRevoked) (*verifier.Proof, *prover.DisclosedProof) {
	t.Helper()
	rs := []anoncreds.Restriction{{CredDefID: s.cd}}
	p := try.To1(verifier.Create(s.ver.Env, "", "gvt",
		[]anoncreds.AttrInfo{{Name: "name", Restrictions: rs}},
		[]anoncreds.PredicateInfo{{Name: "age", PType: ">=", PValue: 18, Restrictions: rs}},
		nr))
	try.To(p.SendRequest(ctx, s.verConn))

	reqs := try.To1(prover.GetRequests(ctx, s.alexVC))
	dp := try.To1(prover.CreateWithMsgID(ctx, s.alex.Env, s.alexVC, "", reqs[0].ID))
	mc := try.To1(dp.RetrieveCredentials())
	try.To(dp.GenerateProof(ctx, try.To1(mc.AutoSelect(dp.Request, nil))))
	return p, dp
}

func TestCreate(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	f := protocoltest.New(t, txp.NewMem())
	ver := f.NewAgent()

	p := try.To1(verifier.Create(ver.Env, "src", "two",
		[]anoncreds.AttrInfo{{Name: "name"}, {Names: []string{"sex", "age"}}},
		[]anoncreds.PredicateInfo{{Name: "height", PType: ">", PValue: 150}},
		&anoncreds.NonRevoked{To: 100}))
	assert.Equal(p.SourceID, "src")
	assert.Equal(p.GetState(), state.Initialized)
	assert.Equal(p.Request.RequestedAttributes["attribute_0"].Name, "name")
	assert.SLen(p.Request.RequestedAttributes["attribute_1"].Names, 2)
	assert.Equal(p.Request.RequestedPredicates["predicate_0"].Name, "height")
	assert.NotEmpty(p.Request.Nonce)

	p2 := try.To1(verifier.Create(ver.Env, "", "two", []anoncreds.AttrInfo{{Name: "name"}}, nil, nil))
	assert.NotEqual(p2.Request.Nonce, p.Request.Nonce)
	assert.NotEqual(p2.SourceID, "")

	_, err := verifier.Create(ver.Env, "", "empty", nil, nil, nil)
	assert.That(errors.Is(err, vcxerr.InvalidOption))
	_, err = verifier.Create(ver.Env, "", "bad", nil,
		[]anoncreds.PredicateInfo{{Name: "age", PType: "=="}}, nil)
	assert.That(errors.Is(err, vcxerr.InvalidOption))

	notConnected := try.To1(connection.Create(ver.Env, "c"))
	err = p.SendRequest(ctx, notConnected)
	assert.That(errors.Is(err, vcxerr.InvalidState))
	_, _, _, err = p.GetProof()
	assert.That(errors.Is(err, vcxerr.InvalidState))
}

func TestVerifyProof_Deterministic(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, false)
	p, dp := s.gvtProof(t, nil)

	for i := 0; i < 2; i++ {
		ok := try.To1(verifier.VerifyProof(ctx, s.ver.Env, &p.Request, dp.Proof))
		assert.That(ok)
	}

	forged := new(anoncreds.Proof)
	try.To(json.Unmarshal(try.To1(json.Marshal(dp.Proof)), forged))
	a := forged.RequestedProof.RevealedAttrs["attribute_0"]
	a.Raw = "Bob"
	forged.RequestedProof.RevealedAttrs["attribute_0"] = a
	for i := 0; i < 2; i++ {
		ok := try.To1(verifier.VerifyProof(ctx, s.ver.Env, &p.Request, forged))
		assert.That(!ok)
	}

	// a proof is bound to the nonce of its request
	other := p.Request
	other.Nonce = "1234"
	assert.That(!try.To1(verifier.VerifyProof(ctx, s.ver.Env, &other, dp.Proof)))
}

func TestInvalidPresentation(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, false)
	p, dp := s.gvtProof(t, nil)
	a := dp.Proof.RequestedProof.RevealedAttrs["attribute_0"]
	a.Raw = "Bob"
	dp.Proof.RequestedProof.RevealedAttrs["attribute_0"] = a
	try.To(dp.SendProof(ctx, s.alexVC))

	assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Accepted)
	ps, _, revealed := try.To3(p.GetProof())
	assert.Equal(ps, state.ProofInvalid)
	assert.Equal(len(revealed), 0)

	assert.Equal(try.To1(dp.UpdateState(ctx, s.alexVC)), state.Unfulfilled)
	assert.That(!dp.Verified)
}

func TestRevokedCredential(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, true)
	nr := &anoncreds.NonRevoked{To: 1}

	p, dp := s.gvtProof(t, nr)
	assert.That(try.To1(verifier.VerifyProof(ctx, s.ver.Env, &p.Request, dp.Proof)))

	revID := dp.Proof.Proofs[0].RevID
	assert.NotEmpty(revID)
	try.To1(pool.Revoke(ctx, s.f.Ledger, s.f.Trustee.Keys, s.f.Trustee.DID, s.cd, revID))
	assert.That(!try.To1(verifier.VerifyProof(ctx, s.ver.Env, &p.Request, dp.Proof)))

	// without the non revoked interval revocation does not matter
	p2, dp2 := s.gvtProof(t, nil)
	assert.That(try.To1(verifier.VerifyProof(ctx, s.ver.Env, &p2.Request, dp2.Proof)))
}

func TestUpdateState_LedgerNotFound(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, false)
	p, dp := s.gvtProof(t, nil)
	try.To(dp.SendProof(ctx, s.alexVC))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ml := mock_pool.NewMockLedger(ctrl)
	ml.EXPECT().GetSchema(gomock.Any(), gomock.Any()).
		Return(nil, vcxerr.New(vcxerr.NotFound, "schema")).AnyTimes()
	ml.EXPECT().GetCredDef(gomock.Any(), gomock.Any()).
		Return(nil, vcxerr.New(vcxerr.NotFound, "cred def")).AnyTimes()
	ml.EXPECT().GetRevocations(gomock.Any(), gomock.Any()).
		Return(nil, nil).AnyTimes()
	s.ver.Ledger = ml

	_, err := verifier.VerifyProof(ctx, s.ver.Env, &p.Request, dp.Proof)
	assert.That(errors.Is(err, vcxerr.NotFound))

	// the presentation stays in the mailbox until the ledger answers
	st, err := p.UpdateState(ctx, s.verConn)
	assert.That(errors.Is(err, vcxerr.NotFound))
	assert.Equal(st, state.OfferSent)

	s.ver.Ledger = s.f.Ledger
	assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Accepted)
	ps, _, revealed := try.To3(p.GetProof())
	assert.Equal(ps, state.ProofVerified)
	assert.Equal(revealed["attribute_0"], "Alex")
}

func TestProblemReport(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, false)
	p, dp := s.gvtProof(t, nil)
	try.To(dp.Decline(ctx, s.alexVC, "not today"))

	assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Unfulfilled)
	// terminal state ignores the rest
	assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Unfulfilled)
}

func TestForgedIdentifiers(t *testing.T) {
	tests := []struct {
		name  string
		forge func(p *anoncreds.Proof)
	}{
		{"identifier", func(p *anoncreds.Proof) {
			p.Identifiers[0].CredDefID = "Nope:3:SD:1:x"
		}},
		{"sub proof", func(p *anoncreds.Proof) {
			p.Identifiers[0].CredDefID = "Nope:3:SD:1:x"
			p.Proofs[0].CredDefID = "Nope:3:SD:1:x"
		}},
		{"index", func(p *anoncreds.Proof) {
			a := p.RequestedProof.RevealedAttrs["attribute_0"]
			a.SubProofIndex = 7
			p.RequestedProof.RevealedAttrs["attribute_0"] = a
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			s := newScene(t, false)
			p, dp := s.gvtProof(t, nil)
			tt.forge(dp.Proof)
			assert.Error(anoncreds.CheckIdentifiers(&p.Request, dp.Proof))
			try.To(dp.SendProof(ctx, s.alexVC))

			// a ledger without expectations fails the test if it is read
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()
			s.ver.Ledger = mock_pool.NewMockLedger(ctrl)

			assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Accepted)
			ps, _, revealed := try.To3(p.GetProof())
			assert.Equal(ps, state.ProofInvalid)
			assert.Equal(len(revealed), 0)
			assert.Equal(try.To1(dp.UpdateState(ctx, s.alexVC)), state.Unfulfilled)
		})
	}
}

func TestUpdateState_LedgerNeverFound(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, false)
	p, dp := s.gvtProof(t, nil)
	try.To(dp.SendProof(ctx, s.alexVC))

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	ml := mock_pool.NewMockLedger(ctrl)
	ml.EXPECT().GetSchema(gomock.Any(), gomock.Any()).
		Return(nil, vcxerr.New(vcxerr.NotFound, "schema")).AnyTimes()
	ml.EXPECT().GetCredDef(gomock.Any(), gomock.Any()).
		Return(nil, vcxerr.New(vcxerr.NotFound, "cred def")).AnyTimes()
	ml.EXPECT().GetRevocations(gomock.Any(), gomock.Any()).
		Return(nil, nil).AnyTimes()
	s.ver.Ledger = ml

	for i := 1; i < verifier.MaxLedgerMisses; i++ {
		st, err := p.UpdateState(ctx, s.verConn)
		assert.That(errors.Is(err, vcxerr.NotFound))
		assert.Equal(st, state.OfferSent)
	}
	assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Accepted)
	ps, _, _ := try.To3(p.GetProof())
	assert.Equal(ps, state.ProofInvalid)
}

func TestUpdateState_TransportError(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := newScene(t, false)
	p, dp := s.gvtProof(t, nil)
	try.To(dp.SendProof(ctx, s.alexVC))

	// the ack fails and the presentation stays for the next poll
	flaky := &protocoltest.Flaky{Transport: s.f.Txp, Fails: 1}
	s.ver.Txp = flaky
	st, err := p.UpdateState(ctx, s.verConn)
	assert.That(errors.Is(err, vcxerr.Timeout))
	assert.Equal(st, state.OfferSent)
	assert.Equal(flaky.Fails, 0)

	assert.Equal(try.To1(p.UpdateState(ctx, s.verConn)), state.Accepted)
	ps, _, revealed := try.To3(p.GetProof())
	assert.Equal(ps, state.ProofVerified)
	assert.Equal(revealed["attribute_0"], "Alex")

	assert.Equal(try.To1(dp.UpdateState(ctx, s.alexVC)), state.Accepted)
	assert.That(dp.Verified)
}
