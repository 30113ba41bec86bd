// Package verifier is the verifier side state machine of the present proof
// protocol: proof request, presentation and the verifier's answer.
package verifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/protocol"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/std/common"
	"github.com/findy-network/findy-vcx/std/msg"
	"github.com/findy-network/findy-vcx/std/presentproof"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

const proofReqVersion = "1.0"

// MaxLedgerMisses is how many polls a presentation waits for its ledger
// objects before the proof is taken as invalid.
const MaxLedgerMisses = 5

// Proof is the verifier's object of one proof request.
type Proof struct {
	protocol.Base

	Request    anoncreds.ProofRequest `json:"proof_request"`
	Proof      *anoncreds.Proof       `json:"proof,omitempty"`
	ProofState state.ProofState       `json:"proof_state"`
	Revealed   map[string]string      `json:"revealed_attrs,omitempty"`

	// LedgerMisses counts the polls which didn't find the ledger objects.
	LedgerMisses int `json:"ledger_misses,omitempty"`

	env *protocol.Env
}

// Create builds the proof request. Attribute referents are named
// attribute_N and predicate referents predicate_N in the given order.
func Create(
	env *protocol.Env,
	sourceID, name string,
	attrs []anoncreds.AttrInfo,
	preds []anoncreds.PredicateInfo,
	nonRevoked *anoncreds.NonRevoked,
) (p *Proof, err error) {
	defer err2.Handle(&err, "create proof")

	pr := anoncreds.ProofRequest{
		Name:                name,
		Version:             proofReqVersion,
		Nonce:               utils.NewBigNonceStr(),
		RequestedAttributes: make(map[string]anoncreds.AttrInfo, len(attrs)),
		RequestedPredicates: make(map[string]anoncreds.PredicateInfo, len(preds)),
		NonRevoked:          nonRevoked,
	}
	for i, ai := range attrs {
		pr.RequestedAttributes[fmt.Sprintf("attribute_%d", i)] = ai
	}
	for i, pi := range preds {
		pr.RequestedPredicates[fmt.Sprintf("predicate_%d", i)] = pi
	}
	try.To(pr.Validate())

	p = &Proof{
		Base:    protocol.NewBase(env, sourceID),
		Request: pr,
		env:     env,
	}
	glog.V(1).Infof("proof %s created: %s", p.SourceID, &pr)
	return p, nil
}

// SendRequest sends the proof request and moves to OfferSent.
func (p *Proof) SendRequest(ctx context.Context, conn *connection.Connection) (err error) {
	defer err2.Handle(&err, "send proof request %s", p.SourceID)

	try.To(p.State.Require("send proof request", state.Initialized))
	if conn.GetState() != state.Accepted {
		return vcxerr.New(vcxerr.InvalidState, "connection in state %s", conn.GetState())
	}
	data := try.To1(json.Marshal(&p.Request))
	m := try.To1(conn.Send(ctx, msg.TypePresentationRequest, "",
		presentproof.NewRequest(p.Request.Name, data)))
	p.ThreadID = m.ThreadID()
	return p.State.Set(state.OfferSent)
}

// UpdateState polls the connection's mailbox once. A presentation is
// verified, answered and moves the proof to Accepted.
func (p *Proof) UpdateState(ctx context.Context, conn *connection.Connection) (state.VcxState, error) {
	err := p.processor(conn).UpdateState(ctx, &p.Base, conn)
	return p.GetState(), err
}

func (p *Proof) processor(conn *connection.Connection) protocol.Processor {
	return protocol.Processor{
		Name: "proof " + p.SourceID,
		Handlers: map[string]protocol.HandlerFunc{
			msg.TypePresentation: func(ctx context.Context, m *msg.Msg) (bool, error) {
				return p.handlePresentation(ctx, conn, m)
			},
			msg.TypeProblemReport: p.handleProblemReport,
		},
	}
}

func (p *Proof) handlePresentation(ctx context.Context, conn *connection.Connection, m *msg.Msg) (ok bool, err error) {
	defer err2.Handle(&err, "presentation")

	if p.GetState() != state.OfferSent {
		return false, nil
	}
	proof, err := decodeProof(m)
	valid := false
	if err == nil {
		valid, err = VerifyProof(ctx, p.env, &p.Request, proof)
	}
	switch {
	case errors.Is(err, vcxerr.NotFound) && p.LedgerMisses < MaxLedgerMisses-1:
		// ledger is eventually consistent, retry at next poll
		p.LedgerMisses++
		return false, err
	case err != nil:
		glog.Warningf("proof %s: cannot verify: %v", p.SourceID, err)
		valid = false
	}

	p.Proof = proof
	if valid {
		p.ProofState = state.ProofVerified
		p.Revealed = proof.RevealedValues()
		try.To1(conn.Send(ctx, msg.TypeAck, p.ThreadID, &common.Ack{Status: common.StatusOK}))
	} else {
		p.ProofState = state.ProofInvalid
		try.To1(conn.Send(ctx, msg.TypeProblemReport, p.ThreadID,
			common.NewProblemReport(common.CodeVerificationFailed, "proof is invalid")))
	}
	glog.V(1).Infof("proof %s: %s", p.SourceID, p.ProofState)
	return true, p.State.Set(state.Accepted)
}

func decodeProof(m *msg.Msg) (*anoncreds.Proof, error) {
	var pres presentproof.Presentation
	if err := m.Decode(&pres); err != nil {
		return nil, err
	}
	data, err := pres.Proof()
	if err != nil {
		return nil, err
	}
	proof := new(anoncreds.Proof)
	if err := json.Unmarshal(data, proof); err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "proof")
	}
	return proof, nil
}

func (p *Proof) handleProblemReport(_ context.Context, m *msg.Msg) (bool, error) {
	var pr common.ProblemReport
	_ = m.Decode(&pr)
	glog.Warningf("proof %s: problem report: %s %s", p.SourceID,
		pr.Description.Code, pr.ExplainLongTxt)
	return true, p.State.Set(state.Unfulfilled)
}

// GetProof returns the verification result, the proof JSON and the revealed
// values.
func (p *Proof) GetProof() (ps state.ProofState, proof []byte, revealed map[string]string, err error) {
	if err := p.State.Require("get proof", state.Accepted); err != nil {
		return state.ProofUndefined, nil, nil, err
	}
	proof, err = json.Marshal(p.Proof)
	if err != nil {
		return state.ProofUndefined, nil, nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "proof")
	}
	return p.ProofState, proof, p.Revealed, nil
}

// VerifyProof checks the proof against the request with the schemas, cred
// defs and revocations of the ledger. The result depends only on these
// inputs. A proof whose identifiers break the request's restrictions is
// invalid without a ledger read.
func VerifyProof(ctx context.Context, env *protocol.Env, req *anoncreds.ProofRequest, proof *anoncreds.Proof) (ok bool, err error) {
	defer err2.Handle(&err, "verify proof")

	// ids the restrictions don't allow are never fetched
	if err := anoncreds.CheckIdentifiers(req, proof); err != nil {
		glog.V(1).Infoln("proof did not verify:", err)
		return false, nil
	}
	lo := try.To1(protocol.FetchLedgerObjects(ctx, env.Ledger, proof.Identifiers, true))
	return env.Crypto.VerifyProof(req, proof, lo.Schemas, lo.CredDefs, lo.Revoked)
}

func (p *Proof) Serialize() ([]byte, error) {
	return utils.Serialize(p)
}

// Deserialize restores a proof to the env.
func Deserialize(env *protocol.Env, data []byte) (p *Proof, err error) {
	p = new(Proof)
	if err := utils.Deserialize(data, p); err != nil {
		return nil, err
	}
	p.Restore(env)
	p.env = env
	return p, nil
}
