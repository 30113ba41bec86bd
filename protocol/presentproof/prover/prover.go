// Package prover is the holder side state machine of the present proof
// protocol. The object of it is called a disclosed proof.
package prover

import (
	"context"
	"encoding/json"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/protocol"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/protocol/issuecredential/holder"
	"github.com/findy-network/findy-vcx/std/common"
	"github.com/findy-network/findy-vcx/std/msg"
	"github.com/findy-network/findy-vcx/std/presentproof"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// DisclosedProof is the prover's object of one proof presentation.
type DisclosedProof struct {
	protocol.Base

	Request *anoncreds.ProofRequest `json:"proof_request"`
	Proof   *anoncreds.Proof        `json:"proof,omitempty"`

	// Verified is set when the verifier acked the proof.
	Verified bool `json:"verified,omitempty"`

	env *protocol.Env
}

// GetRequests returns the proof requests waiting in the connection's
// mailbox.
func GetRequests(ctx context.Context, conn *connection.Connection) (reqs []*msg.Msg, err error) {
	defer err2.Handle(&err, "get proof requests")

	for _, im := range try.To1(conn.Inbox(ctx)) {
		if im.Msg.Type == msg.TypePresentationRequest {
			reqs = append(reqs, im.Msg)
		}
	}
	return reqs, nil
}

// CreateWithRequest builds the disclosed proof of a presentation request
// message. The proof request is validated against its JSON schema.
func CreateWithRequest(env *protocol.Env, sourceID string, reqMsg []byte) (p *DisclosedProof, err error) {
	defer err2.Handle(&err, "create disclosed proof")

	m := try.To1(msg.Parse(reqMsg))
	if m.Type != msg.TypePresentationRequest {
		return nil, vcxerr.New(vcxerr.InvalidOption, "%s is not a proof request", m.Type)
	}
	var r presentproof.Request
	try.To(m.Decode(&r))
	data := try.To1(r.ProofRequest())
	try.To(presentproof.ValidateProofRequest(data))
	pr := new(anoncreds.ProofRequest)
	if err := json.Unmarshal(data, pr); err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "proof request")
	}
	try.To(pr.Validate())

	p = &DisclosedProof{
		Base:    protocol.NewBase(env, sourceID),
		Request: pr,
		env:     env,
	}
	p.ThreadID = m.ThreadID()
	p.Seen[m.ID] = struct{}{}
	glog.V(1).Infof("disclosed proof %s created: %s", p.SourceID, pr)
	return p, nil
}

// CreateWithMsgID builds the disclosed proof of a request waiting in the
// connection's mailbox, and removes the request from there.
func CreateWithMsgID(ctx context.Context, env *protocol.Env, conn *connection.Connection, sourceID, msgID string) (p *DisclosedProof, err error) {
	defer err2.Handle(&err, "create disclosed proof with msg id %s", msgID)

	for _, im := range try.To1(conn.Inbox(ctx)) {
		if im.Msg.ID != msgID || im.Msg.Type != msg.TypePresentationRequest {
			continue
		}
		p = try.To1(CreateWithRequest(env, sourceID, im.Msg.JSON()))
		try.To(conn.Ack(ctx, im.TxpID))
		return p, nil
	}
	return nil, vcxerr.New(vcxerr.NotFound, "proof request %s", msgID)
}

// GenerateProof builds the proof of the selected credentials and self
// attested values.
func (p *DisclosedProof) GenerateProof(ctx context.Context, selected *anoncreds.RequestedCredentials) (err error) {
	defer err2.Handle(&err, "generate proof %s", p.SourceID)

	try.To(p.State.Require("generate proof", state.Initialized))
	if selected == nil {
		selected = new(anoncreds.RequestedCredentials)
	}
	creds := make(map[string]*anoncreds.StoredCredential)
	var ids []anoncreds.Identifier
	for _, credID := range selectedIDs(selected) {
		sc, err := holder.LoadStored(p.env.Keys.W, credID)
		if err != nil {
			return vcxerr.Wrap(vcxerr.InvalidProofCredentialData, err, "credential "+credID)
		}
		creds[credID] = sc
		ids = append(ids, anoncreds.Identifier{
			SchemaID:  sc.Credential.SchemaID,
			CredDefID: sc.Credential.CredDefID,
		})
	}
	lo := try.To1(protocol.FetchLedgerObjects(ctx, p.env.Ledger, ids, false))
	ms := try.To1(p.env.MasterSecret())
	p.Proof = try.To1(p.env.Crypto.CreateProof(p.Request, selected, ms, creds,
		lo.Schemas, lo.CredDefs))
	glog.V(1).Infof("disclosed proof %s generated", p.SourceID)
	return nil
}

func selectedIDs(rc *anoncreds.RequestedCredentials) []string {
	seen := make(map[string]bool)
	var ids []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, ra := range rc.RequestedAttributes {
		add(ra.CredID)
	}
	for _, rp := range rc.RequestedPredicates {
		add(rp.CredID)
	}
	return ids
}

// SendProof sends the generated proof and moves to Accepted. The verifier's
// answer is seen by UpdateState.
func (p *DisclosedProof) SendProof(ctx context.Context, conn *connection.Connection) (err error) {
	defer err2.Handle(&err, "send proof %s", p.SourceID)

	try.To(p.State.Require("send proof", state.Initialized))
	if p.Proof == nil {
		return vcxerr.New(vcxerr.InvalidState, "proof is not generated")
	}
	data := try.To1(json.Marshal(p.Proof))
	try.To1(conn.Send(ctx, msg.TypePresentation, p.ThreadID, presentproof.NewPresentation(data)))
	return p.State.Set(state.Accepted)
}

// Decline sends a problem report instead of a proof.
func (p *DisclosedProof) Decline(ctx context.Context, conn *connection.Connection, reason string) (err error) {
	defer err2.Handle(&err, "decline proof request %s", p.SourceID)

	try.To(p.State.Require("decline", state.Initialized))
	try.To1(conn.Send(ctx, msg.TypeProblemReport, p.ThreadID,
		common.NewProblemReport(common.CodeRejected, reason)))
	return p.State.Set(state.Unfulfilled)
}

// UpdateState polls the connection's mailbox once. An ack of the verifier
// keeps the state Accepted, a problem report moves it to Unfulfilled.
func (p *DisclosedProof) UpdateState(ctx context.Context, conn *connection.Connection) (state.VcxState, error) {
	err := p.processor().UpdateState(ctx, &p.Base, conn)
	return p.GetState(), err
}

func (p *DisclosedProof) processor() protocol.Processor {
	return protocol.Processor{
		Name: "disclosed proof " + p.SourceID,
		Handlers: map[string]protocol.HandlerFunc{
			msg.TypeAck:           p.handleAck,
			msg.TypeProblemReport: p.handleProblemReport,
		},
	}
}

func (p *DisclosedProof) handleAck(_ context.Context, _ *msg.Msg) (bool, error) {
	if p.GetState() != state.Accepted {
		return false, nil
	}
	p.Verified = true
	glog.V(1).Infof("disclosed proof %s verified", p.SourceID)
	return true, nil
}

func (p *DisclosedProof) handleProblemReport(_ context.Context, m *msg.Msg) (bool, error) {
	var pr common.ProblemReport
	_ = m.Decode(&pr)
	glog.Warningf("disclosed proof %s: problem report: %s %s", p.SourceID,
		pr.Description.Code, pr.ExplainLongTxt)
	return true, p.State.Set(state.Unfulfilled)
}

func (p *DisclosedProof) Serialize() ([]byte, error) {
	return utils.Serialize(p)
}

// Deserialize restores a disclosed proof to the env.
func Deserialize(env *protocol.Env, data []byte) (p *DisclosedProof, err error) {
	p = new(DisclosedProof)
	if err := utils.Deserialize(data, p); err != nil {
		return nil, err
	}
	if p.Request == nil {
		return nil, vcxerr.New(vcxerr.InvalidJSON, "disclosed proof without request")
	}
	p.Restore(env)
	p.env = env
	return p, nil
}
