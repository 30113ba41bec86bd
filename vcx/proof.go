package vcx

import (
	"context"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/psm"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/protocol/presentproof/prover"
	"github.com/findy-network/findy-vcx/protocol/presentproof/verifier"
	"github.com/findy-network/findy-vcx/std/msg"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// DisclosedProofGetRequests lists the proof requests waiting in the
// connection's mailbox.
func (r *Runtime) DisclosedProofGetRequests(ctx context.Context, conn Handle) (reqs []*msg.Msg, err error) {
	defer err2.Handle(&err)

	return prover.GetRequests(ctx, try.To1(r.conns.Get(conn)))
}

func (r *Runtime) DisclosedProofCreateWithRequest(sourceID string, req []byte) (h Handle, err error) {
	defer err2.Handle(&err)

	return add(r.disclosed, try.To1(prover.CreateWithRequest(r.Env, sourceID, req)), 0), nil
}

func (r *Runtime) DisclosedProofCreateWithMsgID(ctx context.Context, sourceID string, conn Handle, msgID string) (h Handle, err error) {
	defer err2.Handle(&err)

	cn := try.To1(r.conns.Get(conn))
	p := try.To1(prover.CreateWithMsgID(ctx, r.Env, cn, sourceID, msgID))
	return add(r.disclosed, p, conn), nil
}

// DisclosedProofGetRequest returns the proof request the object answers.
func (r *Runtime) DisclosedProofGetRequest(h Handle) (pr *anoncreds.ProofRequest, err error) {
	err = with(r.disclosed, h, func(p *prover.DisclosedProof) error {
		pr = p.Request
		return nil
	})
	return pr, err
}

// DisclosedProofRetrieveCredentials returns the stored credentials which
// can serve each referent of the request.
func (r *Runtime) DisclosedProofRetrieveCredentials(h Handle) (mc *prover.Matching, err error) {
	err = with(r.disclosed, h, func(p *prover.DisclosedProof) error {
		mc, err = p.RetrieveCredentials()
		return err
	})
	return mc, err
}

// DisclosedProofGenerate builds the proof of the selected credentials.
func (r *Runtime) DisclosedProofGenerate(ctx context.Context, h Handle, selected *anoncreds.RequestedCredentials) error {
	return with(r.disclosed, h, func(p *prover.DisclosedProof) error {
		return p.GenerateProof(ctx, selected)
	})
}

// DisclosedProofGenerateAuto selects the newest matching credential of each
// referent and builds the proof.
func (r *Runtime) DisclosedProofGenerateAuto(ctx context.Context, h Handle, selfAttested map[string]string) error {
	return with(r.disclosed, h, func(p *prover.DisclosedProof) (err error) {
		defer err2.Handle(&err, "auto generate")

		mc := try.To1(p.RetrieveCredentials())
		return p.GenerateProof(ctx, try.To1(mc.AutoSelect(p.Request, selfAttested)))
	})
}

func (r *Runtime) DisclosedProofSend(ctx context.Context, h, conn Handle) error {
	return withConn(r, r.disclosed, h, conn, func(p *prover.DisclosedProof, cn *connection.Connection) error {
		return p.SendProof(ctx, cn)
	})
}

func (r *Runtime) DisclosedProofDecline(ctx context.Context, h, conn Handle, reason string) error {
	return withConn(r, r.disclosed, h, conn, func(p *prover.DisclosedProof, cn *connection.Connection) error {
		return p.Decline(ctx, cn, reason)
	})
}

func (r *Runtime) DisclosedProofUpdateState(ctx context.Context, h Handle) (state.VcxState, error) {
	return update(ctx, r, psm.KindDisclosedProof, r.disclosed, h, func(ctx context.Context, p *prover.DisclosedProof, cn *connection.Connection) (state.VcxState, error) {
		return p.UpdateState(ctx, cn)
	})
}

func (r *Runtime) DisclosedProofGetState(h Handle) (state.VcxState, error) {
	return getState(r.disclosed, h)
}

func (r *Runtime) DisclosedProofSerialize(h Handle) ([]byte, error) {
	return serialize(r.disclosed, h)
}

func (r *Runtime) DisclosedProofDeserialize(data []byte) (h Handle, err error) {
	defer err2.Handle(&err)

	return add(r.disclosed, try.To1(prover.Deserialize(r.Env, data)), 0), nil
}

func (r *Runtime) DisclosedProofRelease(h Handle) {
	r.disclosed.Release(h)
}

// ProofCreate builds a proof request. Attribute referents are attribute_N
// and predicate referents predicate_N in the given order.
func (r *Runtime) ProofCreate(
	sourceID, name string,
	attrs []anoncreds.AttrInfo,
	preds []anoncreds.PredicateInfo,
	nonRevoked *anoncreds.NonRevoked,
) (h Handle, err error) {
	defer err2.Handle(&err)

	p := try.To1(verifier.Create(r.Env, sourceID, name, attrs, preds, nonRevoked))
	return add(r.proofs, p, 0), nil
}

func (r *Runtime) ProofSendRequest(ctx context.Context, h, conn Handle) error {
	return withConn(r, r.proofs, h, conn, func(p *verifier.Proof, cn *connection.Connection) error {
		return p.SendRequest(ctx, cn)
	})
}

func (r *Runtime) ProofUpdateState(ctx context.Context, h Handle) (state.VcxState, error) {
	return update(ctx, r, psm.KindProof, r.proofs, h, func(ctx context.Context, p *verifier.Proof, cn *connection.Connection) (state.VcxState, error) {
		return p.UpdateState(ctx, cn)
	})
}

func (r *Runtime) ProofGetState(h Handle) (state.VcxState, error) {
	return getState(r.proofs, h)
}

// ProofGet returns the verification result, the proof JSON and the revealed
// attribute values by referent of an accepted proof.
func (r *Runtime) ProofGet(h Handle) (ps state.ProofState, proof []byte, revealed map[string]string, err error) {
	err = with(r.proofs, h, func(p *verifier.Proof) error {
		ps, proof, revealed, err = p.GetProof()
		return err
	})
	return ps, proof, revealed, err
}

func (r *Runtime) ProofSerialize(h Handle) ([]byte, error) {
	return serialize(r.proofs, h)
}

func (r *Runtime) ProofDeserialize(data []byte) (h Handle, err error) {
	defer err2.Handle(&err)

	return add(r.proofs, try.To1(verifier.Deserialize(r.Env, data)), 0), nil
}

func (r *Runtime) ProofRelease(h Handle) {
	r.proofs.Release(h)
}
