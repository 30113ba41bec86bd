package anoncreds

import (
	"errors"

	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
	"github.com/mr-tron/base58"
)

func failed(format string, a ...any) error {
	return vcxerr.New(vcxerr.VerificationFailed, format, a...)
}

// VerifyProof is a pure function of its inputs. The revoked map lists the
// revoked credential revocation ids by cred def id.
func (sd *SD) VerifyProof(
	req *ProofRequest,
	proof *Proof,
	schemas map[string]*pool.Schema,
	credDefs map[string]*pool.CredDef,
	revoked map[string][]string,
) (bool, error) {
	err := sd.verify(req, proof, schemas, credDefs, revoked)
	if errors.Is(err, vcxerr.VerificationFailed) {
		glog.V(1).Infoln("proof did not verify:", err)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (sd *SD) verify(
	req *ProofRequest,
	proof *Proof,
	schemas map[string]*pool.Schema,
	credDefs map[string]*pool.CredDef,
	revoked map[string][]string,
) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if proof == nil {
		return failed("no proof")
	}
	if len(proof.Identifiers) != len(proof.Proofs) {
		return failed("identifiers do not match sub proofs")
	}
	keys := make([]*sdKey, len(proof.Proofs))
	for i := range proof.Proofs {
		k, err := sd.verifySub(req, &proof.Proofs[i], proof.Identifiers[i], schemas, credDefs)
		if err != nil {
			return err
		}
		keys[i] = k
	}
	v := &verifier{req: req, proof: proof, keys: keys, revoked: revoked}
	if err := v.attrs(); err != nil {
		return err
	}
	return v.predicates()
}

// CheckIdentifiers checks the proof's identifiers against the request
// without the ledger: every identifier must be the one of its sub proof,
// and every referent must point to a sub proof which satisfies the
// referent's restrictions. It fails with VerificationFailed.
func CheckIdentifiers(req *ProofRequest, proof *Proof) error {
	if proof == nil {
		return failed("no proof")
	}
	if len(proof.Identifiers) != len(proof.Proofs) {
		return failed("identifiers do not match sub proofs")
	}
	for i, id := range proof.Identifiers {
		sp := &proof.Proofs[i]
		if id.SchemaID != sp.SchemaID || id.CredDefID != sp.CredDefID {
			return failed("identifier %d", i)
		}
	}
	check := func(ref string, i int, rs []Restriction) error {
		if i < 0 || i >= len(proof.Identifiers) {
			return failed("sub proof index of %s", ref)
		}
		id := proof.Identifiers[i]
		if !MatchesAny(rs, id.SchemaID, id.CredDefID) {
			return failed("restrictions of %s: %s", ref, id.CredDefID)
		}
		return nil
	}
	rp := proof.RequestedProof
	for ref, ai := range req.RequestedAttributes {
		var err error
		if a, ok := rp.RevealedAttrs[ref]; ok {
			err = check(ref, a.SubProofIndex, ai.Restrictions)
		} else if u, ok := rp.UnrevealedAttrs[ref]; ok {
			err = check(ref, u.SubProofIndex, ai.Restrictions)
		} else if g, ok := rp.RevealedAttrGroups[ref]; ok {
			err = check(ref, g.SubProofIndex, ai.Restrictions)
		}
		if err != nil {
			return err
		}
	}
	for ref, pi := range req.RequestedPredicates {
		if p, ok := rp.Predicates[ref]; ok {
			if err := check(ref, p.SubProofIndex, pi.Restrictions); err != nil {
				return err
			}
		}
	}
	return nil
}

func (sd *SD) verifySub(
	req *ProofRequest,
	sp *SubProof,
	id Identifier,
	schemas map[string]*pool.Schema,
	credDefs map[string]*pool.CredDef,
) (*sdKey, error) {
	if id.SchemaID != sp.SchemaID || id.CredDefID != sp.CredDefID {
		return nil, failed("identifier of %s", sp.CredDefID)
	}
	schema, ok := schemas[sp.SchemaID]
	if !ok {
		return nil, vcxerr.New(vcxerr.NotFound, "schema %s", sp.SchemaID)
	}
	cd, ok := credDefs[sp.CredDefID]
	if !ok {
		return nil, vcxerr.New(vcxerr.NotFound, "cred def %s", sp.CredDefID)
	}
	k, err := parseCredDef(cd)
	if err != nil {
		return nil, err
	}
	if cd.SchemaID != schema.ID {
		return nil, failed("cred def %s is not for schema %s", cd.ID, schema.ID)
	}
	if len(sp.Digests) != len(k.AttrNames) {
		return nil, failed("attribute count of %s", cd.ID)
	}
	for _, name := range k.AttrNames {
		if _, ok := sp.Digests[AttrKey(name)]; !ok {
			return nil, failed("attribute %s missing", name)
		}
	}
	if !verifySig(k.pub(), sp.content().bytes(), sp.Signature) {
		return nil, failed("signature of %s", cd.ID)
	}
	blinded, err := base58.Decode(sp.BlindedMS)
	if err != nil || !verifySig(blinded, proofMsg(req.Nonce, sp.Signature), sp.LinkProof) {
		return nil, failed("link secret proof of %s", cd.ID)
	}
	for name, o := range sp.Openings {
		if utils.EncodeValue(o.Raw) != o.Encoded {
			return nil, failed("encoding of %s", name)
		}
		if digest(name, o.Salt, o.Encoded) != sp.Digests[name] {
			return nil, failed("opening of %s", name)
		}
	}
	return k, nil
}

type verifier struct {
	req     *ProofRequest
	proof   *Proof
	keys    []*sdKey
	revoked map[string][]string
}

func (v *verifier) sub(ref string, i int, rs []Restriction) (*SubProof, error) {
	if i < 0 || i >= len(v.proof.Proofs) {
		return nil, failed("sub proof index of %s", ref)
	}
	sp := &v.proof.Proofs[i]
	if !MatchesAny(rs, sp.SchemaID, sp.CredDefID) {
		return nil, failed("restrictions of %s", ref)
	}
	if nr := v.req.nonRevokedFor(ref); nr != nil && v.keys[i].Revocation {
		if sp.RevID == "" {
			return nil, failed("%s has no revocation id", ref)
		}
		for _, r := range v.revoked[sp.CredDefID] {
			if r == sp.RevID {
				return nil, failed("credential of %s is revoked", ref)
			}
		}
	}
	return sp, nil
}

func (v *verifier) opened(sp *SubProof, name string, raw, encoded string) error {
	o, ok := sp.Openings[AttrKey(name)]
	if !ok || o.Raw != raw || o.Encoded != encoded {
		return failed("value of %s", name)
	}
	return nil
}

func (v *verifier) attrs() error {
	rp := v.proof.RequestedProof
	answered := 0
	for ref, ai := range v.req.RequestedAttributes {
		switch {
		case ai.Name != "":
			if a, ok := rp.RevealedAttrs[ref]; ok {
				sp, err := v.sub(ref, a.SubProofIndex, ai.Restrictions)
				if err != nil {
					return err
				}
				if err := v.opened(sp, ai.Name, a.Raw, a.Encoded); err != nil {
					return err
				}
			} else if u, ok := rp.UnrevealedAttrs[ref]; ok {
				sp, err := v.sub(ref, u.SubProofIndex, ai.Restrictions)
				if err != nil {
					return err
				}
				if _, ok := sp.Digests[AttrKey(ai.Name)]; !ok {
					return failed("attribute %s missing", ai.Name)
				}
			} else if _, ok := rp.SelfAttestedAttrs[ref]; ok {
				if len(ai.Restrictions) > 0 {
					return failed("%s cannot be self attested", ref)
				}
			} else {
				return failed("attribute %s not proven", ref)
			}
		default:
			g, ok := rp.RevealedAttrGroups[ref]
			if !ok {
				return failed("attribute group %s not proven", ref)
			}
			sp, err := v.sub(ref, g.SubProofIndex, ai.Restrictions)
			if err != nil {
				return err
			}
			if len(g.Values) != len(ai.Names) {
				return failed("attribute group %s size", ref)
			}
			for _, name := range ai.Names {
				val, ok := g.Values[name]
				if !ok {
					return failed("attribute %s of %s missing", name, ref)
				}
				if err := v.opened(sp, name, val.Raw, val.Encoded); err != nil {
					return err
				}
			}
		}
		answered++
	}
	given := len(rp.RevealedAttrs) + len(rp.UnrevealedAttrs) +
		len(rp.SelfAttestedAttrs) + len(rp.RevealedAttrGroups)
	if given != answered {
		return failed("proof has attributes which were not requested")
	}
	return nil
}

func (v *verifier) predicates() error {
	rp := v.proof.RequestedProof
	for ref, pi := range v.req.RequestedPredicates {
		p, ok := rp.Predicates[ref]
		if !ok {
			return failed("predicate %s not proven", ref)
		}
		sp, err := v.sub(ref, p.SubProofIndex, pi.Restrictions)
		if err != nil {
			return err
		}
		o, ok := sp.Openings[AttrKey(pi.Name)]
		if !ok || !pi.Satisfies(o.Encoded) {
			return failed("predicate %s", ref)
		}
	}
	if len(rp.Predicates) != len(v.req.RequestedPredicates) {
		return failed("proof has predicates which were not requested")
	}
	return nil
}
