package anoncreds

import (
	"sort"

	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Opening discloses one attribute of a sub proof.
type Opening struct {
	Raw     string `json:"raw"`
	Encoded string `json:"encoded"`
	Salt    string `json:"salt"`
}

// SubProof is the part of a proof which one credential gives.
type SubProof struct {
	SchemaID  string             `json:"schema_id"`
	CredDefID string             `json:"cred_def_id"`
	RevID     string             `json:"cred_rev_id,omitempty"`
	BlindedMS string             `json:"blinded_ms"`
	Nonce     string             `json:"nonce"`
	Digests   map[string]string  `json:"digests"`
	Signature string             `json:"signature"`
	Openings  map[string]Opening `json:"openings"`
	LinkProof string             `json:"link_proof"`
}

func (sp *SubProof) content() signedContent {
	return signedContent{
		SchemaID:  sp.SchemaID,
		CredDefID: sp.CredDefID,
		RevID:     sp.RevID,
		BlindedMS: sp.BlindedMS,
		Nonce:     sp.Nonce,
		Digests:   sp.Digests,
	}
}

type RevealedAttr struct {
	SubProofIndex int    `json:"sub_proof_index"`
	Raw           string `json:"raw"`
	Encoded       string `json:"encoded"`
}

type RevealedGroup struct {
	SubProofIndex int        `json:"sub_proof_index"`
	Values        AttrValues `json:"values"`
}

type SubProofRef struct {
	SubProofIndex int `json:"sub_proof_index"`
}

// RequestedProof maps the request's referents to the sub proofs.
type RequestedProof struct {
	RevealedAttrs      map[string]RevealedAttr  `json:"revealed_attrs"`
	RevealedAttrGroups map[string]RevealedGroup `json:"revealed_attr_groups,omitempty"`
	SelfAttestedAttrs  map[string]string        `json:"self_attested_attrs"`
	UnrevealedAttrs    map[string]SubProofRef   `json:"unrevealed_attrs"`
	Predicates         map[string]SubProofRef   `json:"predicates"`
}

type Identifier struct {
	SchemaID  string `json:"schema_id"`
	CredDefID string `json:"cred_def_id"`
}

// Proof is the presentation the holder sends to the verifier.
type Proof struct {
	Proofs         []SubProof     `json:"proofs"`
	RequestedProof RequestedProof `json:"requested_proof"`
	Identifiers    []Identifier   `json:"identifiers"`
}

// RevealedValues returns the raw values of the revealed and self attested
// attributes by referent. Group values are keyed "referent.name".
func (p *Proof) RevealedValues() map[string]string {
	rp := p.RequestedProof
	values := make(map[string]string, len(rp.RevealedAttrs)+len(rp.SelfAttestedAttrs))
	for ref, a := range rp.RevealedAttrs {
		values[ref] = a.Raw
	}
	for ref, g := range rp.RevealedAttrGroups {
		for name, v := range g.Values {
			values[ref+"."+name] = v.Raw
		}
	}
	for ref, v := range rp.SelfAttestedAttrs {
		values[ref] = v
	}
	return values
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type proofBuilder struct {
	req   *ProofRequest
	creds map[string]*StoredCredential
	index map[string]int
	subs  []SubProof
	order []string
	p     *Proof
}

func (b *proofBuilder) sub(credID string) (i int, sc *StoredCredential, err error) {
	sc, ok := b.creds[credID]
	if !ok || sc == nil || sc.Credential == nil {
		return 0, nil, vcxerr.New(vcxerr.InvalidProofCredentialData, "credential %s not given", credID)
	}
	if i, ok := b.index[credID]; ok {
		return i, sc, nil
	}
	c := sc.Credential
	digests := try.To1(credDigests(c))
	b.subs = append(b.subs, SubProof{
		SchemaID:  c.SchemaID,
		CredDefID: c.CredDefID,
		RevID:     c.RevID,
		BlindedMS: c.BlindedMS,
		Nonce:     c.Nonce,
		Digests:   digests,
		Signature: c.Signature,
		Openings:  make(map[string]Opening),
	})
	b.order = append(b.order, credID)
	i = len(b.subs) - 1
	b.index[credID] = i
	return i, sc, nil
}

func (b *proofBuilder) open(i int, c *Credential, name string) AttrValue {
	v, _ := lookup(c.Values, name)
	b.subs[i].Openings[AttrKey(name)] = Opening{
		Raw:     v.Raw,
		Encoded: v.Encoded,
		Salt:    c.Salts[AttrKey(name)],
	}
	return v
}

func (b *proofBuilder) attr(ref string, requested *RequestedCredentials) (err error) {
	ai := b.req.RequestedAttributes[ref]
	sel, ok := requested.RequestedAttributes[ref]
	if !ok {
		v, self := requested.SelfAttestedAttributes[ref]
		if !self || ai.Name == "" || len(ai.Restrictions) > 0 {
			return vcxerr.New(vcxerr.InvalidProofCredentialData, "no credential for %s", ref)
		}
		b.p.RequestedProof.SelfAttestedAttrs[ref] = v
		return nil
	}
	i, sc, err := b.sub(sel.CredID)
	if err != nil {
		return err
	}
	if !b.req.AttrCandidate(ref, sc.Credential) {
		return vcxerr.New(vcxerr.InvalidProofCredentialData, "credential %s does not fit %s", sel.CredID, ref)
	}
	switch {
	case ai.Name != "" && sel.Revealed:
		v := b.open(i, sc.Credential, ai.Name)
		b.p.RequestedProof.RevealedAttrs[ref] = RevealedAttr{i, v.Raw, v.Encoded}
	case ai.Name != "":
		b.p.RequestedProof.UnrevealedAttrs[ref] = SubProofRef{i}
	default:
		g := RevealedGroup{SubProofIndex: i, Values: make(AttrValues, len(ai.Names))}
		for _, name := range ai.Names {
			g.Values[name] = b.open(i, sc.Credential, name)
		}
		b.p.RequestedProof.RevealedAttrGroups[ref] = g
	}
	return nil
}

func (b *proofBuilder) predicate(ref string, requested *RequestedCredentials) error {
	sel, ok := requested.RequestedPredicates[ref]
	if !ok {
		return vcxerr.New(vcxerr.InvalidProofCredentialData, "no credential for %s", ref)
	}
	i, sc, err := b.sub(sel.CredID)
	if err != nil {
		return err
	}
	if !b.req.PredicateCandidate(ref, sc.Credential) {
		return vcxerr.New(vcxerr.InvalidProofCredentialData,
			"credential %s does not satisfy %s", sel.CredID, ref)
	}
	b.open(i, sc.Credential, b.req.RequestedPredicates[ref].Name)
	b.p.RequestedProof.Predicates[ref] = SubProofRef{i}
	return nil
}

func (sd *SD) CreateProof(
	req *ProofRequest,
	requested *RequestedCredentials,
	ms MasterSecret,
	creds map[string]*StoredCredential,
	schemas map[string]*pool.Schema,
	credDefs map[string]*pool.CredDef,
) (p *Proof, err error) {
	defer err2.Handle(&err, "create proof")

	try.To(req.Validate())
	if requested == nil {
		return nil, vcxerr.New(vcxerr.InvalidProofCredentialData, "no selected credentials")
	}
	b := &proofBuilder{
		req:   req,
		creds: creds,
		index: make(map[string]int),
		p: &Proof{RequestedProof: RequestedProof{
			RevealedAttrs:      make(map[string]RevealedAttr),
			RevealedAttrGroups: make(map[string]RevealedGroup),
			SelfAttestedAttrs:  make(map[string]string),
			UnrevealedAttrs:    make(map[string]SubProofRef),
			Predicates:         make(map[string]SubProofRef),
		}},
	}
	for _, ref := range sortedKeys(req.RequestedAttributes) {
		try.To(b.attr(ref, requested))
	}
	for _, ref := range sortedKeys(req.RequestedPredicates) {
		try.To(b.predicate(ref, requested))
	}

	for i, credID := range b.order {
		sp := &b.subs[i]
		if _, ok := schemas[sp.SchemaID]; !ok {
			return nil, vcxerr.New(vcxerr.NotFound, "schema %s", sp.SchemaID)
		}
		try.To1(parseCredDef(credDefs[sp.CredDefID]))
		link := try.To1(linkKey(ms, creds[credID].BlindingFactor))
		sp.LinkProof = sign(link, proofMsg(req.Nonce, sp.Signature))
		b.p.Identifiers = append(b.p.Identifiers, Identifier{
			SchemaID:  sp.SchemaID,
			CredDefID: sp.CredDefID,
		})
	}
	b.p.Proofs = b.subs
	return b.p, nil
}
