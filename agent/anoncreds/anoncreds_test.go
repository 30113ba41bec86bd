package anoncreds

import (
	"encoding/json"
	"errors"
	"flag"
	"os"
	"testing"

	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

const (
	issuerDID = "V4SGRU86Z58d6TV7PBUe6f"
	otherDID  = "8wZcEriaNLNKtteJvx7f8i"
	proverDID = "CnEDk9HrMnmiHXEV1WFgbV"
)

var gvtSchema = &pool.Schema{
	Ver:       "1.0",
	ID:        pool.SchemaID(issuerDID, "gvt", "1.0"),
	Name:      "gvt",
	Version:   "1.0",
	AttrNames: []string{"name", "age", "sex", "height"},
	SeqNo:     14,
}

var gvtValues = map[string]string{
	"name": "Alex", "age": "28", "sex": "male", "height": "175",
}

type fixture struct {
	sd    *SD
	cd    *pool.CredDef
	priv  *CredDefPrivate
	ms    MasterSecret
	cred  *StoredCredential
	creds map[string]*StoredCredential
}

func TestMain(m *testing.M) {
	_ = flag.Set("logtostderr", "true")
	os.Exit(m.Run())
}

func issue(t *testing.T, revocation bool) *fixture {
	t.Helper()
	sd := NewSD()
	cd, priv := try.To2(sd.CreateCredentialDefinition(issuerDID, gvtSchema, "tag1", revocation))
	ms := try.To1(sd.CreateMasterSecret())

	offer := try.To1(sd.CreateCredentialOffer(cd, priv))
	req, meta := try.To2(sd.CreateBlindedCredentialRequest(proverDID, offer, cd, ms))
	c := try.To1(sd.IssueCredential(offer, req, NewAttrValues(gvtValues), cd, priv, "1"))
	try.To(sd.ProcessCredential(c, meta, cd, ms))

	sc := &StoredCredential{Referent: "cred1", Credential: c, BlindingFactor: meta.BlindingFactor}
	return &fixture{
		sd: sd, cd: cd, priv: priv, ms: ms, cred: sc,
		creds: map[string]*StoredCredential{"cred1": sc},
	}
}

func gvtRequest(restrictions ...Restriction) *ProofRequest {
	return &ProofRequest{
		Name:    "proof_req_1",
		Version: "0.1",
		Nonce:   "123432421212",
		RequestedAttributes: map[string]AttrInfo{
			"attr1_referent": {Name: "name", Restrictions: restrictions},
			"attr2_referent": {Name: "phone"},
		},
		RequestedPredicates: map[string]PredicateInfo{
			"predicate1_referent": {Name: "age", PType: ">=", PValue: 18},
		},
	}
}

func gvtRequested() *RequestedCredentials {
	return &RequestedCredentials{
		SelfAttestedAttributes: map[string]string{"attr2_referent": "8-800-300"},
		RequestedAttributes: map[string]RequestedAttr{
			"attr1_referent": {CredID: "cred1", Revealed: true},
		},
		RequestedPredicates: map[string]RequestedPred{
			"predicate1_referent": {CredID: "cred1"},
		},
	}
}

func (f *fixture) ledger() (map[string]*pool.Schema, map[string]*pool.CredDef) {
	return map[string]*pool.Schema{gvtSchema.ID: gvtSchema},
		map[string]*pool.CredDef{f.cd.ID: f.cd}
}

func TestSD_GVT(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	f := issue(t, false)
	assert.Equal(f.cred.Credential.RevID, "")
	schemas, credDefs := f.ledger()
	req := gvtRequest(Restriction{IssuerDID: issuerDID})

	proof := try.To1(f.sd.CreateProof(req, gvtRequested(), f.ms, f.creds, schemas, credDefs))
	assert.SLen(proof.Proofs, 1)
	values := proof.RevealedValues()
	assert.Equal(values["attr1_referent"], "Alex")
	assert.Equal(values["attr2_referent"], "8-800-300")
	assert.Equal(proof.RequestedProof.RevealedAttrs["attr1_referent"].Encoded,
		"99262857098057710338306967609588410025648622308394250666849665532448612202874")

	// only the revealed and predicate attributes are opened
	assert.Equal(len(proof.Proofs[0].Openings), 2)

	ok := try.To1(f.sd.VerifyProof(req, proof, schemas, credDefs, nil))
	assert.That(ok)

	// determinism: the same inputs give the same answer through JSON
	data := try.To1(json.Marshal(proof))
	var again Proof
	try.To(json.Unmarshal(data, &again))
	for i := 0; i < 3; i++ {
		ok = try.To1(f.sd.VerifyProof(req, &again, schemas, credDefs, nil))
		assert.That(ok)
	}
}

func TestSD_Tampered(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	f := issue(t, false)
	schemas, credDefs := f.ledger()

	tests := []struct {
		name   string
		tamper func(p *Proof, r *ProofRequest)
	}{
		{"revealed value", func(p *Proof, _ *ProofRequest) {
			a := p.RequestedProof.RevealedAttrs["attr1_referent"]
			a.Raw = "Bob"
			p.RequestedProof.RevealedAttrs["attr1_referent"] = a
		}},
		{"opening", func(p *Proof, _ *ProofRequest) {
			o := p.Proofs[0].Openings["age"]
			o.Raw, o.Encoded = "17", "17"
			p.Proofs[0].Openings["age"] = o
		}},
		{"other nonce", func(_ *Proof, r *ProofRequest) {
			r.Nonce = "99999"
		}},
		{"stronger predicate", func(_ *Proof, r *ProofRequest) {
			pi := r.RequestedPredicates["predicate1_referent"]
			pi.PValue = 30
			r.RequestedPredicates["predicate1_referent"] = pi
		}},
		{"missing referent", func(p *Proof, _ *ProofRequest) {
			delete(p.RequestedProof.SelfAttestedAttrs, "attr2_referent")
		}},
		{"extra referent", func(p *Proof, _ *ProofRequest) {
			p.RequestedProof.SelfAttestedAttrs["attr9_referent"] = "x"
		}},
		{"digest", func(p *Proof, _ *ProofRequest) {
			p.Proofs[0].Digests["sex"] = p.Proofs[0].Digests["height"]
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.PushTester(t)
			defer assert.PopTester()

			r := gvtRequest()
			proof := try.To1(f.sd.CreateProof(r, gvtRequested(), f.ms, f.creds, schemas, credDefs))
			tt.tamper(proof, r)
			ok, err := f.sd.VerifyProof(r, proof, schemas, credDefs, nil)
			assert.NoError(err)
			assert.That(!ok)
		})
	}
}

func TestSD_IssuerRestriction(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	f := issue(t, false)
	schemas, credDefs := f.ledger()

	// the holder cannot use the credential for another issuer
	req := gvtRequest(Restriction{IssuerDID: otherDID})
	_, err := f.sd.CreateProof(req, gvtRequested(), f.ms, f.creds, schemas, credDefs)
	assert.That(errors.Is(err, vcxerr.InvalidProofCredentialData))
	assert.That(!req.AttrCandidate("attr1_referent", f.cred.Credential))

	// a proof made for an open request does not satisfy the restricted one
	open := gvtRequest()
	proof := try.To1(f.sd.CreateProof(open, gvtRequested(), f.ms, f.creds, schemas, credDefs))
	ok := try.To1(f.sd.VerifyProof(req, proof, schemas, credDefs, nil))
	assert.That(!ok)

	// OR of restrictions
	req = gvtRequest(Restriction{IssuerDID: otherDID}, Restriction{SchemaName: "gvt", SchemaVersion: "1.0"})
	proof = try.To1(f.sd.CreateProof(req, gvtRequested(), f.ms, f.creds, schemas, credDefs))
	ok = try.To1(f.sd.VerifyProof(req, proof, schemas, credDefs, nil))
	assert.That(ok)
}

func TestSD_Revocation(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	f := issue(t, true)
	assert.Equal(f.cred.Credential.RevID, "1")
	schemas, credDefs := f.ledger()
	req := gvtRequest()
	req.NonRevoked = &NonRevoked{To: 100}

	proof := try.To1(f.sd.CreateProof(req, gvtRequested(), f.ms, f.creds, schemas, credDefs))
	ok := try.To1(f.sd.VerifyProof(req, proof, schemas, credDefs, nil))
	assert.That(ok)

	revoked := map[string][]string{f.cd.ID: {"1"}}
	ok = try.To1(f.sd.VerifyProof(req, proof, schemas, credDefs, revoked))
	assert.That(!ok)

	// without the interval revocation is not checked
	req.NonRevoked = nil
	ok = try.To1(f.sd.VerifyProof(req, proof, schemas, credDefs, revoked))
	assert.That(ok)
}

func TestSD_Errors(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	f := issue(t, false)
	schemas, credDefs := f.ledger()

	// unknown signature type
	cl := *f.cd
	cl.Type = "CL"
	_, err := f.sd.CreateCredentialOffer(&cl, f.priv)
	assert.That(errors.Is(err, vcxerr.UnknownCryptoMethod))
	proof := try.To1(f.sd.CreateProof(gvtRequest(), gvtRequested(), f.ms, f.creds, schemas, credDefs))
	_, err = f.sd.VerifyProof(gvtRequest(), proof, schemas,
		map[string]*pool.CredDef{cl.ID: &cl}, nil)
	assert.That(errors.Is(err, vcxerr.UnknownCryptoMethod))

	// missing ledger data is an error, not an invalid proof
	_, err = f.sd.VerifyProof(gvtRequest(), proof, nil, credDefs, nil)
	assert.That(errors.Is(err, vcxerr.NotFound))

	// attribute completeness
	offer := try.To1(f.sd.CreateCredentialOffer(f.cd, f.priv))
	creq, meta := try.To2(f.sd.CreateBlindedCredentialRequest(proverDID, offer, f.cd, f.ms))
	partial := NewAttrValues(map[string]string{"name": "Alex", "age": "28"})
	_, err = f.sd.IssueCredential(offer, creq, partial, f.cd, f.priv, "")
	assert.That(errors.Is(err, vcxerr.InvalidAttributes))
	extra := NewAttrValues(map[string]string{
		"name": "Alex", "age": "28", "sex": "male", "height": "175", "eyes": "blue"})
	_, err = f.sd.IssueCredential(offer, creq, extra, f.cd, f.priv, "")
	assert.That(errors.Is(err, vcxerr.InvalidAttributes))

	// credential bound to another master secret
	c := try.To1(f.sd.IssueCredential(offer, creq, NewAttrValues(gvtValues), f.cd, f.priv, ""))
	otherMS := try.To1(f.sd.CreateMasterSecret())
	err = f.sd.ProcessCredential(c, meta, f.cd, otherMS)
	assert.That(errors.Is(err, vcxerr.VerificationFailed))

	// tampered key correctness proof
	offer.KeyCorrectnessProof = offer.Nonce
	_, _, err = f.sd.CreateBlindedCredentialRequest(proverDID, offer, f.cd, f.ms)
	assert.That(errors.Is(err, vcxerr.VerificationFailed))

	// unsatisfied predicate
	req := gvtRequest()
	pi := req.RequestedPredicates["predicate1_referent"]
	pi.PValue = 60
	req.RequestedPredicates["predicate1_referent"] = pi
	_, err = f.sd.CreateProof(req, gvtRequested(), f.ms, f.creds, schemas, credDefs)
	assert.That(errors.Is(err, vcxerr.InvalidProofCredentialData))
}

func TestProofRequest_Validate(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	assert.NoError(gvtRequest().Validate())

	r := gvtRequest()
	r.Nonce = "abc"
	assert.That(errors.Is(r.Validate(), vcxerr.InvalidOption))

	r = gvtRequest()
	r.RequestedAttributes["bad"] = AttrInfo{Name: "a", Names: []string{"b"}}
	assert.That(errors.Is(r.Validate(), vcxerr.InvalidOption))

	r = gvtRequest()
	r.RequestedPredicates["bad"] = PredicateInfo{Name: "age", PType: "=="}
	assert.That(errors.Is(r.Validate(), vcxerr.InvalidOption))
}

func TestRestriction_Matches(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	credDefID := pool.CredDefID(issuerDID, SigTypeSD, 14, "tag1")
	assert.That(Restriction{}.Matches(gvtSchema.ID, credDefID))
	assert.That(Restriction{SchemaIssuerDID: issuerDID, SchemaName: "gvt"}.
		Matches(gvtSchema.ID, credDefID))
	assert.That(!Restriction{SchemaIssuerDID: issuerDID, SchemaName: "xyz"}.
		Matches(gvtSchema.ID, credDefID))
	assert.That(Restriction{CredDefID: credDefID}.Matches(gvtSchema.ID, credDefID))
	assert.That(!MatchesAny([]Restriction{{IssuerDID: otherDID}}, gvtSchema.ID, credDefID))
	assert.That(MatchesAny(nil, gvtSchema.ID, credDefID))
}
