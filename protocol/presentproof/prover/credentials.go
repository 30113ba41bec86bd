package prover

import (
	"encoding/json"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Matching are the stored credentials which can serve the referents of a
// proof request, most recently stored first.
type Matching struct {
	Attrs      map[string][]anoncreds.CredentialInfo `json:"attrs"`
	Predicates map[string][]anoncreds.CredentialInfo `json:"predicates"`
}

// RetrieveCredentials searches the wallet for the candidates of each
// referent. A referent without candidates has an empty list.
func (p *DisclosedProof) RetrieveCredentials() (mc *Matching, err error) {
	defer err2.Handle(&err, "retrieve credentials %s", p.SourceID)

	mc = &Matching{
		Attrs:      make(map[string][]anoncreds.CredentialInfo),
		Predicates: make(map[string][]anoncreds.CredentialInfo),
	}
	for ref, ai := range p.Request.RequestedAttributes {
		q := markerQuery(ai.AttrNames())
		mc.Attrs[ref] = try.To1(p.search(q, func(c *anoncreds.Credential) bool {
			return p.Request.AttrCandidate(ref, c)
		}))
	}
	for ref, pi := range p.Request.RequestedPredicates {
		q := markerQuery([]string{pi.Name})
		mc.Predicates[ref] = try.To1(p.search(q, func(c *anoncreds.Credential) bool {
			return p.Request.PredicateCandidate(ref, c)
		}))
	}
	return mc, nil
}

func markerQuery(names []string) wallet.Query {
	qs := make([]wallet.Query, 0, len(names))
	for _, n := range names {
		qs = append(qs, wallet.Eq("attr::"+anoncreds.AttrKey(n)+"::marker", "1"))
	}
	return wallet.And(qs...)
}

func (p *DisclosedProof) search(q wallet.Query, fits func(c *anoncreds.Credential) bool) (infos []anoncreds.CredentialInfo, err error) {
	defer err2.Handle(&err)

	infos = make([]anoncreds.CredentialInfo, 0)
	for _, rec := range try.To1(p.env.Keys.W.Search(wallet.TypeCredential, q)) {
		var sc anoncreds.StoredCredential
		if err := json.Unmarshal(rec.Value, &sc); err != nil || sc.Credential == nil {
			glog.Warningf("skip bad credential record %s", rec.ID)
			continue
		}
		if fits(sc.Credential) {
			infos = append(infos, sc.Info())
		}
	}
	return infos, nil
}

// AutoSelect picks the first candidate of each referent and reveals all
// attributes. It fails with InvalidProofCredentialData if a referent has no
// candidate and no self attested value.
func (mc *Matching) AutoSelect(pr *anoncreds.ProofRequest, selfAttested map[string]string) (*anoncreds.RequestedCredentials, error) {
	rc := &anoncreds.RequestedCredentials{
		SelfAttestedAttributes: make(map[string]string),
		RequestedAttributes:    make(map[string]anoncreds.RequestedAttr),
		RequestedPredicates:    make(map[string]anoncreds.RequestedPred),
	}
	for ref := range pr.RequestedAttributes {
		if v, ok := selfAttested[ref]; ok {
			rc.SelfAttestedAttributes[ref] = v
			continue
		}
		if len(mc.Attrs[ref]) == 0 {
			return nil, vcxerr.New(vcxerr.InvalidProofCredentialData, "no credential for %s", ref)
		}
		rc.RequestedAttributes[ref] = anoncreds.RequestedAttr{
			CredID:   mc.Attrs[ref][0].Referent,
			Revealed: true,
		}
	}
	for ref := range pr.RequestedPredicates {
		if len(mc.Predicates[ref]) == 0 {
			return nil, vcxerr.New(vcxerr.InvalidProofCredentialData, "no credential for %s", ref)
		}
		rc.RequestedPredicates[ref] = anoncreds.RequestedPred{CredID: mc.Predicates[ref][0].Referent}
	}
	return rc, nil
}
