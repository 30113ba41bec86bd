package anoncreds

import (
	"fmt"
	"strings"

	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
)

// Restriction limits the credentials acceptable for a referent. The fields
// of one Restriction must all match. A list of restrictions matches when any
// of them matches.
type Restriction struct {
	SchemaID        string `json:"schema_id,omitempty"`
	SchemaIssuerDID string `json:"schema_issuer_did,omitempty"`
	SchemaName      string `json:"schema_name,omitempty"`
	SchemaVersion   string `json:"schema_version,omitempty"`
	IssuerDID       string `json:"issuer_did,omitempty"`
	CredDefID       string `json:"cred_def_id,omitempty"`
}

// NonRevoked is the interval the credential must be valid in.
type NonRevoked struct {
	From int64 `json:"from,omitempty"`
	To   int64 `json:"to,omitempty"`
}

// AttrInfo is a requested attribute: a single name or a group of names.
type AttrInfo struct {
	Name         string        `json:"name,omitempty"`
	Names        []string      `json:"names,omitempty"`
	Restrictions []Restriction `json:"restrictions,omitempty"`
	NonRevoked   *NonRevoked   `json:"non_revoked,omitempty"`
}

// PredicateInfo is a requested predicate, e.g. age >= 18.
type PredicateInfo struct {
	Name         string        `json:"name"`
	PType        string        `json:"p_type"`
	PValue       int64         `json:"p_value"`
	Restrictions []Restriction `json:"restrictions,omitempty"`
	NonRevoked   *NonRevoked   `json:"non_revoked,omitempty"`
}

// ProofRequest is the verifier's request.
type ProofRequest struct {
	Name                string                   `json:"name"`
	Version             string                   `json:"version"`
	Nonce               string                   `json:"nonce"`
	RequestedAttributes map[string]AttrInfo      `json:"requested_attributes"`
	RequestedPredicates map[string]PredicateInfo `json:"requested_predicates"`
	NonRevoked          *NonRevoked              `json:"non_revoked,omitempty"`
}

// RequestedAttr is the holder's choice for an attribute referent.
type RequestedAttr struct {
	CredID   string `json:"cred_id"`
	Revealed bool   `json:"revealed"`
}

// RequestedPred is the holder's choice for a predicate referent.
type RequestedPred struct {
	CredID string `json:"cred_id"`
}

// RequestedCredentials is the holder's selection of credentials and self
// attested values for a proof request.
type RequestedCredentials struct {
	SelfAttestedAttributes map[string]string        `json:"self_attested_attributes"`
	RequestedAttributes    map[string]RequestedAttr `json:"requested_attributes"`
	RequestedPredicates    map[string]RequestedPred `json:"requested_predicates"`
}

// ParseSchemaID splits a schema id to DID, name and version.
func ParseSchemaID(id string) (did, name, version string) {
	parts := strings.Split(id, ":")
	if len(parts) != 4 || parts[1] != "2" {
		return "", "", ""
	}
	return parts[0], parts[2], parts[3]
}

// IssuerOf returns the issuer DID of a cred def id.
func IssuerOf(credDefID string) string {
	return pool.IssuerOf(credDefID)
}

// Matches tells if a credential of the ids satisfies the restriction.
func (r Restriction) Matches(schemaID, credDefID string) bool {
	schemaDID, name, version := ParseSchemaID(schemaID)
	switch {
	case r.SchemaID != "" && r.SchemaID != schemaID:
	case r.SchemaIssuerDID != "" && r.SchemaIssuerDID != schemaDID:
	case r.SchemaName != "" && r.SchemaName != name:
	case r.SchemaVersion != "" && r.SchemaVersion != version:
	case r.IssuerDID != "" && r.IssuerDID != IssuerOf(credDefID):
	case r.CredDefID != "" && r.CredDefID != credDefID:
	default:
		return true
	}
	return false
}

// MatchesAny is the OR of the restrictions. An empty list matches all.
func MatchesAny(rs []Restriction, schemaID, credDefID string) bool {
	if len(rs) == 0 {
		return true
	}
	for _, r := range rs {
		if r.Matches(schemaID, credDefID) {
			return true
		}
	}
	return false
}

// AttrNames returns the requested names of the attribute referent.
func (ai AttrInfo) AttrNames() []string {
	if ai.Name != "" {
		return []string{ai.Name}
	}
	return ai.Names
}

func hasAttrs(values AttrValues, names []string) bool {
	keys := make(map[string]bool, len(values))
	for n := range values {
		keys[AttrKey(n)] = true
	}
	for _, n := range names {
		if !keys[AttrKey(n)] {
			return false
		}
	}
	return true
}

// Satisfies tells if the predicate holds for an encoded value.
func (pi PredicateInfo) Satisfies(encoded string) bool {
	v, ok := utils.EncodedInt(encoded)
	if !ok {
		return false
	}
	switch pi.PType {
	case ">=":
		return v >= pi.PValue
	case ">":
		return v > pi.PValue
	case "<=":
		return v <= pi.PValue
	case "<":
		return v < pi.PValue
	}
	return false
}

// Validate checks the request's structure.
func (pr *ProofRequest) Validate() error {
	if pr.Nonce == "" || !utils.IsDecimal(pr.Nonce) {
		return vcxerr.New(vcxerr.InvalidOption, "proof request nonce must be decimal")
	}
	if len(pr.RequestedAttributes)+len(pr.RequestedPredicates) == 0 {
		return vcxerr.New(vcxerr.InvalidOption, "proof request is empty")
	}
	for ref, ai := range pr.RequestedAttributes {
		if (ai.Name == "") == (len(ai.Names) == 0) {
			return vcxerr.New(vcxerr.InvalidOption, "attribute %s needs name or names", ref)
		}
	}
	for ref, pi := range pr.RequestedPredicates {
		switch pi.PType {
		case ">=", ">", "<=", "<":
		default:
			return vcxerr.New(vcxerr.InvalidOption, "predicate %s type %q", ref, pi.PType)
		}
		if pi.Name == "" {
			return vcxerr.New(vcxerr.InvalidOption, "predicate %s needs name", ref)
		}
	}
	return nil
}

// AttrCandidate tells if the credential can serve the attribute referent.
func (pr *ProofRequest) AttrCandidate(ref string, c *Credential) bool {
	ai, ok := pr.RequestedAttributes[ref]
	if !ok {
		return false
	}
	return MatchesAny(ai.Restrictions, c.SchemaID, c.CredDefID) &&
		hasAttrs(c.Values, ai.AttrNames())
}

// PredicateCandidate tells if the credential can serve the predicate
// referent: it matches the restrictions and satisfies the predicate.
func (pr *ProofRequest) PredicateCandidate(ref string, c *Credential) bool {
	pi, ok := pr.RequestedPredicates[ref]
	if !ok {
		return false
	}
	if !MatchesAny(pi.Restrictions, c.SchemaID, c.CredDefID) {
		return false
	}
	v, found := lookup(c.Values, pi.Name)
	return found && pi.Satisfies(v.Encoded)
}

func lookup(values AttrValues, name string) (AttrValue, bool) {
	k := AttrKey(name)
	for n, v := range values {
		if AttrKey(n) == k {
			return v, true
		}
	}
	return AttrValue{}, false
}

func (pr *ProofRequest) nonRevokedFor(ref string) *NonRevoked {
	if ai, ok := pr.RequestedAttributes[ref]; ok && ai.NonRevoked != nil {
		return ai.NonRevoked
	}
	if pi, ok := pr.RequestedPredicates[ref]; ok && pi.NonRevoked != nil {
		return pi.NonRevoked
	}
	return pr.NonRevoked
}

func (pr *ProofRequest) String() string {
	return fmt.Sprintf("proof request %s/%s attrs:%d preds:%d", pr.Name,
		pr.Version, len(pr.RequestedAttributes), len(pr.RequestedPredicates))
}
