package anoncreds

import (
	"sort"
	"strings"

	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
)

// AttrValue is a credential attribute in both forms.
type AttrValue struct {
	Raw     string `json:"raw"`
	Encoded string `json:"encoded"`
}

// AttrValues maps attribute names to their values.
type AttrValues map[string]AttrValue

// NewAttrValues encodes raw attribute values.
func NewAttrValues(raw map[string]string) AttrValues {
	av := make(AttrValues, len(raw))
	for k, v := range raw {
		av[k] = AttrValue{Raw: v, Encoded: utils.EncodeValue(v)}
	}
	return av
}

// Names returns the sorted attribute names.
func (av AttrValues) Names() []string {
	names := make([]string, 0, len(av))
	for k := range av {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// AttrKey normalizes an attribute name for comparisons: lower case without
// spaces.
func AttrKey(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", ""))
}

// CheckAttributes fails with InvalidAttributes unless the values cover
// exactly the schema's attribute names.
func CheckAttributes(attrNames []string, values AttrValues) error {
	want := make(map[string]bool, len(attrNames))
	for _, n := range attrNames {
		want[AttrKey(n)] = true
	}
	got := make(map[string]bool, len(values))
	for n := range values {
		k := AttrKey(n)
		if !want[k] {
			return vcxerr.New(vcxerr.InvalidAttributes, "attribute %q not in schema", n)
		}
		got[k] = true
	}
	for _, n := range attrNames {
		if !got[AttrKey(n)] {
			return vcxerr.New(vcxerr.InvalidAttributes, "attribute %q missing", n)
		}
	}
	return nil
}

// Offer is the issuer's credential offer.
type Offer struct {
	SchemaID            string `json:"schema_id"`
	CredDefID           string `json:"cred_def_id"`
	Nonce               string `json:"nonce"`
	KeyCorrectnessProof string `json:"key_correctness_proof"`
}

// Request is the holder's blinded credential request.
type Request struct {
	ProverDID                 string `json:"prover_did"`
	CredDefID                 string `json:"cred_def_id"`
	BlindedMS                 string `json:"blinded_ms"`
	BlindedMSCorrectnessProof string `json:"blinded_ms_correctness_proof"`
	Nonce                     string `json:"nonce"`
}

// RequestMetadata stays with the holder between request and credential.
type RequestMetadata struct {
	BlindingFactor string `json:"master_secret_blinding_data"`
	Nonce          string `json:"nonce"`
	OfferNonce     string `json:"offer_nonce"`
}

// Credential is the signed attribute bundle.
type Credential struct {
	SchemaID  string            `json:"schema_id"`
	CredDefID string            `json:"cred_def_id"`
	RevID     string            `json:"cred_rev_id,omitempty"`
	Values    AttrValues        `json:"values"`
	Salts     map[string]string `json:"salts"`
	BlindedMS string            `json:"blinded_ms"`
	Nonce     string            `json:"nonce"`
	Signature string            `json:"signature"`
}

// StoredCredential is a credential in the holder's wallet together with the
// blinding factor which links it to the master secret.
type StoredCredential struct {
	Referent       string      `json:"referent"`
	SourceID       string      `json:"source_id,omitempty"`
	Credential     *Credential `json:"credential"`
	BlindingFactor string      `json:"blinding_factor"`
}

// CredentialInfo is what a holder sees of a stored credential when it
// selects credentials for a proof.
type CredentialInfo struct {
	Referent  string            `json:"referent"`
	Attrs     map[string]string `json:"attrs"`
	SchemaID  string            `json:"schema_id"`
	CredDefID string            `json:"cred_def_id"`
	RevID     string            `json:"cred_rev_id,omitempty"`
}

// Info returns the credential info of the stored credential.
func (sc *StoredCredential) Info() CredentialInfo {
	attrs := make(map[string]string, len(sc.Credential.Values))
	for k, v := range sc.Credential.Values {
		attrs[k] = v.Raw
	}
	return CredentialInfo{
		Referent:  sc.Referent,
		Attrs:     attrs,
		SchemaID:  sc.Credential.SchemaID,
		CredDefID: sc.Credential.CredDefID,
		RevID:     sc.Credential.RevID,
	}
}

// Tags are the wallet tags of a stored credential, used by credential
// searches.
func (sc *StoredCredential) Tags() map[string]string {
	c := sc.Credential
	schemaDID, name, version := ParseSchemaID(c.SchemaID)
	tags := map[string]string{
		"schema_id":         c.SchemaID,
		"schema_issuer_did": schemaDID,
		"schema_name":       name,
		"schema_version":    version,
		"issuer_did":        IssuerOf(c.CredDefID),
		"cred_def_id":       c.CredDefID,
	}
	if sc.SourceID != "" {
		tags["source_id"] = sc.SourceID
	}
	for name := range c.Values {
		tags["attr::"+AttrKey(name)+"::marker"] = "1"
	}
	return tags
}
