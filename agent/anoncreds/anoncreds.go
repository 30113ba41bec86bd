// Package anoncreds is the cryptographic collaborator of the credential
// exchange. Crypto is the interface the protocol objects call, and SD is the
// reference implementation: salted attribute digests signed with an ed25519
// credential definition key, bound to a holder link key derived from the
// master secret. SD gives selective disclosure of attributes, but its
// predicates open the attribute value to the verifier. A CL backend plugs in
// by implementing Crypto for its own signature type.
package anoncreds

import (
	"github.com/findy-network/findy-vcx/agent/pool"
)

// MasterSecret is the holder's link secret. It never leaves the holder.
type MasterSecret []byte

// CredDefPrivate is the issuer's private part of a credential definition.
type CredDefPrivate struct {
	CredDefID string `json:"cred_def_id"`
	Type      string `json:"type"`
	Seed      []byte `json:"seed"`
}

// Crypto is the contract of the cryptographic collaborator.
type Crypto interface {
	// SigType is the signature type name used in cred def ids.
	SigType() string

	CreateCredentialDefinition(
		issuerDID string,
		schema *pool.Schema,
		tag string,
		supportRevocation bool,
	) (*pool.CredDef, *CredDefPrivate, error)

	CreateMasterSecret() (MasterSecret, error)

	CreateCredentialOffer(credDef *pool.CredDef, priv *CredDefPrivate) (*Offer, error)

	// CreateBlindedCredentialRequest verifies the offer against the cred
	// def and builds a request which commits to the master secret
	// without revealing it.
	CreateBlindedCredentialRequest(
		proverDID string,
		offer *Offer,
		credDef *pool.CredDef,
		ms MasterSecret,
	) (*Request, *RequestMetadata, error)

	IssueCredential(
		offer *Offer,
		req *Request,
		values AttrValues,
		credDef *pool.CredDef,
		priv *CredDefPrivate,
		revID string,
	) (*Credential, error)

	// ProcessCredential verifies the issued credential before the holder
	// stores it.
	ProcessCredential(
		cred *Credential,
		meta *RequestMetadata,
		credDef *pool.CredDef,
		ms MasterSecret,
	) error

	CreateProof(
		req *ProofRequest,
		requested *RequestedCredentials,
		ms MasterSecret,
		creds map[string]*StoredCredential,
		schemas map[string]*pool.Schema,
		credDefs map[string]*pool.CredDef,
	) (*Proof, error)

	// VerifyProof returns false for a proof which does not verify. Errors
	// are reserved for inputs which cannot be verified at all.
	VerifyProof(
		req *ProofRequest,
		proof *Proof,
		schemas map[string]*pool.Schema,
		credDefs map[string]*pool.CredDef,
		revoked map[string][]string,
	) (bool, error)
}
