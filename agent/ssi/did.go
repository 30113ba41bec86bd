package ssi

import (
	"crypto/ed25519"
	"encoding/json"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/hyperledger/aries-framework-go/pkg/vdr/fingerprint"
	"github.com/mr-tron/base58"
)

// DID is our own DID as it's stored to the wallet. The private keys are in
// their own wallet records.
type DID struct {
	DID    string `json:"did"`
	Verkey string `json:"verkey"`

	// BoxKey is the base58 X25519 public key used for pairwise
	// encryption.
	BoxKey string `json:"box_key"`

	// PendingVerkey is set between ReplaceKeysStart and ReplaceKeysApply.
	PendingVerkey string `json:"pending_verkey,omitempty"`

	Metadata string `json:"metadata,omitempty"`
}

func (d *DID) Did() string {
	return d.DID
}

func (d *DID) VerKey() string {
	return d.Verkey
}

func (d *DID) URI() string {
	return "did:sov:" + d.DID
}

// DIDKey returns the did:key form of the current verkey.
func (d *DID) DIDKey() string {
	return DIDKey(d.Verkey)
}

func (d *DID) JSON() []byte {
	data, err := json.Marshal(d)
	if err != nil {
		panic(err)
	}
	return data
}

// DIDKey converts a base58 ed25519 verkey to a did:key. It returns an empty
// string for malformed keys.
func DIDKey(verkey string) string {
	pk, err := base58.Decode(verkey)
	if err != nil || len(pk) != 32 {
		return ""
	}
	didKey, _ := fingerprint.CreateDIDKey(pk)
	return didKey
}

// VerkeyFromDIDKey is the inverse of DIDKey.
func VerkeyFromDIDKey(didKey string) (string, error) {
	pk, err := fingerprint.PubKeyFromDIDKey(didKey)
	if err != nil {
		return "", err
	}
	return base58.Encode(pk), nil
}

// DIDFromVerkey returns the indy style DID of the verkey: base58 of its
// first 16 bytes.
func DIDFromVerkey(verkey []byte) string {
	return base58.Encode(verkey[:16])
}

// SeedDID returns the DID and verkey a 32 byte seed gives without touching a
// wallet. It's how genesis NYMs are built from a trustee seed.
func SeedDID(seed string) (did, verkey string, err error) {
	if len(seed) != ed25519.SeedSize {
		return "", "", vcxerr.New(vcxerr.InvalidOption, "seed must be %d bytes", ed25519.SeedSize)
	}
	pub := ed25519.NewKeyFromSeed([]byte(seed)).Public().(ed25519.PublicKey)
	return DIDFromVerkey(pub), base58.Encode(pub), nil
}
