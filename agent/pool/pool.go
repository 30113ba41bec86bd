// Package pool is the ledger side of the module: the Ledger interface the
// protocol objects use for DID, schema and credential definition resolution,
// the request types which write to it, an append-only local ledger, and a
// caching resolver.
package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/mr-tron/base58"
)

// Role of a NYM on the ledger.
type Role string

const (
	RoleNone     Role = ""
	RoleTrustee  Role = "TRUSTEE"
	RoleSteward  Role = "STEWARD"
	RoleEndorser Role = "ENDORSER"
)

// Transaction types, numbered as on indy ledgers.
const (
	TxnNym        = "1"
	TxnSchema     = "101"
	TxnCredDef    = "102"
	TxnRevocation = "114"
)

// Nym is the resolved state of a DID.
type Nym struct {
	DID      string `json:"dest"`
	Verkey   string `json:"verkey"`
	Role     Role   `json:"role,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// Schema is a published list of attribute names.
type Schema struct {
	Ver       string   `json:"ver"`
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Version   string   `json:"version"`
	AttrNames []string `json:"attrNames"`
	SeqNo     uint64   `json:"seqNo,omitempty"`
}

// CredDef is the public part of a credential definition. Value is the key
// material of the signature type, the ledger does not interpret it.
type CredDef struct {
	Ver      string          `json:"ver"`
	ID       string          `json:"id"`
	SchemaID string          `json:"schemaId"`
	Type     string          `json:"type"`
	Tag      string          `json:"tag"`
	Value    json.RawMessage `json:"value"`
}

// IssuerDID returns the DID which owns the credential definition.
func (c *CredDef) IssuerDID() string {
	return IssuerOf(c.ID)
}

// Reply of a write request.
type Reply struct {
	SeqNo   uint64 `json:"seqNo"`
	TxnTime int64  `json:"txnTime"`
	ID      string `json:"id,omitempty"`
}

// Ledger is the ledger client the protocol core uses. All reads are
// eventually consistent with the writes: a NotFound right after a write is
// normal and callers retry.
type Ledger interface {
	ResolveDID(ctx context.Context, did string) (*Nym, error)
	GetSchema(ctx context.Context, id string) (*Schema, error)
	GetCredDef(ctx context.Context, id string) (*CredDef, error)
	GetRevocations(ctx context.Context, credDefID string) ([]string, error)
	Submit(ctx context.Context, req *Request) (*Reply, error)
	Close() error
}

// SchemaID builds an indy style schema id.
func SchemaID(did, name, version string) string {
	return fmt.Sprintf("%s:2:%s:%s", did, name, version)
}

// CredDefID builds an indy style credential definition id.
func CredDefID(did, sigType string, schemaSeqNo uint64, tag string) string {
	return fmt.Sprintf("%s:3:%s:%d:%s", did, sigType, schemaSeqNo, tag)
}

// IssuerOf returns the DID part of a schema or credential definition id.
func IssuerOf(id string) string {
	did, _, _ := strings.Cut(id, ":")
	return did
}

// SigTypeOf returns the signature type of a credential definition id.
func SigTypeOf(credDefID string) string {
	parts := strings.Split(credDefID, ":")
	if len(parts) < 5 || parts[1] != "3" {
		return ""
	}
	return parts[2]
}

// CheckDID validates an indy style DID: base58 of 16 or 32 bytes.
func CheckDID(did string) error {
	b, err := base58.Decode(did)
	if err != nil || (len(b) != 16 && len(b) != 32) {
		return vcxerr.New(vcxerr.InvalidOption, "invalid DID %q", did)
	}
	return nil
}

// CheckVerkey validates a base58 ed25519 public key.
func CheckVerkey(verkey string) error {
	b, err := base58.Decode(verkey)
	if err != nil || len(b) != 32 {
		return vcxerr.New(vcxerr.InvalidOption, "invalid verkey %q", verkey)
	}
	return nil
}
