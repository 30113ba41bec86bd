package pool

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"time"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

// Operation is the payload of a write request.
type Operation struct {
	Type string `json:"type"`

	// NYM
	Dest     string `json:"dest,omitempty"`
	Verkey   string `json:"verkey,omitempty"`
	Role     *Role  `json:"role,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`

	Schema  *Schema  `json:"schema,omitempty"`
	CredDef *CredDef `json:"cred_def,omitempty"`

	// revocation
	RevCredDefID string `json:"rev_cred_def_id,omitempty"`
	RevID        string `json:"rev_id,omitempty"`
}

// Request is a signed write request.
type Request struct {
	Identifier string    `json:"identifier"`
	ReqID      int64     `json:"reqId"`
	Operation  Operation `json:"operation"`
	Signature  string    `json:"signature,omitempty"`
}

// Signer signs with the current key of a DID. The ssi package implements
// it.
type Signer interface {
	Sign(did string, msg []byte) ([]byte, error)
}

// SigningBytes are the canonical bytes the signature covers.
func (r *Request) SigningBytes() []byte {
	c := *r
	c.Signature = ""
	data, err := json.Marshal(c)
	if err != nil {
		panic(err)
	}
	return data
}

// Sign signs the request with the submitter's key.
func (r *Request) Sign(s Signer) (err error) {
	defer err2.Handle(&err, "sign request")

	r.Signature = base58.Encode(try.To1(s.Sign(r.Identifier, r.SigningBytes())))
	return nil
}

// VerifyWith checks the signature against a base58 verkey.
func (r *Request) VerifyWith(verkey string) error {
	vk, err := base58.Decode(verkey)
	if err != nil || len(vk) != ed25519.PublicKeySize {
		return vcxerr.New(vcxerr.InvalidOption, "verkey of %s", r.Identifier)
	}
	sig, err := base58.Decode(r.Signature)
	if err != nil {
		return vcxerr.New(vcxerr.VerificationFailed, "request signature encoding")
	}
	if !ed25519.Verify(vk, r.SigningBytes(), sig) {
		return vcxerr.New(vcxerr.VerificationFailed, "request signature of %s", r.Identifier)
	}
	return nil
}

func newRequest(submitter string, op Operation) *Request {
	return &Request{
		Identifier: submitter,
		ReqID:      time.Now().UnixNano(),
		Operation:  op,
	}
}

// NewNymRequest builds a NYM request. A nil role keeps the current role.
func NewNymRequest(submitter, did, verkey string, role *Role) *Request {
	return newRequest(submitter, Operation{
		Type:   TxnNym,
		Dest:   did,
		Verkey: verkey,
		Role:   role,
	})
}

// NewSchemaRequest builds a SCHEMA request.
func NewSchemaRequest(submitter string, s *Schema) *Request {
	return newRequest(submitter, Operation{Type: TxnSchema, Schema: s})
}

// NewCredDefRequest builds a CRED_DEF request.
func NewCredDefRequest(submitter string, cd *CredDef) *Request {
	return newRequest(submitter, Operation{Type: TxnCredDef, CredDef: cd})
}

// NewRevocationRequest builds a request which revokes one credential.
func NewRevocationRequest(submitter, credDefID, revID string) *Request {
	return newRequest(submitter, Operation{
		Type:         TxnRevocation,
		RevCredDefID: credDefID,
		RevID:        revID,
	})
}

// SubmitNym signs and submits a NYM request.
func SubmitNym(
	ctx context.Context,
	l Ledger,
	s Signer,
	submitter, did, verkey string,
	role *Role,
) (r *Reply, err error) {
	defer err2.Handle(&err, "submit nym %s", did)

	req := NewNymRequest(submitter, did, verkey, role)
	try.To(req.Sign(s))
	return l.Submit(ctx, req)
}

// WriteSchema signs and submits a SCHEMA request.
func WriteSchema(ctx context.Context, l Ledger, s Signer, submitter string, sch *Schema) (r *Reply, err error) {
	defer err2.Handle(&err, "write schema")

	req := NewSchemaRequest(submitter, sch)
	try.To(req.Sign(s))
	return l.Submit(ctx, req)
}

// WriteCredDef signs and submits a CRED_DEF request.
func WriteCredDef(ctx context.Context, l Ledger, s Signer, submitter string, cd *CredDef) (r *Reply, err error) {
	defer err2.Handle(&err, "write cred def")

	req := NewCredDefRequest(submitter, cd)
	try.To(req.Sign(s))
	return l.Submit(ctx, req)
}

// Revoke signs and submits a revocation.
func Revoke(ctx context.Context, l Ledger, s Signer, submitter, credDefID, revID string) (r *Reply, err error) {
	defer err2.Handle(&err, "revoke")

	req := NewRevocationRequest(submitter, credDefID, revID)
	try.To(req.Sign(s))
	return l.Submit(ctx, req)
}

// RolePtr is a helper for the optional role of a NYM request.
func RolePtr(r Role) *Role {
	return &r
}
