// Package wallet defines the durable, keyed record store of the protocol
// objects' secrets: private keys, master secrets, stored credentials and
// connection metadata. Records are unique per (type, id). The backends live in
// sub packages, and NewMem is the in-memory reference used by tests.
package wallet

import (
	"sort"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
)

// Well known record types.
const (
	TypeDID          = "did"
	TypeDIDKey       = "did_key"
	TypeBoxKey       = "box_key"
	TypeMasterSecret = "master_secret"
	TypeCredential   = "credential"
	TypeCredDefPriv  = "cred_def_priv"
	TypeConnection   = "connection"
)

// Record is one wallet entry.
type Record struct {
	Type  string            `json:"type"`
	ID    string            `json:"id"`
	Value []byte            `json:"value"`
	Tags  map[string]string `json:"tags,omitempty"`

	// Seq is assigned by the wallet at put. It orders records by insertion.
	Seq uint64 `json:"seq"`
}

// Wallet is implemented by every backend. Each call is atomic: it fully
// succeeds or has no visible effect.
type Wallet interface {
	// Put stores a new record and fails with AlreadyExists if (type, id) is
	// taken.
	Put(rec Record) error

	// Get fails with NotFound.
	Get(typ, id string) (*Record, error)

	// Update replaces the value of an existing record.
	Update(typ, id string, value []byte) error

	// UpdateTags replaces the tags of an existing record.
	UpdateTags(typ, id string, tags map[string]string) error

	Delete(typ, id string) error

	// Search returns the records of the type matching q, most recently
	// stored first. A nil q matches all.
	Search(typ string, q Query) ([]Record, error)

	Close() error
}

// SortNewestFirst orders records by descending Seq.
func SortNewestFirst(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Seq > recs[j].Seq
	})
}

// Filter returns the records matching q.
func Filter(recs []Record, q Query) []Record {
	if q == nil {
		return recs
	}
	out := recs[:0:0]
	for _, r := range recs {
		if q.Match(r.Tags) {
			out = append(out, r)
		}
	}
	return out
}

func ErrNotFound(typ, id string) error {
	return vcxerr.New(vcxerr.NotFound, "wallet record %s/%s", typ, id)
}

func ErrExists(typ, id string) error {
	return vcxerr.New(vcxerr.AlreadyExists, "wallet record %s/%s", typ, id)
}

// CheckRecord validates the record's key fields.
func CheckRecord(rec Record) error {
	if rec.Type == "" || rec.ID == "" {
		return vcxerr.New(vcxerr.InvalidOption, "wallet record needs type and id")
	}
	return nil
}

func copyTags(tags map[string]string) map[string]string {
	if tags == nil {
		return nil
	}
	c := make(map[string]string, len(tags))
	for k, v := range tags {
		c[k] = v
	}
	return c
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	r.Value = append(r.Value[:0:0], r.Value...)
	r.Tags = copyTags(r.Tags)
	return r
}
