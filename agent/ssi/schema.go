package ssi

import (
	"context"

	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Schema is the issuer's handle side object of a ledger schema.
type Schema struct {
	SourceID     string   `json:"source_id"`
	ID           string   `json:"schema_id"`
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Attrs        []string `json:"data"`
	SeqNo        uint64   `json:"sequence_num"`
	SubmitterDID string   `json:"submitter_did"`
}

// NewSchema validates the attribute list: it must not be empty and names
// must be unique and non empty.
func NewSchema(sourceID, name, version string, attrs []string) (s *Schema, err error) {
	if name == "" || version == "" {
		return nil, vcxerr.New(vcxerr.InvalidOption, "schema needs name and version")
	}
	if len(attrs) == 0 {
		return nil, vcxerr.New(vcxerr.InvalidAttributes, "schema %s has no attributes", name)
	}
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		if a == "" {
			return nil, vcxerr.New(vcxerr.InvalidAttributes, "empty attribute name")
		}
		if seen[a] {
			return nil, vcxerr.New(vcxerr.InvalidAttributes, "duplicate attribute %q", a)
		}
		seen[a] = true
	}
	return &Schema{
		SourceID: sourceID,
		Name:     name,
		Version:  version,
		Attrs:    append([]string(nil), attrs...),
	}, nil
}

// Create writes the schema to the ledger and waits until the ledger shows
// it, because cred defs need the schema's sequence number.
func (s *Schema) Create(ctx context.Context, l pool.Ledger, k *Keys, did string) (err error) {
	defer err2.Handle(&err, "create schema %s", s.Name)

	ps := &pool.Schema{
		Name:      s.Name,
		Version:   s.Version,
		AttrNames: s.Attrs,
	}
	reply := try.To1(pool.WriteSchema(ctx, l, k, did, ps))
	s.ID = reply.ID
	s.SubmitterDID = did

	var stored *pool.Schema
	try.To(Retry(ctx, func() (err error) {
		stored, err = l.GetSchema(ctx, s.ID)
		return err
	}))
	s.SeqNo = stored.SeqNo
	glog.V(1).Infoln("schema created:", s.ID)
	return nil
}

// SchemaFromLedger builds the object of an existing ledger schema.
func SchemaFromLedger(ctx context.Context, l pool.Ledger, sourceID, id string) (s *Schema, err error) {
	defer err2.Handle(&err, "schema %s", id)

	ps := try.To1(l.GetSchema(ctx, id))
	return &Schema{
		SourceID:     sourceID,
		ID:           ps.ID,
		Name:         ps.Name,
		Version:      ps.Version,
		Attrs:        ps.AttrNames,
		SeqNo:        ps.SeqNo,
		SubmitterDID: pool.IssuerOf(ps.ID),
	}, nil
}

// Ledger returns the ledger form of the schema.
func (s *Schema) Ledger() *pool.Schema {
	return &pool.Schema{
		Ver:       "1.0",
		ID:        s.ID,
		Name:      s.Name,
		Version:   s.Version,
		AttrNames: append([]string(nil), s.Attrs...),
		SeqNo:     s.SeqNo,
	}
}

func (s *Schema) GetAttributes() []string {
	return append([]string(nil), s.Attrs...)
}

func (s *Schema) Serialize() ([]byte, error) {
	return utils.Serialize(s)
}

func DeserializeSchema(data []byte) (s *Schema, err error) {
	s = new(Schema)
	if err := utils.Deserialize(data, s); err != nil {
		return nil, err
	}
	return s, nil
}
