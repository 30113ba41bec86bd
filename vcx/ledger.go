package vcx

import (
	"context"

	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/ssi"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

func (r *Runtime) institution() (string, error) {
	if r.InstitutionDID == "" {
		return "", vcxerr.New(vcxerr.InvalidOption, "no institution DID")
	}
	return r.InstitutionDID, nil
}

// SchemaCreate writes a new schema by the institution DID and waits until
// the ledger shows it.
func (r *Runtime) SchemaCreate(ctx context.Context, sourceID, name, version string, attrs []string) (h Handle, err error) {
	defer err2.Handle(&err, "schema create")

	did := try.To1(r.institution())
	s := try.To1(ssi.NewSchema(sourceID, name, version, attrs))
	try.To(s.Create(ctx, r.Env.Ledger, r.Env.Keys, did))
	return r.schemas.Add(s), nil
}

// SchemaGet reads a schema of anybody from the ledger.
func (r *Runtime) SchemaGet(ctx context.Context, sourceID, schemaID string) (h Handle, err error) {
	defer err2.Handle(&err, "schema get")

	return r.schemas.Add(try.To1(ssi.SchemaFromLedger(ctx, r.Env.Ledger, sourceID, schemaID))), nil
}

func (r *Runtime) SchemaGetAttributes(h Handle) (attrs []string, err error) {
	err = r.schemas.Do(h, func(s *ssi.Schema) error {
		attrs = s.GetAttributes()
		return nil
	})
	return attrs, err
}

func (r *Runtime) SchemaGetID(h Handle) (id string, err error) {
	err = r.schemas.Do(h, func(s *ssi.Schema) error {
		id = s.ID
		return nil
	})
	return id, err
}

func (r *Runtime) SchemaSerialize(h Handle) (data []byte, err error) {
	err = r.schemas.Do(h, func(s *ssi.Schema) error {
		data, err = s.Serialize()
		return err
	})
	return data, err
}

func (r *Runtime) SchemaDeserialize(data []byte) (h Handle, err error) {
	defer err2.Handle(&err)

	return r.schemas.Add(try.To1(ssi.DeserializeSchema(data))), nil
}

func (r *Runtime) SchemaRelease(h Handle) {
	r.schemas.Release(h)
}

// CredentialDefCreate builds the keys of a new cred def, writes its public
// part by the institution DID and keeps the private part in the wallet.
func (r *Runtime) CredentialDefCreate(
	ctx context.Context,
	sourceID, schemaID, tag string,
	revocation bool,
) (h Handle, err error) {
	defer err2.Handle(&err, "cred def create")

	did := try.To1(r.institution())
	cd := try.To1(ssi.CreateCredDef(ctx, r.Env.Ledger, r.Env.Keys, r.Env.Crypto,
		did, sourceID, schemaID, tag, revocation))
	return r.credDefs.Add(cd), nil
}

func (r *Runtime) CredentialDefGetID(h Handle) (id string, err error) {
	err = r.credDefs.Do(h, func(cd *ssi.CredDef) error {
		id = cd.ID
		return nil
	})
	return id, err
}

func (r *Runtime) CredentialDefSerialize(h Handle) (data []byte, err error) {
	err = r.credDefs.Do(h, func(cd *ssi.CredDef) error {
		data, err = cd.Serialize()
		return err
	})
	return data, err
}

func (r *Runtime) CredentialDefDeserialize(data []byte) (h Handle, err error) {
	defer err2.Handle(&err)

	return r.credDefs.Add(try.To1(ssi.DeserializeCredDef(data))), nil
}

func (r *Runtime) CredentialDefRelease(h Handle) {
	r.credDefs.Release(h)
}

// WriteNym writes a DID of somebody else to the ledger, signed by the
// institution DID. The institution must be a trustee, a steward or an
// endorser.
func (r *Runtime) WriteNym(ctx context.Context, did, verkey string, role pool.Role) (err error) {
	defer err2.Handle(&err, "write nym %s", did)

	submitter := try.To1(r.institution())
	try.To1(pool.SubmitNym(ctx, r.Env.Ledger, r.Env.Keys, submitter, did, verkey, pool.RolePtr(role)))
	return ssi.Retry(ctx, func() error {
		_, err := r.Env.Ledger.ResolveDID(ctx, did)
		return err
	})
}
