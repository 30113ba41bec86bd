package vcx

import (
	"encoding/json"

	"github.com/findy-network/findy-vcx/agent/handle"
	"github.com/findy-network/findy-vcx/agent/psm"
	"github.com/findy-network/findy-vcx/agent/ssi"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/protocol/issuecredential/holder"
	"github.com/findy-network/findy-vcx/protocol/issuecredential/issuer"
	"github.com/findy-network/findy-vcx/protocol/presentproof/prover"
	"github.com/findy-network/findy-vcx/protocol/presentproof/verifier"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// snapshot is what the store keeps of an object: its serialized data and
// the source id of the connection it was bound to.
type snapshot struct {
	Conn string          `json:"connection,omitempty"`
	Data json.RawMessage `json:"data"`
}

// Bind binds a protocol object to a connection. It's needed for objects
// restored by a *Deserialize call before their UpdateState can poll.
func (r *Runtime) Bind(h, conn Handle) (err error) {
	defer err2.Handle(&err, "bind %d to connection %d", h, conn)

	try.To1(r.conns.Get(conn))
	switch {
	case r.issuerCreds.Has(h):
		return bind(r.issuerCreds, h, conn)
	case r.creds.Has(h):
		return bind(r.creds, h, conn)
	case r.disclosed.Has(h):
		return bind(r.disclosed, h, conn)
	case r.proofs.Has(h):
		return bind(r.proofs, h, conn)
	}
	return vcxerr.New(vcxerr.InvalidHandle, "no protocol object %d", h)
}

func bind[T any](t *handle.Table[*bound[T]], h, conn Handle) error {
	return t.Do(h, func(b *bound[T]) error {
		b.conn = conn
		return nil
	})
}

func (r *Runtime) snapshots() (*psm.Store, error) {
	if r.store == nil {
		return nil, vcxerr.New(vcxerr.InvalidState, "no snapshot store")
	}
	return r.store, nil
}

// Save stores the object of the handle under its source id. A saved object
// replaces the earlier snapshot of the same source id.
func (r *Runtime) Save(k psm.Kind, h Handle) (err error) {
	defer err2.Handle(&err, "save %s %d", k, h)

	store := try.To1(r.snapshots())
	var (
		sourceID string
		snap     snapshot
	)
	switch k {
	case psm.KindConnection:
		try.To(r.conns.Do(h, func(c *connection.Connection) (err error) {
			sourceID = c.SourceID
			snap.Data, err = c.Serialize()
			return err
		}))
	case psm.KindSchema:
		try.To(r.schemas.Do(h, func(s *ssi.Schema) (err error) {
			sourceID = s.SourceID
			snap.Data, err = s.Serialize()
			return err
		}))
	case psm.KindCredDef:
		try.To(r.credDefs.Do(h, func(cd *ssi.CredDef) (err error) {
			sourceID = cd.SourceID
			snap.Data, err = cd.Serialize()
			return err
		}))
	case psm.KindIssuerCredential:
		sourceID, snap = try.To2(snapBound(r, r.issuerCreds, h,
			func(c *issuer.Credential) string { return c.SourceID }))
	case psm.KindCredential:
		sourceID, snap = try.To2(snapBound(r, r.creds, h,
			func(c *holder.Credential) string { return c.SourceID }))
	case psm.KindDisclosedProof:
		sourceID, snap = try.To2(snapBound(r, r.disclosed, h,
			func(p *prover.DisclosedProof) string { return p.SourceID }))
	case psm.KindProof:
		sourceID, snap = try.To2(snapBound(r, r.proofs, h,
			func(p *verifier.Proof) string { return p.SourceID }))
	default:
		return vcxerr.New(vcxerr.InvalidOption, "snapshot kind %d", k)
	}
	try.To(store.Put(k, sourceID, try.To1(json.Marshal(snap))))
	return nil
}

func snapBound[T stateful](
	r *Runtime,
	t *handle.Table[*bound[T]],
	h Handle,
	sourceID func(T) string,
) (id string, snap snapshot, err error) {
	err = t.Do(h, func(b *bound[T]) (err error) {
		id = sourceID(b.obj)
		if snap.Data, err = b.obj.Serialize(); err != nil {
			return err
		}
		if c, err := r.conns.Get(b.conn); err == nil {
			snap.Conn = c.SourceID
		}
		return nil
	})
	return id, snap, err
}

// Load restores a saved object to a new handle. A protocol object is bound
// to the live connection which has the source id of the saved binding.
func (r *Runtime) Load(k psm.Kind, sourceID string) (h Handle, err error) {
	defer err2.Handle(&err, "load %s %s", k, sourceID)

	store := try.To1(r.snapshots())
	var snap snapshot
	try.To(json.Unmarshal(try.To1(store.Get(k, sourceID)), &snap))

	switch k {
	case psm.KindConnection:
		return r.ConnectionDeserialize(snap.Data)
	case psm.KindSchema:
		return r.SchemaDeserialize(snap.Data)
	case psm.KindCredDef:
		return r.CredentialDefDeserialize(snap.Data)
	case psm.KindIssuerCredential:
		h = try.To1(r.IssuerDeserialize(snap.Data))
	case psm.KindCredential:
		h = try.To1(r.CredentialDeserialize(snap.Data))
	case psm.KindDisclosedProof:
		h = try.To1(r.DisclosedProofDeserialize(snap.Data))
	case psm.KindProof:
		h = try.To1(r.ProofDeserialize(snap.Data))
	default:
		return 0, vcxerr.New(vcxerr.InvalidOption, "snapshot kind %d", k)
	}
	if snap.Conn == "" {
		return h, nil
	}
	if conn, ok := r.findConn(snap.Conn); ok {
		try.To(r.Bind(h, conn))
	} else {
		glog.Warningf("%s %s: connection %s not loaded", k, sourceID, snap.Conn)
	}
	return h, nil
}

// Forget removes the snapshot of the source id.
func (r *Runtime) Forget(k psm.Kind, sourceID string) (err error) {
	defer err2.Handle(&err)

	return try.To1(r.snapshots()).Remove(k, sourceID)
}

// SavedIDs lists the source ids of the kind's snapshots.
func (r *Runtime) SavedIDs(k psm.Kind) (ids []string, err error) {
	defer err2.Handle(&err)

	for _, s := range try.To1(try.To1(r.snapshots()).List(k)) {
		ids = append(ids, s.SourceID)
	}
	return ids, nil
}

func (r *Runtime) findConn(sourceID string) (Handle, bool) {
	for _, h := range r.conns.Handles() {
		c, err := r.conns.Get(h)
		if err == nil && c.SourceID == sourceID {
			return h, true
		}
	}
	return 0, false
}
