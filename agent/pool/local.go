package pool

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	bolt "go.etcd.io/bbolt"
)

var txnBucket = []byte("txns")

// Cfg configures a local ledger.
type Cfg struct {
	// Filename of the bbolt transaction log. Empty keeps the ledger in
	// memory only.
	Filename string

	// ConfirmDelay is how long a written transaction stays invisible to
	// reads.
	ConfirmDelay time.Duration

	// Genesis NYMs, typically one trustee.
	Genesis []Nym

	Now func() time.Time
}

// Txn is a confirmed transaction in the log.
type Txn struct {
	SeqNo   uint64   `json:"seqNo"`
	TxnTime int64    `json:"txnTime"`
	Request *Request `json:"txn"`
}

type versioned[T any] struct {
	value     T
	visibleAt int64
}

// Local is an append-only ledger in a single process. Writes are checked
// the way an indy ledger checks them: signature by the submitter's current
// verkey and role based permissions.
type Local struct {
	cfg Cfg

	l         sync.RWMutex
	db        *bolt.DB
	seqNo     uint64
	nyms      map[string][]versioned[Nym]
	schemas   map[string]versioned[Schema]
	credDefs  map[string]versioned[CredDef]
	revokeIDs map[string][]versioned[string]
}

// NewLocal opens a local ledger. With Cfg.Filename set the transaction log
// is replayed from the file.
func NewLocal(cfg Cfg) (l *Local, err error) {
	defer err2.Handle(&err, "local ledger")

	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	l = &Local{
		cfg:       cfg,
		nyms:      make(map[string][]versioned[Nym]),
		schemas:   make(map[string]versioned[Schema]),
		credDefs:  make(map[string]versioned[CredDef]),
		revokeIDs: make(map[string][]versioned[string]),
	}
	for _, n := range cfg.Genesis {
		try.To(CheckDID(n.DID))
		try.To(CheckVerkey(n.Verkey))
		l.nyms[n.DID] = []versioned[Nym]{{value: n}}
	}
	if cfg.Filename != "" {
		try.To(l.openLog())
	}
	glog.V(2).Infof("local ledger ready, %d txns, %d genesis nyms",
		l.seqNo, len(cfg.Genesis))
	return l, nil
}

func (l *Local) openLog() (err error) {
	defer err2.Handle(&err, "txn log %s", l.cfg.Filename)

	l.db = try.To1(bolt.Open(l.cfg.Filename, 0600, nil))
	try.To(l.db.Update(func(tx *bolt.Tx) (err error) {
		defer err2.Handle(&err)

		b := try.To1(tx.CreateBucketIfNotExists(txnBucket))
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			var txn Txn
			try.To(json.Unmarshal(v, &txn))
			apply := try.To1(l.check(txn.Request, txn.TxnTime))
			l.seqNo = txn.SeqNo
			apply(txn.SeqNo, txn.TxnTime+int64(l.cfg.ConfirmDelay))
		}
		return nil
	}))
	return nil
}

func (l *Local) now() int64 {
	return l.cfg.Now().UnixNano()
}

func (l *Local) nymAt(did string, at int64) (Nym, bool) {
	vs := l.nyms[did]
	for i := len(vs) - 1; i >= 0; i-- {
		if vs[i].visibleAt <= at {
			return vs[i].value, true
		}
	}
	return Nym{}, false
}

// ResolveDID returns the confirmed state of the DID.
func (l *Local) ResolveDID(_ context.Context, did string) (*Nym, error) {
	l.l.RLock()
	defer l.l.RUnlock()

	n, ok := l.nymAt(did, l.now())
	if !ok {
		return nil, vcxerr.New(vcxerr.NotFound, "nym %s", did)
	}
	return &n, nil
}

func (l *Local) GetSchema(_ context.Context, id string) (*Schema, error) {
	l.l.RLock()
	defer l.l.RUnlock()

	s, ok := l.schemas[id]
	if !ok || s.visibleAt > l.now() {
		return nil, vcxerr.New(vcxerr.NotFound, "schema %s", id)
	}
	sch := s.value
	sch.AttrNames = append([]string(nil), sch.AttrNames...)
	return &sch, nil
}

func (l *Local) GetCredDef(_ context.Context, id string) (*CredDef, error) {
	l.l.RLock()
	defer l.l.RUnlock()

	cd, ok := l.credDefs[id]
	if !ok || cd.visibleAt > l.now() {
		return nil, vcxerr.New(vcxerr.NotFound, "cred def %s", id)
	}
	c := cd.value
	return &c, nil
}

// GetRevocations returns the confirmed revoked credential ids of the
// credential definition, sorted.
func (l *Local) GetRevocations(_ context.Context, credDefID string) ([]string, error) {
	l.l.RLock()
	defer l.l.RUnlock()

	now := l.now()
	if cd, ok := l.credDefs[credDefID]; !ok || cd.visibleAt > now {
		return nil, vcxerr.New(vcxerr.NotFound, "cred def %s", credDefID)
	}
	ids := make([]string, 0, len(l.revokeIDs[credDefID]))
	for _, r := range l.revokeIDs[credDefID] {
		if r.visibleAt <= now {
			ids = append(ids, r.value)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Submit checks, logs and applies a write request.
func (l *Local) Submit(_ context.Context, req *Request) (r *Reply, err error) {
	defer err2.Handle(&err, "submit %s", opName(req))

	l.l.Lock()
	defer l.l.Unlock()

	now := l.now()
	apply := try.To1(l.check(req, now))
	seqNo := l.seqNo + 1
	if l.db != nil {
		try.To(l.appendLog(Txn{SeqNo: seqNo, TxnTime: now, Request: req}))
	}
	l.seqNo = seqNo
	id := apply(seqNo, now+int64(l.cfg.ConfirmDelay))
	glog.V(3).Infof("txn %d %s by %s", seqNo, opName(req), req.Identifier)
	return &Reply{SeqNo: seqNo, TxnTime: now, ID: id}, nil
}

func opName(req *Request) string {
	if req == nil {
		return "<nil>"
	}
	switch req.Operation.Type {
	case TxnNym:
		return "NYM"
	case TxnSchema:
		return "SCHEMA"
	case TxnCredDef:
		return "CRED_DEF"
	case TxnRevocation:
		return "REVOC"
	}
	return "unknown"
}

func (l *Local) appendLog(txn Txn) error {
	data, err := json.Marshal(txn)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bolt.Tx) error {
		var key [8]byte
		binary.BigEndian.PutUint64(key[:], txn.SeqNo)
		return tx.Bucket(txnBucket).Put(key[:], data)
	})
}

type applyFn func(seqNo uint64, visibleAt int64) (id string)

// check validates the request against the state at the given time and
// returns the function which applies it.
func (l *Local) check(req *Request, at int64) (apply applyFn, err error) {
	if req == nil {
		return nil, vcxerr.New(vcxerr.InvalidOption, "nil request")
	}
	submitter, ok := l.nymAt(req.Identifier, at)
	if !ok {
		return nil, vcxerr.New(vcxerr.Unauthorized, "unknown submitter %s", req.Identifier)
	}
	if err := req.VerifyWith(submitter.Verkey); err != nil {
		return nil, err
	}
	op := req.Operation
	switch op.Type {
	case TxnNym:
		return l.checkNym(submitter, op, at)
	case TxnSchema:
		return l.checkSchema(submitter, op)
	case TxnCredDef:
		return l.checkCredDef(submitter, op, at)
	case TxnRevocation:
		return l.checkRevocation(submitter, op, at)
	}
	return nil, vcxerr.New(vcxerr.InvalidOption, "txn type %q", op.Type)
}

func canCreate(submitter Role, newRole Role) bool {
	switch submitter {
	case RoleTrustee:
		return true
	case RoleSteward:
		return newRole == RoleNone || newRole == RoleEndorser
	case RoleEndorser:
		return newRole == RoleNone
	}
	return false
}

func (l *Local) checkNym(submitter Nym, op Operation, at int64) (applyFn, error) {
	if err := CheckDID(op.Dest); err != nil {
		return nil, err
	}
	current, exists := l.nymAt(op.Dest, at)
	if !exists {
		if _, pending := l.nyms[op.Dest]; pending {
			return nil, vcxerr.New(vcxerr.AlreadyExists, "nym %s not yet confirmed", op.Dest)
		}
		if err := CheckVerkey(op.Verkey); err != nil {
			return nil, err
		}
		role := RoleNone
		if op.Role != nil {
			role = *op.Role
		}
		if !canCreate(submitter.Role, role) {
			return nil, vcxerr.New(vcxerr.Unauthorized,
				"%s (%s) cannot create %s nym", submitter.DID, submitter.Role, role)
		}
		return func(_ uint64, visibleAt int64) string {
			l.nyms[op.Dest] = append(l.nyms[op.Dest], versioned[Nym]{
				value: Nym{
					DID:      op.Dest,
					Verkey:   op.Verkey,
					Role:     role,
					Endpoint: op.Endpoint,
				},
				visibleAt: visibleAt,
			})
			return op.Dest
		}, nil
	}

	owner := submitter.DID == op.Dest
	if !owner && submitter.Role != RoleTrustee {
		return nil, vcxerr.New(vcxerr.Unauthorized,
			"%s cannot update nym %s", submitter.DID, op.Dest)
	}
	if op.Role != nil && *op.Role != current.Role && submitter.Role != RoleTrustee {
		return nil, vcxerr.New(vcxerr.Unauthorized, "only trustee changes roles")
	}
	next := current
	if op.Verkey != "" {
		if err := CheckVerkey(op.Verkey); err != nil {
			return nil, err
		}
		next.Verkey = op.Verkey
	}
	if op.Role != nil {
		next.Role = *op.Role
	}
	if op.Endpoint != "" {
		next.Endpoint = op.Endpoint
	}
	return func(_ uint64, visibleAt int64) string {
		l.nyms[op.Dest] = append(l.nyms[op.Dest], versioned[Nym]{
			value:     next,
			visibleAt: visibleAt,
		})
		return op.Dest
	}, nil
}

func (l *Local) checkSchema(submitter Nym, op Operation) (applyFn, error) {
	if submitter.Role == RoleNone {
		return nil, vcxerr.New(vcxerr.Unauthorized, "%s cannot write schemas", submitter.DID)
	}
	s := op.Schema
	if s == nil || s.Name == "" || s.Version == "" || len(s.AttrNames) == 0 {
		return nil, vcxerr.New(vcxerr.InvalidOption, "schema needs name, version and attributes")
	}
	id := SchemaID(submitter.DID, s.Name, s.Version)
	if s.ID != "" && s.ID != id {
		return nil, vcxerr.New(vcxerr.InvalidOption, "schema id %s, want %s", s.ID, id)
	}
	if _, exists := l.schemas[id]; exists {
		return nil, vcxerr.New(vcxerr.AlreadyExists, "schema %s", id)
	}
	return func(seqNo uint64, visibleAt int64) string {
		sch := *s
		sch.ID = id
		sch.Ver = "1.0"
		sch.SeqNo = seqNo
		sch.AttrNames = append([]string(nil), s.AttrNames...)
		l.schemas[id] = versioned[Schema]{value: sch, visibleAt: visibleAt}
		return id
	}, nil
}

func (l *Local) schemaBySeqNo(seqNo string, at int64) (Schema, bool) {
	for _, s := range l.schemas {
		if fmt.Sprint(s.value.SeqNo) == seqNo && s.visibleAt <= at {
			return s.value, true
		}
	}
	return Schema{}, false
}

func (l *Local) checkCredDef(submitter Nym, op Operation, at int64) (applyFn, error) {
	if submitter.Role == RoleNone {
		return nil, vcxerr.New(vcxerr.Unauthorized, "%s cannot write cred defs", submitter.DID)
	}
	cd := op.CredDef
	if cd == nil || cd.Type == "" || cd.Tag == "" || len(cd.Value) == 0 {
		return nil, vcxerr.New(vcxerr.InvalidOption, "cred def needs type, tag and value")
	}
	s, ok := l.schemas[cd.SchemaID]
	if !ok || s.visibleAt > at {
		return nil, vcxerr.New(vcxerr.NotFound, "schema %s", cd.SchemaID)
	}
	id := CredDefID(submitter.DID, cd.Type, s.value.SeqNo, cd.Tag)
	if cd.ID != "" && cd.ID != id {
		return nil, vcxerr.New(vcxerr.InvalidOption, "cred def id %s, want %s", cd.ID, id)
	}
	if _, exists := l.credDefs[id]; exists {
		return nil, vcxerr.New(vcxerr.AlreadyExists, "cred def %s", id)
	}
	return func(_ uint64, visibleAt int64) string {
		c := *cd
		c.ID = id
		c.Ver = "1.0"
		l.credDefs[id] = versioned[CredDef]{value: c, visibleAt: visibleAt}
		return id
	}, nil
}

func (l *Local) checkRevocation(submitter Nym, op Operation, at int64) (applyFn, error) {
	cd, ok := l.credDefs[op.RevCredDefID]
	if !ok || cd.visibleAt > at {
		return nil, vcxerr.New(vcxerr.NotFound, "cred def %s", op.RevCredDefID)
	}
	if IssuerOf(op.RevCredDefID) != submitter.DID {
		return nil, vcxerr.New(vcxerr.Unauthorized, "only issuer revokes")
	}
	if op.RevID == "" || strings.Contains(op.RevID, ":") {
		return nil, vcxerr.New(vcxerr.InvalidOption, "revocation id %q", op.RevID)
	}
	for _, r := range l.revokeIDs[op.RevCredDefID] {
		if r.value == op.RevID {
			return nil, vcxerr.New(vcxerr.AlreadyExists, "revocation %s", op.RevID)
		}
	}
	return func(_ uint64, visibleAt int64) string {
		l.revokeIDs[op.RevCredDefID] = append(l.revokeIDs[op.RevCredDefID],
			versioned[string]{value: op.RevID, visibleAt: visibleAt})
		return op.RevID
	}, nil
}

// SchemaBySeqNo finds a confirmed schema by its ledger sequence number.
func (l *Local) SchemaBySeqNo(seqNo uint64) (*Schema, error) {
	l.l.RLock()
	defer l.l.RUnlock()

	s, ok := l.schemaBySeqNo(fmt.Sprint(seqNo), l.now())
	if !ok {
		return nil, vcxerr.New(vcxerr.NotFound, "schema seqNo %d", seqNo)
	}
	return &s, nil
}

// Close closes the transaction log.
func (l *Local) Close() (err error) {
	l.l.Lock()
	defer l.l.Unlock()
	if l.db == nil {
		return nil
	}
	err = l.db.Close()
	l.db = nil
	return err
}
