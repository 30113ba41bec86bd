// Package psm persists the serialized protocol objects so that they can be
// loaded after a restart and driven forward with updateState. Snapshots are
// kept per object kind in their own bucket of a managed bolt DB, and they are
// encrypted when the store has a key.
package psm

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/findy-network/findy-common-go/crypto"
	"github.com/findy-network/findy-common-go/crypto/db"
	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Kind of the protocol object. Every kind has its own bucket.
type Kind byte

const (
	KindConnection Kind = 0 + iota
	KindSchema
	KindCredDef
	KindIssuerCredential
	KindCredential
	KindDisclosedProof
	KindProof

	kindCount
)

var kindNames = [...]string{"connection", "schema", "cred_def", "issuer_credential",
	"credential", "disclosed_proof", "proof"}

func (k Kind) String() string {
	if k >= kindCount {
		return fmt.Sprintf("kind(%d)", k)
	}
	return kindNames[k]
}

// ParseKind returns the kind of the name String gives.
func ParseKind(name string) (Kind, error) {
	for i, n := range kindNames {
		if n == name {
			return Kind(i), nil
		}
	}
	return 0, vcxerr.New(vcxerr.InvalidOption, "snapshot kind %q", name)
}

// Cfg of the store. Key is a hex encoded 32 byte key, empty key stores plain
// data.
type Cfg struct {
	Filename string
	Key      string
}

// Snapshot is one stored object.
type Snapshot struct {
	SourceID string
	Data     []byte
	Saved    int64
}

type Store struct {
	l      sync.RWMutex
	db     db.Handle
	cipher *crypto.Cipher
}

func buckets() [][]byte {
	bs := make([][]byte, kindCount)
	for i := range bs {
		bs[i] = []byte{byte(i)}
	}
	return bs
}

// Open initializes the store. The file handle is opened lazily by the
// managed DB. A file name with the db.MEM_PREFIX keeps the store in memory.
func Open(cfg Cfg) (s *Store, err error) {
	defer err2.Handle(&err, "open snapshot store")

	s = &Store{
		db: db.New(db.Cfg{
			Filename:   cfg.Filename,
			Buckets:    buckets(),
			BackupName: cfg.Filename + "_backup",
		}),
	}
	if cfg.Key != "" {
		k, err := hex.DecodeString(cfg.Key)
		if err != nil || len(k) != 32 {
			return nil, vcxerr.New(vcxerr.InvalidOption, "store key must be 32 hex bytes")
		}
		s.cipher = crypto.NewCipher(k)
	}
	return s, nil
}

// open returns InvalidState after Close.
func (s *Store) open() error {
	if s.db == nil {
		return vcxerr.New(vcxerr.InvalidState, "snapshot store is closed")
	}
	return nil
}

func bucket(k Kind) ([]byte, error) {
	if k >= kindCount {
		return nil, vcxerr.New(vcxerr.InvalidOption, "snapshot kind %d", k)
	}
	return []byte{byte(k)}, nil
}

// Put stores or replaces the snapshot of the object.
func (s *Store) Put(k Kind, sourceID string, data []byte) (err error) {
	defer err2.Handle(&err, "put %s %s", k, sourceID)

	s.l.RLock()
	defer s.l.RUnlock()

	try.To(s.open())
	b := try.To1(bucket(k))
	snap := dto.ToGOB(Snapshot{SourceID: sourceID, Data: data, Saved: time.Now().Unix()})
	try.To(s.db.AddKeyValueToBucket(b,
		&db.Data{
			Data: snap,
			Read: s.encrypt,
		},
		&db.Data{
			Data: []byte(sourceID),
			Read: s.hash,
		},
	))
	glog.V(3).Infof("snapshot %s %s saved", k, sourceID)
	return nil
}

// Get returns the data of the snapshot or NotFound.
func (s *Store) Get(k Kind, sourceID string) (data []byte, err error) {
	defer err2.Handle(&err, "get %s %s", k, sourceID)

	s.l.RLock()
	defer s.l.RUnlock()

	try.To(s.open())
	b := try.To1(bucket(k))
	var snap Snapshot
	found := try.To1(s.db.GetKeyValueFromBucket(b,
		&db.Data{
			Data: []byte(sourceID),
			Read: s.hash,
		},
		&db.Data{
			Write: s.decrypt,
			Use: func(d []byte) interface{} {
				dto.FromGOB(d, &snap)
				return nil
			},
		}))
	if !found {
		return nil, vcxerr.New(vcxerr.NotFound, "snapshot %s %s", k, sourceID)
	}
	return snap.Data, nil
}

func (s *Store) Remove(k Kind, sourceID string) (err error) {
	defer err2.Handle(&err, "remove %s %s", k, sourceID)

	s.l.RLock()
	defer s.l.RUnlock()

	try.To(s.open())
	b := try.To1(bucket(k))
	return s.db.RmKeyValueFromBucket(b, &db.Data{
		Data: []byte(sourceID),
		Read: s.hash,
	})
}

// List returns all snapshots of the kind ordered by source id.
func (s *Store) List(k Kind) (snaps []Snapshot, err error) {
	defer err2.Handle(&err, "list %s", k)

	s.l.RLock()
	defer s.l.RUnlock()

	try.To(s.open())
	b := try.To1(bucket(k))
	try.To1(s.db.GetAllValuesFromBucket(b, s.decrypt, func(d []byte) []byte {
		var snap Snapshot
		dto.FromGOB(d, &snap)
		snaps = append(snaps, snap)
		return d
	}))
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].SourceID < snaps[j].SourceID
	})
	return snaps, nil
}

func (s *Store) Close() (err error) {
	defer err2.Handle(&err, "close snapshot store")

	s.l.Lock()
	defer s.l.Unlock()

	if s.db == nil {
		return nil
	}
	try.To(s.db.Close())
	s.db = nil
	return nil
}

// hash makes the cryptographic hash of the source id so that the ids are
// not stored as plain text when the store is encrypted.
func (s *Store) hash(key []byte) (k []byte) {
	if s.cipher != nil {
		h := md5.Sum(key)
		return h[:]
	}
	return append(key[:0:0], key...)
}

func (s *Store) encrypt(value []byte) (k []byte) {
	if s.cipher != nil {
		return s.cipher.TryEncrypt(value)
	}
	return append(value[:0:0], value...)
}

func (s *Store) decrypt(value []byte) (k []byte) {
	if s.cipher != nil {
		return s.cipher.TryDecrypt(value)
	}
	return append(value[:0:0], value...)
}
