// Package bolt is the file backed wallet. Every record type is a bbolt
// bucket. When the wallet is opened with a key, record values are encrypted
// and record ids are hashed before they touch the file.
package bolt

import (
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"sync"

	"github.com/findy-network/findy-common-go/crypto"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	bolt "go.etcd.io/bbolt"
)

var (
	metaBucket = []byte("_meta")
	seqKey     = []byte("seq")
)

// Cfg is the configuration of the file wallet.
type Cfg struct {
	Filename string
	// Key is a hex encoded 32 byte key. Empty key means no encryption.
	Key string
}

// Wallet is a bbolt wallet.
type Wallet struct {
	l      sync.RWMutex
	db     *bolt.DB
	cipher *crypto.Cipher
}

// Open opens or creates the wallet file.
func Open(cfg Cfg) (w *Wallet, err error) {
	defer err2.Handle(&err, "open wallet %s", cfg.Filename)

	w = new(Wallet)
	if cfg.Key != "" {
		k := try.To1(hex.DecodeString(cfg.Key))
		if len(k) != 32 {
			return nil, vcxerr.New(vcxerr.InvalidOption, "wallet key must be 32 bytes")
		}
		w.cipher = crypto.NewCipher(k)
	}
	w.db = try.To1(bolt.Open(cfg.Filename, 0600, nil))

	try.To(w.db.Update(func(tx *bolt.Tx) (err error) {
		defer err2.Handle(&err, "create meta bucket")

		try.To1(tx.CreateBucketIfNotExists(metaBucket))
		return nil
	}))
	glog.V(2).Infoln("bolt wallet open:", cfg.Filename)
	return w, nil
}

func (w *Wallet) hash(id string) []byte {
	if w.cipher != nil {
		h := md5.Sum([]byte(id))
		return h[:]
	}
	return []byte(id)
}

func (w *Wallet) encrypt(value []byte) []byte {
	if w.cipher != nil {
		return w.cipher.TryEncrypt(value)
	}
	return append(value[:0:0], value...)
}

func (w *Wallet) decrypt(value []byte) []byte {
	if w.cipher != nil {
		return w.cipher.TryDecrypt(value)
	}
	return append(value[:0:0], value...)
}

func (w *Wallet) bucketName(typ string) []byte {
	return w.hash("type:" + typ)
}

func (w *Wallet) encode(rec wallet.Record) []byte {
	return w.encrypt(try.To1(json.Marshal(rec)))
}

func (w *Wallet) decode(data []byte) (rec wallet.Record) {
	try.To(json.Unmarshal(w.decrypt(data), &rec))
	return rec
}

func (w *Wallet) assertOpen() error {
	if w.db == nil {
		return vcxerr.New(vcxerr.InvalidState, "wallet is closed")
	}
	return nil
}

func (w *Wallet) Put(rec wallet.Record) (err error) {
	defer err2.Handle(&err)

	try.To(wallet.CheckRecord(rec))
	w.l.RLock()
	defer w.l.RUnlock()
	try.To(w.assertOpen())

	return w.db.Update(func(tx *bolt.Tx) (err error) {
		defer err2.Handle(&err)

		b := try.To1(tx.CreateBucketIfNotExists(w.bucketName(rec.Type)))
		key := w.hash(rec.ID)
		if b.Get(key) != nil {
			return wallet.ErrExists(rec.Type, rec.ID)
		}
		rec.Seq = nextSeq(tx)
		try.To(b.Put(key, w.encode(rec)))
		return nil
	})
}

func nextSeq(tx *bolt.Tx) uint64 {
	meta := tx.Bucket(metaBucket)
	var seq uint64
	if d := meta.Get(seqKey); d != nil {
		seq = binary.BigEndian.Uint64(d)
	}
	seq++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	try.To(meta.Put(seqKey, buf[:]))
	return seq
}

func (w *Wallet) Get(typ, id string) (rec *wallet.Record, err error) {
	defer err2.Handle(&err)

	w.l.RLock()
	defer w.l.RUnlock()
	try.To(w.assertOpen())

	try.To(w.db.View(func(tx *bolt.Tx) (err error) {
		defer err2.Handle(&err)

		b := tx.Bucket(w.bucketName(typ))
		if b == nil {
			return wallet.ErrNotFound(typ, id)
		}
		d := b.Get(w.hash(id))
		if d == nil {
			return wallet.ErrNotFound(typ, id)
		}
		r := w.decode(d)
		rec = &r
		return nil
	}))
	return rec, nil
}

func (w *Wallet) modify(typ, id string, fn func(r *wallet.Record)) (err error) {
	defer err2.Handle(&err)

	w.l.RLock()
	defer w.l.RUnlock()
	try.To(w.assertOpen())

	return w.db.Update(func(tx *bolt.Tx) (err error) {
		defer err2.Handle(&err)

		b := tx.Bucket(w.bucketName(typ))
		if b == nil {
			return wallet.ErrNotFound(typ, id)
		}
		key := w.hash(id)
		d := b.Get(key)
		if d == nil {
			return wallet.ErrNotFound(typ, id)
		}
		rec := w.decode(d)
		fn(&rec)
		try.To(b.Put(key, w.encode(rec)))
		return nil
	})
}

func (w *Wallet) Update(typ, id string, value []byte) error {
	return w.modify(typ, id, func(r *wallet.Record) {
		r.Value = value
	})
}

func (w *Wallet) UpdateTags(typ, id string, tags map[string]string) error {
	return w.modify(typ, id, func(r *wallet.Record) {
		r.Tags = tags
	})
}

func (w *Wallet) Delete(typ, id string) (err error) {
	defer err2.Handle(&err)

	w.l.RLock()
	defer w.l.RUnlock()
	try.To(w.assertOpen())

	return w.db.Update(func(tx *bolt.Tx) (err error) {
		defer err2.Handle(&err)

		b := tx.Bucket(w.bucketName(typ))
		key := w.hash(id)
		if b == nil || b.Get(key) == nil {
			return wallet.ErrNotFound(typ, id)
		}
		try.To(b.Delete(key))
		return nil
	})
}

func (w *Wallet) Search(typ string, q wallet.Query) (recs []wallet.Record, err error) {
	defer err2.Handle(&err)

	w.l.RLock()
	defer w.l.RUnlock()
	try.To(w.assertOpen())

	recs = make([]wallet.Record, 0)
	try.To(w.db.View(func(tx *bolt.Tx) (err error) {
		defer err2.Handle(&err)

		b := tx.Bucket(w.bucketName(typ))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			rec := w.decode(v)
			if q == nil || q.Match(rec.Tags) {
				recs = append(recs, rec)
			}
		}
		return nil
	}))
	wallet.SortNewestFirst(recs)
	return recs, nil
}

// Close closes the wallet file. It's safe to call Close more than once.
func (w *Wallet) Close() (err error) {
	defer err2.Handle(&err, "close wallet")

	w.l.Lock()
	defer w.l.Unlock()
	if w.db == nil {
		return nil
	}
	try.To(w.db.Close())
	w.db = nil
	return nil
}
