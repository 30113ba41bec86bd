// Package afgo is a wallet on top of the aries storage SPI. Any aries storage
// provider can serve it, the in-memory provider is the default. Every record
// type is its own store. The SPI forbids ':' in tag names and values, so tags
// are stored base58 encoded and the record's own tags live in the JSON value.
package afgo

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/golang/glog"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
)

const (
	metaStore = "_meta"
	seqKey    = "seq"

	// allTag is put to every record to let a plain tag name query list
	// the whole store.
	allTag = "_all"
)

// Wallet implements wallet.Wallet with an aries storage.Provider.
type Wallet struct {
	l        sync.Mutex
	provider storage.Provider
	meta     storage.Store
	seq      uint64
}

// NewMem returns a wallet over the aries in-memory provider.
func NewMem() *Wallet {
	w, err := New(mem.NewProvider())
	if err != nil {
		panic(err) // mem provider never fails to open
	}
	return w
}

// New returns a wallet which uses p for storage.
func New(p storage.Provider) (w *Wallet, err error) {
	defer err2.Handle(&err, "afgo wallet")

	w = &Wallet{provider: p}
	w.meta = try.To1(p.OpenStore(metaStore))
	d, err := w.meta.Get(seqKey)
	switch {
	case errors.Is(err, storage.ErrDataNotFound):
	case err != nil:
		return nil, err
	default:
		w.seq = binary.BigEndian.Uint64(d)
	}
	return w, nil
}

func encTag(name, value string) storage.Tag {
	return storage.Tag{
		Name:  base58.Encode([]byte(name)),
		Value: base58.Encode([]byte(value)),
	}
}

func spiTags(tags map[string]string) []storage.Tag {
	st := make([]storage.Tag, 0, len(tags)+1)
	st = append(st, storage.Tag{Name: allTag})
	for k, v := range tags {
		st = append(st, encTag(k, v))
	}
	return st
}

func (w *Wallet) store(typ string) storage.Store {
	return try.To1(w.provider.OpenStore(typ))
}

func (w *Wallet) nextSeq() uint64 {
	w.seq++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], w.seq)
	try.To(w.meta.Put(seqKey, buf[:]))
	return w.seq
}

func (w *Wallet) get(s storage.Store, typ, id string) (rec wallet.Record, err error) {
	d, err := s.Get(id)
	if errors.Is(err, storage.ErrDataNotFound) {
		return rec, wallet.ErrNotFound(typ, id)
	} else if err != nil {
		return rec, err
	}
	try.To(json.Unmarshal(d, &rec))
	return rec, nil
}

func (w *Wallet) put(s storage.Store, rec wallet.Record) {
	try.To(s.Put(rec.ID, try.To1(json.Marshal(rec)), spiTags(rec.Tags)...))
}

func (w *Wallet) Put(rec wallet.Record) (err error) {
	defer err2.Handle(&err)

	try.To(wallet.CheckRecord(rec))
	w.l.Lock()
	defer w.l.Unlock()

	s := w.store(rec.Type)
	if _, err := w.get(s, rec.Type, rec.ID); err == nil {
		return wallet.ErrExists(rec.Type, rec.ID)
	} else if !errors.Is(err, vcxerr.NotFound) {
		return err
	}
	rec.Seq = w.nextSeq()
	w.put(s, rec)
	glog.V(5).Infof("afgo wallet put %s/%s", rec.Type, rec.ID)
	return nil
}

func (w *Wallet) Get(typ, id string) (r *wallet.Record, err error) {
	defer err2.Handle(&err)

	w.l.Lock()
	defer w.l.Unlock()

	rec := try.To1(w.get(w.store(typ), typ, id))
	return &rec, nil
}

func (w *Wallet) modify(typ, id string, fn func(r *wallet.Record)) (err error) {
	defer err2.Handle(&err)

	w.l.Lock()
	defer w.l.Unlock()

	s := w.store(typ)
	rec := try.To1(w.get(s, typ, id))
	fn(&rec)
	w.put(s, rec)
	return nil
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

	w.l.Lock()
	defer w.l.Unlock()

	s := w.store(typ)
	try.To1(w.get(s, typ, id))
	try.To(s.Delete(id))
	return nil
}

// Search pushes one equality term of q down to the SPI query and filters the
// rest here.
func (w *Wallet) Search(typ string, q wallet.Query) (recs []wallet.Record, err error) {
	defer err2.Handle(&err, "afgo search %s", typ)

	w.l.Lock()
	defer w.l.Unlock()

	expr := allTag
	if name, value, ok := wallet.EqTerm(q); ok {
		t := encTag(name, value)
		expr = t.Name + ":" + t.Value
	}
	it := try.To1(w.store(typ).Query(expr))
	defer it.Close()

	recs = make([]wallet.Record, 0)
	for try.To1(it.Next()) {
		var rec wallet.Record
		try.To(json.Unmarshal(try.To1(it.Value()), &rec))
		if q == nil || q.Match(rec.Tags) {
			recs = append(recs, rec)
		}
	}
	wallet.SortNewestFirst(recs)
	return recs, nil
}

func (w *Wallet) Close() error {
	return w.provider.Close()
}
