package wallet

import (
	"sync"

	"github.com/golang/glog"
)

type memWallet struct {
	l    sync.RWMutex
	seq  uint64
	recs map[string]map[string]Record
}

// NewMem returns a wallet which lives only in memory.
func NewMem() Wallet {
	return &memWallet{recs: make(map[string]map[string]Record)}
}

func (w *memWallet) Put(rec Record) error {
	if err := CheckRecord(rec); err != nil {
		return err
	}
	w.l.Lock()
	defer w.l.Unlock()

	byID, ok := w.recs[rec.Type]
	if !ok {
		byID = make(map[string]Record)
		w.recs[rec.Type] = byID
	}
	if _, exists := byID[rec.ID]; exists {
		return ErrExists(rec.Type, rec.ID)
	}
	w.seq++
	rec = rec.Clone()
	rec.Seq = w.seq
	byID[rec.ID] = rec
	glog.V(5).Infof("mem wallet put %s/%s", rec.Type, rec.ID)
	return nil
}

func (w *memWallet) Get(typ, id string) (*Record, error) {
	w.l.RLock()
	defer w.l.RUnlock()

	rec, ok := w.recs[typ][id]
	if !ok {
		return nil, ErrNotFound(typ, id)
	}
	c := rec.Clone()
	return &c, nil
}

func (w *memWallet) modify(typ, id string, fn func(r *Record)) error {
	w.l.Lock()
	defer w.l.Unlock()

	rec, ok := w.recs[typ][id]
	if !ok {
		return ErrNotFound(typ, id)
	}
	fn(&rec)
	w.recs[typ][id] = rec
	return nil
}

func (w *memWallet) Update(typ, id string, value []byte) error {
	return w.modify(typ, id, func(r *Record) {
		r.Value = append(value[:0:0], value...)
	})
}

func (w *memWallet) UpdateTags(typ, id string, tags map[string]string) error {
	return w.modify(typ, id, func(r *Record) {
		r.Tags = copyTags(tags)
	})
}

func (w *memWallet) Delete(typ, id string) error {
	w.l.Lock()
	defer w.l.Unlock()

	if _, ok := w.recs[typ][id]; !ok {
		return ErrNotFound(typ, id)
	}
	delete(w.recs[typ], id)
	return nil
}

func (w *memWallet) Search(typ string, q Query) ([]Record, error) {
	w.l.RLock()
	defer w.l.RUnlock()

	recs := make([]Record, 0, len(w.recs[typ]))
	for _, r := range w.recs[typ] {
		if q == nil || q.Match(r.Tags) {
			recs = append(recs, r.Clone())
		}
	}
	SortNewestFirst(recs)
	return recs, nil
}

func (w *memWallet) Close() error {
	return nil
}
