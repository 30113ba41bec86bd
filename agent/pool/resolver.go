package pool

import (
	"context"

	"github.com/bluele/gcache"
	"github.com/golang/glog"
)

// DefaultCacheSize is the number of schemas and cred defs a Resolver keeps.
const DefaultCacheSize = 256

// Resolver wraps a Ledger and caches schemas and cred defs which are
// immutable once confirmed. NYMs are never cached because a key rotation
// changes them. Writes and revocation reads go straight through.
type Resolver struct {
	Ledger

	schemas  gcache.Cache
	credDefs gcache.Cache
}

// NewResolver returns a caching resolver over l. size <= 0 uses
// DefaultCacheSize.
func NewResolver(l Ledger, size int) *Resolver {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Resolver{
		Ledger:   l,
		schemas:  gcache.New(size).LRU().Build(),
		credDefs: gcache.New(size).LRU().Build(),
	}
}

func (r *Resolver) GetSchema(ctx context.Context, id string) (*Schema, error) {
	if v, err := r.schemas.Get(id); err == nil {
		glog.V(5).Infoln("schema cache hit:", id)
		s := *v.(*Schema)
		s.AttrNames = append([]string(nil), s.AttrNames...)
		return &s, nil
	}
	s, err := r.Ledger.GetSchema(ctx, id)
	if err != nil {
		return nil, err
	}
	c := *s
	c.AttrNames = append([]string(nil), s.AttrNames...)
	_ = r.schemas.Set(id, &c)
	return s, nil
}

func (r *Resolver) GetCredDef(ctx context.Context, id string) (*CredDef, error) {
	if v, err := r.credDefs.Get(id); err == nil {
		glog.V(5).Infoln("cred def cache hit:", id)
		cd := *v.(*CredDef)
		return &cd, nil
	}
	cd, err := r.Ledger.GetCredDef(ctx, id)
	if err != nil {
		return nil, err
	}
	c := *cd
	_ = r.credDefs.Set(id, &c)
	return cd, nil
}

// Purge drops the cached objects.
func (r *Resolver) Purge() {
	r.schemas.Purge()
	r.credDefs.Purge()
}
