package protocol

import (
	"context"
	"sync"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"golang.org/x/sync/errgroup"
)

const masterSecretID = "main"

// MasterSecret returns the holder's master secret of the wallet and creates
// it at first use.
func (e *Env) MasterSecret() (ms anoncreds.MasterSecret, err error) {
	defer err2.Handle(&err, "master secret")

	rec, err := e.Keys.W.Get(wallet.TypeMasterSecret, masterSecretID)
	if err == nil {
		return rec.Value, nil
	}
	ms = try.To1(e.Crypto.CreateMasterSecret())
	err = e.Keys.W.Put(wallet.Record{
		Type:  wallet.TypeMasterSecret,
		ID:    masterSecretID,
		Value: ms,
	})
	if err != nil {
		// lost the race to another object, use the stored one
		rec = try.To1(e.Keys.W.Get(wallet.TypeMasterSecret, masterSecretID))
		return rec.Value, nil
	}
	glog.V(1).Infoln("master secret created")
	return ms, nil
}

// LedgerObjects are the schemas and cred defs a proof refers to, and the
// revoked ids of the cred defs.
type LedgerObjects struct {
	Schemas  map[string]*pool.Schema
	CredDefs map[string]*pool.CredDef
	Revoked  map[string][]string
}

// FetchLedgerObjects reads the schemas and cred defs concurrently. With
// revocations set it reads the revocation lists of the cred defs as well.
func FetchLedgerObjects(
	ctx context.Context,
	l pool.Ledger,
	ids []anoncreds.Identifier,
	revocations bool,
) (lo *LedgerObjects, err error) {
	defer err2.Handle(&err, "fetch ledger objects")

	lo = &LedgerObjects{
		Schemas:  make(map[string]*pool.Schema),
		CredDefs: make(map[string]*pool.CredDef),
		Revoked:  make(map[string][]string),
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range uniqueIDs(ids) {
		id := id
		if id.SchemaID != "" {
			g.Go(func() error {
				s, err := l.GetSchema(gctx, id.SchemaID)
				if err != nil {
					return err
				}
				mu.Lock()
				lo.Schemas[id.SchemaID] = s
				mu.Unlock()
				return nil
			})
		}
		if id.CredDefID == "" {
			continue
		}
		g.Go(func() error {
			cd, err := l.GetCredDef(gctx, id.CredDefID)
			if err != nil {
				return err
			}
			mu.Lock()
			lo.CredDefs[id.CredDefID] = cd
			mu.Unlock()
			return nil
		})
		if revocations {
			g.Go(func() error {
				revoked, err := l.GetRevocations(gctx, id.CredDefID)
				if err != nil {
					return err
				}
				mu.Lock()
				lo.Revoked[id.CredDefID] = revoked
				mu.Unlock()
				return nil
			})
		}
	}
	try.To(g.Wait())
	return lo, nil
}

// uniqueIDs splits the identifiers so that every schema and cred def is
// read once.
func uniqueIDs(ids []anoncreds.Identifier) []anoncreds.Identifier {
	schemas := make(map[string]bool)
	credDefs := make(map[string]bool)
	out := make([]anoncreds.Identifier, 0, len(ids))
	for _, id := range ids {
		var u anoncreds.Identifier
		if !schemas[id.SchemaID] {
			schemas[id.SchemaID] = true
			u.SchemaID = id.SchemaID
		}
		if !credDefs[id.CredDefID] {
			credDefs[id.CredDefID] = true
			u.CredDefID = id.CredDefID
		}
		if u != (anoncreds.Identifier{}) {
			out = append(out, u)
		}
	}
	return out
}
