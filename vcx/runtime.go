/*
Package vcx is the handle based facade over the protocol objects. A Runtime
owns one handle table per object kind, and every operation takes and returns
handles the way libvcx does. Objects bound to a connection remember the
connection's handle, so UpdateState needs only the object's own handle.

A Runtime is safe for concurrent use. Calls on the same handle are
serialized, calls on different handles run in parallel.
*/
package vcx

import (
	"errors"
	"sync"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/bus"
	"github.com/findy-network/findy-vcx/agent/handle"
	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/psm"
	"github.com/findy-network/findy-vcx/agent/ssi"
	"github.com/findy-network/findy-vcx/agent/txp"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/findy-network/findy-vcx/agent/wallet/afgo"
	"github.com/findy-network/findy-vcx/agent/wallet/bolt"
	"github.com/findy-network/findy-vcx/protocol"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/protocol/issuecredential/holder"
	"github.com/findy-network/findy-vcx/protocol/issuecredential/issuer"
	"github.com/findy-network/findy-vcx/protocol/presentproof/prover"
	"github.com/findy-network/findy-vcx/protocol/presentproof/verifier"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Handle is an opaque object reference. Zero is never a valid handle.
type Handle = handle.Handle

// bound is a protocol object and the handle of the connection it talks
// over. A zero conn means the object isn't bound yet.
type bound[T any] struct {
	obj  T
	conn Handle
}

type Runtime struct {
	Env *protocol.Env

	// InstitutionDID is our public DID which writes schemas and cred defs.
	InstitutionDID string

	// closers are run by Shutdown in reverse order. Runtimes which share
	// another's collaborators have none.
	closers []func() error
	store   *psm.Store
	once    sync.Once
	station *bus.Station

	conns       *handle.Table[*connection.Connection]
	schemas     *handle.Table[*ssi.Schema]
	credDefs    *handle.Table[*ssi.CredDef]
	issuerCreds *handle.Table[*bound[*issuer.Credential]]
	creds       *handle.Table[*bound[*holder.Credential]]
	disclosed   *handle.Table[*bound[*prover.DisclosedProof]]
	proofs      *handle.Table[*bound[*verifier.Proof]]
}

// New builds a runtime and its collaborators from cfg.
func New(cfg Config) (r *Runtime, err error) {
	defer func() {
		if err != nil && r != nil {
			r.Shutdown()
			r = nil
		}
	}()
	defer err2.Handle(&err, "vcx runtime")

	try.To(cfg.Validate())
	r = NewWithEnv(&protocol.Env{Timeout: cfg.Timeout})

	w := try.To1(openWallet(cfg))
	r.closers = append(r.closers, w.Close)
	r.Env.Keys = ssi.NewKeys(w)

	var genesis []pool.Nym
	if cfg.TrusteeSeed != "" {
		did, verkey := try.To2(ssi.SeedDID(cfg.TrusteeSeed))
		genesis = append(genesis, pool.Nym{DID: did, Verkey: verkey, Role: pool.RoleTrustee})
		if _, err := r.Env.Keys.GetDID(did); errors.Is(err, vcxerr.NotFound) {
			try.To1(r.Env.Keys.CreateDID(cfg.TrusteeSeed))
		}
		r.InstitutionDID = did
	}
	l := try.To1(pool.NewLocal(pool.Cfg{
		Filename:     cfg.LedgerFile,
		ConfirmDelay: cfg.ConfirmDelay,
		Genesis:      genesis,
	}))
	r.closers = append(r.closers, l.Close)
	r.Env.Ledger = pool.NewResolver(l, cfg.CacheSize)

	if cfg.MailboxURL != "" {
		r.Env.Txp = txp.NewHTTPClient(cfg.MailboxURL)
		r.Env.Endpoint = cfg.MailboxURL
	} else {
		r.Env.Txp = txp.NewMem()
	}
	r.Env.Crypto = anoncreds.NewSD()

	if cfg.SnapshotFile != "" {
		r.store = try.To1(psm.Open(psm.Cfg{Filename: cfg.SnapshotFile, Key: cfg.SnapshotKey}))
		r.closers = append(r.closers, r.store.Close)
	}
	glog.V(1).Infof("runtime ready, wallet: %s, mailbox: %q", cfg.WalletBackend, cfg.MailboxURL)
	return r, nil
}

func openWallet(cfg Config) (wallet.Wallet, error) {
	switch cfg.WalletBackend {
	case WalletBolt:
		w, err := bolt.Open(bolt.Cfg{Filename: cfg.WalletFile, Key: cfg.WalletKey})
		if err != nil {
			return nil, err
		}
		return w, nil
	case WalletAfgo:
		return afgo.NewMem(), nil
	default:
		return wallet.NewMem(), nil
	}
}

// NewWithEnv builds a runtime over injected collaborators. Shutdown doesn't
// close them.
func NewWithEnv(env *protocol.Env) *Runtime {
	return &Runtime{
		Env:         env,
		station:     bus.New(),
		conns:       handle.New[*connection.Connection]("connection", vcxerr.InvalidHandle),
		schemas:     handle.New[*ssi.Schema]("schema", vcxerr.InvalidHandle),
		credDefs:    handle.New[*ssi.CredDef]("cred def", vcxerr.InvalidHandle),
		issuerCreds: handle.New[*bound[*issuer.Credential]]("issuer credential", vcxerr.InvalidHandle),
		creds:       handle.New[*bound[*holder.Credential]]("credential", vcxerr.InvalidHandle),
		disclosed:   handle.New[*bound[*prover.DisclosedProof]]("disclosed proof", vcxerr.InvalidHandle),
		proofs:      handle.New[*bound[*verifier.Proof]]("proof", vcxerr.InvalidHandle),
	}
}

// Peer returns a runtime with an empty in-memory wallet which shares the
// ledger and the mailbox of r. It's another agent of the same process.
func (r *Runtime) Peer() *Runtime {
	return NewWithEnv(&protocol.Env{
		Keys:     ssi.NewKeys(wallet.NewMem()),
		Ledger:   r.Env.Ledger,
		Crypto:   anoncreds.NewSD(),
		Txp:      r.Env.Txp,
		Endpoint: r.Env.Endpoint,
		Timeout:  r.Env.Timeout,
		Clock:    r.Env.Clock,
	})
}

// ReleaseAll frees every handle of every kind.
func (r *Runtime) ReleaseAll() {
	r.conns.ReleaseAll()
	r.schemas.ReleaseAll()
	r.credDefs.ReleaseAll()
	r.issuerCreds.ReleaseAll()
	r.creds.ReleaseAll()
	r.disclosed.ReleaseAll()
	r.proofs.ReleaseAll()
	glog.V(2).Infoln("all handles released")
}

// Shutdown releases all handles and closes the collaborators the runtime
// opened. Calling it again does nothing.
func (r *Runtime) Shutdown() {
	r.once.Do(func() {
		r.ReleaseAll()
		r.station.RmAll()
		for i := len(r.closers) - 1; i >= 0; i-- {
			if err := r.closers[i](); err != nil {
				glog.Error("shutdown:", err)
			}
		}
		r.closers = nil
	})
}

// conn returns the connection bound to an object. Objects which aren't
// bound give nil.
func (r *Runtime) conn(h Handle) (*connection.Connection, error) {
	if h == 0 {
		return nil, nil
	}
	c, err := r.conns.Get(h)
	if err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidConnection, err, "bound connection")
	}
	return c, nil
}

// Listen returns a channel of the state changes UpdateState calls make. The
// channel holds size notifications, the rest are dropped until the listener
// reads. The first listener gets the changes made before it. The id must be
// unique among the listeners.
func (r *Runtime) Listen(id string, size int) (bus.StateChan, error) {
	return r.station.AddListener(id, size)
}

// StopListen closes the listener's channel.
func (r *Runtime) StopListen(id string) {
	r.station.RmListener(id)
}
