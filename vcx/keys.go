package vcx

import (
	"context"
	"errors"

	"github.com/findy-network/findy-vcx/agent/ssi"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// CreateAndStoreDID creates a DID to our wallet. An empty seed gives a
// random key.
func (r *Runtime) CreateAndStoreDID(seed string) (did, verkey string, err error) {
	defer err2.Handle(&err)

	d := try.To1(r.Env.Keys.CreateDID(seed))
	return d.DID, d.Verkey, nil
}

// GetVerkey resolves the current verkey of the DID: our own DIDs from the
// wallet, others from the ledger.
func (r *Runtime) GetVerkey(ctx context.Context, did string) (verkey string, err error) {
	defer err2.Handle(&err, "verkey of %s", did)

	d, err := r.Env.Keys.GetDID(did)
	if err == nil {
		return d.Verkey, nil
	}
	if !errors.Is(err, vcxerr.NotFound) {
		return "", err
	}
	return try.To1(r.Env.Ledger.ResolveDID(ctx, did)).Verkey, nil
}

// ReplaceKeysStart creates a new key for our DID and keeps it pending.
func (r *Runtime) ReplaceKeysStart(did string) (verkey string, err error) {
	return r.Env.Keys.ReplaceKeysStart(did)
}

// ReplaceKeysApply takes the pending key of the DID in use.
func (r *Runtime) ReplaceKeysApply(did string) error {
	return r.Env.Keys.ReplaceKeysApply(did)
}

// RotateKey rotates the key of our DID on the ledger and in the wallet.
func (r *Runtime) RotateKey(ctx context.Context, did string) (verkey string, err error) {
	return r.Env.Keys.RotateKey(ctx, r.Env.Ledger, did)
}

// Sign signs msg with the current key of our DID.
func (r *Runtime) Sign(did string, msg []byte) ([]byte, error) {
	return r.Env.Keys.Sign(did, msg)
}

// Verify checks an ed25519 signature with the base58 verkey.
func Verify(verkey string, msg, sig []byte) (bool, error) {
	return ssi.Verify(verkey, msg, sig)
}
