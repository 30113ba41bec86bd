// Package ssi manages our DIDs and their keys in the wallet, and the schema
// and credential definition objects the issuer publishes to the ledger.
package ssi

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"

	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/nacl/box"
)

// Keys manages our DIDs and keys stored in a wallet. It implements
// pool.Signer.
type Keys struct {
	W wallet.Wallet

	cache Cache
}

// NewKeys returns a key manager over the wallet.
func NewKeys(w wallet.Wallet) *Keys {
	return &Keys{W: w}
}

func (k *Keys) newSigningKey(seed []byte) (verkey string, err error) {
	defer err2.Handle(&err)

	var priv ed25519.PrivateKey
	if seed == nil {
		_, priv = try.To2(ed25519.GenerateKey(rand.Reader))
	} else {
		if len(seed) != ed25519.SeedSize {
			return "", vcxerr.New(vcxerr.InvalidOption, "seed must be %d bytes", ed25519.SeedSize)
		}
		priv = ed25519.NewKeyFromSeed(seed)
	}
	pub := priv.Public().(ed25519.PublicKey)
	verkey = base58.Encode(pub)
	try.To(k.W.Put(wallet.Record{
		Type:  wallet.TypeDIDKey,
		ID:    verkey,
		Value: priv.Seed(),
	}))
	return verkey, nil
}

// CreateDID creates a new DID with a signing key and a box key. An empty
// seed generates a random key, otherwise the seed must be 32 bytes.
func (k *Keys) CreateDID(seed string) (d *DID, err error) {
	defer err2.Handle(&err, "create DID")

	var seedBytes []byte
	if seed != "" {
		seedBytes = []byte(seed)
	}
	verkey := try.To1(k.newSigningKey(seedBytes))
	vk := try.To1(base58.Decode(verkey))
	d = &DID{
		DID:    DIDFromVerkey(vk),
		Verkey: verkey,
	}

	pub, priv, err := box.GenerateKey(rand.Reader)
	try.To(err)
	d.BoxKey = base58.Encode(pub[:])
	try.To(k.W.Put(wallet.Record{
		Type:  wallet.TypeBoxKey,
		ID:    d.DID,
		Value: priv[:],
	}))
	try.To(k.W.Put(wallet.Record{
		Type:  wallet.TypeDID,
		ID:    d.DID,
		Value: d.JSON(),
		Tags:  map[string]string{"verkey": d.Verkey},
	}))
	k.cache.Add(d)
	glog.V(2).Infoln("DID created:", d.DID)
	return d, nil
}

// GetDID reads our DID from the wallet.
func (k *Keys) GetDID(did string) (d *DID, err error) {
	defer err2.Handle(&err)

	if d, ok := k.cache.Get(did); ok {
		return d, nil
	}
	rec := try.To1(k.W.Get(wallet.TypeDID, did))
	d = new(DID)
	try.To(json.Unmarshal(rec.Value, d))
	k.cache.Add(d)
	return d, nil
}

func (k *Keys) saveDID(d *DID) error {
	k.cache.Remove(d.DID)
	if err := k.W.Update(wallet.TypeDID, d.DID, d.JSON()); err != nil {
		return err
	}
	if err := k.W.UpdateTags(wallet.TypeDID, d.DID, map[string]string{"verkey": d.Verkey}); err != nil {
		return err
	}
	k.cache.Add(d)
	return nil
}

// SetMetadata stores free form metadata to our DID.
func (k *Keys) SetMetadata(did, meta string) (err error) {
	defer err2.Handle(&err)

	d := try.To1(k.GetDID(did))
	d.Metadata = meta
	return k.saveDID(d)
}

func (k *Keys) privateKey(verkey string) (priv ed25519.PrivateKey, err error) {
	defer err2.Handle(&err)

	rec := try.To1(k.W.Get(wallet.TypeDIDKey, verkey))
	return ed25519.NewKeyFromSeed(rec.Value), nil
}

// Sign signs msg with the current key of our DID.
func (k *Keys) Sign(did string, msg []byte) (sig []byte, err error) {
	defer err2.Handle(&err, "sign by %s", did)

	d := try.To1(k.GetDID(did))
	return k.SignWithKey(d.Verkey, msg)
}

// SignWithKey signs msg with the private key of the verkey.
func (k *Keys) SignWithKey(verkey string, msg []byte) (sig []byte, err error) {
	defer err2.Handle(&err)

	priv := try.To1(k.privateKey(verkey))
	return ed25519.Sign(priv, msg), nil
}

// Verify checks an ed25519 signature against a base58 verkey. A wrong
// signature is false without an error, a malformed key is an error.
func Verify(verkey string, msg, sig []byte) (bool, error) {
	pk, err := base58.Decode(verkey)
	if err != nil || len(pk) != ed25519.PublicKeySize {
		return false, vcxerr.New(vcxerr.UnknownCryptoMethod, "verkey %q", verkey)
	}
	return ed25519.Verify(pk, msg, sig), nil
}

// BoxKeys returns the X25519 key pair of our DID.
func (k *Keys) BoxKeys(did string) (pub, priv *[32]byte, err error) {
	defer err2.Handle(&err)

	d := try.To1(k.GetDID(did))
	rec := try.To1(k.W.Get(wallet.TypeBoxKey, did))
	pub, priv = new([32]byte), new([32]byte)
	copy(pub[:], try.To1(base58.Decode(d.BoxKey)))
	copy(priv[:], rec.Value)
	return pub, priv, nil
}

// ReplaceKeysStart creates a new signing key for the DID and keeps it
// pending. The old key stays in use until ReplaceKeysApply.
func (k *Keys) ReplaceKeysStart(did string) (verkey string, err error) {
	defer err2.Handle(&err, "replace keys start %s", did)

	d := try.To1(k.GetDID(did))
	verkey = try.To1(k.newSigningKey(nil))
	d.PendingVerkey = verkey
	try.To(k.saveDID(d))
	glog.V(1).Infof("key rotation of %s started", did)
	return verkey, nil
}

// ReplaceKeysApply takes the pending key in use.
func (k *Keys) ReplaceKeysApply(did string) (err error) {
	defer err2.Handle(&err, "replace keys apply %s", did)

	d := try.To1(k.GetDID(did))
	if d.PendingVerkey == "" {
		return vcxerr.New(vcxerr.InvalidState, "no pending key for %s", did)
	}
	d.Verkey = d.PendingVerkey
	d.PendingVerkey = ""
	try.To(k.saveDID(d))
	glog.V(1).Infof("key rotation of %s applied", did)
	return nil
}

// RotateKey runs the whole rotation: a new key, a NYM signed by the old key,
// a wait until the ledger shows the new key, and finally the apply.
func (k *Keys) RotateKey(ctx context.Context, l pool.Ledger, did string) (verkey string, err error) {
	defer err2.Handle(&err, "rotate key")

	verkey = try.To1(k.ReplaceKeysStart(did))
	try.To1(pool.SubmitNym(ctx, l, k, did, did, verkey, nil))
	try.To(Retry(ctx, func() error {
		nym, err := l.ResolveDID(ctx, did)
		if err != nil {
			return err
		}
		if nym.Verkey != verkey {
			return vcxerr.New(vcxerr.NotFound, "rotation of %s not yet confirmed", did)
		}
		return nil
	}))
	try.To(k.ReplaceKeysApply(did))
	return verkey, nil
}

// Onboard writes our DID to the ledger by a submitter who has the rights
// for it. The submitter's keys must be in the same wallet.
func (k *Keys) Onboard(ctx context.Context, l pool.Ledger, submitter string, d *DID, role pool.Role) (err error) {
	defer err2.Handle(&err, "onboard %s", d.DID)

	req := pool.NewNymRequest(submitter, d.DID, d.Verkey, pool.RolePtr(role))
	try.To(req.Sign(k))
	try.To1(l.Submit(ctx, req))
	return nil
}
