// Package wallettest has the common behaviour tests every wallet backend
// must pass.
package wallettest

import (
	"errors"
	"testing"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

// Run runs the backend tests. newWallet must return an empty wallet.
func Run(t *testing.T, newWallet func(t *testing.T) wallet.Wallet) {
	t.Run("put get", func(t *testing.T) { testPutGet(t, newWallet(t)) })
	t.Run("duplicate", func(t *testing.T) { testDuplicate(t, newWallet(t)) })
	t.Run("update delete", func(t *testing.T) { testUpdateDelete(t, newWallet(t)) })
	t.Run("search order", func(t *testing.T) { testSearch(t, newWallet(t)) })
}

func testPutGet(t *testing.T, w wallet.Wallet) {
	assert.PushTester(t)
	defer assert.PopTester()
	defer w.Close()

	assert.NoError(w.Put(wallet.Record{
		Type:  wallet.TypeCredential,
		ID:    "cred1",
		Value: []byte(`{"a":1}`),
		Tags:  map[string]string{"cred_def_id": "X:3:SD:1:tag"},
	}))
	rec := try.To1(w.Get(wallet.TypeCredential, "cred1"))
	assert.Equal(string(rec.Value), `{"a":1}`)
	assert.Equal(rec.Tags["cred_def_id"], "X:3:SD:1:tag")
	assert.That(rec.Seq > 0)

	_, err := w.Get(wallet.TypeCredential, "nope")
	assert.That(errors.Is(err, vcxerr.NotFound))
	_, err = w.Get("other", "cred1")
	assert.That(errors.Is(err, vcxerr.NotFound))

	err = w.Put(wallet.Record{Type: "", ID: "x"})
	assert.That(errors.Is(err, vcxerr.InvalidOption))
}

func testDuplicate(t *testing.T, w wallet.Wallet) {
	assert.PushTester(t)
	defer assert.PopTester()
	defer w.Close()

	rec := wallet.Record{Type: wallet.TypeDID, ID: "did1", Value: []byte("v1")}
	assert.NoError(w.Put(rec))
	rec.Value = []byte("v2")
	err := w.Put(rec)
	assert.That(errors.Is(err, vcxerr.AlreadyExists))

	got := try.To1(w.Get(wallet.TypeDID, "did1"))
	assert.Equal(string(got.Value), "v1")

	// same id with other type is another record
	assert.NoError(w.Put(wallet.Record{Type: wallet.TypeDIDKey, ID: "did1", Value: []byte("k")}))
}

func testUpdateDelete(t *testing.T, w wallet.Wallet) {
	assert.PushTester(t)
	defer assert.PopTester()
	defer w.Close()

	err := w.Update(wallet.TypeDID, "did1", []byte("x"))
	assert.That(errors.Is(err, vcxerr.NotFound))

	assert.NoError(w.Put(wallet.Record{Type: wallet.TypeDID, ID: "did1", Value: []byte("v1")}))
	assert.NoError(w.Update(wallet.TypeDID, "did1", []byte("v2")))
	assert.NoError(w.UpdateTags(wallet.TypeDID, "did1", map[string]string{"k": "v"}))
	got := try.To1(w.Get(wallet.TypeDID, "did1"))
	assert.Equal(string(got.Value), "v2")
	assert.Equal(got.Tags["k"], "v")

	assert.NoError(w.Delete(wallet.TypeDID, "did1"))
	err = w.Delete(wallet.TypeDID, "did1")
	assert.That(errors.Is(err, vcxerr.NotFound))
	_, err = w.Get(wallet.TypeDID, "did1")
	assert.That(errors.Is(err, vcxerr.NotFound))
}

func testSearch(t *testing.T, w wallet.Wallet) {
	assert.PushTester(t)
	defer assert.PopTester()
	defer w.Close()

	put := func(id, credDef, issuer string) {
		assert.NoError(w.Put(wallet.Record{
			Type:  wallet.TypeCredential,
			ID:    id,
			Value: []byte(id),
			Tags: map[string]string{
				"cred_def_id": credDef,
				"issuer_did":  issuer,
			},
		}))
	}
	put("c1", "A:3:SD:1:t", "A")
	put("c2", "B:3:SD:2:t", "B")
	put("c3", "A:3:SD:1:t", "A")

	all := try.To1(w.Search(wallet.TypeCredential, nil))
	assert.SLen(all, 3)
	assert.Equal(all[0].ID, "c3")
	assert.Equal(all[2].ID, "c1")

	q := try.To1(wallet.ParseQuery(`{"issuer_did":"A"}`))
	recs := try.To1(w.Search(wallet.TypeCredential, q))
	assert.SLen(recs, 2)
	assert.Equal(recs[0].ID, "c3")
	assert.Equal(recs[1].ID, "c1")

	q = try.To1(wallet.ParseQuery(`{"$or":[{"issuer_did":"B"},{"cred_def_id":"none"}]}`))
	recs = try.To1(w.Search(wallet.TypeCredential, q))
	assert.SLen(recs, 1)
	assert.Equal(recs[0].ID, "c2")

	q = try.To1(wallet.ParseQuery(`{"issuer_did":"A","cred_def_id":"B:3:SD:2:t"}`))
	recs = try.To1(w.Search(wallet.TypeCredential, q))
	assert.SLen(recs, 0)

	recs = try.To1(w.Search("empty_type", nil))
	assert.SLen(recs, 0)
}
