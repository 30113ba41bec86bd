package afgo

import (
	"testing"

	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/findy-network/findy-vcx/agent/wallet/wallettest"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/stretchr/testify/require"
)

func TestWallet(t *testing.T) {
	wallettest.Run(t, func(*testing.T) wallet.Wallet { return NewMem() })
}

func TestWallet_SeqSurvivesReopen(t *testing.T) {
	p := mem.NewProvider()
	w, err := New(p)
	require.NoError(t, err)
	require.NoError(t, w.Put(wallet.Record{Type: "t", ID: "a",
		Tags: map[string]string{"schema_id": "did:2:gvt:1.0"}}))

	w2, err := New(p)
	require.NoError(t, err)
	require.NoError(t, w2.Put(wallet.Record{Type: "t", ID: "b"}))
	b, err := w2.Get("t", "b")
	require.NoError(t, err)
	require.Equal(t, uint64(2), b.Seq)

	q, err := wallet.ParseQuery(`{"schema_id":"did:2:gvt:1.0"}`)
	require.NoError(t, err)
	recs, err := w2.Search("t", q)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.Equal(t, "a", recs[0].ID)
}
