package ssi

import (
	"context"
	"encoding/json"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// CredDef is the issuer's object of a credential definition. The private
// key part lives only in the issuer's wallet.
type CredDef struct {
	SourceID          string `json:"source_id"`
	ID                string `json:"id"`
	SchemaID          string `json:"schema_id"`
	Tag               string `json:"tag"`
	IssuerDID         string `json:"issuer_did"`
	SupportRevocation bool   `json:"support_revocation"`
}

// CreateCredDef builds the keys with the crypto collaborator, writes the
// public part to the ledger and stores the private part to the wallet.
func CreateCredDef(
	ctx context.Context,
	l pool.Ledger,
	k *Keys,
	crypto anoncreds.Crypto,
	did, sourceID, schemaID, tag string,
	revocation bool,
) (cd *CredDef, err error) {
	defer err2.Handle(&err, "create cred def for %s", schemaID)

	schema := try.To1(l.GetSchema(ctx, schemaID))
	pub, priv := try.To2(crypto.CreateCredentialDefinition(did, schema, tag, revocation))
	if _, err := k.W.Get(wallet.TypeCredDefPriv, pub.ID); err == nil {
		return nil, vcxerr.New(vcxerr.AlreadyExists, "cred def %s", pub.ID)
	}
	reply := try.To1(pool.WriteCredDef(ctx, l, k, did, pub))
	if reply.ID != pub.ID {
		return nil, vcxerr.New(vcxerr.InvalidOption, "ledger gave id %s for %s", reply.ID, pub.ID)
	}
	try.To(k.W.Put(wallet.Record{
		Type:  wallet.TypeCredDefPriv,
		ID:    pub.ID,
		Value: try.To1(json.Marshal(priv)),
		Tags:  map[string]string{"schema_id": schemaID},
	}))
	glog.V(1).Infoln("cred def created:", pub.ID)

	return &CredDef{
		SourceID:          sourceID,
		ID:                pub.ID,
		SchemaID:          schemaID,
		Tag:               pub.Tag,
		IssuerDID:         did,
		SupportRevocation: revocation,
	}, nil
}

// Private reads the private key part from the wallet.
func (cd *CredDef) Private(w wallet.Wallet) (priv *anoncreds.CredDefPrivate, err error) {
	defer err2.Handle(&err, "cred def private %s", cd.ID)

	rec, err := w.Get(wallet.TypeCredDefPriv, cd.ID)
	if err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidCredentialHandle, err, "not our cred def")
	}
	priv = new(anoncreds.CredDefPrivate)
	try.To(json.Unmarshal(rec.Value, priv))
	return priv, nil
}

func (cd *CredDef) Serialize() ([]byte, error) {
	return utils.Serialize(cd)
}

func DeserializeCredDef(data []byte) (cd *CredDef, err error) {
	cd = new(CredDef)
	if err := utils.Deserialize(data, cd); err != nil {
		return nil, err
	}
	return cd, nil
}
