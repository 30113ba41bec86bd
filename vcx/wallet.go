package vcx

import (
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// records of the runtime itself. The secret ones cannot be read either.
var (
	runtimeTypes = map[string]bool{
		wallet.TypeDID:          false,
		wallet.TypeConnection:   false,
		wallet.TypeCredential:   false,
		wallet.TypeDIDKey:       true,
		wallet.TypeBoxKey:       true,
		wallet.TypeMasterSecret: true,
		wallet.TypeCredDefPriv:  true,
	}
)

func checkWrite(typ string) error {
	if _, ok := runtimeTypes[typ]; ok {
		return vcxerr.New(vcxerr.Unauthorized, "wallet records of type %s are read only", typ)
	}
	return nil
}

func checkRead(typ string) error {
	if runtimeTypes[typ] {
		return vcxerr.New(vcxerr.Unauthorized, "wallet records of type %s are secret", typ)
	}
	return nil
}

// WalletAddRecord stores a new record of the application. It fails with
// AlreadyExists if the (typ, id) is taken.
func (r *Runtime) WalletAddRecord(typ, id string, value []byte, tags map[string]string) (err error) {
	defer err2.Handle(&err, "add wallet record %s/%s", typ, id)

	try.To(checkWrite(typ))
	return r.Env.Keys.W.Put(wallet.Record{Type: typ, ID: id, Value: value, Tags: tags})
}

// WalletGetRecord returns the record or NotFound.
func (r *Runtime) WalletGetRecord(typ, id string) (rec *wallet.Record, err error) {
	defer err2.Handle(&err, "get wallet record %s/%s", typ, id)

	try.To(checkRead(typ))
	return r.Env.Keys.W.Get(typ, id)
}

func (r *Runtime) WalletUpdateRecordValue(typ, id string, value []byte) (err error) {
	defer err2.Handle(&err, "update wallet record %s/%s", typ, id)

	try.To(checkWrite(typ))
	return r.Env.Keys.W.Update(typ, id, value)
}

// WalletUpdateRecordTags replaces all the tags of the record.
func (r *Runtime) WalletUpdateRecordTags(typ, id string, tags map[string]string) (err error) {
	defer err2.Handle(&err, "update wallet record tags %s/%s", typ, id)

	try.To(checkWrite(typ))
	return r.Env.Keys.W.UpdateTags(typ, id, tags)
}

// WalletAddRecordTags adds the tags to the record's tags. Existing names
// get the new values.
func (r *Runtime) WalletAddRecordTags(typ, id string, tags map[string]string) (err error) {
	defer err2.Handle(&err, "add wallet record tags %s/%s", typ, id)

	try.To(checkWrite(typ))
	rec := try.To1(r.Env.Keys.W.Get(typ, id))
	merged := make(map[string]string, len(rec.Tags)+len(tags))
	for k, v := range rec.Tags {
		merged[k] = v
	}
	for k, v := range tags {
		merged[k] = v
	}
	return r.Env.Keys.W.UpdateTags(typ, id, merged)
}

// WalletDeleteRecordTags removes the named tags. Unknown names are ignored.
func (r *Runtime) WalletDeleteRecordTags(typ, id string, names ...string) (err error) {
	defer err2.Handle(&err, "delete wallet record tags %s/%s", typ, id)

	try.To(checkWrite(typ))
	rec := try.To1(r.Env.Keys.W.Get(typ, id))
	tags := rec.Tags
	for _, n := range names {
		delete(tags, n)
	}
	return r.Env.Keys.W.UpdateTags(typ, id, tags)
}

func (r *Runtime) WalletDeleteRecord(typ, id string) (err error) {
	defer err2.Handle(&err, "delete wallet record %s/%s", typ, id)

	try.To(checkWrite(typ))
	return r.Env.Keys.W.Delete(typ, id)
}

// WalletSearch returns at most count records of the type which match the
// WQL query, most recently stored first. Empty query matches all and count
// 0 returns all matches.
func (r *Runtime) WalletSearch(typ, query string, count int) (recs []wallet.Record, err error) {
	defer err2.Handle(&err, "search wallet %s", typ)

	try.To(checkRead(typ))
	q := try.To1(wallet.ParseQuery(query))
	recs = try.To1(r.Env.Keys.W.Search(typ, q))
	if count > 0 && len(recs) > count {
		recs = recs[:count]
	}
	return recs, nil
}
