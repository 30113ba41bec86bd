// Package holder is the holder side state machine of the credential issuing
// protocol. The holder gets an offer, sends a blinded request, and verifies
// and stores the credential before it acks.
package holder

import (
	"context"
	"encoding/json"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/findy-network/findy-vcx/protocol"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/std/common"
	"github.com/findy-network/findy-vcx/std/issuecredential"
	"github.com/findy-network/findy-vcx/std/msg"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Credential is the holder's object of one credential issuing.
type Credential struct {
	protocol.Base

	CredentialName string                     `json:"credential_name,omitempty"`
	Price          string                     `json:"price,omitempty"`
	Preview        map[string]string          `json:"preview,omitempty"`
	Offer          *anoncreds.Offer           `json:"offer"`
	Request        *anoncreds.Request         `json:"request,omitempty"`
	Meta           *anoncreds.RequestMetadata `json:"request_metadata,omitempty"`
	Referent       string                     `json:"cred_id,omitempty"`

	env *protocol.Env
}

// GetOffers returns the credential offers waiting in the connection's
// mailbox. They stay there until an object is created of them.
func GetOffers(ctx context.Context, conn *connection.Connection) (offers []*msg.Msg, err error) {
	defer err2.Handle(&err, "get offers")

	for _, im := range try.To1(conn.Inbox(ctx)) {
		if im.Msg.Type == msg.TypeCredOffer {
			offers = append(offers, im.Msg)
		}
	}
	return offers, nil
}

// CreateWithOffer builds the holder's credential of an offer message.
func CreateWithOffer(env *protocol.Env, sourceID string, offerMsg []byte) (c *Credential, err error) {
	defer err2.Handle(&err, "create credential with offer")

	m := try.To1(msg.Parse(offerMsg))
	if m.Type != msg.TypeCredOffer {
		return nil, vcxerr.New(vcxerr.InvalidOption, "%s is not an offer", m.Type)
	}
	var o issuecredential.Offer
	try.To(m.Decode(&o))
	data := try.To1(issuecredential.OfferAttach(&o))
	offer := new(anoncreds.Offer)
	if err := json.Unmarshal(data, offer); err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "credential offer")
	}
	if offer.CredDefID == "" || offer.Nonce == "" {
		return nil, vcxerr.New(vcxerr.InvalidJSON, "credential offer fields")
	}

	c = &Credential{
		Base:           protocol.NewBase(env, sourceID),
		CredentialName: o.CredentialName,
		Price:          o.Price,
		Preview:        o.CredentialPreview.Values(),
		Offer:          offer,
		env:            env,
	}
	c.ThreadID = m.ThreadID()
	c.Seen[m.ID] = struct{}{}
	glog.V(1).Infof("credential %s created of offer %s", c.SourceID, m.ID)
	return c, nil
}

// CreateWithMsgID builds the holder's credential of an offer which waits
// in the connection's mailbox, and removes the offer from there.
func CreateWithMsgID(ctx context.Context, env *protocol.Env, conn *connection.Connection, sourceID, msgID string) (c *Credential, err error) {
	defer err2.Handle(&err, "create credential with msg id %s", msgID)

	for _, im := range try.To1(conn.Inbox(ctx)) {
		if im.Msg.ID != msgID || im.Msg.Type != msg.TypeCredOffer {
			continue
		}
		c = try.To1(CreateWithOffer(env, sourceID, im.Msg.JSON()))
		try.To(conn.Ack(ctx, im.TxpID))
		return c, nil
	}
	return nil, vcxerr.New(vcxerr.NotFound, "offer %s", msgID)
}

// SendRequest sends the blinded credential request and moves to
// RequestReceived.
func (c *Credential) SendRequest(ctx context.Context, conn *connection.Connection) (err error) {
	defer err2.Handle(&err, "send request %s", c.SourceID)

	try.To(c.State.Require("send request", state.Initialized))
	if conn.GetState() != state.Accepted {
		return vcxerr.New(vcxerr.InvalidState, "connection in state %s", conn.GetState())
	}
	ms := try.To1(c.env.MasterSecret())
	cd := try.To1(c.env.Ledger.GetCredDef(ctx, c.Offer.CredDefID))
	req, meta := try.To2(c.env.Crypto.CreateBlindedCredentialRequest(conn.MyDID, c.Offer, cd, ms))

	try.To1(conn.Send(ctx, msg.TypeCredRequest, c.ThreadID, &issuecredential.Request{
		RequestsAttach: issuecredential.NewRequestAttach(try.To1(json.Marshal(req))),
	}))
	c.Request, c.Meta = req, meta
	return c.State.Set(state.RequestReceived)
}

// UpdateState polls the connection's mailbox once. A received credential is
// verified and stored before the state moves to Accepted.
func (c *Credential) UpdateState(ctx context.Context, conn *connection.Connection) (state.VcxState, error) {
	err := c.processor(conn).UpdateState(ctx, &c.Base, conn)
	return c.GetState(), err
}

func (c *Credential) processor(conn *connection.Connection) protocol.Processor {
	return protocol.Processor{
		Name: "credential " + c.SourceID,
		Handlers: map[string]protocol.HandlerFunc{
			msg.TypeCredIssue: func(ctx context.Context, m *msg.Msg) (bool, error) {
				return c.handleIssue(ctx, conn, m)
			},
			msg.TypeProblemReport: c.handleProblemReport,
		},
	}
}

func (c *Credential) handleIssue(ctx context.Context, conn *connection.Connection, m *msg.Msg) (ok bool, err error) {
	defer err2.Handle(&err, "credential issue")

	if c.GetState() != state.RequestReceived {
		return false, nil
	}
	cred, err := decodeCredential(m)
	if err == nil {
		err = c.storeCredential(ctx, cred)
	}
	switch vcxerr.KindOf(err) {
	case vcxerr.Unknown:
		if err != nil {
			return false, err
		}
	case vcxerr.InvalidJSON, vcxerr.InvalidOption, vcxerr.VerificationFailed,
		vcxerr.InvalidAttributes, vcxerr.UnknownCryptoMethod:
		glog.Warningf("credential %s: reject: %v", c.SourceID, err)
		try.To1(conn.Send(ctx, msg.TypeProblemReport, c.ThreadID,
			common.NewProblemReport(common.CodeRejected, err.Error())))
		return true, c.State.Set(state.Unfulfilled)
	default:
		return false, err
	}
	try.To1(conn.Send(ctx, msg.TypeAck, c.ThreadID, &common.Ack{Status: common.StatusOK}))
	glog.V(1).Infof("credential %s stored: %s", c.SourceID, c.Referent)
	return true, c.State.Set(state.Accepted)
}

func decodeCredential(m *msg.Msg) (*anoncreds.Credential, error) {
	var issue issuecredential.Issue
	if err := m.Decode(&issue); err != nil {
		return nil, err
	}
	data, err := issuecredential.IssueAttach(&issue)
	if err != nil {
		return nil, err
	}
	cred := new(anoncreds.Credential)
	if err := json.Unmarshal(data, cred); err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "credential")
	}
	return cred, nil
}

// storeCredential verifies the credential and writes it to the wallet. The
// wallet id is the thread id, so a credential already stored by an earlier
// run counts as stored. The source id goes to the tags for searches.
func (c *Credential) storeCredential(ctx context.Context, cred *anoncreds.Credential) (err error) {
	defer err2.Handle(&err, "store credential")

	if cred.CredDefID != c.Offer.CredDefID {
		return vcxerr.New(vcxerr.InvalidOption, "credential of %s", cred.CredDefID)
	}
	ms := try.To1(c.env.MasterSecret())
	cd := try.To1(c.env.Ledger.GetCredDef(ctx, cred.CredDefID))
	try.To(c.env.Crypto.ProcessCredential(cred, c.Meta, cd, ms))

	sc := &anoncreds.StoredCredential{
		Referent:       c.ThreadID,
		SourceID:       c.SourceID,
		Credential:     cred,
		BlindingFactor: c.Meta.BlindingFactor,
	}
	err = c.env.Keys.W.Put(wallet.Record{
		Type:  wallet.TypeCredential,
		ID:    sc.Referent,
		Value: try.To1(json.Marshal(sc)),
		Tags:  sc.Tags(),
	})
	if vcxerr.KindOf(err) == vcxerr.AlreadyExists {
		glog.V(1).Infof("credential %s was already stored", sc.Referent)
		err = nil
	}
	try.To(err)
	c.Referent = sc.Referent
	return nil
}

func (c *Credential) handleProblemReport(_ context.Context, m *msg.Msg) (bool, error) {
	var pr common.ProblemReport
	_ = m.Decode(&pr)
	glog.Warningf("credential %s: problem report: %s %s", c.SourceID,
		pr.Description.Code, pr.ExplainLongTxt)
	return true, c.State.Set(state.Unfulfilled)
}

// GetCredential returns the stored credential.
func (c *Credential) GetCredential() (info *anoncreds.CredentialInfo, err error) {
	defer err2.Handle(&err, "get credential %s", c.SourceID)

	try.To(c.State.Require("get credential", state.Accepted))
	sc := try.To1(LoadStored(c.env.Keys.W, c.Referent))
	ci := sc.Info()
	return &ci, nil
}

// LoadStored reads a stored credential from the wallet.
func LoadStored(w wallet.Wallet, referent string) (sc *anoncreds.StoredCredential, err error) {
	defer err2.Handle(&err)

	rec := try.To1(w.Get(wallet.TypeCredential, referent))
	sc = new(anoncreds.StoredCredential)
	try.To(json.Unmarshal(rec.Value, sc))
	return sc, nil
}

func (c *Credential) Serialize() ([]byte, error) {
	return utils.Serialize(c)
}

// Deserialize restores a holder credential to the env.
func Deserialize(env *protocol.Env, data []byte) (c *Credential, err error) {
	c = new(Credential)
	if err := utils.Deserialize(data, c); err != nil {
		return nil, err
	}
	if c.Offer == nil {
		return nil, vcxerr.New(vcxerr.InvalidJSON, "credential without offer")
	}
	c.Restore(env)
	c.env = env
	return c, nil
}
