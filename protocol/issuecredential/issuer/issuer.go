// Package issuer is the issuer side state machine of the credential issuing
// protocol: offer, request, credential and the holder's ack.
package issuer

import (
	"context"
	"encoding/json"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/ssi"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/protocol"
	"github.com/findy-network/findy-vcx/protocol/connection"
	"github.com/findy-network/findy-vcx/std/common"
	"github.com/findy-network/findy-vcx/std/issuecredential"
	"github.com/findy-network/findy-vcx/std/msg"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// Credential is the issuer's object of one credential issuing.
type Credential struct {
	protocol.Base

	CredDef        *ssi.CredDef          `json:"cred_def"`
	CredentialName string                `json:"credential_name,omitempty"`
	Price          string                `json:"price,omitempty"`
	Values         anoncreds.AttrValues  `json:"credential_attributes"`
	TheirDID       string                `json:"their_did,omitempty"`
	Offer          *anoncreds.Offer      `json:"offer,omitempty"`
	Request        *anoncreds.Request    `json:"request,omitempty"`
	Credential     *anoncreds.Credential `json:"credential,omitempty"`
	RevID          string                `json:"cred_rev_id,omitempty"`

	env *protocol.Env
}

// Create builds the issuer credential. The values must cover exactly the
// attributes of the cred def's schema.
func Create(
	ctx context.Context,
	env *protocol.Env,
	sourceID string,
	cd *ssi.CredDef,
	credentialName string,
	values map[string]string,
	price string,
) (c *Credential, err error) {
	defer err2.Handle(&err, "create issuer credential")

	if cd == nil {
		return nil, vcxerr.New(vcxerr.InvalidCredentialHandle, "no cred def")
	}
	if price != "" && !utils.IsDecimal(price) {
		return nil, vcxerr.New(vcxerr.InvalidOption, "price %q", price)
	}
	schema := try.To1(env.Ledger.GetSchema(ctx, cd.SchemaID))
	av := anoncreds.NewAttrValues(values)
	try.To(anoncreds.CheckAttributes(schema.AttrNames, av))

	c = &Credential{
		Base:           protocol.NewBase(env, sourceID),
		CredDef:        cd,
		CredentialName: credentialName,
		Price:          price,
		Values:         av,
		env:            env,
	}
	glog.V(1).Infof("issuer credential %s created for %s", c.SourceID, cd.ID)
	return c, nil
}

func (c *Credential) ledgerCredDef(ctx context.Context) (*pool.CredDef, *anoncreds.CredDefPrivate, error) {
	priv, err := c.CredDef.Private(c.env.Keys.W)
	if err != nil {
		return nil, nil, err
	}
	cd, err := c.env.Ledger.GetCredDef(ctx, c.CredDef.ID)
	if err != nil {
		return nil, nil, err
	}
	return cd, priv, nil
}

func (c *Credential) rawValues() map[string]string {
	raw := make(map[string]string, len(c.Values))
	for k, v := range c.Values {
		raw[k] = v.Raw
	}
	return raw
}

// SendOffer sends the credential offer over the connection and moves to
// OfferSent.
func (c *Credential) SendOffer(ctx context.Context, conn *connection.Connection) (err error) {
	defer err2.Handle(&err, "send offer %s", c.SourceID)

	try.To(c.State.Require("send offer", state.Initialized))
	if conn.GetState() != state.Accepted {
		return vcxerr.New(vcxerr.InvalidState, "connection in state %s", conn.GetState())
	}
	cd, priv := try.To2(c.ledgerCredDef(ctx))
	offer := try.To1(c.env.Crypto.CreateCredentialOffer(cd, priv))

	m := try.To1(conn.Send(ctx, msg.TypeCredOffer, "", &issuecredential.Offer{
		CredentialName:    c.CredentialName,
		Price:             c.Price,
		CredentialPreview: issuecredential.NewPreview(c.rawValues()),
		OffersAttach:      issuecredential.NewOfferAttach(try.To1(json.Marshal(offer))),
	}))
	c.Offer = offer
	c.ThreadID = m.ThreadID()
	c.TheirDID = conn.Their.DID
	return c.State.Set(state.OfferSent)
}

// SendCredential issues the credential for the received request and sends
// it. The state stays RequestReceived until the holder acks, and a repeated
// call sends the same credential again.
func (c *Credential) SendCredential(ctx context.Context, conn *connection.Connection) (err error) {
	defer err2.Handle(&err, "send credential %s", c.SourceID)

	try.To(c.State.Require("send credential", state.RequestReceived))
	if c.Credential == nil {
		cd, priv := try.To2(c.ledgerCredDef(ctx))
		revID := ""
		if c.CredDef.SupportRevocation {
			revID = utils.NewNonceStr()
		}
		c.Credential = try.To1(c.env.Crypto.IssueCredential(
			c.Offer, c.Request, c.Values, cd, priv, revID))
		c.RevID = c.Credential.RevID
	} else {
		glog.V(2).Infof("issuer credential %s: resend", c.SourceID)
	}
	data := try.To1(json.Marshal(c.Credential))
	try.To1(conn.Send(ctx, msg.TypeCredIssue, c.ThreadID, &issuecredential.Issue{
		CredentialsAttach: issuecredential.NewIssueAttach(data),
	}))
	return nil
}

// Revoke writes the revocation of the issued credential to the ledger.
func (c *Credential) Revoke(ctx context.Context) (err error) {
	defer err2.Handle(&err, "revoke %s", c.SourceID)

	try.To(c.State.Require("revoke", state.Accepted))
	if c.RevID == "" {
		return vcxerr.New(vcxerr.InvalidOption, "credential of %s is not revocable", c.CredDef.ID)
	}
	try.To1(pool.Revoke(ctx, c.env.Ledger, c.env.Keys, c.CredDef.IssuerDID, c.CredDef.ID, c.RevID))
	glog.V(1).Infof("issuer credential %s revoked: %s", c.SourceID, c.RevID)
	return c.State.Set(state.Revoked)
}

// UpdateState polls the connection's mailbox once.
func (c *Credential) UpdateState(ctx context.Context, conn *connection.Connection) (state.VcxState, error) {
	err := c.processor(conn).UpdateState(ctx, &c.Base, conn)
	return c.GetState(), err
}

func (c *Credential) processor(conn *connection.Connection) protocol.Processor {
	return protocol.Processor{
		Name: "issuer " + c.SourceID,
		Handlers: map[string]protocol.HandlerFunc{
			msg.TypeCredRequest: func(ctx context.Context, m *msg.Msg) (bool, error) {
				return c.handleRequest(ctx, conn, m)
			},
			msg.TypeAck:           c.handleAck,
			msg.TypeProblemReport: c.handleProblemReport,
		},
	}
}

func (c *Credential) handleRequest(ctx context.Context, conn *connection.Connection, m *msg.Msg) (ok bool, err error) {
	defer err2.Handle(&err, "credential request")

	if c.GetState() != state.OfferSent {
		return false, nil
	}
	req, err := decodeRequest(m)
	if err == nil && req.CredDefID != c.CredDef.ID {
		err = vcxerr.New(vcxerr.InvalidOption, "request for %s", req.CredDefID)
	}
	if err != nil {
		glog.Warningf("issuer credential %s: bad request: %v", c.SourceID, err)
		try.To1(conn.Send(ctx, msg.TypeProblemReport, c.ThreadID,
			common.NewProblemReport(common.CodeInvalidRequest, err.Error())))
		return true, c.State.Set(state.Unfulfilled)
	}
	c.Request = req
	return true, c.State.Set(state.RequestReceived)
}

func decodeRequest(m *msg.Msg) (req *anoncreds.Request, err error) {
	var r issuecredential.Request
	if err := m.Decode(&r); err != nil {
		return nil, err
	}
	data, err := issuecredential.RequestAttach(&r)
	if err != nil {
		return nil, err
	}
	req = new(anoncreds.Request)
	if err := json.Unmarshal(data, req); err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "credential request")
	}
	return req, nil
}

func (c *Credential) handleAck(_ context.Context, _ *msg.Msg) (bool, error) {
	if c.GetState() != state.RequestReceived || c.Credential == nil {
		return false, nil
	}
	glog.V(1).Infof("issuer credential %s accepted", c.SourceID)
	return true, c.State.Set(state.Accepted)
}

func (c *Credential) handleProblemReport(_ context.Context, m *msg.Msg) (bool, error) {
	var pr common.ProblemReport
	_ = m.Decode(&pr)
	glog.Warningf("issuer credential %s: problem report: %s %s", c.SourceID,
		pr.Description.Code, pr.ExplainLongTxt)
	return true, c.State.Set(state.Unfulfilled)
}

func (c *Credential) Serialize() ([]byte, error) {
	return utils.Serialize(c)
}

// Deserialize restores an issuer credential to the env.
func Deserialize(env *protocol.Env, data []byte) (c *Credential, err error) {
	c = new(Credential)
	if err := utils.Deserialize(data, c); err != nil {
		return nil, err
	}
	if c.CredDef == nil {
		return nil, vcxerr.New(vcxerr.InvalidJSON, "issuer credential without cred def")
	}
	c.Restore(env)
	c.env = env
	return c, nil
}
