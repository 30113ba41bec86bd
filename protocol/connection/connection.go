// Package connection is the connection protocol state machine. The inviter
// creates a pairwise DID and gives its keys out of band in an invitation.
// The invitee creates a pairwise DID of its own and sends it in a request
// which is sealed to the inviter's box key. The inviter answers with a
// response signed by the invitation key. After that both ends have a pipe
// which the other protocols ride on.
package connection

import (
	"context"
	"encoding/json"

	"github.com/findy-network/findy-vcx/agent/sec"
	"github.com/findy-network/findy-vcx/agent/ssi"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/agent/wallet"
	"github.com/findy-network/findy-vcx/protocol"
	"github.com/findy-network/findy-vcx/std/common"
	stdconn "github.com/findy-network/findy-vcx/std/connection"
	"github.com/findy-network/findy-vcx/std/msg"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

type Role string

const (
	Inviter Role = "inviter"
	Invitee Role = "invitee"
)

// Connection is one end of a pairwise relationship.
type Connection struct {
	protocol.Base

	Role       Role                `json:"role"`
	Label      string              `json:"label,omitempty"`
	MyDID      string              `json:"my_did"`
	Their      sec.Endpoint        `json:"their"`
	Invitation *stdconn.Invitation `json:"invitation,omitempty"`

	env *protocol.Env
}

// Pairwise is the status view of the connection.
type Pairwise struct {
	SourceID      string         `json:"source_id"`
	State         state.VcxState `json:"state"`
	MyDID         string         `json:"myDid"`
	TheirDID      string         `json:"theirDid"`
	TheirEndpoint string         `json:"theirEndpoint,omitempty"`
	TheirLabel    string         `json:"theirLabel,omitempty"`
}

// Create allocates a new connection with a new pairwise DID. It becomes the
// inviter when Connect is called.
func Create(env *protocol.Env, sourceID string) (c *Connection, err error) {
	defer err2.Handle(&err, "create connection")

	me := try.To1(env.Keys.CreateDID(""))
	c = &Connection{
		Base:  protocol.NewBase(env, sourceID),
		Role:  Inviter,
		MyDID: me.DID,
		env:   env,
	}
	glog.V(1).Infof("connection %s created, DID: %s", c.SourceID, c.MyDID)
	return c, nil
}

// CreateWithInvite allocates the invitee's connection for the invitation.
func CreateWithInvite(env *protocol.Env, sourceID string, invite []byte) (c *Connection, err error) {
	defer err2.Handle(&err, "create connection with invite")

	inv := new(stdconn.Invitation)
	if err := json.Unmarshal(invite, inv); err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "invitation")
	}
	try.To(inv.Validate())
	try.To(checkRecipientKeys(inv))

	me := try.To1(env.Keys.CreateDID(""))
	c = &Connection{
		Base:       protocol.NewBase(env, sourceID),
		Role:       Invitee,
		MyDID:      me.DID,
		Invitation: inv,
		Their: sec.Endpoint{
			DID:    inv.DID,
			Verkey: inv.Verkey,
			BoxKey: inv.BoxKey,
		},
		env: env,
	}
	c.ThreadID = inv.ID
	glog.V(1).Infof("connection %s created by invitation %s", c.SourceID, inv.ID)
	return c, nil
}

// checkRecipientKeys checks that the did:keys of the invitation are its
// verkey.
func checkRecipientKeys(inv *stdconn.Invitation) error {
	for _, k := range inv.RecipientKeys {
		vk, err := ssi.VerkeyFromDIDKey(k)
		if err != nil {
			return vcxerr.Wrap(vcxerr.InvalidOption, err, "recipient key "+k)
		}
		if vk != inv.Verkey {
			return vcxerr.New(vcxerr.InvalidOption, "recipient key %s is not the invitation verkey", k)
		}
	}
	return nil
}

// Connect starts the protocol. The inviter moves to OfferSent and returns
// the invitation to be given out of band. The invitee sends the request and
// moves to RequestReceived.
func (c *Connection) Connect(ctx context.Context) (inv *stdconn.Invitation, err error) {
	defer err2.Handle(&err, "connect %s", c.SourceID)

	try.To(c.State.Require("connect", state.Initialized))
	switch c.Role {
	case Inviter:
		me := try.To1(c.env.Keys.GetDID(c.MyDID))
		c.Invitation = &stdconn.Invitation{
			ID:       utils.UUID(),
			Label:    c.Label,
			DID:      me.DID,
			Verkey:   me.Verkey,
			BoxKey:   me.BoxKey,
			Endpoint: c.env.Endpoint,

			RecipientKeys: []string{me.DIDKey()},
		}
		c.ThreadID = c.Invitation.ID
		try.To(c.State.Set(state.OfferSent))
	case Invitee:
		me := try.To1(c.env.Keys.GetDID(c.MyDID))
		try.To(c.sendAnon(ctx, msg.TypeConnRequest, &stdconn.Request{
			Label:  c.Label,
			DID:    me.DID,
			Verkey: me.Verkey,
			BoxKey: me.BoxKey,
		}))
		try.To(c.State.Set(state.RequestReceived))
	}
	return c.Invitation, nil
}

// InviteDetails returns the invitation JSON.
func (c *Connection) InviteDetails() ([]byte, error) {
	if c.Invitation == nil {
		return nil, vcxerr.New(vcxerr.InvalidState, "no invitation in state %s", c.GetState())
	}
	return json.Marshal(c.Invitation)
}

// Decline rejects the invitation. The inviter gets a problem report.
func (c *Connection) Decline(ctx context.Context, reason string) (err error) {
	defer err2.Handle(&err, "decline %s", c.SourceID)

	if c.Role != Invitee {
		return vcxerr.New(vcxerr.InvalidOption, "only invitee declines")
	}
	try.To(c.State.Require("decline", state.Initialized))
	try.To(c.sendAnon(ctx, msg.TypeProblemReport,
		common.NewProblemReport(common.CodeRejected, reason)))
	return c.State.Set(state.Unfulfilled)
}

// UpdateState polls the mailbox once and advances the protocol.
func (c *Connection) UpdateState(ctx context.Context) (state.VcxState, error) {
	if c.GetState() == state.Initialized || c.GetState() == state.Accepted {
		// nothing to wait for, messages of the other protocols stay
		c.State.CheckExpired()
		return c.GetState(), nil
	}
	err := c.processor().UpdateState(ctx, &c.Base, c)
	return c.GetState(), err
}

// Status returns the pairwise view of the connection.
func (c *Connection) Status() Pairwise {
	p := Pairwise{
		SourceID: c.SourceID,
		State:    c.GetState(),
		MyDID:    c.MyDID,
		TheirDID: c.Their.DID,
	}
	if c.Invitation != nil && c.Role == Invitee {
		p.TheirEndpoint = c.Invitation.Endpoint
		p.TheirLabel = c.Invitation.Label
	}
	return p
}

func (c *Connection) Serialize() ([]byte, error) {
	return utils.Serialize(c)
}

// Deserialize restores a connection to the env.
func Deserialize(env *protocol.Env, data []byte) (c *Connection, err error) {
	c = new(Connection)
	if err := utils.Deserialize(data, c); err != nil {
		return nil, err
	}
	if c.MyDID == "" || (c.Role != Inviter && c.Role != Invitee) {
		return nil, vcxerr.New(vcxerr.InvalidJSON, "connection data")
	}
	c.Restore(env)
	c.env = env
	return c, nil
}

// saveTheir stores the other end to the wallet's connection records.
func (c *Connection) saveTheir() error {
	data, err := json.Marshal(c.Their)
	if err != nil {
		return err
	}
	err = c.env.Keys.W.Put(wallet.Record{
		Type:  wallet.TypeConnection,
		ID:    c.MyDID,
		Value: data,
		Tags:  map[string]string{"their_did": c.Their.DID, "source_id": c.SourceID},
	})
	if err != nil && vcxerr.KindOf(err) == vcxerr.AlreadyExists {
		return c.env.Keys.W.Update(wallet.TypeConnection, c.MyDID, data)
	}
	return err
}
