package connection

import (
	"context"

	"github.com/findy-network/findy-vcx/agent/sec"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/protocol"
	stdconn "github.com/findy-network/findy-vcx/std/connection"
	"github.com/findy-network/findy-vcx/std/msg"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

func (c *Connection) processor() protocol.Processor {
	return protocol.Processor{
		Name: "connection " + c.SourceID,
		Handlers: map[string]protocol.HandlerFunc{
			msg.TypeConnRequest:   c.handleRequest,
			msg.TypeConnResponse:  c.handleResponse,
			msg.TypeProblemReport: c.handleProblemReport,
		},
	}
}

func (c *Connection) pipe() sec.Pipe {
	return sec.Pipe{Keys: c.env.Keys, In: c.MyDID, Out: c.Their}
}

// anonymous tells if the messages to us are still sealed without a known
// sender.
func (c *Connection) anonymous() bool {
	return c.Role == Inviter && c.Their.DID == ""
}

// Send sends a message of the thread to the other end. An empty thid starts
// a new thread. The connection must be Accepted.
func (c *Connection) Send(ctx context.Context, typ, thid string, payload any) (m *msg.Msg, err error) {
	defer err2.Handle(&err, "send %s", typ)

	if c.GetState() != state.Accepted {
		return nil, vcxerr.New(vcxerr.InvalidState, "connection %s in state %s",
			c.SourceID, c.GetState())
	}
	m = try.To1(msg.New(typ, thid, payload))
	try.To(c.send(ctx, m))
	return m, nil
}

func (c *Connection) send(ctx context.Context, m *msg.Msg) (err error) {
	defer err2.Handle(&err)

	m.FromDID = c.MyDID
	m.ToDID = c.Their.DID
	data, _ := try.To2(c.pipe().Pack(m.JSON()))
	try.To(c.env.Txp.Send(ctx, c.Their.DID, data))
	glog.V(3).Infof("-> %s %s (%s)", c.Their.DID, m.Type, m.ThreadID())
	return nil
}

func (c *Connection) sendAnon(ctx context.Context, typ string, payload any) (err error) {
	defer err2.Handle(&err)

	m := try.To1(msg.New(typ, c.ThreadID, payload))
	m.FromDID = c.MyDID
	m.ToDID = c.Their.DID
	data := try.To1(sec.AnonPack(c.env.Keys, c.MyDID, c.Their.BoxKey, m.JSON()))
	try.To(c.env.Txp.Send(ctx, c.Their.DID, data))
	glog.V(3).Infof("-> %s %s (anon)", c.Their.DID, typ)
	return nil
}

// Inbox reads the mailbox of our pairwise DID once. Messages which don't
// open or parse are acked and dropped.
func (c *Connection) Inbox(ctx context.Context) (in []protocol.Inbound, err error) {
	defer err2.Handle(&err, "inbox %s", c.SourceID)

	received := try.To1(c.env.Txp.Receive(ctx, c.MyDID))
	var garbage []string
	for _, r := range received {
		m, err := c.open(r.Data)
		if err != nil {
			glog.Warningf("connection %s: drop message %s: %v", c.SourceID, r.ID, err)
			garbage = append(garbage, r.ID)
			continue
		}
		in = append(in, protocol.Inbound{TxpID: r.ID, Msg: m})
	}
	if len(garbage) > 0 {
		try.To(c.Ack(ctx, garbage...))
	}
	return in, nil
}

// Ack removes the deliveries from our mailbox.
func (c *Connection) Ack(ctx context.Context, ids ...string) error {
	return c.env.Txp.Ack(ctx, c.MyDID, ids...)
}

func (c *Connection) open(data []byte) (m *msg.Msg, err error) {
	defer err2.Handle(&err)

	var (
		payload []byte
		verkey  string
	)
	if c.anonymous() {
		payload, verkey = try.To2(sec.AnonUnpack(c.env.Keys, c.MyDID, data))
	} else {
		payload, verkey = try.To2(c.pipe().Unpack(data))
	}
	m = try.To1(msg.Parse(payload))
	if m.Type == msg.TypeConnRequest {
		var req stdconn.Request
		try.To(m.Decode(&req))
		if req.Verkey != verkey {
			return nil, vcxerr.New(vcxerr.VerificationFailed,
				"request of %s signed by %s", req.DID, verkey)
		}
	}
	return m, nil
}

func (c *Connection) handleRequest(ctx context.Context, m *msg.Msg) (ok bool, err error) {
	defer err2.Handle(&err, "connection request")

	if c.Role != Inviter || c.GetState() != state.OfferSent {
		return false, nil
	}
	var req stdconn.Request
	try.To(m.Decode(&req))

	me := try.To1(c.env.Keys.GetDID(c.MyDID))
	r := try.To1(stdconn.NewResponse(c.env.Keys, me.Verkey, &stdconn.Connection{
		DID:    me.DID,
		Verkey: me.Verkey,
		BoxKey: me.BoxKey,
	}, c.env.Now()))
	reply := try.To1(msg.New(msg.TypeConnResponse, c.ThreadID, r))

	// On a failed send the connection stays anonymous, so the request left
	// in the mailbox opens again on the next poll.
	c.Their = sec.Endpoint{DID: req.DID, Verkey: req.Verkey, BoxKey: req.BoxKey}
	if err := c.send(ctx, reply); err != nil {
		c.Their = sec.Endpoint{}
		return false, err
	}
	if err := c.saveTheir(); err != nil {
		c.Their = sec.Endpoint{}
		return false, err
	}
	try.To(c.State.Set(state.RequestReceived))
	try.To(c.State.Set(state.Accepted))
	glog.V(1).Infof("connection %s accepted by %s", c.SourceID, c.Their.DID)
	return true, nil
}

func (c *Connection) handleResponse(_ context.Context, m *msg.Msg) (ok bool, err error) {
	defer err2.Handle(&err, "connection response")

	if c.Role != Invitee || c.GetState() != state.RequestReceived {
		return false, nil
	}
	var r stdconn.Response
	try.To(m.Decode(&r))
	conn, err := r.Verify(c.Invitation.Verkey, c.env.Now())
	if err == nil && conn.DID != c.Invitation.DID {
		err = vcxerr.New(vcxerr.VerificationFailed, "response DID %s", conn.DID)
	}
	if err != nil {
		glog.Warningf("connection %s: ignore response: %v", c.SourceID, err)
		return true, nil
	}
	c.Their = sec.Endpoint{DID: conn.DID, Verkey: conn.Verkey, BoxKey: conn.BoxKey}
	try.To(c.saveTheir())
	try.To(c.State.Set(state.Accepted))
	glog.V(1).Infof("connection %s accepted", c.SourceID)
	return true, nil
}

func (c *Connection) handleProblemReport(_ context.Context, m *msg.Msg) (ok bool, err error) {
	glog.Warningf("connection %s: problem report from %s", c.SourceID, m.FromDID)
	return true, c.State.Set(state.Unfulfilled)
}
