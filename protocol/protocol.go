/*
Package protocol has what the protocol state machines share. The state
machines themselves are in the sub packages: connection, issuecredential and
presentproof. The messages they exchange are in the std package.

A protocol object advances only when its owner calls an outbound operation
or UpdateState. UpdateState polls the mailbox of the connection once and
runs the object's handlers for the messages of its thread.
*/
package protocol

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/findy-network/findy-vcx/agent/anoncreds"
	"github.com/findy-network/findy-vcx/agent/pool"
	"github.com/findy-network/findy-vcx/agent/ssi"
	"github.com/findy-network/findy-vcx/agent/state"
	"github.com/findy-network/findy-vcx/agent/txp"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/std/msg"
)

// Env is the set of collaborators the protocol objects use. It is shared by
// all objects of one runtime.
type Env struct {
	Keys   *ssi.Keys
	Ledger pool.Ledger
	Crypto anoncreds.Crypto
	Txp    txp.Transport

	// Endpoint is put to our invitations, e.g. the mailbox URL.
	Endpoint string

	// Timeout is the default deadline of new objects, 0 is none.
	Timeout time.Duration

	Clock state.Clock
}

// Now returns the time by the Env's clock.
func (e *Env) Now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now()
}

// NewMachine returns a state machine with the Env's clock and timeout.
func (e *Env) NewMachine() *state.Machine {
	m := state.NewMachine()
	m.SetClock(e.Clock)
	m.SetTimeout(e.Timeout)
	return m
}

// Seen is the set of message ids an object has handled. It marshals as a
// sorted list so that the serialization of an object is stable.
type Seen map[string]struct{}

func (s Seen) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Seen) MarshalJSON() ([]byte, error) {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return json.Marshal(ids)
}

func (s *Seen) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = make(Seen, len(ids))
	for _, id := range ids {
		(*s)[id] = struct{}{}
	}
	return nil
}

// Base is embedded by every protocol object.
type Base struct {
	SourceID string         `json:"source_id"`
	ThreadID string         `json:"thread_id,omitempty"`
	State    *state.Machine `json:"state"`
	Seen     Seen           `json:"seen"`
}

// NewBase returns Base in the Initialized state. An empty sourceID gets a
// generated one.
func NewBase(env *Env, sourceID string) Base {
	if sourceID == "" {
		sourceID = utils.UUID()
	}
	return Base{
		SourceID: sourceID,
		State:    env.NewMachine(),
		Seen:     make(Seen),
	}
}

// Restore sets the runtime parts of a deserialized Base.
func (b *Base) Restore(env *Env) {
	if b.State == nil {
		b.State = state.NewMachine()
	}
	b.State.SetClock(env.Clock)
	if b.Seen == nil {
		b.Seen = make(Seen)
	}
}

func (b *Base) GetState() state.VcxState {
	return b.State.State()
}

// SetTimeout sets the object's deadline d from now.
func (b *Base) SetTimeout(d time.Duration) {
	b.State.SetTimeout(d)
}

// Inbound is a message received from the mailbox. TxpID is the transport's
// id of the delivery, which is needed for the ack.
type Inbound struct {
	TxpID string
	Msg   *msg.Msg
}

// Mailbox is the message access a protocol object needs from its
// connection.
type Mailbox interface {
	Inbox(ctx context.Context) ([]Inbound, error)
	Ack(ctx context.Context, ids ...string) error
}

// HandlerFunc handles one message of the object's thread. It returns false
// when the message doesn't fit the current state. An error leaves the
// message in the mailbox to be handled again by a later poll.
type HandlerFunc func(ctx context.Context, m *msg.Msg) (ok bool, err error)

// Processor maps the message types of a protocol to their handlers.
type Processor struct {
	Name     string
	Handlers map[string]HandlerFunc
}
