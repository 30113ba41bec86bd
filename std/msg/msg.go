// Package msg is the envelope of all protocol messages. The payload is
// message type specific and it's defined by the std sub packages.
package msg

import (
	"encoding/json"

	"github.com/findy-network/findy-common-go/dto"
	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/findy-network/findy-vcx/std/decorator"
	"github.com/lainio/err2"
)

// Version of the message envelope.
const Version = "1.0"

// Message types.
const (
	TypeConnRequest  = "connections/1.0/request"
	TypeConnResponse = "connections/1.0/response"

	TypeCredOffer   = "issue-credential/1.0/offer-credential"
	TypeCredRequest = "issue-credential/1.0/request-credential"
	TypeCredIssue   = "issue-credential/1.0/issue-credential"

	TypePresentationRequest = "present-proof/1.0/request-presentation"
	TypePresentation        = "present-proof/1.0/presentation"

	TypeAck           = "notification/1.0/ack"
	TypeProblemReport = "notification/1.0/problem-report"
)

// Msg is the envelope.
type Msg struct {
	Type    string            `json:"msg_type"`
	Version string            `json:"version"`
	ID      string            `json:"@id"`
	Thread  *decorator.Thread `json:"~thread,omitempty"`
	FromDID string            `json:"from_did,omitempty"`
	ToDID   string            `json:"to_did,omitempty"`
	Payload json.RawMessage   `json:"payload,omitempty"`
}

// New creates a message to the thread. An empty thread id starts a new
// thread by the message's own id.
func New(typ, thid string, payload any) (m *Msg, err error) {
	defer err2.Handle(&err, "new %s", typ)

	id := utils.UUID()
	if thid == "" {
		thid = id
	}
	return &Msg{
		Type:    typ,
		Version: Version,
		ID:      id,
		Thread:  decorator.NewThread(thid, ""),
		Payload: dto.ToJSONBytes(payload),
	}, nil
}

// Parse reads a message and makes sure it has a thread.
func Parse(data []byte) (*Msg, error) {
	var m Msg
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "message")
	}
	if m.Type == "" || m.ID == "" {
		return nil, vcxerr.New(vcxerr.InvalidJSON, "message without type or id")
	}
	if m.Version != Version {
		return nil, vcxerr.New(vcxerr.InvalidOption, "message version %q", m.Version)
	}
	m.Thread = decorator.CheckThread(m.Thread, m.ID)
	return &m, nil
}

// ThreadID returns the id of the protocol run the message belongs to.
func (m *Msg) ThreadID() string {
	if m.Thread == nil || m.Thread.ID == "" {
		return m.ID
	}
	return m.Thread.ID
}

// Decode reads the payload to v.
func (m *Msg) Decode(v any) error {
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return vcxerr.Wrap(vcxerr.InvalidJSON, err, m.Type)
	}
	return nil
}

func (m *Msg) JSON() []byte {
	return dto.ToJSONBytes(m)
}
