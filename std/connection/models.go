// Package connection has the messages of the connection protocol. The
// invitation goes out of band, the request is anoncrypted to the inviter's
// box key, and the response comes through the pairwise pipe.
package connection

import (
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/mr-tron/base58"
)

// Invitation is the out of band message the inviter gives to the invitee.
type Invitation struct {
	ID       string `json:"@id"`
	Label    string `json:"label,omitempty"`
	DID      string `json:"did"`
	Verkey   string `json:"verkey"`
	BoxKey   string `json:"box_key"`
	Endpoint string `json:"endpoint,omitempty"`

	// RecipientKeys has the verkey in did:key form for the peers which
	// address keys that way.
	RecipientKeys []string `json:"recipientKeys,omitempty"`
}

// Validate checks that the invitation has the keys a connection request
// needs.
func (inv *Invitation) Validate() error {
	if inv.ID == "" {
		return vcxerr.New(vcxerr.InvalidOption, "invitation without id")
	}
	for _, k := range []string{inv.DID, inv.Verkey, inv.BoxKey} {
		if _, err := base58.Decode(k); err != nil || k == "" {
			return vcxerr.New(vcxerr.InvalidOption, "invitation key %q", k)
		}
	}
	return nil
}

// Request is the invitee's pairwise DID for the connection.
type Request struct {
	Label  string `json:"label,omitempty"`
	DID    string `json:"did"`
	Verkey string `json:"verkey"`
	BoxKey string `json:"box_key"`
}

// Connection is the inviter's pairwise DID for the connection.
type Connection struct {
	DID    string `json:"did"`
	Verkey string `json:"verkey"`
	BoxKey string `json:"box_key"`
}

// Response carries the inviter's Connection signed by the invitation key, so
// the invitee knows that the pairwise DID belongs to the one who invited.
type Response struct {
	ConnectionSignature *ConnectionSignature `json:"connection~sig"`
}
