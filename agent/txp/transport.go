// Package txp is the message transport between DIDs. Delivery is
// at-least-once and unordered: a message stays in the receiver's mailbox
// until the receiver acks it, and the same payload may come more than once.
package txp

import (
	"context"
	"time"
)

// Message is one delivery in a mailbox. ID is the transport's id, a
// duplicate delivery of the same payload has an id of its own.
type Message struct {
	ID       string    `json:"id"`
	Data     []byte    `json:"data"`
	Received time.Time `json:"received"`
}

// Transport is the mailbox interface the protocol objects poll.
type Transport interface {
	Send(ctx context.Context, to string, data []byte) error

	// Receive returns the messages waiting in the mailbox of the DID. It
	// doesn't wait for new ones.
	Receive(ctx context.Context, to string) ([]Message, error)

	// Ack removes the messages from the mailbox. Unknown ids are ignored.
	Ack(ctx context.Context, to string, ids ...string) error
}
