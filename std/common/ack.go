// Package common has the messages the protocols share.
package common

// Ack acknowledgement struct
type Ack struct {
	Status string `json:"status,omitempty"`
}

// Ack statuses.
const (
	StatusOK      = "OK"
	StatusPending = "PENDING"
)
