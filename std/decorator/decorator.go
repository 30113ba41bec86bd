// Package decorator has the message decorators the protocol messages share:
// the thread which ties the messages of one protocol run together, and the
// attachment which carries the anoncreds payloads.
package decorator

import (
	"encoding/base64"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
)

// Thread decorator. ID is the id of the protocol run, PID the parent run.
type Thread struct {
	ID          string `json:"thid,omitempty"`
	PID         string `json:"pthid,omitempty"`
	SenderOrder int    `json:"sender_order,omitempty"`
}

// AttachmentData carries the payload as base64.
type AttachmentData struct {
	Base64 string `json:"base64,omitempty"`
}

// Attachment decorator.
type Attachment struct {
	ID       string         `json:"@id,omitempty"`
	MimeType string         `json:"mime-type,omitempty"`
	Data     AttachmentData `json:"data"`
}

// NewAttachment builds a JSON attachment of the data.
func NewAttachment(id string, data []byte) Attachment {
	return Attachment{
		ID:       id,
		MimeType: "application/json",
		Data:     AttachmentData{Base64: base64.StdEncoding.EncodeToString(data)},
	}
}

// AttachmentBytes decodes the first attachment of the list.
func AttachmentBytes(as []Attachment) ([]byte, error) {
	if len(as) == 0 {
		return nil, vcxerr.New(vcxerr.InvalidJSON, "no attachment")
	}
	data, err := base64.StdEncoding.DecodeString(as[0].Data.Base64)
	if err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "attachment")
	}
	return data, nil
}

// NewThread returns the thread of id. A parent equal to id is dropped.
func NewThread(id, pid string) *Thread {
	t := &Thread{ID: id}
	if pid != id {
		t.PID = pid
	}
	return t
}

// CheckThread returns the thread of a received message. A message without a
// thread ID starts its own thread by its message ID.
func CheckThread(t *Thread, msgID string) *Thread {
	switch {
	case t == nil:
		t = &Thread{ID: msgID}
	case t.ID == "":
		t.ID = msgID
	}
	return t
}
