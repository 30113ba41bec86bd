package msg

import (
	"errors"
	"testing"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

func TestMsg(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	type payload struct {
		Comment string `json:"comment"`
	}
	m := try.To1(New(TypeCredOffer, "", payload{"hello"}))
	assert.Equal(m.ThreadID(), m.ID)

	reply := try.To1(New(TypeCredRequest, m.ThreadID(), payload{"reply"}))
	assert.Equal(reply.ThreadID(), m.ID)
	assert.NotEqual(reply.ID, m.ID)

	got := try.To1(Parse(reply.JSON()))
	assert.Equal(got.Type, TypeCredRequest)
	assert.Equal(got.ThreadID(), m.ID)
	var p payload
	try.To(got.Decode(&p))
	assert.Equal(p.Comment, "reply")

	_, err := Parse([]byte(`{"msg_type":"x","@id":"1","version":"2.0"}`))
	assert.That(errors.Is(err, vcxerr.InvalidOption))
	_, err = Parse([]byte(`not json`))
	assert.That(errors.Is(err, vcxerr.InvalidJSON))

	// a message without thread starts its own
	got = try.To1(Parse([]byte(`{"msg_type":"x","@id":"1","version":"1.0"}`)))
	assert.Equal(got.ThreadID(), "1")
}
