package state

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

func TestMachine_Set(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	m := NewMachine()
	assert.NoError(m.Set(OfferSent))
	assert.NoError(m.Set(RequestReceived))
	assert.NoError(m.Set(Accepted))

	err := m.Set(OfferSent)
	assert.That(errors.Is(err, vcxerr.InvalidState))
	assert.Equal(m.State(), Accepted)

	assert.NoError(m.Set(Revoked))
	assert.Equal(m.State(), Revoked)

	// terminal absorbs
	assert.NoError(m.Set(Accepted))
	assert.NoError(m.Set(Unfulfilled))
	assert.Equal(m.State(), Revoked)
}

func TestMachine_RevokeNeedsAccepted(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	m := NewMachine()
	assert.NoError(m.Set(OfferSent))
	err := m.Set(Revoked)
	assert.That(errors.Is(err, vcxerr.InvalidState))
	assert.Equal(m.State(), OfferSent)
}

func TestMachine_Monotonic(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	all := []VcxState{None, Initialized, OfferSent, RequestReceived,
		Accepted, Unfulfilled, Expired, Revoked}
	for _, from := range all {
		for _, to := range all {
			m := &Machine{state: from}
			_ = m.Set(to)
			assert.That(m.State().rank() >= from.rank(),
				"%s -> %s moved backwards", from, to)
		}
	}
}

func TestMachine_CheckExpired(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	now := time.Unix(1000, 0)
	m := NewMachine()
	m.SetClock(func() time.Time { return now })
	m.SetTimeout(time.Second)
	assert.That(!m.CheckExpired())

	now = now.Add(2 * time.Second)
	assert.That(m.CheckExpired())
	assert.Equal(m.State(), Expired)
	assert.NoError(m.Set(Accepted))
	assert.Equal(m.State(), Expired)

	a := &Machine{state: Accepted, deadline: 1}
	assert.That(!a.CheckExpired())
	assert.Equal(a.State(), Accepted)
}

func TestMachine_JSON(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	m := &Machine{state: RequestReceived, deadline: 42}
	data := try.To1(json.Marshal(m))

	var m2 Machine
	assert.NoError(json.Unmarshal(data, &m2))
	assert.Equal(m2.State(), RequestReceived)
	assert.Equal(string(try.To1(json.Marshal(&m2))), string(data))

	assert.Error(json.Unmarshal([]byte(`{"state":42}`), &m2))
}

func TestStrings(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	assert.Equal(Accepted.String(), "Accepted")
	assert.Equal(VcxState(77).String(), "Unknown")
	assert.Equal(ProofVerified.String(), "Verified")
	assert.Equal(ProofState(9).String(), "Undefined")
}
