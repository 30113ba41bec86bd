// Package state holds the state vocabulary shared by all protocol objects
// and the monotonic transition guard they use.
package state

import (
	"encoding/json"
	"time"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
)

// VcxState is the state of a connection, credential or proof object. The
// numeric values are the ones libvcx bindings see.
type VcxState int

const (
	None VcxState = iota
	Initialized
	OfferSent
	RequestReceived
	Accepted
	Unfulfilled
	Expired
	Revoked
)

var stateNames = [...]string{
	"None", "Initialized", "OfferSent", "RequestReceived", "Accepted",
	"Unfulfilled", "Expired", "Revoked",
}

func (s VcxState) String() string {
	if s < None || int(s) >= len(stateNames) {
		return "Unknown"
	}
	return stateNames[s]
}

// Terminal states absorb all further transitions.
func (s VcxState) Terminal() bool {
	return s == Unfulfilled || s == Expired || s == Revoked
}

// rank gives the partial order: all terminal states share the top rank.
func (s VcxState) rank() int {
	if s.Terminal() {
		return int(Unfulfilled)
	}
	return int(s)
}

// ProofState is the outcome of proof verification.
type ProofState int

const (
	ProofUndefined ProofState = iota
	ProofVerified
	ProofInvalid
)

func (p ProofState) String() string {
	switch p {
	case ProofVerified:
		return "Verified"
	case ProofInvalid:
		return "Invalid"
	default:
		return "Undefined"
	}
}

// Clock is used for deadline checks, tests replace it.
type Clock func() time.Time

// Machine is the state and deadline of one protocol object. It never moves
// backwards.
type Machine struct {
	state    VcxState
	deadline int64 // unix nanos, 0 is no deadline
	clock    Clock
}

// NewMachine returns a machine in the Initialized state.
func NewMachine() *Machine {
	return &Machine{state: Initialized}
}

func (m *Machine) State() VcxState {
	return m.state
}

// SetClock overrides time.Now for the deadline checks.
func (m *Machine) SetClock(c Clock) {
	m.clock = c
}

func (m *Machine) now() time.Time {
	if m.clock != nil {
		return m.clock()
	}
	return time.Now()
}

// SetTimeout sets the deadline d from now. Zero or negative d clears it.
func (m *Machine) SetTimeout(d time.Duration) {
	if d <= 0 {
		m.deadline = 0
		return
	}
	m.deadline = m.now().Add(d).UnixNano()
}

func (m *Machine) Deadline() time.Time {
	if m.deadline == 0 {
		return time.Time{}
	}
	return time.Unix(0, m.deadline)
}

// Require fails with InvalidState if the current state is not one of ss.
func (m *Machine) Require(op string, ss ...VcxState) error {
	for _, s := range ss {
		if m.state == s {
			return nil
		}
	}
	return vcxerr.New(vcxerr.InvalidState, "%s in state %s", op, m.state)
}

// Set moves the machine to next. Backward moves fail with InvalidState and
// leave the state unchanged. Any move from a terminal state is ignored.
func (m *Machine) Set(next VcxState) error {
	if m.state.Terminal() {
		glog.V(3).Infof("state %s is terminal, ignore %s", m.state, next)
		return nil
	}
	if next.rank() < m.state.rank() {
		return vcxerr.New(vcxerr.InvalidState, "transition %s -> %s", m.state, next)
	}
	if next == Revoked && m.state != Accepted {
		return vcxerr.New(vcxerr.InvalidState, "revoke in state %s", m.state)
	}
	glog.V(4).Infof("state %s -> %s", m.state, next)
	m.state = next
	return nil
}

// CheckExpired moves the machine to Expired when its deadline has passed and
// it has not reached Accepted. It reports whether the machine is expired.
func (m *Machine) CheckExpired() bool {
	if m.state == Expired {
		return true
	}
	if m.deadline == 0 || m.state.rank() >= Accepted.rank() {
		return false
	}
	if m.now().UnixNano() < m.deadline {
		return false
	}
	glog.V(1).Infof("deadline passed in state %s", m.state)
	m.state = Expired
	return true
}

type machineJSON struct {
	State    VcxState `json:"state"`
	Deadline int64    `json:"deadline,omitempty"`
}

func (m *Machine) MarshalJSON() ([]byte, error) {
	return json.Marshal(machineJSON{State: m.state, Deadline: m.deadline})
}

func (m *Machine) UnmarshalJSON(data []byte) error {
	var mj machineJSON
	if err := json.Unmarshal(data, &mj); err != nil {
		return vcxerr.Wrap(vcxerr.InvalidJSON, err, "state")
	}
	if mj.State < None || mj.State > Revoked {
		return vcxerr.New(vcxerr.InvalidJSON, "state value %d", mj.State)
	}
	m.state = mj.State
	m.deadline = mj.Deadline
	return nil
}
