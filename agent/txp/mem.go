package txp

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/findy-network/findy-vcx/agent/utils"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
)

// Mem is an in-memory Transport. The options inject the delivery faults an
// at-least-once transport has.
type Mem struct {
	sync.Mutex
	boxes map[string][]Message

	duplicates bool
	reorder    bool
	now        func() time.Time
}

type Option func(m *Mem)

// WithDuplicates delivers every message twice.
func WithDuplicates() Option {
	return func(m *Mem) { m.duplicates = true }
}

// WithReorder returns mailbox contents newest first.
func WithReorder() Option {
	return func(m *Mem) { m.reorder = true }
}

// WithClock sets the clock of the received timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Mem) { m.now = now }
}

func NewMem(opts ...Option) *Mem {
	m := &Mem{
		boxes: make(map[string][]Message),
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Mem) Send(ctx context.Context, to string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return vcxerr.Wrap(vcxerr.Timeout, err, "send")
	}
	if to == "" {
		return vcxerr.New(vcxerr.InvalidOption, "send: no receiver")
	}
	m.Lock()
	defer m.Unlock()

	n := 1
	if m.duplicates {
		n = 2
	}
	for i := 0; i < n; i++ {
		m.boxes[to] = append(m.boxes[to], Message{
			ID:       utils.UUID(),
			Data:     append([]byte(nil), data...),
			Received: m.now(),
		})
	}
	glog.V(5).Infof("%d bytes to %s", len(data), to)
	return nil
}

func (m *Mem) Receive(ctx context.Context, to string) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, vcxerr.Wrap(vcxerr.Timeout, err, "receive")
	}
	m.Lock()
	defer m.Unlock()

	box := m.boxes[to]
	msgs := make([]Message, len(box))
	copy(msgs, box)
	if m.reorder {
		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}
	}
	return msgs, nil
}

func (m *Mem) Ack(ctx context.Context, to string, ids ...string) error {
	if err := ctx.Err(); err != nil {
		return vcxerr.Wrap(vcxerr.Timeout, err, "ack")
	}
	m.Lock()
	defer m.Unlock()

	acked := make(map[string]bool, len(ids))
	for _, id := range ids {
		acked[id] = true
	}
	box := m.boxes[to][:0]
	for _, msg := range m.boxes[to] {
		if !acked[msg.ID] {
			box = append(box, msg)
		}
	}
	if len(box) == 0 {
		delete(m.boxes, to)
		return nil
	}
	m.boxes[to] = box
	return nil
}

// Purge removes messages older than ttl from all mailboxes and returns
// how many were removed.
func (m *Mem) Purge(ttl time.Duration) int {
	m.Lock()
	defer m.Unlock()

	limit := m.now().Add(-ttl)
	count := 0
	for to, msgs := range m.boxes {
		box := msgs[:0]
		for _, msg := range msgs {
			if msg.Received.Before(limit) {
				count++
				continue
			}
			box = append(box, msg)
		}
		if len(box) == 0 {
			delete(m.boxes, to)
		} else {
			m.boxes[to] = box
		}
	}
	return count
}

// Mailboxes returns the DIDs which have messages waiting.
func (m *Mem) Mailboxes() []string {
	m.Lock()
	defer m.Unlock()

	dids := make([]string, 0, len(m.boxes))
	for did := range m.boxes {
		dids = append(dids, did)
	}
	sort.Strings(dids)
	return dids
}
