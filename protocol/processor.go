package protocol

import (
	"context"

	"github.com/golang/glog"
	"github.com/lainio/err2"
)

// Process runs the handlers for the inbound messages of the object's thread
// and acks them. Messages of other threads are left in the mailbox.
//
// Messages are tried until none of the rest fits the state, so a batch which
// the transport delivered out of order is still handled in protocol order.
// Duplicates, unknown types and messages which never fit are acked and
// dropped.
func (p Processor) Process(ctx context.Context, b *Base, mb Mailbox, in []Inbound) (err error) {
	defer err2.Handle(&err, "%s process", p.Name)

	var (
		pending []Inbound
		handled []string
	)
	for _, im := range in {
		if im.Msg.ThreadID() == b.ThreadID {
			pending = append(pending, im)
		}
	}
	defer func() {
		if len(handled) == 0 {
			return
		}
		if ackErr := mb.Ack(ctx, handled...); ackErr != nil && err == nil {
			err = ackErr
		}
	}()

	for progress := true; progress && len(pending) > 0; {
		progress = false
		rest := pending[:0]
		for _, im := range pending {
			m := im.Msg
			if b.Seen.Has(m.ID) {
				glog.V(3).Infof("%s: duplicate %s %s", p.Name, m.Type, m.ID)
				handled = append(handled, im.TxpID)
				continue
			}
			if b.State.State().Terminal() {
				glog.V(3).Infof("%s: %s in terminal state %s", p.Name, m.Type, b.State.State())
				handled = append(handled, im.TxpID)
				continue
			}
			h, ok := p.Handlers[m.Type]
			if !ok {
				glog.Warningf("%s: no handler for %s", p.Name, m.Type)
				handled = append(handled, im.TxpID)
				continue
			}
			ok, err := h(ctx, m)
			if err != nil {
				return err
			}
			if !ok {
				rest = append(rest, im)
				continue
			}
			b.Seen[m.ID] = struct{}{}
			handled = append(handled, im.TxpID)
			progress = true
		}
		pending = rest
	}
	for _, im := range pending {
		glog.Warningf("%s: drop %s %s in state %s", p.Name, im.Msg.Type,
			im.Msg.ID, b.State.State())
		handled = append(handled, im.TxpID)
	}
	return nil
}

// UpdateState is the common poll: it checks the deadline, reads the mailbox
// once and runs Process. Terminal and expired objects don't poll.
func (p Processor) UpdateState(ctx context.Context, b *Base, mb Mailbox) (err error) {
	defer err2.Handle(&err, "%s update state", p.Name)

	if b.State.CheckExpired() || b.State.State().Terminal() {
		return nil
	}
	in, err := mb.Inbox(ctx)
	if err != nil {
		return err
	}
	return p.Process(ctx, b, mb, in)
}
