package txp_test

import (
	"context"
	"errors"
	"flag"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/findy-network/findy-vcx/agent/txp"
	"github.com/findy-network/findy-vcx/agent/txp/mailbox"
	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/lainio/err2/assert"
	"github.com/lainio/err2/try"
)

var ctx = context.Background()

func TestMain(m *testing.M) {
	_ = flag.Set("logtostderr", "true")
	os.Exit(m.Run())
}

func testTransport(t *testing.T, tr txp.Transport) {
	assert.PushTester(t)
	defer assert.PopTester()

	msgs := try.To1(tr.Receive(ctx, "did1"))
	assert.SLen(msgs, 0)

	try.To(tr.Send(ctx, "did1", []byte("first")))
	try.To(tr.Send(ctx, "did1", []byte("second")))
	try.To(tr.Send(ctx, "did2", []byte("other")))

	msgs = try.To1(tr.Receive(ctx, "did1"))
	assert.SLen(msgs, 2)
	assert.Equal(string(msgs[0].Data), "first")

	// messages stay until acked
	again := try.To1(tr.Receive(ctx, "did1"))
	assert.SLen(again, 2)

	try.To(tr.Ack(ctx, "did1", msgs[0].ID))
	msgs = try.To1(tr.Receive(ctx, "did1"))
	assert.SLen(msgs, 1)
	assert.Equal(string(msgs[0].Data), "second")

	// acking twice is fine
	try.To(tr.Ack(ctx, "did1", msgs[0].ID, msgs[0].ID))
	msgs = try.To1(tr.Receive(ctx, "did1"))
	assert.SLen(msgs, 0)

	msgs = try.To1(tr.Receive(ctx, "did2"))
	assert.SLen(msgs, 1)
}

func TestMem(t *testing.T) {
	testTransport(t, txp.NewMem())
}

func TestHTTPClient(t *testing.T) {
	s := mailbox.New(time.Minute)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	testTransport(t, txp.NewHTTPClient(ts.URL+"/"))
}

func TestMem_Faults(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	m := txp.NewMem(txp.WithDuplicates(), txp.WithReorder())
	try.To(m.Send(ctx, "did1", []byte("first")))
	try.To(m.Send(ctx, "did1", []byte("second")))

	msgs := try.To1(m.Receive(ctx, "did1"))
	assert.SLen(msgs, 4)
	assert.Equal(string(msgs[0].Data), "second")
	assert.Equal(string(msgs[1].Data), "second")
	assert.NotEqual(msgs[0].ID, msgs[1].ID)
	assert.Equal(string(msgs[3].Data), "first")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err := m.Receive(cancelled, "did1")
	assert.That(errors.Is(err, vcxerr.Timeout))
	err = m.Send(ctx, "", []byte("x"))
	assert.That(errors.Is(err, vcxerr.InvalidOption))
}

func TestMem_Purge(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	now := time.Unix(1_700_000_000, 0)
	m := txp.NewMem(txp.WithClock(func() time.Time { return now }))
	try.To(m.Send(ctx, "did1", []byte("old")))
	now = now.Add(time.Hour)
	try.To(m.Send(ctx, "did2", []byte("new")))

	assert.Equal(m.Purge(30*time.Minute), 1)
	assert.DeepEqual(m.Mailboxes(), []string{"did2"})
}

func TestHTTPClient_Errors(t *testing.T) {
	assert.PushTester(t)
	defer assert.PopTester()

	s := mailbox.New(0)
	ts := httptest.NewServer(s.Handler())
	c := txp.NewHTTPClient(ts.URL)

	err := c.Send(ctx, "did1", nil)
	assert.That(errors.Is(err, vcxerr.InvalidOption))

	ts.Close()
	err = c.Send(ctx, "did1", []byte("x"))
	assert.That(errors.Is(err, vcxerr.Timeout))
}
