package txp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/findy-network/findy-vcx/agent/vcxerr"
	"github.com/golang/glog"
	"github.com/lainio/err2"
	"github.com/lainio/err2/try"
)

// MailboxPath is the route prefix of the mailbox server.
const MailboxPath = "/mailbox"

// HTTPClient is the Transport over the mailbox server's REST API.
type HTTPClient struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *HTTPClient) url(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.BaseURL + MailboxPath + "/" + strings.Join(escaped, "/")
}

func (c *HTTPClient) do(req *http.Request, want int) (data []byte, err error) {
	defer err2.Handle(&err, "%s %s", req.Method, req.URL.Path)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, vcxerr.Wrap(vcxerr.Timeout, err, "mailbox unreachable")
	}
	defer resp.Body.Close()

	data = try.To1(io.ReadAll(resp.Body))
	if resp.StatusCode != want {
		return nil, vcxerr.New(statusKind(resp.StatusCode),
			"mailbox status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}

func statusKind(status int) vcxerr.Kind {
	switch status {
	case http.StatusNotFound:
		return vcxerr.NotFound
	case http.StatusBadRequest:
		return vcxerr.InvalidOption
	}
	return vcxerr.Unknown
}

func (c *HTTPClient) Send(ctx context.Context, to string, data []byte) (err error) {
	defer err2.Handle(&err, "send to %s", to)

	req := try.To1(http.NewRequestWithContext(ctx, http.MethodPost, c.url(to), bytes.NewReader(data)))
	req.Header.Set("Content-Type", "application/octet-stream")
	try.To1(c.do(req, http.StatusCreated))
	glog.V(5).Infof("%d bytes to %s", len(data), to)
	return nil
}

func (c *HTTPClient) Receive(ctx context.Context, to string) (msgs []Message, err error) {
	defer err2.Handle(&err, "receive %s", to)

	req := try.To1(http.NewRequestWithContext(ctx, http.MethodGet, c.url(to), nil))
	data := try.To1(c.do(req, http.StatusOK))
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, vcxerr.Wrap(vcxerr.InvalidJSON, err, "mailbox content")
	}
	return msgs, nil
}

func (c *HTTPClient) Ack(ctx context.Context, to string, ids ...string) (err error) {
	defer err2.Handle(&err, "ack %s", to)

	for _, id := range ids {
		req := try.To1(http.NewRequestWithContext(ctx, http.MethodDelete, c.url(to, id), nil))
		try.To1(c.do(req, http.StatusNoContent))
	}
	return nil
}

func (c *HTTPClient) String() string {
	return fmt.Sprintf("mailbox client %s", c.BaseURL)
}
