package diffuser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/anicoll/diffuser-panel/internal/pkg/config"
)

var (
	// ErrTransport covers network level failures reaching the device.
	ErrTransport = errors.New("device unreachable")
	// ErrProtocol covers non-2xx answers and bodies that fail to parse.
	ErrProtocol = errors.New("unexpected device response")
	// ErrRejected is a well-formed answer refusing the request.
	ErrRejected = errors.New("device rejected request")
)

// Client talks to the diffuser's embedded HTTP server. The device is
// memory-constrained; callers are expected to keep at most one request per
// polling cycle in flight (see poller).
type Client struct {
	baseURL string
	httpc   *http.Client
	logger  *zap.Logger
}

func New(cfg *config.DeviceConfig) *Client {
	host := cfg.Host
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return &Client{
		baseURL: strings.TrimRight(host, "/"),
		httpc:   &http.Client{Timeout: cfg.Timeout},
		logger:  zap.L(),
	}
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return c.do(req, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %d", ErrProtocol, req.URL.Path, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocol, err)
	}
	return nil
}

// ack is the device's generic acknowledgment body.
type ack struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

func (a ack) toError() error {
	if a.Success != nil && !*a.Success {
		msg := a.Error
		if msg == "" {
			msg = a.Message
		}
		return fmt.Errorf("%w: %s", ErrRejected, msg)
	}
	return nil
}
