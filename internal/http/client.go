package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/isplink/portal/internal/middleware"
	"github.com/isplink/portal/internal/model"
)

const maxErrorBody = 64 << 10

// Validator is implemented by response bodies that check themselves at the boundary
type Validator interface {
	Validate() error
}

// Request describes one JSON API call
type Request struct {
	Method string
	Path   string
	Body   any
	// Public requests never trigger a token refresh; a 401 is reported as validation
	Public bool
	// Timeout bounds this call on top of the client timeout
	Timeout time.Duration
}

// Client sends JSON requests to the portal backend and normalises failures into *Error
type Client struct {
	baseURL string
	hc      *nethttp.Client
	logger  zerolog.Logger
}

// New creates a client for baseURL sending through transport
func New(baseURL string, transport nethttp.RoundTripper, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &nethttp.Client{Transport: transport, Timeout: timeout},
		logger:  logger,
	}
}

// Do sends req and decodes a successful JSON response into out (may be nil)
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	if req.Public {
		ctx = middleware.SkipRefresh(ctx)
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := nethttp.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.hc.Do(httpReq)
	if err != nil {
		c.logger.Debug().Err(err).
			Str("method", req.Method).
			Str("path", req.Path).
			Dur("duration", time.Since(started)).
			Msg("request failed without response")
		return &Error{Kind: KindNetwork, Message: MessageNetworkUnavailable, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(started)).
		Msg("api call")

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return decode(resp, out)
	}

	return errorFromResponse(resp, req.Public)
}

func decode(resp *nethttp.Response, out any) error {
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Status: resp.StatusCode, Message: MessageNetworkUnavailable, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		data = []byte("{}")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Kind: KindServer, Status: resp.StatusCode, Message: MessageServer, Err: fmt.Errorf("decode response: %w", err)}
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			return &Error{Kind: KindServer, Status: resp.StatusCode, Message: MessageServer, Err: err}
		}
	}
	return nil
}

func errorFromResponse(resp *nethttp.Response, public bool) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var eb model.ErrorResponse
	_ = json.Unmarshal(data, &eb)
	msg := eb.Text()
	if msg == "" {
		msg = strings.ToLower(nethttp.StatusText(resp.StatusCode))
	}

	switch {
	case resp.StatusCode == nethttp.StatusUnauthorized && !public:
		return &Error{Kind: KindSessionExpired, Status: resp.StatusCode, Message: MessageSessionExpired, Err: fmt.Errorf("server: %s", msg)}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &Error{Kind: KindValidation, Status: resp.StatusCode, Message: msg}
	default:
		return &Error{Kind: KindServer, Status: resp.StatusCode, Message: MessageServer, Err: fmt.Errorf("server: %s", msg)}
	}
}
