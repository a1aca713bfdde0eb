package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"reviewdesk/review"
)

// ServiceKeyHeader carries the shared key that authorizes gateway calls.
const ServiceKeyHeader = "X-Service-Key"

const maxErrorBody = 4 << 10

var (
	// ErrMissingBaseURL is returned when a client is built without a server URL.
	ErrMissingBaseURL = errors.New("remote: base url required")
	// ErrInvalidRecordID is returned for ids that cannot be a single path segment.
	ErrInvalidRecordID = errors.New("remote: invalid record id")
)

// Client is a review.Gateway backed by another reviewdesk instance's
// record endpoints.
type Client struct {
	baseURL    *url.URL
	kind       string
	serviceKey string
	http       *http.Client
}

// NewClient returns a gateway for kind served at baseURL.
func NewClient(baseURL, kind, serviceKey string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrMissingBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("remote: parse base url: %w", err)
	}
	return &Client{
		baseURL:    u,
		kind:       kind,
		serviceKey: serviceKey,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// WithHTTPClient replaces the underlying client, keeping tracing on its
// transport.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc == nil {
		return c
	}
	cp := *hc
	base := cp.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	cp.Transport = otelhttp.NewTransport(base)
	c.http = &cp
	return c
}

func (c *Client) FetchRecords(ctx context.Context) ([]review.Record, error) {
	var resp RecordsResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint("api", "records", c.kind), nil, &resp); err != nil {
		return nil, err
	}
	records := make([]review.Record, 0, len(resp.Records))
	for _, p := range resp.Records {
		records = append(records, FromPayload(p))
	}
	return records, nil
}

func (c *Client) UpdateStatus(ctx context.Context, id string, status review.Status) (review.Result, error) {
	if !validRecordID(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRecordID, id)
	}
	var resp StatusResponse
	err := c.do(ctx, http.MethodPost, c.endpoint("api", "records", c.kind, id, "status"), StatusRequest{Status: string(status)}, &resp)
	if err != nil {
		return "", err
	}
	return review.Result(resp.Result), nil
}

func validRecordID(id string) bool {
	if strings.TrimSpace(id) == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

func (c *Client) endpoint(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return c.baseURL.JoinPath(escaped...).String()
}

func (c *Client) do(ctx context.Context, method, target string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return &review.TransportFailure{Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.serviceKey != "" {
		req.Header.Set(ServiceKeyHeader, c.serviceKey)
	}
	if actor := review.ActorFrom(ctx); actor != "" {
		req.Header.Set("X-Review-Actor", actor)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &review.TransportFailure{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &review.TransportFailure{Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &review.TransportFailure{Status: resp.StatusCode, Err: fmt.Errorf("remote: decode response: %w", err)}
	}
	return nil
}

// errorMessage prefers the envelope's message, then the raw body, then the
// status text.
func errorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var env ErrorEnvelope
	if json.Unmarshal(raw, &env) == nil && env.Error != "" {
		return env.Error
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}
