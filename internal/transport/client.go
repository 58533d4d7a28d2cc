package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"codeberg.org/mutker/bluez-monitor/internal/errors"
	"github.com/klauspost/compress/s2"
)

// Version is reported in the User-Agent header.
var Version = "0.1.0"

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 4 << 10

// Config describes one push endpoint.
type Config struct {
	URL      string
	Username string
	Password string
	// Headers are set on every request in addition to the protobuf and
	// snappy headers.
	Headers map[string]string
	// HTTPClient is used for all requests. If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// Client posts snappy-compressed protobuf bodies to a single endpoint.
type Client struct {
	url        string
	username   string
	password   string
	headers    map[string]string
	httpClient *http.Client
}

// NewClient returns a Client for cfg. The URL is required.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New().WithMessage(errors.ErrInvalidConfig, "transport URL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	return &Client{
		url:        cfg.URL,
		username:   cfg.Username,
		password:   cfg.Password,
		headers:    headers,
		httpClient: httpClient,
	}, nil
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string {
	return c.url
}

// Post compresses body with the snappy block format and sends it. Any
// non-2xx response is an error carrying the status and response text.
func (c *Client) Post(ctx context.Context, body []byte) error {
	errFactory := errors.New()

	compressed := s2.EncodeSnappy(nil, body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(compressed))
	if err != nil {
		return errFactory.Wrap(ErrDelivery, err)
	}

	req.Header.Set("Content-Type", "application/x-protobuf")
	req.Header.Set("Content-Encoding", "snappy")
	req.Header.Set("User-Agent", "bluez-monitor/"+Version)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errFactory.Wrap(ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errFactory.WithData(ErrUnexpectedStatus,
			fmt.Sprintf("%s: %s", resp.Status, strings.TrimSpace(string(text))))
	}

	_, _ = io.Copy(io.Discard, resp.Body)

	return nil
}
