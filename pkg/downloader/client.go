package downloader

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"updater/pkg/config"
	"updater/pkg/events"
)

// Client performs small in-memory REST requests, such as metadata lookups.
// Immutable
type Client struct {
	cfg        config.ReadOnly
	client     *http.Client
	classifier Classifier
}

// NewClient creates a Client. Unclassified failures go to sink; nil means the
// process-wide sink.
func NewClient(cfg config.ReadOnly, sink events.FaultSink) *Client {
	return &Client{
		cfg:        cfg,
		client:     &http.Client{Timeout: cfg.GetTimeout()},
		classifier: Classifier{Sink: sink},
	}
}

// Fetch GETs url and returns the body. A 404 yields nil bytes and a nil error.
func (c *Client) Fetch(ctx context.Context, url string, headers http.Header) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, url, nil, headers)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := FromResponse(resp, url); err != nil {
		if err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classifier.Classify(err, nil, url)
	}
	return data, nil
}

// Post sends body to url and returns the response text. For a non-2xx
// response the text is returned together with an *HTTPError.
func (c *Client) Post(ctx context.Context, url, body string, headers http.Header) (string, error) {
	resp, err := c.do(ctx, http.MethodPost, url, strings.NewReader(body), headers)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	text := readBody(resp)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return text, &HTTPError{Code: resp.StatusCode, Body: text, URL: url}
	}
	return text, nil
}

// ContentLength asks the server for the size of url without downloading it.
// An unknown size is -1.
func (c *Client) ContentLength(ctx context.Context, url string) (int64, error) {
	resp, err := c.do(ctx, http.MethodHead, url, nil, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := FromResponse(resp, url); err != nil {
		return 0, err
	}
	return resp.ContentLength, nil
}

// DefaultCheckURL is the target of Check when none is given.
const DefaultCheckURL = "https://google.com"

// Check reports whether target can be reached. Only a missing route or an
// unresolvable host counts as unreachable; any answer from the server, even
// an error status, means the network is up. The offline setting is ignored.
func (c *Client) Check(ctx context.Context, target string) bool {
	if target == "" {
		target = DefaultCheckURL
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, escapeURL(target), nil)
	if err != nil {
		return false
	}
	if ua := c.cfg.GetUserAgent(); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		reachable := !isUnreachable(err)
		slog.Debug("Connectivity check failed", "url", target, "reachable", reachable, "err", err)
		return reachable
	}
	resp.Body.Close()
	return true
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader, headers http.Header) (*http.Response, error) {
	if c.cfg.IsOffline() {
		return nil, ErrNoConnection
	}

	url = escapeURL(url)
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if ua := c.cfg.GetUserAgent(); ua != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.classifier.Classify(err, nil, url)
	}
	return resp, nil
}
