package downloader

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Immutable
type httpHandler struct {
	client     *http.Client
	userAgent  string
	classifier Classifier
}

// NewHTTPHandler creates the handler for http and https URIs.
func NewHTTPHandler(userAgent string, classifier Classifier) SchemeHandler {
	return &httpHandler{
		client: &http.Client{
			Timeout: 0, // Handled by context
		},
		userAgent:  userAgent,
		classifier: classifier,
	}
}

func (h *httpHandler) Schemes() []string {
	return []string{"http", "https"}
}

func (h *httpHandler) Open(ctx context.Context, uri string, headers http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if h.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, h.classifier.Classify(err, nil, uri)
	}

	if err := FromResponse(resp, uri); err != nil {
		resp.Body.Close()
		return nil, err
	}

	var lastModified time.Time
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			lastModified = t
		}
	}

	return &Response{
		Body:         resp.Body,
		Length:       resp.ContentLength,
		LastModified: lastModified,
	}, nil
}
