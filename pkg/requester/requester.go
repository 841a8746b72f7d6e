// Package requester builds REST URLs and headers and sends them through a
// Transport, normally the downloader Client.
package requester

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Transport performs the actual requests.
type Transport interface {
	Fetch(ctx context.Context, url string, headers http.Header) ([]byte, error)
	Post(ctx context.Context, url, body string, headers http.Header) (string, error)
}

// Param is a query parameter or a header.
type Param struct {
	Key    string
	Value  string
	Escape bool
}

// Escapable returns a copy of p whose value is query-escaped when rendered.
func (p Param) Escapable() Param {
	p.Escape = true
	return p
}

func (p Param) value() string {
	if p.Escape {
		return url.QueryEscape(p.Value)
	}
	return p.Value
}

func (p Param) String() string {
	return p.Key + ": " + p.Value
}

// Bearer returns an Authorization header carrying token.
func Bearer(token string) Param {
	return Param{Key: "Authorization", Value: "Bearer " + token}
}

// ContentType returns a Content-Type header.
func ContentType(mime string) Param {
	return Param{Key: "Content-Type", Value: mime}
}

// ParseHeader parses "Key: value".
func ParseHeader(s string) (Param, error) {
	key, value, ok := strings.Cut(s, ":")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return Param{}, fmt.Errorf("invalid header %q", s)
	}
	return Param{Key: key, Value: strings.TrimSpace(value)}, nil
}

// Requester accumulates a URL path, query parameters and headers. Builder
// methods modify the receiver and return it for chaining.
// Mutable
type Requester struct {
	scheme  string
	path    string
	params  []Param
	headers []Param
}

// Begin starts a request on base. The scheme defaults to https; an explicit
// http:// prefix is kept.
func Begin(base string) *Requester {
	r := &Requester{scheme: "https"}
	if strings.HasPrefix(base, "http://") {
		r.scheme = "http"
	}
	base = strings.TrimPrefix(base, "https://")
	base = strings.TrimPrefix(base, "http://")
	r.path = strings.TrimSuffix(base, "/")
	return r
}

// HTTP switches the request to plain http.
func (r *Requester) HTTP() *Requester {
	r.scheme = "http"
	return r
}

// To appends a path segment. Duplicate slashes are collapsed.
func (r *Requester) To(segment string) *Requester {
	segment = strings.Trim(segment, "/")
	if segment == "" {
		return r
	}
	joined := r.path + "/" + segment
	for strings.Contains(joined, "//") {
		joined = strings.ReplaceAll(joined, "//", "/")
	}
	r.path = joined
	return r
}

// Param adds a query parameter.
func (r *Requester) Param(p Param) *Requester {
	r.params = append(r.params, p)
	return r
}

// Params adds several query parameters.
func (r *Requester) Params(ps ...Param) *Requester {
	r.params = append(r.params, ps...)
	return r
}

// Header adds a header.
func (r *Requester) Header(h Param) *Requester {
	r.headers = append(r.headers, h)
	return r
}

// URL renders the request URL. Parameters keep their insertion order.
func (r *Requester) URL() string {
	var sb strings.Builder
	sb.WriteString(r.scheme)
	sb.WriteString("://")
	sb.WriteString(r.path)
	for i, p := range r.params {
		if i == 0 {
			sb.WriteByte('?')
		} else {
			sb.WriteByte('&')
		}
		sb.WriteString(p.Key)
		sb.WriteByte('=')
		sb.WriteString(p.value())
	}
	return sb.String()
}

// Headers renders the accumulated headers.
func (r *Requester) Headers() http.Header {
	h := make(http.Header, len(r.headers))
	for _, p := range r.headers {
		h.Add(p.Key, p.Value)
	}
	return h
}

// Get fetches the URL. A missing resource yields nil bytes and a nil error.
func (r *Requester) Get(ctx context.Context, t Transport) ([]byte, error) {
	return t.Fetch(ctx, r.URL(), r.Headers())
}

// Post sends body to the URL and returns the response text.
func (r *Requester) Post(ctx context.Context, t Transport, body string) (string, error) {
	return t.Post(ctx, r.URL(), body, r.Headers())
}

// Factory creates Requesters sharing one base URL.
// Immutable
type Factory struct {
	base string
}

// NewFactory remembers base, including whether it is plain http.
func NewFactory(base string) Factory {
	return Factory{base: base}
}

// New starts a fresh Requester on the factory base.
func (f Factory) New() *Requester {
	return Begin(f.base)
}
