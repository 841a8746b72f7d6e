package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"syscall"

	"updater/pkg/events"
)

var (
	// ErrNoConnection means the host could not be resolved or reached, or the
	// client is configured offline. Retrying is up to the caller.
	ErrNoConnection = errors.New("no connection")
	// ErrStopped is returned by a download that observed a stop request.
	ErrStopped = errors.New("download stopped")
	// ErrNotFound is returned by scheme handlers for missing resources. The
	// Manager and Client turn it into an absent result.
	ErrNotFound = errors.New("resource not found")
	// ErrUnclassified wraps transport failures that fit no other category.
	// They are also reported to the fault sink.
	ErrUnclassified = errors.New("unclassified transport failure")
)

// maxErrorBody bounds how much of an error response body is kept.
const maxErrorBody = 1 << 20

// HTTPError is a well-formed HTTP error response.
type HTTPError struct {
	Code int
	Body string
	URL  string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error (%d) %s on %s", e.Code, e.Body, e.URL)
}

// Classifier turns transport failures into typed errors.
type Classifier struct {
	// Sink receives unclassified failures. nil means events.DefaultSink.
	Sink events.FaultSink
}

// Classify maps err, raised while talking to url, to one of:
// an error wrapping ErrNoConnection for name resolution and routing failures;
// an *HTTPError when err carries a "Server returned <code> <text>: a: b: c"
// message and resp is available to read the error body from;
// err itself when it is already typed (stop, cancellation, HTTPError);
// otherwise an error wrapping ErrUnclassified, after reporting err to the sink.
func (c Classifier) Classify(err error, resp *http.Response, url string) error {
	if err == nil {
		return nil
	}

	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrNoConnection),
		errors.Is(err, ErrStopped),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrUnclassified),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &httpErr):
		return err
	}

	if isUnreachable(err) {
		return fmt.Errorf("%w: %w", ErrNoConnection, err)
	}

	if code, ok := parseServerReturned(err.Error()); ok && resp != nil {
		return &HTTPError{Code: code, Body: readBody(resp), URL: url}
	}

	c.report(err)
	return fmt.Errorf("%w: %w", ErrUnclassified, err)
}

func (c Classifier) report(err error) {
	if c.Sink != nil {
		c.Sink.Report(err)
		return
	}
	events.Report(err)
}

// FromResponse checks the status of resp. It returns nil for 2xx, ErrNotFound
// for 404 and an *HTTPError carrying the body for everything else.
func FromResponse(resp *http.Response, url string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return &HTTPError{Code: resp.StatusCode, Body: readBody(resp), URL: url}
}

func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH)
}

// parseServerReturned extracts the status code from messages of the form
// "Server returned <code> <text>: a: b: c". Exactly four colon-separated
// segments are required.
func parseServerReturned(msg string) (int, bool) {
	if !strings.HasPrefix(msg, "Server returned") {
		return 0, false
	}
	segments := strings.Split(msg, ":")
	if len(segments) != 4 {
		return 0, false
	}
	for _, seg := range segments[:2] {
		for _, field := range strings.Fields(seg) {
			code, err := strconv.Atoi(field)
			if err == nil && code >= 100 && code <= 599 {
				return code, true
			}
		}
	}
	return 0, false
}

func readBody(resp *http.Response) string {
	if resp == nil || resp.Body == nil {
		return ""
	}
	// A truncated body is still worth returning.
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return string(b)
}
