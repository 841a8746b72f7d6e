// Package downloader streams remote resources into files, publishing progress
// and honoring a per-task stop request, and classifies transport failures
// into typed errors.
package downloader

import (
	"context"
	"io"
	"net/http"
	"time"

	"updater/pkg/fspath"
)

// Downloader retrieves resources into files.
type Downloader interface {
	// Download fetches req.URL into req.Destination. It returns a nil Result
	// and a nil error when the resource does not exist.
	Download(ctx context.Context, req Request) (*Result, error)
}

// SchemeHandler opens resources for specific URI schemes (e.g. "https").
type SchemeHandler interface {
	// Open starts retrieving uri. The caller closes the returned body.
	// A missing resource is reported as ErrNotFound.
	Open(ctx context.Context, uri string, headers http.Header) (*Response, error)
	// Schemes returns the list of URI schemes this handler can process.
	Schemes() []string
}

// Response is an opened resource.
type Response struct {
	Body io.ReadCloser
	// Length is the announced size, or a value <= 0 when unknown.
	Length int64
	// LastModified is zero when the source does not report it.
	LastModified time.Time
}

// Request describes one download.
type Request struct {
	URL string
	// Destination is the target file, or the directory to place the file in
	// when UseOriginalName is set.
	Destination     fspath.Path
	UseOriginalName bool
	// ReportProgress publishes a ProgressEvent after every chunk.
	ReportProgress bool
	Headers        http.Header
}

// Result describes a completed download.
type Result struct {
	Path         fspath.Path
	Transferred  int64
	Total        int64
	LastModified time.Time
}
