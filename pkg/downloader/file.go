package downloader

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
)

// fileHandler serves file:// URIs, used for local mirrors.
// Immutable
type fileHandler struct{}

// NewFileHandler creates the handler for file URIs.
func NewFileHandler() SchemeHandler {
	return fileHandler{}
}

func (fileHandler) Schemes() []string {
	return []string{"file"}
}

func (fileHandler) Open(_ context.Context, uri string, _ http.Header) (*Response, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid uri: %w", err)
	}

	f, err := os.Open(u.Path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", u.Path)
	}

	return &Response{
		Body:         f,
		Length:       info.Size(),
		LastModified: info.ModTime(),
	}, nil
}
