package appmeta

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/singleflight"

	"updater/pkg/downloader"
	"updater/pkg/requester"
)

// Client reads manifests from an update server laid out as
// <base>/apps/<id>.json, with per-app objects under <base>/apps/<id>/.
type Client struct {
	factory   requester.Factory
	transport requester.Transport
	store     *Store

	group singleflight.Group
}

// NewClient creates a Client. store may be nil, in which case no manifest
// is kept for offline use.
func NewClient(base string, transport requester.Transport, store *Store) *Client {
	return &Client{
		factory:   requester.NewFactory(base),
		transport: transport,
		store:     store,
	}
}

// Get returns the manifest of application id. When the server has no
// manifest, a placeholder named defaultName is returned. When the server
// cannot be reached, the stored manifest is used if there is one; otherwise
// the connectivity error is returned. Concurrent calls for the same id share
// one request; the shared request outlives the cancellation of any single
// caller, and each caller stops waiting when its own ctx is done.
func (c *Client) Get(ctx context.Context, id, defaultName string) (*App, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(id, func() (any, error) {
		return c.get(shared, id, defaultName)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*App), nil
	}
}

func (c *Client) get(ctx context.Context, id, defaultName string) (*App, error) {
	data, err := c.factory.New().To("apps").To(id+".json").Get(ctx, c.transport)
	if errors.Is(err, downloader.ErrNoConnection) {
		return c.fallback(id, err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch manifest %s: %w", id, err)
	}
	if isNull(data) {
		slog.Debug("No manifest on server", "app", id)
		return Offline(id, defaultName), nil
	}

	app, err := decodeApp(id, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", id, err)
	}

	if c.store != nil {
		if err := c.store.Put(app); err != nil {
			slog.Warn("Failed to store manifest", "app", id, "error", err)
		}
	}
	return app, nil
}

func (c *Client) fallback(id string, cause error) (*App, error) {
	if c.store == nil {
		return nil, cause
	}
	stored, err := c.store.Get(id)
	if err != nil {
		slog.Warn("Failed to read stored manifest", "app", id, "error", err)
	}
	if stored == nil {
		return nil, cause
	}

	slog.Info("Using stored manifest", "app", id)
	app := *stored
	app.Offline = true
	return &app, nil
}

// Object decodes <base>/apps/<id>/<path>.json into out. It reports false
// when the server has nothing at that path.
func (c *Client) Object(ctx context.Context, id, path string, out any) (bool, error) {
	data, err := c.raw(ctx, id, path)
	if err != nil || data == nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("failed to parse %s/%s: %w", id, path, err)
	}
	return true, nil
}

func (c *Client) raw(ctx context.Context, id, path string) ([]byte, error) {
	data, err := c.factory.New().To("apps").To(id).To(path+".json").Get(ctx, c.transport)
	if err != nil {
		return nil, err
	}
	if isNull(data) {
		return nil, nil
	}
	return data, nil
}

func isNull(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
