package downloader

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"updater/pkg/config"
	"updater/pkg/events"
)

// Manager dispatches downloads to scheme handlers and keeps track of the tasks
// in flight.
// Mutable
type Manager struct {
	cfg        config.ReadOnly
	bus        *events.Bus[events.ProgressEvent]
	classifier Classifier

	mu       sync.Mutex
	handlers map[string]SchemeHandler
	active   map[*Task]struct{}
}

var _ Downloader = (*Manager)(nil)

// NewManager creates a Manager with handlers for http, https and file URIs.
// Progress is published on bus; a nil bus gets a private one reporting to the
// default fault sink.
func NewManager(cfg config.ReadOnly, bus *events.Bus[events.ProgressEvent], opts ...Option) *Manager {
	if bus == nil {
		bus = events.NewBus[events.ProgressEvent](nil)
	}
	m := &Manager{
		cfg:      cfg,
		bus:      bus,
		handlers: make(map[string]SchemeHandler),
		active:   make(map[*Task]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Register(NewHTTPHandler(cfg.GetUserAgent(), m.classifier))
	m.Register(NewFileHandler())
	return m
}

// Option configures a Manager.
type Option func(*Manager)

// WithFaultSink sends unclassified transport failures to s instead of the
// process-wide sink.
func WithFaultSink(s events.FaultSink) Option {
	return func(m *Manager) {
		m.classifier.Sink = s
	}
}

// Register installs h for every scheme it reports, replacing earlier handlers.
func (m *Manager) Register(h SchemeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, scheme := range h.Schemes() {
		m.handlers[scheme] = h
	}
}

// Progress returns the bus progress events are published on.
func (m *Manager) Progress() *events.Bus[events.ProgressEvent] {
	return m.bus
}

// NewTask prepares a download without starting it. The returned Task can be
// stopped from another goroutine while Run is streaming.
func (m *Manager) NewTask(req Request) *Task {
	return newTask(m, req)
}

// Download runs req to completion on the calling goroutine.
func (m *Manager) Download(ctx context.Context, req Request) (*Result, error) {
	return m.NewTask(req).Run(ctx)
}

// Stop requests every running task to stop. It does nothing when no download
// is in flight.
func (m *Manager) Stop() {
	m.mu.Lock()
	tasks := make([]*Task, 0, len(m.active))
	for t := range m.active {
		tasks = append(tasks, t)
	}
	m.mu.Unlock()

	for _, t := range tasks {
		t.Stop()
	}
}

// Active returns the number of tasks currently running.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) track(t *Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[t] = struct{}{}
}

func (m *Manager) untrack(t *Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.active, t)
}

func (m *Manager) handlerFor(uri string) (SchemeHandler, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid uri: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	m.mu.Lock()
	handler, ok := m.handlers[scheme]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unsupported scheme: %s", scheme)
	}
	return handler, nil
}

// escapeURL percent-escapes spaces, which servers commonly reject verbatim.
func escapeURL(raw string) string {
	return strings.ReplaceAll(raw, " ", "%20")
}

// fileNameFromURL returns the last path segment of raw, unescaped.
func fileNameFromURL(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	name := raw[strings.LastIndexByte(raw, '/')+1:]
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return name
}
