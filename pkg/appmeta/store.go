package appmeta

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"updater/pkg/fspath"
)

// Store keeps the last manifest received for each application on disk, so
// that it can stand in when the server is unreachable. Manifests are loaded
// lazily and written atomically.
// Mutable
type Store struct {
	dir fspath.Path

	mu     sync.RWMutex
	loaded map[string]*App
}

// NewStore creates a Store writing under dir.
func NewStore(dir fspath.Path) *Store {
	return &Store{
		dir:    dir.ForceDir(true),
		loaded: make(map[string]*App),
	}
}

func (s *Store) file(id string) fspath.Path {
	return s.dir.To(fspath.Sanitize(id) + ".json")
}

// Get returns the stored manifest for id, or nil when none was saved.
func (s *Store) Get(id string) (*App, error) {
	s.mu.RLock()
	if app, ok := s.loaded[id]; ok {
		defer s.mu.RUnlock()
		return app, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if app, ok := s.loaded[id]; ok {
		return app, nil
	}

	data, err := s.file(id).ReadBytes()
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var app App
	if err := json.Unmarshal(data, &app); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	app.ID = id
	s.loaded[id] = &app
	return &app, nil
}

// Put saves app, replacing the previous manifest with the same ID.
func (s *Store) Put(app *App) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(app, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	target := s.file(app.ID)
	tmp := fspath.Begin(target.String() + ".tmp")
	if err := tmp.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmp.String(), target.String()); err != nil {
		os.Remove(tmp.String())
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	s.loaded[app.ID] = app
	return nil
}

// Forget drops the manifest for id from memory and disk.
func (s *Store) Forget(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.loaded, id)
	s.file(id).Delete()
}
