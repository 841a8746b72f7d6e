// Package config holds the settings shared by the downloader, the metadata
// client and the installer. Directories follow the XDG base directory layout.
package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

const (
	// DefaultChunkSize is the number of bytes read per streaming step.
	DefaultChunkSize = 4096
	// appDir is the directory name used under every XDG base directory.
	appDir = "updater"
)

// ReadOnly defines the read-only interface for Config.
// Immutable
type ReadOnly interface {
	GetCacheDir() string
	GetStateDir() string
	GetDownloadDir() string
	GetInstallDir() string
	GetManifestDir() string
	IsOffline() bool
	GetChunkSize() int
	GetUserAgent() string
	GetTimeout() time.Duration
	Freeze()
	Checkout() Writable
}

// Writable defines the writable interface for Config.
// Mutable
type Writable interface {
	ReadOnly
	SetCacheDir(string)
	SetStateDir(string)
	SetOffline(bool)
	SetChunkSize(int)
	SetUserAgent(string)
	SetTimeout(time.Duration)
}

// Config holds base directories and transfer settings.
// Mutable until frozen.
type Config struct {
	cacheDir string
	stateDir string

	downloadDir string
	installDir  string
	manifestDir string

	offline   bool
	chunkSize int
	userAgent string
	timeout   time.Duration

	frozen bool
	edited bool
}

var _ ReadOnly = (*Config)(nil)
var _ Writable = (*Config)(nil)

func (c *Config) GetCacheDir() string       { return c.cacheDir }
func (c *Config) GetStateDir() string       { return c.stateDir }
func (c *Config) GetDownloadDir() string    { return c.downloadDir }
func (c *Config) GetInstallDir() string     { return c.installDir }
func (c *Config) GetManifestDir() string    { return c.manifestDir }
func (c *Config) IsOffline() bool           { return c.offline }
func (c *Config) GetUserAgent() string      { return c.userAgent }
func (c *Config) GetTimeout() time.Duration { return c.timeout }

// GetChunkSize returns the streaming chunk size, never less than one byte.
func (c *Config) GetChunkSize() int {
	if c.chunkSize <= 0 {
		return DefaultChunkSize
	}
	return c.chunkSize
}

func (c *Config) mustBeEditable() {
	if c.frozen {
		panic("cannot modify frozen config")
	}
}

func (c *Config) SetCacheDir(s string) {
	c.mustBeEditable()
	c.cacheDir = s
	c.updateDerived()
}

func (c *Config) SetStateDir(s string) {
	c.mustBeEditable()
	c.stateDir = s
	c.updateDerived()
}

func (c *Config) SetOffline(v bool) {
	c.mustBeEditable()
	c.offline = v
}

func (c *Config) SetChunkSize(n int) {
	c.mustBeEditable()
	c.chunkSize = n
}

func (c *Config) SetUserAgent(s string) {
	c.mustBeEditable()
	c.userAgent = s
}

func (c *Config) SetTimeout(d time.Duration) {
	c.mustBeEditable()
	c.timeout = d
}

func (c *Config) Freeze() {
	c.frozen = true
}

func (c *Config) Checkout() Writable {
	if c.frozen {
		panic("cannot checkout from frozen config")
	}
	if c.edited {
		panic("config already checked out")
	}
	c.edited = true
	return c
}

func (c *Config) updateDerived() {
	c.downloadDir = filepath.Join(c.cacheDir, "downloads")
	c.installDir = filepath.Join(c.cacheDir, "apps")
	c.manifestDir = filepath.Join(c.stateDir, "manifests")
}

// Init initializes the configuration using XDG base directories.
func Init() (ReadOnly, error) {
	return New(filepath.Join(xdg.CacheHome, appDir), filepath.Join(xdg.StateHome, appDir)), nil
}

// New creates a configuration rooted at the given cache and state
// directories with default transfer settings.
func New(cacheDir, stateDir string) *Config {
	c := &Config{
		cacheDir:  cacheDir,
		stateDir:  stateDir,
		chunkSize: DefaultChunkSize,
		userAgent: DefaultUserAgent(),
	}
	c.updateDerived()
	return c
}
