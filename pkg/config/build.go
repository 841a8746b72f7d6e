package config

import (
	"fmt"
	"runtime"
)

// Build information.
// These variables are set at build time using ldflags.
var (
	BuildVersion   = "unknown"
	BuildTimestamp = "unknown"
)

// GetBuildInfo returns a formatted string with build details.
func GetBuildInfo() string {
	return fmt.Sprintf("updater %s (%s) %s/%s", BuildVersion, BuildTimestamp, runtime.GOOS, runtime.GOARCH)
}

// DefaultUserAgent is sent with every request unless the config overrides it.
func DefaultUserAgent() string {
	return fmt.Sprintf("updater/%s (%s; %s)", BuildVersion, runtime.GOOS, runtime.GOARCH)
}
