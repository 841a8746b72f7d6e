// Package installer places application builds on disk. It downloads the
// published file and extracts it atomically into a versioned directory.
package installer

import (
	"fmt"
	"net/url"
	"path"
	"strconv"

	"updater/pkg/appmeta"
	"updater/pkg/config"
	"updater/pkg/fspath"
)

// Plan contains everything needed to install one build.
type Plan struct {
	App  string
	File appmeta.File
	// DownloadPath is where the published file is saved.
	DownloadPath fspath.Path
	// InstallPath is the final directory of the build.
	InstallPath fspath.Path
	// Exclude lists archive entries left out of the installation.
	Exclude []string
}

// NewPlan computes the paths for installing file of application app.
func NewPlan(cfg config.ReadOnly, app string, file appmeta.File, exclude ...string) (*Plan, error) {
	if file.URL == "" {
		return nil, fmt.Errorf("no url for %s %v", app, file.Version)
	}

	name := file.Name
	if name == "" {
		if u, err := url.Parse(file.URL); err == nil {
			name = path.Base(u.Path)
		}
	}
	name = fspath.Sanitize(name)
	if name == "" || name == "." || name == "/" {
		name = fmt.Sprintf("%s-%s.bin", app, version(file.Version))
	}

	folder := fspath.Sanitize(fmt.Sprintf("%s-%s", app, version(file.Version)))

	return &Plan{
		App:          app,
		File:         file,
		DownloadPath: fspath.Begin(cfg.GetDownloadDir()).To(name).ForceDir(false),
		InstallPath:  fspath.Begin(cfg.GetInstallDir()).To(folder).ForceDir(true),
		Exclude:      exclude,
	}, nil
}

func version(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
