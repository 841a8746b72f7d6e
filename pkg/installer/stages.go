package installer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"updater/pkg/archive"
	"updater/pkg/cache"
	"updater/pkg/downloader"
	"updater/pkg/fspath"
)

// ErrNotPublished is returned when the build file is missing on the server.
var ErrNotPublished = errors.New("file not published")

// Stage represents a single step in the installation pipeline.
type Stage func(ctx context.Context, plan *Plan) error

// Installer runs plans using d for downloads.
// Immutable
type Installer struct {
	d downloader.Downloader
}

// New creates an Installer.
func New(d downloader.Downloader) *Installer {
	return &Installer{d: d}
}

// DownloadStage retrieves the build file. An existing file is reused.
func (i *Installer) DownloadStage(ctx context.Context, plan *Plan) error {
	return cache.Ensure(ctx, plan.DownloadPath, func() error {
		part := fspath.Begin(plan.DownloadPath.String() + ".part")
		res, err := i.d.Download(ctx, downloader.Request{
			URL:            plan.File.URL,
			Destination:    part,
			ReportProgress: true,
		})
		if err != nil {
			return err
		}
		if res == nil {
			return fmt.Errorf("%s: %w", plan.File.URL, ErrNotPublished)
		}
		return os.Rename(part.String(), plan.DownloadPath.String())
	})
}

// ExtractStage unpacks the build file into the install directory, going
// through a temporary directory so that a partial extraction is never
// visible. Files that are not archives are copied as they are.
func (i *Installer) ExtractStage(ctx context.Context, plan *Plan) error {
	return cache.Ensure(ctx, plan.InstallPath, func() error {
		tmp := fspath.Begin(plan.InstallPath.String() + ".tmp").ForceDir(true)
		if err := os.RemoveAll(tmp.String()); err != nil {
			return err
		}
		if _, err := tmp.Prepare(); err != nil {
			return err
		}
		defer os.RemoveAll(tmp.String())

		if archive.Supported(plan.DownloadPath.Name()) {
			stats, err := archive.Extract(plan.DownloadPath, tmp, plan.Exclude)
			if err != nil {
				return err
			}
			slog.Debug("Extracted", "files", stats.Files, "dirs", stats.Dirs,
				"excluded", stats.Excluded, "rejected", stats.Rejected)
		} else {
			target := tmp.To(plan.DownloadPath.Name())
			if err := plan.DownloadPath.Copy(target, true); err != nil {
				return err
			}
			if err := target.Exec(); err != nil {
				return err
			}
		}

		return os.Rename(tmp.String(), plan.InstallPath.String())
	})
}

// Install runs every stage of plan. It does nothing when the build is
// already installed.
func (i *Installer) Install(ctx context.Context, plan *Plan) error {
	if plan.InstallPath.Exists() {
		slog.Debug("Already installed", "path", plan.InstallPath)
		return nil
	}

	stages := []struct {
		name string
		run  Stage
	}{
		{"download", i.DownloadStage},
		{"extract", i.ExtractStage},
	}
	for _, s := range stages {
		if err := s.run(ctx, plan); err != nil {
			return fmt.Errorf("%s stage failed: %w", s.name, err)
		}
	}

	slog.Info("Installation complete", "app", plan.App, "version", plan.File.Version, "path", plan.InstallPath)
	return nil
}
