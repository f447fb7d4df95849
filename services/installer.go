package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"grid-keeper/internal/logger"
	"grid-keeper/internal/models"
	"grid-keeper/internal/utils"
)

/**
 * Result of an install check
 * @property {string} installDir - Absolute canonical install directory
 * @property {bool} firstRun - The archive was extracted during this call
 */
type InstallResult struct {
	InstallDir string
	FirstRun   bool
}

type Installer interface {
	EnsureInstalled(ctx context.Context, name string, spec models.InstallSpec) (InstallResult, error)
}

// Fetcher stores the body of a URL at a local path; utils.Downloader is the real one.
type Fetcher interface {
	GetFile(ctx context.Context, urlStr string, savePath string) error
}

type ArtifactInstaller struct {
	layout  Layout
	fetcher Fetcher
}

func NewArtifactInstaller(layout Layout, fetcher Fetcher) *ArtifactInstaller {
	return &ArtifactInstaller{
		layout:  layout,
		fetcher: fetcher,
	}
}

// State derives the install state from what exists on disk.
func (ai *ArtifactInstaller) State(spec *models.InstallSpec) models.InstallStatus {
	if spec == nil {
		return models.InstallNone
	}
	if exists(ai.layout.InstallPath(*spec)) {
		return models.InstallInstalled
	}
	if exists(ai.layout.ArchivePath(*spec)) {
		return models.InstallDownloaded
	}
	return models.InstallMissing
}

/**
 * Make sure the distribution of a service is present in its canonical directory
 * @param {context.Context} ctx - Checked before the download and during extraction
 * @param {string} name - Service name, for errors and logs
 * @param {models.InstallSpec} spec - What to install
 * @returns {InstallResult} Canonical dir and whether extraction happened now
 * @description
 * - Downloads the archive only when it is absent from the apps dir
 * - Extracts only when the canonical dir is absent, through a temporary dir and a rename
 * - An existing canonical dir is kept as is, even if it came from another version
 * @throws
 * - ErrDownload on transport failures and non-2xx answers
 * - ErrExtraction on corrupt archives or an unexpected layout; the cached archive is removed
 */
func (ai *ArtifactInstaller) EnsureInstalled(ctx context.Context, name string, spec models.InstallSpec) (InstallResult, error) {
	installDir := ai.layout.InstallPath(spec)
	result := InstallResult{InstallDir: installDir}

	if err := os.MkdirAll(ai.layout.AppsDir, 0755); err != nil {
		return result, newServiceError(name, PhaseInstall, ErrDownload, err)
	}

	archivePath := ai.layout.ArchivePath(spec)
	if !exists(archivePath) {
		if err := ctx.Err(); err != nil {
			return result, newServiceError(name, PhaseInstall, ErrDownload, err)
		}
		logger.Infof("Downloading '%s' for service '%s'", spec.ArtifactURL, name)
		start := time.Now()
		if err := ai.fetcher.GetFile(ctx, spec.ArtifactURL, archivePath); err != nil {
			return result, newServiceError(name, PhaseInstall, ErrDownload, err)
		}
		observePhase(name, "download", start)
	}

	if exists(installDir) {
		logger.Debugf("Service '%s' already installed in '%s'", name, installDir)
		return result, nil
	}

	start := time.Now()
	if err := ai.extract(ctx, spec, archivePath, installDir); err != nil {
		// an unusable archive is dropped so the next run downloads it again
		if ctx.Err() == nil {
			if rerr := os.Remove(archivePath); rerr == nil {
				err = fmt.Errorf("%w (cached archive '%s' removed)", err, archivePath)
			} else if !os.IsNotExist(rerr) {
				err = fmt.Errorf("%w (delete '%s' before retrying)", err, archivePath)
			}
		}
		return result, newServiceError(name, PhaseInstall, ErrExtraction, err)
	}
	observePhase(name, "extract", start)
	logger.Infof("Service '%s' installed in '%s'", name, installDir)
	result.FirstRun = true
	return result, nil
}

func (ai *ArtifactInstaller) extract(ctx context.Context, spec models.InstallSpec, archivePath, installDir string) error {
	format, err := spec.Format()
	if err != nil {
		return err
	}
	tmpDir, err := os.MkdirTemp(ai.layout.AppsDir, ".extract-"+spec.InstallDir+"-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	if err := utils.ExtractArchive(ctx, archivePath, format, tmpDir); err != nil {
		return fmt.Errorf("extract '%s': %w", archivePath, err)
	}

	top := spec.Version
	if top == "" {
		dirs, err := utils.TopLevelDirs(tmpDir)
		if err != nil {
			return err
		}
		if len(dirs) != 1 {
			return fmt.Errorf("archive '%s' has %d top-level directories, set 'version' to pick one", archivePath, len(dirs))
		}
		top = dirs[0]
	}
	extracted := filepath.Join(tmpDir, top)
	if fi, err := os.Stat(extracted); err != nil || !fi.IsDir() {
		return fmt.Errorf("archive '%s' did not produce directory '%s'", archivePath, top)
	}
	return os.Rename(extracted, installDir)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
