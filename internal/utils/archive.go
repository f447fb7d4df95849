package utils

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"grid-keeper/internal/models"

	"github.com/ulikunitz/xz"
)

var ErrUnsafePath = errors.New("path escapes extraction root")

/**
 * Extract an archive into destDir
 * @param {context.Context} ctx - Checked between entries
 * @param {string} archivePath - Archive file
 * @param {models.ArchiveFormat} format - tar.gz, tar.xz or zip
 * @param {string} destDir - Target directory, created if missing
 * @returns {error} Corrupt data, unsupported entries or entries escaping destDir
 */
func ExtractArchive(ctx context.Context, archivePath string, format models.ArchiveFormat, destDir string) error {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return err
	}
	switch format {
	case models.ArchiveTarGz, models.ArchiveTarXz:
		return extractTar(ctx, archivePath, format, destDir)
	case models.ArchiveZip:
		return extractZip(ctx, archivePath, destDir)
	}
	return fmt.Errorf("unsupported archive format '%s'", format)
}

func extractTar(ctx context.Context, archivePath string, format models.ArchiveFormat, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader
	br := bufio.NewReader(f)
	if format == models.ArchiveTarGz {
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gzr.Close()
		r = gzr
	} else {
		xzr, err := xz.NewReader(br)
		if err != nil {
			return fmt.Errorf("xz reader: %w", err)
		}
		r = xzr
	}

	tr := tar.NewReader(r)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("tar read: %w", err)
		}
		dstPath, err := joinRoot(destDir, hdr.Name)
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", hdr.Name, err)
		}
		if dstPath == destDir {
			continue
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dstPath, dirMode(hdr.FileInfo().Mode())); err != nil {
				return err
			}
		case tar.TypeReg, tar.TypeRegA:
			if err := writeFile(dstPath, tr, hdr.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err := makeSymlink(destDir, dstPath, hdr.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			target, err := joinRoot(destDir, hdr.Linkname)
			if err != nil {
				return fmt.Errorf("invalid hardlink %q: %w", hdr.Linkname, err)
			}
			if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
				return err
			}
			_ = os.RemoveAll(dstPath)
			if err := os.Link(target, dstPath); err != nil {
				return fmt.Errorf("hardlink %s -> %s: %w", dstPath, target, err)
			}
		default:
			// pax global headers, devices and fifos are not part of a distribution
			continue
		}
	}
}

func extractZip(ctx context.Context, archivePath string, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("zip reader: %w", err)
	}
	defer zr.Close()

	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		dstPath, err := joinRoot(destDir, zf.Name)
		if err != nil {
			return fmt.Errorf("invalid path %q: %w", zf.Name, err)
		}
		if dstPath == destDir {
			continue
		}
		mode := zf.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(dstPath, dirMode(mode)); err != nil {
				return err
			}
		case mode&os.ModeSymlink != 0:
			linkname, err := readZipEntry(zf)
			if err != nil {
				return err
			}
			if err := makeSymlink(destDir, dstPath, linkname); err != nil {
				return err
			}
		default:
			rc, err := zf.Open()
			if err != nil {
				return fmt.Errorf("zip open %s: %w", zf.Name, err)
			}
			err = writeFile(dstPath, rc, mode.Perm())
			rc.Close()
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func readZipEntry(zf *zip.File) (string, error) {
	rc, err := zf.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	b, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// TopLevelDirs lists the directories directly under root.
func TopLevelDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	return dirs, nil
}

func dirMode(mode os.FileMode) os.FileMode {
	return mode.Perm() | 0700
}

func writeFile(dstPath string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0644
	}
	f, err := os.OpenFile(dstPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode|0200)
	if err != nil {
		return err
	}
	_, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", dstPath, copyErr)
	}
	return closeErr
}

// makeSymlink refuses absolute targets and targets resolving outside root.
func makeSymlink(root, dstPath, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("symlink %s -> %s: %w", dstPath, linkname, ErrUnsafePath)
	}
	resolved := filepath.Join(filepath.Dir(dstPath), linkname)
	if !within(root, resolved) {
		return fmt.Errorf("symlink %s -> %s: %w", dstPath, linkname, ErrUnsafePath)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return err
	}
	_ = os.RemoveAll(dstPath)
	return os.Symlink(linkname, dstPath)
}

func joinRoot(root, rel string) (string, error) {
	rel = strings.TrimPrefix(filepath.FromSlash(rel), string(filepath.Separator))
	rel = filepath.Clean(rel)
	if rel == "." {
		return root, nil
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", ErrUnsafePath
	}
	return filepath.Join(root, rel), nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
