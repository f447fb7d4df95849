package utils

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"grid-keeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
)

type tarEntry struct {
	name     string
	body     string
	typeflag byte
	linkname string
}

func writeTar(t *testing.T, w io.Writer, entries []tarEntry) {
	t.Helper()
	tw := tar.NewWriter(w)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Typeflag: e.typeflag, Linkname: e.linkname, Mode: 0755}
		if e.typeflag == tar.TypeReg {
			hdr.Size = int64(len(e.body))
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if e.typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(e.body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
}

func tarGzFile(t *testing.T, entries []tarEntry) string {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	writeTar(t, gw, entries)
	require.NoError(t, gw.Close())
	path := filepath.Join(t.TempDir(), "a.tar.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func distribution() []tarEntry {
	return []tarEntry{
		{name: "search-7.1/", typeflag: tar.TypeDir},
		{name: "search-7.1/bin/", typeflag: tar.TypeDir},
		{name: "search-7.1/bin/search", body: "#!/bin/sh\necho search\n", typeflag: tar.TypeReg},
		{name: "search-7.1/bin/current", typeflag: tar.TypeSymlink, linkname: "search"},
	}
}

func TestExtractTarGz(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, ExtractArchive(context.Background(), tarGzFile(t, distribution()), models.ArchiveTarGz, dest))

	data, err := os.ReadFile(filepath.Join(dest, "search-7.1", "bin", "search"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "echo search")

	info, err := os.Stat(filepath.Join(dest, "search-7.1", "bin", "search"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0100, "executable bit must survive extraction")

	link, err := os.Readlink(filepath.Join(dest, "search-7.1", "bin", "current"))
	require.NoError(t, err)
	assert.Equal(t, "search", link)

	dirs, err := TopLevelDirs(dest)
	require.NoError(t, err)
	assert.Equal(t, []string{"search-7.1"}, dirs)
}

func TestExtractTarXz(t *testing.T) {
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	writeTar(t, xw, distribution())
	require.NoError(t, xw.Close())
	path := filepath.Join(t.TempDir(), "a.tar.xz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	dest := t.TempDir()
	require.NoError(t, ExtractArchive(context.Background(), path, models.ArchiveTarXz, dest))
	assert.FileExists(t, filepath.Join(dest, "search-7.1", "bin", "search"))
}

func TestExtractZip(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("broker-3.2/")
	require.NoError(t, err)
	fh := &zip.FileHeader{Name: "broker-3.2/bin/broker", Method: zip.Deflate}
	fh.SetMode(0755)
	w, err := zw.CreateHeader(fh)
	require.NoError(t, err)
	_, err = w.Write([]byte("broker"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	path := filepath.Join(t.TempDir(), "a.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	dest := t.TempDir()
	require.NoError(t, ExtractArchive(context.Background(), path, models.ArchiveZip, dest))
	data, err := os.ReadFile(filepath.Join(dest, "broker-3.2", "bin", "broker"))
	require.NoError(t, err)
	assert.Equal(t, "broker", string(data))
}

func TestExtractRejectsUnsafeEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []tarEntry
	}{
		{"parent traversal", []tarEntry{{name: "../evil", body: "x", typeflag: tar.TypeReg}}},
		{"nested traversal", []tarEntry{{name: "app/../../evil", body: "x", typeflag: tar.TypeReg}}},
		{"absolute symlink", []tarEntry{{name: "app/link", typeflag: tar.TypeSymlink, linkname: "/etc/passwd"}}},
		{"escaping symlink", []tarEntry{{name: "app/link", typeflag: tar.TypeSymlink, linkname: "../../outside"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			dest := filepath.Join(parent, "out")
			err := ExtractArchive(context.Background(), tarGzFile(t, tt.entries), models.ArchiveTarGz, dest)
			assert.ErrorIs(t, err, ErrUnsafePath)
			assert.NoFileExists(t, filepath.Join(parent, "evil"))
		})
	}
}

func TestExtractCorruptArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tar.gz")
	require.NoError(t, os.WriteFile(path, []byte("not an archive"), 0644))
	assert.Error(t, ExtractArchive(context.Background(), path, models.ArchiveTarGz, t.TempDir()))
}

func TestExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ExtractArchive(ctx, tarGzFile(t, distribution()), models.ArchiveTarGz, t.TempDir())
	assert.ErrorIs(t, err, context.Canceled)
}
