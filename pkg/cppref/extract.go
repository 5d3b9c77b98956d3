package cppref

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// ExtractTarGz extracts a gzip-compressed corpus archive under
// targetDir, stripping the archive's single top-level directory the
// way tar --strip-components=1 would.
func ExtractTarGz(fs afero.Fs, data []byte, targetDir string) error {
	gzr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return errors.Errorf("creating gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Errorf("reading tar: %w", err)
		}

		components := splitPath(header.Name)
		if len(components) <= 1 {
			continue
		}
		target := filepath.Join(targetDir, filepath.Join(components[1:]...))

		switch header.Typeflag {
		case tar.TypeDir:
			if err := fs.MkdirAll(target, 0o755); err != nil {
				return errors.Errorf("creating directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := fs.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Errorf("creating directory %s: %w", filepath.Dir(target), err)
			}

			f, err := fs.OpenFile(target, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0o644)
			if err != nil {
				return errors.Errorf("creating file %s: %w", target, err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return errors.Errorf("writing file %s: %w", target, err)
			}
			f.Close()
		}
	}

	return nil
}

func splitPath(path string) []string {
	path = strings.TrimRight(path, "/")
	if path == "" {
		return nil
	}

	var components []string
	dir := path
	for dir != "." && dir != "/" && dir != "" {
		components = append([]string{filepath.Base(dir)}, components...)
		dir = filepath.Dir(dir)
	}
	return components
}
