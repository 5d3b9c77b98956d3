package cppref

import (
	"context"
	"io"
	"net/http"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gitlab.com/tozd/go/errors"
)

// DefaultArchiveURL is the versioned documentation corpus snapshot the
// built-in heuristics are tuned against.
const DefaultArchiveURL = "https://github.com/PeterFeicht/cppreference-doc/releases/download/v20241110/cppreference-doc-20241110.tar.xz"

// Corpus locates the pieces of an extracted documentation archive.
type Corpus struct {
	// Root is the extraction directory.
	Root string

	// ReferenceBase is the directory holding the per-page HTML tree.
	ReferenceBase string

	// IndexPath is the XML symbol index.
	IndexPath string
}

// Page opens one documentation page relative to the reference base.
func (c *Corpus) Page(fs afero.Fs, page string) (io.ReadCloser, error) {
	return fs.Open(filepath.Join(c.ReferenceBase, page+".html"))
}

// acquire downloads and extracts the corpus archive unless an
// extracted tree is already present. Acquisition failures are fatal:
// without a corpus there is nothing to build.
func (b *Builder) acquire(ctx context.Context) (*Corpus, error) {
	logger := zerolog.Ctx(ctx)

	archivePath := filepath.Join(b.workdir, path.Base(b.archiveURL))
	extracted := filepath.Join(b.workdir, "cppreference")

	exists, err := afero.Exists(b.fs, filepath.Join(extracted, "Makefile"))
	if err != nil {
		return nil, errors.Errorf("checking extracted corpus: %w", err)
	}

	if !exists {
		if ok, _ := afero.Exists(b.fs, archivePath); !ok {
			logger.Info().Str("url", b.archiveURL).Msg("downloading documentation corpus")
			if err := b.download(ctx, archivePath); err != nil {
				return nil, err
			}
		}

		logger.Info().Str("archive", archivePath).Msg("extracting documentation corpus")
		if err := b.fs.MkdirAll(extracted, 0o755); err != nil {
			return nil, errors.Errorf("creating %s: %w", extracted, err)
		}
		if err := b.extract(ctx, archivePath, extracted); err != nil {
			return nil, err
		}
	}

	return b.locate(extracted)
}

func (b *Builder) download(ctx context.Context, archivePath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.archiveURL, nil)
	if err != nil {
		return errors.Errorf("building corpus request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return errors.Errorf("downloading corpus: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("downloading corpus: HTTP %d from %s", resp.StatusCode, b.archiveURL)
	}

	out, err := b.fs.Create(archivePath)
	if err != nil {
		return errors.Errorf("creating %s: %w", archivePath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return errors.Errorf("writing %s: %w", archivePath, err)
	}

	return nil
}

// extract unpacks the archive. Gzip archives are handled in-process;
// anything else (the published snapshots are .tar.xz) goes through the
// system tar.
func (b *Builder) extract(ctx context.Context, archivePath, targetDir string) error {
	if strings.HasSuffix(archivePath, ".tar.gz") || strings.HasSuffix(archivePath, ".tgz") {
		data, err := afero.ReadFile(b.fs, archivePath)
		if err != nil {
			return errors.Errorf("reading %s: %w", archivePath, err)
		}
		return ExtractTarGz(b.fs, data, targetDir)
	}

	abs, err := filepath.Abs(archivePath)
	if err != nil {
		abs = archivePath
	}
	cmd := exec.CommandContext(ctx, "tar", "-C", targetDir, "-x", "--strip-components=1", "-f", abs)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Errorf("extracting %s: %w: %s", archivePath, err, out)
	}

	return nil
}

// locate finds the reference base and the symbol index inside the
// extracted tree. The mirror directory under reference/ carries the
// site hostname, so it is globbed rather than hardcoded.
func (b *Builder) locate(extracted string) (*Corpus, error) {
	indexPath := filepath.Join(extracted, "index-functions-cpp.xml")
	if ok, _ := afero.Exists(b.fs, indexPath); !ok {
		return nil, errors.Errorf("corpus at %s has no symbol index", extracted)
	}

	iofs := afero.NewIOFS(afero.NewBasePathFs(b.fs, extracted))
	matches, err := doublestar.Glob(iofs, "reference/*/w/cpp/headers.html")
	if err != nil {
		return nil, errors.Errorf("locating reference base under %s: %w", extracted, err)
	}
	if len(matches) == 0 {
		return nil, errors.Errorf("no reference tree under %s", extracted)
	}

	return &Corpus{
		Root:          extracted,
		ReferenceBase: filepath.Join(extracted, filepath.Dir(filepath.Dir(matches[0]))),
		IndexPath:     indexPath,
	}, nil
}
