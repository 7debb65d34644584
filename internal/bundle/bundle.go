// Package bundle packs a repository into a single portable archive and
// restores it elsewhere. The archive is a zstd-compressed tar of the
// repository directory.
package bundle

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"promptvc/internal/audit"
	"promptvc/internal/store"
	"promptvc/internal/vcerrors"

	"github.com/klauspost/compress/zstd"
)

// CompressionLevel balances speed against archive size. Repositories
// are mostly small JSON and YAML files, so the default zstd level is
// plenty.
const CompressionLevel = 2

// Export writes the entire repository directory to w as a compressed
// archive. Paths inside the archive are relative to the repository
// directory, so "commits/abc.json" unpacks the same way everywhere.
func Export(s *store.Store, w io.Writer) error {
	if !s.Exists() {
		return vcerrors.NotInitialized("bundle export")
	}

	enc, err := zstd.NewWriter(w,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(CompressionLevel)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return fmt.Errorf("creating encoder: %w", err)
	}

	tw := tar.NewWriter(enc)
	root := s.Root()

	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return fmt.Errorf("tar header for %s: %w", rel, err)
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("writing header for %s: %w", rel, err)
		}
		if info.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", rel, err)
		}
		defer f.Close()
		if _, err := io.Copy(tw, f); err != nil {
			return fmt.Errorf("archiving %s: %w", rel, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return enc.Close()
}

// Import unpacks an archive produced by Export into a fresh repository
// at path. It refuses to touch a directory that is already a
// repository, and records the import in the restored audit trail.
func Import(path string, r io.Reader) error {
	root := filepath.Join(path, store.DirName)
	if _, err := os.Stat(root); err == nil {
		return vcerrors.AlreadyExists("bundle import", root)
	} else if !errors.Is(err, os.ErrNotExist) {
		return vcerrors.Storage("bundle import", err)
	}

	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	defer dec.Close()

	if err := os.MkdirAll(root, 0o755); err != nil {
		return vcerrors.Storage("bundle import", err)
	}

	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading archive: %w", err)
		}

		target, err := sanitizePath(root, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return vcerrors.Storage("bundle import", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return vcerrors.Storage("bundle import", err)
			}
			f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, hdr.FileInfo().Mode())
			if err != nil {
				return vcerrors.Storage("bundle import", err)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return fmt.Errorf("extracting %s: %w", hdr.Name, err)
			}
			if err := f.Close(); err != nil {
				return vcerrors.Storage("bundle import", err)
			}
		}
	}

	return recordImport(root, path)
}

// sanitizePath rejects entries that would escape the target directory.
func sanitizePath(root, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", fmt.Errorf("archive entry %q escapes target directory", name)
	}
	return filepath.Join(root, clean), nil
}

func recordImport(root, path string) error {
	log, err := audit.Open(filepath.Join(root, "audit.jsonl"))
	if err != nil {
		return err
	}
	defer log.Close()

	return log.Append(audit.Entry{
		Timestamp: time.Now(),
		Action:    audit.ActionImport,
		Message:   fmt.Sprintf("Imported bundle into %s", path),
		Author:    "system",
	})
}
