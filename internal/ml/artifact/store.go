package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ticketguard/scoring/internal/errs"
)

// Mirror is a remote copy of the artifact file, such as an object store
// bucket. Get returns an ArtifactNotFound error when no copy exists.
type Mirror interface {
	Put(ctx context.Context, data []byte) error
	Get(ctx context.Context) ([]byte, error)
}

// Store persists one artifact at a fixed path.
type Store struct {
	path   string
	mirror Mirror
	logger *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithMirror uploads every saved artifact to m and lets Restore fetch it
// back when the local file is missing.
func WithMirror(m Mirror) Option {
	return func(s *Store) { s.mirror = m }
}

// WithLogger sets the logger used for mirror failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore returns a store for the artifact at path.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{path: path, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the artifact location.
func (s *Store) Path() string { return s.path }

// Save writes the artifact atomically and then uploads it to the mirror.
// A mirror failure is logged and does not fail the save.
func (s *Store) Save(ctx context.Context, a *Artifact) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.Put(ctx, data); err != nil {
			s.logger.Warn("failed to mirror model artifact",
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// Load reads and decodes the artifact.
func (s *Store) Load(_ context.Context) (*Artifact, error) {
	return Load(s.path)
}

// Restore downloads the artifact from the mirror when the local file is
// missing. It reports whether a file was restored.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	if s.mirror == nil {
		return false, nil
	}
	if _, err := os.Stat(s.path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("stat artifact: %w", err)
	}

	restored, err := s.pull(ctx)
	if restored {
		s.logger.Info("restored model artifact from mirror", slog.String("path", s.path))
	}
	return restored, err
}

// Pull replaces the local file with the mirrored copy, for example after
// another process trained a new model. It reports whether a copy was
// written; without a mirror it does nothing.
func (s *Store) Pull(ctx context.Context) (bool, error) {
	if s.mirror == nil {
		return false, nil
	}
	return s.pull(ctx)
}

func (s *Store) pull(ctx context.Context) (bool, error) {
	data, err := s.mirror.Get(ctx)
	if err != nil {
		if errors.Is(err, errs.ErrArtifactNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("fetch mirrored artifact: %w", err)
	}
	if _, err := Decode(data); err != nil {
		return false, err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return false, err
	}
	return true, nil
}

// Save encodes a and writes it to path atomically, creating parent
// directories as needed.
func Save(path string, a *Artifact) error {
	data, err := Encode(a)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

// Load reads the artifact at path. A missing file is ArtifactNotFound; a
// path that cannot be read, or data that does not decode, is
// ArtifactCorrupt.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Wrap(errs.CodeArtifactNotFound, fmt.Sprintf("no model artifact at %s", path), err)
		}
		return nil, errs.Wrap(errs.CodeArtifactCorrupt, fmt.Sprintf("unreadable model artifact at %s", path), err)
	}
	return Decode(data)
}

// writeAtomic writes to a temporary file in the target directory and renames
// it over path, so readers see either the old or the new file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp artifact: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename artifact into place: %w", err)
	}
	return nil
}
