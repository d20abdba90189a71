package fingerprint

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rybolov/Can-Hax/errors"
)

// Store persists documents as JSON files.
type Store struct {
	threshold int
	logger    *slog.Logger
}

// NewStore creates a Store. threshold bounds validation errors on Load.
func NewStore(threshold int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{threshold: threshold, logger: logger}
}

// Save writes doc to path through a temporary file in the same directory,
// so a failed write never leaves a partial document behind.
func (s *Store) Save(_ context.Context, path string, doc *Document) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.WrapFatal(err, "Store", "Save", "create temp file")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return errors.WrapFatal(err, "Store", "Save", "chmod temp file")
	}
	if err := doc.Encode(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errors.WrapFatal(err, "Store", "Save", "close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.WrapFatal(err, "Store", "Save", "rename into place")
	}

	s.logger.Info("Fingerprint saved", "path", path, "identifiers", len(doc.Templates))
	return nil
}

// Load reads and validates the document at path.
func (s *Store) Load(_ context.Context, path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapFatal(errors.ErrInputMissing, "Store", "Load", "open "+path+": "+err.Error())
	}
	defer f.Close()

	return Decode(f, s.threshold, s.logger.With("path", path))
}
