package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Dannidrenovci/myriad-slides/core"
	"github.com/sirupsen/logrus"
)

// fsStore keeps uploaded files under basePath, one file per key.
type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based blob store.
func NewStore(basePath string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{basePath: basePath}, nil
}

// path maps a key to a file below basePath. Keys escaping it are rejected.
func (s *fsStore) path(key string) (string, error) {
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return "", fmt.Errorf("invalid blob key %q", key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

func (s *fsStore) PutBlob(ctx context.Context, key string, r io.Reader) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"key": key, "file_path": filePath})

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		log.WithError(err).Error("Failed to write blob")
		return err
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return err
	}
	log.WithField("data_length", n).Info("Blob stored successfully")
	return nil
}

func (s *fsStore) GetBlob(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(filePath)
	if errors.Is(err, fs.ErrNotExist) {
		logrus.WithField("key", key).Warn("Blob not found")
		return nil, core.ErrNotFound
	}
	return f, err
}

func (s *fsStore) DeleteBlob(ctx context.Context, key string) error {
	filePath, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
