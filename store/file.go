package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const fileFormatVersion = 1

type fileDocument struct {
	Version   int               `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
	Values    map[string]string `json:"values"`
}

// FileStore persists credentials as a single JSON document.
//
// Every mutation rewrites the document through a temporary file, fsync, and
// rename, so a crash leaves either the previous or the next document on disk.
// The file is created with mode 0600 inside a 0700 directory.
//
// Reads of a document that does not decode fail with [ErrCorrupt]. Writes move
// such a document aside to "<path>.corrupt" and start from an empty one.
type FileStore struct {
	mu   sync.Mutex
	path string
	log  logrus.FieldLogger
}

// NewFileStore returns a store backed by path. The file is created lazily on
// the first write.
func NewFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("file store: empty path")
	}
	return &FileStore{path: filepath.Clean(path), log: logrus.StandardLogger()}, nil
}

// WithLogger sets the logger used to report quarantined documents.
func (s *FileStore) WithLogger(logger logrus.FieldLogger) *FileStore {
	if logger != nil {
		s.log = logger
	}
	return s
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Get returns the value for key and whether it was present.
func (s *FileStore) Get(_ context.Context, key string) (string, bool, error) {
	if strings.TrimSpace(key) == "" {
		return "", false, ErrEmptyKey
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return "", false, err
	}
	v, ok := doc.Values[key]
	return v, ok, nil
}

// Set stores value under key.
func (s *FileStore) Set(ctx context.Context, key, value string) error {
	return s.SetMany(ctx, map[string]string{key: value})
}

// Delete removes key. Removing an absent key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrEmptyKey
	}
	return s.DeleteMany(ctx, key)
}

// SetMany stores every entry in one atomic file replacement.
func (s *FileStore) SetMany(_ context.Context, values map[string]string) error {
	for k := range values {
		if strings.TrimSpace(k) == "" {
			return ErrEmptyKey
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readForWriteLocked()
	if err != nil {
		return err
	}
	for k, v := range values {
		doc.Values[k] = v
	}
	return s.writeLocked(doc)
}

// DeleteMany removes every key in one atomic file replacement. When the
// document becomes empty the file is removed.
func (s *FileStore) DeleteMany(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readForWriteLocked()
	if err != nil {
		return err
	}
	changed := false
	for _, k := range keys {
		if _, ok := doc.Values[k]; ok {
			delete(doc.Values, k)
			changed = true
		}
	}
	if len(doc.Values) == 0 {
		if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %w", ErrUnavailable, s.path, err)
		}
		return nil
	}
	if !changed {
		return nil
	}
	return s.writeLocked(doc)
}

func (s *FileStore) readLocked() (*fileDocument, error) {
	doc := &fileDocument{Version: fileFormatVersion, Values: map[string]string{}}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return doc, nil
		}
		return nil, fmt.Errorf("%w: read %s: %w", ErrUnavailable, s.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrCorrupt, s.path, err)
	}
	if doc.Values == nil {
		doc.Values = map[string]string{}
	}
	return doc, nil
}

// readForWriteLocked is readLocked for mutations: a corrupt document is
// renamed to CorruptPath and replaced by an empty one.
func (s *FileStore) readForWriteLocked() (*fileDocument, error) {
	doc, err := s.readLocked()
	if !errors.Is(err, ErrCorrupt) {
		return doc, err
	}
	aside := s.CorruptPath()
	if renameErr := os.Rename(s.path, aside); renameErr != nil {
		return nil, fmt.Errorf("%w: move corrupt document aside: %w", ErrUnavailable, renameErr)
	}
	s.log.WithFields(logrus.Fields{
		"component": "file_store",
		"path":      s.path,
		"moved_to":  aside,
	}).WithError(err).Warn("credential file was corrupt; starting from an empty document")
	return &fileDocument{Version: fileFormatVersion, Values: map[string]string{}}, nil
}

// CorruptPath is where a document that failed to decode is moved.
func (s *FileStore) CorruptPath() string {
	return s.path + ".corrupt"
}

func (s *FileStore) writeLocked(doc *fileDocument) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: create dir: %w", ErrUnavailable, err)
	}

	doc.Version = fileFormatVersion
	doc.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("file store: encode: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op once the rename succeeded.
		_ = os.Remove(tmpName)
	}()

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: chmod temp file: %w", ErrUnavailable, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write temp file: %w", ErrUnavailable, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync temp file: %w", ErrUnavailable, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close temp file: %w", ErrUnavailable, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: replace %s: %w", ErrUnavailable, s.path, err)
	}
	return nil
}
