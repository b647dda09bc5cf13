package model

import (
	"crypto/md5"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

const (
	classifierFile = "rain_classifier.bin"
	regressorFile  = "rain_regressor.bin"
)

// ClassifierArtifact bundles the rain classifier with the feature order and
// preprocessing state it was fitted against.
type ClassifierArtifact struct {
	Features []string
	Pre      Preprocessor
	Model    *GBMClassifier
}

// RegressorArtifact is the optional volume regressor. It is absent when
// training saw too few rainy days.
type RegressorArtifact struct {
	Features []string
	Pre      Preprocessor
	Model    *ForestRegressor
}

// Artifacts is a trained model pair as persisted by a Store.
type Artifacts struct {
	Classifier *ClassifierArtifact
	Regressor  *RegressorArtifact
}

// Store persists trained artifacts. Save replaces whatever was stored before,
// including removing a stale regressor when the new training did not produce
// one.
type Store interface {
	Save(a Artifacts) error
	Load() (Artifacts, error)
	IsTrained() bool
	Checksum() (string, error)
}

// FileStore keeps gob-encoded artifacts in a directory.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

func (s *FileStore) Save(a Artifacts) error {
	if a.Classifier == nil {
		return errors.New("model: refusing to save artifacts without a classifier")
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("model: creating artifact dir: %w", err)
	}
	if err := writeGob(filepath.Join(s.Dir, classifierFile), a.Classifier); err != nil {
		return err
	}
	regPath := filepath.Join(s.Dir, regressorFile)
	if a.Regressor == nil {
		if err := os.Remove(regPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("model: removing stale regressor: %w", err)
		}
		return nil
	}
	return writeGob(regPath, a.Regressor)
}

func (s *FileStore) Load() (Artifacts, error) {
	var a Artifacts
	var clf ClassifierArtifact
	if err := readGob(filepath.Join(s.Dir, classifierFile), &clf); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return a, ErrNotTrained
		}
		return a, err
	}
	a.Classifier = &clf

	var reg RegressorArtifact
	err := readGob(filepath.Join(s.Dir, regressorFile), &reg)
	switch {
	case err == nil:
		a.Regressor = &reg
	case errors.Is(err, fs.ErrNotExist):
		// Classifier-only training, nothing to load.
	default:
		return a, err
	}
	return a, nil
}

func (s *FileStore) IsTrained() bool {
	_, err := os.Stat(filepath.Join(s.Dir, classifierFile))
	return err == nil
}

// Checksum returns the MD5 digest of the classifier artifact, for display and
// change detection only.
func (s *FileStore) Checksum() (string, error) {
	f, err := os.Open(filepath.Join(s.Dir, classifierFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotTrained
		}
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("model: hashing classifier: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func writeGob(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("model: creating %s: %w", filepath.Base(path), err)
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("model: encoding %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("model: closing %s: %w", filepath.Base(path), err)
	}
	// Artifacts are not secrets but there is no reason for them to be
	// world-readable either.
	_ = os.Chmod(path, 0o600)
	return nil
}

func readGob(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := gob.NewDecoder(f).Decode(v); err != nil {
		return fmt.Errorf("model: decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}

// MemoryStore holds artifacts in memory, for tests and the API server's
// ephemeral mode.
type MemoryStore struct {
	mu sync.RWMutex
	a  *Artifacts
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Save(a Artifacts) error {
	if a.Classifier == nil {
		return errors.New("model: refusing to save artifacts without a classifier")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.a = &a
	return nil
}

func (s *MemoryStore) Load() (Artifacts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.a == nil {
		return Artifacts{}, ErrNotTrained
	}
	return *s.a, nil
}

func (s *MemoryStore) IsTrained() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.a != nil
}

func (s *MemoryStore) Checksum() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.a == nil {
		return "", ErrNotTrained
	}
	h := md5.New()
	if err := gob.NewEncoder(h).Encode(s.a.Classifier); err != nil {
		return "", fmt.Errorf("model: hashing classifier: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
