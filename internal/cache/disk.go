package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
)

const (
	manifestName    = "manifest.json"
	manifestVersion = 1
	payloadExt      = ".cache"
)

var errManifestVersion = errors.New("unsupported manifest version")

// manifest indexes the entries of one resource class on disk.
type manifest struct {
	Version int                      `json:"version"`
	Entries map[string]manifestEntry `json:"entries"`
}

type manifestEntry struct {
	File      string    `json:"file,omitempty"`
	Inline    []byte    `json:"inline,omitempty"`
	WrittenAt time.Time `json:"written_at"`
	Validator string    `json:"validator,omitempty"`
}

func newManifest() *manifest {
	return &manifest{Version: manifestVersion, Entries: make(map[string]manifestEntry)}
}

// payloadName derives a stable file name from a cache key.
func payloadName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:16]) + payloadExt
}

func (s *Store[T]) classDir() string { return filepath.Join(s.opts.dir, s.class) }

func (s *Store[T]) manifestPath() string { return filepath.Join(s.classDir(), manifestName) }

// loadManifest returns an empty manifest when none exists yet.
func (s *Store[T]) loadManifest() (*manifest, error) {
	data, err := afero.ReadFile(s.opts.fs, s.manifestPath())
	if errors.Is(err, fs.ErrNotExist) {
		return newManifest(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m := newManifest()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("%w: %d", errManifestVersion, m.Version)
	}
	if m.Entries == nil {
		m.Entries = make(map[string]manifestEntry)
	}
	return m, nil
}

func (s *Store[T]) saveManifest(m *manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return writeFileAtomic(s.opts.fs, s.manifestPath(), data)
}

func (s *Store[T]) readPayload(e manifestEntry) ([]byte, error) {
	if e.File == "" {
		return e.Inline, nil
	}
	if filepath.Base(e.File) != e.File {
		return nil, fmt.Errorf("invalid payload file name %q", e.File)
	}
	return afero.ReadFile(s.opts.fs, s.payloadPath(e.File))
}

// writeFileAtomic writes data to a temporary file in the same directory and
// renames it over path so readers never observe a partial file.
func writeFileAtomic(fsys afero.Fs, path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp, err := afero.TempFile(fsys, dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fsys.Remove(name)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(name)
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := fsys.Rename(name, path); err != nil {
		_ = fsys.Remove(name)
		return fmt.Errorf("failed to rename %s: %w", path, err)
	}
	return nil
}
