package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/crimson-sun/whistle/internal/rules"
)

const (
	// SystemDir holds the config used by the installed service.
	SystemDir = "/etc/whistle"
	// UserConfigDir is the per-user config directory, relative to $HOME.
	UserConfigDir = ".config/whistle"
	// ConfigFile is the preferred file name.
	ConfigFile = "config.yaml"
)

// ErrNotFound is returned by Load when the file is missing and the store
// was opened with MustExist.
var ErrNotFound = errors.New("configuration file not found")

// Store reads and writes one configuration file.
// There is no locking: two processes saving the same file race and the last
// writer wins.
type Store struct {
	Path string
	// MustExist turns a missing file into ErrNotFound instead of defaults.
	MustExist bool
}

// NewStore returns a Store for path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Load reads the file. A missing file yields Default() unless MustExist is
// set. The document may be YAML or JSON; JSON is valid YAML.
func (s *Store) Load() (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, fs.ErrNotExist) {
		if s.MustExist {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, s.Path)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", s.Path, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", s.Path, err)
	}
	if cfg.Ignore == nil {
		cfg.Ignore = []rules.Record{}
	}
	return cfg, nil
}

// Save writes cfg atomically: it writes a temp file next to Path and
// renames it into place. Files ending in .json are written as JSON.
func (s *Store) Save(cfg *Config) error {
	data, err := s.encode(cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("config: create temp: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("config: write %s: %w", tmpName, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("config: chmod %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("config: close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("config: rename to %s: %w", s.Path, err)
	}
	return nil
}

// SaveRules replaces the ignore list on disk with recs, keeping every other
// setting as currently stored. Used when rules are learned mid-run.
func (s *Store) SaveRules(recs []rules.Record) error {
	cfg, err := s.Load()
	if errors.Is(err, ErrNotFound) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return err
	}
	cfg.Ignore = recs
	return s.Save(cfg)
}

func (s *Store) encode(cfg *Config) ([]byte, error) {
	if strings.EqualFold(filepath.Ext(s.Path), ".json") {
		data, err := json.MarshalIndent(cfg, "", "    ")
		if err != nil {
			return nil, fmt.Errorf("config: encode json: %w", err)
		}
		return append(data, '\n'), nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("config: encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("config: encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}
