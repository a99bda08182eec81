package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/document-viewer/internal/core/domain"
	"github.com/kirillkom/document-viewer/internal/core/ports"
)

// Store keeps named string settings in a single YAML map file.
type Store struct {
	path string

	mu     sync.RWMutex
	values map[string]string
	seeds  map[string]string
}

// New loads path if it exists. seedAPIKey is returned for api_key while the file has no
// value of its own; it is never written back.
func New(path, seedAPIKey string) (*Store, error) {
	if path == "" {
		path = "./data/settings.yaml"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create settings dir: %w", err)
	}

	values, err := readFile(path)
	if err != nil {
		return nil, err
	}
	seeds := map[string]string{}
	if seed := strings.TrimSpace(seedAPIKey); seed != "" {
		seeds[ports.SettingAPIKey] = seed
	}
	return &Store{path: path, values: values, seeds: seeds}, nil
}

func (s *Store) Get(_ context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "settings get", errors.New("name is required"))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[name]; ok && v != "" {
		return v, nil
	}
	return s.seeds[name], nil
}

// Set stores value under name. An empty value removes the setting.
func (s *Store) Set(_ context.Context, name, value string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.WrapError(domain.ErrInvalidInput, "settings set", errors.New("name is required"))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.values)+1)
	for k, v := range s.values {
		next[k] = v
	}
	if value == "" {
		delete(next, name)
	} else {
		next[name] = value
	}
	if err := writeFile(s.path, next); err != nil {
		return err
	}
	s.values = next
	return nil
}

// APIKey implements ports.APIKeySource.
func (s *Store) APIKey() string {
	v, _ := s.Get(context.Background(), ports.SettingAPIKey)
	return v
}

func readFile(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	values := map[string]string{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("parse settings file %s: %w", path, err)
	}
	return values, nil
}

// writeFile replaces the file atomically.
func writeFile(path string, values map[string]string) error {
	raw, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
