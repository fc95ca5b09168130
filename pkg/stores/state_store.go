package stores

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

const (
	stateDirName  = "_state"
	stateFilePfx  = "_"
	stateFileExt  = ".state"
	stateFileMode = 0o644
	stateDirMode  = 0o755
)

// StateStore persists small typed values across process invocations.
// Reading a key that was never written yields the type's zero value.
type StateStore interface {
	WriteString(key, value string) error
	WriteBool(key string, value bool) error
	ReadString(key string) (string, error)
	ReadBool(key string) (bool, error)
	Exists(key string) bool
	Keys() ([]string, error)
	Clear()
}

// CorruptStateError is returned when a persisted value cannot be parsed as
// the requested type.
type CorruptStateError struct {
	Key   string
	Path  string
	Value string
	Err   error
}

func (e *CorruptStateError) Error() string {
	where := e.Key
	if e.Path != "" {
		where = e.Path
	}
	return fmt.Sprintf("state %s holds unparsable value %q: %v", where, e.Value, e.Err)
}

func (e *CorruptStateError) Unwrap() error {
	return e.Err
}

// FormatBool renders a bool the way the state files hold it.
func FormatBool(v bool) string {
	if v {
		return "True"
	}
	return "False"
}

// parseBool accepts the persisted form in any case plus the strconv forms.
// Blank content is the zero value.
func parseBool(key, path, raw string) (bool, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(strings.ToLower(text))
	if err != nil {
		return false, &CorruptStateError{Key: key, Path: path, Value: raw, Err: err}
	}
	return v, nil
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\:*?"<>|`) {
		return fmt.Errorf("invalid state key %q", key)
	}
	return nil
}

// TempDirStore keeps one plain-text file per key under <dir>/_state.
type TempDirStore struct {
	dir    string
	logger zerolog.Logger
}

// NewTempDirStore creates a store rooted at the installation temp directory.
// Nothing is created on disk until the first write.
func NewTempDirStore(tempDir string, logger zerolog.Logger) *TempDirStore {
	return &TempDirStore{
		dir:    filepath.Join(tempDir, stateDirName),
		logger: logger.With().Str("component", "state_store").Logger(),
	}
}

// Dir returns the directory holding the state files.
func (s *TempDirStore) Dir() string {
	return s.dir
}

// Path returns the file a key is stored in.
func (s *TempDirStore) Path(key string) string {
	return filepath.Join(s.dir, stateFilePfx+key+stateFileExt)
}

// WriteString implements StateStore.
func (s *TempDirStore) WriteString(key, value string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, stateDirMode); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(s.Path(key), []byte(value), stateFileMode); err != nil {
		return fmt.Errorf("failed to write state %s: %w", key, err)
	}
	s.logger.Debug().Str("key", key).Msg("State written")
	return nil
}

// WriteBool implements StateStore.
func (s *TempDirStore) WriteBool(key string, value bool) error {
	return s.WriteString(key, FormatBool(value))
}

// ReadString implements StateStore.
func (s *TempDirStore) ReadString(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.Path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read state %s: %w", key, err)
	}
	return string(data), nil
}

// ReadBool implements StateStore.
func (s *TempDirStore) ReadBool(key string) (bool, error) {
	raw, err := s.ReadString(key)
	if err != nil {
		return false, err
	}
	return parseBool(key, s.Path(key), raw)
}

// Exists implements StateStore.
func (s *TempDirStore) Exists(key string) bool {
	if validKey(key) != nil {
		return false
	}
	info, err := os.Stat(s.Path(key))
	return err == nil && !info.IsDir()
}

// Keys implements StateStore.
func (s *TempDirStore) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list state directory: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, stateFilePfx) || !strings.HasSuffix(name, stateFileExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(name, stateFilePfx), stateFileExt))
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes the state directory. Failures are logged, never returned.
func (s *TempDirStore) Clear() {
	if err := os.RemoveAll(s.dir); err != nil {
		s.logger.Warn().Err(err).Str("dir", s.dir).Msg("Failed to clear state directory")
	}
}
