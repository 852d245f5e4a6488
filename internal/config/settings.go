package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnknownKey is returned for a settings key that does not exist.
var ErrUnknownKey = errors.New("unknown settings key")

// Settings keys, as stored in the settings file.
const (
	KeyServerName          = "serverName"
	KeyPublicFolderRootURI = "publicFolderRootUri"
	KeyLeftSourceURI       = "leftSourceUri"
	KeyRightSourceURI      = "rightSourceUri"
	KeyDeviceID            = "deviceId"
)

// Settings are the values persisted between runs.
type Settings struct {
	ServerName          string
	PublicFolderRootURI string
	LeftSourceURI       string
	RightSourceURI      string
	// DeviceID is sent as bearer token; generated on first load.
	DeviceID string
}

// Field binds a settings key to its accessors.
type Field struct {
	Key string
	Get func(*Settings) string
	Set func(*Settings, string)
}

// Fields lists every persisted setting in file order.
//
//nolint:gochecknoglobals // Read-only key table
var Fields = []Field{
	{
		Key: KeyServerName,
		Get: func(s *Settings) string { return s.ServerName },
		Set: func(s *Settings, v string) { s.ServerName = v },
	},
	{
		Key: KeyPublicFolderRootURI,
		Get: func(s *Settings) string { return s.PublicFolderRootURI },
		Set: func(s *Settings, v string) { s.PublicFolderRootURI = v },
	},
	{
		Key: KeyLeftSourceURI,
		Get: func(s *Settings) string { return s.LeftSourceURI },
		Set: func(s *Settings, v string) { s.LeftSourceURI = v },
	},
	{
		Key: KeyRightSourceURI,
		Get: func(s *Settings) string { return s.RightSourceURI },
		Set: func(s *Settings, v string) { s.RightSourceURI = v },
	},
	{
		Key: KeyDeviceID,
		Get: func(s *Settings) string { return s.DeviceID },
		Set: func(s *Settings, v string) { s.DeviceID = v },
	},
}

// FieldByKey returns the field for key.
func FieldByKey(key string) (Field, bool) {
	for _, f := range Fields {
		if f.Key == key {
			return f, true
		}
	}

	return Field{}, false
}

// DefaultSettings returns settings for a fresh install: the host name as
// server name and everything else empty.
func DefaultSettings() Settings {
	name, err := os.Hostname()
	if err != nil || name == "" {
		name = "lndp"
	}

	return Settings{ServerName: name}
}

// Store persists Settings as TOML. Unknown keys in the file are ignored and
// missing keys keep their defaults.
type Store struct {
	mu       sync.RWMutex
	path     string
	settings Settings
}

// OpenStore loads the settings at path, generating and saving a device id
// if there is none yet. A missing file is not an error.
func OpenStore(path string) (*Store, error) {
	s := &Store{path: path, settings: DefaultSettings()}

	if err := s.load(); err != nil {
		return nil, err
	}

	if s.settings.DeviceID == "" {
		s.settings.DeviceID = uuid.NewString()
		if err := s.save(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.settings
}

// Get returns the value of key.
func (s *Store) Get(key string) (string, error) {
	field, ok := FieldByKey(key)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return field.Get(&s.settings), nil
}

// Set stores value under key and persists immediately.
func (s *Store) Set(key, value string) error {
	field, ok := FieldByKey(key)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	return s.Update(func(settings *Settings) { field.Set(settings, value) })
}

// Update applies fn and persists the result.
func (s *Store) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.settings)

	return s.save()
}

// load reads the settings file (caller must not hold the lock concurrently).
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to read settings %s: %w", s.path, err)
	}

	var values map[string]any
	if err := toml.Unmarshal(data, &values); err != nil {
		return fmt.Errorf("failed to parse settings %s: %w", s.path, err)
	}

	for _, field := range Fields {
		if v, ok := values[field.Key].(string); ok {
			field.Set(&s.settings, v)
		}
	}

	return nil
}

// save writes the settings file (caller must hold the lock).
func (s *Store) save() error {
	values := make(map[string]string, len(Fields))
	for _, field := range Fields {
		values[field.Key] = field.Get(&s.settings)
	}

	data, err := toml.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	//nolint:mnd // Owner-only config directory
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("failed to create settings dir: %w", err)
	}

	//nolint:mnd // Owner-only settings file
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write settings %s: %w", s.path, err)
	}

	return nil
}
