// Package settings persists the user toggles that survive restarts. The
// store is a small YAML file; edits made to it by other processes are picked
// up through a file watcher.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/SUNET/go-esign/pkg/logging"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// TestModeKey is the name under which the test mode flag is stored.
const TestModeKey = "SIGN_XML_TESTING_MODE"

type fileContents struct {
	TestMode bool `yaml:"SIGN_XML_TESTING_MODE"`
}

// Store holds the persisted test mode flag.
type Store struct {
	path   string
	logger logging.Logger

	mu        sync.Mutex
	testMode  bool
	listeners []func(bool)
	watcher   *fsnotify.Watcher
}

// Open loads the store at path. A missing file yields defaultTestMode and is
// created on the first change.
func Open(path string, defaultTestMode bool, logger logging.Logger) (*Store, error) {
	s := &Store{
		path:     path,
		logger:   logging.OrDefault(logger),
		testMode: defaultTestMode,
	}
	on, err := s.read()
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		s.testMode = on
	}
	return s, nil
}

func (s *Store) read() (bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return false, err
	}
	var c fileContents
	if err := yaml.Unmarshal(data, &c); err != nil {
		return false, fmt.Errorf("failed to parse settings file: %w", err)
	}
	return c.TestMode, nil
}

// write replaces the file atomically.
func (s *Store) write(on bool) error {
	data, err := yaml.Marshal(fileContents{TestMode: on})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".settings-*")
	if err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return os.Rename(tmp.Name(), s.path)
}

// Path returns the settings file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) TestMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.testMode
}

// SetTestMode persists the flag and notifies listeners when it changes.
func (s *Store) SetTestMode(on bool) error {
	s.mu.Lock()
	if err := s.write(on); err != nil {
		s.mu.Unlock()
		return err
	}
	changed := s.testMode != on
	s.testMode = on
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()

	if changed {
		s.logger.Info(TestModeKey, logging.F("value", onOff(on)))
		for _, fn := range listeners {
			fn(on)
		}
	}
	return nil
}

// Toggle flips the flag and returns the new value.
func (s *Store) Toggle() (bool, error) {
	s.mu.Lock()
	on := !s.testMode
	s.mu.Unlock()
	return on, s.SetTestMode(on)
}

// OnChange registers fn to be called with every new value.
func (s *Store) OnChange(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// Watch starts following external edits of the settings file. The
// directory is watched so that atomic replacements are seen.
func (s *Store) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch settings directory: %w", err)
	}

	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(s.path) {
					continue
				}
				if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
					s.reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Warn("Settings watcher error", logging.F("error", err.Error()))
			}
		}
	}()
	return nil
}

func (s *Store) reload() {
	on, err := s.read()
	if err != nil {
		s.logger.Debug("Ignoring unreadable settings file", logging.F("error", err.Error()))
		return
	}
	s.mu.Lock()
	changed := s.testMode != on
	s.testMode = on
	listeners := append([]func(bool){}, s.listeners...)
	s.mu.Unlock()

	if changed {
		s.logger.Info(TestModeKey, logging.F("value", onOff(on)), logging.F("source", "file"))
		for _, fn := range listeners {
			fn(on)
		}
	}
}

// Close stops the watcher.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	s.watcher = nil
	return err
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
