package config

import (
	"os"
	"regexp"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/synthesishq/synthesis-agent/internal/errors"
)

// Loader handles configuration loading and hot-reloading.
type Loader struct {
	path     string
	mu       sync.RWMutex
	config   *Config
	onChange func(*Config)
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewLoader creates a new configuration loader.
func NewLoader(path string) *Loader {
	return &Loader{
		path:     path,
		stopChan: make(chan struct{}),
	}
}

// Load reads the configuration from the file.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	content, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &errors.ErrConfigNotFound{Path: l.path}
		}
		return nil, &errors.ErrFileRead{Path: l.path, Err: err}
	}

	content = substituteEnvVars(content)
	config, err := Parse(content)
	if err != nil {
		return nil, &errors.ErrConfigParse{Err: err}
	}

	if err := config.Validate(); err != nil {
		return nil, &errors.ErrConfigValidation{Err: err}
	}

	l.config = config
	return config, nil
}

// Reload forces a reload of the configuration and fires the change callback.
func (l *Loader) Reload() (*Config, error) {
	config, err := l.Load()
	if err != nil {
		return nil, err
	}

	l.mu.RLock()
	onChange := l.onChange
	l.mu.RUnlock()

	if onChange != nil {
		onChange(config)
	}

	return config, nil
}

// Get returns the current configuration.
func (l *Loader) Get() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// SetOnChange sets a callback to be called when configuration changes.
func (l *Loader) SetOnChange(fn func(*Config)) {
	l.mu.Lock()
	l.onChange = fn
	l.mu.Unlock()
}

// StartWatcher watches the config file and reloads on writes. Editors often
// replace the file on save, so the path is re-added after rename/remove
// events. A failed reload keeps the previous configuration.
func (l *Loader) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(l.path); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					_, _ = l.Reload()
				}
				if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
					// Wait for the replacement file to land, then re-watch.
					time.Sleep(100 * time.Millisecond)
					if err := watcher.Add(l.path); err == nil {
						_, _ = l.Reload()
					}
				}
			case <-watcher.Errors:
			case <-l.stopChan:
				return
			}
		}
	}()

	return nil
}

// StopWatcher stops the file watcher.
func (l *Loader) StopWatcher() {
	l.stopOnce.Do(func() {
		close(l.stopChan)
	})
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnvVars replaces ${VAR} references with environment values.
// Unset variables substitute to the empty string.
func substituteEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		name := envVarPattern.FindSubmatch(match)[1]
		return []byte(os.Getenv(string(name)))
	})
}
