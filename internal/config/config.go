// Package config layers the registry's ambient settings the way beads
// layers its project config: environment variables win outright, a
// per-project YAML file (viper-loaded, found by walking up from the
// working directory) supplies everything else, and Watch keeps a live
// Config that follows edits to that file. regctl, serve included, reads
// its Config once through Load and does not use Watch.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/basepair/resourcereg/internal/store"
)

// ProjectConfigName is the per-project config file viper loads, found by
// walking up from the working directory the way beads finds .beads/config.yaml.
const ProjectConfigName = ".resourcereg.yaml"

// EnvPathVar is the environment variable carrying PYGRDATAPATH's
// separator-delimited store list.
const EnvPathVar = "PYGRDATAPATH"

// Config is the resolved set of ambient settings a Resolver is built from.
type Config struct {
	// Path is the PYGRDATAPATH-style path string. Sourced from the
	// PYGRDATAPATH environment variable if set, else the project config
	// file's "path" key, else store.DefaultPathSource.
	Path string

	// LockTimeout is read from the "lockTimeout" key. No Store is opened
	// with it (store.Options carries only ReadOnly), so it does not bound
	// how long a writable Store waits for its write lock.
	LockTimeout time.Duration

	// LogLevel is the zerolog level new Providers should log at.
	LogLevel zerolog.Level
}

// Default returns the zero-config defaults: home-then-cwd path, a
// generous lock timeout, and info-level logging.
func Default() Config {
	return Config{
		Path:        store.DefaultPathSource,
		LockTimeout: 30 * time.Second,
		LogLevel:    zerolog.InfoLevel,
	}
}

// Load resolves Config starting from Default, overlaying the project
// config file found by findProjectConfig (if any), then environment
// variables, which always take precedence per viper's normal layering.
func Load() (Config, error) {
	v := viper.New()
	applyDefaults(v)

	if path, err := findProjectConfig(); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	bindEnv(v)
	return fromViper(v), nil
}

func applyDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("path", d.Path)
	v.SetDefault("lockTimeout", d.LockTimeout.String())
	v.SetDefault("logLevel", d.LogLevel.String())
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("path", EnvPathVar)
}

func fromViper(v *viper.Viper) Config {
	lvl, err := zerolog.ParseLevel(v.GetString("logLevel"))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	timeout, err := time.ParseDuration(v.GetString("lockTimeout"))
	if err != nil {
		timeout = Default().LockTimeout
	}
	return Config{
		Path:        v.GetString("path"),
		LockTimeout: timeout,
		LogLevel:    lvl,
	}
}

// findProjectConfig walks up from the working directory looking for
// ProjectConfigName, mirroring beads' findProjectConfigYaml.
func findProjectConfig() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("config: get working directory: %w", err)
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		candidate := filepath.Join(dir, ProjectConfigName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
	}
	return "", fmt.Errorf("config: no %s found above %s", ProjectConfigName, cwd)
}

// Watcher holds a live Config plus viper's own fsnotify-backed file watch,
// so a long-lived process can react to edits of the project config file
// without restarting.
type Watcher struct {
	v *viper.Viper

	mu  sync.RWMutex
	cur Config

	cbMu sync.Mutex
	cbs  []func(Config)
}

// Watch loads Config the same way Load does, and - if a project config
// file was found - starts viper's WatchConfig so edits to it update
// Current and fire every registered callback. If no project config file
// exists, Watch still succeeds; it just has nothing to watch.
func Watch() (*Watcher, error) {
	v := viper.New()
	applyDefaults(v)
	bindEnv(v)

	w := &Watcher{v: v}

	if path, err := findProjectConfig(); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		v.OnConfigChange(func(e fsnotify.Event) {
			w.reload(e)
		})
		v.WatchConfig()
	}

	w.mu.Lock()
	w.cur = fromViper(v)
	w.mu.Unlock()

	return w, nil
}

func (w *Watcher) reload(_ fsnotify.Event) {
	next := fromViper(w.v)
	w.mu.Lock()
	w.cur = next
	w.mu.Unlock()

	w.cbMu.Lock()
	cbs := append([]func(Config){}, w.cbs...)
	w.cbMu.Unlock()
	for _, cb := range cbs {
		cb(next)
	}
}

// Current returns the most recently loaded Config.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cur
}

// OnChange registers fn to run after every config-file reload. fn runs on
// viper's watch goroutine; callers needing synchronization must provide it.
func (w *Watcher) OnChange(fn func(Config)) {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()
	w.cbs = append(w.cbs, fn)
}

