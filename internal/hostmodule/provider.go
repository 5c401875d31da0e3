// Package hostmodule defines the ConfigProvider contract a host module
// implements to supply the daemon's engine-wide configuration and task
// configs. Go has no safe dynamic-module-loading equivalent of loading a
// config module by path, so the host registers its provider at process init
// time instead, the same way a plugin registers itself with a process-wide
// registry (app.Plugins().Register(...) in cmd/bot/main.go).
package hostmodule

import (
	"context"
	"errors"
	"sync"

	"cameleer/internal/engine"
	"cameleer/internal/taskconfig"
)

// ConfigProvider supplies the daemon's engine-wide config and every task's
// declarative config.
type ConfigProvider interface {
	// CameleerConfig returns the engine's own settings and the queues it
	// should own.
	CameleerConfig() (engine.Config, []engine.QueueDef, error)
	// AllTaskConfigs returns every task the daemon should load.
	AllTaskConfigs(ctx context.Context) ([]taskconfig.TaskConfig, error)
	// TaskConfig returns one named task's config; used for targeted reload
	// of a single task.
	TaskConfig(ctx context.Context, name string) (taskconfig.TaskConfig, error)
}

var (
	mu       sync.Mutex
	provider ConfigProvider
)

// ErrNoProvider is returned by Load when no host module has registered a
// ConfigProvider.
var ErrNoProvider = errors.New("hostmodule: no ConfigProvider registered")

// ErrAlreadyRegistered guards against two host modules both claiming to be
// the configuration source.
var ErrAlreadyRegistered = errors.New("hostmodule: a ConfigProvider is already registered")

// Register installs the process's single ConfigProvider. Call from an
// init() in the host module that defines the daemon's tasks.
func Register(p ConfigProvider) error {
	mu.Lock()
	defer mu.Unlock()
	if provider != nil {
		return ErrAlreadyRegistered
	}
	provider = p
	return nil
}

// Load returns the registered ConfigProvider, or ErrNoProvider if none was
// registered.
func Load() (ConfigProvider, error) {
	mu.Lock()
	defer mu.Unlock()
	if provider == nil {
		return nil, ErrNoProvider
	}
	return provider, nil
}
