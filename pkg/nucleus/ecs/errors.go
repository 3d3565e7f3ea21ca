package ecs

import "github.com/rotisserie/eris"

var (
	// ErrComponentNotFound is returned by component lookups when no component of the requested
	// kind is attached. It signals absence, not a fault.
	ErrComponentNotFound = eris.New("component not found")

	// ErrPluginBuild is returned by Start when a plugin fails to build.
	ErrPluginBuild = eris.New("plugin build failed")

	// ErrWorldRunning is returned by Start when the world is not stopped.
	ErrWorldRunning = eris.New("world is already running")
)

// PluginError is returned by Start when a plugin fails to build. It matches ErrPluginBuild and
// unwraps to the plugin's own error.
type PluginError struct {
	Plugin string
	Err    error
}

func (e *PluginError) Error() string {
	return "plugin " + e.Plugin + ": " + e.Err.Error()
}

func (e *PluginError) Is(target error) bool {
	return target == ErrPluginBuild //nolint:errorlint // sentinel identity
}

func (e *PluginError) Unwrap() error {
	return e.Err
}
