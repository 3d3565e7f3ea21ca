package ecs

import "fmt"

// Plugin extends a world once, when it starts. Build typically spawns entities, attaches
// components and subscribes to events; it must not assume any entity exists yet.
type Plugin interface {
	Build(w *World) error
}

// PluginFunc adapts a function to the Plugin interface.
type PluginFunc func(w *World) error

func (f PluginFunc) Build(w *World) error {
	return f(w)
}

// namedPlugin is implemented by plugins that want a readable name in logs and errors.
type namedPlugin interface {
	Name() string
}

type pluginEntry struct {
	plugin Plugin
	built  bool
}

func pluginName(p Plugin) string {
	if named, ok := p.(namedPlugin); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", p)
}
