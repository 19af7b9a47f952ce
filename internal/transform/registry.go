package transform

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ModeHTML is the mode applied to Sphinx HTML output.
const ModeHTML = "html"

var ErrUnknownMode = errors.New("unknown mode")

type PluginFunc func(file string, lines []string) ([]string, error)

type Factory func() (Transformer, error)

var builtins = map[string]Factory{
	ModeHTML: func() (Transformer, error) { return Identity{}, nil },
}

// reserved are names docpost's own subcommands take as the first argument;
// a mode with one of these names could never be selected.
var reserved = map[string]bool{
	"check":      true,
	"modes":      true,
	"history":    true,
	"help":       true,
	"completion": true,
}

// IsReserved reports whether name collides with a docpost subcommand.
func IsReserved(name string) bool {
	return reserved[strings.ToLower(name)]
}

// checkName rejects names that are empty, reserved or a case variant of a
// built-in mode.
func checkName(name string) error {
	if name == "" || strings.TrimSpace(name) != name {
		return fmt.Errorf("mode name %q is empty or has surrounding spaces", name)
	}
	if IsReserved(name) {
		return fmt.Errorf("mode name %q is reserved for a subcommand", name)
	}
	for builtin := range builtins {
		if strings.EqualFold(name, builtin) {
			return fmt.Errorf("mode %s: built-in modes cannot be redefined", name)
		}
	}
	return nil
}

// plugins holds modes loaded from shared objects. Loading is process wide,
// so every registry created afterwards sees them.
var plugins = map[string]Factory{}

// Registry maps mode names to transformer factories. Names match exactly.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	r := &Registry{factories: map[string]Factory{}}
	for name, f := range builtins {
		r.factories[name] = f
	}
	for name, f := range plugins {
		r.factories[name] = f
	}
	return r
}

func (r *Registry) Register(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("register mode %s: nil factory", name)
	}
	if err := checkName(name); err != nil {
		return fmt.Errorf("register mode: %w", err)
	}
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("register mode %s: already registered", name)
	}
	r.factories[name] = factory
	return nil
}

func (r *Registry) Lookup(name string) (Factory, bool) {
	f, ok := r.factories[name]
	return f, ok
}

func (r *Registry) Build(mode string) (Transformer, error) {
	factory, ok := r.Lookup(mode)
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownMode, mode, strings.Join(r.Modes(), ", "))
	}
	return factory()
}

// Modes returns the registered mode names in sorted order.
func (r *Registry) Modes() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func registerPlugin(name string, fn PluginFunc) error {
	if fn == nil {
		return fmt.Errorf("plugin mode %s: nil function", name)
	}
	if err := checkName(name); err != nil {
		return fmt.Errorf("plugin mode: %w", err)
	}
	plugins[name] = func() (Transformer, error) {
		return &PluginTransformer{name: name, fn: fn}, nil
	}
	return nil
}

type PluginTransformer struct {
	name string
	fn   PluginFunc
}

func (t *PluginTransformer) Name() string { return "Plugin(" + t.name + ")" }

func (t *PluginTransformer) Transform(file string, lines []string) ([]string, error) {
	if t.fn == nil {
		return nil, fmt.Errorf("plugin transformer %s not initialized", t.name)
	}
	return t.fn(file, lines)
}
