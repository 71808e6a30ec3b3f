package header

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Builds a fresh per-stream parser
type Factory func() Parser

// Format name to parser factory table. Safe for concurrent lookups.
type Registry struct {
	mutex     sync.RWMutex
	factories map[string]Factory
}

var builtin = map[string]Factory{
	"goes":            NewGOES,
	"goes-self-timed": NewGOESSelfTimed,
	"goes-random":     NewGOESRandom,
	"lrit":            NewLRIT,
	"relay":           NewRelay,
	"noaaport":        NewNOAAPort,
	"iridium":         NewIridium,
	"shef":            NewShef,
	"edl":             NewEDL,
	"eumetsat":        NewEumetsat,
	"netdcp":          NewNetDCP,
}

func NewRegistry() (registry *Registry) {
	registry = &Registry{factories: make(map[string]Factory)}
	return
}

// Registry holding every built-in format
func Default() (registry *Registry) {
	registry = NewRegistry()
	for name, factory := range builtin {
		registry.factories[name] = factory
	}
	return
}

func (registry *Registry) Register(name string, factory Factory) (err error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		err = fmt.Errorf("cannot register format %q: empty name or nil factory", name)
		return
	}

	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if _, exists := registry.factories[key]; exists {
		err = fmt.Errorf("%w: %s", ErrDuplicate, key)
		return
	}
	registry.factories[key] = factory
	return
}

// Creates a new parser instance for the named format (case-insensitive)
func (registry *Registry) New(name string) (parser Parser, err error) {
	key := strings.ToLower(strings.TrimSpace(name))

	registry.mutex.RLock()
	factory, ok := registry.factories[key]
	registry.mutex.RUnlock()

	if !ok {
		err = fmt.Errorf("%w: %q", ErrUnknown, name)
		return
	}
	parser = factory()
	return
}

// Sorted registered format names
func (registry *Registry) Names() (names []string) {
	registry.mutex.RLock()
	for name := range registry.factories {
		names = append(names, name)
	}
	registry.mutex.RUnlock()

	sort.Strings(names)
	return
}
