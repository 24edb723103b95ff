// SPDX-License-Identifier: MPL-2.0

package capability

import (
	"fmt"
	"slices"
	"sync"
)

// Registry maps command names to host commands. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	owners   map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Command),
		owners:   make(map[string]string),
	}
}

// Register adds the commands contributed by module.
// Panics if a command name is empty or already registered.
func (r *Registry) Register(module string, cmds ...Command) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, cmd := range cmds {
		name := cmd.Name()
		if name == "" {
			panic(fmt.Sprintf("capability: module %q registers a command with empty name", module))
		}
		if _, exists := r.commands[name]; exists {
			panic(fmt.Sprintf("capability: command %q of module %q already registered by %q", name, module, r.owners[name]))
		}
		r.commands[name] = cmd
		r.owners[name] = module
	}
}

// Lookup retrieves a command by name.
func (r *Registry) Lookup(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmd, ok := r.commands[name]
	return cmd, ok
}

// Owner returns the module that registered the command.
func (r *Registry) Owner(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[name]
	return owner, ok
}

// Names returns all registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
