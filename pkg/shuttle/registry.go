// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package shuttle

import (
	"fmt"
	"sort"
	"sync"
)

type registration struct {
	reg      Registration
	executor Executor
}

// Registry maps tool names to their registrations and executors. Names
// are unique within a process.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registration
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registration)}
}

// Register inserts a tool. Registering a duplicate name is an error.
func (r *Registry) Register(reg Registration, executor Executor) error {
	if reg.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if executor == nil {
		return fmt.Errorf("tool %s has no executor", reg.Name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[reg.Name]; exists {
		return fmt.Errorf("tool already registered: %s", reg.Name)
	}
	r.tools[reg.Name] = registration{reg: reg, executor: executor}
	return nil
}

// Unregister removes a tool by name.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tools, name)
}

// GetExecutor returns the executor for a tool name.
func (r *Registry) GetExecutor(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return entry.executor, true
}

// Get returns the registration for a tool name.
func (r *Registry) Get(name string) (Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.tools[name]
	return entry.reg, ok
}

// IsRegistered checks whether a tool name is taken.
func (r *Registry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.tools[name]
	return exists
}

// GetTools returns all registrations sorted by name.
func (r *Registry) GetTools() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.tools))
	for _, entry := range r.tools {
		out = append(out, entry.reg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
