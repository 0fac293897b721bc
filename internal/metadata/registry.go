// Copyright (C) dcrunner contributors.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package metadata implements the process-wide string-to-small-int
// interning table used to turn an element's human-readable metadata
// names ("timestamp", "sequence-number", ...) into the uint32 ids
// stored in a message.Metadata slot. The table is append-only: once a
// name is registered it keeps its id for the lifetime of the process,
// so ids captured by an element at descriptor-build time stay valid
// for every message it ever touches.
package metadata

import "sync"

// Registry interns metadata names to ids. Create one with NewRegistry;
// the zero value is not usable. ID 0 is never assigned; it is reserved
// by message.Metadata as the "empty slot" sentinel.
type Registry struct {
	mu    sync.RWMutex
	byID  []string
	byStr map[string]uint32
}

// NewRegistry returns an empty Registry with id 0 reserved.
func NewRegistry() *Registry {
	return &Registry{
		byID:  []string{""}, // index 0 unused/reserved
		byStr: map[string]uint32{},
	}
}

// Intern returns the id for name, assigning a new one if name has not
// been seen before. Safe for concurrent use; typically called only
// during plugin registration, before any task group starts running.
func (r *Registry) Intern(name string) uint32 {
	r.mu.RLock()
	if id, ok := r.byStr[name]; ok {
		r.mu.RUnlock()
		return id
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byStr[name]; ok {
		return id
	}
	id := uint32(len(r.byID))
	r.byID = append(r.byID, name)
	r.byStr[name] = id
	return id
}

// Lookup returns the id previously assigned to name and whether it was
// found. Used by Pipeline.MetadataID to resolve a name an element
// already expects to exist, without interning an unexpected new one.
func (r *Registry) Lookup(name string) (uint32, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byStr[name]
	return id, ok
}

// Name returns the name registered for id, or "" if id is unassigned.
func (r *Registry) Name(id uint32) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || int(id) >= len(r.byID) {
		return ""
	}
	return r.byID[id]
}

// Len reports how many names are currently interned, excluding the
// reserved id 0.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID) - 1
}
