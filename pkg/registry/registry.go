// Package registry maps timed section names to stable integer IDs and their metadata.
package registry

import (
	"sort"
	"sync"
)

// SectionID is the stable handle for a registered section name.
type SectionID uint32

// SectionInfo holds the metadata recorded when a section is registered.
type SectionInfo struct {
	ID   SectionID
	Name string

	// Level is the verbosity level at which the section appears in reports.
	Level uint

	// LiveMessage is shown by the live printer while the section runs.
	// Empty means the section is not announced unless live-print-all is on.
	LiveMessage string

	// PrintDots makes the live printer emit "." instead of repeating the message.
	PrintDots bool
}

// HasLiveMessage reports whether the section announces itself while running.
func (s SectionInfo) HasLiveMessage() bool {
	return s.LiveMessage != ""
}

// Registry holds all registered sections. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sections []SectionInfo
	byName   map[string]SectionID
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		sections: make([]SectionInfo, 0, 64),
		byName:   make(map[string]SectionID),
	}
}

// Register returns the ID for name, adding the section on first use.
// Registering an existing name returns its original ID and keeps the original metadata.
func (r *Registry) Register(name string, level uint, liveMessage string, printDots bool) SectionID {
	r.mu.RLock()
	id, ok := r.byName[name]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byName[name]; ok {
		return id
	}
	id = SectionID(len(r.sections))
	r.sections = append(r.sections, SectionInfo{
		ID:          id,
		Name:        name,
		Level:       level,
		LiveMessage: liveMessage,
		PrintDots:   printDots,
	})
	r.byName[name] = id
	return id
}

// ID returns the ID registered for name.
func (r *Registry) ID(name string) (SectionID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Info returns the metadata for id.
func (r *Registry) Info(id SectionID) (SectionInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.sections) {
		return SectionInfo{}, false
	}
	return r.sections[id], true
}

// Name returns the name registered for id, or "" if id is unknown.
func (r *Registry) Name(id SectionID) string {
	info, _ := r.Info(id)
	return info.Name
}

// Len returns the number of registered sections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sections)
}

// Sections returns a copy of all registered sections ordered by ID.
func (r *Registry) Sections() []SectionInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SectionInfo, len(r.sections))
	copy(out, r.sections)
	return out
}

// Names returns all registered names sorted alphabetically.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}
