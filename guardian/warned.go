package guardian

import (
	"sort"
	"sync"
)

// WarnedSet holds the names of the queues that are currently above the warn threshold and whose owners have been warned.
// It lives as long as the engine that owns it: a restart forgets it, so owners may be warned again.
type WarnedSet struct {
	names map[string]struct{}
	mu    sync.RWMutex
}

func NewWarnedSet() *WarnedSet {
	return &WarnedSet{
		names: make(map[string]struct{}),
	}
}

func (ws *WarnedSet) Contains(name string) bool {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	_, ok := ws.names[name]
	return ok
}

// Add returns false if the name was already there.
func (ws *WarnedSet) Add(name string) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if _, ok := ws.names[name]; ok {
		return false
	}
	ws.names[name] = struct{}{}
	return true
}

// Remove returns false if the name was not there.
func (ws *WarnedSet) Remove(name string) bool {
	ws.mu.Lock()
	defer ws.mu.Unlock()

	if _, ok := ws.names[name]; !ok {
		return false
	}
	delete(ws.names, name)
	return true
}

func (ws *WarnedSet) Len() int {
	ws.mu.RLock()
	defer ws.mu.RUnlock()

	return len(ws.names)
}

// Snapshot returns the sorted names.
func (ws *WarnedSet) Snapshot() []string {
	ws.mu.RLock()
	names := make([]string, 0, len(ws.names))
	for name := range ws.names {
		names = append(names, name)
	}
	ws.mu.RUnlock()

	sort.Strings(names)
	return names
}
