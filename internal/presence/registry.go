package presence

import (
	"sort"
	"sync"
)

// Registry maps live connections to display names and back. It is the
// only holder of presence state; nothing is persisted.
type Registry struct {
	mu    sync.RWMutex
	names map[string]string              // connID -> display name
	conns map[string]map[string]struct{} // display name -> connIDs
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		names: make(map[string]string),
		conns: make(map[string]map[string]struct{}),
	}
}

// Join binds connID to name, replacing any previous binding of connID.
func (r *Registry) Join(connID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.names[connID]; ok {
		if prev == name {
			return
		}
		r.unbindLocked(connID, prev)
	}

	r.names[connID] = name
	set, ok := r.conns[name]
	if !ok {
		set = make(map[string]struct{})
		r.conns[name] = set
	}
	set[connID] = struct{}{}
}

// Leave removes connID and returns the name it was bound to.
func (r *Registry) Leave(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name, ok := r.names[connID]
	if !ok {
		return "", false
	}
	delete(r.names, connID)
	r.unbindLocked(connID, name)
	return name, true
}

func (r *Registry) unbindLocked(connID, name string) {
	set := r.conns[name]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.conns, name)
	}
}

// OnlineNames returns the distinct names with at least one live
// connection, sorted.
func (r *Registry) OnlineNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConnectionsFor returns every connection bound to name.
func (r *Registry) ConnectionsFor(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.conns[name]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ConnectionsForAll returns the union of connections bound to names,
// without duplicates.
func (r *Registry) ConnectionsForAll(names ...string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	var ids []string
	for _, name := range names {
		for id := range r.conns[name] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// IsOnline reports whether name has a live connection.
func (r *Registry) IsOnline(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.conns[name]
	return ok
}

// Count returns the number of joined connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
