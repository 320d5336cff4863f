package chat

import (
	"sort"
	"strings"
	"sync"
)

// Presence is the bidirectional connection-to-identity mapping. It enforces
// name uniqueness: at most one display name per connection and at most one
// connection per display name (case-sensitive exact match). The check and
// the bind happen under one lock, so concurrent joins with the same name
// cannot both succeed.
type Presence struct {
	mu    sync.RWMutex
	names map[string]string // connection id -> display name
	conns map[string]string // display name -> connection id
}

// NewPresence creates an empty registry.
func NewPresence() *Presence {
	return &Presence{
		names: make(map[string]string),
		conns: make(map[string]string),
	}
}

// Join validates requestedName, trims it, and atomically binds it to
// connID. It rejects with invalid_name for empty or malformed names,
// invalid_request when the connection is already bound, and username_taken
// when any live connection already holds the name.
func (p *Presence) Join(connID, requestedName string) (string, error) {
	name := strings.TrimSpace(requestedName)
	if name == "" || strings.Contains(name, pairKeySeparator) {
		return "", NewReject(ErrInvalidName)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Identity binding is single-shot; a bound connection may not rejoin.
	if _, bound := p.names[connID]; bound {
		return "", NewReject(ErrInvalidRequest)
	}
	if _, taken := p.conns[name]; taken {
		return "", NewReject(ErrUsernameTaken)
	}

	p.names[connID] = name
	p.conns[name] = connID
	return name, nil
}

// Leave removes the binding for connID if present and reports whether one
// existed, along with the released name. Leaving without a binding is a
// no-op, not an error.
func (p *Presence) Leave(connID string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name, bound := p.names[connID]
	if !bound {
		return "", false
	}
	delete(p.names, connID)
	delete(p.conns, name)
	return name, true
}

// NameOf returns the display name bound to connID, if any.
func (p *Presence) NameOf(connID string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	name, ok := p.names[connID]
	return name, ok
}

// ConnectionFor resolves a display name to its live connection id. The
// router uses this to find a private-message recipient.
func (p *Presence) ConnectionFor(name string) (string, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	connID, ok := p.conns[name]
	return connID, ok
}

// Roster returns a snapshot of all currently bound names. The slice is
// sorted only to make the output deterministic; rendering order is a
// client concern.
func (p *Presence) Roster() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	roster := make([]string, 0, len(p.conns))
	for name := range p.conns {
		roster = append(roster, name)
	}
	sort.Strings(roster)
	return roster
}
