package chat

import (
	"sync"

	"github.com/samber/lo"
)

type Set map[string]struct{}

// PresenceTracker holds the set of session ids the transport reports online.
// Each roster replaces the previous one wholesale: rosters may arrive out of
// order with respect to individual join/leave traffic, so nothing is merged.
type PresenceTracker struct {
	mu     sync.RWMutex
	online Set
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{online: make(Set)}
}

// Replace installs roster as the complete online set and returns the ids
// that changed state. Ids may belong to sessions the registry has not seen.
func (p *PresenceTracker) Replace(roster []string) (cameOnline, wentOffline []string) {
	next := make(Set, len(roster))
	for _, id := range lo.Uniq(roster) {
		if id == "" {
			continue
		}
		next[id] = struct{}{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for id := range next {
		if _, ok := p.online[id]; !ok {
			cameOnline = append(cameOnline, id)
		}
	}
	for id := range p.online {
		if _, ok := next[id]; !ok {
			wentOffline = append(wentOffline, id)
		}
	}
	p.online = next
	return cameOnline, wentOffline
}

// IsOnline reports whether id was in the latest roster.
func (p *PresenceTracker) IsOnline(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[id]
	return ok
}

// Online returns the current online ids.
func (p *PresenceTracker) Online() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return lo.Keys(p.online)
}
