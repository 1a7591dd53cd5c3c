package registry

import "sync"

// RevisionGuard remembers the newest revision written under each name so
// late completions of older requests can be dropped.
//
// Without a guard, concurrent loads for one name resolve as last completion
// wins. With a guard, they resolve as last request wins.
type RevisionGuard struct {
	mu        sync.Mutex
	revisions map[string]uint64
}

// NewRevisionGuard creates an empty guard.
func NewRevisionGuard() *RevisionGuard {
	return &RevisionGuard{revisions: make(map[string]uint64)}
}

// Admit reports whether a write of revision rev under name may proceed and,
// if so, records rev as the newest. A revision equal to the stored one is
// admitted so re-running the same request stays idempotent.
func (g *RevisionGuard) Admit(name string, rev uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cur, ok := g.revisions[name]; ok && rev < cur {
		return false
	}
	g.revisions[name] = rev
	return true
}

// Forget drops the stored revision for name.
func (g *RevisionGuard) Forget(name string) {
	g.mu.Lock()
	delete(g.revisions, name)
	g.mu.Unlock()
}
