package mapstyle

import (
	"sort"
	"sync"
)

// Remover is the part of the image table Prune needs.
type Remover interface {
	HasImage(name string) bool
	RemoveImage(name string)
}

// Tracker remembers which resource names each owner (a layer, or the
// pattern set) derived, so names left behind by earlier style revisions
// can be removed. The sync drivers never prune on their own.
//
// Tracker is safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	owned map[string]map[string]struct{}
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{owned: make(map[string]map[string]struct{})}
}

// Record adds names to the set owned by owner.
func (t *Tracker) Record(owner string, names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	set, ok := t.owned[owner]
	if !ok {
		set = make(map[string]struct{}, len(names))
		t.owned[owner] = set
	}
	for _, n := range names {
		set[n] = struct{}{}
	}
}

// Owned returns the names recorded for owner, sorted.
func (t *Tracker) Owned(owner string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	names := make([]string, 0, len(t.owned[owner]))
	for n := range t.owned[owner] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Prune removes from table every name recorded for owner that is not in
// keep, then makes keep the owner's recorded set. It returns the removed
// names, sorted.
//
// A load still in flight for a pruned name will write it back when it
// completes; that entry is unreferenced and harmless.
func (t *Tracker) Prune(table Remover, owner string, keep []string) []string {
	keepSet := make(map[string]struct{}, len(keep))
	for _, n := range keep {
		keepSet[n] = struct{}{}
	}

	t.mu.Lock()
	var removed []string
	for n := range t.owned[owner] {
		if _, ok := keepSet[n]; ok {
			continue
		}
		if table.HasImage(n) {
			table.RemoveImage(n)
		}
		removed = append(removed, n)
	}
	if len(keepSet) == 0 {
		delete(t.owned, owner)
	} else {
		t.owned[owner] = keepSet
	}
	t.mu.Unlock()

	sort.Strings(removed)
	return removed
}
