package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ironsheep/map-image-tools/internal/raster"
)

// DefaultMaxDimension is the largest side, in physical pixels, a
// MemoryTable accepts unless configured otherwise.
const DefaultMaxDimension = 4096

var (
	// ErrEmptyName is returned when adding an image without a name.
	ErrEmptyName = errors.New("registry: empty image name")

	// ErrDuplicateName is returned when adding a name that is already
	// registered. Replacing requires an explicit remove first.
	ErrDuplicateName = errors.New("registry: image name already registered")

	// ErrTooLarge is returned when a buffer side exceeds the table's limit.
	ErrTooLarge = errors.New("registry: image exceeds maximum dimension")
)

// Entry is a registered raster together with its metadata.
type Entry struct {
	Name   string
	Buffer *raster.Buffer
	ImageOptions
}

// EntryInfo summarizes an entry without its pixels.
type EntryInfo struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	SDF    bool   `json:"sdf"`
}

// MemoryTable is an in-process image table with the same contract as a
// map engine's: names are unique, there is no replace, and the table keeps
// its own copy of every buffer it accepts.
//
// MemoryTable is safe for concurrent use by multiple goroutines.
//
// # Example Usage
//
//	table := registry.NewMemoryTable(0)
//	if err := registry.Upsert(table, "42-pin", buf, true); err != nil {
//	    log.Fatal(err)
//	}
//	entry, ok := table.Get("42-pin")
type MemoryTable struct {
	mu           sync.RWMutex
	images       map[string]Entry
	maxDimension int
}

// NewMemoryTable creates an empty table. A maxDimension of zero or less
// uses DefaultMaxDimension.
func NewMemoryTable(maxDimension int) *MemoryTable {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &MemoryTable{
		images:       make(map[string]Entry),
		maxDimension: maxDimension,
	}
}

// HasImage reports whether name is registered.
func (t *MemoryTable) HasImage(name string) bool {
	t.mu.RLock()
	_, ok := t.images[name]
	t.mu.RUnlock()
	return ok
}

// RemoveImage unregisters name. Removing an unknown name does nothing.
func (t *MemoryTable) RemoveImage(name string) {
	t.mu.Lock()
	delete(t.images, name)
	t.mu.Unlock()
}

// AddImage registers a copy of buf under name.
//
// # Errors
//
//   - ErrEmptyName if name is empty
//   - raster.ErrMalformedBuffer if the buffer does not match its dimensions
//   - ErrTooLarge if either side exceeds the table's maximum dimension
//   - ErrDuplicateName if name is already registered
func (t *MemoryTable) AddImage(name string, buf *raster.Buffer, opts ImageOptions) error {
	if name == "" {
		return ErrEmptyName
	}
	if err := buf.Validate(); err != nil {
		return err
	}
	if buf.Width > t.maxDimension || buf.Height > t.maxDimension {
		return fmt.Errorf("%w: %dx%d, limit %d", ErrTooLarge, buf.Width, buf.Height, t.maxDimension)
	}

	entry := Entry{Name: name, Buffer: buf.Clone(), ImageOptions: opts}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.images[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	t.images[name] = entry
	return nil
}

// Get returns the entry registered under name. The returned buffer is
// shared with the table and must not be modified.
func (t *MemoryTable) Get(name string) (Entry, bool) {
	t.mu.RLock()
	e, ok := t.images[name]
	t.mu.RUnlock()
	return e, ok
}

// Names returns all registered names in sorted order.
func (t *MemoryTable) Names() []string {
	t.mu.RLock()
	names := make([]string, 0, len(t.images))
	for name := range t.images {
		names = append(names, name)
	}
	t.mu.RUnlock()
	sort.Strings(names)
	return names
}

// List returns a summary of every entry, sorted by name.
func (t *MemoryTable) List() []EntryInfo {
	t.mu.RLock()
	infos := make([]EntryInfo, 0, len(t.images))
	for _, e := range t.images {
		infos = append(infos, EntryInfo{
			Name:   e.Name,
			Width:  e.Buffer.Width,
			Height: e.Buffer.Height,
			SDF:    e.SDF,
		})
	}
	t.mu.RUnlock()
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Len returns the number of registered images.
func (t *MemoryTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.images)
}

// Clear removes every image, as when the engine is torn down.
func (t *MemoryTable) Clear() {
	t.mu.Lock()
	t.images = make(map[string]Entry)
	t.mu.Unlock()
}
