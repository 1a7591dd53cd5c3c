package registry

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ironsheep/map-image-tools/internal/raster"
)

// recordingTable wraps a MemoryTable and logs every primitive call.
type recordingTable struct {
	*MemoryTable
	calls  []string
	addErr error
}

func (r *recordingTable) HasImage(name string) bool {
	r.calls = append(r.calls, "has:"+name)
	return r.MemoryTable.HasImage(name)
}

func (r *recordingTable) RemoveImage(name string) {
	r.calls = append(r.calls, "remove:"+name)
	r.MemoryTable.RemoveImage(name)
}

func (r *recordingTable) AddImage(name string, buf *raster.Buffer, opts ImageOptions) error {
	r.calls = append(r.calls, "add:"+name)
	if r.addErr != nil {
		return r.addErr
	}
	return r.MemoryTable.AddImage(name, buf, opts)
}

func filledBuffer(w, h int, v byte) *raster.Buffer {
	buf := raster.NewBuffer(w, h)
	for i := range buf.Pix {
		buf.Pix[i] = v
	}
	return buf
}

func TestUpsert_AddsNewName(t *testing.T) {
	rt := &recordingTable{MemoryTable: NewMemoryTable(0)}

	require.NoError(t, Upsert(rt, "n", filledBuffer(2, 2, 1), true))
	assert.Equal(t, []string{"has:n", "add:n"}, rt.calls)

	e, ok := rt.Get("n")
	require.True(t, ok)
	assert.True(t, e.SDF)
}

func TestUpsert_RemovesBeforeAdd(t *testing.T) {
	rt := &recordingTable{MemoryTable: NewMemoryTable(0)}
	require.NoError(t, Upsert(rt, "n", filledBuffer(2, 2, 1), true))
	rt.calls = nil

	require.NoError(t, Upsert(rt, "n", filledBuffer(3, 1, 2), false))
	assert.Equal(t, []string{"has:n", "remove:n", "add:n"}, rt.calls)
}

func TestUpsert_ReplaceNotDuplicate(t *testing.T) {
	table := NewMemoryTable(0)
	require.NoError(t, Upsert(table, "n", filledBuffer(2, 2, 1), true))
	require.NoError(t, Upsert(table, "n", filledBuffer(4, 1, 9), false))

	assert.Equal(t, 1, table.Len())
	e, ok := table.Get("n")
	require.True(t, ok)
	assert.Equal(t, 4, e.Buffer.Width)
	assert.Equal(t, 1, e.Buffer.Height)
	assert.Equal(t, byte(9), e.Buffer.Pix[0])
	assert.False(t, e.SDF)
}

func TestUpsert_Idempotent(t *testing.T) {
	table := NewMemoryTable(0)
	buf := filledBuffer(3, 3, 5)
	require.NoError(t, Upsert(table, "n", buf, true))
	first, _ := table.Get("n")
	require.NoError(t, Upsert(table, "n", buf, true))
	second, _ := table.Get("n")

	assert.Equal(t, first.Buffer.Pix, second.Buffer.Pix)
	assert.Equal(t, first.SDF, second.SDF)
	assert.Equal(t, 1, table.Len())
}

func TestUpsert_Rejection(t *testing.T) {
	boom := errors.New("boom")
	rt := &recordingTable{MemoryTable: NewMemoryTable(0), addErr: boom}

	err := Upsert(rt, "n", filledBuffer(1, 1, 0), false)
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, boom)

	err = Upsert(NewMemoryTable(8), "big", raster.NewBuffer(9, 1), false)
	assert.ErrorIs(t, err, ErrRejected)
	assert.ErrorIs(t, err, ErrTooLarge)

	err = Upsert(NewMemoryTable(0), "bad", &raster.Buffer{Width: 2, Height: 2}, false)
	assert.ErrorIs(t, err, raster.ErrMalformedBuffer)
}

func TestMemoryTable_AddImage(t *testing.T) {
	table := NewMemoryTable(0)

	assert.ErrorIs(t, table.AddImage("", raster.NewBuffer(1, 1), ImageOptions{}), ErrEmptyName)
	require.NoError(t, table.AddImage("a", raster.NewBuffer(1, 1), ImageOptions{}))
	assert.ErrorIs(t, table.AddImage("a", raster.NewBuffer(1, 1), ImageOptions{}), ErrDuplicateName)
}

func TestMemoryTable_KeepsOwnCopy(t *testing.T) {
	table := NewMemoryTable(0)
	buf := filledBuffer(1, 1, 3)
	require.NoError(t, table.AddImage("a", buf, ImageOptions{}))
	buf.Pix[0] = 99

	e, _ := table.Get("a")
	assert.Equal(t, byte(3), e.Buffer.Pix[0])
}

func TestMemoryTable_ListAndClear(t *testing.T) {
	table := NewMemoryTable(0)
	require.NoError(t, table.AddImage("b", raster.NewBuffer(2, 1), ImageOptions{SDF: true}))
	require.NoError(t, table.AddImage("a", raster.NewBuffer(1, 3), ImageOptions{}))

	assert.Equal(t, []string{"a", "b"}, table.Names())
	assert.Equal(t, []EntryInfo{
		{Name: "a", Width: 1, Height: 3},
		{Name: "b", Width: 2, Height: 1, SDF: true},
	}, table.List())

	table.RemoveImage("missing")
	assert.Equal(t, 2, table.Len())

	table.Clear()
	assert.Equal(t, 0, table.Len())
	assert.False(t, table.HasImage("a"))
}

func TestMemoryTable_Concurrent(t *testing.T) {
	table := NewMemoryTable(0)
	var wg sync.WaitGroup
	var mu sync.Mutex // serializes upserts per name, as the loader does

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("img-%d", i%10)
			mu.Lock()
			err := Upsert(table, name, filledBuffer(2, 2, byte(i)), i%2 == 0)
			mu.Unlock()
			assert.NoError(t, err)
			_ = table.HasImage(name)
			_ = table.List()
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 10, table.Len())
}

func TestRevisionGuard(t *testing.T) {
	g := NewRevisionGuard()

	assert.True(t, g.Admit("n", 2))
	assert.False(t, g.Admit("n", 1), "older revision must be dropped")
	assert.True(t, g.Admit("n", 2), "same revision is idempotent")
	assert.True(t, g.Admit("n", 5))
	assert.True(t, g.Admit("other", 1), "names are independent")

	g.Forget("n")
	assert.True(t, g.Admit("n", 1))
}
