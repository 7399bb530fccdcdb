package retain

import (
	"fmt"

	"pkg.jsn.cam/datagen/pkg/datagen"
)

// MemoryIndex implements Index using a slice (not persistent)
type MemoryIndex struct {
	ids []int64
}

// NewMemoryIndex creates a new in-memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{}
}

// Append adds id at position Len()
func (m *MemoryIndex) Append(id int64) error {
	m.ids = append(m.ids, id)
	return nil
}

// At returns the id stored at position i
func (m *MemoryIndex) At(i int) (int64, error) {
	if i < 0 || i >= len(m.ids) {
		return 0, fmt.Errorf("%w: %d of %d", datagen.ErrIndexOutOfRange, i, len(m.ids))
	}
	return m.ids[i], nil
}

// Len returns the number of stored ids
func (m *MemoryIndex) Len() int {
	return len(m.ids)
}

// Close releases the slice
func (m *MemoryIndex) Close() error {
	m.ids = nil
	return nil
}
