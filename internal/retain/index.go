// Package retain keeps the identifiers of already written entities so later
// phases can reference them as foreign keys.
//
// Only ids are retained, never whole records. The memory index is a plain
// slice; the bolt index spills to a scratch bbolt file for runs whose id
// lists should not live in RAM.
package retain

import (
	"fmt"
	"strings"

	"pkg.jsn.cam/datagen/pkg/datagen"
)

// Mode selects the index implementation.
type Mode string

const (
	ModeMemory Mode = "memory"
	ModeBolt   Mode = "bolt"
)

// ParseMode validates a retention mode name (case-insensitive). Empty means
// memory.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ModeMemory:
		return ModeMemory, nil
	case ModeBolt:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q (want memory or bolt)", datagen.ErrUnsupportedRetention, s)
	}
}

// Index is an append-only list of ids addressed by position.
type Index interface {
	Append(id int64) error
	At(i int) (int64, error)
	Len() int
	Close() error
}

// New opens an index. dir is only used by the bolt index, for its scratch
// file; an empty dir means the system temp directory.
func New(mode Mode, dir, name string) (Index, error) {
	switch mode {
	case "", ModeMemory:
		return NewMemoryIndex(), nil
	case ModeBolt:
		idx, err := NewBoltIndex(dir, name)
		if err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("%w: %q", datagen.ErrUnsupportedRetention, mode)
	}
}
