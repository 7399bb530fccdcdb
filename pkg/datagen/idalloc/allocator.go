// Package idalloc issues the integer identifiers written into every entity.
//
// An Allocator is built once per run and never changes mode afterwards. All
// counters advance with atomic read-then-increment so an Allocator may be
// shared between goroutines, although the pipeline itself calls it from one.
package idalloc

import (
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/bwmarrin/snowflake"
	"pkg.jsn.cam/datagen/pkg/datagen"
)

// Mode selects how identifiers are scoped.
type Mode string

const (
	// ModeShared uses one sequence for every kind.
	ModeShared Mode = "shared"
	// ModePerKind gives every kind its own sequence and start value.
	ModePerKind Mode = "per-kind"
	// ModeSnowflake issues time-ordered snowflake ids; start values are ignored.
	ModeSnowflake Mode = "snowflake"
)

// ParseMode validates a mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeShared, ModePerKind, ModeSnowflake:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", datagen.ErrUnsupportedIDMode, s)
	}
}

// Allocator hands out identifiers for entity kinds.
type Allocator interface {
	Next(kind datagen.Kind) int64
}

// Config holds the start values for the counter based modes.
type Config struct {
	Mode  Mode
	Start int64 // shared mode

	// per-kind mode
	UserStart        int64
	AddressStart     int64
	ProviderStart    int64
	TransactionStart int64

	// snowflake mode, 0-1023
	Node int64
}

// New builds an allocator for cfg.
func New(cfg Config) (Allocator, error) {
	switch cfg.Mode {
	case ModeShared, "":
		return NewShared(cfg.Start), nil
	case ModePerKind:
		return NewPerKind(map[datagen.Kind]int64{
			datagen.KindUser:        cfg.UserStart,
			datagen.KindAddress:     cfg.AddressStart,
			datagen.KindProvider:    cfg.ProviderStart,
			datagen.KindTransaction: cfg.TransactionStart,
		}), nil
	case ModeSnowflake:
		return NewSnowflake(cfg.Node)
	default:
		return nil, fmt.Errorf("%w: %q", datagen.ErrUnsupportedIDMode, cfg.Mode)
	}
}

// Shared is a single sequence consumed by every kind.
type Shared struct {
	next atomic.Int64
}

// NewShared returns a shared sequence whose first id is start.
func NewShared(start int64) *Shared {
	s := &Shared{}
	s.next.Store(start)
	return s
}

// Next returns the current value and advances the sequence; kind is ignored.
func (s *Shared) Next(datagen.Kind) int64 {
	return s.next.Add(1) - 1
}

// PerKind keeps an independent sequence per kind.
type PerKind struct {
	counters [len(kindSlots)]atomic.Int64
}

var kindSlots = [...]datagen.Kind{
	datagen.KindUser,
	datagen.KindAddress,
	datagen.KindProvider,
	datagen.KindTransaction,
}

// NewPerKind returns per-kind sequences. Kinds missing from starts begin at 1.
func NewPerKind(starts map[datagen.Kind]int64) *PerKind {
	p := &PerKind{}
	for i, k := range kindSlots {
		start, ok := starts[k]
		if !ok {
			start = 1
		}
		p.counters[i].Store(start)
	}
	return p
}

// Next returns the current value of kind's sequence and advances only that one.
func (p *PerKind) Next(kind datagen.Kind) int64 {
	if kind < 0 || int(kind) >= len(p.counters) {
		panic(fmt.Sprintf("idalloc: unknown kind %d", kind))
	}
	return p.counters[kind].Add(1) - 1
}

// Snowflake issues ids from a snowflake node. Ids from one node are unique and
// increasing across all kinds.
type Snowflake struct {
	node *snowflake.Node
}

// NewSnowflake creates a snowflake allocator for the given node number.
func NewSnowflake(node int64) (*Snowflake, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("%w: snowflake node %d: %v", datagen.ErrUnsupportedIDMode, node, err)
	}
	return &Snowflake{node: n}, nil
}

// Next returns a fresh snowflake id; kind is ignored.
func (s *Snowflake) Next(datagen.Kind) int64 {
	return s.node.Generate().Int64()
}
