package pipeline

import (
	"fmt"

	"pkg.jsn.cam/datagen/pkg/datagen"
)

// Phase is a step of a run. Phases only ever advance in declaration order.
type Phase int

const (
	PhaseUsers Phase = iota
	PhaseAddresses
	PhaseProviders
	PhaseTransactions
	PhaseDone
)

func (p Phase) String() string {
	if p == PhaseDone {
		return "done"
	}
	return p.Kind().String()
}

// Kind is the entity kind produced in the phase.
func (p Phase) Kind() datagen.Kind {
	switch p {
	case PhaseUsers:
		return datagen.KindUser
	case PhaseAddresses:
		return datagen.KindAddress
	case PhaseProviders:
		return datagen.KindProvider
	default:
		return datagen.KindTransaction
	}
}

// advance moves from p to its successor, refusing to skip or go back.
func (p *Phase) advance(to Phase) error {
	if to != *p+1 {
		return fmt.Errorf("illegal phase transition %s -> %s", *p, to)
	}
	*p = to
	return nil
}
