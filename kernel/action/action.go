// Package action defines the immutable intent value submitted against a
// game process: which action, by which player, against which object, in
// which direction.
package action

import (
	"errors"
	"fmt"

	"github.com/griddy-sim/griddy/kernel/spatial"
)

// ErrInvalid is returned by Validate when an action is structurally
// malformed (e.g. an empty Name, or an unresolvable vector convention).
var ErrInvalid = errors.New("action: invalid")

// VectorMode selects how an action's displacement vector is derived.
type VectorMode uint8

const (
	// Forward derives the vector from the acting object's current facing.
	Forward VectorMode = iota
	// TurnLeft rotates the acting object a quarter turn counter-clockwise
	// without displacing it.
	TurnLeft
	// TurnRight rotates the acting object a quarter turn clockwise without
	// displacing it.
	TurnRight
	// Displacement uses an explicit Vector carried on the action.
	Displacement
)

// Action is the immutable intent value: "player P asks object at handle H
// to perform action Name". Actions never reference a destination object
// directly — that is resolved during behaviour-table lookup once the
// destination kind at the target cell is known.
type Action struct {
	Name     string
	PlayerID uint32
	Source   spatial.Handle
	Mode     VectorMode
	Vector   spatial.Vector // only meaningful when Mode == Displacement
}

// TargetCell computes the destination cell an action resolves against,
// given the acting object's current location and facing.
func (a Action) TargetCell(loc spatial.Coord, facing spatial.Direction) spatial.Coord {
	switch a.Mode {
	case Forward:
		return loc.Add(facing.Vector())
	case Displacement:
		return loc.Add(a.Vector)
	default:
		// TurnLeft/TurnRight do not displace; they resolve against the
		// acting object's own cell.
		return loc
	}
}

// ResolvedFacing computes the acting object's facing after the action, given
// its facing before the action.
func (a Action) ResolvedFacing(before spatial.Direction) spatial.Direction {
	switch a.Mode {
	case TurnLeft:
		return before.TurnLeft()
	case TurnRight:
		return before.TurnRight()
	default:
		return before
	}
}

// Validate checks that the action is structurally well-formed.
func (a Action) Validate() error {
	if a.Name == "" {
		return fmt.Errorf("%w: empty action name", ErrInvalid)
	}
	if !a.Source.IsValid() {
		return fmt.Errorf("%w: invalid source handle", ErrInvalid)
	}
	if a.Mode > Displacement {
		return fmt.Errorf("%w: unknown vector mode %d", ErrInvalid, a.Mode)
	}
	return nil
}
