// Package command implements the command library: the primitive operations
// a behaviour's command list can invoke against a grid and the two objects
// participating in an action.
package command

import (
	"errors"
	"fmt"

	"github.com/griddy-sim/griddy/kernel/grid"
	"github.com/griddy-sim/griddy/kernel/spatial"
)

// ErrBlocked is returned by a command whose preconditions are not met (e.g.
// mov into an occupied cell). It is a command-level failure, not fatal to
// the tick: the behaviour simply stops executing its remaining commands.
var ErrBlocked = errors.New("command: blocked")

// Context is the execution environment a command runs in: the grid it
// mutates, the acting ("src") and target ("dst") object handles, and the
// accumulated per-player reward deltas for the current resolution step.
// Rewards is mutated in place by the reward command.
type Context struct {
	Grid     *grid.Grid
	PlayerID uint32
	Src      spatial.Handle
	Dst      spatial.Handle // zero Handle if the action targeted an empty cell
	Rewards  map[uint32]int32

	// Cascade receives any actions a cascade command wants resolved
	// immediately afterwards, within the same tick's cascade budget.
	Cascade []CascadeRequest
}

// CascadeRequest is a follow-on action emitted by the cascade command, to be
// resolved by the owning game process before the current batch completes.
type CascadeRequest struct {
	ActionName string
	PlayerID   uint32
	Source     spatial.Handle
}

// Command is one operation in a compiled command list.
type Command interface {
	// Execute runs the command against ctx. Returning ErrBlocked halts the
	// remaining commands in the same behaviour's list (spec error taxonomy:
	// Blocked is command-level, not fatal to the tick).
	Execute(ctx *Context) error
}

// Mov relocates the acting (source) object by a relative vector.
type Mov struct {
	DX, DY int32
}

func (c Mov) Execute(ctx *Context) error {
	obj, err := ctx.Grid.Object(ctx.Src)
	if err != nil {
		return err
	}
	dst := obj.Location.Add(spatial.Vector{DX: c.DX, DY: c.DY})
	if err := ctx.Grid.MoveObject(ctx.Src, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrBlocked, err)
	}
	return nil
}

// Remove deletes an object from the grid. Target selects which participant.
type Remove struct {
	Target Participant
}

// Participant selects which side of an action a command applies to.
type Participant uint8

const (
	ParticipantSource Participant = iota
	ParticipantDestination
)

func (c Remove) handle(ctx *Context) spatial.Handle {
	if c.Target == ParticipantSource {
		return ctx.Src
	}
	return ctx.Dst
}

func (c Remove) Execute(ctx *Context) error {
	h := c.handle(ctx)
	if !h.IsValid() {
		return nil
	}
	return ctx.Grid.RemoveObject(h)
}

// ChangeTo replaces an object's kind in place by removing and recreating it
// at the same location, owner and orientation.
type ChangeTo struct {
	Target  Participant
	NewKind string
}

func (c ChangeTo) Execute(ctx *Context) error {
	var h spatial.Handle
	if c.Target == ParticipantSource {
		h = ctx.Src
	} else {
		h = ctx.Dst
	}
	if !h.IsValid() {
		return nil
	}
	obj, err := ctx.Grid.Object(h)
	if err != nil {
		return err
	}
	loc, playerID, facing := obj.Location, obj.PlayerID, obj.Orientation
	if err := ctx.Grid.RemoveObject(h); err != nil {
		return err
	}
	newH, err := ctx.Grid.AddObject(c.NewKind, playerID, loc, facing)
	if err != nil {
		return err
	}
	if c.Target == ParticipantSource {
		ctx.Src = newH
	} else {
		ctx.Dst = newH
	}
	return nil
}

// Reward adds a delta to the acting player's accumulated reward for the
// current tick.
type Reward struct {
	Delta int32
}

func (c Reward) Execute(ctx *Context) error {
	if ctx.Rewards == nil {
		return nil
	}
	ctx.Rewards[ctx.PlayerID] += c.Delta
	return nil
}

// Cascade queues a follow-on action to be resolved within the current
// cascade budget, after the current command list finishes.
type Cascade struct {
	ActionName string
	Target     Participant
}

func (c Cascade) Execute(ctx *Context) error {
	h := ctx.Src
	if c.Target == ParticipantDestination {
		h = ctx.Dst
	}
	if !h.IsValid() {
		return nil
	}
	ctx.Cascade = append(ctx.Cascade, CascadeRequest{
		ActionName: c.ActionName,
		PlayerID:   ctx.PlayerID,
		Source:     h,
	})
	return nil
}

// VarOp selects an integer parameter mutation.
type VarOp uint8

const (
	OpSet VarOp = iota
	OpIncr
	OpDecr
)

// VarCommand mutates a named integer parameter on one participant, or on
// the grid's global variables when Target is ParticipantSource/Destination
// is not applicable (Global true).
type VarCommand struct {
	Target   Participant
	Variable string
	Op       VarOp
	Amount   int32
	Global   bool
}

func (c VarCommand) Execute(ctx *Context) error {
	apply := func(cur int32) int32 {
		switch c.Op {
		case OpIncr:
			return cur + c.Amount
		case OpDecr:
			return cur - c.Amount
		default:
			return c.Amount
		}
	}
	if c.Global {
		cur := ctx.Grid.Global(c.Variable, ctx.PlayerID)
		ctx.Grid.SetGlobal(c.Variable, ctx.PlayerID, apply(cur))
		return nil
	}
	h := ctx.Src
	if c.Target == ParticipantDestination {
		h = ctx.Dst
	}
	if !h.IsValid() {
		return nil
	}
	obj, err := ctx.Grid.Object(h)
	if err != nil {
		return err
	}
	obj.Params[c.Variable] = apply(obj.Params[c.Variable])
	return nil
}

// CompareOp selects the relation a conditional command tests.
type CompareOp uint8

const (
	OpEq CompareOp = iota
	OpGt
	OpLt
)

// Conditional evaluates a comparison between a named variable (resolved
// from the target participant's params, falling back to the grid's globals)
// and a literal value, running Then when it holds and Else otherwise.
type Conditional struct {
	Target   Participant
	Variable string
	Op       CompareOp
	Value    int32
	Then     []Command
	Else     []Command
}

func (c Conditional) resolve(ctx *Context) int32 {
	h := ctx.Src
	if c.Target == ParticipantDestination {
		h = ctx.Dst
	}
	if h.IsValid() {
		if obj, err := ctx.Grid.Object(h); err == nil {
			if v, ok := obj.Params[c.Variable]; ok {
				return v
			}
		}
	}
	return ctx.Grid.Global(c.Variable, ctx.PlayerID)
}

func (c Conditional) holds(ctx *Context) bool {
	v := c.resolve(ctx)
	switch c.Op {
	case OpEq:
		return v == c.Value
	case OpGt:
		return v > c.Value
	case OpLt:
		return v < c.Value
	default:
		return false
	}
}

func (c Conditional) Execute(ctx *Context) error {
	list := c.Else
	if c.holds(ctx) {
		list = c.Then
	}
	for _, cmd := range list {
		if err := cmd.Execute(ctx); err != nil {
			return err
		}
	}
	return nil
}
