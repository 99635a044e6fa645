// Package termination evaluates the ordered list of termination conditions
// a game process checks after every resolved action batch, deciding whether
// the episode ends and, if so, each player's outcome.
package termination

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Outcome is a single player's result when a condition fires.
type Outcome string

const (
	Win  Outcome = "WIN"
	Lose Outcome = "LOSE"
	None Outcome = "NONE"
)

// Resolution describes what happens when a Condition's expression evaluates
// true: either every player gets the same outcome (Broadcast), or outcomes
// are assigned per player id.
type Resolution struct {
	Broadcast Outcome
	PerPlayer map[uint32]Outcome
}

// Condition is one termination rule: an expr-lang boolean expression
// evaluated against the current Context, and the resolution to apply when
// it holds. Conditions are checked in declared order; the first to hold
// wins (spec's termination handler contract leaves the expression format
// "format-defined" — this module fixes it to expr-lang, the pack's
// convention for this kind of condition evaluation).
type Condition struct {
	Name       string
	Expression string
	Resolution Resolution
}

// Context supplies the variables a termination expression may reference:
// global variables (by name, keyed by player id with 0 meaning shared),
// each player's accumulated reward so far, and live object counts by kind.
type Context struct {
	Tick      int64
	Globals   map[string]map[uint32]int32
	Rewards   map[uint32]int32
	KindCount map[string]int
	PlayerID  uint32 // the player the expression is being evaluated on behalf of
}

func (c Context) env() map[string]any {
	globals := make(map[string]any, len(c.Globals))
	for name, byPlayer := range c.Globals {
		if v, ok := byPlayer[c.PlayerID]; ok {
			globals[name] = v
		} else {
			globals[name] = byPlayer[0]
		}
	}
	counts := make(map[string]any, len(c.KindCount))
	for k, v := range c.KindCount {
		counts[k] = v
	}
	return map[string]any{
		"tick":   c.Tick,
		"reward": c.Rewards[c.PlayerID],
		"global": globals,
		"count":  counts,
		"player": c.PlayerID,
	}
}

// Handler evaluates a game's termination conditions in declared order,
// caching each condition's compiled expr-lang program across calls.
type Handler struct {
	conditions []Condition
	compiled   map[string]*vm.Program
}

// NewHandler returns a handler for the given ordered condition list.
func NewHandler(conditions []Condition) *Handler {
	return &Handler{
		conditions: conditions,
		compiled:   make(map[string]*vm.Program, len(conditions)),
	}
}

func (h *Handler) programFor(c Condition) (*vm.Program, error) {
	if p, ok := h.compiled[c.Expression]; ok {
		return p, nil
	}
	p, err := expr.Compile(c.Expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("termination: compiling %q: %w", c.Name, err)
	}
	h.compiled[c.Expression] = p
	return p, nil
}

// Evaluate checks every condition, in order, against ctx (evaluated once
// per id in playerIDs so per-player expressions like
// "reward > 10" resolve individually). The first condition whose expression
// holds for any player wins; its Resolution is returned along with true. If
// no condition holds, it returns zero-value Resolution and false.
func (h *Handler) Evaluate(ctx Context, playerIDs []uint32) (Condition, Resolution, bool) {
	for _, cond := range h.conditions {
		prog, err := h.programFor(cond)
		if err != nil {
			continue
		}
		for _, pid := range playerIDs {
			playerCtx := ctx
			playerCtx.PlayerID = pid
			out, err := expr.Run(prog, playerCtx.env())
			if err != nil {
				continue
			}
			if holds, _ := out.(bool); holds {
				return cond, cond.Resolution, true
			}
		}
	}
	return Condition{}, Resolution{}, false
}

// Resolve expands a Resolution into a concrete per-player outcome map for
// the given player ids.
func (r Resolution) Resolve(playerIDs []uint32) map[uint32]Outcome {
	out := make(map[uint32]Outcome, len(playerIDs))
	for _, pid := range playerIDs {
		if o, ok := r.PerPlayer[pid]; ok {
			out[pid] = o
			continue
		}
		if r.Broadcast != "" {
			out[pid] = r.Broadcast
			continue
		}
		out[pid] = None
	}
	return out
}
