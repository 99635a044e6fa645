// Package behaviour compiles declarative action definitions into a table
// keyed by (action name, source kind, destination kind), replacing the
// class-hierarchy double dispatch of the original engine with a plain map
// lookup.
package behaviour

import (
	"fmt"

	"github.com/griddy-sim/griddy/kernel/command"
)

// Key identifies one compiled behaviour slot.
type Key struct {
	Action  string
	SrcKind string
	DstKind string
}

func (k Key) String() string {
	return fmt.Sprintf("%s(%s->%s)", k.Action, k.SrcKind, k.DstKind)
}

// Table is the compiled, read-only mapping from (action, srcKind, dstKind)
// to the ordered command list that runs when that triple is resolved. A
// single Table is shared, read-only, across every game process instance
// compiled from the same declarative description.
type Table struct {
	entries map[Key][]command.Command
}

// NewTable returns an empty table; fill it with Add (gdy.Compile does this
// for every behaviour in a declarative description).
func NewTable() *Table {
	return &Table{entries: make(map[Key][]command.Command)}
}

// Add registers the command list for a (action, srcKind, dstKind) triple.
// Declaring the same triple twice replaces the prior command list, matching
// "last declaration wins" for declarative overrides.
func (t *Table) Add(key Key, commands []command.Command) {
	t.entries[key] = commands
}

// Lookup returns the command list for a triple, and whether one was
// registered. The caller (kernel/process) is responsible for what happens
// when no behaviour is registered for an attempted action: per the
// resolution pipeline, this is a no-op with zero reward, not an error.
func (t *Table) Lookup(key Key) ([]command.Command, bool) {
	cmds, ok := t.entries[key]
	return cmds, ok
}

// Keys returns every registered triple, for introspection and analysis
// tooling.
func (t *Table) Keys() []Key {
	out := make([]Key, 0, len(t.entries))
	for k := range t.entries {
		out = append(out, k)
	}
	return out
}
