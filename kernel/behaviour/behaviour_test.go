package behaviour

import (
	"testing"

	"github.com/griddy-sim/griddy/kernel/command"
)

func TestAddLookup(t *testing.T) {
	tbl := NewTable()
	key := Key{Action: "gather", SrcKind: "harvester", DstKind: "mineral"}
	cmds := []command.Command{command.Reward{Delta: 1}}
	tbl.Add(key, cmds)

	got, ok := tbl.Lookup(key)
	if !ok || len(got) != 1 {
		t.Fatalf("Lookup = %v, %v, want the registered command list", got, ok)
	}
}

func TestLookupMiss(t *testing.T) {
	tbl := NewTable()
	_, ok := tbl.Lookup(Key{Action: "gather", SrcKind: "harvester", DstKind: "wall"})
	if ok {
		t.Error("expected no entry for an unregistered triple")
	}
}

func TestAddOverridesPriorDeclaration(t *testing.T) {
	tbl := NewTable()
	key := Key{Action: "move", SrcKind: "avatar", DstKind: "_empty"}
	tbl.Add(key, []command.Command{command.Reward{Delta: 1}})
	tbl.Add(key, []command.Command{command.Reward{Delta: 2}})

	got, _ := tbl.Lookup(key)
	if len(got) != 1 {
		t.Fatalf("expected the second declaration to replace the first, got %d commands", len(got))
	}
	r, ok := got[0].(command.Reward)
	if !ok || r.Delta != 2 {
		t.Errorf("got %+v, want Reward{Delta:2}", got[0])
	}
}

func TestKeysReturnsAllRegistered(t *testing.T) {
	tbl := NewTable()
	tbl.Add(Key{Action: "a", SrcKind: "x", DstKind: "y"}, nil)
	tbl.Add(Key{Action: "b", SrcKind: "x", DstKind: "z"}, nil)
	if len(tbl.Keys()) != 2 {
		t.Errorf("Keys() returned %d entries, want 2", len(tbl.Keys()))
	}
}
