package text

import (
	"strings"
	"testing"

	"github.com/griddy-sim/griddy/kernel/grid"
	"github.com/griddy-sim/griddy/kernel/object"
	"github.com/griddy-sim/griddy/kernel/spatial"
)

func newTestGrid(t *testing.T) (*grid.Grid, *object.Factory) {
	t.Helper()
	f := object.NewFactory()
	_ = f.RegisterKind(object.KindDef{Name: "floor", MapCharacter: '.', Layer: 0})
	_ = f.RegisterKind(object.KindDef{Name: "avatar", MapCharacter: 'A', Layer: 1})
	g := grid.New(f)
	_ = g.Init(3, 2)
	return g, f
}

func TestResetRendersFullFrame(t *testing.T) {
	g, f := newTestGrid(t)
	_, _ = g.AddObject("avatar", 1, spatial.Coord{X: 1, Y: 0}, spatial.North)

	o := New()
	if err := o.Init(f, 3, 2); err != nil {
		t.Fatal(err)
	}
	frame, err := o.Reset(g)
	if err != nil {
		t.Fatal(err)
	}
	text := frame.Data.(string)
	lines := strings.Split(text, "\n")
	if len(lines) != 2 || lines[0] != ".A." {
		t.Errorf("Reset frame = %q, want first line '.A.'", lines)
	}
}

func TestUpdateOnlyTouchesDirtyCells(t *testing.T) {
	g, f := newTestGrid(t)
	h, _ := g.AddObject("avatar", 1, spatial.Coord{X: 0, Y: 0}, spatial.North)

	o := New()
	_ = o.Init(f, 3, 2)
	_, _ = o.Reset(g)

	_ = g.MoveObject(h, spatial.Coord{X: 2, Y: 1})
	frame, err := o.Update(g)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(frame.Data.(string), "\n")
	if lines[0] != "..." || lines[1] != "..A" {
		t.Errorf("Update frame = %v, want [\"...\" \"..A\"]", lines)
	}
}
