package action

import (
	"errors"
	"testing"

	"github.com/griddy-sim/griddy/kernel/spatial"
)

func TestTargetCellForward(t *testing.T) {
	a := Action{Name: "move", Mode: Forward}
	got := a.TargetCell(spatial.Coord{X: 1, Y: 1}, spatial.East)
	want := spatial.Coord{X: 2, Y: 1}
	if got != want {
		t.Errorf("TargetCell = %s, want %s", got, want)
	}
}

func TestTargetCellDisplacement(t *testing.T) {
	a := Action{Name: "jump", Mode: Displacement, Vector: spatial.Vector{DX: 2, DY: -1}}
	got := a.TargetCell(spatial.Coord{X: 0, Y: 0}, spatial.North)
	want := spatial.Coord{X: 2, Y: -1}
	if got != want {
		t.Errorf("TargetCell = %s, want %s", got, want)
	}
}

func TestResolvedFacing(t *testing.T) {
	a := Action{Name: "turn", Mode: TurnRight}
	if got := a.ResolvedFacing(spatial.North); got != spatial.East {
		t.Errorf("ResolvedFacing = %s, want EAST", got)
	}
}

func TestValidate(t *testing.T) {
	h := spatial.NewHandle(1, 1)
	valid := Action{Name: "move", Source: h}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid action, got %v", err)
	}
	invalid := Action{Name: "", Source: h}
	if !errors.Is(invalid.Validate(), ErrInvalid) {
		t.Error("expected ErrInvalid for empty name")
	}
	noSource := Action{Name: "move"}
	if !errors.Is(noSource.Validate(), ErrInvalid) {
		t.Error("expected ErrInvalid for zero-value source handle")
	}
}
