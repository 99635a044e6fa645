package grid

import (
	"errors"
	"testing"

	"github.com/griddy-sim/griddy/kernel/object"
	"github.com/griddy-sim/griddy/kernel/spatial"
)

func newTestFactory(t *testing.T) *object.Factory {
	t.Helper()
	f := object.NewFactory()
	if err := f.RegisterKind(object.KindDef{Name: "wall", MapCharacter: 'w'}); err != nil {
		t.Fatal(err)
	}
	if err := f.RegisterKind(object.KindDef{Name: "avatar", MapCharacter: 'A'}); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestInitOnlyOnce(t *testing.T) {
	g := New(newTestFactory(t))
	if err := g.Init(5, 5); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := g.Init(5, 5); !errors.Is(err, ErrAlreadyInitialized) {
		t.Errorf("second Init = %v, want ErrAlreadyInitialized", err)
	}
}

func TestAddMoveRemove(t *testing.T) {
	g := New(newTestFactory(t))
	_ = g.Init(5, 5)

	h, err := g.AddObject("avatar", 1, spatial.Coord{X: 1, Y: 1}, spatial.North)
	if err != nil {
		t.Fatalf("AddObject: %v", err)
	}
	obj, err := g.Object(h)
	if err != nil || obj.Location != (spatial.Coord{X: 1, Y: 1}) {
		t.Fatalf("Object() = %+v, %v", obj, err)
	}

	if err := g.MoveObject(h, spatial.Coord{X: 2, Y: 1}); err != nil {
		t.Fatalf("MoveObject: %v", err)
	}
	obj, _ = g.Object(h)
	if obj.Location != (spatial.Coord{X: 2, Y: 1}) {
		t.Errorf("location after move = %s, want (2,1)", obj.Location)
	}

	if err := g.RemoveObject(h); err != nil {
		t.Fatalf("RemoveObject: %v", err)
	}
	if _, err := g.Object(h); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Object() after remove = %v, want ErrInvalidHandle", err)
	}
}

func TestAddObjectOccupiedSameLayer(t *testing.T) {
	g := New(newTestFactory(t))
	_ = g.Init(3, 3)
	_, _ = g.AddObject("wall", 0, spatial.Coord{X: 0, Y: 0}, spatial.North)
	_, err := g.AddObject("wall", 0, spatial.Coord{X: 0, Y: 0}, spatial.North)
	if !errors.Is(err, ErrOccupied) {
		t.Errorf("err = %v, want ErrOccupied", err)
	}
}

func TestAddObjectDifferentLayersCoexist(t *testing.T) {
	f := object.NewFactory()
	_ = f.RegisterKind(object.KindDef{Name: "floor", MapCharacter: 'f', Layer: 0})
	_ = f.RegisterKind(object.KindDef{Name: "avatar", MapCharacter: 'A', Layer: 1})
	g := New(f)
	_ = g.Init(3, 3)
	loc := spatial.Coord{X: 1, Y: 1}
	if _, err := g.AddObject("floor", 0, loc, spatial.North); err != nil {
		t.Fatalf("floor: %v", err)
	}
	if _, err := g.AddObject("avatar", 1, loc, spatial.North); err != nil {
		t.Fatalf("avatar on separate layer should coexist: %v", err)
	}
}

func TestHandleGenerationInvalidatedAfterRemove(t *testing.T) {
	g := New(newTestFactory(t))
	_ = g.Init(3, 3)
	h1, _ := g.AddObject("avatar", 1, spatial.Coord{X: 0, Y: 0}, spatial.North)
	_ = g.RemoveObject(h1)
	h2, _ := g.AddObject("avatar", 1, spatial.Coord{X: 0, Y: 0}, spatial.North)
	if h1 == h2 {
		t.Fatal("reused slot must bump generation so the stale handle differs")
	}
	if _, err := g.Object(h1); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("stale handle should be invalid, got %v", err)
	}
	if _, err := g.Object(h2); err != nil {
		t.Errorf("fresh handle should be valid: %v", err)
	}
}

func TestDirtySetTracksTouchedCells(t *testing.T) {
	g := New(newTestFactory(t))
	_ = g.Init(3, 3)
	h, _ := g.AddObject("avatar", 1, spatial.Coord{X: 0, Y: 0}, spatial.North)
	g.ClearUpdatedLocations()
	_ = g.MoveObject(h, spatial.Coord{X: 1, Y: 0})
	locs := g.UpdatedLocations()
	if len(locs) != 2 {
		t.Fatalf("UpdatedLocations = %v, want 2 entries (src+dst)", locs)
	}
	g.ClearUpdatedLocations()
	if len(g.UpdatedLocations()) != 0 {
		t.Error("ClearUpdatedLocations should empty the dirty set")
	}
}

func TestTickAdvance(t *testing.T) {
	g := New(newTestFactory(t))
	if g.Tick() != 0 {
		t.Fatalf("initial tick = %d, want 0", g.Tick())
	}
	g.Advance()
	g.Advance()
	if g.Tick() != 2 {
		t.Errorf("tick after two Advance() = %d, want 2", g.Tick())
	}
}

func TestSnapshotRestore(t *testing.T) {
	g := New(newTestFactory(t))
	_ = g.Init(3, 3)
	h, _ := g.AddObject("avatar", 1, spatial.Coord{X: 0, Y: 0}, spatial.North)
	g.SetGlobal("score", 1, 10)
	snap := g.Snapshot()

	_ = g.MoveObject(h, spatial.Coord{X: 2, Y: 2})
	g.SetGlobal("score", 1, 999)
	g.Advance()

	g.Restore(snap)
	obj, err := g.Object(h)
	if err != nil || obj.Location != (spatial.Coord{X: 0, Y: 0}) {
		t.Errorf("after restore location = %+v, %v, want (0,0)", obj, err)
	}
	if g.Global("score", 1) != 10 {
		t.Errorf("after restore score = %d, want 10", g.Global("score", 1))
	}
	if g.Tick() != 0 {
		t.Errorf("after restore tick = %d, want 0", g.Tick())
	}
}

func TestOutOfBounds(t *testing.T) {
	g := New(newTestFactory(t))
	_ = g.Init(2, 2)
	_, err := g.AddObject("avatar", 1, spatial.Coord{X: 5, Y: 5}, spatial.North)
	if !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("err = %v, want ErrOutOfBounds", err)
	}
}
