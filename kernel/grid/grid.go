// Package grid owns the spatial cell map, the handle-indexed object arena,
// and the per-tick dirty-cell bookkeeping that observers consume.
package grid

import (
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/griddy-sim/griddy/kernel/object"
	"github.com/griddy-sim/griddy/kernel/spatial"
)

var (
	// ErrAlreadyInitialized is returned by Init when called on a grid that
	// already has dimensions set.
	ErrAlreadyInitialized = errors.New("grid: already initialized")
	// ErrOutOfBounds is returned when a coordinate falls outside the grid's
	// width/height.
	ErrOutOfBounds = errors.New("grid: coordinate out of bounds")
	// ErrOccupied is returned by AddObject/MoveObject when the destination
	// cell on the object's layer is already occupied.
	ErrOccupied = errors.New("grid: cell occupied")
	// ErrInvalidHandle is returned when a handle does not reference a live
	// object (either never allocated or since removed).
	ErrInvalidHandle = errors.New("grid: invalid handle")
)

// slot is one entry in the object arena. occupied false + generation set
// means "free, can be reused with generation+1".
type slot struct {
	generation uint32
	occupied   bool
	obj        *object.Object
}

// Grid is the spatial store: a width x height cell map keyed by (coord,
// layer), a handle-indexed arena owning the live objects, a tick counter,
// global integer variables shared across behaviours, and the set of cells
// touched since the last render, consumed by observers.
type Grid struct {
	width, height int32
	factory       *object.Factory

	arena    []slot
	freeList []uint32

	cells map[spatial.Coord]map[int32]spatial.Handle
	live  *orderedmap.OrderedMap[spatial.Handle, struct{}]
	dirty *orderedmap.OrderedMap[spatial.Coord, struct{}]

	tick    int64
	globals map[string]map[uint32]int32 // name -> playerID (0 for shared) -> value
}

// New returns a grid bound to the given object factory. The factory is
// shared, read-only, across every grid instance compiled from the same
// declarative description.
func New(factory *object.Factory) *Grid {
	return &Grid{
		factory: factory,
		cells:   make(map[spatial.Coord]map[int32]spatial.Handle),
		live:    orderedmap.New[spatial.Handle, struct{}](),
		dirty:   orderedmap.New[spatial.Coord, struct{}](),
		globals: make(map[string]map[uint32]int32),
	}
}

// Init sets the grid's dimensions. It may be called only once per Grid
// value; a process that needs to reload a level builds a fresh Grid instead
// (see kernel/process, which owns that lifecycle decision).
func (g *Grid) Init(width, height int32) error {
	if g.width != 0 || g.height != 0 {
		return ErrAlreadyInitialized
	}
	g.width, g.height = width, height
	return nil
}

// Dimensions returns the grid's width and height.
func (g *Grid) Dimensions() (width, height int32) {
	return g.width, g.height
}

func (g *Grid) inBounds(c spatial.Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

func (g *Grid) allocate(obj *object.Object) spatial.Handle {
	if n := len(g.freeList); n > 0 {
		idx := g.freeList[n-1]
		g.freeList = g.freeList[:n-1]
		s := &g.arena[idx]
		s.occupied = true
		s.obj = obj
		h := spatial.NewHandle(idx, s.generation)
		obj.Handle = h
		return h
	}
	idx := uint32(len(g.arena))
	g.arena = append(g.arena, slot{generation: 1, occupied: true, obj: obj})
	h := spatial.NewHandle(idx, 1)
	obj.Handle = h
	return h
}

func (g *Grid) slotFor(h spatial.Handle) (*slot, error) {
	if !h.IsValid() || h.Index() >= uint32(len(g.arena)) {
		return nil, ErrInvalidHandle
	}
	s := &g.arena[h.Index()]
	if !s.occupied || s.generation != h.Generation() {
		return nil, ErrInvalidHandle
	}
	return s, nil
}

// AddObject instantiates an object of the given kind via the bound factory
// and places it on the grid at loc. The factory never allocates into the
// grid directly; this method is the only path from "kind name" to "live
// object with a handle".
func (g *Grid) AddObject(kind string, playerID uint32, loc spatial.Coord, orientation spatial.Direction) (spatial.Handle, error) {
	if !g.inBounds(loc) {
		return spatial.Handle{}, fmt.Errorf("%w: %s", ErrOutOfBounds, loc)
	}
	def, err := g.factory.Kind(kind)
	if err != nil {
		return spatial.Handle{}, err
	}
	if layer, ok := g.cells[loc]; ok {
		if _, taken := layer[def.Layer]; taken {
			return spatial.Handle{}, fmt.Errorf("%w: %s layer %d", ErrOccupied, loc, def.Layer)
		}
	}
	obj, err := g.factory.New(kind, playerID, loc, orientation)
	if err != nil {
		return spatial.Handle{}, err
	}
	h := g.allocate(obj)
	if g.cells[loc] == nil {
		g.cells[loc] = make(map[int32]spatial.Handle)
	}
	g.cells[loc][def.Layer] = h
	g.live.Set(h, struct{}{})
	g.markDirty(loc)
	return h, nil
}

// RemoveObject deletes the object referenced by h from the grid and frees
// its arena slot for reuse (bumping the generation so stale handles fail).
func (g *Grid) RemoveObject(h spatial.Handle) error {
	s, err := g.slotFor(h)
	if err != nil {
		return err
	}
	def, err := g.factory.Kind(s.obj.Kind)
	if err != nil {
		return err
	}
	loc := s.obj.Location
	if layer, ok := g.cells[loc]; ok {
		delete(layer, def.Layer)
		if len(layer) == 0 {
			delete(g.cells, loc)
		}
	}
	g.live.Delete(h)
	s.occupied = false
	s.obj = nil
	s.generation++
	g.freeList = append(g.freeList, h.Index())
	g.markDirty(loc)
	return nil
}

// MoveObject relocates the object referenced by h to dst. It fails with
// ErrOccupied if dst is already occupied on the object's layer.
func (g *Grid) MoveObject(h spatial.Handle, dst spatial.Coord) error {
	s, err := g.slotFor(h)
	if err != nil {
		return err
	}
	if !g.inBounds(dst) {
		return fmt.Errorf("%w: %s", ErrOutOfBounds, dst)
	}
	def, err := g.factory.Kind(s.obj.Kind)
	if err != nil {
		return err
	}
	if layer, ok := g.cells[dst]; ok {
		if _, taken := layer[def.Layer]; taken {
			return fmt.Errorf("%w: %s layer %d", ErrOccupied, dst, def.Layer)
		}
	}
	src := s.obj.Location
	if layer, ok := g.cells[src]; ok {
		delete(layer, def.Layer)
		if len(layer) == 0 {
			delete(g.cells, src)
		}
	}
	if g.cells[dst] == nil {
		g.cells[dst] = make(map[int32]spatial.Handle)
	}
	g.cells[dst][def.Layer] = h
	s.obj.Location = dst
	g.markDirty(src)
	g.markDirty(dst)
	return nil
}

// Object returns the live object referenced by h.
func (g *Grid) Object(h spatial.Handle) (*object.Object, error) {
	s, err := g.slotFor(h)
	if err != nil {
		return nil, err
	}
	return s.obj, nil
}

// CellAt returns the handles occupying loc, keyed by layer.
func (g *Grid) CellAt(loc spatial.Coord) map[int32]spatial.Handle {
	out := make(map[int32]spatial.Handle, len(g.cells[loc]))
	for layer, h := range g.cells[loc] {
		out[layer] = h
	}
	return out
}

// LiveHandles returns every currently live handle in insertion order.
func (g *Grid) LiveHandles() []spatial.Handle {
	out := make([]spatial.Handle, 0, g.live.Len())
	for pair := g.live.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

func (g *Grid) markDirty(c spatial.Coord) {
	g.dirty.Set(c, struct{}{})
}

// UpdatedLocations returns every cell touched since the last call to
// ClearUpdatedLocations, in the order they were first touched this tick.
func (g *Grid) UpdatedLocations() []spatial.Coord {
	out := make([]spatial.Coord, 0, g.dirty.Len())
	for pair := g.dirty.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// ClearUpdatedLocations empties the dirty-cell set. Observers call this
// after consuming UpdatedLocations for a frame.
func (g *Grid) ClearUpdatedLocations() {
	g.dirty = orderedmap.New[spatial.Coord, struct{}]()
}

// Tick returns the current tick counter.
func (g *Grid) Tick() int64 { return g.tick }

// Advance increments the tick counter by one. Called once per resolved
// action batch by the owning game process.
func (g *Grid) Advance() { g.tick++ }

// Global returns the value of a global variable for a given player (use
// playerID 0 for a globally shared variable).
func (g *Grid) Global(name string, playerID uint32) int32 {
	return g.globals[name][playerID]
}

// SetGlobal sets the value of a global variable for a given player.
func (g *Grid) SetGlobal(name string, playerID uint32, value int32) {
	if g.globals[name] == nil {
		g.globals[name] = make(map[uint32]int32)
	}
	g.globals[name][playerID] = value
}

// Snapshot captures enough state to roll the grid back to this point: the
// arena and its free list, cell map, live-set order, globals and tick,
// deep-copied. It is used by the game process to implement cascade-overflow
// rollback.
type Snapshot struct {
	arena    []slot
	freeList []uint32
	cells    map[spatial.Coord]map[int32]spatial.Handle
	live     []spatial.Handle
	globals  map[string]map[uint32]int32
	tick     int64
}

// Snapshot returns a deep copy of the grid's mutable state.
func (g *Grid) Snapshot() *Snapshot {
	arena := make([]slot, len(g.arena))
	for i, s := range g.arena {
		arena[i] = s
		if s.obj != nil {
			arena[i].obj = s.obj.Clone()
		}
	}
	cells := make(map[spatial.Coord]map[int32]spatial.Handle, len(g.cells))
	for c, layer := range g.cells {
		lc := make(map[int32]spatial.Handle, len(layer))
		for l, h := range layer {
			lc[l] = h
		}
		cells[c] = lc
	}
	globals := make(map[string]map[uint32]int32, len(g.globals))
	for name, byPlayer := range g.globals {
		m := make(map[uint32]int32, len(byPlayer))
		for p, v := range byPlayer {
			m[p] = v
		}
		globals[name] = m
	}
	return &Snapshot{
		arena:    arena,
		freeList: append([]uint32(nil), g.freeList...),
		cells:    cells,
		live:     g.LiveHandles(),
		globals:  globals,
		tick:     g.tick,
	}
}

// Restore reverts the grid to a previously captured snapshot. The live set
// is rebuilt in its snapshotted insertion order and the dirty set is
// emptied; no reward side effects are replayed, matching the
// cascade-overflow contract (the tick that overflowed never happened).
func (g *Grid) Restore(snap *Snapshot) {
	g.arena = snap.arena
	g.freeList = snap.freeList
	g.cells = snap.cells
	g.globals = snap.globals
	g.tick = snap.tick
	g.live = orderedmap.New[spatial.Handle, struct{}]()
	for _, h := range snap.live {
		g.live.Set(h, struct{}{})
	}
	g.dirty = orderedmap.New[spatial.Coord, struct{}]()
}
