// Package observer defines the rendering-agnostic contract a game process
// drives after every resolved action batch: init once, reset on level load,
// update incrementally off the grid's dirty-cell set.
package observer

import (
	"github.com/griddy-sim/griddy/kernel/grid"
	"github.com/griddy-sim/griddy/kernel/object"
)

// Frame is an opaque rendered observation. Concrete observers define what
// they put inside it (a text grid, a JSON document, pixels); the kernel
// never interprets Frame's contents.
type Frame struct {
	Tick int64
	Data any
}

// Observer is implemented by anything a game process can render frames
// through. Init binds the observer to a factory and grid dimensions once;
// Reset is called whenever the grid is reloaded (including Init-time and
// every process Reset); Update renders the current frame and is expected to
// use Grid.UpdatedLocations for incremental observers, clearing the dirty
// set afterwards.
type Observer interface {
	Init(factory *object.Factory, width, height int32) error
	Reset(g *grid.Grid) (Frame, error)
	Update(g *grid.Grid) (Frame, error)
}
