// Package text implements a non-pixel reference Observer: each cell renders
// as the map character of the highest-layer object occupying it. It exists
// to give the Observer contract a runnable, testable implementation without
// producing pixels, which stay out of scope for this module.
package text

import (
	"strings"

	"github.com/griddy-sim/griddy/kernel/grid"
	"github.com/griddy-sim/griddy/kernel/object"
	"github.com/griddy-sim/griddy/kernel/observer"
	"github.com/griddy-sim/griddy/kernel/spatial"
)

// Observer renders a grid as a rectangular block of text, one character per
// cell, background '.' where no object is present.
type Observer struct {
	factory       *object.Factory
	width, height int32
	lines         [][]rune
}

// New returns an uninitialized text observer; call Init before use.
func New() *Observer {
	return &Observer{}
}

func (o *Observer) Init(factory *object.Factory, width, height int32) error {
	o.factory = factory
	o.width, o.height = width, height
	o.lines = make([][]rune, height)
	for y := range o.lines {
		row := make([]rune, width)
		for x := range row {
			row[x] = '.'
		}
		o.lines[y] = row
	}
	return nil
}

func (o *Observer) charFor(g *grid.Grid, loc spatial.Coord) rune {
	layers := g.CellAt(loc)
	if len(layers) == 0 {
		return '.'
	}
	var topLayer int32 = -1
	var topChar rune = '.'
	for layer, h := range layers {
		obj, err := g.Object(h)
		if err != nil {
			continue
		}
		def, err := o.factory.Kind(obj.Kind)
		if err != nil {
			continue
		}
		if layer >= topLayer {
			topLayer = layer
			topChar = def.MapCharacter
		}
	}
	return topChar
}

// Reset re-renders every cell, as a single full frame.
func (o *Observer) Reset(g *grid.Grid) (observer.Frame, error) {
	for y := int32(0); y < o.height; y++ {
		for x := int32(0); x < o.width; x++ {
			o.lines[y][x] = o.charFor(g, spatial.Coord{X: x, Y: y})
		}
	}
	g.ClearUpdatedLocations()
	return o.frame(g.Tick()), nil
}

// Update re-renders only the cells the grid reports as touched since the
// last frame, then clears the dirty set.
func (o *Observer) Update(g *grid.Grid) (observer.Frame, error) {
	for _, loc := range g.UpdatedLocations() {
		if loc.Y < 0 || loc.Y >= o.height || loc.X < 0 || loc.X >= o.width {
			continue
		}
		o.lines[loc.Y][loc.X] = o.charFor(g, loc)
	}
	g.ClearUpdatedLocations()
	return o.frame(g.Tick()), nil
}

func (o *Observer) frame(tick int64) observer.Frame {
	rows := make([]string, len(o.lines))
	for i, row := range o.lines {
		rows[i] = string(row)
	}
	return observer.Frame{Tick: tick, Data: strings.Join(rows, "\n")}
}
