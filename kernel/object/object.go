// Package object defines the grid-resident entity type and the factory that
// instantiates objects from a kind registered at description-load time.
package object

import (
	"errors"
	"fmt"

	"github.com/griddy-sim/griddy/kernel/spatial"
)

var (
	// ErrUnknownKind is returned when an operation references a kind name
	// that was never registered with a Factory.
	ErrUnknownKind = errors.New("object: unknown kind")
	// ErrDuplicateKind is returned by RegisterKind when the kind name is
	// already registered.
	ErrDuplicateKind = errors.New("object: duplicate kind")
	// ErrDuplicateMapChar is returned by RegisterKind when the map character
	// is already bound to a different kind.
	ErrDuplicateMapChar = errors.New("object: duplicate map character")
)

// Object is a single grid-resident entity: a player's avatar, a wall, a
// resource, anything placed on the grid. Its behaviour is looked up by Kind
// through the compiled behaviour table rather than held as a direct
// reference, so this package never needs to import the behaviour package.
type Object struct {
	Handle      spatial.Handle
	Kind        string
	PlayerID    uint32
	Location    spatial.Coord
	Orientation spatial.Direction
	Params      map[string]int32
}

// Clone returns a deep copy of the object, suitable for snapshotting before
// a cascade that might need to be rolled back.
func (o *Object) Clone() *Object {
	params := make(map[string]int32, len(o.Params))
	for k, v := range o.Params {
		params[k] = v
	}
	return &Object{
		Handle:      o.Handle,
		Kind:        o.Kind,
		PlayerID:    o.PlayerID,
		Location:    o.Location,
		Orientation: o.Orientation,
		Params:      params,
	}
}

// KindDef describes a registered object kind: its declarative identity
// (map character, sprite/block hints carried through for observers) and the
// default parameter values new instances start with.
type KindDef struct {
	Name          string
	MapCharacter  rune
	Layer         int32
	DefaultParams map[string]int32
}

// Factory instantiates Objects from registered kinds. It holds no reference
// to any grid: placement into a grid's arena is the grid's job (component A
// in the simulation kernel), not the factory's.
type Factory struct {
	kinds   map[string]KindDef
	byChar  map[rune]string
	ordered []string // registration order, used to derive default layer
}

// NewFactory returns an empty object factory.
func NewFactory() *Factory {
	return &Factory{
		kinds:  make(map[string]KindDef),
		byChar: make(map[rune]string),
	}
}

// RegisterKind adds a new object kind. The layer is derived from
// registration order unless def.Layer is explicitly set to a non-zero value
// by the caller (the canonical contract takes no separate zIdx parameter:
// callers that need an explicit layer set it on the KindDef itself).
func (f *Factory) RegisterKind(def KindDef) error {
	if _, exists := f.kinds[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKind, def.Name)
	}
	if existing, exists := f.byChar[def.MapCharacter]; exists {
		return fmt.Errorf("%w: %q already bound to %s", ErrDuplicateMapChar, def.MapCharacter, existing)
	}
	if def.Layer == 0 {
		def.Layer = int32(len(f.ordered))
	}
	f.kinds[def.Name] = def
	f.byChar[def.MapCharacter] = def.Name
	f.ordered = append(f.ordered, def.Name)
	return nil
}

// KindByChar resolves the kind name registered for a level-map character.
func (f *Factory) KindByChar(c rune) (string, bool) {
	name, ok := f.byChar[c]
	return name, ok
}

// Kind returns the registered definition for a kind name.
func (f *Factory) Kind(name string) (KindDef, error) {
	def, ok := f.kinds[name]
	if !ok {
		return KindDef{}, fmt.Errorf("%w: %s", ErrUnknownKind, name)
	}
	return def, nil
}

// Kinds returns every registered kind name in registration order.
func (f *Factory) Kinds() []string {
	out := make([]string, len(f.ordered))
	copy(out, f.ordered)
	return out
}

// New instantiates an Object of the given kind. The returned object has no
// Handle assigned yet; the grid assigns one when the object is placed.
func (f *Factory) New(kind string, playerID uint32, loc spatial.Coord, orientation spatial.Direction) (*Object, error) {
	def, err := f.Kind(kind)
	if err != nil {
		return nil, err
	}
	params := make(map[string]int32, len(def.DefaultParams))
	for k, v := range def.DefaultParams {
		params[k] = v
	}
	return &Object{
		Kind:        kind,
		PlayerID:    playerID,
		Location:    loc,
		Orientation: orientation,
		Params:      params,
	}, nil
}
