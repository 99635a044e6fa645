// Package gdy loads the declarative grid description (YAML) and compiles it
// into the in-memory structures the simulation kernel consumes: an object
// factory, a compiled behaviour table, a termination handler, and the
// parsed levels. Decoding the YAML into these structs is a thin,
// non-behavioural step; the actual behaviour-table compilation in compile.go
// is the in-scope kernel operation this package exists to feed.
package gdy

// Description is the root of a declarative grid description.
type Description struct {
	Version     string          `yaml:"Version"`
	Environment EnvironmentDef  `yaml:"Environment"`
	Objects     []ObjectDef     `yaml:"Objects"`
	Actions     []ActionDef     `yaml:"Actions"`
	Terminations []TerminationDef `yaml:"Terminations"`
}

// EnvironmentDef describes the environment-wide settings: its name, the
// pixel size of one tile (relevant only to pixel-producing observers, which
// this module does not implement, but carried through so declarations stay
// portable), and the text levels available to load.
type EnvironmentDef struct {
	Name     string   `yaml:"Name"`
	TileSize int32    `yaml:"TileSize"`
	Levels   []string `yaml:"Levels"`
}

// BlockDef carries block-observer rendering hints. This module implements
// no pixel observer, but keeps the field so descriptions written for one
// remain loadable unchanged.
type BlockDef struct {
	Color []float64 `yaml:"Color"`
	Shape string    `yaml:"Shape"`
	Scale float64   `yaml:"Scale"`
}

// ObjectDef declares one object kind.
type ObjectDef struct {
	Name         string           `yaml:"Name"`
	MapCharacter string           `yaml:"MapCharacter"`
	Sprite       string           `yaml:"Sprite,omitempty"`
	Block        *BlockDef        `yaml:"Block,omitempty"`
	Layer        int32            `yaml:"Layer,omitempty"`
	Parameters   map[string]int32 `yaml:"Parameters,omitempty"`
}

// VectorDef is a relative (dx, dy) displacement used by the mov command.
type VectorDef struct {
	DX int32 `yaml:"DX"`
	DY int32 `yaml:"DY"`
}

// CommandDef is one entry in a behaviour side's command list. Not every
// field applies to every Command; compileCommand validates the combination
// that matters for the named command.
type CommandDef struct {
	Command    string       `yaml:"Command"`
	Target     string       `yaml:"Target,omitempty"` // "src" (default) or "dst"
	Vector     *VectorDef   `yaml:"Vector,omitempty"`
	Amount     int32        `yaml:"Amount,omitempty"`
	Variable   string       `yaml:"Variable,omitempty"`
	NewKind    string       `yaml:"NewKind,omitempty"`
	ActionName string       `yaml:"ActionName,omitempty"`
	Op         string       `yaml:"Op,omitempty"` // eq, gt, lt
	Value      int32        `yaml:"Value,omitempty"`
	Global     bool         `yaml:"Global,omitempty"`
	Then       []CommandDef `yaml:"Then,omitempty"`
	Else       []CommandDef `yaml:"Else,omitempty"`
}

// BehaviourSide is one side (source or destination) of a behaviour
// definition: the kinds it applies to, and the commands it contributes.
type BehaviourSide struct {
	Type     []string     `yaml:"Type"`
	Commands []CommandDef `yaml:"Commands,omitempty"`
}

// BehaviourDef declares the command lists to run, for every combination of
// a source kind in Src.Type and a destination kind in Dst.Type, when the
// owning action is performed. An empty Dst.Type means the action resolves
// against an empty destination cell.
type BehaviourDef struct {
	Src BehaviourSide `yaml:"Src"`
	Dst BehaviourSide `yaml:"Dst"`
}

// ActionDef declares one action name and its behaviours.
type ActionDef struct {
	Name       string         `yaml:"Name"`
	Behaviours []BehaviourDef `yaml:"Behaviours"`
}

// ResolutionDef declares what happens when a termination condition holds.
type ResolutionDef struct {
	Broadcast string           `yaml:"Broadcast,omitempty"`
	PerPlayer map[uint32]string `yaml:"PerPlayer,omitempty"`
}

// TerminationDef declares one termination condition, evaluated in the order
// conditions appear in the description.
type TerminationDef struct {
	Name       string        `yaml:"Name"`
	Expression string        `yaml:"Expression"`
	Resolution ResolutionDef `yaml:"Resolution"`
}
