// Package process implements the game process state machine: the per-tick
// action resolution pipeline, termination checking, and the lifecycle
// (Constructed -> Initialized -> Running -> Terminal) that every simulation
// instance goes through.
package process

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"

	"github.com/griddy-sim/griddy/kernel/action"
	"github.com/griddy-sim/griddy/kernel/behaviour"
	"github.com/griddy-sim/griddy/kernel/command"
	"github.com/griddy-sim/griddy/kernel/grid"
	"github.com/griddy-sim/griddy/kernel/object"
	"github.com/griddy-sim/griddy/kernel/observer"
	"github.com/griddy-sim/griddy/kernel/spatial"
	"github.com/griddy-sim/griddy/kernel/termination"
)

// State is the lifecycle stage of a GameProcess.
type State uint8

const (
	Constructed State = iota
	Initialized
	Running
	Terminal
)

func (s State) String() string {
	switch s {
	case Constructed:
		return "CONSTRUCTED"
	case Initialized:
		return "INITIALIZED"
	case Running:
		return "RUNNING"
	case Terminal:
		return "TERMINAL"
	default:
		return "UNKNOWN"
	}
}

var (
	// ErrNotInitialized is returned by PerformActions/Reset operations
	// attempted before Init has succeeded, and by PerformActions once the
	// episode is Terminal (until Reset).
	ErrNotInitialized = errors.New("process: not initialized")
	// ErrAlreadyInitialized is returned by Init on any process that has left
	// the Constructed state; reloading a level goes through Reset.
	ErrAlreadyInitialized = errors.New("process: already initialized")
	// ErrCascadeOverflow is returned when a resolved action batch's cascade
	// chain exceeds the configured depth limit; the whole tick is rolled
	// back and no rewards are applied.
	ErrCascadeOverflow = errors.New("process: cascade depth exceeded")
	// ErrInvalidLevel is returned when a Level's placements reference an
	// unregistered kind or an out-of-bounds coordinate.
	ErrInvalidLevel = errors.New("process: invalid level")
)

const defaultCascadeDepth = 16

// Placement is one object to instantiate when a level is loaded. Params,
// when non-nil, overrides the kind's default parameter values — used when
// restoring a level from a persisted StateInfo snapshot rather than a fresh
// text map.
type Placement struct {
	Kind        string
	PlayerID    uint32
	Location    spatial.Coord
	Orientation spatial.Direction
	Params      map[string]int32
}

// Level is a fully parsed level: grid dimensions plus the initial object
// placements read from its text map.
type Level struct {
	Name          string
	Width, Height int32
	Placements    []Placement
}

// ObjectInfo is a read-only snapshot of one live object, used by StateInfo.
type ObjectInfo struct {
	Handle      spatial.Handle
	Kind        string
	Variables   map[string]int32
	Location    spatial.Coord
	Orientation spatial.Direction
	PlayerID    uint32
}

// StateInfo is the full observable state of a game process at a point in
// time: the tick counter, every global variable, and every live object.
type StateInfo struct {
	GameTicks       int64
	GlobalVariables map[string]map[uint32]int32
	Objects         []ObjectInfo
}

// ActionResult reports the outcome of resolving one batch of actions: each
// player's termination outcome this tick (usually NONE) and whether the
// episode as a whole has ended.
type ActionResult struct {
	PlayerStates map[uint32]termination.Outcome
	Terminated   bool
}

// GameProcess is one independent simulation instance: its own grid,
// accumulated rewards and player set, sharing only the immutable compiled
// behaviour table and object factory with any sibling instances compiled
// from the same declarative description.
type GameProcess struct {
	id      string
	name    string
	factory *object.Factory
	table   *behaviour.Table
	term    *termination.Handler
	logger  zerolog.Logger

	grid              *grid.Grid
	players           []uint32
	accumulatedReward map[uint32]int32
	state             State
	cascadeDepth      int
	autoReset         bool
	globalNames       []string

	level     *Level
	observers []observer.Observer
}

// Option configures a GameProcess at construction time.
type Option func(*GameProcess)

// WithCascadeDepth overrides the default cascade resolution budget.
func WithCascadeDepth(n int) Option {
	return func(p *GameProcess) { p.cascadeDepth = n }
}

// WithAutoReset makes the process automatically reset to Initialized after
// reaching Terminal, rather than requiring an explicit Reset call.
func WithAutoReset(v bool) Option {
	return func(p *GameProcess) { p.autoReset = v }
}

// WithLogger injects a structured logger. Logging level and destination are
// a configuration value on construction, never mutable global state.
func WithLogger(l zerolog.Logger) Option {
	return func(p *GameProcess) { p.logger = l }
}

// WithGlobals declares the names of global variables termination conditions
// and StateInfo should report. Grid.Global/SetGlobal work on any name
// without declaration; this list only controls what StateInfo/termination
// context surfaces.
func WithGlobals(names ...string) Option {
	return func(p *GameProcess) { p.globalNames = append(p.globalNames, names...) }
}

// WithObserver registers an observer to be driven alongside the process:
// bound and reset on Init, reset again on every Reset, and updated once per
// resolved PerformActions tick. The first observer registered is the
// "global observer" whose frame Reset() returns. Observers registered this
// way are bound lazily at Init time; to attach one to an already-running
// process, use AddObserver.
func WithObserver(o observer.Observer) Option {
	return func(p *GameProcess) { p.observers = append(p.observers, o) }
}

// New constructs a process bound to the given compiled factory, behaviour
// table and termination handler. It starts in the Constructed state; call
// Init with a Level before performing actions.
func New(name string, factory *object.Factory, table *behaviour.Table, term *termination.Handler, opts ...Option) *GameProcess {
	p := &GameProcess{
		id:                uuid.NewString(),
		name:              name,
		factory:           factory,
		table:             table,
		term:              term,
		logger:            zerolog.Nop(),
		accumulatedReward: make(map[uint32]int32),
		state:             Constructed,
		cascadeDepth:      defaultCascadeDepth,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the process's unique instance identifier.
func (p *GameProcess) ID() string { return p.id }

// ProcessName returns the declarative description's environment name this
// process was compiled from.
func (p *GameProcess) ProcessName() string { return p.name }

// AddPlayer registers a player id with the process. Must be called before
// Init.
func (p *GameProcess) AddPlayer(playerID uint32) error {
	if p.state != Constructed {
		return fmt.Errorf("%w: cannot add players after initialization", ErrAlreadyInitialized)
	}
	if slices.Contains(p.players, playerID) {
		return nil
	}
	p.players = append(p.players, playerID)
	return nil
}

// NumPlayers returns the number of registered players.
func (p *GameProcess) NumPlayers() int { return len(p.players) }

// State returns the process's current lifecycle state.
func (p *GameProcess) State() State { return p.state }

// IsInitialized reports whether the process can perform actions: Init has
// completed and the process is Initialized or Running (not Terminal).
func (p *GameProcess) IsInitialized() bool {
	return p.state == Initialized || p.state == Running
}

// Init loads a level, builds the grid, creates (binds) every registered
// observer against it, and transitions Constructed -> Initialized. Init runs
// at most once per process; any later call, including after Reset, fails
// with ErrAlreadyInitialized.
func (p *GameProcess) Init(level *Level) error {
	if p.state != Constructed {
		return ErrAlreadyInitialized
	}
	if err := p.loadLevel(level); err != nil {
		return err
	}
	p.level = level
	for _, o := range p.observers {
		if err := o.Init(p.factory, level.Width, level.Height); err != nil {
			return fmt.Errorf("process: observer init: %w", err)
		}
		if _, err := o.Reset(p.grid); err != nil {
			return fmt.Errorf("process: observer reset: %w", err)
		}
	}
	p.state = Initialized
	p.logger.Debug().Str("process", p.id).Str("level", level.Name).Msg("initialized")
	return nil
}

// AddObserver registers an observer with a process that may already be
// initialized, binding and resetting it against the live grid immediately
// so it starts in sync with any observer registered before Init. Safe to
// call before Init too, in which case binding happens inside Init.
func (p *GameProcess) AddObserver(o observer.Observer) error {
	p.observers = append(p.observers, o)
	if p.grid == nil {
		return nil
	}
	if err := o.Init(p.factory, p.level.Width, p.level.Height); err != nil {
		return fmt.Errorf("process: observer init: %w", err)
	}
	_, err := o.Reset(p.grid)
	return err
}

// Reset reloads the process's current level from scratch, returning it to
// Initialized regardless of whether it was Running or Terminal. Accumulated
// rewards are cleared, every observer is reset against the reloaded grid,
// and the global observer's (the first registered) initial frame is
// returned.
func (p *GameProcess) Reset() (observer.Frame, error) {
	if p.level == nil {
		return observer.Frame{}, ErrNotInitialized
	}
	if err := p.loadLevel(p.level); err != nil {
		return observer.Frame{}, err
	}
	for pid := range p.accumulatedReward {
		p.accumulatedReward[pid] = 0
	}
	p.state = Initialized

	var global observer.Frame
	for i, o := range p.observers {
		frame, err := o.Reset(p.grid)
		if err != nil {
			return observer.Frame{}, fmt.Errorf("process: observer reset: %w", err)
		}
		if i == 0 {
			global = frame
		}
	}
	return global, nil
}

func (p *GameProcess) loadLevel(level *Level) error {
	g := grid.New(p.factory)
	if err := g.Init(level.Width, level.Height); err != nil {
		return err
	}
	for _, pl := range level.Placements {
		h, err := g.AddObject(pl.Kind, pl.PlayerID, pl.Location, pl.Orientation)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidLevel, err)
		}
		if pl.Params != nil {
			obj, err := g.Object(h)
			if err != nil {
				return err
			}
			for k, v := range pl.Params {
				obj.Params[k] = v
			}
		}
	}
	p.grid = g
	return nil
}

// AccumulatedRewards returns a player's total reward across the episode so
// far.
func (p *GameProcess) AccumulatedRewards(playerID uint32) int32 {
	return p.accumulatedReward[playerID]
}

// Grid exposes the process's live grid, primarily for observers.
func (p *GameProcess) Grid() *grid.Grid { return p.grid }

// AvailableActionNames returns every action name present anywhere in the
// compiled behaviour table.
func (p *GameProcess) AvailableActionNames() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, k := range p.table.Keys() {
		if _, ok := seen[k.Action]; !ok {
			seen[k.Action] = struct{}{}
			names = append(names, k.Action)
		}
	}
	return names
}

// AvailableActionIDsAtLocation returns the action names that have a
// registered behaviour for the kind occupying loc, on any layer.
func (p *GameProcess) AvailableActionIDsAtLocation(loc spatial.Coord) []string {
	if p.grid == nil {
		return nil
	}
	var names []string
	for _, h := range p.grid.CellAt(loc) {
		obj, err := p.grid.Object(h)
		if err != nil {
			continue
		}
		for _, k := range p.table.Keys() {
			if k.SrcKind == obj.Kind {
				names = append(names, k.Action)
			}
		}
	}
	return names
}

// pendingAction is one action awaiting resolution, tagged with its original
// submission index for tie-break ordering.
type pendingAction struct {
	act   action.Action
	index int
}

// PerformActions resolves one batch of actions as a single indivisible
// tick: actions are ordered (player id ascending, then submission order),
// each is resolved against the compiled behaviour table with cascades
// expanded up to the configured depth, termination conditions are checked
// once at the end, and the tick counter advances by exactly one.
func (p *GameProcess) PerformActions(batch []action.Action) (ActionResult, error) {
	if !p.IsInitialized() {
		return ActionResult{}, ErrNotInitialized
	}
	for _, a := range batch {
		if !a.Source.IsValid() {
			continue // no source object: resolved below as a no-op
		}
		if err := a.Validate(); err != nil {
			return ActionResult{}, err
		}
	}
	p.state = Running

	snapshot := p.grid.Snapshot()
	rewardDelta := make(map[uint32]int32)

	pending := make([]pendingAction, len(batch))
	for i, a := range batch {
		pending[i] = pendingAction{act: a, index: i}
	}
	slices.SortStableFunc(pending, func(a, b pendingAction) int {
		if a.act.PlayerID != b.act.PlayerID {
			if a.act.PlayerID < b.act.PlayerID {
				return -1
			}
			return 1
		}
		return a.index - b.index
	})

	// queuedRequest tags each cascade request with its generation: the
	// submitted batch starts at generation 0 (uncounted against the cascade
	// budget), and every command.Cascade-spawned follow-on is one generation
	// deeper than the request that produced it. This keeps the cascade-depth
	// budget bounding the cascade chain, not the batch size. Submitted
	// actions keep their vector mode; cascaded follow-ons resolve Forward.
	type queuedRequest struct {
		req        command.CascadeRequest
		mode       action.VectorMode
		vector     spatial.Vector
		generation int
	}

	queue := make([]queuedRequest, 0, len(pending))
	for _, pa := range pending {
		queue = append(queue, queuedRequest{
			req: command.CascadeRequest{
				ActionName: pa.act.Name,
				PlayerID:   pa.act.PlayerID,
				Source:     pa.act.Source,
			},
			mode:       pa.act.Mode,
			vector:     pa.act.Vector,
			generation: 0,
		})
	}

	for len(queue) > 0 {
		qr := queue[0]
		queue = queue[1:]
		if qr.generation > p.cascadeDepth {
			p.grid.Restore(snapshot)
			return ActionResult{}, ErrCascadeOverflow
		}
		req := qr.req

		srcObj, err := p.grid.Object(req.Source)
		if err != nil {
			continue // source no longer live; no-op
		}

		act := action.Action{Name: req.ActionName, PlayerID: req.PlayerID, Source: req.Source, Mode: qr.mode, Vector: qr.vector}
		dstCoord := act.TargetCell(srcObj.Location, srcObj.Orientation)

		dstHandle := spatial.Handle{}
		dstKind := "_empty"
		for _, h := range p.grid.CellAt(dstCoord) {
			if obj, err := p.grid.Object(h); err == nil {
				dstHandle = h
				dstKind = obj.Kind
				break
			}
		}

		key := behaviour.Key{Action: req.ActionName, SrcKind: srcObj.Kind, DstKind: dstKind}
		cmds, ok := p.table.Lookup(key)
		if !ok {
			continue // no matching behaviour: no-op, zero reward
		}
		srcObj.Orientation = act.ResolvedFacing(srcObj.Orientation)

		cmdCtx := &command.Context{
			Grid:     p.grid,
			PlayerID: req.PlayerID,
			Src:      req.Source,
			Dst:      dstHandle,
			Rewards:  rewardDelta,
		}
		for _, c := range cmds {
			if err := c.Execute(cmdCtx); err != nil {
				if errors.Is(err, command.ErrBlocked) {
					break
				}
				p.grid.Restore(snapshot)
				return ActionResult{}, err
			}
		}
		for _, cascaded := range cmdCtx.Cascade {
			queue = append(queue, queuedRequest{req: cascaded, generation: qr.generation + 1})
		}
	}

	for pid, delta := range rewardDelta {
		p.accumulatedReward[pid] += delta
	}
	p.grid.Advance()

	for _, o := range p.observers {
		if _, err := o.Update(p.grid); err != nil {
			return ActionResult{}, fmt.Errorf("process: observer update: %w", err)
		}
	}

	result := p.checkTermination()
	if result.Terminated {
		p.state = Terminal
		if p.autoReset {
			_, _ = p.Reset()
		}
	}
	return result, nil
}

func (p *GameProcess) checkTermination() ActionResult {
	if p.term == nil {
		return ActionResult{PlayerStates: map[uint32]termination.Outcome{}, Terminated: false}
	}
	kindCount := make(map[string]int)
	for _, kind := range p.factory.Kinds() {
		kindCount[kind] = 0
	}
	for _, h := range p.grid.LiveHandles() {
		if obj, err := p.grid.Object(h); err == nil {
			kindCount[obj.Kind]++
		}
	}
	ctx := termination.Context{
		Tick:      p.grid.Tick(),
		Globals:   p.snapshotGlobals(),
		Rewards:   p.accumulatedReward,
		KindCount: kindCount,
	}
	_, resolution, ok := p.term.Evaluate(ctx, p.players)
	if !ok {
		states := make(map[uint32]termination.Outcome, len(p.players))
		for _, pid := range p.players {
			states[pid] = termination.None
		}
		return ActionResult{PlayerStates: states, Terminated: false}
	}
	return ActionResult{PlayerStates: resolution.Resolve(p.players), Terminated: true}
}

// snapshotGlobals is a placeholder hook for globals introspection; since
// Grid does not expose its raw map, termination reads are routed through
// Grid.Global per name as condition expressions reference them. Game
// processes with globals referenced by termination conditions must
// declare those names up front via WithGlobals.
func (p *GameProcess) snapshotGlobals() map[string]map[uint32]int32 {
	out := make(map[string]map[uint32]int32, len(p.globalNames))
	for _, name := range p.globalNames {
		byPlayer := make(map[uint32]int32)
		byPlayer[0] = p.grid.Global(name, 0)
		for _, pid := range p.players {
			byPlayer[pid] = p.grid.Global(name, pid)
		}
		out[name] = byPlayer
	}
	return out
}

// StateInfo returns a full, read-only snapshot of the process's current state.
func (p *GameProcess) StateInfo() StateInfo {
	objects := make([]ObjectInfo, 0, len(p.grid.LiveHandles()))
	for _, h := range p.grid.LiveHandles() {
		obj, err := p.grid.Object(h)
		if err != nil {
			continue
		}
		params := make(map[string]int32, len(obj.Params))
		for k, v := range obj.Params {
			params[k] = v
		}
		objects = append(objects, ObjectInfo{
			Handle:      h,
			Kind:        obj.Kind,
			Variables:   params,
			Location:    obj.Location,
			Orientation: obj.Orientation,
			PlayerID:    obj.PlayerID,
		})
	}
	return StateInfo{
		GameTicks:       p.grid.Tick(),
		GlobalVariables: p.snapshotGlobals(),
		Objects:         objects,
	}
}
