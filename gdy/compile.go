package gdy

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/griddy-sim/griddy/kernel/behaviour"
	"github.com/griddy-sim/griddy/kernel/command"
	"github.com/griddy-sim/griddy/kernel/object"
	"github.com/griddy-sim/griddy/kernel/process"
	"github.com/griddy-sim/griddy/kernel/spatial"
	"github.com/griddy-sim/griddy/kernel/termination"
)

// emptyKind is the destination-kind placeholder used when a behaviour's
// Dst.Type list is empty: the action resolves against an unoccupied cell.
const emptyKind = "_empty"

var (
	// ErrBadDescription is returned for structurally invalid descriptions:
	// malformed map characters, unknown command names, unresolvable
	// comparison operators.
	ErrBadDescription = errors.New("gdy: bad description")
	// ErrUnknownKind is returned when an action or level references a kind
	// name never declared under Objects.
	ErrUnknownKind = errors.New("gdy: unknown kind")
)

// Compiled holds every structure produced from a Description: the object
// factory and behaviour table (shared, read-only, across every process
// instance compiled from it), the termination handler, and the parsed
// levels.
type Compiled struct {
	Factory     *object.Factory
	Table       *behaviour.Table
	Termination *termination.Handler
	Levels      []*process.Level
	GlobalNames []string
}

// Compile turns a decoded Description into the structures the kernel
// consumes. It performs no YAML decoding itself (see Load); it is the
// in-scope "build a behaviour table from the declarative description"
// operation the kernel specifies.
func Compile(desc Description) (*Compiled, error) {
	factory := object.NewFactory()
	for _, od := range desc.Objects {
		r, size := utf8.DecodeRuneInString(od.MapCharacter)
		if size == 0 || size != len(od.MapCharacter) {
			return nil, fmt.Errorf("%w: object %q has a non-single-rune MapCharacter %q", ErrBadDescription, od.Name, od.MapCharacter)
		}
		if err := factory.RegisterKind(object.KindDef{
			Name:          od.Name,
			MapCharacter:  r,
			Layer:         od.Layer,
			DefaultParams: od.Parameters,
		}); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadDescription, err)
		}
	}

	table := behaviour.NewTable()
	for _, ad := range desc.Actions {
		if err := compileAction(table, factory, ad); err != nil {
			return nil, err
		}
	}

	var conditions []termination.Condition
	globalSet := map[string]struct{}{}
	for _, td := range desc.Terminations {
		cond, err := compileTermination(td)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, cond)
		for _, name := range extractGlobalRefs(td.Expression) {
			globalSet[name] = struct{}{}
		}
	}
	handler := termination.NewHandler(conditions)

	levels := make([]*process.Level, 0, len(desc.Environment.Levels))
	for i, levelText := range desc.Environment.Levels {
		lvl, err := parseLevel(fmt.Sprintf("%s-%d", desc.Environment.Name, i), levelText, factory)
		if err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}

	globals := make([]string, 0, len(globalSet))
	for name := range globalSet {
		globals = append(globals, name)
	}

	return &Compiled{
		Factory:     factory,
		Table:       table,
		Termination: handler,
		Levels:      levels,
		GlobalNames: globals,
	}, nil
}

// compileAction expands one ActionDef's behaviours into every
// (srcKind, dstKind) combination and registers the resulting compiled
// command list in the table. Unlike the original's parseActionBehaviours,
// which read commands[0] inside a loop over commands[c] and silently
// dropped every command after the first, this iterates the full command
// list on both sides for every combination.
func compileAction(table *behaviour.Table, factory *object.Factory, ad ActionDef) error {
	for _, bd := range ad.Behaviours {
		if len(bd.Src.Type) == 0 {
			return fmt.Errorf("%w: action %q has a behaviour with no Src.Type", ErrBadDescription, ad.Name)
		}
		dstKinds := bd.Dst.Type
		if len(dstKinds) == 0 {
			dstKinds = []string{emptyKind}
		}
		for _, srcKind := range bd.Src.Type {
			if _, err := factory.Kind(srcKind); err != nil {
				return fmt.Errorf("%w: action %q src kind %q", ErrUnknownKind, ad.Name, srcKind)
			}
			for _, dstKind := range dstKinds {
				if dstKind != emptyKind {
					if _, err := factory.Kind(dstKind); err != nil {
						return fmt.Errorf("%w: action %q dst kind %q", ErrUnknownKind, ad.Name, dstKind)
					}
				}
				cmds, err := compileCommandList(append(append([]CommandDef{}, bd.Src.Commands...), bd.Dst.Commands...))
				if err != nil {
					return fmt.Errorf("%w: action %q (%s->%s): %v", ErrBadDescription, ad.Name, srcKind, dstKind, err)
				}
				table.Add(behaviour.Key{Action: ad.Name, SrcKind: srcKind, DstKind: dstKind}, cmds)
			}
		}
	}
	return nil
}

func compileCommandList(defs []CommandDef) ([]command.Command, error) {
	out := make([]command.Command, 0, len(defs))
	for _, def := range defs {
		c, err := compileCommand(def)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func participant(target string) command.Participant {
	if target == "dst" {
		return command.ParticipantDestination
	}
	return command.ParticipantSource
}

func compileCommand(def CommandDef) (command.Command, error) {
	switch def.Command {
	case "mov":
		if def.Vector == nil {
			return nil, fmt.Errorf("mov requires a Vector")
		}
		return command.Mov{DX: def.Vector.DX, DY: def.Vector.DY}, nil
	case "reward":
		return command.Reward{Delta: def.Amount}, nil
	case "remove":
		return command.Remove{Target: participant(def.Target)}, nil
	case "change_to":
		if def.NewKind == "" {
			return nil, fmt.Errorf("change_to requires NewKind")
		}
		return command.ChangeTo{Target: participant(def.Target), NewKind: def.NewKind}, nil
	case "incr":
		return command.VarCommand{Target: participant(def.Target), Variable: def.Variable, Op: command.OpIncr, Amount: def.Amount, Global: def.Global}, nil
	case "decr":
		return command.VarCommand{Target: participant(def.Target), Variable: def.Variable, Op: command.OpDecr, Amount: def.Amount, Global: def.Global}, nil
	case "set":
		return command.VarCommand{Target: participant(def.Target), Variable: def.Variable, Op: command.OpSet, Amount: def.Amount, Global: def.Global}, nil
	case "cascade":
		if def.ActionName == "" {
			return nil, fmt.Errorf("cascade requires ActionName")
		}
		return command.Cascade{ActionName: def.ActionName, Target: participant(def.Target)}, nil
	case "conditional", "eq", "gt", "lt":
		op, err := parseCompareOp(def)
		if err != nil {
			return nil, err
		}
		thenCmds, err := compileCommandList(def.Then)
		if err != nil {
			return nil, err
		}
		elseCmds, err := compileCommandList(def.Else)
		if err != nil {
			return nil, err
		}
		return command.Conditional{
			Target:   participant(def.Target),
			Variable: def.Variable,
			Op:       op,
			Value:    def.Value,
			Then:     thenCmds,
			Else:     elseCmds,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrBadDescription, def.Command)
	}
}

func parseCompareOp(def CommandDef) (command.CompareOp, error) {
	op := def.Op
	if op == "" {
		op = def.Command
	}
	switch op {
	case "eq":
		return command.OpEq, nil
	case "gt":
		return command.OpGt, nil
	case "lt":
		return command.OpLt, nil
	default:
		return 0, fmt.Errorf("%w: unknown comparison operator %q", ErrBadDescription, op)
	}
}

func compileTermination(td TerminationDef) (termination.Condition, error) {
	if td.Expression == "" {
		return termination.Condition{}, fmt.Errorf("%w: termination %q has no Expression", ErrBadDescription, td.Name)
	}
	res := termination.Resolution{}
	if td.Resolution.Broadcast != "" {
		res.Broadcast = termination.Outcome(td.Resolution.Broadcast)
	}
	if len(td.Resolution.PerPlayer) > 0 {
		res.PerPlayer = make(map[uint32]termination.Outcome, len(td.Resolution.PerPlayer))
		for pid, outcome := range td.Resolution.PerPlayer {
			res.PerPlayer[pid] = termination.Outcome(outcome)
		}
	}
	return termination.Condition{Name: td.Name, Expression: td.Expression, Resolution: res}, nil
}

// extractGlobalRefs does a light textual scan for global["name"] references
// in a termination expression so StateInfo/termination context know which
// global variable names to surface; it is not a full expression parser.
func extractGlobalRefs(expr string) []string {
	var out []string
	for {
		idx := strings.Index(expr, `global["`)
		if idx == -1 {
			break
		}
		rest := expr[idx+len(`global["`):]
		end := strings.Index(rest, `"]`)
		if end == -1 {
			break
		}
		out = append(out, rest[:end])
		expr = rest[end+2:]
	}
	return out
}

// parseLevel converts a text level map into placements. Each line is
// whitespace-separated tokens; '.' is background (no object). A token is a
// map character optionally followed by a decimal player id (e.g. "H1" for
// player 1's harvester); a bare character defaults to player 0 (unowned).
func parseLevel(name, text string, factory *object.Factory) (*process.Level, error) {
	lines := strings.Split(strings.Trim(text, "\n"), "\n")
	var rows [][]string
	width := 0
	for _, line := range lines {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > width {
			width = len(fields)
		}
		rows = append(rows, fields)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: level %q has no rows", ErrBadDescription, name)
	}

	level := &process.Level{Name: name, Width: int32(width), Height: int32(len(rows))}
	for y, fields := range rows {
		for x, token := range fields {
			if token == "." {
				continue
			}
			r, size := utf8.DecodeRuneInString(token)
			if size == 0 {
				continue
			}
			kind, ok := factory.KindByChar(r)
			if !ok {
				return nil, fmt.Errorf("%w: level %q cell %q has no registered kind", ErrUnknownKind, name, token)
			}
			var playerID uint32
			if rest := token[size:]; rest != "" {
				n, err := strconv.ParseUint(rest, 10, 32)
				if err != nil {
					return nil, fmt.Errorf("%w: level %q cell %q has an invalid player id suffix", ErrBadDescription, name, token)
				}
				playerID = uint32(n)
			}
			level.Placements = append(level.Placements, process.Placement{
				Kind:     kind,
				PlayerID: playerID,
				Location: spatial.Coord{X: int32(x), Y: int32(y)},
			})
		}
	}
	return level, nil
}
