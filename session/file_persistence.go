package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/griddy-sim/griddy/gdy"
	"github.com/griddy-sim/griddy/kernel/process"
	"github.com/griddy-sim/griddy/kernel/spatial"
)

// FilePersistence implements SessionPersistence using one JSON file per
// session in a directory, serializing a GameProcess's grid contents rather
// than the compiled behaviour table or factory, which are recompiled from
// the description name on load.
type FilePersistence struct {
	sessionsDir  string
	descriptions *gdy.Manager
}

// NewFilePersistence creates the sessions directory if needed and returns a
// file-backed persistence layer.
func NewFilePersistence(sessionsDir string, descriptions *gdy.Manager) (*FilePersistence, error) {
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		return nil, fmt.Errorf("session: creating sessions directory: %w", err)
	}
	return &FilePersistence{sessionsDir: sessionsDir, descriptions: descriptions}, nil
}

func (fp *FilePersistence) path(id string) string {
	return filepath.Join(fp.sessionsDir, id+".json")
}

// Save serializes the session's grid contents to a JSON file.
func (fp *FilePersistence) Save(sess *Session) error {
	if sess == nil {
		return fmt.Errorf("session: cannot save a nil session")
	}
	state := sess.Process.StateInfo()
	data := PersistedSessionData{
		ID:              sess.ID,
		DescriptionName: sess.DescriptionName,
		Width:           width(sess.Process),
		Height:          height(sess.Process),
		GameTicks:       state.GameTicks,
		CreatedAtUnix:   sess.CreatedAt.Unix(),
		LastAccessUnix:  sess.LastAccessedAt.Unix(),
	}
	playerSet := map[uint32]struct{}{}
	for _, obj := range state.Objects {
		data.Objects = append(data.Objects, ObjectSnapshot{
			Kind:        obj.Kind,
			PlayerID:    obj.PlayerID,
			X:           obj.Location.X,
			Y:           obj.Location.Y,
			Orientation: uint8(obj.Orientation),
			Params:      obj.Variables,
		})
		if obj.PlayerID != 0 {
			playerSet[obj.PlayerID] = struct{}{}
		}
	}
	for pid := range playerSet {
		data.PlayerIDs = append(data.PlayerIDs, pid)
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshaling: %w", err)
	}
	return os.WriteFile(fp.path(sess.ID), jsonData, 0o644)
}

// Load reconstructs a session by recompiling its description and replaying
// the persisted object snapshot as a synthetic level. The compiled
// behaviour table and object factory are never serialized: they are
// recompiled from DescriptionName, since they are immutable and shared
// across every session built from the same description.
func (fp *FilePersistence) Load(id string) (*Session, error) {
	if !fp.Exists(id) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	raw, err := os.ReadFile(fp.path(id))
	if err != nil {
		return nil, fmt.Errorf("session: reading %s: %w", id, err)
	}
	var data PersistedSessionData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("session: unmarshaling %s: %w", id, err)
	}

	compiled, err := fp.descriptions.Load(data.DescriptionName)
	if err != nil {
		return nil, fmt.Errorf("session: loading description %q: %w", data.DescriptionName, err)
	}

	level := &process.Level{Name: "restored:" + id, Width: data.Width, Height: data.Height}
	for _, obj := range data.Objects {
		level.Placements = append(level.Placements, process.Placement{
			Kind:        obj.Kind,
			PlayerID:    obj.PlayerID,
			Location:    spatial.Coord{X: obj.X, Y: obj.Y},
			Orientation: spatial.Direction(obj.Orientation),
			Params:      obj.Params,
		})
	}

	proc := process.New(data.DescriptionName, compiled.Factory, compiled.Table, compiled.Termination,
		process.WithGlobals(compiled.GlobalNames...))
	for _, pid := range data.PlayerIDs {
		if err := proc.AddPlayer(pid); err != nil {
			return nil, err
		}
	}
	if err := proc.Init(level); err != nil {
		return nil, fmt.Errorf("session: restoring grid for %s: %w", id, err)
	}

	return &Session{
		ID:              data.ID,
		DescriptionName: data.DescriptionName,
		Process:         proc,
		CreatedAt:       time.Unix(data.CreatedAtUnix, 0),
		LastAccessedAt:  time.Unix(data.LastAccessUnix, 0),
	}, nil
}

// Delete removes a session's persisted file.
func (fp *FilePersistence) Delete(id string) error {
	if !fp.Exists(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return os.Remove(fp.path(id))
}

// ListAll returns every persisted session id.
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("session: reading sessions directory: %w", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasSuffix(name, ".json") {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	return ids, nil
}

// Exists reports whether a session file exists for id.
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.path(id))
	return err == nil
}

func width(p *process.GameProcess) int32 {
	w, _ := p.Grid().Dimensions()
	return w
}

func height(p *process.GameProcess) int32 {
	_, h := p.Grid().Dimensions()
	return h
}
