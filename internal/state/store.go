package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// Store owns the authoritative GameState document. Apply is the only
// sanctioned mutation entry; phases read through Game() and express every
// change as diffs.
type Store struct {
	mu         sync.Mutex
	game       *GameState
	appliedSeq uint64
	unitOrder  []string // sorted unit IDs, re-derived on load/restore
}

func NewStore(g *GameState) *Store {
	s := &Store{game: g}
	s.reindex()
	return s
}

func (s *Store) reindex() {
	ids := make([]string, 0, len(s.game.Units))
	for id := range s.game.Units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s.unitOrder = ids
}

// Game exposes the document for reads. Callers must not write through it.
// Only safe inside the action pipeline, where the router serializes access;
// any other goroutine must read through View instead.
func (s *Store) Game() *GameState { return s.game }

// View runs fn with the document under the store lock, for readers outside
// the action pipeline. fn must not write through g or retain it.
func (s *Store) View(fn func(g *GameState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.game)
}

// UnitIDs returns unit IDs in stable sorted order.
func (s *Store) UnitIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.unitOrder...)
}

// AddUnit registers a unit at army load, before the match starts. Not a
// diff: unit creation is external to the action pipeline.
func (s *Store) AddUnit(u *Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.game.Units[u.ID] = u
	s.reindex()
}

// AppliedSeq reports the highest diff batch sequence applied so far.
func (s *Store) AppliedSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appliedSeq
}

// Apply applies a diff list atomically: on any path or value error the
// document is rolled back unchanged and the error returned is a StateError.
func (s *Store) Apply(diffs []Diff) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(diffs)
}

func (s *Store) applyLocked(diffs []Diff) error {
	if len(diffs) == 0 {
		return nil
	}
	backup := deepCopy(s.game)
	for _, d := range diffs {
		if err := s.applyOne(d); err != nil {
			s.game = backup
			s.reindex()
			return err
		}
	}
	return nil
}

// ApplyBatch applies a replicated batch. A batch at or below the applied
// sequence is skipped (re-delivery is a no-op); applied reports whether
// the document changed.
func (s *Store) ApplyBatch(b DiffBatch) (applied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.Seq != 0 && b.Seq <= s.appliedSeq {
		return false, nil
	}
	if err := s.applyLocked(b.Diffs); err != nil {
		return false, err
	}
	if b.Seq != 0 {
		s.appliedSeq = b.Seq
	}
	return true, nil
}

// NextSeq allocates the sequence number for a locally executed batch.
func (s *Store) NextSeq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appliedSeq++
	return s.appliedSeq
}

// Snapshot returns a full deep copy of the document.
func (s *Store) Snapshot() *GameState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return deepCopy(s.game)
}

// Restore fully replaces the document and re-derives cached indices.
func (s *Store) Restore(g *GameState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.game = deepCopy(g)
	s.reindex()
}

// RestoreAt replaces the document and pins the applied sequence, used by
// full-snapshot resynchronization.
func (s *Store) RestoreAt(g *GameState, seq uint64) {
	s.Restore(g)
	s.mu.Lock()
	s.appliedSeq = seq
	s.mu.Unlock()
}

// Digest is a content hash of the canonical document, used for desync
// detection between host and peer.
func (s *Store) Digest() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, _ := json.Marshal(s.game)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:8])
}

func deepCopy(g *GameState) *GameState {
	b, err := json.Marshal(g)
	if err != nil {
		panic(fmt.Sprintf("state: marshal: %v", err))
	}
	var out GameState
	if err := json.Unmarshal(b, &out); err != nil {
		panic(fmt.Sprintf("state: unmarshal: %v", err))
	}
	return &out
}

// ---- path resolution ----

// Get reads the value at a dotted path by walking the serialized document,
// so it sees exactly the flexible-document shape the wire does.
func (s *Store) Get(path string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, _ := json.Marshal(s.game)
	var doc any
	_ = json.Unmarshal(b, &doc)
	cur := doc
	for _, part := range strings.Split(path, ".") {
		switch node := cur.(type) {
		case map[string]any:
			v, ok := node[part]
			if !ok {
				return nil, pathErr("get", path, "no key "+strconv.Quote(part))
			}
			cur = v
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, pathErr("get", path, "bad index "+strconv.Quote(part))
			}
			cur = node[idx]
		default:
			return nil, pathErr("get", path, "cannot descend into scalar at "+strconv.Quote(part))
		}
	}
	return cur, nil
}

func (s *Store) applyOne(d Diff) error {
	parts := strings.Split(d.Path, ".")
	if len(parts) < 2 {
		return pathErr(d.Op, d.Path, "path too short")
	}
	switch parts[0] {
	case "meta":
		return s.applyMeta(d, parts[1:])
	case "players":
		return s.applyPlayer(d, parts[1:])
	case "units":
		return s.applyUnit(d, parts[1:])
	case "board":
		return s.applyBoard(d, parts[1:])
	}
	return pathErr(d.Op, d.Path, "unknown root "+strconv.Quote(parts[0]))
}

func (s *Store) applyMeta(d Diff, rest []string) error {
	m := &s.game.Meta
	switch rest[0] {
	case "phase":
		if d.Op != OpSet {
			return pathErr(d.Op, d.Path, "op not supported")
		}
		return assign(&m.Phase, d.Value, d)
	case "active_player":
		if d.Op != OpSet {
			return pathErr(d.Op, d.Path, "op not supported")
		}
		return assign(&m.ActivePlayer, d.Value, d)
	case "battle_round":
		if d.Op != OpSet {
			return pathErr(d.Op, d.Path, "op not supported")
		}
		return assign(&m.BattleRound, d.Value, d)
	case "rng":
		if len(rest) != 2 || d.Op != OpSet {
			return pathErr(d.Op, d.Path, "op not supported")
		}
		switch rest[1] {
		case "seed":
			return assign(&m.RNG.Seed, d.Value, d)
		case "counter":
			return assign(&m.RNG.Counter, d.Value, d)
		}
	case "flags":
		if len(rest) < 2 {
			return pathErr(d.Op, d.Path, "flag key missing")
		}
		if m.Flags == nil {
			m.Flags = map[string]any{}
		}
		return applyFlag(m.Flags, strings.Join(rest[1:], "."), d)
	}
	return pathErr(d.Op, d.Path, "unknown meta field")
}

func (s *Store) applyPlayer(d Diff, rest []string) error {
	if len(rest) != 2 {
		return pathErr(d.Op, d.Path, "want players.<id>.<field>")
	}
	p, ok := s.game.Players[rest[0]]
	if !ok {
		return pathErr(d.Op, d.Path, "no player "+strconv.Quote(rest[0]))
	}
	if d.Op != OpSet {
		return pathErr(d.Op, d.Path, "op not supported")
	}
	switch rest[1] {
	case "command_points":
		return assign(&p.CommandPoints, d.Value, d)
	case "score":
		return assign(&p.Score, d.Value, d)
	}
	return pathErr(d.Op, d.Path, "unknown player field")
}

func (s *Store) applyUnit(d Diff, rest []string) error {
	if len(rest) < 2 {
		return pathErr(d.Op, d.Path, "want units.<id>.<field>")
	}
	u, ok := s.game.Units[rest[0]]
	if !ok {
		return pathErr(d.Op, d.Path, "no unit "+strconv.Quote(rest[0]))
	}
	switch rest[1] {
	case "status":
		if d.Op != OpSet {
			return pathErr(d.Op, d.Path, "op not supported")
		}
		return assign(&u.Status, d.Value, d)
	case "flags":
		if len(rest) < 3 {
			return pathErr(d.Op, d.Path, "flag key missing")
		}
		if u.Flags == nil {
			u.Flags = map[string]any{}
		}
		return applyFlag(u.Flags, strings.Join(rest[2:], "."), d)
	case "models":
		if len(rest) != 4 {
			return pathErr(d.Op, d.Path, "want units.<id>.models.<idx>.<field>")
		}
		idx, err := strconv.Atoi(rest[2])
		if err != nil || idx < 0 || idx >= len(u.Models) {
			return pathErr(d.Op, d.Path, "bad model index "+strconv.Quote(rest[2]))
		}
		return applyModel(u.Models[idx], rest[3], d)
	}
	return pathErr(d.Op, d.Path, "unknown unit field")
}

func applyModel(m *Model, field string, d Diff) error {
	switch field {
	case "position":
		switch d.Op {
		case OpSet:
			if d.Value == nil {
				m.Position = nil
				return nil
			}
			var p Position
			if err := assign(&p, d.Value, d); err != nil {
				return err
			}
			m.Position = &p
			return nil
		case OpRemove:
			m.Position = nil
			return nil
		}
		return pathErr(d.Op, d.Path, "op not supported")
	case "current_wounds":
		if d.Op != OpSet {
			return pathErr(d.Op, d.Path, "op not supported")
		}
		var w int
		if err := assign(&w, d.Value, d); err != nil {
			return err
		}
		if w < 0 || w > m.MaxWounds {
			return pathErr(d.Op, d.Path, fmt.Sprintf("wounds %d outside [0,%d]", w, m.MaxWounds))
		}
		m.CurrentWounds = w
		return nil
	case "alive":
		if d.Op != OpSet {
			return pathErr(d.Op, d.Path, "op not supported")
		}
		return assign(&m.Alive, d.Value, d)
	}
	return pathErr(d.Op, d.Path, "unknown model field")
}

func (s *Store) applyBoard(d Diff, rest []string) error {
	if len(rest) == 3 && rest[0] == "objectives" {
		idx, err := strconv.Atoi(rest[1])
		if err != nil || idx < 0 || idx >= len(s.game.Board.Objectives) {
			return pathErr(d.Op, d.Path, "bad objective index "+strconv.Quote(rest[1]))
		}
		if rest[2] == "controller" && d.Op == OpSet {
			return assign(&s.game.Board.Objectives[idx].Controller, d.Value, d)
		}
	}
	return pathErr(d.Op, d.Path, "unknown board field")
}

// applyFlag handles set/append/remove on a free-form flags map.
func applyFlag(flags map[string]any, key string, d Diff) error {
	switch d.Op {
	case OpSet:
		flags[key] = normalize(d.Value)
		return nil
	case OpAppend:
		cur, ok := flags[key]
		if !ok {
			flags[key] = []any{normalize(d.Value)}
			return nil
		}
		list, ok := cur.([]any)
		if !ok {
			return pathErr(d.Op, d.Path, "existing flag value is not a list")
		}
		flags[key] = append(list, normalize(d.Value))
		return nil
	case OpRemove:
		delete(flags, key)
		return nil
	}
	return pathErr(d.Op, d.Path, "op not supported")
}

// assign converts a diff value into the target field through a JSON
// round-trip, so typed local values and decoded wire values behave the same.
func assign[T any](dst *T, v any, d Diff) error {
	b, err := json.Marshal(v)
	if err != nil {
		return pathErr(d.Op, d.Path, "unencodable value")
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return pathErr(d.Op, d.Path, "value has wrong type")
	}
	*dst = out
	return nil
}

// normalize passes flag values through JSON so in-memory state matches what
// the peer reconstructs from the wire.
func normalize(v any) any {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	_ = json.Unmarshal(b, &out)
	return out
}
