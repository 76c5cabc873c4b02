package state

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUnit(id string, owner, models, wounds int) *Unit {
	u := &Unit{
		ID:     id,
		Owner:  owner,
		Status: StatusDeployed,
		Meta: UnitMeta{
			Name: "Test Squad", Move: 240, Toughness: 4, Save: 3,
			Leadership: 6, OC: 2,
		},
		Flags: map[string]any{},
	}
	for i := 0; i < models; i++ {
		u.Models = append(u.Models, &Model{
			ID:            fmt.Sprintf("%s-m%d", id, i),
			Alive:         true,
			Base:          BaseShape{Kind: "circle", Width: 32},
			Position:      &Position{X: float64(100 + i*40), Y: 100},
			CurrentWounds: wounds,
			MaxWounds:     wounds,
		})
	}
	return u
}

func testStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(NewGameState(42))
	s.AddUnit(testUnit("U1", 1, 3, 2))
	s.AddUnit(testUnit("U2", 2, 3, 2))
	return s
}

func TestApplySetModelPosition(t *testing.T) {
	s := testStore(t)
	err := s.Apply([]Diff{
		Set(PathModelPosition("U1", 0), Position{X: 120, Y: 340}),
	})
	require.NoError(t, err)
	m := s.Game().Units["U1"].Models[0]
	assert.Equal(t, 120.0, m.Position.X)
	assert.Equal(t, 340.0, m.Position.Y)
}

func TestApplyDecodedWireDiff(t *testing.T) {
	// A diff arriving over the network has map[string]any values; it must
	// behave exactly like a locally built one.
	s := testStore(t)
	raw := []byte(`[{"op":"set","path":"units.U1.models.0.position","value":{"x":120,"y":340}}]`)
	var diffs []Diff
	require.NoError(t, json.Unmarshal(raw, &diffs))
	require.NoError(t, s.Apply(diffs))
	m := s.Game().Units["U1"].Models[0]
	assert.Equal(t, 120.0, m.Position.X)
	assert.Equal(t, 340.0, m.Position.Y)
}

func TestApplyRollsBackOnError(t *testing.T) {
	s := testStore(t)
	before, err := json.Marshal(s.Game())
	require.NoError(t, err)

	err = s.Apply([]Diff{
		Set(PathModelWounds("U1", 0), 1), // valid
		Set("units.NOPE.status", StatusDestroyed), // invalid unit
	})
	var serr *StateError
	require.ErrorAs(t, err, &serr)

	after, err := json.Marshal(s.Game())
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after), "failed apply must leave the document untouched")
}

func TestApplyWoundsOutOfRange(t *testing.T) {
	s := testStore(t)
	err := s.Apply([]Diff{Set(PathModelWounds("U1", 0), 99)})
	var serr *StateError
	require.ErrorAs(t, err, &serr)

	err = s.Apply([]Diff{Set(PathModelWounds("U1", 0), -1)})
	require.ErrorAs(t, err, &serr)
}

func TestApplyUnknownPath(t *testing.T) {
	s := testStore(t)
	for _, path := range []string{
		"units.U1.models.9.alive",
		"units.U1.bogus",
		"nonsense.path",
		"board.objectives.3.controller",
	} {
		err := s.Apply([]Diff{Set(path, 1)})
		var serr *StateError
		require.ErrorAs(t, err, &serr, "path %q", path)
	}
}

func TestApplyBatchIdempotent(t *testing.T) {
	s := testStore(t)
	b := DiffBatch{Seq: s.NextSeq(), Diffs: []Diff{
		Set(PathModelWounds("U1", 0), 1),
	}}
	applied, err := s.ApplyBatch(b)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 1, s.Game().Units["U1"].Models[0].CurrentWounds)

	// Re-delivery of the same batch must be a no-op even if state moved on.
	require.NoError(t, s.Apply([]Diff{Set(PathModelWounds("U1", 0), 2)}))
	applied, err = s.ApplyBatch(b)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 2, s.Game().Units["U1"].Models[0].CurrentWounds)
}

func TestFlagDiffs(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Apply([]Diff{
		Set(PathUnitFlag("U1", "moved"), true),
		Set(PathMetaFlag("cp_gained"), true),
	}))
	assert.True(t, s.Game().Units["U1"].FlagBool("moved"))
	flag, _ := s.Game().Meta.Flags["cp_gained"].(bool)
	assert.True(t, flag)

	require.NoError(t, s.Apply([]Diff{Remove(PathUnitFlag("U1", "moved"))}))
	assert.False(t, s.Game().Units["U1"].FlagBool("moved"))
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := testStore(t)
	require.NoError(t, s.Apply([]Diff{
		Set(PathMetaPhase(), PhaseShooting),
		Set(PathPlayerScore(1), 3),
		Set(PathModelAlive("U2", 1), false),
	}))
	digest := s.Digest()

	snap := s.Snapshot()
	other := NewStore(NewGameState(1))
	other.Restore(snap)

	assert.Equal(t, digest, other.Digest(), "restored document must hash identically")
	assert.Equal(t, PhaseShooting, other.Game().Meta.Phase)
	assert.False(t, other.Game().Units["U2"].Models[1].Alive)
}

func TestRestoreAtSetsSequence(t *testing.T) {
	s := testStore(t)
	other := NewStore(NewGameState(1))
	other.RestoreAt(s.Snapshot(), 42)
	assert.EqualValues(t, 42, other.AppliedSeq())

	// Batches at or below the restored sequence are skipped.
	applied, err := other.ApplyBatch(DiffBatch{Seq: 40, Diffs: []Diff{
		Set(PathMetaPhase(), PhaseMorale),
	}})
	require.NoError(t, err)
	assert.False(t, applied)
}

func TestGet(t *testing.T) {
	s := testStore(t)
	v, err := s.Get("meta.phase")
	require.NoError(t, err)
	assert.Equal(t, PhaseDeployment, v)

	v, err = s.Get("units.U1.models.0.current_wounds")
	require.NoError(t, err)
	assert.EqualValues(t, 2.0, v)

	_, err = s.Get("units.U1.models.7")
	assert.Error(t, err)
}

func TestUnitIDsStableOrder(t *testing.T) {
	s := NewStore(NewGameState(1))
	for _, id := range []string{"U2-3", "U1-1", "U2-1", "U1-2"} {
		s.AddUnit(testUnit(id, 1, 1, 1))
	}
	assert.Equal(t, []string{"U1-1", "U1-2", "U2-1", "U2-3"}, s.UnitIDs())
}

func TestHelpers(t *testing.T) {
	u := testUnit("U1", 1, 4, 2)
	u.Models[0].Alive = false
	u.Models[1].Alive = false

	assert.Len(t, u.AliveModels(), 2)
	assert.True(t, u.BelowHalfStrength())

	u.Meta.Keywords = []string{"Infantry", "Imperium"}
	assert.True(t, u.HasKeyword("infantry"))
	assert.False(t, u.HasKeyword("vehicle"))
}

func TestViewConcurrentWithApply(t *testing.T) {
	// A server goroutine checks end-of-battle flags while the other seat is
	// still executing actions; View must serialize against Apply.
	s := testStore(t)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 500; i++ {
			err := s.Apply([]Diff{Set(PathMetaFlag("game_over"), i%2 == 0)})
			assert.NoError(t, err)
		}
	}()
	for i := 0; i < 500; i++ {
		s.View(func(g *GameState) {
			_, _ = g.Meta.Flags["game_over"].(bool)
		})
	}
	<-done

	s.View(func(g *GameState) {
		_, ok := g.Meta.Flags["game_over"]
		assert.True(t, ok)
	})
}
