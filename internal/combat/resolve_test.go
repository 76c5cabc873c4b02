package combat

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

func squad(id string, models, wounds int) *state.Unit {
	u := &state.Unit{
		ID:     id,
		Owner:  2,
		Status: state.StatusDeployed,
		Meta: state.UnitMeta{
			Name: "Target Squad", Toughness: 4, Save: 3, Leadership: 6, OC: 2,
		},
		Flags: map[string]any{},
	}
	for i := 0; i < models; i++ {
		u.Models = append(u.Models, &state.Model{
			ID:            fmt.Sprintf("%s-m%d", id, i),
			Alive:         true,
			Base:          state.BaseShape{Kind: "circle", Width: 32},
			Position:      &state.Position{X: float64(200 + i*40), Y: 200},
			CurrentWounds: wounds,
			MaxWounds:     wounds,
		})
	}
	return u
}

func resolverWith(t *testing.T, seed int64, units ...*state.Unit) (*Resolver, *state.Store) {
	t.Helper()
	s := state.NewStore(state.NewGameState(seed))
	for _, u := range units {
		s.AddUnit(u)
	}
	return NewResolver(s, engine.NewRoller(seed)), s
}

func TestWoundTarget(t *testing.T) {
	cases := []struct{ s, t, want int }{
		{8, 4, 2},  // double
		{5, 4, 3},  // greater
		{4, 4, 4},  // equal
		{3, 4, 5},  // lower
		{2, 4, 6},  // half or less
		{3, 6, 6},
		{10, 5, 2},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, WoundTarget(c.s, c.t), "S%d vs T%d", c.s, c.t)
	}
}

func TestSaveNeeded(t *testing.T) {
	needed, inv := SaveNeeded(SaveProfile{Armor: 3}, 0)
	assert.Equal(t, 3, needed)
	assert.False(t, inv)

	needed, _ = SaveNeeded(SaveProfile{Armor: 3}, -2)
	assert.Equal(t, 5, needed)

	// Cover improves by one but never past 2+.
	needed, _ = SaveNeeded(SaveProfile{Armor: 3, Cover: true}, 0)
	assert.Equal(t, 2, needed)
	needed, _ = SaveNeeded(SaveProfile{Armor: 2, Cover: true}, 0)
	assert.Equal(t, 2, needed)

	// Save worse than 6 means no save at all.
	needed, _ = SaveNeeded(SaveProfile{Armor: 6}, -2)
	assert.Equal(t, 7, needed)

	// Invulnerable is used when better than the modified armor save, and
	// ignores AP entirely.
	needed, inv = SaveNeeded(SaveProfile{Armor: 2, Invuln: 4}, -4)
	assert.Equal(t, 4, needed)
	assert.True(t, inv)

	// Cover does not stack onto the invulnerable save.
	needed, inv = SaveNeeded(SaveProfile{Armor: 6, Invuln: 5, Cover: true}, -3)
	assert.Equal(t, 5, needed)
	assert.True(t, inv)
}

func TestAllocationWoundedModelFirst(t *testing.T) {
	u := squad("U2", 3, 2)
	u.Models[1].CurrentWounds = 1 // previously wounded
	r, _ := resolverWith(t, 1, u)

	res, err := r.ResolveSaves(SaveResolutionContext{
		TargetUnitID: "U2",
		WoundsToSave: 1,
		Save:         SaveProfile{Armor: 3},
		Damage:       "1",
	}, nil, []int{1}) // forced failed save
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "U2-m1", res.Records[0].ModelID, "the wounded model takes damage first")
	assert.True(t, res.Records[0].Destroyed)
}

func TestManualAllocationCannotSkipWounded(t *testing.T) {
	u := squad("U2", 3, 2)
	u.Models[1].CurrentWounds = 1
	r, _ := resolverWith(t, 1, u)

	_, err := r.ResolveSaves(SaveResolutionContext{
		TargetUnitID: "U2",
		WoundsToSave: 1,
		Save:         SaveProfile{Armor: 3},
		Damage:       "1",
	}, []string{"U2-m0"}, []int{1})
	var verr *protocol.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, protocol.CodeInvalidTarget, verr.Code)
}

func TestManualAllocationOfWoundedModelAllowed(t *testing.T) {
	u := squad("U2", 3, 2)
	u.Models[2].CurrentWounds = 1
	r, _ := resolverWith(t, 1, u)

	res, err := r.ResolveSaves(SaveResolutionContext{
		TargetUnitID: "U2",
		WoundsToSave: 1,
		Save:         SaveProfile{Armor: 3},
		Damage:       "1",
	}, []string{"U2-m2"}, []int{6}) // saved
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.True(t, res.Records[0].Saved)
	assert.Equal(t, 1, res.Summary.WoundsSaved)
	assert.Empty(t, res.Diffs, "a saved wound changes nothing")
}

func TestNaturalOneAlwaysFails(t *testing.T) {
	u := squad("U2", 1, 2)
	r, _ := resolverWith(t, 1, u)

	res, err := r.ResolveSaves(SaveResolutionContext{
		TargetUnitID: "U2",
		WoundsToSave: 1,
		Save:         SaveProfile{Armor: 2, Cover: true}, // needed clamps to 2
		Damage:       "1",
	}, nil, []int{1})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.WoundsFailed)
}

func TestOverkillDoesNotSpill(t *testing.T) {
	u := squad("U2", 2, 1)
	r, _ := resolverWith(t, 1, u)

	res, err := r.ResolveSaves(SaveResolutionContext{
		TargetUnitID: "U2",
		WoundsToSave: 1,
		Save:         SaveProfile{Armor: 7},
		Damage:       "3",
	}, nil, []int{2})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Summary.TotalDamage, "damage caps at the dying model's wounds")
	assert.Equal(t, 2, res.Summary.Overkill)
	assert.Equal(t, 1, res.Summary.ModelsDestroyed)
}

func TestUnitWipeMarksDestroyedAndSurplusLost(t *testing.T) {
	u := squad("U2", 2, 1)
	r, s := resolverWith(t, 1, u)

	res, err := r.ResolveSaves(SaveResolutionContext{
		TargetUnitID: "U2",
		WoundsToSave: 5, // more than the unit can absorb
		Save:         SaveProfile{Armor: 7},
		Damage:       "1",
	}, nil, []int{1, 1, 1, 1, 1})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Summary.ModelsDestroyed)

	statusDiff := res.Diffs[len(res.Diffs)-1]
	assert.Equal(t, state.PathUnitStatus("U2"), statusDiff.Path)
	assert.Equal(t, state.StatusDestroyed, statusDiff.Value)

	// Diffs apply cleanly and models stay in the list.
	require.NoError(t, s.Apply(res.Diffs))
	assert.Equal(t, state.StatusDestroyed, s.Game().Units["U2"].Status)
	assert.Len(t, s.Game().Units["U2"].Models, 2)
	assert.Empty(t, s.Game().Units["U2"].AliveModels())
}

func TestEmptyUnitIsNoOp(t *testing.T) {
	u := squad("U2", 1, 1)
	u.Models[0].Alive = false
	r, _ := resolverWith(t, 1, u)

	res, err := r.ResolveSaves(SaveResolutionContext{
		TargetUnitID: "U2",
		WoundsToSave: 3,
		Save:         SaveProfile{Armor: 3},
		Damage:       "1",
	}, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Empty(t, res.Diffs)
}

func TestUnknownTargetUnit(t *testing.T) {
	r, _ := resolverWith(t, 1)
	_, err := r.ResolveSaves(SaveResolutionContext{TargetUnitID: "NOPE", WoundsToSave: 1}, nil, nil)
	var verr *protocol.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, protocol.CodeInvalidTarget, verr.Code)
}

func TestFeelNoPainConsistency(t *testing.T) {
	u := squad("U2", 3, 3)
	r, _ := resolverWith(t, 7, u)

	res, err := r.ResolveSaves(SaveResolutionContext{
		TargetUnitID: "U2",
		WoundsToSave: 4,
		Save:         SaveProfile{Armor: 4, FNP: 5},
		Damage:       "2",
	}, nil, nil)
	require.NoError(t, err)
	for _, rec := range res.Records {
		if rec.Saved || rec.FNP == nil {
			continue
		}
		prevented := 0
		for _, roll := range rec.FNP.Rolls {
			require.GreaterOrEqual(t, roll, 1)
			require.LessOrEqual(t, roll, 6)
			if roll >= 5 {
				prevented++
			}
		}
		assert.Equal(t, prevented, rec.FNP.Prevented)
		assert.Equal(t, len(rec.FNP.Rolls)-prevented, rec.FNP.Remaining)
	}
}

func TestMortalsBypassSavesButNotFNP(t *testing.T) {
	u := squad("U2", 2, 2)
	r, _ := resolverWith(t, 3, u)

	res, err := r.ResolveSaves(SaveResolutionContext{
		TargetUnitID: "U2",
		WoundsToSave: 0,
		Mortals:      3,
		Save:         SaveProfile{Armor: 2, FNP: 6},
		Damage:       "1",
	}, nil, nil)
	require.NoError(t, err)
	require.Len(t, res.Records, 3)
	for _, rec := range res.Records {
		assert.Equal(t, 7, rec.Needed, "mortal wounds get no save")
		assert.False(t, rec.Saved)
		assert.NotNil(t, rec.FNP)
	}
}

func TestResolveSavesDeterministic(t *testing.T) {
	run := func() []AllocationRecord {
		u := squad("U2", 3, 2)
		r, _ := resolverWith(t, 12345, u)
		res, err := r.ResolveSaves(SaveResolutionContext{
			TargetUnitID: "U2",
			WoundsToSave: 5,
			Save:         SaveProfile{Armor: 4, FNP: 6},
			Damage:       "d3",
		}, nil, nil)
		require.NoError(t, err)
		return res.Records
	}
	a, _ := json.Marshal(run())
	b, _ := json.Marshal(run())
	assert.JSONEq(t, string(a), string(b), "same seed must produce identical records")
}

func TestResolveAttackTorrent(t *testing.T) {
	att := squad("U1", 3, 2)
	def := squad("U2", 3, 2)
	r, _ := resolverWith(t, 1, att, def)

	w := state.Weapon{Name: "Flamer", Type: "ranged", Attacks: "2", Skill: 4, Strength: 4, AP: 0, Damage: "1", Torrent: true}
	res := r.ResolveAttack(att, def, w)
	assert.Equal(t, 6, res.Attacks, "each alive model fires the profile")
	assert.Equal(t, 6, res.Hits, "torrent hits automatically")
	assert.Equal(t, 4, res.WoundTN)
	assert.Zero(t, res.Mortals)
	assert.LessOrEqual(t, res.Wounds, res.Hits)
	assert.Len(t, res.WoundRolls, res.Hits)
}

func TestResolveAttackAntiKeyword(t *testing.T) {
	att := squad("U1", 1, 2)
	def := squad("U2", 1, 2)
	def.Meta.Keywords = []string{"Vehicle"}
	def.Meta.Toughness = 10
	r, _ := resolverWith(t, 1, att, def)

	w := state.Weapon{Name: "Melta", Type: "ranged", Attacks: "1", Skill: 3, Strength: 9, AP: -4, Damage: "d6", AntiTag: "vehicle", AntiValue: 4}
	res := r.ResolveAttack(att, def, w)
	assert.Equal(t, 4, res.WoundTN, "anti-vehicle 4+ overrides S-vs-T")

	// Without the keyword the normal table applies.
	def.Meta.Keywords = nil
	res = r.ResolveAttack(att, def, w)
	assert.Equal(t, 5, res.WoundTN)
}

func TestResolveAttackLethalHits(t *testing.T) {
	att := squad("U1", 5, 2)
	def := squad("U2", 5, 2)
	r, _ := resolverWith(t, 9, att, def)

	w := state.Weapon{Name: "Bolter", Type: "ranged", Attacks: "4", Skill: 3, Strength: 4, AP: 0, Damage: "1", LethalHits: true}
	res := r.ResolveAttack(att, def, w)
	sixes := 0
	for _, roll := range res.HitRolls {
		if roll == 6 {
			sixes++
		}
	}
	assert.Equal(t, sixes, res.AutoWounds, "every critical hit auto-wounds")
	assert.Len(t, res.WoundRolls, res.Hits-res.AutoWounds)
}
