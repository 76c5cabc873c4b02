package combat

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Resolver runs the combat pipeline against the store document using one
// deterministic dice source. It never mutates the store: every outcome is
// expressed as diffs for the caller to apply.
type Resolver struct {
	store *state.Store
	dice  *engine.Roller
}

func NewResolver(store *state.Store, dice *engine.Roller) *Resolver {
	return &Resolver{store: store, dice: dice}
}

// WoundTarget returns the roll needed to wound for strength vs toughness.
func WoundTarget(s, t int) int {
	switch {
	case s >= 2*t:
		return 2
	case s > t:
		return 3
	case s == t:
		return 4
	case s*2 <= t:
		return 6
	default:
		return 5
	}
}

// SaveNeeded computes the save threshold: AP-modified armor, worst case 7
// (no save), improved by one for cover but never past 2+, against which the
// invulnerable save is preferred when better. Cover does not apply when the
// invulnerable save is used.
func SaveNeeded(p SaveProfile, ap int) (needed int, usedInv bool) {
	eff := p.Armor - ap // ap is stored negative, so this worsens the save
	if p.Cover {
		eff--
	}
	if eff < 2 {
		eff = 2
	}
	if eff > 6 {
		eff = 7
	}
	if p.Invuln >= 2 && p.Invuln <= 6 && p.Invuln < eff {
		return p.Invuln, true
	}
	return eff, false
}

// scratch tracks per-model wounds as the batch progresses, so later
// allocations see earlier damage before any diff is applied.
type scratch struct {
	model  *state.Model
	idx    int
	wounds int
	alive  bool
}

// allocate picks the model for the next wound. Already-wounded alive models
// must be exhausted first; among candidates the lowest remaining wounds wins,
// ties broken by datasheet order.
func allocate(models []*scratch) *scratch {
	var pick *scratch
	wounded := false
	for _, m := range models {
		if m.alive && m.wounds < m.model.MaxWounds {
			wounded = true
			break
		}
	}
	for _, m := range models {
		if !m.alive {
			continue
		}
		if wounded && m.wounds >= m.model.MaxWounds {
			continue
		}
		if pick == nil || m.wounds < pick.wounds {
			pick = m
		}
	}
	return pick
}

// ResolveSaves runs stages 2-4 of the pipeline (saves, Feel No Pain, damage
// and death) for a batch of allocated wounds, plus stage 1 allocation per
// wound. manualTargets optionally names the model for each wound; manual
// picks must still satisfy the wounded-model-first rule. manualRolls
// optionally supplies the defender's physical save dice.
func (r *Resolver) ResolveSaves(ctx SaveResolutionContext, manualTargets []string, manualRolls []int) (*Result, error) {
	unit, ok := r.store.Game().Units[ctx.TargetUnitID]
	if !ok {
		return nil, protocol.InvalidTarget(fmt.Sprintf("unit %q does not exist", ctx.TargetUnitID))
	}

	res := &Result{}
	models := make([]*scratch, 0, len(unit.Models))
	anyAlive := false
	for i, m := range unit.Models {
		models = append(models, &scratch{model: m, idx: i, wounds: m.CurrentWounds, alive: m.Alive})
		if m.Alive {
			anyAlive = true
		}
	}
	// A unit with no alive models at resolution start is a no-op, not an error.
	if !anyAlive {
		return res, nil
	}

	needed, _ := SaveNeeded(ctx.Save, ctx.AP)

	total := ctx.WoundsToSave
	if len(manualTargets) > 0 && len(manualTargets) != total {
		return nil, protocol.MissingParameter("targets")
	}

	damageEvents := 0
	for i := 0; i < total; i++ {
		var target *scratch
		if len(manualTargets) > 0 {
			target = findModel(models, manualTargets[i])
			if target == nil || !target.alive {
				return nil, protocol.InvalidTarget(fmt.Sprintf("model %q is not a valid allocation target", manualTargets[i]))
			}
			// Manual allocation must still exhaust wounded models first.
			if target.wounds >= target.model.MaxWounds && hasWoundedAlive(models) {
				return nil, protocol.InvalidTarget(fmt.Sprintf("model %q skips an already-wounded model", manualTargets[i]))
			}
		} else {
			target = allocate(models)
		}
		if target == nil {
			break // unit wiped mid-batch; surplus wounds are lost
		}

		rec := AllocationRecord{WoundIndex: i, ModelID: target.model.ID, Needed: needed}
		if i < len(manualRolls) {
			rec.Roll = manualRolls[i]
		} else {
			rec.Roll = r.dice.D6()
		}
		rec.Saved = needed <= 6 && rec.Roll >= needed && rec.Roll != 1
		if rec.Saved {
			res.Summary.WoundsSaved++
			res.Records = append(res.Records, rec)
			continue
		}
		res.Summary.WoundsFailed++
		damageEvents++

		dmg := r.dice.RollExpr(ctx.Damage)
		if dmg < 1 {
			dmg = 1
		}
		if ctx.Save.FNP >= 2 {
			fnp := r.dice.RollFeelNoPain(dmg, ctx.Save.FNP)
			rec.FNP = &fnp
			dmg = fnp.Remaining
		}
		applyDamage(unit.ID, target, dmg, &rec, res)
		res.Records = append(res.Records, rec)
	}

	// Devastating Wounds mortals bypass saves entirely but still allow FNP.
	for i := 0; i < ctx.Mortals; i++ {
		target := allocate(models)
		if target == nil {
			break
		}
		rec := AllocationRecord{WoundIndex: total + i, ModelID: target.model.ID, Needed: 7}
		dmg := 1
		if ctx.Save.FNP >= 2 {
			fnp := r.dice.RollFeelNoPain(dmg, ctx.Save.FNP)
			rec.FNP = &fnp
			dmg = fnp.Remaining
		}
		res.Summary.WoundsFailed++
		applyDamage(unit.ID, target, dmg, &rec, res)
		res.Records = append(res.Records, rec)
	}

	// If the batch wiped the unit, mark its lifecycle status. Models stay
	// in the list with alive=false.
	wiped := true
	for _, m := range models {
		if m.alive {
			wiped = false
			break
		}
	}
	if wiped && unit.Status != state.StatusDestroyed {
		res.Diffs = append(res.Diffs, state.Set(state.PathUnitStatus(unit.ID), state.StatusDestroyed))
	}
	return res, nil
}

func applyDamage(unitID string, target *scratch, dmg int, rec *AllocationRecord, res *Result) {
	if dmg <= 0 {
		return
	}
	applied := dmg
	if applied > target.wounds {
		res.Summary.Overkill += applied - target.wounds
		applied = target.wounds
	}
	target.wounds -= applied
	rec.Damage = applied
	res.Summary.TotalDamage += applied
	res.Diffs = append(res.Diffs, state.Set(state.PathModelWounds(unitID, target.idx), target.wounds))
	if target.wounds == 0 {
		target.alive = false
		rec.Destroyed = true
		res.Summary.ModelsDestroyed++
		res.Diffs = append(res.Diffs, state.Set(state.PathModelAlive(unitID, target.idx), false))
	}
}

func findModel(models []*scratch, id string) *scratch {
	for _, m := range models {
		if m.model.ID == id {
			return m
		}
	}
	return nil
}

func hasWoundedAlive(models []*scratch) bool {
	for _, m := range models {
		if m.alive && m.wounds < m.model.MaxWounds {
			return true
		}
	}
	return false
}
