package phase

import (
	"encoding/json"
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/combat"
	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// The interactive save exchange is two actions, never a suspended wait:
// BEGIN_SAVE_SEQUENCE (or FIGHT) rolls the attack and parks a
// SaveResolutionContext in meta flags; APPLY_SAVES consumes it. Between
// the two the document is fully consistent and the exchange itself is
// replicated state, so either side can reconnect mid-sequence.

const pendingSavesFlag = "pending_saves"

func (m *Machine) pendingSaves() (*combat.SaveResolutionContext, bool) {
	v, ok := m.game().Meta.Flags[pendingSavesFlag]
	if !ok {
		return nil, false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	var ctx combat.SaveResolutionContext
	if err := json.Unmarshal(b, &ctx); err != nil {
		return nil, false
	}
	return &ctx, true
}

// beginAttack resolves the front half of a weapon attack and, when any
// wounds got through, emits the pending save context diff.
func (m *Machine) beginAttack(attacker, target *state.Unit, w state.Weapon, doneFlag string) (*ExecResult, error) {
	atk := m.resolver.ResolveAttack(attacker, target, w)
	res := &ExecResult{Attack: &atk}
	res.Diffs = append(res.Diffs, state.Set(state.PathUnitFlag(attacker.ID, doneFlag), true))
	res.Log = append(res.Log, fmt.Sprintf("%s attacks %s with %s: %d attacks, %d hits, %d wounds",
		attacker.Meta.Name, target.Meta.Name, w.Name, atk.Attacks, atk.Hits, atk.Wounds+atk.AutoWounds))

	wounds := atk.Wounds + atk.AutoWounds
	if wounds == 0 && atk.Mortals == 0 {
		return res, nil
	}
	ctx := combat.SaveResolutionContext{
		TargetUnitID: target.ID,
		WoundsToSave: wounds,
		Save: combat.SaveProfile{
			Armor:  target.Meta.Save,
			Invuln: target.Meta.Invuln,
			Cover:  m.hasCover(target),
			FNP:    target.Meta.FNP,
		},
		AP:         w.AP,
		Damage:     w.Damage,
		Mortals:    atk.Mortals,
		AttackerID: attacker.ID,
		Weapon:     w.Name,
	}
	res.Diffs = append(res.Diffs, state.Set(state.PathMetaFlag(pendingSavesFlag), ctx))
	return res, nil
}

// hasCover grants the benefit of cover when any alive model of the unit
// stands inside a terrain footprint.
func (m *Machine) hasCover(u *state.Unit) bool {
	for _, mod := range u.AliveModels() {
		if mod.Position == nil {
			continue
		}
		for _, t := range m.game().Board.Terrain {
			if geometry.InTerrain(*mod.Position, t) {
				return true
			}
		}
	}
	return false
}

func (m *Machine) validateApplySaves(player int, a protocol.Action) error {
	ctx, ok := m.pendingSaves()
	if !ok {
		return protocol.OutOfOrder("no save sequence is pending")
	}
	target, ok := m.game().Units[ctx.TargetUnitID]
	if !ok {
		return protocol.InvalidTarget(fmt.Sprintf("pending target %q does not exist", ctx.TargetUnitID))
	}
	if target.Owner != player {
		return protocol.NotYourTurn(player)
	}
	if rolls := a.IntsParam("rolls"); len(rolls) > 0 && len(rolls) != ctx.WoundsToSave {
		return protocol.MissingParameter("rolls")
	}
	return nil
}

func (m *Machine) executeApplySaves(a protocol.Action) (*ExecResult, error) {
	ctx, _ := m.pendingSaves()
	rolls := a.IntsParam("rolls")
	targets := a.StringsParam("targets")
	out, err := m.resolver.ResolveSaves(*ctx, targets, rolls)
	if err != nil {
		return nil, err
	}
	res := &ExecResult{
		Diffs:   out.Diffs,
		Records: out.Records,
		Summary: &out.Summary,
	}
	res.Diffs = append(res.Diffs, state.Remove(state.PathMetaFlag(pendingSavesFlag)))
	res.Log = append(res.Log, fmt.Sprintf("saves: %d saved, %d failed, %d damage, %d destroyed",
		out.Summary.WoundsSaved, out.Summary.WoundsFailed, out.Summary.TotalDamage, out.Summary.ModelsDestroyed))
	return res, nil
}

// applySavesDescriptor is advertised from both shooting and fight phases.
func (m *Machine) applySavesDescriptor() []protocol.ActionDescriptor {
	ctx, ok := m.pendingSaves()
	if !ok {
		return nil
	}
	return []protocol.ActionDescriptor{{
		Type:        ActionApplySaves,
		ActorUnitID: ctx.TargetUnitID,
		Params:      []string{"rolls", "targets"},
		Reactive:    true,
		Description: fmt.Sprintf("roll %d saves for %s", ctx.WoundsToSave, ctx.TargetUnitID),
	}}
}
