package phase

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Shooting phase: BEGIN_SAVE_SEQUENCE declares a target and rolls the
// attack; APPLY_SAVES (defender, reactive) resolves the tail of the
// pipeline. The phase cannot end mid-sequence.
type shootingPhase struct{}

func (shootingPhase) availableActions(m *Machine) []protocol.ActionDescriptor {
	if out := m.applySavesDescriptor(); out != nil {
		return out
	}
	out := []protocol.ActionDescriptor{}
	for _, u := range m.unitsOf(m.game().Meta.ActivePlayer) {
		if len(u.AliveModels()) == 0 || u.FlagBool("shot") {
			continue
		}
		if !hasWeaponOfType(u, "ranged") {
			continue
		}
		out = append(out, protocol.ActionDescriptor{
			Type:        ActionBeginSaveSequence,
			ActorUnitID: u.ID,
			Params:      []string{"target_unit_id", "weapon"},
			Description: fmt.Sprintf("shoot with %s", u.Meta.Name),
		})
	}
	out = append(out, protocol.ActionDescriptor{Type: ActionEndShooting})
	return out
}

func (shootingPhase) validate(m *Machine, player int, a protocol.Action) error {
	switch a.Type {
	case ActionBeginSaveSequence:
		if _, pending := m.pendingSaves(); pending {
			return protocol.OutOfOrder("a save sequence is already pending")
		}
		shooter, err := m.activeUnit(player, a.ActorUnitID)
		if err != nil {
			return err
		}
		if shooter.FlagBool("shot") {
			return protocol.OutOfOrder(fmt.Sprintf("unit %q has already shot this turn", shooter.ID))
		}
		targetID, err := a.StringParam("target_unit_id")
		if err != nil {
			return err
		}
		target, err := m.enemyUnit(player, targetID)
		if err != nil {
			return err
		}
		w, err := weaponNamed(shooter, a, "ranged")
		if err != nil {
			return err
		}
		return m.checkRangeAndSight(shooter, target, w)
	case ActionApplySaves:
		return m.validateApplySaves(player, a)
	case ActionEndShooting:
		if _, pending := m.pendingSaves(); pending {
			return protocol.OutOfOrder("resolve the pending save sequence before ending the phase")
		}
		return nil
	}
	return protocol.UnknownAction(a.Type)
}

func (shootingPhase) execute(m *Machine, player int, a protocol.Action) (*ExecResult, error) {
	switch a.Type {
	case ActionBeginSaveSequence:
		shooter := m.game().Units[a.ActorUnitID]
		targetID, _ := a.StringParam("target_unit_id")
		target := m.game().Units[targetID]
		w, _ := weaponNamed(shooter, a, "ranged")
		return m.beginAttack(shooter, target, w, "shot")
	case ActionApplySaves:
		return m.executeApplySaves(a)
	case ActionEndShooting:
		return &ExecResult{
			Diffs: []state.Diff{state.Set(state.PathMetaPhase(), state.PhaseCharge)},
		}, nil
	}
	return nil, protocol.UnknownAction(a.Type)
}

// checkRangeAndSight requires at least one alive shooter model within
// weapon range of, and with line of sight to, an alive target model.
func (m *Machine) checkRangeAndSight(shooter, target *state.Unit, w state.Weapon) error {
	walls := m.game().Board.Walls
	for _, sm := range shooter.AliveModels() {
		if sm.Position == nil {
			continue
		}
		for _, tm := range target.AliveModels() {
			if tm.Position == nil {
				continue
			}
			d := m.geo.DistanceEdgeToEdge(geometry.PlacementOf(sm), geometry.PlacementOf(tm))
			if w.Range > 0 && d > w.Range {
				continue
			}
			if m.geo.LineOfSight(*sm.Position, *tm.Position, walls) {
				return nil
			}
		}
	}
	return protocol.InvalidTarget(fmt.Sprintf("no model of %q can see %q within range", shooter.ID, target.ID))
}

func hasWeaponOfType(u *state.Unit, typ string) bool {
	for _, w := range u.Meta.Weapons {
		if w.Type == typ {
			return true
		}
	}
	return false
}

// weaponNamed resolves payload.weapon against the unit's profiles of the
// wanted type, defaulting to the first matching profile.
func weaponNamed(u *state.Unit, a protocol.Action, typ string) (state.Weapon, error) {
	name, _ := a.StringParam("weapon")
	var fallback *state.Weapon
	for i, w := range u.Meta.Weapons {
		if w.Type != typ {
			continue
		}
		if fallback == nil {
			fallback = &u.Meta.Weapons[i]
		}
		if name != "" && w.Name == name {
			return w, nil
		}
	}
	if name == "" && fallback != nil {
		return *fallback, nil
	}
	if fallback == nil {
		return state.Weapon{}, protocol.InvalidTarget(fmt.Sprintf("unit %q has no %s weapon", u.ID, typ))
	}
	return state.Weapon{}, protocol.InvalidTarget(fmt.Sprintf("unit %q has no %s weapon named %q", u.ID, typ, name))
}
