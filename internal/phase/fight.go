package phase

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Fight phase: engaged units swing with melee profiles. The save tail is
// the same two-step exchange as shooting, so APPLY_SAVES is legal here too.
type fightPhase struct{}

func (fightPhase) availableActions(m *Machine) []protocol.ActionDescriptor {
	if out := m.applySavesDescriptor(); out != nil {
		return out
	}
	out := []protocol.ActionDescriptor{}
	for _, u := range m.unitsOf(m.game().Meta.ActivePlayer) {
		if len(u.AliveModels()) == 0 || u.FlagBool("fought") {
			continue
		}
		if engagedTarget(m, u) == nil || !hasWeaponOfType(u, "melee") {
			continue
		}
		out = append(out, protocol.ActionDescriptor{
			Type:        ActionFight,
			ActorUnitID: u.ID,
			Params:      []string{"target_unit_id", "weapon"},
			Description: fmt.Sprintf("fight with %s", u.Meta.Name),
		})
	}
	out = append(out, protocol.ActionDescriptor{Type: ActionEndFight})
	return out
}

func (fightPhase) validate(m *Machine, player int, a protocol.Action) error {
	switch a.Type {
	case ActionFight:
		if _, pending := m.pendingSaves(); pending {
			return protocol.OutOfOrder("a save sequence is already pending")
		}
		u, err := m.activeUnit(player, a.ActorUnitID)
		if err != nil {
			return err
		}
		if u.FlagBool("fought") {
			return protocol.OutOfOrder(fmt.Sprintf("unit %q has already fought this turn", u.ID))
		}
		targetID, err := a.StringParam("target_unit_id")
		if err != nil {
			return err
		}
		target, err := m.enemyUnit(player, targetID)
		if err != nil {
			return err
		}
		if eng := engagedTarget(m, u); eng == nil || eng.ID != target.ID {
			return protocol.InvalidTarget(fmt.Sprintf("unit %q is not engaged with %q", u.ID, target.ID))
		}
		if _, err := weaponNamed(u, a, "melee"); err != nil {
			return err
		}
		return nil
	case ActionApplySaves:
		return m.validateApplySaves(player, a)
	case ActionEndFight:
		if _, pending := m.pendingSaves(); pending {
			return protocol.OutOfOrder("resolve the pending save sequence before ending the phase")
		}
		return nil
	}
	return protocol.UnknownAction(a.Type)
}

func (fightPhase) execute(m *Machine, player int, a protocol.Action) (*ExecResult, error) {
	switch a.Type {
	case ActionFight:
		u := m.game().Units[a.ActorUnitID]
		targetID, _ := a.StringParam("target_unit_id")
		target := m.game().Units[targetID]
		w, _ := weaponNamed(u, a, "melee")
		return m.beginAttack(u, target, w, "fought")
	case ActionApplySaves:
		return m.executeApplySaves(a)
	case ActionEndFight:
		return &ExecResult{
			Diffs: []state.Diff{state.Set(state.PathMetaPhase(), state.PhaseScoring)},
		}, nil
	}
	return nil, protocol.UnknownAction(a.Type)
}

// engagedTarget resolves the unit's engagement flag to a live enemy unit.
func engagedTarget(m *Machine, u *state.Unit) *state.Unit {
	if u.Flags == nil {
		return nil
	}
	id, _ := u.Flags["engaged_with"].(string)
	if id == "" {
		return nil
	}
	t, ok := m.game().Units[id]
	if !ok || len(t.AliveModels()) == 0 {
		return nil
	}
	return t
}
