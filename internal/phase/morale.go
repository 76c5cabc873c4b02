package phase

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Morale phase: every unit of the active player at or below half strength
// takes a battle-shock test (2d6 vs leadership). A failed test marks the
// unit battle-shocked until its next command phase; no models are removed.
// The phase cannot end while tests are outstanding.
type moralePhase struct{}

func (moralePhase) availableActions(m *Machine) []protocol.ActionDescriptor {
	out := []protocol.ActionDescriptor{}
	for _, u := range m.testableUnits() {
		out = append(out, protocol.ActionDescriptor{
			Type:        ActionMoraleTest,
			ActorUnitID: u.ID,
			Description: fmt.Sprintf("battle-shock test for %s (Ld %d)", u.Meta.Name, u.Meta.Leadership),
		})
	}
	if len(out) == 0 {
		out = append(out, protocol.ActionDescriptor{Type: ActionEndMorale})
	}
	return out
}

func (moralePhase) validate(m *Machine, player int, a protocol.Action) error {
	switch a.Type {
	case ActionMoraleTest:
		u, err := m.activeUnit(player, a.ActorUnitID)
		if err != nil {
			return err
		}
		if !u.BelowHalfStrength() {
			return protocol.InvalidTarget(fmt.Sprintf("unit %q is above half strength", u.ID))
		}
		if u.FlagBool("morale_tested") {
			return protocol.OutOfOrder(fmt.Sprintf("unit %q already tested this turn", u.ID))
		}
		return nil
	case ActionEndMorale:
		if n := len(m.testableUnits()); n > 0 {
			return protocol.OutOfOrder(fmt.Sprintf("%d unit(s) still owe a battle-shock test", n))
		}
		return nil
	}
	return protocol.UnknownAction(a.Type)
}

func (moralePhase) execute(m *Machine, player int, a protocol.Action) (*ExecResult, error) {
	switch a.Type {
	case ActionMoraleTest:
		u := m.game().Units[a.ActorUnitID]
		rolls := m.dice.RollD6(2)
		total := rolls[0] + rolls[1]
		res := &ExecResult{}
		res.Diffs = append(res.Diffs, state.Set(state.PathUnitFlag(u.ID, "morale_tested"), true))
		if total < u.Meta.Leadership {
			res.Diffs = append(res.Diffs, state.Set(state.PathUnitFlag(u.ID, "battle_shocked"), true))
			res.Log = append(res.Log, fmt.Sprintf("%s fails battle-shock (%d+%d vs Ld %d)",
				u.Meta.Name, rolls[0], rolls[1], u.Meta.Leadership))
		} else {
			res.Log = append(res.Log, fmt.Sprintf("%s holds firm (%d+%d vs Ld %d)",
				u.Meta.Name, rolls[0], rolls[1], u.Meta.Leadership))
		}
		return res, nil
	case ActionEndMorale:
		return &ExecResult{Diffs: m.advanceTurn()}, nil
	}
	return nil, protocol.UnknownAction(a.Type)
}

func (m *Machine) testableUnits() []*state.Unit {
	out := []*state.Unit{}
	for _, u := range m.unitsOf(m.game().Meta.ActivePlayer) {
		if len(u.AliveModels()) == 0 {
			continue
		}
		if u.BelowHalfStrength() && !u.FlagBool("morale_tested") {
			out = append(out, u)
		}
	}
	return out
}
