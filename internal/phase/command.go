package phase

import (
	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Command phase: both players gain a command point, once per turn, and the
// active player's battle-shock flags from the previous round clear on exit.
type commandPhase struct{}

const cpGainedFlag = "cp_gained"

func (commandPhase) availableActions(m *Machine) []protocol.ActionDescriptor {
	out := []protocol.ActionDescriptor{}
	if !m.metaFlagBool(cpGainedFlag) {
		out = append(out, protocol.ActionDescriptor{Type: ActionGainCP, Description: "both players gain 1CP"})
	}
	out = append(out, protocol.ActionDescriptor{Type: ActionEndCommand})
	return out
}

func (commandPhase) validate(m *Machine, player int, a protocol.Action) error {
	switch a.Type {
	case ActionGainCP:
		if m.metaFlagBool(cpGainedFlag) {
			return protocol.OutOfOrder("command points were already gained this turn")
		}
		return nil
	case ActionEndCommand:
		return nil
	}
	return protocol.UnknownAction(a.Type)
}

func (commandPhase) execute(m *Machine, player int, a protocol.Action) (*ExecResult, error) {
	g := m.game()
	switch a.Type {
	case ActionGainCP:
		return &ExecResult{
			Diffs: []state.Diff{
				state.Set(state.PathPlayerCP(1), g.PlayerByID(1).CommandPoints+1),
				state.Set(state.PathPlayerCP(2), g.PlayerByID(2).CommandPoints+1),
				state.Set(state.PathMetaFlag(cpGainedFlag), true),
			},
			Log: []string{"both players gain 1CP"},
		}, nil
	case ActionEndCommand:
		res := &ExecResult{}
		for _, u := range m.unitsOf(player) {
			if u.FlagBool("battle_shocked") {
				res.Diffs = append(res.Diffs, state.Remove(state.PathUnitFlag(u.ID, "battle_shocked")))
			}
		}
		res.Diffs = append(res.Diffs,
			state.Remove(state.PathMetaFlag(cpGainedFlag)),
			state.Set(state.PathMetaPhase(), state.PhaseMovement),
		)
		return res, nil
	}
	return nil, protocol.UnknownAction(a.Type)
}

func (m *Machine) metaFlagBool(key string) bool {
	v, ok := m.game().Meta.Flags[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
