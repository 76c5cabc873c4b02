package phase

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Scoring phase: SCORE_OBJECTIVES sweeps every objective, decides control
// by total objective-control value of alive models in range, and awards
// the active player a point per held objective. Battle-shocked units
// contribute no OC. The sweep must run before the phase can end.
type scoringPhase struct{}

const scoredFlag = "scored_this_turn"

func (scoringPhase) availableActions(m *Machine) []protocol.ActionDescriptor {
	out := []protocol.ActionDescriptor{}
	if !m.metaFlagBool(scoredFlag) {
		out = append(out, protocol.ActionDescriptor{Type: ActionScoreObjectives, Description: "resolve objective control"})
	} else {
		out = append(out, protocol.ActionDescriptor{Type: ActionEndScoring})
	}
	return out
}

func (scoringPhase) validate(m *Machine, player int, a protocol.Action) error {
	switch a.Type {
	case ActionScoreObjectives:
		if m.metaFlagBool(scoredFlag) {
			return protocol.OutOfOrder("objectives were already scored this turn")
		}
		return nil
	case ActionEndScoring:
		if !m.metaFlagBool(scoredFlag) {
			return protocol.OutOfOrder("score objectives before ending the phase")
		}
		return nil
	}
	return protocol.UnknownAction(a.Type)
}

func (scoringPhase) execute(m *Machine, player int, a protocol.Action) (*ExecResult, error) {
	switch a.Type {
	case ActionScoreObjectives:
		g := m.game()
		res := &ExecResult{}
		held := 0
		for i, obj := range g.Board.Objectives {
			oc := map[int]int{}
			for _, id := range m.store.UnitIDs() {
				u := g.Units[id]
				if u.FlagBool("battle_shocked") {
					continue
				}
				for _, mod := range u.AliveModels() {
					if mod.Position == nil {
						continue
					}
					if geometry.WithinObjective(geometry.PlacementOf(mod), obj) {
						oc[u.Owner] += u.Meta.OC
					}
				}
			}
			controller := 0
			if oc[1] > oc[2] {
				controller = 1
			} else if oc[2] > oc[1] {
				controller = 2
			}
			if controller != obj.Controller {
				res.Diffs = append(res.Diffs, state.Set(state.PathObjectiveController(i), controller))
			}
			if controller == player {
				held++
			}
		}
		if held > 0 {
			score := g.PlayerByID(player).Score + held
			res.Diffs = append(res.Diffs, state.Set(state.PathPlayerScore(player), score))
		}
		res.Diffs = append(res.Diffs, state.Set(state.PathMetaFlag(scoredFlag), true))
		res.Log = append(res.Log, fmt.Sprintf("player %d holds %d objective(s)", player, held))
		return res, nil
	case ActionEndScoring:
		return &ExecResult{
			Diffs: []state.Diff{state.Set(state.PathMetaPhase(), state.PhaseMorale)},
		}, nil
	}
	return nil, protocol.UnknownAction(a.Type)
}
