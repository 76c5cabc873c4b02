package phase

import (
	"fmt"
	"math"

	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Charge phase: declare a charge, roll 2d6, and if the roll covers the
// edge-to-edge distance the units become engaged. Failed charges just
// spend the unit's charge for the turn.
type chargePhase struct{}

func (chargePhase) availableActions(m *Machine) []protocol.ActionDescriptor {
	out := []protocol.ActionDescriptor{}
	for _, u := range m.unitsOf(m.game().Meta.ActivePlayer) {
		if len(u.AliveModels()) == 0 || u.FlagBool("charged") {
			continue
		}
		out = append(out, protocol.ActionDescriptor{
			Type:        ActionDeclareCharge,
			ActorUnitID: u.ID,
			Params:      []string{"target_unit_id"},
			Description: fmt.Sprintf("charge with %s", u.Meta.Name),
		})
	}
	out = append(out, protocol.ActionDescriptor{Type: ActionEndCharge})
	return out
}

func (chargePhase) validate(m *Machine, player int, a protocol.Action) error {
	switch a.Type {
	case ActionDeclareCharge:
		u, err := m.activeUnit(player, a.ActorUnitID)
		if err != nil {
			return err
		}
		if u.FlagBool("charged") {
			return protocol.OutOfOrder(fmt.Sprintf("unit %q has already charged this turn", u.ID))
		}
		targetID, err := a.StringParam("target_unit_id")
		if err != nil {
			return err
		}
		target, err := m.enemyUnit(player, targetID)
		if err != nil {
			return err
		}
		if _, ok := closestDistance(m, u, target); !ok {
			return protocol.InvalidTarget(fmt.Sprintf("units %q and %q have no placed models", u.ID, target.ID))
		}
		return nil
	case ActionEndCharge:
		return nil
	}
	return protocol.UnknownAction(a.Type)
}

func (chargePhase) execute(m *Machine, player int, a protocol.Action) (*ExecResult, error) {
	switch a.Type {
	case ActionDeclareCharge:
		u := m.game().Units[a.ActorUnitID]
		targetID, _ := a.StringParam("target_unit_id")
		target := m.game().Units[targetID]
		dist, _ := closestDistance(m, u, target)

		rolls := m.dice.RollD6(2)
		total := rolls[0] + rolls[1]
		res := &ExecResult{}
		res.Diffs = append(res.Diffs, state.Set(state.PathUnitFlag(u.ID, "charged"), true))
		if float64(total) >= dist {
			res.Diffs = append(res.Diffs,
				state.Set(state.PathUnitFlag(u.ID, "engaged_with"), target.ID),
				state.Set(state.PathUnitFlag(target.ID, "engaged_with"), u.ID),
			)
			res.Log = append(res.Log, fmt.Sprintf("%s charges %s: rolled %d+%d vs %.1f, made it",
				u.Meta.Name, target.Meta.Name, rolls[0], rolls[1], dist))
		} else {
			res.Log = append(res.Log, fmt.Sprintf("%s charges %s: rolled %d+%d vs %.1f, failed",
				u.Meta.Name, target.Meta.Name, rolls[0], rolls[1], dist))
		}
		return res, nil
	case ActionEndCharge:
		return &ExecResult{
			Diffs: []state.Diff{state.Set(state.PathMetaPhase(), state.PhaseFight)},
		}, nil
	}
	return nil, protocol.UnknownAction(a.Type)
}

// closestDistance is the minimum edge-to-edge distance over all alive,
// placed model pairs; distances are in the board's unit scale where one
// tabletop inch is 40 units.
func closestDistance(m *Machine, a, b *state.Unit) (float64, bool) {
	best := math.Inf(1)
	found := false
	for _, am := range a.AliveModels() {
		if am.Position == nil {
			continue
		}
		for _, bm := range b.AliveModels() {
			if bm.Position == nil {
				continue
			}
			d := m.geo.DistanceEdgeToEdge(geometry.PlacementOf(am), geometry.PlacementOf(bm))
			if d < best {
				best = d
				found = true
			}
		}
	}
	return best / unitsPerInch, found
}

// unitsPerInch converts board units to tabletop inches for charge rolls.
const unitsPerInch = 40.0
