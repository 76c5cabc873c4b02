package phase

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Deployment alternates: the active player places one unit, then the turn
// passes if the opponent still has reserves. The phase cannot end until
// every unit on both sides is on the table.
type deploymentPhase struct{}

func (deploymentPhase) availableActions(m *Machine) []protocol.ActionDescriptor {
	out := []protocol.ActionDescriptor{}
	player := m.game().Meta.ActivePlayer
	for _, u := range m.unitsOf(player) {
		if u.Status == state.StatusReserve {
			out = append(out, protocol.ActionDescriptor{
				Type:        ActionDeployUnit,
				ActorUnitID: u.ID,
				Params:      []string{"positions"},
				Description: fmt.Sprintf("deploy %s", u.Meta.Name),
			})
		}
	}
	if m.allDeployed() {
		out = append(out, protocol.ActionDescriptor{Type: ActionEndDeployment})
	}
	return out
}

func (deploymentPhase) validate(m *Machine, player int, a protocol.Action) error {
	switch a.Type {
	case ActionDeployUnit:
		u, err := m.activeUnit(player, a.ActorUnitID)
		if err != nil {
			return err
		}
		if u.Status != state.StatusReserve {
			return protocol.OutOfOrder(fmt.Sprintf("unit %q is already deployed", u.ID))
		}
		positions, err := deployPositions(a)
		if err != nil {
			return err
		}
		if len(positions) != len(u.Models) {
			return &protocol.ValidationError{
				Code:    protocol.CodeMissingParameter,
				Message: fmt.Sprintf("unit %q needs %d positions, got %d", u.ID, len(u.Models), len(positions)),
			}
		}
		zone, ok := zoneOf(m.game().Board, player)
		if !ok {
			return protocol.InvalidTarget(fmt.Sprintf("player %d has no deployment zone", player))
		}
		for i, p := range positions {
			if !geometry.InZone(p, zone) {
				return protocol.InvalidTarget(fmt.Sprintf("model %d at (%.0f,%.0f) is outside your deployment zone", i, p.X, p.Y))
			}
		}
		return nil
	case ActionEndDeployment:
		if !m.allDeployed() {
			return protocol.OutOfOrder("deployment cannot end while units remain in reserve")
		}
		return nil
	}
	return protocol.UnknownAction(a.Type)
}

func (deploymentPhase) execute(m *Machine, player int, a protocol.Action) (*ExecResult, error) {
	switch a.Type {
	case ActionDeployUnit:
		u := m.game().Units[a.ActorUnitID]
		positions, _ := deployPositions(a)
		res := &ExecResult{}
		for i, p := range positions {
			res.Diffs = append(res.Diffs, state.Set(state.PathModelPosition(u.ID, i), p))
		}
		res.Diffs = append(res.Diffs, state.Set(state.PathUnitStatus(u.ID), state.StatusDeployed))
		// Alternate with the opponent while they still have reserves.
		opponent := 3 - player
		for _, ou := range m.unitsOf(opponent) {
			if ou.Status == state.StatusReserve {
				res.Diffs = append(res.Diffs, state.Set(state.PathMetaActivePlayer(), opponent))
				break
			}
		}
		res.Log = append(res.Log, fmt.Sprintf("%s deployed", u.Meta.Name))
		return res, nil
	case ActionEndDeployment:
		return &ExecResult{
			Diffs: []state.Diff{
				state.Set(state.PathMetaPhase(), state.PhaseCommand),
				state.Set(state.PathMetaActivePlayer(), 1),
			},
			Log: []string{"deployment complete"},
		}, nil
	}
	return nil, protocol.UnknownAction(a.Type)
}

func (m *Machine) allDeployed() bool {
	for _, id := range m.store.UnitIDs() {
		if m.game().Units[id].Status == state.StatusReserve {
			return false
		}
	}
	return true
}

func zoneOf(b *state.Board, player int) (state.DeployZone, bool) {
	for _, z := range b.Zones {
		if z.Owner == player {
			return z, true
		}
	}
	return state.DeployZone{}, false
}

// deployPositions reads payload.positions as a list of {x,y} points.
func deployPositions(a protocol.Action) ([]state.Position, error) {
	v, ok := a.Payload["positions"]
	if !ok {
		return nil, protocol.MissingParameter("positions")
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, protocol.MissingParameter("positions")
	}
	out := make([]state.Position, 0, len(raw))
	for _, e := range raw {
		p, ok := e.(map[string]any)
		if !ok {
			return nil, protocol.MissingParameter("positions")
		}
		x, xok := p["x"].(float64)
		y, yok := p["y"].(float64)
		if !xok || !yok {
			return nil, protocol.MissingParameter("positions")
		}
		out = append(out, state.Position{X: x, Y: y})
	}
	return out, nil
}
