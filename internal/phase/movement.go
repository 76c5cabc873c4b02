package phase

import (
	"fmt"
	"math"

	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Movement phase: the active player confirms one move per unit. Each alive
// model's new position must be within the unit's Move characteristic of
// its current position and inside the board.
type movementPhase struct{}

func (movementPhase) availableActions(m *Machine) []protocol.ActionDescriptor {
	out := []protocol.ActionDescriptor{}
	for _, u := range m.unitsOf(m.game().Meta.ActivePlayer) {
		if len(u.AliveModels()) == 0 || u.FlagBool("moved") {
			continue
		}
		out = append(out, protocol.ActionDescriptor{
			Type:        ActionConfirmUnitMove,
			ActorUnitID: u.ID,
			Params:      []string{"positions"},
			Description: fmt.Sprintf("move %s up to %.0f", u.Meta.Name, u.Meta.Move),
		})
	}
	out = append(out, protocol.ActionDescriptor{Type: ActionEndMovement})
	return out
}

func (movementPhase) validate(m *Machine, player int, a protocol.Action) error {
	switch a.Type {
	case ActionConfirmUnitMove:
		u, err := m.activeUnit(player, a.ActorUnitID)
		if err != nil {
			return err
		}
		if u.FlagBool("moved") {
			return protocol.OutOfOrder(fmt.Sprintf("unit %q has already moved this turn", u.ID))
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
		board := m.game().Board
		for i, mod := range u.Models {
			if !mod.Alive {
				continue
			}
			p := positions[i]
			if p.X < 0 || p.Y < 0 || p.X > board.Width || p.Y > board.Height {
				return protocol.InvalidTarget(fmt.Sprintf("model %d would leave the board", i))
			}
			if mod.Position != nil {
				d := math.Hypot(p.X-mod.Position.X, p.Y-mod.Position.Y)
				if d > u.Meta.Move+1e-6 {
					return protocol.InvalidTarget(fmt.Sprintf("model %d moves %.1f, above the unit's %.1f", i, d, u.Meta.Move))
				}
			}
		}
		return nil
	case ActionEndMovement:
		return nil
	}
	return protocol.UnknownAction(a.Type)
}

func (movementPhase) execute(m *Machine, player int, a protocol.Action) (*ExecResult, error) {
	switch a.Type {
	case ActionConfirmUnitMove:
		u := m.game().Units[a.ActorUnitID]
		positions, _ := deployPositions(a)
		res := &ExecResult{}
		for i, mod := range u.Models {
			if !mod.Alive {
				continue
			}
			res.Diffs = append(res.Diffs, state.Set(state.PathModelPosition(u.ID, i), positions[i]))
		}
		res.Diffs = append(res.Diffs, state.Set(state.PathUnitFlag(u.ID, "moved"), true))
		// Moving breaks an engagement from an earlier charge, for both sides.
		if id, _ := u.Flags["engaged_with"].(string); id != "" {
			res.Diffs = append(res.Diffs, state.Remove(state.PathUnitFlag(u.ID, "engaged_with")))
			if other, ok := m.game().Units[id]; ok {
				if back, _ := other.Flags["engaged_with"].(string); back == u.ID {
					res.Diffs = append(res.Diffs, state.Remove(state.PathUnitFlag(other.ID, "engaged_with")))
				}
			}
		}
		res.Log = append(res.Log, fmt.Sprintf("%s moved", u.Meta.Name))
		return res, nil
	case ActionEndMovement:
		return &ExecResult{
			Diffs: []state.Diff{state.Set(state.PathMetaPhase(), state.PhaseShooting)},
		}, nil
	}
	return nil, protocol.UnknownAction(a.Type)
}
