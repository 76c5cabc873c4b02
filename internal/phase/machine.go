package phase

import (
	"fmt"

	"github.com/pefman/w40k-tabletop/internal/combat"
	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/geometry"
	"github.com/pefman/w40k-tabletop/internal/protocol"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// Action types, grouped by the phase that owns them. APPLY_SAVES is
// reactive: the defender submits it during the attacker's turn.
const (
	ActionDeployUnit        = "DEPLOY_UNIT"
	ActionEndDeployment     = "END_DEPLOYMENT"
	ActionGainCP            = "GAIN_CP"
	ActionEndCommand        = "END_COMMAND"
	ActionConfirmUnitMove   = "CONFIRM_UNIT_MOVE"
	ActionEndMovement       = "END_MOVEMENT"
	ActionBeginSaveSequence = "BEGIN_SAVE_SEQUENCE"
	ActionApplySaves        = "APPLY_SAVES"
	ActionEndShooting       = "END_SHOOTING"
	ActionDeclareCharge     = "DECLARE_CHARGE"
	ActionEndCharge         = "END_CHARGE"
	ActionFight             = "FIGHT"
	ActionEndFight          = "END_FIGHT"
	ActionScoreObjectives   = "SCORE_OBJECTIVES"
	ActionEndScoring        = "END_SCORING"
	ActionMoraleTest        = "MORALE_TEST"
	ActionEndMorale         = "END_MORALE"
)

// knownActions maps every action type to the phase it belongs to. A known
// type submitted in the wrong phase fails with OUT_OF_ORDER; an unknown
// type fails with UNKNOWN_ACTION.
var knownActions = map[string]string{
	ActionDeployUnit:        state.PhaseDeployment,
	ActionEndDeployment:     state.PhaseDeployment,
	ActionGainCP:            state.PhaseCommand,
	ActionEndCommand:        state.PhaseCommand,
	ActionConfirmUnitMove:   state.PhaseMovement,
	ActionEndMovement:       state.PhaseMovement,
	ActionBeginSaveSequence: state.PhaseShooting,
	ActionApplySaves:        state.PhaseShooting, // also legal in fight
	ActionEndShooting:       state.PhaseShooting,
	ActionDeclareCharge:     state.PhaseCharge,
	ActionEndCharge:         state.PhaseCharge,
	ActionFight:             state.PhaseFight,
	ActionEndFight:          state.PhaseFight,
	ActionScoreObjectives:   state.PhaseScoring,
	ActionEndScoring:        state.PhaseScoring,
	ActionMoraleTest:        state.PhaseMorale,
	ActionEndMorale:         state.PhaseMorale,
}

const lastBattleRound = 5

// ExecResult is what a successful execution reports: the diffs (already
// applied to the local store) plus structured detail for logs and UI.
type ExecResult struct {
	Diffs   []state.Diff              `json:"diffs"`
	Attack  *combat.AttackResult      `json:"attack,omitempty"`
	Records []combat.AllocationRecord `json:"records,omitempty"`
	Summary *combat.Summary           `json:"summary,omitempty"`
	Log     []string                  `json:"log,omitempty"`
}

// handler is the validate/execute contract every phase exposes. The closed
// set of variants is selected by the phase name in meta, so dispatch is
// exhaustive.
type handler interface {
	availableActions(m *Machine) []protocol.ActionDescriptor
	validate(m *Machine, player int, a protocol.Action) error
	execute(m *Machine, player int, a protocol.Action) (*ExecResult, error)
}

// Machine drives one match: it owns no state of its own beyond injected
// services, so the synchronized document stays the single source of truth.
type Machine struct {
	store    *state.Store
	dice     *engine.Roller
	geo      geometry.Service
	resolver *combat.Resolver
}

func NewMachine(store *state.Store, dice *engine.Roller, geo geometry.Service) *Machine {
	return &Machine{
		store:    store,
		dice:     dice,
		geo:      geo,
		resolver: combat.NewResolver(store, dice),
	}
}

func (m *Machine) Store() *state.Store { return m.store }

func (m *Machine) game() *state.GameState { return m.store.Game() }

func (m *Machine) current() handler {
	switch m.game().Meta.Phase {
	case state.PhaseDeployment:
		return deploymentPhase{}
	case state.PhaseCommand:
		return commandPhase{}
	case state.PhaseMovement:
		return movementPhase{}
	case state.PhaseShooting:
		return shootingPhase{}
	case state.PhaseCharge:
		return chargePhase{}
	case state.PhaseFight:
		return fightPhase{}
	case state.PhaseScoring:
		return scoringPhase{}
	case state.PhaseMorale:
		return moralePhase{}
	}
	panic(fmt.Sprintf("phase: unknown phase %q in meta", m.game().Meta.Phase))
}

// AvailableActions is the pure legal-move query for the active phase.
func (m *Machine) AvailableActions() []protocol.ActionDescriptor {
	if m.gameOver() {
		return nil
	}
	return m.current().availableActions(m)
}

// ValidateAction is the sole gate before execution. player identifies the
// submitting participant.
func (m *Machine) ValidateAction(player int, a protocol.Action) error {
	if m.gameOver() {
		return protocol.OutOfOrder("the battle is over")
	}
	phase, known := knownActions[a.Type]
	if !known {
		return protocol.UnknownAction(a.Type)
	}
	cur := m.game().Meta.Phase
	if phase != cur && !(a.Type == ActionApplySaves && cur == state.PhaseFight) {
		return protocol.OutOfOrder(fmt.Sprintf("%s is not legal during the %s phase", a.Type, cur))
	}
	if a.Type != ActionApplySaves && player != m.game().Meta.ActivePlayer {
		// APPLY_SAVES is the defender's reactive step; everything else
		// belongs to the active player.
		return protocol.NotYourTurn(player)
	}
	return m.current().validate(m, player, a)
}

// ExecuteAction validates, computes diffs, and applies them. On success the
// returned diffs are already in the local document; on failure the document
// is untouched and no diffs are returned.
func (m *Machine) ExecuteAction(player int, a protocol.Action) (*ExecResult, error) {
	if err := m.ValidateAction(player, a); err != nil {
		return nil, err
	}
	_, before := m.dice.State()
	res, err := m.current().execute(m, player, a)
	if err != nil {
		return nil, err
	}
	if _, after := m.dice.State(); after != before {
		res.Diffs = append(res.Diffs, state.Set(state.PathMetaRNGCounter(), after))
	}
	if err := m.store.Apply(res.Diffs); err != nil {
		// A failed apply after successful validation is a contract
		// violation, not a recoverable input problem.
		return nil, err
	}
	return res, nil
}

func (m *Machine) gameOver() bool {
	v, ok := m.game().Meta.Flags["game_over"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// ---- shared lookups ----

func (m *Machine) activeUnit(player int, id string) (*state.Unit, error) {
	u, ok := m.game().Units[id]
	if !ok {
		return nil, protocol.InvalidTarget(fmt.Sprintf("unit %q does not exist", id))
	}
	if u.Owner != player {
		return nil, protocol.InvalidTarget(fmt.Sprintf("unit %q belongs to player %d", id, u.Owner))
	}
	if u.Status == state.StatusDestroyed || len(u.AliveModels()) == 0 {
		return nil, protocol.InvalidTarget(fmt.Sprintf("unit %q has been destroyed", id))
	}
	return u, nil
}

func (m *Machine) enemyUnit(player int, id string) (*state.Unit, error) {
	u, ok := m.game().Units[id]
	if !ok {
		return nil, protocol.InvalidTarget(fmt.Sprintf("unit %q does not exist", id))
	}
	if u.Owner == player {
		return nil, protocol.InvalidTarget(fmt.Sprintf("unit %q is your own unit", id))
	}
	if u.Status == state.StatusDestroyed || len(u.AliveModels()) == 0 {
		return nil, protocol.InvalidTarget(fmt.Sprintf("unit %q has been destroyed", id))
	}
	return u, nil
}

// unitsOf yields player's units in stable order.
func (m *Machine) unitsOf(player int) []*state.Unit {
	out := []*state.Unit{}
	for _, id := range m.store.UnitIDs() {
		u := m.game().Units[id]
		if u.Owner == player {
			out = append(out, u)
		}
	}
	return out
}

// advanceTurn produces the diffs that leave the morale phase: either hand
// the turn to the other player, or close the battle round. After the last
// round the game ends and the winner flag is set from scores.
func (m *Machine) advanceTurn() []state.Diff {
	g := m.game()
	diffs := []state.Diff{}
	// Per-turn unit flags reset for the player whose turn just ended.
	for _, u := range m.unitsOf(g.Meta.ActivePlayer) {
		for _, key := range []string{"moved", "shot", "charged", "fought", "morale_tested"} {
			if _, ok := u.Flags[key]; ok {
				diffs = append(diffs, state.Remove(state.PathUnitFlag(u.ID, key)))
			}
		}
	}
	diffs = append(diffs, state.Remove(state.PathMetaFlag("scored_this_turn")))
	if g.Meta.ActivePlayer == 1 {
		diffs = append(diffs,
			state.Set(state.PathMetaActivePlayer(), 2),
			state.Set(state.PathMetaPhase(), state.PhaseCommand),
		)
		return diffs
	}
	if g.Meta.BattleRound >= lastBattleRound {
		winner := 0
		p1, p2 := g.PlayerByID(1), g.PlayerByID(2)
		if p1.Score > p2.Score {
			winner = 1
		} else if p2.Score > p1.Score {
			winner = 2
		}
		diffs = append(diffs,
			state.Set(state.PathMetaFlag("game_over"), true),
			state.Set(state.PathMetaFlag("winner"), winner),
		)
		return diffs
	}
	diffs = append(diffs,
		state.Set(state.PathMetaActivePlayer(), 1),
		state.Set(state.PathMetaBattleRound(), g.Meta.BattleRound+1),
		state.Set(state.PathMetaPhase(), state.PhaseCommand),
	)
	return diffs
}
