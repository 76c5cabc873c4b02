package state

import (
	"fmt"
	"strconv"
)

// Path builders. Writers construct diff paths through these so a renamed
// field breaks at compile time instead of at apply time.

func PathMetaPhase() string        { return "meta.phase" }
func PathMetaActivePlayer() string { return "meta.active_player" }
func PathMetaBattleRound() string  { return "meta.battle_round" }
func PathMetaRNGCounter() string   { return "meta.rng.counter" }

func PathMetaFlag(key string) string { return "meta.flags." + key }

func PathPlayerCP(player int) string {
	return fmt.Sprintf("players.%d.command_points", player)
}

func PathPlayerScore(player int) string {
	return fmt.Sprintf("players.%d.score", player)
}

func PathUnitStatus(unitID string) string { return "units." + unitID + ".status" }

func PathUnitFlag(unitID, key string) string { return "units." + unitID + ".flags." + key }

func PathModelPosition(unitID string, idx int) string {
	return "units." + unitID + ".models." + strconv.Itoa(idx) + ".position"
}

func PathModelWounds(unitID string, idx int) string {
	return "units." + unitID + ".models." + strconv.Itoa(idx) + ".current_wounds"
}

func PathModelAlive(unitID string, idx int) string {
	return "units." + unitID + ".models." + strconv.Itoa(idx) + ".alive"
}

func PathObjectiveController(idx int) string {
	return "board.objectives." + strconv.Itoa(idx) + ".controller"
}
