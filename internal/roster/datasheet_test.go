package roster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pefman/w40k-tabletop/internal/state"
)

func TestParsers(t *testing.T) {
	assert.Equal(t, 3, parseSave("3+"))
	assert.Equal(t, 4, parseSave(""))
	assert.Equal(t, 2, parseSave("1+"), "saves clamp at 2+")

	assert.Equal(t, -1, parseAP("-1"))
	assert.Equal(t, -2, parseAP("2"), "positive AP input normalizes to negative")
	assert.Equal(t, 0, parseAP(""))

	assert.Equal(t, 6.0, parseMove(`6"`))
	assert.Equal(t, 5.0, parseMove("5"))

	assert.Equal(t, 10, mustAtoi("10", 0))
	assert.Equal(t, 4, mustAtoi("4+", 0))
	assert.Equal(t, 7, mustAtoi("", 7))
	assert.Equal(t, 3, mustAtoi("3 models", 0))
}

func TestDeriveWeaponRules(t *testing.T) {
	w := deriveWeaponRules("Storm bolter", "24", "Rapid Fire 2", "twin-linked", "2", "3+", "4", "0", "1")
	assert.Equal(t, "ranged", w.Type)
	assert.Equal(t, 24.0, w.Range)
	assert.True(t, w.TwinLinked)

	w = deriveWeaponRules("Chainsword", "Melee", "Melee", "", "3", "3+", "4", "-1", "1")
	assert.Equal(t, "melee", w.Type)
	assert.Zero(t, w.Range)
	assert.Equal(t, -1, w.AP)

	w = deriveWeaponRules("Plasma", "24", "Assault", "Lethal Hits. Devastating Wounds.", "1", "3+", "7", "-2", "2")
	assert.True(t, w.LethalHits)
	assert.True(t, w.DevastatingWounds)

	w = deriveWeaponRules("Flamer", "12", "Assault", "Torrent. Sustained Hits 2.", "d6", "N/A", "4", "0", "1")
	assert.True(t, w.Torrent)
	assert.Equal(t, 2, w.SustainedHits)

	w = deriveWeaponRules("Melta", "12", "Assault", "Anti-vehicle 4+", "1", "3+", "9", "-4", "d6")
	assert.Equal(t, "vehicle", w.AntiTag)
	assert.Equal(t, 4, w.AntiValue)
}

func TestParseFNP(t *testing.T) {
	assert.Equal(t, 5, parseFNP([]string{"Disgustingly Resilient: this model has a Feel No Pain 5+."}))
	assert.Equal(t, 0, parseFNP([]string{"Deep Strike", "Scouts 6\""}))
	// The best (lowest) value wins when several abilities grant one.
	assert.Equal(t, 4, parseFNP([]string{"FNP 6+", "feel no pain 4+"}))
}

func TestBuildUnit(t *testing.T) {
	d, ok := DatasheetByName("Intercessor Squad")
	require.True(t, ok)

	u := d.BuildUnit("U1-1", 1)
	assert.Equal(t, "U1-1", u.ID)
	assert.Equal(t, 1, u.Owner)
	assert.Equal(t, state.StatusReserve, u.Status)
	require.Len(t, u.Models, 5)
	for _, m := range u.Models {
		assert.True(t, m.Alive)
		assert.Nil(t, m.Position, "models stay off-table until deployment")
		assert.Equal(t, 2, m.CurrentWounds)
	}

	// Inches convert to board units on build.
	assert.Equal(t, 240.0, u.Meta.Move)
	require.NotEmpty(t, u.Meta.Weapons)
	assert.Equal(t, 960.0, u.Meta.Weapons[0].Range)
	// The datasheet itself is untouched.
	assert.Equal(t, 24.0, d.Weapons[0].Range)
}

func TestFallbackDatasheets(t *testing.T) {
	sheets := FallbackDatasheets()
	require.NotEmpty(t, sheets)
	for _, d := range sheets {
		assert.NotEmpty(t, d.Name)
		assert.Positive(t, d.ModelCount)
		assert.Positive(t, d.Wounds)
		assert.NotEmpty(t, d.Weapons, "%s needs at least one profile", d.Name)
	}

	_, ok := DatasheetByName("No Such Squad")
	assert.False(t, ok)
}

func TestToSlug(t *testing.T) {
	assert.Equal(t, "space-marines", toSlug("Space Marines"))
	assert.Equal(t, "tau-empire", toSlug("T'au Empire"))
	assert.Equal(t, "emperors-children", toSlug("Emperor’s Children"))
}
