package roster

import "github.com/pefman/w40k-tabletop/internal/state"

// Built-in datasheets used when the data API is unreachable so a match
// can always start.

func fallbackWeapons() []state.Weapon {
	return []state.Weapon{
		{Name: "Bolt rifle", Type: "ranged", Range: 24, Attacks: "2", Skill: 3, Strength: 4, AP: -1, Damage: "1"},
		{Name: "Close combat weapon", Type: "melee", Attacks: "2", Skill: 3, Strength: 4, AP: 0, Damage: "1"},
	}
}

// FallbackDatasheets covers two symmetric starter rosters.
func FallbackDatasheets() []Datasheet {
	return []Datasheet{
		{
			Name:       "Intercessor Squad",
			Faction:    "Fallback",
			ModelCount: 5,
			MoveInches: 6,
			Toughness:  4,
			Save:       3,
			Wounds:     2,
			Leadership: 6,
			OC:         2,
			BaseMM:     32,
			Keywords:   []string{"Infantry", "Imperium"},
			Weapons:    fallbackWeapons(),
			Points:     80,
		},
		{
			Name:       "Terminator Squad",
			Faction:    "Fallback",
			ModelCount: 5,
			MoveInches: 5,
			Toughness:  5,
			Save:       2,
			Invuln:     4,
			Wounds:     3,
			Leadership: 6,
			OC:         1,
			BaseMM:     40,
			Keywords:   []string{"Infantry", "Terminator", "Imperium"},
			Weapons: []state.Weapon{
				{Name: "Storm bolter", Type: "ranged", Range: 24, Attacks: "2", Skill: 3, Strength: 4, AP: 0, Damage: "1", TwinLinked: true},
				{Name: "Power fist", Type: "melee", Attacks: "3", Skill: 3, Strength: 8, AP: -2, Damage: "2"},
			},
			Points: 180,
		},
		{
			Name:       "Boyz",
			Faction:    "Fallback",
			ModelCount: 10,
			MoveInches: 6,
			Toughness:  5,
			Save:       6,
			Wounds:     1,
			Leadership: 7,
			OC:         2,
			BaseMM:     32,
			Keywords:   []string{"Infantry", "Mob", "Orks"},
			Weapons: []state.Weapon{
				{Name: "Slugga", Type: "ranged", Range: 12, Attacks: "1", Skill: 5, Strength: 4, AP: 0, Damage: "1"},
				{Name: "Choppa", Type: "melee", Attacks: "3", Skill: 3, Strength: 4, AP: -1, Damage: "1"},
			},
			Points: 85,
		},
		{
			Name:       "Plague Marines",
			Faction:    "Fallback",
			ModelCount: 5,
			MoveInches: 5,
			Toughness:  5,
			Save:       3,
			Wounds:     2,
			Leadership: 6,
			OC:         2,
			FNP:        5,
			BaseMM:     32,
			Keywords:   []string{"Infantry", "Chaos"},
			Weapons: []state.Weapon{
				{Name: "Plague boltgun", Type: "ranged", Range: 24, Attacks: "2", Skill: 3, Strength: 4, AP: -1, Damage: "1", LethalHits: true},
				{Name: "Plague knives", Type: "melee", Attacks: "3", Skill: 3, Strength: 4, AP: 0, Damage: "1", LethalHits: true},
			},
			Points: 90,
		},
	}
}

// DatasheetByName looks a fallback sheet up by name.
func DatasheetByName(name string) (Datasheet, bool) {
	for _, d := range FallbackDatasheets() {
		if d.Name == name {
			return d, true
		}
	}
	return Datasheet{}, false
}
