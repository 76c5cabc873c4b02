package roster

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pefman/w40k-tabletop/internal/state"
)

// Board units per tabletop inch; datasheet Move/Range are in inches.
const unitsPerInch = 40.0

// Datasheet is one unit entry as loaded from the data API or the built-in
// fallback list, before it becomes part of a match document.
type Datasheet struct {
	Name       string         `json:"name"`
	Faction    string         `json:"faction,omitempty"`
	ModelCount int            `json:"model_count"`
	MoveInches float64        `json:"move"`
	Toughness  int            `json:"toughness"`
	Save       int            `json:"save"`
	Invuln     int            `json:"invuln,omitempty"`
	Wounds     int            `json:"wounds"` // per model
	Leadership int            `json:"leadership"`
	OC         int            `json:"oc"`
	FNP        int            `json:"fnp,omitempty"`
	BaseMM     float64        `json:"base_mm"`
	Keywords   []string       `json:"keywords,omitempty"`
	Weapons    []state.Weapon `json:"weapons,omitempty"`
	Points     int            `json:"points,omitempty"`
}

// BuildUnit instantiates the datasheet as a match unit in reserve. Model
// positions stay nil until the deployment phase places them.
func (d Datasheet) BuildUnit(id string, owner int) *state.Unit {
	count := d.ModelCount
	if count < 1 {
		count = 1
	}
	models := make([]*state.Model, 0, count)
	for i := 0; i < count; i++ {
		models = append(models, &state.Model{
			ID:            fmt.Sprintf("%s-m%d", id, i),
			Alive:         true,
			Base:          state.BaseShape{Kind: "circle", Width: d.BaseMM},
			CurrentWounds: d.Wounds,
			MaxWounds:     d.Wounds,
		})
	}
	weapons := make([]state.Weapon, len(d.Weapons))
	copy(weapons, d.Weapons)
	for i := range weapons {
		weapons[i].Range *= unitsPerInch
	}
	return &state.Unit{
		ID:     id,
		Owner:  owner,
		Status: state.StatusReserve,
		Models: models,
		Meta: state.UnitMeta{
			Name:       d.Name,
			Keywords:   append([]string(nil), d.Keywords...),
			Move:       d.MoveInches * unitsPerInch,
			Toughness:  d.Toughness,
			Save:       d.Save,
			Invuln:     d.Invuln,
			FNP:        d.FNP,
			Leadership: d.Leadership,
			OC:         d.OC,
			Points:     d.Points,
			Weapons:    weapons,
		},
		Flags: map[string]any{},
	}
}

// ---- datasheet field parsing ----

func mustAtoi(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	s2 := strings.TrimSuffix(s, "+")
	if n, err := strconv.Atoi(s2); err == nil {
		return n
	}
	// first integer in the string, tolerating a leading minus
	num := ""
	for i, r := range s {
		if (r == '-' && i == 0) || (r >= '0' && r <= '9') {
			num += string(r)
		} else if num != "" {
			break
		}
	}
	if n, err := strconv.Atoi(num); err == nil {
		return n
	}
	return def
}

func parseSave(s string) int { // "3+" -> 3
	n := mustAtoi(s, 4)
	if n < 2 {
		n = 2
	}
	if n > 6 {
		n = 6
	}
	return n
}

func parseAP(s string) int { // "-1" -> -1; normalized negative
	ap := mustAtoi(s, 0)
	if ap > 0 {
		return -ap
	}
	return ap
}

func parseMove(s string) float64 { // `6"` -> 6
	return float64(mustAtoi(s, 6))
}

// deriveWeaponRules maps a raw weapon row into a match profile, scanning
// type and description text for ability keywords.
func deriveWeaponRules(name, rng, typ, desc, attacks, skill, strength, ap, damage string) state.Weapon {
	w := state.Weapon{
		Name:     name,
		Type:     "ranged",
		Range:    float64(mustAtoi(rng, 0)),
		Attacks:  strings.TrimSpace(attacks),
		Skill:    parseSave(skill),
		Strength: mustAtoi(strength, 4),
		AP:       parseAP(ap),
		Damage:   strings.TrimSpace(damage),
	}
	if strings.Contains(strings.ToLower(typ), "melee") || strings.EqualFold(rng, "melee") {
		w.Type = "melee"
		w.Range = 0
	}
	blob := strings.ToLower(typ + " " + desc)
	if strings.Contains(blob, "lethal hits") {
		w.LethalHits = true
	}
	if strings.Contains(blob, "twin-linked") {
		w.TwinLinked = true
	}
	if strings.Contains(blob, "torrent") {
		w.Torrent = true
	}
	if strings.Contains(blob, "devastating wounds") {
		w.DevastatingWounds = true
	}
	if idx := strings.Index(blob, "sustained hits"); idx >= 0 {
		n := mustAtoi(blob[idx+len("sustained hits"):], 0)
		if n <= 0 {
			n = 1
		}
		if n > 6 {
			n = 6
		}
		w.SustainedHits = n
	}
	if idx := strings.Index(blob, "anti-"); idx >= 0 {
		sub := blob[idx+len("anti-"):]
		tag := sub
		if p := strings.IndexAny(tag, " (\n\t,"); p >= 0 {
			tag = strings.TrimSpace(tag[:p])
		}
		n := 0
		if p := strings.Index(sub, "("); p >= 0 {
			n = mustAtoi(sub[p+1:], 0)
		} else {
			n = mustAtoi(sub, 0)
		}
		if tag != "" && n >= 2 && n <= 6 {
			w.AntiTag = tag
			w.AntiValue = n
		}
	}
	return w
}

// parseFNP scans ability text for "Feel No Pain X+" / "FNP X+".
func parseFNP(texts []string) int {
	fnp := 0
	for _, t := range texts {
		tl := strings.ToLower(t)
		if !strings.Contains(tl, "feel no pain") && !strings.Contains(tl, "fnp") {
			continue
		}
		for i := 0; i+1 < len(tl); i++ {
			if tl[i] >= '2' && tl[i] <= '6' && tl[i+1] == '+' {
				n := int(tl[i] - '0')
				if fnp == 0 || n < fnp {
					fnp = n
				}
			}
		}
	}
	return fnp
}
