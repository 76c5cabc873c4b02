package combat

import (
	"strings"

	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// ResolveAttack rolls the front half of a damage event: number of attacks,
// hit rolls and wound rolls, honoring the weapon abilities carried on the
// profile (Torrent, Sustained Hits, Lethal Hits, Twin-linked, Devastating
// Wounds, Anti-X). The surviving wounds feed a SaveResolutionContext.
func (r *Resolver) ResolveAttack(attacker, target *state.Unit, w state.Weapon) AttackResult {
	res := AttackResult{Weapon: w.Name}

	attacks := r.dice.RollExpr(w.Attacks)
	if attacks < 1 {
		attacks = 1
	}
	// Multi-model units fire once per alive model with the profile.
	if n := len(attacker.AliveModels()); n > 1 {
		attacks *= n
	}
	res.Attacks = attacks

	hitNeed := w.Skill
	if hitNeed < 2 {
		hitNeed = 2
	}
	if hitNeed > 6 {
		hitNeed = 6
	}
	res.HitTarget = hitNeed

	hits := 0
	critAutoWounds := 0
	if w.Torrent {
		hits = attacks
		for i := 0; i < attacks; i++ {
			res.HitRolls = append(res.HitRolls, 6)
		}
	} else {
		for i := 0; i < attacks; i++ {
			roll := r.dice.D6()
			res.HitRolls = append(res.HitRolls, roll)
			if roll >= hitNeed && roll != 1 {
				hits++
				if w.LethalHits && roll == 6 {
					critAutoWounds++
				}
				if w.SustainedHits > 0 && roll == 6 {
					hits += w.SustainedHits
				}
			}
		}
	}
	res.Hits = hits

	woundTN := WoundTarget(w.Strength, target.Meta.Toughness)
	// Anti-X overrides the wound threshold when the defender carries the
	// matching keyword.
	if w.AntiValue >= 2 && w.AntiValue < woundTN && hasAntiMatch(target, w.AntiTag) {
		woundTN = w.AntiValue
	}
	res.WoundTN = woundTN

	wounds := 0
	attempts := hits
	if critAutoWounds > 0 {
		// Lethal Hits convert without rolling.
		wounds += critAutoWounds
		attempts -= critAutoWounds
		res.AutoWounds = critAutoWounds
	}
	for i := 0; i < attempts; i++ {
		roll := r.dice.D6()
		pass := roll >= woundTN && roll != 1
		if !pass && w.TwinLinked {
			roll = r.dice.D6()
			pass = roll >= woundTN && roll != 1
		}
		res.WoundRolls = append(res.WoundRolls, roll)
		if !pass {
			continue
		}
		if w.DevastatingWounds && roll == 6 {
			// Critical wounds convert to mortal damage points that bypass saves.
			d := engine.MaxExpr(w.Damage)
			if d < 1 {
				d = 1
			}
			res.Mortals += d
		} else {
			wounds++
		}
	}
	res.Wounds = wounds
	return res
}

func hasAntiMatch(u *state.Unit, tag string) bool {
	if tag == "" {
		return false
	}
	for _, k := range u.Meta.Keywords {
		if strings.Contains(strings.ToLower(k), strings.ToLower(tag)) {
			return true
		}
	}
	return false
}
