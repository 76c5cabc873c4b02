package engine

import (
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

var diceRe = regexp.MustCompile(`(?i)^\s*(\d+)?\s*d\s*(\d+)(\s*([+\-x*])\s*(\d+))?\s*$`)

// Roller is a deterministic dice source. It is seeded once per match and
// counts every die rolled, so a peer that restores (seed, counter) from a
// synchronized snapshot reproduces the exact same sequence.
type Roller struct {
	seed    int64
	counter uint64
	rng     *rand.Rand
}

func NewRoller(seed int64) *Roller {
	return &Roller{seed: seed, rng: rand.New(rand.NewSource(seed))}
}

// Restore rebuilds a roller at the given seed and counter by replaying
// the discarded rolls. Counters stay small (one per die in a match), so
// replay is cheap.
func Restore(seed int64, counter uint64) *Roller {
	r := NewRoller(seed)
	for i := uint64(0); i < counter; i++ {
		r.rng.Intn(6)
	}
	r.counter = counter
	return r
}

// State reports the seed and roll counter for snapshotting.
func (r *Roller) State() (seed int64, counter uint64) {
	return r.seed, r.counter
}

func (r *Roller) D6() int {
	r.counter++
	return 1 + r.rng.Intn(6)
}

// RollD6 rolls n dice and returns each result.
func (r *Roller) RollD6(n int) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.D6())
	}
	return out
}

// roll draws from the d6 stream regardless of sides, so Restore replay
// stays aligned. A d3 is a halved d6, per tabletop convention.
func (r *Roller) roll(sides int) int {
	v := r.D6()
	if sides == 3 {
		return (v + 1) / 2
	}
	return v
}

// RollExpr supports: N, NdM, NdM+K, NdM-K, NdM xK (multiply) / * K
func (r *Roller) RollExpr(expr string) int {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0
	}
	// raw int
	if n, err := strconv.Atoi(expr); err == nil {
		return n
	}
	m := diceRe.FindStringSubmatch(expr)
	if m == nil {
		return 0
	}
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	sides, _ := strconv.Atoi(m[2])
	total := 0
	for i := 0; i < count; i++ {
		total += r.roll(sides)
	}
	if m[3] != "" {
		op := m[4]
		k, _ := strconv.Atoi(m[5])
		switch op {
		case "+":
			total += k
		case "-":
			total -= k
		case "x", "*":
			total *= k
		}
	}
	if total < 0 {
		total = 0
	}
	return total
}

// MaxExpr returns the highest value RollExpr could produce, used for
// Devastating Wounds style "maximum damage" conversions.
func MaxExpr(expr string) int {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0
	}
	if n, err := strconv.Atoi(expr); err == nil {
		return n
	}
	m := diceRe.FindStringSubmatch(expr)
	if m == nil {
		return 0
	}
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	sides, _ := strconv.Atoi(m[2])
	total := count * sides
	if m[3] != "" {
		k, _ := strconv.Atoi(m[5])
		switch m[4] {
		case "+":
			total += k
		case "-":
			total -= k
		case "x", "*":
			total *= k
		}
	}
	if total < 0 {
		total = 0
	}
	return total
}

// FNPResult captures a Feel No Pain sequence: one die per point of damage.
type FNPResult struct {
	Rolls     []int `json:"rolls"`
	Prevented int   `json:"prevented"`
	Remaining int   `json:"remaining"`
}

// RollFeelNoPain rolls one d6 per point of damage; each roll at or above
// fnp prevents one point. fnp outside 2..6 means no save and nothing is rolled.
func (r *Roller) RollFeelNoPain(damage, fnp int) FNPResult {
	if damage <= 0 {
		return FNPResult{Remaining: 0}
	}
	if fnp < 2 || fnp > 6 {
		return FNPResult{Remaining: damage}
	}
	res := FNPResult{Rolls: make([]int, 0, damage)}
	for i := 0; i < damage; i++ {
		roll := r.D6()
		res.Rolls = append(res.Rolls, roll)
		if roll >= fnp {
			res.Prevented++
		}
	}
	res.Remaining = damage - res.Prevented
	return res
}
