package state

import (
	"strconv"
	"strings"
)

// Phase names in their fixed order within a battle round. Deployment only
// occurs in round 1.
const (
	PhaseDeployment = "deployment"
	PhaseCommand    = "command"
	PhaseMovement   = "movement"
	PhaseShooting   = "shooting"
	PhaseCharge     = "charge"
	PhaseFight      = "fight"
	PhaseScoring    = "scoring"
	PhaseMorale     = "morale"
)

// PhaseOrder is the cyclical phase sequence from the second round on.
var PhaseOrder = []string{
	PhaseCommand, PhaseMovement, PhaseShooting, PhaseCharge,
	PhaseFight, PhaseScoring, PhaseMorale,
}

// Unit lifecycle status. Destroyed units keep their models (alive=false)
// for post-battle scoring and replay.
const (
	StatusReserve   = "reserve"
	StatusDeployed  = "deployed"
	StatusDestroyed = "destroyed"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// BaseShape describes a model's base footprint in millimeters.
// Kind is "circle" (Width = diameter) or "oval" (Width x Length).
type BaseShape struct {
	Kind   string  `json:"kind"`
	Width  float64 `json:"width"`
	Length float64 `json:"length,omitempty"`
}

type Model struct {
	ID            string    `json:"id"`
	Alive         bool      `json:"alive"`
	Base          BaseShape `json:"base"`
	Position      *Position `json:"position"` // nil until placed
	CurrentWounds int       `json:"current_wounds"`
	MaxWounds     int       `json:"max_wounds"`
	Height        float64   `json:"height,omitempty"` // optional LOS override
}

// Weapon is a single profile on a unit's datasheet. Attacks and Damage are
// dice expressions ("4D6", "D3+3") or plain integers.
type Weapon struct {
	Name              string  `json:"name"`
	Type              string  `json:"type"` // "ranged" or "melee"
	Range             float64 `json:"range,omitempty"`
	Attacks           string  `json:"attacks"`
	Skill             int     `json:"skill"` // BS/WS threshold, 2-6
	Strength          int     `json:"strength"`
	AP                int     `json:"ap"` // stored negative, e.g. -1
	Damage            string  `json:"damage"`
	LethalHits        bool    `json:"lethal_hits,omitempty"`
	TwinLinked        bool    `json:"twin_linked,omitempty"`
	Torrent           bool    `json:"torrent,omitempty"`
	DevastatingWounds bool    `json:"devastating_wounds,omitempty"`
	SustainedHits     int     `json:"sustained_hits,omitempty"`
	AntiTag           string  `json:"anti_tag,omitempty"`
	AntiValue         int     `json:"anti_value,omitempty"`
}

// UnitMeta is the datasheet side of a unit: name, keywords, stats, weapons.
type UnitMeta struct {
	Name       string   `json:"name"`
	Keywords   []string `json:"keywords,omitempty"`
	Move       float64  `json:"move"`
	Toughness  int      `json:"toughness"`
	Save       int      `json:"save"`             // 2-6; 7 means none
	Invuln     int      `json:"invuln,omitempty"` // 0 if none
	FNP        int      `json:"fnp,omitempty"`    // 0 if none
	Leadership int      `json:"leadership"`
	OC         int      `json:"oc"` // objective control per model
	Points     int      `json:"points,omitempty"`
	Weapons    []Weapon `json:"weapons,omitempty"`
}

type Unit struct {
	ID           string         `json:"id"`
	Owner        int            `json:"owner"` // 1 or 2
	Status       string         `json:"status"`
	Models       []*Model       `json:"models"`
	Meta         UnitMeta       `json:"meta"`
	Flags        map[string]any `json:"flags,omitempty"` // free-form (transport ref, battle_shocked, moved, shot, charged...)
	TransportCap int            `json:"transport_cap,omitempty"`
}

type Player struct {
	ID            int `json:"id"`
	CommandPoints int `json:"command_points"`
	Score         int `json:"score"`
}

type Objective struct {
	ID         string   `json:"id"`
	Position   Position `json:"position"`
	Radius     float64  `json:"radius"`
	Controller int      `json:"controller"` // 0 = uncontrolled
}

// DeployZone is an axis-aligned deployment rectangle for one player.
type DeployZone struct {
	Owner int     `json:"owner"`
	MinX  float64 `json:"min_x"`
	MinY  float64 `json:"min_y"`
	MaxX  float64 `json:"max_x"`
	MaxY  float64 `json:"max_y"`
}

type Wall struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// TerrainPiece is an axis-aligned footprint that grants cover to models
// inside it.
type TerrainPiece struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind,omitempty"` // "ruins", "forest", ...
	MinX   float64 `json:"min_x"`
	MinY   float64 `json:"min_y"`
	MaxX   float64 `json:"max_x"`
	MaxY   float64 `json:"max_y"`
	Height float64 `json:"height,omitempty"`
}

type Board struct {
	Width      float64        `json:"width"`
	Height     float64        `json:"height"`
	Zones      []DeployZone   `json:"zones,omitempty"`
	Objectives []*Objective   `json:"objectives,omitempty"`
	Terrain    []TerrainPiece `json:"terrain,omitempty"`
	Walls      []Wall         `json:"walls,omitempty"`
}

// RNGState travels inside the synchronized document so replays and the
// peer reproduce identical dice from applied diffs.
type RNGState struct {
	Seed    int64  `json:"seed"`
	Counter uint64 `json:"counter"`
}

type Meta struct {
	Phase        string         `json:"phase"`
	ActivePlayer int            `json:"active_player"`
	BattleRound  int            `json:"battle_round"`
	Flags        map[string]any `json:"flags,omitempty"`
	RNG          RNGState       `json:"rng"`
}

// GameState is the one authoritative document per match.
type GameState struct {
	Players map[string]*Player `json:"players"` // keyed "1", "2"
	Units   map[string]*Unit   `json:"units"`
	Board   *Board             `json:"board"`
	Meta    Meta               `json:"meta"`
}

func NewGameState(seed int64) *GameState {
	return &GameState{
		Players: map[string]*Player{
			"1": {ID: 1},
			"2": {ID: 2},
		},
		Units: map[string]*Unit{},
		Board: &Board{Width: 1760, Height: 1200},
		Meta: Meta{
			Phase:        PhaseDeployment,
			ActivePlayer: 1,
			BattleRound:  1,
			Flags:        map[string]any{},
			RNG:          RNGState{Seed: seed},
		},
	}
}

func (g *GameState) PlayerByID(id int) *Player {
	return g.Players[strconv.Itoa(id)]
}

// ---- unit helpers ----

// AliveModels returns the models still in play, in datasheet order.
func (u *Unit) AliveModels() []*Model {
	out := make([]*Model, 0, len(u.Models))
	for _, m := range u.Models {
		if m.Alive {
			out = append(out, m)
		}
	}
	return out
}

func (u *Unit) ModelByID(id string) (*Model, int) {
	for i, m := range u.Models {
		if m.ID == id {
			return m, i
		}
	}
	return nil, -1
}

// StartingStrength is the unit's model count at army load; models are
// never removed on death so the list length is authoritative.
func (u *Unit) StartingStrength() int { return len(u.Models) }

// BelowHalfStrength reports whether the unit must take a battle-shock
// test: under half its starting models, or for a single-model unit under
// half its starting wounds.
func (u *Unit) BelowHalfStrength() bool {
	if len(u.Models) == 0 {
		return false
	}
	if len(u.Models) == 1 {
		m := u.Models[0]
		return m.Alive && m.CurrentWounds*2 <= m.MaxWounds
	}
	return len(u.AliveModels())*2 <= len(u.Models)
}

// Deployed reports whether every alive model has a position.
func (u *Unit) Deployed() bool {
	if u.Status != StatusDeployed {
		return false
	}
	for _, m := range u.Models {
		if m.Alive && m.Position == nil {
			return false
		}
	}
	return true
}

func (u *Unit) HasKeyword(kw string) bool {
	for _, k := range u.Meta.Keywords {
		if strings.EqualFold(k, kw) {
			return true
		}
	}
	return false
}

func (u *Unit) FlagBool(key string) bool {
	if u.Flags == nil {
		return false
	}
	v, ok := u.Flags[key]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}
