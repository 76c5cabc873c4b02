package combat

import (
	"github.com/pefman/w40k-tabletop/internal/engine"
	"github.com/pefman/w40k-tabletop/internal/state"
)

// SaveProfile is the defensive side of a save resolution: the target
// unit's armor and invulnerable thresholds plus whether cover applies.
type SaveProfile struct {
	Armor  int  `json:"armor"`            // 2-6; 7 means none
	Invuln int  `json:"invuln,omitempty"` // 0 if none
	Cover  bool `json:"cover,omitempty"`
	FNP    int  `json:"fnp,omitempty"` // 0 if none
}

// SaveResolutionContext describes one batch of wounds awaiting saves.
// It is stored in meta flags between BEGIN_SAVE_SEQUENCE and APPLY_SAVES
// so the exchange survives as plain document state.
type SaveResolutionContext struct {
	TargetUnitID string      `json:"target_unit_id"`
	WoundsToSave int         `json:"wounds_to_save"`
	Save         SaveProfile `json:"save"`
	AP           int         `json:"ap"`
	Damage       string      `json:"damage"` // dice expr or int
	Mortals      int         `json:"mortals,omitempty"`
	AttackerID   string      `json:"attacker_id,omitempty"`
	Weapon       string      `json:"weapon,omitempty"`
}

// AllocationRecord is the audit trail of one wound through the pipeline.
type AllocationRecord struct {
	WoundIndex int               `json:"wound_index"`
	ModelID    string            `json:"model_id"`
	Roll       int               `json:"roll"`
	Needed     int               `json:"needed"` // 7 means no save possible
	Saved      bool              `json:"saved"`
	Damage     int               `json:"damage"` // post-FNP damage applied
	Destroyed  bool              `json:"destroyed"`
	FNP        *engine.FNPResult `json:"fnp,omitempty"`
}

// Summary totals one resolved batch.
type Summary struct {
	WoundsSaved     int `json:"wounds_saved"`
	WoundsFailed    int `json:"wounds_failed"`
	TotalDamage     int `json:"total_damage"`
	ModelsDestroyed int `json:"models_destroyed"`
	Overkill        int `json:"overkill"` // damage beyond the dying model's remaining wounds
}

// Result is the pipeline output: per-wound records, totals, and the diffs
// expressing every mutation. Diffs are not yet applied.
type Result struct {
	Records []AllocationRecord `json:"records"`
	Summary Summary            `json:"summary"`
	Diffs   []state.Diff       `json:"diffs"`
}

// AttackResult is the front half of a damage event: attack count, hit and
// wound rolls, before saves are taken.
type AttackResult struct {
	Weapon     string `json:"weapon"`
	Attacks    int    `json:"attacks"`
	HitTarget  int    `json:"hit_target"`
	HitRolls   []int  `json:"hit_rolls"`
	Hits       int    `json:"hits"`
	WoundTN    int    `json:"wound_target"`
	WoundRolls []int  `json:"wound_rolls"`
	Wounds     int    `json:"wounds"`
	AutoWounds int    `json:"auto_wounds,omitempty"` // from Lethal Hits
	Mortals    int    `json:"mortals,omitempty"`     // from Devastating Wounds
}
