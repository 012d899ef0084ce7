package model

// Role names a production stage within a harvest system.
type Role string

// Roles used by the built-in scenarios. A problem may declare any role names
// as long as its systems and machines agree on them.
const (
	RoleFell    Role = "fell"
	RoleExtract Role = "extract"
	RoleProcess Role = "process"
	RoleLoad    Role = "load"
)

// Machine is a single piece of harvesting equipment filling one role.
type Machine struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
	// OffSlots lists slots the machine cannot work, typically maintenance
	// windows or roster gaps. Every other slot is available.
	OffSlots []int `json:"off_slots,omitempty"`
	// WalkThresholdM is the relocation distance in metres under which a
	// move between landings costs nothing.
	WalkThresholdM float64 `json:"walk_threshold_m"`
	// WalkCostPerM is charged per metre beyond the threshold.
	WalkCostPerM float64 `json:"walk_cost_per_m"`
	// SetupCost is a fixed charge added to every relocation beyond the
	// threshold.
	SetupCost float64 `json:"setup_cost"`
	// StartLandingID anchors the machine's first relocation. Empty means
	// the machine starts at whichever landing its first block uses.
	StartLandingID string `json:"start_landing_id,omitempty"`
}
