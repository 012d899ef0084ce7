package model

// HarvestSystem is an ordered production pipeline of roles. The first role
// consumes standing timber, every later role consumes the staged output of
// the role before it, and the final role's output reaches the landing.
type HarvestSystem struct {
	ID string `json:"id"`
	// Roles lists the pipeline stages in production order.
	Roles []Role `json:"roles"`
	// Multiplicity caps how many machines of a role may work the same
	// block in one slot. Roles absent from the map default to 1.
	Multiplicity map[Role]int `json:"multiplicity,omitempty"`
	// BufferShifts is the head start, in machine-shifts of upstream
	// production, that must be staged before a role may begin a block.
	BufferShifts map[Role]float64 `json:"buffer_shifts,omitempty"`
	// LoaderBatch is the volume quantum of the final role. Production
	// reaches the landing only in whole batches; zero disables batching.
	LoaderBatch float64 `json:"loader_batch"`
}

// RoleIndex returns the pipeline position of r, or -1 when r is not part of
// the system.
func (s HarvestSystem) RoleIndex(r Role) int {
	for i, role := range s.Roles {
		if role == r {
			return i
		}
	}
	return -1
}

// MultiplicityOf returns the per-slot machine cap for role r.
func (s HarvestSystem) MultiplicityOf(r Role) int {
	if m, ok := s.Multiplicity[r]; ok {
		return m
	}
	return 1
}

// BufferOf returns the head-start buffer for role r in machine-shifts.
func (s HarvestSystem) BufferOf(r Role) float64 {
	return s.BufferShifts[r]
}
