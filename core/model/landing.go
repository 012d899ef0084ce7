package model

// Landing is a roadside storage and truck-loading site shared by one or
// more blocks.
type Landing struct {
	ID string `json:"id"`
	// CapacityPerSlot caps the volume all blocks of the landing together
	// may move through it in a single slot.
	CapacityPerSlot float64 `json:"capacity_per_slot"`
}
