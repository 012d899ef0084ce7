package model

// Block is a contiguous harvest area scheduled as one unit.
type Block struct {
	ID string `json:"id"`
	// WorkRequired is the merchantable volume in cubic metres that every
	// role of the assigned system must put through the block.
	WorkRequired float64 `json:"work_required"`
	// EarliestStart and LatestFinish bound the slots the block may be
	// worked in, inclusive on both ends.
	EarliestStart int `json:"earliest_start"`
	LatestFinish  int `json:"latest_finish"`
	// LandingID names the landing that receives the block's production.
	LandingID string `json:"landing_id"`
	// SystemID names the harvest system the block is worked with.
	SystemID string `json:"system_id"`
	// Stand breaks the standing volume down by product class. The
	// evaluator ignores it; it is carried through to plan exports.
	Stand map[string]float64 `json:"stand,omitempty"`
	// BufferOverride replaces the system head-start buffer, in
	// machine-shifts, for the named roles on this block only.
	BufferOverride map[Role]float64 `json:"buffer_override,omitempty"`
}

// Window reports whether slot s lies inside the block's harvest window.
func (b Block) Window(s int) bool {
	return s >= b.EarliestStart && s <= b.LatestFinish
}
