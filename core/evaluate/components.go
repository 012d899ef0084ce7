package evaluate

// Components breaks a schedule's value into the quantities planners reason
// about. Volumes are cubic metres; every block's work splits exactly into
// delivered, staged and leftover volume.
type Components struct {
	// DeliveredVolume reached a landing in whole loader batches within
	// landing capacity.
	DeliveredVolume float64 `json:"delivered_volume"`
	// StagedVolume was felled but sits in the pipeline or at the landing
	// at horizon end.
	StagedVolume float64 `json:"staged_volume"`
	// LeftoverVolume is still standing at horizon end.
	LeftoverVolume float64 `json:"leftover_volume"`
	// MobilisationCost prices machine relocations beyond their free walk
	// threshold.
	MobilisationCost float64 `json:"mobilisation_cost"`
	// LandingOverflow accumulates volume that was ready for release but
	// blocked by landing capacity, per slot it stayed blocked.
	LandingOverflow float64 `json:"landing_overflow"`
	// SequencingViolations counts head-start and finish-the-block
	// breaches. Repaired schedules always score zero here.
	SequencingViolations int `json:"sequencing_violations"`
}

// Objective collapses the components into the scalar the search minimises.
func (c Components) Objective(w Weights) float64 {
	return w.Leftover*c.LeftoverVolume +
		w.Staged*c.StagedVolume +
		w.Mobilisation*c.MobilisationCost +
		w.Overflow*c.LandingOverflow -
		w.Production*c.DeliveredVolume
}
