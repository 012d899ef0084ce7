package model

// RateProvider resolves the productive rate of a machine on a block, in
// cubic metres per shift slot. Differences in shift length between machines
// are folded into the rate. A rate of zero means the machine cannot work
// the block at all.
type RateProvider interface {
	Rate(machineID, blockID string) float64
}

// TableRates is a RateProvider backed by an explicit lookup table, the form
// scenario files use.
type TableRates struct {
	// Rates maps machine ID to block ID to rate. Missing pairs fall back
	// to Default.
	Rates   map[string]map[string]float64 `json:"rates"`
	Default float64                       `json:"default"`
}

func (t TableRates) Rate(machineID, blockID string) float64 {
	if byBlock, ok := t.Rates[machineID]; ok {
		if r, ok := byBlock[blockID]; ok {
			return r
		}
	}
	return t.Default
}
