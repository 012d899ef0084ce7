// Package bound computes a linear-programming relaxation of the delivery
// problem: how much volume could possibly reach the landings if machines
// split freely across blocks, ignoring windows, staging order and batch
// quanta. The result is a diagnostic upper bound the rolling orchestrator
// reports a gap against; it never constrains the search.
package bound

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/harvestplan/harvestplan/core/model"
)

// Delivered bounds the volume deliverable within the first `slots` shift
// slots. The relaxation keeps three resource families: machine time, block
// work per role, and landing throughput. Everything sequential — staging
// buffers, finish-the-block, batch release — is dropped, so any feasible
// schedule delivers at most this.
func Delivered(p *model.Problem, slots int) (float64, error) {
	if slots <= 0 {
		return 0, nil
	}
	if slots > p.Slots() {
		slots = p.Slots()
	}
	nm, nb := p.NumMachines(), p.NumBlocks()

	// Variables: x[m*nb+b] slot-fractions of machine m on block b,
	// d[b] delivered volume per block, and D the total delivered.
	nx := nm * nb
	nvar := nx + nb + 1
	dVar := func(b int) int { return nx + b }
	totVar := nx + nb

	type row struct {
		coef map[int]float64
		rhs  float64
	}
	var ineqs []row
	leq := func(coef map[int]float64, rhs float64) {
		ineqs = append(ineqs, row{coef: coef, rhs: rhs})
	}

	// Machine time: assigned slot-fractions within the horizon prefix.
	for m := 0; m < nm; m++ {
		avail := 0.0
		for s := 0; s < slots; s++ {
			if p.Available(m, s) {
				avail++
			}
		}
		coef := make(map[int]float64, nb)
		for b := 0; b < nb; b++ {
			if p.CanWork(m, b) {
				coef[m*nb+b] = 1
			}
		}
		leq(coef, avail)
	}

	// Role throughput per block caps work, and delivery cannot outrun
	// any single role.
	for b := 0; b < nb; b++ {
		for _, r := range p.Pipeline(b) {
			work := make(map[int]float64)
			flow := map[int]float64{dVar(b): 1}
			for m := 0; m < nm; m++ {
				if p.RoleOf(m) != r || !p.CanWork(m, b) {
					continue
				}
				work[m*nb+b] = p.Rate(m, b)
				flow[m*nb+b] = -p.Rate(m, b)
			}
			leq(work, p.Blocks[b].WorkRequired)
			leq(flow, 0)
		}
	}

	// Landing throughput over the prefix.
	for l := 0; l < p.NumLandings(); l++ {
		coef := make(map[int]float64)
		for _, b := range p.BlocksOfLanding(l) {
			coef[dVar(b)] = 1
		}
		leq(coef, p.Landings[l].CapacityPerSlot*float64(slots))
	}

	// Non-negativity, explicit because lp.Convert treats variables as free.
	for v := 0; v < nvar; v++ {
		leq(map[int]float64{v: -1}, 0)
	}

	g := mat.NewDense(len(ineqs), nvar, nil)
	h := make([]float64, len(ineqs))
	for i, r := range ineqs {
		for v, c := range r.coef {
			g.Set(i, v, c)
		}
		h[i] = r.rhs
	}

	// One equality ties the total to its parts: sum(d) - D = 0.
	a := mat.NewDense(1, nvar, nil)
	for b := 0; b < nb; b++ {
		a.Set(0, dVar(b), 1)
	}
	a.Set(0, totVar, -1)
	bEq := []float64{0}

	c := make([]float64, nvar)
	c[totVar] = -1

	cStd, aStd, bStd := lp.Convert(c, g, h, a, bEq)
	opt, _, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		return 0, fmt.Errorf("bound: simplex: %w", err)
	}
	return -opt, nil
}
