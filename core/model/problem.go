package model

import (
	"fmt"
	"sort"
)

// ProblemInput bundles the raw pieces of a scheduling instance before
// cross-checking. Scenario loaders fill one of these and hand it to
// NewProblem.
type ProblemInput struct {
	Calendar  Calendar
	Blocks    []Block
	Machines  []Machine
	Systems   []HarvestSystem
	Landings  []Landing
	Distances map[string]map[string]float64
	Rates     RateProvider
}

// Problem is a fully resolved scheduling instance: horizon, block set, fleet
// and the rate and distance tables, cross-checked and indexed for dense
// access. Build one with NewProblem; afterwards it is immutable and safe for
// concurrent readers.
type Problem struct {
	Calendar Calendar
	Blocks   []Block
	Machines []Machine
	Systems  []HarvestSystem
	Landings []Landing

	blockIdx   map[string]int
	machineIdx map[string]int
	systemIdx  map[string]int
	landingIdx map[string]int

	roles   []Role
	roleIdx map[Role]int

	rates    []float64 // [machine*len(Blocks)+block], 0 when incompatible
	avail    []bool    // [machine*Slots()+slot]
	machRole []int     // role index per machine
	machStart []int    // start landing index per machine, -1 when unset

	blockSys     []int
	blockLanding []int
	landingBlocks [][]int // block indices per landing, ascending

	sysRoles [][]int // pipeline as role indices per system

	rolePos      []int     // [block*len(roles)+role] pipeline position, -1 when absent
	multiplicity []int     // [block*len(roles)+role] machine cap per slot
	startBuffer  []float64 // [block*len(roles)+role] staged volume needed before start

	dist [][]float64 // landing x landing metres
}

// NewProblem validates in and builds the dense indexes. It fails on the
// first inconsistency it finds so bad instances never reach the solver.
func NewProblem(in ProblemInput) (*Problem, error) {
	if err := in.Calendar.Validate(); err != nil {
		return nil, err
	}
	if len(in.Blocks) == 0 {
		return nil, fmt.Errorf("model: no blocks")
	}
	if len(in.Machines) == 0 {
		return nil, fmt.Errorf("model: no machines")
	}
	if len(in.Systems) == 0 {
		return nil, fmt.Errorf("model: no systems")
	}
	if len(in.Landings) == 0 {
		return nil, fmt.Errorf("model: no landings")
	}
	if in.Rates == nil {
		return nil, fmt.Errorf("model: no rate provider")
	}

	p := &Problem{
		Calendar: in.Calendar,
		Blocks:   append([]Block(nil), in.Blocks...),
		Machines: append([]Machine(nil), in.Machines...),
		Systems:  append([]HarvestSystem(nil), in.Systems...),
		Landings: append([]Landing(nil), in.Landings...),
	}
	slots := p.Calendar.Slots()

	p.systemIdx = make(map[string]int, len(p.Systems))
	p.roleIdx = make(map[Role]int)
	for i, s := range p.Systems {
		if s.ID == "" {
			return nil, fmt.Errorf("model: system %d has no id", i)
		}
		if _, dup := p.systemIdx[s.ID]; dup {
			return nil, fmt.Errorf("model: duplicate system %q", s.ID)
		}
		p.systemIdx[s.ID] = i
		if len(s.Roles) == 0 {
			return nil, fmt.Errorf("model: system %q has no roles", s.ID)
		}
		seen := make(map[Role]bool, len(s.Roles))
		for _, r := range s.Roles {
			if seen[r] {
				return nil, fmt.Errorf("model: system %q repeats role %q", s.ID, r)
			}
			seen[r] = true
			if _, ok := p.roleIdx[r]; !ok {
				p.roleIdx[r] = len(p.roles)
				p.roles = append(p.roles, r)
			}
		}
		if s.LoaderBatch < 0 {
			return nil, fmt.Errorf("model: system %q has negative loader batch", s.ID)
		}
		for r, m := range s.Multiplicity {
			if s.RoleIndex(r) < 0 {
				return nil, fmt.Errorf("model: system %q sets multiplicity for unknown role %q", s.ID, r)
			}
			if m < 1 {
				return nil, fmt.Errorf("model: system %q multiplicity for %q must be at least 1", s.ID, r)
			}
		}
		for r, b := range s.BufferShifts {
			if s.RoleIndex(r) < 0 {
				return nil, fmt.Errorf("model: system %q sets buffer for unknown role %q", s.ID, r)
			}
			if b < 0 {
				return nil, fmt.Errorf("model: system %q buffer for %q is negative", s.ID, r)
			}
			if s.RoleIndex(r) == 0 && b > 0 {
				return nil, fmt.Errorf("model: system %q buffers its first role %q", s.ID, r)
			}
		}
	}
	p.sysRoles = make([][]int, len(p.Systems))
	for i, s := range p.Systems {
		pipe := make([]int, len(s.Roles))
		for j, r := range s.Roles {
			pipe[j] = p.roleIdx[r]
		}
		p.sysRoles[i] = pipe
	}

	p.landingIdx = make(map[string]int, len(p.Landings))
	for i, l := range p.Landings {
		if l.ID == "" {
			return nil, fmt.Errorf("model: landing %d has no id", i)
		}
		if _, dup := p.landingIdx[l.ID]; dup {
			return nil, fmt.Errorf("model: duplicate landing %q", l.ID)
		}
		if l.CapacityPerSlot <= 0 {
			return nil, fmt.Errorf("model: landing %q needs a positive capacity per slot", l.ID)
		}
		p.landingIdx[l.ID] = i
	}

	p.machineIdx = make(map[string]int, len(p.Machines))
	p.machRole = make([]int, len(p.Machines))
	p.machStart = make([]int, len(p.Machines))
	p.avail = make([]bool, len(p.Machines)*slots)
	for i, m := range p.Machines {
		if m.ID == "" {
			return nil, fmt.Errorf("model: machine %d has no id", i)
		}
		if _, dup := p.machineIdx[m.ID]; dup {
			return nil, fmt.Errorf("model: duplicate machine %q", m.ID)
		}
		p.machineIdx[m.ID] = i
		if m.Role == "" {
			return nil, fmt.Errorf("model: machine %q has no role", m.ID)
		}
		ri, ok := p.roleIdx[m.Role]
		if !ok {
			// Role unused by every system; the machine can never be
			// assigned but the instance is still coherent.
			p.roleIdx[m.Role] = len(p.roles)
			p.roles = append(p.roles, m.Role)
			ri = p.roleIdx[m.Role]
		}
		p.machRole[i] = ri
		if m.WalkThresholdM < 0 || m.WalkCostPerM < 0 || m.SetupCost < 0 {
			return nil, fmt.Errorf("model: machine %q has negative mobilisation parameters", m.ID)
		}
		p.machStart[i] = -1
		if m.StartLandingID != "" {
			li, ok := p.landingIdx[m.StartLandingID]
			if !ok {
				return nil, fmt.Errorf("model: machine %q starts at unknown landing %q", m.ID, m.StartLandingID)
			}
			p.machStart[i] = li
		}
		for s := 0; s < slots; s++ {
			p.avail[i*slots+s] = true
		}
		for _, off := range m.OffSlots {
			if off < 0 || off >= slots {
				return nil, fmt.Errorf("model: machine %q off slot %d outside horizon", m.ID, off)
			}
			p.avail[i*slots+off] = false
		}
	}

	nr := len(p.roles)
	p.blockIdx = make(map[string]int, len(p.Blocks))
	p.blockSys = make([]int, len(p.Blocks))
	p.blockLanding = make([]int, len(p.Blocks))
	p.landingBlocks = make([][]int, len(p.Landings))
	p.rolePos = make([]int, len(p.Blocks)*nr)
	p.multiplicity = make([]int, len(p.Blocks)*nr)
	for b, blk := range p.Blocks {
		if blk.ID == "" {
			return nil, fmt.Errorf("model: block %d has no id", b)
		}
		if _, dup := p.blockIdx[blk.ID]; dup {
			return nil, fmt.Errorf("model: duplicate block %q", blk.ID)
		}
		p.blockIdx[blk.ID] = b
		if blk.WorkRequired < 0 {
			return nil, fmt.Errorf("model: block %q has negative work %g", blk.ID, blk.WorkRequired)
		}
		if blk.EarliestStart < 0 || blk.LatestFinish >= slots || blk.EarliestStart > blk.LatestFinish {
			return nil, fmt.Errorf("model: block %q window [%d,%d] outside horizon of %d slots",
				blk.ID, blk.EarliestStart, blk.LatestFinish, slots)
		}
		si, ok := p.systemIdx[blk.SystemID]
		if !ok {
			return nil, fmt.Errorf("model: block %q uses unknown system %q", blk.ID, blk.SystemID)
		}
		p.blockSys[b] = si
		li, ok := p.landingIdx[blk.LandingID]
		if !ok {
			return nil, fmt.Errorf("model: block %q uses unknown landing %q", blk.ID, blk.LandingID)
		}
		p.blockLanding[b] = li
		p.landingBlocks[li] = append(p.landingBlocks[li], b)
		sys := p.Systems[si]
		for r := 0; r < nr; r++ {
			p.rolePos[b*nr+r] = -1
		}
		for pos, role := range sys.Roles {
			ri := p.roleIdx[role]
			p.rolePos[b*nr+ri] = pos
			p.multiplicity[b*nr+ri] = sys.MultiplicityOf(role)
		}
		for r := range blk.BufferOverride {
			if sys.RoleIndex(r) < 0 {
				return nil, fmt.Errorf("model: block %q overrides buffer for role %q outside system %q",
					blk.ID, r, sys.ID)
			}
			if sys.RoleIndex(r) == 0 {
				return nil, fmt.Errorf("model: block %q buffers the first role %q", blk.ID, r)
			}
			if blk.BufferOverride[r] < 0 {
				return nil, fmt.Errorf("model: block %q has a negative buffer override for %q", blk.ID, r)
			}
		}
	}
	for _, blocks := range p.landingBlocks {
		sort.Ints(blocks)
	}

	p.rates = make([]float64, len(p.Machines)*len(p.Blocks))
	for m, mach := range p.Machines {
		for b, blk := range p.Blocks {
			r := in.Rates.Rate(mach.ID, blk.ID)
			if r < 0 {
				return nil, fmt.Errorf("model: negative rate for machine %q on block %q", mach.ID, blk.ID)
			}
			if p.rolePos[b*nr+p.machRole[m]] < 0 {
				r = 0 // role not in the block's pipeline
			}
			p.rates[m*len(p.Blocks)+b] = r
		}
	}
	for b, blk := range p.Blocks {
		if blk.WorkRequired == 0 {
			continue // trivially complete, never needs a machine
		}
		sys := p.Systems[p.blockSys[b]]
		for _, role := range sys.Roles {
			ri := p.roleIdx[role]
			capable := false
			for m := range p.Machines {
				if p.machRole[m] == ri && p.rates[m*len(p.Blocks)+b] > 0 {
					capable = true
					break
				}
			}
			if !capable {
				return nil, fmt.Errorf("model: block %q has no machine able to fill role %q", blk.ID, role)
			}
		}
	}

	if err := p.buildDistances(in.Distances); err != nil {
		return nil, err
	}
	p.buildBuffers()
	return p, nil
}

func (p *Problem) buildDistances(in map[string]map[string]float64) error {
	n := len(p.Landings)
	p.dist = make([][]float64, n)
	for i := range p.dist {
		p.dist[i] = make([]float64, n)
		for j := range p.dist[i] {
			if i != j {
				p.dist[i][j] = -1
			}
		}
	}
	for fromID, row := range in {
		fi, ok := p.landingIdx[fromID]
		if !ok {
			return fmt.Errorf("model: distance row for unknown landing %q", fromID)
		}
		for toID, d := range row {
			ti, ok := p.landingIdx[toID]
			if !ok {
				return fmt.Errorf("model: distance from %q to unknown landing %q", fromID, toID)
			}
			if d < 0 {
				return fmt.Errorf("model: negative distance from %q to %q", fromID, toID)
			}
			p.dist[fi][ti] = d
		}
	}
	// Mirror one-sided entries, then demand a complete matrix.
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if p.dist[i][j] < 0 && p.dist[j][i] >= 0 {
				p.dist[i][j] = p.dist[j][i]
			}
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if p.dist[i][j] < 0 {
				return fmt.Errorf("model: missing distance between landings %q and %q",
					p.Landings[i].ID, p.Landings[j].ID)
			}
		}
	}
	return nil
}

// buildBuffers converts head-start buffers from machine-shifts into staged
// volume per block and role. One machine-shift equals the mean positive rate
// of the upstream role's machines on that block.
func (p *Problem) buildBuffers() {
	nr := len(p.roles)
	nb := len(p.Blocks)
	p.startBuffer = make([]float64, nb*nr)
	for b := range p.Blocks {
		sys := p.Systems[p.blockSys[b]]
		pipe := p.sysRoles[p.blockSys[b]]
		for pos := 1; pos < len(pipe); pos++ {
			role := sys.Roles[pos]
			shifts := sys.BufferOf(role)
			if ov, ok := p.Blocks[b].BufferOverride[role]; ok {
				shifts = ov
			}
			if shifts == 0 {
				continue
			}
			up := pipe[pos-1]
			sum, n := 0.0, 0
			for m := range p.Machines {
				if p.machRole[m] != up {
					continue
				}
				if r := p.rates[m*nb+b]; r > 0 {
					sum += r
					n++
				}
			}
			if n > 0 {
				p.startBuffer[b*nr+pipe[pos]] = shifts * sum / float64(n)
			}
		}
	}
}

// NumBlocks returns the number of blocks.
func (p *Problem) NumBlocks() int { return len(p.Blocks) }

// NumMachines returns the fleet size.
func (p *Problem) NumMachines() int { return len(p.Machines) }

// NumLandings returns the number of landings.
func (p *Problem) NumLandings() int { return len(p.Landings) }

// NumRoles returns the number of distinct roles across all systems.
func (p *Problem) NumRoles() int { return len(p.roles) }

// Slots returns the horizon length in shift slots.
func (p *Problem) Slots() int { return p.Calendar.Slots() }

// RoleName returns the role at global index r.
func (p *Problem) RoleName(r int) Role { return p.roles[r] }

// RoleOf returns the global role index of machine m.
func (p *Problem) RoleOf(m int) int { return p.machRole[m] }

// BlockByID resolves a block ID to its index.
func (p *Problem) BlockByID(id string) (int, bool) {
	b, ok := p.blockIdx[id]
	return b, ok
}

// MachineByID resolves a machine ID to its index.
func (p *Problem) MachineByID(id string) (int, bool) {
	m, ok := p.machineIdx[id]
	return m, ok
}

// LandingByID resolves a landing ID to its index.
func (p *Problem) LandingByID(id string) (int, bool) {
	l, ok := p.landingIdx[id]
	return l, ok
}

// Rate returns the per-slot rate of machine m on block b. Zero means the
// pair is incompatible.
func (p *Problem) Rate(m, b int) float64 { return p.rates[m*len(p.Blocks)+b] }

// Available reports whether machine m can work slot s.
func (p *Problem) Available(m, s int) bool { return p.avail[m*p.Calendar.Slots()+s] }

// CanWork reports whether machine m may ever be assigned block b.
func (p *Problem) CanWork(m, b int) bool { return p.Rate(m, b) > 0 }

// SystemOf returns the system index of block b.
func (p *Problem) SystemOf(b int) int { return p.blockSys[b] }

// LandingOf returns the landing index of block b.
func (p *Problem) LandingOf(b int) int { return p.blockLanding[b] }

// BlocksOfLanding returns the ascending block indices served by landing l.
// The returned slice is shared; callers must not modify it.
func (p *Problem) BlocksOfLanding(l int) []int { return p.landingBlocks[l] }

// Pipeline returns block b's system pipeline as global role indices. The
// returned slice is shared; callers must not modify it.
func (p *Problem) Pipeline(b int) []int { return p.sysRoles[p.blockSys[b]] }

// RolePosition returns the pipeline position of role r on block b, or -1
// when the role is not part of the block's system.
func (p *Problem) RolePosition(b, r int) int { return p.rolePos[b*len(p.roles)+r] }

// MultiplicityAt returns how many machines of role r may work block b in
// one slot.
func (p *Problem) MultiplicityAt(b, r int) int { return p.multiplicity[b*len(p.roles)+r] }

// StartBuffer returns the staged upstream volume role r needs before it may
// begin block b. Zero for first roles and unbuffered roles.
func (p *Problem) StartBuffer(b, r int) float64 { return p.startBuffer[b*len(p.roles)+r] }

// DistanceM returns the walking distance in metres between two landings.
func (p *Problem) DistanceM(from, to int) float64 { return p.dist[from][to] }

// StartLanding returns the landing index machine m starts at, or -1 when
// the machine has no fixed start.
func (p *Problem) StartLanding(m int) int { return p.machStart[m] }
