package operator

import (
	"fmt"
	"math/rand"

	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/schedule"
)

// Config weighs the neighbourhood operators against each other and sizes
// the compound ones. Zero weight disables an operator.
type Config struct {
	Reassign float64 `json:"reassign"`
	Swap     float64 `json:"swap"`
	Relocate float64 `json:"relocate"`
	Batch    float64 `json:"batch"`
	// RelocateSpan caps how many slots a block relocation may shift.
	RelocateSpan int `json:"relocate_span"`
	// BatchSize is the number of reassignments a batch move composes.
	BatchSize int `json:"batch_size"`
}

// SetDefaults applies the standard operator mix.
func (c *Config) SetDefaults() {
	if c.Reassign == 0 && c.Swap == 0 && c.Relocate == 0 && c.Batch == 0 {
		c.Reassign = 4
		c.Swap = 3
		c.Relocate = 2
		c.Batch = 1
	}
	if c.RelocateSpan == 0 {
		c.RelocateSpan = 3
	}
	if c.BatchSize == 0 {
		c.BatchSize = 3
	}
}

func (c Config) Validate() error {
	for _, w := range []float64{c.Reassign, c.Swap, c.Relocate, c.Batch} {
		if w < 0 {
			return fmt.Errorf("operator: weights must not be negative")
		}
	}
	if c.Reassign+c.Swap+c.Relocate+c.Batch <= 0 {
		return fmt.Errorf("operator: at least one operator needs positive weight")
	}
	if c.RelocateSpan < 1 {
		return fmt.Errorf("operator: relocate_span must be at least 1")
	}
	if c.BatchSize < 2 {
		return fmt.Errorf("operator: batch_size must be at least 2")
	}
	return nil
}

type opEntry struct {
	name   string
	weight float64
	gen    func(st *schedule.State) *Move
}

// Pool samples feasible moves by roulette over the configured operator
// weights. Each search worker owns one pool with its own rng.
type Pool struct {
	p     *model.Problem
	rng   *rand.Rand
	cfg   Config
	ops   []opEntry
	total float64
}

// NewPool validates cfg and wires the operator mix.
func NewPool(p *model.Problem, cfg Config, rng *rand.Rand) (*Pool, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	pl := &Pool{p: p, rng: rng, cfg: cfg}
	add := func(name string, w float64, gen func(*schedule.State) *Move) {
		if w > 0 {
			pl.ops = append(pl.ops, opEntry{name: name, weight: w, gen: gen})
			pl.total += w
		}
	}
	add("reassign", cfg.Reassign, pl.reassign)
	add("swap", cfg.Swap, pl.swap)
	add("relocate", cfg.Relocate, pl.relocate)
	add("batch", cfg.Batch, pl.batch)
	return pl, nil
}

// Sample draws one feasible move, or nil when the neighbourhood around the
// current state is too tight to hit one in a bounded number of tries.
func (pl *Pool) Sample(st *schedule.State) *Move {
	for try := 0; try < 32; try++ {
		r := pl.rng.Float64() * pl.total
		for _, op := range pl.ops {
			if r -= op.weight; r >= 0 {
				continue
			}
			if mv := op.gen(st); mv != nil {
				return mv
			}
			break
		}
	}
	return nil
}

// roleRoom counts how many more machines of role may join block b in slot
// s, ignoring machine skip.
func (pl *Pool) roleRoom(st *schedule.State, b, role, s, skip int) int {
	n := 0
	for m := 0; m < pl.p.NumMachines(); m++ {
		if m != skip && pl.p.RoleOf(m) == role && st.At(m, s) == int32(b) {
			n++
		}
	}
	return pl.p.MultiplicityAt(b, role) - n
}

func (pl *Pool) reassign(st *schedule.State) *Move {
	p := pl.p
	lo, hi := st.LockBefore(), st.WindowEnd()
	if hi <= lo {
		return nil
	}
	m := pl.rng.Intn(p.NumMachines())
	s := lo + pl.rng.Intn(hi-lo)
	if !p.Available(m, s) {
		return nil
	}
	cur := st.At(m, s)
	tgt := schedule.Idle
	if pl.rng.Intn(4) > 0 {
		b := pl.rng.Intn(p.NumBlocks())
		if !p.Blocks[b].Window(s) || !p.CanWork(m, b) {
			return nil
		}
		if pl.roleRoom(st, b, p.RoleOf(m), s, m) <= 0 {
			return nil
		}
		tgt = int32(b)
	}
	if tgt == cur {
		return nil
	}
	return newMove("reassign",
		[]Cell{{Machine: m, Slot: s, Block: tgt}},
		[]Cell{{Machine: m, Slot: s, Block: cur}})
}

func (pl *Pool) swap(st *schedule.State) *Move {
	p := pl.p
	lo, hi := st.LockBefore(), st.WindowEnd()
	if hi <= lo {
		return nil
	}
	m1 := pl.rng.Intn(p.NumMachines())
	role := p.RoleOf(m1)
	m2 := -1
	off := pl.rng.Intn(p.NumMachines())
	for i := 0; i < p.NumMachines(); i++ {
		c := (off + i) % p.NumMachines()
		if c != m1 && p.RoleOf(c) == role {
			m2 = c
			break
		}
	}
	if m2 < 0 {
		return nil
	}
	s1 := lo + pl.rng.Intn(hi-lo)
	s2 := lo + pl.rng.Intn(hi-lo)
	if !p.Available(m1, s1) || !p.Available(m2, s2) {
		return nil
	}
	b1, b2 := st.At(m1, s1), st.At(m2, s2)
	if b1 == b2 {
		return nil
	}
	// Only the cells (m1,s1) and (m2,s2) change; the other machine's cell
	// at the landing slot counts unless both cells share the slot.
	room := func(b int32, s, writer int) bool {
		n := 0
		for m := 0; m < p.NumMachines(); m++ {
			if m == writer || (s1 == s2 && (m == m1 || m == m2)) {
				continue
			}
			if p.RoleOf(m) == role && st.At(m, s) == b {
				n++
			}
		}
		return n < p.MultiplicityAt(int(b), role)
	}
	if b2 != schedule.Idle {
		if !p.Blocks[b2].Window(s1) || !p.CanWork(m1, int(b2)) || !room(b2, s1, m1) {
			return nil
		}
	}
	if b1 != schedule.Idle {
		if !p.Blocks[b1].Window(s2) || !p.CanWork(m2, int(b1)) || !room(b1, s2, m2) {
			return nil
		}
	}
	return newMove("swap",
		[]Cell{{Machine: m1, Slot: s1, Block: b2}, {Machine: m2, Slot: s2, Block: b1}},
		[]Cell{{Machine: m1, Slot: s1, Block: b1}, {Machine: m2, Slot: s2, Block: b2}})
}

// relocate moves a block as a unit: half the draws hand one machine's slots
// on the block to another machine of the same role, the other half shift
// every cell of the block in time.
func (pl *Pool) relocate(st *schedule.State) *Move {
	if pl.rng.Intn(2) == 0 {
		return pl.transfer(st)
	}
	return pl.shift(st)
}

// transfer rewrites every editable slot machine from spends on a block onto
// a different machine of the same role. Counts per slot are conserved, so
// multiplicity needs no recheck.
func (pl *Pool) transfer(st *schedule.State) *Move {
	p := pl.p
	lo, hi := st.LockBefore(), st.WindowEnd()
	if hi <= lo {
		return nil
	}
	b := pl.rng.Intn(p.NumBlocks())
	var carriers []int
	for m := 0; m < p.NumMachines(); m++ {
		for s := lo; s < hi; s++ {
			if st.At(m, s) == int32(b) {
				carriers = append(carriers, m)
				break
			}
		}
	}
	if len(carriers) == 0 {
		return nil
	}
	from := carriers[pl.rng.Intn(len(carriers))]
	role := p.RoleOf(from)
	to := -1
	off := pl.rng.Intn(p.NumMachines())
	for i := 0; i < p.NumMachines(); i++ {
		c := (off + i) % p.NumMachines()
		if c != from && p.RoleOf(c) == role && p.CanWork(c, b) {
			to = c
			break
		}
	}
	if to < 0 {
		return nil
	}
	var fwd, inv []Cell
	for s := lo; s < hi; s++ {
		if st.At(from, s) != int32(b) {
			continue
		}
		if !p.Available(to, s) || st.At(to, s) != schedule.Idle {
			return nil
		}
		fwd = append(fwd,
			Cell{Machine: from, Slot: s, Block: schedule.Idle},
			Cell{Machine: to, Slot: s, Block: int32(b)})
		inv = append(inv,
			Cell{Machine: to, Slot: s, Block: schedule.Idle},
			Cell{Machine: from, Slot: s, Block: int32(b)})
	}
	if len(fwd) == 0 {
		return nil
	}
	return newMove("relocate", fwd, inv)
}

// shift slides every cell of a block by ±d slots on the machines that
// already carry it.
func (pl *Pool) shift(st *schedule.State) *Move {
	p := pl.p
	lo, hi := st.LockBefore(), st.WindowEnd()
	if hi <= lo {
		return nil
	}
	b := pl.rng.Intn(p.NumBlocks())
	d := 1 + pl.rng.Intn(pl.cfg.RelocateSpan)
	if pl.rng.Intn(2) == 0 {
		d = -d
	}
	var src []Cell
	for m := 0; m < p.NumMachines(); m++ {
		for s := lo; s < hi; s++ {
			if st.At(m, s) == int32(b) {
				src = append(src, Cell{Machine: m, Slot: s, Block: int32(b)})
			}
		}
	}
	if len(src) == 0 {
		return nil
	}
	blk := &p.Blocks[b]
	for _, c := range src {
		t := c.Slot + d
		if t < lo || t >= hi || !blk.Window(t) || !p.Available(c.Machine, t) {
			return nil
		}
		if tc := st.At(c.Machine, t); tc != schedule.Idle && tc != int32(b) {
			return nil
		}
	}
	fwd := make([]Cell, 0, 2*len(src))
	inv := make([]Cell, 0, 2*len(src))
	for _, c := range src {
		fwd = append(fwd, Cell{Machine: c.Machine, Slot: c.Slot, Block: schedule.Idle})
		inv = append(inv, Cell{Machine: c.Machine, Slot: c.Slot + d, Block: schedule.Idle})
	}
	for _, c := range src {
		fwd = append(fwd, Cell{Machine: c.Machine, Slot: c.Slot + d, Block: int32(b)})
		inv = append(inv, Cell{Machine: c.Machine, Slot: c.Slot, Block: int32(b)})
	}
	return newMove("relocate", fwd, inv)
}

func (pl *Pool) batch(st *schedule.State) *Move {
	var fwd, inv []Cell
	used := make(map[[2]int]bool, pl.cfg.BatchSize)
	// Sub-moves are sampled against the unchanged state, so block slots
	// they pile onto must be re-counted or the composition could exceed
	// a role's multiplicity.
	pending := make(map[[3]int]int)
	for tries := 0; tries < pl.cfg.BatchSize*4 && len(fwd) < pl.cfg.BatchSize; tries++ {
		sub := pl.reassign(st)
		if sub == nil {
			continue
		}
		c := sub.Cells[0]
		k := [2]int{c.Machine, c.Slot}
		if used[k] {
			continue
		}
		if c.Block != schedule.Idle {
			role := pl.p.RoleOf(c.Machine)
			pk := [3]int{int(c.Block), c.Slot, role}
			if pl.roleRoom(st, int(c.Block), role, c.Slot, c.Machine)-pending[pk] <= 0 {
				continue
			}
			pending[pk]++
		}
		used[k] = true
		fwd = append(fwd, c)
		inv = append(inv, sub.inv[0])
	}
	if len(fwd) < 2 {
		return nil
	}
	return newMove("batch", fwd, inv)
}
