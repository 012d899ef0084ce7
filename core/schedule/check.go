package schedule

import (
	"fmt"

	"github.com/harvestplan/harvestplan/core/model"
)

const workEps = 1e-9

// ViolationKind classifies a scheduling rule breach.
type ViolationKind int

const (
	// KindWindow flags an assignment outside the block's harvest window.
	KindWindow ViolationKind = iota
	// KindAvailability flags work in a slot the machine has off.
	KindAvailability
	// KindIncompatible flags a machine on a block it cannot work.
	KindIncompatible
	// KindMultiplicity flags too many same-role machines on a block in
	// one slot.
	KindMultiplicity
	// KindAbandon flags a machine switching blocks before the current
	// block's role work is exhausted and its window still open.
	KindAbandon
	// KindEarlyStart flags a role beginning a block before its
	// head-start buffer is staged.
	KindEarlyStart
)

func (k ViolationKind) String() string {
	switch k {
	case KindWindow:
		return "assignment outside block window"
	case KindAvailability:
		return "machine unavailable in slot"
	case KindIncompatible:
		return "machine cannot work block"
	case KindMultiplicity:
		return "role multiplicity exceeded"
	case KindAbandon:
		return "block abandoned before work exhausted"
	case KindEarlyStart:
		return "role started before head-start buffer staged"
	default:
		return "unknown violation"
	}
}

// Sequencing reports whether the violation belongs to the sequencing family
// the evaluator counts, as opposed to the structural family imports reject.
func (k ViolationKind) Sequencing() bool {
	return k == KindAbandon || k == KindEarlyStart
}

// Violation pinpoints one rule breach in a schedule.
type Violation struct {
	Kind    ViolationKind
	Machine int
	Block   int
	Slot    int
}

// InvariantError is the fatal form of a Violation, carrying resolved IDs
// for diagnostics.
type InvariantError struct {
	Machine string
	Block   string
	Slot    int
	Reason  string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("schedule invariant: %s (machine %s, block %s, slot %d)",
		e.Reason, e.Machine, e.Block, e.Slot)
}

// Scanner walks a schedule slot by slot and reports every violation it
// finds. One scanner is reusable across scans; it is not safe for
// concurrent use.
type Scanner struct {
	p *model.Problem

	cum     []float64 // gross volume per role and block through the previous slot
	counts  []int     // per-slot machine count per block and role
	started []bool    // role has begun on block
	cur     []int32   // current block per machine

	pendM []int32
	pendB []int32
}

// NewScanner returns a scanner for instances of p.
func NewScanner(p *model.Problem) *Scanner {
	nb, nr := p.NumBlocks(), p.NumRoles()
	return &Scanner{
		p:       p,
		cum:     make([]float64, nr*nb),
		counts:  make([]int, nb*nr),
		started: make([]bool, nb*nr),
		cur:     make([]int32, p.NumMachines()),
	}
}

// Scan walks st in slot order and calls emit for every violation. The walk
// is deterministic: slots ascending, machines ascending within a slot.
func (sc *Scanner) Scan(st *State, emit func(Violation)) {
	p := sc.p
	nb, nr := p.NumBlocks(), p.NumRoles()
	for i := range sc.cum {
		sc.cum[i] = 0
	}
	for i := range sc.started {
		sc.started[i] = false
	}
	for m := range sc.cur {
		sc.cur[m] = Idle
	}
	slots := st.Slots()
	for s := 0; s < slots; s++ {
		for i := range sc.counts {
			sc.counts[i] = 0
		}
		sc.pendM = sc.pendM[:0]
		sc.pendB = sc.pendB[:0]
		for m := 0; m < p.NumMachines(); m++ {
			b := st.At(m, s)
			if b == Idle {
				continue
			}
			blk := &p.Blocks[b]
			if !blk.Window(s) {
				emit(Violation{Kind: KindWindow, Machine: m, Block: int(b), Slot: s})
			}
			if !p.Available(m, s) {
				emit(Violation{Kind: KindAvailability, Machine: m, Block: int(b), Slot: s})
			}
			role := p.RoleOf(m)
			if !p.CanWork(m, int(b)) {
				emit(Violation{Kind: KindIncompatible, Machine: m, Block: int(b), Slot: s})
				continue
			}
			if prev := sc.cur[m]; prev != Idle && prev != b {
				pb := &p.Blocks[prev]
				exhausted := sc.cum[role*nb+int(prev)] >= pb.WorkRequired-workEps
				if !exhausted && pb.LatestFinish >= s {
					emit(Violation{Kind: KindAbandon, Machine: m, Block: int(prev), Slot: s})
				}
			}
			sc.cur[m] = b
			pos := p.RolePosition(int(b), role)
			if pos > 0 && !sc.started[int(b)*nr+role] {
				sc.started[int(b)*nr+role] = true
				up := p.Pipeline(int(b))[pos-1]
				staged := sc.cum[up*nb+int(b)]
				if staged > blk.WorkRequired {
					staged = blk.WorkRequired
				}
				if staged < p.StartBuffer(int(b), role)-workEps {
					emit(Violation{Kind: KindEarlyStart, Machine: m, Block: int(b), Slot: s})
				}
			} else if pos == 0 {
				sc.started[int(b)*nr+role] = true
			}
			sc.counts[int(b)*nr+role]++
			if sc.counts[int(b)*nr+role] == p.MultiplicityAt(int(b), role)+1 {
				emit(Violation{Kind: KindMultiplicity, Machine: m, Block: int(b), Slot: s})
			}
			sc.pendM = append(sc.pendM, int32(m))
			sc.pendB = append(sc.pendB, b)
		}
		// Contributions land after every cell of the slot is judged, so
		// same-slot production can never feed a same-slot start.
		for i, m := range sc.pendM {
			b := int(sc.pendB[i])
			role := p.RoleOf(int(m))
			sc.cum[role*nb+b] += p.Rate(int(m), b)
		}
	}
}

// Check validates every cell of st and returns an InvariantError for the
// first violation found, or nil for a clean schedule.
func Check(st *State) error {
	var first *Violation
	NewScanner(st.Problem()).Scan(st, func(v Violation) {
		if first == nil {
			vv := v
			first = &vv
		}
	})
	if first == nil {
		return nil
	}
	p := st.Problem()
	return &InvariantError{
		Machine: p.Machines[first.Machine].ID,
		Block:   p.Blocks[first.Block].ID,
		Slot:    first.Slot,
		Reason:  first.Kind.String(),
	}
}
