// Package operator builds feasibility-checked neighbourhood moves over
// schedule states. Every move knows its cells up front, so applying is a
// handful of arena writes and the state journal can roll it back.
package operator

import (
	"encoding/binary"
	"hash/fnv"

	"github.com/harvestplan/harvestplan/core/schedule"
)

// Cell is one arena write: assign Block to Machine in Slot.
type Cell struct {
	Machine int
	Slot    int
	Block   int32
}

// Move is a prepared neighbourhood step. Cells hold the writes to apply;
// the inverse cells record what they overwrite, so a move can be identified
// both ways for tabu bookkeeping.
type Move struct {
	Name  string
	Cells []Cell

	inv    []Cell
	key    uint64
	invKey uint64
}

func newMove(name string, fwd, inv []Cell) *Move {
	return &Move{
		Name:   name,
		Cells:  fwd,
		inv:    inv,
		key:    hashCells(name, fwd),
		invKey: hashCells(name, inv),
	}
}

// Apply writes the move's cells into st. Callers open a journal scope first
// so a rejected move can be rolled back.
func (mv *Move) Apply(st *schedule.State) {
	for _, c := range mv.Cells {
		st.Set(c.Machine, c.Slot, c.Block)
	}
}

// Key identifies the move for tabu bookkeeping.
func (mv *Move) Key() uint64 { return mv.key }

// InverseKey identifies the move that would undo this one.
func (mv *Move) InverseKey() uint64 { return mv.invKey }

func hashCells(name string, cells []Cell) uint64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	var buf [12]byte
	for _, c := range cells {
		binary.LittleEndian.PutUint32(buf[0:], uint32(c.Machine))
		binary.LittleEndian.PutUint32(buf[4:], uint32(c.Slot))
		binary.LittleEndian.PutUint32(buf[8:], uint32(c.Block))
		h.Write(buf[:])
	}
	return h.Sum64()
}
