package evaluate

import (
	"math"
	"math/rand"
	"testing"

	"github.com/harvestplan/harvestplan/core/model"
	"github.com/harvestplan/harvestplan/core/schedule"
)

func evalProblem(t *testing.T) *model.Problem {
	t.Helper()
	p, err := model.NewProblem(model.ProblemInput{
		Calendar: model.Calendar{Days: 14, ShiftsPerDay: 2},
		Systems: []model.HarvestSystem{{
			ID:           "ground",
			Roles:        []model.Role{model.RoleFell, model.RoleExtract, model.RoleLoad},
			BufferShifts: map[model.Role]float64{model.RoleExtract: 1},
			LoaderBatch:  25,
		}},
		Landings: []model.Landing{
			{ID: "L1", CapacityPerSlot: 100},
			{ID: "L2", CapacityPerSlot: 60},
		},
		Blocks: []model.Block{
			{ID: "B1", WorkRequired: 120, EarliestStart: 0, LatestFinish: 27, LandingID: "L1", SystemID: "ground"},
			{ID: "B2", WorkRequired: 80, EarliestStart: 4, LatestFinish: 27, LandingID: "L2", SystemID: "ground"},
		},
		Machines: []model.Machine{
			{ID: "F1", Role: model.RoleFell, WalkThresholdM: 500, WalkCostPerM: 2, SetupCost: 150},
			{ID: "F2", Role: model.RoleFell, OffSlots: []int{3}, WalkThresholdM: 500, WalkCostPerM: 2, SetupCost: 150},
			{ID: "X1", Role: model.RoleExtract, WalkThresholdM: 800, WalkCostPerM: 1.5, SetupCost: 100},
			{ID: "X2", Role: model.RoleExtract, WalkThresholdM: 800, WalkCostPerM: 1.5, SetupCost: 100},
			{ID: "D1", Role: model.RoleLoad, WalkThresholdM: 1000, WalkCostPerM: 1, SetupCost: 80, StartLandingID: "L1"},
		},
		Distances: map[string]map[string]float64{"L1": {"L2": 1200}},
		Rates: model.TableRates{Rates: map[string]map[string]float64{
			"F1": {"B1": 20, "B2": 18},
			"F2": {"B1": 16, "B2": 14},
			"X1": {"B1": 22, "B2": 0},
			"X2": {"B1": 0, "B2": 22},
			"D1": {"B1": 30, "B2": 30},
		}},
	})
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	return p
}

// singleRole builds a one-stage instance where the felling output itself is
// released, which makes batch and capacity arithmetic easy to pin down.
func singleRole(t *testing.T, work, rate, capacity, batch float64, slots int) *model.Problem {
	t.Helper()
	p, err := model.NewProblem(model.ProblemInput{
		Calendar: model.Calendar{Days: slots, ShiftsPerDay: 1},
		Systems: []model.HarvestSystem{{
			ID:          "direct",
			Roles:       []model.Role{model.RoleFell},
			LoaderBatch: batch,
		}},
		Landings: []model.Landing{{ID: "L1", CapacityPerSlot: capacity}},
		Blocks: []model.Block{{
			ID: "B1", WorkRequired: work,
			EarliestStart: 0, LatestFinish: slots - 1,
			LandingID: "L1", SystemID: "direct",
		}},
		Machines:  []model.Machine{{ID: "M1", Role: model.RoleFell}},
		Distances: nil,
		Rates:     model.TableRates{Default: rate},
	})
	if err != nil {
		t.Fatalf("NewProblem: %v", err)
	}
	return p
}

func TestScoreEmptySchedule(t *testing.T) {
	p := evalProblem(t)
	e := New(p, DefaultWeights())
	obj, c := e.Score(schedule.NewState(p))
	if c.DeliveredVolume != 0 || c.StagedVolume != 0 {
		t.Fatalf("empty schedule delivered %g staged %g", c.DeliveredVolume, c.StagedVolume)
	}
	if c.LeftoverVolume != 200 {
		t.Fatalf("leftover = %g, want 200", c.LeftoverVolume)
	}
	want := DefaultWeights().Leftover * 200
	if math.Abs(obj-want) > 1e-9 {
		t.Fatalf("objective = %g, want %g", obj, want)
	}
}

func TestZeroWorkBlockNeedsNothing(t *testing.T) {
	p := singleRole(t, 0, 30, 100, 0, 2)
	e := New(p, DefaultWeights())
	obj, c := e.Score(schedule.NewState(p))
	if c.LeftoverVolume != 0 {
		t.Fatalf("zero-work block counted as leftover: %g", c.LeftoverVolume)
	}
	if obj != 0 {
		t.Fatalf("empty schedule on a done block scored %g, want 0", obj)
	}
	st := schedule.NewGreedy(p)
	if got := st.At(0, 0); got != schedule.Idle {
		t.Fatalf("greedy assigned slot 0 to block %d on a done block", got)
	}
}

func TestScoreVolumePartition(t *testing.T) {
	p := evalProblem(t)
	e := New(p, DefaultWeights())
	st := schedule.NewGreedy(p)
	_, c := e.Score(st)
	total := c.DeliveredVolume + c.StagedVolume + c.LeftoverVolume
	if math.Abs(total-200) > 1e-6 {
		t.Fatalf("volume partition broken: %g+%g+%g = %g, want 200",
			c.DeliveredVolume, c.StagedVolume, c.LeftoverVolume, total)
	}
	if c.SequencingViolations != 0 {
		t.Fatalf("greedy seed has %d sequencing violations", c.SequencingViolations)
	}
	if c.DeliveredVolume <= 0 {
		t.Fatalf("generous horizon should deliver volume, got %g", c.DeliveredVolume)
	}
}

func TestBatchRelease(t *testing.T) {
	p := singleRole(t, 100, 30, 100, 25, 6)
	st := schedule.NewGreedy(p)
	e := New(p, DefaultWeights())
	_, c := e.Score(st)
	// 30 per slot accrues; whole 25-batches release as they fill, and the
	// final partial slot tops work out to exactly 100.
	if c.DeliveredVolume != 100 {
		t.Fatalf("delivered = %g, want 100", c.DeliveredVolume)
	}
	if c.LeftoverVolume != 0 || c.StagedVolume != 0 {
		t.Fatalf("leftover %g staged %g, want 0 0", c.LeftoverVolume, c.StagedVolume)
	}
}

func TestBatchHoldsPartialVolume(t *testing.T) {
	// One slot of work at rate 30 with batch 25 releases one batch and
	// stages the remainder.
	p := singleRole(t, 30, 30, 100, 25, 1)
	st := schedule.NewGreedy(p)
	e := New(p, DefaultWeights())
	_, c := e.Score(st)
	if c.DeliveredVolume != 25 {
		t.Fatalf("delivered = %g, want 25", c.DeliveredVolume)
	}
	if math.Abs(c.StagedVolume-5) > 1e-9 {
		t.Fatalf("staged = %g, want 5", c.StagedVolume)
	}
}

func TestLandingOverflowPressure(t *testing.T) {
	// Capacity 20 against 30 produced per slot, unbatched: every slot
	// wants more release than the landing can take.
	p := singleRole(t, 90, 30, 20, 0, 3)
	st := schedule.NewGreedy(p)
	e := New(p, DefaultWeights())
	_, c := e.Score(st)
	if c.LandingOverflow <= 0 {
		t.Fatalf("expected overflow pressure, got %g", c.LandingOverflow)
	}
	if c.DeliveredVolume != 60 {
		t.Fatalf("delivered = %g, want 60 over three slots", c.DeliveredVolume)
	}
	if math.Abs(c.StagedVolume-30) > 1e-9 {
		t.Fatalf("staged = %g, want 30", c.StagedVolume)
	}
}

func TestDownstreamCappedByStaging(t *testing.T) {
	p := evalProblem(t)
	e := New(p, Weights{Production: 1})
	st := schedule.NewState(p)
	f1, _ := p.MachineByID("F1")
	x1, _ := p.MachineByID("X1")
	d1, _ := p.MachineByID("D1")
	b1, _ := p.BlockByID("B1")
	// Fell 20 in slot 0; extract may start in slot 1 (buffer 18 staged)
	// but only 20 is there to take; loading in slot 2 moves at most what
	// extraction staged, released as one 25-batch short.
	st.Set(f1, 0, int32(b1))
	st.Set(x1, 1, int32(b1))
	st.Set(d1, 2, int32(b1))
	_, c := e.Score(st)
	// Extraction moved 20, loading wanted 30 but only 20 was staged, and
	// 20 is below one loader batch, so nothing is delivered.
	if c.DeliveredVolume != 0 {
		t.Fatalf("delivered = %g, want 0 below one batch", c.DeliveredVolume)
	}
	if math.Abs(c.StagedVolume-20) > 1e-9 {
		t.Fatalf("staged = %g, want the felled 20", c.StagedVolume)
	}
}

func TestMobilisationThreshold(t *testing.T) {
	p := evalProblem(t)
	e := New(p, Weights{Mobilisation: 1})
	st := schedule.NewState(p)
	f1, _ := p.MachineByID("F1")
	b1, _ := p.BlockByID("B1")
	b2, _ := p.BlockByID("B2")
	// Finish B1's felling, then walk 1200m to B2: 700m over threshold at
	// 2 per metre plus 150 setup.
	for s := 0; s < 6; s++ {
		st.Set(f1, s, int32(b1))
	}
	for s := 6; s < 11; s++ {
		st.Set(f1, s, int32(b2))
	}
	obj, c := e.Score(st)
	want := (1200-500)*2.0 + 150
	if math.Abs(c.MobilisationCost-want) > 1e-9 {
		t.Fatalf("mobilisation = %g, want %g", c.MobilisationCost, want)
	}
	if math.Abs(obj-want) > 1e-9 {
		t.Fatalf("objective = %g, want %g under mobilisation-only weights", obj, want)
	}
}

func TestMobilisationStartLanding(t *testing.T) {
	p := evalProblem(t)
	e := New(p, Weights{Mobilisation: 1})
	st := schedule.NewState(p)
	d1, _ := p.MachineByID("D1") // starts at L1
	b2, _ := p.BlockByID("B2")   // lands at L2
	st.Set(d1, 6, int32(b2))
	_, c := e.Score(st)
	want := (1200-1000)*1.0 + 80
	if math.Abs(c.MobilisationCost-want) > 1e-9 {
		t.Fatalf("mobilisation = %g, want %g for the anchored start", c.MobilisationCost, want)
	}
}

// TestRescoreMatchesFreshScore drives a long random mutation walk and
// demands bit-identical objectives from the incremental tracker and a
// from-scratch score after every accepted step.
func TestRescoreMatchesFreshScore(t *testing.T) {
	p := evalProblem(t)
	e := New(p, DefaultWeights())
	rep := NewRepairer(p)
	st := schedule.NewGreedy(p)
	tr := e.NewTracker(st)
	rng := rand.New(rand.NewSource(42))

	steps, applied := 400, 0
	for i := 0; i < steps; i++ {
		m := rng.Intn(p.NumMachines())
		s := rng.Intn(p.Slots())
		var b int32 = schedule.Idle
		if rng.Intn(3) > 0 {
			b = int32(rng.Intn(p.NumBlocks()))
			blk := p.Blocks[b]
			if !blk.Window(s) || !p.Available(m, s) || !p.CanWork(m, int(b)) {
				continue
			}
		}
		st.Begin()
		st.Set(m, s, b)
		if err := rep.Repair(st); err != nil {
			st.Rollback()
			tr.Rescore(st)
			continue
		}
		st.Commit()
		applied++

		got, gc := tr.Rescore(st)
		want, wc := e.Score(st)
		if got != want {
			t.Fatalf("step %d: tracker %v != fresh %v", i, got, want)
		}
		if gc.DeliveredVolume != wc.DeliveredVolume || gc.MobilisationCost != wc.MobilisationCost {
			t.Fatalf("step %d: components diverged: %+v vs %+v", i, gc, wc)
		}
		if wc.SequencingViolations != 0 {
			t.Fatalf("step %d: repaired schedule still has %d violations", i, wc.SequencingViolations)
		}
	}
	if applied == 0 {
		t.Fatalf("walk applied no mutations")
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights invalid: %v", err)
	}
	bad := DefaultWeights()
	bad.Leftover = -1
	if err := bad.Validate(); err == nil {
		t.Fatalf("negative weight should fail")
	}
}

func TestComponentsObjectiveSense(t *testing.T) {
	w := DefaultWeights()
	better := Components{DeliveredVolume: 100}
	worse := Components{LeftoverVolume: 100}
	if better.Objective(w) >= worse.Objective(w) {
		t.Fatalf("delivering must beat leaving volume standing")
	}
}
