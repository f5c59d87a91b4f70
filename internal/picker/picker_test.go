package picker

import (
	"math/rand"
	"testing"
	"time"
)

func newTestPicker(seed int64, now *time.Time) *Picker {
	opts := []Option{WithRand(rand.New(rand.NewSource(seed)))}
	if now != nil {
		opts = append(opts, WithClock(func() time.Time { return *now }))
	}
	return New(opts...)
}

func TestDrawNoRepeatWithinCycle(t *testing.T) {
	t.Parallel()
	p := newTestPicker(1, nil)
	eligible := []int64{1, 2, 3, 4, 5}

	seen := make(map[int64]int)
	for i := 0; i < len(eligible); i++ {
		got := p.Draw("b", eligible, 1, 0, true)
		if len(got) != 1 {
			t.Fatalf("draw %d: got %v, want exactly one id", i, got)
		}
		seen[got[0]]++
	}
	for _, id := range eligible {
		if seen[id] != 1 {
			t.Fatalf("id %d drawn %d times in one cycle, want 1 (seen=%v)", id, seen[id], seen)
		}
	}
}

func TestDrawCycleRestartsAfterExhaustion(t *testing.T) {
	t.Parallel()
	p := newTestPicker(2, nil)
	eligible := []int64{10, 20, 30}

	first := make(map[int64]struct{})
	for i := 0; i < 3; i++ {
		got := p.Draw("b", eligible, 1, 0, true)
		if len(got) != 1 {
			t.Fatalf("first cycle draw %d: got %v", i, got)
		}
		first[got[0]] = struct{}{}
	}
	if len(first) != 3 {
		t.Fatalf("first cycle covered %d ids, want 3", len(first))
	}

	// Bag is empty now; next draw must start a fresh cycle.
	got := p.Draw("b", eligible, 1, 0, true)
	if len(got) != 1 {
		t.Fatalf("post-exhaustion draw: got %v, want one id", got)
	}
}

func TestDrawCountTwoOverThree(t *testing.T) {
	t.Parallel()
	// Repeated draws of 2 over {1,2,3}: the first two draws span a cycle
	// boundary but never repeat within the 3-id cycle itself.
	p := newTestPicker(3, nil)
	eligible := []int64{1, 2, 3}

	a := p.Draw("b", eligible, 2, 0, true)
	if len(a) != 2 || a[0] == a[1] {
		t.Fatalf("first draw = %v, want 2 distinct ids", a)
	}
	b := p.Draw("b", eligible, 2, 0, true)
	if len(b) != 2 {
		t.Fatalf("second draw = %v, want 2 ids", b)
	}
	// First element of the second draw finishes the cycle: it must be the
	// one id the first draw skipped.
	inFirst := map[int64]bool{a[0]: true, a[1]: true}
	if inFirst[b[0]] {
		t.Fatalf("second draw started with %d, already drawn this cycle (first=%v)", b[0], a)
	}
}

func TestDrawOversizedCountMayRepeatAcrossCycles(t *testing.T) {
	t.Parallel()
	// A single draw larger than the eligible set rolls into a new cycle and
	// may therefore contain repeats, but each half is itself repeat-free.
	p := newTestPicker(4, nil)
	eligible := []int64{1, 2}

	got := p.Draw("b", eligible, 4, 0, true)
	if len(got) != 4 {
		t.Fatalf("draw = %v, want 4 ids", got)
	}
	if got[0] == got[1] || got[2] == got[3] {
		t.Fatalf("repeat within a cycle half: %v", got)
	}
}

func TestDrawCooldownGatesSelection(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	p := newTestPicker(5, &now)
	eligible := []int64{7}
	cd := time.Hour

	got := p.Draw("b", eligible, 1, cd, true)
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("initial draw = %v, want [7]", got)
	}

	// Still inside the window: a full pass finds nothing.
	now = now.Add(30 * time.Minute)
	if got := p.Draw("b", eligible, 1, cd, true); len(got) != 0 {
		t.Fatalf("draw inside cooldown = %v, want empty", got)
	}

	// Window elapsed exactly: eligible again.
	now = now.Add(30 * time.Minute)
	got = p.Draw("b", eligible, 1, cd, true)
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("draw after cooldown = %v, want [7]", got)
	}
}

func TestDrawRotatesPastCooledIDs(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	p := newTestPicker(6, &now)
	cd := time.Hour

	// Mark 1 and 2 as recently selected; only 3 is drawable.
	p.MarkSelected("b", 1)
	p.MarkSelected("b", 2)

	got := p.Draw("b", []int64{1, 2, 3}, 2, cd, true)
	if len(got) != 1 || got[0] != 3 {
		t.Fatalf("draw = %v, want [3] (1 and 2 still cooling down)", got)
	}
}

func TestDrawPreviewDoesNotStampCooldowns(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	p := newTestPicker(7, &now)
	cd := time.Hour

	got := p.Draw("b", []int64{1, 2}, 2, cd, false)
	if len(got) != 2 {
		t.Fatalf("preview draw = %v, want 2 ids", got)
	}
	for _, id := range got {
		if !p.IsCooledDown("b", id, cd) {
			t.Fatalf("preview draw stamped cooldown for %d", id)
		}
	}
	// The cycle position still advanced.
	st := p.Snapshot()
	if cs := st.Shuffle["b"]; cs == nil || len(cs.Seen) != 2 {
		t.Fatalf("preview draw did not advance cycle: %+v", st.Shuffle["b"])
	}
}

func TestDrawCommitStampsImmediately(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	p := newTestPicker(8, &now)
	cd := time.Hour

	got := p.Draw("b", []int64{5}, 1, cd, true)
	if len(got) != 1 {
		t.Fatalf("draw = %v", got)
	}
	if p.IsCooledDown("b", 5, cd) {
		t.Fatal("id 5 should be inside its cooldown window after a committed draw")
	}
}

func TestReconcileDropsIneligibleIDs(t *testing.T) {
	t.Parallel()
	p := newTestPicker(9, nil)

	got := p.Draw("b", []int64{1, 2, 3, 4}, 1, 0, true)
	if len(got) != 1 {
		t.Fatalf("seed draw = %v", got)
	}

	// Shrink eligibility to {1}; the stale ids must never surface again.
	for i := 0; i < 5; i++ {
		got := p.Draw("b", []int64{1}, 1, 0, true)
		if len(got) != 1 || got[0] != 1 {
			t.Fatalf("draw %d after shrink = %v, want [1]", i, got)
		}
	}
	st := p.Snapshot()
	cs := st.Shuffle["b"]
	for _, id := range append(append([]int64(nil), cs.Bag...), cs.Seen...) {
		if id != 1 {
			t.Fatalf("stale id %d survived reconciliation: %+v", id, cs)
		}
	}
}

func TestReconcileAppendsNewIDs(t *testing.T) {
	t.Parallel()
	p := newTestPicker(10, nil)

	if got := p.Draw("b", []int64{1, 2}, 1, 0, true); len(got) != 1 {
		t.Fatalf("seed draw = %v", got)
	}

	// 3 joins mid-cycle; over the next three draws the remaining id and 3
	// both appear before any repeat.
	seen := make(map[int64]int)
	for i := 0; i < 2; i++ {
		got := p.Draw("b", []int64{1, 2, 3}, 1, 0, true)
		if len(got) != 1 {
			t.Fatalf("draw %d = %v", i, got)
		}
		seen[got[0]]++
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("id %d drawn %d times before cycle end", id, n)
		}
	}
	if seen[3] != 1 {
		t.Fatalf("newly eligible id 3 not drawn this cycle: %v", seen)
	}
}

func TestDrawEmptyAndInvalidInput(t *testing.T) {
	t.Parallel()
	p := newTestPicker(11, nil)

	if got := p.Draw("b", nil, 3, 0, true); got != nil {
		t.Fatalf("nil eligible: got %v, want nil", got)
	}
	if got := p.Draw("b", []int64{1, 2}, 0, 0, true); got != nil {
		t.Fatalf("count 0: got %v, want nil", got)
	}
	// Negatives and duplicates are dropped before drawing.
	got := p.Draw("b", []int64{-1, 4, 4, -9}, 5, 0, true)
	if len(got) != 1 || got[0] != 4 {
		t.Fatalf("sanitized draw = %v, want [4]", got)
	}
}

func TestBucketsAreIndependent(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	p := newTestPicker(12, &now)
	cd := time.Hour

	if got := p.Draw("a", []int64{1}, 1, cd, true); len(got) != 1 {
		t.Fatalf("bucket a draw = %v", got)
	}
	// The same id in another bucket has its own ledger entry.
	if got := p.Draw("b", []int64{1}, 1, cd, true); len(got) != 1 {
		t.Fatalf("bucket b draw = %v, want [1]", got)
	}
}

func TestZeroCooldownAllowsWrap(t *testing.T) {
	t.Parallel()
	p := newTestPicker(13, nil)
	// With no cooldown an oversized draw wraps into new cycles freely.
	got := p.Draw("b", []int64{1}, 3, 0, true)
	if len(got) != 3 {
		t.Fatalf("draw = %v, want the single id three times", got)
	}
	for _, id := range got {
		if id != 1 {
			t.Fatalf("unexpected id in %v", got)
		}
	}
}

func TestCommittedDrawObservesOwnStamp(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	p := newTestPicker(16, &now)
	// The stamp lands as each id is picked, so the wrap into a second cycle
	// finds the id still cooling down and the draw ends at one.
	got := p.Draw("b", []int64{1}, 3, time.Hour, true)
	if len(got) != 1 || got[0] != 1 {
		t.Fatalf("draw = %v, want [1]", got)
	}
}

func TestRestoreAndSnapshotRoundTrip(t *testing.T) {
	t.Parallel()
	now := time.Unix(1_700_000_000, 0)
	p := newTestPicker(14, &now)
	p.MarkSelected("b", 9)

	st := p.Snapshot()
	q := newTestPicker(14, &now)
	q.Restore(st)

	if q.IsCooledDown("b", 9, time.Hour) {
		t.Fatal("restored picker lost the cooldown stamp for id 9")
	}
	if !q.IsCooledDown("b", 8, time.Hour) {
		t.Fatal("restored picker invented a cooldown stamp for id 8")
	}

	// Snapshot must be a deep copy: mutating it cannot leak back into the
	// picker it was taken from.
	st2 := p.Snapshot()
	st2.Cooldowns["b"]["9"] = 0
	if p.IsCooledDown("b", 9, time.Hour) {
		t.Fatal("snapshot mutation leaked back into the source picker")
	}
}

func TestRestoreNilResetsState(t *testing.T) {
	t.Parallel()
	p := newTestPicker(15, nil)
	p.MarkSelected("b", 1)
	p.Restore(nil)
	st := p.Snapshot()
	if len(st.Cooldowns) != 0 || len(st.Shuffle) != 0 {
		t.Fatalf("Restore(nil) left state behind: %+v", st)
	}
}
