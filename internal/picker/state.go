package picker

// CycleState is the per-bucket no-repeat working set.
//
// Invariant: Bag and Seen are disjoint, hold no duplicates, and both are
// subsets of the eligible set most recently reconciled against. A cycle is
// complete when Bag empties; the next reconcile starts a fresh one.
type CycleState struct {
	Bag  []int64 `json:"bag"`
	Seen []int64 `json:"seen"`
}

// State is the aggregate persisted by the storage layer.
//
// Cooldown item ids are stringified in the document (JSON object keys);
// bag/seen ids stay numeric.
type State struct {
	Cooldowns map[string]map[string]int64 `json:"cooldowns"`
	Shuffle   map[string]*CycleState      `json:"shuffle"`
}

func NewState() *State {
	return &State{
		Cooldowns: map[string]map[string]int64{},
		Shuffle:   map[string]*CycleState{},
	}
}

// Clone returns a deep copy, safe to hand to a storage writer while the
// picker keeps mutating the original.
func (s *State) Clone() *State {
	if s == nil {
		return NewState()
	}
	out := NewState()
	for bucket, m := range s.Cooldowns {
		cp := make(map[string]int64, len(m))
		for id, ts := range m {
			cp[id] = ts
		}
		out.Cooldowns[bucket] = cp
	}
	for bucket, cs := range s.Shuffle {
		if cs == nil {
			continue
		}
		out.Shuffle[bucket] = &CycleState{
			Bag:  append([]int64(nil), cs.Bag...),
			Seen: append([]int64(nil), cs.Seen...),
		}
	}
	return out
}

// normalize repairs a freshly decoded state: nil maps become empty,
// duplicate ids collapse keeping first occurrence.
func (s *State) normalize() {
	if s.Cooldowns == nil {
		s.Cooldowns = map[string]map[string]int64{}
	}
	if s.Shuffle == nil {
		s.Shuffle = map[string]*CycleState{}
	}
	for bucket, cs := range s.Shuffle {
		if cs == nil {
			s.Shuffle[bucket] = &CycleState{}
			continue
		}
		cs.Bag = uniqIDs(cs.Bag)
		cs.Seen = uniqIDs(cs.Seen)
	}
}

// uniqIDs removes duplicates preserving first-occurrence order.
func uniqIDs(in []int64) []int64 {
	if len(in) < 2 {
		return in
	}
	seen := make(map[int64]struct{}, len(in))
	out := in[:0]
	for _, id := range in {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
