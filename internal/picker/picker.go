package picker

import (
	"math/rand"
	"strconv"
	"sync"
	"time"

	logx "searcharr/pkg/logx"
)

// Picker owns the in-memory scheduling state. All methods are safe for
// concurrent use; a single mutex guards the whole state because reconcile
// and draw mutate bag/seen/cooldowns together and must be observed
// atomically.
type Picker struct {
	mu    sync.Mutex
	state *State

	now func() time.Time
	rng *rand.Rand
	log logx.Logger
}

type Option func(*Picker)

// WithClock replaces the wall clock. Tests use this to step time across a
// cooldown window without sleeping.
func WithClock(now func() time.Time) Option {
	return func(p *Picker) {
		if now != nil {
			p.now = now
		}
	}
}

// WithRand injects the randomness source used for bag shuffles.
func WithRand(rng *rand.Rand) Option {
	return func(p *Picker) {
		if rng != nil {
			p.rng = rng
		}
	}
}

func WithLogger(log logx.Logger) Option {
	return func(p *Picker) { p.log = log }
}

func New(opts ...Option) *Picker {
	p := &Picker{
		state: NewState(),
		now:   time.Now,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		log:   logx.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Restore replaces the picker's state wholesale (used once after load).
func (p *Picker) Restore(st *State) {
	if st == nil {
		st = NewState()
	}
	st.normalize()
	p.mu.Lock()
	p.state = st
	p.mu.Unlock()
}

// Snapshot returns a deep copy of the current state for persistence.
func (p *Picker) Snapshot() *State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Clone()
}

// IsCooledDown reports whether id may be selected again in bucket given the
// cooldown window. Zero (or negative) cooldown disables gating.
func (p *Picker) IsCooledDown(bucket string, id int64, cooldown time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cooledDownLocked(bucket, id, cooldown)
}

// MarkSelected stamps the cooldown ledger for (bucket, id) with the current
// time. Last write wins.
func (p *Picker) MarkSelected(bucket string, id int64) {
	p.mu.Lock()
	p.markLocked(bucket, id)
	p.mu.Unlock()
}

// Draw selects up to count ids from bucket without repeating until the cycle
// completes, skipping ids still inside the cooldown window.
//
// The bag is scanned from the front; an id that is not cooled down rotates
// to the tail. A full fruitless pass ends the draw (supply exhausted this
// tick). When the bag runs dry mid-draw a new cycle starts immediately, so
// an oversized count can see an id twice across the cycle boundary.
//
// With commit=false the cycle position still advances but no cooldown
// timestamps are written (preview mode).
func (p *Picker) Draw(bucket string, eligible []int64, count int, cooldown time.Duration, commit bool) []int64 {
	if count <= 0 {
		return nil
	}
	elig := sanitizeIDs(eligible)
	if len(elig) == 0 {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.reconcileLocked(bucket, elig)
	cs := p.cycleLocked(bucket)

	picked := make([]int64, 0, count)
	for n := 0; n < count; n++ {
		if len(cs.Bag) == 0 {
			p.reconcileLocked(bucket, elig)
			if len(cs.Bag) == 0 {
				break
			}
		}

		chosen, ok := p.scanBagLocked(bucket, cs, cooldown)
		if !ok {
			break
		}

		// Consume from the front; the scan left the chosen id there.
		cs.Bag = cs.Bag[1:]
		cs.Seen = append(cs.Seen, chosen)

		if commit {
			// Stamp immediately: with a zero cooldown the same id may
			// legitimately resurface later in this same tick and must
			// observe its own selection.
			p.markLocked(bucket, chosen)
		}
		picked = append(picked, chosen)
	}

	if len(picked) > 0 && p.log.Enabled(logx.LevelDebug) {
		p.log.Debug("draw completed",
			logx.String("bucket", bucket),
			logx.Int("eligible", len(elig)),
			logx.Int("picked", len(picked)),
			logx.Int("bag_left", len(cs.Bag)),
			logx.Bool("commit", commit),
		)
	}
	return picked
}

// scanBagLocked rotates not-cooled-down ids to the tail until it finds a
// drawable head or completes one full pass. On success the chosen id sits at
// Bag[0].
func (p *Picker) scanBagLocked(bucket string, cs *CycleState, cooldown time.Duration) (int64, bool) {
	maxAttempts := len(cs.Bag)
	for attempts := 0; attempts < maxAttempts && len(cs.Bag) > 0; attempts++ {
		head := cs.Bag[0]
		if p.cooledDownLocked(bucket, head, cooldown) {
			return head, true
		}
		// Rotate in place: one copy, no reallocation.
		copy(cs.Bag, cs.Bag[1:])
		cs.Bag[len(cs.Bag)-1] = head
	}
	return 0, false
}

// reconcileLocked aligns the bucket's cycle state with the live eligible set:
// ids that left eligibility are purged from bag and seen, newly eligible ids
// are shuffled onto the tail of the bag, and an empty bag starts a fresh
// cycle from the full eligible set.
func (p *Picker) reconcileLocked(bucket string, eligible []int64) {
	set := make(map[int64]struct{}, len(eligible))
	for _, id := range eligible {
		set[id] = struct{}{}
	}

	cs := p.cycleLocked(bucket)
	cs.Bag = retainIDs(cs.Bag, set)
	cs.Seen = retainIDs(cs.Seen, set)

	inCycle := make(map[int64]struct{}, len(cs.Bag)+len(cs.Seen))
	for _, id := range cs.Bag {
		inCycle[id] = struct{}{}
	}
	for _, id := range cs.Seen {
		inCycle[id] = struct{}{}
	}

	var fresh []int64
	for _, id := range eligible {
		if _, ok := inCycle[id]; !ok {
			fresh = append(fresh, id)
		}
	}
	p.rng.Shuffle(len(fresh), func(i, j int) { fresh[i], fresh[j] = fresh[j], fresh[i] })
	cs.Bag = append(cs.Bag, fresh...)

	if len(cs.Bag) == 0 {
		bag := append([]int64(nil), eligible...)
		p.rng.Shuffle(len(bag), func(i, j int) { bag[i], bag[j] = bag[j], bag[i] })
		cs.Bag = bag
		cs.Seen = cs.Seen[:0]
	}
}

func (p *Picker) cycleLocked(bucket string) *CycleState {
	cs, ok := p.state.Shuffle[bucket]
	if !ok || cs == nil {
		cs = &CycleState{}
		p.state.Shuffle[bucket] = cs
	}
	return cs
}

func (p *Picker) cooledDownLocked(bucket string, id int64, cooldown time.Duration) bool {
	if cooldown <= 0 {
		return true
	}
	m, ok := p.state.Cooldowns[bucket]
	if !ok {
		return true
	}
	last, ok := m[strconv.FormatInt(id, 10)]
	if !ok {
		return true
	}
	return p.now().Unix()-last >= int64(cooldown/time.Second)
}

func (p *Picker) markLocked(bucket string, id int64) {
	m, ok := p.state.Cooldowns[bucket]
	if !ok {
		m = map[string]int64{}
		p.state.Cooldowns[bucket] = m
	}
	m[strconv.FormatInt(id, 10)] = p.now().Unix()
}

// sanitizeIDs drops negatives and duplicates; upstream data is untrusted.
func sanitizeIDs(in []int64) []int64 {
	out := make([]int64, 0, len(in))
	seen := make(map[int64]struct{}, len(in))
	for _, id := range in {
		if id < 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// retainIDs filters in place, preserving relative order.
func retainIDs(in []int64, keep map[int64]struct{}) []int64 {
	out := in[:0]
	for _, id := range in {
		if _, ok := keep[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
