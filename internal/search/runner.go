package search

import (
	"context"
	"math/rand"
	"sort"
	"time"

	"searcharr/internal/arr"
	"searcharr/internal/picker"
	logx "searcharr/pkg/logx"
)

// Params holds the per-app knobs for one tick, resolved from config.
type Params struct {
	SearchTag string
	DoneTag   string

	MissingLimit  int
	UpgradesLimit int
	PromoteLimit  int

	MissingCooldown  time.Duration
	UpgradesCooldown time.Duration

	WantedPageSize int
	DryRun         bool
	AutoPromote    bool
}

// Report summarizes what one app run did, for logging and notifications.
type Report struct {
	App string

	MissingEligible int
	MissingPicked   []int64

	UpgradesEligible int
	UpgradesPicked   []int64

	Promoted int
}

// Runner executes the per-app passes of a tick: the missing search pass, the
// upgrades search pass, and the promote pass. It owns no network state; a
// client is handed in per call.
type Runner struct {
	picker *picker.Picker
	rng    *rand.Rand
	log    logx.Logger
}

func NewRunner(p *picker.Picker, rng *rand.Rand, log logx.Logger) *Runner {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Runner{picker: p, rng: rng, log: log}
}

// RunApp runs the missing and upgrades passes for one app. A failure in one
// pass is returned but the other pass has already run (or will not run);
// passes execute in order and the first hard error stops the app.
func (r *Runner) RunApp(ctx context.Context, client *arr.Client, spec AppSpec, p Params) (Report, error) {
	rep := Report{App: spec.Name}
	log := r.log.With(logx.String("app", spec.Name))

	searchID, doneID, err := client.TagIDs(ctx, p.SearchTag, p.DoneTag)
	if err != nil {
		return rep, err
	}
	if searchID == nil {
		log.Warn("search tag not found; missing pass will do nothing", logx.String("tag", p.SearchTag))
	}
	if doneID == nil {
		log.Warn("done tag not found; upgrades pass will do nothing", logx.String("tag", p.DoneTag))
	}

	var library []arr.Record
	if err := client.GetJSON(ctx, spec.LibraryPath, nil, &library); err != nil {
		return rep, err
	}
	tagIndex := arr.BuildTagIndex(library)

	if searchID != nil && p.MissingLimit > 0 {
		eligible, err := r.eligibleIDs(ctx, client, spec, "/wanted/missing", *searchID, tagIndex, p.WantedPageSize)
		if err != nil {
			return rep, err
		}
		picked := r.picker.Draw(spec.Name+"_missing", eligible, p.MissingLimit, p.MissingCooldown, !p.DryRun)
		rep.MissingEligible = len(eligible)
		rep.MissingPicked = picked

		log.Info("missing pass", logx.Int("eligible", len(eligible)), logx.Int("picked", len(picked)))
		if err := r.dispatch(ctx, client, spec, picked, p.DryRun, log); err != nil {
			return rep, err
		}
	}

	if doneID != nil && p.UpgradesLimit > 0 {
		eligible, err := r.eligibleIDs(ctx, client, spec, "/wanted/cutoff", *doneID, tagIndex, p.WantedPageSize)
		if err != nil {
			return rep, err
		}
		picked := r.picker.Draw(spec.Name+"_upgrades", eligible, p.UpgradesLimit, p.UpgradesCooldown, !p.DryRun)
		rep.UpgradesEligible = len(eligible)
		rep.UpgradesPicked = picked

		log.Info("upgrades pass", logx.Int("eligible", len(eligible)), logx.Int("picked", len(picked)))
		if err := r.dispatch(ctx, client, spec, picked, p.DryRun, log); err != nil {
			return rep, err
		}
	}

	if p.AutoPromote {
		promoted, err := r.promote(ctx, client, spec, searchID, doneID, p, log)
		if err != nil {
			return rep, err
		}
		rep.Promoted = promoted
	}

	return rep, nil
}

// eligibleIDs drains a wanted endpoint and intersects its item ids with the
// items carrying the given tag. Ids come back sorted so bag insertion order
// is stable for a stable upstream.
func (r *Runner) eligibleIDs(ctx context.Context, client *arr.Client, spec AppSpec, wantedPath string, tagID int64, tagIndex map[int64]map[int64]struct{}, pageSize int) ([]int64, error) {
	records, err := client.PagedRecords(ctx, wantedPath, pageSize, 0)
	if err != nil {
		return nil, err
	}

	set := map[int64]struct{}{}
	for _, rec := range records {
		if id, ok := arr.ExtractID(rec, spec.WantedIDKeys...); ok {
			set[id] = struct{}{}
		}
	}

	eligible := make([]int64, 0, len(set))
	for id := range set {
		if tags, ok := tagIndex[id]; ok {
			if _, tagged := tags[tagID]; tagged {
				eligible = append(eligible, id)
			}
		}
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i] < eligible[j] })
	return eligible, nil
}

// dispatch triggers the app's search command for the picked ids: one batched
// command when the spec batches, one command per id otherwise.
func (r *Runner) dispatch(ctx context.Context, client *arr.Client, spec AppSpec, picked []int64, dryRun bool, log logx.Logger) error {
	if len(picked) == 0 {
		return nil
	}

	if spec.BatchIDsField != "" {
		payload := map[string]any{"name": spec.CommandName, spec.BatchIDsField: picked}
		if dryRun {
			log.Info("DRY_RUN: would POST /command", logx.Any("payload", payload))
			return nil
		}
		if err := client.PostCommand(ctx, payload); err != nil {
			return err
		}
		log.Info("triggered search command", logx.String("command", spec.CommandName), logx.Ints64("ids", picked))
		return nil
	}

	for _, id := range picked {
		payload := map[string]any{"name": spec.CommandName, spec.CommandIDField: id}
		if dryRun {
			log.Info("DRY_RUN: would POST /command", logx.Any("payload", payload))
			continue
		}
		if err := client.PostCommand(ctx, payload); err != nil {
			return err
		}
		log.Info("triggered search command", logx.String("command", spec.CommandName), logx.Int64("id", id))
	}
	return nil
}
