package search

import (
	"context"

	"searcharr/internal/arr"
	logx "searcharr/pkg/logx"
)

// promote moves items that carry the search tag but have nothing missing
// over to the done tag, so the next library sweep feeds them to the
// upgrades pass instead. A bounded random sample per tick keeps the PUT
// volume low; promote has no cycle fairness on purpose (any not-missing
// item is equally done).
func (r *Runner) promote(ctx context.Context, client *arr.Client, spec AppSpec, searchID, doneID *int64, p Params, log logx.Logger) (int, error) {
	if p.PromoteLimit <= 0 {
		return 0, nil
	}
	if searchID == nil || doneID == nil {
		log.Warn("search/done tag missing; cannot promote search->done")
		return 0, nil
	}

	missingRecords, err := client.PagedRecords(ctx, "/wanted/missing", p.WantedPageSize, 0)
	if err != nil {
		return 0, err
	}
	missingIDs := map[int64]struct{}{}
	for _, rec := range missingRecords {
		if id, ok := arr.ExtractID(rec, spec.WantedIDKeys...); ok {
			missingIDs[id] = struct{}{}
		}
	}

	var library []arr.Record
	if err := client.GetJSON(ctx, spec.LibraryPath, nil, &library); err != nil {
		return 0, err
	}
	tagIndex := arr.BuildTagIndex(library)

	searchTagged := 0
	var eligible []int64
	for id, tags := range tagIndex {
		if _, tagged := tags[*searchID]; !tagged {
			continue
		}
		searchTagged++
		if _, stillMissing := missingIDs[id]; !stillMissing {
			eligible = append(eligible, id)
		}
	}

	picked := r.sample(eligible, p.PromoteLimit)
	log.Info("promote search->done",
		logx.Int("candidates", searchTagged),
		logx.Int("eligible", len(eligible)),
		logx.Int("picked", len(picked)),
	)

	promoted := 0
	for _, id := range picked {
		if err := client.RetagSearchToDone(ctx, spec.ItemType, id, *searchID, *doneID, p.DryRun, log); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}

// sample returns up to limit ids drawn uniformly without replacement.
func (r *Runner) sample(ids []int64, limit int) []int64 {
	if limit <= 0 || len(ids) == 0 {
		return nil
	}
	shuffled := append([]int64(nil), ids...)
	r.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	if len(shuffled) > limit {
		shuffled = shuffled[:limit]
	}
	return shuffled
}
