package arr

import (
	"context"
	"fmt"
	"sort"

	logx "searcharr/pkg/logx"
)

// RetagSearchToDone swaps the search tag for the done tag on one item via
// GET-modify-PUT (the *arr item PUT requires the whole object back). A
// no-op when the item already carries the desired tag set.
func (c *Client) RetagSearchToDone(ctx context.Context, itemType string, itemID, searchTagID, doneTagID int64, dryRun bool, log logx.Logger) error {
	path := fmt.Sprintf("/%s/%d", itemType, itemID)

	var obj Record
	if err := c.GetJSON(ctx, path, nil, &obj); err != nil {
		return err
	}

	tags := map[int64]struct{}{}
	if raw, ok := obj["tags"].([]any); ok {
		for _, v := range raw {
			if tid, ok := coerceID(v); ok {
				tags[tid] = struct{}{}
			}
		}
	}

	changed := false
	if _, ok := tags[searchTagID]; ok {
		delete(tags, searchTagID)
		changed = true
	}
	if _, ok := tags[doneTagID]; !ok {
		tags[doneTagID] = struct{}{}
		changed = true
	}
	if !changed {
		return nil
	}

	sorted := make([]int64, 0, len(tags))
	for tid := range tags {
		sorted = append(sorted, tid)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	obj["tags"] = sorted

	if dryRun {
		log.Info("DRY_RUN: would retag",
			logx.String("item_type", itemType),
			logx.Int64("id", itemID),
			logx.Int64("remove", searchTagID),
			logx.Int64("add", doneTagID),
		)
		return nil
	}

	if err := c.PutJSON(ctx, path, obj); err != nil {
		return err
	}
	log.Info("retagged search->done", logx.String("item_type", itemType), logx.Int64("id", itemID))
	return nil
}
