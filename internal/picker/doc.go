// Package picker implements the persisted cooldown + shuffle-bag selection
// engine.
//
// Each bucket (one per app × pass, e.g. "sonarr_missing") keeps:
//   - a cooldown ledger: item id -> last-selected epoch seconds
//   - a cycle bag: ids not yet selected this cycle, plus the ids already
//     selected ("seen")
//
// Draw() guarantees that no eligible id is re-selected until every other
// eligible id has had a turn, and that committed picks are not re-offered
// within the configured cooldown window, even across restarts.
package picker
