package history

import (
	"context"
	"log"
	"math"

	"classpoll/internal/store"
	"classpoll/pkg/interfaces"
	"classpoll/pkg/types"
)

// Reconciler merges the three disagreeing views of a session's poll
// history - the per-session persisted cache, the in-memory history of
// this run, and the backend's authoritative list - into one deduplicated,
// ordered view.
type Reconciler struct {
	backend interfaces.Backend
	cache   interfaces.Cache
	state   *store.State
}

// NewReconciler creates a reconciler over its three sources.
func NewReconciler(backend interfaces.Backend, cache interfaces.Cache, state *store.State) *Reconciler {
	return &Reconciler{backend: backend, cache: cache, state: state}
}

// History returns the merged poll history for a session. Local sources
// come first (persisted, then in-memory), the backend list last; the
// merge keeps the first occurrence per id, so a locally known poll beats
// the backend's copy. Local items are assumed fresher: the backend list
// may lag, and a poll may never have been durably stored server-side.
//
// Any backend failure degrades to local-only results. It is logged, never
// surfaced; the merged result for unchanged inputs is the same on every
// call. With no session id only the in-memory history of this run is
// available.
func (r *Reconciler) History(ctx context.Context, sessionID string) []types.PollHistoryItem {
	var sources [][]types.PollHistoryItem

	if sessionID != "" {
		var persisted []types.PollHistoryItem
		r.cache.GetJSON(types.HistoryKey(sessionID), &persisted)
		sources = append(sources, persisted)
	}

	sources = append(sources, r.state.History())

	if sessionID != "" {
		backend, err := r.backend.FetchPolls(ctx, sessionID)
		if err != nil {
			log.Printf("History fetch degraded to local-only: %v", err)
		} else {
			sources = append(sources, backend)
		}
	}

	return mergeFirstWins(sources...)
}

// mergeFirstWins concatenates the sources in order and keeps the first
// occurrence of each id. This is the reconciler's precedence policy, not
// an iteration accident: earlier sources win outright, and items without
// an id are dropped because they cannot be keyed.
func mergeFirstWins(sources ...[]types.PollHistoryItem) []types.PollHistoryItem {
	seen := make(map[string]bool)
	merged := make([]types.PollHistoryItem, 0)

	for _, source := range sources {
		for _, item := range source {
			if item.ID == "" || seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			merged = append(merged, item)
		}
	}
	return merged
}

// Percents returns the per-option percentages to display for one history
// item. Precomputed results win; otherwise the rows are derived from the
// item's raw votes. Both paths land on the same displayed shape.
func Percents(item *types.PollHistoryItem) []types.ResultRow {
	rows := make([]types.ResultRow, 0, len(item.Options))

	if len(item.Results) > 0 {
		byOption := make(map[string]types.ResultRow, len(item.Results))
		for _, row := range item.Results {
			byOption[row.ID] = row
		}
		for _, opt := range item.Options {
			row, ok := byOption[opt.ID]
			if !ok {
				row = types.ResultRow{ID: opt.ID}
			}
			row.Text = opt.Text
			rows = append(rows, row)
		}
		return rows
	}

	counts := make(map[string]int, len(item.Options))
	for _, vote := range item.Votes {
		counts[vote.OptionID]++
	}
	total := len(item.Votes)

	for _, opt := range item.Options {
		count := counts[opt.ID]
		percent := 0
		if total > 0 {
			// Rounded independently per option; the sum over all rows may
			// deviate from 100.
			percent = int(math.Round(float64(count) / float64(total) * 100))
		}
		rows = append(rows, types.ResultRow{
			ID:      opt.ID,
			Text:    opt.Text,
			Count:   count,
			Percent: percent,
		})
	}
	return rows
}
