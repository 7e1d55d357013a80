// Package executor routes planned actions to their operators and records
// what succeeded. It enforces nothing itself: protection is checked by the
// planner and again by the operators.
package executor

import (
	"context"
	"fmt"

	"github.com/jamesainslie/tend/pkg/tend/history"
	"github.com/jamesainslie/tend/pkg/tend/logging"
	"github.com/jamesainslie/tend/pkg/tend/operator"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

var logger = logging.Get("executor")

// Execute groups actions by target and hands each group to the matching
// operator, one operator at a time. Actions whose operator is missing or
// unavailable come back as failed results, so every action yields exactly
// one result. An operator that rejects its whole group (a routing
// mismatch) fails every action in it.
func Execute(ctx context.Context, actions []types.Action, ops *operator.Set) []types.ActionResult {
	groups := make(map[string][]types.Action)
	var order []string
	for _, a := range actions {
		t := a.Target()
		if _, seen := groups[t]; !seen {
			order = append(order, t)
		}
		groups[t] = append(groups[t], a)
	}

	results := make([]types.ActionResult, 0, len(actions))
	for _, target := range order {
		group := groups[target]
		op, ok := ops.Get(target)
		if !ok || !op.Available() {
			logger.Warn("no available operator", "target", target, "actions", len(group))
			for _, a := range group {
				results = append(results, types.FailedResult(a, fmt.Errorf("%w: %s", types.ErrUnavailable, target)))
			}
			continue
		}

		logger.Info("dispatching", "target", target, "actions", len(group))
		res, err := op.Execute(ctx, group)
		if err != nil {
			logger.Error("operator rejected actions", "target", target, "error", err)
			for _, a := range group {
				results = append(results, types.FailedResult(a, err))
			}
			continue
		}
		results = append(results, res...)
	}
	return results
}

// Recorder persists history entries.
type Recorder interface {
	Record(e history.Entry) (history.Entry, error)
}

// RecordHistory writes one entry per action kind (and domain) that has at
// least one successful result. Failures are never recorded. A persistence
// error is logged and returned for the caller to show as a warning; the
// applied changes stand regardless.
func RecordHistory(store Recorder, results []types.ActionResult, label string, meta map[string]string) ([]history.Entry, error) {
	type key struct {
		kind   types.ActionKind
		domain types.Domain
	}
	partitions := make(map[key][]history.Item)
	var order []key
	for _, r := range results {
		if !r.Success {
			continue
		}
		k := key{r.Action.Kind, r.Action.Domain}
		if _, seen := partitions[k]; !seen {
			order = append(order, k)
		}
		partitions[k] = append(partitions[k], history.ItemFor(r.Action))
	}

	var (
		written  []history.Entry
		firstErr error
	)
	for _, k := range order {
		md := map[string]string{history.MetaCommand: label}
		for mk, mv := range meta {
			md[mk] = mv
		}
		if k.domain.IsPath() {
			md[history.MetaDomain] = string(k.domain)
		}

		entry := history.NewEntry(k.kind, partitions[k], history.Reversible(k.kind, k.domain), md)
		saved, err := store.Record(entry)
		if err != nil {
			logger.Warn("failed to record history", "action", k.kind, "items", len(partitions[k]), "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("recording history: %w", err)
			}
			continue
		}
		written = append(written, saved)
	}
	return written, firstErr
}
