package reconcile

import (
	"time"

	"github.com/jamesainslie/tend/pkg/tend/history"
	"github.com/jamesainslie/tend/pkg/tend/output"
)

// History renders the most recent entries, newest first. limit <= 0 uses
// the configured default; since, when set, drops older entries.
func (a *App) History(limit int, since *time.Time) ([]history.Entry, error) {
	if limit <= 0 {
		limit = a.Config.HistoryLimit
	}
	entries, err := a.Store.Query(limit, since)
	if err != nil {
		return nil, err
	}
	return entries, a.render(&output.Report{Command: "history", History: entries})
}

// HistoryShow renders one entry by ID or unique ID prefix.
func (a *App) HistoryShow(id string) (*history.Entry, error) {
	e, err := a.Store.Get(id)
	if err != nil {
		return nil, err
	}
	return e, a.render(&output.Report{Command: "history show", History: []history.Entry{*e}})
}
