// Package planner turns diff results into ordered actions. Planning is pure:
// no I/O, and identical inputs always yield the identical action list.
package planner

import (
	"sort"

	"github.com/jamesainslie/tend/pkg/tend/diff"
	"github.com/jamesainslie/tend/pkg/tend/protect"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// Capabilities reports what each package backend supports.
type Capabilities interface {
	SupportsPurge(source types.Source) bool
}

// PurgeSupport is a static Capabilities.
type PurgeSupport map[types.Source]bool

// SupportsPurge implements Capabilities.
func (p PurgeSupport) SupportsPurge(source types.Source) bool {
	return p[source]
}

// Plan converts a package diff into actions: every install first, then
// every removal. Each extra item is checked against the registry again
// before a destructive action is emitted. purge yields PURGE only where the
// backend supports it and degrades to REMOVE elsewhere.
func Plan(res *diff.Result, purge bool, reg *protect.Registry, caps Capabilities) []types.Action {
	if res == nil {
		return nil
	}

	missing := sorted(res.Missing())
	extra := sorted(res.Extra())

	actions := make([]types.Action, 0, len(missing)+len(extra))
	for _, it := range missing {
		a, err := types.NewAction(types.ActionInstall, it.Source, it.Name, reason(it.Reason, "declared in manifest"))
		if err != nil {
			continue
		}
		actions = append(actions, a)
	}

	for _, it := range extra {
		if reg.IsProtected(types.DomainPackages, it.Name) {
			continue
		}
		kind := types.ActionRemove
		if purge && caps != nil && caps.SupportsPurge(it.Source) {
			kind = types.ActionPurge
		}
		a, err := types.NewAction(kind, it.Source, it.Name, reason(it.Reason, "marked for removal"))
		if err != nil {
			continue
		}
		actions = append(actions, a)
	}
	return actions
}

// PlanPaths converts a path diff into delete actions, re-checking the
// registry for every path.
func PlanPaths(res *diff.PathResult, reg *protect.Registry) []types.Action {
	if res == nil {
		return nil
	}
	classes := append([]diff.PathClass(nil), res.Extra...)
	sort.Slice(classes, func(i, j int) bool { return classes[i].Path < classes[j].Path })

	actions := make([]types.Action, 0, len(classes))
	for _, pc := range classes {
		if pc.Status == diff.StatusProtected || reg.IsProtected(res.Domain, pc.Path) {
			continue
		}
		why := "marked for removal"
		if pc.Reason != diff.ReasonNone {
			why += " (" + string(pc.Reason) + ")"
		}
		a, err := types.NewPathAction(res.Domain, pc.Path, why)
		if err != nil {
			continue
		}
		actions = append(actions, a)
	}
	return actions
}

// Split partitions actions into installs and destructive actions,
// preserving order.
func Split(actions []types.Action) (installs, removals []types.Action) {
	for _, a := range actions {
		if a.Kind.Destructive() {
			removals = append(removals, a)
		} else {
			installs = append(installs, a)
		}
	}
	return installs, removals
}

// sorted orders items by source (canonical order) then name.
func sorted(items []diff.Item) []diff.Item {
	rank := make(map[types.Source]int, len(types.Sources))
	for i, s := range types.Sources {
		rank[s] = i
	}
	out := append([]diff.Item(nil), items...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Source != out[j].Source {
			return rank[out[i].Source] < rank[out[j].Source]
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func reason(declared, fallback string) string {
	if declared != "" {
		return declared
	}
	return fallback
}
