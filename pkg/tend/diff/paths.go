package diff

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jamesainslie/tend/pkg/tend/manifest"
	"github.com/jamesainslie/tend/pkg/tend/ownership"
	"github.com/jamesainslie/tend/pkg/tend/protect"
	"github.com/jamesainslie/tend/pkg/tend/types"
)

// Status is the classification of a discovered path.
type Status string

// Path statuses.
const (
	StatusOrphan    Status = "orphan"
	StatusOwned     Status = "owned"
	StatusProtected Status = "protected"
	StatusUnknown   Status = "unknown"
)

// OrphanReason explains an ORPHAN classification. It is empty for every
// other status.
type OrphanReason string

// Orphan reasons.
const (
	ReasonNone       OrphanReason = ""
	ReasonNoOwner    OrphanReason = "no-owner"
	ReasonAppMissing OrphanReason = "app-missing"
	ReasonStale      OrphanReason = "stale"
)

// PathClass is the classification of one path.
type PathClass struct {
	Path       string       `json:"path" yaml:"path"`
	Domain     types.Domain `json:"domain" yaml:"domain"`
	Status     Status       `json:"status" yaml:"status"`
	Reason     OrphanReason `json:"reason,omitempty" yaml:"reason,omitempty"`
	Confidence float64      `json:"confidence" yaml:"confidence"`
	Owner      string       `json:"owner,omitempty" yaml:"owner,omitempty"`
	Size       int64        `json:"size" yaml:"size"`
	ModTime    time.Time    `json:"mod_time" yaml:"mod_time"`
	Detail     string       `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// NewPathClass builds a validated classification for rec. Confidence must
// lie in [0, 1]. A reason is kept only for ORPHAN.
func NewPathClass(rec types.Record, status Status, reason OrphanReason, confidence float64) (PathClass, error) {
	if math.IsNaN(confidence) || confidence < 0 || confidence > 1 {
		return PathClass{}, fmt.Errorf("%w: %v", types.ErrInvalidConfidence, confidence)
	}
	if status != StatusOrphan {
		reason = ReasonNone
	}
	return PathClass{
		Path:       rec.Name,
		Domain:     rec.Domain,
		Status:     status,
		Reason:     reason,
		Confidence: confidence,
		Size:       rec.Size,
		ModTime:    rec.ModTime,
	}, nil
}

// Classifier decides the status of an unprotected path.
type Classifier interface {
	Classify(ctx context.Context, rec types.Record) (PathClass, error)
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(ctx context.Context, rec types.Record) (PathClass, error)

// Classify implements Classifier.
func (f ClassifierFunc) Classify(ctx context.Context, rec types.Record) (PathClass, error) {
	return f(ctx, rec)
}

// HeuristicClassifier classifies through an ownership lookup and scores
// orphans by how much evidence supports them.
type HeuristicClassifier struct {
	Lookup ownership.Lookup

	// StaleAfter marks an unowned path stale when untouched this long.
	// Zero disables staleness.
	StaleAfter time.Duration

	// Now defaults to time.Now.
	Now func() time.Time
}

// Classify implements Classifier.
func (h *HeuristicClassifier) Classify(ctx context.Context, rec types.Record) (PathClass, error) {
	res, err := h.Lookup.Owner(ctx, rec.Name)
	if err != nil {
		return PathClass{}, err
	}

	if res.Owned {
		confidence := 0.8
		if strings.HasPrefix(res.Owner, "dpkg:") {
			confidence = 1.0
		}
		pc, err := NewPathClass(rec, StatusOwned, ReasonNone, confidence)
		pc.Owner = res.Owner
		return pc, err
	}

	now := time.Now
	if h.Now != nil {
		now = h.Now
	}
	stale := h.StaleAfter > 0 && !rec.ModTime.IsZero() && now().Sub(rec.ModTime) > h.StaleAfter

	switch {
	case res.App != "" && stale:
		pc, err := NewPathClass(rec, StatusOrphan, ReasonAppMissing, 0.9)
		pc.Detail = fmt.Sprintf("%s not installed, untouched since %s", res.App, rec.ModTime.Format("2006-01-02"))
		return pc, err
	case res.App != "":
		pc, err := NewPathClass(rec, StatusOrphan, ReasonAppMissing, 0.7)
		pc.Detail = res.App + " not installed"
		return pc, err
	case stale:
		return NewPathClass(rec, StatusOrphan, ReasonStale, 0.6)
	default:
		return NewPathClass(rec, StatusOrphan, ReasonNoOwner, 0.4)
	}
}

// ClassifyPaths classifies every record of domain. Protection is decided
// first and short-circuits the classifier. A classifier failure makes the
// path UNKNOWN with confidence 0; only cancellation aborts.
func ClassifyPaths(ctx context.Context, records []types.Record, domain types.Domain, reg *protect.Registry, cls Classifier) ([]PathClass, error) {
	var out []PathClass
	for _, rec := range records {
		if rec.Domain != domain {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if reg.IsProtected(domain, rec.Name) {
			pc, _ := NewPathClass(rec, StatusProtected, ReasonNone, 1)
			out = append(out, pc)
			continue
		}

		pc, err := cls.Classify(ctx, rec)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			logger.Debug("classification failed", "path", rec.Name, "error", err)
			pc, _ = NewPathClass(rec, StatusUnknown, ReasonNone, 0)
			pc.Detail = err.Error()
		}
		pc.Path, pc.Domain = rec.Name, domain
		out = append(out, pc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// PathResult is the diff of one path domain.
type PathResult struct {
	Domain types.Domain `json:"domain" yaml:"domain"`

	// Extra holds existing remove entries that are not protected.
	Extra []PathClass `json:"extra" yaml:"extra"`

	// Protected holds remove entries withheld because they are protected.
	Protected []PathClass `json:"protected,omitempty" yaml:"protected,omitempty"`

	// Absent lists remove entries that no longer exist.
	Absent []string `json:"absent,omitempty" yaml:"absent,omitempty"`

	// Orphans holds unlisted ORPHAN paths, reported but never actioned.
	Orphans []PathClass `json:"orphans" yaml:"orphans"`
}

// PathDiff compares classified paths against a manifest section. Manifest
// keys may start with "~", expanded against home. A remove entry that
// expands to a kept path is never planned.
func PathDiff(domain types.Domain, classes []PathClass, section manifest.Section, home string) *PathResult {
	byPath := make(map[string]PathClass, len(classes))
	for _, pc := range classes {
		byPath[pc.Path] = pc
	}

	keep := make(map[string]bool, len(section.Keep))
	for _, name := range section.KeepNames() {
		keep[ExpandHome(name, home)] = true
	}

	res := &PathResult{Domain: domain, Extra: []PathClass{}, Orphans: []PathClass{}}
	removing := make(map[string]bool, len(section.Remove))
	for _, name := range section.RemoveNames() {
		path := ExpandHome(name, home)
		if keep[path] {
			logger.Warn("path listed in both keep and remove, keeping it", "domain", domain, "path", path)
			continue
		}
		removing[path] = true
		pc, ok := byPath[path]
		if !ok {
			res.Absent = append(res.Absent, path)
			continue
		}
		if pc.Status == StatusProtected {
			res.Protected = append(res.Protected, pc)
			continue
		}
		res.Extra = append(res.Extra, pc)
	}

	for _, pc := range classes {
		if pc.Status == StatusOrphan && !keep[pc.Path] && !removing[pc.Path] {
			res.Orphans = append(res.Orphans, pc)
		}
	}
	sort.Slice(res.Extra, func(i, j int) bool { return res.Extra[i].Path < res.Extra[j].Path })
	return res
}

// ExpandHome expands a leading "~" and cleans the path.
func ExpandHome(path, home string) string {
	switch {
	case path == "~":
		path = home
	case strings.HasPrefix(path, "~/"):
		path = filepath.Join(home, path[2:])
	}
	return filepath.Clean(path)
}
