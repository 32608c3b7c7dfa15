package workflow

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/entrhq/archiver/pkg/config"
	"github.com/entrhq/archiver/pkg/logging"
)

// LocationReference is the resolved URL of one location detail page.
type LocationReference string

// WorkList is the ordered set of locations captured from the listing page
// before any mutation. It is immutable: archiving a location never changes
// which locations the run visits.
type WorkList struct {
	refs []LocationReference
}

// NewWorkList copies refs into a new snapshot.
func NewWorkList(refs []LocationReference) WorkList {
	snapshot := make([]LocationReference, len(refs))
	copy(snapshot, refs)
	return WorkList{refs: snapshot}
}

// Len returns the number of locations.
func (l WorkList) Len() int {
	return len(l.refs)
}

// At returns the i-th location.
func (l WorkList) At(i int) LocationReference {
	return l.refs[i]
}

// References returns a copy of the snapshot.
func (l WorkList) References() []LocationReference {
	out := make([]LocationReference, len(l.refs))
	copy(out, l.refs)
	return out
}

// LocationRecord is what the run learned about one location while visiting it.
type LocationRecord struct {
	URL         string
	DisplayName string
	Archivable  bool
}

// ItemStatus is the fate of one location.
type ItemStatus string

const (
	StatusArchived         ItemStatus = "archived"
	StatusWouldArchive     ItemStatus = "would-archive"
	StatusNotArchivable    ItemStatus = "skipped-not-archivable"
	StatusFiltered         ItemStatus = "skipped-filtered"
	StatusNavigationFailed ItemStatus = "navigation-failed"
	StatusFailed           ItemStatus = "failed"
)

// ItemResult records the outcome for one location.
type ItemResult struct {
	Record LocationRecord
	Status ItemStatus
	Err    error
}

// Report summarises the archival stage.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	// Discovered is the size of the work list snapshot
	Discovered int

	// Items holds one result per visited location, in work list order
	Items []ItemResult

	// Err is set when the stage stopped before visiting every location
	Err error
}

// Count returns how many items ended with status.
func (r *Report) Count(status ItemStatus) int {
	n := 0
	for _, item := range r.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// Skipped counts items left untouched on purpose.
func (r *Report) Skipped() int {
	return r.Count(StatusNotArchivable) + r.Count(StatusFiltered)
}

// Failed counts items that could not be processed.
func (r *Report) Failed() int {
	return r.Count(StatusNavigationFailed) + r.Count(StatusFailed)
}

// Complete reports whether every discovered location was visited.
func (r *Report) Complete() bool {
	return r.Err == nil && len(r.Items) == r.Discovered
}

// ArchiveEligibleLocations snapshots the listing's row links and archives
// each eligible location. Individual failures are recorded and skipped; they
// never stop the batch. Only cancellation of ctx ends the loop early.
//
// Submitting the form is not verified afterwards: a location whose clicks
// succeeded is reported as archived.
func (w *Workflow) ArchiveEligibleLocations(ctx context.Context) *Report {
	log := w.logger.With("archive")
	report := &Report{
		StartedAt: time.Now(),
		DryRun:    w.settings.DryRun,
	}
	defer func() { report.FinishedAt = time.Now() }()

	filter, err := w.settings.Filters.Compile()
	if err != nil {
		log.Errorf("Invalid name filters: %v", err)
		report.Err = err
		return report
	}

	if err := w.waitForRows(ctx, log); err != nil {
		report.Err = err
		return report
	}

	list, err := w.captureWorkList(ctx, log)
	if err != nil {
		log.Errorf("Could not enumerate locations: %v", err)
		report.Err = err
		return report
	}
	report.Discovered = list.Len()
	log.Infof("Found %d locations", list.Len())
	if report.DryRun {
		log.Infof("Dry run: no location will be modified")
	}

	for i, ref := range list.References() {
		if err := ctx.Err(); err != nil {
			log.Warnf("Interrupted, %d of %d locations not visited", list.Len()-i, list.Len())
			report.Err = err
			break
		}
		item := w.processLocation(ctx, log, i+1, list.Len(), ref, filter)
		report.Items = append(report.Items, item)
	}

	return report
}

// waitForRows lets the listing finish rendering. Row links appearing is the
// observable signal; the trailing pause covers the "show all" re-render,
// which has none.
func (w *Workflow) waitForRows(ctx context.Context, log *logging.Logger) error {
	timing := w.settings.Timing
	rows := w.settings.Target.Locators.RowLinks

	if !w.provider.ElementExists(ctx, rows, timing.ListingSettle) {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Warnf("No location rows appeared within %s", timing.ListingSettle)
	}
	return pause(ctx, timing.RenderPause)
}

// captureWorkList reads every row link once and freezes the result.
func (w *Workflow) captureWorkList(ctx context.Context, log *logging.Logger) (list WorkList, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r}
		}
	}()

	elements, err := w.provider.FindAll(ctx, w.settings.Target.Locators.RowLinks)
	if err != nil {
		return WorkList{}, err
	}

	base, baseErr := url.Parse(w.provider.CurrentURL())
	refs := make([]LocationReference, 0, len(elements))
	for i, el := range elements {
		href, ok := el.Attribute("href")
		href = strings.TrimSpace(href)
		if !ok || href == "" {
			log.Warnf("Row %d has no link target, ignoring it", i+1)
			continue
		}
		refs = append(refs, LocationReference(resolveHref(base, baseErr, href)))
	}
	return NewWorkList(refs), nil
}

func resolveHref(base *url.URL, baseErr error, href string) string {
	ref, err := url.Parse(href)
	if err != nil || baseErr != nil || ref.IsAbs() {
		return href
	}
	return base.ResolveReference(ref).String()
}

// processLocation handles one location. It never panics.
func (w *Workflow) processLocation(ctx context.Context, log *logging.Logger, position, total int, ref LocationReference, filter *config.NameFilter) (result ItemResult) {
	result.Record.URL = string(ref)
	prefix := fmt.Sprintf("[%d/%d]", position, total)

	defer func() {
		if r := recover(); r != nil {
			result.Status = StatusFailed
			result.Err = &PanicError{Value: r}
			log.Errorf("%s Failed to archive %s: %v", prefix, ref, result.Err)
		}
	}()

	locators := w.settings.Target.Locators
	timing := w.settings.Timing

	if err := w.provider.Navigate(ctx, string(ref)); err != nil {
		log.Errorf("%s Could not open %s: %v", prefix, ref, err)
		result.Status = StatusNavigationFailed
		result.Err = err
		return result
	}

	var name string
	if w.provider.ElementExists(ctx, locators.NameField, timing.ProbeTimeout) {
		name, _ = w.provider.ReadAttribute(ctx, locators.NameField, "value")
	}
	result.Record.DisplayName = name
	label := displayLabel(name, ref)
	log.Infof("%s Processing location: %s", prefix, label)

	if ok, reason := filter.Allows(name); !ok {
		log.Infof("%s Skipping %s: %s", prefix, label, reason)
		result.Status = StatusFiltered
		return result
	}

	result.Record.Archivable = w.provider.ElementExists(ctx, locators.ArchiveFlag, timing.ProbeTimeout)
	if !result.Record.Archivable {
		log.Infof("%s Location %s is already archived or cannot be archived", prefix, label)
		result.Status = StatusNotArchivable
		return result
	}

	if w.settings.DryRun {
		log.Infof("%s Would archive %s", prefix, label)
		result.Status = StatusWouldArchive
		return result
	}

	if err := w.provider.ClickViaScript(ctx, locators.ArchiveFlag); err != nil {
		log.Errorf("%s Could not tick archive flag for %s: %v", prefix, label, err)
		result.Status = StatusFailed
		result.Err = err
		return result
	}
	if err := w.provider.ClickViaScript(ctx, locators.Submit); err != nil {
		log.Errorf("%s Could not submit %s: %v", prefix, label, err)
		result.Status = StatusFailed
		result.Err = err
		return result
	}

	log.Successf("%s Archived -> %s", prefix, label)
	result.Status = StatusArchived
	return result
}

func displayLabel(name string, ref LocationReference) string {
	if name = strings.TrimSpace(name); name != "" {
		return fmt.Sprintf("%q", name)
	}
	return fmt.Sprintf("<unnamed> (%s)", ref)
}
