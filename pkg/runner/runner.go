// Package runner owns the browser lifecycle of an archival run: it acquires
// the provider, sequences the workflow stages and guarantees teardown.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/entrhq/archiver/pkg/browser"
	"github.com/entrhq/archiver/pkg/config"
	"github.com/entrhq/archiver/pkg/logging"
	"github.com/entrhq/archiver/pkg/workflow"
)

var (
	errNoAcquirer  = errors.New("no browser acquirer configured")
	errNilProvider = errors.New("acquirer returned no browser")
	errNoSettings  = errors.New("settings are required")
)

// Acquirer starts the browser a run drives. browser.Launch wrapped with the
// run's options is the production acquirer.
type Acquirer func(ctx context.Context) (browser.Provider, error)

// Options configures a run.
type Options struct {
	Acquire     Acquirer
	Credentials config.Credentials
	Settings    *config.Settings
	Logger      *logging.Logger
}

// Summary is everything a run produced.
type Summary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool

	// Outcome is the run's overall outcome; Err explains anything but success
	Outcome workflow.Outcome
	Err     error

	// Session is nil when the run stopped before logging in
	Session *workflow.Result

	// Report is nil when the archival stage never ran
	Report *workflow.Report

	// ReportFiles lists the report files written, if any
	ReportFiles []string
}

// OK reports whether every stage succeeded. Individual locations may still
// have failed; see Report.
func (s *Summary) OK() bool {
	return s.Outcome == workflow.OutcomeSuccess
}

// Duration returns how long the run took.
func (s *Summary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) fail(outcome workflow.Outcome, err error) {
	s.Outcome = outcome
	s.Err = err
}

// Run executes one archival run. It never panics: a panic escaping a stage is
// recovered after the browser is closed and reported as a fatal outcome.
func Run(ctx context.Context, opts Options) (summary *Summary) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	log := logger.With("runner")

	summary = &Summary{
		RunID:     logger.RunID(),
		StartedAt: time.Now(),
	}
	if opts.Settings != nil {
		summary.DryRun = opts.Settings.DryRun
	}

	defer func() {
		if r := recover(); r != nil {
			err := &workflow.PanicError{Value: r}
			log.Errorf("Run aborted: %v", err)
			summary.fail(workflow.OutcomeFatal, err)
		}
		summary.FinishedAt = time.Now()
		if opts.Settings != nil {
			writeReports(opts.Settings.Report.Dir, summary, log)
		}
		logSummary(logger, summary)
	}()

	if opts.Settings == nil {
		summary.fail(workflow.OutcomeFatal, errNoSettings)
		return summary
	}
	if err := opts.Credentials.Validate(); err != nil {
		log.Errorf("Cannot start: %v", err)
		summary.fail(workflow.OutcomeFatal, err)
		return summary
	}

	log.Verbosef("Starting browser")
	provider, err := acquire(ctx, opts.Acquire)
	if err != nil {
		log.Errorf("Failed to start browser: %v", err)
		summary.fail(workflow.OutcomeFatal, fmt.Errorf("failed to start browser: %w", err))
		return summary
	}
	defer teardown(provider, log)

	wf := workflow.New(provider, opts.Settings, logger)

	logger.Section("Login")
	session := wf.EstablishSession(ctx, opts.Credentials)
	summary.Session = &session
	if !session.OK() {
		summary.fail(session.Outcome, session.Err)
		return summary
	}

	logger.Section("Archival")
	report := wf.ArchiveEligibleLocations(ctx)
	summary.Report = report
	if report.Err != nil {
		outcome := workflow.OutcomeTransient
		if ctx.Err() != nil {
			outcome = workflow.OutcomeFatal
		}
		summary.fail(outcome, report.Err)
		return summary
	}

	summary.Outcome = workflow.OutcomeSuccess
	return summary
}

func acquire(ctx context.Context, fn Acquirer) (provider browser.Provider, err error) {
	defer func() {
		if r := recover(); r != nil {
			provider = nil
			err = &workflow.PanicError{Value: r}
		}
	}()

	if fn == nil {
		return nil, errNoAcquirer
	}
	provider, err = fn(ctx)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, errNilProvider
	}
	return provider, nil
}

// teardown closes the browser. Failures are logged and swallowed.
func teardown(provider browser.Provider, log *logging.Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Warnf("Browser teardown panicked: %v", r)
		}
	}()

	if err := provider.Close(); err != nil {
		log.Warnf("Browser teardown failed: %v", err)
		return
	}
	log.Verbosef("Browser closed")
}

func writeReports(dir string, summary *Summary, log *logging.Logger) {
	if dir == "" {
		return
	}
	paths, err := NewArtifactWriter(dir).WriteAll(summary)
	summary.ReportFiles = paths
	if err != nil {
		log.Warnf("Failed to write run report: %v", err)
		return
	}
	for _, path := range paths {
		log.Verbosef("Wrote %s", path)
	}
}

func logSummary(logger *logging.Logger, s *Summary) {
	logger.Section("Summary")

	if r := s.Report; r != nil {
		logger.Infof("Locations found: %d", r.Discovered)
		if s.DryRun {
			logger.Infof("Would archive:   %d", r.Count(workflow.StatusWouldArchive))
		} else {
			logger.Infof("Archived:        %d", r.Count(workflow.StatusArchived))
		}
		logger.Infof("Skipped:         %d", r.Skipped())
		if failed := r.Failed(); failed > 0 {
			logger.Warnf("%d locations could not be processed", failed)
		}
	}
	logger.Verbosef("Run %s took %s", s.RunID, s.Duration().Round(time.Millisecond))

	if s.OK() {
		logger.Successf("Run completed")
		return
	}
	logger.Errorf("Run failed (%s): %v", s.Outcome, s.Err)
}
