package runner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/archiver/pkg/workflow"
)

// ArtifactWriter writes the report files of a run
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates an artifact writer rooted at outputDir
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
	}
}

// WriteAll writes the JSON report and the markdown summary, returning the
// paths written so far even when one of them fails.
func (w *ArtifactWriter) WriteAll(summary *Summary) ([]string, error) {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var paths []string

	path, err := w.WriteReportJSON(summary)
	if err != nil {
		return paths, fmt.Errorf("failed to write report JSON: %w", err)
	}
	paths = append(paths, path)

	path, err = w.WriteSummaryMarkdown(summary)
	if err != nil {
		return paths, fmt.Errorf("failed to write summary markdown: %w", err)
	}
	paths = append(paths, path)

	return paths, nil
}

// WriteReportJSON writes the full run report as JSON
func (w *ArtifactWriter) WriteReportJSON(summary *Summary) (string, error) {
	path := filepath.Join(w.outputDir, summary.RunID+"-report.json")

	data, err := json.MarshalIndent(newRunDocument(summary), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal run report: %w", err)
	}

	if writeErr := os.WriteFile(path, data, 0600); writeErr != nil {
		return "", writeErr
	}
	return path, nil
}

// WriteSummaryMarkdown writes a human-readable summary
func (w *ArtifactWriter) WriteSummaryMarkdown(summary *Summary) (string, error) {
	path := filepath.Join(w.outputDir, summary.RunID+"-summary.md")
	doc := newRunDocument(summary)

	var md strings.Builder

	md.WriteString("# Location Archival Run\n\n")
	md.WriteString(fmt.Sprintf("**Run:** %s\n\n", doc.RunID))
	md.WriteString(fmt.Sprintf("**Outcome:** %s\n\n", doc.Outcome))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", doc.StartTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Completed:** %s\n\n", doc.EndTime.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Duration:** %s\n\n", doc.Duration))
	if doc.DryRun {
		md.WriteString("**Dry run:** no location was modified\n\n")
	}

	md.WriteString("## Result\n\n")
	if doc.Error != "" {
		md.WriteString(fmt.Sprintf("❌ **Error:** %s\n\n", doc.Error))
	} else {
		md.WriteString("✅ **Success**\n\n")
	}

	if len(doc.Stages) > 0 {
		md.WriteString("## Stages\n\n")
		for _, stage := range doc.Stages {
			md.WriteString(fmt.Sprintf("- **%s:** %s after %d attempt(s)", stage.Stage, stage.Outcome, stage.Attempts))
			if stage.Error != "" {
				md.WriteString(fmt.Sprintf(" (%s)", stage.Error))
			}
			md.WriteString("\n")
		}
		md.WriteString("\n")
	}

	if doc.Totals != nil {
		md.WriteString("## Totals\n\n")
		md.WriteString(fmt.Sprintf("- **Discovered:** %d\n", doc.Totals.Discovered))
		md.WriteString(fmt.Sprintf("- **Archived:** %d\n", doc.Totals.Archived))
		md.WriteString(fmt.Sprintf("- **Would archive:** %d\n", doc.Totals.WouldArchive))
		md.WriteString(fmt.Sprintf("- **Skipped:** %d\n", doc.Totals.Skipped))
		md.WriteString(fmt.Sprintf("- **Failed:** %d\n\n", doc.Totals.Failed))
	}

	if len(doc.Items) > 0 {
		md.WriteString("## Locations\n\n")
		md.WriteString("| # | Name | Status | URL |\n")
		md.WriteString("|---|------|--------|-----|\n")
		for i, item := range doc.Items {
			name := item.Name
			if name == "" {
				name = "_unnamed_"
			}
			md.WriteString(fmt.Sprintf("| %d | %s | %s | %s |\n", i+1, escapeCell(name), item.Status, item.URL))
		}
		md.WriteString("\n")
	}

	if writeErr := os.WriteFile(path, []byte(md.String()), 0600); writeErr != nil {
		return "", writeErr
	}
	return path, nil
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// runDocument is the serialised form of a Summary
type runDocument struct {
	RunID     string          `json:"run_id"`
	Outcome   string          `json:"outcome"`
	Error     string          `json:"error,omitempty"`
	DryRun    bool            `json:"dry_run"`
	StartTime time.Time       `json:"start_time"`
	EndTime   time.Time       `json:"end_time"`
	Duration  string          `json:"duration"`
	Stages    []stageDocument `json:"stages,omitempty"`
	Totals    *totalsDocument `json:"totals,omitempty"`
	Items     []itemDocument  `json:"items,omitempty"`
}

type stageDocument struct {
	Stage    string `json:"stage"`
	Outcome  string `json:"outcome"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

type totalsDocument struct {
	Discovered   int `json:"discovered"`
	Archived     int `json:"archived"`
	WouldArchive int `json:"would_archive"`
	Skipped      int `json:"skipped"`
	Failed       int `json:"failed"`
}

type itemDocument struct {
	URL        string `json:"url"`
	Name       string `json:"name,omitempty"`
	Status     string `json:"status"`
	Archivable bool   `json:"archivable"`
	Error      string `json:"error,omitempty"`
}

func newRunDocument(s *Summary) runDocument {
	doc := runDocument{
		RunID:     s.RunID,
		Outcome:   s.Outcome.String(),
		Error:     errorText(s.Err),
		DryRun:    s.DryRun,
		StartTime: s.StartedAt,
		EndTime:   s.FinishedAt,
		Duration:  s.Duration().Round(time.Millisecond).String(),
	}

	if s.Session != nil {
		doc.Stages = append(doc.Stages, newStageDocument(*s.Session))
		if s.Session.Listing != nil {
			doc.Stages = append(doc.Stages, newStageDocument(*s.Session.Listing))
		}
	}

	if r := s.Report; r != nil {
		doc.Totals = &totalsDocument{
			Discovered:   r.Discovered,
			Archived:     r.Count(workflow.StatusArchived),
			WouldArchive: r.Count(workflow.StatusWouldArchive),
			Skipped:      r.Skipped(),
			Failed:       r.Failed(),
		}
		for _, item := range r.Items {
			doc.Items = append(doc.Items, itemDocument{
				URL:        item.Record.URL,
				Name:       item.Record.DisplayName,
				Status:     string(item.Status),
				Archivable: item.Record.Archivable,
				Error:      errorText(item.Err),
			})
		}
	}

	return doc
}

func newStageDocument(r workflow.Result) stageDocument {
	return stageDocument{
		Stage:    string(r.Stage),
		Outcome:  r.Outcome.String(),
		Attempts: r.Attempts,
		Error:    errorText(r.Err),
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
