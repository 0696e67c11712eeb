// Package report defines the run reports produced by purge, reconcile and
// audit runs, and the sinks that publish them.
//
// A run always produces a report, even when individual items failed. Item
// failures are listed in Failed and never abort the run.
package report

import (
	"fmt"
	"io"
	"time"
)

// Report kinds, used as archive prefixes and Kafka headers.
const (
	KindPurge = "purge"
	KindIndex = "index"
	KindAudit = "audit"
)

// Report is implemented by every run report.
type Report interface {
	Kind() string
	ID() string
	Started() time.Time
	// Summary returns the counters logged at the end of a run.
	Summary() map[string]any
	// WriteText renders the report for humans.
	WriteText(w io.Writer) error
}

// ItemFailure records one unit that could not be processed.
type ItemFailure struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Failure builds an ItemFailure from an error.
func Failure(id string, err error) ItemFailure {
	return ItemFailure{ID: id, Reason: err.Error()}
}

// Scope mirrors the tenant/workspace filter a run was given.
type Scope struct {
	Tenant    string `json:"tenant,omitempty"`
	Workspace string `json:"workspace,omitempty"`
}

// PurgeReport is the outcome of a graph purge.
type PurgeReport struct {
	RunID  string `json:"runId"`
	Mode   string `json:"mode"`
	Scope  Scope  `json:"scope"`
	DryRun bool   `json:"dryRun,omitempty"`

	Preserved []string      `json:"preserved"`
	Deleted   []string      `json:"deleted"`
	Planned   []string      `json:"planned,omitempty"`
	Failed    []ItemFailure `json:"failed"`

	// Ambiguous lists graphs that matched no specific classification rule.
	Ambiguous []string `json:"ambiguous,omitempty"`

	// Aborted is set when the run stopped early, e.g. on cancellation.
	Aborted string `json:"aborted,omitempty"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// NewPurgeReport starts a purge report.
func NewPurgeReport(runID, mode string, scope Scope, dryRun bool) *PurgeReport {
	return &PurgeReport{
		RunID:     runID,
		Mode:      mode,
		Scope:     scope,
		DryRun:    dryRun,
		Preserved: []string{},
		Deleted:   []string{},
		Failed:    []ItemFailure{},
		StartedAt: time.Now().UTC(),
	}
}

func (r *PurgeReport) Kind() string       { return KindPurge }
func (r *PurgeReport) ID() string         { return r.RunID }
func (r *PurgeReport) Started() time.Time { return r.StartedAt }

// Summary returns run counters.
func (r *PurgeReport) Summary() map[string]any {
	return map[string]any{
		"runId":      r.RunID,
		"mode":       r.Mode,
		"dryRun":     r.DryRun,
		"preserved":  len(r.Preserved),
		"deleted":    len(r.Deleted),
		"planned":    len(r.Planned),
		"failed":     len(r.Failed),
		"ambiguous":  len(r.Ambiguous),
		"durationMs": r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
}

// WriteText renders the report.
func (r *PurgeReport) WriteText(w io.Writer) error {
	tw := &textWriter{w: w}
	tw.printf("purge run %s\n", r.RunID)
	tw.printf("  mode:      %s\n", r.Mode)
	if r.Scope.Tenant != "" {
		tw.printf("  tenant:    %s\n", r.Scope.Tenant)
	}
	if r.Scope.Workspace != "" {
		tw.printf("  workspace: %s\n", r.Scope.Workspace)
	}
	if r.DryRun {
		tw.printf("  dry run:   yes\n")
	}
	tw.printf("  duration:  %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	tw.list("preserved", r.Preserved)
	tw.list("deleted", r.Deleted)
	if r.DryRun {
		tw.list("planned", r.Planned)
	}
	tw.list("ambiguous", r.Ambiguous)
	tw.failures(r.Failed)
	if r.Aborted != "" {
		tw.printf("aborted: %s\n", r.Aborted)
	}
	return tw.err
}

// ChunkMismatch flags a chunk whose owner fields disagree with the
// document whose chunk set lists it. Mismatches are reported, never repaired.
type ChunkMismatch struct {
	DocumentID string `json:"documentId"`
	ChunkID    string `json:"chunkId"`
	Field      string `json:"field"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual"`
}

// IndexReport is the outcome of an index reconciliation.
type IndexReport struct {
	RunID    string   `json:"runId"`
	Families []string `json:"families"`

	// Scanned counts primary records enumerated.
	Scanned        int      `json:"scanned"`
	OrphansRemoved int      `json:"orphansRemoved"`
	RemovedIDs     []string `json:"removedIds"`

	Mismatches []ChunkMismatch `json:"mismatches,omitempty"`
	Failed     []ItemFailure   `json:"failed"`
	Aborted    string          `json:"aborted,omitempty"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// NewIndexReport starts an index report.
func NewIndexReport(runID string, families []string) *IndexReport {
	return &IndexReport{
		RunID:      runID,
		Families:   families,
		RemovedIDs: []string{},
		Failed:     []ItemFailure{},
		StartedAt:  time.Now().UTC(),
	}
}

func (r *IndexReport) Kind() string       { return KindIndex }
func (r *IndexReport) ID() string         { return r.RunID }
func (r *IndexReport) Started() time.Time { return r.StartedAt }

// Summary returns run counters.
func (r *IndexReport) Summary() map[string]any {
	return map[string]any{
		"runId":          r.RunID,
		"families":       r.Families,
		"scanned":        r.Scanned,
		"orphansRemoved": r.OrphansRemoved,
		"mismatches":     len(r.Mismatches),
		"failed":         len(r.Failed),
		"durationMs":     r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
}

// WriteText renders the report.
func (r *IndexReport) WriteText(w io.Writer) error {
	tw := &textWriter{w: w}
	tw.printf("reconcile run %s\n", r.RunID)
	tw.printf("  families:        %v\n", r.Families)
	tw.printf("  scanned:         %d\n", r.Scanned)
	tw.printf("  orphans removed: %d\n", r.OrphansRemoved)
	tw.printf("  duration:        %s\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	tw.list("removed ids", r.RemovedIDs)
	if len(r.Mismatches) > 0 {
		tw.printf("mismatches (%d):\n", len(r.Mismatches))
		for _, m := range r.Mismatches {
			tw.printf("  - document %s chunk %s: %s is %q, want %q\n",
				m.DocumentID, m.ChunkID, m.Field, m.Actual, m.Expected)
		}
	}
	tw.failures(r.Failed)
	if r.Aborted != "" {
		tw.printf("aborted: %s\n", r.Aborted)
	}
	return tw.err
}

// Misfiled is a job id indexed under a workspace other than its own.
type Misfiled struct {
	JobID           string `json:"jobId"`
	SetWorkspace    string `json:"setWorkspace"`
	RecordWorkspace string `json:"recordWorkspace"`
}

// JobAudit lists job index entries that disagree with primary records.
type JobAudit struct {
	RunID string `json:"runId"`

	// Scanned counts index memberships inspected.
	Scanned  int        `json:"scanned"`
	Dangling []string   `json:"dangling"`
	Misfiled []Misfiled `json:"misfiled"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Aborted    string    `json:"aborted,omitempty"`
}

// NewJobAudit starts a job audit.
func NewJobAudit(runID string) *JobAudit {
	return &JobAudit{
		RunID:     runID,
		Dangling:  []string{},
		Misfiled:  []Misfiled{},
		StartedAt: time.Now().UTC(),
	}
}

func (r *JobAudit) Kind() string       { return KindAudit }
func (r *JobAudit) ID() string         { return r.RunID }
func (r *JobAudit) Started() time.Time { return r.StartedAt }

// Summary returns run counters.
func (r *JobAudit) Summary() map[string]any {
	return map[string]any{
		"runId":      r.RunID,
		"scanned":    r.Scanned,
		"dangling":   len(r.Dangling),
		"misfiled":   len(r.Misfiled),
		"durationMs": r.FinishedAt.Sub(r.StartedAt).Milliseconds(),
	}
}

// WriteText renders the report.
func (r *JobAudit) WriteText(w io.Writer) error {
	tw := &textWriter{w: w}
	tw.printf("job audit %s\n", r.RunID)
	tw.printf("  memberships scanned: %d\n", r.Scanned)
	tw.list("dangling", r.Dangling)
	if len(r.Misfiled) > 0 {
		tw.printf("misfiled (%d):\n", len(r.Misfiled))
		for _, m := range r.Misfiled {
			tw.printf("  - %s in workspace set %q, record says %q\n", m.JobID, m.SetWorkspace, m.RecordWorkspace)
		}
	}
	if r.Aborted != "" {
		tw.printf("aborted: %s\n", r.Aborted)
	}
	return tw.err
}

// textWriter keeps the first write error.
type textWriter struct {
	w   io.Writer
	err error
}

func (t *textWriter) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *textWriter) list(title string, items []string) {
	t.printf("%s (%d):\n", title, len(items))
	for _, item := range items {
		t.printf("  - %s\n", item)
	}
}

func (t *textWriter) failures(failed []ItemFailure) {
	t.printf("failed (%d):\n", len(failed))
	for _, f := range failed {
		t.printf("  - %s: %s\n", f.ID, f.Reason)
	}
}

var (
	_ Report = (*PurgeReport)(nil)
	_ Report = (*IndexReport)(nil)
	_ Report = (*JobAudit)(nil)
)
