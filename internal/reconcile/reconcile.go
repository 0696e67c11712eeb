// Package reconcile removes secondary-index entries whose primary record is
// gone from the key-value store.
//
// Two record families are handled. Jobs live in a hash per job plus a
// global id set and one set per workspace; reconciling a job id removes it
// from every one of them. Documents own a set of chunk ids; a chunk id whose
// chunk hash is missing is removed from the set, and a chunk whose owner
// fields disagree with the document is reported but left alone.
//
// Every removal is idempotent, so a reconciliation can be repeated.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dray-io/storejanitor/internal/kvstore"
	"github.com/dray-io/storejanitor/internal/logging"
	"github.com/dray-io/storejanitor/internal/report"
	"github.com/dray-io/storejanitor/internal/scan"
	"github.com/dray-io/storejanitor/internal/storeerr"
)

// Family is a group of primary records and the indexes over them.
type Family string

const (
	FamilyJobs   Family = "jobs"
	FamilyChunks Family = "chunks"
)

// Families lists every family in the order they are reconciled.
var Families = []Family{FamilyJobs, FamilyChunks}

// ErrUnknownFamily is returned by ParseFamily.
var ErrUnknownFamily = errors.New("reconcile: unknown family")

// ParseFamily parses a family name.
func ParseFamily(s string) (Family, error) {
	f := Family(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Families {
		if f == known {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFamily, s)
}

// Request selects what a reconciliation covers.
type Request struct {
	// JobIDs are the job ids whose index entries are removed.
	JobIDs []string

	// Families to reconcile. Empty means every family.
	Families []Family
}

// Config configures a Janitor.
type Config struct {
	// Keys is the key layout. Zero fields fall back to kvstore.DefaultKeySpace.
	Keys kvstore.KeySpace

	// BatchSize is the COUNT hint passed to SCAN and SSCAN.
	// Default: scan.DefaultBatchSize
	BatchSize int
}

// Metrics receives reconciliation outcomes. A nil Metrics records nothing.
type Metrics interface {
	RecordOrphansRemoved(family string, n int)
	RecordChunkMismatch()
	RecordItemFailure(component string)
	RecordRun(component string, durationSeconds float64, success bool)
}

// Janitor reconciles indexes in one key-value store.
type Janitor struct {
	store   kvstore.Store
	keys    kvstore.KeySpace
	batch   int
	logger  *logging.Logger
	metrics Metrics
}

// New creates a Janitor.
func New(store kvstore.Store, config Config) *Janitor {
	return &Janitor{
		store: store,
		keys:  withDefaults(config.Keys),
		batch: config.BatchSize,
	}
}

func withDefaults(k kvstore.KeySpace) kvstore.KeySpace {
	d := kvstore.DefaultKeySpace()
	if k.JobPrefix == "" {
		k.JobPrefix = d.JobPrefix
	}
	if k.JobsAllSet == "" {
		k.JobsAllSet = d.JobsAllSet
	}
	if k.JobsWorkspacePrefix == "" {
		k.JobsWorkspacePrefix = d.JobsWorkspacePrefix
	}
	if k.DocumentPrefix == "" {
		k.DocumentPrefix = d.DocumentPrefix
	}
	if k.ChunkSetSuffix == "" {
		k.ChunkSetSuffix = d.ChunkSetSuffix
	}
	if k.ChunkPrefix == "" {
		k.ChunkPrefix = d.ChunkPrefix
	}
	return k
}

// WithLogger sets the logger. Without one the janitor logs through the
// logger carried by the run context.
func (j *Janitor) WithLogger(l *logging.Logger) *Janitor {
	j.logger = l
	return j
}

// WithMetrics sets the metrics recorder.
func (j *Janitor) WithMetrics(m Metrics) *Janitor {
	j.metrics = m
	return j
}

func (j *Janitor) runLogger(ctx context.Context) (*logging.Logger, string) {
	runID := logging.RunIDFromCtx(ctx)
	if runID == "" {
		runID = uuid.NewString()
	}
	l := j.logger
	if l == nil {
		l = logging.FromCtx(ctx)
	}
	return l.WithRunID(runID), runID
}

// Reconcile runs one reconciliation pass.
//
// Failures on single ids are listed in the report. An error is returned
// when keys could not be enumerated or ctx was cancelled; the partial report
// comes back with it.
func (j *Janitor) Reconcile(ctx context.Context, req Request) (*report.IndexReport, error) {
	families := req.Families
	if len(families) == 0 {
		families = Families
	}
	names := make([]string, len(families))
	for i, f := range families {
		if _, err := ParseFamily(string(f)); err != nil {
			return nil, err
		}
		names[i] = string(f)
	}

	logger, runID := j.runLogger(ctx)
	r := &indexRun{
		janitor: j,
		logger:  logger,
		report:  report.NewIndexReport(runID, names),
	}
	logger.Infof("reconcile started", map[string]any{
		"families": names,
		"jobIds":   len(req.JobIDs),
	})

	var err error
	for _, f := range families {
		switch f {
		case FamilyJobs:
			err = r.reconcileJobs(ctx, req.JobIDs)
		case FamilyChunks:
			err = r.reconcileChunks(ctx)
		}
		if err != nil {
			break
		}
	}

	r.report.FinishedAt = time.Now().UTC()
	if j.metrics != nil {
		j.metrics.RecordRun("reconcile", r.report.FinishedAt.Sub(r.report.StartedAt).Seconds(), err == nil)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		r.report.Aborted = err.Error()
		logger.Errorf("reconcile aborted", map[string]any{"error": err})
		return r.report, err
	}
	return r.report, nil
}

// indexRun holds the state of one Reconcile call.
type indexRun struct {
	janitor *Janitor
	logger  *logging.Logger
	report  *report.IndexReport
}

func (r *indexRun) removed(family Family, id string) {
	r.report.OrphansRemoved++
	r.report.RemovedIDs = append(r.report.RemovedIDs, id)
	if m := r.janitor.metrics; m != nil {
		m.RecordOrphansRemoved(string(family), 1)
	}
}

func (r *indexRun) fail(id string, err error) {
	r.report.Failed = append(r.report.Failed, report.Failure(id, err))
	if m := r.janitor.metrics; m != nil {
		m.RecordItemFailure("reconcile")
	}
	r.logger.Warnf("reconcile item failed", map[string]any{"id": id, "error": err})
}

// itemFailed records a per-item failure and returns nil so the sweep
// continues. A connection error is returned instead: the store is gone and
// the run aborts.
func (r *indexRun) itemFailed(id string, err error) error {
	if storeerr.IsConnection(err) {
		return err
	}
	r.fail(id, err)
	return nil
}

// collectKeys returns every key matching pattern. Used for the set-key
// listings, which are bounded by the number of workspaces.
func (j *Janitor) collectKeys(ctx context.Context, pattern string) ([]string, error) {
	return scan.Collect[string](ctx, scan.NewKeyCursor(j.store, pattern, j.batch))
}
