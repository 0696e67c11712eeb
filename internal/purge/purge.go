// Package purge drops named graphs from the triple store according to a
// preservation policy.
//
// A purge enumerates graphs (or, in dangling-cleanup mode, ontology
// records) with a keyset cursor, classifies every graph, asks the policy
// whether it may go, and drops the ones that may. Each drop is independent:
// a failed drop is recorded in the report and the run carries on. Dropping a
// graph that is already gone succeeds, so a purge can be repeated.
package purge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dray-io/storejanitor/internal/classify"
	"github.com/dray-io/storejanitor/internal/logging"
	"github.com/dray-io/storejanitor/internal/policy"
	"github.com/dray-io/storejanitor/internal/report"
	"github.com/dray-io/storejanitor/internal/scan"
	"github.com/dray-io/storejanitor/internal/storeerr"
	"github.com/dray-io/storejanitor/internal/triplestore"
)

// ErrScopeRequired is returned when workspace-reset is requested without a
// target workspace.
var ErrScopeRequired = errors.New("purge: workspace-reset requires a workspace")

// Graph outcomes passed to Metrics.RecordGraphOutcome.
const (
	OutcomePreserved = "preserved"
	OutcomeDeleted   = "deleted"
	OutcomePlanned   = "planned"
	OutcomeFailed    = "failed"
)

// Config configures a Purger.
type Config struct {
	// Concurrency bounds how many graph drops run at once.
	// Default: 1 (sequential)
	Concurrency int

	// PageSize is the number of graphs fetched per enumeration query.
	// Default: scan.DefaultBatchSize
	PageSize int

	// DryRun computes every decision but drops nothing. Graphs that would
	// be dropped are listed under Planned.
	DryRun bool
}

// DefaultConfig returns the default purge configuration.
func DefaultConfig() Config {
	return Config{
		Concurrency: 1,
		PageSize:    scan.DefaultBatchSize,
	}
}

// Metrics receives purge outcomes. A nil Metrics records nothing.
type Metrics interface {
	RecordGraphClassified(category string)
	RecordGraphOutcome(outcome string)
	RecordRun(component string, durationSeconds float64, success bool)
}

// Purger runs graph purges against one triple store.
type Purger struct {
	store   triplestore.Store
	policy  policy.Policy
	config  Config
	logger  *logging.Logger
	metrics Metrics
}

// New creates a Purger.
func New(store triplestore.Store, pol policy.Policy, config Config) *Purger {
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	if config.PageSize <= 0 {
		config.PageSize = scan.DefaultBatchSize
	}
	return &Purger{
		store:  store,
		policy: pol,
		config: config,
	}
}

// WithLogger sets the logger. Without one the purger logs through the
// logger carried by the run context.
func (p *Purger) WithLogger(l *logging.Logger) *Purger {
	p.logger = l
	return p
}

// WithMetrics sets the metrics recorder.
func (p *Purger) WithMetrics(m Metrics) *Purger {
	p.metrics = m
	return p
}

// Purge runs one purge pass.
//
// Per-graph failures never fail the run; they are listed in the report.
// An error is returned when the graphs could not be enumerated, when a drop
// loses the connection to the store (a *storeerr.ConnectionError, after which
// queued drops are not attempted) or when ctx is cancelled. The partial
// report is returned alongside those errors with Aborted set.
func (p *Purger) Purge(parent context.Context, mode policy.Mode, scope policy.Scope) (*report.PurgeReport, error) {
	if !knownMode(mode) {
		return nil, fmt.Errorf("%w: %q", policy.ErrUnknownMode, mode)
	}
	if mode == policy.ModeWorkspaceReset && scope.Workspace == "" {
		return nil, ErrScopeRequired
	}

	runID := logging.RunIDFromCtx(parent)
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := p.logger
	if logger == nil {
		logger = logging.FromCtx(parent)
	}
	logger = logger.WithRunID(runID)

	ctx, abort := context.WithCancelCause(parent)
	defer abort(nil)

	r := &run{
		purger: p,
		abort:  abort,
		mode:   mode,
		scope:  scope,
		logger: logger,
		report: report.NewPurgeReport(runID, string(mode), report.Scope{
			Tenant:    scope.Tenant,
			Workspace: scope.Workspace,
		}, p.config.DryRun),
	}
	r.group.SetLimit(p.config.Concurrency)

	logger.Infof("purge started", map[string]any{
		"mode":      string(mode),
		"tenant":    scope.Tenant,
		"workspace": scope.Workspace,
		"dryRun":    p.config.DryRun,
	})

	var err error
	if mode == policy.ModeDanglingCleanup {
		err = r.purgeOntologies(ctx)
	} else {
		err = r.purgeGraphs(ctx)
	}
	// In-flight drops always finish before the report is sealed.
	_ = r.group.Wait()
	if cause := context.Cause(ctx); storeerr.IsConnection(cause) {
		err = cause
	}

	r.finish(err)
	if p.metrics != nil {
		p.metrics.RecordRun("purge", r.report.FinishedAt.Sub(r.report.StartedAt).Seconds(), err == nil)
	}

	if err != nil {
		if ctxErr := parent.Err(); ctxErr != nil {
			logger.Warnf("purge cancelled", map[string]any{"error": ctxErr})
			return r.report, ctxErr
		}
		logger.Errorf("purge aborted", map[string]any{"error": err})
		return r.report, err
	}
	return r.report, nil
}

func knownMode(mode policy.Mode) bool {
	for _, m := range policy.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// containsHint narrows server-side enumeration. The policy still checks
// every graph, so the hint only has to be a superset.
func containsHint(scope policy.Scope) string {
	switch {
	case scope.Workspace != "":
		return "/workspace/" + scope.Workspace
	case scope.Tenant != "":
		return "/tenant/" + scope.Tenant
	default:
		return ""
	}
}

// run holds the state of one Purge call.
type run struct {
	purger *Purger
	mode   policy.Mode
	scope  policy.Scope
	logger *logging.Logger

	group errgroup.Group
	abort context.CancelCauseFunc

	mu     sync.Mutex
	report *report.PurgeReport
}

func (r *run) purgeGraphs(ctx context.Context) error {
	cur := scan.NewGraphCursor(r.purger.store, containsHint(r.scope), r.purger.config.PageSize)
	return scan.ForEach(ctx, cur, func(g triplestore.NamedGraph) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		c := classify.Classify(g.IRI)
		r.decide(ctx, g.IRI, c, r.purger.policy.ShouldDelete(policy.Unit{GraphIRI: g.IRI}, c, r.mode, r.scope))
		return nil
	})
}

// purgeOntologies walks ontology records in (graph, ontology) order. An
// ontology yields one record per label and comment pair and is dangling when
// any of them matches. A graph holding several
// ontologies is dropped only when every one of them is dangling.
func (r *run) purgeOntologies(ctx context.Context) error {
	cur := scan.NewOntologyCursor(r.purger.store, containsHint(r.scope), r.purger.config.PageSize)

	var (
		graph      string
		class      classify.Classification
		ontologies map[string]bool
	)
	flush := func() {
		if graph == "" {
			return
		}
		dangling := len(ontologies) > 0
		for _, d := range ontologies {
			dangling = dangling && d
		}
		r.decide(ctx, graph, class, dangling)
		graph = ""
	}

	err := scan.ForEach(ctx, cur, func(rec triplestore.OntologyRecord) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if rec.GraphIRI != graph {
			flush()
			graph = rec.GraphIRI
			class = classify.Classify(rec.GraphIRI)
			ontologies = make(map[string]bool)
		}
		unit := policy.Unit{
			GraphIRI:   rec.GraphIRI,
			OntologyID: rec.OntologyID,
			Label:      rec.Label,
			Comment:    rec.Comment,
		}
		key := rec.IRI
		if key == "" {
			key = rec.OntologyID
		}
		del := r.purger.policy.ShouldDelete(unit, class, r.mode, r.scope)
		ontologies[key] = ontologies[key] || del
		r.logger.Debugf("ontology checked", map[string]any{
			"graph":    rec.GraphIRI,
			"ontology": rec.OntologyID,
			"scope":    rec.Scope,
			"dangling": del,
		})
		return nil
	})
	if err != nil {
		return err
	}
	flush()
	return nil
}

// decide records the decision for one graph and schedules the drop.
func (r *run) decide(ctx context.Context, iri string, c classify.Classification, del bool) {
	p := r.purger
	if p.metrics != nil {
		p.metrics.RecordGraphClassified(string(c.Category))
	}
	r.logger.Debugf("purge decision", map[string]any{
		"graph":     iri,
		"category":  string(c.Category),
		"ambiguous": c.Ambiguous,
		"delete":    del,
	})

	r.mu.Lock()
	if c.Ambiguous {
		r.report.Ambiguous = append(r.report.Ambiguous, iri)
	}
	switch {
	case !del:
		r.report.Preserved = append(r.report.Preserved, iri)
	case p.config.DryRun:
		r.report.Planned = append(r.report.Planned, iri)
	}
	r.mu.Unlock()

	switch {
	case !del:
		r.outcome(OutcomePreserved)
		return
	case p.config.DryRun:
		r.outcome(OutcomePlanned)
		return
	}

	r.group.Go(func() error {
		r.drop(ctx, iri)
		return nil
	})
}

func (r *run) drop(ctx context.Context, iri string) {
	// Queued drops are not attempted once the run is cancelled or the store
	// is lost; the graph is reported as failed with the cause.
	if ctx.Err() != nil {
		r.fail(iri, context.Cause(ctx))
		return
	}
	if err := r.purger.store.DropGraph(ctx, iri); err != nil {
		r.fail(iri, err)
		if storeerr.IsConnection(err) {
			r.abort(err)
		}
		return
	}

	r.mu.Lock()
	r.report.Deleted = append(r.report.Deleted, iri)
	r.mu.Unlock()
	r.outcome(OutcomeDeleted)
	r.logger.Infof("graph dropped", map[string]any{"graph": iri})
}

func (r *run) fail(iri string, err error) {
	itemErr := &storeerr.ItemError{Op: "drop-graph", ID: iri, Err: err}

	r.mu.Lock()
	r.report.Failed = append(r.report.Failed, report.Failure(iri, err))
	r.mu.Unlock()
	r.outcome(OutcomeFailed)
	r.logger.Warnf("graph drop failed", map[string]any{"graph": iri, "error": itemErr})
}

func (r *run) outcome(o string) {
	if r.purger.metrics != nil {
		r.purger.metrics.RecordGraphOutcome(o)
	}
}

// finish seals the report. Concurrent drops complete in any order, so the
// lists are sorted for stable output.
func (r *run) finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sort.Strings(r.report.Deleted)
	sort.Strings(r.report.Planned)
	sort.Slice(r.report.Failed, func(i, j int) bool {
		return r.report.Failed[i].ID < r.report.Failed[j].ID
	})
	if err != nil {
		r.report.Aborted = err.Error()
	}
	r.report.FinishedAt = time.Now().UTC()
}
