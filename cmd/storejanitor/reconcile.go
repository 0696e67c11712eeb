package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dray-io/storejanitor/internal/kvstore"
	"github.com/dray-io/storejanitor/internal/metrics"
	"github.com/dray-io/storejanitor/internal/objectstore"
	"github.com/dray-io/storejanitor/internal/reconcile"
	"github.com/dray-io/storejanitor/internal/report"
)

func newReconcileCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Remove index entries that point at missing records",
	}
	cmd.AddCommand(newReconcileJobsCommand(root))
	cmd.AddCommand(newReconcileChunksCommand(root))
	return cmd
}

type reconcileJobsOptions struct {
	ids         []string
	fromAudit   bool
	auditReport string
}

func newReconcileJobsCommand(root *rootOptions) *cobra.Command {
	opts := &reconcileJobsOptions{}

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Remove job ids from the job indexes",
		Long: `Remove job ids from the global and per-workspace job indexes and delete
their job records.

Ids come from --id, from a read-only audit (--from-audit), from the dangling
list of an archived audit report (--audit-report), or any mix of these.
Without any of them, only the index scan runs and nothing is removed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcileJobs(cmd, root, opts)
		},
	}
	cmd.Flags().StringSliceVar(&opts.ids, "id", nil, "job id to remove (repeatable)")
	cmd.Flags().BoolVar(&opts.fromAudit, "from-audit", false, "also remove ids an audit finds dangling")
	cmd.Flags().StringVar(&opts.auditReport, "audit-report", "", "object key of an archived audit whose dangling ids are removed")
	return cmd
}

func newReconcileChunksCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chunks",
		Short: "Remove chunk ids whose chunk record is missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReconcile(cmd, root, reconcile.Request{Families: []reconcile.Family{reconcile.FamilyChunks}})
		},
	}
}

func runReconcileJobs(cmd *cobra.Command, root *rootOptions, opts *reconcileJobsOptions) error {
	ctx := cmd.Context()
	req := reconcile.Request{
		JobIDs:   opts.ids,
		Families: []reconcile.Family{reconcile.FamilyJobs},
	}
	if opts.auditReport != "" {
		ids, err := archivedDangling(ctx, root, opts.auditReport)
		if err != nil {
			root.finish(ctx, cmd, nil)
			return failure("read archived audit", err)
		}
		req.JobIDs = append(req.JobIDs, ids...)
	}
	if !opts.fromAudit {
		return runReconcile(cmd, root, req)
	}

	store, err := openKV(cmd, root)
	if err != nil {
		return err
	}
	defer store.Close()

	audit, err := newJanitor(root, store).Audit(ctx)
	if err != nil {
		finishAudit(ctx, cmd, root, audit)
		return failure("job audit did not complete", err)
	}
	root.logger.Infof("audit feeding reconciliation", map[string]any{
		"dangling": len(audit.Dangling),
		"misfiled": len(audit.Misfiled),
	})
	req.JobIDs = append(req.JobIDs, audit.Dangling...)
	return reconcileWith(cmd, root, store, req)
}

// archivedDangling loads the dangling ids of an audit report written by the
// archive sink.
func archivedDangling(ctx context.Context, root *rootOptions, key string) ([]string, error) {
	store, err := root.backend.ArchiveStore(ctx, root.cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	var audit report.JobAudit
	instrumented := objectstore.NewInstrumentedStore(store, root.stores.Recorder(metrics.StoreArchive))
	if err := report.ReadArchived(ctx, instrumented, key, &audit); err != nil {
		return nil, err
	}
	if audit.Aborted != "" {
		root.logger.Warnf("archived audit is partial", map[string]any{"key": key, "aborted": audit.Aborted})
	}
	root.logger.Infof("archived audit feeding reconciliation", map[string]any{
		"key":      key,
		"runId":    audit.RunID,
		"dangling": len(audit.Dangling),
	})
	return audit.Dangling, nil
}

func runReconcile(cmd *cobra.Command, root *rootOptions, req reconcile.Request) error {
	store, err := openKV(cmd, root)
	if err != nil {
		return err
	}
	defer store.Close()
	return reconcileWith(cmd, root, store, req)
}

func reconcileWith(cmd *cobra.Command, root *rootOptions, store kvstore.Store, req reconcile.Request) error {
	ctx := cmd.Context()
	rep, err := newJanitor(root, store).Reconcile(ctx, req)
	if rep != nil {
		root.finish(ctx, cmd, rep)
	} else {
		root.finish(ctx, cmd, nil)
	}
	if err != nil {
		return failure("reconciliation did not complete", err)
	}
	return nil
}

// openKV connects the configured key-value driver and wraps it with
// per-operation metrics.
func openKV(cmd *cobra.Command, root *rootOptions) (kvstore.Store, error) {
	ctx := cmd.Context()
	store, err := root.backend.KVStore(ctx, root.cfg)
	if err != nil {
		root.logger.Errorf("key-value store unreachable", map[string]any{
			"driver": root.cfg.KeyValue.Driver,
			"error":  err.Error(),
		})
		root.finish(ctx, cmd, nil)
		return nil, failure("connect key-value store", err)
	}
	return kvstore.NewInstrumentedStore(store, root.stores.Recorder(metrics.StoreKV)), nil
}

func newJanitor(root *rootOptions, store kvstore.Store) *reconcile.Janitor {
	return reconcile.New(store, reconcile.Config{
		Keys:      root.cfg.Keys,
		BatchSize: root.cfg.KeyValue.BatchSize,
	}).WithLogger(root.logger).WithMetrics(root.janitor)
}
