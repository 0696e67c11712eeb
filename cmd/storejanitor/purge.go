package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dray-io/storejanitor/internal/metrics"
	"github.com/dray-io/storejanitor/internal/policy"
	"github.com/dray-io/storejanitor/internal/purge"
	"github.com/dray-io/storejanitor/internal/triplestore"
)

type purgeOptions struct {
	mode        string
	tenant      string
	workspace   string
	deny        []string
	dryRun      bool
	concurrency int
}

func newPurgeCommand(root *rootOptions) *cobra.Command {
	opts := &purgeOptions{}

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete named graphs from the triple store",
		Long: `Delete named graphs selected by a purge mode.

Modes:
  data-only         delete every graph except ontology graphs
  workspace-reset   delete schema and data of one workspace (needs --workspace)
  dangling-cleanup  delete ontologies on the denylist or marked as placeholders`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPurge(cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", "", "purge mode ("+modeNames()+")")
	cmd.Flags().StringVar(&opts.tenant, "tenant", "", "only touch graphs of this tenant")
	cmd.Flags().StringVar(&opts.workspace, "workspace", "", "only touch graphs of this workspace")
	cmd.Flags().StringSliceVar(&opts.deny, "deny", nil, "extra dangling ontology ids or labels")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report what would be deleted without deleting")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "maximum concurrent deletes (default from config)")
	_ = cmd.MarkFlagRequired("mode")

	return cmd
}

func modeNames() string {
	names := make([]string, len(policy.Modes))
	for i, m := range policy.Modes {
		names[i] = string(m)
	}
	return strings.Join(names, "|")
}

func runPurge(cmd *cobra.Command, root *rootOptions, opts *purgeOptions) error {
	ctx := cmd.Context()

	mode, err := policy.ParseMode(opts.mode)
	if err != nil {
		return usageError("invalid mode", err)
	}
	scope := policy.Scope{Tenant: opts.tenant, Workspace: opts.workspace}
	if mode == policy.ModeWorkspaceReset && scope.Workspace == "" {
		return usageError("workspace-reset needs --workspace", purge.ErrScopeRequired)
	}
	if cmd.Flags().Changed("concurrency") && opts.concurrency < 1 {
		return usageError(fmt.Sprintf("--concurrency must be at least 1, got %d", opts.concurrency), nil)
	}

	pol := root.cfg.Purge.Policy
	pol.Denylist = append(append([]string(nil), pol.Denylist...), opts.deny...)

	pc := purge.Config{
		Concurrency: root.cfg.Purge.Concurrency,
		PageSize:    root.cfg.Purge.PageSize,
		DryRun:      opts.dryRun,
	}
	if cmd.Flags().Changed("concurrency") {
		pc.Concurrency = opts.concurrency
	}

	client, err := root.backend.TripleStore(ctx, root.cfg)
	if err != nil {
		root.logger.Errorf("triple store unreachable", map[string]any{"error": err.Error()})
		root.finish(ctx, cmd, nil)
		return failure("connect triple store", err)
	}
	store := triplestore.NewInstrumentedStore(client, root.stores.Recorder(metrics.StoreTriple))

	rep, err := purge.New(store, pol, pc).
		WithLogger(root.logger).
		WithMetrics(root.janitor).
		Purge(ctx, mode, scope)

	switch {
	case errors.Is(err, purge.ErrScopeRequired), errors.Is(err, policy.ErrUnknownMode):
		return usageError("invalid purge request", err)
	case rep == nil:
		root.finish(ctx, cmd, nil)
	default:
		root.finish(ctx, cmd, rep)
	}
	if err != nil {
		return failure("purge did not complete", err)
	}
	return nil
}
