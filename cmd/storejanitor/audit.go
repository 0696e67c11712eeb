package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dray-io/storejanitor/internal/report"
)

func newAuditCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read-only consistency checks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "jobs",
		Short: "List job index entries without a job record or filed under the wrong workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAuditJobs(cmd, root)
		},
	})
	return cmd
}

func runAuditJobs(cmd *cobra.Command, root *rootOptions) error {
	ctx := cmd.Context()
	store, err := openKV(cmd, root)
	if err != nil {
		return err
	}
	defer store.Close()

	rep, err := newJanitor(root, store).Audit(ctx)
	finishAudit(ctx, cmd, root, rep)
	if err != nil {
		return failure("job audit did not complete", err)
	}
	return nil
}

// finishAudit publishes rep, which is partial when the audit stopped early.
func finishAudit(ctx context.Context, cmd *cobra.Command, root *rootOptions, rep *report.JobAudit) {
	if rep == nil {
		root.finish(ctx, cmd, nil)
		return
	}
	root.finish(ctx, cmd, rep)
}
