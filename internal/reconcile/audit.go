package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dray-io/storejanitor/internal/kvstore"
	"github.com/dray-io/storejanitor/internal/report"
	"github.com/dray-io/storejanitor/internal/scan"
)

// Audit inspects the job indexes without changing anything. It lists ids
// indexed without a job hash (Dangling) and workspace-set memberships that
// disagree with the job's own workspace (Misfiled). Dangling ids are the
// input for Reconcile.
func (j *Janitor) Audit(ctx context.Context) (*report.JobAudit, error) {
	logger, runID := j.runLogger(ctx)
	rep := report.NewJobAudit(runID)
	dangling := make(map[string]struct{})

	err := j.audit(ctx, rep, dangling)

	rep.Dangling = make([]string, 0, len(dangling))
	for id := range dangling {
		rep.Dangling = append(rep.Dangling, id)
	}
	sort.Strings(rep.Dangling)
	rep.FinishedAt = time.Now().UTC()
	if j.metrics != nil {
		j.metrics.RecordRun("audit", rep.FinishedAt.Sub(rep.StartedAt).Seconds(), err == nil)
	}

	if err != nil {
		rep.Aborted = err.Error()
		logger.Errorf("job audit aborted", map[string]any{"error": err})
		return rep, err
	}
	logger.Infof("job audit finished", rep.Summary())
	return rep, nil
}

func (j *Janitor) audit(ctx context.Context, rep *report.JobAudit, dangling map[string]struct{}) error {
	err := scan.ForEach(ctx, scan.NewMemberCursor(j.store, j.keys.JobsAllSet, j.batch), func(id string) error {
		rep.Scanned++
		exists, err := j.store.Exists(ctx, j.keys.JobKey(id))
		if err != nil {
			return fmt.Errorf("check job %s: %w", id, err)
		}
		if !exists {
			dangling[id] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return err
	}

	setKeys, err := j.workspaceJobSets(ctx)
	if err != nil {
		return err
	}
	for _, setKey := range setKeys {
		ws, _ := j.keys.WorkspaceFromJobsKey(setKey)
		err := scan.ForEach(ctx, scan.NewMemberCursor(j.store, setKey, j.batch), func(id string) error {
			rep.Scanned++
			job, err := j.store.HGetAll(ctx, j.keys.JobKey(id))
			if err != nil {
				return fmt.Errorf("read job %s: %w", id, err)
			}
			if len(job) == 0 {
				dangling[id] = struct{}{}
				return nil
			}
			if owner := job[kvstore.FieldWorkspaceID]; owner != "" && owner != ws {
				rep.Misfiled = append(rep.Misfiled, report.Misfiled{
					JobID:           id,
					SetWorkspace:    ws,
					RecordWorkspace: owner,
				})
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
