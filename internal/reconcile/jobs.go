package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/dray-io/storejanitor/internal/scan"
	"github.com/dray-io/storejanitor/internal/storeerr"
)

// reconcileJobs counts job records and cascades the requested ids out of
// every job index.
func (r *indexRun) reconcileJobs(ctx context.Context, ids []string) error {
	j := r.janitor

	err := scan.ForEach(ctx, scan.NewKeyCursor(j.store, j.keys.JobPattern(), j.batch), func(key string) error {
		if _, ok := j.keys.JobIDFromKey(key); ok {
			r.report.Scanned++
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("enumerate jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	setKeys, err := j.workspaceJobSets(ctx)
	if err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.removeJob(ctx, id, setKeys); err != nil {
			return fmt.Errorf("remove job %s: %w", id, err)
		}
	}
	return nil
}

// workspaceJobSets lists the workspace-scoped job set keys.
func (j *Janitor) workspaceJobSets(ctx context.Context) ([]string, error) {
	keys, err := j.collectKeys(ctx, j.keys.WorkspaceJobsPattern())
	if err != nil {
		return nil, fmt.Errorf("enumerate workspace job sets: %w", err)
	}
	out := keys[:0]
	for _, k := range keys {
		if _, ok := j.keys.WorkspaceFromJobsKey(k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

// removeJob deletes the job hash, then removes the id from the global set
// and every workspace set. Each step is attempted even when an earlier one
// failed or found nothing. A connection error stops the cascade and is
// returned; steps that already took effect are still counted.
func (r *indexRun) removeJob(ctx context.Context, id string, setKeys []string) error {
	j := r.janitor
	var (
		took        bool
		hashDeleted bool
		errs        []error
		connErr     error
	)

	// step records err and reports whether the cascade may go on.
	step := func(op, key string, err error) bool {
		itemErr := &storeerr.ItemError{Op: op, ID: key, Err: err}
		if storeerr.IsConnection(err) {
			connErr = itemErr
			return false
		}
		errs = append(errs, itemErr)
		return true
	}

	hashKey := j.keys.JobKey(id)
	exists, err := j.store.Exists(ctx, hashKey)
	switch {
	case err != nil:
		step("exists", hashKey, err)
	case exists:
		n, err := j.store.Del(ctx, hashKey)
		if err != nil {
			step("del", hashKey, err)
		} else if n > 0 {
			took = true
			hashDeleted = true
		}
	}

	if connErr == nil {
		for _, setKey := range append([]string{j.keys.JobsAllSet}, setKeys...) {
			n, err := j.store.SRem(ctx, setKey, id)
			if err != nil {
				if !step("srem", setKey, err) {
					break
				}
				continue
			}
			if n > 0 {
				took = true
				r.logger.Debugf("job removed from index", map[string]any{"jobId": id, "set": setKey})
			}
		}
	}

	if took {
		r.removed(FamilyJobs, id)
		r.logger.Infof("job reconciled", map[string]any{"jobId": id, "hashDeleted": hashDeleted})
	}
	if connErr != nil {
		return connErr
	}
	if len(errs) > 0 {
		r.fail(id, errors.Join(errs...))
	}
	return nil
}
