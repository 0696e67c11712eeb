package reconcile

import (
	"context"
	"fmt"

	"github.com/dray-io/storejanitor/internal/kvstore"
	"github.com/dray-io/storejanitor/internal/report"
	"github.com/dray-io/storejanitor/internal/scan"
	"github.com/dray-io/storejanitor/internal/storeerr"
)

// reconcileChunks walks every document's chunk set, removing members whose
// chunk hash is gone and flagging chunks owned by someone else.
func (r *indexRun) reconcileChunks(ctx context.Context) error {
	j := r.janitor
	err := scan.ForEach(ctx, scan.NewKeyCursor(j.store, j.keys.DocumentPattern(), j.batch), func(key string) error {
		docID, ok := j.keys.DocumentIDFromKey(key)
		if !ok {
			return nil
		}
		typ, err := j.store.Type(ctx, key)
		if err != nil {
			return r.itemFailed(docID, &storeerr.ItemError{Op: "type", ID: key, Err: err})
		}
		if typ != kvstore.TypeHash {
			return nil
		}

		r.report.Scanned++
		doc, err := j.store.HGetAll(ctx, key)
		if err != nil {
			return r.itemFailed(docID, &storeerr.ItemError{Op: "hgetall", ID: key, Err: err})
		}
		return r.reconcileDocument(ctx, docID, doc)
	})
	if err != nil {
		return fmt.Errorf("enumerate documents: %w", err)
	}
	return nil
}

func (r *indexRun) reconcileDocument(ctx context.Context, docID string, doc map[string]string) error {
	j := r.janitor
	setKey := j.keys.ChunkSetKey(docID)

	err := scan.ForEach(ctx, scan.NewMemberCursor(j.store, setKey, j.batch), func(chunkID string) error {
		chunkKey := j.keys.ChunkKey(chunkID)
		chunk, err := j.store.HGetAll(ctx, chunkKey)
		if err != nil {
			return r.itemFailed(chunkID, &storeerr.ItemError{Op: "hgetall", ID: chunkKey, Err: err})
		}

		if len(chunk) == 0 {
			n, err := j.store.SRem(ctx, setKey, chunkID)
			if err != nil {
				return r.itemFailed(chunkID, &storeerr.ItemError{Op: "srem", ID: setKey, Err: err})
			}
			if n > 0 {
				r.removed(FamilyChunks, chunkID)
				r.logger.Infof("orphan chunk removed", map[string]any{"documentId": docID, "chunkId": chunkID})
			}
			return nil
		}

		r.checkOwner(docID, chunkID, kvstore.FieldDocumentID, docID, chunk[kvstore.FieldDocumentID])
		r.checkOwner(docID, chunkID, kvstore.FieldWorkspaceID, doc[kvstore.FieldWorkspaceID], chunk[kvstore.FieldWorkspaceID])
		return nil
	})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return ctx.Err()
	case storeerr.IsConnection(err):
		return err
	default:
		r.fail(docID, err)
		return nil
	}
}

// checkOwner reports a mismatch when both sides carry the field and differ.
func (r *indexRun) checkOwner(docID, chunkID, field, expected, actual string) {
	if expected == "" || actual == "" || expected == actual {
		return
	}
	r.report.Mismatches = append(r.report.Mismatches, report.ChunkMismatch{
		DocumentID: docID,
		ChunkID:    chunkID,
		Field:      field,
		Expected:   expected,
		Actual:     actual,
	})
	if m := r.janitor.metrics; m != nil {
		m.RecordChunkMismatch()
	}
	r.logger.Warnf("chunk owner mismatch", map[string]any{
		"documentId": docID,
		"chunkId":    chunkID,
		"field":      field,
		"expected":   expected,
		"actual":     actual,
	})
}
