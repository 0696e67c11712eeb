package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/klauspost/compress/gzip"

	"github.com/dray-io/storejanitor/internal/objectstore"
)

// ArchiveSink stores gzip-compressed JSON reports in object storage and
// keeps at most Keep reports per kind.
type ArchiveSink struct {
	store  objectstore.Store
	prefix string
	keep   int
}

// NewArchiveSink creates an archive sink. keep <= 0 disables pruning.
func NewArchiveSink(store objectstore.Store, prefix string, keep int) *ArchiveSink {
	return &ArchiveSink{store: store, prefix: prefix, keep: keep}
}

func (s *ArchiveSink) Name() string { return "archive" }

// Publish writes the report and prunes old ones.
func (s *ArchiveSink) Publish(ctx context.Context, r Report) error {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if err := json.NewEncoder(zw).Encode(r); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compress report: %w", err)
	}

	key := objectstore.ReportKey(s.prefix, r.Kind(), r.Started(), r.ID())
	err := s.store.Put(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), objectstore.PutOptions{
		ContentType:     "application/json",
		ContentEncoding: "gzip",
		Metadata:        map[string]string{"kind": r.Kind(), "run-id": r.ID()},
		IfNoneMatch:     "*",
	})
	if err != nil {
		return err
	}

	if s.keep > 0 {
		return s.prune(ctx, r.Kind())
	}
	return nil
}

// prune deletes the oldest reports of kind beyond the retention count.
func (s *ArchiveSink) prune(ctx context.Context, kind string) error {
	infos, err := s.store.List(ctx, objectstore.ReportPrefix(s.prefix, kind))
	if err != nil {
		return fmt.Errorf("list archived reports: %w", err)
	}
	if len(infos) <= s.keep {
		return nil
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if !infos[i].LastModified.Equal(infos[j].LastModified) {
			return infos[i].LastModified.Before(infos[j].LastModified)
		}
		return infos[i].Key < infos[j].Key
	})
	for _, info := range infos[:len(infos)-s.keep] {
		if err := s.store.Delete(ctx, info.Key); err != nil {
			return fmt.Errorf("prune %s: %w", info.Key, err)
		}
	}
	return nil
}

// ReadArchived loads an archived report into v.
func ReadArchived(ctx context.Context, store objectstore.Store, key string, v any) error {
	rc, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	zr, err := gzip.NewReader(rc)
	if err != nil {
		return fmt.Errorf("open archived report %s: %w", key, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("read archived report %s: %w", key, err)
	}
	return json.Unmarshal(data, v)
}
