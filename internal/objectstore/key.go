package objectstore

import (
	"fmt"
	"strings"
	"time"
)

// ReportKey returns the archive key for a report:
// <prefix>/<kind>/date=YYYY/MM/DD/<runID>.json.gz
func ReportKey(prefix, kind string, startedAt time.Time, runID string) string {
	prefix = strings.Trim(prefix, "/")
	day := startedAt.UTC().Format("2006/01/02")
	key := fmt.Sprintf("%s/date=%s/%s.json.gz", kind, day, runID)
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

// ReportPrefix returns the listing prefix for one report kind.
func ReportPrefix(prefix, kind string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return kind + "/"
	}
	return prefix + "/" + kind + "/"
}

// NormalizeKey strips an s3://bucket/ prefix to return a bucket-relative key.
// Other keys are returned unchanged.
func NormalizeKey(path string) string {
	if trimmed, ok := strings.CutPrefix(path, "s3://"); ok {
		if _, key, found := strings.Cut(trimmed, "/"); found {
			return key
		}
	}
	return path
}
