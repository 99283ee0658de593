package fact

import (
	"fmt"
	"time"
)

// BucketGranularity controls how observation timestamps collapse into fact
// table buckets. Exactly one fact row exists per (variant, bucket).
type BucketGranularity string

const (
	BucketWeek  BucketGranularity = "week"
	BucketDay   BucketGranularity = "day"
	BucketMonth BucketGranularity = "month"
)

// ParseGranularity validates a configured granularity string.
func ParseGranularity(s string) (BucketGranularity, error) {
	switch BucketGranularity(s) {
	case BucketWeek, BucketDay, BucketMonth:
		return BucketGranularity(s), nil
	case "":
		return BucketWeek, nil
	default:
		return "", fmt.Errorf("unknown bucket granularity %q (want week, day, or month)", s)
	}
}

// Bucket maps an observation time to its bucket label. Weekly buckets use the
// ISO 8601 week, so late-December dates can land in week 1 of the next year.
func Bucket(t time.Time, g BucketGranularity) string {
	t = t.UTC()
	switch g {
	case BucketDay:
		return t.Format("2006-01-02")
	case BucketMonth:
		return t.Format("2006-01")
	default:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	}
}
