// Package aggregate computes time-bucketed traffic counts and scope-usage
// tallies from raw event logs. It is the client-side fallback for backends
// that do not aggregate server-side.
package aggregate

import (
	"sort"
	"time"

	"github.com/agentidp/agentwatch/internal/model"
)

// rangeRule maps a lookback span to a bucket width and label layout.
// Rules are ordered by span; selection is smallest fit. Widths are
// non-decreasing down the table, which bounds the bucket count for any span
// to span/width regardless of how many raw events arrive.
type rangeRule struct {
	maxSpan time.Duration
	width   time.Duration
	layout  string
}

var rangeRules = []rangeRule{
	{15 * time.Minute, time.Minute, "3:04 PM"},
	{time.Hour, 5 * time.Minute, "3:04 PM"},
	{6 * time.Hour, 30 * time.Minute, "3:04 PM"},
	{48 * time.Hour, time.Hour, "Jan 2 3 PM"},
	{14 * 24 * time.Hour, 24 * time.Hour, "Jan 2"},
}

// ruleFor selects the smallest rule covering span. Spans past the end of the
// table take the coarsest rule.
func ruleFor(span time.Duration) rangeRule {
	for _, r := range rangeRules {
		if span <= r.maxSpan {
			return r
		}
	}
	return rangeRules[len(rangeRules)-1]
}

// BucketWidth reports the bucket width the table assigns to a span.
func BucketWidth(span time.Duration) time.Duration {
	return ruleFor(span).width
}

// Traffic buckets audit events from the window [now-span, now] into
// fixed-width granted/denied counts, ordered by bucket start instant.
// Ordering is computed from the underlying time, never from the rendered
// label: clock-face labels like "4:50 PM" do not sort lexically.
func Traffic(events []model.AuditEvent, span time.Duration, now time.Time) []model.TrafficBucket {
	if len(events) == 0 {
		return []model.TrafficBucket{}
	}

	rule := ruleFor(span)
	cutoff := now.Add(-span)

	counts := make(map[time.Time]*model.TrafficBucket)
	for _, ev := range events {
		if ev.OccurredAt.Before(cutoff) || ev.OccurredAt.After(now) {
			continue
		}
		start := ev.OccurredAt.Truncate(rule.width)
		bucket, ok := counts[start]
		if !ok {
			bucket = &model.TrafficBucket{Start: start, Label: start.Format(rule.layout)}
			counts[start] = bucket
		}
		// BLOCKED and FAILED stay distinct per event, but both count as
		// denied in the aggregate.
		if ev.Status == model.StatusSuccess {
			bucket.Granted++
		} else {
			bucket.Denied++
		}
	}

	buckets := make([]model.TrafficBucket, 0, len(counts))
	for _, b := range counts {
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets
}

// FromServerRows converts server-computed traffic aggregates into the
// canonical bucket shape, relabeled and reordered with the same rules the
// client-side path uses.
func FromServerRows(rows []model.RawTrafficRow, span time.Duration) []model.TrafficBucket {
	rule := ruleFor(span)
	buckets := make([]model.TrafficBucket, 0, len(rows))
	for _, row := range rows {
		buckets = append(buckets, model.TrafficBucket{
			Start:   row.Start,
			Label:   row.Start.Format(rule.layout),
			Granted: row.Granted,
			Denied:  row.Denied,
		})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].Start.Before(buckets[j].Start)
	})
	return buckets
}
