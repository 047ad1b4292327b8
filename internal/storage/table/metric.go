// Package table holds the entities written by the persistence pipeline.
//
// Every entity has a merge key and a Merge method. Merge is associative and
// commutative, so a worker may combine records in any order and any grouping
// and reach the same stored value.
package table

import (
	"strconv"
	"strings"
	"time"
)

// Source values distinguish which side of a call reported a metric.
const (
	SourceCaller = 0
	SourceCallee = 1
)

// MinuteBucket returns t as a minute precision yyyyMMddHHmm number.
func MinuteBucket(t time.Time) int64 {
	t = t.UTC()
	return int64(t.Year())*100000000 +
		int64(t.Month())*1000000 +
		int64(t.Day())*10000 +
		int64(t.Hour())*100 +
		int64(t.Minute())
}

// Metric holds the counters shared by application level metrics.
type Metric struct {
	Calls            int64 `json:"calls"`
	ErrorCalls       int64 `json:"error_calls"`
	DurationSum      int64 `json:"duration_sum"`
	ErrorDurationSum int64 `json:"error_duration_sum"`
	MinDuration      int64 `json:"min_duration"`
	MaxDuration      int64 `json:"max_duration"`
	SatisfiedCount   int64 `json:"satisfied_count"`
	ToleratingCount  int64 `json:"tolerating_count"`
	FrustratedCount  int64 `json:"frustrated_count"`
}

// Combine adds counters and keeps the duration extremes. A metric without
// calls does not take part in the minimum.
func (m Metric) Combine(o Metric) Metric {
	out := Metric{
		Calls:            m.Calls + o.Calls,
		ErrorCalls:       m.ErrorCalls + o.ErrorCalls,
		DurationSum:      m.DurationSum + o.DurationSum,
		ErrorDurationSum: m.ErrorDurationSum + o.ErrorDurationSum,
		MaxDuration:      max(m.MaxDuration, o.MaxDuration),
		SatisfiedCount:   m.SatisfiedCount + o.SatisfiedCount,
		ToleratingCount:  m.ToleratingCount + o.ToleratingCount,
		FrustratedCount:  m.FrustratedCount + o.FrustratedCount,
	}

	switch {
	case m.Calls == 0:
		out.MinDuration = o.MinDuration
	case o.Calls == 0:
		out.MinDuration = m.MinDuration
	default:
		out.MinDuration = min(m.MinDuration, o.MinDuration)
	}
	return out
}

func joinKey(parts ...int64) string {
	var sb strings.Builder
	for i, p := range parts {
		if i > 0 {
			sb.WriteByte('_')
		}
		sb.WriteString(strconv.FormatInt(p, 10))
	}
	return sb.String()
}

// ApplicationReferenceMetric aggregates calls between two applications in
// one minute.
type ApplicationReferenceMetric struct {
	TimeBucket          int64 `json:"time_bucket"`
	SourceValue         int   `json:"source_value"`
	FrontApplicationID  int   `json:"front_application_id"`
	BehindApplicationID int   `json:"behind_application_id"`
	Metric
}

// Key is timeBucket_sourceValue_front_behind.
func (m *ApplicationReferenceMetric) Key() string {
	return joinKey(m.TimeBucket, int64(m.SourceValue), int64(m.FrontApplicationID), int64(m.BehindApplicationID))
}

// Merge returns a new record combining m and other. Both must share a key.
func (m *ApplicationReferenceMetric) Merge(other *ApplicationReferenceMetric) *ApplicationReferenceMetric {
	merged := *m
	merged.Metric = m.Metric.Combine(other.Metric)
	return &merged
}

// ApplicationMetric aggregates calls served by one application in one minute.
type ApplicationMetric struct {
	TimeBucket    int64 `json:"time_bucket"`
	SourceValue   int   `json:"source_value"`
	ApplicationID int   `json:"application_id"`
	Metric
}

// Key is timeBucket_sourceValue_application.
func (m *ApplicationMetric) Key() string {
	return joinKey(m.TimeBucket, int64(m.SourceValue), int64(m.ApplicationID))
}

// Merge returns a new record combining m and other. Both must share a key.
func (m *ApplicationMetric) Merge(other *ApplicationMetric) *ApplicationMetric {
	merged := *m
	merged.Metric = m.Metric.Combine(other.Metric)
	return &merged
}
