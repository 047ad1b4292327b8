package table

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/GriffinCanCode/apm-collector/internal/shared/id"
)

func TestMinuteBucket(t *testing.T) {
	ts := time.Date(2017, time.November, 3, 14, 7, 59, 0, time.UTC)
	if got := MinuteBucket(ts); got != 201711031407 {
		t.Fatalf("MinuteBucket = %d, want 201711031407", got)
	}

	// buckets are UTC regardless of the input location
	local := ts.In(time.FixedZone("UTC+8", 8*3600))
	if got := MinuteBucket(local); got != 201711031407 {
		t.Fatalf("MinuteBucket(local) = %d, want 201711031407", got)
	}
}

func TestKeys(t *testing.T) {
	ref := &ApplicationReferenceMetric{TimeBucket: 201711031407, SourceValue: SourceCallee, FrontApplicationID: 2, BehindApplicationID: 3}
	if got := ref.Key(); got != "201711031407_1_2_3" {
		t.Errorf("reference key = %q", got)
	}

	app := &ApplicationMetric{TimeBucket: 201711031407, SourceValue: SourceCaller, ApplicationID: 9}
	if got := app.Key(); got != "201711031407_0_9" {
		t.Errorf("application key = %q", got)
	}

	gt := &GlobalTrace{SegmentID: "seg-1", GlobalTraceID: id.NewDistributedTraceID(id.NewID(1, 2, 3))}
	if got := gt.Key(); got != "seg-1_1.2.3" {
		t.Errorf("global trace key = %q", got)
	}
}

func metric(calls, errs, sum, minD, maxD int64) Metric {
	return Metric{
		Calls:           calls,
		ErrorCalls:      errs,
		DurationSum:     sum,
		MinDuration:     minD,
		MaxDuration:     maxD,
		SatisfiedCount:  calls - errs,
		FrustratedCount: errs,
	}
}

func TestMetricCombine(t *testing.T) {
	a := metric(5, 1, 500, 20, 200)
	b := metric(3, 0, 90, 10, 40)

	want := Metric{
		Calls:           8,
		ErrorCalls:      1,
		DurationSum:     590,
		MinDuration:     10,
		MaxDuration:     200,
		SatisfiedCount:  7,
		FrustratedCount: 1,
	}
	if diff := cmp.Diff(want, a.Combine(b)); diff != "" {
		t.Fatalf("Combine mismatch (-want +got):\n%s", diff)
	}
}

func TestMetricCombineZeroCallsIsIdentity(t *testing.T) {
	a := metric(4, 0, 100, 15, 40)
	var zero Metric

	if diff := cmp.Diff(a, a.Combine(zero)); diff != "" {
		t.Errorf("a+zero mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(a, zero.Combine(a)); diff != "" {
		t.Errorf("zero+a mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeOrderIndependent(t *testing.T) {
	records := []*ApplicationMetric{
		{TimeBucket: 1, ApplicationID: 7, Metric: metric(1, 0, 30, 30, 30)},
		{TimeBucket: 1, ApplicationID: 7, Metric: metric(2, 1, 50, 5, 45)},
		{TimeBucket: 1, ApplicationID: 7, Metric: metric(0, 0, 0, 0, 0)},
		{TimeBucket: 1, ApplicationID: 7, Metric: metric(4, 2, 400, 60, 160)},
	}

	mergeAll := func(order []int) *ApplicationMetric {
		acc := records[order[0]]
		for _, i := range order[1:] {
			acc = acc.Merge(records[i])
		}
		return acc
	}

	want := mergeAll([]int{0, 1, 2, 3})
	for _, order := range [][]int{{3, 2, 1, 0}, {2, 0, 3, 1}, {1, 3, 0, 2}} {
		if diff := cmp.Diff(want, mergeAll(order)); diff != "" {
			t.Errorf("order %v mismatch (-want +got):\n%s", order, diff)
		}
	}

	// grouping: (0+1)+(2+3) == ((0+1)+2)+3
	grouped := records[0].Merge(records[1]).Merge(records[2].Merge(records[3]))
	if diff := cmp.Diff(want, grouped); diff != "" {
		t.Errorf("grouping mismatch (-want +got):\n%s", diff)
	}

	if want.Calls != 7 || want.MinDuration != 5 || want.MaxDuration != 160 {
		t.Errorf("merged = %+v", want.Metric)
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	a := &ApplicationReferenceMetric{TimeBucket: 1, FrontApplicationID: 1, BehindApplicationID: 2, Metric: metric(1, 0, 10, 10, 10)}
	b := &ApplicationReferenceMetric{TimeBucket: 1, FrontApplicationID: 1, BehindApplicationID: 2, Metric: metric(1, 0, 20, 20, 20)}

	merged := a.Merge(b)
	if merged == a || merged == b {
		t.Fatal("Merge returned one of its inputs")
	}
	if a.Calls != 1 || b.Calls != 1 {
		t.Fatalf("inputs mutated: a=%d b=%d", a.Calls, b.Calls)
	}
	if merged.Key() != a.Key() {
		t.Fatalf("merged key = %q, want %q", merged.Key(), a.Key())
	}
}

func TestWriteOnceKeepsFirst(t *testing.T) {
	first := &Segment{SegmentID: "seg-1", DataBinary: []byte{1}}
	second := &Segment{SegmentID: "seg-1", DataBinary: []byte{2}}
	if got := first.Merge(second); got != first {
		t.Fatal("segment merge did not keep the first record")
	}

	traceID := id.NewDistributedTraceID(id.NewID(1, 2, 3))
	g1 := &GlobalTrace{SegmentID: "seg-1", GlobalTraceID: traceID, TimeBucket: 1}
	g2 := &GlobalTrace{SegmentID: "seg-1", GlobalTraceID: traceID, TimeBucket: 2}
	if got := g1.Merge(g2); got.TimeBucket != 1 {
		t.Fatal("global trace merge did not keep the first record")
	}
}
