package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mbell/sensorium/internal/models"
)

func newTestRunner(src *fakeSource) *Runner {
	return NewRunner(NewRuntime(), src)
}

func twoDeploymentSource(n int) *fakeSource {
	return &fakeSource{
		deployments: []models.Deployment{
			testDeployment(1, "alpha", testStart),
			testDeployment(2, "beta", testStart),
		},
		readings: map[int64][]models.Reading{
			1: makeReadings("alpha", testStart, n, time.Minute,
				func(i int) float64 { return 20 + float64(i%5) },
				func(i int) float64 { return 50 + float64(i%7) }),
			2: makeReadings("beta", testStart, n, time.Minute,
				func(i int) float64 { return 25 + float64(i%3) },
				func(i int) float64 { return 55 + float64(i%4) }),
		},
	}
}

func TestRunnerHappyPath(t *testing.T) {
	runner := newTestRunner(twoDeploymentSource(60))

	var progress []string
	result, err := runner.Run(context.Background(), models.AnalysisRequest{
		DeploymentIDs: []int64{1, 2},
		Start:         testStart,
		End:           testStart.Add(2 * time.Hour),
		Analyses:      []models.AnalysisKind{models.KindDescriptive, models.KindHypothesis},
	}, func(msg string) { progress = append(progress, msg) })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(result) != 2 {
		t.Fatalf("len(result) = %d, want 2", len(result))
	}
	for _, k := range []models.AnalysisKind{models.KindDescriptive, models.KindHypothesis} {
		out, ok := result[k]
		if !ok {
			t.Fatalf("missing outcome for %s", k)
		}
		if out.Failed() {
			t.Errorf("%s failed: %s", k, out.Err())
		}
	}
	desc, ok := result[models.KindDescriptive].Records().([]DescriptiveRecord)
	if !ok {
		t.Fatalf("descriptive records have type %T", result[models.KindDescriptive].Records())
	}
	if len(desc) != 4 {
		t.Errorf("descriptive records = %d, want 4 (2 deployments x 2 metrics)", len(desc))
	}
	if len(progress) == 0 {
		t.Error("no progress messages reported")
	}
}

func TestRunnerDedupesAndOrders(t *testing.T) {
	runner := newTestRunner(twoDeploymentSource(30))

	result, err := runner.Run(context.Background(), models.AnalysisRequest{
		DeploymentIDs: []int64{1},
		Start:         testStart,
		End:           testStart.Add(time.Hour),
		Analyses: []models.AnalysisKind{
			models.KindCorrelation,
			models.KindDescriptive,
			models.KindDescriptive,
			models.AnalysisKind("nonsense"),
		},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("len(result) = %d, want 2 (deduplicated, unknown dropped)", len(result))
	}
	if _, ok := result[models.AnalysisKind("nonsense")]; ok {
		t.Error("unknown kind produced an outcome")
	}
}

func TestRunnerEmptyRequest(t *testing.T) {
	runner := newTestRunner(twoDeploymentSource(10))
	result, err := runner.Run(context.Background(), models.AnalysisRequest{
		DeploymentIDs: []int64{1},
		Analyses:      []models.AnalysisKind{models.AnalysisKind("nope")},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(result) != 0 {
		t.Errorf("len(result) = %d, want 0", len(result))
	}
}

func TestRunnerSkipsUnknownDeployment(t *testing.T) {
	runner := newTestRunner(twoDeploymentSource(30))

	result, err := runner.Run(context.Background(), models.AnalysisRequest{
		DeploymentIDs: []int64{1, 99},
		Start:         testStart,
		End:           testStart.Add(time.Hour),
		Analyses:      []models.AnalysisKind{models.KindDescriptive},
	}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	desc := result[models.KindDescriptive].Records().([]DescriptiveRecord)
	for _, rec := range desc {
		if rec.DeploymentID == 99 {
			t.Error("unknown deployment id produced records")
		}
	}
	if len(desc) != 2 {
		t.Errorf("descriptive records = %d, want 2 (known deployment only)", len(desc))
	}
}

func TestRunnerFetchErrorAborts(t *testing.T) {
	// Deployments resolve, then reading fetches fail.
	boom := errors.New("disk gone")
	src := &flakySource{inner: twoDeploymentSource(10), failReadings: boom}
	runner := NewRunner(NewRuntime(), src)

	_, err := runner.Run(context.Background(), models.AnalysisRequest{
		DeploymentIDs: []int64{1},
		Start:         testStart,
		End:           testStart.Add(time.Hour),
		Analyses:      []models.AnalysisKind{models.KindDescriptive},
	}, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped fetch error", err)
	}
}

// flakySource delegates deployment resolution but fails reading fetches.
type flakySource struct {
	inner        *fakeSource
	failReadings error
}

func (f *flakySource) Deployments(ctx context.Context) ([]models.Deployment, error) {
	return f.inner.Deployments(ctx)
}

func (f *flakySource) DeploymentReadings(ctx context.Context, deploymentID int64, start, end time.Time, limit int, preferLatest bool) ([]models.Reading, error) {
	return nil, f.failReadings
}

func (f *flakySource) ReadingsPage(ctx context.Context, deploymentID int64, after time.Time, afterID int64, end time.Time, limit int) ([]models.Reading, error) {
	return nil, f.failReadings
}

func TestRunnerCancelledBetweenAnalyses(t *testing.T) {
	runner := newTestRunner(twoDeploymentSource(30))

	// Cancel while the first analysis is being announced: it still runs, and
	// the loop stops before the second.
	ctx, cancel := context.WithCancel(context.Background())
	result, err := runner.Run(ctx, models.AnalysisRequest{
		DeploymentIDs: []int64{1},
		Start:         testStart,
		End:           testStart.Add(time.Hour),
		Analyses: []models.AnalysisKind{
			models.KindDescriptive,
			models.KindCorrelation,
		},
	}, func(msg string) {
		if msg == progressLabels[models.KindDescriptive] {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if _, ok := result[models.KindDescriptive]; !ok {
		t.Error("announced analysis missing from partial result")
	}
	if _, ok := result[models.KindCorrelation]; ok {
		t.Error("analysis after cancellation still ran")
	}
}

func TestOutcomeJSON(t *testing.T) {
	tests := []struct {
		name    string
		outcome Outcome
		want    string
	}{
		{"failure", Fail("runtime exploded"), `{"error":"runtime exploded"}`},
		{"empty success", OK(nil), `[]`},
		{"empty slice", OK([]DescriptiveRecord{}), `[]`},
		{"nil slice", OK([]HypothesisRecord(nil)), `[]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.outcome)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(b) != tt.want {
				t.Errorf("json = %s, want %s", b, tt.want)
			}
		})
	}
}

func TestResultJSONKeys(t *testing.T) {
	res := Result{
		models.KindDescriptive: OK(nil),
		models.KindForecasting: Fail("no data"),
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"descriptive":[]`, `"forecasting":{"error":"no data"}`} {
		if !strings.Contains(s, want) {
			t.Errorf("json %s missing %s", s, want)
		}
	}
}

func TestRunOnePanicIsolated(t *testing.T) {
	// A nil dataset makes every analysis dereference nil; the panic must come
	// back as an error outcome.
	out := runOne(&Engine{}, models.KindDescriptive, nil)
	if !out.Failed() {
		t.Fatal("panic did not produce an error outcome")
	}
	if !strings.Contains(out.Err(), "descriptive") {
		t.Errorf("error %q does not name the analysis", out.Err())
	}
}

func TestRequestedKinds(t *testing.T) {
	got := requestedKinds([]models.AnalysisKind{
		models.KindForecasting,
		models.KindDescriptive,
		models.KindForecasting,
	})
	if len(got) != 2 || got[0] != models.KindDescriptive || got[1] != models.KindForecasting {
		t.Errorf("requestedKinds = %v, want [descriptive forecasting]", got)
	}
}
