package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Cloudsky01/gh-buildtrigger/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type versionTable struct {
	mu       sync.Mutex
	versions map[models.BuildVariant]string
	errs     map[models.BuildVariant]error
	calls    []models.BuildVariant
}

func (v *versionTable) lookup(variant models.BuildVariant) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls = append(v.calls, variant)
	if err := v.errs[variant]; err != nil {
		return "", err
	}
	return v.versions[variant], nil
}

func (v *versionTable) called() []models.BuildVariant {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]models.BuildVariant(nil), v.calls...)
}

type fakeLatest struct{ *versionTable }

func (f fakeLatest) LatestVersion(_ context.Context, variant models.BuildVariant) (string, error) {
	return f.lookup(variant)
}

type fakeTested struct{ *versionTable }

func (f fakeTested) TestedVersion(_ context.Context, variant models.BuildVariant) (string, error) {
	return f.lookup(variant)
}

type fakeProber struct {
	running bool
	err     error
	calls   int
}

func (f *fakeProber) IsBuildRunning(context.Context) (bool, error) {
	f.calls++
	return f.running, f.err
}

// fakeTrigger mirrors the real trigger: it records every decision to
// trigger, but only counts a dispatch when not in dry-run mode.
type fakeTrigger struct {
	dryRun     bool
	err        error
	triggered  []models.BuildVariant
	dispatched []models.BuildVariant
}

func (f *fakeTrigger) TriggerBuild(_ context.Context, variant models.BuildVariant) error {
	if f.err != nil {
		return f.err
	}
	f.triggered = append(f.triggered, variant)
	if !f.dryRun {
		f.dispatched = append(f.dispatched, variant)
	}
	return nil
}

type fixture struct {
	latest  *versionTable
	tested  *versionTable
	prober  *fakeProber
	trigger *fakeTrigger
}

func newFixture(latest, tested map[models.BuildVariant]string) *fixture {
	return &fixture{
		latest:  &versionTable{versions: latest, errs: map[models.BuildVariant]error{}},
		tested:  &versionTable{versions: tested, errs: map[models.BuildVariant]error{}},
		prober:  &fakeProber{},
		trigger: &fakeTrigger{},
	}
}

func (f *fixture) orchestrator(opts ...Option) *Orchestrator {
	opts = append([]Option{WithLogger(discard)}, opts...)
	return New(fakeLatest{f.latest}, fakeTested{f.tested}, f.prober, f.trigger, opts...)
}

func TestRunStableCurrentSnapshotOutdated(t *testing.T) {
	f := newFixture(
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "2.0.0"},
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "1.9.9"},
	)

	result, err := f.orchestrator().Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Decisions, 2)
	assert.Equal(t, Decision{Variant: models.Stable, Latest: "1.2.3", Tested: "1.2.3", Outcome: OutcomeSkip}, result.Decisions[0])
	assert.Equal(t, Decision{Variant: models.Snapshot, Latest: "2.0.0", Tested: "1.9.9", Outcome: OutcomeTrigger}, result.Decisions[1])
	assert.Equal(t, models.Snapshot, result.Triggered)
	assert.True(t, result.BuildTriggered())

	assert.Equal(t, []models.BuildVariant{models.Snapshot}, f.trigger.triggered)
	assert.Equal(t, "snapshot", f.trigger.triggered[0].Lower())
	assert.Equal(t, 1, f.prober.calls, "prober is only consulted when versions differ")
}

func TestRunStopsAfterFirstTrigger(t *testing.T) {
	f := newFixture(
		map[models.BuildVariant]string{models.Stable: "1.2.4", models.Snapshot: "2.0.0"},
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "1.9.9"},
	)

	result, err := f.orchestrator().Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Decisions, 1)
	assert.Equal(t, models.Stable, result.Triggered)
	assert.Equal(t, []models.BuildVariant{models.Stable}, f.trigger.triggered)
	assert.NotContains(t, f.latest.called(), models.Snapshot)
	assert.NotContains(t, f.tested.called(), models.Snapshot)
}

func TestRunAllUpToDate(t *testing.T) {
	f := newFixture(
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "2.0.0"},
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "2.0.0"},
	)

	result, err := f.orchestrator().Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Decisions, 2)
	for _, d := range result.Decisions {
		assert.Equal(t, OutcomeSkip, d.Outcome)
	}
	assert.False(t, result.BuildTriggered())
	assert.Empty(t, f.trigger.triggered)
	assert.Zero(t, f.prober.calls)
}

func TestRunOutdatedButBuildRunningContinues(t *testing.T) {
	f := newFixture(
		map[models.BuildVariant]string{models.Stable: "1.2.4", models.Snapshot: "2.0.0"},
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "1.9.9"},
	)
	f.prober.running = true

	result, err := f.orchestrator().Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Decisions, 2)
	assert.Equal(t, OutcomeSkip, result.Decisions[0].Outcome)
	assert.Equal(t, OutcomeSkip, result.Decisions[1].Outcome)
	assert.Empty(t, f.trigger.triggered)
	assert.Equal(t, 2, f.prober.calls)
}

func TestRunVersionsCompareExactly(t *testing.T) {
	f := newFixture(
		map[models.BuildVariant]string{models.Stable: "6.2.3105.57"},
		map[models.BuildVariant]string{models.Stable: "6.2.3105.057"},
	)

	result, err := f.orchestrator(WithVariants(models.Stable)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.Stable, result.Triggered)
}

func TestRunIsIdempotent(t *testing.T) {
	f := newFixture(
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "2.0.0"},
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "1.9.9"},
	)
	o := f.orchestrator()

	first, err := o.Run(context.Background())
	require.NoError(t, err)

	for range 3 {
		again, err := o.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestRunDryRunMakesSameDecisions(t *testing.T) {
	latest := map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "2.0.0"}
	tested := map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "1.9.9"}

	normal := newFixture(latest, tested)
	normalResult, err := normal.orchestrator().Run(context.Background())
	require.NoError(t, err)

	dry := newFixture(latest, tested)
	dry.trigger.dryRun = true
	dryResult, err := dry.orchestrator().Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, normalResult, dryResult)
	assert.Equal(t, []models.BuildVariant{models.Snapshot}, normal.trigger.dispatched)
	assert.Empty(t, dry.trigger.dispatched)
	assert.Equal(t, normal.trigger.triggered, dry.trigger.triggered)
}

func TestRunFetchErrorAbortsPass(t *testing.T) {
	f := newFixture(
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "2.0.0"},
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "1.9.9"},
	)
	boom := errors.New("connection refused")
	f.tested.errs[models.Snapshot] = boom

	result, err := f.orchestrator().Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	require.Len(t, result.Decisions, 1, "decisions made before the error are kept")
	assert.Empty(t, f.trigger.triggered)
}

func TestRunProberErrorAbortsPass(t *testing.T) {
	f := newFixture(
		map[models.BuildVariant]string{models.Stable: "1.2.4", models.Snapshot: "2.0.0"},
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "1.9.9"},
	)
	boom := errors.New("rate limited")
	f.prober.err = boom

	_, err := f.orchestrator().Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, f.trigger.triggered)
	assert.NotContains(t, f.latest.called(), models.Snapshot)
}

func TestRunTriggerErrorAbortsPass(t *testing.T) {
	f := newFixture(
		map[models.BuildVariant]string{models.Stable: "1.2.4", models.Snapshot: "2.0.0"},
		map[models.BuildVariant]string{models.Stable: "1.2.3", models.Snapshot: "1.9.9"},
	)
	boom := errors.New("422 unprocessable")
	f.trigger.err = boom

	result, err := f.orchestrator().Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, result.BuildTriggered())
	assert.NotContains(t, f.latest.called(), models.Snapshot)
}

// rendezvousSource only returns once its peer has been called too, so a
// sequential implementation would time out.
type rendezvousSource struct {
	self    chan struct{}
	peer    chan struct{}
	version string
}

func (r *rendezvousSource) fetch(ctx context.Context) (string, error) {
	close(r.self)
	select {
	case <-r.peer:
		return r.version, nil
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(2 * time.Second):
		return "", errors.New("fetches did not overlap")
	}
}

func (r *rendezvousSource) LatestVersion(ctx context.Context, _ models.BuildVariant) (string, error) {
	return r.fetch(ctx)
}

func (r *rendezvousSource) TestedVersion(ctx context.Context, _ models.BuildVariant) (string, error) {
	return r.fetch(ctx)
}

func TestCheckVariantFetchesConcurrently(t *testing.T) {
	latestStarted := make(chan struct{})
	testedStarted := make(chan struct{})
	latest := &rendezvousSource{self: latestStarted, peer: testedStarted, version: "2.0.0"}
	tested := &rendezvousSource{self: testedStarted, peer: latestStarted, version: "2.0.0"}

	o := New(latest, tested, &fakeProber{}, &fakeTrigger{}, WithLogger(discard))
	decision, err := o.CheckVariant(context.Background(), models.Snapshot)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkip, decision.Outcome)
	assert.Equal(t, "2.0.0", decision.Latest)
	assert.Equal(t, "2.0.0", decision.Tested)
}

type blockingSource struct{}

func (blockingSource) LatestVersion(ctx context.Context, _ models.BuildVariant) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

type failingTested struct{ err error }

func (f failingTested) TestedVersion(context.Context, models.BuildVariant) (string, error) {
	return "", f.err
}

func TestCheckVariantCancelsPeerOnError(t *testing.T) {
	boom := errors.New("404 not found")
	o := New(blockingSource{}, failingTested{err: boom}, &fakeProber{}, &fakeTrigger{}, WithLogger(discard))

	_, err := o.CheckVariant(context.Background(), models.Stable)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
