// Package orchestrator decides, variant by variant in priority order,
// whether the launcher's tests are behind the latest browser release and
// starts at most one build per pass.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Cloudsky01/gh-buildtrigger/pkg/models"
)

type VersionSource interface {
	LatestVersion(ctx context.Context, variant models.BuildVariant) (string, error)
}

type BaselineSource interface {
	TestedVersion(ctx context.Context, variant models.BuildVariant) (string, error)
}

type BuildProber interface {
	IsBuildRunning(ctx context.Context) (bool, error)
}

type BuildTrigger interface {
	TriggerBuild(ctx context.Context, variant models.BuildVariant) error
}

// Outcome of checking one variant
type Outcome string

const (
	OutcomeTrigger Outcome = "trigger"
	// OutcomeSkip covers both "versions match" and "a build is already
	// running"; callers cannot tell them apart.
	OutcomeSkip Outcome = "skip"
)

// Decision records what happened for one variant
type Decision struct {
	Variant models.BuildVariant
	Latest  string
	Tested  string
	Outcome Outcome
}

// Result is the outcome of one pass
type Result struct {
	Decisions []Decision
	// Triggered is the variant a build was started for, or "" if none
	Triggered models.BuildVariant
}

// BuildTriggered reports whether the pass started a build
func (r *Result) BuildTriggered() bool {
	return r.Triggered != ""
}

type Orchestrator struct {
	versions VersionSource
	baseline BaselineSource
	prober   BuildProber
	trigger  BuildTrigger
	variants []models.BuildVariant
	logger   *slog.Logger
}

type Option func(*Orchestrator)

// WithVariants overrides the priority order, mainly for tests
func WithVariants(variants ...models.BuildVariant) Option {
	return func(o *Orchestrator) {
		o.variants = variants
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func New(versions VersionSource, baseline BaselineSource, prober BuildProber, trigger BuildTrigger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		versions: versions,
		baseline: baseline,
		prober:   prober,
		trigger:  trigger,
		variants: models.Variants,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run checks variants strictly in order and stops after the first one it
// triggers a build for. The first error aborts the pass; decisions made
// before it are still returned.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	for _, variant := range o.variants {
		decision, err := o.CheckVariant(ctx, variant)
		if err != nil {
			return result, err
		}
		result.Decisions = append(result.Decisions, decision)

		if decision.Outcome == OutcomeTrigger {
			result.Triggered = variant
			break
		}
	}

	return result, nil
}

// CheckVariant fetches both versions concurrently, then triggers a build
// if they differ and nothing is running.
func (o *Orchestrator) CheckVariant(ctx context.Context, variant models.BuildVariant) (Decision, error) {
	decision := Decision{Variant: variant, Outcome: OutcomeSkip}

	latest, tested, err := o.fetchVersions(ctx, variant)
	if err != nil {
		return decision, err
	}
	decision.Latest = latest
	decision.Tested = tested

	if latest != tested {
		running, err := o.prober.IsBuildRunning(ctx)
		if err != nil {
			return decision, fmt.Errorf("checking for running builds: %w", err)
		}

		if !running {
			if err := o.trigger.TriggerBuild(ctx, variant); err != nil {
				return decision, err
			}
			decision.Outcome = OutcomeTrigger
			return decision, nil
		}

		o.logger.Info(upToDateMessage(variant),
			"variant", variant.String(), "latest", latest, "tested", tested, "build_running", true)
		return decision, nil
	}

	o.logger.Info(upToDateMessage(variant),
		"variant", variant.String(), "latest", latest, "tested", tested)
	return decision, nil
}

// fetchVersions joins both lookups before returning; a failure in either
// cancels the other.
func (o *Orchestrator) fetchVersions(ctx context.Context, variant models.BuildVariant) (string, string, error) {
	var latest, tested string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := o.versions.LatestVersion(gctx, variant)
		if err != nil {
			return fmt.Errorf("getting latest %s version: %w", variant, err)
		}
		latest = v
		return nil
	})
	g.Go(func() error {
		v, err := o.baseline.TestedVersion(gctx, variant)
		if err != nil {
			return fmt.Errorf("getting tested %s version: %w", variant, err)
		}
		tested = v
		return nil
	})

	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return latest, tested, nil
}

func upToDateMessage(variant models.BuildVariant) string {
	return fmt.Sprintf("%s is up-to-date, not triggering %s build.", variant, variant)
}
