package build

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Cloudsky01/gh-buildtrigger/pkg/models"
)

const (
	DefaultRef      = "master"
	DefaultWorkflow = "build.yml"

	// BuildTypeInput is the workflow_dispatch input carrying the variant
	BuildTypeInput = "buildType"
)

// Dispatcher is the subset of the GitHub client the trigger needs
type Dispatcher interface {
	DispatchWorkflow(ctx context.Context, workflow string, body []byte) error
}

// Trigger starts the build workflow for a variant
type Trigger struct {
	dispatcher Dispatcher
	workflow   string
	ref        string
	dryRun     bool
	logger     *slog.Logger
}

type TriggerOptions struct {
	Workflow string
	Ref      string
	// DryRun builds the request but never sends it
	DryRun bool
}

func NewTrigger(dispatcher Dispatcher, opts TriggerOptions, logger *slog.Logger) *Trigger {
	if opts.Workflow == "" {
		opts.Workflow = DefaultWorkflow
	}
	if opts.Ref == "" {
		opts.Ref = DefaultRef
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		dispatcher: dispatcher,
		workflow:   opts.Workflow,
		ref:        opts.Ref,
		dryRun:     opts.DryRun,
		logger:     logger,
	}
}

// DryRun reports whether dispatches are suppressed
func (t *Trigger) DryRun() bool {
	return t.dryRun
}

// Request builds the dispatch body for a variant
func (t *Trigger) Request(variant models.BuildVariant) models.DispatchRequest {
	return models.DispatchRequest{
		Ref: t.ref,
		Inputs: map[string]string{
			BuildTypeInput: variant.Lower(),
		},
	}
}

// TriggerBuild dispatches the workflow for variant. Any dispatch failure is
// returned unchanged in meaning; there is no retry.
func (t *Trigger) TriggerBuild(ctx context.Context, variant models.BuildVariant) error {
	body, err := json.Marshal(t.Request(variant))
	if err != nil {
		return fmt.Errorf("marshaling dispatch request: %w", err)
	}

	if !t.dryRun {
		if err := t.dispatcher.DispatchWorkflow(ctx, t.workflow, body); err != nil {
			return fmt.Errorf("dispatching %s build: %w", variant, err)
		}
	}

	t.logger.Info("Build triggered.",
		"variant", variant.String(), "workflow", t.workflow, "ref", t.ref, "dry_run", t.dryRun)
	return nil
}
