// Package build talks to the CI side: whether a build is already running
// and starting a new one.
package build

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Cloudsky01/gh-buildtrigger/internal/github"
	"github.com/Cloudsky01/gh-buildtrigger/pkg/models"
)

const DefaultRunsPageSize = 10

// RunLister is the subset of the GitHub client the prober needs
type RunLister interface {
	ListWorkflowRuns(ctx context.Context, opts github.ListRunsOptions) (*models.WorkflowRunList, error)
}

// Prober checks the most recent page of runs for one that has not finished
type Prober struct {
	runs     RunLister
	pageSize int
	logger   *slog.Logger
}

func NewProber(runs RunLister, pageSize int, logger *slog.Logger) *Prober {
	if pageSize <= 0 {
		pageSize = DefaultRunsPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{runs: runs, pageSize: pageSize, logger: logger}
}

// IsBuildRunning reports whether any run on the first page is queued,
// in progress, requested or waiting. Only one page is read; GitHub's
// newest-first ordering is trusted.
func (p *Prober) IsBuildRunning(ctx context.Context) (bool, error) {
	list, err := p.runs.ListWorkflowRuns(ctx, github.ListRunsOptions{PerPage: p.pageSize})
	if err != nil {
		return false, fmt.Errorf("listing workflow runs: %w", err)
	}

	running := AnyRunning(list.WorkflowRuns)
	p.logger.Debug("checked for running builds", "runs", len(list.WorkflowRuns), "running", running)
	return running, nil
}

// AnyRunning reports whether at least one run has a non-terminal status
func AnyRunning(runs []models.WorkflowRun) bool {
	for _, run := range runs {
		if run.Status.IsRunning() {
			return true
		}
	}
	return false
}
