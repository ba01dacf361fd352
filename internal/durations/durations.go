// Package durations pulls every successful run of the build workflow and
// reports, per run, the minute of the hour it started at and how long it took.
package durations

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Cloudsky01/gh-buildtrigger/internal/github"
	"github.com/Cloudsky01/gh-buildtrigger/pkg/models"
)

const (
	DefaultPageSize = 100
	statusSuccess   = "success"
)

var header = []string{"startedMinutesOfHour", "runDurationSeconds"}

// RunLister is the subset of the GitHub client the extractor needs
type RunLister interface {
	ListWorkflowRuns(ctx context.Context, opts github.ListRunsOptions) (*models.WorkflowRunList, error)
}

// Sample is one successful run
type Sample struct {
	StartedMinuteOfHour int
	DurationSeconds     int
}

// NewSample derives a sample from a run's start and last-update timestamps
func NewSample(run models.WorkflowRun) Sample {
	return Sample{
		StartedMinuteOfHour: run.RunStartedAt.Minute(),
		DurationSeconds:     int(run.Duration() / time.Second),
	}
}

type Extractor struct {
	runs     RunLister
	workflow string
	pageSize int
	logger   *slog.Logger
}

func NewExtractor(runs RunLister, workflow string, pageSize int, logger *slog.Logger) *Extractor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{runs: runs, workflow: workflow, pageSize: pageSize, logger: logger}
}

// Collect pages through the successful runs until total_count runs have
// been read. total_count is taken from the first page; an empty page ends
// the listing early.
func (e *Extractor) Collect(ctx context.Context) ([]Sample, error) {
	var samples []Sample
	total := -1

	for page := 1; ; page++ {
		e.logger.Info(fmt.Sprintf("Fetching page %d", page), "page", page)

		list, err := e.runs.ListWorkflowRuns(ctx, github.ListRunsOptions{
			Workflow: e.workflow,
			Status:   statusSuccess,
			PerPage:  e.pageSize,
			Page:     page,
		})
		if err != nil {
			return nil, fmt.Errorf("fetching runs page %d: %w", page, err)
		}

		if total < 0 {
			total = list.TotalCount
		}

		for _, run := range list.WorkflowRuns {
			samples = append(samples, NewSample(run))
		}

		e.logger.Debug("page done", "page", page, "collected", len(samples), "total", total)

		if len(list.WorkflowRuns) == 0 || len(samples) >= total {
			break
		}
	}

	return samples, nil
}

// WriteTSV writes the header and one tab-separated line per sample, CRLF terminated
func WriteTSV(w io.Writer, samples []Sample) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	cw.UseCRLF = true

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, s := range samples {
		record := []string{strconv.Itoa(s.StartedMinuteOfHour), strconv.Itoa(s.DurationSeconds)}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing sample: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// Format renders samples the same way WriteTSV does
func Format(samples []Sample) (string, error) {
	var sb strings.Builder
	if err := WriteTSV(&sb, samples); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Save writes the rendered samples to path as UTF-8 without a byte order mark
func Save(path string, samples []Sample) (string, error) {
	output, err := Format(samples)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(output), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return output, nil
}
