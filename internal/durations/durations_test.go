package durations

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Cloudsky01/gh-buildtrigger/internal/github"
	"github.com/Cloudsky01/gh-buildtrigger/pkg/models"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func run(startMinute, seconds int) models.WorkflowRun {
	started := time.Date(2024, 5, 1, 13, startMinute, 7, 0, time.UTC)
	return models.WorkflowRun{
		Status:       models.RunStatusCompleted,
		RunStartedAt: started,
		UpdatedAt:    started.Add(time.Duration(seconds)*time.Second + 400*time.Millisecond),
	}
}

func TestNewSampleTruncatesSeconds(t *testing.T) {
	s := NewSample(run(17, 95))
	assert.Equal(t, Sample{StartedMinuteOfHour: 17, DurationSeconds: 95}, s)
}

func TestCollectPaginatesUntilTotalCount(t *testing.T) {
	pages := map[int][]models.WorkflowRun{
		1: {run(0, 60), run(5, 61)},
		2: {run(10, 62), run(15, 63)},
		3: {run(20, 64)},
	}
	var requests atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/repos/o/r/actions/workflows/build.yml/runs", r.URL.Path)
		assert.Equal(t, "success", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))

		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		assert.NoError(t, err)

		_ = json.NewEncoder(w).Encode(models.WorkflowRunList{TotalCount: 5, WorkflowRuns: pages[page]})
	}))
	defer srv.Close()

	client, err := github.NewClient(github.Options{WorkflowBaseURL: srv.URL + "/repos/o/r/actions/"})
	require.NoError(t, err)

	samples, err := NewExtractor(client, "build.yml", 2, discard).Collect(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 3, requests.Load())
	require.Len(t, samples, 5)
	assert.Equal(t, Sample{StartedMinuteOfHour: 0, DurationSeconds: 60}, samples[0])
	assert.Equal(t, Sample{StartedMinuteOfHour: 20, DurationSeconds: 64}, samples[4])
}

type fakeLister struct {
	pages []models.WorkflowRunList
	calls int
}

func (f *fakeLister) ListWorkflowRuns(_ context.Context, opts github.ListRunsOptions) (*models.WorkflowRunList, error) {
	f.calls++
	if opts.Page > len(f.pages) {
		return &models.WorkflowRunList{}, nil
	}
	return &f.pages[opts.Page-1], nil
}

func TestCollectStopsOnEmptyPage(t *testing.T) {
	lister := &fakeLister{pages: []models.WorkflowRunList{
		{TotalCount: 10, WorkflowRuns: []models.WorkflowRun{run(1, 10)}},
		{TotalCount: 10},
	}}

	samples, err := NewExtractor(lister, "build.yml", 0, discard).Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, samples, 1)
	assert.Equal(t, 2, lister.calls)
}

func TestCollectNoRuns(t *testing.T) {
	lister := &fakeLister{pages: []models.WorkflowRunList{{TotalCount: 0}}}

	samples, err := NewExtractor(lister, "build.yml", 0, discard).Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Equal(t, 1, lister.calls)
}

func TestCollectPropagatesErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client, err := github.NewClient(github.Options{WorkflowBaseURL: srv.URL + "/repos/o/r/actions/"})
	require.NoError(t, err)

	_, err = NewExtractor(client, "build.yml", 100, discard).Collect(context.Background())
	assert.Error(t, err)
}

func TestFormat(t *testing.T) {
	out, err := Format([]Sample{{StartedMinuteOfHour: 3, DurationSeconds: 412}, {StartedMinuteOfHour: 59, DurationSeconds: 7}})
	require.NoError(t, err)
	assert.Equal(t, "startedMinutesOfHour\trunDurationSeconds\r\n3\t412\r\n59\t7\r\n", out)
}

func TestSaveWritesWithoutBOM(t *testing.T) {
	path := filepath.Join(t.TempDir(), "output.txt")

	out, err := Save(path, []Sample{{StartedMinuteOfHour: 1, DurationSeconds: 2}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out, string(data))
	assert.NotEqual(t, []byte{0xEF, 0xBB, 0xBF}, data[:3])
}
