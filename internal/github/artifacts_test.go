package github

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	gh "github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestFetcher(workers int, fetch func(ctx context.Context, task CommitTask) ([]ArtifactFile, error)) *ArtifactFetcher {
	f := NewArtifactFetcher("", workers, 100, testLogger())
	f.fetch = fetch
	return f
}

func TestFetchAllCollectsEveryTask(t *testing.T) {
	fetcher := newTestFetcher(4, func(_ context.Context, task CommitTask) ([]ArtifactFile, error) {
		return []ArtifactFile{{SHA: "file-" + task.SHA, CommitSHA: task.SHA, Repository: task.Repository}}, nil
	})

	tasks := []CommitTask{
		{Repository: "acme/api", SHA: "c1"},
		{Repository: "acme/api", SHA: "c2"},
		{Repository: "acme/web", SHA: "c3"},
	}
	files, err := fetcher.FetchAll(context.Background(), tasks)
	require.NoError(t, err)

	assert.Len(t, files, 3)
	shas := make(map[string]bool)
	for _, f := range files {
		shas[f.CommitSHA] = true
	}
	assert.True(t, shas["c1"] && shas["c2"] && shas["c3"])
}

func TestFetchAllSkipsFailedTask(t *testing.T) {
	fetcher := newTestFetcher(2, func(_ context.Context, task CommitTask) ([]ArtifactFile, error) {
		if task.SHA == "bad" {
			return nil, fmt.Errorf("commit not found")
		}
		return []ArtifactFile{{SHA: "file-" + task.SHA, CommitSHA: task.SHA}}, nil
	})

	tasks := []CommitTask{
		{Repository: "acme/api", SHA: "good"},
		{Repository: "acme/api", SHA: "bad"},
	}
	files, err := fetcher.FetchAll(context.Background(), tasks)
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "good", files[0].CommitSHA)
}

func TestFetchAllRetriesRateLimitedTask(t *testing.T) {
	retryAfter := 10 * time.Millisecond
	var mu sync.Mutex
	attempts := 0

	fetcher := newTestFetcher(2, func(_ context.Context, task CommitTask) ([]ArtifactFile, error) {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return nil, &gh.AbuseRateLimitError{RetryAfter: &retryAfter}
		}
		return []ArtifactFile{{SHA: "file-" + task.SHA, CommitSHA: task.SHA}}, nil
	})

	files, err := fetcher.FetchAll(context.Background(), []CommitTask{{Repository: "acme/api", SHA: "c1"}})
	require.NoError(t, err)

	require.Len(t, files, 1)
	assert.Equal(t, "c1", files[0].CommitSHA)
	assert.Equal(t, 2, attempts)
}

func TestFetchAllEmpty(t *testing.T) {
	fetcher := newTestFetcher(2, func(context.Context, CommitTask) ([]ArtifactFile, error) {
		t.Fatal("fetch should not be called")
		return nil, nil
	})

	files, err := fetcher.FetchAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRateLimitWait(t *testing.T) {
	retryAfter := 30 * time.Second

	tests := []struct {
		name    string
		err     error
		limited bool
	}{
		{"primary rate limit", &gh.RateLimitError{Rate: gh.Rate{Reset: gh.Timestamp{Time: time.Now().Add(time.Minute)}}}, true},
		{"abuse rate limit with retry-after", &gh.AbuseRateLimitError{RetryAfter: &retryAfter}, true},
		{"abuse rate limit without retry-after", &gh.AbuseRateLimitError{}, true},
		{"ordinary error", fmt.Errorf("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, limited := rateLimitWait(tt.err)
			assert.Equal(t, tt.limited, limited)
			if limited {
				assert.Greater(t, wait, time.Duration(0))
			}
		})
	}
}

func TestSplitRepository(t *testing.T) {
	owner, name, err := splitRepository("acme/api")
	require.NoError(t, err)
	assert.Equal(t, "acme", owner)
	assert.Equal(t, "api", name)

	for _, bad := range []string{"acme", "/api", "acme/", ""} {
		_, _, err := splitRepository(bad)
		assert.Error(t, err, bad)
	}
}
