package github

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// CommitTask identifies one commit whose changed files should be
// fetched.
type CommitTask struct {
	Repository string // owner/name
	SHA        string
}

// ArtifactFile is one file touched by a commit.
type ArtifactFile struct {
	SHA        string
	Filename   string
	Status     string
	Additions  int
	Deletions  int
	Changes    int
	Patch      string
	RawURL     string
	BlobURL    string
	Repository string
	CommitSHA  string
}

// ArtifactFetcher bulk-fetches per-commit file lists with a fixed
// worker pool. Workers pull tasks from a shared queue; on a rate-limit
// response the task is re-enqueued after the mandated wait, with no
// retry cap.
type ArtifactFetcher struct {
	client  *github.Client
	limiter *rate.Limiter
	workers int
	logger  *logrus.Logger

	// fetch is swappable for tests.
	fetch func(ctx context.Context, task CommitTask) ([]ArtifactFile, error)
}

// NewArtifactFetcher creates a fetcher with the given pool size.
func NewArtifactFetcher(token string, workers, rateLimit int, logger *logrus.Logger) *ArtifactFetcher {
	if workers <= 0 {
		workers = 1
	}
	if rateLimit <= 0 {
		rateLimit = 1
	}
	f := &ArtifactFetcher{
		client:  github.NewClient(nil).WithAuthToken(token),
		limiter: rate.NewLimiter(rate.Limit(rateLimit), 1),
		workers: workers,
		logger:  logger,
	}
	f.fetch = f.fetchCommitFiles
	return f
}

// FetchAll processes every task and returns the collected files.
// Individual task failures (other than rate limits, which retry) are
// logged and skipped; only context cancellation aborts the pool.
func (f *ArtifactFetcher) FetchAll(ctx context.Context, tasks []CommitTask) ([]ArtifactFile, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	// Buffered past len(tasks) so a worker can re-enqueue a
	// rate-limited task without blocking against a full queue.
	queue := make(chan CommitTask, len(tasks)+f.workers)
	var pending sync.WaitGroup
	pending.Add(len(tasks))
	for _, task := range tasks {
		queue <- task
	}

	// Close the queue once every task has completed or been dropped;
	// re-enqueued tasks keep their pending slot.
	go func() {
		pending.Wait()
		close(queue)
	}()

	var (
		mu      sync.Mutex
		results []ArtifactFile
	)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < f.workers; i++ {
		g.Go(func() error {
			for {
				var task CommitTask
				var ok bool
				select {
				case <-ctx.Done():
					return ctx.Err()
				case task, ok = <-queue:
					if !ok {
						return nil
					}
				}

				files, err := f.fetch(ctx, task)
				if err != nil {
					if wait, limited := rateLimitWait(err); limited {
						f.logger.WithFields(logrus.Fields{
							"repository": task.Repository,
							"sha":        task.SHA,
							"wait":       wait.String(),
						}).Warn("rate limit hit, re-enqueueing commit")
						select {
						case <-ctx.Done():
							pending.Done()
							return ctx.Err()
						case <-time.After(wait):
						}
						queue <- task
						continue
					}
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						pending.Done()
						return err
					}
					f.logger.WithFields(logrus.Fields{
						"repository": task.Repository,
						"sha":        task.SHA,
					}).WithError(err).Warn("commit file fetch failed, skipping")
					pending.Done()
					continue
				}

				mu.Lock()
				results = append(results, files...)
				mu.Unlock()
				pending.Done()
			}
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (f *ArtifactFetcher) fetchCommitFiles(ctx context.Context, task CommitTask) ([]ArtifactFile, error) {
	owner, name, err := splitRepository(task.Repository)
	if err != nil {
		return nil, err
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	commit, _, err := f.client.Repositories.GetCommit(ctx, owner, name, task.SHA, nil)
	if err != nil {
		return nil, fmt.Errorf("get commit %s in %s: %w", task.SHA, task.Repository, err)
	}

	var files []ArtifactFile
	for _, file := range commit.Files {
		if file.GetSHA() == "" {
			continue
		}
		files = append(files, ArtifactFile{
			SHA:        file.GetSHA(),
			Filename:   file.GetFilename(),
			Status:     file.GetStatus(),
			Additions:  file.GetAdditions(),
			Deletions:  file.GetDeletions(),
			Changes:    file.GetChanges(),
			Patch:      file.GetPatch(),
			RawURL:     file.GetRawURL(),
			BlobURL:    file.GetBlobURL(),
			Repository: task.Repository,
			CommitSHA:  task.SHA,
		})
	}
	return files, nil
}

// rateLimitWait returns how long to wait before retrying, using the
// API's reported reset time plus a small buffer.
func rateLimitWait(err error) (time.Duration, bool) {
	var rle *github.RateLimitError
	if errors.As(err, &rle) {
		wait := time.Until(rle.Rate.Reset.Time)
		if wait < 0 {
			wait = 0
		}
		return wait + 5*time.Second, true
	}
	var arle *github.AbuseRateLimitError
	if errors.As(err, &arle) {
		if arle.RetryAfter != nil {
			return *arle.RetryAfter, true
		}
		return time.Minute, true
	}
	return 0, false
}

func splitRepository(fullName string) (owner, name string, err error) {
	for i := 0; i < len(fullName); i++ {
		if fullName[i] == '/' {
			if i == 0 || i == len(fullName)-1 {
				break
			}
			return fullName[:i], fullName[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("invalid repository name %q (want owner/name)", fullName)
}
