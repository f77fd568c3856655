package archiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultStep        = time.Hour
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
)

// Fetcher returns the raw body of one range query attempt.
type Fetcher interface {
	QueryRange(ctx context.Context, baseURL, query string, start, end int64, step time.Duration) ([]byte, error)
}

// Runner backfills endpoints x metrics for a set of hour offsets. A failure is
// confined to its tuple; Run itself never fails.
type Runner struct {
	Fetcher   Fetcher
	Sink      Sink
	Jobs      *JobStore
	Logger    *slog.Logger
	Endpoints []Endpoint
	Metrics   []string
	BasePath  string
	Bucket    string // only used to render s3:// locations in logs

	Step        time.Duration
	MaxAttempts int
	BaseBackoff time.Duration
	// Concurrency caps in-flight tuples within an offset. <=1 is sequential.
	Concurrency int

	// Sleep waits between attempts; tests replace it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Run processes offsets in order against a window anchored at now. now is
// taken once by the caller so a run straddling an hour boundary stays aligned.
func (r *Runner) Run(ctx context.Context, now time.Time, offsets []int) Summary {
	if r.Jobs == nil {
		r.Jobs = NewJobStore()
	}
	log := r.logger()

	aliases := make([]string, 0, len(r.Endpoints))
	for _, ep := range r.Endpoints {
		aliases = append(aliases, ep.Alias)
	}
	log.Info("starting scrape",
		"hours", len(offsets),
		"endpoints", aliases,
		"metrics", len(r.Metrics),
		"concurrency", r.concurrency(),
		"anchor", now.UTC().Format(time.RFC3339))

	r.Jobs.Reset(time.Now().UTC())
	windows := make([]Window, len(offsets))
	for i, off := range offsets {
		windows[i] = WindowFor(now, off)
		for _, ep := range r.Endpoints {
			for _, m := range r.Metrics {
				r.Jobs.Pending(Tuple{Offset: off, Alias: ep.Alias, Metric: m}, windows[i])
			}
		}
	}

	for i, off := range offsets {
		r.runOffset(ctx, off, windows[i])
	}

	sum := r.Jobs.Finish(time.Now().UTC())
	log.Info("scrape job completed",
		"total", sum.Total,
		"succeeded", sum.Succeeded,
		"failed", sum.Failed,
		"elapsed", sum.FinishedAt.Sub(sum.StartedAt).String())
	return sum
}

func (r *Runner) runOffset(ctx context.Context, offset int, w Window) {
	if r.concurrency() <= 1 {
		for _, ep := range r.Endpoints {
			for _, m := range r.Metrics {
				r.runTuple(ctx, Tuple{Offset: offset, Alias: ep.Alias, Metric: m}, ep, w)
			}
		}
		return
	}

	// Workers never return an error, so one tuple cannot cancel its siblings.
	var g errgroup.Group
	g.SetLimit(r.concurrency())
	for _, ep := range r.Endpoints {
		for _, m := range r.Metrics {
			ep, m := ep, m
			g.Go(func() error {
				r.runTuple(ctx, Tuple{Offset: offset, Alias: ep.Alias, Metric: m}, ep, w)
				return nil
			})
		}
	}
	_ = g.Wait()
}

func (r *Runner) runTuple(ctx context.Context, t Tuple, ep Endpoint, w Window) {
	log := r.logger().With("offset", t.Offset, "alias", t.Alias, "metric", t.Metric)
	start := w.Start.Format(time.RFC3339)
	end := w.End.Format(time.RFC3339)

	log.Debug("making api call",
		"url", ep.BaseURL,
		"start", w.StartUnix(),
		"end", w.EndUnix(),
		"step", int64(r.step()/time.Second))

	attempts := r.maxAttempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		r.Jobs.Start(t, attempt)
		key, err := r.attempt(ctx, ep, w, t.Metric)
		if err == nil {
			r.Jobs.Done(t, key)
			log.Info("[OK] archived",
				"attempt", attempt,
				"key", key,
				"dest", r.location(key),
				"window_start", start,
				"window_end", end)
			return
		}

		if !Retryable(err) || attempt == attempts {
			r.Jobs.Fail(t, err)
			log.Error("[FAIL] giving up",
				"attempts", attempt,
				"kind", Kind(err),
				"window_start", start,
				"window_end", end,
				"err", err)
			return
		}

		sleep := r.backoff(attempt)
		log.Warn("[RETRY] attempt failed",
			"attempt", attempt,
			"max_attempts", attempts,
			"sleep", sleep.String(),
			"kind", Kind(err),
			"err", err)
		if serr := r.sleep(ctx, sleep); serr != nil {
			r.Jobs.Fail(t, serr)
			log.Error("[FAIL] interrupted during backoff",
				"attempts", attempt,
				"window_start", start,
				"window_end", end,
				"err", serr)
			return
		}
	}
}

// attempt is one fetch+upload unit; an upload failure re-fetches on retry.
func (r *Runner) attempt(ctx context.Context, ep Endpoint, w Window, metric string) (key string, err error) {
	defer func() {
		if p := recover(); p != nil {
			key = ""
			err = &UnexpectedError{Err: fmt.Errorf("panic: %v", p)}
		}
	}()

	body, ferr := r.Fetcher.QueryRange(ctx, ep.BaseURL, metric, w.StartUnix(), w.EndUnix(), r.step())
	if ferr != nil {
		return "", &FetchError{BaseURL: ep.BaseURL, Metric: metric, Err: ferr}
	}

	key = ObjectKey(r.basePath(), ep.Alias, w, metric)
	if perr := r.Sink.Put(ctx, key, body, ContentTypeJSON); perr != nil {
		var ue *UploadError
		if !errors.As(perr, &ue) {
			perr = &UploadError{Key: key, Err: perr}
		}
		return "", perr
	}
	return key, nil
}

// backoff returns base * 2^(attempt-1).
func (r *Runner) backoff(attempt int) time.Duration {
	base := r.BaseBackoff
	if base <= 0 {
		base = DefaultBackoff
	}
	return base << (attempt - 1)
}

func (r *Runner) sleep(ctx context.Context, d time.Duration) error {
	if r.Sleep != nil {
		return r.Sleep(ctx, d)
	}
	return sleepOrDone(ctx, d)
}

func (r *Runner) location(key string) string {
	if r.Bucket == "" {
		return key
	}
	return "s3://" + r.Bucket + "/" + key
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func (r *Runner) step() time.Duration {
	if r.Step <= 0 {
		return DefaultStep
	}
	return r.Step
}

func (r *Runner) maxAttempts() int {
	if r.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return r.MaxAttempts
}

func (r *Runner) concurrency() int {
	if r.Concurrency <= 0 {
		return 1
	}
	return r.Concurrency
}

func (r *Runner) basePath() string {
	if r.BasePath == "" {
		return DefaultBasePath
	}
	return r.BasePath
}

func sleepOrDone(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
