package main

import (
	"context"
	"flag"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/joho/godotenv"

	"github.com/OldEphraim/prom-archiver/archiver"
	"github.com/OldEphraim/prom-archiver/utils/clients"
	scraperconfig "github.com/OldEphraim/prom-archiver/utils/config"
	"github.com/OldEphraim/prom-archiver/utils/logging"
	"github.com/OldEphraim/prom-archiver/utils/scheduler"
)

type sinkFactory func(ctx context.Context, cfg *scraperconfig.Config) (archiver.Sink, error)

func newS3Sink(ctx context.Context, cfg *scraperconfig.Config) (archiver.Sink, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	return archiver.NewS3Sink(s3.NewFromConfig(awsCfg), cfg.Bucket), nil
}

func main() {
	_ = godotenv.Load()
	os.Exit(run(os.Args[1:], os.Getenv, os.Stdout, newS3Sink))
}

// run returns the process exit code: 0 once the loop has been entered, 1 for
// configuration or client setup failures, 2 for bad flags.
func run(args []string, getenv func(string) string, stdout io.Writer, mkSink sinkFactory) int {
	fs := flag.NewFlagSet("scraper", flag.ContinueOnError)
	fs.SetOutput(stdout)
	var (
		hours       = fs.Int("hours", 0, "Hours to backfill (overrides HOURS_TO_BACKFILL)")
		concurrency = fs.Int("concurrency", 0, "Max in-flight tuples per hour (overrides SCRAPE_CONCURRENCY)")
		once        = fs.Bool("once", false, "Run a single backfill and exit even if SCRAPE_INTERVAL is set")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	logger := logging.New(stdout, getenv("DEBUG") == "true")

	cfg, err := scraperconfig.Load(getenv)
	if err != nil {
		logger.Error("configuration error", "err", err)
		return 1
	}
	if *hours > 0 {
		cfg.Hours = *hours
	}
	if *concurrency > 0 {
		cfg.Concurrency = *concurrency
	}
	if *once {
		cfg.Interval = 0
	}

	sink, err := mkSink(context.Background(), cfg)
	if err != nil {
		logger.Error("storage client setup failed", "err", err)
		return 1
	}

	jobs := archiver.NewJobStore()
	runner := &archiver.Runner{
		Fetcher:     clients.NewPromClient(cfg.Timeout),
		Sink:        sink,
		Jobs:        jobs,
		Logger:      logger,
		Endpoints:   cfg.Endpoints,
		Metrics:     cfg.Metrics,
		BasePath:    cfg.BasePath,
		Bucket:      cfg.Bucket,
		Step:        cfg.Step,
		MaxAttempts: cfg.MaxAttempts,
		BaseBackoff: cfg.Backoff,
		Concurrency: cfg.Concurrency,
	}
	offsets := archiver.Offsets(cfg.Hours)

	var debugSrv *http.Server
	if cfg.DebugAddr != "" {
		debugSrv = archiver.StartDebugHTTP(cfg.DebugAddr, jobs, logger)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = debugSrv.Shutdown(ctx)
		}()
	}

	if cfg.Interval <= 0 {
		runner.Run(context.Background(), time.Now().UTC(), offsets)
		return 0
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(logger).Every(cfg.Interval, "backfill", func(ctx context.Context) {
		runner.Run(ctx, time.Now().UTC(), offsets)
	})
	sched.Run(ctx)
	logger.Info("scraper shutting down (signal)")
	return 0
}
