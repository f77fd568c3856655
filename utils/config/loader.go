package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/OldEphraim/prom-archiver/archiver"
)

// ErrInvalidConfig marks every startup configuration failure. The process
// exits non-zero before any request is made.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	AWSRegion        = "us-east-1"
	BasePath         = archiver.DefaultBasePath
	HoursToBackfill  = 8
	StepSeconds      = 3600
	TimeoutSeconds   = 30
	MaxRetries       = archiver.DefaultMaxAttempts
	RetryBackoffSecs = 2
	DefaultWorkers   = 1
)

// DefaultMetrics are the query expressions fetched for every endpoint.
var DefaultMetrics = []string{
	"kube_node_info",
	"kube_pod_info",
	"container_memory_working_set_bytes",
	"container_cpu_usage_seconds_total",
	"cluster:namespace:pod_cpu:active:kube_pod_container_resource_requests",
	"cluster:namespace:pod_cpu:active:kube_pod_container_resource_limits",
	"cluster:namespace:pod_memory:active:kube_pod_container_resource_requests",
	"cluster:namespace:pod_memory:active:kube_pod_container_resource_limits",
	"kube_pod_container_resource_requests",
	"kube_pod_container_resource_limits",
}

// Config is built once at startup and passed down; nothing reads the
// environment after Load returns.
type Config struct {
	Bucket    string
	Region    string
	Endpoints []archiver.Endpoint
	Metrics   []string

	BasePath    string
	Hours       int
	Step        time.Duration
	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration
	Concurrency int

	// Interval > 0 switches from a single run to a scheduled loop.
	Interval  time.Duration
	DebugAddr string
	Debug     bool
}

// Default returns the compiled-in settings with no bucket or endpoints.
func Default() *Config {
	return &Config{
		Region:      AWSRegion,
		Metrics:     append([]string(nil), DefaultMetrics...),
		BasePath:    BasePath,
		Hours:       HoursToBackfill,
		Step:        StepSeconds * time.Second,
		Timeout:     TimeoutSeconds * time.Second,
		MaxAttempts: MaxRetries,
		Backoff:     RetryBackoffSecs * time.Second,
		Concurrency: DefaultWorkers,
	}
}

// Load reads the scraper settings through getenv (os.Getenv in production).
func Load(getenv func(string) string) (*Config, error) {
	cfg := Default()

	cfg.Bucket = strings.TrimSpace(getenv("S3_BUCKET"))
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: S3_BUCKET env var is required", ErrInvalidConfig)
	}

	eps, err := ParseEndpoints(getenv("PROM_ENDPOINTS"))
	if err != nil {
		return nil, err
	}
	cfg.Endpoints = eps

	if v := getenv("HOURS_TO_BACKFILL"); v != "" {
		n, err := positiveInt("HOURS_TO_BACKFILL", v)
		if err != nil {
			return nil, err
		}
		cfg.Hours = n
	}

	if v := getenv("SCRAPE_CONCURRENCY"); v != "" {
		n, err := positiveInt("SCRAPE_CONCURRENCY", v)
		if err != nil {
			return nil, err
		}
		cfg.Concurrency = n
	}

	if v := getenv("SCRAPE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return nil, fmt.Errorf("%w: SCRAPE_INTERVAL must be a non-negative duration, got %q", ErrInvalidConfig, v)
		}
		cfg.Interval = d
	}

	cfg.DebugAddr = getenv("SCRAPER_DEBUG_ADDR")
	cfg.Debug = getenv("DEBUG") == "true"
	return cfg, nil
}

// ParseEndpoints decodes a JSON object of alias -> base URL. Aliases become
// key path segments, so they may not be empty or contain '/'. The result is
// sorted by alias.
func ParseEndpoints(raw string) ([]archiver.Endpoint, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: PROM_ENDPOINTS env var is required", ErrInvalidConfig)
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m == nil {
		return nil, fmt.Errorf("%w: PROM_ENDPOINTS must be a valid JSON object", ErrInvalidConfig)
	}
	if len(m) == 0 {
		return nil, fmt.Errorf("%w: PROM_ENDPOINTS must not be empty", ErrInvalidConfig)
	}

	out := make([]archiver.Endpoint, 0, len(m))
	for alias, base := range m {
		if alias == "" || strings.Contains(alias, "/") {
			return nil, fmt.Errorf("%w: PROM_ENDPOINTS alias %q is not a valid path segment", ErrInvalidConfig, alias)
		}
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("%w: PROM_ENDPOINTS[%q] is not an absolute URL", ErrInvalidConfig, alias)
		}
		out = append(out, archiver.Endpoint{Alias: alias, BaseURL: base})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Alias < out[j].Alias })
	return out, nil
}

func positiveInt(name, v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidConfig, name, v)
	}
	return n, nil
}
