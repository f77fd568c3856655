package archiver

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

type fetchCall struct {
	BaseURL string
	Query   string
	Start   int64
	End     int64
	Step    time.Duration
}

// scriptedFetcher fails the first failures[baseURL|query] calls for a pair
// and returns body afterwards.
type scriptedFetcher struct {
	mu       sync.Mutex
	body     []byte
	failures map[string]int
	panics   map[string]bool
	calls    []fetchCall
}

func (f *scriptedFetcher) QueryRange(_ context.Context, baseURL, query string, start, end int64, step time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{baseURL, query, start, end, step})
	id := baseURL + "|" + query
	if f.panics[id] {
		panic("boom")
	}
	if f.failures[id] > 0 {
		f.failures[id]--
		return nil, errors.New("HTTP 503 | response=unavailable")
	}
	return f.body, nil
}

func (f *scriptedFetcher) callCount(baseURL, query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.BaseURL == baseURL && c.Query == query {
			n++
		}
	}
	return n
}

type storedObject struct {
	Body        []byte
	ContentType string
}

type memorySink struct {
	mu       sync.Mutex
	objects  map[string]storedObject
	puts     int
	failures map[string]int
}

func newMemorySink() *memorySink {
	return &memorySink{objects: map[string]storedObject{}, failures: map[string]int{}}
}

func (s *memorySink) Put(_ context.Context, key string, body []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.failures[key] > 0 {
		s.failures[key]--
		return errors.New("connection reset")
	}
	s.objects[key] = storedObject{Body: append([]byte(nil), body...), ContentType: contentType}
	return nil
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (r *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delays = append(r.delays, d)
	return nil
}

// syncBuffer keeps concurrent log writes whole.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger(w *syncBuffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
