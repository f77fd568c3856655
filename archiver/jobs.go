package archiver

import (
	"sort"
	"sync"
	"time"
)

type JobState string

const (
	StatePending  JobState = "pending"
	StateFetching JobState = "fetching"
	StateSuccess  JobState = "success"
	StateFailed   JobState = "failed"
)

// Job is the ledger row for one tuple of the current run.
type Job struct {
	Offset   int       `json:"offset"`
	Alias    string    `json:"alias"`
	Metric   string    `json:"metric"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	State    JobState  `json:"state"`
	Attempts int       `json:"attempts"`
	Key      string    `json:"key,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Summary is the aggregate outcome of one run.
type Summary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Total      int       `json:"total"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
}

// JobStore tracks tuple states for the run in progress. It is reset at the
// start of every run and never persisted.
type JobStore struct {
	mu      sync.Mutex
	jobs    map[Tuple]*Job
	summary Summary
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[Tuple]*Job)}
}

// Reset clears the ledger for a new run.
func (s *JobStore) Reset(startedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = make(map[Tuple]*Job)
	s.summary = Summary{StartedAt: startedAt}
}

func (s *JobStore) Pending(t Tuple, w Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[t] = &Job{
		Offset: t.Offset, Alias: t.Alias, Metric: t.Metric,
		Start: w.Start, End: w.End, State: StatePending,
	}
	s.summary.Total++
}

func (s *JobStore) Start(t Tuple, attempt int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[t]; ok {
		j.State = StateFetching
		j.Attempts = attempt
	}
}

func (s *JobStore) Done(t Tuple, key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[t]; ok && j.State != StateSuccess && j.State != StateFailed {
		j.State = StateSuccess
		j.Key = key
		j.Error = ""
		s.summary.Succeeded++
	}
}

func (s *JobStore) Fail(t Tuple, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if j, ok := s.jobs[t]; ok && j.State != StateSuccess && j.State != StateFailed {
		j.State = StateFailed
		if err != nil {
			j.Error = err.Error()
		}
		s.summary.Failed++
	}
}

func (s *JobStore) Finish(at time.Time) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.FinishedAt = at
	return s.summary
}

// Get returns a copy of the job for t.
func (s *JobStore) Get(t Tuple) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[t]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// Snapshot returns the summary and all jobs ordered by offset, alias, metric.
func (s *JobStore) Snapshot() (Summary, []Job) {
	s.mu.Lock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	sum := s.summary
	s.mu.Unlock()

	sort.Slice(out, func(i, k int) bool {
		a, b := out[i], out[k]
		if a.Offset != b.Offset {
			return a.Offset < b.Offset
		}
		if a.Alias != b.Alias {
			return a.Alias < b.Alias
		}
		return a.Metric < b.Metric
	})
	return sum, out
}
