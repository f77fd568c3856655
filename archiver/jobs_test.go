package archiver

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStore_Lifecycle(t *testing.T) {
	s := NewJobStore()
	s.Reset(fixedNow)
	w := WindowFor(fixedNow, 0)
	ok := Tuple{Offset: 0, Alias: "a", Metric: "m"}
	bad := Tuple{Offset: 0, Alias: "a", Metric: "n"}

	s.Pending(ok, w)
	s.Pending(bad, w)

	j, found := s.Get(ok)
	require.True(t, found)
	assert.Equal(t, StatePending, j.State)
	assert.Equal(t, w.Start, j.Start)

	s.Start(ok, 1)
	j, _ = s.Get(ok)
	assert.Equal(t, StateFetching, j.State)

	s.Done(ok, "k8s_data/a/x/m.json")
	s.Start(bad, 3)
	s.Fail(bad, errors.New("nope"))

	// terminal states are final
	s.Fail(ok, errors.New("late"))
	s.Done(bad, "ignored")

	j, _ = s.Get(ok)
	assert.Equal(t, StateSuccess, j.State)
	assert.Equal(t, "k8s_data/a/x/m.json", j.Key)
	assert.Empty(t, j.Error)

	j, _ = s.Get(bad)
	assert.Equal(t, StateFailed, j.State)
	assert.Equal(t, 3, j.Attempts)
	assert.Equal(t, "nope", j.Error)
	assert.Empty(t, j.Key)

	sum := s.Finish(fixedNow.Add(time.Minute))
	assert.Equal(t, Summary{
		StartedAt:  fixedNow,
		FinishedAt: fixedNow.Add(time.Minute),
		Total:      2,
		Succeeded:  1,
		Failed:     1,
	}, sum)
}

func TestJobStore_SnapshotOrderAndReset(t *testing.T) {
	s := NewJobStore()
	s.Reset(fixedNow)
	for _, tu := range []Tuple{
		{Offset: 1, Alias: "b", Metric: "m"},
		{Offset: 0, Alias: "b", Metric: "m"},
		{Offset: 0, Alias: "a", Metric: "z"},
		{Offset: 0, Alias: "a", Metric: "c"},
	} {
		s.Pending(tu, WindowFor(fixedNow, tu.Offset))
	}

	sum, jobs := s.Snapshot()
	assert.Equal(t, 4, sum.Total)
	require.Len(t, jobs, 4)
	assert.Equal(t, "c", jobs[0].Metric)
	assert.Equal(t, "z", jobs[1].Metric)
	assert.Equal(t, "b", jobs[2].Alias)
	assert.Equal(t, 1, jobs[3].Offset)

	s.Reset(fixedNow.Add(time.Hour))
	sum, jobs = s.Snapshot()
	assert.Zero(t, sum.Total)
	assert.Empty(t, jobs)
	assert.Equal(t, fixedNow.Add(time.Hour), sum.StartedAt)
}

func TestJobStore_UnknownTupleIsIgnored(t *testing.T) {
	s := NewJobStore()
	s.Start(Tuple{Alias: "ghost"}, 1)
	s.Done(Tuple{Alias: "ghost"}, "k")
	s.Fail(Tuple{Alias: "ghost"}, errors.New("x"))

	sum, jobs := s.Snapshot()
	assert.Zero(t, sum.Succeeded)
	assert.Zero(t, sum.Failed)
	assert.Empty(t, jobs)
}
