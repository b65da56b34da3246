package retention

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	n       int
	err     error
}

func (f *fakePurger) Purge(ctx context.Context, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoffs = append(f.cutoffs, cutoff)
	return f.n, f.err
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(&fakePurger{}, 0, "")
	assert.Error(t, err)
	_, err = New(&fakePurger{}, 30, "not a schedule")
	assert.Error(t, err)

	s, err := New(&fakePurger{}, 30, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSchedule, s.Status().Schedule)
}

func TestRunNow_UsesRetentionWindow(t *testing.T) {
	p := &fakePurger{n: 3}
	s, err := New(p, 30, "@daily", WithClock(fixedClock))
	require.NoError(t, err)

	n, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, p.cutoffs, 1)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), p.cutoffs[0])

	st := s.Status()
	assert.Equal(t, 3, st.LastPurged)
	assert.Equal(t, fixedClock(), st.LastRun)
	assert.Empty(t, st.LastError)
	assert.False(t, st.Running)
}

func TestRunNow_RecordsError(t *testing.T) {
	p := &fakePurger{err: errors.New("disk full")}
	s, err := New(p, 7, "")
	require.NoError(t, err)

	_, err = s.RunNow(context.Background())
	assert.Error(t, err)
	assert.Equal(t, "disk full", s.Status().LastError)
}

func TestStartStop(t *testing.T) {
	s, err := New(&fakePurger{}, 7, "@hourly")
	require.NoError(t, err)
	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start fails")

	st := s.Status()
	assert.True(t, st.Running)
	assert.True(t, st.NextRun.After(time.Now()))

	s.Stop()
	s.Stop()
	assert.False(t, s.Status().Running)
}
