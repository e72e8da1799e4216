package wait

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUntil_SatisfiedImmediately(t *testing.T) {
	cond := Probe("always true", func(context.Context) (bool, string, error) {
		return true, "ready", nil
	})

	start := time.Now()
	res, err := Until(context.Background(), cond, 5*time.Second, 100*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, res.Satisfied)
	assert.Equal(t, "ready", res.Observed)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "true-at-call-time must not wait a poll interval")
}

func TestUntil_SatisfiedAfterPolls(t *testing.T) {
	var calls atomic.Int32
	cond := Probe("third time lucky", func(context.Context) (bool, string, error) {
		n := calls.Add(1)
		if n >= 3 {
			return true, "done", nil
		}
		return false, fmt.Sprintf("attempt %d", n), nil
	})

	res, err := Until(context.Background(), cond, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, err)

	assert.True(t, res.Satisfied)
	assert.Equal(t, "done", res.Observed)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}

func TestUntil_TimeoutBounds(t *testing.T) {
	cond := Probe("never true", func(context.Context) (bool, string, error) {
		return false, "still waiting", nil
	})

	timeout := 200 * time.Millisecond
	interval := 50 * time.Millisecond

	start := time.Now()
	res, err := Until(context.Background(), cond, timeout, interval)
	elapsed := time.Since(start)

	require.Error(t, err)
	var te *TimeoutError
	require.ErrorAs(t, err, &te)

	assert.False(t, res.Satisfied)
	assert.Equal(t, "still waiting", te.Observed, "timeout must carry the last observed state")
	assert.Contains(t, te.Error(), "still waiting")
	assert.GreaterOrEqual(t, elapsed, timeout, "must not time out early")
	assert.Less(t, elapsed, timeout+2*interval, "must time out within one poll interval of the deadline")
}

func TestUntil_Canceled(t *testing.T) {
	cond := Probe("never true", func(context.Context) (bool, string, error) {
		return false, "pending", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	res, err := Until(ctx, cond, 10*time.Second, 10*time.Millisecond)

	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Satisfied)
	assert.Equal(t, "pending", res.Observed)
	assert.Less(t, time.Since(start), time.Second, "cancellation must stop polling promptly")
}

func TestUntil_ProbeError(t *testing.T) {
	probeErr := errors.New("element detached")
	cond := Probe("broken probe", func(context.Context) (bool, string, error) {
		return false, "broken", probeErr
	})

	_, err := Until(context.Background(), cond, time.Second, 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, probeErr)
	assert.Contains(t, err.Error(), "broken probe")
}

func TestUntil_IntervalClampedBelowTimeout(t *testing.T) {
	var calls atomic.Int32
	cond := Probe("second call true", func(context.Context) (bool, string, error) {
		return calls.Add(1) >= 2, "", nil
	})

	// interval larger than timeout would otherwise miss the second probe entirely
	res, err := Until(context.Background(), cond, 100*time.Millisecond, time.Hour)
	require.NoError(t, err)
	assert.True(t, res.Satisfied)
}

type fakeActivity struct {
	inflight int
	last     time.Time
}

func (f *fakeActivity) InFlight() int           { return f.inflight }
func (f *fakeActivity) LastActivity() time.Time { return f.last }

func TestNetworkIdle(t *testing.T) {
	tests := []struct {
		name     string
		activity fakeActivity
		idleFor  time.Duration
		wantOK   bool
	}{
		{name: "quiet long enough", activity: fakeActivity{inflight: 0, last: time.Now().Add(-time.Second)}, idleFor: 500 * time.Millisecond, wantOK: true},
		{name: "requests in flight", activity: fakeActivity{inflight: 2, last: time.Now().Add(-time.Second)}, idleFor: 500 * time.Millisecond, wantOK: false},
		{name: "recent activity", activity: fakeActivity{inflight: 0, last: time.Now()}, idleFor: 500 * time.Millisecond, wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cond := NetworkIdle(&tc.activity, tc.idleFor)
			ok, observed, err := cond.Probe(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.wantOK, ok)
			assert.NotEmpty(t, observed)
		})
	}
}

func TestNetworkIdle_DefaultWindow(t *testing.T) {
	cond := NetworkIdle(&fakeActivity{last: time.Now().Add(-time.Minute)}, 0)
	assert.Contains(t, cond.Describe(), "500ms")
}

func TestProbe_Describe(t *testing.T) {
	cond := Probe("custom check", func(context.Context) (bool, string, error) { return true, "", nil })
	assert.Equal(t, "custom check", cond.Describe())
}
