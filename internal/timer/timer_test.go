package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

var start = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func TestLoop_AdvanceFiresInOrder(t *testing.T) {
	loop := New(clockwork.NewFakeClockAt(start), zaptest.NewLogger(t))

	var log []string
	var fastTimes []time.Time
	loop.OnTick("fast", time.Second, func(ctx context.Context, now time.Time) {
		log = append(log, "fast")
		fastTimes = append(fastTimes, now)
	})
	loop.OnTick("slow", time.Minute, func(ctx context.Context, now time.Time) {
		log = append(log, "slow")
	})

	require.NoError(t, loop.Advance(context.Background(), 125*time.Second))

	assert.Len(t, fastTimes, 125)
	assert.Equal(t, start.Add(time.Second), fastTimes[0])
	assert.Equal(t, start.Add(125*time.Second), fastTimes[124])
	assert.Equal(t, start.Add(125*time.Second), loop.Clock().Now())

	slow := 0
	for i, name := range log {
		if name == "slow" {
			slow++
			// The one-second timer was registered first, so it runs first.
			assert.Equal(t, "fast", log[i-1])
		}
	}
	assert.Equal(t, 2, slow)
}

func TestLoop_Cancel(t *testing.T) {
	loop := New(clockwork.NewFakeClockAt(start), zaptest.NewLogger(t))

	var n int
	cancel := loop.OnTick("tick", time.Second, func(ctx context.Context, now time.Time) { n++ })
	require.NoError(t, loop.Advance(context.Background(), 3*time.Second))
	cancel()
	cancel()
	require.NoError(t, loop.Advance(context.Background(), 3*time.Second))

	assert.Equal(t, 3, n)
}

func TestLoop_CallbackCanCancelOtherTimer(t *testing.T) {
	loop := New(clockwork.NewFakeClockAt(start), zaptest.NewLogger(t))

	var second int
	var cancelSecond CancelFunc
	loop.OnTick("first", time.Second, func(ctx context.Context, now time.Time) { cancelSecond() })
	cancelSecond = loop.OnTick("second", time.Second, func(ctx context.Context, now time.Time) { second++ })

	require.NoError(t, loop.Advance(context.Background(), 5*time.Second))
	assert.Equal(t, 0, second)
}

func TestLoop_PanicDoesNotStopLoop(t *testing.T) {
	loop := New(clockwork.NewFakeClockAt(start), zaptest.NewLogger(t))

	var n int
	loop.OnTick("bad", time.Second, func(ctx context.Context, now time.Time) { panic("boom") })
	loop.OnTick("good", time.Second, func(ctx context.Context, now time.Time) { n++ })

	require.NoError(t, loop.Advance(context.Background(), 2*time.Second))
	assert.Equal(t, 2, n)
}

func TestLoop_AdvanceNeedsFakeClock(t *testing.T) {
	loop := New(clockwork.NewRealClock(), zaptest.NewLogger(t))
	assert.ErrorIs(t, loop.Advance(context.Background(), time.Second), ErrNotFake)
}

func TestLoop_RunRealClock(t *testing.T) {
	defer goleak.VerifyNone(t)

	loop := New(clockwork.NewRealClock(), zaptest.NewLogger(t))

	var ticks, running, overlap int32
	loop.OnTick("tick", 5*time.Millisecond, func(ctx context.Context, now time.Time) {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.StoreInt32(&overlap, 1)
		}
		time.Sleep(7 * time.Millisecond)
		atomic.AddInt32(&ticks, 1)
		atomic.AddInt32(&running, -1)
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, int32(0), atomic.LoadInt32(&overlap))
}
