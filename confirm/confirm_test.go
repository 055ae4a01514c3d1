package confirm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"admarket/confirm"
)

func TestWaitImmediateSuccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	calls := 0
	err := confirm.Wait(context.Background(), confirm.Policy{Attempts: 3, Interval: time.Second, Clock: clock},
		func(context.Context) (bool, error) {
			calls++
			return true, nil
		})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestWaitSucceedsAfterRetries(t *testing.T) {
	clock := clockwork.NewFakeClock()
	calls := make(chan int, 8)
	n := 0
	done := make(chan error, 1)
	go func() {
		done <- confirm.Wait(context.Background(), confirm.Policy{Attempts: 5, Interval: time.Second, Clock: clock},
			func(context.Context) (bool, error) {
				n++
				calls <- n
				return n >= 3, nil
			})
	}()

	require.Equal(t, 1, <-calls)
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	require.Equal(t, 2, <-calls)
	clock.BlockUntil(1)
	clock.Advance(time.Second)
	require.Equal(t, 3, <-calls)
	require.NoError(t, <-done)
}

func TestWaitExhaustsBudget(t *testing.T) {
	clock := clockwork.NewFakeClock()
	done := make(chan error, 1)
	checked := make(chan struct{}, 4)
	go func() {
		done <- confirm.Wait(context.Background(), confirm.Policy{Attempts: 3, Interval: time.Second, Clock: clock},
			func(context.Context) (bool, error) {
				checked <- struct{}{}
				return false, nil
			})
	}()

	<-checked
	for i := 0; i < 2; i++ {
		clock.BlockUntil(1)
		clock.Advance(time.Second)
		<-checked
	}
	require.ErrorIs(t, <-done, confirm.ErrExhausted)
}

func TestWaitPropagatesCheckError(t *testing.T) {
	boom := errors.New("probe failed")
	err := confirm.Wait(context.Background(), confirm.Policy{Attempts: 3, Interval: time.Second, Clock: clockwork.NewFakeClock()},
		func(context.Context) (bool, error) {
			return false, boom
		})
	require.ErrorIs(t, err, boom)
}

func TestWaitStopsOnContextCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	checked := make(chan struct{}, 1)
	go func() {
		done <- confirm.Wait(ctx, confirm.Policy{Attempts: 10, Interval: time.Second, Clock: clock},
			func(context.Context) (bool, error) {
				select {
				case checked <- struct{}{}:
				default:
				}
				return false, nil
			})
	}()

	<-checked
	clock.BlockUntil(1)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWaitDefaultsToSingleAttempt(t *testing.T) {
	calls := 0
	err := confirm.Wait(context.Background(), confirm.Policy{Clock: clockwork.NewFakeClock()},
		func(context.Context) (bool, error) {
			calls++
			return false, nil
		})
	require.ErrorIs(t, err, confirm.ErrExhausted)
	require.Equal(t, 1, calls)
}
