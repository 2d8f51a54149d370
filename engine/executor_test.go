package engine

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/assetauction/core"
)

func TestExecutor_SerializesBids(t *testing.T) {
	h := setupEngine(t)
	a := h.open(t, 1, token)
	x := NewExecutor(h.eng)
	defer x.Close()

	bidders := []core.Address{alice, bob, carol}
	var wg sync.WaitGroup
	for i, bidder := range bidders {
		for step := 1; step <= 10; step++ {
			wg.Add(1)
			go func(bidder core.Address, amount int64) {
				defer wg.Done()
				_ = x.Do(context.Background(), func(e *Engine) error {
					_, err := e.PlaceBid(context.Background(), bidder, BidParams{AuctionID: a.ID, ExternalAmount: amt(amount)})
					return err
				})
			}(bidder, int64(step*10+i))
		}
	}
	wg.Wait()

	var conservation error
	assert.NoError(t, x.Do(context.Background(), func(e *Engine) error {
		conservation = e.CheckConservation()
		return nil
	}))
	check.NoError(t, conservation)
	check.False(t, h.eng.guard.held.Load())
}

func TestExecutor_ReturnsError(t *testing.T) {
	h := setupEngine(t)
	x := NewExecutor(h.eng)
	defer x.Close()

	want := errors.New("boom")
	err := x.Do(context.Background(), func(*Engine) error { return want })
	check.True(t, errors.Is(err, want))

	err = x.Do(context.Background(), func(*Engine) error { panic("kaboom") })
	check.Error(t, err)

	check.NoError(t, x.Do(context.Background(), func(*Engine) error { return nil }))
}

func TestExecutor_Closed(t *testing.T) {
	h := setupEngine(t)
	x := NewExecutor(h.eng)
	x.Close()
	x.Close()

	err := x.Do(context.Background(), func(*Engine) error { return nil })
	check.True(t, errors.Is(err, ErrExecutorClosed))
}

func TestExecutor_ContextDone(t *testing.T) {
	h := setupEngine(t)
	x := NewExecutor(h.eng)
	defer x.Close()

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = x.Do(context.Background(), func(*Engine) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := x.Do(ctx, func(*Engine) error { return nil })
	check.True(t, errors.Is(err, context.Canceled))
	close(release)
}
