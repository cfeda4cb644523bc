package universe

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"coinfolio/internal/domain"
)

type fakeCatalog struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	errs  []error
	items []domain.Instrument
}

func (f *fakeCatalog) GetInstruments(ctx context.Context) ([]domain.Instrument, error) {
	f.calls.Add(1)
	if f.started != nil {
		select {
		case f.started <- struct{}{}:
		default:
		}
	}
	if f.release != nil {
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.items, nil
}

func boolPtr(b bool) *bool { return &b }

func catalogItems() []domain.Instrument {
	return []domain.Instrument{
		{Symbol: "BTCUSDT", Status: "TRADING", Permissions: []string{"SPOT", "MARGIN"}},
		{Symbol: "ETHUSDT", Status: "TRADING", SpotAllowed: boolPtr(true)},
		{Symbol: "LUNAUSDT", Status: "BREAK", Permissions: []string{"SPOT"}},
		{Symbol: "ETHBTC", Status: "TRADING", Permissions: []string{"SPOT"}},
		{Symbol: "XYZUSDT", Status: "TRADING", SpotAllowed: boolPtr(false)},
		{Symbol: "USDT", Status: "TRADING", Permissions: []string{"SPOT"}},
	}
}

func TestFilter(t *testing.T) {
	u := Filter(catalogItems(), "usdt")
	require.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, u.Symbols())
}

func TestResolveCachesResult(t *testing.T) {
	src := &fakeCatalog{items: catalogItems()}
	r := NewResolver(src, "USDT", time.Second)

	_, ok := r.Cached()
	require.False(t, ok)

	u, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.True(t, u.Contains("BTCUSDT"))

	_, err = r.Resolve(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, src.calls.Load())

	ok, err = r.Contains(context.Background(), "ethusdt")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestResolveConcurrentCallsShareOneFetch(t *testing.T) {
	src := &fakeCatalog{
		items:   catalogItems(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r := NewResolver(src, "USDT", time.Second)

	var wg sync.WaitGroup
	results := make([]domain.Universe, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background())
		}(i)
	}

	<-src.started
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	require.Equal(t, results[0].Symbols(), results[1].Symbols())
	require.EqualValues(t, 1, src.calls.Load())
}

func TestResolveFailureIsNotCached(t *testing.T) {
	src := &fakeCatalog{items: catalogItems(), errs: []error{errors.New("boom")}}
	r := NewResolver(src, "USDT", time.Second)

	_, err := r.Resolve(context.Background())
	require.Error(t, err)
	_, ok := r.Cached()
	require.False(t, ok)

	u, err := r.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, u.Len())
	require.EqualValues(t, 2, src.calls.Load())
}

func TestResolveCallerCancelDoesNotAbortFetch(t *testing.T) {
	src := &fakeCatalog{
		items:   catalogItems(),
		started: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	r := NewResolver(src, "USDT", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Resolve(ctx)
		done <- err
	}()

	<-src.started
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(src.release)
	require.Eventually(t, func() bool {
		_, ok := r.Cached()
		return ok
	}, time.Second, 5*time.Millisecond)
	require.EqualValues(t, 1, src.calls.Load())
}
