package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"coinfolio/internal/domain"
)

const exchangeInfoBody = `{
  "timezone": "UTC",
  "symbols": [
    {"symbol":"BTCUSDT","status":"TRADING","quoteAsset":"USDT","isSpotTradingAllowed":true,"permissions":[],"permissionSets":[["SPOT","MARGIN"]]},
    {"symbol":"ETHUSDT","status":"TRADING","quoteAsset":"USDT","permissions":["SPOT"]},
    {"symbol":"LUNAUSDT","status":"BREAK","quoteAsset":"USDT","isSpotTradingAllowed":false},
    {"symbol":"","status":"TRADING"}
  ]
}`

const stats24hBody = `[
  {"symbol":"BTCUSDT","lastPrice":"65000.00","priceChangePercent":"2.500","quoteVolume":"1000000.5"},
  {"symbol":"ETHUSDT","lastPrice":"3000.00","priceChangePercent":"-1.0"},
  {"symbol":"XRPUSDT","lastPrice":"0.5","priceChangePercent":"NaN","quoteVolume":"5"},
  {"symbol":"DOGEUSDT","lastPrice":"0","priceChangePercent":"1","quoteVolume":"5"},
  {"symbol":"SOLUSDT","priceChangePercent":"1"}
]`

const klinesBody = `[
  [1499040000000,"0.01634790","0.80000000","0.01575800","0.01577100","148976.11427815",1499644799999,"2434.19",308,"1756.87","28.46","0"],
  [1499644800000,"0.01577100","0.01600000","0.01500000","0.01590000","bad",1500249599999,"1.0",1,"1","1","0"],
  [1500249600000,"NaN","0.01600000","0.01500000","0.01590000","1",1500854399999,"1.0",1,"1","1","0"],
  [1500854400000,"0.01"]
]`

type recorder struct {
	mu    sync.Mutex
	calls map[string]int
	errs  map[string]int
}

func (r *recorder) observe(endpoint string, _ time.Duration, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls, r.errs = map[string]int{}, map[string]int{}
	}
	r.calls[endpoint]++
	if err != nil {
		r.errs[endpoint]++
	}
}

func newTestClient(t *testing.T, h http.HandlerFunc, opts RestOptions) *RestClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts.BaseURL = srv.URL
	return NewRestClient(opts)
}

func TestGetExchangeInfo(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/exchangeInfo", r.URL.Path)
		_, _ = w.Write([]byte(exchangeInfoBody))
	}, RestOptions{})

	got, err := c.GetInstruments(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)

	require.Equal(t, "BTCUSDT", got[0].Symbol)
	require.Equal(t, []string{"SPOT", "MARGIN"}, got[0].Permissions)
	require.NotNil(t, got[0].SpotAllowed)
	require.True(t, *got[0].SpotAllowed)

	require.Equal(t, []string{"SPOT"}, got[1].Permissions)
	require.Nil(t, got[1].SpotAllowed)
	require.Equal(t, "BREAK", got[2].Status)
}

func TestGetExchangeInfoRejectsBadPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"timezone":"UTC"}`))
	}, RestOptions{})

	_, err := c.GetExchangeInfo(context.Background())
	require.Error(t, err)
}

func TestGetPrice(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("symbol") {
		case "BTCUSDT":
			_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"65000.12"}`))
		case "ZEROUSDT":
			_, _ = w.Write([]byte(`{"symbol":"ZEROUSDT","price":"0.0"}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
		}
	}, RestOptions{})

	px, err := c.GetPrice(context.Background(), "btcusdt")
	require.NoError(t, err)
	require.Equal(t, 65000.12, px)

	_, err = c.GetPrice(context.Background(), "ZEROUSDT")
	require.Error(t, err)

	_, err = c.GetPrice(context.Background(), "NOPEUSDT")
	require.ErrorIs(t, err, domain.ErrUnknownSymbol)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusBadRequest, se.Status)

	_, err = c.GetPrice(context.Background(), " ")
	require.ErrorIs(t, err, domain.ErrUnknownSymbol)
}

func TestGetAllPricesDropsInvalid(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"symbol":"BTCUSDT","price":"1.5"},{"symbol":"ETHUSDT","price":"-1"},{"symbol":"XRPUSDT"},{"price":"2"}]`))
	}, RestOptions{})

	got, err := c.GetAllPrices(context.Background())
	require.NoError(t, err)
	require.Equal(t, map[string]float64{"BTCUSDT": 1.5}, got)
}

func TestGetAll24hStats(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		_, _ = w.Write([]byte(stats24hBody))
	}, RestOptions{})

	got, err := c.GetAll24hStats(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	btc := got["BTCUSDT"]
	require.Equal(t, 65000.0, btc.Price)
	require.Equal(t, 2.5, btc.ChangePercent)
	require.NotNil(t, btc.QuoteVolume)
	require.Equal(t, 1000000.5, *btc.QuoteVolume)

	eth := got["ETHUSDT"]
	require.Equal(t, -1.0, eth.ChangePercent)
	require.Nil(t, eth.QuoteVolume)
}

func TestGetKlines(t *testing.T) {
	var gotLimit atomic.Value
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v3/klines", r.URL.Path)
		require.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		require.Equal(t, "4h", r.URL.Query().Get("interval"))
		gotLimit.Store(r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(klinesBody))
	}, RestOptions{})

	candles, err := c.GetKlines(context.Background(), "btcusdt", "4h", 0)
	require.NoError(t, err)
	require.Equal(t, "100", gotLimit.Load())
	require.Len(t, candles, 2)

	require.Equal(t, int64(1499040000000), candles[0].OpenTime)
	require.Equal(t, 0.8, candles[0].High)
	require.Equal(t, int64(1499644799999), candles[0].CloseTime)
	require.NotNil(t, candles[0].Volume)
	require.Nil(t, candles[1].Volume)

	_, err = c.GetKlines(context.Background(), "BTCUSDT", "4h", 5000)
	require.NoError(t, err)
	require.Equal(t, "1000", gotLimit.Load())
}

func TestGetKlinesRejectsBadInterval(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}, RestOptions{})

	_, err := c.GetKlines(context.Background(), "BTCUSDT", "7m", 10)
	require.ErrorIs(t, err, domain.ErrInvalidInterval)
	require.Zero(t, hits.Load())
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, 100, ClampLimit(-5))
	require.Equal(t, 100, ClampLimit(0))
	require.Equal(t, 1, ClampLimit(1))
	require.Equal(t, 1000, ClampLimit(1001))
}

func TestRequestTimeoutIsAnOrdinaryError(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, RestOptions{Timeout: 50 * time.Millisecond})

	_, err := c.GetAllPrices(context.Background())
	require.Error(t, err)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	rec := &recorder{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, RestOptions{BreakerFailures: 3, BreakerCooldown: time.Minute, Observe: rec.observe})

	for i := 0; i < 3; i++ {
		_, err := c.GetAllPrices(context.Background())
		var se *StatusError
		require.True(t, errors.As(err, &se))
		require.Equal(t, http.StatusBadGateway, se.Status)
	}

	_, err := c.GetAllPrices(context.Background())
	require.ErrorIs(t, err, gobreaker.ErrOpenState)
	require.EqualValues(t, 3, hits.Load())
	require.Equal(t, 4, rec.errs[EndpointAllPrices])
}

func TestClientErrorsDoNotTripBreaker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	}, RestOptions{BreakerFailures: 2})

	for i := 0; i < 5; i++ {
		_, err := c.GetPrice(context.Background(), "NOPEUSDT")
		require.ErrorIs(t, err, domain.ErrUnknownSymbol)
	}
}
