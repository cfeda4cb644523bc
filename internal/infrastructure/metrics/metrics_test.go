package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"coinfolio/internal/application/stream"
)

func TestStreamObserver(t *testing.T) {
	m := New()

	m.StateChanged(stream.StateConnecting)
	m.StateChanged(stream.StateOpen)
	require.Equal(t, 1.0, testutil.ToFloat64(m.streamState.WithLabelValues("open")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.streamState.WithLabelValues("connecting")))

	m.SubscribersChanged(3)
	m.FrameReceived()
	m.FrameReceived()
	m.FrameDropped(stream.DropDecode)
	m.RecordsAccepted(10)
	m.RecordsDropped("quote_suffix", 4)
	m.ReconnectScheduled()

	require.Equal(t, 3.0, testutil.ToFloat64(m.subscribers))
	require.Equal(t, 2.0, testutil.ToFloat64(m.frames))
	require.Equal(t, 1.0, testutil.ToFloat64(m.framesDropped.WithLabelValues("decode")))
	require.Equal(t, 10.0, testutil.ToFloat64(m.recordsAccepted))
	require.Equal(t, 4.0, testutil.ToFloat64(m.recordsDropped.WithLabelValues("quote_suffix")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.reconnects))
}

func TestObserveREST(t *testing.T) {
	m := New()
	m.ObserveREST("ticker_24hr", 20*time.Millisecond, nil)
	m.ObserveREST("ticker_24hr", time.Second, errors.New("boom"))

	require.Equal(t, 1.0, testutil.ToFloat64(m.restRequests.WithLabelValues("ticker_24hr", "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.restRequests.WithLabelValues("ticker_24hr", "error")))

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(m.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.True(t, strings.Contains(rec.Body.String(), "coinfolio_rest_request_seconds_bucket"))
}
