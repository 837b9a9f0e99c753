package aviationstack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LerianStudio/lib-flightstatus/flightstatus/provider"
)

var testDate = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p, err := New(Config{AccessKey: "test-key", BaseURL: server.URL, HTTPClient: server.Client()})
	require.NoError(t, err)

	return p
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.ErrorIs(t, err, ErrMissingAccessKey)

	_, err = New(Config{AccessKey: "k", BaseURL: "://bad"})
	assert.ErrorIs(t, err, ErrInvalidBaseURL)

	p, err := New(Config{AccessKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, p.baseURL)
}

func TestFetchStatus_OnTime(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/flights", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("access_key"))
		assert.Equal(t, "AA123", r.URL.Query().Get("flight_iata"))
		assert.Equal(t, "2025-03-01", r.URL.Query().Get("flight_date"))

		_, _ = w.Write([]byte(`{"data":[{
			"flight_status":"active",
			"departure":{
				"iata":"JFK","terminal":"4","gate":"B23","delay":5,
				"scheduled":"2025-03-01T09:00:00+00:00",
				"actual":"2025-03-01T09:05:00+00:00"
			},
			"arrival":{"iata":"LAX"},
			"flight":{"iata":"AA123"}
		}]}`))
	})

	record, err := p.FetchStatus(context.Background(), "aa123", testDate)
	require.NoError(t, err)

	assert.Equal(t, "AA123", record.FlightID)
	assert.Equal(t, provider.StatusOnTime, record.Status)
	assert.True(t, record.DelayKnown)
	assert.Equal(t, 5, record.DelayMinutes)
	assert.Equal(t, "JFK", record.DepartureAirport)
	assert.Equal(t, "LAX", record.ArrivalAirport)
	assert.Equal(t, "B23", record.Gate)
	assert.Equal(t, "4", record.Terminal)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC), record.ScheduledDeparture)
	assert.Equal(t, time.Date(2025, 3, 1, 9, 5, 0, 0, time.UTC), record.ActualDeparture)
	assert.Equal(t, Name, record.Source)
	assert.InDelta(t, confidence, record.Confidence, 1e-9)
	assert.Equal(t, uint64(1), p.Calls())
}

func TestFetchStatus_DelayUpgradesStatus(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{
			"flight_status":"active",
			"departure":{"iata":"ORD","delay":45},
			"arrival":{"iata":"SFO"},
			"flight":{"iata":"UA456"}
		}]}`))
	})

	record, err := p.FetchStatus(context.Background(), "UA456", testDate)
	require.NoError(t, err)

	assert.Equal(t, provider.StatusDelayed, record.Status)
	assert.Equal(t, 45, record.DelayMinutes)
	assert.True(t, record.DelayKnown)
}

func TestFetchStatus_NullDelayStaysUnknown(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{
			"flight_status":"scheduled",
			"departure":{"iata":"ATL","delay":null},
			"arrival":{"iata":"MIA"},
			"flight":{"iata":"DL789"}
		}]}`))
	})

	record, err := p.FetchStatus(context.Background(), "DL789", testDate)
	require.NoError(t, err)

	assert.Equal(t, provider.StatusOnTime, record.Status)
	assert.False(t, record.DelayKnown)
	assert.Zero(t, record.DelayMinutes)
}

func TestFetchStatus_StatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status string
		want   provider.Status
	}{
		{status: "scheduled", want: provider.StatusOnTime},
		{status: "landed", want: provider.StatusOnTime},
		{status: "cancelled", want: provider.StatusCancelled},
		{status: "diverted", want: provider.StatusDiverted},
		{status: "incident", want: provider.StatusUnknown},
		{status: "", want: provider.StatusUnknown},
	}

	for _, tt := range tests {
		t.Run("status "+tt.status, func(t *testing.T) {
			t.Parallel()

			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"data":[{
					"flight_status":"` + tt.status + `",
					"departure":{"iata":"JFK"},
					"arrival":{"iata":"LAX"},
					"flight":{"iata":"AA123"}
				}]}`))
			})

			record, err := p.FetchStatus(context.Background(), "AA123", testDate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, record.Status)
		})
	}
}

func TestFetchStatus_CancelledIgnoresDelayUpgrade(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{
			"flight_status":"cancelled",
			"departure":{"iata":"ATL","delay":90},
			"arrival":{"iata":"MIA"},
			"flight":{"iata":"DL789"}
		}]}`))
	})

	record, err := p.FetchStatus(context.Background(), "DL789", testDate)
	require.NoError(t, err)

	assert.Equal(t, provider.StatusCancelled, record.Status)
	assert.Equal(t, 90, record.DelayMinutes)
}

func TestFetchStatus_PrefersMatchingDesignator(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"flight_status":"cancelled","departure":{"iata":"XXX"},"flight":{"iata":"BA999"}},
			{"flight_status":"active","departure":{"iata":"JFK"},"flight":{"iata":"AA123"}}
		]}`))
	})

	record, err := p.FetchStatus(context.Background(), "AA123", testDate)
	require.NoError(t, err)

	assert.Equal(t, provider.StatusOnTime, record.Status)
	assert.Equal(t, "JFK", record.DepartureAirport)
}

func TestFetchStatus_EnvelopeErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code     string
		wantKind provider.FailureKind
	}{
		{code: "invalid_access_key", wantKind: provider.FailureAuth},
		{code: "missing_access_key", wantKind: provider.FailureAuth},
		{code: "https_access_restricted", wantKind: provider.FailureAuth},
		{code: "usage_limit_reached", wantKind: provider.FailureRateLimited},
		{code: "rate_limit_reached", wantKind: provider.FailureRateLimited},
		{code: "internal_error", wantKind: provider.FailureUnavailable},
		{code: "404_not_found", wantKind: provider.FailureNotFound},
		{code: "validation_error", wantKind: provider.FailureMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			t.Parallel()

			p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"error":{"code":"` + tt.code + `","message":"nope"}}`))
			})

			_, err := p.FetchStatus(context.Background(), "AA123", testDate)
			require.Error(t, err)

			failure, ok := provider.AsFailure(err)
			require.True(t, ok)
			assert.Equal(t, tt.wantKind, failure.Kind)
			assert.Equal(t, Name, failure.Provider)
		})
	}
}

func TestFetchStatus_RateLimitCarriesRetryAfter(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":"usage_limit_reached","message":"quota"}}`))
	})

	_, err := p.FetchStatus(context.Background(), "AA123", testDate)

	failure, ok := provider.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, defaultRetryAfter, failure.RetryAfter)
}

func TestFetchStatus_HTTPFailures(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := p.FetchStatus(context.Background(), "AA123", testDate)
	assert.Equal(t, provider.FailureUnavailable, provider.KindOf(err))

	limited := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err = limited.FetchStatus(context.Background(), "AA123", testDate)
	assert.Equal(t, provider.FailureRateLimited, provider.KindOf(err))
}

func TestFetchStatus_MalformedBody(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data": not json`))
	})

	_, err := p.FetchStatus(context.Background(), "AA123", testDate)
	assert.Equal(t, provider.FailureMalformed, provider.KindOf(err))
}

func TestFetchStatus_EmptyData(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	_, err := p.FetchStatus(context.Background(), "AA123", testDate)
	assert.Equal(t, provider.FailureNotFound, provider.KindOf(err))
}

func TestProbe(t *testing.T) {
	t.Parallel()

	var query url.Values

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()

		_, _ = w.Write([]byte(`{"data":[]}`))
	})

	require.NoError(t, p.Probe(context.Background()))
	assert.Equal(t, "test-key", query.Get("access_key"))
	assert.Equal(t, "1", query.Get("limit"))
	assert.Empty(t, query.Get("flight_iata"))
	assert.Equal(t, uint64(0), p.Calls())
}

func TestProbe_BadKey(t *testing.T) {
	t.Parallel()

	p := newTestProvider(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"code":"invalid_access_key","message":"nope"}}`))
	})

	err := p.Probe(context.Background())
	assert.Equal(t, provider.FailureAuth, provider.KindOf(err))
}
