package geocode_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/fleetrelay/internal/relay/geocode"
)

func TestReverseGeocodeParsesDisplayName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/reverse", r.URL.Path)
		require.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		require.Equal(t, "12.9", r.URL.Query().Get("lat"))
		require.Equal(t, "77.6", r.URL.Query().Get("lon"))
		require.Equal(t, "fleetrelay-test", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"display_name":"MG Road, Bengaluru"}`))
	}))
	defer srv.Close()

	client := geocode.NewClient(geocode.ClientConfig{BaseURL: srv.URL, UserAgent: "fleetrelay-test"})
	name, err := client.ReverseGeocode(context.Background(), 12.9, 77.6)
	require.NoError(t, err)
	require.Equal(t, "MG Road, Bengaluru", name)
}

func TestReverseGeocodeRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := geocode.NewClient(geocode.ClientConfig{BaseURL: srv.URL})
	_, err := client.ReverseGeocode(context.Background(), 12.9, 77.6)
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}

func TestReverseGeocodeRejectsMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := geocode.NewClient(geocode.ClientConfig{BaseURL: srv.URL})
	_, err := client.ReverseGeocode(context.Background(), 12.9, 77.6)
	require.Error(t, err)
}

func TestReverseGeocodeRejectsEmptyDisplayName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"unable to geocode"}`))
	}))
	defer srv.Close()

	client := geocode.NewClient(geocode.ClientConfig{BaseURL: srv.URL})
	_, err := client.ReverseGeocode(context.Background(), 0, 0)
	require.Error(t, err)
}

func TestReverseGeocodeTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"display_name":"too late"}`))
	}))
	defer srv.Close()

	client := geocode.NewClient(geocode.ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := client.ReverseGeocode(context.Background(), 12.9, 77.6)
	require.Error(t, err)
}
