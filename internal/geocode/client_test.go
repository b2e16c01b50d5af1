package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raceatlas/raceatlas/pkg/errors"
)

func TestLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Berlin, Germany", r.URL.Query().Get("q"))
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"52.5170365","lon":"13.3888599","display_name":"Berlin, Deutschland"}]`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithMinInterval(0))

	coords, err := c.Lookup(context.Background(), "Berlin, Germany")
	require.NoError(t, err)
	assert.InDelta(t, 52.5170365, coords.Latitude, 1e-9)
	assert.InDelta(t, 13.3888599, coords.Longitude, 1e-9)
}

func TestLookupNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithMinInterval(0))

	_, err := c.Lookup(context.Background(), "Nowhere At All")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestLookupServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(WithBaseURL(srv.URL), WithMinInterval(0))

	_, err := c.Lookup(context.Background(), "Berlin")
	require.Error(t, err)
	assert.True(t, errors.IsRateLimited(err))
}

func TestLookupTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	defer close(release)

	c := New(WithBaseURL(srv.URL), WithMinInterval(0),
		WithHTTPClient(&http.Client{Timeout: 20 * time.Millisecond}))

	_, err := c.Lookup(context.Background(), "Berlin")
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
}

func TestLookupContextDeadline(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()
	defer close(release)

	c := New(WithBaseURL(srv.URL), WithMinInterval(0))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Lookup(ctx, "Berlin")
	require.Error(t, err)
	assert.True(t, errors.IsTimeout(err))
}

func TestLookupThrottles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[{"lat":"1","lon":"2"}]`))
	}))
	defer srv.Close()

	interval := 50 * time.Millisecond
	c := New(WithBaseURL(srv.URL), WithMinInterval(interval))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Lookup(context.Background(), "Berlin")
		require.NoError(t, err)
	}

	// Three calls require at least two full intervals between them.
	assert.GreaterOrEqual(t, time.Since(start), 2*interval)
}
