package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GriffinCanCode/divpanel/internal/infrastructure/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, contentType string, status int, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func host(t *testing.T, srv *httptest.Server) string {
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u.Host
}

func TestFetchText(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		status      int
		body        []byte
		want        string
		wantErr     error
	}{
		{
			name:        "javascript",
			contentType: "application/javascript",
			status:      http.StatusOK,
			body:        []byte("window.loaded = 42;"),
			want:        "window.loaded = 42;",
		},
		{
			name:   "bom is stripped",
			status: http.StatusOK,
			body:   []byte("\uFEFFvar a = 1;"),
			want:   "var a = 1;",
		},
		{
			name:        "latin1 with charset header",
			contentType: "application/javascript; charset=iso-8859-1",
			status:      http.StatusOK,
			body:        []byte{'v', 'a', 'r', ' ', 's', '=', '"', 0xE9, '"', ';'},
			want:        `var s="é";`,
		},
		{
			name:   "empty body",
			status: http.StatusOK,
			body:   nil,
			want:   "",
		},
		{
			name:        "html page",
			contentType: "text/html",
			status:      http.StatusOK,
			body:        []byte("<!DOCTYPE html><html><body>login</body></html>"),
			wantErr:     ErrNotScript,
		},
		{
			name:    "binary",
			status:  http.StatusOK,
			body:    []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01"),
			wantErr: ErrNotScript,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.contentType, tt.status, tt.body)
			c := NewClient(DefaultConfig())

			got, err := c.FetchText(context.Background(), srv.URL+"/lib.js")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFetchStatusError(t *testing.T) {
	srv := serve(t, "text/plain", http.StatusNotFound, []byte("missing"))
	c := NewClient(DefaultConfig())

	_, err := c.FetchText(context.Background(), srv.URL+"/missing.js")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.Status)
	assert.Contains(t, err.Error(), "/missing.js")
}

func TestFetchUnsupportedURL(t *testing.T) {
	c := NewClient(DefaultConfig())
	for _, raw := range []string{"file:///etc/passwd", "data:text/javascript,1", "::bad"} {
		_, err := c.FetchText(context.Background(), raw)
		assert.ErrorIs(t, err, ErrUnsupportedURL, raw)
	}
}

func TestFetchTooLarge(t *testing.T) {
	srv := serve(t, "application/javascript", http.StatusOK, []byte("var padding = '0123456789';"))
	cfg := DefaultConfig()
	cfg.MaxBytes = 8
	c := NewClient(cfg)

	_, err := c.FetchText(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchBreakerPerOrigin(t *testing.T) {
	var hits atomic.Int32
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()
	healthy := serve(t, "application/javascript", http.StatusOK, []byte("1"))

	c := NewClient(DefaultConfig())
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.FetchText(ctx, failing.URL)
		require.Error(t, err)
	}
	assert.Equal(t, resilience.StateOpen, c.BreakerState(host(t, failing)))

	_, err := c.FetchText(ctx, failing.URL)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, int32(5), hits.Load())

	got, err := c.FetchText(ctx, healthy.URL)
	require.NoError(t, err)
	assert.Equal(t, "1", got)
	assert.Equal(t, resilience.StateClosed, c.BreakerState(host(t, healthy)))
}

func TestFetchContext(t *testing.T) {
	t.Run("cancelled before request", func(t *testing.T) {
		srv := serve(t, "", http.StatusOK, []byte("1"))
		c := NewClient(DefaultConfig())
		c.SetRateLimit(1)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.FetchText(ctx, srv.URL)
		assert.Error(t, err)
	})

	t.Run("timeout on stalled server", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		c := NewClient(DefaultConfig())
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err := c.FetchText(ctx, srv.URL)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded) || time.Since(start) < 5*time.Second)
	})
}

func TestRequestFailsFastWhenOpen(t *testing.T) {
	c := NewClient(DefaultConfig())
	b := c.Breakers.For("cdn.test")
	for i := 0; i < 5; i++ {
		done, err := b.Allow()
		require.NoError(t, err)
		done(errors.New("down"))
	}

	req, err := c.Request(context.Background(), "cdn.test")
	assert.Equal(t, resilience.ErrCircuitOpen, err)
	assert.Nil(t, req)

	req, err = c.Request(context.Background(), "other.test")
	require.NoError(t, err)
	assert.NotNil(t, req)
}

func TestDetectCharset(t *testing.T) {
	assert.NotEmpty(t, DetectCharset([]byte("plain ascii text that is long enough to detect")))
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base    string
		ref     string
		want    string
		wantErr bool
	}{
		{ref: "https://cdn.test/a.js", want: "https://cdn.test/a.js"},
		{ref: "//cdn.test/a.js", want: "https://cdn.test/a.js"},
		{base: "http://grafana.local/d/x", ref: "/public/a.js", want: "http://grafana.local/public/a.js"},
		{base: "http://grafana.local/d/x", ref: "//cdn.test/a.js", want: "http://cdn.test/a.js"},
		{ref: "lib/a.js", wantErr: true},
		{ref: "  ", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ResolveURL(tt.base, tt.ref)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnsupportedURL, tt.ref)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestFetchRelativeURL(t *testing.T) {
	srv := serve(t, "application/javascript", http.StatusOK, []byte("ok()"))
	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL + "/dashboards/"
	c := NewClient(cfg)

	got, err := c.FetchText(context.Background(), "../plugins/lib.js")
	require.NoError(t, err)
	assert.Equal(t, "ok()", got)
}
