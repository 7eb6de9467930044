package storage

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyClientFetchSendsAccessHeaders(t *testing.T) {
	var gotPath, gotID, gotSecret string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotID = r.Header.Get(HeaderAccessClientID)
		gotSecret = r.Header.Get(HeaderAccessClientSecret)
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	client, err := NewProxyClient(ProxyConfig{
		BaseURL:      srv.URL + "/",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, srv.URL, client.baseURL)

	data, err := client.Fetch(context.Background(), "2024/01/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, "image-bytes", string(data))
	assert.Equal(t, "/2024/01/photo.jpg", gotPath)
	assert.Equal(t, "client-id", gotID)
	assert.Equal(t, "client-secret", gotSecret)
}

func TestProxyClientClassifiesStatus(t *testing.T) {
	tests := []struct {
		status int
		kind   error
	}{
		{status: http.StatusNotFound, kind: ErrNotFound},
		{status: http.StatusForbidden, kind: ErrForbidden},
		{status: http.StatusUnauthorized, kind: ErrForbidden},
		{status: http.StatusInternalServerError, kind: ErrTransport},
		{status: http.StatusBadGateway, kind: ErrTransport},
		{status: http.StatusTeapot, kind: ErrTransport},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			client, err := NewProxyClient(ProxyConfig{BaseURL: srv.URL})
			require.NoError(t, err)

			_, err = client.Fetch(context.Background(), "missing.jpg")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.kind), "got %v", err)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tc.status, fe.Status)
			assert.Equal(t, "missing.jpg", fe.Key)
		})
	}
}

func TestProxyClientRefusesOversizedBodies(t *testing.T) {
	t.Run("content length", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(strings.Repeat("x", 64)))
		}))
		defer srv.Close()

		client, err := NewProxyClient(ProxyConfig{BaseURL: srv.URL, MaxBytes: 16})
		require.NoError(t, err)

		_, err = client.Fetch(context.Background(), "big.jpg")
		require.ErrorIs(t, err, ErrTooLarge)
	})

	t.Run("chunked", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			flusher := w.(http.Flusher)
			for i := 0; i < 8; i++ {
				_, _ = w.Write([]byte("xxxxxxxx"))
				flusher.Flush()
			}
		}))
		defer srv.Close()

		client, err := NewProxyClient(ProxyConfig{BaseURL: srv.URL, MaxBytes: 16})
		require.NoError(t, err)

		_, err = client.Fetch(context.Background(), "big.jpg")
		require.ErrorIs(t, err, ErrTooLarge)
	})
}

func TestProxyClientRetriesTransportFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client, err := NewProxyClient(ProxyConfig{
		BaseURL:        srv.URL,
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	})
	require.NoError(t, err)

	data, err := client.Fetch(context.Background(), "flaky.jpg")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(data))
	assert.Equal(t, int32(3), calls.Load())
}

func TestProxyClientDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client, err := NewProxyClient(ProxyConfig{BaseURL: srv.URL, MaxAttempts: 5, InitialBackoff: time.Millisecond})
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "gone.jpg")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestProxyClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := NewProxyClient(ProxyConfig{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	_, err = client.Fetch(context.Background(), "a.jpg")
	require.ErrorIs(t, err, ErrTransport)
	require.Error(t, client.Ping(context.Background()))
}

func TestNewProxyClientRequiresURL(t *testing.T) {
	_, err := NewProxyClient(ProxyConfig{BaseURL: "  "})
	require.Error(t, err)
}
