package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFetchOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("pixels"))
	}))
	defer srv.Close()

	b, err := NewHTTP(HTTPConfig{}).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "pixels", string(b))
}

func TestFetchFollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/img", http.StatusPermanentRedirect)
	})
	mux.HandleFunc("/img", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	b, err := NewHTTP(HTTPConfig{}).Fetch(context.Background(), srv.URL+"/a")
	require.NoError(t, err)
	require.Equal(t, "ok", string(b))

	_, err = NewHTTP(HTTPConfig{MaxRedirects: 1}).Fetch(context.Background(), srv.URL+"/a")
	require.ErrorIs(t, err, ErrTooManyRedirects)
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTP(HTTPConfig{}).Fetch(context.Background(), srv.URL)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusNotFound, se.Code)
}

func TestFetchTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer srv.Close()

	_, err := NewHTTP(HTTPConfig{MaxBytes: 10}).Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, ErrTooLarge)
}

func TestFetchHonoursCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := NewHTTP(HTTPConfig{}).Fetch(ctx, srv.URL)
	require.ErrorIs(t, err, context.Canceled)
}
