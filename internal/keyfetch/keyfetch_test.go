package keyfetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/deviceguard/internal/netx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(url string) *Client {
	return NewClient(url, netx.NewHTTPClient(netx.Timeouts{Connect: time.Second, Read: time.Second, Write: time.Second}), nil)
}

func TestFetchKey_OK(t *testing.T) {
	var gotPath, gotMethod string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		_, _ = w.Write([]byte("MIIBIjANBg...\n"))
	}))
	defer ts.Close()

	key, err := newClient(ts.URL + "/api/").FetchKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "MIIBIjANBg...\n", key)
	assert.Equal(t, "/api/configured-public-key", gotPath)
	assert.Equal(t, http.MethodGet, gotMethod)
}

func TestFetchKey_Errors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    error
		code    int
	}{
		{
			name:    "server error",
			handler: func(w http.ResponseWriter, r *http.Request) { http.Error(w, "boom", http.StatusInternalServerError) },
			want:    ErrHTTPStatus,
			code:    http.StatusInternalServerError,
		},
		{
			name:    "not found",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) },
			want:    ErrHTTPStatus,
			code:    http.StatusNotFound,
		},
		{
			name:    "empty body",
			handler: func(w http.ResponseWriter, r *http.Request) {},
			want:    ErrEmptyBody,
		},
		{
			name:    "whitespace body",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(" \n\t")) },
			want:    ErrEmptyBody,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()

			_, err := newClient(ts.URL).FetchKey(context.Background())
			require.ErrorIs(t, err, tt.want)

			if tt.code != 0 {
				var se *StatusError
				require.True(t, errors.As(err, &se))
				assert.Equal(t, tt.code, se.Code)
			}
		})
	}
}

func TestFetchKey_NetworkFailure(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	_, err := newClient(url).FetchKey(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
}

func TestFetchKey_Timeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	c := NewClient(ts.URL, netx.NewHTTPClient(netx.Timeouts{Connect: time.Second, Read: 50 * time.Millisecond, Write: time.Second}), nil)
	_, err := c.FetchKey(context.Background())
	require.ErrorIs(t, err, ErrNetwork)
}

func TestFetchKey_NoCaching(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte("k"))
	}))
	defer ts.Close()

	c := newClient(ts.URL)
	for i := 0; i < 3; i++ {
		_, err := c.FetchKey(context.Background())
		require.NoError(t, err)
	}
	assert.Equal(t, 3, calls)
}

func TestFakeFetcher(t *testing.T) {
	f := &FakeFetcher{Key: "k"}
	got, err := f.FetchKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "k", got)

	f.Err = ErrEmptyBody
	_, err = f.FetchKey(context.Background())
	require.ErrorIs(t, err, ErrEmptyBody)
	assert.Equal(t, 2, f.Calls)
}
