package netx

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeouts_WithDefaults(t *testing.T) {
	got := Timeouts{Read: time.Second}.WithDefaults()
	assert.Equal(t, DefaultTimeout, got.Connect)
	assert.Equal(t, time.Second, got.Read)
	assert.Equal(t, DefaultTimeout, got.Write)
}

func TestNewHTTPClient_TotalTimeout(t *testing.T) {
	c := NewHTTPClient(Timeouts{Connect: time.Second, Read: 2 * time.Second, Write: 3 * time.Second})
	assert.Equal(t, 6*time.Second, c.Timeout)

	tr, ok := c.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 2*time.Second, tr.ResponseHeaderTimeout)
	assert.Equal(t, time.Second, tr.TLSHandshakeTimeout)
}

func TestNewHTTPClient_Roundtrip(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write([]byte(strings.ToUpper(string(body))))
	}))
	defer ts.Close()

	c := NewHTTPClient(Timeouts{})
	resp, err := c.Post(ts.URL, "text/plain", strings.NewReader("ping"))
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "PING", string(b))
}

func TestNewHTTPClient_ReadTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	c := NewHTTPClient(Timeouts{Connect: time.Second, Read: 50 * time.Millisecond, Write: time.Second})
	_, err := c.Get(ts.URL)
	require.Error(t, err)
}

func TestNewHTTPClient_DoesNotFollowRedirects(t *testing.T) {
	var followed bool
	mux := http.NewServeMux()
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	})
	mux.HandleFunc("/elsewhere", func(w http.ResponseWriter, r *http.Request) {
		followed = true
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	resp, err := NewHTTPClient(Timeouts{}).Post(ts.URL+"/upload", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.False(t, followed)
}
