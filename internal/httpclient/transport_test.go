package httpclient

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_DecodesBrotli(t *testing.T) {
	var payload bytes.Buffer
	bw := brotli.NewWriter(&payload)
	_, err := bw.Write([]byte(`{"items":[]}`))
	require.NoError(t, err)
	require.NoError(t, bw.Close())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "br")
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Encoding", "br")
		_, _ = w.Write(payload.Bytes())
	}))
	defer srv.Close()

	resp, err := New(Options{Timeout: 5 * time.Second}).Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, `{"items":[]}`, string(body))
	assert.Empty(t, resp.Header.Get("Content-Encoding"))
}

func TestClient_PlainBodyUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("#EXTM3U"))
	}))
	defer srv.Close()

	resp, err := Default().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U", string(body))
}

func TestClient_HostConcurrencyCap(t *testing.T) {
	var inflight, peak atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inflight.Add(-1)
	}))
	defer srv.Close()

	client := New(Options{HostConcurrency: 2})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(srv.URL)
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestHostSemaphore_AcquireContextCancelled(t *testing.T) {
	sem := NewHostSemaphore(1)
	release := sem.Acquire("http://api.example.com/a")
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := sem.AcquireContext(ctx, "http://api.example.com/b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHostSemaphore_SeparateHosts(t *testing.T) {
	sem := NewHostSemaphore(1)
	r1 := sem.Acquire("http://a.example.com")
	defer r1()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r2, err := sem.AcquireContext(ctx, "http://b.example.com")
	require.NoError(t, err)
	r2()
	assert.Equal(t, 1, sem.Limit())
}

func TestClient_RateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	client := New(Options{RateLimit: 0.001, Burst: 1})
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = client.Do(req)
	assert.Error(t, err)
}
