package httpclient

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"github.com/snapetech/streamresolvr/internal/metrics"
)

// transport is the RoundTripper behind every client from New.
type transport struct {
	base      http.RoundTripper
	limiter   *rate.Limiter
	sem       *HostSemaphore
	userAgent string
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	release, err := t.sem.AcquireContext(ctx, req.URL.Scheme+"://"+req.URL.Host)
	if err != nil {
		return nil, err
	}
	defer release()

	req = req.Clone(ctx)
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", t.userAgent)
	}
	negotiated := false
	if req.Header.Get("Accept-Encoding") == "" && req.Method != http.MethodHead {
		req.Header.Set("Accept-Encoding", "br, gzip")
		negotiated = true
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		metrics.UpstreamRequestsTotal.WithLabelValues(req.URL.Host, "error").Inc()
		return nil, err
	}
	metrics.UpstreamRequestsTotal.WithLabelValues(req.URL.Host, strconv.Itoa(resp.StatusCode)).Inc()
	if negotiated {
		if err := decodeBody(resp); err != nil {
			resp.Body.Close()
			return nil, err
		}
	}
	return resp, nil
}

// decodeBody swaps resp.Body for a decompressing reader when the server used br or gzip.
func decodeBody(resp *http.Response) error {
	enc := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	var r io.Reader
	switch enc {
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			if err == io.EOF {
				return nil
			}
			return err
		}
		r = gz
	default:
		return nil
	}
	resp.Body = &decodedBody{Reader: r, closer: resp.Body}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

type decodedBody struct {
	io.Reader
	closer io.Closer
}

func (b *decodedBody) Close() error { return b.closer.Close() }
