// Package publish makes synthesized manifests reachable by URL: it publishes
// to a primary store, probes the result, and falls back to a secondary worker
// store when the primary copy is not servable.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/snapetech/streamresolvr/internal/httpclient"
	"github.com/snapetech/streamresolvr/internal/log"
	"github.com/snapetech/streamresolvr/internal/manifest"
	"github.com/snapetech/streamresolvr/internal/metrics"
)

var (
	// ErrFallbackFailed means neither store produced a usable URL.
	ErrFallbackFailed = errors.New("publish: primary and fallback both failed")
	// ErrNoVideo is returned by PublishLive when the channel has no video stream.
	ErrNoVideo = errors.New("publish: live source has no video stream")
)

// Store stores content under filename and returns its public URL. Put must be
// idempotent for the same filename and content.
type Store interface {
	Put(ctx context.Context, filename, content string) (string, error)
}

// Recorder receives every publish outcome. Failures to record are logged and ignored.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

// Served-by values for Outcome.Store and Artifact.Store.
const (
	StorePrimary     = "primary"
	StoreSecondary   = "secondary"
	StorePassthrough = "passthrough"
	StoreFailed      = "failed"
)

// Artifact is a published manifest.
type Artifact struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Store    string `json:"store"`
}

// Outcome is what a Recorder is told about one publish.
type Outcome struct {
	Artifact
	Err error
	At  time.Time
}

// Options configures a Publisher. Primary and Secondary may each be nil, but
// a Publisher with neither can only fail.
type Options struct {
	Primary   Store
	Secondary Store
	Client    *http.Client // used for the reachability probe
	Recorder  Recorder
}

// Publisher runs publish-with-fallback. It keeps no state between calls:
// every publish probes the primary again.
type Publisher struct {
	primary   Store
	secondary Store
	client    *http.Client
	recorder  Recorder
	logger    zerolog.Logger
}

// New returns a Publisher.
func New(opts Options) *Publisher {
	client := opts.Client
	if client == nil {
		client = httpclient.Default()
	}
	return &Publisher{
		primary:   opts.Primary,
		secondary: opts.Secondary,
		client:    client,
		recorder:  opts.Recorder,
		logger:    log.WithComponent("publish"),
	}
}

// Publish returns a URL serving content. The primary store's URL is returned
// when its probe succeeds; otherwise content is posted to the secondary store.
func (p *Publisher) Publish(ctx context.Context, filename, content string) (Artifact, error) {
	logger := p.logger.With().Str(log.FieldFilename, filename).Logger()

	if p.primary != nil {
		u, err := p.primary.Put(ctx, filename, content)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("primary store put failed")
		case p.probe(ctx, u):
			metrics.ProbeTotal.WithLabelValues("ok").Inc()
			return p.done(ctx, Artifact{Filename: filename, URL: u, Store: StorePrimary}, nil), nil
		default:
			metrics.ProbeTotal.WithLabelValues("unavailable").Inc()
			logger.Info().Str(log.FieldURL, u).Msg("primary copy unavailable; falling back")
		}
	}

	if p.secondary == nil {
		err := fmt.Errorf("%w: no fallback store configured", ErrFallbackFailed)
		return p.done(ctx, Artifact{Filename: filename, Store: StoreFailed}, err), err
	}
	u, err := p.secondary.Put(ctx, filename, content)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrFallbackFailed, err)
		return p.done(ctx, Artifact{Filename: filename, Store: StoreFailed}, err), err
	}
	return p.done(ctx, Artifact{Filename: filename, URL: u, Store: StoreSecondary}, nil), nil
}

// PublishLive publishes the combined manifest for a live channel. A channel
// without a separate audio stream is played straight from sourceURL and
// nothing is published.
func (p *Publisher) PublishLive(ctx context.Context, sourceURL, videoURL, audioURL string) (Artifact, error) {
	if videoURL == "" {
		return Artifact{}, ErrNoVideo
	}
	if audioURL == "" {
		return Artifact{URL: sourceURL, Store: StorePassthrough}, nil
	}
	m := manifest.SynthesizeLive(videoURL, audioURL)
	return p.Publish(ctx, m.Filename, m.Text)
}

// probe reports whether u answers a HEAD with a status below 400.
func (p *Publisher) probe(ctx context.Context, u string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return false
	}
	resp, err := httpclient.DoWithRetry(ctx, p.client, req, httpclient.NoRetry)
	if err != nil {
		p.logger.Debug().Err(err).Str(log.FieldURL, u).Msg("probe transport error")
		return false
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return !Unavailable(resp.StatusCode)
}

// Unavailable reports whether a probe status means the primary copy cannot be served.
func Unavailable(status int) bool {
	return status >= 400 && status <= 599
}

func (p *Publisher) done(ctx context.Context, a Artifact, err error) Artifact {
	metrics.PublishTotal.WithLabelValues(a.Store).Inc()
	ev := p.logger.Info()
	if err != nil {
		ev = p.logger.Warn().Err(err)
	}
	ev.Str(log.FieldFilename, a.Filename).Str(log.FieldStore, a.Store).Str(log.FieldURL, a.URL).Msg("publish")
	if p.recorder != nil {
		if rerr := p.recorder.Record(ctx, Outcome{Artifact: a, Err: err, At: time.Now().UTC()}); rerr != nil {
			p.logger.Warn().Err(rerr).Msg("record publish outcome")
		}
	}
	return a
}
