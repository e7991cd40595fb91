// Package collyfetcher retrieves PDF logs as text through a conversion proxy using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/revere-police-logs/internal/metrics"
	"github.com/JakeFAU/revere-police-logs/internal/policelog"
)

const defaultTimeout = 60 * time.Second

// Config controls collector behavior.
type Config struct {
	// ProxyURL is prefixed to every target, e.g. "https://r.jina.ai/". Empty fetches directly.
	ProxyURL     string
	APIKey       string
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Pacer throttles outbound requests.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Fetcher implements policelog.TextFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	retry         RetryPolicy
	pacer         Pacer
	logger        *zap.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(f *Fetcher) { f.retry = p }
}

// WithPacer installs a rate limiter consulted before every attempt.
func WithPacer(p Pacer) Option {
	return func(f *Fetcher) { f.pacer = p }
}

// WithTransport replaces the pooled HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) { f.transport = rt }
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	// Clones share the visited store, so the same proxy URL must stay fetchable.
	c := colly.NewCollector(colly.Async(false), colly.AllowURLRevisit())

	f := &Fetcher{
		cfg:           cfg,
		transport:     newHTTPTransport(),
		baseCollector: c,
		retry:         NewExponentialRetryPolicy(3, 500*time.Millisecond, 10*time.Second),
		logger:        logger,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	c.WithTransport(f.transport)
	return f
}

// FetchText returns the markdown rendering of the document at targetURL.
func (f *Fetcher) FetchText(ctx context.Context, targetURL string) (string, error) {
	requestURL := f.proxiedURL(targetURL)
	for attempt := 1; ; attempt++ {
		if f.pacer != nil {
			if err := f.pacer.Wait(ctx, requestURL); err != nil {
				return "", fmt.Errorf("%w: %w", policelog.ErrRetrieval, err)
			}
		}

		start := time.Now()
		body, err := f.fetchOnce(ctx, targetURL, requestURL)
		if err == nil {
			metrics.ObserveFetch(requestURL, "ok", len(body), time.Since(start))
			return body, nil
		}
		metrics.ObserveFetch(requestURL, outcome(err), 0, time.Since(start))

		if !f.retry.ShouldRetry(err, attempt) {
			return "", err
		}
		wait := f.retry.Backoff(attempt)
		f.logger.Warn("retrieval failed; retrying",
			zap.String("url", targetURL),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		metrics.ObserveFetchRetry(requestURL)
		if err := f.sleep(ctx, wait); err != nil {
			return "", fmt.Errorf("%w: %w", policelog.ErrRetrieval, err)
		}
	}
}

func (f *Fetcher) proxiedURL(targetURL string) string {
	if f.cfg.ProxyURL == "" {
		return targetURL
	}
	proxy := f.cfg.ProxyURL
	if !strings.HasSuffix(proxy, "/") {
		proxy += "/"
	}
	return proxy + targetURL
}

type attemptResult struct {
	status int
	body   []byte
	err    error
}

func (f *Fetcher) fetchOnce(ctx context.Context, targetURL, requestURL string) (string, error) {
	var result attemptResult
	collector := f.buildCollector(ctx)
	f.configureCollectorHooks(collector, &result)

	runErr := f.runCollector(ctx, collector, requestURL)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%w: %w", policelog.ErrRetrieval, ctxErr)
	}
	if result.status != 0 && (result.status < 200 || result.status > 299) {
		return "", &policelog.FetchError{URL: targetURL, StatusCode: result.status}
	}
	if runErr != nil {
		return "", fmt.Errorf("%w: fetch %s: %w", policelog.ErrRetrieval, targetURL, runErr)
	}
	return string(result.body), nil
}

func (f *Fetcher) buildCollector(ctx context.Context) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	if f.cfg.MaxBodyBytes > 0 {
		collector.MaxBodySize = f.cfg.MaxBodyBytes
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)
	return collector
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, result *attemptResult) {
	hooks.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/markdown")
		if f.cfg.APIKey != "" {
			r.Headers.Set("Authorization", "Bearer "+f.cfg.APIKey)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		result.status = r.StatusCode
		result.body = append([]byte(nil), r.Body...)
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result.status = r.StatusCode
		}
		result.err = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

func outcome(err error) string {
	var fetchErr *policelog.FetchError
	switch {
	case errors.As(err, &fetchErr):
		return fmt.Sprintf("status_%d", fetchErr.StatusCode)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
	}
}
