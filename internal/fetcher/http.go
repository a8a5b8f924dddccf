package fetcher

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultUserAgent  = "greenward/1.0"
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRatePerSec = 5.0
	maxBackoff        = 30 * time.Second
)

// HTTPOptions configures HTTPFetcher. Zero values select the defaults.
type HTTPOptions struct {
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	// RatePerSec is the starting request rate for each host.
	RatePerSec float64
}

// HTTPFetcher downloads input layers over HTTP. Requests to one host share a
// token bucket, and every 429 from a host halves its rate for the rest of the
// run, down to a quarter of the starting rate.
type HTTPFetcher struct {
	client      *http.Client
	opts        HTTPOptions
	backoffBase time.Duration

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewHTTPFetcher creates an HTTPFetcher.
func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.UserAgent == "" {
		opts.UserAgent = defaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = defaultRatePerSec
	}
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:        opts,
		backoffBase: time.Second,
		hosts:       make(map[string]*rate.Limiter),
	}
}

func (f *HTTPFetcher) hostLimiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.hosts[host]
	if !ok {
		burst := max(int(math.Ceil(f.opts.RatePerSec)), 1)
		lim = rate.NewLimiter(rate.Limit(f.opts.RatePerSec), burst)
		f.hosts[host] = lim
	}
	return lim
}

// HostRate returns the current request rate for host, or the starting rate
// when the host has not been contacted.
func (f *HTTPFetcher) HostRate(host string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lim, ok := f.hosts[host]; ok {
		return float64(lim.Limit())
	}
	return f.opts.RatePerSec
}

func (f *HTTPFetcher) throttle(host string, lim *rate.Limiter) {
	floor := rate.Limit(f.opts.RatePerSec / 4)
	next := max(lim.Limit()/2, floor)
	lim.SetLimit(next)
	zap.L().Warn("fetcher: rate limited, slowing host",
		zap.String("host", host),
		zap.Float64("rate_per_sec", float64(next)),
	)
}

// Download fetches rawURL and returns the response body. Network errors, 429
// and 5xx responses are retried up to MaxRetries attempts in total; any other
// non-200 status fails at once.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "download: parse %s", rawURL)
	}
	lim := f.hostLimiter(u.Host)

	var (
		lastErr error
		wait    time.Duration
	)
	for attempt := 0; attempt < f.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, wait); err != nil {
				return nil, eris.Wrap(err, "download: cancelled during backoff")
			}
		}
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "download: rate limiter wait")
		}

		resp, err := f.get(ctx, rawURL)
		wait = f.backoff(attempt)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, eris.Wrap(ctx.Err(), "download: cancelled")
			}
			lastErr = eris.Wrapf(err, "download: get %s", rawURL)
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			f.throttle(u.Host, lim)
			if d, ok := retryAfter(resp.Header); ok {
				wait = d
			}
			discard(resp)
			lastErr = eris.Errorf("download: status 429 from %s", rawURL)
		case resp.StatusCode >= 500:
			discard(resp)
			lastErr = eris.Errorf("download: status %d from %s", resp.StatusCode, rawURL)
		default:
			discard(resp)
			return nil, eris.Errorf("download: unexpected status %d from %s", resp.StatusCode, rawURL)
		}

		zap.L().Warn("fetcher: download attempt failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("retry_in", wait),
			zap.Error(lastErr),
		)
	}

	return nil, eris.Wrapf(lastErr, "download: all %d attempts failed", f.opts.MaxRetries)
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)
	req.Header.Set("Accept", "application/json, application/geo+json, text/csv, */*")
	return f.client.Do(req)
}

// backoff is base*2^attempt plus up to 50% jitter, capped at maxBackoff.
func (f *HTTPFetcher) backoff(attempt int) time.Duration {
	d := min(time.Duration(float64(f.backoffBase)*math.Pow(2, float64(attempt))), maxBackoff)
	if half := int64(d) / 2; half > 0 {
		d += time.Duration(rand.Int64N(half))
	}
	return d
}

// retryAfter reads a Retry-After header given in seconds or as an HTTP date.
func retryAfter(h http.Header) (time.Duration, bool) {
	v := h.Get("Retry-After")
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
		return min(time.Duration(secs)*time.Second, maxBackoff), true
	}
	if at, err := http.ParseTime(v); err == nil {
		return min(max(time.Until(at), 0), maxBackoff), true
	}
	return 0, false
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
