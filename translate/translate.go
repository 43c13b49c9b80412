// Package translate implements machine translation of key labels through
// the public Google Translate "gtx" endpoint, plus the adapter the scanner
// uses to degrade gracefully to the untranslated label.
package translate

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultEndpoint is the keyless Google Translate endpoint.
const DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// ErrMalformedResponse is returned when the endpoint reply has no
// translated segment.
var ErrMalformedResponse = errors.New("malformed translation response")

// Translator turns text written in the source locale into locale.
type Translator interface {
	Translate(ctx context.Context, text, locale string) (string, error)
}

// ---------------------------------------------------------------------------
// Client options
// ---------------------------------------------------------------------------

// Options controls the HTTP client.
type Options struct {
	// Endpoint overrides DefaultEndpoint.
	Endpoint string
	// SourceLocale is the language of the text sent for translation (sl=).
	SourceLocale string
	// ConnectTimeout bounds dialing and the TLS handshake.
	ConnectTimeout time.Duration
	// Timeout bounds the whole request.
	Timeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
	// Proxy is an explicit proxy URL; HTTP_PROXY/HTTPS_PROXY apply otherwise.
	Proxy string
	// MaxRetries is the number of retries on transport errors, 429 and 5xx.
	MaxRetries int
	// RetryBackoff is the base delay between retries, doubled per attempt.
	RetryBackoff time.Duration
}

func (o *Options) effectiveEndpoint() string {
	if o.Endpoint != "" {
		return o.Endpoint
	}
	return DefaultEndpoint
}

func (o *Options) effectiveConnectTimeout() time.Duration {
	if o.ConnectTimeout > 0 {
		return o.ConnectTimeout
	}
	return 5 * time.Second
}

func (o *Options) effectiveTimeout() time.Duration {
	if o.Timeout > 0 {
		return o.Timeout
	}
	return 10 * time.Second
}

func (o *Options) effectiveRetryBackoff() time.Duration {
	if o.RetryBackoff > 0 {
		return o.RetryBackoff
	}
	return time.Second
}

// ---------------------------------------------------------------------------
// Rate limit state (global pause for parallel workers)
// ---------------------------------------------------------------------------

type rateLimitState struct {
	mu       sync.Mutex
	paused   int32 // atomic: 1 = paused
	pauseEnd time.Time
}

func (r *rateLimitState) isPaused() bool {
	return atomic.LoadInt32(&r.paused) == 1
}

func (r *rateLimitState) pause(duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pauseEnd = time.Now().Add(duration)
	atomic.StoreInt32(&r.paused, 1)
}

func (r *rateLimitState) unpause() {
	atomic.StoreInt32(&r.paused, 0)
}

// waitIfPaused blocks until the rate limit pause is over.
func (r *rateLimitState) waitIfPaused(ctx context.Context) error {
	for r.isPaused() {
		r.mu.Lock()
		remaining := time.Until(r.pauseEnd)
		r.mu.Unlock()
		if remaining <= 0 {
			r.unpause()
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(min(remaining, 100*time.Millisecond)):
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// HTTP client with real proxy support
// ---------------------------------------------------------------------------

func makeHTTPClient(opts Options) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	// Support both the proxy option and HTTP_PROXY/HTTPS_PROXY env vars
	if opts.Proxy != "" {
		parsed, err := url.Parse(opts.Proxy)
		if err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	connect := opts.effectiveConnectTimeout()
	dialer := &net.Dialer{Timeout: connect, KeepAlive: 30 * time.Second}
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = connect

	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // explicit opt-in
	}

	return &http.Client{
		Transport: transport,
		Timeout:   opts.effectiveTimeout(),
	}
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// Client calls the gtx endpoint.
type Client struct {
	opts Options
	http *http.Client
	rl   rateLimitState
}

// NewClient returns a client configured by opts.
func NewClient(opts Options) *Client {
	if opts.SourceLocale == "" {
		opts.SourceLocale = "en"
	}
	return &Client{opts: opts, http: makeHTTPClient(opts)}
}

// Translate sends text to the endpoint and returns the first translated
// segment of the reply.
func (c *Client) Translate(ctx context.Context, text, locale string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", c.opts.SourceLocale)
	q.Set("tl", locale)
	q.Set("dt", "t")
	q.Set("q", text)
	endpoint := c.opts.effectiveEndpoint() + "?" + q.Encode()

	maxRetries := c.opts.MaxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Wait if globally paused (rate limit from another worker)
		if err := c.rl.waitIfPaused(ctx); err != nil {
			return "", err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			if attempt < maxRetries && ctx.Err() == nil {
				if err := c.backoff(ctx, attempt); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("translation request failed: %w", err)
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		if readErr != nil {
			return "", fmt.Errorf("reading translation response: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			delay := parseRetryAfter(resp.Header.Get("Retry-After"), c.opts.effectiveRetryBackoff())
			c.rl.pause(delay)
			if attempt < maxRetries {
				if err := c.rl.waitIfPaused(ctx); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("rate limited after %d retries", maxRetries)
		}

		if resp.StatusCode != http.StatusOK {
			if attempt < maxRetries && resp.StatusCode >= 500 {
				if err := c.backoff(ctx, attempt); err != nil {
					return "", err
				}
				continue
			}
			return "", fmt.Errorf("translation endpoint returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
		}

		return firstSegment(body)
	}

	return "", fmt.Errorf("exhausted all %d retries", maxRetries)
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.opts.effectiveRetryBackoff()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}

// firstSegment extracts result[0][0][0] from a gtx reply such as
//
//	[[["حفظ","Save",null,null,10]],null,"en"]
func firstSegment(body []byte) (string, error) {
	var result []any
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(result) == 0 {
		return "", ErrMalformedResponse
	}
	sentences, ok := result[0].([]any)
	if !ok || len(sentences) == 0 {
		return "", ErrMalformedResponse
	}
	first, ok := sentences[0].([]any)
	if !ok || len(first) == 0 {
		return "", ErrMalformedResponse
	}
	text, ok := first[0].(string)
	if !ok {
		return "", ErrMalformedResponse
	}
	return text, nil
}

// parseRetryAfter reads a Retry-After header given in seconds.
func parseRetryAfter(header string, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// ---------------------------------------------------------------------------
// Generic parallel runner
// ---------------------------------------------------------------------------

// runParallelGeneric runs any typed tasks in parallel with concurrency limit and delay.
func runParallelGeneric[T any](ctx context.Context, tasks []T, maxConcurrent int, delay time.Duration, fn func(context.Context, T) error) error {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for i, task := range tasks {
		if ctx.Err() != nil {
			break
		}

		// Delay between launching tasks (skip first)
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(t T) {
			defer func() {
				<-sem
				wg.Done()
			}()

			if err := fn(ctx, t); err != nil {
				errOnce.Do(func() {
					firstErr = err
				})
			}
		}(task)
	}

	wg.Wait()
	return firstErr
}
