// Package fplapi is the rate-limited client for the Fantasy Premier League
// public API. All endpoints are unauthenticated GETs returning JSON; the
// upstream occasionally serves HTML during maintenance and 429s aggressively,
// so every call funnels through one shared pacer and retry policy.
package fplapi

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/riskibarqy/fpl-mirror/internal/platform/cache"
	"github.com/riskibarqy/fpl-mirror/internal/platform/logging"
	"github.com/riskibarqy/fpl-mirror/internal/platform/resilience"
)

const (
	defaultBaseURL      = "https://fantasy.premierleague.com/api"
	defaultTimeout      = 30 * time.Second
	defaultBootstrapTTL = 300 * time.Second
	maxResponseBytes    = 16 << 20
	bootstrapCacheKey   = "bootstrap-static"

	// The upstream rejects unknown clients; present as a desktop browser.
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	browserReferer   = "https://fantasy.premierleague.com/"
)

// Error kinds surfaced to callers. Callers classify with errors.Is.
var (
	ErrRateLimited = crerr.New("fpl rate limited")
	ErrTransient   = crerr.New("fpl transient failure")
	ErrUpstream    = crerr.New("fpl upstream rejected request")
)

type ClientConfig struct {
	HTTPClient         *http.Client
	BaseURL            string
	Timeout            time.Duration
	MaxRetries         int
	RetryBackoffBase   time.Duration
	MaxRetryDelay      time.Duration
	RequestsPerMinute  int
	MinRequestInterval time.Duration
	BootstrapTTL       time.Duration
	Logger             *logging.Logger
	CircuitBreaker     resilience.CircuitBreakerConfig
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	maxRetries     int
	backoffBase    time.Duration
	maxRetryDelay  time.Duration
	logger         *logging.Logger
	pacer          *requestPacer
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
	flight         resilience.SingleFlight
	bootstrapCache *cache.Store
	jitter         func() float64
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = defaultTimeout
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	backoffBase := cfg.RetryBackoffBase
	if backoffBase <= 0 {
		backoffBase = time.Second
	}
	maxRetryDelay := cfg.MaxRetryDelay
	if maxRetryDelay <= 0 {
		maxRetryDelay = 60 * time.Second
	}
	bootstrapTTL := cfg.BootstrapTTL
	if bootstrapTTL <= 0 {
		bootstrapTTL = defaultBootstrapTTL
	}
	requestsPerMinute := cfg.RequestsPerMinute
	if requestsPerMinute < 1 {
		requestsPerMinute = 60
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)

	return &Client{
		httpClient:     httpClient,
		baseURL:        baseURL,
		maxRetries:     maxInt(cfg.MaxRetries, 0),
		backoffBase:    backoffBase,
		maxRetryDelay:  maxRetryDelay,
		logger:         logger,
		pacer:          newRequestPacer(requestsPerMinute, cfg.MinRequestInterval),
		breaker:        resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq),
		circuitEnabled: breakerCfg.Enabled,
		bootstrapCache: cache.NewStore(bootstrapTTL),
		jitter:         rand.Float64,
	}
}

// Bootstrap returns the reference snapshot, memoized for the configured TTL.
// Every other endpoint is fetched fresh on each call.
func (c *Client) Bootstrap(ctx context.Context) (Bootstrap, error) {
	value, err := c.bootstrapCache.GetOrLoad(ctx, bootstrapCacheKey, func(ctx context.Context) (any, error) {
		var payload Bootstrap
		if err := c.doJSON(ctx, "/bootstrap-static/", &payload); err != nil {
			return nil, err
		}
		return payload, nil
	})
	if err != nil {
		return Bootstrap{}, err
	}

	payload, ok := value.(Bootstrap)
	if !ok {
		return Bootstrap{}, fmt.Errorf("unexpected bootstrap cache payload type %T", value)
	}
	return payload, nil
}

// RefreshBootstrap drops the memoized snapshot and fetches a fresh one.
func (c *Client) RefreshBootstrap(ctx context.Context) (Bootstrap, error) {
	c.bootstrapCache.Delete(ctx, bootstrapCacheKey)
	return c.Bootstrap(ctx)
}

func (c *Client) Fixtures(ctx context.Context) ([]Fixture, error) {
	var payload []Fixture
	if err := c.doJSON(ctx, "/fixtures/", &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) EventLive(ctx context.Context, gameweek int) (EventLive, error) {
	if gameweek <= 0 {
		return EventLive{}, fmt.Errorf("gameweek must be greater than zero")
	}
	var payload EventLive
	if err := c.doJSON(ctx, fmt.Sprintf("/event/%d/live/", gameweek), &payload); err != nil {
		return EventLive{}, err
	}
	return payload, nil
}

func (c *Client) ElementSummary(ctx context.Context, playerID int) (ElementSummary, error) {
	if playerID <= 0 {
		return ElementSummary{}, fmt.Errorf("player id must be greater than zero")
	}
	var payload ElementSummary
	if err := c.doJSON(ctx, fmt.Sprintf("/element-summary/%d/", playerID), &payload); err != nil {
		return ElementSummary{}, err
	}
	return payload, nil
}

func (c *Client) Entry(ctx context.Context, managerID int) (Entry, error) {
	if managerID <= 0 {
		return Entry{}, fmt.Errorf("manager id must be greater than zero")
	}
	var payload Entry
	if err := c.doJSON(ctx, fmt.Sprintf("/entry/%d/", managerID), &payload); err != nil {
		return Entry{}, err
	}
	return payload, nil
}

func (c *Client) EntryHistory(ctx context.Context, managerID int) (EntryHistory, error) {
	if managerID <= 0 {
		return EntryHistory{}, fmt.Errorf("manager id must be greater than zero")
	}
	var payload EntryHistory
	if err := c.doJSON(ctx, fmt.Sprintf("/entry/%d/history/", managerID), &payload); err != nil {
		return EntryHistory{}, err
	}
	return payload, nil
}

func (c *Client) EntryPicks(ctx context.Context, managerID, gameweek int) (EntryPicks, error) {
	if managerID <= 0 || gameweek <= 0 {
		return EntryPicks{}, fmt.Errorf("manager id and gameweek must be greater than zero")
	}
	var payload EntryPicks
	if err := c.doJSON(ctx, fmt.Sprintf("/entry/%d/event/%d/picks/", managerID, gameweek), &payload); err != nil {
		return EntryPicks{}, err
	}
	return payload, nil
}

func (c *Client) EntryTransfers(ctx context.Context, managerID int) ([]Transfer, error) {
	if managerID <= 0 {
		return nil, fmt.Errorf("manager id must be greater than zero")
	}
	var payload []Transfer
	if err := c.doJSON(ctx, fmt.Sprintf("/entry/%d/transfers/", managerID), &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func (c *Client) LeagueStandings(ctx context.Context, leagueID, page int) (LeagueStandings, error) {
	if leagueID <= 0 {
		return LeagueStandings{}, fmt.Errorf("league id must be greater than zero")
	}
	if page < 1 {
		page = 1
	}
	path := fmt.Sprintf("/leagues-classic/%d/standings/?page_standings=%d", leagueID, page)
	var payload LeagueStandings
	if err := c.doJSON(ctx, path, &payload); err != nil {
		return LeagueStandings{}, err
	}
	return payload, nil
}

func (c *Client) doJSON(ctx context.Context, path string, target any) error {
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "fpl circuit breaker rejected request", "path", path, "state", c.breaker.State())
			return fmt.Errorf("%w: circuit open for %s", ErrTransient, path)
		}
	}

	out, err, _ := c.flight.Do(path, func() (any, error) {
		raw, reqErr := c.executeRequest(ctx, c.baseURL+path)
		if c.circuitEnabled {
			if reqErr != nil && crerr.Is(reqErr, ErrTransient) {
				c.breaker.RecordFailure()
			} else {
				c.breaker.RecordSuccess()
			}
		}
		return raw, reqErr
	})
	if err != nil {
		return err
	}

	raw, ok := out.([]byte)
	if !ok {
		return fmt.Errorf("unexpected response payload type %T", out)
	}

	if err := sonic.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: decode %s: %v", ErrUpstream, path, err)
	}
	return nil
}

func (c *Client) executeRequest(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("User-Agent", browserUserAgent)
		req.Header.Set("Referer", browserReferer)
		req.Header.Set("Accept", "application/json")

		var retryAfter time.Duration
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: send request: %v", ErrTransient, err)
		} else {
			raw, readErr := readBody(resp.Body)
			_ = resp.Body.Close()
			switch {
			case readErr != nil:
				lastErr = fmt.Errorf("%w: read response body: %v", ErrTransient, readErr)
			case resp.StatusCode == http.StatusTooManyRequests:
				retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
				lastErr = fmt.Errorf("%w: status=429 url=%s", ErrRateLimited, fullURL)
			case resp.StatusCode >= 200 && resp.StatusCode < 300:
				if !looksLikeJSON(resp.Header.Get("Content-Type"), raw) {
					// Maintenance pages come back as 200 text/html.
					return nil, fmt.Errorf("%w: non-JSON response url=%s body=%s", ErrUpstream, fullURL, abbreviateBody(raw))
				}
				return raw, nil
			case isRetryableStatus(resp.StatusCode):
				lastErr = fmt.Errorf("%w: status=%d body=%s", ErrTransient, resp.StatusCode, abbreviateBody(raw))
			default:
				return nil, fmt.Errorf("%w: status=%d body=%s", ErrUpstream, resp.StatusCode, abbreviateBody(raw))
			}
		}

		if attempt == c.maxRetries {
			break
		}

		backoff := c.backoffDelay(attempt)
		if retryAfter > 0 {
			backoff = retryAfter
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: request failed", ErrTransient)
	}
	c.logger.WarnContext(ctx, "fpl request exhausted retries", "url", fullURL, "error", lastErr)
	return nil, lastErr
}

// backoffDelay is base·2^attempt with ±25% jitter, capped at maxRetryDelay.
func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := c.backoffBase << uint(attempt)
	if delay > c.maxRetryDelay || delay <= 0 {
		delay = c.maxRetryDelay
	}
	return jitterDuration(delay, c.jitter())
}

func readBody(body io.Reader) ([]byte, error) {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if _, err := buf.ReadFrom(io.LimitReader(body, maxResponseBytes)); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.B...), nil
}

func parseRetryAfter(raw string) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(raw); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

func looksLikeJSON(contentType string, raw []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "json") {
		return true
	}
	trimmed := strings.TrimSpace(string(raw))
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

func abbreviateBody(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= 240 {
		return text
	}
	return text[:240] + "..."
}

func maxInt(left, right int) int {
	if left > right {
		return left
	}
	return right
}
