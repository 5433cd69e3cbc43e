package reddit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/persona/internal/cache"
	"github.com/ppiankov/persona/internal/logging"
	"github.com/ppiankov/persona/internal/model"
	"github.com/ppiankov/persona/internal/util"
)

// Reddit caps listing pages at 100 items
const maxPageSize = 100

// maxBodyBytes bounds a single API response
const maxBodyBytes = 8 << 20

// maxRetryAfter caps how long a 429 Retry-After header can stall a request
const maxRetryAfter = 60 * time.Second

// retrySleepFunc is the sleep function used between retries (injectable for tests)
var retrySleepFunc = util.SleepContext

var (
	// ErrUserNotFound means the account does not exist or was deleted
	ErrUserNotFound = errors.New("reddit user not found")

	// ErrSuspended means the account is suspended and exposes no activity
	ErrSuspended = errors.New("reddit account suspended")

	// ErrForbidden means Reddit refused access (private or quarantined content)
	ErrForbidden = errors.New("reddit refused access")

	// ErrDisallowed means robots.txt forbids the public endpoint for our user agent
	ErrDisallowed = errors.New("disallowed by robots.txt (configure reddit.client_id and reddit.client_secret for API access)")
)

// Waiter blocks until the named backend may be called again
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Options configures a Client
type Options struct {
	Config     model.RedditConfig
	HTTP       model.HTTPConfig
	Cache      cache.Cache     // Optional response cache
	CacheTTL   time.Duration   // 0 uses the cache's default
	Limiter    Waiter          // Optional; called with key "reddit"
	Logger     *logging.Logger // Optional
	HTTPClient *http.Client    // Optional override, mainly for tests
}

// Client retrieves public activity for a Reddit account. With client
// credentials it uses app-only OAuth against the API host; otherwise it reads
// the public JSON endpoints, honouring robots.txt when configured to.
type Client struct {
	cfg        model.RedditConfig
	httpClient *http.Client
	cache      cache.Cache
	cacheTTL   time.Duration
	limiter    Waiter
	robots     *util.RobotsChecker
	logger     *logging.Logger

	tokenMu      sync.Mutex
	token        string
	tokenExpires time.Time
}

// NewClient creates a new Reddit client
func NewClient(opts Options) *Client {
	cfg := opts.Config
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.reddit.com"
	}
	if cfg.OAuthURL == "" {
		cfg.OAuthURL = "https://oauth.reddit.com"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = "https://www.reddit.com/api/v1/access_token"
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = model.DefaultConfig().Reddit.UserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	cfg.OAuthURL = strings.TrimSuffix(cfg.OAuthURL, "/")

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(opts.HTTP.HTTPProxy, opts.HTTP.HTTPSProxy, opts.HTTP.NoProxy),
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		}
	}

	c := &Client{
		cfg:        cfg,
		httpClient: httpClient,
		cache:      opts.Cache,
		cacheTTL:   opts.CacheTTL,
		limiter:    opts.Limiter,
		logger:     opts.Logger,
	}
	if c.cache == nil {
		c.cache = cache.Nop{}
	}
	if cfg.RespectRobots && !c.oauth() {
		c.robots = util.NewRobotsChecker(cfg.UserAgent, httpClient)
	}
	return c
}

// Mode reports "oauth" or "public"
func (c *Client) Mode() string {
	if c.oauth() {
		return "oauth"
	}
	return "public"
}

func (c *Client) oauth() bool {
	return c.cfg.ClientID != "" && c.cfg.ClientSecret != ""
}

// FetchActivity retrieves submissions, comments and account age concurrently.
// Any failure is reported as a retrieval error for the identity.
func (c *Client) FetchActivity(ctx context.Context, username string) (*model.Activity, error) {
	activity := &model.Activity{Identity: username}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		subs, err := c.RecentSubmissions(gctx, username, c.cfg.SubmissionLimit)
		if err != nil {
			return fmt.Errorf("submissions: %w", err)
		}
		activity.Submissions = subs
		return nil
	})
	g.Go(func() error {
		comments, err := c.RecentComments(gctx, username, c.cfg.CommentLimit)
		if err != nil {
			return fmt.Errorf("comments: %w", err)
		}
		activity.Comments = comments
		return nil
	})
	g.Go(func() error {
		created, err := c.AccountCreatedAt(gctx, username)
		if err != nil {
			return fmt.Errorf("account: %w", err)
		}
		activity.AccountCreatedAt = created
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, model.NewError(model.KindRetrieval, username, err)
	}
	return activity, nil
}

// Listing payloads
type listing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type submissionData struct {
	ID           string  `json:"id"`
	Title        string  `json:"title"`
	Selftext     string  `json:"selftext"`
	SelftextHTML string  `json:"selftext_html"`
	Subreddit    string  `json:"subreddit"`
	Permalink    string  `json:"permalink"`
	CreatedUTC   float64 `json:"created_utc"`
}

type commentData struct {
	ID         string  `json:"id"`
	Body       string  `json:"body"`
	BodyHTML   string  `json:"body_html"`
	Subreddit  string  `json:"subreddit"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
}

type aboutResponse struct {
	Kind string `json:"kind"`
	Data struct {
		Name        string  `json:"name"`
		CreatedUTC  float64 `json:"created_utc"`
		IsSuspended bool    `json:"is_suspended"`
	} `json:"data"`
}

// RecentSubmissions returns up to limit submissions, newest first
func (c *Client) RecentSubmissions(ctx context.Context, username string, limit int) ([]model.RawSubmission, error) {
	items, err := fetchListing[submissionData](ctx, c, "/user/"+username+"/submitted", "t3", limit)
	if err != nil {
		return nil, err
	}

	out := make([]model.RawSubmission, 0, len(items))
	for _, s := range items {
		out = append(out, model.RawSubmission{
			ID:        s.ID,
			Title:     s.Title,
			Text:      s.Selftext,
			HTML:      s.SelftextHTML,
			Community: s.Subreddit,
			CreatedAt: fromUnix(s.CreatedUTC),
			Permalink: s.Permalink,
		})
	}
	return out, nil
}

// RecentComments returns up to limit comments, newest first
func (c *Client) RecentComments(ctx context.Context, username string, limit int) ([]model.RawComment, error) {
	items, err := fetchListing[commentData](ctx, c, "/user/"+username+"/comments", "t1", limit)
	if err != nil {
		return nil, err
	}

	out := make([]model.RawComment, 0, len(items))
	for _, cm := range items {
		out = append(out, model.RawComment{
			ID:        cm.ID,
			Text:      cm.Body,
			HTML:      cm.BodyHTML,
			Community: cm.Subreddit,
			CreatedAt: fromUnix(cm.CreatedUTC),
			Permalink: cm.Permalink,
		})
	}
	return out, nil
}

// AccountCreatedAt returns when the account was created
func (c *Client) AccountCreatedAt(ctx context.Context, username string) (time.Time, error) {
	var about aboutResponse
	if err := c.getJSON(ctx, "/user/"+username+"/about", nil, &about); err != nil {
		return time.Time{}, err
	}
	if about.Data.IsSuspended {
		return time.Time{}, ErrSuspended
	}
	if about.Data.CreatedUTC == 0 {
		return time.Time{}, fmt.Errorf("account metadata missing created_utc")
	}
	return fromUnix(about.Data.CreatedUTC), nil
}

// fetchListing pages through a user listing until limit items of the wanted kind are collected
func fetchListing[T any](ctx context.Context, c *Client, path, kind string, limit int) ([]T, error) {
	if limit <= 0 {
		return []T{}, nil
	}

	out := make([]T, 0, limit)
	after := ""
	for len(out) < limit {
		query := url.Values{}
		query.Set("sort", "new")
		query.Set("limit", strconv.Itoa(min(limit-len(out), maxPageSize)))
		if after != "" {
			query.Set("after", after)
		}

		var page listing
		if err := c.getJSON(ctx, path, query, &page); err != nil {
			return nil, err
		}

		for _, child := range page.Data.Children {
			if child.Kind != kind || len(out) >= limit {
				continue
			}
			var item T
			if err := json.Unmarshal(child.Data, &item); err != nil {
				return nil, fmt.Errorf("decode %s: %w", kind, err)
			}
			out = append(out, item)
		}

		if page.Data.After == "" || len(page.Data.Children) == 0 {
			break
		}
		after = page.Data.After
	}
	return out, nil
}

// getJSON fetches path (with retries and caching) and decodes it into out
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := c.endpoint(path, query)
	key := cache.CacheKey(c.Mode(), endpoint)

	if body, ok := c.cache.Get(ctx, key); ok {
		c.logger.Debug("reddit cache hit", "url", endpoint)
		return decode(body, out)
	}

	if c.robots != nil {
		if allowed, _, _ := c.robots.CanFetch(ctx, endpoint); !allowed {
			return ErrDisallowed
		}
	}

	body, err := c.getWithRetry(ctx, endpoint)
	if err != nil {
		return err
	}

	if err := decode(body, out); err != nil {
		return err
	}
	if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
		c.logger.Warn("reddit cache write failed", "error", err)
	}
	return nil
}

func decode(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	var u string
	if c.oauth() {
		u = c.cfg.OAuthURL + path
	} else {
		u = c.cfg.BaseURL + path + ".json"
	}
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// retryableError marks failures worth another attempt
type retryableError struct {
	err        error
	retryAfter time.Duration
}

func (e *retryableError) Error() string { return e.err.Error() }
func (e *retryableError) Unwrap() error { return e.err }

// getWithRetry retries 429, 5xx and transport errors with exponential backoff
func (c *Client) getWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	var lastErr error
	reauthed := false

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			var re *retryableError
			if errors.As(lastErr, &re) && re.retryAfter > 0 {
				delay = re.retryAfter
			}
			if err := retrySleepFunc(ctx, delay); err != nil {
				return nil, err
			}
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		body, err := c.get(ctx, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err

		// An expired token gets one refresh outside the retry budget
		if errors.Is(err, errUnauthorized) && c.oauth() && !reauthed {
			reauthed = true
			c.invalidateToken()
			attempt--
			continue
		}

		var re *retryableError
		if !errors.As(err, &re) {
			return nil, err
		}
		c.logger.Debug("reddit request failed, retrying", "url", endpoint, "attempt", attempt+1, "error", err)
	}

	return nil, fmt.Errorf("after %d attempt(s): %w", c.cfg.MaxRetries+1, lastErr)
}

var errUnauthorized = errors.New("reddit rejected credentials")

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, "reddit"); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	if c.oauth() {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &retryableError{err: fmt.Errorf("fetch: %w", err)}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &retryableError{err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("reddit request", "url", endpoint, "status", resp.StatusCode, "bytes", len(body))

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrUserNotFound
	case resp.StatusCode == http.StatusForbidden:
		return nil, ErrForbidden
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, errUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &retryableError{
			err:        fmt.Errorf("rate limited: %s", resp.Status),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= 500:
		return nil, &retryableError{err: fmt.Errorf("server error: %s", resp.Status)}
	default:
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > maxRetryAfter {
		d = maxRetryAfter
	}
	return d
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

// accessToken returns a cached app-only token, fetching a new one when it is about to expire
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpires) {
		return c.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request: %s", resp.Status)
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("token request: no access token (%s)", tok.Error)
	}

	expiresIn := time.Duration(tok.ExpiresIn) * time.Second
	if expiresIn <= 0 {
		expiresIn = time.Hour
	}
	// Refresh a minute early so in-flight requests never carry an expired token
	c.token = tok.AccessToken
	c.tokenExpires = time.Now().Add(expiresIn - time.Minute)

	c.logger.Debug("reddit token acquired", "expires_in", tok.ExpiresIn)
	return c.token, nil
}

func (c *Client) invalidateToken() {
	c.tokenMu.Lock()
	c.token = ""
	c.tokenMu.Unlock()
}

func fromUnix(secs float64) time.Time {
	return time.Unix(int64(secs), 0).UTC()
}
