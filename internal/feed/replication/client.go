// Package replication implements the change-feed and availability
// collaborators against the syntrix replication pull endpoint
// (GET /replication/v1/databases/{database}/pull).
package replication

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/schema"
	"github.com/syntrixbase/feedwatch/internal/feed"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

var (
	// ErrUnauthorized is returned when the server rejects the session token.
	ErrUnauthorized = errors.New("replication: unauthorized")
)

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("replication: unexpected status %d: %s", e.StatusCode, e.Body)
}

// Config configures the replication client.
type Config struct {
	BaseURL     string
	Database    string
	Collections []string
	// Limit is the page size requested per collection.
	Limit   int
	Timeout time.Duration
	// RequestsPerSecond throttles outgoing requests. 0 disables throttling.
	RequestsPerSecond float64
}

type pullQuery struct {
	Collection string `schema:"collection"`
	Checkpoint string `schema:"checkpoint"`
	Limit      int    `schema:"limit,omitempty"`
}

type pullResponse struct {
	Documents  []map[string]interface{} `json:"documents"`
	Checkpoint string                   `json:"checkpoint"`
}

// Client pulls changes over HTTP. The session token handed over through
// SetAuthorization is sent as a bearer token.
type Client struct {
	cfg      Config
	endpoint *url.URL
	encoder  *schema.Encoder
	limiter  *rate.Limiter
	base     http.RoundTripper
	logger   *slog.Logger
	boundary feed.Boundary

	mu     sync.RWMutex
	client *http.Client
}

var (
	_ feed.ChangeFeedService   = (*Client)(nil)
	_ feed.AvailabilityService = (*Client)(nil)
	_ feed.TokenAware          = (*Client)(nil)
)

// New creates a replication client. A nil transport uses http.DefaultTransport.
func New(cfg Config, transport http.RoundTripper, logger *slog.Logger) (*Client, error) {
	if len(cfg.Collections) == 0 {
		return nil, errors.New("replication: at least one collection is required")
	}
	if cfg.Database == "" {
		cfg.Database = "default"
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("replication: invalid base url %q", cfg.BaseURL)
	}
	endpoint := base.JoinPath("replication", "v1", "databases", cfg.Database, "pull")

	if transport == nil {
		transport = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	c := &Client{
		cfg:      cfg,
		endpoint: endpoint,
		encoder:  schema.NewEncoder(),
		limiter:  rate.NewLimiter(limit, 1),
		base:     transport,
		logger:   logger.With("component", "replication-client"),
	}
	c.client = c.httpClient("")
	return c, nil
}

// SetAuthorization swaps the bearer token used for subsequent requests.
func (c *Client) SetAuthorization(auth feed.Authorization) {
	token := ""
	if auth.Authenticated {
		token = auth.Token
	}
	client := c.httpClient(token)

	c.mu.Lock()
	c.client = client
	c.mu.Unlock()
}

func (c *Client) httpClient(token string) *http.Client {
	if token == "" {
		return &http.Client{Timeout: c.cfg.Timeout, Transport: c.base}
	}
	return &http.Client{
		Timeout: c.cfg.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.base,
		},
	}
}

func (c *Client) currentClient() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.client
}

// GetChangesSince pulls one page per collection starting at since. The pull
// endpoint answers inclusively (updatedAt >= checkpoint); documents already
// delivered at the checkpoint millisecond are dropped, and the page is
// widened by their count so that ties never stall the cursor.
func (c *Client) GetChangesSince(ctx context.Context, since time.Time) (*feed.ChangeSet, error) {
	checkpoint := int64(0)
	if !since.IsZero() {
		checkpoint = since.UnixMilli()
	}

	batches := make([]feed.Batch, 0, len(c.cfg.Collections))
	for _, collection := range c.cfg.Collections {
		limit := c.cfg.Limit
		if limit > 0 {
			limit += c.boundary.Delivered(collection, since)
		}
		resp, status, err := c.pull(ctx, pullQuery{
			Collection: collection,
			Checkpoint: strconv.FormatInt(checkpoint, 10),
			Limit:      limit,
		})
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, statusError(status, resp)
		}

		var body pullResponse
		if err := decode(resp, &body); err != nil {
			return nil, fmt.Errorf("replication: decode %s: %w", collection, err)
		}

		changes := make([]feed.Change, 0, len(body.Documents))
		for _, doc := range body.Documents {
			change, err := toChange(collection, doc)
			if err != nil {
				c.logger.Warn("Skipping replicated document", "collection", collection, "error", err)
				continue
			}
			changes = append(changes, change)
		}
		batches = append(batches, feed.Batch{
			Changes:   c.boundary.Filter(since, changes),
			Truncated: limit > 0 && len(body.Documents) >= limit,
		})
	}

	cs := feed.Assemble(batches...)
	c.boundary.Record(since, cs)
	return cs, nil
}

// HasTrackableCollections probes every collection with a one-document pull
// and reports whether any of them is readable. Collections answering 403 or
// 404 are not trackable; 401 is an error.
func (c *Client) HasTrackableCollections(ctx context.Context) (bool, error) {
	for _, collection := range c.cfg.Collections {
		resp, status, err := c.pull(ctx, pullQuery{Collection: collection, Checkpoint: "0", Limit: 1})
		if err != nil {
			return false, err
		}
		switch status {
		case http.StatusOK:
			return true, nil
		case http.StatusForbidden, http.StatusNotFound:
			c.logger.Debug("Collection not trackable", "collection", collection, "status", status)
			continue
		default:
			return false, statusError(status, resp)
		}
	}
	return false, nil
}

// pull performs one request and returns the raw body and status. A 401 is
// mapped to ErrUnauthorized.
func (c *Client) pull(ctx context.Context, q pullQuery) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	values := url.Values{}
	if err := c.encoder.Encode(q, values); err != nil {
		return nil, 0, fmt.Errorf("replication: encode query: %w", err)
	}
	u := *c.endpoint
	u.RawQuery = values.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.currentClient().Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("replication: pull %s: %w", q.Collection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("replication: read %s: %w", q.Collection, err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, resp.StatusCode, ErrUnauthorized
	}
	return body, resp.StatusCode, nil
}

func statusError(status int, body []byte) error {
	const maxErrorBody = 256
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &StatusError{StatusCode: status, Body: string(body)}
}

func decode(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
