package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"daily-leaderboard/internal/domain"

	"github.com/valyala/fasthttp"
)

const DefaultPlayerHeader = "X-Player-Id"

// Client talks to the leaderboard JSON API.
type Client struct {
	baseURL      string
	playerHeader string
	client       *fasthttp.Client
}

type Option func(*Client)

func WithPlayerHeader(header string) Option {
	return func(c *Client) {
		if header != "" {
			c.playerHeader = header
		}
	}
}

func WithMaxConns(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.client.MaxConnsPerHost = n
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		playerHeader: DefaultPlayerHeader,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitRequest is the POST body of a submission. RoleID nil means default.
type SubmitRequest struct {
	PlayerName string `json:"playerName"`
	RoleID     *int   `json:"roleId,omitempty"`
	Score      int64  `json:"score"`
}

// APIError is a non-200 answer decoded from the {code,message} body.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %d %s: %s", e.Status, e.Code, e.Message)
}

func (c *Client) Submit(ctx context.Context, playerID string, in SubmitRequest) (*domain.SubmitResult, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission: %w", err)
	}
	return doRequest[domain.SubmitResult](ctx, c, fasthttp.MethodPost, "/api/rank/submit", playerID, body)
}

// List fetches the board. Empty date means today, limit <= 0 means the server default.
func (c *Client) List(ctx context.Context, playerID, date string, limit int) (*domain.Leaderboard, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	return doRequest[domain.Leaderboard](ctx, c, fasthttp.MethodGet, withQuery("/api/rank/list", q), playerID, nil)
}

func (c *Client) MyRank(ctx context.Context, playerID, date string) (*domain.MyRank, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	return doRequest[domain.MyRank](ctx, c, fasthttp.MethodGet, withQuery("/api/rank/me", q), playerID, nil)
}

func (c *Client) Stats(ctx context.Context, date string) (*domain.Stats, error) {
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	return doRequest[domain.Stats](ctx, c, fasthttp.MethodGet, withQuery("/api/rank/stats", q), "", nil)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

func doRequest[T any](ctx context.Context, c *Client, method, path, playerID string, body []byte) (*T, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	if playerID != "" {
		req.Header.Set(c.playerHeader, playerID)
	}
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			return nil, err
		}
	} else {
		if err := c.client.Do(req, resp); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		apiErr := &APIError{Status: resp.StatusCode()}
		_ = json.Unmarshal(resp.Body(), apiErr)
		return nil, apiErr
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &result, nil
}
