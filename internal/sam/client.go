package sam

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DateFormat is the MM/DD/YYYY format every API generation expects.
const DateFormat = "01/02/2006"

// FetchError is any failure talking to the search endpoint: non-200 status,
// timeout, malformed JSON, or a response missing the results key. It is a
// distinct type so callers can tell a broken fetch from a zero-match day.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Query holds the recognized search parameters. Keyword selection is done
// by the caller: Fetch issues one request for the given keyword, or for
// Expression when keyword is empty.
type Query struct {
	Expression    string // composite boolean keyword expression, e.g. "(voice OR voip)"
	PostedFrom    time.Time
	PostedTo      time.Time
	DeadlineFrom  time.Time
	DeadlineTo    time.Time
	Limit         int
	Offset        int
	Sort          string
	SavedSearchID string
}

// Client talks to one generation of the SAM.gov opportunity search API.
type Client struct {
	httpClient *http.Client
	contract   Contract
	apiKey     string
	maxRetries int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default 60s-timeout client (tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL overrides the contract's endpoint (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.contract.BaseURL = u }
}

// WithMaxRetries bounds the retry loop. 0 disables retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

func NewClient(contract Contract, apiKey string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 60 * time.Second},
		contract:   contract,
		apiKey:     apiKey,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Contract reports which API generation the client is bound to.
func (c *Client) Contract() Contract { return c.contract }

// Fetch issues one GET for the query. A non-empty keyword replaces the
// query's composite expression for this request. The returned slice may be
// empty; that is a successful zero-match fetch, not an error.
func (c *Client) Fetch(ctx context.Context, q Query, keyword string) ([]Notice, error) {
	reqURL := c.buildURL(q, keyword)

	body, err := c.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{URL: reqURL, Err: fmt.Errorf("decoding response: %w", err)}
	}

	raw, ok := payload[c.contract.ResultsKey]
	if !ok {
		return nil, &FetchError{URL: reqURL, Err: fmt.Errorf("response missing %q key", c.contract.ResultsKey)}
	}

	var records []map[string]any
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &FetchError{URL: reqURL, Err: fmt.Errorf("decoding %q list: %w", c.contract.ResultsKey, err)}
	}

	notices := make([]Notice, 0, len(records))
	for _, rec := range records {
		notices = append(notices, c.toNotice(rec))
	}
	return notices, nil
}

func (c *Client) buildURL(q Query, keyword string) string {
	p := c.contract.Params
	values := url.Values{}
	values.Set(p.APIKey, c.apiKey)

	if keyword == "" {
		keyword = q.Expression
	}
	if keyword != "" {
		values.Set(p.Keyword, keyword)
	}
	if !q.PostedFrom.IsZero() {
		values.Set(p.PostedFrom, q.PostedFrom.Format(DateFormat))
	}
	if !q.PostedTo.IsZero() {
		values.Set(p.PostedTo, q.PostedTo.Format(DateFormat))
	}
	if !q.DeadlineFrom.IsZero() {
		values.Set(p.DeadlineFrom, q.DeadlineFrom.Format(DateFormat))
	}
	if !q.DeadlineTo.IsZero() {
		values.Set(p.DeadlineTo, q.DeadlineTo.Format(DateFormat))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 1000
	}
	values.Set(p.Limit, strconv.Itoa(limit))
	if q.Offset > 0 {
		values.Set(p.Offset, strconv.Itoa(q.Offset))
	}
	sort := q.Sort
	if sort == "" {
		sort = "-modifiedDate"
	}
	values.Set(p.Sort, sort)
	if q.SavedSearchID != "" {
		values.Set(p.SavedSearch, q.SavedSearchID)
	}

	return c.contract.BaseURL + "?" + values.Encode()
}

// get performs the request with bounded retries on transient failures,
// exponential backoff plus jitter between attempts.
func (c *Client) get(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(500*(1<<uint(attempt-1))) * time.Millisecond
			jitter := time.Duration(rand.Intn(100)) * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, &FetchError{URL: reqURL, Err: ctx.Err()}
			case <-time.After(backoff + jitter):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, &FetchError{URL: reqURL, Err: err}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &FetchError{URL: reqURL, Err: err}
			if shouldRetry(err, 0) {
				continue
			}
			return nil, lastErr
		}

		if resp.StatusCode == http.StatusOK {
			body, readErr := io.ReadAll(resp.Body)
			resp.Body.Close()
			if readErr != nil {
				return nil, &FetchError{URL: reqURL, Err: readErr}
			}
			return body, nil
		}

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		lastErr = &FetchError{
			URL:        reqURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", firstLine(string(body))),
		}
		if shouldRetry(nil, resp.StatusCode) {
			continue
		}
		return nil, lastErr
	}

	return nil, lastErr
}

func shouldRetry(err error, statusCode int) bool {
	if err != nil {
		if netErr, ok := err.(interface{ Timeout() bool }); ok && netErr.Timeout() {
			return true
		}
		return false
	}
	switch statusCode {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func firstLine(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' || s[i] == '\r' {
			return s[:i]
		}
	}
	return s
}

// toNotice maps one raw record through the contract's field keys. Unknown
// or missing keys become empty strings.
func (c *Client) toNotice(rec map[string]any) Notice {
	f := c.contract.Fields
	return Notice{
		NoticeID:         stringField(rec, f.NoticeID),
		Title:            CleanText(stringField(rec, f.Title)),
		Department:       stringField(rec, f.Department),
		SubTier:          stringField(rec, f.SubTier),
		Type:             stringField(rec, f.Type),
		PostedDate:       stringField(rec, f.PostedDate),
		ResponseDeadline: stringField(rec, f.ResponseDeadline),
		UILink:           stringField(rec, f.UILink),
	}
}

func stringField(rec map[string]any, key string) string {
	v, ok := rec[key]
	if !ok || v == nil {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		// JSON numbers decode as float64; plain notation, never scientific.
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
