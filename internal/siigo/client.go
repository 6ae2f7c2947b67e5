// Package siigo is a thin client for the Siigo accounting REST API.
package siigo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"dataconta/internal/models"
	apperrors "dataconta/pkg/errors"
	"dataconta/pkg/logger"
)

const (
	authPath        = "/auth"
	invoicesPath    = "/v1/invoices"
	creditNotesPath = "/v1/credit-notes"
	purchasesPath   = "/v1/purchases"
	journalsPath    = "/v1/journals"
	trialBalPath    = "/v1/trial-balance"
	currentUserPath = "/v1/users/current-user"

	bodyExcerptLimit = 512
)

// Client talks to the Siigo API. It is safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger logger.Logger

	mu    sync.Mutex
	token string
	auth  singleflight.Group
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient validates cfg and creates a client
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	c := &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger.GetGlobalLogger().WithComponent("siigo"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type authRequest struct {
	Username  string `json:"username"`
	AccessKey string `json:"access_key"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// Authenticate obtains a bearer token. Concurrent calls share one
// request to the auth endpoint.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err, shared := c.auth.Do(authPath, func() (interface{}, error) {
		return nil, c.authenticate(ctx)
	})
	if shared {
		c.logger.Debug("Joined in-flight authentication")
	}
	return err
}

func (c *Client) authenticate(ctx context.Context) error {
	body, _ := json.Marshal(authRequest{Username: c.cfg.Username, AccessKey: c.cfg.AccessKey})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+authPath, bytes.NewReader(body))
	if err != nil {
		return apperrors.InternalError(apperrors.CodeUnexpectedError, "building auth request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Partner-Id", c.cfg.PartnerID)

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(ctx, authPath, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		return statusError(apperrors.CodeAuthenticationFailed, authPath, resp.StatusCode, raw)
	case resp.StatusCode >= 300:
		return classifyStatus(authPath, resp.StatusCode, raw)
	}

	var out authResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.AccessToken == "" {
		e := apperrors.DataSourceError(apperrors.CodeInvalidResponse, authPath, err).
			WithContext("status", resp.StatusCode)
		return e.WithDetail(excerpt(raw))
	}

	c.mu.Lock()
	c.token = out.AccessToken
	c.mu.Unlock()

	c.logger.WithField("expires_in", out.ExpiresIn).Debug("Authenticated against Siigo API")
	return nil
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// get performs an authenticated GET. A 401 triggers one re-authentication
// and one replay of the request; nothing else is retried.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if c.currentToken() == "" {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	status, body, err := c.send(ctx, path, query)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized {
		c.logger.WithField("endpoint", path).Info("Token rejected, re-authenticating")
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
		if status, body, err = c.send(ctx, path, query); err != nil {
			return nil, err
		}
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return nil, statusError(apperrors.CodeAuthenticationFailed, path, status, body)
	case status >= 300:
		return nil, classifyStatus(path, status, body)
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, path string, query url.Values) (int, []byte, error) {
	u := c.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, apperrors.InternalError(apperrors.CodeUnexpectedError, "building request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.currentToken())
	req.Header.Set("Partner-Id", c.cfg.PartnerID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, classifyTransport(ctx, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, classifyTransport(ctx, path, err)
	}
	return resp.StatusCode, body, nil
}

type page[T any] struct {
	Results []T `json:"results"`
}

func decodePage[T any](path string, body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	var items []T
	var err error
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &items)
	} else {
		var p page[T]
		err = json.Unmarshal(trimmed, &p)
		items = p.Results
	}
	if err != nil {
		return nil, apperrors.DataSourceError(apperrors.CodeInvalidResponse, path, err).
			WithDetail(excerpt(body))
	}
	return items, nil
}

// fetchAll walks every page of a list endpoint. Paging stops at the first
// page shorter than the configured page size.
func fetchAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "fetch " + path,
		Logger:    c.logger,
	})

	var all []T
	for pageNum := 1; ; pageNum++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(pageNum))
		q.Set("page_size", strconv.Itoa(c.cfg.PageSize))

		body, err := c.get(ctx, path, q)
		if err != nil {
			tracker.CompleteWithError(err)
			return nil, err
		}

		items, err := decodePage[T](path, body)
		if err != nil {
			tracker.CompleteWithError(err)
			return nil, err
		}
		all = append(all, items...)
		tracker.Add(int64(len(items)))

		if len(items) < c.cfg.PageSize {
			break
		}

		if err := c.wait(ctx); err != nil {
			tracker.CompleteWithError(err)
			return nil, err
		}
	}

	tracker.Complete()
	return all, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.cfg.PageDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(c.cfg.PageDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return classifyTransport(ctx, "page delay", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func dateQuery(start, end time.Time) url.Values {
	q := url.Values{}
	q.Set("date_start", start.Format(models.DateLayout))
	q.Set("date_end", end.Format(models.DateLayout))
	return q
}

// Invoices lists the sales invoices (FV) dated within [start, end]
func (c *Client) Invoices(ctx context.Context, start, end time.Time) ([]models.Invoice, error) {
	return fetchAll[models.Invoice](ctx, c, invoicesPath, dateQuery(start, end))
}

// InvoicesForCustomer lists the invoices of one customer identification
func (c *Client) InvoicesForCustomer(ctx context.Context, start, end time.Time, identification string) ([]models.Invoice, error) {
	q := dateQuery(start, end)
	q.Set("customer_identification", models.NormalizeNIT(identification))
	return fetchAll[models.Invoice](ctx, c, invoicesPath, q)
}

// CreditNotes lists the credit notes dated within [start, end]
func (c *Client) CreditNotes(ctx context.Context, start, end time.Time) ([]models.CreditNote, error) {
	return fetchAll[models.CreditNote](ctx, c, creditNotesPath, dateQuery(start, end))
}

// Purchases lists the supplier invoices dated within [start, end]
func (c *Client) Purchases(ctx context.Context, start, end time.Time) ([]models.Purchase, error) {
	return fetchAll[models.Purchase](ctx, c, purchasesPath, dateQuery(start, end))
}

// JournalEntries lists the accounting vouchers dated within [start, end]
func (c *Client) JournalEntries(ctx context.Context, start, end time.Time) ([]models.JournalEntry, error) {
	return fetchAll[models.JournalEntry](ctx, c, journalsPath, dateQuery(start, end))
}

// TrialBalance returns the per-account balances at date
func (c *Client) TrialBalance(ctx context.Context, date time.Time) (*models.TrialBalance, error) {
	q := url.Values{}
	q.Set("date", date.Format(models.DateLayout))

	body, err := c.get(ctx, trialBalPath, q)
	if err != nil {
		return nil, err
	}

	var tb models.TrialBalance
	if err := json.Unmarshal(body, &tb); err != nil {
		return nil, apperrors.DataSourceError(apperrors.CodeInvalidResponse, trialBalPath, err).
			WithDetail(excerpt(body))
	}
	if tb.Date.IsZero() {
		tb.Date = models.NewDate(date)
	}
	return &tb, nil
}

// CurrentUser is the account behind the configured credentials
type CurrentUser struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// TestConnection authenticates and fetches the current user
func (c *Client) TestConnection(ctx context.Context) (*CurrentUser, error) {
	if err := c.Authenticate(ctx); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, currentUserPath, nil)
	if err != nil {
		return nil, err
	}

	var user CurrentUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, apperrors.DataSourceError(apperrors.CodeInvalidResponse, currentUserPath, err).
			WithDetail(excerpt(body))
	}
	return &user, nil
}

func classifyTransport(ctx context.Context, path string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return apperrors.InternalError(apperrors.CodeCancelled, "Siigo request "+path, err)
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return apperrors.DataSourceError(apperrors.CodeTimeout, path, err)
	}
	return apperrors.DataSourceError(apperrors.CodeConnectionFailed, path, err)
}

func classifyStatus(path string, status int, body []byte) error {
	code := apperrors.CodeUpstreamError
	switch status {
	case http.StatusTooManyRequests:
		code = apperrors.CodeRateLimited
	case http.StatusNotFound:
		code = apperrors.CodeNotFound
	}
	return statusError(code, path, status, body)
}

func statusError(code apperrors.ErrorCode, path string, status int, body []byte) error {
	return apperrors.DataSourceError(code, path, nil).
		WithContext("status", status).
		WithDetail(fmt.Sprintf("HTTP %d: %s", status, excerpt(body)))
}

// excerpt trims body to bodyExcerptLimit bytes without splitting a rune
func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) <= bodyExcerptLimit {
		return s
	}
	cut := bodyExcerptLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
