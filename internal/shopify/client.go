// internal/shopify/client.go
package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"shopsync/pkg/config"
)

const (
	retryBase = 500 * time.Millisecond
	retryCap  = 30 * time.Second
)

// ErrCodeRejected marks a token exchange the platform refused outright (4xx),
// as opposed to an upstream failure worth reporting as a gateway error.
var ErrCodeRejected = errors.New("authorization code rejected")

// Client talks to the REST Admin API of one platform version. It is safe for
// concurrent use; per-shop state (domain, token) is passed per call.
type Client struct {
	// BaseURL builds the root URL for a shop. Tests point it at a local server.
	BaseURL func(shop string) string

	http        *http.Client
	apiKey      string
	apiSecret   string
	scopes      string
	version     string
	limit       int
	maxAttempts int
	log         *zap.SugaredLogger
}

func New(cfg config.Config, log *zap.SugaredLogger) *Client {
	return &Client{
		BaseURL:     func(shop string) string { return "https://" + shop },
		http:        &http.Client{Timeout: 30 * time.Second},
		apiKey:      cfg.APIKey,
		apiSecret:   cfg.APISecret,
		scopes:      cfg.Scopes,
		version:     cfg.APIVersion,
		limit:       cfg.PageLimit,
		maxAttempts: cfg.MaxAttempts,
		log:         log,
	}
}

// AuthorizeURL is the merchant-facing grant page for the install flow. No
// grant_options: the exchange must yield an offline token, which background
// syncs depend on; per-user tokens die with the browser session.
func (c *Client) AuthorizeURL(shop, state, redirectURI string) string {
	q := url.Values{}
	q.Set("client_id", c.apiKey)
	q.Set("scope", c.scopes)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	return c.BaseURL(shop) + "/admin/oauth/authorize?" + q.Encode()
}

// ExchangeToken trades an authorization code for a permanent access token.
// Single attempt: the merchant is waiting on the callback, and codes are
// single-use anyway.
func (c *Client) ExchangeToken(ctx context.Context, shop, code string) (AccessToken, error) {
	payload, err := json.Marshal(map[string]string{
		"client_id":     c.apiKey,
		"client_secret": c.apiSecret,
		"code":          code,
	})
	if err != nil {
		return AccessToken{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL(shop)+"/admin/oauth/access_token", bytes.NewReader(payload))
	if err != nil {
		return AccessToken{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return AccessToken{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("token endpoint returned %s: %s", resp.Status, snippet(resp.Body))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			err = fmt.Errorf("%w: %v", ErrCodeRejected, err)
		}
		return AccessToken{}, err
	}
	var tok AccessToken
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return AccessToken{}, fmt.Errorf("decode token response: %w", err)
	}
	if tok.Token == "" {
		return AccessToken{}, errors.New("token endpoint returned no access_token")
	}
	return tok, nil
}

// Products fetches one page. An empty next cursor means the collection is
// exhausted.
func (c *Client) Products(ctx context.Context, shop, token, pageInfo string) ([]Product, string, error) {
	var env struct {
		Products []Product `json:"products"`
	}
	h, err := c.getJSON(ctx, token, c.pageURL(shop, "products", pageInfo, nil), &env)
	if err != nil {
		return nil, "", err
	}
	return env.Products, nextPageInfo(h), nil
}

// Orders fetches one page across all statuses.
func (c *Client) Orders(ctx context.Context, shop, token, pageInfo string) ([]Order, string, error) {
	var env struct {
		Orders []Order `json:"orders"`
	}
	h, err := c.getJSON(ctx, token, c.pageURL(shop, "orders", pageInfo, url.Values{"status": {"any"}}), &env)
	if err != nil {
		return nil, "", err
	}
	return env.Orders, nextPageInfo(h), nil
}

// Locations lists the shop's stock locations. Small and unpaged in practice.
func (c *Client) Locations(ctx context.Context, shop, token string) ([]Location, error) {
	var env struct {
		Locations []Location `json:"locations"`
	}
	u := fmt.Sprintf("%s/admin/api/%s/locations.json", c.BaseURL(shop), c.version)
	if _, err := c.getJSON(ctx, token, u, &env); err != nil {
		return nil, err
	}
	return env.Locations, nil
}

// InventoryLevels fetches one page of levels for the given locations. The API
// requires a location filter on the first page.
func (c *Client) InventoryLevels(ctx context.Context, shop, token string, locationIDs []int64, pageInfo string) ([]InventoryLevel, string, error) {
	ids := make([]string, 0, len(locationIDs))
	for _, id := range locationIDs {
		ids = append(ids, strconv.FormatInt(id, 10))
	}
	var env struct {
		InventoryLevels []InventoryLevel `json:"inventory_levels"`
	}
	u := c.pageURL(shop, "inventory_levels", pageInfo, url.Values{"location_ids": {strings.Join(ids, ",")}})
	h, err := c.getJSON(ctx, token, u, &env)
	if err != nil {
		return nil, "", err
	}
	return env.InventoryLevels, nextPageInfo(h), nil
}

// pageURL builds a collection URL. A cursor already carries the original
// filters, and the API rejects repeating them next to page_info.
func (c *Client) pageURL(shop, resource, pageInfo string, extra url.Values) string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.limit))
	if pageInfo != "" {
		q.Set("page_info", pageInfo)
	} else {
		for k, vs := range extra {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
	}
	return fmt.Sprintf("%s/admin/api/%s/%s.json?%s", c.BaseURL(shop), c.version, resource, q.Encode())
}

// getJSON performs an authenticated GET with bounded retries. 429 honors
// Retry-After, 5xx backs off exponentially, other non-200s fail immediately.
func (c *Client) getJSON(ctx context.Context, token, rawURL string, out any) (http.Header, error) {
	attempts := c.maxAttempts
	if attempts < 1 {
		attempts = 1
	}
	delay := retryBase
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > retryCap {
				delay = retryCap
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("X-Shopify-Access-Token", token)
		req.Header.Set("Accept", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusOK {
			derr := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if derr != nil {
				return nil, fmt.Errorf("decode response: %w", derr)
			}
			return resp.Header, nil
		}
		msg := snippet(resp.Body)
		resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = errors.New("rate limited")
			if ra := retryAfter(resp.Header); ra > 0 {
				delay = ra
			}
			c.log.Debugw("rate limited", "url", rawURL, "retry_in", delay)
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%s: %s", resp.Status, msg)
		default:
			return nil, fmt.Errorf("%s: %s", resp.Status, msg)
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, lastErr)
}

// retryAfter parses the platform's Retry-After, which may carry fractional
// seconds.
func retryAfter(h http.Header) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
		return time.Duration(f * float64(time.Second))
	}
	return 0
}

// nextPageInfo pulls the page_info cursor out of the rel="next" Link header.
func nextPageInfo(h http.Header) string {
	for _, raw := range h.Values("Link") {
		for _, part := range strings.Split(raw, ",") {
			seg := strings.Split(part, ";")
			if len(seg) < 2 {
				continue
			}
			next := false
			for _, attr := range seg[1:] {
				if strings.TrimSpace(attr) == `rel="next"` {
					next = true
					break
				}
			}
			if !next {
				continue
			}
			target := strings.Trim(strings.TrimSpace(seg[0]), "<>")
			if u, err := url.Parse(target); err == nil {
				return u.Query().Get("page_info")
			}
		}
	}
	return ""
}

func snippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	return strings.TrimSpace(string(b))
}
