package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/NordCoder/GetMoreSeo/internal/circuitbreaker"
	config "github.com/NordCoder/GetMoreSeo/internal/config/scheduler"
)

type Scraper interface {
	Scrape(ctx context.Context, target string) (Page, error)
}

// StatusError is a non-2xx answer from the scraped site or the scraping API.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("GET %s: status %d", e.URL, e.Code) }

// HTTPScraper fetches the page directly, or through ScrapingBee when an API
// key is configured.
type HTTPScraper struct {
	client    *http.Client
	apiKey    string
	endpoint  string
	maxBody   int64
	userAgent string
}

func NewHTTPScraper(cfg config.ScraperCfg, client *http.Client) *HTTPScraper {
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 2 << 20
	}
	return &HTTPScraper{
		client:    client,
		apiKey:    cfg.APIKey,
		endpoint:  cfg.Endpoint,
		maxBody:   maxBody,
		userAgent: cfg.UserAgent,
	}
}

func (s *HTTPScraper) Scrape(ctx context.Context, target string) (Page, error) {
	reqURL := target
	if s.apiKey != "" {
		q := url.Values{}
		q.Set("api_key", s.apiKey)
		q.Set("url", target)
		q.Set("render_js", "false")
		reqURL = s.endpoint + "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Page{}, err
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.client.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return Page{}, &StatusError{URL: target, Code: resp.StatusCode}
	}

	page, err := ParsePage(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return Page{}, fmt.Errorf("parse %s: %w", target, err)
	}
	page.URL = target
	return page, nil
}

// Retryable reports whether a failed outbound call may succeed when repeated.
// Client errors, empty completions and an open breaker are final.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return !errors.Is(err, ErrEmptyCompletion)
}
