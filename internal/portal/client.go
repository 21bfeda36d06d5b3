package portal

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"nfce/internal/config"
)

const maxAttempts = 5

// Client downloads NFC-e consultation pages from the state tax portal.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	sleep      func(time.Duration)
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.PortalTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.PortalRateLimitRPS),
		sleep:      time.Sleep,
	}
}

// FetchPage returns the HTML of a receipt page, retrying throttling and
// server errors with exponential backoff.
func (c *Client) FetchPage(ctx context.Context, pageURL string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return nil, eris.Wrapf(err, "portal: parse url %q", pageURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, eris.Errorf("portal: unsupported url %q", pageURL)
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, eris.Wrap(err, "portal: wait for rate limiter")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, eris.Wrap(err, "portal: build request")
		}
		req.Header.Set("User-Agent", c.cfg.PortalUserAgent)
		req.Header.Set("Accept", "text/html")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				c.sleep(backoff)
				lastErr = eris.Errorf("portal status %d", resp.StatusCode)
				continue
			}
			return nil, eris.Errorf("portal: status=%d url=%s", resp.StatusCode, u.String())
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = eris.New("portal request failed")
	}
	return nil, eris.Wrapf(lastErr, "portal: fetch %s", u.String())
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
