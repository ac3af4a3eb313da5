package yahoo

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/ycwu/twstock/backend/pkg/httputil"
	"github.com/ycwu/twstock/backend/pkg/logger"
)

// Client handles scraping from Yahoo 奇摩股市 pages.
// ⭐ SSOT: Yahoo 股市網頁抓取只在這個 client
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Yahoo finance client.
func NewClient(httpClient *httputil.Client, log *logger.Logger, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://tw.stock.yahoo.com"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
	}
}

// fetchHTML fetches a page from Yahoo with browser-like headers.
func (c *Client) fetchHTML(ctx context.Context, path string) (string, error) {
	fullURL := fmt.Sprintf("%s%s", c.baseURL, path)

	headers := map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36",
		"Referer":    c.baseURL + "/",
	}

	resp, err := c.httpClient.GetWithHeaders(ctx, fullURL, headers)
	if err != nil {
		return "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	return string(body), nil
}
