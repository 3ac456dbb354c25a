// Package feed reads IPMA bulletins from an RSS document.
package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/couchcryptid/quake-bulletin-etl/internal/domain"
)

// Source fetches and parses the bulletin feed over HTTP.
type Source struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSource creates a feed source for url. The timeout bounds the whole fetch.
func NewSource(url string, timeout time.Duration, logger *slog.Logger) *Source {
	return &Source{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Fetch downloads the feed and returns its items in feed order (newest first).
// Transport errors, non-200 responses and malformed documents are returned.
func (s *Source) Fetch(ctx context.Context) ([]domain.BulletinItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/rss+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}

	items, err := ParseItems(resp.Body)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("feed fetched", "url", s.url, "items", len(items))
	return items, nil
}

// ParseItems parses an RSS/Atom document into bulletin items.
func ParseItems(r io.Reader) ([]domain.BulletinItem, error) {
	parsed, err := gofeed.NewParser().Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.BulletinItem, 0, len(parsed.Items))
	for _, it := range parsed.Items {
		description := it.Description
		if strings.TrimSpace(description) == "" {
			description = it.Content
		}
		items = append(items, domain.BulletinItem{
			Title:       PlainText(it.Title),
			Description: PlainText(description),
			PubDate:     strings.TrimSpace(it.Published),
		})
	}
	return items, nil
}

// PlainText flattens markup in a bulletin field to text. Text without tags or
// entities is only trimmed, so descriptions stay byte-identical across runs.
func PlainText(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
