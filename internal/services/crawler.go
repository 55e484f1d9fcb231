package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	nurl "net/url"
	"time"

	readability "github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

const maxArticleBytes = 5 << 20

type Article struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Excerpt string `json:"excerpt,omitempty"`
	Content string `json:"content"`
}

// CrawlerService extracts the readable body of a web page.
type CrawlerService struct {
	client    *http.Client
	sanitizer *bluemonday.Policy
}

func NewCrawlerService(client *http.Client) *CrawlerService {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &CrawlerService{
		client:    client,
		sanitizer: bluemonday.UGCPolicy(),
	}
}

// FetchArticle downloads link, extracts the main content with readability
// and sanitises it.
func (s *CrawlerService) FetchArticle(ctx context.Context, link string) (*Article, error) {
	pageURL, err := nurl.Parse(link)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; CivicEye/1.0; +https://civiceye.app)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	parsed, err := readability.FromReader(io.LimitReader(resp.Body, maxArticleBytes), pageURL)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}

	return &Article{
		Title:   parsed.Title,
		Link:    link,
		Excerpt: parsed.Excerpt,
		Content: s.sanitizer.Sanitize(parsed.Content),
	}, nil
}
