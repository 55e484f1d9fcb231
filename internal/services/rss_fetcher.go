package services

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"civiceye/internal/apperror"
	"civiceye/internal/logger"
	"civiceye/internal/metrics"
	"civiceye/internal/models"
	"civiceye/internal/utils"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	cityUpdatesKey     = "city_updates"
	maxCityUpdates     = 50
	maxSummaryRunes    = 280
	feedFetchTimeout   = 20 * time.Second
	concurrentFetchers = 4
)

// CityUpdatesService merges the configured RSS/Atom feeds into one
// newest-first list. Results are cached for the configured TTL and concurrent
// refreshes share a single fetch.
type CityUpdatesService struct {
	parser   *gofeed.Parser
	feedURLs []string
	updates  *utils.TTLCache[[]models.CityUpdate]
	articles *utils.TTLCache[*Article]
	group    singleflight.Group
	crawler  *CrawlerService
}

func NewCityUpdatesService(feedURLs []string, ttl time.Duration) (*CityUpdatesService, error) {
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			IdleConnTimeout:     30 * time.Second,
			MaxIdleConnsPerHost: 2,
		},
	}

	parser := gofeed.NewParser()
	parser.Client = httpClient
	parser.UserAgent = "CivicEye/1.0"

	updates, err := utils.NewTTLCache[[]models.CityUpdate](4, ttl)
	if err != nil {
		return nil, err
	}
	articles, err := utils.NewTTLCache[*Article](128, ttl)
	if err != nil {
		return nil, err
	}

	return &CityUpdatesService{
		parser:   parser,
		feedURLs: feedURLs,
		updates:  updates,
		articles: articles,
		crawler:  NewCrawlerService(httpClient),
	}, nil
}

func (s *CityUpdatesService) Latest(ctx context.Context) ([]models.CityUpdate, error) {
	if len(s.feedURLs) == 0 {
		return []models.CityUpdate{}, nil
	}
	if items, ok := s.updates.Get(cityUpdatesKey); ok {
		return items, nil
	}

	v, err, _ := s.group.Do(cityUpdatesKey, func() (interface{}, error) {
		if items, ok := s.updates.Get(cityUpdatesKey); ok {
			return items, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), feedFetchTimeout)
		defer cancel()

		items, err := s.fetchAll(fetchCtx)
		if err != nil {
			return nil, err
		}
		s.updates.Set(cityUpdatesKey, items)
		return items, nil
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.KindInternal, "city updates are unavailable")
	}
	return v.([]models.CityUpdate), nil
}

// fetchAll tolerates individual feed failures; it only errors when every feed
// failed.
func (s *CityUpdatesService) fetchAll(ctx context.Context) ([]models.CityUpdate, error) {
	var (
		mu       sync.Mutex
		items    []models.CityUpdate
		failures int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrentFetchers)
	for _, feedURL := range s.feedURLs {
		feedURL := feedURL
		g.Go(func() error {
			feed, err := s.parser.ParseURLWithContext(feedURL, gctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures++
				metrics.FeedFetches.WithLabelValues("failed").Inc()
				logger.Log.WithError(err).WithField("feed", feedURL).Warn("City feed fetch failed")
				return nil
			}
			metrics.FeedFetches.WithLabelValues("ok").Inc()
			items = append(items, convertFeed(feed)...)
			return nil
		})
	}
	_ = g.Wait()

	if failures == len(s.feedURLs) {
		return nil, errors.New("all city feeds failed")
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(items[j].PublishedAt)
	})
	if len(items) > maxCityUpdates {
		items = items[:maxCityUpdates]
	}
	if items == nil {
		items = []models.CityUpdate{}
	}
	return items, nil
}

func convertFeed(feed *gofeed.Feed) []models.CityUpdate {
	out := make([]models.CityUpdate, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		var published time.Time
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = *item.UpdatedParsed
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		out = append(out, models.CityUpdate{
			Source:      utils.StripTags(feed.Title),
			Title:       utils.StripTags(item.Title),
			Link:        link,
			Summary:     utils.ExtractText(summary, maxSummaryRunes),
			PublishedAt: published.UTC(),
		})
	}
	return out
}

// Read returns the readable article behind link. Only links that appear in
// the current city updates are fetched.
func (s *CityUpdatesService) Read(ctx context.Context, link string) (*Article, error) {
	if link == "" {
		return nil, apperror.Validation("link is required")
	}
	items, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}

	var known bool
	for _, item := range items {
		if item.Link == link {
			known = true
			break
		}
	}
	if !known {
		return nil, apperror.NotFound("city update")
	}

	if article, ok := s.articles.Get(link); ok {
		return article, nil
	}
	v, err, _ := s.group.Do("article:"+link, func() (interface{}, error) {
		return s.crawler.FetchArticle(ctx, link)
	})
	if err != nil {
		logger.Log.WithError(err).WithField("link", link).Warn("Article extraction failed")
		return nil, apperror.Wrap(err, apperror.KindInternal, "article is unavailable")
	}
	article := v.(*Article)
	s.articles.Set(link, article)
	return article, nil
}
