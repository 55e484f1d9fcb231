package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"civiceye/internal/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel>
<title>%s</title><link>%s</link><description>city news</description>
<item><title>%s</title><link>%s/older</link><description>&lt;p&gt;Road works on &lt;b&gt;Main St&lt;/b&gt;&lt;/p&gt;</description><pubDate>Mon, 01 Jul 2024 08:00:00 GMT</pubDate></item>
<item><title>Water cut</title><link>%s/newer</link><description>Scheduled maintenance</description><pubDate>Tue, 02 Jul 2024 08:00:00 GMT</pubDate></item>
</channel></rss>`

const articleHTML = `<html><head><title>Water cut</title></head><body>
<article><h1>Water cut</h1>
<p>The water supply in the northern districts will be interrupted on Tuesday between 8am and 4pm while crews replace a section of the main pipeline.</p>
<p>Residents are advised to store water in advance. Tankers will be stationed at the community hall and the central market for the duration of the work.</p>
<script>alert("x")</script>
</article></body></html>`

func newFeedServer(t *testing.T, name string, hits *int32) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/feed":
			atomic.AddInt32(hits, 1)
			time.Sleep(20 * time.Millisecond)
			w.Header().Set("Content-Type", "application/rss+xml")
			fmt.Fprintf(w, rssTemplate, name, srv.URL, name+" works", srv.URL, srv.URL)
		case "/newer":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, articleHTML)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCityUpdatesMergeAndCache(t *testing.T) {
	var hits int32
	srv := newFeedServer(t, "City Hall", &hits)
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer broken.Close()

	svc, err := NewCityUpdatesService([]string{srv.URL + "/feed", broken.URL + "/feed"}, time.Minute)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Latest(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	items, err := svc.Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Water cut", items[0].Title, "newest first")
	assert.Equal(t, "City Hall", items[0].Source)
	assert.Equal(t, "Road works on Main St", items[1].Summary)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits), "concurrent refreshes share one fetch")
}

func TestCityUpdatesAllFeedsDown(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer broken.Close()

	svc, err := NewCityUpdatesService([]string{broken.URL}, time.Minute)
	require.NoError(t, err)

	_, err = svc.Latest(context.Background())
	assert.True(t, apperror.Is(err, apperror.KindInternal))
}

func TestCityUpdatesWithoutFeeds(t *testing.T) {
	svc, err := NewCityUpdatesService(nil, time.Minute)
	require.NoError(t, err)
	items, err := svc.Latest(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestReadOnlyKnownLinks(t *testing.T) {
	var hits int32
	srv := newFeedServer(t, "City Hall", &hits)
	svc, err := NewCityUpdatesService([]string{srv.URL + "/feed"}, time.Minute)
	require.NoError(t, err)

	_, err = svc.Read(context.Background(), "https://elsewhere.example/page")
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	_, err = svc.Read(context.Background(), "")
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	article, err := svc.Read(context.Background(), srv.URL+"/newer")
	require.NoError(t, err)
	assert.Contains(t, article.Content, "northern districts")
	assert.NotContains(t, article.Content, "<script>")
}
