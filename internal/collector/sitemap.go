package collector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/warmfront/warmfront/internal/store"
)

const sitemapPath = "sitemap.xml"

// changefreqPriority orders sitemap entries so the most volatile pages warm
// first. Entries without a recognized changefreq fall back to monthly.
var changefreqPriority = map[string]int{
	"always":  7,
	"hourly":  6,
	"daily":   5,
	"weekly":  4,
	"monthly": 3,
	"yearly":  2,
	"never":   1,
}

const defaultChangefreqPriority = 3

// SitemapCollector reads a store's XML sitemap and returns its URLs ordered
// by change frequency, most volatile first. Document order is preserved
// within one frequency.
type SitemapCollector struct {
	logger *zap.Logger
}

// NewSitemapCollector constructs a SitemapCollector.
func NewSitemapCollector(logger *zap.Logger) *SitemapCollector {
	return &SitemapCollector{logger: logger}
}

type sitemapEntry struct {
	loc      string
	priority int
}

func (s *SitemapCollector) CollectURLs(ctx context.Context, st store.Store) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []sitemapEntry

	c := colly.NewCollector()
	c.SetRequestTimeout(60 * time.Second)
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnXML("//urlset/url", func(e *colly.XMLElement) {
		loc := e.ChildText("loc")
		if loc == "" {
			return
		}
		priority, ok := changefreqPriority[e.ChildText("changefreq")]
		if !ok {
			priority = defaultChangefreqPriority
		}
		entries = append(entries, sitemapEntry{loc: loc, priority: priority})
	})

	sitemapURL := st.URL(sitemapPath)
	if err := c.Visit(sitemapURL); err != nil {
		return nil, fmt.Errorf("fetch sitemap %s: %w", sitemapURL, err)
	}
	c.Wait()

	// The run deadline may have expired while the fetch was in flight; a
	// partial list must not be mistaken for the full sitemap.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].priority > entries[j].priority
	})

	urls := make([]string, len(entries))
	for i, e := range entries {
		urls[i] = e.loc
	}

	s.logger.Debug("Collected sitemap URLs",
		zap.String("store", st.Code), zap.Int("urls", len(urls)))
	return urls, nil
}
