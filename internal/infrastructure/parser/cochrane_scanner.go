package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"SLRAutomation/internal/config"
	"SLRAutomation/internal/domain"
	"SLRAutomation/internal/scanner"
)

const (
	searchPortlet = "scolarissearchresultsportlet_WAR_scolarissearchresults"
	picoAssetPath = "cochrane.org/assets/pico-data"
)

var picoLabels = []string{
	domain.PicoPopulation,
	domain.PicoIntervention,
	domain.PicoComparison,
	domain.PicoOutcome,
}

// picoLabelPatterns match a leading "Label (N)" prefix for each PICO label.
var picoLabelPatterns = compileLabelPatterns(picoLabels)

func compileLabelPatterns(labels []string) map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp, len(labels))
	for _, label := range labels {
		patterns[label] = regexp.MustCompile(`(?i)^` + regexp.QuoteMeta(label) + `\s*\(\d+\)\s*`)
	}
	return patterns
}

// CochraneScanner walks Cochrane Library search results and extracts review records.
type CochraneScanner struct {
	client      *http.Client
	siteURL     *url.URL
	searchURL   string
	concurrency int
	logger      *slog.Logger
}

// NewCochraneScanner wires an HTTP client; a nil client gets the configured timeout.
func NewCochraneScanner(client *http.Client, cfg config.ScraperConfig, logger *slog.Logger) (*CochraneScanner, error) {
	site, err := url.Parse(cfg.SiteURL)
	if err != nil || site.Scheme == "" || site.Host == "" {
		return nil, fmt.Errorf("invalid cochrane site url %q", cfg.SiteURL)
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &CochraneScanner{
		client:      client,
		siteURL:     site,
		searchURL:   cfg.SearchURL,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Name identifies the strategy inside the registry.
func (c *CochraneScanner) Name() string {
	return "cochrane"
}

// Scan follows search result pages until MaxRecords reviews are collected,
// then fetches each review's abstract.
func (c *CochraneScanner) Scan(ctx context.Context, req scanner.Request) (domain.RecordSet, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty search query")
	}
	if req.MaxRecords <= 0 {
		return nil, fmt.Errorf("max records must be positive, got %d", req.MaxRecords)
	}

	pageURL, err := buildSearchURL(c.searchURL, req.Query)
	if err != nil {
		return nil, err
	}

	records := make(domain.RecordSet, 0, req.MaxRecords)
	for page := 1; pageURL != "" && len(records) < req.MaxRecords; page++ {
		doc, err := c.fetchDocument(ctx, pageURL)
		if err != nil {
			return nil, fmt.Errorf("search page %d: %w", page, err)
		}

		items := doc.Find("div.search-results-item")
		c.logger.Debug("search page", "page", page, "items", items.Length())
		if items.Length() == 0 {
			break
		}

		items.EachWithBreak(func(_ int, item *goquery.Selection) bool {
			rec, ok := c.parseItem(item)
			if !ok {
				return true
			}
			rec.Pico = c.fetchPico(ctx, rec.PicoURL)
			records = append(records, rec)
			return len(records) < req.MaxRecords
		})

		pageURL = ""
		if next, ok := nextPageHref(doc); ok && len(records) < req.MaxRecords {
			pageURL = c.absolute(next)
		}
	}

	if err := c.fillReviews(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

func (c *CochraneScanner) parseItem(item *goquery.Selection) (domain.Record, bool) {
	link := item.Find("h3.result-title a").First()
	if link.Length() == 0 {
		return domain.Record{}, false
	}
	href, _ := link.Attr("href")
	if !strings.Contains(href, "/cdsr/") {
		return domain.Record{}, false
	}
	title := strings.TrimSpace(link.Text())
	if title == "" {
		return domain.Record{}, false
	}

	authors := strings.TrimSpace(item.Find("div.search-result-authors").First().Text())
	if authors == "" {
		authors = domain.NotAvailable
	}

	picoURL := domain.NotAvailable
	item.Find("div.search-result-picos iframe").EachWithBreak(func(_ int, frame *goquery.Selection) bool {
		src, _ := frame.Attr("src")
		if !strings.Contains(src, picoAssetPath) {
			return true
		}
		src = strings.Replace(src, "requestDataFromParent=true", "requestDataFromParent=false", 1)
		picoURL = c.absolute(src)
		return false
	})

	return domain.Record{
		Title:          title,
		Authors:        authors,
		ArticleURL:     strings.TrimSuffix(c.absolute(href), "/") + "/full",
		Pico:           domain.PicoText(domain.NotAvailable),
		PicoURL:        picoURL,
		CompleteReview: domain.NotAvailable,
	}, true
}

func (c *CochraneScanner) fetchPico(ctx context.Context, picoURL string) domain.Pico {
	if picoURL == domain.NotAvailable {
		return domain.PicoText(domain.NotAvailable)
	}
	doc, err := c.fetchDocument(ctx, picoURL)
	if err != nil {
		c.logger.Debug("pico page unavailable", "url", picoURL, "error", err)
		return domain.PicoText(domain.NotAvailable)
	}
	if pico, ok := extractPico(doc); ok {
		return pico
	}
	return domain.PicoText(domain.NotAvailable)
}

func (c *CochraneScanner) fillReviews(ctx context.Context, records domain.RecordSet) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i := range records {
		g.Go(func() error {
			doc, err := c.fetchDocument(gctx, records[i].ArticleURL)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.logger.Debug("review page unavailable", "url", records[i].ArticleURL, "error", err)
				return nil
			}
			records[i].CompleteReview = extractReview(doc)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("fetch reviews: %w", err)
	}
	return nil
}

func (c *CochraneScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "SLRAutomation/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cochrane returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (c *CochraneScanner) absolute(ref string) string {
	parsed, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return c.siteURL.ResolveReference(parsed).String()
}

func extractPico(doc *goquery.Document) (domain.Pico, bool) {
	infos := doc.Find("div.sc-htoDjs.doGvts").First().Find("div.sc-dnqmqq.efKoYv")
	if infos.Length() < len(picoLabels) {
		return domain.Pico{}, false
	}

	fields := make([]domain.PicoField, 0, len(picoLabels))
	for i, label := range picoLabels {
		text := strings.TrimSpace(infos.Eq(i).Text())
		fields = append(fields, domain.PicoField{Name: label, Value: cleanField(text, label)})
	}
	return domain.PicoMap(fields...), true
}

// cleanField strips a leading "Label (N)" prefix.
func cleanField(text, label string) string {
	expr, ok := picoLabelPatterns[label]
	if !ok {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(expr.ReplaceAllString(text, ""))
}

func extractReview(doc *goquery.Document) string {
	abstract := doc.Find("div.abstract.full_abstract").First()
	if abstract.Length() == 0 {
		return domain.NotAvailable
	}

	var sections []string
	abstract.ChildrenFiltered("div, section").Each(func(_ int, sec *goquery.Selection) {
		h3 := sec.Find("h3").First()
		p := sec.Find("p").First()
		if h3.Length() > 0 && p.Length() > 0 {
			sections = append(sections, strings.TrimSpace(h3.Text())+"\n"+strings.TrimSpace(p.Text()))
			return
		}
		if text := joinedText(sec); text != "" {
			sections = append(sections, text)
		}
	})

	review := strings.TrimSpace(strings.Join(sections, "\n\n"))
	if review == "" {
		return domain.NotAvailable
	}
	return review
}

// joinedText concatenates trimmed text nodes with newlines.
func joinedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(*goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			if goquery.NodeName(child) == "#text" {
				if text := strings.TrimSpace(child.Text()); text != "" {
					parts = append(parts, text)
				}
				return
			}
			walk(child)
		})
	}
	walk(sel)
	return strings.Join(parts, "\n")
}

func nextPageHref(doc *goquery.Document) (string, bool) {
	active := doc.Find("div.search-results-footer div.pagination-page-links ul.pagination-page-list li.pagination-page-list-item.active").First()
	if active.Length() == 0 {
		return "", false
	}
	next := active.NextAllFiltered("li.pagination-page-list-item").First()
	href, ok := next.Find("a[href]").First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false
	}
	return href, true
}

func buildSearchURL(base, query string) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid search url %s: %w", base, err)
	}

	params := parsed.Query()
	params.Set("p_p_id", searchPortlet)
	params.Set("p_p_lifecycle", "0")
	params.Set("_"+searchPortlet+"_searchType", "basic")
	params.Set("_"+searchPortlet+"_searchBy", "6")
	params.Set("_"+searchPortlet+"_searchText", "*"+query)
	parsed.RawQuery = params.Encode()
	return parsed.String(), nil
}
