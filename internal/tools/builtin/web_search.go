package builtin

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	neturl "net/url"
	"strings"
	"time"

	"codeagent/internal/httpclient"
	"codeagent/internal/tools"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultSearchEndpoint   = "https://html.duckduckgo.com/html/"
	defaultSearchMaxResults = 10
	defaultWebCacheSize     = 64
	defaultWebCacheTTL      = 15 * time.Minute
	defaultPageMaxChars     = 40000
	maxResponseBytes        = 4 << 20
)

// WebConfig configures web_search and visit_webpage.
type WebConfig struct {
	Client           *http.Client
	SearchEndpoint   string
	SearchMaxResults int
	CacheSize        int
	CacheTTL         time.Duration
	PageMaxChars     int
}

func (c WebConfig) withDefaults() WebConfig {
	if c.Client == nil {
		c.Client = httpclient.New(0, nil)
	}
	if c.SearchEndpoint == "" {
		c.SearchEndpoint = defaultSearchEndpoint
	}
	if c.SearchMaxResults <= 0 {
		c.SearchMaxResults = defaultSearchMaxResults
	}
	if c.CacheSize <= 0 {
		c.CacheSize = defaultWebCacheSize
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultWebCacheTTL
	}
	if c.PageMaxChars <= 0 {
		c.PageMaxChars = defaultPageMaxChars
	}
	return c
}

type webSearch struct {
	cfg WebConfig
}

// NewWebSearch returns the web_search tool, backed by the DuckDuckGo HTML
// endpoint.
func NewWebSearch(cfg WebConfig) tools.Executor {
	return &webSearch{cfg: cfg.withDefaults()}
}

type webSearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type searchHit struct {
	Title   string
	Link    string
	Snippet string
}

func (t *webSearch) Execute(ctx context.Context, call tools.Call) *tools.Result {
	args := webSearchArgs{MaxResults: t.cfg.SearchMaxResults}
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}
	query := strings.TrimSpace(args.Query)
	if query == "" {
		return tools.Fail(tools.FailureInvalidArgument, "Error: query must not be empty.")
	}
	if args.MaxResults <= 0 {
		args.MaxResults = t.cfg.SearchMaxResults
	}

	hits, err := t.search(ctx, query, args.MaxResults)
	if err != nil {
		return tools.Fail(tools.FailureNetwork, "Error performing web search: %v", err)
	}
	if len(hits) == 0 {
		return tools.Fail(tools.FailureNotFound, "No results found for '%s'. Try a broader query.", query)
	}

	var b strings.Builder
	b.WriteString("## Search Results\n\n")
	for i, hit := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s](%s)", hit.Title, hit.Link)
		if hit.Snippet != "" {
			b.WriteString("\n" + hit.Snippet)
		}
	}
	return tools.Success(b.String()).WithMetadata("results", len(hits))
}

func (t *webSearch) search(ctx context.Context, query string, limit int) ([]searchHit, error) {
	form := neturl.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.SearchEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.cfg.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, _, err := httpclient.ReadPrefix(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	var hits []searchHit
	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		anchor := s.Find("a.result__a").First()
		title := collapseSpace(anchor.Text())
		href, _ := anchor.Attr("href")
		if title == "" || href == "" {
			return true
		}
		hits = append(hits, searchHit{
			Title:   title,
			Link:    resolveRedirect(href),
			Snippet: collapseSpace(s.Find(".result__snippet").First().Text()),
		})
		return len(hits) < limit
	})
	return hits, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg=<target> links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	parsed, err := neturl.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (t *webSearch) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindWebSearch,
		Name:        string(tools.KindWebSearch),
		Description: "Performs a web search and returns the top results as a markdown list of links with snippets.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"query":       {Type: "string", Description: "Search query."},
				"max_results": {Type: "integer", Description: "Maximum number of results.", Default: t.cfg.SearchMaxResults, Nullable: true},
			},
			Required: []string{"query"},
		},
		Output: tools.OutputString,
	}
}
