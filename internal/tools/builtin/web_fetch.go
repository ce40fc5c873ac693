package builtin

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/http"
	neturl "net/url"
	"strings"
	"unicode/utf8"

	"codeagent/internal/httpclient"
	"codeagent/internal/tools"

	"github.com/PuerkitoBio/goquery"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// visitWebpage fetches a page and renders its readable text. Rendered pages
// are cached per URL with a TTL.
type visitWebpage struct {
	cfg   WebConfig
	cache *expirable.LRU[string, string]
}

// NewVisitWebpage returns the visit_webpage tool.
func NewVisitWebpage(cfg WebConfig) tools.Executor {
	cfg = cfg.withDefaults()
	return &visitWebpage{
		cfg:   cfg,
		cache: expirable.NewLRU[string, string](cfg.CacheSize, nil, cfg.CacheTTL),
	}
}

type visitWebpageArgs struct {
	URL string `json:"url"`
}

func (t *visitWebpage) Execute(ctx context.Context, call tools.Call) *tools.Result {
	var args visitWebpageArgs
	if res := tools.DecodeArgs(t.Definition(), call, &args); res != nil {
		return res
	}
	target := strings.TrimSpace(args.URL)
	parsed, err := neturl.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return tools.Fail(tools.FailureInvalidArgument, "Error: '%s' is not a valid http(s) URL.", target)
	}

	if page, ok := t.cache.Get(target); ok {
		return tools.Success(page).WithMetadata("url", target).WithMetadata("cached", true)
	}

	page, err := t.fetch(ctx, target)
	if err != nil {
		if isTimeout(err) {
			return tools.Fail(tools.FailureTimeout, "The request timed out. Please try again later or check the URL.")
		}
		return tools.Fail(tools.FailureNetwork, "Error fetching the webpage: %v", err)
	}
	page = truncateChars(page, t.cfg.PageMaxChars)
	t.cache.Add(target, page)
	return tools.Success(page).WithMetadata("url", target).WithMetadata("cached", false)
}

func (t *visitWebpage) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	resp, err := t.cfg.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, _, err := httpclient.ReadPrefix(resp.Body, maxResponseBytes)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "" && mediaType != "text/html" && mediaType != "application/xhtml+xml" {
		return strings.TrimSpace(string(body)), nil
	}
	return htmlToText(body)
}

var blockElements = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "main": true,
	"blockquote": true, "pre": true, "table": true, "tr": true, "ul": true,
	"ol": true, "dl": true, "dt": true, "dd": true, "figure": true, "body": true,
}

// htmlToText renders an HTML document as markdown-ish text in document
// order: headings become #-prefixed lines, list items "- " lines and links
// [text](href).
func htmlToText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer, header, aside, iframe, svg, form, template").Remove()

	w := &textWriter{}
	if title := collapseSpace(doc.Find("title").First().Text()); title != "" {
		w.block("# " + title)
	}
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	renderText(root, w)
	return w.String(), nil
}

func renderText(s *goquery.Selection, w *textWriter) {
	s.Contents().Each(func(_ int, node *goquery.Selection) {
		name := goquery.NodeName(node)
		switch {
		case name == "#text":
			w.inline(node.Text())
		case len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6':
			if text := collapseSpace(node.Text()); text != "" {
				w.block(strings.Repeat("#", int(name[1]-'0')) + " " + text)
			}
		case name == "li":
			if text := collapseSpace(node.Text()); text != "" {
				w.line("- " + text)
			}
		case name == "a":
			text := collapseSpace(node.Text())
			href, _ := node.Attr("href")
			if text != "" && (strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://")) {
				w.inline("[" + text + "](" + href + ")")
			} else {
				w.inline(text)
			}
		case name == "br":
			w.flush()
		case blockElements[name]:
			w.flush()
			renderText(node, w)
			w.flush()
		case strings.HasPrefix(name, "#"):
		default:
			renderText(node, w)
		}
	})
}

// textWriter groups inline fragments into paragraphs.
type textWriter struct {
	parts   []string
	current []string
	tight   bool
}

func (w *textWriter) inline(text string) {
	if fields := strings.Fields(text); len(fields) > 0 {
		w.current = append(w.current, strings.Join(fields, " "))
	}
}

func (w *textWriter) flush() {
	if len(w.current) == 0 {
		return
	}
	w.push(strings.Join(w.current, " "), false)
	w.current = nil
}

func (w *textWriter) block(text string) {
	w.flush()
	w.push(text, false)
}

// line adds a list entry; consecutive entries are not separated by blank
// lines.
func (w *textWriter) line(text string) {
	w.flush()
	w.push(text, true)
}

func (w *textWriter) push(text string, tight bool) {
	if tight && w.tight && len(w.parts) > 0 {
		w.parts[len(w.parts)-1] += "\n" + text
	} else {
		w.parts = append(w.parts, text)
	}
	w.tight = tight
}

func (w *textWriter) String() string {
	w.flush()
	return strings.Join(w.parts, "\n\n")
}

func truncateChars(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit]) + fmt.Sprintf("\n\n..._This content has been truncated to stay below %d characters_...", limit)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func (t *visitWebpage) Definition() tools.Definition {
	return tools.Definition{
		Kind:        tools.KindVisitWebpage,
		Name:        string(tools.KindVisitWebpage),
		Description: "Visits a webpage at the given URL and returns its content as markdown-like text.",
		Parameters: tools.ParameterSchema{
			Type: "object",
			Properties: map[string]tools.Property{
				"url": {Type: "string", Description: "The http(s) URL of the webpage to visit."},
			},
			Required: []string{"url"},
		},
		Output: tools.OutputString,
	}
}
