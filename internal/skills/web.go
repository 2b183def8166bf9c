package skills

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	duckduckgo "github.com/cloudwego/eino-ext/components/tool/duckduckgo/v2"
	"golang.org/x/net/html"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const defaultFetchChars = 4000

// newWebSearchSkill wraps the duckduckgo text-search tool.
func (r *Registry) newWebSearchSkill(ctx context.Context) (*Skill, error) {
	ddg, err := duckduckgo.NewTextSearchTool(ctx, &duckduckgo.Config{
		ToolName:   "web_search",
		ToolDesc:   "Search the web via DuckDuckGo",
		MaxResults: 5,
		Timeout:    15 * time.Second,
	})
	if err != nil {
		return nil, err
	}

	return &Skill{
		Name:        "web_search",
		Description: "Search the web via DuckDuckGo. Args: query (string)",
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			query := stringArg(args, "query", "")
			if query == "" {
				return "", fmt.Errorf("query is required")
			}
			in, err := json.Marshal(map[string]string{"query": query})
			if err != nil {
				return "", err
			}
			out, err := ddg.InvokableRun(ctx, string(in))
			if err != nil {
				return fmt.Sprintf("Search failed: %v", err), nil
			}
			if strings.TrimSpace(out) == "" {
				return "No results found for: " + query, nil
			}
			return out, nil
		},
	}, nil
}

func (r *Registry) newWebFetchSkill() *Skill {
	client := &http.Client{Timeout: 20 * time.Second}

	return &Skill{
		Name:        "web_fetch",
		Description: "Fetch full text content from a URL. Args: url (string), max_chars (int, default 4000)",
		Run: func(ctx context.Context, args map[string]any) (string, error) {
			url := stringArg(args, "url", "")
			if url == "" {
				return "", fmt.Errorf("url is required")
			}
			if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
				url = "https://" + url
			}
			maxChars := intArg(args, "max_chars", defaultFetchChars)

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return fmt.Sprintf("Failed to fetch %s: %v", url, err), nil
			}
			req.Header.Set("User-Agent", browserUA)

			resp, err := client.Do(req)
			if err != nil {
				return fmt.Sprintf("Failed to fetch %s: %v", url, err), nil
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 400 {
				return fmt.Sprintf("HTTP error %d fetching: %s", resp.StatusCode, url), nil
			}

			body, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
			if err != nil {
				return fmt.Sprintf("Failed to read %s: %v", url, err), nil
			}

			text := string(body)
			if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
				text = extractText(text)
			}
			if len(text) > maxChars {
				text = fmt.Sprintf("%s\n\n[...truncated, total %d chars]", text[:maxChars], len(text))
			}
			return fmt.Sprintf("URL: %s\n\n%s", url, text), nil
		},
	}
}

// skipTags are boilerplate elements dropped before text extraction.
var skipTags = map[string]bool{
	"script": true, "style": true, "nav": true, "footer": true,
	"header": true, "aside": true, "noscript": true,
}

var blankLinesRe = regexp.MustCompile(`\n{3,}`)

// extractText renders an HTML document to plain text, dropping boilerplate
// elements. On parse failure the raw input is returned.
func extractText(raw string) string {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return raw
	}
	var sb strings.Builder
	walkText(doc, &sb)
	out := blankLinesRe.ReplaceAllString(strings.TrimSpace(sb.String()), "\n\n")
	return out
}

func walkText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.ElementNode && skipTags[n.Data] {
		return
	}
	if n.Type == html.TextNode {
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteString("\n")
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkText(c, sb)
	}
}
