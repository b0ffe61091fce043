// Package wikipedia searches Wikipedia and returns articles as Markdown.
package wikipedia

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/opencode-ai/agentcmd/internal/command"
	"github.com/opencode-ai/agentcmd/internal/plugin"
	"github.com/opencode-ai/agentcmd/pkg/types"
)

const (
	Name            = "wikipedia"
	DefaultLanguage = "en"
	DefaultLimit    = 5
	maxLimit        = 50
)

type wiki struct {
	client *plugin.Client
	base   string
}

// Register adds wikipedia_search and wikipedia_page to reg.
func Register(reg *command.Registry, cfg *types.Config, client *plugin.Client) {
	w := &wiki{client: client, base: baseURL(cfg)}
	gate := plugin.Gate(cfg, Name, true, "")

	reg.Register(command.NewPlugin(Name, "wikipedia_search", "Search Wikipedia",
		[]command.Arg{
			{Name: "query", Description: "Search terms", Required: true},
			{Name: "limit", Type: "integer", Description: "Maximum number of results (default 5)"},
		}, w.search), gate)
	reg.Register(command.NewPlugin(Name, "wikipedia_page", "Read Wikipedia Article",
		[]command.Arg{{Name: "title", Description: "Article title", Required: true}},
		w.page), gate)
}

func baseURL(cfg *types.Config) string {
	lang := DefaultLanguage
	if cfg != nil && cfg.Plugins != nil && cfg.Plugins.Wikipedia != nil {
		wc := cfg.Plugins.Wikipedia
		if wc.BaseURL != "" {
			return strings.TrimRight(wc.BaseURL, "/")
		}
		if wc.Language != "" {
			lang = wc.Language
		}
	}
	return fmt.Sprintf("https://%s.wikipedia.org", lang)
}

type searchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
		} `json:"search"`
	} `json:"query"`
}

func (w *wiki) search(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
	var in struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if err := command.Decode(input, &in); err != nil {
		return nil, err
	}
	if in.Limit <= 0 {
		in.Limit = DefaultLimit
	}
	if in.Limit > maxLimit {
		in.Limit = maxLimit
	}

	q := url.Values{}
	q.Set("action", "query")
	q.Set("list", "search")
	q.Set("format", "json")
	q.Set("srsearch", in.Query)
	q.Set("srlimit", fmt.Sprint(in.Limit))

	var resp searchResponse
	if err := w.client.JSON(ctx, http.MethodGet, w.base+"/w/api.php?"+q.Encode(), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("wikipedia search failed: %w", err)
	}

	hits := resp.Query.Search
	if len(hits) == 0 {
		return &command.Result{Title: in.Query, Output: fmt.Sprintf("No Wikipedia results for %q.", in.Query)}, nil
	}
	var sb strings.Builder
	for _, h := range hits {
		fmt.Fprintf(&sb, "- %s: %s\n", h.Title, plainText(h.Snippet))
	}
	return &command.Result{
		Title:    in.Query,
		Output:   strings.TrimRight(sb.String(), "\n"),
		Metadata: map[string]any{"count": len(hits)},
	}, nil
}

func (w *wiki) page(ctx context.Context, input json.RawMessage, cctx *command.Context) (*command.Result, error) {
	var in struct {
		Title string `json:"title"`
	}
	if err := command.Decode(input, &in); err != nil {
		return nil, err
	}

	title := strings.ReplaceAll(strings.TrimSpace(in.Title), " ", "_")
	body, err := w.client.Do(ctx, http.MethodGet, w.base+"/api/rest_v1/page/html/"+url.PathEscape(title), nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %q: %w", in.Title, err)
	}
	markdown, err := toMarkdown(string(body))
	if err != nil {
		return nil, fmt.Errorf("failed to convert %q: %w", in.Title, err)
	}
	return &command.Result{Title: in.Title, Output: markdown}, nil
}

// plainText strips the highlight markup search snippets carry.
func plainText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func toMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	doc.Find("script, style, sup.reference, .mw-editsection, .navbox, .infobox, table.metadata").Remove()

	cleaned, err := doc.Find("body").Html()
	if err != nil {
		return "", err
	}

	converter := md.NewConverter("", true, &md.Options{
		HeadingStyle:     "atx",
		HorizontalRule:   "---",
		BulletListMarker: "-",
		CodeBlockStyle:   "fenced",
		EmDelimiter:      "*",
	})
	converter.Remove("meta", "link")
	out, err := converter.ConvertString(cleaned)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
