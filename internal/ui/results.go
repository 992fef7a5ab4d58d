package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/qanoon-search/qanoon/internal/search"
)

// ResultsRenderer displays search results.
type ResultsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewResultsRenderer creates a results renderer.
func NewResultsRenderer(out io.Writer, noColor bool) *ResultsRenderer {
	return &ResultsRenderer{out: out, styles: GetStyles(noColor)}
}

// Render displays a search result set.
func (r *ResultsRenderer) Render(query string, res *search.Result) error {
	if res.Degraded {
		_, _ = fmt.Fprintf(r.out, "%s\n\n",
			r.styles.Warning.Render("embedding provider unavailable; keyword results only"))
	}

	if len(res.Items) == 0 {
		_, _ = fmt.Fprintln(r.out, res.Answer)
		if res.HiddenCount > 0 {
			r.renderHidden(res.HiddenCount)
		}
		return nil
	}

	header := fmt.Sprintf("%d result(s) for %q", len(res.Items), query)
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render(header))

	for i, item := range res.Items {
		ref := item.DocName
		if item.ArticleRef != "" {
			ref += " — " + item.ArticleRef
		}
		_, _ = fmt.Fprintf(r.out, "%d. %s %s\n",
			i+1,
			r.styles.DocRef.Render(ref),
			r.styles.Score.Render(fmt.Sprintf("(score: %.3f)", item.Score)))
		if len(item.Pages) > 0 {
			_, _ = fmt.Fprintf(r.out, "   %s\n", r.styles.Label.Render("pages: "+formatPages(item.Pages)))
		}
		_, _ = fmt.Fprintf(r.out, "   %s\n\n", item.Snippet)
	}

	if res.HiddenCount > 0 {
		r.renderHidden(res.HiddenCount)
	}
	return nil
}

func (r *ResultsRenderer) renderHidden(n int) {
	_, _ = fmt.Fprintf(r.out, "%s\n",
		r.styles.Dim.Render(fmt.Sprintf("%d result(s) hidden by access policy", n)))
}

func formatPages(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return strings.Join(parts, ", ")
}
