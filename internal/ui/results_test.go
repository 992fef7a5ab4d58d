package ui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qanoon-search/qanoon/internal/search"
)

func TestResultsRendererRender(t *testing.T) {
	var buf bytes.Buffer
	r := NewResultsRenderer(&buf, true)

	res := &search.Result{
		Items: []*search.Item{
			{
				ChunkID:    "labor_law::art1",
				DocName:    "labor_law.pdf",
				ArticleRef: "المادة 1",
				Pages:      []int{3, 4},
				Snippet:    "يستحق العامل إجازة سنوية",
				Score:      0.91,
			},
		},
		HiddenCount: 2,
		Answer:      "يستحق العامل إجازة سنوية",
	}

	require.NoError(t, r.Render("إجازة", res))

	out := buf.String()
	assert.Contains(t, out, "labor_law.pdf — المادة 1")
	assert.Contains(t, out, "pages: 3, 4")
	assert.Contains(t, out, "(score: 0.910)")
	assert.Contains(t, out, "2 result(s) hidden by access policy")
}

func TestResultsRendererNoResults(t *testing.T) {
	var buf bytes.Buffer
	r := NewResultsRenderer(&buf, true)

	res := &search.Result{Answer: search.NoResultAnswer}
	require.NoError(t, r.Render("غائب", res))
	assert.Contains(t, buf.String(), search.NoResultAnswer)
}

func TestResultsRendererDegraded(t *testing.T) {
	var buf bytes.Buffer
	r := NewResultsRenderer(&buf, true)

	res := &search.Result{
		Items:    []*search.Item{{ChunkID: "a", DocName: "a.pdf", Snippet: "نص", Score: 1}},
		Degraded: true,
		Answer:   "نص",
	}
	require.NoError(t, r.Render("نص", res))
	assert.Contains(t, buf.String(), "keyword results only")
}
