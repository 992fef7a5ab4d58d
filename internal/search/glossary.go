package search

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qanoon-search/qanoon/internal/normalize"
)

// Glossary expands canonical query tokens with configured synonyms for
// the lexical modality only; the vector model handles semantic
// similarity on its own, and expanding its input would skew the query
// embedding.
type Glossary struct {
	synonyms map[string][]string
}

// NewGlossary builds a glossary from a term -> synonyms map. Terms and
// synonyms are canonicalized; multi-word synonyms contribute each of
// their tokens.
func NewGlossary(entries map[string][]string) *Glossary {
	synonyms := make(map[string][]string, len(entries))
	for term, syns := range entries {
		termTokens := normalize.Tokens(term)
		if len(termTokens) != 1 {
			continue // only single-token terms can match query tokens
		}
		var canonical []string
		for _, syn := range syns {
			canonical = append(canonical, normalize.Tokens(syn)...)
		}
		if len(canonical) > 0 {
			synonyms[termTokens[0]] = canonical
		}
	}
	return &Glossary{synonyms: synonyms}
}

// LoadGlossary reads a YAML term -> synonyms file.
func LoadGlossary(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary: %w", err)
	}

	var entries map[string][]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse glossary: %w", err)
	}

	return NewGlossary(entries), nil
}

// Expand appends synonyms of the input tokens, once, skipping any token
// already present so no term is double-counted. Synonyms of synonyms
// are not chased. The input order is preserved with expansions
// appended after it.
func (g *Glossary) Expand(tokens []string) []string {
	if g == nil || len(g.synonyms) == 0 || len(tokens) == 0 {
		return tokens
	}

	seen := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		seen[tok] = struct{}{}
	}

	out := make([]string, len(tokens), len(tokens)+4)
	copy(out, tokens)

	for _, tok := range tokens {
		for _, syn := range g.synonyms[tok] {
			if _, dup := seen[syn]; dup {
				continue
			}
			seen[syn] = struct{}{}
			out = append(out, syn)
		}
	}

	return out
}

// Len returns the number of glossary terms.
func (g *Glossary) Len() int {
	if g == nil {
		return 0
	}
	return len(g.synonyms)
}
