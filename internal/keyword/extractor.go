// Package keyword provides keyword extraction, fuzzy term comparison, and the item search index.
package keyword

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// domainStopWords are words that appear in almost every lost or found post and carry no signal.
var domainStopWords = map[string]struct{}{
	"lost":    {},
	"found":   {},
	"missing": {},
	"near":    {},
	"left":    {},
	"item":    {},
	"please":  {},
	"someone": {},
	"anyone":  {},
}

// Keywords is a set of normalized terms.
type Keywords map[string]struct{}

// Len returns the number of terms.
func (k Keywords) Len() int {
	return len(k)
}

// Contains reports whether term is in the set.
func (k Keywords) Contains(term string) bool {
	_, ok := k[term]
	return ok
}

// Sorted returns the terms in lexical order.
func (k Keywords) Sorted() []string {
	out := make([]string, 0, len(k))
	for t := range k {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Extractor turns free text into Keywords using the bleve standard analyzer
// (unicode tokenizer, lowercase, English stop words) plus domain stop words.
type Extractor struct {
	mapping *mapping.IndexMappingImpl
}

// NewExtractor returns an Extractor backed by a private analysis cache.
func NewExtractor() *Extractor {
	return &Extractor{mapping: bleve.NewIndexMapping()}
}

// Extract returns the significant terms of text. Empty or whitespace-only text yields an empty set.
func (e *Extractor) Extract(text string) Keywords {
	out := make(Keywords)
	if strings.TrimSpace(text) == "" {
		return out
	}
	tokens, err := e.mapping.AnalyzeText(standard.Name, []byte(text))
	if err != nil {
		return fallbackExtract(text)
	}
	for _, tok := range tokens {
		addTerm(out, string(tok.Term))
	}
	return out
}

var defaultExtractor = NewExtractor()

// Extract runs the package default Extractor.
func Extract(text string) Keywords {
	return defaultExtractor.Extract(text)
}

func addTerm(set Keywords, term string) {
	term = strings.TrimSpace(strings.ToLower(term))
	if utf8.RuneCountInString(term) < 2 {
		return
	}
	if _, stop := domainStopWords[term]; stop {
		return
	}
	set[term] = struct{}{}
}

// fallbackExtract splits on non-alphanumerics when the analyzer is unavailable.
func fallbackExtract(text string) Keywords {
	out := make(Keywords)
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r > utf8.RuneSelf)
	})
	for _, f := range fields {
		addTerm(out, f)
	}
	return out
}
