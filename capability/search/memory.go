package search

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"unicode"
)

//go:embed data/*.json
var sampleData embed.FS

// MemoryIndex is a keyword index over a fixed document set.
type MemoryIndex struct {
	docs []Document
	// fields searched for keywords
	fields []string
}

// NewMemoryIndex indexes docs over the given text fields.
func NewMemoryIndex(docs []Document, fields ...string) *MemoryIndex {
	if len(fields) == 0 {
		fields = []string{"title", "content"}
	}
	return &MemoryIndex{docs: docs, fields: fields}
}

// SampleDocuments returns the embedded sample documents for a capability name.
func SampleDocuments(name string) ([]Document, error) {
	data, err := sampleData.ReadFile("data/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("no sample index for %s: %w", name, err)
	}
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("parse sample index %s: %w", name, err)
	}
	return docs, nil
}

// LoadSampleIndex returns the embedded sample index for a capability name.
func LoadSampleIndex(name string) (*MemoryIndex, error) {
	docs, err := SampleDocuments(name)
	if err != nil {
		return nil, err
	}
	return NewMemoryIndex(docs), nil
}

// Search ranks documents by the number of query terms they contain.
func (m *MemoryIndex) Search(ctx context.Context, query string, top int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	terms := tokenize(query)
	if len(terms) == 0 {
		return []Document{}, nil
	}

	type hit struct {
		doc   Document
		score int
		order int
	}
	var hits []hit
	for i, doc := range m.docs {
		text := m.text(doc)
		score := 0
		for _, term := range terms {
			if strings.Contains(text, term) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, hit{doc: doc, score: score, order: i})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].order < hits[j].order
	})

	if top > 0 && len(hits) > top {
		hits = hits[:top]
	}
	out := make([]Document, 0, len(hits))
	for _, h := range hits {
		doc := make(Document, len(h.doc)+1)
		for k, v := range h.doc {
			doc[k] = v
		}
		doc["@search.score"] = float64(h.score) / float64(len(terms))
		out = append(out, doc)
	}
	return out, nil
}

func (m *MemoryIndex) text(doc Document) string {
	var b strings.Builder
	for _, f := range m.fields {
		if s, ok := doc[f].(string); ok {
			b.WriteString(strings.ToLower(s))
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

var _ Searcher = (*MemoryIndex)(nil)
