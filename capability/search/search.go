package search

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/llm"
	"github.com/BaSui01/moneta/llm/tools"
)

// Capability names.
const (
	SearchCIO               = "search_cio"
	SearchFundsDetails      = "search_funds_details"
	SearchInsurancePolicies = "search_insurance_policies"
)

// DefaultTop is the number of documents returned per query.
const DefaultTop = 3

// DefaultVectorField is the embedding field stripped from results.
const DefaultVectorField = "contentVector"

// Document is one search hit. Fields are index specific.
type Document map[string]any

// Searcher runs a query against one index.
type Searcher interface {
	Search(ctx context.Context, query string, top int) ([]Document, error)
}

// Function adapts a Searcher to a capability function.
type Function struct {
	name        string
	searcher    Searcher
	vectorField string
	top         int
	logger      *zap.Logger
}

// NewFunction 创建检索能力函数。vectorField 为空时使用 DefaultVectorField。
func NewFunction(name string, searcher Searcher, vectorField string, logger *zap.Logger) *Function {
	if logger == nil {
		logger = zap.NewNop()
	}
	if vectorField == "" {
		vectorField = DefaultVectorField
	}
	return &Function{
		name:        name,
		searcher:    searcher,
		vectorField: vectorField,
		top:         DefaultTop,
		logger:      logger.With(zap.String("component", "search"), zap.String("capability", name)),
	}
}

type queryArgs struct {
	Query string `json:"query"`
}

type failure struct {
	Error   string     `json:"error"`
	Query   string     `json:"query"`
	Results []Document `json:"results"`
}

// Call implements tools.ToolFunc. Search failures are reported in the payload.
func (f *Function) Call(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
	var args queryArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %v", err)
	}

	docs, err := f.searcher.Search(ctx, args.Query, f.top)
	if err != nil {
		f.logger.Error("search failed", zap.String("query", args.Query), zap.Error(err))
		return json.Marshal(failure{
			Error:   fmt.Sprintf("Search failed: %v", err),
			Query:   args.Query,
			Results: []Document{},
		})
	}

	out := make([]Document, 0, len(docs))
	for _, doc := range docs {
		out = append(out, f.strip(doc))
	}
	f.logger.Info("search completed", zap.String("query", args.Query), zap.Int("results", len(out)))
	return json.MarshalIndent(out, "", "  ")
}

func (f *Function) strip(doc Document) Document {
	clean := make(Document, len(doc))
	for k, v := range doc {
		switch k {
		case "parent_id", "chunk_id", f.vectorField:
			continue
		}
		clean[k] = v
	}
	return clean
}

// Register adds the capability to reg. A positive cacheTTL enables result caching.
func (f *Function) Register(reg *tools.DefaultRegistry, description string, cacheTTL time.Duration) error {
	return reg.Register(f.name, f.Call, tools.ToolMetadata{
		Schema: llm.ToolSchema{
			Name:        f.name,
			Description: description,
			Parameters:  tools.ObjectSchema(map[string]string{"query": "The search query"}, "query"),
		},
		Timeout:  30 * time.Second,
		CacheTTL: cacheTTL,
	})
}
