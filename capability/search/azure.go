package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/BaSui01/moneta/internal/tlsutil"
)

// DefaultAPIVersion is the Azure AI Search data-plane API version.
const DefaultAPIVersion = "2024-07-01"

// AzureConfig configures one Azure AI Search index client.
type AzureConfig struct {
	Endpoint              string
	APIKey                string
	APIVersion            string
	Index                 string
	SemanticConfiguration string
	VectorField           string
	Timeout               time.Duration
}

// AzureClient queries an Azure AI Search index with a semantic + vector query.
type AzureClient struct {
	cfg     AzureConfig
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[[]Document]
	logger  *zap.Logger
}

// NewAzureClient 创建 Azure AI Search 客户端。
func NewAzureClient(cfg AzureConfig, logger *zap.Logger) (*AzureClient, error) {
	if cfg.Endpoint == "" || cfg.Index == "" {
		return nil, errors.New("search endpoint and index name are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.SemanticConfiguration == "" {
		cfg.SemanticConfiguration = "default"
	}
	if cfg.VectorField == "" {
		cfg.VectorField = DefaultVectorField
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 20 * time.Second
	}
	logger = logger.With(zap.String("component", "azure_search"), zap.String("index", cfg.Index))

	breaker := gobreaker.NewCircuitBreaker[[]Document](gobreaker.Settings{
		Name:    "search:" + cfg.Index,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", zap.String("breaker", name),
				zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &AzureClient{
		cfg:     cfg,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		breaker: breaker,
		logger:  logger,
	}, nil
}

type vectorQuery struct {
	Kind   string `json:"kind"`
	Text   string `json:"text"`
	Fields string `json:"fields"`
}

type searchRequest struct {
	Search                string        `json:"search"`
	Count                 bool          `json:"count"`
	Top                   int           `json:"top"`
	QueryType             string        `json:"queryType"`
	SemanticConfiguration string        `json:"semanticConfiguration"`
	Answers               string        `json:"answers"`
	VectorQueries         []vectorQuery `json:"vectorQueries"`
}

type searchResponse struct {
	Value []Document `json:"value"`
}

// Search implements Searcher.
func (c *AzureClient) Search(ctx context.Context, query string, top int) ([]Document, error) {
	return c.breaker.Execute(func() ([]Document, error) {
		return c.do(ctx, query, top)
	})
}

func (c *AzureClient) do(ctx context.Context, query string, top int) ([]Document, error) {
	var out searchResponse
	err := c.post(ctx, "search", searchRequest{
		Search:                query,
		Count:                 true,
		Top:                   top,
		QueryType:             "semantic",
		SemanticConfiguration: c.cfg.SemanticConfiguration,
		Answers:               fmt.Sprintf("extractive|count-%d", top),
		VectorQueries:         []vectorQuery{{Kind: "text", Text: query, Fields: c.cfg.VectorField}},
	}, &out)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("search executed", zap.Int("hits", len(out.Value)))
	return out.Value, nil
}

// 单次索引请求的文档上限
const maxUploadBatch = 1000

type indexResult struct {
	Key          string `json:"key"`
	Status       bool   `json:"status"`
	ErrorMessage string `json:"errorMessage"`
}

type indexResponse struct {
	Value []indexResult `json:"value"`
}

// Upload merges docs into the index with mergeOrUpload, in batches.
// It returns the number of documents the service accepted; a rejected document
// fails the call after the remaining batches are skipped.
func (c *AzureClient) Upload(ctx context.Context, docs []Document) (int, error) {
	accepted := 0
	for start := 0; start < len(docs); start += maxUploadBatch {
		end := min(start+maxUploadBatch, len(docs))
		batch := make([]Document, 0, end-start)
		for _, doc := range docs[start:end] {
			action := make(Document, len(doc)+1)
			for k, v := range doc {
				action[k] = v
			}
			action["@search.action"] = "mergeOrUpload"
			batch = append(batch, action)
		}

		var out indexResponse
		if err := c.post(ctx, "index", map[string][]Document{"value": batch}, &out); err != nil {
			return accepted, fmt.Errorf("upload to %s: %w", c.cfg.Index, err)
		}
		for _, r := range out.Value {
			if !r.Status {
				return accepted, fmt.Errorf("upload to %s: document %s rejected: %s", c.cfg.Index, r.Key, r.ErrorMessage)
			}
			accepted++
		}
	}
	c.logger.Info("documents uploaded", zap.String("index", c.cfg.Index), zap.Int("count", accepted))
	return accepted, nil
}

// post 向 /indexes/{index}/docs/{op} 发送 JSON 请求并解码响应
func (c *AzureClient) post(ctx context.Context, op string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/indexes/%s/docs/%s?api-version=%s",
		strings.TrimRight(c.cfg.Endpoint, "/"), url.PathEscape(c.cfg.Index), op, url.QueryEscape(c.cfg.APIVersion))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("api-key", c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// 207 表示部分文档失败，逐条结果仍需解码
	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

var _ Searcher = (*AzureClient)(nil)
