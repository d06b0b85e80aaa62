package usecase

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/moneta/capability/crm"
	"github.com/BaSui01/moneta/capability/news"
	"github.com/BaSui01/moneta/capability/search"
	"github.com/BaSui01/moneta/config"
	"github.com/BaSui01/moneta/llm/tools"
)

var searchDescriptions = map[string]string{
	search.SearchCIO:               "Search the CIO (Chief Investment Office) knowledge base for investment research, market views and recommendations.",
	search.SearchFundsDetails:      "Search the funds knowledge base for fund and ETF details, performance and characteristics.",
	search.SearchInsurancePolicies: "Search the insurance policies knowledge base for policy products, coverage details and benefits.",
}

// NewCapabilityRegistry registers every capability used by the shipped use cases.
// Search capabilities query Azure AI Search when an endpoint is configured and
// the embedded sample indexes otherwise.
func NewCapabilityRegistry(cfg config.CapabilitiesConfig, logger *zap.Logger) (*tools.DefaultRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := tools.NewDefaultRegistry(logger)

	crmFns := crm.NewFunctions(crm.NewStore(cfg.CRM.DataDir), logger)
	if err := crmFns.RegisterBanking(reg); err != nil {
		return nil, fmt.Errorf("register banking crm: %w", err)
	}
	if err := crmFns.RegisterInsurance(reg); err != nil {
		return nil, fmt.Errorf("register insurance crm: %w", err)
	}

	searchTTL := cacheTTL(cfg.Cache, cfg.Cache.SearchTTL)
	indexes := SearchIndexes(cfg.Search)
	for _, name := range SearchCapabilities {
		searcher, err := newSearcher(cfg.Search, name, indexes[name], logger)
		if err != nil {
			return nil, err
		}
		fn := search.NewFunction(name, searcher, cfg.Search.VectorField, logger)
		if err := fn.Register(reg, searchDescriptions[name], searchTTL); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}

	fetcher := news.NewFetcher(news.Config{BaseURL: cfg.News.BaseURL, Timeout: cfg.News.Timeout}, logger)
	if err := fetcher.Register(reg, cacheTTL(cfg.Cache, cfg.Cache.NewsTTL)); err != nil {
		return nil, fmt.Errorf("register %s: %w", news.FetchNews, err)
	}

	logger.Info("capabilities registered",
		zap.Strings("capabilities", reg.Names()),
		zap.Bool("azure_search", cfg.Search.Endpoint != ""),
		zap.Bool("result_cache", cfg.Cache.Enabled),
	)
	return reg, nil
}

// SearchCapabilities 按注册顺序列出搜索能力
var SearchCapabilities = []string{search.SearchCIO, search.SearchFundsDetails, search.SearchInsurancePolicies}

// SearchIndexes maps each search capability to its configured index name.
func SearchIndexes(cfg config.SearchConfig) map[string]string {
	return map[string]string{
		search.SearchCIO:               cfg.CIOIndex,
		search.SearchFundsDetails:      cfg.FundsIndex,
		search.SearchInsurancePolicies: cfg.PoliciesIndex,
	}
}

// NewAzureSearcher 为一个索引创建 Azure AI Search 客户端
func NewAzureSearcher(cfg config.SearchConfig, index string, logger *zap.Logger) (*search.AzureClient, error) {
	return search.NewAzureClient(search.AzureConfig{
		Endpoint:              cfg.Endpoint,
		APIKey:                cfg.APIKey,
		APIVersion:            cfg.APIVersion,
		Index:                 index,
		SemanticConfiguration: cfg.SemanticConfiguration,
		VectorField:           cfg.VectorField,
		Timeout:               cfg.Timeout,
	}, logger)
}

func newSearcher(cfg config.SearchConfig, name, index string, logger *zap.Logger) (search.Searcher, error) {
	if cfg.Endpoint == "" {
		idx, err := search.LoadSampleIndex(name)
		if err != nil {
			return nil, fmt.Errorf("load sample index %s: %w", name, err)
		}
		return idx, nil
	}
	client, err := NewAzureSearcher(cfg, index, logger)
	if err != nil {
		return nil, fmt.Errorf("search client %s: %w", name, err)
	}
	return client, nil
}

// cacheTTL returns ttl, or the default when unset. Caching disabled yields 0.
func cacheTTL(cfg config.CacheConfig, ttl time.Duration) time.Duration {
	if !cfg.Enabled {
		return 0
	}
	if ttl > 0 {
		return ttl
	}
	return cfg.DefaultTTL
}
