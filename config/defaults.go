// =============================================================================
// 📦 Moneta 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:       DefaultServerConfig(),
		Agent:        DefaultAgentConfig(),
		LLM:          DefaultLLMConfig(),
		Store:        DefaultStoreConfig(),
		Redis:        DefaultRedisConfig(),
		Database:     DefaultDatabaseConfig(),
		Mongo:        DefaultMongoConfig(),
		Capabilities: DefaultCapabilitiesConfig(),
		Log:          DefaultLogConfig(),
		Telemetry:    DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultAgentConfig 返回默认编排配置
func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		Model:            "gpt-4o",
		Temperature:      0.2,
		MaxTokens:        2048,
		RunTimeout:       120 * time.Second,
		MaxSteps:         10,
		UserMessageLimit: 10,
		MaxToolRounds:    5,
		MaxHistoryTokens: 0,
		Warmup:           false,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:           "azure_openai",
		APIVersion:         "2024-10-21",
		Timeout:            2 * time.Minute,
		MaxRetries:         3,
		BreakerMaxFailures: 5,
		BreakerTimeout:     30 * time.Second,
	}
}

// DefaultStoreConfig 返回默认存储配置
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:      "memory",
		BaseDir:   "./data/users",
		KeyPrefix: "moneta:user:",
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "moneta",
		Password:        "",
		Name:            "moneta",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultMongoConfig 返回默认 MongoDB 配置
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		Database:   "moneta",
		Collection: "user_documents",
		Timeout:    10 * time.Second,
	}
}

// DefaultCapabilitiesConfig 返回默认能力配置
func DefaultCapabilitiesConfig() CapabilitiesConfig {
	return CapabilitiesConfig{
		Search: SearchConfig{
			APIVersion:            "2024-07-01",
			SemanticConfiguration: "default",
			VectorField:           "contentVector",
			CIOIndex:              "cio-index",
			FundsIndex:            "funds-index",
			PoliciesIndex:         "insurance-policies-index",
			Timeout:               30 * time.Second,
		},
		News: NewsConfig{
			BaseURL: "https://finviz.com/quote.ashx",
			Timeout: 15 * time.Second,
		},
		Cache: CacheConfig{
			Enabled:    false,
			DefaultTTL: 10 * time.Minute,
			SearchTTL:  30 * time.Minute,
			NewsTTL:    5 * time.Minute,
		},
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "moneta",
		SampleRate:   0.1,
		Insecure:     true,
	}
}
