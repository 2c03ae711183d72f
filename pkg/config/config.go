package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names accepted in AI_AGENT_ENV
const (
	EnvDev  = "dev"
	EnvTest = "test"
	EnvProd = "prod"
)

// Config represents the global configuration for the agent service
type Config struct {
	// Environment is one of dev, test or prod
	Environment string

	// LLM configuration
	LLM struct {
		// Azure OpenAI chat deployment
		AzureOpenAI AzureOpenAIConfig
		// Embedding deployment
		Embedding struct {
			AzureOpenAIConfig
			Model        string
			Dimensions   int
			MaxBatchSize int
		}
		// Image generation deployment
		ImageGen AzureOpenAIConfig
	}

	// Memory configuration
	Memory struct {
		Redis struct {
			URL      string
			Password string
			DB       int
			TTL      time.Duration
		}
		// HistoryTurns is the number of user/assistant turns kept per session
		HistoryTurns int
	}

	// VectorStore configuration
	VectorStore struct {
		Weaviate struct {
			Host   string
			Scheme string
			APIKey string
		}
	}

	// DataStore configuration
	DataStore struct {
		Postgres struct {
			DSN string
		}
	}

	// Blob storage configuration
	Blob struct {
		Azure struct {
			AccountURL    string
			ContainerName string
			TenantID      string
			ClientID      string
			ClientSecret  string
		}
	}

	// Tools configuration
	Tools struct {
		WebSearch struct {
			BingSubscriptionKey string
			BingSearchURL       string
			Count               int
		}
	}

	// SQLAnalyst configuration
	SQLAnalyst struct {
		URL           string
		Token         string
		SemanticModel string
		WarehouseDSN  string
		RowLimit      int
	}

	// Retrieval configuration
	Retrieval struct {
		K              int
		ScoreThreshold float32
		ChunkSize      int
		ChunkOverlap   int
	}

	// Server configuration
	Server struct {
		Addr           string
		RootPath       string
		APIKeys        []string
		JWTSecret      string
		MaxBodyBytes   int64
		AllowedOrigins []string
		Timezone       string
	}

	// Tracing configuration
	Tracing struct {
		OpenTelemetry struct {
			Enabled           bool
			ServiceName       string
			CollectorEndpoint string
		}
	}

	// Multitenancy configuration
	Multitenancy struct {
		Enabled      bool
		DefaultOrgID string
	}
}

// AzureOpenAIConfig contains Azure OpenAI deployment settings
type AzureOpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Deployment string
	APIVersion string
	Timeout    time.Duration
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	config := &Config{}

	config.Environment = strings.ToLower(getEnv("AI_AGENT_ENV", EnvDev))

	initLLMConfig(config)

	// Memory configuration
	config.Memory.Redis.URL = getEnv("REDIS_URL", "localhost:6379")
	config.Memory.Redis.Password = getEnv("REDIS_PASSWORD", "")
	config.Memory.Redis.DB = getEnvInt("REDIS_DB", 0)
	config.Memory.Redis.TTL = time.Duration(getEnvInt("REDIS_TTL_HOURS", 24*7)) * time.Hour
	config.Memory.HistoryTurns = getEnvInt("HISTORY_TURNS", 15)

	// Vector store
	config.VectorStore.Weaviate.Host = getEnv("VEC_DB_URL", "localhost:8080")
	config.VectorStore.Weaviate.Scheme = getEnv("VEC_DB_SCHEME", "http")
	config.VectorStore.Weaviate.APIKey = getEnv("VEC_DB_API_KEY", "")

	config.DataStore.Postgres.DSN = getEnv("POSTGRES_DSN", "")

	// Blob storage
	config.Blob.Azure.AccountURL = getEnv("BLOB_ACCOUNT_URL", "")
	config.Blob.Azure.ContainerName = getEnv("BLOB_CONTAINER_NAME", "")
	config.Blob.Azure.TenantID = getEnv("AZ_TENANT_ID", "")
	config.Blob.Azure.ClientID = getEnv("AZ_CLIENT_ID", "")
	config.Blob.Azure.ClientSecret = getEnv("AZ_SECRET_ID", "")

	// Web search
	config.Tools.WebSearch.BingSubscriptionKey = getEnv("BING_SUBSCRIPTION_KEY", "")
	config.Tools.WebSearch.BingSearchURL = getEnv("BING_SEARCH_URL", "https://api.bing.microsoft.com/v7.0/search")
	config.Tools.WebSearch.Count = getEnvInt("WEB_SEARCH_COUNT", 10)

	// SQL analyst
	config.SQLAnalyst.URL = getEnv("SQL_ANALYST_URL", "")
	config.SQLAnalyst.Token = getEnv("SQL_ANALYST_TOKEN", "")
	config.SQLAnalyst.SemanticModel = getEnv("SQL_ANALYST_SEMANTIC_MODEL", "")
	config.SQLAnalyst.WarehouseDSN = getEnv("WAREHOUSE_DSN", "")
	config.SQLAnalyst.RowLimit = getEnvInt("WAREHOUSE_ROW_LIMIT", 1000)

	// Retrieval
	config.Retrieval.K = getEnvInt("RETRIEVAL_K", 10)
	config.Retrieval.ScoreThreshold = float32(getEnvFloat("RETRIEVAL_SCORE_THRESHOLD", 0.75))
	config.Retrieval.ChunkSize = getEnvInt("CHUNK_SIZE", 700)
	config.Retrieval.ChunkOverlap = getEnvInt("CHUNK_OVERLAP", config.Retrieval.ChunkSize/5)

	// Server
	config.Server.Addr = getEnv("SERVER_ADDR", ":8000")
	config.Server.RootPath = getEnv("ROOT_PATH", "")
	config.Server.APIKeys = getEnvList("API_KEYS", nil)
	for _, key := range []string{"API_KEY_1", "API_KEY_2"} {
		if v := os.Getenv(key); v != "" {
			config.Server.APIKeys = append(config.Server.APIKeys, v)
		}
	}
	config.Server.JWTSecret = getEnv("API_JWT_SECRET", "")
	config.Server.MaxBodyBytes = int64(getEnvInt("MAX_BODY_BYTES", 16*1024*1024))
	config.Server.AllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"})
	config.Server.Timezone = getEnv("AGENT_TIMEZONE", "Asia/Dubai")

	// Tracing configuration
	config.Tracing.OpenTelemetry.Enabled = getEnvBool("OTEL_ENABLED", false)
	config.Tracing.OpenTelemetry.ServiceName = getEnv("OTEL_SERVICE_NAME", "enterprise-agents")
	config.Tracing.OpenTelemetry.CollectorEndpoint = getEnv("OTEL_COLLECTOR_ENDPOINT", "localhost:4317")

	// Multitenancy configuration
	config.Multitenancy.Enabled = getEnvBool("MULTITENANCY_ENABLED", true)
	config.Multitenancy.DefaultOrgID = getEnv("DEFAULT_ORG_ID", "default")

	return config
}

// initLLMConfig initializes LLM configuration with defaults
func initLLMConfig(config *Config) {
	timeout := time.Duration(getEnvInt("AZURE_OPENAI_TIMEOUT", 120)) * time.Second

	chat := &config.LLM.AzureOpenAI
	chat.APIKey = getEnv("AZURE_OPENAI_LLM_API_KEY", "")
	chat.BaseURL = getEnv("AZURE_OPENAI_LLM_ENDPOINT", "")
	chat.Deployment = getEnv("AZURE_OPENAI_LLM_DEPLOYMENT_NAME", "gpt-4o")
	chat.APIVersion = getEnv("AZURE_OPENAI_LLM_API_VERSION", "2024-08-01-preview")
	chat.Timeout = timeout

	emb := &config.LLM.Embedding
	emb.APIKey = getEnv("AZURE_OPENAI_EMB_API_KEY", chat.APIKey)
	emb.BaseURL = getEnv("AZURE_OPENAI_EMB_ENDPOINT", chat.BaseURL)
	emb.Model = getEnv("AZURE_OPENAI_EMB_MODEL", "text-embedding-3-small")
	emb.Deployment = getEnv("AZURE_OPENAI_EMB_DEPLOYMENT_NAME", emb.Model)
	emb.APIVersion = getEnv("AZURE_OPENAI_EMB_API_VERSION", "2024-02-01")
	emb.Dimensions = getEnvInt("EMBEDDING_DIMENSIONS", 1536)
	emb.MaxBatchSize = getEnvInt("EMBEDDING_MAX_BATCH_SIZE", 4)
	emb.Timeout = timeout

	img := &config.LLM.ImageGen
	img.APIKey = getEnv("AZURE_OPENAI_IMG_GEN_API_KEY", chat.APIKey)
	img.BaseURL = getEnv("AZURE_OPENAI_IMG_GEN_ENDPOINT", chat.BaseURL)
	img.Deployment = getEnv("AZURE_OPENAI_IMG_GEN_DEPLOYMENT_NAME", "dall-e-3")
	img.APIVersion = getEnv("AZURE_OPENAI_IMG_GEN_API_VERSION", "2024-02-01")
	img.Timeout = timeout
}

// IsProduction reports whether AI_AGENT_ENV selects production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProd
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvFloat gets a float environment variable or returns a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvList splits a comma separated variable
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Global instance of the configuration
var globalConfig *Config

func init() {
	globalConfig = LoadFromEnv()
}

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Reload reloads the configuration from environment variables
func Reload() *Config {
	globalConfig = LoadFromEnv()
	return globalConfig
}
