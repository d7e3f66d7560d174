package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Elastic   ElasticConfig
	Vector    VectorConfig
	AI        AIConfig
	Agent     AgentConfig
	Telemetry TelemetryConfig
	Metrics   MetricsConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
	LogLevel    string
	LogPretty   bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled       bool
	Host          string
	Port          int
	Password      string
	DB            int
	TranscriptTTL int
}

// ElasticConfig Elasticsearch配置
type ElasticConfig struct {
	Host        string
	Username    string
	Password    string
	IndexPrefix string
}

// VectorConfig 向量检索配置
type VectorConfig struct {
	Backend      string // es8 | pgvector
	TopK         int
	DSN          string
	ChunkSize    int
	ChunkOverlap int
}

// AIConfig AI配置
type AIConfig struct {
	Provider  string
	OpenAI    OpenAIConfig
	DeepSeek  DeepSeekConfig
	Embedding EmbeddingConfig
}

// OpenAIConfig OpenAI配置
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// DeepSeekConfig DeepSeek配置
type DeepSeekConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// EmbeddingConfig Embedding配置
type EmbeddingConfig struct {
	Provider   string
	Model      string
	APIKey     string
	Timeout    int
	Dimensions int
}

// AgentConfig 智能体编排配置
type AgentConfig struct {
	DefaultAgentID    int64
	GenerationTimeout int
}

// TelemetryConfig OpenTelemetry 配置
type TelemetryConfig struct {
	Endpoint    string
	Insecure    bool
	ServiceName string
}

// MetricsConfig Prometheus 配置
type MetricsConfig struct {
	Enabled bool
	Path    string
}

const (
	envPrefix = "SEEK_PORTAL"

	VectorBackendES8      = "es8"
	VectorBackendPGVector = "pgvector"
)

// Load 加载配置
func Load(path string) (*Config, error) {
	// .env 可选
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Vector.Backend {
	case VectorBackendES8, VectorBackendPGVector:
	default:
		return fmt.Errorf("unsupported vector backend: %q", c.Vector.Backend)
	}
	if c.Vector.TopK <= 0 {
		return fmt.Errorf("vector.topK must be positive, got %d", c.Vector.TopK)
	}
	if c.Agent.GenerationTimeout <= 0 {
		return fmt.Errorf("agent.generationTimeout must be positive, got %d", c.Agent.GenerationTimeout)
	}
	return nil
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetURL 获取 pgx 使用的连接串
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetTranscriptTTL 对话缓存过期时间
func (c *RedisConfig) GetTranscriptTTL() time.Duration {
	return time.Duration(c.TranscriptTTL) * time.Second
}

// GetDSN pgvector 连接串，未配置时复用主库
func (c *VectorConfig) GetDSN(db *DatabaseConfig) string {
	if c.DSN != "" {
		return c.DSN
	}
	return db.GetURL()
}

// GetGenerationTimeout 单次生成的总超时
func (c *AgentConfig) GetGenerationTimeout() time.Duration {
	return time.Duration(c.GenerationTimeout) * time.Second
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "seek-portal")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.logPretty", false)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.readTimeout", 30)
	// SSE 流需要比生成超时更长的写超时
	v.SetDefault("server.writeTimeout", 90)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "seek_portal")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.transcriptTTL", 86400)

	// Elastic
	v.SetDefault("elastic.host", "http://localhost:9200")
	v.SetDefault("elastic.indexPrefix", "seek_portal")

	// Vector
	v.SetDefault("vector.backend", VectorBackendPGVector)
	v.SetDefault("vector.topK", 6)
	v.SetDefault("vector.chunkSize", 1000)
	v.SetDefault("vector.chunkOverlap", 100)

	// AI
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.deepseek.baseUrl", "https://api.deepseek.com/v1")
	v.SetDefault("ai.deepseek.model", "deepseek-chat")
	v.SetDefault("ai.embedding.provider", "dashscope")
	v.SetDefault("ai.embedding.model", "text-embedding-v3")
	v.SetDefault("ai.embedding.dimensions", 1536)

	// Agent
	v.SetDefault("agent.defaultAgentID", 8)
	v.SetDefault("agent.generationTimeout", 60)

	// Telemetry
	v.SetDefault("telemetry.serviceName", "seek-portal")

	// Metrics
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}
