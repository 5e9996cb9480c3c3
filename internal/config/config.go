// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Index         IndexConfig         `mapstructure:"index"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// RedisConfig 存储 Redis 的配置。Addr 为空时禁用答案缓存。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时禁用用量事件上报。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig 存储 MinIO 对象存储的配置，用于启动时拉取索引快照。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	VectorsObject   string `mapstructure:"vectors_object"`
	MetaObject      string `mapstructure:"meta_object"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
// Addresses 为空时禁用 BM25 关键词召回。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// IndexConfig 存储本地向量索引快照的路径。
type IndexConfig struct {
	VectorsPath string `mapstructure:"vectors_path"`
	MetaPath    string `mapstructure:"meta_path"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// PipelineConfig 配置查询管线的检索与融合参数。
type PipelineConfig struct {
	KPerQuery       int     `mapstructure:"k_per_query"`
	TopKFinal       int     `mapstructure:"top_k_final"`
	EnableReform    bool    `mapstructure:"enable_reform"`
	UseHyde         bool    `mapstructure:"use_hyde"`
	NRewrites       int     `mapstructure:"n_rewrites"`
	RRFK            float64 `mapstructure:"rrf_k"`
	MaxContextChars int     `mapstructure:"max_context_chars"`
	OutputLanguage  string  `mapstructure:"output_language"`
	CacheTTLMinutes int     `mapstructure:"cache_ttl_minutes"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	ApplyDefaults(&Conf)
}

// ApplyDefaults 为未配置的管线参数填充默认值，与离线索引构建侧保持一致。
func ApplyDefaults(c *Config) {
	if c.Pipeline.KPerQuery <= 0 {
		c.Pipeline.KPerQuery = 6
	}
	if c.Pipeline.TopKFinal <= 0 {
		c.Pipeline.TopKFinal = 6
	}
	if c.Pipeline.NRewrites <= 0 {
		c.Pipeline.NRewrites = 6
	}
	if c.Pipeline.RRFK <= 0 {
		c.Pipeline.RRFK = 60
	}
	if c.Pipeline.MaxContextChars <= 0 {
		c.Pipeline.MaxContextChars = 12000
	}
	if c.Pipeline.CacheTTLMinutes <= 0 {
		c.Pipeline.CacheTTLMinutes = 60
	}
	if c.Index.VectorsPath == "" {
		c.Index.VectorsPath = "data/index/vectors.bin"
	}
	if c.Index.MetaPath == "" {
		c.Index.MetaPath = "data/index/meta.jsonl"
	}
}
