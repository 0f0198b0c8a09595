package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Queue     QueueConfig     `mapstructure:"queue"`
	RAGFlow   RAGFlowConfig   `mapstructure:"ragflow"`
	Fallback  FallbackConfig  `mapstructure:"fallback"`
	Answer    AnswerConfig    `mapstructure:"answer"`
	Output    OutputConfig    `mapstructure:"output"`
	Upload    UploadConfig    `mapstructure:"upload"`
	CORS      CORSConfig      `mapstructure:"cors"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	OSS       OSSConfig       `mapstructure:"oss"`
	S3        S3Config        `mapstructure:"s3"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=debug release test"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn error fatal"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=console json"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	SQLitePath   string `mapstructure:"sqlite_path"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

// StoreConfig 任务状态存储
type StoreConfig struct {
	Driver    string        `mapstructure:"driver" validate:"oneof=redis mysql sqlite"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	ResultTTL time.Duration `mapstructure:"result_ttl"`
}

type QueueConfig struct {
	Driver     string `mapstructure:"driver" validate:"oneof=redis amqp"`
	Name       string `mapstructure:"name" validate:"required"`
	AMQPURL    string `mapstructure:"amqp_url" validate:"required_if=Driver amqp"`
	MaxWorkers int    `mapstructure:"max_workers" validate:"min=1"`
}

type RAGFlowConfig struct {
	BaseURL        string        `mapstructure:"base_url" validate:"required"`
	APIKey         string        `mapstructure:"api_key"`
	Assistant      string        `mapstructure:"assistant"`
	SessionName    string        `mapstructure:"session_name"`
	QuestionHeader string        `mapstructure:"question_header"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type FallbackConfig struct {
	Model          string        `mapstructure:"model" validate:"required"`
	APIKey         string        `mapstructure:"api_key"`
	QuestionHeader string        `mapstructure:"question_header"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type AnswerConfig struct {
	NullSentinel string `mapstructure:"null_sentinel"`
}

type OutputConfig struct {
	Dir            string `mapstructure:"dir" validate:"required"`
	SheetName      string `mapstructure:"sheet_name" validate:"required,max=31"`
	DownloadName   string `mapstructure:"download_name" validate:"required"`
	QColumnWidth   int    `mapstructure:"q_column_width" validate:"min=1,max=255"`
	AColumnWidth   int    `mapstructure:"a_column_width" validate:"min=1,max=255"`
	RefColumnWidth int    `mapstructure:"ref_column_width" validate:"min=1,max=255"`
}

type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`           // 最大文件大小（字节）
	AllowedExtensions []string `mapstructure:"allowed_extensions"` // 允许的扩展名
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// JWTConfig secret 为空时不启用鉴权
type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

type RateLimitConfig struct {
	Limit  int           `mapstructure:"limit"`
	Window time.Duration `mapstructure:"window"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type S3Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// CleanupConfig 输出目录保留策略，schedule 为空时 worker 不启动定时清理
type CleanupConfig struct {
	Schedule      string `mapstructure:"schedule"`
	RetentionDays int    `mapstructure:"retention_days"`
}

// legacyEnv 兼容旧部署使用的环境变量名
var legacyEnv = map[string]string{
	"redis.url":                "REDIS_URL",
	"server.port":              "EXPOSED_PORT",
	"ragflow.base_url":         "RAGFLOW_BASE_URL",
	"ragflow.api_key":          "RAGFLOW_API_KEY",
	"ragflow.assistant":        "TENDER_KNOWLEDGE_BASE",
	"ragflow.question_header":  "TENDER_QUESTION_HEADER",
	"fallback.model":           "PUBLIC_LLM_MODEL",
	"fallback.api_key":         "GEMINI_API_KEY",
	"fallback.question_header": "PUBLIC_LLM_QUESTION_HEADER",
	"answer.null_sentinel":     "NULL_ANSWER",
	"output.dir":               "PROCESSED_FILE_DIR",
	"output.q_column_width":    "Q_COLUMN_WIDTH",
	"output.a_column_width":    "A_COLUMN_WIDTH",
	"output.ref_column_width":  "REF_COLUMN_WIDTH",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "release")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "tender")
	v.SetDefault("database.sqlite_path", "tender.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)

	v.SetDefault("store.driver", "redis")
	v.SetDefault("store.key_prefix", "tender:job:")
	v.SetDefault("store.result_ttl", 24*time.Hour)

	v.SetDefault("queue.driver", "redis")
	v.SetDefault("queue.name", "tender_jobs")
	v.SetDefault("queue.amqp_url", "")
	v.SetDefault("queue.max_workers", 2)

	v.SetDefault("ragflow.base_url", "http://localhost:9380")
	v.SetDefault("ragflow.api_key", "")
	v.SetDefault("ragflow.assistant", "")
	v.SetDefault("ragflow.session_name", "SeismaTenderSession")
	v.SetDefault("ragflow.question_header", "")
	v.SetDefault("ragflow.timeout", 120*time.Second)

	v.SetDefault("fallback.model", "gemini-2.0-flash")
	v.SetDefault("fallback.api_key", "")
	v.SetDefault("fallback.question_header", "")
	v.SetDefault("fallback.timeout", 60*time.Second)

	v.SetDefault("answer.null_sentinel", "")

	v.SetDefault("output.dir", "processed_files")
	v.SetDefault("output.sheet_name", "SeismaTender")
	v.SetDefault("output.download_name", "SeismaResponse.xlsx")
	v.SetDefault("output.q_column_width", 50)
	v.SetDefault("output.a_column_width", 80)
	v.SetDefault("output.ref_column_width", 40)

	v.SetDefault("upload.max_size", 20*1024*1024)
	v.SetDefault("upload.allowed_extensions", []string{".xlsx", ".xlsm"})

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Origin", "Content-Type", "Authorization"})

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expire_hours", 24*30)

	v.SetDefault("rate_limit.limit", 0)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("oss.endpoint", "")
	v.SetDefault("oss.access_key_id", "")
	v.SetDefault("oss.access_key_secret", "")
	v.SetDefault("oss.bucket_name", "")
	v.SetDefault("oss.cdn_domain", "")

	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.bucket", "")
	v.SetDefault("s3.use_ssl", false)

	v.SetDefault("cleanup.schedule", "")
	v.SetDefault("cleanup.retention_days", 7)
}

// Load 加载配置：.env -> config.yaml（或同目录 config.local.yaml）-> 环境变量
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	if configPath != "" {
		dir := filepath.Dir(configPath)
		localConfigPath := filepath.Join(dir, "config.local.yaml")
		if _, err := os.Stat(localConfigPath); err == nil {
			configPath = localConfigPath
		}
	}

	// 环境变量覆盖
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, err
		}
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
