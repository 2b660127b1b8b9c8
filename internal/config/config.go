package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConf struct {
	Name           string   `mapstructure:"name"`
	Version        string   `mapstructure:"version"`
	Env            string   `mapstructure:"env"`
	Port           int      `mapstructure:"port"`
	ShutdownSecond int      `mapstructure:"shutdown_seconds"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type MongoConf struct {
	URI                 string `mapstructure:"uri"`
	Database            string `mapstructure:"database"`
	Collection          string `mapstructure:"collection"`
	ConnectRetrySeconds int    `mapstructure:"connect_retry_seconds"`
}

type StorageConf struct {
	Driver string `mapstructure:"driver"` // s3|minio|memory
}

type AWSConf struct {
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`
}

type S3Conf struct {
	PublicRead    bool   `mapstructure:"public_read"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	PresignTTL    int    `mapstructure:"presign_ttl_seconds"`
}

type MinioConf struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type BreakerConf struct {
	MaxFailures int `mapstructure:"max_failures"`
	OpenSeconds int `mapstructure:"open_seconds"`
}

type RedisConf struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	SignedTTL int    `mapstructure:"signed_url_cache_ttl_seconds"`
}

type JWTConf struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	Secret        string `mapstructure:"secret"`
}

type UploadConf struct {
	MaxBytes int64 `mapstructure:"max_bytes"`
}

type RateLimitConf struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type KafkaConf struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type ConsulConf struct {
	Addr           string `mapstructure:"addr"`
	ServiceName    string `mapstructure:"service_name"`
	ServiceAddress string `mapstructure:"service_address"`
}

type Config struct {
	App       AppConf       `mapstructure:"app"`
	Mongo     MongoConf     `mapstructure:"mongodb"`
	Storage   StorageConf   `mapstructure:"storage"`
	AWS       AWSConf       `mapstructure:"aws"`
	S3        S3Conf        `mapstructure:"s3"`
	Minio     MinioConf     `mapstructure:"minio"`
	Breaker   BreakerConf   `mapstructure:"breaker"`
	Redis     RedisConf     `mapstructure:"redis"`
	JWT       JWTConf       `mapstructure:"jwt"`
	Upload    UploadConf    `mapstructure:"upload"`
	RateLimit RateLimitConf `mapstructure:"ratelimit"`
	Kafka     KafkaConf     `mapstructure:"kafka"`
	Consul    ConsulConf    `mapstructure:"consul"`
	Log       struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`

	// derived
	ShutdownTimeout time.Duration
	PresignTTL      time.Duration
	SignedURLTTL    time.Duration
}

func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "media-service")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.shutdown_seconds", 15)
	v.SetDefault("app.allowed_origins", []string{"*"})
	v.SetDefault("mongodb.uri", "")
	v.SetDefault("mongodb.database", "media")
	v.SetDefault("mongodb.collection", "media")
	v.SetDefault("mongodb.connect_retry_seconds", 30)
	v.SetDefault("storage.driver", "s3")
	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.bucket", "")
	v.SetDefault("aws.endpoint", "")
	v.SetDefault("s3.public_read", false)
	v.SetDefault("s3.public_base_url", "")
	v.SetDefault("s3.presign_ttl_seconds", 600)
	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "")
	v.SetDefault("minio.region", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("breaker.max_failures", 5)
	v.SetDefault("breaker.open_seconds", 30)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.signed_url_cache_ttl_seconds", 0)
	v.SetDefault("jwt.public_key_path", "")
	v.SetDefault("jwt.secret", "")
	v.SetDefault("upload.max_bytes", 100*1024*1024)
	v.SetDefault("ratelimit.requests_per_minute", 0)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "media-events")
	v.SetDefault("consul.addr", "")
	v.SetDefault("consul.service_name", "media-service")
	v.SetDefault("consul.service_address", "")
	v.SetDefault("log.level", "")
}

// Load reads path (if present), a local .env file and MEDIA_* environment
// overrides, e.g. MEDIA_JWT_SECRET or MEDIA_MONGODB_URI.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("MEDIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.App.ShutdownSecond <= 0 {
		cfg.App.ShutdownSecond = 15
	}
	cfg.ShutdownTimeout = time.Duration(cfg.App.ShutdownSecond) * time.Second
	if cfg.S3.PresignTTL <= 0 {
		cfg.S3.PresignTTL = 600
	}
	cfg.PresignTTL = time.Duration(cfg.S3.PresignTTL) * time.Second
	if cfg.Redis.SignedTTL <= 0 {
		// cached URLs must expire before the URL itself does
		cfg.Redis.SignedTTL = cfg.S3.PresignTTL / 2
	}
	cfg.SignedURLTTL = time.Duration(cfg.Redis.SignedTTL) * time.Second

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" && c.JWT.PublicKeyPath == "" {
		return errors.New("config: jwt.secret or jwt.public_key_path is required")
	}
	switch c.Storage.Driver {
	case "s3":
		if c.AWS.Bucket == "" {
			return errors.New("config: aws.bucket is required for the s3 driver")
		}
	case "minio":
		if c.Minio.Endpoint == "" || c.Minio.Bucket == "" {
			return errors.New("config: minio.endpoint and minio.bucket are required for the minio driver")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown storage driver %q", c.Storage.Driver)
	}
	if c.Upload.MaxBytes <= 0 {
		return errors.New("config: upload.max_bytes must be positive")
	}
	return nil
}
