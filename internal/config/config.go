package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Player   PlayerConfig   `mapstructure:"player"`
	Source   SourceConfig   `mapstructure:"source"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Registry RegistryConfig `mapstructure:"registry"`
}

type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	HTTPPort        int           `mapstructure:"http_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	DebugEndpoints  bool          `mapstructure:"debug_endpoints"`

	// HTTP/3 status server, started only when enabled
	EnableHTTP3    bool          `mapstructure:"enable_http3"`
	HTTP3Port      int           `mapstructure:"http3_port"`
	TLSCertFile    string        `mapstructure:"tls_cert_file"`
	TLSKeyFile     string        `mapstructure:"tls_key_file"`
	MaxIdleTimeout time.Duration `mapstructure:"max_idle_timeout"`
}

type RedisConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

type PlayerConfig struct {
	FFmpegThreads    int   `mapstructure:"ffmpeg_threads"`     // codec-internal threads per decoder
	WorkerThreads    bool  `mapstructure:"worker_threads"`     // one decode goroutine per connector
	DecoderPoolLimit int   `mapstructure:"decoder_pool_limit"` // per codec family
	Realtime         bool  `mapstructure:"realtime"`           // pace frames at the stream rate
	MaxFrames        int64 `mapstructure:"max_frames"`         // 0 = until end of source
}

type SourceConfig struct {
	Streams []StreamSourceConfig `mapstructure:"streams"`
	// Blank adds a placeholder picture stream finalised from the first real picture stream.
	Blank bool `mapstructure:"blank"`
}

type StreamSourceConfig struct {
	Path      string `mapstructure:"path"`
	Format    string `mapstructure:"format"`
	Width     int    `mapstructure:"width"`
	Height    int    `mapstructure:"height"`
	FrameRate string `mapstructure:"frame_rate"` // e.g. "25/1"
	Aspect    string `mapstructure:"aspect"`     // e.g. "16/9"
	// Framing is "fixed" (constant frame size) or "length_prefixed".
	Framing   string `mapstructure:"framing"`
	FrameSize int    `mapstructure:"frame_size"` // fixed framing only; 0 derives from format
}

type SinkConfig struct {
	Type   string   `mapstructure:"type"` // raw or memory
	Dir    string   `mapstructure:"dir"`
	Accept []string `mapstructure:"accept"`
	// MaxStreams bounds the number of registered sink streams; 0 means unlimited.
	MaxStreams int `mapstructure:"max_streams"`
}

type RegistryConfig struct {
	TTL               time.Duration `mapstructure:"ttl"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyPrefix         string        `mapstructure:"key_prefix"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(configPath)

	// Environment variable override
	v.SetEnvPrefix("INGEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.enabled", true)
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.debug_endpoints", false)
	v.SetDefault("server.enable_http3", false)
	v.SetDefault("server.http3_port", 8443)
	v.SetDefault("server.max_idle_timeout", "30s")

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Player defaults
	v.SetDefault("player.ffmpeg_threads", 0)
	v.SetDefault("player.worker_threads", true)
	v.SetDefault("player.decoder_pool_limit", 32)
	v.SetDefault("player.realtime", false)
	v.SetDefault("player.max_frames", 0)

	// Source defaults
	v.SetDefault("source.blank", false)

	// Sink defaults
	v.SetDefault("sink.type", "raw")
	v.SetDefault("sink.dir", "./out")
	v.SetDefault("sink.accept", []string{"UYVY", "YUV422", "YUV420", "YUV411", "YUV422_10BIT", "YUV420_10BIT", "PCM"})
	v.SetDefault("sink.max_streams", 0)

	// Registry defaults
	v.SetDefault("registry.ttl", "5m")
	v.SetDefault("registry.heartbeat_interval", "10s")
	v.SetDefault("registry.key_prefix", "ingex:sessions:")
}
