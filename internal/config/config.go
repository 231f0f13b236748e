package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Auth      AuthConfig
	Responder ResponderConfig
	Countries CountriesConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	Driver     string
	SQLitePath string `mapstructure:"sqlite_path"`
	Redis      RedisConfig
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

type AuthConfig struct {
	JWTSecret    string        `mapstructure:"jwt_secret"`
	Issuer       string        `mapstructure:"issuer"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	OTPDelay     time.Duration `mapstructure:"otp_delay"`
	VerifyDelay  time.Duration `mapstructure:"verify_delay"`
	ChallengeTTL time.Duration `mapstructure:"challenge_ttl"`
	OTPRPS       float64       `mapstructure:"otp_rps"`
	OTPBurst     int           `mapstructure:"otp_burst"`
}

type ResponderConfig struct {
	Backend  string
	BaseURL  string        `mapstructure:"base_url"`
	Token    string        `mapstructure:"token"`
	Model    string        `mapstructure:"model"`
	Timeout  time.Duration `mapstructure:"timeout"`
	MinThink time.Duration `mapstructure:"min_think"`
	MaxThink time.Duration `mapstructure:"max_think"`
}

type CountriesConfig struct {
	Enabled  bool
	URL      string        `mapstructure:"url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type LogConfig struct {
	Level string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8100)
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "aether-chat.db")
	v.SetDefault("storage.redis.address", "localhost:6379")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.prefix", "aether")
	v.SetDefault("auth.issuer", "aether-chat")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("auth.otp_delay", 1500*time.Millisecond)
	v.SetDefault("auth.verify_delay", 2*time.Second)
	v.SetDefault("auth.challenge_ttl", 10*time.Minute)
	v.SetDefault("auth.otp_rps", 0.2)
	v.SetDefault("auth.otp_burst", 3)
	v.SetDefault("responder.backend", "canned")
	v.SetDefault("responder.base_url", "http://localhost:11434/v1/")
	v.SetDefault("responder.model", "llama3.1:8b")
	v.SetDefault("responder.timeout", 30*time.Second)
	v.SetDefault("responder.min_think", 2*time.Second)
	v.SetDefault("responder.max_think", 4*time.Second)
	v.SetDefault("countries.enabled", true)
	v.SetDefault("countries.url", "https://restcountries.com/v3.1/all?fields=name,cca2,idd")
	v.SetDefault("countries.timeout", 10*time.Second)
	v.SetDefault("countries.cache_ttl", 24*time.Hour)
	v.SetDefault("log.level", "info")
}

func bindEnv(v *viper.Viper) {
	v.BindEnv("server.port", "PORT")
	v.BindEnv("storage.driver", "AETHER_STORAGE_DRIVER")
	v.BindEnv("storage.sqlite_path", "AETHER_DB_PATH")
	v.BindEnv("storage.redis.address", "REDIS_ADDR")
	v.BindEnv("storage.redis.password", "REDIS_PASSWORD")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("responder.backend", "AETHER_RESPONDER")
	v.BindEnv("responder.token", "OPENAI_API_KEY")
	v.BindEnv("responder.base_url", "OPENAI_BASE_URL")
	v.BindEnv("log.level", "LOG_LEVEL")
}

// Load reads config.yaml (optional), a .env file (optional) and the
// environment, in increasing order of precedence.
func Load(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	bindEnv(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret (JWT_SECRET) must be set")
	}
	switch c.Storage.Driver {
	case "sqlite", "redis", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Responder.Backend {
	case "canned", "openai":
	default:
		return fmt.Errorf("unknown responder backend %q", c.Responder.Backend)
	}
	if c.Responder.MaxThink < c.Responder.MinThink {
		return fmt.Errorf("responder.max_think must not be below responder.min_think")
	}
	return nil
}
