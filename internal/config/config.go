package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	DB          DBConfig          `mapstructure:"db"`
	Cron        CronConfig        `mapstructure:"cron"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Dexscreener DexscreenerConfig `mapstructure:"dexscreener"`
	Dune        DuneConfig        `mapstructure:"dune"`
	Enrichment  EnrichmentConfig  `mapstructure:"enrichment"`
	PaaS        PaaSConfig        `mapstructure:"paas"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr       string        `mapstructure:"http_addr"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	// Driver is one of postgres, mysql or sqlite.
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	MemoRefresh   string        `mapstructure:"memo_refresh"`
	RefreshPacing time.Duration `mapstructure:"refresh_pacing"`
}

type AuthConfig struct {
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	PasswordHash string        `mapstructure:"password_hash"`
	JWTSecret    string        `mapstructure:"jwt_secret"`
	TokenTTL     time.Duration `mapstructure:"token_ttl"`
	Disabled     bool          `mapstructure:"disabled"`
}

type CacheConfig struct {
	Backend       string `mapstructure:"backend"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
}

type DexscreenerConfig struct {
	BaseURL  string        `mapstructure:"base_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type DuneConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	QueryID      int           `mapstructure:"query_id"`
	Performance  string        `mapstructure:"performance"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	PageSize     int           `mapstructure:"page_size"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type EnrichmentConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Lookback     time.Duration `mapstructure:"lookback"`
	MinAmountUSD float64       `mapstructure:"min_amount_usd"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type PaaSConfig struct {
	APIBase string `mapstructure:"api_base"`
	APIKey  string `mapstructure:"api_key"`
	Agent   string `mapstructure:"agent"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MEMO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":3000")
	v.SetDefault("server.request_timeout", "60s")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.driver", "postgres")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.memo_refresh", "0 */15 * * * *")
	v.SetDefault("cron.refresh_pacing", "250ms")
	v.SetDefault("auth.username", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.password_hash", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "1h")
	v.SetDefault("auth.disabled", false)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("dexscreener.base_url", "https://api.dexscreener.com")
	v.SetDefault("dexscreener.timeout", "8s")
	v.SetDefault("dexscreener.cache_ttl", "30s")
	v.SetDefault("dune.base_url", "https://api.dune.com")
	v.SetDefault("dune.api_key", "")
	v.SetDefault("dune.query_id", 4139932)
	v.SetDefault("dune.performance", "medium")
	v.SetDefault("dune.poll_interval", "1s")
	v.SetDefault("dune.page_size", 1000)
	v.SetDefault("dune.timeout", "15s")

	// Enrichment policy keeps the original lookback and threshold.
	v.SetDefault("enrichment.enabled", true)
	v.SetDefault("enrichment.lookback", "24h")
	v.SetDefault("enrichment.min_amount_usd", 1000)
	v.SetDefault("enrichment.timeout", "30s")

	v.SetDefault("paas.api_base", "")
	v.SetDefault("paas.api_key", "")
	v.SetDefault("paas.agent", "meme-memos-service")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DB.DSN) == "" {
		return errors.New("db.dsn is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.DB.Driver)) {
	case "postgres", "mysql", "sqlite":
	default:
		return errors.New("db.driver must be one of postgres, mysql, sqlite")
	}
	if c.Auth.Disabled {
		return nil
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 bytes")
	}
	if strings.TrimSpace(c.Auth.Username) == "" {
		return errors.New("auth.username is required")
	}
	if c.Auth.Password == "" && c.Auth.PasswordHash == "" {
		return errors.New("auth.password or auth.password_hash is required")
	}
	return nil
}
