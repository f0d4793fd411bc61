package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	StoreModePostgres = "postgres"
	StoreModeLocal    = "local"
)

type Config struct {
	Server struct {
		Port               int      `mapstructure:"port"`
		CorsAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
		CorsAllowedMethods []string `mapstructure:"cors_allowed_methods"`
		CorsAllowedHeaders []string `mapstructure:"cors_allowed_headers"`
		ShutdownTimeout    int      `mapstructure:"shutdown_timeout_seconds"`
		StoreName          string   `mapstructure:"store_name"`
	} `mapstructure:"server"`

	Database struct {
		Host     string `mapstructure:"host"`
		Port     int    `mapstructure:"port"`
		User     string `mapstructure:"user"`
		Password string `mapstructure:"password"`
		Name     string `mapstructure:"name"`
		MaxConns int32  `mapstructure:"max_conns"`
	} `mapstructure:"database"`

	Redis struct {
		Enabled  bool   `mapstructure:"enabled"`
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	// Store selects the persistence adapter. "local" is the offline,
	// single-writer store; it does not roll back partially applied sales.
	Store struct {
		Mode      string `mapstructure:"mode"`
		Fallback  bool   `mapstructure:"fallback"`
		LocalPath string `mapstructure:"local_path"`
	} `mapstructure:"store"`

	Sales struct {
		MaxAttempts      int    `mapstructure:"max_attempts"`
		RetryBackoffMs   int    `mapstructure:"retry_backoff_ms"`
		CustomItemPrefix string `mapstructure:"custom_item_prefix"`
		InvoicePrefix    string `mapstructure:"invoice_prefix"`
		DefaultBranch    string `mapstructure:"default_branch"`
	} `mapstructure:"sales"`

	Currency struct {
		Base  string             `mapstructure:"base"`
		Rates map[string]float64 `mapstructure:"rates"`
	} `mapstructure:"currency"`

	Backup struct {
		Endpoint  string `mapstructure:"endpoint"`
		Region    string `mapstructure:"region"`
		Bucket    string `mapstructure:"bucket"`
		AccessKey string `mapstructure:"access_key"`
		SecretKey string `mapstructure:"secret_key"`
	} `mapstructure:"backup"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`

	Timezone string `mapstructure:"timezone"`
}

// Load reads configs/config.yaml (optional), .env and the environment.
func Load() *Config {
	// Load .env file if exists (ignore error in production)
	godotenv.Load()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile("configs/config.yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		log.Info("[Config] No config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		log.WithError(err).Fatal("config unmarshal error")
	}

	applyEnvOverrides(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.cors_allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("server.cors_allowed_headers", []string{"Content-Type", "Authorization"})
	v.SetDefault("server.shutdown_timeout_seconds", 15)
	v.SetDefault("server.store_name", "POS")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "pos_db")
	v.SetDefault("database.max_conns", 10)

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("store.mode", StoreModePostgres)
	v.SetDefault("store.fallback", true)
	v.SetDefault("store.local_path", "data/pos-local.json")

	v.SetDefault("sales.max_attempts", 3)
	v.SetDefault("sales.retry_backoff_ms", 50)
	v.SetDefault("sales.custom_item_prefix", "custom-")
	v.SetDefault("sales.invoice_prefix", "S")
	v.SetDefault("sales.default_branch", "main")

	v.SetDefault("currency.base", "USD")
	v.SetDefault("currency.rates", map[string]float64{
		"USD": 1,
		"EUR": 0.92,
		"IQD": 1310,
	})

	v.SetDefault("backup.region", "auto")
	v.SetDefault("backup.bucket", "pos-exports")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("timezone", "Asia/Baghdad")
}

func applyEnvOverrides(cfg *Config) {
	// Override database settings from DB_* environment variables
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Database.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			cfg.Database.Port = n
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.Database.User = user
	}
	if pass := os.Getenv("DB_PASSWORD"); pass != "" {
		cfg.Database.Password = pass
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Database.Name = name
	}

	// K8s sets REDIS_SERVICE_HOST and REDIS_SERVICE_PORT for services
	if host := os.Getenv("REDIS_SERVICE_HOST"); host != "" {
		port := os.Getenv("REDIS_SERVICE_PORT")
		if port == "" {
			port = "6379"
		}
		cfg.Redis.Addr = host + ":" + port
	}
	if pass := os.Getenv("REDIS_PASSWORD"); pass != "" {
		cfg.Redis.Password = pass
	}

	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		cfg.Backup.Endpoint = endpoint
	}
	if key := os.Getenv("S3_ACCESS_KEY"); key != "" {
		cfg.Backup.AccessKey = key
	}
	if secret := os.Getenv("S3_SECRET_KEY"); secret != "" {
		cfg.Backup.SecretKey = secret
	}
	if bucket := os.Getenv("S3_BUCKET"); bucket != "" {
		cfg.Backup.Bucket = bucket
	}

	if cfg.Sales.MaxAttempts < 1 {
		cfg.Sales.MaxAttempts = 1
	}
	if cfg.Sales.DefaultBranch == "" {
		cfg.Sales.DefaultBranch = "main"
	}
}

// RetryBackoff is the base delay between sale attempts.
func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.Sales.RetryBackoffMs) * time.Millisecond
}

// DSN builds the postgres connection string.
func (c *Config) DSN() string {
	return "postgres://" + c.Database.User + ":" + c.Database.Password + "@" +
		c.Database.Host + ":" + strconv.Itoa(c.Database.Port) + "/" + c.Database.Name
}
