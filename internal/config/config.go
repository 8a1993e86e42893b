package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server     ServerConfig
	Storage    StorageConfig
	Redis      RedisConfig
	Classifier ClassifierConfig
	Scraper    ScraperConfig
	DBAPI      DBAPIConfig
	Annotate   AnnotateConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type StorageConfig struct {
	UploadDir string
	OutputDir string
	AuditDir  string
	RulesPath string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
}

type ClassifierConfig struct {
	APIKeys      []string // one logical annotation worker per key
	BaseURL      string
	Model        string
	RateLimitRPM int
	MaxImages    int
}

type ScraperConfig struct {
	BaseURL string
}

type DBAPIConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	GrantType    string
}

type AnnotateConfig struct {
	MaxAttempts        int
	RetryBaseMS        int
	DuallyVerification bool
}

// Configured reports whether the partner DB client can authenticate.
func (c DBAPIConfig) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("CLASSIFIER_API_KEYS")
	readSecret("DB_API_CLIENT_SECRET")
	readSecret("REDIS_PASSWORD")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("storage.upload_dir", "UPLOAD_DIR")
	_ = viper.BindEnv("storage.output_dir", "OUTPUT_DIR")
	_ = viper.BindEnv("storage.audit_dir", "AUDIT_DIR")
	_ = viper.BindEnv("storage.rules_path", "RULES_PATH")
	_ = viper.BindEnv("redis.enabled", "REDIS_ENABLED")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("classifier.api_keys", "CLASSIFIER_API_KEYS")
	_ = viper.BindEnv("classifier.base_url", "CLASSIFIER_BASE_URL")
	_ = viper.BindEnv("classifier.model", "CLASSIFIER_MODEL")
	_ = viper.BindEnv("classifier.rate_limit_rpm", "CLASSIFIER_RATE_LIMIT_RPM")
	_ = viper.BindEnv("classifier.max_images", "CLASSIFIER_MAX_IMAGES")
	_ = viper.BindEnv("scraper.base_url", "SCRAPER_BASE_URL")
	_ = viper.BindEnv("dbapi.base_url", "DB_API_BASE_URL")
	_ = viper.BindEnv("dbapi.client_id", "DB_API_CLIENT_ID")
	_ = viper.BindEnv("dbapi.client_secret", "DB_API_CLIENT_SECRET")
	_ = viper.BindEnv("dbapi.grant_type", "DB_API_GRANT_TYPE")
	_ = viper.BindEnv("annotate.max_attempts", "ANNOTATE_MAX_ATTEMPTS")
	_ = viper.BindEnv("annotate.retry_base_ms", "ANNOTATE_RETRY_BASE_MS")
	_ = viper.BindEnv("annotate.dually_verification", "ANNOTATE_DUALLY_VERIFICATION")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("storage.upload_dir", "uploads")
	viper.SetDefault("storage.output_dir", "output")
	viper.SetDefault("storage.audit_dir", "audit_reports")
	viper.SetDefault("storage.rules_path", "rules.json")
	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("classifier.base_url", "https://generativelanguage.googleapis.com/v1beta/openai")
	viper.SetDefault("classifier.model", "gemini-2.5-flash")
	viper.SetDefault("classifier.rate_limit_rpm", 10)
	viper.SetDefault("classifier.max_images", 3)
	viper.SetDefault("scraper.base_url", "https://www.commercialtrucktrader.com")
	viper.SetDefault("dbapi.grant_type", "client_credentials")
	viper.SetDefault("annotate.max_attempts", 3)
	viper.SetDefault("annotate.retry_base_ms", 3000)
	viper.SetDefault("annotate.dually_verification", true)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Storage: StorageConfig{
			UploadDir: viper.GetString("storage.upload_dir"),
			OutputDir: viper.GetString("storage.output_dir"),
			AuditDir:  viper.GetString("storage.audit_dir"),
			RulesPath: viper.GetString("storage.rules_path"),
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("redis.enabled"),
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Classifier: ClassifierConfig{
			APIKeys:      splitKeys(viper.GetString("classifier.api_keys")),
			BaseURL:      viper.GetString("classifier.base_url"),
			Model:        viper.GetString("classifier.model"),
			RateLimitRPM: viper.GetInt("classifier.rate_limit_rpm"),
			MaxImages:    viper.GetInt("classifier.max_images"),
		},
		Scraper: ScraperConfig{
			BaseURL: viper.GetString("scraper.base_url"),
		},
		DBAPI: DBAPIConfig{
			BaseURL:      viper.GetString("dbapi.base_url"),
			ClientID:     viper.GetString("dbapi.client_id"),
			ClientSecret: viper.GetString("dbapi.client_secret"),
			GrantType:    viper.GetString("dbapi.grant_type"),
		},
		Annotate: AnnotateConfig{
			MaxAttempts:        viper.GetInt("annotate.max_attempts"),
			RetryBaseMS:        viper.GetInt("annotate.retry_base_ms"),
			DuallyVerification: viper.GetBool("annotate.dually_verification"),
		},
	}

	return cfg, nil
}

func splitKeys(raw string) []string {
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}
