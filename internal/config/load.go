package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load,
// e.g. TOPICGEN_SERVER_PORT overrides server.port.
const EnvPrefix = "TOPICGEN"

// Load configuration from environment variables and optionally a config.yaml
// file in the working directory. Environment variables take precedence over
// values from the config file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate runs struct-tag validation plus the cross-field rules that tags
// cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Server.IsProduction() && cfg.Queue.CurrentSigningKey == "" {
		return errors.New("config validation failed: queue.current_signing_key is required in production")
	}

	if cfg.Server.IsProduction() && cfg.Queue.Provider == QueueProviderLocal {
		return errors.New("config validation failed: local queue provider is not allowed in production")
	}

	return nil
}

// setDefaults registers a default for every key so that AutomaticEnv can
// resolve it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.prompt_template_path", "")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay_seconds", 2)

	v.SetDefault("queue.provider", QueueProviderQStash)
	v.SetDefault("queue.base_url", "https://qstash.upstash.io")
	v.SetDefault("queue.token", "")
	v.SetDefault("queue.current_signing_key", "")
	v.SetDefault("queue.next_signing_key", "")
	v.SetDefault("queue.public_base_url", "")
	v.SetDefault("queue.retries", 3)
	v.SetDefault("queue.local_workers", 4)
	v.SetDefault("queue.local_queue_size", 2048)

	v.SetDefault("pipeline.page_size", 1000)
	v.SetDefault("pipeline.relay_delay", 2*time.Second)
	v.SetDefault("pipeline.generation_timeout", 45*time.Second)
	v.SetDefault("pipeline.questions_per_job", 10)
	v.SetDefault("pipeline.dispatch_concurrency", 16)

	v.SetDefault("storage.document_bucket", "")
	v.SetDefault("storage.credentials_file", "")
	v.SetDefault("storage.endpoint", "")

	v.SetDefault("events.redis_addr", "")
	v.SetDefault("events.redis_channel", "topicgen.events")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "topicgen")
	v.SetDefault("tracing.otlp_endpoint", "")
	v.SetDefault("tracing.insecure", false)
	v.SetDefault("tracing.sample_ratio", 0.1)
}
