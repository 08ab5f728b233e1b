package config

import "time"

// Environment names recognised by the pipeline. Only EnvProduction changes
// behaviour: unsigned webhook calls are rejected there.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Queue providers.
const (
	QueueProviderQStash = "qstash"
	QueueProviderLocal  = "local"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm" validate:"required"`
	Queue    QueueConfig    `mapstructure:"queue" validate:"required"`
	Pipeline PipelineConfig `mapstructure:"pipeline" validate:"required"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Events   EventsConfig   `mapstructure:"events"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel        string        `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	Environment     string        `mapstructure:"environment" validate:"required,oneof=development staging production"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

// IsProduction reports whether the server runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == EnvProduction
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"required,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gt=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// LLMConfig contains all LLM integration related settings.
type LLMConfig struct {
	GeminiAPIKey       string `mapstructure:"gemini_api_key" validate:"required"`
	ModelName          string `mapstructure:"model_name" validate:"required"`
	PromptTemplatePath string `mapstructure:"prompt_template_path"`
	MaxRetries         int    `mapstructure:"max_retries" validate:"gte=0,lte=5"`
	RetryDelaySeconds  int    `mapstructure:"retry_delay_seconds" validate:"gte=0,lte=60"`
}

// QueueConfig configures job delivery and webhook verification.
type QueueConfig struct {
	Provider          string `mapstructure:"provider" validate:"required,oneof=qstash local"`
	BaseURL           string `mapstructure:"base_url" validate:"required,url"`
	Token             string `mapstructure:"token" validate:"required_if=Provider qstash"`
	CurrentSigningKey string `mapstructure:"current_signing_key"`
	NextSigningKey    string `mapstructure:"next_signing_key"`
	// PublicBaseURL is the externally reachable origin of this service, used
	// to build callback URLs for dispatched jobs and scanner relays.
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required,url"`
	Retries       int    `mapstructure:"retries" validate:"gte=0,lte=10"`
	// LocalWorkers is the delivery concurrency of the in-process queue.
	LocalWorkers   int `mapstructure:"local_workers" validate:"gt=0"`
	LocalQueueSize int `mapstructure:"local_queue_size" validate:"gt=0"`
}

// PipelineConfig holds scanner and worker tuning.
type PipelineConfig struct {
	PageSize            int           `mapstructure:"page_size" validate:"gt=0,lte=5000"`
	RelayDelay          time.Duration `mapstructure:"relay_delay" validate:"gte=0"`
	GenerationTimeout   time.Duration `mapstructure:"generation_timeout" validate:"gt=0"`
	QuestionsPerJob     int           `mapstructure:"questions_per_job" validate:"gt=0,lte=100"`
	DispatchConcurrency int           `mapstructure:"dispatch_concurrency" validate:"gt=0,lte=256"`
}

// StorageConfig configures the document source used in document mode.
// An empty bucket disables document mode.
type StorageConfig struct {
	DocumentBucket  string `mapstructure:"document_bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
	Endpoint        string `mapstructure:"endpoint"`
}

// EventsConfig configures optional Redis fan-out of pipeline events.
type EventsConfig struct {
	RedisAddr    string `mapstructure:"redis_addr"`
	RedisChannel string `mapstructure:"redis_channel"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	ServiceName  string  `mapstructure:"service_name"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	Insecure     bool    `mapstructure:"insecure"`
	SampleRatio  float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}
