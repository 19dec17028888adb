// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Session     SessionConfig     `mapstructure:"session"`
	AnswerCache AnswerCacheConfig `mapstructure:"answer_cache"`
	Assembly    AssemblyConfig    `mapstructure:"assembly"`
	Interview   InterviewConfig   `mapstructure:"interview"`
	Server      ServerConfig      `mapstructure:"server"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// EngineConfig points at the document-assembly engine's REST endpoint.
type EngineConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	SubscriberID string `mapstructure:"subscriber_id"`
	SigningKey   string `mapstructure:"signing_key"`
	BillingRef   string `mapstructure:"billing_ref"`
	Timeout      int    `mapstructure:"timeout"` // milliseconds
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SessionConfig controls how work sessions are persisted between requests.
type SessionConfig struct {
	TTL       int    `mapstructure:"ttl"` // seconds
	KeyPrefix string `mapstructure:"key_prefix"`
}

// AnswerCacheConfig controls the on-disk answer file cache.
type AnswerCacheConfig struct {
	Dir string `mapstructure:"dir"`
	TTL int    `mapstructure:"ttl"` // seconds
}

// AssemblyConfig holds the host's default assembly settings. Settings are
// passed to the engine verbatim; viper lower-cases their keys.
type AssemblyConfig struct {
	RetainTransientAnswers bool              `mapstructure:"retain_transient_answers"`
	Settings               map[string]string `mapstructure:"settings"`
}

// InterviewConfig holds the host's default interview settings. The URLs are
// where the rendered interview posts answers and fetches its runtime files.
type InterviewConfig struct {
	Format             string `mapstructure:"format"`
	PostInterviewURL   string `mapstructure:"post_interview_url"`
	InterviewFilesURL  string `mapstructure:"interview_files_url"`
	DocumentPreviewURL string `mapstructure:"document_preview_url"`
	SaveAnswersURL     string `mapstructure:"save_answers_url"`
	Theme              string `mapstructure:"theme"`
	Locale             string `mapstructure:"locale"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
