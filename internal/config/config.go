package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Vision      VisionConfig      `yaml:"vision"`
	Dedup       DedupConfig       `yaml:"dedup"`
	Integration IntegrationConfig `yaml:"integration"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true" validate:"required"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"    validate:"min=1"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"5"     validate:"min=0"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// VisionConfig holds settings for the timing-board extraction gateway.
type VisionConfig struct {
	BaseURL string        `yaml:"base_url" env:"VISION_BASE_URL" env-default:"http://localhost:8090" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout"  env:"VISION_TIMEOUT"  env-default:"60s"                   validate:"min=1s"`
}

// DedupConfig tunes the advisory duplicate check.
type DedupConfig struct {
	TimeWindow      time.Duration `yaml:"time_window"       env:"DEDUP_TIME_WINDOW"       env-default:"15m" validate:"min=1m"`
	MinConfidence   int           `yaml:"min_confidence"    env:"DEDUP_MIN_CONFIDENCE"    env-default:"40"  validate:"min=0,max=100"`
	MaxEditDistance int           `yaml:"max_edit_distance" env:"DEDUP_MAX_EDIT_DISTANCE" env-default:"2"   validate:"min=0,max=5"`
}

// IntegrationConfig tunes how approved timings are merged into the graph.
type IntegrationConfig struct {
	DefaultJourneyDuration time.Duration `yaml:"default_journey_duration" env:"INTEGRATION_DEFAULT_JOURNEY_DURATION" env-default:"90m" validate:"min=1m"`
	Workers                int           `yaml:"workers"                  env:"INTEGRATION_WORKERS"                  env-default:"4"   validate:"min=1"`
}

// StorageConfig holds settings for contribution image storage.
type StorageConfig struct {
	UploadDir string `yaml:"upload_dir" env:"STORAGE_UPLOAD_DIR" env-default:"./uploads"  validate:"required"`
	BaseURL   string `yaml:"base_url"   env:"STORAGE_BASE_URL"   env-default:"/uploads"   validate:"required"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json" validate:"oneof=json text"`
}
