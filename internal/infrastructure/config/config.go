package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Version     string `koanf:"version"`
	Environment string `koanf:"environment"`
	LogLevel    string `koanf:"log_level"`

	Server    ServerConfig    `koanf:"server"`
	Streaming StreamingConfig `koanf:"streaming"`
	Processor ProcessorConfig `koanf:"processor"`
	Detector  DetectorConfig  `koanf:"detector"`
	Alerting  AlertingConfig  `koanf:"alerting"`
}

type ServerConfig struct {
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

type StreamingConfig struct {
	UpdateInterval  time.Duration `koanf:"update_interval" validate:"gt=0"`
	MaxBufferSize   int           `koanf:"max_buffer_size" validate:"gt=0"`
	WebsocketPort   int           `koanf:"websocket_port" validate:"gt=0,lt=65536"`
	EnableWebsocket bool          `koanf:"enable_websocket"`
	EnableWebhook   bool          `koanf:"enable_webhook"`
	WebhookURL      string        `koanf:"webhook_url" validate:"omitempty,url"`
	WebhookSecret   string        `koanf:"webhook_secret"`
	WebhookRPS      float64       `koanf:"webhook_rps"`
	ExtraStreams    []string      `koanf:"extra_streams"`
}

type ProcessorConfig struct {
	WindowSize              int     `koanf:"window_size" validate:"gt=0"`
	QualityThreshold        float64 `koanf:"quality_threshold" validate:"gte=0,lte=1"`
	EnableQualityMonitoring bool    `koanf:"enable_quality_monitoring"`
	EnableFeatureExtraction bool    `koanf:"enable_feature_extraction"`
	BatchSize               int     `koanf:"batch_size" validate:"gt=0"`
	EnableCaching           bool    `koanf:"enable_caching"`
}

type DetectorConfig struct {
	ZScoreThreshold float64 `koanf:"zscore_threshold" validate:"gt=0"`
	Nu              float64 `koanf:"nu" validate:"gt=0,lt=1"`
	Gamma           float64 `koanf:"gamma" validate:"gt=0"`
	Eps             float64 `koanf:"eps" validate:"gt=0"`
	MinSamples      int     `koanf:"min_samples" validate:"gt=0"`
	Trees           int     `koanf:"trees" validate:"gt=0"`
	SampleSize      int     `koanf:"sample_size" validate:"gt=0"`
	ForestThreshold float64 `koanf:"forest_threshold" validate:"gt=0,lt=1"`
	Seed            int64   `koanf:"seed"`
	VotingMethod    string  `koanf:"voting_method" validate:"oneof=majority weighted"`
	WarmupSamples   int     `koanf:"warmup_samples" validate:"gt=0"`
}

type AlertingConfig struct {
	LowThreshold    float64       `koanf:"low_threshold"`
	MediumThreshold float64       `koanf:"medium_threshold"`
	HighThreshold   float64       `koanf:"high_threshold"`
	EscalationPoll  time.Duration `koanf:"escalation_poll" validate:"gt=0"`
}

func Load() (*Config, error) {
	return LoadFromFile("configs/config.yaml")
}

// LoadFromFile layers defaults, an optional YAML file, and PPA_-prefixed
// environment variables, then validates the result.
func LoadFromFile(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := &Config{
		Version:     "dev",
		Environment: "development",
		LogLevel:    "info",
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Streaming: StreamingConfig{
			UpdateInterval:  60 * time.Second,
			MaxBufferSize:   1000,
			WebsocketPort:   8766,
			EnableWebsocket: true,
			EnableWebhook:   false,
			WebhookRPS:      5,
		},
		Processor: ProcessorConfig{
			WindowSize:              100,
			QualityThreshold:        0.8,
			EnableQualityMonitoring: true,
			EnableFeatureExtraction: true,
			BatchSize:               10,
			EnableCaching:           true,
		},
		Detector: DetectorConfig{
			ZScoreThreshold: 3.0,
			Nu:              0.05,
			Gamma:           0.1,
			Eps:             0.5,
			MinSamples:      5,
			Trees:           100,
			SampleSize:      256,
			ForestThreshold: 0.6,
			VotingMethod:    "majority",
			WarmupSamples:   30,
		},
		Alerting: AlertingConfig{
			LowThreshold:    0.3,
			MediumThreshold: 0.6,
			HighThreshold:   0.8,
			EscalationPoll:  time.Minute,
		},
	}

	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	// Config file is optional.
	if path != "" {
		_ = k.Load(file.Provider(path), yaml.Parser())
	}

	// Double underscore separates sections so key names keep their
	// single underscores: PPA_STREAMING__MAX_BUFFER_SIZE.
	if err := k.Load(env.Provider("PPA_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(
			strings.TrimPrefix(s, "PPA_")), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate applies struct tag validation plus the cross-field rules the tags
// cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Streaming.EnableWebhook && c.Streaming.WebhookURL == "" {
		return fmt.Errorf("invalid configuration: webhook enabled without webhook_url")
	}
	a := c.Alerting
	if !(a.LowThreshold > 0 && a.LowThreshold < a.MediumThreshold &&
		a.MediumThreshold < a.HighThreshold && a.HighThreshold < 1) {
		return fmt.Errorf("invalid configuration: severity thresholds must be ordered within (0, 1)")
	}
	return nil
}
