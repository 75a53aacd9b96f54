// Package config reads sigfmt settings from a toml file and the environment.
package config

import (
	"errors"
	"fmt"
	"sigfmt/internal/core/domain"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "SIGFMT"

	BackendImaging = "imaging"
	BackendMagick  = "magick"
)

type Storage struct {
	UploadDir string
	TempDir   string
	OutputDir string
}

type HTTP struct {
	Enabled        bool
	Listen         string
	AllowedOrigin  string
	MaxUploadBytes int64
}

type Telegram struct {
	Enabled  bool
	BotToken string
}

type Config struct {
	LogLevel       zerolog.Level
	CodecBackend   string
	HandlerTimeout time.Duration
	Envelope       domain.Envelope
	Retention      domain.RetentionPolicy
	Storage        Storage
	HTTP           HTTP
	Telegram       Telegram
}

func setDefaults(v *viper.Viper) {
	env := domain.DefaultEnvelopeSettings()
	retention := domain.DefaultRetentionPolicy()

	v.SetDefault("log.level", "info")
	v.SetDefault("codec.backend", BackendImaging)
	v.SetDefault("handler.timeout", "2m")

	v.SetDefault("envelope.width_cm", env.WidthCM)
	v.SetDefault("envelope.height_cm", env.HeightCM)
	v.SetDefault("envelope.pixels_per_cm", env.PixelsPerCM)
	v.SetDefault("envelope.min_bytes", env.MinBytes)
	v.SetDefault("envelope.max_bytes", env.MaxBytes)
	v.SetDefault("envelope.initial_quality", env.InitialQuality)
	v.SetDefault("envelope.quality_step", env.QualityStep)
	v.SetDefault("envelope.max_scale_factor", env.MaxScaleFactor)

	v.SetDefault("storage.upload_dir", "uploads")
	v.SetDefault("storage.temp_dir", "temp")
	v.SetDefault("storage.output_dir", "output")

	v.SetDefault("retention.grace_period", retention.GracePeriod.String())
	v.SetDefault("retention.sweep_interval", retention.SweepInterval.String())
	v.SetDefault("retention.max_age", retention.MaxAge.String())
	v.SetDefault("retention.max_retries", retention.MaxRetries)
	v.SetDefault("retention.retry_delay", retention.RetryDelay.String())

	v.SetDefault("http.enabled", true)
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.allowed_origin", "http://localhost:3000")
	v.SetDefault("http.max_upload_bytes", 10<<20)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.bot_token", "")
}

// Load reads path, or config.toml from the working directory when path is
// empty. A missing default file is not an error; every key has a default and
// can be overridden with SIGFMT_<SECTION>_<KEY>.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("could not read config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	env, err := domain.NewEnvelope(domain.EnvelopeSettings{
		WidthCM:        v.GetFloat64("envelope.width_cm"),
		HeightCM:       v.GetFloat64("envelope.height_cm"),
		PixelsPerCM:    v.GetFloat64("envelope.pixels_per_cm"),
		MinBytes:       v.GetInt64("envelope.min_bytes"),
		MaxBytes:       v.GetInt64("envelope.max_bytes"),
		InitialQuality: v.GetInt("envelope.initial_quality"),
		QualityStep:    v.GetInt("envelope.quality_step"),
		MaxScaleFactor: v.GetFloat64("envelope.max_scale_factor"),
	})
	if err != nil {
		return nil, err
	}

	retention := domain.RetentionPolicy{
		GracePeriod:   v.GetDuration("retention.grace_period"),
		SweepInterval: v.GetDuration("retention.sweep_interval"),
		MaxAge:        v.GetDuration("retention.max_age"),
		MaxRetries:    v.GetUint64("retention.max_retries"),
		RetryDelay:    v.GetDuration("retention.retry_delay"),
	}
	if err := retention.Validate(); err != nil {
		return nil, err
	}

	cfg := &Config{
		LogLevel:       parseLogLevel(v.GetString("log.level")),
		CodecBackend:   strings.ToLower(v.GetString("codec.backend")),
		HandlerTimeout: v.GetDuration("handler.timeout"),
		Envelope:       env,
		Retention:      retention,
		Storage: Storage{
			UploadDir: v.GetString("storage.upload_dir"),
			TempDir:   v.GetString("storage.temp_dir"),
			OutputDir: v.GetString("storage.output_dir"),
		},
		HTTP: HTTP{
			Enabled:        v.GetBool("http.enabled"),
			Listen:         v.GetString("http.listen"),
			AllowedOrigin:  v.GetString("http.allowed_origin"),
			MaxUploadBytes: v.GetInt64("http.max_upload_bytes"),
		},
		Telegram: Telegram{
			Enabled:  v.GetBool("telegram.enabled"),
			BotToken: v.GetString("telegram.bot_token"),
		},
	}

	switch {
	case cfg.CodecBackend != BackendImaging && cfg.CodecBackend != BackendMagick:
		return nil, fmt.Errorf("codec.backend: %q is invalid (valid values: %s, %s)",
			cfg.CodecBackend, BackendImaging, BackendMagick)
	case cfg.HandlerTimeout <= 0:
		return nil, errors.New("handler.timeout must be positive")
	case cfg.HTTP.MaxUploadBytes <= 0:
		return nil, errors.New("http.max_upload_bytes must be positive")
	case cfg.Telegram.Enabled && cfg.Telegram.BotToken == "":
		return nil, errors.New("telegram.bot_token is required when telegram is enabled")
	}

	return cfg, nil
}

func parseLogLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	default:
		return zerolog.InfoLevel
	}
}
