// Package config loads sptnr-core's configuration from a YAML file, overridden
// by environment variables, per spec.md §6.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Library holds the Subsonic-compatible music server endpoint.
type Library struct {
	BaseURL string `mapstructure:"base_url"`
	Token   string `mapstructure:"token"`
}

// PopularityAPI is the OAuth2-client-credentials popularity/search service.
type PopularityAPI struct {
	Enabled      bool   `mapstructure:"enabled"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
}

// ScrobblesAPI is the query-string-keyed scrobble/playcount service.
type ScrobblesAPI struct {
	APIKey string `mapstructure:"api_key"`
}

// MetadataAAPI is the release-group metadata service (requires a UA per ToS).
type MetadataAAPI struct {
	UserAgent string `mapstructure:"user_agent"`
}

// MetadataBAPI is the release-format/video metadata service.
type MetadataBAPI struct {
	Token string `mapstructure:"token"`
}

// API groups the four external-client configurations.
type API struct {
	Popularity PopularityAPI `mapstructure:"popularity"`
	Scrobbles  ScrobblesAPI  `mapstructure:"scrobbles"`
	MetadataA  MetadataAAPI  `mapstructure:"metadata_a"`
	MetadataB  MetadataBAPI  `mapstructure:"metadata_b"`
}

// Weights are the popularity-score blend weights of spec.md §4.6. They are
// renormalized on load if they don't sum to 1.
type Weights struct {
	Spotify   float64 `mapstructure:"spotify"`
	Scrobbles float64 `mapstructure:"scrobbles"`
	Age       float64 `mapstructure:"age"`
	// AgeDecay selects the age-decay function A: "linear" or "exponential".
	// Resolves spec.md §9 Open Question #1; default "exponential".
	AgeDecay string `mapstructure:"age_decay"`
	// AgeHalfLifeYears is used only when AgeDecay == "exponential".
	AgeHalfLifeYears float64 `mapstructure:"age_half_life_years"`
}

// Features are the boolean/int toggles of spec.md §6.
type Features struct {
	Force           bool `mapstructure:"force"`
	Perpetual       bool `mapstructure:"perpetual"`
	Verbose         bool `mapstructure:"verbose"`
	Batchrate       bool `mapstructure:"batchrate"`
	AlbumSkipDays   int  `mapstructure:"album_skip_days"`
	// VideoOnlyMedium resolves spec.md §9 Open Question #2: whether a
	// video-only Metadata-B match is sufficient by itself for medium
	// confidence. Default false (require a secondary source).
	VideoOnlyMedium bool `mapstructure:"video_only_medium"`
}

// Concurrency caps per spec.md §5, default {4, 1, 2, 2}.
type Concurrency struct {
	Popularity int `mapstructure:"popularity"`
	Scrobbles  int `mapstructure:"scrobbles"`
	MetadataA  int `mapstructure:"metadata_a"`
	MetadataB  int `mapstructure:"metadata_b"`
}

// Quotas are the RateLimiter thresholds of spec.md §4.1.
type Quotas struct {
	PopularityWindowLimit int `mapstructure:"popularity_window_limit"`
	PopularityDailyLimit  int `mapstructure:"popularity_daily_limit"`
	ScrobblesMinSpacingMs int `mapstructure:"scrobbles_min_spacing_ms"`
	ScrobblesDailyLimit   int `mapstructure:"scrobbles_daily_limit"`
}

// Config is the fully resolved configuration.
type Config struct {
	Library Library `mapstructure:"library"`
	API     API     `mapstructure:"api"`
	Weights Weights `mapstructure:"weights"`

	Features    Features    `mapstructure:"features"`
	Concurrency Concurrency `mapstructure:"concurrency"`
	Quotas      Quotas      `mapstructure:"quotas"`

	APICallTimeoutSeconds int `mapstructure:"api_call_timeout_seconds"`

	LogLevel string `mapstructure:"log_level"`

	// PlaylistDir is where the playlist package writes .nsp files (spec.md §6).
	// Defaults to "<MusicFolder>/playlists" when unset.
	PlaylistDir string `mapstructure:"playlist_dir"`

	ConfigPath  string `mapstructure:"-"`
	DBPath      string `mapstructure:"-"`
	LogPath     string `mapstructure:"-"`
	MusicFolder string `mapstructure:"-"`
}

// Load reads the YAML config file (location from $CONFIG_PATH, default
// ./config.yaml) and applies the environment-variable overrides of spec.md §6:
// CONFIG_PATH, DB_PATH, LOG_PATH, MUSIC_FOLDER, FORCE_RESCAN.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("library.base_url", "")
	v.SetDefault("library.token", "")

	v.SetDefault("api.popularity.enabled", true)
	v.SetDefault("api.scrobbles.api_key", "")
	v.SetDefault("api.metadata_a.user_agent", "sptnr-core/1.0 ( contact@example.invalid )")
	v.SetDefault("api.metadata_b.token", "")

	v.SetDefault("weights.spotify", 0.3)
	v.SetDefault("weights.scrobbles", 0.5)
	v.SetDefault("weights.age", 0.2)
	v.SetDefault("weights.age_decay", "exponential")
	v.SetDefault("weights.age_half_life_years", 5.0)

	v.SetDefault("features.force", false)
	v.SetDefault("features.perpetual", false)
	v.SetDefault("features.verbose", false)
	v.SetDefault("features.batchrate", true)
	v.SetDefault("features.album_skip_days", 30)
	v.SetDefault("features.video_only_medium", false)

	v.SetDefault("concurrency.popularity", 4)
	v.SetDefault("concurrency.scrobbles", 1)
	v.SetDefault("concurrency.metadata_a", 2)
	v.SetDefault("concurrency.metadata_b", 2)

	v.SetDefault("quotas.popularity_window_limit", 250)
	v.SetDefault("quotas.popularity_daily_limit", 500000)
	v.SetDefault("quotas.scrobbles_min_spacing_ms", 1000)
	v.SetDefault("quotas.scrobbles_daily_limit", 50000)

	v.SetDefault("api_call_timeout_seconds", 30)
	v.SetDefault("log_level", "info")
	v.SetDefault("playlist_dir", "")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	configPath := envOr("CONFIG_PATH", "./config.yaml")
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("no config file found, using defaults and environment", "path", configPath)
		} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			slog.Warn("no config file found, using defaults and environment", "path", configPath)
		} else {
			return nil, fmt.Errorf("reading config file %s: %w", configPath, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := v.UnmarshalExact(&Config{}); err != nil {
		slog.Warn("config contains unrecognized keys; they are ignored", "error", err)
	}

	cfg.ConfigPath = configPath
	cfg.DBPath = envOr("DB_PATH", "./sptnr.db")
	cfg.LogPath = envOr("LOG_PATH", "./logs")
	cfg.MusicFolder = envOr("MUSIC_FOLDER", "")

	if os.Getenv("FORCE_RESCAN") == "1" {
		cfg.Features.Force = true
	}

	if cfg.PlaylistDir == "" && cfg.MusicFolder != "" {
		cfg.PlaylistDir = cfg.MusicFolder + "/playlists"
	}

	cfg.Weights.renormalize()

	return cfg, nil
}

// renormalize rescales the weights to sum to 1 if they don't already,
// per spec.md §6 ("enforced/renormalized on load").
func (w *Weights) renormalize() {
	sum := w.Spotify + w.Scrobbles + w.Age
	if sum <= 0 {
		w.Spotify, w.Scrobbles, w.Age = 0.3, 0.5, 0.2
		return
	}
	const epsilon = 1e-9
	if sum > 1-epsilon && sum < 1+epsilon {
		return
	}
	w.Spotify /= sum
	w.Scrobbles /= sum
	w.Age /= sum
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
