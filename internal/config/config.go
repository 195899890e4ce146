// Package config loads server configuration from the environment.
//
// A .env file in the working directory is honoured (godotenv), then real
// environment variables win. main calls Load once and passes the resulting
// struct down; nothing else reads the environment.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	Port   int
	DBPath string

	// PublicBaseURL is the externally reachable base of this server, used to
	// build OAuth redirect URLs and public image URLs.
	PublicBaseURL string

	JWTSecret string

	SpotifyClientID     string
	SpotifyClientSecret string
	SpotifyRedirectURL  string

	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string

	ImageDir string
}

// Load reads configuration, applying defaults for everything that has a
// sensible one. Secrets (JWT, Spotify, OpenAI) have no defaults; New-ing
// components with empty secrets fails at startup rather than at first use.
func Load() (*Config, error) {
	// Missing .env is fine — production sets real env vars.
	_ = godotenv.Load()

	cfg := &Config{
		Port:                8080,
		DBPath:              "data/vibelist.db",
		ImageDir:            "data/images",
		OpenAIBaseURL:       "https://api.openai.com/v1",
		OpenAIModel:         "gpt-4o",
		JWTSecret:           os.Getenv("JWT_SECRET"),
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		SpotifyRedirectURL:  os.Getenv("SPOTIFY_REDIRECT_URI"),
		OpenAIAPIKey:        os.Getenv("OPENAI_API_KEY"),
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: invalid PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("IMAGE_DIR"); v != "" {
		cfg.ImageDir = v
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		cfg.OpenAIModel = v
	}

	cfg.PublicBaseURL = os.Getenv("PUBLIC_BASE_URL")
	if cfg.PublicBaseURL == "" {
		cfg.PublicBaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if cfg.SpotifyRedirectURL == "" {
		cfg.SpotifyRedirectURL = cfg.PublicBaseURL + "/auth/spotify/callback"
	}

	return cfg, nil
}
