package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		RunMode:            ModeAll,
		Port:               8080,
		DatabaseURL:        "postgres://localhost/drivelink",
		GoogleClientID:     "client",
		GoogleClientSecret: "secret",
		OAuthRedirectURL:   "https://drive.example.com/oauth/callback",
		AuthPollInterval:   5 * time.Second,
		AuthTimeout:        2 * time.Minute,
		RefreshMargin:      time.Minute,
		SweepInterval:      time.Minute,
		TelegramBotToken:   "123:abc",
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("RUN_MODE", " BOT ")
	t.Setenv("GOOGLE_SCOPES", "openid,email")
	t.Setenv("AUTH_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ModeBot, cfg.RunMode)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, []string{"openid", "email"}, cfg.GoogleScopes)
	assert.Equal(t, 90*time.Second, cfg.AuthTimeout)
	assert.Equal(t, 5*time.Second, cfg.AuthPollInterval)
	assert.Equal(t, "https://api.telegram.org", cfg.TelegramAPIURL)
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("AUTH_TIMEOUT", "soon")

	_, err := Load()
	assert.True(t, errors.Is(err, ErrParsingConfig))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"unknown mode", func(c *Config) { c.RunMode = "worker" }, true},
		{"missing client id", func(c *Config) { c.GoogleClientID = "" }, true},
		{"missing redirect", func(c *Config) { c.OAuthRedirectURL = "" }, true},
		{"relative redirect", func(c *Config) { c.OAuthRedirectURL = "/callback" }, true},
		{"reserved path", func(c *Config) { c.OAuthRedirectURL = "https://x.example.com/health" }, true},
		{"bot without token", func(c *Config) { c.TelegramBotToken = "" }, true},
		{"callback without token", func(c *Config) { c.RunMode = ModeCallback; c.TelegramBotToken = "" }, false},
		{"bad port", func(c *Config) { c.Port = 70000 }, true},
		{"timeout below poll", func(c *Config) { c.AuthTimeout = time.Second }, true},
		{"negative margin", func(c *Config) { c.RefreshMargin = -time.Second }, true},
		{"redis only", func(c *Config) { c.DatabaseURL = ""; c.RedisURL = "redis://localhost:6379" }, false},
		{"no store", func(c *Config) { c.DatabaseURL = "" }, true},
		{"migrate needs only database", func(c *Config) {
			*c = Config{RunMode: ModeMigrate, DatabaseURL: "postgres://localhost/drivelink"}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCallbackPath(t *testing.T) {
	cfg := validConfig()

	cfg.OAuthRedirectURL = "https://drive.example.com"
	path, err := cfg.CallbackPath()
	require.NoError(t, err)
	assert.Equal(t, "/", path)

	cfg.OAuthRedirectURL = "https://drive.example.com/oauth/callback"
	path, err = cfg.CallbackPath()
	require.NoError(t, err)
	assert.Equal(t, "/oauth/callback", path)
}

func TestModes(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.ServesCallback())
	assert.True(t, cfg.RunsBot())

	cfg.RunMode = ModeBot
	assert.False(t, cfg.ServesCallback())
	assert.True(t, cfg.RunsBot())

	cfg.RunMode = ModeCallback
	assert.True(t, cfg.ServesCallback())
	assert.False(t, cfg.RunsBot())
}
