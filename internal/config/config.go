package config

import (
	"fmt"
	"time"

	"github.com/picmigrate/picmigrate/internal/models"
)

// Config represents the complete application configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Server    ServerConfig    `yaml:"server"`
	API       APIConfig       `yaml:"api"`
	Storage   StorageConfig   `yaml:"storage"`
	Bling     BlingConfig     `yaml:"bling"`
	Migration MigrationConfig `yaml:"migration"`
	Notify    NotifyConfig    `yaml:"notify"`
	Accounts  []AccountConfig `yaml:"accounts"`
}

// ServerConfig contains server-related configuration.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	HTTPPort        int           `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	LogLevel        string        `yaml:"log_level"`
}

// APIConfig contains API authentication configuration for the batch,
// reset and log endpoints. The OAuth callback is always unauthenticated.
type APIConfig struct {
	APIKeys    []string `yaml:"api_keys"`
	HeaderName string   `yaml:"header_name"`
}

// StorageConfig locates the durable state: token files, downloaded images,
// the migration log and the history database.
type StorageConfig struct {
	Root      string `yaml:"root"`
	HistoryDB string `yaml:"history_db"`
}

// BlingConfig carries the Bling v3 endpoints. Overridable for tests.
type BlingConfig struct {
	AuthURL        string        `yaml:"auth_url"`
	TokenURL       string        `yaml:"token_url"`
	APIBaseURL     string        `yaml:"api_base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// MigrationConfig tunes the orchestrator.
type MigrationConfig struct {
	// VariantBackoff is how long to wait before the single retry of a
	// rate-limited variant fetch.
	VariantBackoff time.Duration `yaml:"variant_backoff"`
}

// NotifyConfig configures optional Telegram notifications.
type NotifyConfig struct {
	TelegramEnabled bool   `yaml:"telegram_enabled"`
	TelegramToken   string `yaml:"telegram_token"`
	TelegramChatID  int64  `yaml:"telegram_chat_id"`
}

// AccountConfig declares one Bling account identity.
type AccountConfig struct {
	Name         string `yaml:"name"`
	Role         string `yaml:"role"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURI  string `yaml:"redirect_uri"`
	State        string `yaml:"state"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root is required")
	}
	if c.Bling.AuthURL == "" || c.Bling.TokenURL == "" || c.Bling.APIBaseURL == "" {
		return fmt.Errorf("bling endpoints are required")
	}
	if len(c.Accounts) == 0 {
		return fmt.Errorf("at least one account must be configured")
	}
	accounts := c.AccountModels()
	if err := accounts.Validate(); err != nil {
		return err
	}
	if _, ok := accounts.FindByRole(models.RoleOrigin); !ok {
		return fmt.Errorf("an origin account must be configured")
	}
	if _, ok := accounts.FindByRole(models.RoleDestination); !ok {
		return fmt.Errorf("a destination account must be configured")
	}
	if c.Notify.TelegramEnabled && c.Notify.TelegramToken == "" {
		return fmt.Errorf("notify.telegram_token is required when telegram is enabled")
	}
	return nil
}

// Validate checks server configuration.
func (s *ServerConfig) Validate() error {
	if s.HTTPPort < 1 || s.HTTPPort > 65535 {
		return fmt.Errorf("server.http_port must be between 1 and 65535")
	}
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = 30 * time.Second
	}
	return nil
}

// AccountModels converts the configured accounts into domain accounts,
// filling the default fixed state for any account that omits one.
func (c *Config) AccountModels() models.AccountSlice {
	out := make(models.AccountSlice, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		state := a.State
		if state == "" {
			state = models.DefaultState(a.Name)
		}
		out = append(out, models.Account{
			Name:         a.Name,
			Role:         models.AccountRole(a.Role),
			ClientID:     a.ClientID,
			ClientSecret: a.ClientSecret,
			RedirectURI:  a.RedirectURI,
			State:        state,
		})
	}
	return out
}
