// Package storage locates the qpg directory and loads its configuration.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/qpg-app/qpg/internal/core/security"
)

const (
	ConfigFileName = "config"
	ConfigFileType = "yaml"
	QPGDirName     = ".qpg"
	QueueFileName  = "queue.json"
	PromptsDirName = "prompts"
	EnvPrefix      = "QPG"
)

// Config holds the application configuration
type Config struct {
	AI          AIConfig                `mapstructure:"ai"`
	Server      ServerConfig            `mapstructure:"server"`
	Preferences PreferencesConfig       `mapstructure:"preferences"`
	Security    security.SecurityPolicy `mapstructure:"security"`
	Chat        ChatConfig              `mapstructure:"chat"`
	Log         LogConfig               `mapstructure:"log"`
}

// AIConfig holds AI-related configuration
type AIConfig struct {
	Provider string `mapstructure:"provider"` // "ollama" | "openai"
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	BaseURL  string `mapstructure:"base_url"`
	Timeout  int    `mapstructure:"timeout"` // seconds
}

// ServerConfig locates the preference service
type ServerConfig struct {
	URL     string `mapstructure:"url"`
	Timeout int    `mapstructure:"timeout"` // seconds

	// Offline skips the handshake and keeps preferences local.
	Offline bool `mapstructure:"offline"`
}

// PreferencesConfig tunes the preference cache
type PreferencesConfig struct {
	// DefaultsFile replaces the bundled fallback preferences. JSON with
	// comments is accepted.
	DefaultsFile  string `mapstructure:"defaults_file"`
	ConfirmRemote bool   `mapstructure:"confirm_remote"`
}

// ChatConfig holds chat-related configuration
type ChatConfig struct {
	Prompt         string `mapstructure:"prompt"`
	MaxHistory     int    `mapstructure:"max_history"`
	RenderMarkdown bool   `mapstructure:"render_markdown"`
}

// LogConfig selects the logger
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// GetConfigDir returns the qpg config directory path
func GetConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, QPGDirName), nil
}

// QueueFile returns the path of the approval queue inside configDir.
func QueueFile(configDir string) string {
	return filepath.Join(configDir, QueueFileName)
}

// PromptsDir returns the path of the preamble templates inside configDir.
func PromptsDir(configDir string) string {
	return filepath.Join(configDir, PromptsDirName)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.model", "llama3.2")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.timeout", 60)

	v.SetDefault("server.url", "http://127.0.0.1:8000")
	v.SetDefault("server.timeout", 10)
	v.SetDefault("server.offline", false)

	v.SetDefault("preferences.defaults_file", "")
	v.SetDefault("preferences.confirm_remote", false)

	policy := security.DefaultPolicy()
	v.SetDefault("security.command_level", string(policy.CommandLevel))
	v.SetDefault("security.startup_apps", policy.StartupApps)

	v.SetDefault("chat.prompt", "coach")
	v.SetDefault("chat.max_history", 100)
	v.SetDefault("chat.render_markdown", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
}

func newViper(configDir string) *viper.Viper {
	v := viper.New()
	v.SetConfigName(ConfigFileName)
	v.SetConfigType(ConfigFileType)
	v.AddConfigPath(configDir)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// ConfigFile returns the path of the config file in configDir.
func ConfigFile(configDir string) string {
	return filepath.Join(configDir, ConfigFileName+"."+ConfigFileType)
}

// LoadConfig reads the configuration stored in configDir. A missing file
// yields the defaults. QPG_* environment variables override both, e.g.
// QPG_AI_API_KEY for ai.api_key.
func LoadConfig(configDir string) (*Config, error) {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	v := newViper(configDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// SaveConfig writes cfg to configDir/config.yaml
func SaveConfig(configDir string, cfg *Config) error {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType(ConfigFileType)

	v.Set("ai.provider", cfg.AI.Provider)
	v.Set("ai.api_key", cfg.AI.APIKey)
	v.Set("ai.model", cfg.AI.Model)
	v.Set("ai.base_url", cfg.AI.BaseURL)
	v.Set("ai.timeout", cfg.AI.Timeout)

	v.Set("server.url", cfg.Server.URL)
	v.Set("server.timeout", cfg.Server.Timeout)
	v.Set("server.offline", cfg.Server.Offline)

	v.Set("preferences.defaults_file", cfg.Preferences.DefaultsFile)
	v.Set("preferences.confirm_remote", cfg.Preferences.ConfirmRemote)

	v.Set("security.command_level", string(cfg.Security.CommandLevel))
	v.Set("security.startup_apps", cfg.Security.StartupApps)

	v.Set("chat.prompt", cfg.Chat.Prompt)
	v.Set("chat.max_history", cfg.Chat.MaxHistory)
	v.Set("chat.render_markdown", cfg.Chat.RenderMarkdown)

	v.Set("log.level", cfg.Log.Level)
	v.Set("log.development", cfg.Log.Development)

	return v.WriteConfigAs(ConfigFile(configDir))
}
