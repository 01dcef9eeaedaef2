package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	Minecraft MinecraftConfig `yaml:"minecraft"`
	Rcon      RconConfig      `yaml:"rcon"`
	Log       LogConfig       `yaml:"log"`
	Rewards   RewardsConfig   `yaml:"rewards"`
	Chat      ChatConfig      `yaml:"chat"`
	Data      DataConfig      `yaml:"data"`
	API       APIConfig       `yaml:"api"`

	path string // file this config was loaded from, for Save
}

// MinecraftConfig identifies the game server being bridged
type MinecraftConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	Executable    string        `yaml:"executable"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

// RconConfig holds remote console settings
type RconConfig struct {
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// LogConfig points at the server log being tailed
type LogConfig struct {
	Path         string        `yaml:"path"`
	Dir          string        `yaml:"dir"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// RewardsConfig controls daily reward claim-day computation
type RewardsConfig struct {
	Timezone     string `yaml:"timezone"`
	BoundaryHour int    `yaml:"boundary_hour"`
}

// ChatConfig holds the chat-platform side of the bridge
type ChatConfig struct {
	StatusChannelID int64 `yaml:"status_channel_id"`
}

// DataConfig holds persistence paths
type DataConfig struct {
	Dir         string `yaml:"dir"`
	HistoryPath string `yaml:"history_path"`
}

// APIConfig holds the local HTTP/WebSocket API settings
type APIConfig struct {
	ListenAddr        string        `yaml:"listen_addr"`
	Port              int           `yaml:"port"`
	JWTSecret         string        `yaml:"jwt_secret"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
	TokenDuration     time.Duration `yaml:"token_duration"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.path = path
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Minecraft.Host == "" {
		c.Minecraft.Host = "127.0.0.1"
	}
	if c.Minecraft.Port == 0 {
		c.Minecraft.Port = 25565
	}
	if c.Minecraft.Executable == "" {
		c.Minecraft.Executable = "java"
	}
	if c.Minecraft.CheckInterval == 0 {
		c.Minecraft.CheckInterval = 5 * time.Second
	}
	if c.Rcon.Port == 0 {
		c.Rcon.Port = 25575
	}
	if c.Rcon.Timeout == 0 {
		c.Rcon.Timeout = 5 * time.Second
	}
	if c.Log.Dir == "" {
		c.Log.Dir = "logs"
	}
	if c.Log.Path == "" {
		c.Log.Path = filepath.Join(c.Log.Dir, "latest.log")
	}
	if c.Log.PollInterval == 0 {
		c.Log.PollInterval = time.Second
	}
	if c.Rewards.Timezone == "" {
		c.Rewards.Timezone = "UTC"
	}
	if c.Data.Dir == "" {
		c.Data.Dir = "data"
	}
	if c.Data.HistoryPath == "" {
		c.Data.HistoryPath = filepath.Join(c.Data.Dir, "history.db")
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = "127.0.0.1"
	}
	if c.API.Port == 0 {
		c.API.Port = 8990
	}
	if c.API.TokenDuration == 0 {
		c.API.TokenDuration = 24 * time.Hour
	}
}

// Validate reports configuration the bridge cannot run without
func (c *Config) Validate() error {
	if c.Rcon.Password == "" {
		return fmt.Errorf("rcon.password is required")
	}
	if _, err := time.LoadLocation(c.Rewards.Timezone); err != nil {
		return fmt.Errorf("rewards.timezone: %w", err)
	}
	if c.Rewards.BoundaryHour < 0 || c.Rewards.BoundaryHour > 23 {
		return fmt.Errorf("rewards.boundary_hour must be 0..23, got %d", c.Rewards.BoundaryHour)
	}
	return nil
}

// Location resolves the configured reward timezone. Call Validate first;
// an unparseable zone falls back to UTC here.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Rewards.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Save writes the configuration back to the file it was loaded from.
// Written to a temp path then renamed so readers never see a partial file.
func (c *Config) Save() error {
	if c.path == "" {
		return fmt.Errorf("config was not loaded from a file")
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("replacing config: %w", err)
	}
	return nil
}
