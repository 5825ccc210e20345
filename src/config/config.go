package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Service   ServiceConfig   `mapstructure:"service"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
}

type ServiceType string

const (
	API    ServiceType = "API"
	WORKER ServiceType = "WORKER"
)

type ServiceConfig struct {
	Type     ServiceType `mapstructure:"type"`
	Port     string      `mapstructure:"port"`
	LogLevel string      `mapstructure:"logLevel"`
}

type DatabasesConfig struct {
	SQL   SQLConfig   `mapstructure:"sql"`
	Redis RedisConfig `mapstructure:"redis"`
}

type SQLConfig struct {
	Host             string `mapstructure:"host"`
	Port             string `mapstructure:"port"`
	Username         string `mapstructure:"username"`
	Password         string `mapstructure:"password"`
	Driver           string `mapstructure:"driver"`
	Database         string `mapstructure:"database"`
	ConnectionString string `mapstructure:"connection_string"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database int    `mapstructure:"database"`
}

type AuthConfig struct {
	Secret             string `mapstructure:"secret"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	TokenExpireMinutes int    `mapstructure:"tokenExpireMinutes"`
}

// LedgerConfig holds the tunables of the balance ledger engine.
type LedgerConfig struct {
	// DustThreshold is the decimal amount below which a balance is zeroed
	// after a disposal.
	DustThreshold string `mapstructure:"dustThreshold"`
	// SnapshotEnabled toggles per-transaction history snapshots.
	SnapshotEnabled bool `mapstructure:"snapshotEnabled"`
	// HourlyRetentionDays bounds the age of hourly snapshots.
	HourlyRetentionDays int `mapstructure:"hourlyRetentionDays"`
	// HistoryRetentionDays bounds the age of every other snapshot type.
	HistoryRetentionDays int `mapstructure:"historyRetentionDays"`
	// PriceUpdateInterval is the seconds between scheduled price refreshes.
	PriceUpdateInterval int `mapstructure:"priceUpdateInterval"`
}

func LoadConfig(path string) (*Config, error) {
	var cfg Config

	viper.AddConfigPath(path)
	viper.SetConfigName("appsettings")
	viper.SetConfigType("yaml")

	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}
	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Ledger.DustThreshold == "" {
		c.Ledger.DustThreshold = "0.000001"
	}
	if c.Ledger.HourlyRetentionDays == 0 {
		c.Ledger.HourlyRetentionDays = 7
	}
	if c.Ledger.HistoryRetentionDays == 0 {
		c.Ledger.HistoryRetentionDays = 90
	}
	if c.Ledger.PriceUpdateInterval == 0 {
		c.Ledger.PriceUpdateInterval = 300
	}
	if c.Auth.TokenExpireMinutes == 0 {
		c.Auth.TokenExpireMinutes = 30
	}
}
