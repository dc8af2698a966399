package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Application constants
const (
	appName          = "astra"
	defaultBaseURL   = "https://api.astralume.com"
	defaultLogLevel  = "info"
	defaultTokenEnv  = "ASTRA_TOKEN"
	defaultPageSize  = 50
	defaultPollTries = 10
	defaultPollSecs  = 3
)

// Config is the main configuration structure for the client
type Config struct {
	BaseURL         string `json:"baseURL"`         // Chat API base URL
	TokenEnv        string `json:"tokenEnv"`        // Env var holding the bearer token
	SessionPageSize int    `json:"sessionPageSize"` // Roster page size (also bounds title fetch fan-out)
	ProfilePoll     struct {
		Attempts        int `json:"attempts"`        // Bounded attempt budget
		IntervalSeconds int `json:"intervalSeconds"` // Fixed wait between attempts
	} `json:"profilePoll"`
	Debug bool `json:"debug,omitempty"`
}

// Global configuration instance
var cfg *Config

// Load initializes the configuration from environment variables and config files
func Load(debug bool) (*Config, error) {
	if cfg != nil {
		return cfg, nil
	}

	cfg = &Config{}

	configureViper()
	setDefaults(debug)

	if err := readConfig(viper.ReadInConfig()); err != nil {
		return cfg, err
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	return cfg, nil
}

// Get returns the loaded configuration, or nil before Load
func Get() *Config {
	return cfg
}

// configureViper sets up viper's configuration paths and environment variables
func configureViper() {
	viper.SetConfigName(fmt.Sprintf(".%s", appName))
	viper.SetConfigType("json")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(fmt.Sprintf("$XDG_CONFIG_HOME/%s", appName))
	viper.AddConfigPath(fmt.Sprintf("$HOME/.config/%s", appName))
	viper.SetEnvPrefix(strings.ToUpper(appName))
	viper.AutomaticEnv()
}

// setDefaults configures default values for configuration options
func setDefaults(debug bool) {
	viper.SetDefault("baseURL", defaultBaseURL)
	viper.SetDefault("tokenEnv", defaultTokenEnv)
	viper.SetDefault("sessionPageSize", defaultPageSize)
	viper.SetDefault("profilePoll.attempts", defaultPollTries)
	viper.SetDefault("profilePoll.intervalSeconds", defaultPollSecs)

	if debug {
		viper.SetDefault("debug", true)
		viper.Set("log.level", "debug")
	} else {
		viper.SetDefault("debug", false)
		viper.SetDefault("log.level", defaultLogLevel)
	}
}

// readConfig reads configuration from file and environment
func readConfig(err error) error {
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}

	return nil
}
