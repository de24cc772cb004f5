// Package core provides the robot and configuration management for slackline.
//
// The core package hosts the Slack adapter. It handles:
//
//   - Configuration loading and validation (from YAML files and SLACKLINE_* variables)
//   - The Robot: message loop, routes, builtin commands and event listeners
//   - Access control for inbound messages
//
// # Configuration
//
// Configuration is loaded from a YAML file with the following main sections:
//
//   - slack: token, transport and posting options
//   - robot: name and mention name used until Slack reports the real ones
//   - security: access control and whitelisting
//   - store: user and room persistence
//   - sqs: optional inbound relay
//   - logging: log configuration
//
// # Example Configuration
//
//	slack:
//	  token: "${SLACK_TOKEN}"
//	  send_via: rtm
//	robot:
//	  name: "Lita"
//	store:
//	  driver: sqlite
//	  path: "~/.slackline/slackline.db"
package core

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/keepmind9/slackline/internal/logger"
	"github.com/keepmind9/slackline/internal/slack"
	"github.com/keepmind9/slackline/internal/slack/api"
	"github.com/keepmind9/slackline/internal/sqsrelay"
	"github.com/keepmind9/slackline/pkg/constants"
)

const (
	DefaultRobotName       = "Lita"
	DefaultSendVia         = slack.SendViaRTM
	DefaultPingInterval    = "10s"
	DefaultStoreDriver     = "memory"
	DefaultStorePath       = "~/.slackline/slackline.db"
	DefaultSQSRegion       = "us-east-1"
	DefaultLogLevel        = "info"
	DefaultLogMaxSize      = constants.DefaultLogMaxSize
	DefaultLogMaxBackups   = 5
	DefaultLogMaxAge       = constants.DefaultLogMaxAge
	DefaultLogCompress     = true
	DefaultLogEnableStdout = true

	// Ping interval bounds
	MinPingInterval = time.Second
	MaxPingInterval = 5 * time.Minute
)

// LoadConfig loads configuration from file, expands environment variables
// and applies SLACKLINE_* overrides
func LoadConfig(configPath string) (*Config, error) {
	// Read configuration file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expandedData, err := expandEnv(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	// Parse YAML
	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Environment overrides win over the file
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// expandEnv replaces ${VAR_NAME} patterns with environment variable values
func expandEnv(input string) (string, error) {
	var missingVars []string

	result := os.Expand(input, func(key string) string {
		if val := os.Getenv(key); val != "" {
			return val
		}
		missingVars = append(missingVars, key)
		return ""
	})

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s",
			strings.Join(missingVars, ", "))
	}

	return result, nil
}

// validateConfig fills defaults and performs basic validation on the configuration
func validateConfig(config *Config) error {
	// Slack connection
	if config.Slack.Token == "" {
		return fmt.Errorf("slack.token is required")
	}
	if config.Slack.APIURL == "" {
		config.Slack.APIURL = constants.DefaultAPIURL
	}
	if !strings.HasSuffix(config.Slack.APIURL, "/") {
		config.Slack.APIURL += "/"
	}
	if config.Slack.SendVia == "" {
		config.Slack.SendVia = DefaultSendVia
	}
	if config.Slack.SendVia != slack.SendViaRTM && config.Slack.SendVia != slack.SendViaWeb {
		return fmt.Errorf("slack.send_via must be %s or %s (got %q)", slack.SendViaRTM, slack.SendViaWeb, config.Slack.SendVia)
	}
	if config.Slack.PingInterval == "" {
		config.Slack.PingInterval = DefaultPingInterval
	}
	interval, err := time.ParseDuration(config.Slack.PingInterval)
	if err != nil {
		return fmt.Errorf("invalid slack.ping_interval: %w", err)
	}
	if interval < MinPingInterval || interval > MaxPingInterval {
		return fmt.Errorf("slack.ping_interval must be between %v and %v (got %v)", MinPingInterval, MaxPingInterval, interval)
	}
	if config.Slack.MaxMessageBytes == 0 {
		config.Slack.MaxMessageBytes = constants.MaxMessageBytes
	}
	if config.Slack.MaxMessageBytes < 0 || config.Slack.MaxMessageBytes > constants.MaxMessageBytes {
		return fmt.Errorf("slack.max_message_bytes must be between 1 and %d (got %d)", constants.MaxMessageBytes, config.Slack.MaxMessageBytes)
	}
	if config.Slack.Parse != "" && config.Slack.Parse != "none" && config.Slack.Parse != "full" {
		return fmt.Errorf("slack.parse must be none or full (got %q)", config.Slack.Parse)
	}
	if _, err := slack.NewClassifier(config.Slack.ConversationPrefixes); err != nil {
		return fmt.Errorf("invalid slack.conversation_prefixes: %w", err)
	}

	// Robot identity
	if config.Robot.Name == "" {
		config.Robot.Name = DefaultRobotName
	}
	if config.Robot.MentionName == "" {
		config.Robot.MentionName = config.Robot.Name
	}

	// Store
	if config.Store.Driver == "" {
		config.Store.Driver = DefaultStoreDriver
	}
	switch config.Store.Driver {
	case "memory":
	case "sqlite":
		if config.Store.Path == "" {
			config.Store.Path = DefaultStorePath
		}
		path, err := expandHome(config.Store.Path)
		if err != nil {
			return err
		}
		config.Store.Path = path
	default:
		return fmt.Errorf("store.driver must be memory or sqlite (got %q)", config.Store.Driver)
	}

	// SQS relay
	if config.SQS.Enabled {
		if config.SQS.QueueName == "" {
			return fmt.Errorf("sqs.queue_name is required when sqs is enabled")
		}
		if config.SQS.Region == "" {
			config.SQS.Region = DefaultSQSRegion
		}
		if (config.SQS.AccessKeyID == "") != (config.SQS.SecretAccessKey == "") {
			return fmt.Errorf("sqs.access_key_id and sqs.secret_access_key must be set together")
		}
	}

	// Set default logging configuration
	if config.Logging.Level == "" {
		config.Logging.Level = DefaultLogLevel
	}
	if config.Logging.MaxSize == 0 {
		config.Logging.MaxSize = DefaultLogMaxSize
	}
	if config.Logging.MaxBackups == 0 {
		config.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if config.Logging.MaxAge == 0 {
		config.Logging.MaxAge = DefaultLogMaxAge
	}
	if !config.Logging.Compress {
		config.Logging.Compress = DefaultLogCompress
	}
	if !config.Logging.EnableStdout {
		config.Logging.EnableStdout = DefaultLogEnableStdout
	}
	if config.Logging.File != "" {
		path, err := expandHome(config.Logging.File)
		if err != nil {
			return err
		}
		config.Logging.File = path
	}

	// Validate security settings
	if config.Security.WhitelistEnabled {
		if len(config.Security.AllowedUsers) == 0 {
			return fmt.Errorf("security.allowed_users cannot be empty when whitelist is enabled")
		}
	}

	return nil
}

// expandHome expands ~ to user's home directory
func expandHome(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return home + path[1:], nil
	}
	return path, nil
}

// IsUserAuthorized checks if a user is in the whitelist
func (c *Config) IsUserAuthorized(userID string) bool {
	// If whitelist is disabled, allow all users
	if !c.Security.WhitelistEnabled {
		return true
	}
	return slices.Contains(c.Security.AllowedUsers, userID)
}

// IsAdmin checks if a user is an admin
func (c *Config) IsAdmin(userID string) bool {
	return slices.Contains(c.Security.Admins, userID)
}

// PingInterval returns the parsed keepalive interval
func (c *Config) PingInterval() time.Duration {
	d, err := time.ParseDuration(c.Slack.PingInterval)
	if err != nil {
		return constants.DefaultPingInterval
	}
	return d
}

// ClientOptions returns the Web API client options for this configuration
func (c *Config) ClientOptions() []api.Option {
	opts := []api.Option{
		api.WithBaseURL(c.Slack.APIURL),
		api.WithFormatting(api.Formatting{
			LinkNames:   c.Slack.LinkNames,
			UnfurlLinks: c.Slack.UnfurlLinks,
			UnfurlMedia: c.Slack.UnfurlMedia,
			Parse:       c.Slack.Parse,
		}),
	}
	if len(c.Slack.DefaultArgs) > 0 {
		opts = append(opts, api.WithPostDefaults(api.Args(c.Slack.DefaultArgs)))
	}
	return opts
}

// AdapterConfig returns the Slack adapter settings
func (c *Config) AdapterConfig() slack.Config {
	return slack.Config{
		SendVia:              c.Slack.SendVia,
		Proxy:                c.Slack.Proxy,
		PingInterval:         c.PingInterval(),
		MaxMessageBytes:      c.Slack.MaxMessageBytes,
		ConversationPrefixes: c.Slack.ConversationPrefixes,
	}
}

// SQSClientConfig returns the AWS client settings for the relay
func (c *Config) SQSClientConfig() sqsrelay.ClientConfig {
	return sqsrelay.ClientConfig{
		Region:          c.SQS.Region,
		AccessKeyID:     c.SQS.AccessKeyID,
		SecretAccessKey: c.SQS.SecretAccessKey,
	}
}

// SQSChannels returns the relay channel whitelist; nil accepts every channel
func (c *Config) SQSChannels() []string {
	if len(c.SQS.ChannelIDs) == 0 {
		return nil
	}
	return c.SQS.ChannelIDs
}

// LoggerConfig returns the logger settings
func (c *Config) LoggerConfig() logger.Config {
	return logger.Config{
		Level:        c.Logging.Level,
		Format:       c.Logging.Format,
		File:         c.Logging.File,
		MaxSize:      c.Logging.MaxSize,
		MaxBackups:   c.Logging.MaxBackups,
		MaxAge:       c.Logging.MaxAge,
		Compress:     c.Logging.Compress,
		EnableStdout: c.Logging.EnableStdout,
	}
}

// MaskSecret masks sensitive information for logging
func MaskSecret(s string) string {
	if len(s) <= constants.MinSecretLengthForMasking {
		return "***"
	}
	return s[:constants.SecretMaskPrefixLength] + "***" + s[len(s)-constants.SecretMaskSuffixLength:]
}
