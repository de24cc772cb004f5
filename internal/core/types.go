package core

// Config represents the complete slackline configuration structure
type Config struct {
	Slack    SlackConfig    `yaml:"slack"`
	Robot    RobotConfig    `yaml:"robot"`
	Security SecurityConfig `yaml:"security"`
	Store    StoreConfig    `yaml:"store"`
	SQS      SQSConfig      `yaml:"sqs"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SlackConfig represents the Slack connection and posting configuration.
// SendVia is rtm or web (default: rtm); PingInterval is a duration such as "10s".
type SlackConfig struct {
	Token           string `yaml:"token" env:"SLACKLINE_SLACK_TOKEN"`
	APIURL          string `yaml:"api_url" env:"SLACKLINE_SLACK_API_URL"`
	Proxy           string `yaml:"proxy" env:"SLACKLINE_SLACK_PROXY"`
	SendVia         string `yaml:"send_via" env:"SLACKLINE_SLACK_SEND_VIA"`
	PingInterval    string `yaml:"ping_interval" env:"SLACKLINE_SLACK_PING_INTERVAL"`
	MaxMessageBytes int    `yaml:"max_message_bytes" env:"SLACKLINE_SLACK_MAX_MESSAGE_BYTES"`

	// chat.postMessage formatting
	LinkNames   bool           `yaml:"link_names" env:"SLACKLINE_SLACK_LINK_NAMES"`
	UnfurlLinks *bool          `yaml:"unfurl_links"`
	UnfurlMedia *bool          `yaml:"unfurl_media"`
	Parse       string         `yaml:"parse" env:"SLACKLINE_SLACK_PARSE"`
	DefaultArgs map[string]any `yaml:"default_args"`

	// Channel id prefixes per conversation kind (channel, group, mpim, direct)
	ConversationPrefixes map[string][]string `yaml:"conversation_prefixes"`
}

// RobotConfig represents the robot identity used before Slack reports its own.
// Echo registers the route that repeats every message back to its room.
type RobotConfig struct {
	Name        string `yaml:"name" env:"SLACKLINE_ROBOT_NAME"`
	MentionName string `yaml:"mention_name" env:"SLACKLINE_ROBOT_MENTION_NAME"`
	Echo        bool   `yaml:"echo" env:"SLACKLINE_ROBOT_ECHO"`
}

// SecurityConfig represents security and access control configuration
type SecurityConfig struct {
	WhitelistEnabled bool     `yaml:"whitelist_enabled" env:"SLACKLINE_SECURITY_WHITELIST_ENABLED"`
	AllowedUsers     []string `yaml:"allowed_users" env:"SLACKLINE_SECURITY_ALLOWED_USERS" envSeparator:","`
	Admins           []string `yaml:"admins" env:"SLACKLINE_SECURITY_ADMINS" envSeparator:","`
}

// StoreConfig represents user and room persistence configuration
type StoreConfig struct {
	Driver string `yaml:"driver" env:"SLACKLINE_STORE_DRIVER"` // memory or sqlite
	Path   string `yaml:"path" env:"SLACKLINE_STORE_PATH"`     // sqlite database file
}

// SQSConfig represents the optional SQS inbound relay. Messages sent by
// RobotID are ignored and an empty ChannelIDs relays every channel.
type SQSConfig struct {
	Enabled         bool     `yaml:"enabled" env:"SLACKLINE_SQS_ENABLED"`
	QueueName       string   `yaml:"queue_name" env:"SLACKLINE_SQS_QUEUE_NAME"`
	Region          string   `yaml:"region" env:"SLACKLINE_SQS_REGION"`
	AccessKeyID     string   `yaml:"access_key_id" env:"SLACKLINE_SQS_ACCESS_KEY_ID"`
	SecretAccessKey string   `yaml:"secret_access_key" env:"SLACKLINE_SQS_SECRET_ACCESS_KEY"`
	RobotID         string   `yaml:"robot_id" env:"SLACKLINE_SQS_ROBOT_ID"`
	ChannelIDs      []string `yaml:"channel_ids" env:"SLACKLINE_SQS_CHANNEL_IDS" envSeparator:","`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level" env:"SLACKLINE_LOG_LEVEL"`   // debug, info, warn, error
	Format       string `yaml:"format" env:"SLACKLINE_LOG_FORMAT"` // json or text
	File         string `yaml:"file" env:"SLACKLINE_LOG_FILE"`     // Log file path
	MaxSize      int    `yaml:"max_size"`                          // Single file max size in MB (default: 100)
	MaxBackups   int    `yaml:"max_backups"`                       // Number of backups to keep (default: 5)
	MaxAge       int    `yaml:"max_age"`                           // Maximum days to retain (default: 30)
	Compress     bool   `yaml:"compress"`                          // Whether to compress old logs (default: true)
	EnableStdout bool   `yaml:"enable_stdout"`                     // Also output to stdout (default: true)
}
