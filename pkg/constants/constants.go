package constants

import "time"

// Slack real-time stream limits
const (
	// MaxMessageBytes is the largest serialized outbound frame Slack accepts
	MaxMessageBytes = 16000
	// OutboundFrameID is the id stamped on every outbound message frame
	OutboundFrameID = 1
	// DefaultPingInterval is the keepalive interval for the stream
	DefaultPingInterval = 10 * time.Second
	// PingWriteTimeout bounds a single keepalive write
	PingWriteTimeout = 5 * time.Second
)

// Web API defaults
const (
	// DefaultAPIURL is the base URL for all Slack Web API requests
	DefaultAPIURL = "https://slack.com/api/"
	// DefaultHTTPTimeout is the timeout for a single Web API call
	DefaultHTTPTimeout = 30 * time.Second
	// MaxResponseBytes caps how much of a Web API response body is read
	MaxResponseBytes = 10 * 1024 * 1024
	// DefaultDialTimeout is the handshake timeout for the stream
	DefaultDialTimeout = 15 * time.Second
)

// Buffer sizes
const (
	// FrameQueueSize is the buffer between the stream reader and the dispatcher
	FrameQueueSize = 256
	// MessageChannelBufferSize is the buffer size for the robot's message channel
	MessageChannelBufferSize = 100
)

// SQS relay
const (
	// SQSWaitTimeSeconds is the long-poll wait for one receive call
	SQSWaitTimeSeconds = 20
	// SQSMaxMessages is the batch size for one receive call
	SQSMaxMessages = 10
	// SQSErrorBackoff is the pause after a failed receive
	SQSErrorBackoff = 5 * time.Second
)

// Secret masking
const (
	// MinSecretLengthForMasking is the minimum secret length to apply masking
	MinSecretLengthForMasking = 10
	// SecretMaskPrefixLength is the length of prefix to show before masking
	SecretMaskPrefixLength = 7
	// SecretMaskSuffixLength is the length of suffix to show after masking
	SecretMaskSuffixLength = 4
)

// Logging defaults
const (
	// DefaultLogMaxSize is the default maximum log file size in MB
	DefaultLogMaxSize = 100
	// DefaultLogMaxAge is the default maximum number of days to retain old logs
	DefaultLogMaxAge = 30
)
