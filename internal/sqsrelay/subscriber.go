package sqsrelay

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/keepmind9/slackline/internal/logger"
	"github.com/keepmind9/slackline/pkg/constants"
	"github.com/sirupsen/logrus"
)

// QueueAPI is the part of the SQS client the subscriber uses
type QueueAPI interface {
	GetQueueUrl(ctx context.Context, params *sqs.GetQueueUrlInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueUrlOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// ClientConfig holds the AWS settings of the relay
type ClientConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// NewClient builds an SQS client. Static keys are used when both are set,
// the default AWS credential chain otherwise.
func NewClient(ctx context.Context, cfg ClientConfig) (*sqs.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg), nil
}

// Subscriber long-polls a queue and delivers its messages
type Subscriber struct {
	api       QueueAPI
	sender    *Sender
	queueName string
	backoff   time.Duration
}

// NewSubscriber creates a subscriber for the named queue
func NewSubscriber(api QueueAPI, sender *Sender, queueName string) *Subscriber {
	return &Subscriber{
		api:       api,
		sender:    sender,
		queueName: queueName,
		backoff:   constants.SQSErrorBackoff,
	}
}

// Listen polls until ctx is cancelled. Every received message is deleted once
// a delivery was attempted, so malformed payloads do not come back.
func (s *Subscriber) Listen(ctx context.Context) error {
	out, err := s.api.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: aws.String(s.queueName)})
	if err != nil {
		return fmt.Errorf("failed to resolve queue %s: %w", s.queueName, err)
	}
	queueURL := aws.ToString(out.QueueUrl)

	logger.WithField("queue", s.queueName).Info("sqs-relay-listening")

	for {
		if ctx.Err() != nil {
			logger.WithField("queue", s.queueName).Info("sqs-relay-stopped")
			return nil
		}

		resp, err := s.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(queueURL),
			MaxNumberOfMessages: constants.SQSMaxMessages,
			WaitTimeSeconds:     constants.SQSWaitTimeSeconds,
		})
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.WithFields(logrus.Fields{
				"queue": s.queueName,
				"error": err,
			}).Warn("sqs-receive-failed")
			s.wait(ctx)
			continue
		}

		for _, msg := range resp.Messages {
			s.handle(ctx, queueURL, msg)
		}
	}
}

func (s *Subscriber) handle(ctx context.Context, queueURL string, msg types.Message) {
	fields := logrus.Fields{"message_id": aws.ToString(msg.MessageId)}

	if _, err := s.sender.Deliver(aws.ToString(msg.Body)); err != nil {
		fields["error"] = err
		logger.WithFields(fields).Warn("sqs-relay-delivery-failed")
	}

	if _, err := s.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	}); err != nil {
		fields["error"] = err
		logger.WithFields(fields).Warn("sqs-delete-failed")
	}
}

func (s *Subscriber) wait(ctx context.Context) {
	timer := time.NewTimer(s.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
