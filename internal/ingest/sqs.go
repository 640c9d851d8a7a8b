package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// Receive defaults: long poll for up to 20s, take up to a full SQS batch
const (
	defaultWaitTimeSeconds = 20
	defaultBatchSize       = 10
)

// SQSAPI is the slice of the SQS client the consumer needs
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// Consumer long-polls an SQS queue and feeds batches to a Processor.
//
// Only messages the processor reports as succeeded are deleted; failed
// messages stay on the queue and come back after the visibility timeout,
// which is the redelivery mechanism.
type Consumer struct {
	client    SQSAPI
	queueURL  string
	processor *Processor
	logger    *slog.Logger
	waitTime  int32
	batchSize int32
}

// ConsumerConfig configures a Consumer
type ConsumerConfig struct {
	// Client is the SQS client (required)
	Client SQSAPI

	// QueueURL is the queue to consume (required)
	QueueURL string

	// Processor handles received batches (required)
	Processor *Processor

	// Logger receives consumer-level events. If nil, uses slog.Default().
	Logger *slog.Logger

	// WaitTimeSeconds is the long-poll duration (default: 20)
	WaitTimeSeconds int32

	// BatchSize is the maximum messages per receive (default: 10)
	BatchSize int32
}

// NewConsumer creates a queue consumer
func NewConsumer(cfg ConsumerConfig) *Consumer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	waitTime := cfg.WaitTimeSeconds
	if waitTime <= 0 {
		waitTime = defaultWaitTimeSeconds
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Consumer{
		client:    cfg.Client,
		queueURL:  cfg.QueueURL,
		processor: cfg.Processor,
		logger:    logger,
		waitTime:  waitTime,
		batchSize: batchSize,
	}
}

// Run consumes until ctx is cancelled. Returns nil on cancellation; any other
// return is a transport error that ended the loop.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		received, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: c.batchSize,
			WaitTimeSeconds:     c.waitTime,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to receive from queue: %w", err)
		}
		if len(received.Messages) == 0 {
			continue
		}

		messages := make([]Message, 0, len(received.Messages))
		receiptHandles := make(map[string]string, len(received.Messages))
		for _, m := range received.Messages {
			id := aws.ToString(m.MessageId)
			messages = append(messages, Message{
				ID:   id,
				Body: []byte(aws.ToString(m.Body)),
			})
			receiptHandles[id] = aws.ToString(m.ReceiptHandle)
		}

		failed := c.processor.ProcessBatch(ctx, messages)
		failedSet := make(map[string]bool, len(failed))
		for _, id := range failed {
			failedSet[id] = true
		}

		var deletions []types.DeleteMessageBatchRequestEntry
		for _, message := range messages {
			if failedSet[message.ID] {
				continue
			}
			deletions = append(deletions, types.DeleteMessageBatchRequestEntry{
				Id:            aws.String(message.ID),
				ReceiptHandle: aws.String(receiptHandles[message.ID]),
			})
		}
		if len(deletions) == 0 {
			continue
		}

		if _, err := c.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
			QueueUrl: aws.String(c.queueURL),
			Entries:  deletions,
		}); err != nil {
			// Deletion failure means redelivery of already-ingested messages.
			// The upsert is idempotent, so that is safe; log and move on.
			c.logger.Warn("failed to delete processed messages",
				slog.Int("count", len(deletions)),
				slog.String("error", err.Error()),
			)
		}
	}
}
