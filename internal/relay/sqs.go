package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/notify"
)

// SQSSender is the part of the SQS client the sink uses.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSink enqueues notifications for downstream consumers.
type SQSSink struct {
	client   SQSSender
	queueURL string
	logger   *zap.Logger
}

func NewSQSSink(client SQSSender, queueURL string, logger *zap.Logger) *SQSSink {
	return &SQSSink{client: client, queueURL: queueURL, logger: logger}
}

func NewSQSSinkFromConfig(cfg aws.Config, queueURL string, logger *zap.Logger) *SQSSink {
	return NewSQSSink(sqs.NewFromConfig(cfg), queueURL, logger)
}

func (s *SQSSink) Name() string { return "sqs" }

func (s *SQSSink) Deliver(ctx context.Context, n notify.Notification) error {
	body, err := json.Marshal(newMessage(n))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(n.Kind)),
			},
		},
	}

	result, err := s.client.SendMessage(ctx, input)
	if err != nil {
		s.logger.Error("failed to send message to sqs",
			zap.Error(err),
			zap.String("notification_id", n.ID),
		)
		return fmt.Errorf("sqs send failed: %w", err)
	}

	s.logger.Debug("notification enqueued",
		zap.String("notification_id", n.ID),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)
	return nil
}
