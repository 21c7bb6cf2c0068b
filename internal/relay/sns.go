package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"

	"github.com/lalithlochan/sentinel/internal/notify"
)

// SNSPublisher is the part of the SNS client the sink uses.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSink publishes notifications to a topic. The kind travels as a
// message attribute so subscriptions can filter on it.
type SNSSink struct {
	client   SNSPublisher
	topicARN string
	logger   *zap.Logger
}

func NewSNSSink(client SNSPublisher, topicARN string, logger *zap.Logger) *SNSSink {
	return &SNSSink{client: client, topicARN: topicARN, logger: logger}
}

// NewSNSSinkFromConfig builds the SDK client from a loaded AWS config.
func NewSNSSinkFromConfig(cfg aws.Config, topicARN string, logger *zap.Logger) *SNSSink {
	return NewSNSSink(sns.NewFromConfig(cfg), topicARN, logger)
}

func (s *SNSSink) Name() string { return "sns" }

func (s *SNSSink) Deliver(ctx context.Context, n notify.Notification) error {
	payload, err := json.Marshal(newMessage(n))
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	input := &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(subject(n)),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"kind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(n.Kind)),
			},
		},
	}

	result, err := s.client.Publish(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}

	s.logger.Debug("notification published to sns",
		zap.String("notification_id", n.ID),
		zap.String("message_id", aws.ToString(result.MessageId)),
	)
	return nil
}

// subject is capped at the 100 characters SNS accepts.
func subject(n notify.Notification) string {
	s := fmt.Sprintf("[%s] %s", n.Kind, n.Title)
	if r := []rune(s); len(r) > 100 {
		s = string(r[:100])
	}
	return s
}
