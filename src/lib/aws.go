package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snsTypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

func awsGetSdkConfig(ctx context.Context) (*aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		log.Printf("Error loading default config: %s\n", err.Error())
		return nil, err
	}
	return &cfg, nil
}

func AWSGetSNSClient(ctx context.Context) *sns.Client {
	cfg, err := awsGetSdkConfig(ctx)
	if err != nil {
		log.Printf("Failed to initialize SNS client: %s\n", err.Error())
		return nil
	}
	client := sns.NewFromConfig(*cfg)
	return client
}

// GetTopicArn builds the ARN of a topic owned by AWS_ACCOUNT_ID in AWS_REGION.
func GetTopicArn(topic string) string {
	return fmt.Sprintf("arn:aws:sns:%s:%s:%s", os.Getenv("AWS_REGION"), os.Getenv("AWS_ACCOUNT_ID"), topic)
}

// SNSPublisher wraps the subset of the SNS API used to fan out booking events.
type SNSPublisher struct {
	Topic string
	inner *sns.Client
}

func NewSNSPublisher(ctx context.Context, topic string) *SNSPublisher {
	inner := AWSGetSNSClient(ctx)
	if inner == nil {
		return nil
	}
	return &SNSPublisher{Topic: topic, inner: inner}
}

func (s *SNSPublisher) Publish(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.inner.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(GetTopicArn(s.Topic)),
		Message:  aws.String(string(body)),
		MessageAttributes: map[string]snsTypes.MessageAttributeValue{
			"event_type": {
				DataType:    aws.String("String"),
				StringValue: aws.String(eventType),
			},
		},
	})
	if err != nil {
		log.Printf("[SNS] Error publishing to %s: %s\n", s.Topic, err.Error())
	}
	return err
}
