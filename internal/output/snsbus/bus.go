package snsbus

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	"eventrelay/internal/publisher"
)

// DefaultRegionEnv is the environment variable holding the target region.
const DefaultRegionEnv = "AWS_REGION"

// API is the subset of the SNS client used by the bus.
type API interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// ClientFactory creates an SNS client for a region.
type ClientFactory func(ctx context.Context, region string) (API, error)

// Config configures the SNS bus.
type Config struct {
	RegionEnv string
	Endpoint  string
}

// Bus publishes messages to SNS topics. A new client is created for every
// send using the region found in the environment at that moment.
type Bus struct {
	regionEnv string
	newClient ClientFactory
}

// Option customizes a Bus.
type Option func(*Bus)

// WithClientFactory replaces the SNS client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(b *Bus) {
		b.newClient = f
	}
}

// New creates an SNS bus.
func New(cfg Config, opts ...Option) *Bus {
	if strings.TrimSpace(cfg.RegionEnv) == "" {
		cfg.RegionEnv = DefaultRegionEnv
	}
	b := &Bus{
		regionEnv: cfg.RegionEnv,
		newClient: defaultClientFactory(cfg.Endpoint),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func defaultClientFactory(endpoint string) ClientFactory {
	return func(ctx context.Context, region string) (API, error) {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		return sns.NewFromConfig(awsCfg, func(o *sns.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		}), nil
	}
}

// Send publishes one message and returns the SNS message id.
func (b *Bus) Send(ctx context.Context, msg publisher.Message) (string, error) {
	client, err := b.newClient(ctx, os.Getenv(b.regionEnv))
	if err != nil {
		return "", err
	}

	out, err := client.Publish(ctx, PublishInput(msg))
	if err != nil {
		return "", fmt.Errorf("sns publish failed: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// PublishInput maps a message to the SNS request.
func PublishInput(msg publisher.Message) *sns.PublishInput {
	input := &sns.PublishInput{
		Message: aws.String(string(msg.Body)),
	}
	if msg.Topic != "" {
		input.TopicArn = aws.String(msg.Topic)
	}
	if len(msg.Attributes) > 0 {
		input.MessageAttributes = make(map[string]types.MessageAttributeValue, len(msg.Attributes))
		for name, attr := range msg.Attributes {
			input.MessageAttributes[name] = types.MessageAttributeValue{
				DataType:    aws.String(attr.DataType),
				StringValue: aws.String(attr.StringValue),
			}
		}
	}
	return input
}

// Name returns the bus name.
func (b *Bus) Name() string { return "sns" }

// Close releases resources.
func (b *Bus) Close() error { return nil }
