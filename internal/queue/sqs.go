package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/jnst/user-notification-service/internal/config"
)

const (
	subjectAttribute = "subject"
	localstackKey    = "test"
)

// sqsAPI is the subset of *sqs.Client used here.
type sqsAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSClient implements Client and Publisher on Amazon SQS.
type SQSClient struct {
	api      sqsAPI
	queueURL string
}

// NewSQSClient builds an SQS client for cfg. When LocalstackEndpoint is set,
// requests go to that endpoint with static test credentials.
func NewSQSClient(ctx context.Context, cfg config.QueueConfig) (*SQSClient, error) {
	if cfg.SQSQueueURL == "" {
		return nil, errors.New("sqs: queue url is empty")
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.LocalstackEndpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(localstackKey, localstackKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("sqs: load aws config: %w", err)
	}

	api := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.LocalstackEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.LocalstackEndpoint)
		}
	})

	return newSQSClient(api, cfg.SQSQueueURL), nil
}

func newSQSClient(api sqsAPI, queueURL string) *SQSClient {
	return &SQSClient{api: api, queueURL: queueURL}
}

// Receive long-polls for up to opts.MaxMessages messages.
func (c *SQSClient) Receive(ctx context.Context, opts ReceiveOptions) ([]Message, error) {
	out, err := c.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:                    aws.String(c.queueURL),
		MaxNumberOfMessages:         int32(opts.MaxMessages),
		VisibilityTimeout:           seconds(opts.VisibilityTimeout),
		WaitTimeSeconds:             seconds(opts.WaitTime),
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{types.MessageSystemAttributeNameApproximateReceiveCount},
		MessageAttributeNames:       []string{"All"},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs: receive: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		messages = append(messages, fromSQS(m))
	}

	return messages, nil
}

// Delete acknowledges a message by its receipt handle.
func (c *SQSClient) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.api.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs: delete: %w", err)
	}

	return nil
}

// Publish sends body with the subject as a message attribute.
func (c *SQSClient) Publish(ctx context.Context, subject, body string) (string, error) {
	out, err := c.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			subjectAttribute: {DataType: aws.String("String"), StringValue: aws.String(subject)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("sqs: send: %w", err)
	}

	return aws.ToString(out.MessageId), nil
}

func fromSQS(m types.Message) Message {
	msg := Message{
		ID:            aws.ToString(m.MessageId),
		ReceiptHandle: aws.ToString(m.ReceiptHandle),
		Body:          aws.ToString(m.Body),
		ReceiveCount:  1,
		Attributes:    make(map[string]string, len(m.MessageAttributes)),
	}

	if v, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			msg.ReceiveCount = n
		}
	}

	for k, v := range m.MessageAttributes {
		if v.StringValue != nil {
			msg.Attributes[k] = *v.StringValue
		}
	}

	return msg
}

func seconds(d time.Duration) int32 {
	return int32(d / time.Second)
}
