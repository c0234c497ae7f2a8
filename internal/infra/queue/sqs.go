package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"harvester/internal/resilience/circuitbreaker"
	"harvester/internal/resilience/retry"
)

// parseRedrivePolicy best-effort decodes the JSON-encoded RedrivePolicy
// attribute; a malformed policy is reported as absent rather than erroring
// the whole attributes call.
func parseRedrivePolicy(raw string) *RedrivePolicy {
	var p RedrivePolicy
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil
	}
	return &p
}

// sqsAPI is the subset of *sqs.Client this adapter depends on, narrowed for
// testability the way the teacher narrows its HTTP client dependencies.
type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	SendMessageBatch(ctx context.Context, params *sqs.SendMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageBatchOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQSQueue is a Queue backed by Amazon SQS, mirroring the retry/circuit
// breaker wrapping the teacher applies to every outbound call
// (internal/infra/summarizer.Claude, internal/infra/scraper.RSSFetcher).
type SQSQueue struct {
	client         sqsAPI
	queueURL       string
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

// NewSQSQueue builds a queue adapter for the given queue URL.
func NewSQSQueue(client *sqs.Client, queueURL string) *SQSQueue {
	return &SQSQueue{
		client:         client,
		queueURL:       queueURL,
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("sqs")),
		retryConfig:    retry.DefaultConfig(),
	}
}

func (q *SQSQueue) call(ctx context.Context, fn func() error) error {
	return retry.WithBackoff(ctx, q.retryConfig, func() error {
		_, err := q.circuitBreaker.Execute(func() (any, error) {
			return nil, fn()
		})
		return err
	})
}

func attrsToMessageAttributes(attrs map[string]string) map[string]types.MessageAttributeValue {
	if len(attrs) == 0 {
		return nil
	}
	out := make(map[string]types.MessageAttributeValue, len(attrs))
	for k, v := range attrs {
		out[k] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(v),
		}
	}
	return out
}

func (q *SQSQueue) Send(ctx context.Context, body string, attrs map[string]string, delay time.Duration) error {
	return q.call(ctx, func() error {
		_, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:          aws.String(q.queueURL),
			MessageBody:       aws.String(body),
			MessageAttributes: attrsToMessageAttributes(attrs),
			DelaySeconds:      int32(delay / time.Second),
		})
		if err != nil {
			return fmt.Errorf("sqs: send message: %w", err)
		}
		return nil
	})
}

// SendBatch sends entries in chunks of 10, mirroring the Python original's
// send_messages_batch chunking (core/sqs_utils.py).
func (q *SQSQueue) SendBatch(ctx context.Context, entries []SendEntry) error {
	const maxBatch = 10
	for start := 0; start < len(entries); start += maxBatch {
		end := min(start+maxBatch, len(entries))
		chunk := entries[start:end]

		err := q.call(ctx, func() error {
			batchEntries := make([]types.SendMessageBatchRequestEntry, len(chunk))
			for i, e := range chunk {
				batchEntries[i] = types.SendMessageBatchRequestEntry{
					Id:                aws.String(strconv.Itoa(i)),
					MessageBody:       aws.String(e.Body),
					MessageAttributes: attrsToMessageAttributes(e.MessageAttributes),
					DelaySeconds:      int32(e.Delay / time.Second),
				}
			}
			out, err := q.client.SendMessageBatch(ctx, &sqs.SendMessageBatchInput{
				QueueUrl: aws.String(q.queueURL),
				Entries:  batchEntries,
			})
			if err != nil {
				return fmt.Errorf("sqs: send message batch: %w", err)
			}
			if len(out.Failed) > 0 {
				return fmt.Errorf("sqs: send message batch: %d entries failed", len(out.Failed))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxNumber int, waitTime, visibilityTimeout time.Duration) ([]Message, error) {
	maxNumber = ClampMaxNumber(maxNumber)
	waitTime = ClampWaitTime(waitTime)

	var messages []Message
	err := q.call(ctx, func() error {
		out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:              aws.String(q.queueURL),
			MaxNumberOfMessages:   int32(maxNumber),
			WaitTimeSeconds:       int32(waitTime / time.Second),
			VisibilityTimeout:     int32(visibilityTimeout / time.Second),
			MessageAttributeNames: []string{"All"},
			AttributeNames:        []types.QueueAttributeName{types.QueueAttributeNameAll},
		})
		if err != nil {
			return fmt.Errorf("sqs: receive message: %w", err)
		}
		messages = make([]Message, len(out.Messages))
		for i, m := range out.Messages {
			attrs := make(map[string]string, len(m.Attributes))
			for k, v := range m.Attributes {
				attrs[k] = v
			}
			msgAttrs := make(map[string]string, len(m.MessageAttributes))
			for k, v := range m.MessageAttributes {
				if v.StringValue != nil {
					msgAttrs[k] = *v.StringValue
				}
			}
			messages[i] = Message{
				ID:                aws.ToString(m.MessageId),
				Body:              aws.ToString(m.Body),
				ReceiptHandle:     aws.ToString(m.ReceiptHandle),
				Attributes:        attrs,
				MessageAttributes: msgAttrs,
			}
		}
		return nil
	})
	return messages, err
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	return q.call(ctx, func() error {
		_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
			QueueUrl:      aws.String(q.queueURL),
			ReceiptHandle: aws.String(receiptHandle),
		})
		if err != nil {
			return fmt.Errorf("sqs: delete message: %w", err)
		}
		return nil
	})
}

// DeleteBatch deletes in chunks of 10, mirroring delete_messages_batch.
func (q *SQSQueue) DeleteBatch(ctx context.Context, receiptHandles []string) error {
	const maxBatch = 10
	for start := 0; start < len(receiptHandles); start += maxBatch {
		end := min(start+maxBatch, len(receiptHandles))
		chunk := receiptHandles[start:end]

		err := q.call(ctx, func() error {
			entries := make([]types.DeleteMessageBatchRequestEntry, len(chunk))
			for i, rh := range chunk {
				entries[i] = types.DeleteMessageBatchRequestEntry{
					Id:            aws.String(strconv.Itoa(i)),
					ReceiptHandle: aws.String(rh),
				}
			}
			out, err := q.client.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
				QueueUrl: aws.String(q.queueURL),
				Entries:  entries,
			})
			if err != nil {
				return fmt.Errorf("sqs: delete message batch: %w", err)
			}
			if len(out.Failed) > 0 {
				return fmt.Errorf("sqs: delete message batch: %d entries failed", len(out.Failed))
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (q *SQSQueue) ExtendVisibility(ctx context.Context, receiptHandle string, timeout time.Duration) error {
	return q.call(ctx, func() error {
		_, err := q.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
			QueueUrl:          aws.String(q.queueURL),
			ReceiptHandle:     aws.String(receiptHandle),
			VisibilityTimeout: int32(timeout / time.Second),
		})
		if err != nil {
			return fmt.Errorf("sqs: change message visibility: %w", err)
		}
		return nil
	})
}

func (q *SQSQueue) Attributes(ctx context.Context) (Attributes, error) {
	var result Attributes
	err := q.call(ctx, func() error {
		out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
			QueueUrl:       aws.String(q.queueURL),
			AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameAll},
		})
		if err != nil {
			return fmt.Errorf("sqs: get queue attributes: %w", err)
		}
		result = parseQueueAttributes(q.queueURL, out.Attributes)
		return nil
	})
	return result, err
}

func parseQueueAttributes(queueURL string, raw map[string]string) Attributes {
	atoi := func(key string) int {
		v, err := strconv.Atoi(raw[key])
		if err != nil {
			return 0
		}
		return v
	}
	seconds := func(key string) time.Duration {
		return time.Duration(atoi(key)) * time.Second
	}

	result := Attributes{
		QueueURL:                            queueURL,
		QueueARN:                            raw[string(types.QueueAttributeNameQueueArn)],
		ApproximateNumberOfMessages:         atoi(string(types.QueueAttributeNameApproximateNumberOfMessages)),
		ApproximateNumberOfMessagesInFlight: atoi(string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)),
		ApproximateNumberOfMessagesDelayed:  atoi(string(types.QueueAttributeNameApproximateNumberOfMessagesDelayed)),
		VisibilityTimeout:                   seconds(string(types.QueueAttributeNameVisibilityTimeout)),
		MessageRetentionPeriod:              seconds(string(types.QueueAttributeNameMessageRetentionPeriod)),
		DelaySeconds:                        seconds(string(types.QueueAttributeNameDelaySeconds)),
		ReceiveMessageWaitTime:              seconds(string(types.QueueAttributeNameReceiveMessageWaitTimeSeconds)),
	}
	if raw[string(types.QueueAttributeNameRedrivePolicy)] != "" {
		result.RedrivePolicy = parseRedrivePolicy(raw[string(types.QueueAttributeNameRedrivePolicy)])
	}
	return result
}
