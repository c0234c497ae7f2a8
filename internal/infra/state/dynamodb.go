package state

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"harvester/internal/jobs"
	"harvester/internal/resilience/circuitbreaker"
	"harvester/internal/resilience/retry"
)

type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

func wrap(ctx context.Context, cb *circuitbreaker.CircuitBreaker, rc retry.Config, fn func() error) error {
	return retry.WithBackoff(ctx, rc, func() error {
		_, err := cb.Execute(func() (any, error) {
			return nil, fn()
		})
		return err
	})
}

// DynamoFeedTaskStore persists jobs.FeedTask in a DynamoDB table keyed by
// task_id, grounded on harvester/app/rss_processor.py's
// fetch_rss_tasks_from_dynamodb scan-with-filter pagination.
type DynamoFeedTaskStore struct {
	client         dynamoAPI
	table          string
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewDynamoFeedTaskStore(client *dynamodb.Client, table string) *DynamoFeedTaskStore {
	return &DynamoFeedTaskStore{
		client:         client,
		table:          table,
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("dynamodb-feed-tasks")),
		retryConfig:    retry.DBConfig(),
	}
}

func (s *DynamoFeedTaskStore) ListByType(ctx context.Context, taskType string) ([]jobs.FeedTask, error) {
	var tasks []jobs.FeedTask
	var lastKey map[string]types.AttributeValue

	for {
		var out *dynamodb.ScanOutput
		err := wrap(ctx, s.circuitBreaker, s.retryConfig, func() error {
			var err error
			out, err = s.client.Scan(ctx, &dynamodb.ScanInput{
				TableName:                 aws.String(s.table),
				FilterExpression:          aws.String("task_type = :tt"),
				ExpressionAttributeValues: map[string]types.AttributeValue{":tt": &types.AttributeValueMemberS{Value: taskType}},
				ExclusiveStartKey:         lastKey,
			})
			if err != nil {
				return fmt.Errorf("dynamodb: scan feed tasks: %w", err)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		var page []jobs.FeedTask
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("dynamodb: unmarshal feed tasks: %w", err)
		}
		tasks = append(tasks, page...)

		if len(out.LastEvaluatedKey) == 0 {
			return tasks, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

func (s *DynamoFeedTaskStore) Get(ctx context.Context, taskID string) (jobs.FeedTask, error) {
	var task jobs.FeedTask
	err := wrap(ctx, s.circuitBreaker, s.retryConfig, func() error {
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.table),
			Key:       map[string]types.AttributeValue{"task_id": &types.AttributeValueMemberS{Value: taskID}},
		})
		if err != nil {
			return fmt.Errorf("dynamodb: get feed task %q: %w", taskID, err)
		}
		if out.Item == nil {
			return fmt.Errorf("dynamodb: feed task %q: %w", taskID, ErrNotFound)
		}
		return attributevalue.UnmarshalMap(out.Item, &task)
	})
	return task, err
}

func (s *DynamoFeedTaskStore) Put(ctx context.Context, task jobs.FeedTask) error {
	return wrap(ctx, s.circuitBreaker, s.retryConfig, func() error {
		item, err := attributevalue.MarshalMap(task)
		if err != nil {
			return fmt.Errorf("dynamodb: marshal feed task: %w", err)
		}
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: item})
		if err != nil {
			return fmt.Errorf("dynamodb: put feed task: %w", err)
		}
		return nil
	})
}

// Create inserts task atomically, using a ConditionExpression rather than
// a Get-then-Put pair so two concurrent requests for the same task_id
// can't both observe "not found" and both write. A ConditionalCheckFailedException
// surfaces as ErrAlreadyExists and is not retried, since retrying a failed
// condition check can never succeed.
func (s *DynamoFeedTaskStore) Create(ctx context.Context, task jobs.FeedTask) error {
	item, err := attributevalue.MarshalMap(task)
	if err != nil {
		return fmt.Errorf("dynamodb: marshal feed task: %w", err)
	}

	err = wrap(ctx, s.circuitBreaker, s.retryConfig, func() error {
		_, putErr := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.table),
			Item:                item,
			ConditionExpression: aws.String("attribute_not_exists(task_id)"),
		})
		if putErr != nil {
			var condErr *types.ConditionalCheckFailedException
			if errors.As(putErr, &condErr) {
				// Not retryable: retry.IsRetryable doesn't recognize this
				// error type and WithBackoff aborts on the first attempt,
				// but wrap explicitly so the intent reads at the call site.
				return fmt.Errorf("dynamodb: feed task %q: %w", task.TaskID, ErrAlreadyExists)
			}
			return fmt.Errorf("dynamodb: create feed task: %w", putErr)
		}
		return nil
	})
	return err
}

// DynamoMarkerStore persists jobs.ProcessedURLMarker in a DynamoDB table
// keyed by (task_id, url_hash), relying on the table's native TTL attribute
// for expiry rather than an explicit vacuum (grounded on
// harvester/app/rss_processor.py's get_processed_urls/mark_url_as_processed).
type DynamoMarkerStore struct {
	client         dynamoAPI
	table          string
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewDynamoMarkerStore(client *dynamodb.Client, table string) *DynamoMarkerStore {
	return &DynamoMarkerStore{
		client:         client,
		table:          table,
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("dynamodb-markers")),
		retryConfig:    retry.DBConfig(),
	}
}

func (s *DynamoMarkerStore) IsProcessed(ctx context.Context, taskID, url string) (bool, error) {
	found := false
	err := wrap(ctx, s.circuitBreaker, s.retryConfig, func() error {
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.table),
			Key: map[string]types.AttributeValue{
				"task_id":  &types.AttributeValueMemberS{Value: taskID},
				"url_hash": &types.AttributeValueMemberS{Value: jobs.URLHashHex(url)},
			},
		})
		if err != nil {
			return fmt.Errorf("dynamodb: get marker: %w", err)
		}
		found = out.Item != nil
		return nil
	})
	return found, err
}

func (s *DynamoMarkerStore) MarkProcessed(ctx context.Context, marker jobs.ProcessedURLMarker) error {
	return wrap(ctx, s.circuitBreaker, s.retryConfig, func() error {
		item, err := attributevalue.MarshalMap(marker)
		if err != nil {
			return fmt.Errorf("dynamodb: marshal marker: %w", err)
		}
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: item})
		if err != nil {
			return fmt.Errorf("dynamodb: put marker: %w", err)
		}
		return nil
	})
}

// DeleteExpired is a no-op for DynamoDB: the table's native TTL attribute
// reclaims expired markers asynchronously, so the vacuum job skips this
// adapter. It exists only to satisfy MarkerStore for adapters that share
// the vacuum code path.
func (s *DynamoMarkerStore) DeleteExpired(ctx context.Context, taskID string, now int64) (int, error) {
	return 0, nil
}

// DynamoCrawlStateStore persists jobs.CrawlStateRecord keyed by url_hash,
// grounded on harvester/app/dynamodb.py's store_crawled_website_in_dynamodb.
type DynamoCrawlStateStore struct {
	client         dynamoAPI
	table          string
	circuitBreaker *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewDynamoCrawlStateStore(client *dynamodb.Client, table string) *DynamoCrawlStateStore {
	return &DynamoCrawlStateStore{
		client:         client,
		table:          table,
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig("dynamodb-crawl-state")),
		retryConfig:    retry.DBConfig(),
	}
}

func (s *DynamoCrawlStateStore) Put(ctx context.Context, record jobs.CrawlStateRecord) error {
	return wrap(ctx, s.circuitBreaker, s.retryConfig, func() error {
		item, err := attributevalue.MarshalMap(record)
		if err != nil {
			return fmt.Errorf("dynamodb: marshal crawl state: %w", err)
		}
		_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: aws.String(s.table), Item: item})
		if err != nil {
			return fmt.Errorf("dynamodb: put crawl state: %w", err)
		}
		return nil
	})
}

func (s *DynamoCrawlStateStore) Get(ctx context.Context, urlHash string) (jobs.CrawlStateRecord, error) {
	var record jobs.CrawlStateRecord
	err := wrap(ctx, s.circuitBreaker, s.retryConfig, func() error {
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName: aws.String(s.table),
			Key:       map[string]types.AttributeValue{"url_hash": &types.AttributeValueMemberS{Value: urlHash}},
		})
		if err != nil {
			return fmt.Errorf("dynamodb: get crawl state %q: %w", urlHash, err)
		}
		if out.Item == nil {
			return fmt.Errorf("dynamodb: crawl state %q: %w", urlHash, ErrNotFound)
		}
		return attributevalue.UnmarshalMap(out.Item, &record)
	})
	return record, err
}

// DeleteExpired is a no-op; see DynamoMarkerStore.DeleteExpired.
func (s *DynamoCrawlStateStore) DeleteExpired(ctx context.Context, now int64) (int, error) {
	return 0, nil
}
