package hangoutstore

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// BreakerConfig holds the circuit breaker settings of a [BreakerClient].
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// The breaker trips once at least MinRequests were seen in the current
	// interval and the failure ratio reaches FailureThreshold.
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used by the CLI.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerClient decorates a DynamoDBClient with a circuit breaker. Condition
// failures are answers from a healthy table and never count as failures.
type BreakerClient struct {
	client DynamoDBClient
	cb     *gobreaker.CircuitBreaker
}

// NewBreakerClient wraps client. A nil logger disables state change logging.
func NewBreakerClient(client DynamoDBClient, cfg BreakerConfig, logger *zap.Logger) *BreakerClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isConditionFailure(err) || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerClient{client: client, cb: cb}
}

// State returns the current breaker state.
func (b *BreakerClient) State() gobreaker.State { return b.cb.State() }

func isConditionFailure(err error) bool {
	if isConditionalCheckFailed(err) {
		return true
	}
	return IsTransactionFailed(classifyError("", err))
}

func execute[T any](b *BreakerClient, call func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return call()
	})
	if err != nil {
		var zero T
		if out != nil {
			if typed, ok := out.(T); ok {
				return typed, err
			}
		}
		return zero, err
	}
	return out.(T), nil
}

func (b *BreakerClient) PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return execute(b, func() (*dynamodb.PutItemOutput, error) { return b.client.PutItem(ctx, params, optFns...) })
}

func (b *BreakerClient) BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	return execute(b, func() (*dynamodb.BatchWriteItemOutput, error) { return b.client.BatchWriteItem(ctx, params, optFns...) })
}

func (b *BreakerClient) Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return execute(b, func() (*dynamodb.QueryOutput, error) { return b.client.Query(ctx, params, optFns...) })
}

func (b *BreakerClient) GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return execute(b, func() (*dynamodb.GetItemOutput, error) { return b.client.GetItem(ctx, params, optFns...) })
}

func (b *BreakerClient) DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return execute(b, func() (*dynamodb.DeleteItemOutput, error) { return b.client.DeleteItem(ctx, params, optFns...) })
}

func (b *BreakerClient) UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return execute(b, func() (*dynamodb.UpdateItemOutput, error) { return b.client.UpdateItem(ctx, params, optFns...) })
}

func (b *BreakerClient) TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return execute(b, func() (*dynamodb.TransactWriteItemsOutput, error) {
		return b.client.TransactWriteItems(ctx, params, optFns...)
	})
}

var _ DynamoDBClient = (*BreakerClient)(nil)
