// Package runs records job triggers in DynamoDB so a redelivered SQS message
// does not run the same job twice.
package runs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-crm-backend/internal/aws"
)

// DefaultTTL is how long run records are kept before DynamoDB expires them.
const DefaultTTL = 7 * 24 * time.Hour

// Ledger tracks job runs keyed by trigger id.
type Ledger struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration
	nowFunc   func() time.Time
}

// NewLedger returns a Ledger over tableName. A zero ttlWindow uses DefaultTTL.
func NewLedger(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Ledger {
	if ttlWindow <= 0 {
		ttlWindow = DefaultTTL
	}
	return &Ledger{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

// Begin claims triggerID for job.
// Returns (true, nil) when the caller should run the job: the trigger is new,
// or its previous attempt FAILED.
// Returns (false, nil) when the trigger is already RUNNING or SUCCEEDED.
func (l *Ledger) Begin(ctx context.Context, triggerID, job string) (bool, error) {
	now := l.nowFunc()
	rec := RunRecord{
		TriggerID: triggerID,
		Job:       job,
		Status:    StatusRunning,
		Attempts:  1,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(l.ttlWindow).Unix(),
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return false, fmt.Errorf("marshal run record: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &l.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(trigger_id)"),
	})
	if err == nil {
		return true, nil
	}
	if !isConditionFailed(err) {
		return false, fmt.Errorf("put run record: %w", err)
	}
	return l.retryFailed(ctx, triggerID)
}

// retryFailed moves a FAILED record back to RUNNING. Losing the condition
// means another delivery owns the trigger or it already succeeded.
func (l *Ledger) retryFailed(ctx context.Context, triggerID string) (bool, error) {
	_, err := l.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:           &l.tableName,
		Key:                 l.key(triggerID),
		ConditionExpression: awsString("#s = :failed"),
		UpdateExpression:    awsString("SET #s = :running, attempts = attempts + :one, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":failed":  &types.AttributeValueMemberS{Value: StatusFailed},
			":running": &types.AttributeValueMemberS{Value: StatusRunning},
			":one":     &types.AttributeValueMemberN{Value: "1"},
			":ua":      &types.AttributeValueMemberS{Value: l.nowFunc().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		if isConditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("retry run record: %w", err)
	}
	return true, nil
}

// Get returns the record for triggerID, or (nil, nil) when there is none.
func (l *Ledger) Get(ctx context.Context, triggerID string) (*RunRecord, error) {
	out, err := l.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &l.tableName,
		Key:            l.key(triggerID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get run record: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var rec RunRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal run record: %w", err)
	}
	return &rec, nil
}

// MarkSucceeded sets the record to SUCCEEDED.
func (l *Ledger) MarkSucceeded(ctx context.Context, triggerID string) error {
	return l.finish(ctx, triggerID, StatusSucceeded, "")
}

// MarkFailed sets the record to FAILED and stores note, usually the job error.
func (l *Ledger) MarkFailed(ctx context.Context, triggerID, note string) error {
	return l.finish(ctx, triggerID, StatusFailed, note)
}

func (l *Ledger) finish(ctx context.Context, triggerID, status, note string) error {
	_, err := l.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName:        &l.tableName,
		Key:              l.key(triggerID),
		UpdateExpression: awsString("SET #s = :status, note = :n, updated_at = :ua"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":status": &types.AttributeValueMemberS{Value: status},
			":n":      &types.AttributeValueMemberS{Value: note},
			":ua":     &types.AttributeValueMemberS{Value: l.nowFunc().Format(time.RFC3339Nano)},
		},
	})
	if err != nil {
		return fmt.Errorf("update run record (%s): %w", status, err)
	}
	return nil
}

func (l *Ledger) key(triggerID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"trigger_id": &types.AttributeValueMemberS{Value: triggerID},
	}
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }
func awsBool(b bool) *bool       { return &b }

