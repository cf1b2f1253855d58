package runs

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ledgerMock is a small in-memory table keyed by trigger_id. UpdateItem
// understands the "SET a = :x, b = b + :y" and "#n = :v" shapes the ledger uses.
type ledgerMock struct {
	mu          sync.Mutex
	table       map[string]map[string]types.AttributeValue
	putCalls    int
	getCalls    int
	updateCalls int
	putErr      error
}

func newLedgerMock() *ledgerMock {
	return &ledgerMock{table: map[string]map[string]types.AttributeValue{}}
}

func keyOf(m map[string]types.AttributeValue) (string, error) {
	s, ok := m["trigger_id"].(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("missing key")
	}
	return s.Value, nil
}

func (m *ledgerMock) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}
	k, err := keyOf(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && *params.ConditionExpression == "attribute_not_exists(trigger_id)" {
		if _, ok := m.table[k]; ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	m.table[k] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (m *ledgerMock) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table[k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (m *ledgerMock) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	k, err := keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.table[k]
	if params.ConditionExpression != nil {
		if !ok {
			return nil, &types.ConditionalCheckFailedException{}
		}
		lhs, rhs, _ := strings.Cut(*params.ConditionExpression, " = ")
		want := params.ExpressionAttributeValues[rhs].(*types.AttributeValueMemberS).Value
		got, _ := item[name(params, lhs)].(*types.AttributeValueMemberS)
		if got == nil || got.Value != want {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	if !ok {
		item = map[string]types.AttributeValue{"trigger_id": params.Key["trigger_id"]}
	}

	updated := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		updated[k] = v
	}
	for _, assign := range strings.Split(strings.TrimPrefix(*params.UpdateExpression, "SET "), ", ") {
		lhs, rhs, _ := strings.Cut(assign, " = ")
		attr := name(params, lhs)
		if base, inc, isAdd := strings.Cut(rhs, " + "); isAdd {
			cur, _ := updated[name(params, base)].(*types.AttributeValueMemberN)
			n := 0
			if cur != nil {
				n, _ = strconv.Atoi(cur.Value)
			}
			d, _ := strconv.Atoi(params.ExpressionAttributeValues[inc].(*types.AttributeValueMemberN).Value)
			updated[attr] = &types.AttributeValueMemberN{Value: strconv.Itoa(n + d)}
			continue
		}
		updated[attr] = params.ExpressionAttributeValues[rhs]
	}
	m.table[k] = updated
	return &dyn.UpdateItemOutput{}, nil
}

func (m *ledgerMock) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	return nil, errors.New("not used by the ledger")
}

func (m *ledgerMock) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	return nil, errors.New("not used by the ledger")
}

func name(params *dyn.UpdateItemInput, ref string) string {
	if n, ok := params.ExpressionAttributeNames[ref]; ok {
		return n
	}
	return ref
}
