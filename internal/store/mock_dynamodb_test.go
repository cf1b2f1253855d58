package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// mockDynamo is a small multi-table in-memory DynamoDB for unit tests. It
// understands attribute_exists/attribute_not_exists conditions on the
// partition key and pages Scan results when pageSize is set.
type mockDynamo struct {
	mu     sync.Mutex
	keys   map[string]string // table -> partition key attribute
	tables map[string]map[string]map[string]types.AttributeValue
	order  map[string][]string

	pageSize      int
	transactCalls int
	scanCalls     int
	updateCalls   int
	failTransact  error
	failUpdate    error
}

func newMockDynamo(t DynamoTables) *mockDynamo {
	m := &mockDynamo{
		keys: map[string]string{
			t.Customers: "customer_id",
			t.Emails:    "email",
			t.Products:  "product_id",
			t.Orders:    "order_id",
		},
		tables: map[string]map[string]map[string]types.AttributeValue{},
		order:  map[string][]string{},
	}
	for table := range m.keys {
		m.tables[table] = map[string]map[string]types.AttributeValue{}
	}
	return m
}

func (m *mockDynamo) keyOf(table string, item map[string]types.AttributeValue) (string, error) {
	attr, ok := m.keys[table]
	if !ok {
		return "", fmt.Errorf("unknown table %s", table)
	}
	v, ok := item[attr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("missing key %s", attr)
	}
	return v.Value, nil
}

func (m *mockDynamo) conditionHolds(table, key string, cond *string) bool {
	if cond == nil {
		return true
	}
	_, exists := m.tables[table][key]
	switch {
	case strings.HasPrefix(*cond, "attribute_not_exists("):
		return !exists
	case strings.HasPrefix(*cond, "attribute_exists("):
		return exists
	}
	return true
}

func (m *mockDynamo) put(table, key string, item map[string]types.AttributeValue) {
	if _, ok := m.tables[table][key]; !ok {
		m.order[table] = append(m.order[table], key)
	}
	m.tables[table][key] = item
}

func (m *mockDynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, err := m.keyOf(*params.TableName, params.Item)
	if err != nil {
		return nil, err
	}
	if !m.conditionHolds(*params.TableName, key, params.ConditionExpression) {
		return nil, &types.ConditionalCheckFailedException{}
	}
	m.put(*params.TableName, key, params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, err := m.keyOf(*params.TableName, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := m.tables[*params.TableName][key]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

// UpdateItem understands "SET a = a + :n" / "SET a = :v" updates and
// conditions made of key existence checks and "attr < :v" joined by AND.
func (m *mockDynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateCalls++
	if m.failUpdate != nil {
		return nil, m.failUpdate
	}
	table := *params.TableName
	key, err := m.keyOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := m.tables[table][key]

	if params.ConditionExpression != nil {
		for _, clause := range strings.Split(*params.ConditionExpression, " AND ") {
			clause := clause
			if strings.HasPrefix(clause, "attribute_") {
				if !m.conditionHolds(table, key, &clause) {
					return nil, &types.ConditionalCheckFailedException{}
				}
				continue
			}
			attr, ref, ok := strings.Cut(clause, " < ")
			if !ok {
				return nil, fmt.Errorf("unsupported condition %q", clause)
			}
			if !exists || numberOf(item[attr]) >= numberOf(params.ExpressionAttributeValues[ref]) {
				return nil, &types.ConditionalCheckFailedException{}
			}
		}
	}

	updated := make(map[string]types.AttributeValue, len(item)+1)
	for k, v := range item {
		updated[k] = v
	}
	updated[m.keys[table]] = params.Key[m.keys[table]]
	for _, assign := range strings.Split(strings.TrimPrefix(*params.UpdateExpression, "SET "), ", ") {
		attr, rhs, _ := strings.Cut(assign, " = ")
		if base, ref, isAdd := strings.Cut(rhs, " + "); isAdd {
			sum := numberOf(updated[base]) + numberOf(params.ExpressionAttributeValues[ref])
			updated[attr] = &types.AttributeValueMemberN{Value: strconv.Itoa(sum)}
			continue
		}
		updated[attr] = params.ExpressionAttributeValues[rhs]
	}
	m.put(table, key, updated)

	out := &dyn.UpdateItemOutput{}
	if params.ReturnValues == types.ReturnValueAllNew {
		out.Attributes = updated
	}
	return out, nil
}

func numberOf(v types.AttributeValue) int {
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0
	}
	i, _ := strconv.Atoi(n.Value)
	return i
}

func (m *mockDynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactCalls++
	if m.failTransact != nil {
		return nil, m.failTransact
	}
	if len(params.TransactItems) > maxTransactItems {
		return nil, errors.New("ValidationException: too many items")
	}

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	failed := false
	keys := make([]string, len(params.TransactItems))
	for i, it := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: awsString("None")}
		if it.Put == nil {
			return nil, errors.New("mock supports Put only")
		}
		key, err := m.keyOf(*it.Put.TableName, it.Put.Item)
		if err != nil {
			return nil, err
		}
		keys[i] = key
		if !m.conditionHolds(*it.Put.TableName, key, it.Put.ConditionExpression) {
			reasons[i] = types.CancellationReason{Code: awsString("ConditionalCheckFailed")}
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{CancellationReasons: reasons}
	}
	for i, it := range params.TransactItems {
		m.put(*it.Put.TableName, keys[i], it.Put.Item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (m *mockDynamo) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanCalls++
	table := *params.TableName
	keys := m.order[table]

	start := 0
	if len(params.ExclusiveStartKey) > 0 {
		last, err := m.keyOf(table, params.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		for i, k := range keys {
			if k == last {
				start = i + 1
				break
			}
		}
	}
	end := len(keys)
	if m.pageSize > 0 && start+m.pageSize < end {
		end = start + m.pageSize
	}

	out := &dyn.ScanOutput{}
	for _, k := range keys[start:end] {
		out.Items = append(out.Items, m.tables[table][k])
	}
	if end < len(keys) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			m.keys[table]: &types.AttributeValueMemberS{Value: keys[end-1]},
		}
	}
	return out, nil
}
