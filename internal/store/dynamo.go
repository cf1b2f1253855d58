package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/imrishuroy/go-crm-backend/internal/aws"
	"github.com/imrishuroy/go-crm-backend/internal/domain"
)

// maxTransactItems is the DynamoDB limit on items in one TransactWriteItems call.
const maxTransactItems = 100

// MaxTransactCustomers is the most customers one DynamoDB transaction can
// insert: each takes an email guard item and the customer item.
const MaxTransactCustomers = maxTransactItems / 2

// DynamoTables names the tables used by DynamoStore.
//
//	Customers: PK customer_id
//	Emails:    PK email (uniqueness guard, holds customer_id)
//	Products:  PK product_id
//	Orders:    PK order_id
type DynamoTables struct {
	Customers string
	Emails    string
	Products  string
	Orders    string
}

type customerItem struct {
	CustomerID string `dynamodbav:"customer_id"`
	Name       string `dynamodbav:"name"`
	Email      string `dynamodbav:"email"`
	Phone      string `dynamodbav:"phone"`
}

type emailItem struct {
	Email      string `dynamodbav:"email"`
	CustomerID string `dynamodbav:"customer_id"`
}

type productItem struct {
	ProductID string `dynamodbav:"product_id"`
	Name      string `dynamodbav:"name"`
	Price     string `dynamodbav:"price"` // decimal string, exact
	Stock     int    `dynamodbav:"stock"`
}

type orderItem struct {
	OrderID     string   `dynamodbav:"order_id"`
	CustomerID  string   `dynamodbav:"customer_id"`
	ProductIDs  []string `dynamodbav:"product_ids"`
	TotalAmount string   `dynamodbav:"total_amount"`
	OrderDate   string   `dynamodbav:"order_date"` // OrderDateLayout
}

// DynamoStore implements Repository on DynamoDB. Email uniqueness is enforced
// by a guard item in the Emails table written in the same transaction as the
// customer.
type DynamoStore struct {
	client  aws.DynamoDBAPI
	tables  DynamoTables
	tx      *dynamoTx
	workers int
}

var _ Repository = (*DynamoStore)(nil)

// NewDynamoStore returns a DynamoStore over the given tables.
func NewDynamoStore(client aws.DynamoDBAPI, tables DynamoTables) *DynamoStore {
	return &DynamoStore{
		client:  client,
		tables:  tables,
		workers: 8,
	}
}

func (s *DynamoStore) Close() error { return nil }

// dynamoTx buffers writes until the callback returns. Reads inside the
// transaction see committed data plus the buffered customers and products.
type dynamoTx struct {
	mu        sync.Mutex
	items     []types.TransactWriteItem
	onFail    []error // error reported when the matching item's condition fails
	index     map[string]int
	customers map[string]domain.Customer
	emails    map[string]string
	products  map[string]domain.Product
}

func newDynamoTx() *dynamoTx {
	return &dynamoTx{
		index:     map[string]int{},
		customers: map[string]domain.Customer{},
		emails:    map[string]string{},
		products:  map[string]domain.Product{},
	}
}

// add appends or, for a key already written in this transaction, replaces
// the pending write. DynamoDB rejects two operations on one item.
func (t *dynamoTx) add(key string, item types.TransactWriteItem, onFail error) error {
	if i, ok := t.index[key]; ok {
		t.items[i] = item
		t.onFail[i] = onFail
		return nil
	}
	if len(t.items) >= maxTransactItems {
		return ErrTransactionTooLarge
	}
	t.index[key] = len(t.items)
	t.items = append(t.items, item)
	t.onFail = append(t.onFail, onFail)
	return nil
}

func (s *DynamoStore) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	tx := newDynamoTx()
	txStore := &DynamoStore{client: s.client, tables: s.tables, tx: tx, workers: s.workers}
	if err := fn(ctx, txStore); err != nil {
		return err
	}
	if len(tx.items) == 0 {
		return nil
	}
	return s.transactWrite(ctx, tx.items, tx.onFail)
}

func (s *DynamoStore) transactWrite(ctx context.Context, items []types.TransactWriteItem, onFail []error) error {
	_, err := s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{TransactItems: items})
	if err == nil {
		return nil
	}
	var tce *types.TransactionCanceledException
	if errors.As(err, &tce) {
		for i, reason := range tce.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" && i < len(onFail) && onFail[i] != nil {
				return onFail[i]
			}
		}
		return fmt.Errorf("transaction canceled: %w", err)
	}
	return fmt.Errorf("transact write: %w", err)
}

// Customers

func (s *DynamoStore) FindCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	if s.tx != nil {
		s.tx.mu.Lock()
		id, ok := s.tx.emails[email]
		var c domain.Customer
		if ok {
			c = s.tx.customers[id]
		}
		s.tx.mu.Unlock()
		if ok {
			return &c, nil
		}
	}

	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tables.Emails,
		Key: map[string]types.AttributeValue{
			"email": &types.AttributeValueMemberS{Value: email},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get email guard: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var guard emailItem
	if err := attributevalue.UnmarshalMap(out.Item, &guard); err != nil {
		return nil, fmt.Errorf("unmarshal email guard: %w", err)
	}
	return s.GetCustomer(ctx, guard.CustomerID)
}

func (s *DynamoStore) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	if s.tx != nil {
		s.tx.mu.Lock()
		c, ok := s.tx.customers[id]
		s.tx.mu.Unlock()
		if ok {
			return &c, nil
		}
	}

	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tables.Customers,
		Key: map[string]types.AttributeValue{
			"customer_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var it customerItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal customer: %w", err)
	}
	c := it.toDomain()
	return &c, nil
}

func (s *DynamoStore) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	items, err := s.scanAll(ctx, s.tables.Customers)
	if err != nil {
		return nil, fmt.Errorf("list customers: %w", err)
	}
	out := make([]domain.Customer, 0, len(items))
	for _, raw := range items {
		var it customerItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("unmarshal customer: %w", err)
		}
		out = append(out, it.toDomain())
	}
	return out, nil
}

func (s *DynamoStore) InsertCustomer(ctx context.Context, c *domain.Customer) error {
	custMap, err := attributevalue.MarshalMap(customerItem{
		CustomerID: c.ID, Name: c.Name, Email: c.Email, Phone: c.Phone,
	})
	if err != nil {
		return fmt.Errorf("marshal customer: %w", err)
	}
	guardMap, err := attributevalue.MarshalMap(emailItem{Email: c.Email, CustomerID: c.ID})
	if err != nil {
		return fmt.Errorf("marshal email guard: %w", err)
	}

	guard := types.TransactWriteItem{Put: &types.Put{
		TableName:           &s.tables.Emails,
		Item:                guardMap,
		ConditionExpression: awsString("attribute_not_exists(email)"),
	}}
	customer := types.TransactWriteItem{Put: &types.Put{
		TableName:           &s.tables.Customers,
		Item:                custMap,
		ConditionExpression: awsString("attribute_not_exists(customer_id)"),
	}}

	if s.tx == nil {
		return s.transactWrite(ctx, []types.TransactWriteItem{guard, customer}, []error{ErrEmailTaken, nil})
	}

	s.tx.mu.Lock()
	defer s.tx.mu.Unlock()
	if _, ok := s.tx.emails[c.Email]; ok {
		return ErrEmailTaken
	}
	if len(s.tx.items)+2 > maxTransactItems {
		return ErrTransactionTooLarge
	}
	if err := s.tx.add("email#"+c.Email, guard, ErrEmailTaken); err != nil {
		return err
	}
	if err := s.tx.add("customer#"+c.ID, customer, nil); err != nil {
		return err
	}
	s.tx.customers[c.ID] = *c
	s.tx.emails[c.Email] = c.ID
	return nil
}

// Products

func (s *DynamoStore) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	ids = uniqueIDs(ids)
	found := make([]*domain.Product, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			p, err := s.getProduct(gctx, id)
			if err != nil {
				return err
			}
			found[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Product, 0, len(ids))
	for _, p := range found {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *DynamoStore) getProduct(ctx context.Context, id string) (*domain.Product, error) {
	if s.tx != nil {
		s.tx.mu.Lock()
		p, ok := s.tx.products[id]
		s.tx.mu.Unlock()
		if ok {
			return &p, nil
		}
	}

	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tables.Products,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: id},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var it productItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	p, err := it.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ListProducts scans the products table and filters in process. Inside a
// transaction, buffered product writes replace their stored versions.
func (s *DynamoStore) ListProducts(ctx context.Context, filter ProductFilter) ([]domain.Product, error) {
	items, err := s.scanAll(ctx, s.tables.Products)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	var pending map[string]domain.Product
	if s.tx != nil {
		s.tx.mu.Lock()
		pending = copyMap(s.tx.products)
		s.tx.mu.Unlock()
	}

	out := make([]domain.Product, 0, len(items))
	for _, raw := range items {
		var it productItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("unmarshal product: %w", err)
		}
		p, err := it.toDomain()
		if err != nil {
			return nil, err
		}
		if pp, ok := pending[p.ID]; ok {
			p = pp
			delete(pending, p.ID)
		}
		if filter.Match(p) {
			out = append(out, p)
		}
	}
	for _, p := range pending {
		if filter.Match(p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *DynamoStore) InsertProduct(ctx context.Context, p *domain.Product) error {
	return s.putProduct(ctx, p, "attribute_not_exists(product_id)", nil)
}

// UpdateProduct replaces a stored product; ErrNotFound if it does not exist.
func (s *DynamoStore) UpdateProduct(ctx context.Context, p *domain.Product) error {
	return s.putProduct(ctx, p, "attribute_exists(product_id)", ErrNotFound)
}

func (s *DynamoStore) putProduct(ctx context.Context, p *domain.Product, cond string, onFail error) error {
	item, err := attributevalue.MarshalMap(productItem{
		ProductID: p.ID, Name: p.Name, Price: p.Price.String(), Stock: p.Stock,
	})
	if err != nil {
		return fmt.Errorf("marshal product: %w", err)
	}

	if s.tx != nil {
		s.tx.mu.Lock()
		defer s.tx.mu.Unlock()
		// a product inserted earlier in this transaction does not exist yet
		if _, pending := s.tx.products[p.ID]; pending {
			if i, ok := s.tx.index["product#"+p.ID]; ok {
				cond = *s.tx.items[i].Put.ConditionExpression
				onFail = s.tx.onFail[i]
			}
		}
		put := types.TransactWriteItem{Put: &types.Put{
			TableName:           &s.tables.Products,
			Item:                item,
			ConditionExpression: awsString(cond),
		}}
		if err := s.tx.add("product#"+p.ID, put, onFail); err != nil {
			return err
		}
		s.tx.products[p.ID] = *p
		return nil
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tables.Products,
		Item:                item,
		ConditionExpression: awsString(cond),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) && onFail != nil {
			return onFail
		}
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

// RestockBelow scans for low-stock products and raises each one with its own
// conditional UpdateItem, so the number of products is not bound by the
// transaction item limit. A product whose stock reached the threshold in the
// meantime fails the condition and is left out of the result. Inside a
// transaction the updates are buffered like any other write.
func (s *DynamoStore) RestockBelow(ctx context.Context, threshold, amount int) ([]domain.Product, error) {
	low, err := s.ListProducts(ctx, ProductFilter{StockBelow: &threshold})
	if err != nil {
		return nil, err
	}

	if s.tx != nil {
		for i := range low {
			low[i].Stock += amount
			if err := s.UpdateProduct(ctx, &low[i]); err != nil {
				return nil, fmt.Errorf("restock product %s: %w", low[i].ID, err)
			}
		}
		return low, nil
	}

	updated := make([]*domain.Product, len(low))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, p := range low {
		i, id := i, p.ID
		g.Go(func() error {
			p, err := s.incrementStock(gctx, id, threshold, amount)
			if err != nil {
				return err
			}
			updated[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Product, 0, len(low))
	for _, p := range updated {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// incrementStock returns (nil, nil) when the product is gone or no longer low.
func (s *DynamoStore) incrementStock(ctx context.Context, id string, threshold, amount int) (*domain.Product, error) {
	out, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tables.Products,
		Key: map[string]types.AttributeValue{
			"product_id": &types.AttributeValueMemberS{Value: id},
		},
		ConditionExpression: awsString("attribute_exists(product_id) AND stock < :threshold"),
		UpdateExpression:    awsString("SET stock = stock + :n"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":threshold": &types.AttributeValueMemberN{Value: strconv.Itoa(threshold)},
			":n":         &types.AttributeValueMemberN{Value: strconv.Itoa(amount)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, nil
		}
		return nil, fmt.Errorf("restock product %s: %w", id, err)
	}

	var it productItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, fmt.Errorf("unmarshal product: %w", err)
	}
	p, err := it.toDomain()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Orders

func (s *DynamoStore) ListOrders(ctx context.Context, filter OrderFilter) ([]domain.Order, error) {
	items, err := s.scanAll(ctx, s.tables.Orders)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]domain.Order, 0, len(items))
	for _, raw := range items {
		var it orderItem
		if err := attributevalue.UnmarshalMap(raw, &it); err != nil {
			return nil, fmt.Errorf("unmarshal order: %w", err)
		}
		o, err := it.toDomain()
		if err != nil {
			return nil, err
		}
		if filter.Match(o) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *DynamoStore) InsertOrder(ctx context.Context, o *domain.Order) error {
	item, err := attributevalue.MarshalMap(orderItem{
		OrderID:     o.ID,
		CustomerID:  o.CustomerID,
		ProductIDs:  o.ProductIDs,
		TotalAmount: o.TotalAmount.String(),
		OrderDate:   FormatOrderDate(o.OrderDate),
	})
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	cond := awsString("attribute_not_exists(order_id)")

	if s.tx != nil {
		s.tx.mu.Lock()
		defer s.tx.mu.Unlock()
		return s.tx.add("order#"+o.ID, types.TransactWriteItem{Put: &types.Put{
			TableName:           &s.tables.Orders,
			Item:                item,
			ConditionExpression: cond,
		}}, nil)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tables.Orders,
		Item:                item,
		ConditionExpression: cond,
	})
	if err != nil {
		return fmt.Errorf("put order: %w", err)
	}
	return nil
}

// scanAll reads every item of table, following LastEvaluatedKey.
func (s *DynamoStore) scanAll(ctx context.Context, table string) ([]map[string]types.AttributeValue, error) {
	var (
		items    []map[string]types.AttributeValue
		startKey map[string]types.AttributeValue
		pages    int
	)
	for {
		out, err := s.client.Scan(ctx, &dyn.ScanInput{
			TableName:         &table,
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		items = append(items, out.Items...)
		pages++
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	if pages > 1 {
		log.Printf("[store] scanned table=%s pages=%d items=%d", table, pages, len(items))
	}
	return items, nil
}

func (it customerItem) toDomain() domain.Customer {
	return domain.Customer{ID: it.CustomerID, Name: it.Name, Email: it.Email, Phone: it.Phone}
}

func (it productItem) toDomain() (domain.Product, error) {
	price, err := decimal.NewFromString(it.Price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("parse price of product %s: %w", it.ProductID, err)
	}
	return domain.Product{ID: it.ProductID, Name: it.Name, Price: price, Stock: it.Stock}, nil
}

func (it orderItem) toDomain() (domain.Order, error) {
	total, err := decimal.NewFromString(it.TotalAmount)
	if err != nil {
		return domain.Order{}, fmt.Errorf("parse total of order %s: %w", it.OrderID, err)
	}
	date, err := ParseOrderDate(it.OrderDate)
	if err != nil {
		return domain.Order{}, fmt.Errorf("parse date of order %s: %w", it.OrderID, err)
	}
	ids := it.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	return domain.Order{
		ID:          it.OrderID,
		CustomerID:  it.CustomerID,
		ProductIDs:  ids,
		TotalAmount: total,
		OrderDate:   date,
	}, nil
}

func awsString(s string) *string { return &s }
