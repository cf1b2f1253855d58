package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-crm-backend/internal/aws"
	"github.com/imrishuroy/go-crm-backend/internal/crm"
	"github.com/imrishuroy/go-crm-backend/internal/store"
)

type mockSQS struct {
	mu     sync.Mutex
	bodies []string
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.bodies = append(m.bodies, *params.MessageBody)
	return &sqs.SendMessageOutput{}, nil
}

func setupRouter(t *testing.T, events, jobsQ *mockSQS) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := HandlerConfig{Service: crm.NewService(store.NewMemoryStore())}
	if events != nil {
		cfg.Events = aws.NewPublisher(events, "events-queue")
	}
	if jobsQ != nil {
		cfg.Jobs = aws.NewPublisher(jobsQ, "jobs-queue")
	}
	return NewRouter(cfg)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %s: %v", w.Body.String(), err)
	}
}

func TestHealthAndHello(t *testing.T) {
	r := setupRouter(t, nil, nil)

	if w := doJSON(t, r, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Fatalf("health code %d", w.Code)
	}
	w := doJSON(t, r, http.MethodGet, "/hello", nil)
	var out map[string]string
	decode(t, w, &out)
	if out["hello"] != "Hello, CRM!" {
		t.Fatalf("unexpected hello %v", out)
	}
}

func TestCustomerRoutes(t *testing.T) {
	r := setupRouter(t, nil, nil)

	w := doJSON(t, r, http.MethodPost, "/customers", map[string]any{
		"name": "Alice", "email": "alice@example.com", "phone": "+1234567890",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create code %d body %s", w.Code, w.Body.String())
	}
	var created struct {
		Customer struct {
			ID    string `json:"id"`
			Email string `json:"email"`
		} `json:"customer"`
		Message string `json:"message"`
	}
	decode(t, w, &created)
	if created.Customer.ID == "" || created.Message != "Customer created successfully." {
		t.Fatalf("unexpected body %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/customers", map[string]any{"name": "A2", "email": "alice@example.com"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("duplicate code %d", w.Code)
	}
	var failed struct {
		Errors []string `json:"errors"`
	}
	decode(t, w, &failed)
	if len(failed.Errors) != 1 || failed.Errors[0] != "Email already exists." {
		t.Fatalf("unexpected errors %v", failed.Errors)
	}

	// shape errors are 400
	w = doJSON(t, r, http.MethodPost, "/customers", map[string]any{"name": "", "email": "nope"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid body code %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/customers/bulk", map[string]any{"customers": []map[string]any{
		{"name": "Bob", "email": "bob@example.com"},
		{"name": "Dup", "email": "alice@example.com"},
		{"name": "Carol", "email": "carol@example.com", "phone": "123-456-7890"},
	}})
	if w.Code != http.StatusOK {
		t.Fatalf("bulk code %d body %s", w.Code, w.Body.String())
	}
	var bulk struct {
		Customers []map[string]any `json:"customers"`
		Errors    []string         `json:"errors"`
	}
	decode(t, w, &bulk)
	if len(bulk.Customers) != 2 || len(bulk.Errors) != 1 || bulk.Errors[0] != "Email alice@example.com already exists." {
		t.Fatalf("unexpected bulk result %s", w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/customers", nil)
	var list struct {
		Customers []map[string]any `json:"customers"`
	}
	decode(t, w, &list)
	if len(list.Customers) != 3 {
		t.Fatalf("expected 3 customers, got %d", len(list.Customers))
	}
}

func createProduct(t *testing.T, r *gin.Engine, name string, price any, stock int) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/products", map[string]any{"name": name, "price": price, "stock": stock})
	if w.Code != http.StatusCreated {
		t.Fatalf("create product code %d body %s", w.Code, w.Body.String())
	}
	var out struct {
		Product struct {
			ID string `json:"id"`
		} `json:"product"`
	}
	decode(t, w, &out)
	return out.Product.ID
}

func TestProductRoutes(t *testing.T) {
	r := setupRouter(t, nil, nil)

	createProduct(t, r, "Laptop", 999.99, 3)
	createProduct(t, r, "Phone", "499.99", 15)

	w := doJSON(t, r, http.MethodPost, "/products", map[string]any{"name": "Free", "price": 0})
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "Price must be positive.") {
		t.Fatalf("expected 422 price error, got %d %s", w.Code, w.Body.String())
	}
	w = doJSON(t, r, http.MethodPost, "/products", map[string]any{"name": "Neg", "price": 1, "stock": -1})
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "Stock cannot be negative.") {
		t.Fatalf("expected 422 stock error, got %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodPost, "/products/restock", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("restock code %d", w.Code)
	}
	var restock crm.RestockResult
	decode(t, w, &restock)
	if restock.Message != "1 product(s) restocked successfully." || restock.Products[0].Stock != 13 {
		t.Fatalf("unexpected restock %s", w.Body.String())
	}
}

func TestOrderRoutes(t *testing.T) {
	events := &mockSQS{}
	r := setupRouter(t, events, nil)

	w := doJSON(t, r, http.MethodPost, "/customers", map[string]any{"name": "Alice", "email": "alice@example.com"})
	var created struct {
		Customer struct {
			ID string `json:"id"`
		} `json:"customer"`
	}
	decode(t, w, &created)
	laptop := createProduct(t, r, "Laptop", "999.99", 10)
	phone := createProduct(t, r, "Phone", "499.99", 20)

	w = doJSON(t, r, http.MethodPost, "/orders", map[string]any{
		"customer_id": created.Customer.ID,
		"product_ids": []string{laptop, phone},
		"order_date":  "2024-03-05T10:00:00Z",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create order code %d body %s", w.Code, w.Body.String())
	}
	var order struct {
		Order struct {
			ID          string `json:"id"`
			TotalAmount string `json:"total_amount"`
		} `json:"order"`
	}
	decode(t, w, &order)
	if order.Order.TotalAmount != "1499.98" {
		t.Fatalf("expected total 1499.98, got %s", order.Order.TotalAmount)
	}
	if len(events.bodies) != 1 || !strings.Contains(events.bodies[0], `"type":"order.created"`) {
		t.Fatalf("expected order.created event, got %v", events.bodies)
	}

	w = doJSON(t, r, http.MethodPost, "/orders", map[string]any{"customer_id": created.Customer.ID, "product_ids": []string{}})
	if w.Code != http.StatusUnprocessableEntity || !strings.Contains(w.Body.String(), "At least one product must be selected.") {
		t.Fatalf("expected empty list error, got %d %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/orders?order_date_gte=2024-03-01&order_date_lte=2024-03-05", nil)
	var list struct {
		Orders []map[string]any `json:"orders"`
	}
	decode(t, w, &list)
	if len(list.Orders) != 1 {
		t.Fatalf("expected the order to fall inside a date-only upper bound, got %d", len(list.Orders))
	}

	w = doJSON(t, r, http.MethodGet, "/orders?order_date_gte=2024-03-06", nil)
	decode(t, w, &list)
	if len(list.Orders) != 0 {
		t.Fatalf("expected no orders, got %d", len(list.Orders))
	}

	w = doJSON(t, r, http.MethodGet, "/orders?order_date_gte=yesterday", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad date, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/stats", nil)
	var stats struct {
		CustomersCount int    `json:"customers_count"`
		OrdersCount    int    `json:"orders_count"`
		Revenue        string `json:"orders_total_revenue"`
	}
	decode(t, w, &stats)
	if stats.CustomersCount != 1 || stats.OrdersCount != 1 || stats.Revenue != "1499.98" {
		t.Fatalf("unexpected stats %s", w.Body.String())
	}
}

func TestOrderRoutes_PublishFailureDoesNotFailRequest(t *testing.T) {
	r := setupRouter(t, &mockSQS{err: errors.New("sqs down")}, nil)

	w := doJSON(t, r, http.MethodPost, "/customers", map[string]any{"name": "Alice", "email": "alice@example.com"})
	var created struct {
		Customer struct {
			ID string `json:"id"`
		} `json:"customer"`
	}
	decode(t, w, &created)
	laptop := createProduct(t, r, "Laptop", "1", 1)

	w = doJSON(t, r, http.MethodPost, "/orders", map[string]any{"customer_id": created.Customer.ID, "product_ids": []string{laptop}})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 despite publish failure, got %d", w.Code)
	}
}

func TestJobTriggerRoute(t *testing.T) {
	r := setupRouter(t, nil, nil)
	if w := doJSON(t, r, http.MethodPost, "/jobs/heartbeat/trigger", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without queue, got %d", w.Code)
	}

	q := &mockSQS{}
	r = setupRouter(t, nil, q)
	if w := doJSON(t, r, http.MethodPost, "/jobs/unknown/trigger", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/jobs/weekly_report/trigger", nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	if len(q.bodies) != 1 || !strings.Contains(q.bodies[0], `"job":"weekly_report"`) {
		t.Fatalf("unexpected trigger messages %v", q.bodies)
	}
}

// oversizeRepo fails every transaction the way DynamoDB does past its item limit.
type oversizeRepo struct {
	store.Repository
}

func (oversizeRepo) RunInTransaction(ctx context.Context, fn func(ctx context.Context, tx store.Repository) error) error {
	return store.ErrTransactionTooLarge
}

func TestBulkCustomers_Limits(t *testing.T) {
	r := setupRouter(t, nil, nil)

	// a malformed entry is reported, not a 400 for the batch
	w := doJSON(t, r, http.MethodPost, "/customers/bulk", map[string]any{"customers": []map[string]any{
		{"name": "Bob", "email": "bob@example.com"},
		{"name": "Bad", "email": "not-an-email"},
	}})
	if w.Code != http.StatusOK {
		t.Fatalf("bulk code %d body %s", w.Code, w.Body.String())
	}
	var bulk struct {
		Customers []map[string]any `json:"customers"`
		Errors    []string         `json:"errors"`
	}
	decode(t, w, &bulk)
	if len(bulk.Customers) != 1 || len(bulk.Errors) != 1 || !strings.Contains(bulk.Errors[0], "not-an-email") {
		t.Fatalf("unexpected bulk result %s", w.Body.String())
	}

	gin.SetMode(gin.TestMode)
	big := NewRouter(HandlerConfig{Service: crm.NewService(oversizeRepo{store.NewMemoryStore()})})
	w = doJSON(t, big, http.MethodPost, "/customers/bulk", map[string]any{"customers": []map[string]any{
		{"name": "Bob", "email": "bob@example.com"},
	}})
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	var tooLarge struct {
		Error        string `json:"error"`
		MaxCustomers int    `json:"max_customers"`
	}
	decode(t, w, &tooLarge)
	if tooLarge.Error != "batch_too_large" || tooLarge.MaxCustomers != store.MaxTransactCustomers {
		t.Fatalf("unexpected 413 body %s", w.Body.String())
	}
}

func TestParseOrderFilter(t *testing.T) {
	f, err := parseOrderFilter("2024-03-01T00:00:00+02:00", "2024-03-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.From == nil || f.From.UTC().Hour() != 22 {
		t.Fatalf("unexpected from %v", f.From)
	}
	if f.To == nil || f.To.Day() != 5 || f.To.Hour() != 23 || f.To.Minute() != 59 {
		t.Fatalf("expected end of day upper bound, got %v", f.To)
	}

	f, err = parseOrderFilter("", "")
	if err != nil || f.From != nil || f.To != nil {
		t.Fatalf("expected empty filter, got %+v %v", f, err)
	}
}
