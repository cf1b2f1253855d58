package validation

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCustomerInput_Valid(t *testing.T) {
	v := New()

	req := CustomerInput{Name: "Alice", Email: "alice@example.com", Phone: "+1234567890"}
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got error: %v", err)
	}

	// phone is optional
	req.Phone = ""
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid without phone, got error: %v", err)
	}
}

func TestCustomerInput_MissingFields(t *testing.T) {
	v := New()

	cases := []CustomerInput{
		{Email: "alice@example.com"},
		{Name: "   ", Email: "alice@example.com"},
		{Name: "Alice"},
		{Name: "Alice", Email: "not-an-email"},
	}
	for _, req := range cases {
		if err := v.Struct(req); err == nil {
			t.Fatalf("expected validation error for %+v, got nil", req)
		}
	}
}

func TestBulkCustomersInput_EmptyListAllowed(t *testing.T) {
	v := New()

	if err := v.Struct(BulkCustomersInput{Customers: []CustomerInput{}}); err != nil {
		t.Fatalf("expected empty list to be valid, got %v", err)
	}
	if err := v.Struct(BulkCustomersInput{}); err == nil {
		t.Fatal("expected error for missing customers list")
	}
}

func TestBulkCustomersInput_EntriesNotValidated(t *testing.T) {
	v := New()

	req := BulkCustomersInput{Customers: []CustomerInput{{Name: "Ok", Email: "ok@example.com"}, {Name: "Bad", Email: "nope"}}}
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected bad entries to pass shape validation, got %v", err)
	}
}

func TestCheckCustomer(t *testing.T) {
	if verr := CheckCustomer(CustomerInput{Name: "Alice", Email: "alice@example.com"}); verr != nil {
		t.Fatalf("expected valid, got %v", verr)
	}

	verr := CheckCustomer(CustomerInput{Name: "Alice", Email: "nope"})
	if verr == nil || verr.Kind != KindInvalidEmail || verr.Value != "nope" {
		t.Fatalf("expected invalid email error, got %+v", verr)
	}

	verr = CheckCustomer(CustomerInput{Name: " ", Email: "alice@example.com"})
	if verr == nil || verr.Kind != KindMissingName {
		t.Fatalf("expected missing name error, got %+v", verr)
	}
}

func TestProductInput_RequiresPrice(t *testing.T) {
	v := New()

	price := decimal.RequireFromString("999.99")
	if err := v.Struct(ProductInput{Name: "Laptop", Price: &price}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	if err := v.Struct(ProductInput{Name: "Laptop"}); err == nil {
		t.Fatal("expected error for missing price")
	}
}

func TestOrderInput_EmptyProductIDsPassShapeValidation(t *testing.T) {
	v := New()

	now := time.Now()
	req := OrderInput{CustomerID: "c1", ProductIDs: []string{}, OrderDate: &now}
	if err := v.Struct(req); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}

	if err := v.Struct(OrderInput{CustomerID: "c1"}); err == nil {
		t.Fatal("expected error for missing product_ids")
	}
}
