package handlers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-crm-backend/internal/aws"
	"github.com/imrishuroy/go-crm-backend/internal/crm"
	"github.com/imrishuroy/go-crm-backend/internal/domain"
	"github.com/imrishuroy/go-crm-backend/internal/store"
	"github.com/imrishuroy/go-crm-backend/internal/validation"
)

// EventOrderCreated is the type of the event published after an order is stored.
const EventOrderCreated = "order.created"

// HandlerConfig groups dependencies for the CRM routes.
type HandlerConfig struct {
	Service *crm.Service
	// Events receives order.created events; nil or unconfigured disables publishing.
	Events *aws.Publisher
	// Jobs receives job triggers for POST /jobs/:name/trigger.
	Jobs *aws.Publisher
	// RequestLogging adds gin's access log; Lambda already logs invocations.
	RequestLogging bool
}

// OrderCreatedEvent is the body of an order.created message.
type OrderCreatedEvent struct {
	Type        string    `json:"type"`
	OrderID     string    `json:"order_id"`
	CustomerID  string    `json:"customer_id"`
	ProductIDs  []string  `json:"product_ids"`
	TotalAmount string    `json:"total_amount"`
	OrderDate   time.Time `json:"order_date"`
}

// RegisterCRMRoutes registers the customer, product, order and stats routes.
func RegisterCRMRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	svc := cfg.Service

	r.GET("/hello", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"hello": svc.Hello()})
	})

	r.POST("/customers", func(c *gin.Context) {
		var req validation.CustomerInput
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		res, err := svc.CreateCustomer(c.Request.Context(), req)
		if err != nil {
			internalError(c, "create_customer_failed", err)
			return
		}
		if len(res.Errors) > 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": res.Errors})
			return
		}
		c.Header("Location", fmt.Sprintf("/customers/%s", res.Customer.ID))
		c.JSON(http.StatusCreated, res)
	})

	// The whole batch is one transaction. On DynamoDB that caps a batch at
	// store.MaxTransactCustomers entries; larger batches get 413 with the limit.
	r.POST("/customers/bulk", func(c *gin.Context) {
		var req validation.BulkCustomersInput
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		res, err := svc.BulkCreateCustomers(c.Request.Context(), req.Customers)
		switch {
		case errors.Is(err, store.ErrEmailTaken):
			// a concurrent writer took one of the emails between check and commit
			c.JSON(http.StatusConflict, gin.H{"error": "email_conflict", "detail": err.Error()})
			return
		case errors.Is(err, store.ErrTransactionTooLarge):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":         "batch_too_large",
				"detail":        err.Error(),
				"max_customers": store.MaxTransactCustomers,
			})
			return
		case err != nil:
			internalError(c, "bulk_create_customers_failed", err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	r.GET("/customers", func(c *gin.Context) {
		customers, err := svc.Customers(c.Request.Context())
		if err != nil {
			internalError(c, "list_customers_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"customers": customers})
	})

	r.POST("/products", func(c *gin.Context) {
		var req validation.ProductInput
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		res, err := svc.CreateProduct(c.Request.Context(), req)
		if err != nil {
			internalError(c, "create_product_failed", err)
			return
		}
		if len(res.Errors) > 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": res.Errors})
			return
		}
		c.JSON(http.StatusCreated, res)
	})

	r.GET("/products", func(c *gin.Context) {
		products, err := svc.Products(c.Request.Context())
		if err != nil {
			internalError(c, "list_products_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"products": products})
	})

	r.POST("/products/restock", func(c *gin.Context) {
		res, err := svc.UpdateLowStockProducts(c.Request.Context())
		if err != nil {
			internalError(c, "restock_failed", err)
			return
		}
		c.JSON(http.StatusOK, res)
	})

	r.POST("/orders", func(c *gin.Context) {
		ctx := c.Request.Context()

		var req validation.OrderInput
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		res, err := svc.CreateOrder(ctx, req)
		if err != nil {
			internalError(c, "create_order_failed", err)
			return
		}
		if len(res.Errors) > 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": res.Errors})
			return
		}

		// the order is committed; a failed publish is logged, not returned
		publishOrderCreated(ctx, cfg.Events, res.Order, c.GetHeader("X-Request-Id"))

		c.Header("Location", fmt.Sprintf("/orders/%s", res.Order.ID))
		c.JSON(http.StatusCreated, res)
	})

	r.GET("/orders", func(c *gin.Context) {
		filter, err := parseOrderFilter(c.Query("order_date_gte"), c.Query("order_date_lte"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_date_filter", "msg": err.Error()})
			return
		}
		orders, err := svc.Orders(c.Request.Context(), filter)
		if err != nil {
			internalError(c, "list_orders_failed", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": orders})
	})

	r.GET("/stats", func(c *gin.Context) {
		stats, err := svc.Stats(c.Request.Context())
		if err != nil {
			internalError(c, "stats_failed", err)
			return
		}
		c.JSON(http.StatusOK, stats)
	})
}

func publishOrderCreated(ctx context.Context, events *aws.Publisher, order *domain.OrderDetail, correlationID string) {
	if !events.Enabled() {
		return
	}
	productIDs := make([]string, 0, len(order.Products))
	for _, p := range order.Products {
		productIDs = append(productIDs, p.ID)
	}
	ev := OrderCreatedEvent{
		Type:        EventOrderCreated,
		OrderID:     order.ID,
		CustomerID:  order.Customer.ID,
		ProductIDs:  productIDs,
		TotalAmount: order.TotalAmount.String(),
		OrderDate:   order.OrderDate,
	}
	attrs := map[string]string{
		"event_type":     EventOrderCreated,
		"order_id":       order.ID,
		"correlation_id": correlationID,
	}
	if err := events.PublishJSON(ctx, ev, attrs); err != nil {
		log.Printf("[api] publish %s order=%s failed: %v", EventOrderCreated, order.ID, err)
	}
}

const dateOnly = "2006-01-02"

// parseOrderFilter accepts RFC 3339 timestamps or YYYY-MM-DD dates. A date
// upper bound covers the whole day.
func parseOrderFilter(gte, lte string) (store.OrderFilter, error) {
	var f store.OrderFilter
	if gte != "" {
		t, _, err := parseDateBound(gte)
		if err != nil {
			return f, fmt.Errorf("order_date_gte: %w", err)
		}
		f.From = &t
	}
	if lte != "" {
		t, dateOnlyValue, err := parseDateBound(lte)
		if err != nil {
			return f, fmt.Errorf("order_date_lte: %w", err)
		}
		if dateOnlyValue {
			t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		f.To = &t
	}
	return f, nil
}

func parseDateBound(s string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(dateOnly, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("expected RFC 3339 timestamp or YYYY-MM-DD, got %q", s)
	}
	return t, true, nil
}

func internalError(c *gin.Context, code string, err error) {
	log.Printf("[api] %s %s: %s: %v", c.Request.Method, c.FullPath(), code, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": code, "detail": err.Error()})
}
