package crm

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/imrishuroy/go-crm-backend/internal/domain"
	"github.com/imrishuroy/go-crm-backend/internal/store"
	"github.com/imrishuroy/go-crm-backend/internal/validation"
)

// CreateCustomer checks the name and email fields, that the email is free,
// then the phone format, then stores the customer.
func (s *Service) CreateCustomer(ctx context.Context, in validation.CustomerInput) (CustomerResult, error) {
	c, verr, err := s.createCustomer(ctx, s.repo, in)
	if err != nil {
		return CustomerResult{}, err
	}
	if verr != nil {
		return CustomerResult{Errors: []string{verr.Message}}, nil
	}
	return CustomerResult{Customer: c, Message: "Customer created successfully."}, nil
}

// BulkCreateCustomers creates each valid entry and reports one error string
// per rejected entry. The batch runs in a single transaction: an
// infrastructure failure rolls back every customer created so far.
func (s *Service) BulkCreateCustomers(ctx context.Context, inputs []validation.CustomerInput) (BulkCustomersResult, error) {
	res := BulkCustomersResult{
		Customers: []domain.Customer{},
		Errors:    []string{},
	}
	if len(inputs) == 0 {
		return res, nil
	}

	err := s.repo.RunInTransaction(ctx, func(ctx context.Context, tx store.Repository) error {
		for _, in := range inputs {
			c, verr, err := s.createCustomer(ctx, tx, in)
			if err != nil {
				return err
			}
			if verr != nil {
				res.Errors = append(res.Errors, bulkMessage(verr))
				continue
			}
			res.Customers = append(res.Customers, *c)
		}
		return nil
	})
	if err != nil {
		return BulkCustomersResult{}, fmt.Errorf("bulk create customers: %w", err)
	}

	log.Printf("[crm] bulk create customers: created=%d rejected=%d", len(res.Customers), len(res.Errors))
	return res, nil
}

func (s *Service) createCustomer(ctx context.Context, repo store.Repository, in validation.CustomerInput) (*domain.Customer, *validation.Error, error) {
	if verr := validation.CheckCustomer(in); verr != nil {
		return nil, verr, nil
	}

	existing, err := repo.FindCustomerByEmail(ctx, in.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("find customer by email: %w", err)
	}
	if existing != nil {
		return nil, validation.EmailTaken(in.Email), nil
	}

	if err := validation.ValidatePhone(in.Phone); err != nil {
		verr, _ := validation.AsError(err)
		return nil, verr, nil
	}

	c := &domain.Customer{
		ID:    s.newID(),
		Name:  in.Name,
		Email: in.Email,
		Phone: in.Phone,
	}
	if err := repo.InsertCustomer(ctx, c); err != nil {
		// lost a race with a concurrent create of the same email
		if errors.Is(err, store.ErrEmailTaken) {
			return nil, validation.EmailTaken(in.Email), nil
		}
		return nil, nil, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil, nil
}

func bulkMessage(verr *validation.Error) string {
	switch verr.Kind {
	case validation.KindEmailTaken:
		return fmt.Sprintf("Email %s already exists.", verr.Value)
	case validation.KindInvalidEmail:
		return fmt.Sprintf("Email %q is invalid.", verr.Value)
	case validation.KindMissingName:
		return fmt.Sprintf("Name is required for %s.", verr.Value)
	}
	return verr.Message
}
