package sandbox

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Botflow/internal/domain"
	"github.com/shaiso/Botflow/internal/repo"
)

// CRM — клиенты и сделки в памяти.
type CRM struct {
	mu        sync.Mutex
	customers map[uuid.UUID]*domain.Customer
	deals     []domain.Deal
}

// NewCRM создаёт пустую CRM.
func NewCRM() *CRM {
	return &CRM{customers: make(map[uuid.UUID]*domain.Customer)}
}

// AddCustomer регистрирует клиента.
func (c *CRM) AddCustomer(customer domain.Customer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if customer.CustomFields == nil {
		customer.CustomFields = map[string]string{}
	}
	c.customers[customer.ID] = &customer
}

// Customer возвращает копию клиента.
func (c *CRM) Customer(id uuid.UUID) (domain.Customer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cust, ok := c.customers[id]
	if !ok {
		return domain.Customer{}, false
	}
	out := *cust
	out.CustomFields = make(map[string]string, len(cust.CustomFields))
	for k, v := range cust.CustomFields {
		out.CustomFields[k] = v
	}
	out.Tags = slices.Clone(cust.Tags)
	return out, true
}

// Deals возвращает созданные сделки.
func (c *CRM) Deals() []domain.Deal {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.deals)
}

// WriteCustomerField записывает пользовательское поле клиента.
func (c *CRM) WriteCustomerField(_ context.Context, customerID uuid.UUID, field, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cust, ok := c.customers[customerID]
	if !ok {
		return repo.ErrNotFound
	}
	cust.CustomFields[field] = value
	return nil
}

// CreateDeal создаёт сделку в стадии new.
func (c *CRM) CreateDeal(_ context.Context, customerID uuid.UUID, title string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cust, ok := c.customers[customerID]
	if !ok {
		return repo.ErrNotFound
	}
	c.deals = append(c.deals, domain.Deal{
		ID:         uuid.New(),
		BusinessID: cust.BusinessID,
		CustomerID: customerID,
		Title:      title,
		Stage:      domain.DealStageNew,
		CreatedAt:  time.Now(),
	})
	return nil
}

// AddCustomerTag добавляет тег, если его ещё нет.
func (c *CRM) AddCustomerTag(_ context.Context, customerID uuid.UUID, tag string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	cust, ok := c.customers[customerID]
	if !ok {
		return repo.ErrNotFound
	}
	if !cust.HasTag(tag) {
		cust.Tags = append(cust.Tags, tag)
	}
	return nil
}
