package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// Customer — клиент бизнеса (CRM).
type Customer struct {
	ID           uuid.UUID         `json:"id"`
	BusinessID   uuid.UUID         `json:"business_id"`
	Phone        string            `json:"phone"`
	Name         string            `json:"name"`
	CustomFields map[string]string `json:"custom_fields"`
	Tags         []string          `json:"tags"`
	CreatedAt    time.Time         `json:"created_at"`
}

// HasTag проверяет наличие тега.
func (c *Customer) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// DealStageNew — стадия новой сделки.
const DealStageNew = "new"

// Deal — сделка в CRM.
type Deal struct {
	ID         uuid.UUID `json:"id"`
	BusinessID uuid.UUID `json:"business_id"`
	CustomerID uuid.UUID `json:"customer_id"`
	Title      string    `json:"title"`
	Stage      string    `json:"stage"`
	Amount     float64   `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}

// DealTitle формирует название сделки, созданной ботом.
func DealTitle(customerName string) string {
	if customerName == "" {
		customerName = "customer"
	}
	return "Deal from " + customerName
}
