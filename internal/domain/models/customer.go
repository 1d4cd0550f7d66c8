package models

import "time"

// Customer is the internal account a subscription belongs to. It is unique
// by id and by email; ProviderCustomerID is assigned lazily on first use and
// never rewritten afterwards.
type Customer struct {
	ID                 int64
	ProviderCustomerID string // "cus_<16 hex>", empty until assigned
	Email              string
	Status             string
	CreatedAt          time.Time
}
