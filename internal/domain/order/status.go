package order

import (
	"errors"
	"fmt"
)

// Status is the closed set of order lifecycle states. Both orders.status and
// order_changes.status reference order_statuses, which is seeded from All().
type Status string

const (
	StatusPendingPayment    Status = "pending_payment"
	StatusCreated           Status = "created"
	StatusProcessing        Status = "processing"
	StatusPartiallyShipped  Status = "partially_shipped"
	StatusShipped           Status = "shipped"
	StatusOutForDelivery    Status = "out_for_delivery"
	StatusDelivered         Status = "delivered"
	StatusReturnRequested   Status = "return_requested"
	StatusReturnShipped     Status = "return_shipped"
	StatusReturned          Status = "returned"
	StatusPartiallyRefunded Status = "partially_refunded"
	StatusRefunded          Status = "refunded"
	StatusCanceled          Status = "canceled"
)

var (
	ErrUnknownStatus     = errors.New("unknown order status")
	ErrInvalidTransition = errors.New("invalid order status transition")
	// ErrConcurrentUpdate means the status changed between read and write.
	ErrConcurrentUpdate = errors.New("order status changed concurrently")
)

var descriptions = map[Status]string{
	StatusPendingPayment:    "Awaiting payment confirmation",
	StatusCreated:           "Paid and recorded",
	StatusProcessing:        "Being prepared for shipment",
	StatusPartiallyShipped:  "Some items have shipped",
	StatusShipped:           "All items have shipped",
	StatusOutForDelivery:    "With the carrier for final delivery",
	StatusDelivered:         "Delivered to the customer",
	StatusReturnRequested:   "Customer asked to return items",
	StatusReturnShipped:     "Return is on its way back",
	StatusReturned:          "Return received",
	StatusPartiallyRefunded: "Part of the amount was refunded",
	StatusRefunded:          "Fully refunded",
	StatusCanceled:          "Canceled before fulfilment",
}

var transitions = map[Status][]Status{
	StatusPendingPayment:    {StatusCreated, StatusCanceled},
	StatusCreated:           {StatusProcessing, StatusCanceled},
	StatusProcessing:        {StatusPartiallyShipped, StatusShipped, StatusCanceled},
	StatusPartiallyShipped:  {StatusShipped, StatusPartiallyRefunded},
	StatusShipped:           {StatusOutForDelivery, StatusDelivered},
	StatusOutForDelivery:    {StatusDelivered},
	StatusDelivered:         {StatusReturnRequested, StatusPartiallyRefunded, StatusRefunded},
	StatusReturnRequested:   {StatusReturnShipped, StatusDelivered},
	StatusReturnShipped:     {StatusReturned},
	StatusReturned:          {StatusPartiallyRefunded, StatusRefunded},
	StatusPartiallyRefunded: {StatusPartiallyRefunded, StatusRefunded},
	StatusRefunded:          nil,
	StatusCanceled:          nil,
}

// All returns every status in lifecycle order.
func All() []Status {
	return []Status{
		StatusPendingPayment, StatusCreated, StatusProcessing, StatusPartiallyShipped,
		StatusShipped, StatusOutForDelivery, StatusDelivered, StatusReturnRequested,
		StatusReturnShipped, StatusReturned, StatusPartiallyRefunded, StatusRefunded,
		StatusCanceled,
	}
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

func (s Status) Terminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

func (s Status) Description() string { return descriptions[s] }

// Next lists the statuses reachable from s in one step.
func (s Status) Next() []Status {
	return append([]Status(nil), transitions[s]...)
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition reports why from -> to is not allowed, or nil.
func CheckTransition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, to)
	}
	if !from.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, from)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// StatusRecord is a row of the order_statuses reference table.
type StatusRecord struct {
	Name        Status `gorm:"primaryKey;size:32" json:"name"`
	Description string `gorm:"size:255" json:"description"`
}

func (StatusRecord) TableName() string { return "order_statuses" }

// StatusRecords returns the seed rows for order_statuses.
func StatusRecords() []StatusRecord {
	out := make([]StatusRecord, 0, len(transitions))
	for _, s := range All() {
		out = append(out, StatusRecord{Name: s, Description: s.Description()})
	}
	return out
}
